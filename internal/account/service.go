package account

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/redmonkez12/contacts-api/internal/apperror"
	"github.com/redmonkez12/contacts-api/internal/auth"
	"github.com/redmonkez12/contacts-api/internal/files"
	"github.com/redmonkez12/contacts-api/internal/logging"
)

// Repository is the persistence surface the lifecycle service needs.
type Repository interface {
	Create(ctx context.Context, acc *Account) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	SetCurrentToken(ctx context.Context, id uuid.UUID, token *string) error
	SetVerificationToken(ctx context.Context, id uuid.UUID, token string) error
	ConsumeVerificationToken(ctx context.Context, token string) (*Account, error)
	UpdateSubscription(ctx context.Context, id uuid.UUID, subscription string) (*Account, error)
	UpdateAvatar(ctx context.Context, id uuid.UUID, avatarURL string) (*Account, error)
}

// Mailer sends transactional mail.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, toEmail, token string) error
}

// AvatarRemover deletes a previously stored avatar file.
type AvatarRemover interface {
	Remove(avatarURL string) error
}

// Service implements the account lifecycle.
type Service struct {
	repo    Repository
	tokens  *auth.TokenService
	mailer  Mailer
	avatars AvatarRemover
	logger  *logging.Logger
}

func NewService(repo Repository, tokens *auth.TokenService, mailer Mailer, avatars AvatarRemover, logger *logging.Logger) *Service {
	return &Service{
		repo:    repo,
		tokens:  tokens,
		mailer:  mailer,
		avatars: avatars,
		logger:  logger,
	}
}

// Register creates an unverified account and sends the verification mail.
// The send is awaited: if it fails the caller gets a server failure rather
// than a silent success, and can recover via the resend endpoint.
func (s *Service) Register(ctx context.Context, email, password, subscription string) (*Account, error) {
	if subscription == "" {
		subscription = SubscriptionStarter
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		return nil, apperror.Server(fmt.Sprintf("failed to hash password: %v", err))
	}

	verificationToken, err := newVerificationToken()
	if err != nil {
		return nil, apperror.Server(fmt.Sprintf("failed to generate verification token: %v", err))
	}

	acc, err := s.repo.Create(ctx, &Account{
		Email:             email,
		PasswordHash:      passwordHash,
		Subscription:      subscription,
		AvatarURL:         files.GravatarURL(email),
		VerificationToken: &verificationToken,
	})
	if err != nil {
		return nil, err
	}

	if err := s.mailer.SendVerificationEmail(ctx, email, verificationToken); err != nil {
		s.logger.Error("verification email failed after registration", "email", email, "error", err.Error())
		return nil, apperror.Server("account created but the verification email could not be sent")
	}

	return acc, nil
}

// SendVerification re-sends the verification mail with a fresh token.
// An unknown email is a silent no-op so the endpoint does not leak account
// existence; an already verified account is a distinct bad request.
func (s *Service) SendVerification(ctx context.Context, email string) error {
	acc, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if ae, ok := apperror.As(err); ok && ae.Kind == apperror.KindNotFound {
			return nil
		}
		return err
	}

	if acc.Verified {
		return apperror.ValidationMsg("Verification has already been passed")
	}

	verificationToken, err := newVerificationToken()
	if err != nil {
		return apperror.Server(fmt.Sprintf("failed to generate verification token: %v", err))
	}
	if err := s.repo.SetVerificationToken(ctx, acc.ID, verificationToken); err != nil {
		return err
	}

	if err := s.mailer.SendVerificationEmail(ctx, email, verificationToken); err != nil {
		s.logger.Error("verification email failed", "email", email, "error", err.Error())
		return apperror.Server("the verification email could not be sent")
	}
	return nil
}

// VerifyEmail consumes a verification token. Consumption is atomic in the
// repository, so a second use of the same token finds no account and fails
// not-found.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	_, err := s.repo.ConsumeVerificationToken(ctx, token)
	return err
}

// Login checks credentials, mints a token and persists it as the account's
// single current token, invalidating any previously issued one.
func (s *Service) Login(ctx context.Context, email, password string) (*Account, string, error) {
	acc, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if ae, ok := apperror.As(err); ok && ae.Kind == apperror.KindNotFound {
			return nil, "", apperror.LoginFailed(fmt.Sprintf("no account with email %s", email))
		}
		return nil, "", err
	}

	if !acc.Verified {
		return nil, "", apperror.EmailNotVerified()
	}
	if !CheckPassword(acc.PasswordHash, password) {
		return nil, "", apperror.LoginFailed("password mismatch")
	}

	token, err := s.tokens.Issue(acc.ID, acc.Email, acc.Subscription)
	if err != nil {
		return nil, "", apperror.Server(fmt.Sprintf("failed to issue token: %v", err))
	}
	if err := s.repo.SetCurrentToken(ctx, acc.ID, &token); err != nil {
		return nil, "", err
	}

	return acc, token, nil
}

// Logout clears the account's current token. Logging out twice is fine.
func (s *Service) Logout(ctx context.Context, accountID uuid.UUID) error {
	err := s.repo.SetCurrentToken(ctx, accountID, nil)
	if ae, ok := apperror.As(err); ok && ae.Kind == apperror.KindNotFound {
		return apperror.NotAuthorized(fmt.Sprintf("No account with id = %s", accountID))
	}
	return err
}

// Current returns the authenticated account.
func (s *Service) Current(ctx context.Context, accountID uuid.UUID) (*Account, error) {
	acc, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		if ae, ok := apperror.As(err); ok && ae.Kind == apperror.KindNotFound {
			return nil, apperror.NotAuthorized(fmt.Sprintf("No account with id = %s", accountID))
		}
		return nil, err
	}
	return acc, nil
}

// UpdateSubscription switches the account's subscription tier.
func (s *Service) UpdateSubscription(ctx context.Context, accountID uuid.UUID, subscription string) (*Account, error) {
	acc, err := s.repo.UpdateSubscription(ctx, accountID, subscription)
	if err != nil {
		if ae, ok := apperror.As(err); ok && ae.Kind == apperror.KindNotFound {
			return nil, apperror.NotAuthorized(fmt.Sprintf("No account with id = %s", accountID))
		}
		return nil, err
	}
	return acc, nil
}

// UpdateAvatar points the account at its freshly stored avatar and removes
// the previous file. Cleanup is best effort: a failed delete is logged but
// never fails the request.
func (s *Service) UpdateAvatar(ctx context.Context, accountID uuid.UUID, avatarURL string) (*Account, error) {
	previous, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		if ae, ok := apperror.As(err); ok && ae.Kind == apperror.KindNotFound {
			return nil, apperror.NotAuthorized(fmt.Sprintf("No account with id = %s", accountID))
		}
		return nil, err
	}

	acc, err := s.repo.UpdateAvatar(ctx, accountID, avatarURL)
	if err != nil {
		return nil, err
	}

	if previous.AvatarURL != "" && previous.AvatarURL != avatarURL {
		if err := s.avatars.Remove(previous.AvatarURL); err != nil {
			s.logger.Warn("failed to remove previous avatar", "avatar_url", previous.AvatarURL, "error", err.Error())
		}
	}

	return acc, nil
}
