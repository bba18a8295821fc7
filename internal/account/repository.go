package account

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/contacts-api/internal/apperror"
	"github.com/redmonkez12/contacts-api/internal/database"
)

// BunRepository persists accounts in Postgres. All errors leaving it are
// taxonomy errors.
type BunRepository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *BunRepository {
	return &BunRepository{db: db}
}

func (r *BunRepository) Create(ctx context.Context, acc *Account) (*Account, error) {
	dbAcc := &database.Account{
		Email:             acc.Email,
		PasswordHash:      acc.PasswordHash,
		Subscription:      acc.Subscription,
		AvatarURL:         acc.AvatarURL,
		VerificationToken: acc.VerificationToken,
	}

	_, err := r.db.NewInsert().
		Model(dbAcc).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, apperror.MapDBErr(err, "")
	}

	return mapDBAccount(dbAcc), nil
}

func (r *BunRepository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	dbAcc := new(database.Account)
	err := r.db.NewSelect().
		Model(dbAcc).
		Where("email = ?", email).
		Scan(ctx)
	if err != nil {
		return nil, apperror.MapDBErr(err, fmt.Sprintf("no account with email %s", email))
	}
	return mapDBAccount(dbAcc), nil
}

func (r *BunRepository) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	dbAcc := new(database.Account)
	err := r.db.NewSelect().
		Model(dbAcc).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, apperror.MapDBErr(err, fmt.Sprintf("no account with id %s", id))
	}
	return mapDBAccount(dbAcc), nil
}

// SetCurrentToken overwrites the account's current token. A nil token clears
// it. Last write wins, which is the intended semantics for a token that is
// exclusive rather than additive.
func (r *BunRepository) SetCurrentToken(ctx context.Context, id uuid.UUID, token *string) error {
	result, err := r.db.NewUpdate().
		Model((*database.Account)(nil)).
		Set("current_token = ?", token).
		Set("updated_at = now()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return apperror.MapDBErr(err, "")
	}
	return requireRow(result, fmt.Sprintf("no account with id %s", id))
}

// CurrentToken implements auth.CurrentTokenStore. An account with no active
// token yields the empty string.
func (r *BunRepository) CurrentToken(ctx context.Context, id uuid.UUID) (string, error) {
	var token sql.NullString
	err := r.db.NewSelect().
		Model((*database.Account)(nil)).
		Column("current_token").
		Where("id = ?", id).
		Scan(ctx, &token)
	if err != nil {
		return "", apperror.MapDBErr(err, fmt.Sprintf("no account with id %s", id))
	}
	return token.String, nil
}

// SetVerificationToken rotates the pending verification token of an
// unverified account.
func (r *BunRepository) SetVerificationToken(ctx context.Context, id uuid.UUID, token string) error {
	result, err := r.db.NewUpdate().
		Model((*database.Account)(nil)).
		Set("verification_token = ?", token).
		Set("updated_at = now()").
		Where("id = ?", id).
		Where("verified = ?", false).
		Exec(ctx)
	if err != nil {
		return apperror.MapDBErr(err, "")
	}
	return requireRow(result, fmt.Sprintf("no unverified account with id %s", id))
}

// ConsumeVerificationToken atomically flips the matching account to verified
// and clears the pending token in a single statement, so that under two
// concurrent consumptions exactly one succeeds.
func (r *BunRepository) ConsumeVerificationToken(ctx context.Context, token string) (*Account, error) {
	dbAcc := new(database.Account)
	result, err := r.db.NewUpdate().
		Model(dbAcc).
		Set("verified = ?", true).
		Set("verification_token = NULL").
		Set("updated_at = now()").
		Where("verification_token = ?", token).
		Where("verified = ?", false).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, apperror.MapDBErr(err, "")
	}
	if err := requireRow(result, "User not found"); err != nil {
		return nil, err
	}
	return mapDBAccount(dbAcc), nil
}

func (r *BunRepository) UpdateSubscription(ctx context.Context, id uuid.UUID, subscription string) (*Account, error) {
	return r.updateReturning(ctx, id, "subscription", subscription)
}

func (r *BunRepository) UpdateAvatar(ctx context.Context, id uuid.UUID, avatarURL string) (*Account, error) {
	return r.updateReturning(ctx, id, "avatar_url", avatarURL)
}

func (r *BunRepository) updateReturning(ctx context.Context, id uuid.UUID, column, value string) (*Account, error) {
	dbAcc := new(database.Account)
	result, err := r.db.NewUpdate().
		Model(dbAcc).
		Set("? = ?", bun.Ident(column), value).
		Set("updated_at = now()").
		Where("id = ?", id).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, apperror.MapDBErr(err, "")
	}
	if err := requireRow(result, fmt.Sprintf("no account with id %s", id)); err != nil {
		return nil, err
	}
	return mapDBAccount(dbAcc), nil
}

// requireRow converts a zero-row update into a not-found taxonomy error.
func requireRow(result sql.Result, detail string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return apperror.Server(err.Error())
	}
	if rows == 0 {
		return apperror.NotFound(detail)
	}
	return nil
}

func mapDBAccount(dbAcc *database.Account) *Account {
	return &Account{
		ID:                dbAcc.ID,
		Email:             dbAcc.Email,
		PasswordHash:      dbAcc.PasswordHash,
		Subscription:      dbAcc.Subscription,
		AvatarURL:         dbAcc.AvatarURL,
		CurrentToken:      dbAcc.CurrentToken,
		Verified:          dbAcc.Verified,
		VerificationToken: dbAcc.VerificationToken,
		CreatedAt:         dbAcc.CreatedAt,
		UpdatedAt:         dbAcc.UpdatedAt,
	}
}
