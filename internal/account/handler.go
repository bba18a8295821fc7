package account

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/redmonkez12/contacts-api/internal/apperror"
	"github.com/redmonkez12/contacts-api/internal/auth"
	"github.com/redmonkez12/contacts-api/internal/files"
	"github.com/redmonkez12/contacts-api/internal/httputil"
	"github.com/redmonkez12/contacts-api/internal/logging"
	"github.com/redmonkez12/contacts-api/internal/schema"
)

// SignupRequest is the registration shape.
type SignupRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8,max=55"`
	Subscription string `json:"subscription" validate:"omitempty,oneof=starter pro business"`
}

// LoginRequest is the login shape. The password bounds are kept here as a
// failproof so oversized fake passwords never reach bcrypt.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=55"`
}

// VerifyRequest asks for the verification mail to be re-sent.
type VerifyRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// SubscriptionRequest switches the subscription tier.
type SubscriptionRequest struct {
	Subscription string `json:"subscription" validate:"required,oneof=starter pro business"`
}

type userResponse struct {
	User Public `json:"user"`
}

type loginResponse struct {
	Token string `json:"token"`
	User  Public `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type avatarResponse struct {
	AvatarURL string `json:"avatarURL"`
}

// RateLimiter throttles abuse-prone endpoints by IP and email.
type RateLimiter interface {
	CheckIPRateLimitWithPurpose(ctx context.Context, ip, purpose string) (bool, error)
	RecordIPRequestWithPurpose(ctx context.Context, ip, purpose string) error
	CheckEmailCooldown(ctx context.Context, email string) (bool, error)
	SetEmailCooldown(ctx context.Context, email string) error
}

// Handler contains the HTTP handlers for the /users routes.
type Handler struct {
	service        *Service
	avatars        *files.Store
	rateLimiter    RateLimiter
	maxUploadBytes int64
}

func NewHandler(service *Service, avatars *files.Store, rateLimiter RateLimiter, maxUploadBytes int64) *Handler {
	return &Handler{
		service:        service,
		avatars:        avatars,
		rateLimiter:    rateLimiter,
		maxUploadBytes: maxUploadBytes,
	}
}

// Signup handles POST /users/signup.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	if h.throttleIP(w, r, "signup") {
		return
	}

	body := schema.Body[SignupRequest](r.Context())
	acc, err := h.service.Register(r.Context(), body.Email, body.Password, body.Subscription)
	if err != nil {
		httputil.RespondError(w, r, err)
		return
	}

	logging.GetLoggerFromContext(r.Context()).Info("account registered", "account_id", acc.ID)
	httputil.RespondJSON(w, userResponse{User: acc.Public()}, http.StatusCreated)
}

// Login handles POST /users/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if h.throttleIP(w, r, "login") {
		return
	}

	body := schema.Body[LoginRequest](r.Context())
	acc, token, err := h.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		httputil.RespondError(w, r, err)
		return
	}

	logging.GetLoggerFromContext(r.Context()).Info("account logged in", "account_id", acc.ID)
	httputil.RespondJSON(w, loginResponse{Token: token, User: acc.Public()}, http.StatusOK)
}

// ResendVerification handles POST /users/verify.
func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	body := schema.Body[VerifyRequest](r.Context())

	if h.throttleIP(w, r, "verify") {
		return
	}
	if h.throttleEmail(w, r, body.Email) {
		return
	}

	if err := h.service.SendVerification(r.Context(), body.Email); err != nil {
		httputil.RespondError(w, r, err)
		return
	}

	httputil.RespondJSON(w, messageResponse{Message: "Verification email sent"}, http.StatusOK)
}

// VerifyEmail handles GET /users/verify/{token}.
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if err := h.service.VerifyEmail(r.Context(), token); err != nil {
		httputil.RespondError(w, r, err)
		return
	}

	httputil.RespondJSON(w, messageResponse{Message: "Verification successful"}, http.StatusOK)
}

// Logout handles GET /users/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	if err := h.service.Logout(r.Context(), identity.AccountID); err != nil {
		httputil.RespondError(w, r, err)
		return
	}

	httputil.RespondJSON(w, nil, http.StatusNoContent)
}

// Current handles GET /users/current.
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	acc, err := h.service.Current(r.Context(), identity.AccountID)
	if err != nil {
		httputil.RespondError(w, r, err)
		return
	}

	httputil.RespondJSON(w, acc.Public(), http.StatusOK)
}

// UpdateSubscription handles PATCH /users/.
func (h *Handler) UpdateSubscription(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	body := schema.Body[SubscriptionRequest](r.Context())

	acc, err := h.service.UpdateSubscription(r.Context(), identity.AccountID, body.Subscription)
	if err != nil {
		httputil.RespondError(w, r, err)
		return
	}

	httputil.RespondJSON(w, userResponse{User: acc.Public()}, http.StatusOK)
}

// UpdateAvatar handles PATCH /users/avatars: a multipart upload under the
// "avatar" field, at most maxUploadBytes, jpeg or png.
func (h *Handler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		httputil.RespondError(w, r, apperror.ValidationMsg("Invalid file in request"))
		return
	}

	upload, header, err := r.FormFile("avatar")
	if err != nil {
		httputil.RespondError(w, r, apperror.ValidationMsg("No file found in request body"))
		return
	}
	defer upload.Close()

	if err := files.CheckAvatarUpload(header.Filename, header.Header.Get("Content-Type")); err != nil {
		httputil.RespondError(w, r, err)
		return
	}

	avatarURL, err := h.avatars.SaveAvatar(upload, header.Filename)
	if err != nil {
		httputil.RespondError(w, r, err)
		return
	}

	acc, err := h.service.UpdateAvatar(r.Context(), identity.AccountID, avatarURL)
	if err != nil {
		httputil.RespondError(w, r, err)
		return
	}

	httputil.RespondJSON(w, avatarResponse{AvatarURL: acc.AvatarURL}, http.StatusOK)
}

// throttleIP applies the per-IP limit for the given purpose. It reports
// true when the request was answered (limit exceeded). Limiter failures are
// logged and ignored so Redis hiccups never block legitimate traffic.
func (h *Handler) throttleIP(w http.ResponseWriter, r *http.Request, purpose string) bool {
	logger := logging.GetLoggerFromContext(r.Context())
	ip := getClientIP(r)

	exceeded, err := h.rateLimiter.CheckIPRateLimitWithPurpose(r.Context(), ip, purpose)
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
	} else if exceeded {
		logger.Warn("IP rate limit exceeded", "ip", ip, "purpose", purpose)
		httputil.RespondJSON(w, messageResponse{Message: "Too many requests, please try again later"}, http.StatusTooManyRequests)
		return true
	}

	if err := h.rateLimiter.RecordIPRequestWithPurpose(r.Context(), ip, purpose); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}
	return false
}

// throttleEmail applies the per-email cooldown for verification resends.
func (h *Handler) throttleEmail(w http.ResponseWriter, r *http.Request, email string) bool {
	logger := logging.GetLoggerFromContext(r.Context())

	onCooldown, err := h.rateLimiter.CheckEmailCooldown(r.Context(), email)
	if err != nil {
		logger.Error("failed to check email cooldown", "error", err.Error())
	} else if onCooldown {
		logger.Warn("email on cooldown", "email", email)
		httputil.RespondJSON(w, messageResponse{Message: "Please wait before requesting another email"}, http.StatusTooManyRequests)
		return true
	}

	if err := h.rateLimiter.SetEmailCooldown(r.Context(), email); err != nil {
		logger.Error("failed to set email cooldown", "error", err.Error())
	}
	return false
}

// getClientIP extracts the client IP, preferring proxy headers.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
