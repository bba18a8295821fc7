package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/contacts-api/internal/account"
	"github.com/redmonkez12/contacts-api/internal/apperror"
	"github.com/redmonkez12/contacts-api/internal/auth"
	"github.com/redmonkez12/contacts-api/internal/config"
	"github.com/redmonkez12/contacts-api/internal/contact"
	"github.com/redmonkez12/contacts-api/internal/email"
	"github.com/redmonkez12/contacts-api/internal/files"
	"github.com/redmonkez12/contacts-api/internal/logging"
)

// memAccountRepo is an in-memory account.Repository that also serves as the
// middleware's current-token store.
type memAccountRepo struct {
	accounts map[uuid.UUID]*account.Account
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{accounts: make(map[uuid.UUID]*account.Account)}
}

func (r *memAccountRepo) Create(ctx context.Context, acc *account.Account) (*account.Account, error) {
	for _, existing := range r.accounts {
		if existing.Email == acc.Email {
			return nil, apperror.Conflict("email")
		}
	}
	stored := *acc
	stored.ID = uuid.New()
	r.accounts[stored.ID] = &stored
	out := stored
	return &out, nil
}

func (r *memAccountRepo) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	for _, acc := range r.accounts {
		if acc.Email == email {
			out := *acc
			return &out, nil
		}
	}
	return nil, apperror.NotFound("no account with email " + email)
}

func (r *memAccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	acc, ok := r.accounts[id]
	if !ok {
		return nil, apperror.NotFound("no account with id " + id.String())
	}
	out := *acc
	return &out, nil
}

func (r *memAccountRepo) SetCurrentToken(ctx context.Context, id uuid.UUID, token *string) error {
	acc, ok := r.accounts[id]
	if !ok {
		return apperror.NotFound("no account with id " + id.String())
	}
	acc.CurrentToken = token
	return nil
}

func (r *memAccountRepo) CurrentToken(ctx context.Context, id uuid.UUID) (string, error) {
	acc, ok := r.accounts[id]
	if !ok {
		return "", apperror.NotFound("no account with id " + id.String())
	}
	if acc.CurrentToken == nil {
		return "", nil
	}
	return *acc.CurrentToken, nil
}

func (r *memAccountRepo) SetVerificationToken(ctx context.Context, id uuid.UUID, token string) error {
	acc, ok := r.accounts[id]
	if !ok || acc.Verified {
		return apperror.NotFound("no unverified account with id " + id.String())
	}
	acc.VerificationToken = &token
	return nil
}

func (r *memAccountRepo) ConsumeVerificationToken(ctx context.Context, token string) (*account.Account, error) {
	for _, acc := range r.accounts {
		if !acc.Verified && acc.VerificationToken != nil && *acc.VerificationToken == token {
			acc.Verified = true
			acc.VerificationToken = nil
			out := *acc
			return &out, nil
		}
	}
	return nil, apperror.NotFound("User not found")
}

func (r *memAccountRepo) UpdateSubscription(ctx context.Context, id uuid.UUID, subscription string) (*account.Account, error) {
	acc, ok := r.accounts[id]
	if !ok {
		return nil, apperror.NotFound("no account with id " + id.String())
	}
	acc.Subscription = subscription
	out := *acc
	return &out, nil
}

func (r *memAccountRepo) UpdateAvatar(ctx context.Context, id uuid.UUID, avatarURL string) (*account.Account, error) {
	acc, ok := r.accounts[id]
	if !ok {
		return nil, apperror.NotFound("no account with id " + id.String())
	}
	acc.AvatarURL = avatarURL
	out := *acc
	return &out, nil
}

// memContactRepo is an in-memory contact.Repository.
type memContactRepo struct {
	contacts map[uuid.UUID]*contact.Contact
}

func newMemContactRepo() *memContactRepo {
	return &memContactRepo{contacts: make(map[uuid.UUID]*contact.Contact)}
}

func (r *memContactRepo) List(ctx context.Context, ownerID uuid.UUID, filter contact.Filter) ([]contact.Contact, int, error) {
	var owned []contact.Contact
	for _, c := range r.contacts {
		if c.OwnerID != ownerID {
			continue
		}
		if filter.Favorite != nil && c.Favorite != *filter.Favorite {
			continue
		}
		owned = append(owned, *c)
	}
	total := len(owned)
	if filter.Offset >= len(owned) {
		return nil, total, nil
	}
	owned = owned[filter.Offset:]
	if filter.Limit > 0 && len(owned) > filter.Limit {
		owned = owned[:filter.Limit]
	}
	return owned, total, nil
}

func (r *memContactRepo) GetByID(ctx context.Context, ownerID, id uuid.UUID) (*contact.Contact, error) {
	c, ok := r.contacts[id]
	if !ok || c.OwnerID != ownerID {
		return nil, apperror.NotFound("Contact with id " + id.String() + " not found")
	}
	out := *c
	return &out, nil
}

func (r *memContactRepo) Create(ctx context.Context, c *contact.Contact) (*contact.Contact, error) {
	stored := *c
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	r.contacts[stored.ID] = &stored
	out := stored
	return &out, nil
}

func (r *memContactRepo) Update(ctx context.Context, ownerID, id uuid.UUID, upsert contact.Upsert) (*contact.Contact, error) {
	c, ok := r.contacts[id]
	if !ok || c.OwnerID != ownerID {
		return nil, apperror.NotFound("Contact with id " + id.String() + " not found")
	}
	c.Name = upsert.Name
	c.Email = upsert.Email
	c.Phone = upsert.Phone
	if upsert.Favorite != nil {
		c.Favorite = *upsert.Favorite
	}
	out := *c
	return &out, nil
}

func (r *memContactRepo) SetFavorite(ctx context.Context, ownerID, id uuid.UUID, favorite bool) (*contact.Contact, error) {
	c, ok := r.contacts[id]
	if !ok || c.OwnerID != ownerID {
		return nil, apperror.NotFound("Contact with id " + id.String() + " not found")
	}
	c.Favorite = favorite
	out := *c
	return &out, nil
}

func (r *memContactRepo) Delete(ctx context.Context, ownerID, id uuid.UUID) (*contact.Contact, error) {
	c, ok := r.contacts[id]
	if !ok || c.OwnerID != ownerID {
		return nil, apperror.NotFound("Contact with id " + id.String() + " not found")
	}
	delete(r.contacts, id)
	return c, nil
}

// openLimiter never throttles.
type openLimiter struct{}

func (openLimiter) CheckIPRateLimitWithPurpose(ctx context.Context, ip, purpose string) (bool, error) {
	return false, nil
}
func (openLimiter) RecordIPRequestWithPurpose(ctx context.Context, ip, purpose string) error {
	return nil
}
func (openLimiter) CheckEmailCooldown(ctx context.Context, email string) (bool, error) {
	return false, nil
}
func (openLimiter) SetEmailCooldown(ctx context.Context, email string) error { return nil }

type testAPI struct {
	router http.Handler
	sender *email.MemorySender
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	root := t.TempDir()
	cfg := &config.Config{
		Files: config.FilesConfig{
			PublicDir:      filepath.Join(root, "public"),
			TmpDir:         filepath.Join(root, "tmp"),
			MaxUploadBytes: 1 << 20,
		},
	}

	logger := logging.NewNop()
	sender := email.NewMemorySender()
	accountRepo := newMemAccountRepo()
	contactRepo := newMemContactRepo()

	tokens := auth.NewTokenService([]byte("test-secret"), time.Hour)
	avatarStore, err := files.NewStore(cfg.Files.PublicDir, cfg.Files.TmpDir)
	require.NoError(t, err)

	accountService := account.NewService(accountRepo, tokens, sender, avatarStore, logger)
	contactService := contact.NewService(contactRepo)

	accountHandler := account.NewHandler(accountService, avatarStore, openLimiter{}, cfg.Files.MaxUploadBytes)
	contactHandler := contact.NewHandler(contactService)
	authMiddleware := auth.NewMiddleware(tokens, accountRepo)

	return &testAPI{
		router: NewRouter(cfg, accountHandler, contactHandler, authMiddleware, logger),
		sender: sender,
	}
}

func (api *testAPI) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func (api *testAPI) signupAndLogin(t *testing.T, emailAddr string) string {
	t.Helper()

	rec := api.do(t, http.MethodPost, "/users/signup", "",
		fmt.Sprintf(`{"email":%q,"password":"password123"}`, emailAddr))
	require.Equal(t, http.StatusCreated, rec.Code)

	msg, ok := api.sender.LastTo(emailAddr)
	require.True(t, ok)
	rec = api.do(t, http.MethodGet, "/users/verify/"+msg.Token, "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodPost, "/users/login", "",
		fmt.Sprintf(`{"email":%q,"password":"password123"}`, emailAddr))
	require.Equal(t, http.StatusOK, rec.Code)

	var login struct {
		Token string `json:"token"`
	}
	decode(t, rec, &login)
	require.NotEmpty(t, login.Token)
	return login.Token
}

func TestAccountLifecycle(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)

	// Signup returns the public user shape, not the token.
	rec := api.do(t, http.MethodPost, "/users/signup", "",
		`{"email":"anna@example.com","password":"password123","subscription":"pro"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var signup struct {
		User struct {
			Email        string `json:"email"`
			Subscription string `json:"subscription"`
		} `json:"user"`
	}
	decode(t, rec, &signup)
	assert.Equal(t, "anna@example.com", signup.User.Email)
	assert.Equal(t, "pro", signup.User.Subscription)

	// Duplicate signup conflicts.
	rec = api.do(t, http.MethodPost, "/users/signup", "",
		`{"email":"anna@example.com","password":"password123"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "This email is in use")

	// Login before verification is refused.
	rec = api.do(t, http.MethodPost, "/users/login", "",
		`{"email":"anna@example.com","password":"password123"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Email is not verified")

	// The verification link from the mail works exactly once.
	msg, ok := api.sender.LastTo("anna@example.com")
	require.True(t, ok)
	rec = api.do(t, http.MethodGet, "/users/verify/"+msg.Token, "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Verification successful")

	rec = api.do(t, http.MethodGet, "/users/verify/"+msg.Token, "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Resending to a verified account is a bad request; an unknown email is
	// accepted without revealing anything.
	rec = api.do(t, http.MethodPost, "/users/verify", "", `{"email":"anna@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Verification has already been passed")

	rec = api.do(t, http.MethodPost, "/users/verify", "", `{"email":"ghost@example.com"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Login succeeds now.
	rec = api.do(t, http.MethodPost, "/users/login", "",
		`{"email":"anna@example.com","password":"password123"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		Token string `json:"token"`
	}
	decode(t, rec, &login)

	// The token opens protected routes.
	rec = api.do(t, http.MethodGet, "/users/current", login.Token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var current struct {
		Email        string `json:"email"`
		Subscription string `json:"subscription"`
	}
	decode(t, rec, &current)
	assert.Equal(t, "anna@example.com", current.Email)

	// Subscription change.
	rec = api.do(t, http.MethodPatch, "/users/", login.Token, `{"subscription":"business"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "business")

	rec = api.do(t, http.MethodPatch, "/users/", login.Token, `{"subscription":"gold"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Logout revokes the token.
	rec = api.do(t, http.MethodGet, "/users/logout", login.Token, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, http.MethodGet, "/users/current", login.Token, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTokenExclusivity(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	firstToken := api.signupAndLogin(t, "anna@example.com")

	// A second login mints a different token and invalidates the first.
	time.Sleep(1100 * time.Millisecond) // distinct iat, hence distinct token
	rec := api.do(t, http.MethodPost, "/users/login", "",
		`{"email":"anna@example.com","password":"password123"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var second struct {
		Token string `json:"token"`
	}
	decode(t, rec, &second)
	require.NotEqual(t, firstToken, second.Token)

	rec = api.do(t, http.MethodGet, "/users/current", firstToken, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Not authorized")

	rec = api.do(t, http.MethodGet, "/users/current", second.Token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestContactsCRUD(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	token := api.signupAndLogin(t, "anna@example.com")

	// Contacts require auth.
	rec := api.do(t, http.MethodGet, "/contacts/", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Empty book.
	rec = api.do(t, http.MethodGet, "/contacts/", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Data  []json.RawMessage `json:"data"`
		Total int               `json:"total"`
	}
	decode(t, rec, &listing)
	assert.Empty(t, listing.Data)
	assert.Equal(t, 0, listing.Total)

	// Validation runs before creation.
	rec = api.do(t, http.MethodPost, "/contacts/", token, `{"name":"x","email":"bob@example.com","phone":"123"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "length must be at least 2 characters long")

	rec = api.do(t, http.MethodPost, "/contacts/", token, `{"name":"Bob","email":"bob@example.com","phone":"555-0100"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Data struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Favorite bool   `json:"favorite"`
		} `json:"data"`
	}
	decode(t, rec, &created)
	assert.Equal(t, "Bob", created.Data.Name)
	assert.False(t, created.Data.Favorite)

	// Full update.
	rec = api.do(t, http.MethodPut, "/contacts/"+created.Data.ID, token,
		`{"name":"Bobby","email":"bobby@example.com","phone":"555-0101"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Bobby")

	// Favorite patch requires the field, then flips only the flag.
	rec = api.do(t, http.MethodPatch, "/contacts/"+created.Data.ID+"/favorite", token, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "\\\"favorite\\\" is required")

	rec = api.do(t, http.MethodPatch, "/contacts/"+created.Data.ID+"/favorite", token, `{"favorite":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var patched struct {
		Data struct {
			Name     string `json:"name"`
			Favorite bool   `json:"favorite"`
		} `json:"data"`
	}
	decode(t, rec, &patched)
	assert.True(t, patched.Data.Favorite)
	assert.Equal(t, "Bobby", patched.Data.Name)

	// Delete echoes the removed contact; a second fetch is 404.
	rec = api.do(t, http.MethodDelete, "/contacts/"+created.Data.ID, token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Bobby")

	rec = api.do(t, http.MethodGet, "/contacts/"+created.Data.ID, token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Malformed ids read as not found, never as errors.
	rec = api.do(t, http.MethodGet, "/contacts/not-a-uuid", token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContactOwnershipIsolation(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	annaToken := api.signupAndLogin(t, "anna@example.com")
	bobToken := api.signupAndLogin(t, "bob@example.com")

	rec := api.do(t, http.MethodPost, "/contacts/", annaToken,
		`{"name":"Carol","email":"carol@example.com","phone":"555-0102"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	decode(t, rec, &created)

	// Bob cannot see, modify or delete Anna's contact.
	rec = api.do(t, http.MethodGet, "/contacts/"+created.Data.ID, bobToken, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodDelete, "/contacts/"+created.Data.ID, bobToken, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodGet, "/contacts/", bobToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Total int `json:"total"`
	}
	decode(t, rec, &listing)
	assert.Equal(t, 0, listing.Total)

	// Anna still has it.
	rec = api.do(t, http.MethodGet, "/contacts/"+created.Data.ID, annaToken, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownRouteAnswersJSON(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	rec := api.do(t, http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"Not found."}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	rec := api.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "api is running")
}
