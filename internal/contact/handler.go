package contact

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/redmonkez12/contacts-api/internal/auth"
	"github.com/redmonkez12/contacts-api/internal/httputil"
	"github.com/redmonkez12/contacts-api/internal/schema"
)

// UpsertRequest is the shape for creating or fully updating a contact. The
// name excludes characters that have no business in a person's name and tend
// to show up in injection probes.
type UpsertRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=30,excludesall=[#@]{}():;=?"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required"`
	Favorite *bool  `json:"favorite" validate:"omitempty"`
}

// FavoriteRequest flips the favorite flag. The pointer distinguishes a
// missing field from an explicit false.
type FavoriteRequest struct {
	Favorite *bool `json:"favorite" validate:"required"`
}

type listResponse struct {
	Data  []Contact `json:"data"`
	Total int       `json:"total"`
}

type dataResponse struct {
	Data *Contact `json:"data"`
}

// Handler contains the HTTP handlers for the /contacts routes. All of them
// run behind auth middleware, so the identity is always present.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// List handles GET /contacts.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	filter := ParseFilter(r.URL.Query())

	contacts, total, err := h.service.List(r.Context(), identity.AccountID, filter)
	if err != nil {
		httputil.RespondError(w, r, err)
		return
	}
	if contacts == nil {
		contacts = []Contact{}
	}

	httputil.RespondJSON(w, listResponse{Data: contacts, Total: total}, http.StatusOK)
}

// Get handles GET /contacts/{contactId}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	c, err := h.service.Get(r.Context(), identity.AccountID, chi.URLParam(r, "contactId"))
	if err != nil {
		httputil.RespondError(w, r, err)
		return
	}

	httputil.RespondJSON(w, dataResponse{Data: c}, http.StatusOK)
}

// Create handles POST /contacts.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	body := schema.Body[UpsertRequest](r.Context())

	c, err := h.service.Create(r.Context(), identity.AccountID, Upsert{
		Name:     body.Name,
		Email:    body.Email,
		Phone:    body.Phone,
		Favorite: body.Favorite,
	})
	if err != nil {
		httputil.RespondError(w, r, err)
		return
	}

	httputil.RespondJSON(w, dataResponse{Data: c}, http.StatusCreated)
}

// Update handles PUT /contacts/{contactId}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	body := schema.Body[UpsertRequest](r.Context())

	c, err := h.service.Update(r.Context(), identity.AccountID, chi.URLParam(r, "contactId"), Upsert{
		Name:     body.Name,
		Email:    body.Email,
		Phone:    body.Phone,
		Favorite: body.Favorite,
	})
	if err != nil {
		httputil.RespondError(w, r, err)
		return
	}

	httputil.RespondJSON(w, dataResponse{Data: c}, http.StatusOK)
}

// SetFavorite handles PATCH /contacts/{contactId}/favorite.
func (h *Handler) SetFavorite(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	body := schema.Body[FavoriteRequest](r.Context())

	c, err := h.service.SetFavorite(r.Context(), identity.AccountID, chi.URLParam(r, "contactId"), *body.Favorite)
	if err != nil {
		httputil.RespondError(w, r, err)
		return
	}

	httputil.RespondJSON(w, dataResponse{Data: c}, http.StatusOK)
}

// Delete handles DELETE /contacts/{contactId}, echoing the removed record.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	c, err := h.service.Delete(r.Context(), identity.AccountID, chi.URLParam(r, "contactId"))
	if err != nil {
		httputil.RespondError(w, r, err)
		return
	}

	httputil.RespondJSON(w, dataResponse{Data: c}, http.StatusOK)
}
