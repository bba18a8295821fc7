package contact

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/redmonkez12/contacts-api/internal/apperror"
)

// maxPageSize caps the page size a client can ask for.
const maxPageSize = 20

// Filter narrows and pages a contact listing. A zero Limit means the
// listing is unpaged.
type Filter struct {
	Favorite *bool
	Limit    int
	Offset   int
}

// Upsert carries the writable contact fields for creates and full updates.
type Upsert struct {
	Name     string
	Email    string
	Phone    string
	Favorite *bool
}

// Repository is the persistence surface for contacts. Every operation that
// touches a single contact is scoped by owner, so one account can never see
// or modify another account's entries.
type Repository interface {
	List(ctx context.Context, ownerID uuid.UUID, filter Filter) ([]Contact, int, error)
	GetByID(ctx context.Context, ownerID, id uuid.UUID) (*Contact, error)
	Create(ctx context.Context, c *Contact) (*Contact, error)
	Update(ctx context.Context, ownerID, id uuid.UUID, upsert Upsert) (*Contact, error)
	SetFavorite(ctx context.Context, ownerID, id uuid.UUID, favorite bool) (*Contact, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) (*Contact, error)
}

// Service implements owner-scoped contact management.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ParseFilter reads favorite, page and limit from a query string. Values
// that do not parse are ignored rather than rejected, matching how lenient
// listing endpoints usually behave. Without an explicit limit the listing is
// unpaged and page has no meaning, so it is ignored too.
func ParseFilter(query url.Values) Filter {
	var filter Filter

	switch query.Get("favorite") {
	case "true":
		t := true
		filter.Favorite = &t
	case "false":
		f := false
		filter.Favorite = &f
	}

	if limit, err := strconv.Atoi(query.Get("limit")); err == nil && limit > 0 {
		filter.Limit = min(limit, maxPageSize)
		if page, err := strconv.Atoi(query.Get("page")); err == nil && page > 1 {
			filter.Offset = filter.Limit * (page - 1)
		}
	}

	return filter
}

// List returns the owner's contacts under the filter, plus the total count
// before paging.
func (s *Service) List(ctx context.Context, ownerID uuid.UUID, filter Filter) ([]Contact, int, error) {
	return s.repo.List(ctx, ownerID, filter)
}

// Get fetches one of the owner's contacts.
func (s *Service) Get(ctx context.Context, ownerID uuid.UUID, id string) (*Contact, error) {
	contactID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, ownerID, contactID)
}

// Create adds a contact to the owner's book.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, upsert Upsert) (*Contact, error) {
	c := &Contact{
		Name:    upsert.Name,
		Email:   upsert.Email,
		Phone:   upsert.Phone,
		OwnerID: ownerID,
	}
	if upsert.Favorite != nil {
		c.Favorite = *upsert.Favorite
	}
	return s.repo.Create(ctx, c)
}

// Update replaces the writable fields of one of the owner's contacts.
func (s *Service) Update(ctx context.Context, ownerID uuid.UUID, id string, upsert Upsert) (*Contact, error) {
	contactID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, ownerID, contactID, upsert)
}

// SetFavorite flips only the favorite flag, leaving the rest of the contact
// untouched.
func (s *Service) SetFavorite(ctx context.Context, ownerID uuid.UUID, id string, favorite bool) (*Contact, error) {
	contactID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.repo.SetFavorite(ctx, ownerID, contactID, favorite)
}

// Delete removes one of the owner's contacts and returns the removed record.
func (s *Service) Delete(ctx context.Context, ownerID uuid.UUID, id string) (*Contact, error) {
	contactID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.repo.Delete(ctx, ownerID, contactID)
}

// parseID treats a malformed id the same as an id that matches nothing, so
// clients cannot distinguish probing from missing.
func parseID(id string) (uuid.UUID, error) {
	contactID, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, apperror.NotFound(fmt.Sprintf("Contact with id %s not found. Invalid id?", id))
	}
	return contactID, nil
}
