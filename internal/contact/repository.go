package contact

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/contacts-api/internal/apperror"
	"github.com/redmonkez12/contacts-api/internal/database"
)

// BunRepository persists contacts in Postgres. All errors leaving it are
// taxonomy errors.
type BunRepository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *BunRepository {
	return &BunRepository{db: db}
}

func (r *BunRepository) List(ctx context.Context, ownerID uuid.UUID, filter Filter) ([]Contact, int, error) {
	var dbContacts []database.Contact
	q := r.db.NewSelect().
		Model(&dbContacts).
		Where("owner_id = ?", ownerID)
	if filter.Favorite != nil {
		q = q.Where("favorite = ?", *filter.Favorite)
	}
	q = q.Order("created_at ASC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, apperror.MapDBErr(err, "")
	}

	contacts := make([]Contact, len(dbContacts))
	for i := range dbContacts {
		contacts[i] = *mapDBContact(&dbContacts[i])
	}
	return contacts, total, nil
}

func (r *BunRepository) GetByID(ctx context.Context, ownerID, id uuid.UUID) (*Contact, error) {
	dbContact := new(database.Contact)
	err := r.db.NewSelect().
		Model(dbContact).
		Where("id = ?", id).
		Where("owner_id = ?", ownerID).
		Scan(ctx)
	if err != nil {
		return nil, apperror.MapDBErr(err, notFoundDetail(id))
	}
	return mapDBContact(dbContact), nil
}

func (r *BunRepository) Create(ctx context.Context, c *Contact) (*Contact, error) {
	dbContact := &database.Contact{
		Name:     c.Name,
		Email:    c.Email,
		Phone:    c.Phone,
		Favorite: c.Favorite,
		OwnerID:  c.OwnerID,
	}

	_, err := r.db.NewInsert().
		Model(dbContact).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, apperror.MapDBErr(err, "")
	}
	return mapDBContact(dbContact), nil
}

func (r *BunRepository) Update(ctx context.Context, ownerID, id uuid.UUID, upsert Upsert) (*Contact, error) {
	dbContact := new(database.Contact)
	q := r.db.NewUpdate().
		Model(dbContact).
		Set("name = ?", upsert.Name).
		Set("email = ?", upsert.Email).
		Set("phone = ?", upsert.Phone).
		Set("updated_at = now()").
		Where("id = ?", id).
		Where("owner_id = ?", ownerID).
		Returning("*")
	if upsert.Favorite != nil {
		q = q.Set("favorite = ?", *upsert.Favorite)
	}

	result, err := q.Exec(ctx)
	if err != nil {
		return nil, apperror.MapDBErr(err, "")
	}
	if err := requireRow(result, notFoundDetail(id)); err != nil {
		return nil, err
	}
	return mapDBContact(dbContact), nil
}

func (r *BunRepository) SetFavorite(ctx context.Context, ownerID, id uuid.UUID, favorite bool) (*Contact, error) {
	dbContact := new(database.Contact)
	result, err := r.db.NewUpdate().
		Model(dbContact).
		Set("favorite = ?", favorite).
		Set("updated_at = now()").
		Where("id = ?", id).
		Where("owner_id = ?", ownerID).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, apperror.MapDBErr(err, "")
	}
	if err := requireRow(result, notFoundDetail(id)); err != nil {
		return nil, err
	}
	return mapDBContact(dbContact), nil
}

// Delete removes the contact and returns the removed record, so callers can
// echo what was deleted.
func (r *BunRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) (*Contact, error) {
	dbContact := new(database.Contact)
	result, err := r.db.NewDelete().
		Model(dbContact).
		Where("id = ?", id).
		Where("owner_id = ?", ownerID).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, apperror.MapDBErr(err, "")
	}
	if err := requireRow(result, notFoundDetail(id)); err != nil {
		return nil, err
	}
	return mapDBContact(dbContact), nil
}

// requireRow converts a zero-row result into a not-found taxonomy error.
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

func notFoundDetail(id uuid.UUID) string {
	return fmt.Sprintf("Contact with id %s not found", id)
}

func mapDBContact(dbContact *database.Contact) *Contact {
	return &Contact{
		ID:        dbContact.ID,
		Name:      dbContact.Name,
		Email:     dbContact.Email,
		Phone:     dbContact.Phone,
		Favorite:  dbContact.Favorite,
		OwnerID:   dbContact.OwnerID,
		CreatedAt: dbContact.CreatedAt,
		UpdatedAt: dbContact.UpdatedAt,
	}
}
