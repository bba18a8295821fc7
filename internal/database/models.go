package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Account is the accounts table row. current_token holds the single bearer
// token considered valid for the account; verification_token is single-use
// and cleared atomically on consumption.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:a"`

	ID                uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Email             string    `bun:"email,notnull,unique"`
	PasswordHash      string    `bun:"password_hash,notnull"`
	Subscription      string    `bun:"subscription,notnull,default:'starter'"`
	AvatarURL         string    `bun:"avatar_url,nullzero"`
	CurrentToken      *string   `bun:"current_token"`
	Verified          bool      `bun:"verified,notnull,default:false"`
	VerificationToken *string   `bun:"verification_token"`
	CreatedAt         time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// Contact is the contacts table row, always scoped by owner_id.
type Contact struct {
	bun.BaseModel `bun:"table:contacts,alias:c"`

	ID        uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Name      string    `bun:"name,notnull"`
	Email     string    `bun:"email,notnull"`
	Phone     string    `bun:"phone,notnull"`
	Favorite  bool      `bun:"favorite,notnull,default:false"`
	OwnerID   uuid.UUID `bun:"owner_id,notnull,type:uuid"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
