// Package account implements the account lifecycle: registration, email
// verification, login/logout, subscription and avatar updates.
package account

import (
	"time"

	"github.com/google/uuid"
)

// Subscription tiers an account can hold.
const (
	SubscriptionStarter  = "starter"
	SubscriptionPro      = "pro"
	SubscriptionBusiness = "business"
)

type Account struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never exposed
	Subscription string    `json:"subscription"`
	AvatarURL    string    `json:"avatarURL"`
	// CurrentToken is the single bearer token considered valid for this
	// account. Login overwrites it, logout clears it.
	CurrentToken *string `json:"-"`
	Verified     bool    `json:"-"`
	// VerificationToken is single-use; nil once consumed.
	VerificationToken *string   `json:"-"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Public is the account shape returned to clients.
type Public struct {
	Email        string `json:"email"`
	Subscription string `json:"subscription"`
}

func (a *Account) Public() Public {
	return Public{Email: a.Email, Subscription: a.Subscription}
}
