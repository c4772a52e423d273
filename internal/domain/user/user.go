// Package user holds the User aggregate: an external account with an
// optionally saved provider payment credential.
package user

import (
	"fmt"
	"strings"
	"time"
)

type User struct {
	id                   uint
	externalID           string
	savedPaymentMethodID *string
	createdAt            time.Time
	updatedAt            time.Time
}

// NewUser creates a user for the given external account id.
func NewUser(externalID string, now time.Time) (*User, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, fmt.Errorf("external id is required")
	}
	return &User{
		externalID: externalID,
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// ReconstructUser rebuilds a user from persistence.
func ReconstructUser(id uint, externalID string, savedPaymentMethodID *string, createdAt, updatedAt time.Time) *User {
	return &User{
		id:                   id,
		externalID:           externalID,
		savedPaymentMethodID: savedPaymentMethodID,
		createdAt:            createdAt,
		updatedAt:            updatedAt,
	}
}

func (u *User) ID() uint                      { return u.id }
func (u *User) ExternalID() string            { return u.externalID }
func (u *User) SavedPaymentMethodID() *string { return u.savedPaymentMethodID }
func (u *User) CreatedAt() time.Time          { return u.createdAt }
func (u *User) UpdatedAt() time.Time          { return u.updatedAt }

func (u *User) SetID(id uint) {
	u.id = id
}

// HasSavedPaymentMethod reports whether auto-charges are possible.
func (u *User) HasSavedPaymentMethod() bool {
	return u.savedPaymentMethodID != nil && *u.savedPaymentMethodID != ""
}

// SavePaymentMethod stores the provider credential id. Returns false when unchanged.
func (u *User) SavePaymentMethod(methodID string, now time.Time) bool {
	if methodID == "" {
		return false
	}
	if u.savedPaymentMethodID != nil && *u.savedPaymentMethodID == methodID {
		return false
	}
	u.savedPaymentMethodID = &methodID
	u.updatedAt = now
	return true
}

// ClearPaymentMethod drops the saved credential.
func (u *User) ClearPaymentMethod(now time.Time) {
	if u.savedPaymentMethodID == nil {
		return
	}
	u.savedPaymentMethodID = nil
	u.updatedAt = now
}
