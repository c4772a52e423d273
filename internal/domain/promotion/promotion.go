// Package promotion holds bonus-day promotion codes and their per-user usage.
package promotion

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Type string

const TypeBonusDays Type = "bonus_days"

var (
	ErrInactive        = errors.New("promotion is not active")
	ErrNotYetValid     = errors.New("promotion is not yet valid")
	ErrExpired         = errors.New("promotion has expired")
	ErrUnsupportedType = errors.New("promotion type is not supported")
	ErrLimitReached    = errors.New("promotion usage limit reached")
	ErrNotAssigned     = errors.New("promotion is assigned to another user")
	ErrAlreadyUsed     = errors.New("promotion already used")
)

type Promotion struct {
	id             uint
	code           string
	promoType      Type
	value          int
	validFrom      time.Time
	validUntil     *time.Time
	maxUses        *int
	currentUses    int
	isActive       bool
	assignedUserID *uint
	createdAt      time.Time
}

// NormalizeCode uppercases and trims a user-supplied code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func NewBonusDaysPromotion(code string, days int, validFrom time.Time, validUntil *time.Time, maxUses *int, assignedUserID *uint, now time.Time) (*Promotion, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, fmt.Errorf("promotion code is required")
	}
	if days < 0 {
		return nil, fmt.Errorf("bonus days must not be negative")
	}
	if maxUses != nil && *maxUses < 0 {
		return nil, fmt.Errorf("max uses must not be negative")
	}
	return &Promotion{
		code:           code,
		promoType:      TypeBonusDays,
		value:          days,
		validFrom:      validFrom,
		validUntil:     validUntil,
		maxUses:        maxUses,
		isActive:       true,
		assignedUserID: assignedUserID,
		createdAt:      now,
	}, nil
}

func ReconstructPromotion(
	id uint,
	code string,
	promoType Type,
	value int,
	validFrom time.Time,
	validUntil *time.Time,
	maxUses *int,
	currentUses int,
	isActive bool,
	assignedUserID *uint,
	createdAt time.Time,
) *Promotion {
	return &Promotion{
		id:             id,
		code:           code,
		promoType:      promoType,
		value:          value,
		validFrom:      validFrom,
		validUntil:     validUntil,
		maxUses:        maxUses,
		currentUses:    currentUses,
		isActive:       isActive,
		assignedUserID: assignedUserID,
		createdAt:      createdAt,
	}
}

func (p *Promotion) ID() uint               { return p.id }
func (p *Promotion) Code() string           { return p.code }
func (p *Promotion) Type() Type             { return p.promoType }
func (p *Promotion) Value() int             { return p.value }
func (p *Promotion) ValidFrom() time.Time   { return p.validFrom }
func (p *Promotion) ValidUntil() *time.Time { return p.validUntil }
func (p *Promotion) MaxUses() *int          { return p.maxUses }
func (p *Promotion) CurrentUses() int       { return p.currentUses }
func (p *Promotion) IsActive() bool         { return p.isActive }
func (p *Promotion) AssignedUserID() *uint  { return p.assignedUserID }
func (p *Promotion) CreatedAt() time.Time   { return p.createdAt }

func (p *Promotion) SetID(id uint) {
	p.id = id
}

func (p *Promotion) Deactivate() {
	p.isActive = false
}

// CheckRedeemable validates everything except the per-user usage record.
func (p *Promotion) CheckRedeemable(userID uint, now time.Time) error {
	if !p.isActive {
		return ErrInactive
	}
	if now.Before(p.validFrom) {
		return ErrNotYetValid
	}
	if p.validUntil != nil && now.After(*p.validUntil) {
		return ErrExpired
	}
	if p.promoType != TypeBonusDays {
		return ErrUnsupportedType
	}
	if p.maxUses != nil && p.currentUses >= *p.maxUses {
		return ErrLimitReached
	}
	if p.assignedUserID != nil && *p.assignedUserID != userID {
		return ErrNotAssigned
	}
	return nil
}
