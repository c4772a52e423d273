package subscription

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Plan is a priced billing period. Immutable while referenced by an active subscription.
type Plan struct {
	id           uint
	name         string
	price        decimal.Decimal
	durationDays int
	createdAt    time.Time
}

func NewPlan(name string, price decimal.Decimal, durationDays int, now time.Time) (*Plan, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("plan name is required")
	}
	if price.IsNegative() {
		return nil, fmt.Errorf("plan price must not be negative")
	}
	if durationDays <= 0 {
		return nil, ErrInvalidDuration
	}
	return &Plan{
		name:         name,
		price:        price,
		durationDays: durationDays,
		createdAt:    now,
	}, nil
}

func ReconstructPlan(id uint, name string, price decimal.Decimal, durationDays int, createdAt time.Time) *Plan {
	return &Plan{
		id:           id,
		name:         name,
		price:        price,
		durationDays: durationDays,
		createdAt:    createdAt,
	}
}

func (p *Plan) ID() uint               { return p.id }
func (p *Plan) Name() string           { return p.name }
func (p *Plan) Price() decimal.Decimal { return p.price }
func (p *Plan) DurationDays() int      { return p.durationDays }
func (p *Plan) CreatedAt() time.Time   { return p.createdAt }

func (p *Plan) SetID(id uint) {
	p.id = id
}
