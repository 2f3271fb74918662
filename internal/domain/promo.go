package domain

import (
	"context"
	"time"
)

// PromoCode is the discount rule set for one code. Code is stored
// uppercase and unique.
type PromoCode struct {
	ID                string     `json:"id"` // UUID
	Code              string     `json:"code"`
	DiscountType      string     `json:"discountType"` // percentage, fixed
	DiscountValue     float64    `json:"discountValue"`
	MaxDiscountAmount *float64   `json:"maxDiscountAmount"`
	MinOrderAmount    float64    `json:"minOrderAmount"`
	MaxUses           *int       `json:"maxUses"`
	CurrentUses       int        `json:"currentUses"`
	AllowMultipleUses bool       `json:"allowMultipleUses"`
	SingleUseOnly     bool       `json:"singleUseOnly"` // consumed forever by the first user
	ConsumedBy        *string    `json:"consumedBy"`
	ValidFrom         *time.Time `json:"validFrom"`
	ValidUntil        *time.Time `json:"validUntil"`
	IsActive          bool       `json:"isActive"`
	ApplicableTo      string     `json:"applicableTo"` // all, bundles, courses
	SpecificItems     []string   `json:"specificItems"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// IsValid reports whether the code is currently redeemable at all,
// ignoring per-user and cart-shape rules.
func (p *PromoCode) IsValid(now time.Time) bool {
	if !p.IsActive {
		return false
	}
	if p.SingleUseOnly && p.ConsumedBy != nil {
		return false
	}
	if p.ValidFrom != nil && now.Before(*p.ValidFrom) {
		return false
	}
	if p.ValidUntil != nil && now.After(*p.ValidUntil) {
		return false
	}
	if p.MaxUses != nil && p.CurrentUses >= *p.MaxUses {
		return false
	}
	return true
}

// PromoUsage is one redemption record, appended at reconciliation time.
type PromoUsage struct {
	ID             string    `json:"id"`
	PromoCodeID    string    `json:"promoCodeId"`
	UserID         string    `json:"userId"`
	PurchaseID     string    `json:"purchaseId"`
	DiscountAmount float64   `json:"discountAmount"`
	OriginalAmount float64   `json:"originalAmount"`
	FinalAmount    float64   `json:"finalAmount"`
	UsedAt         time.Time `json:"usedAt"`
}

type PromoRepository interface {
	Create(ctx context.Context, promo *PromoCode) error
	GetByCode(ctx context.Context, code string) (*PromoCode, error)
	GetByID(ctx context.Context, id string) (*PromoCode, error)
	List(ctx context.Context, limit, offset int) ([]PromoCode, int64, error)
	Update(ctx context.Context, promo *PromoCode) error
	Delete(ctx context.Context, id string) error

	HasUserUsed(ctx context.Context, promoID, userID string) (bool, error)
	// RecordUsage appends a usage row, increments current_uses and, for
	// single-use-only codes, stamps the consuming user in one call. A
	// unique (promo_code_id, purchase_id) constraint keeps a retried
	// reconciliation from double-counting.
	RecordUsage(ctx context.Context, usage *PromoUsage, singleUseOnly bool) error
}
