package domain

import (
	"context"
	"time"
)

// --- Catalog Entities ---

// Course is the sellable unit of the catalog. DiscountPercent is the
// catalog-level discount; the effective price is always recomputed from
// Price and DiscountPercent at read time, never cached.
type Course struct {
	ID              string    `json:"id"` // UUID
	Title           string    `json:"title"`
	Slug            string    `json:"slug"`
	Price           float64   `json:"price"`
	DiscountPercent float64   `json:"discountPercent"`
	Status          string    `json:"status"` // published, draft, archived
	IsActive        bool      `json:"isActive"`
	Thumbnail       string    `json:"thumbnail"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Bundle groups multiple courses under one price.
type Bundle struct {
	ID              string    `json:"id"` // UUID
	Title           string    `json:"title"`
	Slug            string    `json:"slug"`
	Price           float64   `json:"price"`
	DiscountPercent float64   `json:"discountPercent"`
	Status          string    `json:"status"`
	IsActive        bool      `json:"isActive"`
	Thumbnail       string    `json:"thumbnail"`
	CourseIDs       []string  `json:"courseIds"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// EffectivePrice returns the live price after the catalog discount.
func (c *Course) EffectivePrice() float64 {
	return c.Price * (1 - c.DiscountPercent/100)
}

func (b *Bundle) EffectivePrice() float64 {
	return b.Price * (1 - b.DiscountPercent/100)
}

// Purchasable returns whether the item may appear in a cart.
func (c *Course) Purchasable() bool {
	return c.IsActive && c.Status == CatalogStatusPublished
}

func (b *Bundle) Purchasable() bool {
	return b.IsActive && b.Status == CatalogStatusPublished
}

// CatalogRepository is the lookup boundary the cart validator and the
// reconciler depend on. GetCourseByID/GetBundleByID return (nil, nil)
// when the record does not exist.
type CatalogRepository interface {
	GetCourseByID(ctx context.Context, id string) (*Course, error)
	GetBundleByID(ctx context.Context, id string) (*Bundle, error)
	GetBundleCourseIDs(ctx context.Context, bundleID string) ([]string, error)
}
