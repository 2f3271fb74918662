package domain

import (
	"context"
	"time"
)

// --- Cart Entities ---

// CartLine is a priced snapshot of one cart entry. Stored lines are a
// cache only; the catalog is the source of truth. Title and prices are
// recomputed from the live catalog on every read.
type CartLine struct {
	ItemID          string    `json:"itemId"`
	ItemType        string    `json:"itemType"` // course, bundle
	Title           string    `json:"title"`
	OriginalPrice   float64   `json:"originalPrice"`
	DiscountPercent float64   `json:"discountPercent"`
	FinalPrice      float64   `json:"finalPrice"`
	Thumbnail       string    `json:"thumbnail"`
	AddedAt         time.Time `json:"addedAt"`
}

// Cart is the validated, priced view of a user's stored cart references.
// Tax is carried for wire compatibility but is always zero.
type Cart struct {
	UserID   string     `json:"userId"`
	Items    []CartLine `json:"items"`
	Subtotal float64    `json:"subtotal"`
	Tax      float64    `json:"tax"`
	Total    float64    `json:"total"`
}

func (c *Cart) Count() int {
	return len(c.Items)
}

// CartRef is the raw stored reference before validation.
type CartRef struct {
	ItemID   string    `json:"itemId"`
	ItemType string    `json:"itemType"`
	AddedAt  time.Time `json:"addedAt"`
}

// CartRepository owns the server-side mapping from user to cart lines.
// Replace overwrites the whole stored cart; the validator calls it after
// every read so pruned lines are removed, not merely hidden.
type CartRepository interface {
	GetRefs(ctx context.Context, userID string) ([]CartRef, error)
	AddRef(ctx context.Context, userID string, ref CartRef) error
	RemoveRef(ctx context.Context, userID, itemID string) error
	Replace(ctx context.Context, userID string, refs []CartRef) error
	Clear(ctx context.Context, userID string) error
}
