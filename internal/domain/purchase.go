package domain

import (
	"context"
	"time"
)

// PurchaseItem is a line-item snapshot taken at checkout. Price is the
// price at purchase time, never re-resolved from the catalog.
type PurchaseItem struct {
	ID       string  `json:"id"`
	ItemType string  `json:"itemType"` // course, bundle
	ItemID   string  `json:"itemId"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// Purchase is the durable record of one checkout attempt.
//
// PaymentIntentID is the merchant order id: a locally generated UUIDv4,
// unique per attempt, and the sole correlation key between this record and
// the gateway's transaction. Status moves pending -> completed|failed
// exactly once; the transition is performed by a conditional update so that
// the webhook handler, the redirect landing and the reconciliation job can
// race without a lost update.
type Purchase struct {
	ID              string         `json:"id"` // UUID
	UserID          string         `json:"userId"`
	Items           []PurchaseItem `json:"items"`
	Subtotal        float64        `json:"subtotal"`
	Tax             float64        `json:"tax"`
	Total           float64        `json:"total"`
	Currency        string         `json:"currency"`
	PaymentMethod   string         `json:"paymentMethod"` // card, wallet, direct
	BillingAddress  JSONB          `json:"billingAddress"`
	Status          string         `json:"status"`        // pending, completed, failed
	PaymentStatus   string         `json:"paymentStatus"` // mirrors Status
	PaymentIntentID string         `json:"paymentIntentId"`
	GatewayOrderID  *string        `json:"gatewayOrderId"`
	GatewayTxnID    *string        `json:"gatewayTxnId"`
	AppliedPromo    *string        `json:"appliedPromoCode"`
	DiscountAmount  float64        `json:"discountAmount"`
	OriginalAmount  float64        `json:"originalAmount"`
	OrderNumber     string         `json:"orderNumber"`
	InvoiceNotified bool           `json:"invoiceNotified"`
	GatewayResponse RawJSON        `json:"gatewayResponse,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// Terminal reports whether the purchase may no longer transition.
func (p *Purchase) Terminal() bool {
	return p.Status != PurchaseStatusPending
}

type PurchaseFilter struct {
	Page          int
	Limit         int
	Status        string
	PaymentMethod string
}

type PurchaseRepository interface {
	Create(ctx context.Context, purchase *Purchase) error
	GetByID(ctx context.Context, id string) (*Purchase, error)
	GetByIntentID(ctx context.Context, intentID string) (*Purchase, error)
	GetByUserID(ctx context.Context, userID string) ([]Purchase, error)
	GetAll(ctx context.Context, filter PurchaseFilter) ([]Purchase, int64, error)

	// SetGatewayRefs records the provider-side order id after session
	// creation, while the purchase is still pending.
	SetGatewayRefs(ctx context.Context, id string, gatewayOrderID string) error

	// ResolveIfPending is the compare-and-swap transition: it sets the
	// terminal status, transaction id and raw gateway payload in a single
	// UPDATE guarded by status='pending', and reports whether this caller
	// won. A false return with no error means another writer already
	// resolved the purchase.
	ResolveIfPending(ctx context.Context, id, status string, txnID *string, rawPayload []byte) (bool, error)

	// MarkInvoiceNotified claims the notification flag with a conditional
	// update guarded by invoice_notified=FALSE. Only the claimer gets true
	// back and may dispatch the invoice; concurrent resolvers holding a
	// stale snapshot get false and skip the send.
	MarkInvoiceNotified(ctx context.Context, id string) (bool, error)

	// ListPendingInWindow returns pending purchases whose age is within
	// [minAge, maxAge], the reconciliation job's candidate set.
	ListPendingInWindow(ctx context.Context, minAge, maxAge time.Duration, limit int) ([]Purchase, error)
}
