package domain

// Item Types
const (
	ItemTypeCourse = "course"
	ItemTypeBundle = "bundle"
)

// User Roles
const (
	RoleAdmin = "admin"
)

// Purchase Statuses
// pending is the only non-terminal state. completed and failed are terminal:
// once a purchase leaves pending, no handler may transition it again.
const (
	PurchaseStatusPending   = "pending"
	PurchaseStatusCompleted = "completed"
	PurchaseStatusFailed    = "failed"
)

// Payment Methods
const (
	PaymentMethodCard   = "card"
	PaymentMethodWallet = "wallet"
	PaymentMethodDirect = "direct"
)

// Promo Discount Types
const (
	DiscountTypePercentage = "percentage"
	DiscountTypeFixed      = "fixed"
)

// Promo Applicability
const (
	ApplicableToAll     = "all"
	ApplicableToBundles = "bundles"
	ApplicableToCourses = "courses"
)

// Catalog Statuses
const (
	CatalogStatusPublished = "published"
	CatalogStatusDraft     = "draft"
	CatalogStatusArchived  = "archived"
)

// List Exports for API
var PurchaseStatuses = []string{
	PurchaseStatusPending,
	PurchaseStatusCompleted,
	PurchaseStatusFailed,
}

var PaymentMethods = []string{
	PaymentMethodCard,
	PaymentMethodWallet,
	PaymentMethodDirect,
}

var DiscountTypes = []string{
	DiscountTypePercentage,
	DiscountTypeFixed,
}
