package domain

import (
	"context"
	"time"
)

type ContextKey string

const UserContextKey ContextKey = "user"

type User struct {
	ID        string    `json:"id"` // UUID
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Enrollment is one (user, course) access grant, created by the
// reconciler and never duplicated.
type Enrollment struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	CourseID   string    `json:"courseId"`
	PurchaseID *string   `json:"purchaseId"`
	EnrolledAt time.Time `json:"enrolledAt"`
}

// UserRepository carries the ownership/entitlement predicates the cart
// validator and the reconciler depend on. The grant methods are
// existence-checked inserts: granting twice is a no-op, not an error.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*User, error)

	// Entitlement predicates
	HasAccessToCourse(ctx context.Context, userID, courseID string) (bool, error)
	HasPurchasedBundle(ctx context.Context, userID, bundleID string) (bool, error)
	IsEnrolled(ctx context.Context, userID, courseID string) (bool, error)

	// Idempotent grants
	GrantCourse(ctx context.Context, userID, courseID, purchaseID string) error
	GrantBundle(ctx context.Context, userID, bundleID, purchaseID string) error
	Enroll(ctx context.Context, userID, courseID string, purchaseID *string) error
}
