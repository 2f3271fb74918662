package postgres

import (
	"context"
	"errors"

	"edulearn-backend/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type userRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) domain.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `
		SELECT id, email, role, first_name, last_name, phone, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	var u domain.User
	err := conn(ctx, r.db).QueryRow(ctx, query, id).Scan(
		&u.ID, &u.Email, &u.Role, &u.FirstName, &u.LastName, &u.Phone, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// --- Entitlement predicates ---

// HasAccessToCourse is true when the user owns the course directly or
// through any purchased bundle.
func (r *userRepository) HasAccessToCourse(ctx context.Context, userID, courseID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM owned_courses WHERE user_id = $1 AND course_id = $2
		) OR EXISTS (
			SELECT 1
			FROM owned_bundles ob
			JOIN bundle_courses bc ON bc.bundle_id = ob.bundle_id
			WHERE ob.user_id = $1 AND bc.course_id = $2
		)
	`

	var has bool
	err := conn(ctx, r.db).QueryRow(ctx, query, userID, courseID).Scan(&has)
	return has, err
}

func (r *userRepository) HasPurchasedBundle(ctx context.Context, userID, bundleID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM owned_bundles WHERE user_id = $1 AND bundle_id = $2)`

	var has bool
	err := conn(ctx, r.db).QueryRow(ctx, query, userID, bundleID).Scan(&has)
	return has, err
}

func (r *userRepository) IsEnrolled(ctx context.Context, userID, courseID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM enrollments WHERE user_id = $1 AND course_id = $2)`

	var enrolled bool
	err := conn(ctx, r.db).QueryRow(ctx, query, userID, courseID).Scan(&enrolled)
	return enrolled, err
}

// --- Idempotent grants ---
// ON CONFLICT DO NOTHING makes a re-run of the same reconciliation a
// no-op at the row level, independent of the caller's own existence checks.

func (r *userRepository) GrantCourse(ctx context.Context, userID, courseID, purchaseID string) error {
	_, err := conn(ctx, r.db).Exec(ctx, `
		INSERT INTO owned_courses (user_id, course_id, purchase_id, granted_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, course_id) DO NOTHING
	`, userID, courseID, purchaseID)
	return err
}

func (r *userRepository) GrantBundle(ctx context.Context, userID, bundleID, purchaseID string) error {
	_, err := conn(ctx, r.db).Exec(ctx, `
		INSERT INTO owned_bundles (user_id, bundle_id, purchase_id, granted_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, bundle_id) DO NOTHING
	`, userID, bundleID, purchaseID)
	return err
}

func (r *userRepository) Enroll(ctx context.Context, userID, courseID string, purchaseID *string) error {
	_, err := conn(ctx, r.db).Exec(ctx, `
		INSERT INTO enrollments (user_id, course_id, purchase_id, enrolled_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, course_id) DO NOTHING
	`, userID, courseID, purchaseID)
	return err
}
