package postgres

import (
	"context"
	"errors"

	"edulearn-backend/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type catalogRepository struct {
	db *pgxpool.Pool
}

func NewCatalogRepository(db *pgxpool.Pool) domain.CatalogRepository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) GetCourseByID(ctx context.Context, id string) (*domain.Course, error) {
	query := `
		SELECT id, title, slug, price, discount_percent, status, is_active, thumbnail, created_at, updated_at
		FROM courses
		WHERE id = $1
	`

	var c domain.Course
	err := conn(ctx, r.db).QueryRow(ctx, query, id).Scan(
		&c.ID, &c.Title, &c.Slug, &c.Price, &c.DiscountPercent,
		&c.Status, &c.IsActive, &c.Thumbnail, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *catalogRepository) GetBundleByID(ctx context.Context, id string) (*domain.Bundle, error) {
	query := `
		SELECT id, title, slug, price, discount_percent, status, is_active, thumbnail, created_at, updated_at
		FROM bundles
		WHERE id = $1
	`

	var b domain.Bundle
	err := conn(ctx, r.db).QueryRow(ctx, query, id).Scan(
		&b.ID, &b.Title, &b.Slug, &b.Price, &b.DiscountPercent,
		&b.Status, &b.IsActive, &b.Thumbnail, &b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	courseIDs, err := r.GetBundleCourseIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	b.CourseIDs = courseIDs
	return &b, nil
}

func (r *catalogRepository) GetBundleCourseIDs(ctx context.Context, bundleID string) ([]string, error) {
	query := `
		SELECT course_id
		FROM bundle_courses
		WHERE bundle_id = $1
		ORDER BY position
	`

	rows, err := conn(ctx, r.db).Query(ctx, query, bundleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
