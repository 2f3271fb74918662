package postgres

import (
	"context"

	"edulearn-backend/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type cartRepository struct {
	db *pgxpool.Pool
}

func NewCartRepository(db *pgxpool.Pool) domain.CartRepository {
	return &cartRepository{db: db}
}

func (r *cartRepository) GetRefs(ctx context.Context, userID string) ([]domain.CartRef, error) {
	query := `
		SELECT item_id, item_type, added_at
		FROM cart_items
		WHERE user_id = $1
		ORDER BY added_at
	`

	rows, err := conn(ctx, r.db).Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []domain.CartRef
	for rows.Next() {
		var ref domain.CartRef
		if err := rows.Scan(&ref.ItemID, &ref.ItemType, &ref.AddedAt); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (r *cartRepository) AddRef(ctx context.Context, userID string, ref domain.CartRef) error {
	query := `
		INSERT INTO cart_items (user_id, item_id, item_type, added_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, item_id) DO NOTHING
	`
	_, err := conn(ctx, r.db).Exec(ctx, query, userID, ref.ItemID, ref.ItemType, ref.AddedAt)
	return err
}

func (r *cartRepository) RemoveRef(ctx context.Context, userID, itemID string) error {
	query := `DELETE FROM cart_items WHERE user_id = $1 AND item_id = $2`
	_, err := conn(ctx, r.db).Exec(ctx, query, userID, itemID)
	return err
}

// Replace overwrites the stored cart with refs in one transaction-free
// sweep: delete everything not in refs, then re-insert. The validator
// calls this after every read so stale lines are physically removed.
func (r *cartRepository) Replace(ctx context.Context, userID string, refs []domain.CartRef) error {
	exec := conn(ctx, r.db)

	if len(refs) == 0 {
		_, err := exec.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
		return err
	}

	keep := make([]string, 0, len(refs))
	for _, ref := range refs {
		keep = append(keep, ref.ItemID)
	}

	if _, err := exec.Exec(ctx,
		`DELETE FROM cart_items WHERE user_id = $1 AND NOT (item_id = ANY($2))`,
		userID, keep,
	); err != nil {
		return err
	}

	for _, ref := range refs {
		if _, err := exec.Exec(ctx, `
			INSERT INTO cart_items (user_id, item_id, item_type, added_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, item_id) DO NOTHING
		`, userID, ref.ItemID, ref.ItemType, ref.AddedAt); err != nil {
			return err
		}
	}
	return nil
}

func (r *cartRepository) Clear(ctx context.Context, userID string) error {
	_, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	return err
}
