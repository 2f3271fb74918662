package postgres

import (
	"context"
	"errors"
	"strings"

	"edulearn-backend/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type promoRepository struct {
	db *pgxpool.Pool
}

func NewPromoRepository(db *pgxpool.Pool) domain.PromoRepository {
	return &promoRepository{db: db}
}

const promoColumns = `
	id, code, discount_type, discount_value, max_discount_amount,
	min_order_amount, max_uses, current_uses, allow_multiple_uses,
	single_use_only, consumed_by, valid_from, valid_until, is_active,
	applicable_to, specific_items, created_at
`

func scanPromo(row pgx.Row) (*domain.PromoCode, error) {
	var p domain.PromoCode
	err := row.Scan(
		&p.ID, &p.Code, &p.DiscountType, &p.DiscountValue, &p.MaxDiscountAmount,
		&p.MinOrderAmount, &p.MaxUses, &p.CurrentUses, &p.AllowMultipleUses,
		&p.SingleUseOnly, &p.ConsumedBy, &p.ValidFrom, &p.ValidUntil, &p.IsActive,
		&p.ApplicableTo, &p.SpecificItems, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *promoRepository) Create(ctx context.Context, promo *domain.PromoCode) error {
	query := `
		INSERT INTO promo_codes (
			id, code, discount_type, discount_value, max_discount_amount,
			min_order_amount, max_uses, allow_multiple_uses, single_use_only,
			valid_from, valid_until, is_active, applicable_to, specific_items
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at
	`

	return conn(ctx, r.db).QueryRow(ctx, query,
		promo.ID, strings.ToUpper(promo.Code), promo.DiscountType, promo.DiscountValue, promo.MaxDiscountAmount,
		promo.MinOrderAmount, promo.MaxUses, promo.AllowMultipleUses, promo.SingleUseOnly,
		promo.ValidFrom, promo.ValidUntil, promo.IsActive, promo.ApplicableTo, promo.SpecificItems,
	).Scan(&promo.CreatedAt)
}

func (r *promoRepository) GetByCode(ctx context.Context, code string) (*domain.PromoCode, error) {
	query := `SELECT ` + promoColumns + ` FROM promo_codes WHERE code = $1`

	promo, err := scanPromo(conn(ctx, r.db).QueryRow(ctx, query, strings.ToUpper(code)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return promo, err
}

func (r *promoRepository) GetByID(ctx context.Context, id string) (*domain.PromoCode, error) {
	query := `SELECT ` + promoColumns + ` FROM promo_codes WHERE id = $1`

	promo, err := scanPromo(conn(ctx, r.db).QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return promo, err
}

func (r *promoRepository) List(ctx context.Context, limit, offset int) ([]domain.PromoCode, int64, error) {
	query := `SELECT ` + promoColumns + ` FROM promo_codes ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := conn(ctx, r.db).Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var promos []domain.PromoCode
	for rows.Next() {
		promo, err := scanPromo(rows)
		if err != nil {
			return nil, 0, err
		}
		promos = append(promos, *promo)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := conn(ctx, r.db).QueryRow(ctx, `SELECT COUNT(*) FROM promo_codes`).Scan(&total); err != nil {
		return nil, 0, err
	}

	return promos, total, nil
}

func (r *promoRepository) Update(ctx context.Context, promo *domain.PromoCode) error {
	query := `
		UPDATE promo_codes SET
			code = $2, discount_type = $3, discount_value = $4, max_discount_amount = $5,
			min_order_amount = $6, max_uses = $7, allow_multiple_uses = $8, single_use_only = $9,
			valid_from = $10, valid_until = $11, is_active = $12, applicable_to = $13, specific_items = $14
		WHERE id = $1
	`

	_, err := conn(ctx, r.db).Exec(ctx, query,
		promo.ID, strings.ToUpper(promo.Code), promo.DiscountType, promo.DiscountValue, promo.MaxDiscountAmount,
		promo.MinOrderAmount, promo.MaxUses, promo.AllowMultipleUses, promo.SingleUseOnly,
		promo.ValidFrom, promo.ValidUntil, promo.IsActive, promo.ApplicableTo, promo.SpecificItems,
	)
	return err
}

func (r *promoRepository) Delete(ctx context.Context, id string) error {
	_, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM promo_codes WHERE id = $1`, id)
	return err
}

func (r *promoRepository) HasUserUsed(ctx context.Context, promoID, userID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM promo_usages WHERE promo_code_id = $1 AND user_id = $2)`

	var used bool
	err := conn(ctx, r.db).QueryRow(ctx, query, promoID, userID).Scan(&used)
	return used, err
}

// RecordUsage appends the usage row and bumps the counters in one shot.
// The unique (promo_code_id, purchase_id) index makes a retried
// reconciliation a no-op: if the usage insert conflicts, the counter
// update is skipped too.
func (r *promoRepository) RecordUsage(ctx context.Context, usage *domain.PromoUsage, singleUseOnly bool) error {
	exec := conn(ctx, r.db)

	tag, err := exec.Exec(ctx, `
		INSERT INTO promo_usages (id, promo_code_id, user_id, purchase_id, discount_amount, original_amount, final_amount, used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (promo_code_id, purchase_id) DO NOTHING
	`, usage.ID, usage.PromoCodeID, usage.UserID, usage.PurchaseID, usage.DiscountAmount, usage.OriginalAmount, usage.FinalAmount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Already recorded by an earlier reconciliation of the same purchase.
		return nil
	}

	if singleUseOnly {
		_, err = exec.Exec(ctx, `
			UPDATE promo_codes
			SET current_uses = current_uses + 1, consumed_by = $2
			WHERE id = $1
		`, usage.PromoCodeID, usage.UserID)
		return err
	}

	_, err = exec.Exec(ctx, `
		UPDATE promo_codes SET current_uses = current_uses + 1 WHERE id = $1
	`, usage.PromoCodeID)
	return err
}
