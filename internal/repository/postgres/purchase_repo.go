package postgres

import (
	"context"
	"errors"
	"time"

	"edulearn-backend/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type purchaseRepository struct {
	db *pgxpool.Pool
}

func NewPurchaseRepository(db *pgxpool.Pool) domain.PurchaseRepository {
	return &purchaseRepository{db: db}
}

const purchaseColumns = `
	id, user_id, subtotal, tax, total, currency, payment_method,
	billing_address, status, payment_status, payment_intent_id,
	gateway_order_id, gateway_txn_id, applied_promo_code, discount_amount,
	original_amount, order_number, invoice_notified, gateway_response,
	created_at, updated_at
`

func scanPurchase(row pgx.Row) (*domain.Purchase, error) {
	var p domain.Purchase
	err := row.Scan(
		&p.ID, &p.UserID, &p.Subtotal, &p.Tax, &p.Total, &p.Currency, &p.PaymentMethod,
		&p.BillingAddress, &p.Status, &p.PaymentStatus, &p.PaymentIntentID,
		&p.GatewayOrderID, &p.GatewayTxnID, &p.AppliedPromo, &p.DiscountAmount,
		&p.OriginalAmount, &p.OrderNumber, &p.InvoiceNotified, &p.GatewayResponse,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *purchaseRepository) Create(ctx context.Context, purchase *domain.Purchase) error {
	exec := conn(ctx, r.db)

	query := `
		INSERT INTO purchases (
			id, user_id, subtotal, tax, total, currency, payment_method,
			billing_address, status, payment_status, payment_intent_id,
			applied_promo_code, discount_amount, original_amount, order_number
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at
	`

	err := exec.QueryRow(ctx, query,
		purchase.ID, purchase.UserID, purchase.Subtotal, purchase.Tax, purchase.Total,
		purchase.Currency, purchase.PaymentMethod, purchase.BillingAddress,
		purchase.Status, purchase.PaymentStatus, purchase.PaymentIntentID,
		purchase.AppliedPromo, purchase.DiscountAmount, purchase.OriginalAmount,
		purchase.OrderNumber,
	).Scan(&purchase.CreatedAt, &purchase.UpdatedAt)
	if err != nil {
		return err
	}

	for _, item := range purchase.Items {
		_, err := exec.Exec(ctx, `
			INSERT INTO purchase_items (id, purchase_id, item_type, item_id, title, price, quantity)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, item.ID, purchase.ID, item.ItemType, item.ItemID, item.Title, item.Price, item.Quantity)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *purchaseRepository) loadItems(ctx context.Context, purchaseID string) ([]domain.PurchaseItem, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `
		SELECT id, item_type, item_id, title, price, quantity
		FROM purchase_items
		WHERE purchase_id = $1
	`, purchaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.PurchaseItem
	for rows.Next() {
		var it domain.PurchaseItem
		if err := rows.Scan(&it.ID, &it.ItemType, &it.ItemID, &it.Title, &it.Price, &it.Quantity); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *purchaseRepository) GetByID(ctx context.Context, id string) (*domain.Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchases WHERE id = $1`

	purchase, err := scanPurchase(conn(ctx, r.db).QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	purchase.Items, err = r.loadItems(ctx, purchase.ID)
	return purchase, err
}

func (r *purchaseRepository) GetByIntentID(ctx context.Context, intentID string) (*domain.Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchases WHERE payment_intent_id = $1`

	purchase, err := scanPurchase(conn(ctx, r.db).QueryRow(ctx, query, intentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	purchase.Items, err = r.loadItems(ctx, purchase.ID)
	return purchase, err
}

func (r *purchaseRepository) GetByUserID(ctx context.Context, userID string) ([]domain.Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchases WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := conn(ctx, r.db).Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var purchases []domain.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range purchases {
		items, err := r.loadItems(ctx, purchases[i].ID)
		if err != nil {
			return nil, err
		}
		purchases[i].Items = items
	}
	return purchases, nil
}

func (r *purchaseRepository) GetAll(ctx context.Context, filter domain.PurchaseFilter) ([]domain.Purchase, int64, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 20
	}
	offset := (page - 1) * limit

	var status, method *string
	if filter.Status != "" {
		status = &filter.Status
	}
	if filter.PaymentMethod != "" {
		method = &filter.PaymentMethod
	}

	query := `SELECT ` + purchaseColumns + `
		FROM purchases
		WHERE ($1::text IS NULL OR status = $1)
		  AND ($2::text IS NULL OR payment_method = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := conn(ctx, r.db).Query(ctx, query, status, method, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var purchases []domain.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, 0, err
		}
		purchases = append(purchases, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var count int64
	err = conn(ctx, r.db).QueryRow(ctx, `
		SELECT COUNT(*) FROM purchases
		WHERE ($1::text IS NULL OR status = $1)
		  AND ($2::text IS NULL OR payment_method = $2)
	`, status, method).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	return purchases, count, nil
}

func (r *purchaseRepository) SetGatewayRefs(ctx context.Context, id string, gatewayOrderID string) error {
	_, err := conn(ctx, r.db).Exec(ctx, `
		UPDATE purchases SET gateway_order_id = $2, updated_at = NOW() WHERE id = $1
	`, id, gatewayOrderID)
	return err
}

// ResolveIfPending is the terminal transition expressed as a single
// conditional update. The WHERE status='pending' clause is the
// compare-and-swap: of the webhook handler, the redirect landing and the
// reconciliation job, only the first writer's update affects a row; the
// losers get false and must reload the settled record before acting on it.
func (r *purchaseRepository) ResolveIfPending(ctx context.Context, id, status string, txnID *string, rawPayload []byte) (bool, error) {
	tag, err := conn(ctx, r.db).Exec(ctx, `
		UPDATE purchases
		SET status = $2,
		    payment_status = $2,
		    gateway_txn_id = COALESCE($3, gateway_txn_id),
		    gateway_response = COALESCE($4, gateway_response),
		    updated_at = NOW()
		WHERE id = $1 AND status = $5
	`, id, status, txnID, rawPayload, domain.PurchaseStatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkInvoiceNotified uses the same conditional-update shape as
// ResolveIfPending: the WHERE invoice_notified = FALSE clause makes the
// claim exclusive, so racing resolvers cannot both dispatch an invoice.
func (r *purchaseRepository) MarkInvoiceNotified(ctx context.Context, id string) (bool, error) {
	tag, err := conn(ctx, r.db).Exec(ctx, `
		UPDATE purchases SET invoice_notified = TRUE, updated_at = NOW()
		WHERE id = $1 AND invoice_notified = FALSE
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *purchaseRepository) ListPendingInWindow(ctx context.Context, minAge, maxAge time.Duration, limit int) ([]domain.Purchase, error) {
	now := time.Now()
	newest := now.Add(-minAge) // younger than this: webhook may still arrive
	oldest := now.Add(-maxAge) // older than this: presumed abandoned

	query := `SELECT ` + purchaseColumns + `
		FROM purchases
		WHERE status = $1
		  AND created_at <= $2
		  AND created_at >= $3
		ORDER BY created_at
		LIMIT $4
	`

	rows, err := conn(ctx, r.db).Query(ctx, query, domain.PurchaseStatusPending, newest, oldest, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var purchases []domain.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range purchases {
		items, err := r.loadItems(ctx, purchases[i].ID)
		if err != nil {
			return nil, err
		}
		purchases[i].Items = items
	}
	return purchases, nil
}
