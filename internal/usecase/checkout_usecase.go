package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"edulearn-backend/internal/domain"
	"edulearn-backend/pkg/logger"
	"edulearn-backend/pkg/utils"
)

var (
	// ErrPurchaseNotFound marks a gateway signal that references no known
	// purchase. The webhook handler maps it to 404.
	ErrPurchaseNotFound = errors.New("purchase not found")
	// ErrMissingMerchantOrder marks a gateway signal carrying no merchant
	// order id at all.
	ErrMissingMerchantOrder = errors.New("missing merchant order id")
	// ErrDirectNotAllowed rejects a direct checkout that would skip payment
	// on a nonzero total without the admin role.
	ErrDirectNotAllowed = errors.New("direct checkout requires a zero total or the admin role")
)

// CheckoutUsecase drives the purchase lifecycle: session creation, the
// terminal transition, and the follow-up reconciliation. The terminal
// transition is funneled through applyResult so that the webhook, the
// redirect landing and the background sweep all share one code path.
type CheckoutUsecase struct {
	purchaseRepo domain.PurchaseRepository
	userRepo     domain.UserRepository
	cartUC       *CartUsecase
	promoUC      *PromoUsecase
	gateway      domain.PaymentGateway
	reconciler   *EnrollmentReconciler
	txManager    domain.TransactionManager
	notifier     domain.InvoiceNotifier
	archiver     domain.PayloadArchiver
	currency     string
}

func NewCheckoutUsecase(
	purchaseRepo domain.PurchaseRepository,
	userRepo domain.UserRepository,
	cartUC *CartUsecase,
	promoUC *PromoUsecase,
	gateway domain.PaymentGateway,
	reconciler *EnrollmentReconciler,
	txManager domain.TransactionManager,
	notifier domain.InvoiceNotifier,
	archiver domain.PayloadArchiver,
	currency string,
) *CheckoutUsecase {
	if currency == "" {
		currency = "EGP"
	}
	return &CheckoutUsecase{
		purchaseRepo: purchaseRepo,
		userRepo:     userRepo,
		cartUC:       cartUC,
		promoUC:      promoUC,
		gateway:      gateway,
		reconciler:   reconciler,
		txManager:    txManager,
		notifier:     notifier,
		archiver:     archiver,
		currency:     currency,
	}
}

type CheckoutRequest struct {
	PaymentMethod string                 `json:"paymentMethod"` // card, wallet, direct
	PromoCode     string                 `json:"promoCode,omitempty"`
	Billing       domain.BillingDetails  `json:"billing"`
	Address       map[string]interface{} `json:"address,omitempty"`
}

// CheckoutResponse is returned to the client after session creation. For
// gateway methods RedirectURL is the hosted payment page; for direct
// checkout it is empty and the purchase is already completed.
type CheckoutResponse struct {
	PurchaseID  string  `json:"purchaseId"`
	OrderNumber string  `json:"orderNumber"`
	Status      string  `json:"status"`
	Total       float64 `json:"total"`
	RedirectURL string  `json:"redirectUrl,omitempty"`
}

// Checkout validates the cart from scratch, re-runs the promo code, writes
// the pending purchase and opens the gateway session. Client-supplied
// prices and discounts are never trusted: everything is recomputed here.
func (u *CheckoutUsecase) Checkout(ctx context.Context, userID string, req CheckoutRequest) (*CheckoutResponse, error) {
	switch req.PaymentMethod {
	case domain.PaymentMethodCard, domain.PaymentMethodWallet, domain.PaymentMethodDirect:
	default:
		return nil, fmt.Errorf("unsupported payment method %q", req.PaymentMethod)
	}

	cart, err := u.cartUC.GetMyCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart.Count() == 0 {
		return nil, fmt.Errorf("cart is empty")
	}

	// Billing gaps are filled from the stored profile; the gateway rejects
	// payment keys with empty payer fields.
	if req.Billing.Email == "" || req.Billing.Phone == "" {
		if user, err := u.userRepo.GetByID(ctx, userID); err == nil && user != nil {
			if req.Billing.Email == "" {
				req.Billing.Email = user.Email
			}
			if req.Billing.Phone == "" {
				req.Billing.Phone = user.Phone
			}
			if req.Billing.FirstName == "" {
				req.Billing.FirstName = user.FirstName
			}
			if req.Billing.LastName == "" {
				req.Billing.LastName = user.LastName
			}
		}
	}

	purchase, err := u.buildPurchase(ctx, userID, cart, req)
	if err != nil {
		return nil, err
	}

	// Direct checkout completes without the gateway ever seeing money. A
	// nonzero total may only bypass payment when an admin is granting it.
	if req.PaymentMethod == domain.PaymentMethodDirect && purchase.Total > 0 {
		user, err := u.userRepo.GetByID(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to load user: %w", err)
		}
		if user == nil || user.Role != domain.RoleAdmin {
			return nil, ErrDirectNotAllowed
		}
	}

	if err := u.txManager.Do(ctx, func(txCtx context.Context) error {
		return u.purchaseRepo.Create(txCtx, purchase)
	}); err != nil {
		return nil, fmt.Errorf("failed to create purchase: %w", err)
	}

	logger.WithContext(ctx).Info().
		Str("purchase_id", purchase.ID).
		Str("intent_id", purchase.PaymentIntentID).
		Str("order_number", purchase.OrderNumber).
		Float64("total", purchase.Total).
		Str("method", purchase.PaymentMethod).
		Msg("purchase created")

	if req.PaymentMethod == domain.PaymentMethodDirect {
		return u.completeDirect(ctx, purchase)
	}

	session, err := u.gateway.CreatePaymentSession(ctx, domain.PaymentOrder{
		MerchantOrderID: purchase.PaymentIntentID,
		Total:           purchase.Total,
		Currency:        purchase.Currency,
		Items:           purchase.Items,
	}, req.Billing, req.PaymentMethod)
	if err != nil {
		// The pending record stays; the sweep will age it out as failed if
		// the user never retries.
		return nil, fmt.Errorf("failed to create payment session: %w", err)
	}

	if err := u.purchaseRepo.SetGatewayRefs(ctx, purchase.ID, session.GatewayOrderID); err != nil {
		logger.WithContext(ctx).Error().Err(err).Str("purchase_id", purchase.ID).Msg("failed to store gateway order id")
	}

	return &CheckoutResponse{
		PurchaseID:  purchase.ID,
		OrderNumber: purchase.OrderNumber,
		Status:      purchase.Status,
		Total:       purchase.Total,
		RedirectURL: session.IframeURL,
	}, nil
}

// buildPurchase snapshots the validated cart and the recomputed promo into
// a pending purchase record.
func (u *CheckoutUsecase) buildPurchase(ctx context.Context, userID string, cart *domain.Cart, req CheckoutRequest) (*domain.Purchase, error) {
	items := make([]domain.PurchaseItem, 0, len(cart.Items))
	for _, line := range cart.Items {
		items = append(items, domain.PurchaseItem{
			ID:       utils.GenerateUUID(),
			ItemType: line.ItemType,
			ItemID:   line.ItemID,
			Title:    line.Title,
			Price:    line.FinalPrice,
			Quantity: 1,
		})
	}

	subtotal := cart.Subtotal
	total := subtotal
	discount := 0.0
	var appliedPromo *string

	if req.PromoCode != "" {
		res, err := u.promoUC.Validate(ctx, userID, req.PromoCode, cart)
		if err != nil {
			return nil, err
		}
		if !res.Valid {
			return nil, fmt.Errorf("promo code rejected: %s", res.Message)
		}
		discount = res.DiscountAmount
		total = res.NewTotal
		appliedPromo = &res.Code
	}

	now := time.Now()
	return &domain.Purchase{
		ID:              utils.GenerateUUID(),
		UserID:          userID,
		Items:           items,
		Subtotal:        subtotal,
		Tax:             0,
		Total:           total,
		Currency:        u.currency,
		PaymentMethod:   req.PaymentMethod,
		BillingAddress:  domain.JSONB(req.Address),
		Status:          domain.PurchaseStatusPending,
		PaymentStatus:   domain.PurchaseStatusPending,
		PaymentIntentID: utils.GenerateUUID(),
		AppliedPromo:    appliedPromo,
		DiscountAmount:  discount,
		OriginalAmount:  subtotal,
		OrderNumber:     utils.GenerateOrderNumber(now),
		CreatedAt:       now,
	}, nil
}

// completeDirect resolves a zero-gateway purchase immediately, through the
// same funnel the payment paths use.
func (u *CheckoutUsecase) completeDirect(ctx context.Context, purchase *domain.Purchase) (*CheckoutResponse, error) {
	result := &domain.CallbackResult{
		MerchantOrderID: purchase.PaymentIntentID,
		IsSuccess:       true,
	}
	if err := u.applyResult(ctx, purchase, result); err != nil {
		return nil, err
	}
	return &CheckoutResponse{
		PurchaseID:  purchase.ID,
		OrderNumber: purchase.OrderNumber,
		Status:      domain.PurchaseStatusCompleted,
		Total:       purchase.Total,
	}, nil
}

// HandleGatewaySignal resolves the purchase referenced by a normalized
// gateway verdict. It serves the signature-verified webhook; the redirect
// landing goes through ResolveFromLanding instead.
func (u *CheckoutUsecase) HandleGatewaySignal(ctx context.Context, result *domain.CallbackResult) (*domain.Purchase, error) {
	if result.MerchantOrderID == "" {
		return nil, ErrMissingMerchantOrder
	}

	purchase, err := u.purchaseRepo.GetByIntentID(ctx, result.MerchantOrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load purchase: %w", err)
	}
	if purchase == nil {
		return nil, ErrPurchaseNotFound
	}

	if err := u.applyResult(ctx, purchase, result); err != nil {
		return purchase, err
	}
	return purchase, nil
}

// applyResult is the single terminal-transition funnel. It performs the
// conditional update and, regardless of which caller won the race, runs the
// idempotent follow-ups for a completed purchase.
func (u *CheckoutUsecase) applyResult(ctx context.Context, purchase *domain.Purchase, result *domain.CallbackResult) error {
	log := logger.WithContext(ctx)

	if len(result.RawPayload) > 0 && u.archiver != nil {
		u.archiver.ArchivePayload(ctx, purchase.ID, result.RawPayload)
	}

	if result.IsPending {
		// Ambiguous verdicts never transition anything. The sweep will ask
		// again later.
		log.Info().Str("purchase_id", purchase.ID).Msg("gateway signal ambiguous, purchase stays pending")
		return nil
	}

	target := domain.PurchaseStatusFailed
	if result.IsSuccess {
		target = domain.PurchaseStatusCompleted
	}

	var txnID *string
	if result.TransactionID != "" {
		txnID = &result.TransactionID
	}

	won, err := u.purchaseRepo.ResolveIfPending(ctx, purchase.ID, target, txnID, result.RawPayload)
	if err != nil {
		return fmt.Errorf("failed to resolve purchase: %w", err)
	}

	if won {
		purchase.Status = target
		purchase.PaymentStatus = target
		purchase.GatewayTxnID = txnID
		log.Info().
			Str("purchase_id", purchase.ID).
			Str("status", target).
			Str("reason", result.FailureReason).
			Msg("purchase resolved")
	} else {
		// Another writer got there first. Reload to learn the settled
		// status and fall through to the idempotent follow-ups, which heal
		// any reconciliation the winner failed to finish.
		fresh, err := u.purchaseRepo.GetByID(ctx, purchase.ID)
		if err != nil {
			return fmt.Errorf("failed to reload purchase: %w", err)
		}
		if fresh == nil {
			return ErrPurchaseNotFound
		}
		*purchase = *fresh
		log.Info().
			Str("purchase_id", purchase.ID).
			Str("status", purchase.Status).
			Msg("purchase already resolved by a concurrent writer")
	}

	if purchase.Status != domain.PurchaseStatusCompleted {
		return nil
	}
	return u.finishCompleted(ctx, purchase)
}

// finishCompleted runs the post-completion side effects: access grants,
// cart cleanup and the invoice dispatch. All of them are idempotent or
// flag-guarded, so a replay is harmless.
func (u *CheckoutUsecase) finishCompleted(ctx context.Context, purchase *domain.Purchase) error {
	if err := u.reconciler.Reconcile(ctx, purchase); err != nil {
		return fmt.Errorf("failed to reconcile enrollments: %w", err)
	}

	if err := u.cartUC.ClearCart(ctx, purchase.UserID); err != nil {
		logger.WithContext(ctx).Error().Err(err).Str("purchase_id", purchase.ID).Msg("failed to clear cart after purchase")
	}

	// The flag is claimed with a conditional update before sending. Two
	// resolvers racing through here both hold a stale InvoiceNotified=false
	// snapshot; only the one whose claim lands dispatches.
	if u.notifier != nil && !purchase.InvoiceNotified {
		claimed, err := u.purchaseRepo.MarkInvoiceNotified(ctx, purchase.ID)
		if err != nil {
			logger.WithContext(ctx).Error().Err(err).Str("purchase_id", purchase.ID).Msg("failed to claim invoice dispatch")
		} else if claimed {
			purchase.InvoiceNotified = true
			u.notifier.SendPurchaseInvoice(purchase.UserID, purchase)
		}
	}
	return nil
}

// ResolveFromLanding settles a purchase after the browser redirect from the
// hosted payment page. The redirect query string is attacker-visible and
// carries no verifiable signature, so its verdict is never trusted: the
// merchant order id only names which purchase to look at, and the gateway
// inquiry supplies the verdict. An inquiry failure leaves the purchase
// pending for the sweep.
func (u *CheckoutUsecase) ResolveFromLanding(ctx context.Context, merchantOrderID string) (*domain.Purchase, error) {
	if merchantOrderID == "" {
		return nil, ErrMissingMerchantOrder
	}

	purchase, err := u.purchaseRepo.GetByIntentID(ctx, merchantOrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load purchase: %w", err)
	}
	if purchase == nil {
		return nil, ErrPurchaseNotFound
	}
	if purchase.Terminal() {
		return purchase, nil
	}

	if err := u.ReconcilePending(ctx, purchase); err != nil {
		return purchase, err
	}
	return purchase, nil
}

// ReconcilePending re-queries the gateway for one pending purchase and
// feeds the answer through the shared funnel. Used by the background sweep.
func (u *CheckoutUsecase) ReconcilePending(ctx context.Context, purchase *domain.Purchase) error {
	if purchase.Terminal() {
		return nil
	}

	result, err := u.gateway.InquireTransaction(ctx, purchase.PaymentIntentID)
	if err != nil {
		return fmt.Errorf("transaction inquiry failed: %w", err)
	}
	result.MerchantOrderID = purchase.PaymentIntentID
	return u.applyResult(ctx, purchase, result)
}

// --- Read paths ---

func (u *CheckoutUsecase) GetMyPurchases(ctx context.Context, userID string) ([]domain.Purchase, error) {
	return u.purchaseRepo.GetByUserID(ctx, userID)
}

func (u *CheckoutUsecase) GetPurchase(ctx context.Context, id string) (*domain.Purchase, error) {
	purchase, err := u.purchaseRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if purchase == nil {
		return nil, ErrPurchaseNotFound
	}
	return purchase, nil
}

// GetMyPurchase enforces ownership on the single-record read.
func (u *CheckoutUsecase) GetMyPurchase(ctx context.Context, userID, id string) (*domain.Purchase, error) {
	purchase, err := u.GetPurchase(ctx, id)
	if err != nil {
		return nil, err
	}
	if purchase.UserID != userID {
		return nil, ErrPurchaseNotFound
	}
	return purchase, nil
}

func (u *CheckoutUsecase) GetAllPurchases(ctx context.Context, filter domain.PurchaseFilter) ([]domain.Purchase, int64, error) {
	return u.purchaseRepo.GetAll(ctx, filter)
}
