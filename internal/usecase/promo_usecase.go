package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"edulearn-backend/internal/domain"
	"edulearn-backend/pkg/utils"
)

// PromoUsecase validates promo codes against a priced cart and manages the
// admin CRUD surface. Validation never mutates state: usage is only
// recorded by the reconciler after payment completes.
type PromoUsecase struct {
	promoRepo domain.PromoRepository
}

func NewPromoUsecase(promoRepo domain.PromoRepository) *PromoUsecase {
	return &PromoUsecase{promoRepo: promoRepo}
}

// PromoResult is the outcome of validating a code against a cart. An
// invalid code is a normal outcome, not an error: Valid=false with a
// user-facing Message.
type PromoResult struct {
	Valid          bool    `json:"valid"`
	Code           string  `json:"code"`
	PromoID        string  `json:"promoId,omitempty"`
	DiscountAmount float64 `json:"discountAmount"`
	NewTotal       float64 `json:"newTotal"`
	Message        string  `json:"message"`
}

func invalid(code, message string) *PromoResult {
	return &PromoResult{Valid: false, Code: code, Message: message}
}

// Validate runs the full rule chain against the given cart. Checks are
// ordered so the first hard stop wins; the discount is only computed once
// every eligibility rule has passed.
func (u *PromoUsecase) Validate(ctx context.Context, userID, code string, cart *domain.Cart) (*PromoResult, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return invalid(code, "Promo code is required"), nil
	}
	if cart == nil || len(cart.Items) == 0 {
		return invalid(code, "Cart is empty"), nil
	}

	promo, err := u.promoRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to look up promo code: %w", err)
	}
	if promo == nil {
		return invalid(code, "Invalid promo code"), nil
	}

	now := time.Now()
	if !promo.IsValid(now) {
		if promo.SingleUseOnly && promo.ConsumedBy != nil {
			return invalid(code, "This code has already been used"), nil
		}
		return invalid(code, "This promo code is no longer valid"), nil
	}

	// Per-user-once: a user redeems any given code at most once, ever,
	// unless the code explicitly allows repeat use.
	if !promo.AllowMultipleUses {
		used, err := u.promoRepo.HasUserUsed(ctx, promo.ID, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to check promo usage: %w", err)
		}
		if used {
			return invalid(code, "You have already used this promo code"), nil
		}
	}

	if cart.Subtotal < promo.MinOrderAmount {
		return invalid(code, fmt.Sprintf("Minimum order amount of %.2f required", promo.MinOrderAmount)), nil
	}

	// Applicability is a gate, not a proration: the cart must contain at
	// least one eligible line, and the discount then applies to the whole
	// subtotal.
	if eligibleAmount(promo, cart) <= 0 {
		return invalid(code, "This code does not apply to the items in your cart"), nil
	}

	discount := computeDiscount(promo, cart.Subtotal)

	// Bounds guard: a discount can never be negative or exceed the cart
	// subtotal, whatever the rule configuration says.
	if discount < 0 {
		discount = 0
	}
	if discount > cart.Subtotal {
		discount = cart.Subtotal
	}
	discount = utils.Round2(discount)

	return &PromoResult{
		Valid:          true,
		Code:           promo.Code,
		PromoID:        promo.ID,
		DiscountAmount: discount,
		NewTotal:       utils.Round2(cart.Subtotal - discount),
		Message:        "Promo code applied",
	}, nil
}

// eligibleAmount sums the cart lines the promo may discount.
func eligibleAmount(promo *domain.PromoCode, cart *domain.Cart) float64 {
	specific := make(map[string]bool, len(promo.SpecificItems))
	for _, id := range promo.SpecificItems {
		specific[id] = true
	}

	var sum float64
	for _, line := range cart.Items {
		switch promo.ApplicableTo {
		case domain.ApplicableToBundles:
			if line.ItemType != domain.ItemTypeBundle {
				continue
			}
		case domain.ApplicableToCourses:
			if line.ItemType != domain.ItemTypeCourse {
				continue
			}
		}
		if len(specific) > 0 && !specific[line.ItemID] {
			continue
		}
		sum += line.FinalPrice
	}
	return sum
}

func computeDiscount(promo *domain.PromoCode, subtotal float64) float64 {
	switch promo.DiscountType {
	case domain.DiscountTypePercentage:
		d := subtotal * (promo.DiscountValue / 100)
		if promo.MaxDiscountAmount != nil && d > *promo.MaxDiscountAmount {
			d = *promo.MaxDiscountAmount
		}
		return d
	case domain.DiscountTypeFixed:
		if promo.DiscountValue > subtotal {
			return subtotal
		}
		return promo.DiscountValue
	default:
		return 0
	}
}

// --- Admin CRUD ---

type PromoCodeRequest struct {
	Code              string   `json:"code"`
	DiscountType      string   `json:"discountType"`
	DiscountValue     float64  `json:"discountValue"`
	MaxDiscountAmount *float64 `json:"maxDiscountAmount"`
	MinOrderAmount    float64  `json:"minOrderAmount"`
	MaxUses           *int     `json:"maxUses"`
	AllowMultipleUses bool     `json:"allowMultipleUses"`
	SingleUseOnly     bool     `json:"singleUseOnly"`
	ValidFrom         string   `json:"validFrom"`  // ISO8601
	ValidUntil        string   `json:"validUntil"` // ISO8601
	IsActive          bool     `json:"isActive"`
	ApplicableTo      string   `json:"applicableTo"`
	SpecificItems     []string `json:"specificItems"`
}

func (u *PromoUsecase) validateRequest(req *PromoCodeRequest) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		return "", fmt.Errorf("promo code is required")
	}
	if req.DiscountType != domain.DiscountTypePercentage && req.DiscountType != domain.DiscountTypeFixed {
		return "", fmt.Errorf("discount type must be 'percentage' or 'fixed'")
	}
	if req.DiscountValue <= 0 {
		return "", fmt.Errorf("discount value must be greater than 0")
	}
	if req.DiscountType == domain.DiscountTypePercentage && req.DiscountValue > 100 {
		return "", fmt.Errorf("percentage discount cannot exceed 100%%")
	}
	switch req.ApplicableTo {
	case "", domain.ApplicableToAll:
		req.ApplicableTo = domain.ApplicableToAll
	case domain.ApplicableToBundles, domain.ApplicableToCourses:
	default:
		return "", fmt.Errorf("applicableTo must be 'all', 'bundles' or 'courses'")
	}
	return code, nil
}

func (u *PromoUsecase) CreatePromo(ctx context.Context, req PromoCodeRequest) (*domain.PromoCode, error) {
	code, err := u.validateRequest(&req)
	if err != nil {
		return nil, err
	}

	existing, err := u.promoRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to check promo code: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("promo code '%s' already exists", code)
	}

	promo := &domain.PromoCode{
		ID:                utils.GenerateUUID(),
		Code:              code,
		DiscountType:      req.DiscountType,
		DiscountValue:     req.DiscountValue,
		MaxDiscountAmount: req.MaxDiscountAmount,
		MinOrderAmount:    req.MinOrderAmount,
		MaxUses:           req.MaxUses,
		AllowMultipleUses: req.AllowMultipleUses,
		SingleUseOnly:     req.SingleUseOnly,
		IsActive:          req.IsActive,
		ApplicableTo:      req.ApplicableTo,
		SpecificItems:     req.SpecificItems,
	}
	applyDates(promo, req)

	if err := u.promoRepo.Create(ctx, promo); err != nil {
		return nil, fmt.Errorf("failed to create promo code: %w", err)
	}
	return promo, nil
}

func (u *PromoUsecase) UpdatePromo(ctx context.Context, id string, req PromoCodeRequest) (*domain.PromoCode, error) {
	existing, err := u.promoRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load promo code: %w", err)
	}
	if existing == nil {
		return nil, fmt.Errorf("promo code not found")
	}

	code, err := u.validateRequest(&req)
	if err != nil {
		return nil, err
	}

	if code != existing.Code {
		dup, err := u.promoRepo.GetByCode(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("failed to check promo code: %w", err)
		}
		if dup != nil {
			return nil, fmt.Errorf("promo code '%s' already exists", code)
		}
	}

	existing.Code = code
	existing.DiscountType = req.DiscountType
	existing.DiscountValue = req.DiscountValue
	existing.MaxDiscountAmount = req.MaxDiscountAmount
	existing.MinOrderAmount = req.MinOrderAmount
	existing.MaxUses = req.MaxUses
	existing.AllowMultipleUses = req.AllowMultipleUses
	existing.SingleUseOnly = req.SingleUseOnly
	existing.IsActive = req.IsActive
	existing.ApplicableTo = req.ApplicableTo
	existing.SpecificItems = req.SpecificItems
	existing.ValidFrom = nil
	existing.ValidUntil = nil
	applyDates(existing, req)

	if err := u.promoRepo.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to update promo code: %w", err)
	}
	return existing, nil
}

func (u *PromoUsecase) DeletePromo(ctx context.Context, id string) error {
	existing, err := u.promoRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load promo code: %w", err)
	}
	if existing == nil {
		return fmt.Errorf("promo code not found")
	}
	return u.promoRepo.Delete(ctx, id)
}

func (u *PromoUsecase) GetPromo(ctx context.Context, id string) (*domain.PromoCode, error) {
	promo, err := u.promoRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load promo code: %w", err)
	}
	if promo == nil {
		return nil, fmt.Errorf("promo code not found")
	}
	return promo, nil
}

func (u *PromoUsecase) ListPromos(ctx context.Context, limit, offset int) ([]domain.PromoCode, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return u.promoRepo.List(ctx, limit, offset)
}

func applyDates(promo *domain.PromoCode, req PromoCodeRequest) {
	if req.ValidFrom != "" {
		if t, err := parseISO8601(req.ValidFrom); err == nil {
			promo.ValidFrom = &t
		}
	}
	if req.ValidUntil != "" {
		if t, err := parseISO8601(req.ValidUntil); err == nil {
			promo.ValidUntil = &t
		}
	}
}

// parseISO8601 accepts the date formats the admin panel sends.
func parseISO8601(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date format")
}
