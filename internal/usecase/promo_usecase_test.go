package usecase_test

import (
	"context"
	"testing"
	"time"

	"edulearn-backend/internal/domain"
	"edulearn-backend/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cartWith(lines ...domain.CartLine) *domain.Cart {
	cart := &domain.Cart{UserID: "u1", Items: lines}
	for _, l := range lines {
		cart.Subtotal += l.FinalPrice
	}
	cart.Total = cart.Subtotal
	return cart
}

func courseLine(id string, price float64) domain.CartLine {
	return domain.CartLine{ItemID: id, ItemType: domain.ItemTypeCourse, FinalPrice: price}
}

func bundleLine(id string, price float64) domain.CartLine {
	return domain.CartLine{ItemID: id, ItemType: domain.ItemTypeBundle, FinalPrice: price}
}

func activePromo(code string, discountType string, value float64) *domain.PromoCode {
	return &domain.PromoCode{
		ID:            "promo-" + code,
		Code:          code,
		DiscountType:  discountType,
		DiscountValue: value,
		IsActive:      true,
		ApplicableTo:  domain.ApplicableToAll,
	}
}

func newPromoFixture() (*usecase.PromoUsecase, *mockPromoRepo) {
	repo := newMockPromoRepo()
	return usecase.NewPromoUsecase(repo), repo
}

func TestValidate_UnknownCode(t *testing.T) {
	uc, _ := newPromoFixture()

	res, err := uc.Validate(context.Background(), "u1", "NOPE", cartWith(courseLine("c1", 100)))
	require.NoError(t, err)

	assert.False(t, res.Valid)
	assert.Equal(t, "Invalid promo code", res.Message)
}

func TestValidate_CodeIsCaseInsensitive(t *testing.T) {
	uc, repo := newPromoFixture()
	repo.add(activePromo("SAVE10", domain.DiscountTypePercentage, 10))

	res, err := uc.Validate(context.Background(), "u1", "  save10 ", cartWith(courseLine("c1", 100)))
	require.NoError(t, err)

	assert.True(t, res.Valid)
	assert.Equal(t, 10.0, res.DiscountAmount)
}

func TestValidate_InactiveCode(t *testing.T) {
	uc, repo := newPromoFixture()
	p := activePromo("OFF", domain.DiscountTypePercentage, 10)
	p.IsActive = false
	repo.add(p)

	res, err := uc.Validate(context.Background(), "u1", "OFF", cartWith(courseLine("c1", 100)))
	require.NoError(t, err)
	assert.False(t, res.Valid)
}

func TestValidate_ExpiredWindow(t *testing.T) {
	uc, repo := newPromoFixture()
	p := activePromo("OLD", domain.DiscountTypePercentage, 10)
	past := time.Now().Add(-time.Hour)
	p.ValidUntil = &past
	repo.add(p)

	res, err := uc.Validate(context.Background(), "u1", "OLD", cartWith(courseLine("c1", 100)))
	require.NoError(t, err)
	assert.False(t, res.Valid)
}

func TestValidate_NotYetValid(t *testing.T) {
	uc, repo := newPromoFixture()
	p := activePromo("SOON", domain.DiscountTypePercentage, 10)
	future := time.Now().Add(time.Hour)
	p.ValidFrom = &future
	repo.add(p)

	res, err := uc.Validate(context.Background(), "u1", "SOON", cartWith(courseLine("c1", 100)))
	require.NoError(t, err)
	assert.False(t, res.Valid)
}

func TestValidate_MaxUsesExhausted(t *testing.T) {
	uc, repo := newPromoFixture()
	p := activePromo("LIMITED", domain.DiscountTypePercentage, 10)
	maxUses := 5
	p.MaxUses = &maxUses
	p.CurrentUses = 5
	repo.add(p)

	res, err := uc.Validate(context.Background(), "u1", "LIMITED", cartWith(courseLine("c1", 100)))
	require.NoError(t, err)
	assert.False(t, res.Valid)
}

func TestValidate_SingleUseAlreadyConsumed(t *testing.T) {
	uc, repo := newPromoFixture()
	p := activePromo("ONCE", domain.DiscountTypePercentage, 10)
	p.SingleUseOnly = true
	other := "someone-else"
	p.ConsumedBy = &other
	repo.add(p)

	res, err := uc.Validate(context.Background(), "u1", "ONCE", cartWith(courseLine("c1", 100)))
	require.NoError(t, err)

	assert.False(t, res.Valid)
	assert.Equal(t, "This code has already been used", res.Message)
}

func TestValidate_PerUserOnce(t *testing.T) {
	uc, repo := newPromoFixture()
	p := activePromo("REPEAT", domain.DiscountTypePercentage, 10)
	repo.add(p)
	repo.usedBy[key(p.ID, "u1")] = true

	res, err := uc.Validate(context.Background(), "u1", "REPEAT", cartWith(courseLine("c1", 100)))
	require.NoError(t, err)

	assert.False(t, res.Valid)
	assert.Equal(t, "You have already used this promo code", res.Message)

	// A different user is unaffected.
	res, err = uc.Validate(context.Background(), "u2", "REPEAT", cartWith(courseLine("c1", 100)))
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestValidate_AllowMultipleUsesSkipsPerUserCheck(t *testing.T) {
	uc, repo := newPromoFixture()
	p := activePromo("MULTI", domain.DiscountTypePercentage, 10)
	p.AllowMultipleUses = true
	repo.add(p)
	repo.usedBy[key(p.ID, "u1")] = true

	res, err := uc.Validate(context.Background(), "u1", "MULTI", cartWith(courseLine("c1", 100)))
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestValidate_MinOrderAmount(t *testing.T) {
	uc, repo := newPromoFixture()
	p := activePromo("BIG", domain.DiscountTypePercentage, 10)
	p.MinOrderAmount = 500
	repo.add(p)

	res, err := uc.Validate(context.Background(), "u1", "BIG", cartWith(courseLine("c1", 100)))
	require.NoError(t, err)

	assert.False(t, res.Valid)
	assert.Contains(t, res.Message, "500.00")
}

func TestValidate_ApplicabilityGate(t *testing.T) {
	uc, repo := newPromoFixture()
	p := activePromo("BUNDLES", domain.DiscountTypePercentage, 10)
	p.ApplicableTo = domain.ApplicableToBundles
	repo.add(p)

	// Cart with only courses: rejected.
	res, err := uc.Validate(context.Background(), "u1", "BUNDLES", cartWith(courseLine("c1", 100)))
	require.NoError(t, err)
	assert.False(t, res.Valid)

	// One eligible bundle unlocks the discount on the whole subtotal.
	res, err = uc.Validate(context.Background(), "u1", "BUNDLES", cartWith(courseLine("c1", 100), bundleLine("b1", 200)))
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, 30.0, res.DiscountAmount)
}

func TestValidate_SpecificItemsGate(t *testing.T) {
	uc, repo := newPromoFixture()
	p := activePromo("TARGETED", domain.DiscountTypeFixed, 50)
	p.SpecificItems = []string{"c2"}
	repo.add(p)

	res, err := uc.Validate(context.Background(), "u1", "TARGETED", cartWith(courseLine("c1", 100)))
	require.NoError(t, err)
	assert.False(t, res.Valid)

	res, err = uc.Validate(context.Background(), "u1", "TARGETED", cartWith(courseLine("c1", 100), courseLine("c2", 100)))
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, 50.0, res.DiscountAmount)
}

func TestValidate_PercentageClampedByMaxDiscount(t *testing.T) {
	uc, repo := newPromoFixture()
	p := activePromo("HALF", domain.DiscountTypePercentage, 50)
	maxAmount := 100.0
	p.MaxDiscountAmount = &maxAmount
	repo.add(p)

	res, err := uc.Validate(context.Background(), "u1", "HALF", cartWith(courseLine("c1", 1000)))
	require.NoError(t, err)

	assert.True(t, res.Valid)
	assert.Equal(t, 100.0, res.DiscountAmount)
	assert.Equal(t, 900.0, res.NewTotal)
}

func TestValidate_FixedDiscountClampedToSubtotal(t *testing.T) {
	uc, repo := newPromoFixture()
	repo.add(activePromo("MEGA", domain.DiscountTypeFixed, 500))

	res, err := uc.Validate(context.Background(), "u1", "MEGA", cartWith(courseLine("c1", 80)))
	require.NoError(t, err)

	assert.True(t, res.Valid)
	assert.Equal(t, 80.0, res.DiscountAmount)
	assert.Equal(t, 0.0, res.NewTotal)
}

func TestValidate_EmptyCart(t *testing.T) {
	uc, repo := newPromoFixture()
	repo.add(activePromo("SAVE", domain.DiscountTypePercentage, 10))

	res, err := uc.Validate(context.Background(), "u1", "SAVE", cartWith())
	require.NoError(t, err)
	assert.False(t, res.Valid)
}

func TestValidate_RoundsToCents(t *testing.T) {
	uc, repo := newPromoFixture()
	repo.add(activePromo("THIRD", domain.DiscountTypePercentage, 33.33))

	res, err := uc.Validate(context.Background(), "u1", "THIRD", cartWith(courseLine("c1", 99.99)))
	require.NoError(t, err)

	require.True(t, res.Valid)
	assert.Equal(t, 33.33, res.DiscountAmount)
	assert.Equal(t, 66.66, res.NewTotal)
}

func TestCreatePromo_RejectsDuplicates(t *testing.T) {
	uc, repo := newPromoFixture()
	repo.add(activePromo("TAKEN", domain.DiscountTypePercentage, 10))

	_, err := uc.CreatePromo(context.Background(), usecase.PromoCodeRequest{
		Code:          "taken",
		DiscountType:  domain.DiscountTypePercentage,
		DiscountValue: 15,
		IsActive:      true,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestCreatePromo_RejectsBadPercentage(t *testing.T) {
	uc, _ := newPromoFixture()

	_, err := uc.CreatePromo(context.Background(), usecase.PromoCodeRequest{
		Code:          "TOOMUCH",
		DiscountType:  domain.DiscountTypePercentage,
		DiscountValue: 150,
	})
	assert.Error(t, err)
}

func TestCreatePromo_UppercasesCode(t *testing.T) {
	uc, _ := newPromoFixture()

	promo, err := uc.CreatePromo(context.Background(), usecase.PromoCodeRequest{
		Code:          "lower",
		DiscountType:  domain.DiscountTypeFixed,
		DiscountValue: 20,
		IsActive:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, "LOWER", promo.Code)
}
