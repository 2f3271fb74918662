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

func publishedCourse(id string, price, discount float64) *domain.Course {
	return &domain.Course{
		ID:              id,
		Title:           "Course " + id,
		Price:           price,
		DiscountPercent: discount,
		Status:          domain.CatalogStatusPublished,
		IsActive:        true,
	}
}

func publishedBundle(id string, price float64) *domain.Bundle {
	return &domain.Bundle{
		ID:       id,
		Title:    "Bundle " + id,
		Price:    price,
		Status:   domain.CatalogStatusPublished,
		IsActive: true,
	}
}

func newCartFixture() (*usecase.CartUsecase, *mockCartRepo, *mockCatalogRepo, *mockUserRepo) {
	cartRepo := newMockCartRepo()
	catalogRepo := newMockCatalogRepo()
	userRepo := newMockUserRepo()
	uc := usecase.NewCartUsecase(cartRepo, catalogRepo, userRepo, nil, time.Minute, 3)
	return uc, cartRepo, catalogRepo, userRepo
}

func TestGetMyCart_PrunesMissingItems(t *testing.T) {
	uc, cartRepo, catalogRepo, _ := newCartFixture()
	ctx := context.Background()

	catalogRepo.courses["c1"] = publishedCourse("c1", 100, 0)
	cartRepo.refs["u1"] = []domain.CartRef{
		{ItemID: "c1", ItemType: domain.ItemTypeCourse},
		{ItemID: "gone", ItemType: domain.ItemTypeCourse},
	}

	cart, err := uc.GetMyCart(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, 1, cart.Count())
	assert.Equal(t, "c1", cart.Items[0].ItemID)
	// The stored cart was rewritten without the dead reference.
	assert.Equal(t, 1, cartRepo.replaceCalls)
	assert.Len(t, cartRepo.refs["u1"], 1)
}

func TestGetMyCart_PrunesUnpublishedAndInactive(t *testing.T) {
	uc, cartRepo, catalogRepo, _ := newCartFixture()
	ctx := context.Background()

	draft := publishedCourse("draft", 50, 0)
	draft.Status = domain.CatalogStatusDraft
	inactive := publishedCourse("inactive", 50, 0)
	inactive.IsActive = false
	catalogRepo.courses["draft"] = draft
	catalogRepo.courses["inactive"] = inactive
	catalogRepo.courses["ok"] = publishedCourse("ok", 50, 0)

	cartRepo.refs["u1"] = []domain.CartRef{
		{ItemID: "draft", ItemType: domain.ItemTypeCourse},
		{ItemID: "inactive", ItemType: domain.ItemTypeCourse},
		{ItemID: "ok", ItemType: domain.ItemTypeCourse},
	}

	cart, err := uc.GetMyCart(ctx, "u1")
	require.NoError(t, err)

	require.Equal(t, 1, cart.Count())
	assert.Equal(t, "ok", cart.Items[0].ItemID)
}

func TestGetMyCart_PrunesAlreadyOwned(t *testing.T) {
	uc, cartRepo, catalogRepo, userRepo := newCartFixture()
	ctx := context.Background()

	catalogRepo.courses["c1"] = publishedCourse("c1", 100, 0)
	userRepo.ownedCourses[key("u1", "c1")] = true
	cartRepo.refs["u1"] = []domain.CartRef{{ItemID: "c1", ItemType: domain.ItemTypeCourse}}

	cart, err := uc.GetMyCart(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, 0, cart.Count())
	assert.Equal(t, float64(0), cart.Total)
}

func TestGetMyCart_RepricesFromLiveCatalog(t *testing.T) {
	uc, cartRepo, catalogRepo, _ := newCartFixture()
	ctx := context.Background()

	catalogRepo.courses["c1"] = publishedCourse("c1", 200, 25)
	catalogRepo.bundles["b1"] = publishedBundle("b1", 300)
	cartRepo.refs["u1"] = []domain.CartRef{
		{ItemID: "c1", ItemType: domain.ItemTypeCourse},
		{ItemID: "b1", ItemType: domain.ItemTypeBundle},
	}

	cart, err := uc.GetMyCart(ctx, "u1")
	require.NoError(t, err)

	require.Equal(t, 2, cart.Count())
	assert.Equal(t, 150.0, cart.Items[0].FinalPrice) // 200 at 25% off
	assert.Equal(t, 300.0, cart.Items[1].FinalPrice)
	assert.Equal(t, 450.0, cart.Subtotal)
	assert.Equal(t, cart.Subtotal, cart.Total)
	// Nothing was pruned: no rewrite.
	assert.Equal(t, 0, cartRepo.replaceCalls)
}

func TestAddToCart_RejectsAlreadyOwned(t *testing.T) {
	uc, _, catalogRepo, userRepo := newCartFixture()
	ctx := context.Background()

	catalogRepo.courses["c1"] = publishedCourse("c1", 100, 0)
	userRepo.ownedCourses[key("u1", "c1")] = true

	_, err := uc.AddToCart(ctx, "u1", "c1", domain.ItemTypeCourse)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already purchased")
}

func TestAddToCart_RejectsUnknownItem(t *testing.T) {
	uc, _, _, _ := newCartFixture()

	_, err := uc.AddToCart(context.Background(), "u1", "nope", domain.ItemTypeCourse)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestAddToCart_RejectsBadItemType(t *testing.T) {
	uc, _, _, _ := newCartFixture()

	_, err := uc.AddToCart(context.Background(), "u1", "c1", "subscription")
	assert.Error(t, err)
}

func TestAddToCart_EnforcesMaxSize(t *testing.T) {
	uc, cartRepo, catalogRepo, _ := newCartFixture() // max size 3
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d"} {
		catalogRepo.courses[id] = publishedCourse(id, 10, 0)
	}
	cartRepo.refs["u1"] = []domain.CartRef{
		{ItemID: "a", ItemType: domain.ItemTypeCourse},
		{ItemID: "b", ItemType: domain.ItemTypeCourse},
		{ItemID: "c", ItemType: domain.ItemTypeCourse},
	}

	_, err := uc.AddToCart(ctx, "u1", "d", domain.ItemTypeCourse)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cart is full")
}

func TestRemoveFromCart(t *testing.T) {
	uc, cartRepo, catalogRepo, _ := newCartFixture()
	ctx := context.Background()

	catalogRepo.courses["c1"] = publishedCourse("c1", 100, 0)
	catalogRepo.courses["c2"] = publishedCourse("c2", 100, 0)
	cartRepo.refs["u1"] = []domain.CartRef{
		{ItemID: "c1", ItemType: domain.ItemTypeCourse},
		{ItemID: "c2", ItemType: domain.ItemTypeCourse},
	}

	cart, err := uc.RemoveFromCart(ctx, "u1", "c1")
	require.NoError(t, err)

	require.Equal(t, 1, cart.Count())
	assert.Equal(t, "c2", cart.Items[0].ItemID)
}
