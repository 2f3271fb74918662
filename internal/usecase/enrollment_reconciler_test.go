package usecase_test

import (
	"context"
	"testing"

	"edulearn-backend/internal/domain"
	"edulearn-backend/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile_RejectsNonCompletedPurchase(t *testing.T) {
	r := usecase.NewEnrollmentReconciler(newMockUserRepo(), newMockCatalogRepo(), newMockPromoRepo())

	err := r.Reconcile(context.Background(), &domain.Purchase{
		ID:     "p1",
		Status: domain.PurchaseStatusPending,
	})
	assert.Error(t, err)
}

func TestReconcile_RepeatRunsConverge(t *testing.T) {
	userRepo := newMockUserRepo()
	catalogRepo := newMockCatalogRepo()
	catalogRepo.bundleCourses["b1"] = []string{"c1", "c2"}
	r := usecase.NewEnrollmentReconciler(userRepo, catalogRepo, newMockPromoRepo())

	purchase := &domain.Purchase{
		ID:     "p1",
		UserID: "u1",
		Status: domain.PurchaseStatusCompleted,
		Items: []domain.PurchaseItem{
			{ItemID: "b1", ItemType: domain.ItemTypeBundle},
		},
	}

	require.NoError(t, r.Reconcile(context.Background(), purchase))
	require.NoError(t, r.Reconcile(context.Background(), purchase))

	assert.True(t, userRepo.ownedBundles[key("u1", "b1")])
	assert.True(t, userRepo.enrollments[key("u1", "c1")])
	assert.True(t, userRepo.enrollments[key("u1", "c2")])
}

func TestReconcile_DeletedPromoIsIgnored(t *testing.T) {
	userRepo := newMockUserRepo()
	promoRepo := newMockPromoRepo()
	r := usecase.NewEnrollmentReconciler(userRepo, newMockCatalogRepo(), promoRepo)

	gone := "GONE"
	purchase := &domain.Purchase{
		ID:           "p1",
		UserID:       "u1",
		Status:       domain.PurchaseStatusCompleted,
		AppliedPromo: &gone,
		Items: []domain.PurchaseItem{
			{ItemID: "c1", ItemType: domain.ItemTypeCourse},
		},
	}

	require.NoError(t, r.Reconcile(context.Background(), purchase))
	assert.Empty(t, promoRepo.usages)
}
