package usecase

import (
	"context"
	"fmt"

	"edulearn-backend/internal/domain"
	"edulearn-backend/pkg/logger"
	"edulearn-backend/pkg/utils"
)

// EnrollmentReconciler turns a completed purchase into access grants. Every
// step is idempotent, so the reconciler may be run any number of times for
// the same purchase (webhook, redirect landing and the background sweep can
// all get there first) and the result converges to the same state.
type EnrollmentReconciler struct {
	userRepo    domain.UserRepository
	catalogRepo domain.CatalogRepository
	promoRepo   domain.PromoRepository
}

func NewEnrollmentReconciler(userRepo domain.UserRepository, catalogRepo domain.CatalogRepository, promoRepo domain.PromoRepository) *EnrollmentReconciler {
	return &EnrollmentReconciler{
		userRepo:    userRepo,
		catalogRepo: catalogRepo,
		promoRepo:   promoRepo,
	}
}

// Reconcile grants every item on the purchase and records promo usage.
// Item failures are collected, not fatal: a later re-run picks up whatever
// this run could not finish.
func (r *EnrollmentReconciler) Reconcile(ctx context.Context, purchase *domain.Purchase) error {
	if purchase.Status != domain.PurchaseStatusCompleted {
		return fmt.Errorf("cannot reconcile purchase %s in status %s", purchase.ID, purchase.Status)
	}

	var firstErr error
	for _, item := range purchase.Items {
		var err error
		switch item.ItemType {
		case domain.ItemTypeBundle:
			err = r.grantBundle(ctx, purchase, item.ItemID)
		case domain.ItemTypeCourse:
			err = r.grantCourse(ctx, purchase, item.ItemID)
		default:
			err = fmt.Errorf("unknown item type %q", item.ItemType)
		}
		if err != nil {
			logger.WithContext(ctx).Error().Err(err).
				Str("purchase_id", purchase.ID).
				Str("item_id", item.ItemID).
				Str("item_type", item.ItemType).
				Msg("failed to grant purchase item")
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if purchase.AppliedPromo != nil && *purchase.AppliedPromo != "" {
		if err := r.recordPromoUsage(ctx, purchase); err != nil {
			logger.WithContext(ctx).Error().Err(err).
				Str("purchase_id", purchase.ID).
				Str("promo_code", *purchase.AppliedPromo).
				Msg("failed to record promo usage")
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

func (r *EnrollmentReconciler) grantCourse(ctx context.Context, purchase *domain.Purchase, courseID string) error {
	if err := r.userRepo.GrantCourse(ctx, purchase.UserID, courseID, purchase.ID); err != nil {
		return err
	}
	return r.userRepo.Enroll(ctx, purchase.UserID, courseID, &purchase.ID)
}

// grantBundle grants the bundle itself and then enrolls the user in each
// course it contains.
func (r *EnrollmentReconciler) grantBundle(ctx context.Context, purchase *domain.Purchase, bundleID string) error {
	if err := r.userRepo.GrantBundle(ctx, purchase.UserID, bundleID, purchase.ID); err != nil {
		return err
	}

	courseIDs, err := r.catalogRepo.GetBundleCourseIDs(ctx, bundleID)
	if err != nil {
		return fmt.Errorf("failed to resolve bundle courses: %w", err)
	}

	var firstErr error
	for _, courseID := range courseIDs {
		if err := r.userRepo.Enroll(ctx, purchase.UserID, courseID, &purchase.ID); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// recordPromoUsage appends the usage row keyed by (promo, purchase), so a
// reconciliation replay cannot double-count the redemption.
func (r *EnrollmentReconciler) recordPromoUsage(ctx context.Context, purchase *domain.Purchase) error {
	promo, err := r.promoRepo.GetByCode(ctx, *purchase.AppliedPromo)
	if err != nil {
		return err
	}
	if promo == nil {
		// Code deleted after checkout. The discount was already honored at
		// purchase time; nothing left to record.
		return nil
	}

	usage := &domain.PromoUsage{
		ID:             utils.GenerateUUID(),
		PromoCodeID:    promo.ID,
		UserID:         purchase.UserID,
		PurchaseID:     purchase.ID,
		DiscountAmount: purchase.DiscountAmount,
		OriginalAmount: purchase.OriginalAmount,
		FinalAmount:    purchase.Total,
	}
	return r.promoRepo.RecordUsage(ctx, usage, promo.SingleUseOnly)
}
