package usecase

import (
	"context"
	"fmt"
	"time"

	"edulearn-backend/internal/domain"
	"edulearn-backend/pkg/cache"
	"edulearn-backend/pkg/logger"
	"edulearn-backend/pkg/utils"
)

// CartUsecase owns the stored cart and its revalidation. Stored cart lines
// are only references (item id + type); every read resolves them against
// the live catalog, drops the ones that no longer qualify, reprices the
// rest, and writes the pruned set back so the stored cart converges to a
// valid state on its own.
type CartUsecase struct {
	cartRepo    domain.CartRepository
	catalogRepo domain.CatalogRepository
	userRepo    domain.UserRepository
	cache       cache.CacheService
	cacheTTL    time.Duration
	maxCartSize int
}

func NewCartUsecase(cartRepo domain.CartRepository, catalogRepo domain.CatalogRepository, userRepo domain.UserRepository, cacheSvc cache.CacheService, cacheTTL time.Duration, maxCartSize int) *CartUsecase {
	if maxCartSize <= 0 {
		maxCartSize = 50
	}
	return &CartUsecase{
		cartRepo:    cartRepo,
		catalogRepo: catalogRepo,
		userRepo:    userRepo,
		cache:       cacheSvc,
		cacheTTL:    cacheTTL,
		maxCartSize: maxCartSize,
	}
}

// GetMyCart returns the validated, freshly priced cart.
func (u *CartUsecase) GetMyCart(ctx context.Context, userID string) (*domain.Cart, error) {
	refs, err := u.cartRepo.GetRefs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return u.validate(ctx, userID, refs)
}

// AddToCart validates the item against the live catalog and the user's
// existing entitlements before storing the reference. The returned cart is
// the validated view including the new line.
func (u *CartUsecase) AddToCart(ctx context.Context, userID, itemID, itemType string) (*domain.Cart, error) {
	if itemType != domain.ItemTypeCourse && itemType != domain.ItemTypeBundle {
		return nil, fmt.Errorf("itemType must be 'course' or 'bundle'")
	}

	refs, err := u.cartRepo.GetRefs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if len(refs) >= u.maxCartSize {
		return nil, fmt.Errorf("cart is full (max %d items)", u.maxCartSize)
	}

	line, err := u.resolveLine(ctx, domain.CartRef{ItemID: itemID, ItemType: itemType, AddedAt: time.Now()})
	if err != nil {
		return nil, err
	}
	if line == nil {
		return nil, fmt.Errorf("item not found or not available for purchase")
	}

	owned, err := u.alreadyOwned(ctx, userID, itemID, itemType)
	if err != nil {
		return nil, err
	}
	if owned {
		return nil, fmt.Errorf("you have already purchased this item")
	}

	if err := u.cartRepo.AddRef(ctx, userID, domain.CartRef{ItemID: itemID, ItemType: itemType, AddedAt: time.Now()}); err != nil {
		return nil, fmt.Errorf("failed to add item to cart: %w", err)
	}

	return u.GetMyCart(ctx, userID)
}

func (u *CartUsecase) RemoveFromCart(ctx context.Context, userID, itemID string) (*domain.Cart, error) {
	if err := u.cartRepo.RemoveRef(ctx, userID, itemID); err != nil {
		return nil, fmt.Errorf("failed to remove item from cart: %w", err)
	}
	return u.GetMyCart(ctx, userID)
}

func (u *CartUsecase) ClearCart(ctx context.Context, userID string) error {
	return u.cartRepo.Clear(ctx, userID)
}

// validate resolves stored refs against the catalog and ownership, prices
// the survivors, and persists the pruned set when anything was dropped.
func (u *CartUsecase) validate(ctx context.Context, userID string, refs []domain.CartRef) (*domain.Cart, error) {
	cart := &domain.Cart{UserID: userID, Items: []domain.CartLine{}}
	kept := make([]domain.CartRef, 0, len(refs))
	pruned := 0

	for _, ref := range refs {
		line, err := u.resolveLine(ctx, ref)
		if err != nil {
			return nil, err
		}
		if line == nil {
			pruned++
			continue
		}

		owned, err := u.alreadyOwned(ctx, userID, ref.ItemID, ref.ItemType)
		if err != nil {
			return nil, err
		}
		if owned {
			pruned++
			continue
		}

		cart.Items = append(cart.Items, *line)
		kept = append(kept, ref)
		cart.Subtotal += line.FinalPrice
	}

	cart.Subtotal = utils.Round2(cart.Subtotal)
	cart.Total = cart.Subtotal

	if pruned > 0 {
		// Self-heal: write the surviving refs back so stale lines do not
		// keep reappearing on every read.
		if err := u.cartRepo.Replace(ctx, userID, kept); err != nil {
			logger.WithContext(ctx).Error().Err(err).Str("user_id", userID).Msg("failed to persist pruned cart")
		} else {
			logger.WithContext(ctx).Info().Str("user_id", userID).Int("pruned", pruned).Msg("cart pruned on read")
		}
	}

	return cart, nil
}

// resolveLine prices one reference from the live catalog. Returns nil when
// the item is gone or not purchasable.
func (u *CartUsecase) resolveLine(ctx context.Context, ref domain.CartRef) (*domain.CartLine, error) {
	switch ref.ItemType {
	case domain.ItemTypeCourse:
		course, err := u.getCourse(ctx, ref.ItemID)
		if err != nil {
			return nil, err
		}
		if course == nil || !course.Purchasable() {
			return nil, nil
		}
		return &domain.CartLine{
			ItemID:          course.ID,
			ItemType:        domain.ItemTypeCourse,
			Title:           course.Title,
			OriginalPrice:   course.Price,
			DiscountPercent: course.DiscountPercent,
			FinalPrice:      utils.Round2(course.EffectivePrice()),
			Thumbnail:       course.Thumbnail,
			AddedAt:         ref.AddedAt,
		}, nil

	case domain.ItemTypeBundle:
		bundle, err := u.getBundle(ctx, ref.ItemID)
		if err != nil {
			return nil, err
		}
		if bundle == nil || !bundle.Purchasable() {
			return nil, nil
		}
		return &domain.CartLine{
			ItemID:          bundle.ID,
			ItemType:        domain.ItemTypeBundle,
			Title:           bundle.Title,
			OriginalPrice:   bundle.Price,
			DiscountPercent: bundle.DiscountPercent,
			FinalPrice:      utils.Round2(bundle.EffectivePrice()),
			Thumbnail:       bundle.Thumbnail,
			AddedAt:         ref.AddedAt,
		}, nil

	default:
		// Unknown type in storage: treat as stale, prune it.
		return nil, nil
	}
}

func (u *CartUsecase) alreadyOwned(ctx context.Context, userID, itemID, itemType string) (bool, error) {
	if itemType == domain.ItemTypeBundle {
		return u.userRepo.HasPurchasedBundle(ctx, userID, itemID)
	}
	return u.userRepo.HasAccessToCourse(ctx, userID, itemID)
}

// --- Catalog lookups (cached) ---
// Cached reads are acceptable here because pruning re-runs on every read;
// a briefly stale price self-corrects on the next request.

func (u *CartUsecase) getCourse(ctx context.Context, id string) (*domain.Course, error) {
	key := "catalog:course:" + id
	if u.cache != nil {
		if v, ok := u.cache.Get(key); ok {
			if c, ok := v.(*domain.Course); ok {
				return c, nil
			}
		}
	}
	course, err := u.catalogRepo.GetCourseByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.cache != nil && course != nil {
		u.cache.Set(key, course, u.cacheTTL)
	}
	return course, nil
}

func (u *CartUsecase) getBundle(ctx context.Context, id string) (*domain.Bundle, error) {
	key := "catalog:bundle:" + id
	if u.cache != nil {
		if v, ok := u.cache.Get(key); ok {
			if b, ok := v.(*domain.Bundle); ok {
				return b, nil
			}
		}
	}
	bundle, err := u.catalogRepo.GetBundleByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.cache != nil && bundle != nil {
		u.cache.Set(key, bundle, u.cacheTTL)
	}
	return bundle, nil
}
