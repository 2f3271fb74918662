package jobs

import (
	"context"
	"sync"
	"time"

	"edulearn-backend/internal/domain"
	"edulearn-backend/pkg/logger"
)

// PendingResolver re-checks one pending purchase against the gateway and
// applies the verdict. Satisfied by usecase.CheckoutUsecase.
type PendingResolver interface {
	ReconcilePending(ctx context.Context, purchase *domain.Purchase) error
}

// PendingPaymentSweeper periodically re-queries the gateway for purchases
// stuck in pending. It is the safety net behind the webhook: a purchase
// whose callback was lost still resolves within one sweep interval.
//
// Candidates are bounded by an age window. The lower bound leaves the
// webhook time to arrive on its own; the upper bound stops the sweep from
// hammering the gateway about purchases old enough to be dead.
type PendingPaymentSweeper struct {
	purchaseRepo domain.PurchaseRepository
	resolver     PendingResolver

	interval time.Duration
	minAge   time.Duration
	maxAge   time.Duration
	throttle time.Duration
	batch    int

	mu      sync.Mutex
	running bool
}

func NewPendingPaymentSweeper(purchaseRepo domain.PurchaseRepository, resolver PendingResolver, interval, minAge, maxAge, throttle time.Duration, batch int) *PendingPaymentSweeper {
	if batch <= 0 {
		batch = 50
	}
	return &PendingPaymentSweeper{
		purchaseRepo: purchaseRepo,
		resolver:     resolver,
		interval:     interval,
		minAge:       minAge,
		maxAge:       maxAge,
		throttle:     throttle,
		batch:        batch,
	}
}

// Start runs the sweep loop until ctx is cancelled. Call in a goroutine.
func (s *PendingPaymentSweeper) Start(ctx context.Context) {
	logger.Get().Info().
		Dur("interval", s.interval).
		Dur("min_age", s.minAge).
		Dur("max_age", s.maxAge).
		Int("batch", s.batch).
		Msg("pending payment sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Get().Info().Msg("pending payment sweeper stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep. If a previous sweep is still in flight
// the call returns immediately; overlapping sweeps would only duplicate
// gateway traffic since the resolution itself is race-safe.
func (s *PendingPaymentSweeper) RunOnce(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		logger.Get().Warn().Msg("pending payment sweep still running, skipping tick")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.sweep(ctx)
}

func (s *PendingPaymentSweeper) sweep(ctx context.Context) {
	log := logger.Get()

	pending, err := s.purchaseRepo.ListPendingInWindow(ctx, s.minAge, s.maxAge, s.batch)
	if err != nil {
		log.Error().Err(err).Msg("failed to list pending purchases")
		return
	}
	if len(pending) == 0 {
		return
	}

	log.Info().Int("count", len(pending)).Msg("sweeping pending purchases")

	resolved := 0
	for i := range pending {
		if ctx.Err() != nil {
			return
		}

		p := pending[i]
		if err := s.resolver.ReconcilePending(ctx, &p); err != nil {
			// One bad record must not sink the batch.
			log.Error().Err(err).
				Str("purchase_id", p.ID).
				Str("intent_id", p.PaymentIntentID).
				Msg("failed to reconcile pending purchase")
		} else if p.Terminal() {
			resolved++
		}

		if s.throttle > 0 && i < len(pending)-1 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.throttle):
			}
		}
	}

	log.Info().Int("checked", len(pending)).Int("resolved", resolved).Msg("pending payment sweep finished")
}
