package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"edulearn-backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPurchaseRepo struct {
	domain.PurchaseRepository
	pending []domain.Purchase
	listErr error
	calls   int
}

func (s *stubPurchaseRepo) ListPendingInWindow(_ context.Context, _, _ time.Duration, _ int) ([]domain.Purchase, error) {
	s.calls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]domain.Purchase, len(s.pending))
	copy(out, s.pending)
	return out, nil
}

type stubResolver struct {
	mu       sync.Mutex
	resolved []string
	failFor  map[string]error
	block    chan struct{}
}

func (s *stubResolver) ReconcilePending(_ context.Context, p *domain.Purchase) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failFor[p.ID]; ok {
		return err
	}
	s.resolved = append(s.resolved, p.ID)
	p.Status = domain.PurchaseStatusCompleted
	return nil
}

func pendingPurchase(id string) domain.Purchase {
	return domain.Purchase{
		ID:              id,
		PaymentIntentID: "intent-" + id,
		Status:          domain.PurchaseStatusPending,
	}
}

func newSweeper(repo *stubPurchaseRepo, resolver *stubResolver) *PendingPaymentSweeper {
	return NewPendingPaymentSweeper(repo, resolver, time.Minute, 10*time.Minute, 24*time.Hour, 0, 50)
}

func TestRunOnce_ResolvesAllCandidates(t *testing.T) {
	repo := &stubPurchaseRepo{pending: []domain.Purchase{
		pendingPurchase("p1"),
		pendingPurchase("p2"),
		pendingPurchase("p3"),
	}}
	resolver := &stubResolver{}

	newSweeper(repo, resolver).RunOnce(context.Background())

	assert.Equal(t, []string{"p1", "p2", "p3"}, resolver.resolved)
}

func TestRunOnce_OneFailureDoesNotSinkBatch(t *testing.T) {
	repo := &stubPurchaseRepo{pending: []domain.Purchase{
		pendingPurchase("p1"),
		pendingPurchase("bad"),
		pendingPurchase("p3"),
	}}
	resolver := &stubResolver{failFor: map[string]error{"bad": errors.New("inquiry failed")}}

	newSweeper(repo, resolver).RunOnce(context.Background())

	// The record after the failing one is still processed.
	assert.Equal(t, []string{"p1", "p3"}, resolver.resolved)
}

func TestRunOnce_SkipsWhenSweepInFlight(t *testing.T) {
	repo := &stubPurchaseRepo{pending: []domain.Purchase{pendingPurchase("p1")}}
	resolver := &stubResolver{block: make(chan struct{})}
	sweeper := newSweeper(repo, resolver)

	done := make(chan struct{})
	go func() {
		sweeper.RunOnce(context.Background())
		close(done)
	}()

	// Wait for the first sweep to reach the resolver, then tick again.
	require.Eventually(t, func() bool { return repo.calls == 1 }, time.Second, time.Millisecond)
	sweeper.RunOnce(context.Background())
	assert.Equal(t, 1, repo.calls, "overlapping sweep must be skipped")

	close(resolver.block)
	<-done
}

func TestRunOnce_ListErrorAborts(t *testing.T) {
	repo := &stubPurchaseRepo{listErr: errors.New("db down")}
	resolver := &stubResolver{}

	newSweeper(repo, resolver).RunOnce(context.Background())

	assert.Empty(t, resolver.resolved)
}

func TestRunOnce_ContextCancelStopsBatch(t *testing.T) {
	repo := &stubPurchaseRepo{pending: []domain.Purchase{
		pendingPurchase("p1"),
		pendingPurchase("p2"),
	}}
	resolver := &stubResolver{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	newSweeper(repo, resolver).RunOnce(ctx)

	assert.Empty(t, resolver.resolved)
}
