package usecase_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"edulearn-backend/internal/domain"
)

// In-memory fakes for the repository and gateway boundaries. Each fake
// keeps just enough state to observe the behavior under test.

// --- Cart ---

type mockCartRepo struct {
	mu           sync.Mutex
	refs         map[string][]domain.CartRef
	replaceCalls int
	clearCalls   int
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{refs: make(map[string][]domain.CartRef)}
}

func (m *mockCartRepo) GetRefs(_ context.Context, userID string) ([]domain.CartRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refs[userID], nil
}

func (m *mockCartRepo) AddRef(_ context.Context, userID string, ref domain.CartRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.refs[userID] {
		if r.ItemID == ref.ItemID {
			return nil
		}
	}
	m.refs[userID] = append(m.refs[userID], ref)
	return nil
}

func (m *mockCartRepo) RemoveRef(_ context.Context, userID, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.refs[userID][:0]
	for _, r := range m.refs[userID] {
		if r.ItemID != itemID {
			kept = append(kept, r)
		}
	}
	m.refs[userID] = kept
	return nil
}

func (m *mockCartRepo) Replace(_ context.Context, userID string, refs []domain.CartRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaceCalls++
	m.refs[userID] = refs
	return nil
}

func (m *mockCartRepo) Clear(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearCalls++
	delete(m.refs, userID)
	return nil
}

// --- Catalog ---

type mockCatalogRepo struct {
	courses       map[string]*domain.Course
	bundles       map[string]*domain.Bundle
	bundleCourses map[string][]string
}

func newMockCatalogRepo() *mockCatalogRepo {
	return &mockCatalogRepo{
		courses:       make(map[string]*domain.Course),
		bundles:       make(map[string]*domain.Bundle),
		bundleCourses: make(map[string][]string),
	}
}

func (m *mockCatalogRepo) GetCourseByID(_ context.Context, id string) (*domain.Course, error) {
	return m.courses[id], nil
}

func (m *mockCatalogRepo) GetBundleByID(_ context.Context, id string) (*domain.Bundle, error) {
	return m.bundles[id], nil
}

func (m *mockCatalogRepo) GetBundleCourseIDs(_ context.Context, bundleID string) ([]string, error) {
	return m.bundleCourses[bundleID], nil
}

// --- User / entitlements ---

type mockUserRepo struct {
	mu           sync.Mutex
	users        map[string]*domain.User
	ownedCourses map[string]bool // "user|course"
	ownedBundles map[string]bool // "user|bundle"
	enrollments  map[string]bool // "user|course"
	grantCalls   int
	enrollCalls  int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		users:        make(map[string]*domain.User),
		ownedCourses: make(map[string]bool),
		ownedBundles: make(map[string]bool),
		enrollments:  make(map[string]bool),
	}
}

func key(a, b string) string { return a + "|" + b }

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id], nil
}

func (m *mockUserRepo) HasAccessToCourse(_ context.Context, userID, courseID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ownedCourses[key(userID, courseID)], nil
}

func (m *mockUserRepo) HasPurchasedBundle(_ context.Context, userID, bundleID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ownedBundles[key(userID, bundleID)], nil
}

func (m *mockUserRepo) IsEnrolled(_ context.Context, userID, courseID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enrollments[key(userID, courseID)], nil
}

func (m *mockUserRepo) GrantCourse(_ context.Context, userID, courseID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grantCalls++
	m.ownedCourses[key(userID, courseID)] = true
	return nil
}

func (m *mockUserRepo) GrantBundle(_ context.Context, userID, bundleID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grantCalls++
	m.ownedBundles[key(userID, bundleID)] = true
	return nil
}

func (m *mockUserRepo) Enroll(_ context.Context, userID, courseID string, _ *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enrollCalls++
	m.enrollments[key(userID, courseID)] = true
	return nil
}

// --- Promo ---

type mockPromoRepo struct {
	promos map[string]*domain.PromoCode // by code
	usages []domain.PromoUsage
	usedBy map[string]bool // "promoID|userID"
}

func newMockPromoRepo() *mockPromoRepo {
	return &mockPromoRepo{
		promos: make(map[string]*domain.PromoCode),
		usedBy: make(map[string]bool),
	}
}

func (m *mockPromoRepo) add(p *domain.PromoCode) { m.promos[strings.ToUpper(p.Code)] = p }

func (m *mockPromoRepo) Create(_ context.Context, p *domain.PromoCode) error {
	m.add(p)
	return nil
}

func (m *mockPromoRepo) GetByCode(_ context.Context, code string) (*domain.PromoCode, error) {
	return m.promos[strings.ToUpper(code)], nil
}

func (m *mockPromoRepo) GetByID(_ context.Context, id string) (*domain.PromoCode, error) {
	for _, p := range m.promos {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, nil
}

func (m *mockPromoRepo) List(_ context.Context, _, _ int) ([]domain.PromoCode, int64, error) {
	out := make([]domain.PromoCode, 0, len(m.promos))
	for _, p := range m.promos {
		out = append(out, *p)
	}
	return out, int64(len(out)), nil
}

func (m *mockPromoRepo) Update(_ context.Context, p *domain.PromoCode) error {
	m.add(p)
	return nil
}

func (m *mockPromoRepo) Delete(_ context.Context, id string) error {
	for code, p := range m.promos {
		if p.ID == id {
			delete(m.promos, code)
		}
	}
	return nil
}

func (m *mockPromoRepo) HasUserUsed(_ context.Context, promoID, userID string) (bool, error) {
	return m.usedBy[key(promoID, userID)], nil
}

func (m *mockPromoRepo) RecordUsage(_ context.Context, usage *domain.PromoUsage, singleUseOnly bool) error {
	for _, u := range m.usages {
		if u.PromoCodeID == usage.PromoCodeID && u.PurchaseID == usage.PurchaseID {
			return nil // already recorded
		}
	}
	m.usages = append(m.usages, *usage)
	m.usedBy[key(usage.PromoCodeID, usage.UserID)] = true
	for _, p := range m.promos {
		if p.ID == usage.PromoCodeID {
			p.CurrentUses++
			if singleUseOnly {
				uid := usage.UserID
				p.ConsumedBy = &uid
			}
		}
	}
	return nil
}

// --- Purchase ---

type mockPurchaseRepo struct {
	mu        sync.Mutex
	purchases map[string]*domain.Purchase
	pending   []domain.Purchase
}

func newMockPurchaseRepo() *mockPurchaseRepo {
	return &mockPurchaseRepo{purchases: make(map[string]*domain.Purchase)}
}

func (m *mockPurchaseRepo) Create(_ context.Context, p *domain.Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.purchases[p.ID] = &cp
	return nil
}

func (m *mockPurchaseRepo) GetByID(_ context.Context, id string) (*domain.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.purchases[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *mockPurchaseRepo) GetByIntentID(_ context.Context, intentID string) (*domain.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.purchases {
		if p.PaymentIntentID == intentID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockPurchaseRepo) GetByUserID(_ context.Context, userID string) ([]domain.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Purchase
	for _, p := range m.purchases {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockPurchaseRepo) GetAll(_ context.Context, _ domain.PurchaseFilter) ([]domain.Purchase, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Purchase
	for _, p := range m.purchases {
		out = append(out, *p)
	}
	return out, int64(len(out)), nil
}

func (m *mockPurchaseRepo) SetGatewayRefs(_ context.Context, id string, gatewayOrderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.purchases[id]; ok {
		p.GatewayOrderID = &gatewayOrderID
	}
	return nil
}

func (m *mockPurchaseRepo) ResolveIfPending(_ context.Context, id, status string, txnID *string, rawPayload []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.purchases[id]
	if !ok || p.Status != domain.PurchaseStatusPending {
		return false, nil
	}
	p.Status = status
	p.PaymentStatus = status
	if txnID != nil {
		p.GatewayTxnID = txnID
	}
	if rawPayload != nil {
		p.GatewayResponse = rawPayload
	}
	p.UpdatedAt = time.Now()
	return true, nil
}

func (m *mockPurchaseRepo) MarkInvoiceNotified(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.purchases[id]
	if !ok || p.InvoiceNotified {
		return false, nil
	}
	p.InvoiceNotified = true
	return true, nil
}

func (m *mockPurchaseRepo) ListPendingInWindow(_ context.Context, _, _ time.Duration, _ int) ([]domain.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Purchase, len(m.pending))
	copy(out, m.pending)
	return out, nil
}

// --- Gateway ---

type mockGateway struct {
	session       *domain.PaymentSession
	sessionErr    error
	inquiryResult *domain.CallbackResult
	inquiryErr    error
	sessionCalls  int
	inquiryCalls  int
}

func (m *mockGateway) CreatePaymentSession(_ context.Context, _ domain.PaymentOrder, _ domain.BillingDetails, _ string) (*domain.PaymentSession, error) {
	m.sessionCalls++
	if m.sessionErr != nil {
		return nil, m.sessionErr
	}
	return m.session, nil
}

func (m *mockGateway) InquireTransaction(_ context.Context, merchantOrderID string) (*domain.CallbackResult, error) {
	m.inquiryCalls++
	if m.inquiryErr != nil {
		return nil, m.inquiryErr
	}
	res := *m.inquiryResult
	res.MerchantOrderID = merchantOrderID
	return &res, nil
}

// --- Cross-cutting collaborators ---

type mockTxManager struct{}

func (mockTxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockNotifier struct {
	mu   sync.Mutex
	sent int
}

func (m *mockNotifier) SendPurchaseInvoice(_ string, _ *domain.Purchase) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent++
}

func (m *mockNotifier) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent
}

type mockArchiver struct{ archived [][]byte }

func (m *mockArchiver) ArchivePayload(_ context.Context, _ string, payload []byte) {
	m.archived = append(m.archived, payload)
}
