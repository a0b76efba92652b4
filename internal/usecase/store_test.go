package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fiscal-service/internal/domain"
	"fiscal-service/internal/provider/bank"
	"fiscal-service/internal/provider/fiscal"
)

// memStore is an in-memory stand-in for the pgx repositories. It enforces
// the same uniqueness invariants the schema does: (company_id, external_id)
// on payments and payment_id on receipts, atomically under one mutex, so
// the race-sensitive tests exercise the store contract rather than the
// application-level checks.
type memStore struct {
	mu          sync.Mutex
	companies   map[int64]*domain.Company
	payments    map[int64]*domain.Payment
	byExternal  map[string]int64
	receipts    map[int64]*domain.Receipt
	byPayment   map[int64]int64
	nextPayment int64
	nextReceipt int64
}

func newMemStore() *memStore {
	return &memStore{
		companies:  map[int64]*domain.Company{},
		payments:   map[int64]*domain.Payment{},
		byExternal: map[string]int64{},
		receipts:   map[int64]*domain.Receipt{},
		byPayment:  map[int64]int64{},
	}
}

func externalKey(companyID int64, externalID string) string {
	return fmt.Sprintf("%d|%s", companyID, externalID)
}

func (s *memStore) addCompany(c *domain.Company) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies[c.ID] = c
}

// --- CompanyRepository ---

func (s *memStore) GetByID(ctx context.Context, id int64) (*domain.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.companies[id]
	if !ok {
		return nil, fmt.Errorf("company %d: %w", id, domain.ErrCompanyNotFound)
	}
	cp := *c
	return &cp, nil
}

func (s *memStore) List(ctx context.Context) ([]*domain.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Company, 0, len(s.companies))
	for _, c := range s.companies {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

// --- PaymentRepository ---

type paymentStore struct{ *memStore }

func (s *memStore) paymentRepo() *paymentStore { return &paymentStore{s} }

func (s *paymentStore) Create(ctx context.Context, p *domain.Payment) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := externalKey(p.CompanyID, p.ExternalID)
	if _, exists := s.byExternal[key]; exists {
		return fmt.Errorf("payment %s: %w", p.ExternalID, domain.ErrPersistenceConflict)
	}

	s.nextPayment++
	p.ID = s.nextPayment
	p.CreatedAt = time.Now()
	cp := *p
	s.payments[p.ID] = &cp
	s.byExternal[key] = p.ID
	return nil
}

func (s *paymentStore) GetByID(ctx context.Context, id int64) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, fmt.Errorf("payment %d: %w", id, domain.ErrPaymentNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *paymentStore) GetByExternalID(ctx context.Context, companyID int64, externalID string) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byExternal[externalKey(companyID, externalID)]
	if !ok {
		return nil, fmt.Errorf("payment %s: %w", externalID, domain.ErrPaymentNotFound)
	}
	cp := *s.payments[id]
	return &cp, nil
}

func (s *paymentStore) ListByCompany(ctx context.Context, companyID int64, limit int) ([]*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Payment
	for _, p := range s.payments {
		if p.CompanyID == companyID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- ReceiptRepository ---

type receiptStore struct{ *memStore }

func (s *memStore) receiptRepo() *receiptStore { return &receiptStore{s} }

func (s *receiptStore) CreateIssued(ctx context.Context, rc *domain.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byPayment[rc.PaymentID]; exists {
		return fmt.Errorf("payment %d: %w", rc.PaymentID, domain.ErrAlreadyIssued)
	}
	p, ok := s.payments[rc.PaymentID]
	if !ok || p.ReceiptIssued {
		return fmt.Errorf("payment %d: %w", rc.PaymentID, domain.ErrPersistenceConflict)
	}

	s.nextReceipt++
	rc.ID = s.nextReceipt
	rc.CreatedAt = time.Now()
	cp := *rc
	s.receipts[rc.ID] = &cp
	s.byPayment[rc.PaymentID] = rc.ID

	p.ReceiptIssued = true
	id := rc.ID
	p.ReceiptID = &id
	return nil
}

func (s *receiptStore) GetByPaymentID(ctx context.Context, paymentID int64) (*domain.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byPayment[paymentID]
	if !ok {
		return nil, fmt.Errorf("receipt for payment %d: %w", paymentID, domain.ErrPaymentNotFound)
	}
	cp := *s.receipts[id]
	return &cp, nil
}

func (s *receiptStore) ListUnflagged(ctx context.Context) ([]*domain.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Receipt
	for _, rc := range s.receipts {
		if p, ok := s.payments[rc.PaymentID]; ok && !p.ReceiptIssued {
			cp := *rc
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *receiptStore) ReapplyFlag(ctx context.Context, rc *domain.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.payments[rc.PaymentID]; ok && !p.ReceiptIssued {
		p.ReceiptIssued = true
		id := rc.ID
		p.ReceiptID = &id
	}
	return nil
}

// --- external collaborators ---

type fakeBank struct {
	transactions []bank.Transaction
	err          error
	calls        int
}

func (f *fakeBank) ListTransactions(ctx context.Context, merchantID, token string, from, to time.Time) ([]bank.Transaction, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.transactions, nil
}

type fakeFiscal struct {
	mu       sync.Mutex
	resp     *fiscal.CreateReceiptResponse
	err      error
	calls    int
	lastReq  *fiscal.CreateReceiptRequest
	lastAuth fiscal.Credentials
}

func (f *fakeFiscal) CreateReceipt(ctx context.Context, creds fiscal.Credentials, req *fiscal.CreateReceiptRequest) (*fiscal.CreateReceiptResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastReq = req
	f.lastAuth = creds
	if f.err != nil {
		return nil, f.err
	}
	resp := *f.resp
	return &resp, nil
}
