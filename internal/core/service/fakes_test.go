package service

import (
	"context"
	"strconv"
	"sync"

	"github.com/sukruthakeralam/donation-payments/internal/core/domain"
	"github.com/sukruthakeralam/donation-payments/internal/core/ports"
)

// memoryStore is an in-memory PaymentStore. WithinOrder serialises per order
// and commits copies only when fn succeeds.
type memoryStore struct {
	mu        sync.Mutex
	locks     map[string]*sync.Mutex
	logs      map[string]domain.PaymentLog
	donations map[string]domain.Donation
	callbacks []domain.CallbackRecord
	emails    []domain.EmailLog
	seq       int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		locks:     map[string]*sync.Mutex{},
		logs:      map[string]domain.PaymentLog{},
		donations: map[string]domain.Donation{},
	}
}

func (s *memoryStore) nextID() string {
	s.seq++
	return "id-" + strconv.Itoa(s.seq)
}

func (s *memoryStore) CreateDonation(ctx context.Context, d *domain.Donation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.donations[d.OrderID]; ok {
		return domain.ErrDuplicateOrder
	}
	if d.ID == "" {
		d.ID = s.nextID()
	}
	s.donations[d.OrderID] = *d
	return nil
}

func (s *memoryStore) CreatePaymentLog(ctx context.Context, l *domain.PaymentLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.logs[l.MerchantOrderID]; ok {
		return domain.ErrDuplicateOrder
	}
	if l.ID == "" {
		l.ID = s.nextID()
	}
	s.logs[l.MerchantOrderID] = *l
	return nil
}

func (s *memoryStore) CreateOrder(ctx context.Context, l *domain.PaymentLog, d *domain.Donation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.logs[l.MerchantOrderID]; ok {
		return domain.ErrDuplicateOrder
	}
	if _, ok := s.donations[d.OrderID]; ok {
		return domain.ErrDuplicateOrder
	}
	if l.ID == "" {
		l.ID = s.nextID()
	}
	if d.ID == "" {
		d.ID = s.nextID()
	}
	s.logs[l.MerchantOrderID] = *l
	s.donations[d.OrderID] = *d
	return nil
}

func (s *memoryStore) GetPaymentLog(ctx context.Context, orderID string) (*domain.PaymentLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.logs[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &l, nil
}

func (s *memoryStore) GetDonation(ctx context.Context, orderID string) (*domain.Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.donations[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &d, nil
}

func (s *memoryStore) orderLock(orderID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[orderID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[orderID] = l
	}
	return l
}

func (s *memoryStore) WithinOrder(ctx context.Context, orderID string, fn func(tx ports.OrderTx) error) error {
	lock := s.orderLock(orderID)
	lock.Lock()
	defer lock.Unlock()

	tx := &memoryTx{store: s, orderID: orderID}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.log != nil {
		s.logs[orderID] = *tx.log
	}
	if tx.donation != nil {
		s.donations[orderID] = *tx.donation
	}
	return nil
}

func (s *memoryStore) RecordCallback(ctx context.Context, r *domain.CallbackRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, *r)
	return nil
}

func (s *memoryStore) SaveEmailLog(ctx context.Context, e *domain.EmailLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emails = append(s.emails, *e)
	return nil
}

type memoryTx struct {
	store    *memoryStore
	orderID  string
	log      *domain.PaymentLog
	donation *domain.Donation
}

func (t *memoryTx) PaymentLog(ctx context.Context) (*domain.PaymentLog, error) {
	l, err := t.store.GetPaymentLog(ctx, t.orderID)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (t *memoryTx) Donation(ctx context.Context) (*domain.Donation, error) {
	return t.store.GetDonation(ctx, t.orderID)
}

func (t *memoryTx) SavePaymentLog(ctx context.Context, l *domain.PaymentLog) error {
	if l.MerchantOrderID != t.orderID {
		return domain.ErrInvalidRequest
	}
	c := *l
	t.log = &c
	return nil
}

func (t *memoryTx) SaveDonation(ctx context.Context, d *domain.Donation) error {
	if d.OrderID != t.orderID {
		return domain.ErrInvalidRequest
	}
	c := *d
	t.donation = &c
	return nil
}

type mockPhonePe struct {
	CreatePaymentFunc  func(ctx context.Context, order domain.PhonePeOrder) (*domain.PhonePePayment, error)
	GetOrderStatusFunc func(ctx context.Context, orderID string) (*domain.GatewayResponse, error)

	mu          sync.Mutex
	statusCalls int
}

func (m *mockPhonePe) CreatePayment(ctx context.Context, order domain.PhonePeOrder) (*domain.PhonePePayment, error) {
	return m.CreatePaymentFunc(ctx, order)
}

func (m *mockPhonePe) GetOrderStatus(ctx context.Context, orderID string) (*domain.GatewayResponse, error) {
	m.mu.Lock()
	m.statusCalls++
	m.mu.Unlock()
	return m.GetOrderStatusFunc(ctx, orderID)
}

type mockNotifier struct {
	mu    sync.Mutex
	sent  []domain.ThankYouContext
	email []string
	err   error
}

func (m *mockNotifier) SendThankYou(ctx context.Context, donationID, recipient string, data domain.ThankYouContext) (*domain.DeliveryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, data)
	m.email = append(m.email, recipient)
	if m.err != nil {
		return &domain.DeliveryResult{Status: "failed", ErrorMessage: m.err.Error()}, m.err
	}
	return &domain.DeliveryResult{Status: "sent", MessageID: "msg-" + strconv.Itoa(len(m.sent))}, nil
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// seedOrder stores a pending donation and payment log for orderID.
func seedOrder(s *memoryStore, orderID string, provider domain.Provider, amount float64) {
	ctx := context.Background()
	_ = s.CreateDonation(ctx, &domain.Donation{
		OrderID:  orderID,
		FullName: "Asha Menon",
		Email:    "asha@example.org",
		Amount:   amount,
		Provider: provider,
		Status:   domain.DonationPending,
	})
	_ = s.CreatePaymentLog(ctx, &domain.PaymentLog{
		MerchantOrderID: orderID,
		Provider:        provider,
		Status:          domain.PaymentPending,
		Amount:          amount,
		Currency:        "INR",
	})
}
