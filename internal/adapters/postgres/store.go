// Package postgres implements ports.PaymentStore on top of gorm.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sukruthakeralam/donation-payments/internal/core/domain"
	"github.com/sukruthakeralam/donation-payments/internal/core/ports"
)

// Open connects to PostgreSQL and migrates the schema.
func Open(dsn, logLevel string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:         NewGormLogger(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the payment tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&paymentLogModel{}, &donationModel{}, &callbackModel{}, &emailLogModel{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Store implements ports.PaymentStore.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new gorm-backed store. The db should be opened with TranslateError enabled.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return domain.ErrDuplicateOrder
	default:
		return err
	}
}

func (s *Store) CreateDonation(ctx context.Context, donation *domain.Donation) error {
	m := toDonationModel(donation)
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return translate(err)
	}
	donation.ID, donation.CreatedAt, donation.UpdatedAt = m.ID, m.CreatedAt, m.UpdatedAt
	return nil
}

func (s *Store) CreatePaymentLog(ctx context.Context, l *domain.PaymentLog) error {
	m := toPaymentLogModel(l)
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return translate(err)
	}
	l.ID, l.CreatedAt, l.UpdatedAt = m.ID, m.CreatedAt, m.UpdatedAt
	return nil
}

// CreateOrder inserts the payment log and donation together.
func (s *Store) CreateOrder(ctx context.Context, l *domain.PaymentLog, donation *domain.Donation) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ts := &Store{db: tx}
		if err := ts.CreatePaymentLog(ctx, l); err != nil {
			return err
		}
		return ts.CreateDonation(ctx, donation)
	})
}

func (s *Store) GetPaymentLog(ctx context.Context, orderID string) (*domain.PaymentLog, error) {
	var m paymentLogModel
	if err := s.db.WithContext(ctx).Where("merchant_order_id = ?", orderID).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return m.toDomain(), nil
}

func (s *Store) GetDonation(ctx context.Context, orderID string) (*domain.Donation, error) {
	var m donationModel
	if err := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return m.toDomain(), nil
}

// WithinOrder locks the order's payment log row (SELECT ... FOR UPDATE) for the life of fn.
func (s *Store) WithinOrder(ctx context.Context, orderID string, fn func(tx ports.OrderTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m paymentLogModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("merchant_order_id = ?", orderID).
			First(&m).Error
		if err != nil {
			return translate(err)
		}
		return fn(&orderTx{tx: tx, orderID: orderID, log: &m})
	})
}

func (s *Store) RecordCallback(ctx context.Context, record *domain.CallbackRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.ReceivedAt.IsZero() {
		record.ReceivedAt = time.Now()
	}
	m := &callbackModel{
		ID:              record.ID,
		Provider:        string(record.Provider),
		Source:          string(record.Source),
		MerchantOrderID: record.MerchantOrderID,
		Classification:  string(record.Classification),
		ErrorMessage:    record.ErrorMessage,
		PayloadLength:   record.PayloadLength,
		ReceivedAt:      record.ReceivedAt,
	}
	return s.db.WithContext(ctx).Create(m).Error
}

// ListCallbacks returns the callbacks recorded for an order, oldest first.
func (s *Store) ListCallbacks(ctx context.Context, orderID string) ([]domain.CallbackRecord, error) {
	var rows []callbackModel
	if err := s.db.WithContext(ctx).Where("merchant_order_id = ?", orderID).Order("received_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.CallbackRecord, 0, len(rows))
	for _, m := range rows {
		out = append(out, domain.CallbackRecord{
			ID:              m.ID,
			Provider:        domain.Provider(m.Provider),
			Source:          domain.CallbackSource(m.Source),
			MerchantOrderID: m.MerchantOrderID,
			Classification:  domain.CallbackClass(m.Classification),
			ErrorMessage:    m.ErrorMessage,
			PayloadLength:   m.PayloadLength,
			ReceivedAt:      m.ReceivedAt,
		})
	}
	return out, nil
}

func (s *Store) SaveEmailLog(ctx context.Context, e *domain.EmailLog) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	m := &emailLogModel{
		ID:             e.ID,
		DonationID:     e.DonationID,
		RecipientEmail: e.RecipientEmail,
		MailType:       e.MailType,
		Subject:        e.Subject,
		Status:         e.Status,
		MessageID:      e.MessageID,
		ErrorMessage:   e.ErrorMessage,
		Context:        jsonOrNil(e.Context),
		CreatedAt:      e.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	e.CreatedAt, e.UpdatedAt = m.CreatedAt, m.UpdatedAt
	return nil
}

// orderTx is the ports.OrderTx view of a locked payment log.
type orderTx struct {
	tx      *gorm.DB
	orderID string
	log     *paymentLogModel
}

func (t *orderTx) PaymentLog(ctx context.Context) (*domain.PaymentLog, error) {
	return t.log.toDomain(), nil
}

func (t *orderTx) Donation(ctx context.Context) (*domain.Donation, error) {
	var m donationModel
	err := t.tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ?", t.orderID).
		First(&m).Error
	if err != nil {
		return nil, translate(err)
	}
	return m.toDomain(), nil
}

func (t *orderTx) SavePaymentLog(ctx context.Context, l *domain.PaymentLog) error {
	if l.MerchantOrderID != t.orderID {
		return fmt.Errorf("%w: payment log %s is outside this transaction", domain.ErrInvalidRequest, l.MerchantOrderID)
	}
	m := toPaymentLogModel(l)
	m.ID = t.log.ID
	if err := t.tx.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	t.log = m
	l.UpdatedAt = m.UpdatedAt
	log.Printf("Updated payment log %s: status=%s", l.MerchantOrderID, l.Status)
	return nil
}

func (t *orderTx) SaveDonation(ctx context.Context, d *domain.Donation) error {
	if d.OrderID != t.orderID {
		return fmt.Errorf("%w: donation %s is outside this transaction", domain.ErrInvalidRequest, d.OrderID)
	}
	m := toDonationModel(d)
	if err := t.tx.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	d.UpdatedAt = m.UpdatedAt
	return nil
}
