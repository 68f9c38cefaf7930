// Package mongostore implements ports.PaymentStore on MongoDB.
// Multi-document transactions need a replica set or sharded cluster.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/sukruthakeralam/donation-payments/internal/core/domain"
	"github.com/sukruthakeralam/donation-payments/internal/core/ports"
)

const (
	paymentLogs = "payment_logs"
	donations   = "donations"
	callbacks   = "gateway_callbacks"
	emailLogs   = "email_logs"

	opTimeout = 5 * time.Second
)

// Connect opens a client and verifies the connection.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, err
	}

	log.Println("Connected to MongoDB")
	return client, nil
}

// Store implements ports.PaymentStore.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewStore creates a store on the named database.
func NewStore(client *mongo.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database)}
}

// EnsureIndexes creates the unique order id indexes the store relies on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		paymentLogs: {
			{Keys: bson.D{{Key: "merchant_order_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		donations: {
			{Keys: bson.D{{Key: "order_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		callbacks: {
			{Keys: bson.D{{Key: "merchant_order_id", Value: 1}, {Key: "received_at", Value: 1}}},
		},
		emailLogs: {
			{Keys: bson.D{{Key: "donation_id", Value: 1}}},
		},
	}

	for coll, models := range indexes {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			log.Printf("Failed to create indexes on %s: %v", coll, err)
			return fmt.Errorf("failed to create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return domain.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return domain.ErrDuplicateOrder
	default:
		return err
	}
}

func (s *Store) CreateDonation(ctx context.Context, d *domain.Donation) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := time.Now().UTC()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.CreatedAt, d.UpdatedAt = now, now

	_, err := s.db.Collection(donations).InsertOne(ctx, toDonationDoc(d))
	return translate(err)
}

func (s *Store) CreatePaymentLog(ctx context.Context, l *domain.PaymentLog) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := time.Now().UTC()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	l.CreatedAt, l.UpdatedAt = now, now

	_, err := s.db.Collection(paymentLogs).InsertOne(ctx, toPaymentLogDoc(l))
	return translate(err)
}

// CreateOrder inserts the payment log and donation in one multi-document transaction.
func (s *Store) CreateOrder(ctx context.Context, l *domain.PaymentLog, d *domain.Donation) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if err := s.CreatePaymentLog(sc, l); err != nil {
			return nil, err
		}
		return nil, s.CreateDonation(sc, d)
	})
	return err
}

func (s *Store) GetPaymentLog(ctx context.Context, orderID string) (*domain.PaymentLog, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var doc paymentLogDoc
	err := s.db.Collection(paymentLogs).FindOne(ctx, bson.M{"merchant_order_id": orderID}).Decode(&doc)
	if err != nil {
		return nil, translate(err)
	}
	return doc.toDomain(), nil
}

func (s *Store) GetDonation(ctx context.Context, orderID string) (*domain.Donation, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var doc donationDoc
	err := s.db.Collection(donations).FindOne(ctx, bson.M{"order_id": orderID}).Decode(&doc)
	if err != nil {
		return nil, translate(err)
	}
	return doc.toDomain(), nil
}

// WithinOrder runs fn in a multi-document transaction. Bumping lock_version on the
// payment log first makes concurrent transactions on the same order conflict;
// the driver retries the loser from the start.
func (s *Store) WithinOrder(ctx context.Context, orderID string, fn func(tx ports.OrderTx) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		var doc paymentLogDoc
		err := s.db.Collection(paymentLogs).FindOneAndUpdate(sc,
			bson.M{"merchant_order_id": orderID},
			bson.M{"$inc": bson.M{"lock_version": 1}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&doc)
		if err != nil {
			return nil, translate(err)
		}
		return nil, fn(&orderTx{store: s, sc: sc, orderID: orderID, log: &doc})
	})
	return err
}

func (s *Store) RecordCallback(ctx context.Context, r *domain.CallbackRecord) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.ReceivedAt.IsZero() {
		r.ReceivedAt = time.Now().UTC()
	}
	_, err := s.db.Collection(callbacks).InsertOne(ctx, callbackDoc{
		ID:              r.ID,
		Provider:        string(r.Provider),
		Source:          string(r.Source),
		MerchantOrderID: r.MerchantOrderID,
		Classification:  string(r.Classification),
		ErrorMessage:    r.ErrorMessage,
		PayloadLength:   r.PayloadLength,
		ReceivedAt:      r.ReceivedAt,
	})
	return err
}

func (s *Store) SaveEmailLog(ctx context.Context, e *domain.EmailLog) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := time.Now().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	_, err := s.db.Collection(emailLogs).ReplaceOne(ctx,
		bson.M{"_id": e.ID},
		emailLogDoc{
			ID:             e.ID,
			DonationID:     e.DonationID,
			RecipientEmail: e.RecipientEmail,
			MailType:       e.MailType,
			Subject:        e.Subject,
			Status:         e.Status,
			MessageID:      e.MessageID,
			ErrorMessage:   e.ErrorMessage,
			Context:        string(e.Context),
			CreatedAt:      e.CreatedAt,
			UpdatedAt:      e.UpdatedAt,
		},
		options.Replace().SetUpsert(true),
	)
	return err
}

type orderTx struct {
	store   *Store
	sc      mongo.SessionContext
	orderID string
	log     *paymentLogDoc
}

func (t *orderTx) PaymentLog(ctx context.Context) (*domain.PaymentLog, error) {
	return t.log.toDomain(), nil
}

func (t *orderTx) Donation(ctx context.Context) (*domain.Donation, error) {
	var doc donationDoc
	err := t.store.db.Collection(donations).FindOne(t.sc, bson.M{"order_id": t.orderID}).Decode(&doc)
	if err != nil {
		return nil, translate(err)
	}
	return doc.toDomain(), nil
}

func (t *orderTx) SavePaymentLog(ctx context.Context, l *domain.PaymentLog) error {
	if l.MerchantOrderID != t.orderID {
		return fmt.Errorf("%w: payment log %s is outside this transaction", domain.ErrInvalidRequest, l.MerchantOrderID)
	}
	l.UpdatedAt = time.Now().UTC()
	doc := toPaymentLogDoc(l)
	doc.ID = t.log.ID
	doc.LockVersion = t.log.LockVersion

	if _, err := t.store.db.Collection(paymentLogs).ReplaceOne(t.sc, bson.M{"_id": doc.ID}, doc); err != nil {
		return err
	}
	t.log = doc
	log.Printf("Updated payment log %s: status=%s", l.MerchantOrderID, l.Status)
	return nil
}

func (t *orderTx) SaveDonation(ctx context.Context, d *domain.Donation) error {
	if d.OrderID != t.orderID {
		return fmt.Errorf("%w: donation %s is outside this transaction", domain.ErrInvalidRequest, d.OrderID)
	}
	d.UpdatedAt = time.Now().UTC()
	_, err := t.store.db.Collection(donations).ReplaceOne(t.sc, bson.M{"_id": d.ID}, toDonationDoc(d))
	return err
}
