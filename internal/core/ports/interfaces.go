// Package ports defines the interfaces (ports) for the donation payment service.
// These are contracts that adapters must implement.
package ports

import (
	"context"

	"github.com/sukruthakeralam/donation-payments/internal/core/domain"
)

// PhonePeGateway talks to the PhonePe checkout API.
type PhonePeGateway interface {
	// CreatePayment creates a checkout order and returns the hosted-page redirect URL.
	CreatePayment(ctx context.Context, order domain.PhonePeOrder) (*domain.PhonePePayment, error)

	// GetOrderStatus polls the order and returns it in canonical form.
	GetOrderStatus(ctx context.Context, orderID string) (*domain.GatewayResponse, error)
}

// SBIePayGateway talks to the SBIePay aggregator-hosted flow.
type SBIePayGateway interface {
	// CreatePayment builds the encrypted form payload. No network call is made.
	CreatePayment(orderID string, amount float64, customerID string) (*domain.SBIePayForm, error)

	// HandleResponse decrypts a redirect or push callback packet.
	HandleResponse(encrypted string) (*domain.GatewayResponse, error)

	// VerifyTransaction runs the plaintext double verification query.
	// At least one of referenceID and orderID must be set.
	VerifyTransaction(ctx context.Context, referenceID, orderID string, amount float64) (*domain.GatewayResponse, error)
}

// OrderTx is a unit of work scoped to one merchant order id.
// Reads return the state as locked by the transaction.
type OrderTx interface {
	PaymentLog(ctx context.Context) (*domain.PaymentLog, error)
	// Donation returns domain.ErrNotFound when no donation references the order.
	Donation(ctx context.Context) (*domain.Donation, error)
	SavePaymentLog(ctx context.Context, log *domain.PaymentLog) error
	SaveDonation(ctx context.Context, donation *domain.Donation) error
}

// PaymentStore persists payment logs and donations.
type PaymentStore interface {
	// CreateOrder stores a new payment log and its donation in one transaction.
	// Returns domain.ErrDuplicateOrder on an order id clash; nothing is stored then.
	CreateOrder(ctx context.Context, log *domain.PaymentLog, donation *domain.Donation) error

	// GetPaymentLog loads a payment log by merchant order id.
	GetPaymentLog(ctx context.Context, orderID string) (*domain.PaymentLog, error)

	// GetDonation loads a donation by order id.
	GetDonation(ctx context.Context, orderID string) (*domain.Donation, error)

	// WithinOrder runs fn in one transaction that holds the order's payment log locked.
	// fn's writes either all commit or none do.
	WithinOrder(ctx context.Context, orderID string, fn func(tx OrderTx) error) error

	// RecordCallback persists a gateway callback record.
	RecordCallback(ctx context.Context, record *domain.CallbackRecord) error

	// SaveEmailLog inserts or updates an e-mail log.
	SaveEmailLog(ctx context.Context, log *domain.EmailLog) error
}

// Notifier dispatches the donation thank-you message.
type Notifier interface {
	SendThankYou(ctx context.Context, donationID, recipientEmail string, data domain.ThankYouContext) (*domain.DeliveryResult, error)
}
