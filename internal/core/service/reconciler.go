package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/sukruthakeralam/donation-payments/internal/core/domain"
	"github.com/sukruthakeralam/donation-payments/internal/core/ports"
)

// amountTolerance absorbs float rounding between rupee strings and stored amounts.
const amountTolerance = 0.005

// ReconcileResult is the committed state after a reconciliation.
type ReconcileResult struct {
	PaymentLog *domain.PaymentLog
	Donation   *domain.Donation // nil when no donation references the order
	Changed    bool
	Notified   bool
}

// Reconciler applies gateway reports to payment logs and donations.
// It is the only writer of Donation.Status.
type Reconciler struct {
	store    ports.PaymentStore
	notifier ports.Notifier
	branding Branding
	now      func() time.Time
}

// Branding is the organisation data placed in thank-you messages.
type Branding struct {
	OrganizationName string
	ContactEmail     string
}

// NewReconciler creates a new reconciler.
func NewReconciler(store ports.PaymentStore, notifier ports.Notifier, branding Branding) *Reconciler {
	return &Reconciler{
		store:    store,
		notifier: notifier,
		branding: branding,
		now:      time.Now,
	}
}

// Reconcile moves the order's payment log and donation to the state resp implies.
//
// The read-modify-write runs inside one order-scoped transaction. The thank-you
// notification is sent after commit, only when this call moved the donation into
// Completed, and its failures never fail the reconciliation.
func (r *Reconciler) Reconcile(ctx context.Context, orderID string, resp *domain.GatewayResponse) (*ReconcileResult, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: empty gateway response", domain.ErrInvalidRequest)
	}
	if resp.OrderID != "" && resp.OrderID != orderID {
		return nil, fmt.Errorf("%w: response for order %s applied to %s", domain.ErrInvalidRequest, resp.OrderID, orderID)
	}

	var result *ReconcileResult
	err := r.store.WithinOrder(ctx, orderID, func(tx ports.OrderTx) error {
		// Reset on every attempt; stores may retry fn.
		result = &ReconcileResult{}

		paymentLog, err := tx.PaymentLog(ctx)
		if err != nil {
			return err
		}
		if paymentLog.Provider != resp.Provider {
			return fmt.Errorf("%w: %s response for %s order %s", domain.ErrInvalidRequest, resp.Provider, paymentLog.Provider, orderID)
		}

		reported := checkedStatus(paymentLog, resp)
		if applyResponse(paymentLog, resp, reported) {
			if err := tx.SavePaymentLog(ctx, paymentLog); err != nil {
				return fmt.Errorf("failed to save payment log: %w", err)
			}
			result.Changed = true
		}
		result.PaymentLog = paymentLog

		donation, err := tx.Donation(ctx)
		if errors.Is(err, domain.ErrNotFound) {
			log.Printf("No donation references order %s", orderID)
			return nil
		}
		if err != nil {
			return err
		}

		previous := donation.Status
		next := domain.DonationStatusFor(paymentLog.Status)
		if previous == domain.DonationCompleted {
			next = previous
		}
		if next != previous {
			donation.Status = next
			if err := tx.SaveDonation(ctx, donation); err != nil {
				return fmt.Errorf("failed to save donation: %w", err)
			}
			result.Changed = true
			log.Printf("Donation %s for order %s moved %s -> %s", donation.ID, orderID, previous, next)
		}
		result.Donation = donation
		result.Notified = previous != domain.DonationCompleted && next == domain.DonationCompleted
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Notified {
		r.sendThankYou(ctx, result.Donation, result.PaymentLog)
	}
	return result, nil
}

// checkedStatus returns the reported status. A success is held back unless it
// carries a usable amount that agrees with the log.
func checkedStatus(l *domain.PaymentLog, resp *domain.GatewayResponse) domain.PaymentStatus {
	if resp.Status != domain.PaymentSuccess {
		return resp.Status
	}
	switch {
	case math.IsNaN(resp.Amount) || math.IsInf(resp.Amount, 0) || resp.Amount <= 0:
		log.Printf("Success for order %s reported without a usable amount (%v)", l.MerchantOrderID, resp.Amount)
		return domain.PaymentPending
	case math.Abs(resp.Amount-l.Amount) > amountTolerance:
		log.Printf("Amount mismatch for order %s: expected %.2f, gateway reported %.2f",
			l.MerchantOrderID, l.Amount, resp.Amount)
		return domain.PaymentPending
	}
	return resp.Status
}

// rawResponse is the stored summary of the last gateway report.
type rawResponse struct {
	TransactionStatus string  `json:"transaction_status"`
	ReferenceID       string  `json:"reference_id,omitempty"`
	Amount            float64 `json:"amount"`
	Payload           string  `json:"payload,omitempty"`
}

// applyResponse copies the report onto the log and reports whether anything changed.
// Status follows PaymentStatus.Next; metadata is refreshed even when status is frozen.
func applyResponse(l *domain.PaymentLog, resp *domain.GatewayResponse, reported domain.PaymentStatus) bool {
	changed := false
	set := func(dst *string, v string) {
		if v != "" && *dst != v {
			*dst = v
			changed = true
		}
	}

	next := l.Status.Next(reported)
	accepted := next == reported
	if next != l.Status {
		log.Printf("Payment %s moved %s -> %s", l.MerchantOrderID, l.Status, next)
		l.Status = next
		changed = true
	}

	set(&l.GatewayReferenceID, resp.ReferenceID)
	set(&l.Metadata.PayMode, resp.Metadata.PayMode)
	set(&l.Metadata.BankCode, resp.Metadata.BankCode)
	set(&l.Metadata.BankReferenceNumber, resp.Metadata.BankReferenceNumber)
	set(&l.Metadata.TransactionDate, resp.Metadata.TransactionDate)
	set(&l.Metadata.ReasonMessage, resp.Metadata.ReasonMessage)
	set(&l.VerificationData, resp.Verification)

	// A frozen status keeps the report that set it.
	if accepted {
		if raw, err := json.Marshal(rawResponse{
			TransactionStatus: resp.TransactionStatus,
			ReferenceID:       resp.ReferenceID,
			Amount:            resp.Amount,
			Payload:           resp.RawPayload,
		}); err == nil {
			set(&l.RawResponse, string(raw))
		}
	}

	if len(resp.PaymentDetails) > 0 && string(resp.PaymentDetails) != string(l.PaymentDetails) {
		l.PaymentDetails = resp.PaymentDetails
		changed = true
	}
	return changed
}

func (r *Reconciler) sendThankYou(ctx context.Context, donation *domain.Donation, paymentLog *domain.PaymentLog) {
	if r.notifier == nil {
		return
	}

	data := BuildThankYouContext(donation, paymentLog, r.branding, r.now())
	res, err := r.notifier.SendThankYou(ctx, donation.ID, donation.Email, data)
	if err != nil {
		log.Printf("Failed to send thank-you for order %s: %v", donation.OrderID, err)
		return
	}
	if res != nil {
		log.Printf("Thank-you for order %s: %s", donation.OrderID, res.Status)
	}
}
