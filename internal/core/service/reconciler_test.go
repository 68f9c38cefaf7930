package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/sukruthakeralam/donation-payments/internal/core/domain"
)

func phonePeReport(orderID string, status domain.PaymentStatus, amount float64) *domain.GatewayResponse {
	return &domain.GatewayResponse{
		Provider:          domain.ProviderPhonePe,
		OrderID:           orderID,
		ReferenceID:       "OMO-" + orderID,
		TransactionStatus: string(status),
		Status:            status,
		Amount:            amount,
		Metadata:          domain.PaymentMetadata{PayMode: "UPI_QR"},
	}
}

func newTestReconciler() (*Reconciler, *memoryStore, *mockNotifier) {
	store := newMemoryStore()
	notifier := &mockNotifier{}
	return NewReconciler(store, notifier, Branding{OrganizationName: "Sukrutha Keralam", ContactEmail: "help@example.org"}), store, notifier
}

func TestReconcileSuccessNotifiesOnce(t *testing.T) {
	r, store, notifier := newTestReconciler()
	seedOrder(store, "SK-1", domain.ProviderPhonePe, 5000)
	ctx := context.Background()

	first, err := r.Reconcile(ctx, "SK-1", phonePeReport("SK-1", domain.PaymentSuccess, 5000))
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !first.Changed || !first.Notified {
		t.Errorf("first reconcile = %+v", first)
	}
	if first.PaymentLog.Status != domain.PaymentSuccess || first.Donation.Status != domain.DonationCompleted {
		t.Errorf("unexpected state log=%s donation=%s", first.PaymentLog.Status, first.Donation.Status)
	}

	second, err := r.Reconcile(ctx, "SK-1", phonePeReport("SK-1", domain.PaymentSuccess, 5000))
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if second.Changed || second.Notified {
		t.Errorf("repeat reconcile = %+v", second)
	}
	if notifier.count() != 1 {
		t.Fatalf("notifications = %d, want 1", notifier.count())
	}
	if notifier.email[0] != "asha@example.org" || notifier.sent[0].Amount != "5,000.00" || notifier.sent[0].PaymentMode != "UPI_QR" {
		t.Errorf("unexpected notification %+v", notifier.sent[0])
	}
}

func TestReconcileSuccessIsFinal(t *testing.T) {
	r, store, notifier := newTestReconciler()
	seedOrder(store, "SK-1", domain.ProviderPhonePe, 100)
	ctx := context.Background()

	if _, err := r.Reconcile(ctx, "SK-1", phonePeReport("SK-1", domain.PaymentSuccess, 100)); err != nil {
		t.Fatal(err)
	}
	for _, s := range []domain.PaymentStatus{domain.PaymentFailed, domain.PaymentPending, domain.PaymentExpired} {
		res, err := r.Reconcile(ctx, "SK-1", phonePeReport("SK-1", s, 100))
		if err != nil {
			t.Fatal(err)
		}
		if res.PaymentLog.Status != domain.PaymentSuccess || res.Donation.Status != domain.DonationCompleted {
			t.Errorf("after %s report: log=%s donation=%s", s, res.PaymentLog.Status, res.Donation.Status)
		}
	}
	if notifier.count() != 1 {
		t.Errorf("notifications = %d, want 1", notifier.count())
	}

	l, _ := store.GetPaymentLog(ctx, "SK-1")
	var raw rawResponse
	if err := json.Unmarshal([]byte(l.RawResponse), &raw); err != nil {
		t.Fatalf("raw response: %v", err)
	}
	if raw.TransactionStatus != string(domain.PaymentSuccess) {
		t.Errorf("raw response overwritten by a rejected report: %+v", raw)
	}
}

func TestReconcileFailedIgnoresPending(t *testing.T) {
	r, store, notifier := newTestReconciler()
	seedOrder(store, "SK-1", domain.ProviderPhonePe, 100)
	ctx := context.Background()

	res, err := r.Reconcile(ctx, "SK-1", phonePeReport("SK-1", domain.PaymentFailed, 100))
	if err != nil {
		t.Fatal(err)
	}
	if res.Donation.Status != domain.DonationPaymentFailed {
		t.Errorf("donation = %s, want payment_failed", res.Donation.Status)
	}

	res, err = r.Reconcile(ctx, "SK-1", phonePeReport("SK-1", domain.PaymentPending, 100))
	if err != nil {
		t.Fatal(err)
	}
	if res.PaymentLog.Status != domain.PaymentFailed {
		t.Errorf("log = %s, want failed", res.PaymentLog.Status)
	}
	if notifier.count() != 0 {
		t.Errorf("unexpected notification")
	}
}

func TestReconcileFailedThenSuccess(t *testing.T) {
	r, store, notifier := newTestReconciler()
	seedOrder(store, "SK-1", domain.ProviderPhonePe, 100)
	ctx := context.Background()

	if _, err := r.Reconcile(ctx, "SK-1", phonePeReport("SK-1", domain.PaymentExpired, 100)); err != nil {
		t.Fatal(err)
	}
	res, err := r.Reconcile(ctx, "SK-1", phonePeReport("SK-1", domain.PaymentSuccess, 100))
	if err != nil {
		t.Fatal(err)
	}
	if res.PaymentLog.Status != domain.PaymentSuccess || res.Donation.Status != domain.DonationCompleted || !res.Notified {
		t.Errorf("unexpected result %+v", res)
	}
	if notifier.count() != 1 {
		t.Errorf("notifications = %d, want 1", notifier.count())
	}
}

func TestReconcileUnknownOrder(t *testing.T) {
	r, _, _ := newTestReconciler()
	_, err := r.Reconcile(context.Background(), "SK-404", phonePeReport("SK-404", domain.PaymentSuccess, 1))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestReconcileRejectsMismatchedReports(t *testing.T) {
	r, store, _ := newTestReconciler()
	seedOrder(store, "SK-1", domain.ProviderSBIePay, 100)
	ctx := context.Background()

	if _, err := r.Reconcile(ctx, "SK-1", phonePeReport("SK-2", domain.PaymentSuccess, 100)); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("order mismatch: got %v", err)
	}
	if _, err := r.Reconcile(ctx, "SK-1", phonePeReport("SK-1", domain.PaymentSuccess, 100)); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("provider mismatch: got %v", err)
	}
	l, _ := store.GetPaymentLog(ctx, "SK-1")
	if l.Status != domain.PaymentPending {
		t.Errorf("log changed to %s", l.Status)
	}
}

func TestReconcileWithoutDonation(t *testing.T) {
	r, store, notifier := newTestReconciler()
	_ = store.CreatePaymentLog(context.Background(), &domain.PaymentLog{
		MerchantOrderID: "SK-9",
		Provider:        domain.ProviderPhonePe,
		Status:          domain.PaymentPending,
		Amount:          10,
	})

	res, err := r.Reconcile(context.Background(), "SK-9", phonePeReport("SK-9", domain.PaymentSuccess, 10))
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Donation != nil || res.Notified || res.PaymentLog.Status != domain.PaymentSuccess {
		t.Errorf("unexpected result %+v", res)
	}
	if notifier.count() != 0 {
		t.Error("notified without a donation")
	}
}

func TestReconcileSwallowsNotificationFailure(t *testing.T) {
	r, store, notifier := newTestReconciler()
	notifier.err = errors.New("ses down")
	seedOrder(store, "SK-1", domain.ProviderPhonePe, 100)

	res, err := r.Reconcile(context.Background(), "SK-1", phonePeReport("SK-1", domain.PaymentSuccess, 100))
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Donation.Status != domain.DonationCompleted {
		t.Errorf("donation = %s", res.Donation.Status)
	}
	d, _ := store.GetDonation(context.Background(), "SK-1")
	if d.Status != domain.DonationCompleted {
		t.Errorf("stored donation = %s", d.Status)
	}
}

func TestReconcileAmountMismatchHoldsPending(t *testing.T) {
	r, store, notifier := newTestReconciler()
	seedOrder(store, "SK-1", domain.ProviderPhonePe, 5000)

	res, err := r.Reconcile(context.Background(), "SK-1", phonePeReport("SK-1", domain.PaymentSuccess, 4000))
	if err != nil {
		t.Fatal(err)
	}
	if res.PaymentLog.Status != domain.PaymentPending || res.Donation.Status != domain.DonationPending {
		t.Errorf("log=%s donation=%s, want pending", res.PaymentLog.Status, res.Donation.Status)
	}
	if notifier.count() != 0 {
		t.Error("notified on mismatched amount")
	}
}

func TestReconcileSuccessWithoutUsableAmountHoldsPending(t *testing.T) {
	for _, amount := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		r, store, notifier := newTestReconciler()
		seedOrder(store, "SK-1", domain.ProviderSBIePay, 5000)

		report := &domain.GatewayResponse{
			Provider:          domain.ProviderSBIePay,
			OrderID:           "SK-1",
			ReferenceID:       "ATRN-77",
			TransactionStatus: "SUCCESS",
			Status:            domain.PaymentSuccess,
			Amount:            amount,
		}
		res, err := r.Reconcile(context.Background(), "SK-1", report)
		if err != nil {
			t.Fatalf("amount %v: %v", amount, err)
		}
		if res.PaymentLog.Status != domain.PaymentPending || res.Donation.Status != domain.DonationPending {
			t.Errorf("amount %v: log=%s donation=%s, want pending", amount, res.PaymentLog.Status, res.Donation.Status)
		}
		if notifier.count() != 0 {
			t.Errorf("amount %v: notified", amount)
		}
	}
}

func TestReconcileConcurrentSuccess(t *testing.T) {
	r, store, notifier := newTestReconciler()
	seedOrder(store, "SK-1", domain.ProviderPhonePe, 100)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Reconcile(context.Background(), "SK-1", phonePeReport("SK-1", domain.PaymentSuccess, 100)); err != nil {
				t.Errorf("Reconcile: %v", err)
			}
		}()
	}
	wg.Wait()

	if notifier.count() != 1 {
		t.Errorf("notifications = %d, want 1", notifier.count())
	}
}
