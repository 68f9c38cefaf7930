// Package service implements the core business logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/sukruthakeralam/donation-payments/internal/core/domain"
	"github.com/sukruthakeralam/donation-payments/internal/core/ports"
)

// Settings are the deployment values the payment flows depend on.
type Settings struct {
	BackendDomain          string
	FrontendDomain         string
	OrganizationName       string
	ContactEmail           string
	PhonePeExpirySeconds   int
	VerifySBIePayCallbacks bool
}

// PaymentService orchestrates donation payments across both gateways.
type PaymentService struct {
	store      ports.PaymentStore
	phonepe    ports.PhonePeGateway
	sbiepay    ports.SBIePayGateway
	notifier   ports.Notifier
	reconciler *Reconciler
	settings   Settings
	newOrderID func() string
}

// NewPaymentService creates a new payment service. Either gateway may be nil when it is not configured.
func NewPaymentService(
	store ports.PaymentStore,
	phonepe ports.PhonePeGateway,
	sbiepay ports.SBIePayGateway,
	notifier ports.Notifier,
	settings Settings,
) *PaymentService {
	return &PaymentService{
		store:      store,
		phonepe:    phonepe,
		sbiepay:    sbiepay,
		notifier:   notifier,
		reconciler: NewReconciler(store, notifier, Branding{OrganizationName: settings.OrganizationName, ContactEmail: settings.ContactEmail}),
		settings:   settings,
		newOrderID: NewOrderID,
	}
}

// Reconciler returns the reconciler the service applies gateway reports through.
func (s *PaymentService) Reconciler() *Reconciler {
	return s.reconciler
}

const orderAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewOrderID returns a merchant order id of the form SK-<unix seconds><4 random characters>.
func NewOrderID() string {
	suffix := make([]byte, 4)
	for i := range suffix {
		suffix[i] = orderAlphabet[rand.IntN(len(orderAlphabet))]
	}
	return "SK-" + strconv.FormatInt(time.Now().Unix(), 10) + string(suffix)
}

// StartDonation records a donation and creates its payment with the chosen gateway.
func (s *PaymentService) StartDonation(ctx context.Context, req domain.DonationRequest) (*domain.CheckoutResponse, error) {
	// Step 1: Validate the request
	if req.FullName == "" || req.Email == "" || req.Amount <= 0 {
		return nil, domain.NewServiceError(domain.ErrInvalidRequest,
			"full_name, email and a positive amount are required", "VALIDATION_ERROR")
	}
	if !req.Provider.Valid() || s.gatewayMissing(req.Provider) {
		return nil, domain.NewServiceError(domain.ErrUnsupportedProvider,
			"payment provider not available: "+string(req.Provider), "UNSUPPORTED_PROVIDER")
	}

	// Step 2: Reserve a fresh order id; nothing is stored until the gateway accepts the payment
	orderID, err := s.freeOrderID(ctx)
	if err != nil {
		return nil, err
	}
	donation := &domain.Donation{
		ID:                 uuid.NewString(),
		OrderID:            orderID,
		FullName:           req.FullName,
		Email:              req.Email,
		ContactNumber:      req.ContactNumber,
		Amount:             req.Amount,
		NeedG80Certificate: req.NeedG80Certificate,
		Provider:           req.Provider,
		Status:             domain.DonationPending,
	}
	paymentLog := &domain.PaymentLog{
		MerchantOrderID: orderID,
		Provider:        req.Provider,
		Status:          domain.PaymentPending,
		Amount:          req.Amount,
		Currency:        "INR",
	}
	resp := &domain.CheckoutResponse{Success: true, OrderID: orderID, Provider: req.Provider}

	// Step 3: Create the payment with the gateway
	switch req.Provider {
	case domain.ProviderPhonePe:
		payment, err := s.phonepe.CreatePayment(ctx, domain.PhonePeOrder{
			OrderID:            orderID,
			Amount:             req.Amount,
			RedirectURL:        s.settings.BackendDomain + "/payments/phonepe/redirect?order_id=" + url.QueryEscape(orderID),
			ExpireAfterSeconds: s.settings.PhonePeExpirySeconds,
			MetaInfo:           map[string]string{"udf1": donation.ID},
			Message:            s.settings.OrganizationName + " Donation",
		})
		if err != nil {
			log.Printf("Failed to create PhonePe payment for order %s: %v", orderID, err)
			return nil, domain.NewServiceError(err, "failed to create payment", "GATEWAY_ERROR")
		}
		paymentLog.GatewayReferenceID = payment.GatewayOrderID
		paymentLog.RedirectURL = payment.RedirectURL
		resp.RedirectURL = payment.RedirectURL
		resp.ExpiresAt = payment.ExpiresAt

	case domain.ProviderSBIePay:
		form, err := s.sbiepay.CreatePayment(orderID, req.Amount, "")
		if err != nil {
			log.Printf("Failed to create SBIePay payment for order %s: %v", orderID, err)
			return nil, domain.NewServiceError(err, "failed to create payment", "GATEWAY_ERROR")
		}
		paymentLog.EncryptedTrans = form.EncryptedTrans
		resp.GatewayURL = form.GatewayURL
		resp.FormData = form.FormData
	}

	// Step 4: Store the payment log and donation together
	if err := s.store.CreateOrder(ctx, paymentLog, donation); err != nil {
		log.Printf("Failed to store order %s: %v", orderID, err)
		return nil, domain.NewServiceError(err, "failed to store donation", "STORE_ERROR")
	}

	log.Printf("Started %s donation %s for order %s, amount: %.2f",
		req.Provider, donation.ID, orderID, req.Amount)
	return resp, nil
}

func (s *PaymentService) gatewayMissing(p domain.Provider) bool {
	switch p {
	case domain.ProviderPhonePe:
		return s.phonepe == nil
	case domain.ProviderSBIePay:
		return s.sbiepay == nil
	}
	return true
}

// freeOrderID draws order ids until one is unused, retrying on the rare collision.
func (s *PaymentService) freeOrderID(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 3; attempt++ {
		id := s.newOrderID()
		_, err := s.store.GetPaymentLog(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			_, err = s.store.GetDonation(ctx, id)
			if errors.Is(err, domain.ErrNotFound) {
				return id, nil
			}
		}
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			log.Printf("Failed to check order id %s: %v", id, err)
			return "", domain.NewServiceError(err, "failed to store donation", "STORE_ERROR")
		}
	}
	return "", domain.NewServiceError(domain.ErrDuplicateOrder, "failed to allocate an order id", "STORE_ERROR")
}

// RefreshStatus asks the gateway for the order's status and reconciles it.
// Payments already in Success are returned without a gateway call.
func (s *PaymentService) RefreshStatus(ctx context.Context, orderID string) (*domain.PaymentStatusView, error) {
	paymentLog, err := s.store.GetPaymentLog(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewServiceError(err, "order not found: "+orderID, "ORDER_NOT_FOUND")
		}
		return nil, err
	}

	if paymentLog.Status == domain.PaymentSuccess {
		return s.view(ctx, paymentLog, nil), nil
	}

	var report *domain.GatewayResponse
	switch {
	case paymentLog.Provider == domain.ProviderPhonePe && s.phonepe != nil:
		report, err = s.phonepe.GetOrderStatus(ctx, orderID)
	case paymentLog.Provider == domain.ProviderSBIePay && s.sbiepay != nil:
		report, err = s.sbiepay.VerifyTransaction(ctx, paymentLog.GatewayReferenceID, orderID, paymentLog.Amount)
	default:
		return nil, domain.NewServiceError(domain.ErrUnsupportedProvider,
			"payment provider not available: "+string(paymentLog.Provider), "UNSUPPORTED_PROVIDER")
	}
	if err != nil {
		log.Printf("Failed to refresh status for order %s: %v", orderID, err)
		return nil, domain.NewServiceError(err, "failed to fetch payment status", "GATEWAY_ERROR")
	}

	result, err := s.reconciler.Reconcile(ctx, orderID, report)
	if err != nil {
		log.Printf("Failed to reconcile order %s: %v", orderID, err)
		return nil, domain.NewServiceError(err, "failed to update payment status", "RECONCILE_ERROR")
	}
	return s.view(ctx, result.PaymentLog, result.Donation), nil
}

func (s *PaymentService) view(ctx context.Context, l *domain.PaymentLog, d *domain.Donation) *domain.PaymentStatusView {
	v := &domain.PaymentStatusView{
		OrderID:   l.MerchantOrderID,
		Provider:  l.Provider,
		Amount:    l.Amount,
		Status:    l.Status,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
	if d == nil {
		d, _ = s.store.GetDonation(ctx, l.MerchantOrderID)
	}
	if d != nil {
		v.DonationStatus = d.Status
	}
	return v
}

// CallbackOutcome is what a gateway callback amounted to.
type CallbackOutcome struct {
	OrderID        string
	Classification domain.CallbackClass
	Status         domain.PaymentStatus
	Err            error
}

// HandleSBIePayCallback processes a redirect or push callback.
//
// It never fails: every callback is classified, recorded and reported back so
// the caller can acknowledge the gateway.
func (s *PaymentService) HandleSBIePayCallback(ctx context.Context, source domain.CallbackSource, encrypted string) *CallbackOutcome {
	out := s.processSBIePayCallback(ctx, encrypted)

	record := &domain.CallbackRecord{
		Provider:        domain.ProviderSBIePay,
		Source:          source,
		MerchantOrderID: out.OrderID,
		Classification:  out.Classification,
		PayloadLength:   len(encrypted),
	}
	if out.Err != nil {
		record.ErrorMessage = out.Err.Error()
		log.Printf("SBIePay %s callback for order %q classified %s: %v", source, out.OrderID, out.Classification, out.Err)
	} else {
		log.Printf("SBIePay %s callback for order %s processed: %s", source, out.OrderID, out.Status)
	}

	if err := s.store.RecordCallback(ctx, record); err != nil {
		log.Printf("Failed to record SBIePay callback for order %q: %v", out.OrderID, err)
	}
	return out
}

func (s *PaymentService) processSBIePayCallback(ctx context.Context, encrypted string) *CallbackOutcome {
	if s.sbiepay == nil {
		return &CallbackOutcome{Classification: domain.CallbackUnknown, Err: domain.ErrUnsupportedProvider}
	}

	// Step 1: Decrypt the packet
	report, err := s.sbiepay.HandleResponse(encrypted)
	if err != nil {
		return &CallbackOutcome{Classification: domain.CallbackMalformed, Err: err}
	}
	out := &CallbackOutcome{OrderID: report.OrderID, Status: report.Status}

	// Step 2: The order must be one of ours
	paymentLog, err := s.store.GetPaymentLog(ctx, report.OrderID)
	if err != nil {
		out.Classification, out.Err = classify(err), err
		return out
	}
	if paymentLog.Provider != domain.ProviderSBIePay {
		out.Classification = domain.CallbackUnknown
		out.Err = fmt.Errorf("%w: order %s belongs to %s", domain.ErrNotFound, report.OrderID, paymentLog.Provider)
		return out
	}

	// Step 3: Confirm through double verification
	out.Classification = domain.CallbackProcessed
	if s.settings.VerifySBIePayCallbacks {
		verified, err := s.sbiepay.VerifyTransaction(ctx, report.ReferenceID, report.OrderID, paymentLog.Amount)
		if err == nil && verified.OrderID != "" && verified.OrderID != report.OrderID {
			err = fmt.Errorf("%w: verification answered for order %s", domain.ErrGateway, verified.OrderID)
		}
		if err != nil {
			out.Classification, out.Err = domain.CallbackTransient, err
			report = unverified(report)
		} else {
			report = mergeVerified(report, verified)
		}
	}

	// Step 4: Reconcile
	result, err := s.reconciler.Reconcile(ctx, report.OrderID, report)
	if err != nil {
		out.Classification, out.Err = classify(err), err
		return out
	}
	out.Status = result.PaymentLog.Status
	return out
}

func classify(err error) domain.CallbackClass {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return domain.CallbackUnknown
	case domain.IsCodecError(err):
		return domain.CallbackMalformed
	default:
		return domain.CallbackTransient
	}
}

// unverified holds back a success the gateway has not confirmed. Metadata is kept.
func unverified(report *domain.GatewayResponse) *domain.GatewayResponse {
	r := *report
	if r.Status == domain.PaymentSuccess {
		r.Status = domain.PaymentPending
	}
	return &r
}

// mergeVerified takes status and details from the verification reply and keeps the callback packet.
func mergeVerified(callback, verified *domain.GatewayResponse) *domain.GatewayResponse {
	r := *verified
	r.OrderID = callback.OrderID
	r.RawPayload = callback.RawPayload
	if r.ReferenceID == "" {
		r.ReferenceID = callback.ReferenceID
	}
	if r.Metadata.PayMode == "" {
		r.Metadata.PayMode = callback.Metadata.PayMode
	}
	if r.Metadata.BankReferenceNumber == "" {
		r.Metadata.BankReferenceNumber = callback.Metadata.BankReferenceNumber
	}
	return &r
}

// ResendThankYou sends the thank-you message again for a completed donation.
func (s *PaymentService) ResendThankYou(ctx context.Context, orderID string) (*domain.DeliveryResult, error) {
	donation, err := s.store.GetDonation(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewServiceError(err, "donation not found: "+orderID, "ORDER_NOT_FOUND")
		}
		return nil, err
	}
	if donation.Status != domain.DonationCompleted {
		return nil, domain.NewServiceError(domain.ErrInvalidRequest,
			"donation is not completed: "+orderID, "DONATION_NOT_COMPLETED")
	}
	if s.notifier == nil {
		return nil, domain.NewServiceError(domain.ErrInvalidRequest, "notifications are disabled", "NOTIFIER_DISABLED")
	}

	paymentLog, err := s.store.GetPaymentLog(ctx, orderID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	data := BuildThankYouContext(donation, paymentLog, s.reconciler.branding, time.Now())
	res, err := s.notifier.SendThankYou(ctx, donation.ID, donation.Email, data)
	if err != nil {
		log.Printf("Failed to resend thank-you for order %s: %v", orderID, err)
		return res, domain.NewServiceError(err, "failed to send thank-you", "NOTIFICATION_ERROR")
	}

	log.Printf("Resent thank-you for order %s", orderID)
	return res, nil
}
