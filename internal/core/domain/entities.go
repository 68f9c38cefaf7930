// Package domain contains the core business entities for the donation payment service.
// This is the innermost layer - no external dependencies.
package domain

import "time"

// Provider identifies the payment gateway a donation was routed through.
type Provider string

const (
	ProviderPhonePe Provider = "phonepe"
	ProviderSBIePay Provider = "sbiepay"
)

// Valid reports whether p is a supported gateway.
func (p Provider) Valid() bool {
	return p == ProviderPhonePe || p == ProviderSBIePay
}

// Donation is the donor-facing record. Its Status is derived from the payment log
// and is only ever written by the reconciler.
type Donation struct {
	ID                 string         `json:"id"`
	OrderID            string         `json:"order_id"`
	FullName           string         `json:"full_name"`
	Email              string         `json:"email"`
	ContactNumber      string         `json:"contact_number"`
	Amount             float64        `json:"amount"`
	NeedG80Certificate bool           `json:"need_g80_certificate"`
	Provider           Provider       `json:"payment_provider"`
	Status             DonationStatus `json:"status"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// PaymentMetadata holds the payment-mode and bank details a gateway reports.
// Fields a provider does not report stay empty.
type PaymentMetadata struct {
	PayMode             string `json:"pay_mode,omitempty"`
	BankCode            string `json:"bank_code,omitempty"`
	BankReferenceNumber string `json:"bank_reference_number,omitempty"`
	TransactionDate     string `json:"transaction_date,omitempty"`
	ReasonMessage       string `json:"reason_message,omitempty"`
}

// PaymentLog is the payment subsystem's record of one merchant order.
// MerchantOrderID is unique and never changes after creation.
type PaymentLog struct {
	ID                 string          `json:"id"`
	MerchantOrderID    string          `json:"merchant_order_id"`
	Provider           Provider        `json:"provider"`
	GatewayReferenceID string          `json:"gateway_reference_id,omitempty"`
	Status             PaymentStatus   `json:"status"`
	Amount             float64         `json:"amount"`
	Currency           string          `json:"currency"`
	RedirectURL        string          `json:"redirect_url,omitempty"`
	EncryptedTrans     string          `json:"-"`
	RawResponse        string          `json:"-"`
	PaymentDetails     []byte          `json:"-"` // JSON array reported by PhonePe
	VerificationData   string          `json:"-"` // raw double verification reply (SBIePay)
	Metadata           PaymentMetadata `json:"metadata"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// GatewayResponse is the provider-agnostic view of a gateway report.
// Each gateway adapter produces one; only the reconciler consumes it.
type GatewayResponse struct {
	Provider          Provider
	OrderID           string
	ReferenceID       string
	TransactionStatus string        // raw provider status string
	Status            PaymentStatus // mapped through the provider's status table
	Amount            float64
	Metadata          PaymentMetadata
	RawPayload        string
	PaymentDetails    []byte // PhonePe paymentDetails JSON
	Verification      string // SBIePay double verification reply
}

// PhonePePayment is the result of creating a PhonePe checkout order.
type PhonePePayment struct {
	GatewayOrderID string `json:"gateway_order_id"`
	State          string `json:"state"`
	ExpiresAt      int64  `json:"expires_at"`
	RedirectURL    string `json:"redirect_url"`
}

// PhonePeOrder is the input for a PhonePe checkout order.
type PhonePeOrder struct {
	OrderID            string
	Amount             float64 // major units (rupees)
	RedirectURL        string
	ExpireAfterSeconds int
	MetaInfo           map[string]string
	Message            string
}

// SBIePayForm is the form-post payload the browser submits to the SBIePay hosted page.
type SBIePayForm struct {
	GatewayURL     string            `json:"gateway_url"`
	OrderID        string            `json:"merchant_order_id"`
	EncryptedTrans string            `json:"-"`
	FormData       map[string]string `json:"form_data"`
}

// DonationRequest starts a donation and its payment.
type DonationRequest struct {
	FullName           string   `json:"full_name" binding:"required"`
	Email              string   `json:"email" binding:"required,email"`
	ContactNumber      string   `json:"contact_number" binding:"required"`
	Amount             float64  `json:"amount" binding:"required,gt=0"`
	NeedG80Certificate bool     `json:"need_g80_certificate"`
	Provider           Provider `json:"payment_provider" binding:"required,oneof=phonepe sbiepay"`
}

// CheckoutResponse is returned after a donation's payment has been created.
type CheckoutResponse struct {
	Success     bool              `json:"success"`
	OrderID     string            `json:"order_id"`
	Provider    Provider          `json:"payment_provider"`
	RedirectURL string            `json:"redirect_url,omitempty"`
	ExpiresAt   int64             `json:"expires_at,omitempty"`
	GatewayURL  string            `json:"gateway_url,omitempty"`
	FormData    map[string]string `json:"form_data,omitempty"`
}

// PaymentStatusView is what status polling returns to the frontend.
type PaymentStatusView struct {
	OrderID        string         `json:"order_id"`
	Provider       Provider       `json:"payment_provider"`
	Amount         float64        `json:"amount"`
	Status         PaymentStatus  `json:"status"`
	DonationStatus DonationStatus `json:"donation_status,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// ThankYouContext is the data the thank-you e-mail is rendered from.
type ThankYouContext struct {
	FullName           string `json:"full_name"`
	OrderID            string `json:"order_id"`
	Amount             string `json:"amount"`
	Status             string `json:"status"`
	DonationDate       string `json:"donation_date"`
	NeedG80Certificate bool   `json:"need_g80_certificate"`
	PaymentMode        string `json:"payment_mode"`
	Year               int    `json:"year"`
	OrganizationName   string `json:"organization_name"`
	ContactEmail       string `json:"contact_email"`
}

// DeliveryResult reports the outcome of a notification dispatch.
type DeliveryResult struct {
	Status       string `json:"status"` // "sent" or "failed"
	MessageID    string `json:"message_id,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// EmailLog records every thank-you e-mail attempt.
type EmailLog struct {
	ID             string
	DonationID     string
	RecipientEmail string
	MailType       string
	Subject        string
	Status         string // pending, sent, failed
	MessageID      string
	ErrorMessage   string
	Context        []byte
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CallbackSource tells where a gateway callback arrived from.
type CallbackSource string

const (
	CallbackRedirectSuccess CallbackSource = "redirect_success"
	CallbackRedirectFailure CallbackSource = "redirect_failure"
	CallbackPush            CallbackSource = "push"
)

// CallbackClass is how a callback was classified before it was acknowledged.
type CallbackClass string

const (
	CallbackProcessed CallbackClass = "processed"
	CallbackMalformed CallbackClass = "malformed"
	CallbackUnknown   CallbackClass = "unknown"
	CallbackTransient CallbackClass = "transient"
)

// CallbackRecord is persisted for every gateway callback, including ones that failed.
type CallbackRecord struct {
	ID              string
	Provider        Provider
	Source          CallbackSource
	MerchantOrderID string
	Classification  CallbackClass
	ErrorMessage    string
	PayloadLength   int
	ReceivedAt      time.Time
}
