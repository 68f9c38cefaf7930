package domain

// PaymentStatus is the canonical, provider-agnostic payment state.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
	PaymentExpired PaymentStatus = "expired"
)

// IsTerminal reports whether the status ends the payment lifecycle.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentSuccess || s == PaymentFailed || s == PaymentExpired
}

// Next returns the status a log currently in s moves to when a gateway reports reported.
// Success is write-once. Failed and Expired only move on to another terminal status.
func (s PaymentStatus) Next(reported PaymentStatus) PaymentStatus {
	switch {
	case s == PaymentSuccess:
		return s
	case s.IsTerminal() && !reported.IsTerminal():
		return s
	case reported == "":
		return s
	}
	return reported
}

// DonationStatus is the donor-facing lifecycle.
type DonationStatus string

const (
	DonationPending       DonationStatus = "pending"
	DonationPaymentFailed DonationStatus = "payment_failed"
	DonationCompleted     DonationStatus = "completed"
)

// DonationStatusFor derives the donation status from a payment status.
func DonationStatusFor(s PaymentStatus) DonationStatus {
	switch s {
	case PaymentSuccess:
		return DonationCompleted
	case PaymentFailed, PaymentExpired:
		return DonationPaymentFailed
	default:
		return DonationPending
	}
}
