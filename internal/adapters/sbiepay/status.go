package sbiepay

import (
	"strings"

	"github.com/sukruthakeralam/donation-payments/internal/core/domain"
)

// statusTable maps SBIePay transaction statuses onto canonical statuses.
var statusTable = map[string]domain.PaymentStatus{
	"SUCCESS": domain.PaymentSuccess,
	"FAILED":  domain.PaymentFailed,
	"FAIL":    domain.PaymentFailed,
	"EXPIRED": domain.PaymentExpired,
}

// MapStatus returns the canonical status for a raw SBIePay status. Unknown values are pending.
func MapStatus(raw string) domain.PaymentStatus {
	if s, ok := statusTable[strings.ToUpper(strings.TrimSpace(raw))]; ok {
		return s
	}
	return domain.PaymentPending
}
