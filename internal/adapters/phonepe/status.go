package phonepe

import "github.com/sukruthakeralam/donation-payments/internal/core/domain"

// Order states reported by PhonePe.
const (
	StatePending   = "PENDING"
	StateCompleted = "COMPLETED"
	StateFailed    = "FAILED"
	StateExpired   = "EXPIRED"
)

var stateTable = map[string]domain.PaymentStatus{
	StatePending:   domain.PaymentPending,
	StateCompleted: domain.PaymentSuccess,
	StateFailed:    domain.PaymentFailed,
	StateExpired:   domain.PaymentExpired,
}

// MapState returns the canonical status for a PhonePe order state. Unknown states are pending.
func MapState(state string) domain.PaymentStatus {
	if s, ok := stateTable[state]; ok {
		return s
	}
	return domain.PaymentPending
}
