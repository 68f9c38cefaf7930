package service

import (
	"testing"
	"time"

	"github.com/sukruthakeralam/donation-payments/internal/core/domain"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{5000, "5,000.00"},
		{1, "1.00"},
		{1234567.5, "1,234,567.50"},
	}
	for _, tt := range tests {
		if got := FormatAmount(tt.in); got != tt.want {
			t.Errorf("FormatAmount(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildThankYouContext(t *testing.T) {
	created := time.Date(2024, 1, 1, 4, 30, 0, 0, time.UTC)
	d := &domain.Donation{
		OrderID:            "SK-1001",
		FullName:           "Asha Menon",
		Amount:             5000,
		NeedG80Certificate: true,
		CreatedAt:          created,
	}
	l := &domain.PaymentLog{Metadata: domain.PaymentMetadata{PayMode: "NB"}}
	b := Branding{OrganizationName: "Sukrutha Keralam", ContactEmail: "help@example.org"}

	got := BuildThankYouContext(d, l, b, time.Date(2024, 12, 31, 20, 0, 0, 0, time.UTC))

	if got.Amount != "5,000.00" || got.Status != "Completed" || got.PaymentMode != "NB" {
		t.Errorf("unexpected context %+v", got)
	}
	if got.DonationDate != "January 01, 2024 at 10:00 AM" {
		t.Errorf("donation date = %q", got.DonationDate)
	}
	// 20:00 UTC on Dec 31 is already the new year in India.
	if got.Year != 2025 {
		t.Errorf("year = %d, want 2025", got.Year)
	}
	if !got.NeedG80Certificate || got.OrganizationName != "Sukrutha Keralam" || got.ContactEmail != "help@example.org" {
		t.Errorf("unexpected context %+v", got)
	}

	if fallback := BuildThankYouContext(d, nil, b, created); fallback.PaymentMode != "Online Payment" {
		t.Errorf("payment mode = %q, want Online Payment", fallback.PaymentMode)
	}
}
