package service

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sukruthakeralam/donation-payments/internal/core/domain"
)

// ist is India Standard Time.
var ist = time.FixedZone("IST", 5*60*60+30*60)

var amountPrinter = message.NewPrinter(language.English)

// FormatAmount renders a rupee amount with thousands separators, e.g. 5,000.00.
func FormatAmount(amount float64) string {
	return amountPrinter.Sprintf("%.2f", amount)
}

// BuildThankYouContext assembles the thank-you message data for a completed donation.
func BuildThankYouContext(d *domain.Donation, l *domain.PaymentLog, b Branding, now time.Time) domain.ThankYouContext {
	paymentMode := "Online Payment"
	if l != nil && l.Metadata.PayMode != "" {
		paymentMode = l.Metadata.PayMode
	}

	donated := d.CreatedAt
	if donated.IsZero() {
		donated = now
	}

	return domain.ThankYouContext{
		FullName:           d.FullName,
		OrderID:            d.OrderID,
		Amount:             FormatAmount(d.Amount),
		Status:             "Completed",
		DonationDate:       donated.In(ist).Format("January 02, 2006 at 03:04 PM"),
		NeedG80Certificate: d.NeedG80Certificate,
		PaymentMode:        paymentMode,
		Year:               now.In(ist).Year(),
		OrganizationName:   b.OrganizationName,
		ContactEmail:       b.ContactEmail,
	}
}
