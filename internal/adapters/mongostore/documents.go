package mongostore

import (
	"time"

	"github.com/sukruthakeralam/donation-payments/internal/core/domain"
)

type paymentLogDoc struct {
	ID                  string    `bson:"_id"`
	MerchantOrderID     string    `bson:"merchant_order_id"`
	Provider            string    `bson:"provider"`
	GatewayReferenceID  string    `bson:"gateway_reference_id,omitempty"`
	Status              string    `bson:"status"`
	Amount              float64   `bson:"amount"`
	Currency            string    `bson:"currency"`
	RedirectURL         string    `bson:"redirect_url,omitempty"`
	EncryptedTrans      string    `bson:"encrypted_trans,omitempty"`
	RawResponse         string    `bson:"raw_response,omitempty"`
	PaymentDetails      string    `bson:"payment_details,omitempty"`
	VerificationData    string    `bson:"verification_data,omitempty"`
	PayMode             string    `bson:"pay_mode,omitempty"`
	BankCode            string    `bson:"bank_code,omitempty"`
	BankReferenceNumber string    `bson:"bank_reference_number,omitempty"`
	TransactionDate     string    `bson:"transaction_date,omitempty"`
	ReasonMessage       string    `bson:"reason_message,omitempty"`
	LockVersion         int64     `bson:"lock_version"`
	CreatedAt           time.Time `bson:"created_at"`
	UpdatedAt           time.Time `bson:"updated_at"`
}

type donationDoc struct {
	ID                 string    `bson:"_id"`
	OrderID            string    `bson:"order_id"`
	FullName           string    `bson:"full_name"`
	Email              string    `bson:"email"`
	ContactNumber      string    `bson:"contact_number"`
	Amount             float64   `bson:"amount"`
	NeedG80Certificate bool      `bson:"need_g80_certificate"`
	Provider           string    `bson:"payment_provider"`
	Status             string    `bson:"status"`
	CreatedAt          time.Time `bson:"created_at"`
	UpdatedAt          time.Time `bson:"updated_at"`
}

type callbackDoc struct {
	ID              string    `bson:"_id"`
	Provider        string    `bson:"provider"`
	Source          string    `bson:"source"`
	MerchantOrderID string    `bson:"merchant_order_id,omitempty"`
	Classification  string    `bson:"classification"`
	ErrorMessage    string    `bson:"error_message,omitempty"`
	PayloadLength   int       `bson:"payload_length"`
	ReceivedAt      time.Time `bson:"received_at"`
}

type emailLogDoc struct {
	ID             string    `bson:"_id"`
	DonationID     string    `bson:"donation_id"`
	RecipientEmail string    `bson:"recipient_email"`
	MailType       string    `bson:"mail_type"`
	Subject        string    `bson:"subject"`
	Status         string    `bson:"status"`
	MessageID      string    `bson:"message_id,omitempty"`
	ErrorMessage   string    `bson:"error_message,omitempty"`
	Context        string    `bson:"context,omitempty"`
	CreatedAt      time.Time `bson:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

func toPaymentLogDoc(l *domain.PaymentLog) *paymentLogDoc {
	return &paymentLogDoc{
		ID:                  l.ID,
		MerchantOrderID:     l.MerchantOrderID,
		Provider:            string(l.Provider),
		GatewayReferenceID:  l.GatewayReferenceID,
		Status:              string(l.Status),
		Amount:              l.Amount,
		Currency:            l.Currency,
		RedirectURL:         l.RedirectURL,
		EncryptedTrans:      l.EncryptedTrans,
		RawResponse:         l.RawResponse,
		PaymentDetails:      string(l.PaymentDetails),
		VerificationData:    l.VerificationData,
		PayMode:             l.Metadata.PayMode,
		BankCode:            l.Metadata.BankCode,
		BankReferenceNumber: l.Metadata.BankReferenceNumber,
		TransactionDate:     l.Metadata.TransactionDate,
		ReasonMessage:       l.Metadata.ReasonMessage,
		CreatedAt:           l.CreatedAt,
		UpdatedAt:           l.UpdatedAt,
	}
}

func (d *paymentLogDoc) toDomain() *domain.PaymentLog {
	l := &domain.PaymentLog{
		ID:                 d.ID,
		MerchantOrderID:    d.MerchantOrderID,
		Provider:           domain.Provider(d.Provider),
		GatewayReferenceID: d.GatewayReferenceID,
		Status:             domain.PaymentStatus(d.Status),
		Amount:             d.Amount,
		Currency:           d.Currency,
		RedirectURL:        d.RedirectURL,
		EncryptedTrans:     d.EncryptedTrans,
		RawResponse:        d.RawResponse,
		VerificationData:   d.VerificationData,
		Metadata: domain.PaymentMetadata{
			PayMode:             d.PayMode,
			BankCode:            d.BankCode,
			BankReferenceNumber: d.BankReferenceNumber,
			TransactionDate:     d.TransactionDate,
			ReasonMessage:       d.ReasonMessage,
		},
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if d.PaymentDetails != "" {
		l.PaymentDetails = []byte(d.PaymentDetails)
	}
	return l
}

func toDonationDoc(d *domain.Donation) *donationDoc {
	return &donationDoc{
		ID:                 d.ID,
		OrderID:            d.OrderID,
		FullName:           d.FullName,
		Email:              d.Email,
		ContactNumber:      d.ContactNumber,
		Amount:             d.Amount,
		NeedG80Certificate: d.NeedG80Certificate,
		Provider:           string(d.Provider),
		Status:             string(d.Status),
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

func (d *donationDoc) toDomain() *domain.Donation {
	return &domain.Donation{
		ID:                 d.ID,
		OrderID:            d.OrderID,
		FullName:           d.FullName,
		Email:              d.Email,
		ContactNumber:      d.ContactNumber,
		Amount:             d.Amount,
		NeedG80Certificate: d.NeedG80Certificate,
		Provider:           domain.Provider(d.Provider),
		Status:             domain.DonationStatus(d.Status),
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}
