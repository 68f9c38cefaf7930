package postgres

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/sukruthakeralam/donation-payments/internal/core/domain"
)

type paymentLogModel struct {
	ID                  string         `gorm:"type:uuid;primaryKey"`
	MerchantOrderID     string         `gorm:"size:64;not null;uniqueIndex"`
	Provider            string         `gorm:"size:20;not null"`
	GatewayReferenceID  string         `gorm:"size:128"`
	Status              string         `gorm:"size:20;not null;index"`
	Amount              float64        `gorm:"not null"`
	Currency            string         `gorm:"size:3;not null"`
	RedirectURL         string         `gorm:"type:text"`
	EncryptedTrans      string         `gorm:"type:text"`
	RawResponse         datatypes.JSON `gorm:"type:jsonb"`
	PaymentDetails      datatypes.JSON `gorm:"type:jsonb"`
	VerificationData    string         `gorm:"type:text"`
	PayMode             string         `gorm:"size:50"`
	BankCode            string         `gorm:"size:50"`
	BankReferenceNumber string         `gorm:"size:128"`
	TransactionDate     string         `gorm:"size:64"`
	ReasonMessage       string         `gorm:"type:text"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (paymentLogModel) TableName() string { return "payment_logs" }

func (m *paymentLogModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

type donationModel struct {
	ID                 string  `gorm:"type:uuid;primaryKey"`
	OrderID            string  `gorm:"size:64;not null;uniqueIndex"`
	FullName           string  `gorm:"size:255;not null"`
	Email              string  `gorm:"size:255;not null"`
	ContactNumber      string  `gorm:"size:32"`
	Amount             float64 `gorm:"not null"`
	NeedG80Certificate bool    `gorm:"not null;default:false"`
	Provider           string  `gorm:"size:20;not null"`
	Status             string  `gorm:"size:20;not null;index"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (donationModel) TableName() string { return "donations" }

func (m *donationModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

type callbackModel struct {
	ID              string `gorm:"type:uuid;primaryKey"`
	Provider        string `gorm:"size:20;not null"`
	Source          string `gorm:"size:32;not null"`
	MerchantOrderID string `gorm:"size:64;index"`
	Classification  string `gorm:"size:20;not null"`
	ErrorMessage    string `gorm:"type:text"`
	PayloadLength   int
	ReceivedAt      time.Time `gorm:"not null"`
}

func (callbackModel) TableName() string { return "gateway_callbacks" }

type emailLogModel struct {
	ID             string         `gorm:"type:uuid;primaryKey"`
	DonationID     string         `gorm:"type:uuid;index"`
	RecipientEmail string         `gorm:"size:255;not null"`
	MailType       string         `gorm:"size:50;not null"`
	Subject        string         `gorm:"size:255"`
	Status         string         `gorm:"size:20;not null"`
	MessageID      string         `gorm:"size:255"`
	ErrorMessage   string         `gorm:"type:text"`
	Context        datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (emailLogModel) TableName() string { return "email_logs" }

func jsonOrNil(b []byte) datatypes.JSON {
	if len(b) == 0 {
		return nil
	}
	return datatypes.JSON(b)
}

func toPaymentLogModel(l *domain.PaymentLog) *paymentLogModel {
	return &paymentLogModel{
		ID:                  l.ID,
		MerchantOrderID:     l.MerchantOrderID,
		Provider:            string(l.Provider),
		GatewayReferenceID:  l.GatewayReferenceID,
		Status:              string(l.Status),
		Amount:              l.Amount,
		Currency:            l.Currency,
		RedirectURL:         l.RedirectURL,
		EncryptedTrans:      l.EncryptedTrans,
		RawResponse:         jsonOrNil([]byte(l.RawResponse)),
		PaymentDetails:      jsonOrNil(l.PaymentDetails),
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

func (m *paymentLogModel) toDomain() *domain.PaymentLog {
	return &domain.PaymentLog{
		ID:                 m.ID,
		MerchantOrderID:    m.MerchantOrderID,
		Provider:           domain.Provider(m.Provider),
		GatewayReferenceID: m.GatewayReferenceID,
		Status:             domain.PaymentStatus(m.Status),
		Amount:             m.Amount,
		Currency:           m.Currency,
		RedirectURL:        m.RedirectURL,
		EncryptedTrans:     m.EncryptedTrans,
		RawResponse:        string(m.RawResponse),
		PaymentDetails:     []byte(m.PaymentDetails),
		VerificationData:   m.VerificationData,
		Metadata: domain.PaymentMetadata{
			PayMode:             m.PayMode,
			BankCode:            m.BankCode,
			BankReferenceNumber: m.BankReferenceNumber,
			TransactionDate:     m.TransactionDate,
			ReasonMessage:       m.ReasonMessage,
		},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func toDonationModel(d *domain.Donation) *donationModel {
	return &donationModel{
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

func (m *donationModel) toDomain() *domain.Donation {
	return &domain.Donation{
		ID:                 m.ID,
		OrderID:            m.OrderID,
		FullName:           m.FullName,
		Email:              m.Email,
		ContactNumber:      m.ContactNumber,
		Amount:             m.Amount,
		NeedG80Certificate: m.NeedG80Certificate,
		Provider:           domain.Provider(m.Provider),
		Status:             domain.DonationStatus(m.Status),
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}
