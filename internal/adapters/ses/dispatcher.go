// Package ses sends donation thank-you e-mails through Amazon SES.
package ses

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"text/template"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/sukruthakeralam/donation-payments/internal/core/domain"
)

const (
	MailTypeThankYou = "donation_thank_you"

	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// SendEmailAPI is the part of the SES v2 client the dispatcher uses.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailLogStore persists e-mail attempts.
type EmailLogStore interface {
	SaveEmailLog(ctx context.Context, log *domain.EmailLog) error
}

// Dispatcher implements ports.Notifier.
type Dispatcher struct {
	client SendEmailAPI
	sender string
	logs   EmailLogStore
}

// NewDispatcher creates a dispatcher around an SES client.
func NewDispatcher(client SendEmailAPI, sender string, logs EmailLogStore) *Dispatcher {
	return &Dispatcher{client: client, sender: sender, logs: logs}
}

// NewFromRegion loads the default AWS credential chain for region.
func NewFromRegion(ctx context.Context, region, sender string, logs EmailLogStore) (*Dispatcher, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewDispatcher(sesv2.NewFromConfig(cfg), sender, logs), nil
}

var bodyTemplate = template.Must(template.New("thank_you").Parse(`Dear {{.FullName}},

Thank you for your generous donation to {{.OrganizationName}}.

Order ID:      {{.OrderID}}
Amount:        ₹{{.Amount}}
Payment mode:  {{.PaymentMode}}
Status:        {{.Status}}
Date:          {{.DonationDate}}
{{if .NeedG80Certificate}}
Your 80G certificate will be sent to you separately.
{{end}}
For any questions, write to {{.ContactEmail}}.

© {{.Year}} {{.OrganizationName}}
`))

// Subject returns the thank-you subject line for an order.
func Subject(orderID string) string {
	return "Thank You for Your Donation - Order " + orderID
}

// SendThankYou sends the thank-you e-mail and records the attempt.
// A delivery failure is reported in the result and as an error.
func (d *Dispatcher) SendThankYou(ctx context.Context, donationID, recipient string, data domain.ThankYouContext) (*domain.DeliveryResult, error) {
	contextJSON, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal e-mail context: %w", err)
	}

	entry := &domain.EmailLog{
		DonationID:     donationID,
		RecipientEmail: recipient,
		MailType:       MailTypeThankYou,
		Subject:        Subject(data.OrderID),
		Status:         StatusPending,
		Context:        contextJSON,
	}
	if err := d.logs.SaveEmailLog(ctx, entry); err != nil {
		log.Printf("Failed to record e-mail log for donation %s: %v", donationID, err)
	}

	var body bytes.Buffer
	if err := bodyTemplate.Execute(&body, data); err != nil {
		return d.fail(ctx, entry, fmt.Errorf("failed to render e-mail: %w", err))
	}

	out, err := d.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(d.sender),
		Destination:      &types.Destination{ToAddresses: []string{recipient}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(entry.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body.String()), Charset: aws.String("UTF-8")},
				},
			},
		},
	})
	if err != nil {
		return d.fail(ctx, entry, fmt.Errorf("ses send failed: %w", err))
	}

	entry.Status = StatusSent
	entry.MessageID = aws.ToString(out.MessageId)
	if err := d.logs.SaveEmailLog(ctx, entry); err != nil {
		log.Printf("Failed to update e-mail log %s: %v", entry.ID, err)
	}

	log.Printf("Sent thank-you e-mail for order %s (message %s)", data.OrderID, entry.MessageID)
	return &domain.DeliveryResult{Status: StatusSent, MessageID: entry.MessageID}, nil
}

func (d *Dispatcher) fail(ctx context.Context, entry *domain.EmailLog, cause error) (*domain.DeliveryResult, error) {
	entry.Status = StatusFailed
	entry.ErrorMessage = cause.Error()
	if err := d.logs.SaveEmailLog(ctx, entry); err != nil {
		log.Printf("Failed to update e-mail log %s: %v", entry.ID, err)
	}
	return &domain.DeliveryResult{Status: StatusFailed, ErrorMessage: cause.Error()}, cause
}
