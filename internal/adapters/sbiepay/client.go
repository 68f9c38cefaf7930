package sbiepay

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sukruthakeralam/donation-payments/internal/core/domain"
)

// Config holds the merchant settings for the SBIePay client.
type Config struct {
	MerchantID    string
	EncryptionKey string
	AggregatorID  string
	SuccessURL    string
	FailURL       string
	GatewayURL    string
	DVQueryURL    string
	Checksum      Checksum
	Timeout       time.Duration
}

// Client implements ports.SBIePayGateway.
type Client struct {
	cfg        Config
	codec      *Codec
	httpClient *http.Client
}

// NewClient creates a new SBIePay client.
func NewClient(cfg Config) (*Client, error) {
	codec, err := NewCodec(cfg.EncryptionKey, cfg.Checksum)
	if err != nil {
		return nil, err
	}
	if cfg.AggregatorID == "" {
		cfg.AggregatorID = "SBIEPAY"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &Client{
		cfg:   cfg,
		codec: codec,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

// FormatAmount renders an amount the way SBIePay expects it: rupees with two decimals.
func FormatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}

// CreatePayment builds the encrypted transaction packet and the form the browser posts to the gateway.
func (c *Client) CreatePayment(orderID string, amount float64, customerID string) (*domain.SBIePayForm, error) {
	if orderID == "" || amount <= 0 {
		return nil, fmt.Errorf("%w: order id and a positive amount are required", domain.ErrInvalidRequest)
	}
	if customerID == "" {
		customerID = "NA"
	}

	packet := []string{
		c.cfg.MerchantID,
		"DOM",
		"IN",
		"INR",
		FormatAmount(amount),
		"NA",
		c.cfg.SuccessURL,
		c.cfg.FailURL,
		c.cfg.AggregatorID,
		orderID,
		customerID,
		"NB",
		"ONLINE",
		"ONLINE",
	}

	encrypted, err := c.codec.Encode(packet)
	if err != nil {
		return nil, err
	}

	log.Printf("Created SBIePay payment packet for order %s (amount %s)", orderID, FormatAmount(amount))

	return &domain.SBIePayForm{
		GatewayURL:     c.cfg.GatewayURL,
		OrderID:        orderID,
		EncryptedTrans: encrypted,
		FormData: map[string]string{
			"EncryptTrans": encrypted,
			"merchIdVal":   c.cfg.MerchantID,
		},
	}, nil
}

// HandleResponse decrypts a redirect or push callback packet into the canonical response.
func (c *Client) HandleResponse(encrypted string) (*domain.GatewayResponse, error) {
	fields, err := c.codec.Decode(encrypted)
	if err != nil {
		log.Printf("Rejected SBIePay response packet (%d bytes): %v", len(encrypted), err)
		return nil, err
	}

	values, err := ResponseSchema.Parse(fields)
	if err != nil {
		log.Printf("Rejected SBIePay response packet with %d fields", len(fields))
		return nil, err
	}

	resp, err := toGatewayResponse(values, strings.Join(fields, "|"))
	if err != nil {
		return nil, err
	}

	log.Printf("Decoded SBIePay response for order %s: status=%s atrn=%s",
		resp.OrderID, resp.TransactionStatus, resp.ReferenceID)
	return resp, nil
}

// VerifyTransaction queries the double verification endpoint. The query and its reply are plaintext.
func (c *Client) VerifyTransaction(ctx context.Context, referenceID, orderID string, amount float64) (*domain.GatewayResponse, error) {
	if referenceID == "" && orderID == "" {
		return nil, fmt.Errorf("%w: either atrn or merchant order number is required", domain.ErrInvalidRequest)
	}

	amountField := ""
	if amount > 0 {
		amountField = FormatAmount(amount)
	}
	query := strings.Join([]string{referenceID, c.cfg.MerchantID, orderID, amountField}, "|")

	form := url.Values{}
	form.Set("queryRequest", query)
	form.Set("aggregatorId", c.cfg.AggregatorID)
	form.Set("merchantId", c.cfg.MerchantID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.DVQueryURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create verification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: verification request failed: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("%w: read verification reply: %v", domain.ErrNetwork, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.GatewayError{
			Provider:   domain.ProviderSBIePay,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	reply := strings.TrimSpace(string(body))
	values, err := VerificationSchema.Parse(strings.Split(reply, "|"))
	if err != nil {
		log.Printf("Unparseable SBIePay verification reply for order %s", orderID)
		return nil, err
	}

	result, err := toGatewayResponse(values, reply)
	if err != nil {
		return nil, err
	}
	result.Verification = reply

	log.Printf("Verified SBIePay transaction for order %s: status=%s", result.OrderID, result.TransactionStatus)
	return result, nil
}

func toGatewayResponse(values map[string]string, raw string) (*domain.GatewayResponse, error) {
	amount, err := parseAmount(values["amount"])
	if err != nil {
		return nil, err
	}

	status := values["transaction_status"]
	reason := values["reason_message"]
	if reason == "" {
		reason = values["status_description"]
	}

	return &domain.GatewayResponse{
		Provider:          domain.ProviderSBIePay,
		OrderID:           values["merchant_order_number"],
		ReferenceID:       values["atrn"],
		TransactionStatus: status,
		Status:            MapStatus(status),
		Amount:            amount,
		Metadata: domain.PaymentMetadata{
			PayMode:             values["pay_mode"],
			BankCode:            values["bank_code"],
			BankReferenceNumber: values["bank_reference_number"],
			TransactionDate:     values["transaction_date"],
			ReasonMessage:       reason,
		},
		RawPayload: raw,
	}, nil
}

func parseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: amount %q is not a number", domain.ErrMalformedPacket, s)
	}
	return v, nil
}
