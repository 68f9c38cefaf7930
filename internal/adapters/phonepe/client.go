package phonepe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/sukruthakeralam/donation-payments/internal/core/domain"
)

// Endpoints are the PhonePe API URLs for one environment.
// StatusURL is a format string taking the merchant order id.
type Endpoints struct {
	AuthURL   string
	PayURL    string
	StatusURL string
}

var (
	SandboxEndpoints = Endpoints{
		AuthURL:   "https://api-preprod.phonepe.com/apis/pg-sandbox/v1/oauth/token",
		PayURL:    "https://api-preprod.phonepe.com/apis/pg-sandbox/checkout/v2/pay",
		StatusURL: "https://api-preprod.phonepe.com/apis/pg-sandbox/checkout/v2/order/%s/status",
	}
	ProductionEndpoints = Endpoints{
		AuthURL:   "https://api.phonepe.com/apis/identity-manager/v1/oauth/token",
		PayURL:    "https://api.phonepe.com/apis/pg/checkout/v2/pay",
		StatusURL: "https://api.phonepe.com/apis/pg/checkout/v2/order/%s/status",
	}
)

// EndpointsFor returns the endpoints for "production"; anything else gets the sandbox.
func EndpointsFor(env string) Endpoints {
	if env == "production" {
		return ProductionEndpoints
	}
	return SandboxEndpoints
}

// Config holds the PhonePe client settings.
type Config struct {
	ClientID      string
	ClientSecret  string
	ClientVersion int
	Endpoints     Endpoints
	Timeout       time.Duration
}

// Client implements ports.PhonePeGateway.
type Client struct {
	endpoints  Endpoints
	tokens     *TokenManager
	httpClient *http.Client
}

// NewClient creates a new PhonePe client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ClientVersion <= 0 {
		cfg.ClientVersion = 1
	}
	if cfg.Endpoints.AuthURL == "" {
		cfg.Endpoints = SandboxEndpoints
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	return &Client{
		endpoints:  cfg.Endpoints,
		tokens:     NewTokenManager(cfg.Endpoints.AuthURL, cfg.ClientID, cfg.ClientSecret, cfg.ClientVersion, httpClient),
		httpClient: httpClient,
	}
}

// Tokens exposes the client's token cache.
func (c *Client) Tokens() *TokenManager {
	return c.tokens
}

// ToPaise converts rupees to the minor units PhonePe expects.
func ToPaise(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

type merchantURLs struct {
	RedirectURL string `json:"redirectUrl"`
}

type paymentFlow struct {
	Type         string       `json:"type"`
	Message      string       `json:"message"`
	MerchantURLs merchantURLs `json:"merchantUrls"`
}

type createPaymentRequest struct {
	MerchantOrderID string            `json:"merchantOrderId"`
	Amount          int64             `json:"amount"`
	ExpireAfter     int               `json:"expireAfter"`
	MetaInfo        map[string]string `json:"metaInfo"`
	PaymentFlow     paymentFlow       `json:"paymentFlow"`
}

type createPaymentResponse struct {
	OrderID     string `json:"orderId"`
	State       string `json:"state"`
	ExpireAt    int64  `json:"expireAt"`
	RedirectURL string `json:"redirectUrl"`
}

type paymentDetail struct {
	PaymentMode   string `json:"paymentMode"`
	TransactionID string `json:"transactionId"`
	Timestamp     int64  `json:"timestamp"`
	Amount        int64  `json:"amount"`
	State         string `json:"state"`
	ErrorCode     string `json:"errorCode"`
}

type orderStatusResponse struct {
	OrderID        string          `json:"orderId"`
	State          string          `json:"state"`
	Amount         int64           `json:"amount"`
	ExpireAt       int64           `json:"expireAt"`
	PaymentDetails json.RawMessage `json:"paymentDetails"`
}

// CreatePayment creates a checkout order. Amount is given in rupees and sent in paise.
func (c *Client) CreatePayment(ctx context.Context, order domain.PhonePeOrder) (*domain.PhonePePayment, error) {
	if order.OrderID == "" || order.Amount <= 0 {
		return nil, fmt.Errorf("%w: order id and a positive amount are required", domain.ErrInvalidRequest)
	}

	meta := order.MetaInfo
	if meta == nil {
		meta = map[string]string{}
	}

	payload, err := json.Marshal(createPaymentRequest{
		MerchantOrderID: order.OrderID,
		Amount:          ToPaise(order.Amount),
		ExpireAfter:     order.ExpireAfterSeconds,
		MetaInfo:        meta,
		PaymentFlow: paymentFlow{
			Type:         "PG_CHECKOUT",
			Message:      order.Message,
			MerchantURLs: merchantURLs{RedirectURL: order.RedirectURL},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment request: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, c.endpoints.PayURL, payload)
	if err != nil {
		log.Printf("Failed to create PhonePe payment for order %s: %v", order.OrderID, err)
		return nil, err
	}

	var out createPaymentResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &domain.GatewayError{Provider: domain.ProviderPhonePe, StatusCode: http.StatusOK, Body: string(body)}
	}

	log.Printf("Created PhonePe payment %s for order %s", out.OrderID, order.OrderID)
	return &domain.PhonePePayment{
		GatewayOrderID: out.OrderID,
		State:          out.State,
		ExpiresAt:      out.ExpireAt,
		RedirectURL:    out.RedirectURL,
	}, nil
}

// GetOrderStatus polls the order status and maps it to the canonical response.
func (c *Client) GetOrderStatus(ctx context.Context, orderID string) (*domain.GatewayResponse, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", domain.ErrInvalidRequest)
	}

	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf(c.endpoints.StatusURL, url.PathEscape(orderID)), nil)
	if err != nil {
		log.Printf("Failed to get PhonePe status for order %s: %v", orderID, err)
		return nil, err
	}

	var out orderStatusResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &domain.GatewayError{Provider: domain.ProviderPhonePe, StatusCode: http.StatusOK, Body: string(body)}
	}

	resp := &domain.GatewayResponse{
		Provider:          domain.ProviderPhonePe,
		OrderID:           orderID,
		ReferenceID:       out.OrderID,
		TransactionStatus: out.State,
		Status:            MapState(out.State),
		Amount:            float64(out.Amount) / 100,
		RawPayload:        string(body),
	}

	if len(out.PaymentDetails) > 0 && string(out.PaymentDetails) != "null" {
		resp.PaymentDetails = out.PaymentDetails

		var details []paymentDetail
		if err := json.Unmarshal(out.PaymentDetails, &details); err == nil && len(details) > 0 {
			last := details[len(details)-1]
			resp.Metadata.PayMode = last.PaymentMode
			resp.Metadata.BankReferenceNumber = last.TransactionID
			if last.Timestamp > 0 {
				resp.Metadata.TransactionDate = time.UnixMilli(last.Timestamp).UTC().Format(time.RFC3339)
			}
			resp.Metadata.ReasonMessage = last.ErrorCode
		}
	}

	log.Printf("Retrieved PhonePe status for order %s: %s", orderID, out.State)
	return resp, nil
}

// do sends an authorized request. A 401 drops the cached token and retries once.
func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		token, err := c.tokens.EnsureToken(ctx)
		if err != nil {
			return nil, err
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "O-Bearer "+token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: read response: %v", domain.ErrNetwork, err)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil
		case resp.StatusCode == http.StatusUnauthorized && attempt == 0:
			log.Printf("PhonePe rejected cached token, refreshing")
			c.tokens.Invalidate()
			continue
		case resp.StatusCode == http.StatusUnauthorized:
			return nil, &domain.AuthError{
				Provider:   domain.ProviderPhonePe,
				StatusCode: resp.StatusCode,
				Message:    errorMessage(body),
			}
		default:
			return nil, &domain.GatewayError{
				Provider:   domain.ProviderPhonePe,
				StatusCode: resp.StatusCode,
				Body:       string(body),
			}
		}
	}
}
