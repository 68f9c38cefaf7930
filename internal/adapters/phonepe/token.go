// Package phonepe implements the PhonePe PG checkout v2 integration.
package phonepe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sukruthakeralam/donation-payments/internal/core/domain"
)

// authToken is immutable once stored; a refresh swaps in a new value.
type authToken struct {
	value     string
	expiresAt int64 // epoch milliseconds
}

// tokenSkew refreshes a token this long before the gateway expires it.
const tokenSkew = 60 * time.Second

func (t *authToken) valid(now time.Time) bool {
	return t != nil && t.value != "" && now.Add(tokenSkew).UnixMilli() < t.expiresAt
}

// TokenManager caches the client-credentials token.
//
// Concurrent callers that find the cache stale may each fetch a token; the last
// one stored wins. Readers always see a complete token/expiry pair.
type TokenManager struct {
	authURL       string
	clientID      string
	clientSecret  string
	clientVersion int
	httpClient    *http.Client
	now           func() time.Time

	current atomic.Pointer[authToken]
}

// NewTokenManager creates a token manager for the given auth endpoint.
func NewTokenManager(authURL, clientID, clientSecret string, clientVersion int, httpClient *http.Client) *TokenManager {
	return &TokenManager{
		authURL:       authURL,
		clientID:      clientID,
		clientSecret:  clientSecret,
		clientVersion: clientVersion,
		httpClient:    httpClient,
		now:           time.Now,
	}
}

// EnsureToken returns the cached token, fetching a new one when it is missing or expired.
func (m *TokenManager) EnsureToken(ctx context.Context) (string, error) {
	if t := m.current.Load(); t.valid(m.now()) {
		return t.value, nil
	}
	return m.refresh(ctx)
}

// Invalidate drops the cached token so the next call fetches a fresh one.
func (m *TokenManager) Invalidate() {
	m.current.Store(nil)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
	TokenType   string `json:"token_type"`
}

func (m *TokenManager) refresh(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("client_id", m.clientID)
	form.Set("client_secret", m.clientSecret)
	form.Set("grant_type", "client_credentials")
	form.Set("client_version", strconv.Itoa(m.clientVersion))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token request failed: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("%w: read token response: %v", domain.ErrNetwork, err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Printf("PhonePe token grant rejected with status %d", resp.StatusCode)
		return "", &domain.AuthError{
			Provider:   domain.ProviderPhonePe,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body),
		}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil || tr.AccessToken == "" {
		return "", &domain.AuthError{
			Provider:   domain.ProviderPhonePe,
			StatusCode: resp.StatusCode,
			Message:    "token response missing access_token",
		}
	}

	m.current.Store(&authToken{value: tr.AccessToken, expiresAt: tr.ExpiresAt})
	log.Printf("Obtained PhonePe auth token (expires at %d)", tr.ExpiresAt)
	return tr.AccessToken, nil
}

// errorMessage pulls the "message" field out of a PhonePe error body, falling back to the raw body.
func errorMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if json.Unmarshal(body, &e) == nil && e.Message != "" {
		return e.Message
	}
	return string(body)
}
