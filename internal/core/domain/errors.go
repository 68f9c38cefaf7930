// Package domain contains the core business entities for the donation payment service.
package domain

import (
	"errors"
	"fmt"
)

// Domain errors - represent business rule violations and gateway failures.
var (
	// ErrInvalidRequest is returned for malformed requests.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNotFound is returned when no payment log or donation exists for an order id.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateOrder is returned when a payment log already exists for an order id.
	ErrDuplicateOrder = errors.New("duplicate merchant order id")

	// ErrUnsupportedProvider is returned for an unknown payment provider.
	ErrUnsupportedProvider = errors.New("unsupported payment provider")

	// ErrNetwork is returned when a gateway cannot be reached. Callers may retry.
	ErrNetwork = errors.New("gateway network error")

	// ErrAuth is returned when a gateway rejects the client credentials.
	ErrAuth = errors.New("gateway authentication failed")

	// ErrGateway is returned when a gateway answers with a non-success status.
	ErrGateway = errors.New("payment gateway error")

	// ErrEncryption is returned when an outbound packet cannot be encrypted.
	ErrEncryption = errors.New("packet encryption failed")

	// ErrDecode is returned when an inbound packet is not valid base64 or is not block aligned.
	ErrDecode = errors.New("packet decode failed")

	// ErrDecryption is returned when an inbound packet fails to decrypt.
	ErrDecryption = errors.New("packet decryption failed")

	// ErrMalformedPacket is returned when a decrypted packet lacks required fields.
	ErrMalformedPacket = errors.New("malformed packet")
)

// GatewayError carries the provider's status code and body for diagnostics.
type GatewayError struct {
	Provider   Provider
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

func (e *GatewayError) Unwrap() error {
	return ErrGateway
}

// AuthError is returned when a token grant is rejected.
type AuthError struct {
	Provider   Provider
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s token grant rejected with status %d: %s", e.Provider, e.StatusCode, e.Message)
}

func (e *AuthError) Unwrap() error {
	return ErrAuth
}

// IsCodecError reports whether err came from decoding an inbound packet.
func IsCodecError(err error) bool {
	return errors.Is(err, ErrDecode) || errors.Is(err, ErrDecryption) || errors.Is(err, ErrMalformedPacket)
}

// IsTransient reports whether err is worth retrying later.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrGateway) || errors.Is(err, ErrAuth)
}

// ServiceError wraps errors with additional context.
type ServiceError struct {
	Err     error
	Message string
	Code    string
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError.
func NewServiceError(err error, message, code string) *ServiceError {
	return &ServiceError{Err: err, Message: message, Code: code}
}
