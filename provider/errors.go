package provider

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrGatewayNotConfigured is returned when no provider is enabled and the
	// client did not request a usable one.
	ErrGatewayNotConfigured = errors.New("payment gateway not configured")

	// ErrIncompleteConfig is returned when a provider's resolved credentials
	// are empty. Callers must reject the request rather than call the
	// provider with an empty credential.
	ErrIncompleteConfig = errors.New("gateway credentials incomplete")

	// ErrInvalidSignature is returned when a webhook signature does not match.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrMalformedPayload is returned when a webhook body cannot be parsed or
	// lacks the charge object / correlation id.
	ErrMalformedPayload = errors.New("malformed webhook payload")
)

// ValidationError reports invalid client input, field by field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// ProviderError reports a failed outbound call to a gateway. Unavailable is
// set for network-level failures (unreachable, timeout); otherwise the
// provider answered with a non-2xx status. Body never contains credentials,
// only what the provider sent back.
type ProviderError struct {
	Provider    string
	StatusCode  int
	Body        string
	Unavailable bool
	Err         error
}

func (e *ProviderError) Error() string {
	if e.Unavailable {
		return fmt.Sprintf("%s: provider unreachable: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: provider rejected request: status=%d body=%s", e.Provider, e.StatusCode, e.Body)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewUnavailableError wraps a network-level failure.
func NewUnavailableError(providerName string, err error) *ProviderError {
	return &ProviderError{Provider: providerName, Unavailable: true, Err: err}
}

// NewRejectedError wraps a non-2xx provider response.
func NewRejectedError(providerName string, status int, body string) *ProviderError {
	return &ProviderError{Provider: providerName, StatusCode: status, Body: body}
}

// IsUnavailable reports whether err is a network-level provider failure.
func IsUnavailable(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Unavailable
}
