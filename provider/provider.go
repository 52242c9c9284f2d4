package provider

import (
	"context"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
)

// EventKind classifies a normalized webhook event.
type EventKind string

const (
	EventCompleted EventKind = "completed"
	EventExpired   EventKind = "expired"
	EventIgnored   EventKind = "ignored"
)

// PixKeyType values used across the internal API. Adapters translate these
// into each gateway's own vocabulary. Stored document keys carry the
// PixKeyDocument label; NormalizePixKey reclassifies them into PixKeyCPF or
// PixKeyCNPJ by digit length before a transfer reaches an adapter.
const (
	PixKeyDocument = "document"
	PixKeyCPF      = "cpf"
	PixKeyCNPJ     = "cnpj"
	PixKeyPhone    = "phoneNumber"
	PixKeyEmail    = "email"
	PixKeyRandom   = "randomKey"
)

// ConfigField represents a required configuration field for a payment provider
type ConfigField struct {
	Key         string `json:"key"`
	Required    bool   `json:"required"`
	Type        string `json:"type"` // "string", "number", "url", "boolean"
	Description string `json:"description"`
	Example     string `json:"example"`
	Pattern     string `json:"pattern,omitempty"`
	MinLength   int    `json:"minLength,omitempty"`
	MaxLength   int    `json:"maxLength,omitempty"`
}

// ChargeRequest contains all information required to create a PIX charge
type ChargeRequest struct {
	// CorrelationID is the locally generated id for this attempt. Providers
	// echo it back; it is the key webhooks are reconciled against.
	CorrelationID string          `json:"correlationId"`
	UserID        int64           `json:"userId"`
	UserName      string          `json:"userName"`
	UserEmail     string          `json:"userEmail"`
	TaxID         string          `json:"taxId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Comment       string          `json:"comment,omitempty"`
}

// ChargeResponse contains the normalized result of a charge request
type ChargeResponse struct {
	// TransactionID identifies the charge for status polling and webhook
	// reconciliation. It is always the correlation id the adapter sent,
	// since that is the key providers echo back in callbacks.
	TransactionID  string `json:"transactionId"`
	PixCode        string `json:"pixCode"`
	QRCodeImage    string `json:"qrCodeImage,omitempty"`
	PaymentLinkURL string `json:"paymentLinkUrl,omitempty"`
}

// TransferRequest contains all information required to send a PIX transfer (cash out)
type TransferRequest struct {
	CorrelationID string          `json:"correlationId"`
	Amount        decimal.Decimal `json:"amount"`
	PixKey        string          `json:"pixKey"`
	PixKeyType    string          `json:"pixKeyType"` // internal vocabulary, see PixKey* constants
	Comment       string          `json:"comment,omitempty"`
}

// WebhookEvent is the normalized form of a provider callback payload
type WebhookEvent struct {
	Kind          EventKind      `json:"kind"`
	Event         string         `json:"event"` // raw provider event name
	CorrelationID string         `json:"correlationId,omitempty"`
	Charge        map[string]any `json:"charge,omitempty"`
}

// PixProvider defines the interface that all PIX gateways must implement
type PixProvider interface {
	// Initialize sets up the provider with resolved credentials and base URI.
	// All credential state lives on the provider instance; nothing is global.
	Initialize(conf map[string]string) error

	// GetRequiredConfig returns the configuration fields required for this provider
	GetRequiredConfig() []ConfigField

	// ValidateConfig validates the provided configuration against provider requirements
	ValidateConfig(conf map[string]string) error

	// CreateCharge requests a PIX QR code for a deposit (cash in)
	CreateCharge(ctx context.Context, request ChargeRequest) (*ChargeResponse, error)

	// CreateTransfer sends a PIX transfer for a withdrawal (cash out)
	CreateTransfer(ctx context.Context, request TransferRequest) error

	// VerifyWebhook checks the authenticity of an inbound webhook against the
	// raw body. Returns ErrInvalidSignature on mismatch. Verification is
	// skipped (with a warning) when no webhook secret is configured.
	VerifyWebhook(rawBody []byte, header http.Header) error

	// ParseWebhook normalizes a callback payload. The form values are the
	// fallback when the body is not valid JSON.
	ParseWebhook(rawBody []byte, form url.Values) (*WebhookEvent, error)
}

// ProviderFactory is a function type that creates a new PixProvider
type ProviderFactory func() PixProvider
