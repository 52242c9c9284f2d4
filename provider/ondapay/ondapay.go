package ondapay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pixloo/pixgate/infra/config"
	"github.com/pixloo/pixgate/infra/logger"
	"github.com/pixloo/pixgate/provider"
)

const (
	defaultBaseURI = "https://api.ondapay.app/api/v1/"

	endpointDeposit = "deposit/pix"
	endpointPayment = "payment/pix"
	signatureHeader = "X-Ondapay-Signature"
)

// OndaPayProvider implements the provider.PixProvider interface for OndaPay
type OndaPayProvider struct {
	apiKey        string
	webhookSecret string
	httpClient    *provider.HTTPClient
}

// NewProvider creates a new OndaPay PIX provider
func NewProvider() provider.PixProvider {
	return &OndaPayProvider{}
}

func (p *OndaPayProvider) GetRequiredConfig() []provider.ConfigField {
	return []provider.ConfigField{
		{
			Key:         "apiKey",
			Required:    true,
			Type:        "string",
			Description: "OndaPay API key (X-API-KEY header)",
			Example:     "ok_live_9f8e7d...",
			MinLength:   16,
		},
		{
			Key:         "webhookSecret",
			Required:    false,
			Type:        "string",
			Description: "HMAC secret for callback signature verification",
			Example:     "whsec_onda_01",
		},
		{
			Key:         "baseUri",
			Required:    false,
			Type:        "url",
			Description: "API base URI override",
			Example:     "https://api.ondapay.app",
		},
	}
}

func (p *OndaPayProvider) ValidateConfig(conf map[string]string) error {
	return provider.ValidateConfigFields("ondapay", conf, p.GetRequiredConfig())
}

func (p *OndaPayProvider) Initialize(conf map[string]string) error {
	p.apiKey = conf["apiKey"]
	if p.apiKey == "" {
		return fmt.Errorf("ondapay: %w: apiKey", provider.ErrIncompleteConfig)
	}
	p.webhookSecret = conf["webhookSecret"]

	baseURL := config.NormalizeBaseURI(conf["baseUri"], defaultBaseURI, "/api/v1/")
	p.httpClient = provider.NewHTTPClient("ondapay", &provider.HTTPClientConfig{
		BaseURLs: []string{baseURL},
		DefaultHeaders: map[string]string{
			"X-API-KEY": p.apiKey,
		},
	})
	return nil
}

// CreateCharge requests a PIX QR code. OndaPay takes amounts in cents.
func (p *OndaPayProvider) CreateCharge(ctx context.Context, request provider.ChargeRequest) (*provider.ChargeResponse, error) {
	payload := map[string]any{
		"external_id": request.CorrelationID,
		"amount":      provider.ToCents(request.Amount),
		"payer": map[string]any{
			"name":     request.UserName,
			"email":    request.UserEmail,
			"document": request.TaxID,
		},
		"description": request.Comment,
	}

	resp, err := p.httpClient.PostJSON(ctx, endpointDeposit, payload, nil)
	if err != nil {
		return nil, err
	}
	if !resp.Successful() {
		return nil, provider.NewRejectedError("ondapay", resp.StatusCode, string(resp.Body))
	}

	data, err := resp.JSON()
	if err != nil {
		return nil, fmt.Errorf("ondapay: %w", err)
	}

	// Callbacks echo the external_id we sent, so that is the id the
	// transaction is persisted and later looked up under.
	out := &provider.ChargeResponse{
		TransactionID: request.CorrelationID,
		PixCode:       provider.ExtractString(data, "qr_code", "emv"),
		QRCodeImage:   provider.ExtractString(data, "qr_code_base64"),
	}
	if out.PixCode == "" {
		return nil, fmt.Errorf("ondapay: charge response missing qr_code")
	}
	return out, nil
}

func (p *OndaPayProvider) CreateTransfer(ctx context.Context, request provider.TransferRequest) error {
	payload := map[string]any{
		"external_id": request.CorrelationID,
		"amount":      provider.ToCents(request.Amount),
		"pix_key":     request.PixKey,
		"key_type":    pixKeyType(request.PixKeyType),
	}

	resp, err := p.httpClient.PostJSON(ctx, endpointPayment, payload, nil)
	if err != nil {
		return err
	}
	if !resp.Successful() {
		return provider.NewRejectedError("ondapay", resp.StatusCode, string(resp.Body))
	}
	return nil
}

func pixKeyType(keyType string) string {
	switch keyType {
	case provider.PixKeyCPF, provider.PixKeyCNPJ:
		// OndaPay uses one label for both document kinds.
		return "document"
	case provider.PixKeyPhone:
		return "phone"
	case provider.PixKeyEmail:
		return "email"
	case provider.PixKeyRandom:
		return "evp"
	}
	return keyType
}

// VerifyWebhook checks the X-Ondapay-Signature header: HMAC-SHA256 of the
// raw body, hex encoded.
func (p *OndaPayProvider) VerifyWebhook(rawBody []byte, header http.Header) error {
	if p.webhookSecret == "" {
		logger.Warn("OndaPay webhook accepted without signature verification: no webhook secret configured", logger.LogContext{
			Provider: "ondapay",
		})
		return nil
	}

	signature := header.Get(signatureHeader)
	if signature == "" {
		return fmt.Errorf("ondapay: missing %s header: %w", signatureHeader, provider.ErrInvalidSignature)
	}

	mac := hmac.New(sha256.New, []byte(p.webhookSecret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return fmt.Errorf("ondapay: %w", provider.ErrInvalidSignature)
	}
	return nil
}

func (p *OndaPayProvider) ParseWebhook(rawBody []byte, form url.Values) (*provider.WebhookEvent, error) {
	var data map[string]any
	if err := json.Unmarshal(rawBody, &data); err != nil {
		data = make(map[string]any, len(form))
		for key := range form {
			data[key] = form.Get(key)
		}
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("ondapay: %w", provider.ErrMalformedPayload)
	}

	status := provider.ExtractString(data, "status", "event")
	out := &provider.WebhookEvent{Event: status}

	switch status {
	case "PAID", "COMPLETED":
		out.Kind = provider.EventCompleted
	case "EXPIRED", "CANCELED":
		out.Kind = provider.EventExpired
	default:
		out.Kind = provider.EventIgnored
		return out, nil
	}

	out.Charge = data
	out.CorrelationID = provider.ExtractString(data, "external_id", "transaction_id")
	if out.CorrelationID == "" {
		return nil, fmt.Errorf("ondapay: callback has no external_id: %w", provider.ErrMalformedPayload)
	}
	return out, nil
}
