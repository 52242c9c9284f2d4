package ezzepay

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
	defaultBaseURI = "https://api.ezzebank.com/v2/"

	endpointQRCode  = "pix/qrcode"
	endpointPayment = "pix/payment"
	signatureHeader = "X-Ezzepay-Signature"
)

// Events EzzePay sends on its callback endpoint.
const (
	eventDepositPaid    = "deposit.paid"
	eventDepositExpired = "deposit.expired"
)

// EzzePayProvider implements the provider.PixProvider interface for EzzePay
type EzzePayProvider struct {
	token         string
	webhookSecret string
	httpClient    *provider.HTTPClient
}

// NewProvider creates a new EzzePay PIX provider
func NewProvider() provider.PixProvider {
	return &EzzePayProvider{}
}

func (p *EzzePayProvider) GetRequiredConfig() []provider.ConfigField {
	return []provider.ConfigField{
		{
			Key:         "token",
			Required:    true,
			Type:        "string",
			Description: "EzzePay API token, with or without the Bearer prefix",
			Example:     "Bearer eyJhbGciOi...",
		},
		{
			Key:         "webhookSecret",
			Required:    false,
			Type:        "string",
			Description: "HMAC secret for callback signature verification",
			Example:     "whsec_ezze_01",
		},
		{
			Key:         "baseUri",
			Required:    false,
			Type:        "url",
			Description: "API base URI override",
			Example:     "https://api.ezzebank.com",
		},
	}
}

func (p *EzzePayProvider) ValidateConfig(conf map[string]string) error {
	return provider.ValidateConfigFields("ezzepay", conf, p.GetRequiredConfig())
}

func (p *EzzePayProvider) Initialize(conf map[string]string) error {
	auth := config.ResolveAuthorization(conf["token"], "")
	if auth == "" {
		return fmt.Errorf("ezzepay: %w: token", provider.ErrIncompleteConfig)
	}
	if len(auth) < 7 || (auth[:7] != "Bearer " && auth[:6] != "Basic ") {
		auth = "Bearer " + auth
	}
	p.token = auth
	p.webhookSecret = conf["webhookSecret"]

	baseURL := config.NormalizeBaseURI(conf["baseUri"], defaultBaseURI, "/v2/")
	p.httpClient = provider.NewHTTPClient("ezzepay", &provider.HTTPClientConfig{
		BaseURLs: []string{baseURL},
		DefaultHeaders: map[string]string{
			"Authorization": p.token,
		},
	})
	return nil
}

// CreateCharge requests a PIX QR code. EzzePay takes amounts in cents.
func (p *EzzePayProvider) CreateCharge(ctx context.Context, request provider.ChargeRequest) (*provider.ChargeResponse, error) {
	payload := map[string]any{
		"external_id": request.CorrelationID,
		"amount":      provider.ToCents(request.Amount),
		"payer": map[string]any{
			"name":     request.UserName,
			"document": request.TaxID,
		},
	}

	resp, err := p.httpClient.PostJSON(ctx, endpointQRCode, payload, nil)
	if err != nil {
		return nil, err
	}
	if !resp.Successful() {
		return nil, provider.NewRejectedError("ezzepay", resp.StatusCode, string(resp.Body))
	}

	data, err := resp.JSON()
	if err != nil {
		return nil, fmt.Errorf("ezzepay: %w", err)
	}

	// Callbacks echo the external_id we sent, so that is the id the
	// transaction is persisted and later looked up under.
	out := &provider.ChargeResponse{
		TransactionID: request.CorrelationID,
		PixCode:       provider.ExtractString(data, "emvqrcps", "qrcode"),
		QRCodeImage:   provider.ExtractString(data, "qrcode_base64"),
	}
	if out.PixCode == "" {
		return nil, fmt.Errorf("ezzepay: charge response missing qrcode")
	}
	return out, nil
}

func (p *EzzePayProvider) CreateTransfer(ctx context.Context, request provider.TransferRequest) error {
	payload := map[string]any{
		"external_id": request.CorrelationID,
		"amount":      provider.ToCents(request.Amount),
		"key":         request.PixKey,
		"key_type":    pixKeyType(request.PixKeyType),
		"description": request.Comment,
	}

	resp, err := p.httpClient.PostJSON(ctx, endpointPayment, payload, nil)
	if err != nil {
		return err
	}
	if !resp.Successful() {
		return provider.NewRejectedError("ezzepay", resp.StatusCode, string(resp.Body))
	}
	return nil
}

func pixKeyType(keyType string) string {
	switch keyType {
	case provider.PixKeyCPF:
		return "CPF"
	case provider.PixKeyCNPJ:
		return "CNPJ"
	case provider.PixKeyPhone:
		return "CELULAR"
	case provider.PixKeyEmail:
		return "EMAIL"
	case provider.PixKeyRandom:
		return "CHAVE_ALEATORIA"
	}
	return keyType
}

// VerifyWebhook checks the X-Ezzepay-Signature header: HMAC-SHA256 of the
// raw body, hex encoded.
func (p *EzzePayProvider) VerifyWebhook(rawBody []byte, header http.Header) error {
	if p.webhookSecret == "" {
		logger.Warn("EzzePay webhook accepted without signature verification: no webhook secret configured", logger.LogContext{
			Provider: "ezzepay",
		})
		return nil
	}

	signature := header.Get(signatureHeader)
	if signature == "" {
		return fmt.Errorf("ezzepay: missing %s header: %w", signatureHeader, provider.ErrInvalidSignature)
	}

	mac := hmac.New(sha256.New, []byte(p.webhookSecret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return fmt.Errorf("ezzepay: %w", provider.ErrInvalidSignature)
	}
	return nil
}

func (p *EzzePayProvider) ParseWebhook(rawBody []byte, form url.Values) (*provider.WebhookEvent, error) {
	var data map[string]any
	if err := json.Unmarshal(rawBody, &data); err != nil {
		data = make(map[string]any, len(form))
		for key := range form {
			data[key] = form.Get(key)
		}
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("ezzepay: %w", provider.ErrMalformedPayload)
	}

	event := provider.ExtractString(data, "event", "type")
	out := &provider.WebhookEvent{Event: event}

	switch event {
	case eventDepositPaid:
		out.Kind = provider.EventCompleted
	case eventDepositExpired:
		out.Kind = provider.EventExpired
	default:
		out.Kind = provider.EventIgnored
		return out, nil
	}

	charge := provider.ExtractMap(data, "data", "payload")
	if charge == nil {
		charge = data
	}
	out.Charge = charge
	out.CorrelationID = provider.ExtractString(charge, "external_id", "transactionId")
	if out.CorrelationID == "" {
		return nil, fmt.Errorf("ezzepay: callback has no external_id: %w", provider.ErrMalformedPayload)
	}
	return out, nil
}
