package suitpay

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pixloo/pixgate/infra/config"
	"github.com/pixloo/pixgate/infra/logger"
	"github.com/pixloo/pixgate/provider"
)

const (
	defaultBaseURI = "https://ws.suitpay.app/api/v1/"

	endpointQRCode  = "gateway/request-qrcode"
	endpointPixCash = "gateway/pix-payment"
	authHeader      = "Authentication"
	clientIDHeader  = "ci"
	clientSecretHdr = "cs"
)

// Transaction statuses SuitPay reports in callbacks.
const (
	statusPaidOut       = "PAID_OUT"
	statusPaymentAccept = "PAYMENT_ACCEPT"
	statusCanceled      = "CANCELED"
	statusExpired       = "EXPIRED"
)

// SuitPayProvider implements the provider.PixProvider interface for SuitPay
type SuitPayProvider struct {
	clientID      string
	clientSecret  string
	webhookSecret string
	httpClient    *provider.HTTPClient
}

// NewProvider creates a new SuitPay PIX provider
func NewProvider() provider.PixProvider {
	return &SuitPayProvider{}
}

func (p *SuitPayProvider) GetRequiredConfig() []provider.ConfigField {
	return []provider.ConfigField{
		{
			Key:         "clientId",
			Required:    true,
			Type:        "string",
			Description: "SuitPay client id (ci header)",
			Example:     "marcos_0001",
		},
		{
			Key:         "clientSecret",
			Required:    true,
			Type:        "string",
			Description: "SuitPay client secret (cs header)",
			Example:     "f0c2a1...",
		},
		{
			Key:         "webhookSecret",
			Required:    false,
			Type:        "string",
			Description: "Shared token SuitPay echoes in the Authentication header of callbacks",
			Example:     "cb_token_123",
		},
		{
			Key:         "baseUri",
			Required:    false,
			Type:        "url",
			Description: "API base URI override",
			Example:     "https://ws.suitpay.app",
		},
	}
}

func (p *SuitPayProvider) ValidateConfig(conf map[string]string) error {
	return provider.ValidateConfigFields("suitpay", conf, p.GetRequiredConfig())
}

func (p *SuitPayProvider) Initialize(conf map[string]string) error {
	p.clientID = conf["clientId"]
	p.clientSecret = conf["clientSecret"]
	if p.clientID == "" || p.clientSecret == "" {
		return fmt.Errorf("suitpay: %w: clientId/clientSecret", provider.ErrIncompleteConfig)
	}
	p.webhookSecret = conf["webhookSecret"]

	baseURL := config.NormalizeBaseURI(conf["baseUri"], defaultBaseURI, "/api/v1/")
	p.httpClient = provider.NewHTTPClient("suitpay", &provider.HTTPClientConfig{
		BaseURLs: []string{baseURL},
		DefaultHeaders: map[string]string{
			clientIDHeader:  p.clientID,
			clientSecretHdr: p.clientSecret,
		},
	})
	return nil
}

// CreateCharge requests a PIX QR code. SuitPay takes amounts in reais as a
// decimal number, not cents.
func (p *SuitPayProvider) CreateCharge(ctx context.Context, request provider.ChargeRequest) (*provider.ChargeResponse, error) {
	payload := map[string]any{
		"requestNumber": request.CorrelationID,
		"value":         request.Amount.InexactFloat64(),
		"client": map[string]any{
			"name":     request.UserName,
			"email":    request.UserEmail,
			"document": request.TaxID,
		},
	}

	resp, err := p.httpClient.PostJSON(ctx, endpointQRCode, payload, nil)
	if err != nil {
		return nil, err
	}
	if !resp.Successful() {
		return nil, provider.NewRejectedError("suitpay", resp.StatusCode, string(resp.Body))
	}

	data, err := resp.JSON()
	if err != nil {
		return nil, fmt.Errorf("suitpay: %w", err)
	}

	// Callbacks echo the requestNumber we sent, so that is the id the
	// transaction is persisted and later looked up under. SuitPay's own
	// idTransaction is diagnostic only.
	out := &provider.ChargeResponse{
		TransactionID: request.CorrelationID,
		PixCode:       provider.ExtractString(data, "paymentCode", "copyPaste"),
		QRCodeImage:   provider.ExtractString(data, "paymentCodeBase64"),
	}
	if out.PixCode == "" {
		return nil, fmt.Errorf("suitpay: charge response missing paymentCode")
	}
	return out, nil
}

func (p *SuitPayProvider) CreateTransfer(ctx context.Context, request provider.TransferRequest) error {
	payload := map[string]any{
		"key":     request.PixKey,
		"typeKey": pixKeyType(request.PixKeyType),
		"value":   request.Amount.InexactFloat64(),
	}

	resp, err := p.httpClient.PostJSON(ctx, endpointPixCash, payload, nil)
	if err != nil {
		return err
	}
	if !resp.Successful() {
		return provider.NewRejectedError("suitpay", resp.StatusCode, string(resp.Body))
	}
	return nil
}

func pixKeyType(keyType string) string {
	switch keyType {
	case provider.PixKeyCPF, provider.PixKeyCNPJ:
		// SuitPay uses one label for both document kinds.
		return "document"
	case provider.PixKeyPhone:
		return "phoneNumber"
	case provider.PixKeyEmail:
		return "mail"
	case provider.PixKeyRandom:
		return "randomKey"
	}
	return keyType
}

// VerifyWebhook compares the Authentication header against the configured
// shared token. SuitPay does not sign bodies; the token is all there is.
func (p *SuitPayProvider) VerifyWebhook(rawBody []byte, header http.Header) error {
	if p.webhookSecret == "" {
		logger.Warn("SuitPay webhook accepted without verification: no callback token configured", logger.LogContext{
			Provider: "suitpay",
		})
		return nil
	}

	token := header.Get(authHeader)
	if subtle.ConstantTimeCompare([]byte(token), []byte(p.webhookSecret)) != 1 {
		return fmt.Errorf("suitpay: %w", provider.ErrInvalidSignature)
	}
	return nil
}

func (p *SuitPayProvider) ParseWebhook(rawBody []byte, form url.Values) (*provider.WebhookEvent, error) {
	var data map[string]any
	if err := json.Unmarshal(rawBody, &data); err != nil {
		data = make(map[string]any, len(form))
		for key := range form {
			data[key] = form.Get(key)
		}
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("suitpay: %w", provider.ErrMalformedPayload)
	}

	status := provider.ExtractString(data, "statusTransaction", "status")
	out := &provider.WebhookEvent{Event: status}

	switch status {
	case statusPaidOut, statusPaymentAccept:
		out.Kind = provider.EventCompleted
	case statusCanceled, statusExpired:
		out.Kind = provider.EventExpired
	default:
		out.Kind = provider.EventIgnored
		return out, nil
	}

	out.Charge = data
	out.CorrelationID = provider.ExtractString(data, "requestNumber", "idTransaction")
	if out.CorrelationID == "" {
		return nil, fmt.Errorf("suitpay: callback has no requestNumber: %w", provider.ErrMalformedPayload)
	}
	return out, nil
}
