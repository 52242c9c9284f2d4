package woovi

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pixloo/pixgate/infra/config"
	"github.com/pixloo/pixgate/infra/logger"
	"github.com/pixloo/pixgate/provider"
)

const (
	defaultBaseURI = "https://api.openpix.com.br/api/openpix/v1/"

	// Woovi serves the same API under both prefixes depending on account
	// age. The client tries the configured one first and falls back to the
	// other on 404/405.
	pathOpenPix = "/api/openpix/v1/"
	pathPlain   = "/api/v1/"

	endpointCharge   = "charge"
	endpointTransfer = "pix-transfers"

	signatureHeader = "X-OpenPix-Signature"
)

// Event names Woovi sends, in both the legacy OPENPIX:* and the newer
// dotted vocabulary.
var (
	paymentEvents = []string{
		"OPENPIX:CHARGE_COMPLETED",
		"OPENPIX:TRANSACTION_RECEIVED",
		"OPENPIX:CHARGE_PAID",
		"charge.completed",
	}
	expiredEvents = []string{
		"OPENPIX:CHARGE_EXPIRED",
		"charge.expired",
	}
)

// WooviProvider implements the provider.PixProvider interface for Woovi/OpenPix
type WooviProvider struct {
	authorization string
	webhookSecret string
	baseURL       string
	httpClient    *provider.HTTPClient
}

// NewProvider creates a new Woovi PIX provider
func NewProvider() provider.PixProvider {
	return &WooviProvider{}
}

// GetRequiredConfig returns the configuration fields required for Woovi
func (p *WooviProvider) GetRequiredConfig() []provider.ConfigField {
	return []provider.ConfigField{
		{
			Key:         "appId",
			Required:    true,
			Type:        "string",
			Description: "Woovi AppID, or a full Authorization header value",
			Example:     "Q2xpZW50X0lkXzEyMzQ1Njc4OmNsaWVudF9zZWNyZXQ=",
		},
		{
			Key:         "clientSecret",
			Required:    false,
			Type:        "string",
			Description: "Client secret, combined with appId when appId is a bare id",
			Example:     "client_secret_xyz",
		},
		{
			Key:         "webhookSecret",
			Required:    false,
			Type:        "string",
			Description: "HMAC secret for webhook signature verification",
			Example:     "whsec_abc123",
		},
		{
			Key:         "baseUri",
			Required:    false,
			Type:        "url",
			Description: "API base URI override",
			Example:     "https://api.openpix.com.br",
		},
	}
}

// ValidateConfig validates the provided configuration against Woovi requirements
func (p *WooviProvider) ValidateConfig(conf map[string]string) error {
	return provider.ValidateConfigFields("woovi", conf, p.GetRequiredConfig())
}

// Initialize sets up the Woovi provider with authentication credentials
func (p *WooviProvider) Initialize(conf map[string]string) error {
	p.authorization = config.ResolveAuthorization(conf["appId"], conf["clientSecret"])
	if p.authorization == "" {
		return fmt.Errorf("woovi: %w: appId", provider.ErrIncompleteConfig)
	}

	p.webhookSecret = conf["webhookSecret"]
	p.baseURL = config.NormalizeBaseURI(conf["baseUri"], defaultBaseURI, pathOpenPix, pathPlain)

	baseURLs := []string{p.baseURL}
	if alt := config.AlternateBaseURI(p.baseURL, pathOpenPix, pathPlain); alt != "" {
		baseURLs = append(baseURLs, alt)
	}

	p.httpClient = provider.NewHTTPClient("woovi", &provider.HTTPClientConfig{
		BaseURLs: baseURLs,
		DefaultHeaders: map[string]string{
			"Authorization": p.authorization,
		},
	})

	return nil
}

// CreateCharge requests a PIX QR code for a deposit
func (p *WooviProvider) CreateCharge(ctx context.Context, request provider.ChargeRequest) (*provider.ChargeResponse, error) {
	payload := map[string]any{
		"correlationID": request.CorrelationID,
		"value":         provider.ToCents(request.Amount),
		"comment":       request.Comment,
		"customer": map[string]any{
			"name":  request.UserName,
			"email": request.UserEmail,
			"taxID": request.TaxID,
		},
	}

	resp, err := p.httpClient.PostJSON(ctx, endpointCharge, payload, nil)
	if err != nil {
		return nil, err
	}
	if !resp.Successful() {
		return nil, provider.NewRejectedError("woovi", resp.StatusCode, string(resp.Body))
	}

	data, err := resp.JSON()
	if err != nil {
		return nil, fmt.Errorf("woovi: %w", err)
	}

	charge := provider.ExtractMap(data, "charge")
	if charge == nil {
		charge = data
	}

	// The code and image move between the charge object and the response
	// root across API versions, so both levels are consulted.
	out := &provider.ChargeResponse{
		TransactionID:  provider.ExtractString(charge, "correlationID", "transactionID"),
		PixCode:        provider.ExtractString(charge, "brCode", "pixCopiaECola", "pixCode", "qrCode"),
		QRCodeImage:    provider.ExtractString(charge, "qrCodeImage"),
		PaymentLinkURL: provider.ExtractString(charge, "paymentLinkUrl"),
	}
	if out.PixCode == "" {
		out.PixCode = provider.ExtractString(data, "brCode", "pixCode", "qrcode")
	}
	if out.QRCodeImage == "" {
		out.QRCodeImage = provider.ExtractString(data, "qrCodeImage")
	}
	if out.PaymentLinkURL == "" {
		out.PaymentLinkURL = provider.ExtractString(data, "paymentLinkUrl")
	}
	if out.TransactionID == "" {
		out.TransactionID = request.CorrelationID
	}
	if out.PixCode == "" {
		return nil, fmt.Errorf("woovi: charge response missing brCode")
	}
	return out, nil
}

// CreateTransfer sends a PIX transfer for a withdrawal
func (p *WooviProvider) CreateTransfer(ctx context.Context, request provider.TransferRequest) error {
	payload := map[string]any{
		"correlationID": request.CorrelationID,
		"value":         provider.ToCents(request.Amount),
		"pixKey":        request.PixKey,
		"pixKeyType":    pixKeyType(request.PixKeyType),
		"comment":       request.Comment,
	}

	resp, err := p.httpClient.PostJSON(ctx, endpointTransfer, payload, nil)
	if err != nil {
		return err
	}
	if !resp.Successful() {
		return provider.NewRejectedError("woovi", resp.StatusCode, string(resp.Body))
	}
	return nil
}

// pixKeyType maps the internal key vocabulary to Woovi's.
func pixKeyType(keyType string) string {
	switch keyType {
	case provider.PixKeyCPF:
		return "CPF"
	case provider.PixKeyCNPJ:
		return "CNPJ"
	case provider.PixKeyPhone:
		return "PHONE"
	case provider.PixKeyEmail:
		return "EMAIL"
	case provider.PixKeyRandom:
		return "RANDOM"
	}
	return keyType
}

// VerifyWebhook checks the X-OpenPix-Signature header: HMAC-SHA1 of the raw
// body, base64 encoded. When no webhook secret is configured verification is
// skipped with a warning so that webhooks still flow.
func (p *WooviProvider) VerifyWebhook(rawBody []byte, header http.Header) error {
	if p.webhookSecret == "" {
		logger.Warn("Woovi webhook accepted without signature verification: no webhook secret configured", logger.LogContext{
			Provider: "woovi",
		})
		return nil
	}

	signature := header.Get(signatureHeader)
	if signature == "" {
		return fmt.Errorf("woovi: missing %s header: %w", signatureHeader, provider.ErrInvalidSignature)
	}

	mac := hmac.New(sha1.New, []byte(p.webhookSecret))
	mac.Write(rawBody)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return fmt.Errorf("woovi: %w", provider.ErrInvalidSignature)
	}
	return nil
}

// ParseWebhook normalizes a Woovi callback. The charge and its correlation
// id appear at different nesting depths across event versions, so lookup
// tries each known path in order.
func (p *WooviProvider) ParseWebhook(rawBody []byte, form url.Values) (*provider.WebhookEvent, error) {
	var data map[string]any
	if err := json.Unmarshal(rawBody, &data); err != nil {
		data = formToMap(form)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("woovi: %w", provider.ErrMalformedPayload)
	}

	event := provider.ExtractString(data, "event", "evento", "type")
	kind := classify(event)

	out := &provider.WebhookEvent{Kind: kind, Event: event}
	if kind == provider.EventIgnored {
		return out, nil
	}

	charge := provider.ExtractMap(data, "charge", "data.charge", "payment.charge")
	if charge == nil {
		return nil, fmt.Errorf("woovi: webhook payload has no charge: %w", provider.ErrMalformedPayload)
	}

	out.Charge = charge
	out.CorrelationID = provider.ExtractString(charge, "correlationID", "id")
	if out.CorrelationID == "" {
		return nil, fmt.Errorf("woovi: charge has no correlation id: %w", provider.ErrMalformedPayload)
	}
	return out, nil
}

func classify(event string) provider.EventKind {
	for _, name := range paymentEvents {
		if event == name {
			return provider.EventCompleted
		}
	}
	for _, name := range expiredEvents {
		if event == name {
			return provider.EventExpired
		}
	}
	return provider.EventIgnored
}

func formToMap(form url.Values) map[string]any {
	data := make(map[string]any, len(form))
	for key := range form {
		data[key] = form.Get(key)
	}
	return data
}
