package digitopay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/pixloo/pixgate/infra/config"
	"github.com/pixloo/pixgate/infra/logger"
	"github.com/pixloo/pixgate/provider"
)

const (
	defaultBaseURI = "https://api.digitopayoficial.com.br/api/"

	endpointToken    = "token/api"
	endpointDeposit  = "deposit"
	endpointWithdraw = "withdraw"
	signatureHeader  = "X-Signature"

	// Issued tokens last an hour; refresh a little early.
	tokenLifetime = 50 * time.Minute
)

// DigitoPayProvider implements the provider.PixProvider interface for
// DigitoPay. The API authenticates with short-lived bearer tokens exchanged
// for the client credentials, so the provider refreshes its token on demand.
type DigitoPayProvider struct {
	clientID      string
	clientSecret  string
	webhookSecret string
	httpClient    *provider.HTTPClient

	mu          sync.Mutex
	accessToken string
	tokenUntil  time.Time
}

// NewProvider creates a new DigitoPay PIX provider
func NewProvider() provider.PixProvider {
	return &DigitoPayProvider{}
}

func (p *DigitoPayProvider) GetRequiredConfig() []provider.ConfigField {
	return []provider.ConfigField{
		{
			Key:         "clientId",
			Required:    true,
			Type:        "string",
			Description: "DigitoPay client id",
			Example:     "a1b2c3d4-e5f6",
		},
		{
			Key:         "clientSecret",
			Required:    true,
			Type:        "string",
			Description: "DigitoPay client secret",
			Example:     "s3cr3t...",
		},
		{
			Key:         "webhookSecret",
			Required:    false,
			Type:        "string",
			Description: "HMAC secret for callback signature verification",
			Example:     "whsec_dgp_01",
		},
		{
			Key:         "baseUri",
			Required:    false,
			Type:        "url",
			Description: "API base URI override",
			Example:     "https://api.digitopayoficial.com.br",
		},
	}
}

func (p *DigitoPayProvider) ValidateConfig(conf map[string]string) error {
	return provider.ValidateConfigFields("digitopay", conf, p.GetRequiredConfig())
}

func (p *DigitoPayProvider) Initialize(conf map[string]string) error {
	p.clientID = conf["clientId"]
	p.clientSecret = conf["clientSecret"]
	if p.clientID == "" || p.clientSecret == "" {
		return fmt.Errorf("digitopay: %w: clientId/clientSecret", provider.ErrIncompleteConfig)
	}
	p.webhookSecret = conf["webhookSecret"]

	baseURL := config.NormalizeBaseURI(conf["baseUri"], defaultBaseURI, "/api/")
	p.httpClient = provider.NewHTTPClient("digitopay", &provider.HTTPClientConfig{
		BaseURLs: []string{baseURL},
	})
	return nil
}

// bearer returns a valid access token, exchanging the client credentials
// when the cached one is missing or stale.
func (p *DigitoPayProvider) bearer(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.accessToken != "" && time.Now().Before(p.tokenUntil) {
		return p.accessToken, nil
	}

	resp, err := p.httpClient.PostJSON(ctx, endpointToken, map[string]any{
		"clientId":     p.clientID,
		"clientSecret": p.clientSecret,
	}, nil)
	if err != nil {
		return "", err
	}
	if !resp.Successful() {
		return "", provider.NewRejectedError("digitopay", resp.StatusCode, string(resp.Body))
	}

	data, err := resp.JSON()
	if err != nil {
		return "", fmt.Errorf("digitopay: %w", err)
	}
	token := provider.ExtractString(data, "accessToken", "access_token")
	if token == "" {
		return "", fmt.Errorf("digitopay: token response missing accessToken")
	}

	p.accessToken = token
	p.tokenUntil = time.Now().Add(tokenLifetime)
	return token, nil
}

func (p *DigitoPayProvider) authHeaders(ctx context.Context) (map[string]string, error) {
	token, err := p.bearer(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]string{"Authorization": "Bearer " + token}, nil
}

// CreateCharge requests a PIX QR code. DigitoPay takes amounts in reais.
func (p *DigitoPayProvider) CreateCharge(ctx context.Context, request provider.ChargeRequest) (*provider.ChargeResponse, error) {
	headers, err := p.authHeaders(ctx)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"dueDate": time.Now().Add(30 * time.Minute).Format(time.RFC3339),
		"value":   request.Amount.InexactFloat64(),
		"person": map[string]any{
			"name": request.UserName,
			"cpf":  request.TaxID,
		},
		"externalReference": request.CorrelationID,
	}

	resp, err := p.httpClient.PostJSON(ctx, endpointDeposit, payload, headers)
	if err != nil {
		return nil, err
	}
	if !resp.Successful() {
		return nil, provider.NewRejectedError("digitopay", resp.StatusCode, string(resp.Body))
	}

	data, err := resp.JSON()
	if err != nil {
		return nil, fmt.Errorf("digitopay: %w", err)
	}

	// Callbacks echo the externalReference we sent, so that is the id the
	// transaction is persisted and later looked up under. DigitoPay's own
	// id is diagnostic only.
	out := &provider.ChargeResponse{
		TransactionID: request.CorrelationID,
		PixCode:       provider.ExtractString(data, "pixCopiaECola"),
		QRCodeImage:   provider.ExtractString(data, "qrCodeBase64"),
	}
	if out.PixCode == "" {
		return nil, fmt.Errorf("digitopay: charge response missing pixCopiaECola")
	}
	return out, nil
}

func (p *DigitoPayProvider) CreateTransfer(ctx context.Context, request provider.TransferRequest) error {
	headers, err := p.authHeaders(ctx)
	if err != nil {
		return err
	}

	payload := map[string]any{
		"value":             request.Amount.InexactFloat64(),
		"pixKey":            request.PixKey,
		"pixKeyTypes":       pixKeyType(request.PixKeyType),
		"externalReference": request.CorrelationID,
	}

	resp, err := p.httpClient.PostJSON(ctx, endpointWithdraw, payload, headers)
	if err != nil {
		return err
	}
	if !resp.Successful() {
		return provider.NewRejectedError("digitopay", resp.StatusCode, string(resp.Body))
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
		return "PHONE"
	case provider.PixKeyEmail:
		return "EMAIL"
	case provider.PixKeyRandom:
		return "EVP"
	}
	return keyType
}

// VerifyWebhook checks the X-Signature header: HMAC-SHA256 of the raw body,
// base64 encoded.
func (p *DigitoPayProvider) VerifyWebhook(rawBody []byte, header http.Header) error {
	if p.webhookSecret == "" {
		logger.Warn("DigitoPay webhook accepted without signature verification: no webhook secret configured", logger.LogContext{
			Provider: "digitopay",
		})
		return nil
	}

	signature := header.Get(signatureHeader)
	if signature == "" {
		return fmt.Errorf("digitopay: missing %s header: %w", signatureHeader, provider.ErrInvalidSignature)
	}

	mac := hmac.New(sha256.New, []byte(p.webhookSecret))
	mac.Write(rawBody)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return fmt.Errorf("digitopay: %w", provider.ErrInvalidSignature)
	}
	return nil
}

func (p *DigitoPayProvider) ParseWebhook(rawBody []byte, form url.Values) (*provider.WebhookEvent, error) {
	var data map[string]any
	if err := json.Unmarshal(rawBody, &data); err != nil {
		data = make(map[string]any, len(form))
		for key := range form {
			data[key] = form.Get(key)
		}
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("digitopay: %w", provider.ErrMalformedPayload)
	}

	status := provider.ExtractString(data, "status", "statusName")
	out := &provider.WebhookEvent{Event: status}

	switch status {
	case "REALIZADO", "PAID":
		out.Kind = provider.EventCompleted
	case "EXPIRADO", "CANCELADO", "EXPIRED":
		out.Kind = provider.EventExpired
	default:
		out.Kind = provider.EventIgnored
		return out, nil
	}

	out.Charge = data
	out.CorrelationID = provider.ExtractString(data, "externalReference", "id")
	if out.CorrelationID == "" {
		return nil, fmt.Errorf("digitopay: callback has no externalReference: %w", provider.ErrMalformedPayload)
	}
	return out, nil
}
