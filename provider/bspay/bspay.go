package bspay

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
	defaultBaseURI = "https://api.bspay.co/v2/"

	endpointQRCode  = "pix/qrcode"
	endpointPayment = "pix/payment"
	signatureHeader = "X-Bspay-Signature"
)

// Transaction types BsPay reports in its callback envelope.
const (
	typeReceivePix = "RECEIVEPIX"
	typeRefundPix  = "REFUNDPIX"
)

// BsPayProvider implements the provider.PixProvider interface for BsPay
type BsPayProvider struct {
	authorization string
	webhookSecret string
	httpClient    *provider.HTTPClient
}

// NewProvider creates a new BsPay PIX provider
func NewProvider() provider.PixProvider {
	return &BsPayProvider{}
}

func (p *BsPayProvider) GetRequiredConfig() []provider.ConfigField {
	return []provider.ConfigField{
		{
			Key:         "clientId",
			Required:    true,
			Type:        "string",
			Description: "BsPay client id",
			Example:     "bspay_0042",
		},
		{
			Key:         "clientSecret",
			Required:    true,
			Type:        "string",
			Description: "BsPay client secret",
			Example:     "cs_live_...",
		},
		{
			Key:         "webhookSecret",
			Required:    false,
			Type:        "string",
			Description: "HMAC secret for callback signature verification",
			Example:     "whsec_bs_01",
		},
		{
			Key:         "baseUri",
			Required:    false,
			Type:        "url",
			Description: "API base URI override",
			Example:     "https://api.bspay.co",
		},
	}
}

func (p *BsPayProvider) ValidateConfig(conf map[string]string) error {
	return provider.ValidateConfigFields("bspay", conf, p.GetRequiredConfig())
}

func (p *BsPayProvider) Initialize(conf map[string]string) error {
	if conf["clientId"] == "" || conf["clientSecret"] == "" {
		return fmt.Errorf("bspay: %w: clientId/clientSecret", provider.ErrIncompleteConfig)
	}
	p.authorization = config.BasicAuthorization(conf["clientId"], conf["clientSecret"])
	p.webhookSecret = conf["webhookSecret"]

	baseURL := config.NormalizeBaseURI(conf["baseUri"], defaultBaseURI, "/v2/")
	p.httpClient = provider.NewHTTPClient("bspay", &provider.HTTPClientConfig{
		BaseURLs: []string{baseURL},
		DefaultHeaders: map[string]string{
			"Authorization": p.authorization,
		},
	})
	return nil
}

// CreateCharge requests a PIX QR code. BsPay takes amounts in reais.
func (p *BsPayProvider) CreateCharge(ctx context.Context, request provider.ChargeRequest) (*provider.ChargeResponse, error) {
	payload := map[string]any{
		"external_id":   request.CorrelationID,
		"amount":        request.Amount.InexactFloat64(),
		"payerQuestion": request.Comment,
		"payer": map[string]any{
			"name":     request.UserName,
			"document": request.TaxID,
			"email":    request.UserEmail,
		},
	}

	resp, err := p.httpClient.PostJSON(ctx, endpointQRCode, payload, nil)
	if err != nil {
		return nil, err
	}
	if !resp.Successful() {
		return nil, provider.NewRejectedError("bspay", resp.StatusCode, string(resp.Body))
	}

	data, err := resp.JSON()
	if err != nil {
		return nil, fmt.Errorf("bspay: %w", err)
	}

	// Callbacks echo the external_id we sent, so that is the id the
	// transaction is persisted and later looked up under.
	out := &provider.ChargeResponse{
		TransactionID: request.CorrelationID,
		PixCode:       provider.ExtractString(data, "qrcode", "emv"),
		QRCodeImage:   provider.ExtractString(data, "qrcodeBase64"),
	}
	if out.PixCode == "" {
		return nil, fmt.Errorf("bspay: charge response missing qrcode")
	}
	return out, nil
}

func (p *BsPayProvider) CreateTransfer(ctx context.Context, request provider.TransferRequest) error {
	payload := map[string]any{
		"external_id": request.CorrelationID,
		"amount":      request.Amount.InexactFloat64(),
		"pixKey":      request.PixKey,
		"pixKeyType":  pixKeyType(request.PixKeyType),
		"description": request.Comment,
	}

	resp, err := p.httpClient.PostJSON(ctx, endpointPayment, payload, nil)
	if err != nil {
		return err
	}
	if !resp.Successful() {
		return provider.NewRejectedError("bspay", resp.StatusCode, string(resp.Body))
	}
	return nil
}

func pixKeyType(keyType string) string {
	switch keyType {
	case provider.PixKeyCPF, provider.PixKeyCNPJ:
		// BsPay uses one label for both document kinds.
		return "document"
	case provider.PixKeyPhone:
		return "phone"
	case provider.PixKeyEmail:
		return "email"
	case provider.PixKeyRandom:
		return "randomKey"
	}
	return keyType
}

// VerifyWebhook checks the X-Bspay-Signature header: HMAC-SHA256 of the raw
// body, hex encoded.
func (p *BsPayProvider) VerifyWebhook(rawBody []byte, header http.Header) error {
	if p.webhookSecret == "" {
		logger.Warn("BsPay webhook accepted without signature verification: no webhook secret configured", logger.LogContext{
			Provider: "bspay",
		})
		return nil
	}

	signature := header.Get(signatureHeader)
	if signature == "" {
		return fmt.Errorf("bspay: missing %s header: %w", signatureHeader, provider.ErrInvalidSignature)
	}

	mac := hmac.New(sha256.New, []byte(p.webhookSecret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return fmt.Errorf("bspay: %w", provider.ErrInvalidSignature)
	}
	return nil
}

// ParseWebhook normalizes a BsPay callback. BsPay wraps the transaction in
// a requestBody envelope with a transactionType discriminator.
func (p *BsPayProvider) ParseWebhook(rawBody []byte, form url.Values) (*provider.WebhookEvent, error) {
	var data map[string]any
	if err := json.Unmarshal(rawBody, &data); err != nil {
		data = make(map[string]any, len(form))
		for key := range form {
			data[key] = form.Get(key)
		}
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("bspay: %w", provider.ErrMalformedPayload)
	}

	body := provider.ExtractMap(data, "requestBody")
	if body == nil {
		body = data
	}

	txType := provider.ExtractString(body, "transactionType")
	status := provider.ExtractString(body, "status")
	out := &provider.WebhookEvent{Event: txType}

	switch {
	case txType == typeReceivePix && status != "EXPIRED":
		out.Kind = provider.EventCompleted
	case status == "EXPIRED" || txType == typeRefundPix:
		out.Kind = provider.EventExpired
		out.Event = status
	default:
		out.Kind = provider.EventIgnored
		return out, nil
	}

	out.Charge = body
	out.CorrelationID = provider.ExtractString(body, "external_id", "transactionId")
	if out.CorrelationID == "" {
		return nil, fmt.Errorf("bspay: callback has no external_id: %w", provider.ErrMalformedPayload)
	}
	return out, nil
}
