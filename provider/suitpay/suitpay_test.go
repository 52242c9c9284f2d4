package suitpay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixloo/pixgate/provider"
)

func newTestProvider(t *testing.T, conf map[string]string) *SuitPayProvider {
	t.Helper()
	if conf["clientId"] == "" {
		conf["clientId"] = "ci-test"
	}
	if conf["clientSecret"] == "" {
		conf["clientSecret"] = "cs-test"
	}
	p := NewProvider().(*SuitPayProvider)
	require.NoError(t, p.Initialize(conf))
	return p
}

func TestInitialize_RequiresCredentials(t *testing.T) {
	p := NewProvider()
	err := p.Initialize(map[string]string{"clientId": "ci-only"})
	assert.ErrorIs(t, err, provider.ErrIncompleteConfig)
}

func TestCreateCharge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/gateway/request-qrcode", r.URL.Path)
		assert.Equal(t, "ci-test", r.Header.Get("ci"))
		assert.Equal(t, "cs-test", r.Header.Get("cs"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "corr-1", body["requestNumber"])
		assert.Equal(t, 150.75, body["value"]) // reais, not cents

		client := body["client"].(map[string]any)
		assert.Equal(t, "12345678909", client["document"])

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{
			"idTransaction": "st-9",
			"paymentCode": "00020126br.gov.bcb.pix",
			"paymentCodeBase64": "aW1n"
		}`))
	}))
	defer server.Close()

	p := newTestProvider(t, map[string]string{"baseUri": server.URL})

	resp, err := p.CreateCharge(context.Background(), provider.ChargeRequest{
		CorrelationID: "corr-1",
		UserName:      "Maria",
		UserEmail:     "maria@example.com",
		TaxID:         "12345678909",
		Amount:        decimal.RequireFromString("150.75"),
	})
	require.NoError(t, err)
	assert.Equal(t, "corr-1", resp.TransactionID)
	assert.Equal(t, "00020126br.gov.bcb.pix", resp.PixCode)
	assert.Equal(t, "aW1n", resp.QRCodeImage)
}

func TestChargeAndWebhookShareCorrelationID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"idTransaction":"st-9","paymentCode":"px"}`))
	}))
	defer server.Close()

	p := newTestProvider(t, map[string]string{"baseUri": server.URL})

	resp, err := p.CreateCharge(context.Background(), provider.ChargeRequest{
		CorrelationID: "corr-1",
		Amount:        decimal.NewFromInt(10),
	})
	require.NoError(t, err)

	callback := `{"statusTransaction":"PAID_OUT","requestNumber":"corr-1","idTransaction":"st-9"}`
	event, err := p.ParseWebhook([]byte(callback), nil)
	require.NoError(t, err)
	assert.Equal(t, resp.TransactionID, event.CorrelationID)
}

func TestCreateCharge_MissingPaymentCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"idTransaction":"st-9"}`))
	}))
	defer server.Close()

	p := newTestProvider(t, map[string]string{"baseUri": server.URL})

	_, err := p.CreateCharge(context.Background(), provider.ChargeRequest{
		CorrelationID: "corr-1",
		Amount:        decimal.NewFromInt(10),
	})
	assert.Error(t, err)
}

func TestCreateTransfer_TranslatesKeyType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/gateway/pix-payment", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "user@example.com", body["key"])
		assert.Equal(t, "mail", body["typeKey"])
		assert.Equal(t, float64(40), body["value"])

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"response":"OK"}`))
	}))
	defer server.Close()

	p := newTestProvider(t, map[string]string{"baseUri": server.URL})

	err := p.CreateTransfer(context.Background(), provider.TransferRequest{
		CorrelationID: "t1",
		Amount:        decimal.NewFromInt(40),
		PixKey:        "user@example.com",
		PixKeyType:    provider.PixKeyEmail,
	})
	assert.NoError(t, err)
}

func TestVerifyWebhook(t *testing.T) {
	p := newTestProvider(t, map[string]string{"webhookSecret": "cb-token"})

	t.Run("matching token", func(t *testing.T) {
		header := http.Header{}
		header.Set("Authentication", "cb-token")
		assert.NoError(t, p.VerifyWebhook([]byte(`{}`), header))
	})

	t.Run("wrong token", func(t *testing.T) {
		header := http.Header{}
		header.Set("Authentication", "nope")
		assert.ErrorIs(t, p.VerifyWebhook([]byte(`{}`), header), provider.ErrInvalidSignature)
	})

	t.Run("missing token", func(t *testing.T) {
		assert.ErrorIs(t, p.VerifyWebhook([]byte(`{}`), http.Header{}), provider.ErrInvalidSignature)
	})

	t.Run("no secret configured skips verification", func(t *testing.T) {
		open := newTestProvider(t, map[string]string{})
		assert.NoError(t, open.VerifyWebhook([]byte(`{}`), http.Header{}))
	})
}

func TestParseWebhook(t *testing.T) {
	p := newTestProvider(t, map[string]string{})

	tests := []struct {
		name     string
		body     string
		wantKind provider.EventKind
		wantID   string
	}{
		{"paid out", `{"statusTransaction":"PAID_OUT","requestNumber":"corr-1"}`, provider.EventCompleted, "corr-1"},
		{"payment accept", `{"statusTransaction":"PAYMENT_ACCEPT","idTransaction":"st-2"}`, provider.EventCompleted, "st-2"},
		{"canceled", `{"statusTransaction":"CANCELED","requestNumber":"corr-3"}`, provider.EventExpired, "corr-3"},
		{"expired", `{"statusTransaction":"EXPIRED","requestNumber":"corr-4"}`, provider.EventExpired, "corr-4"},
		{"chargeback ignored", `{"statusTransaction":"CHARGEBACK","requestNumber":"corr-5"}`, provider.EventIgnored, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := p.ParseWebhook([]byte(tt.body), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, event.Kind)
			assert.Equal(t, tt.wantID, event.CorrelationID)
		})
	}
}

func TestParseWebhook_FormFallback(t *testing.T) {
	p := newTestProvider(t, map[string]string{})

	form := url.Values{}
	form.Set("statusTransaction", "PAID_OUT")
	form.Set("requestNumber", "corr-7")

	event, err := p.ParseWebhook([]byte(form.Encode()), form)
	require.NoError(t, err)
	assert.Equal(t, provider.EventCompleted, event.Kind)
	assert.Equal(t, "corr-7", event.CorrelationID)
}

func TestParseWebhook_Malformed(t *testing.T) {
	p := newTestProvider(t, map[string]string{})

	t.Run("empty payload", func(t *testing.T) {
		_, err := p.ParseWebhook([]byte(``), nil)
		assert.ErrorIs(t, err, provider.ErrMalformedPayload)
	})

	t.Run("completed without correlation id", func(t *testing.T) {
		_, err := p.ParseWebhook([]byte(`{"statusTransaction":"PAID_OUT"}`), nil)
		assert.ErrorIs(t, err, provider.ErrMalformedPayload)
	})
}
