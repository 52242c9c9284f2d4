package woovi

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
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

func newTestProvider(t *testing.T, conf map[string]string) *WooviProvider {
	t.Helper()
	p := NewProvider().(*WooviProvider)
	require.NoError(t, p.Initialize(conf))
	return p
}

func TestInitialize_RequiresCredential(t *testing.T) {
	p := NewProvider()
	err := p.Initialize(map[string]string{})
	assert.ErrorIs(t, err, provider.ErrIncompleteConfig)
}

func TestCreateCharge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/openpix/v1/charge", r.URL.Path)
		assert.Equal(t, "my-app-id", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "corr-1", body["correlationID"])
		assert.Equal(t, float64(1001), body["value"]) // cents, half rounds up

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{
			"charge": {
				"correlationID": "corr-1",
				"brCode": "00020126580014br.gov.bcb.pix",
				"qrCodeImage": "https://api/qr/x.png",
				"paymentLinkUrl": "https://pay/x"
			}
		}`))
	}))
	defer server.Close()

	p := newTestProvider(t, map[string]string{
		"appId":   "my-app-id",
		"baseUri": server.URL,
	})

	resp, err := p.CreateCharge(context.Background(), provider.ChargeRequest{
		CorrelationID: "corr-1",
		UserName:      "Maria",
		UserEmail:     "maria@example.com",
		TaxID:         "12345678909",
		Amount:        decimal.RequireFromString("10.005"),
	})
	require.NoError(t, err)
	assert.Equal(t, "corr-1", resp.TransactionID)
	assert.Equal(t, "00020126580014br.gov.bcb.pix", resp.PixCode)
	assert.Equal(t, "https://api/qr/x.png", resp.QRCodeImage)
	assert.Equal(t, "https://pay/x", resp.PaymentLinkURL)
}

func TestCreateCharge_CodeFallbacks(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{
			"pixCode inside charge",
			`{"charge":{"correlationID":"c","pixCode":"px-charge"}}`,
			"px-charge",
		},
		{
			"qrCode inside charge",
			`{"charge":{"correlationID":"c","qrCode":"px-qr"}}`,
			"px-qr",
		},
		{
			"top-level brCode beside charge object",
			`{"charge":{"correlationID":"c"},"brCode":"px-top"}`,
			"px-top",
		},
		{
			"top-level qrcode beside charge object",
			`{"charge":{"correlationID":"c"},"qrcode":"px-top-qr"}`,
			"px-top-qr",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			p := newTestProvider(t, map[string]string{"appId": "x", "baseUri": server.URL})

			resp, err := p.CreateCharge(context.Background(), provider.ChargeRequest{
				CorrelationID: "c",
				Amount:        decimal.NewFromInt(50),
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, resp.PixCode)
		})
	}
}

func TestCreateCharge_FallsBackToAlternatePath(t *testing.T) {
	var openpixHits, plainHits int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/openpix/v1/charge":
			openpixHits++
			w.WriteHeader(http.StatusNotFound)
		case "/api/v1/charge":
			plainHits++
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"charge":{"correlationID":"c","brCode":"px"}}`))
		}
	}))
	defer server.Close()

	p := newTestProvider(t, map[string]string{"appId": "x", "baseUri": server.URL})

	resp, err := p.CreateCharge(context.Background(), provider.ChargeRequest{
		CorrelationID: "c",
		Amount:        decimal.NewFromInt(50),
	})
	require.NoError(t, err)
	assert.Equal(t, "px", resp.PixCode)
	assert.Equal(t, 1, openpixHits)
	assert.Equal(t, 1, plainHits)
}

func TestCreateCharge_RejectionSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"taxID invalid"}`))
	}))
	defer server.Close()

	p := newTestProvider(t, map[string]string{"appId": "x", "baseUri": server.URL})

	_, err := p.CreateCharge(context.Background(), provider.ChargeRequest{
		CorrelationID: "c",
		Amount:        decimal.NewFromInt(50),
	})
	require.Error(t, err)
	assert.False(t, provider.IsUnavailable(err))
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhook(t *testing.T) {
	p := newTestProvider(t, map[string]string{"appId": "x", "webhookSecret": "s3cret"})
	body := []byte(`{"event":"OPENPIX:CHARGE_COMPLETED"}`)

	t.Run("valid signature", func(t *testing.T) {
		header := http.Header{}
		header.Set("X-OpenPix-Signature", sign("s3cret", body))
		assert.NoError(t, p.VerifyWebhook(body, header))
	})

	t.Run("wrong signature", func(t *testing.T) {
		header := http.Header{}
		header.Set("X-OpenPix-Signature", sign("other", body))
		assert.ErrorIs(t, p.VerifyWebhook(body, header), provider.ErrInvalidSignature)
	})

	t.Run("missing header", func(t *testing.T) {
		assert.ErrorIs(t, p.VerifyWebhook(body, http.Header{}), provider.ErrInvalidSignature)
	})

	t.Run("no secret skips verification", func(t *testing.T) {
		open := newTestProvider(t, map[string]string{"appId": "x"})
		assert.NoError(t, open.VerifyWebhook(body, http.Header{}))
	})
}

func TestParseWebhook(t *testing.T) {
	p := newTestProvider(t, map[string]string{"appId": "x"})

	tests := []struct {
		name     string
		body     string
		wantKind provider.EventKind
		wantID   string
	}{
		{
			name:     "completed top level charge",
			body:     `{"event":"OPENPIX:CHARGE_COMPLETED","charge":{"correlationID":"c1"}}`,
			wantKind: provider.EventCompleted,
			wantID:   "c1",
		},
		{
			name:     "completed nested under data",
			body:     `{"event":"charge.completed","data":{"charge":{"id":"c2"}}}`,
			wantKind: provider.EventCompleted,
			wantID:   "c2",
		},
		{
			name:     "completed nested under payment",
			body:     `{"event":"OPENPIX:CHARGE_PAID","payment":{"charge":{"correlationID":"c3"}}}`,
			wantKind: provider.EventCompleted,
			wantID:   "c3",
		},
		{
			name:     "transaction received",
			body:     `{"event":"OPENPIX:TRANSACTION_RECEIVED","charge":{"correlationID":"c4"}}`,
			wantKind: provider.EventCompleted,
			wantID:   "c4",
		},
		{
			name:     "expired",
			body:     `{"event":"OPENPIX:CHARGE_EXPIRED","charge":{"correlationID":"c5"}}`,
			wantKind: provider.EventExpired,
			wantID:   "c5",
		},
		{
			name:     "unknown event ignored",
			body:     `{"event":"OPENPIX:MOVEMENT_CONFIRMED","charge":{"correlationID":"c6"}}`,
			wantKind: provider.EventIgnored,
		},
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

func TestParseWebhook_Malformed(t *testing.T) {
	p := newTestProvider(t, map[string]string{"appId": "x"})

	_, err := p.ParseWebhook([]byte(`{"event":"OPENPIX:CHARGE_COMPLETED"}`), nil)
	assert.ErrorIs(t, err, provider.ErrMalformedPayload)

	_, err = p.ParseWebhook([]byte(`{"event":"charge.completed","charge":{}}`), nil)
	assert.ErrorIs(t, err, provider.ErrMalformedPayload)

	_, err = p.ParseWebhook([]byte(`not json`), url.Values{})
	assert.ErrorIs(t, err, provider.ErrMalformedPayload)
}

func TestCreateTransfer(t *testing.T) {
	tests := []struct {
		name        string
		pixKey      string
		keyType     string
		wantKeyType string
	}{
		{"cpf key", "123.456.789-09", provider.PixKeyDocument, "CPF"},
		{"cnpj key reclassified by length", "12.345.678/0001-95", provider.PixKeyDocument, "CNPJ"},
		{"phone key", "(11) 98765-4321", provider.PixKeyPhone, "PHONE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sent map[string]any
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/openpix/v1/pix-transfers", r.URL.Path)
				require.NoError(t, json.NewDecoder(r.Body).Decode(&sent))
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{}`))
			}))
			defer server.Close()

			p := newTestProvider(t, map[string]string{"appId": "x", "baseUri": server.URL})

			key, keyType := provider.NormalizePixKey(tt.pixKey, tt.keyType)
			err := p.CreateTransfer(context.Background(), provider.TransferRequest{
				CorrelationID: "t1",
				Amount:        decimal.NewFromInt(150),
				PixKey:        key,
				PixKeyType:    keyType,
			})
			require.NoError(t, err)
			assert.Equal(t, float64(15000), sent["value"])
			assert.Equal(t, tt.wantKeyType, sent["pixKeyType"])
		})
	}
}
