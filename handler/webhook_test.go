package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixloo/pixgate/infra/events"
	"github.com/pixloo/pixgate/provider"
	"github.com/pixloo/pixgate/settlement"
)

type webhookEnv struct {
	router  chi.Router
	gateway *fakeGateway
	ledger  *fakeLedger
}

func newWebhookEnv(t *testing.T, secret string) *webhookEnv {
	t.Helper()

	gw := &fakeGateway{}
	provider.Register("woovi", func() provider.PixProvider { return gw })

	svc := provider.NewGatewayService()
	require.NoError(t, svc.AddProvider("woovi", map[string]string{"webhookSecret": secret}, true))

	ledger := newFakeLedger()
	engine := settlement.NewEngine(ledger, testSettings(), settlement.NoopRounds{}, events.NoopPublisher{})
	h := NewWebhookHandler(svc, engine, nil)

	r := chi.NewRouter()
	r.Get("/gateway/{provider}/callback", h.HealthCheck)
	r.Post("/gateway/{provider}/callback", h.HandleCallback)

	return &webhookEnv{router: r, gateway: gw, ledger: ledger}
}

func (env *webhookEnv) post(path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func (env *webhookEnv) addPending(paymentID string, userID int64, amount string) {
	env.ledger.transactions[paymentID] = &settlement.Transaction{
		PaymentID:     paymentID,
		UserID:        userID,
		PaymentMethod: "woovi",
		Price:         decimal.RequireFromString(amount),
		Currency:      "BRL",
		Status:        settlement.StatusPending,
	}
	env.ledger.deposits[paymentID] = &settlement.Deposit{
		PaymentID: paymentID,
		UserID:    userID,
		Amount:    decimal.RequireFromString(amount),
		Status:    settlement.StatusPending,
	}
}

func TestCallbackHealthCheck(t *testing.T) {
	env := newWebhookEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/gateway/woovi/callback", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleCallback_SettlesPendingPayment(t *testing.T) {
	env := newWebhookEnv(t, "")
	env.addPending("tx-1", 7, "100")

	rec := env.post("/gateway/woovi/callback", `{"event":"paid","id":"tx-1"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.True(t, env.ledger.balance(7).Equal(decimal.RequireFromString("100")))
}

func TestHandleCallback_DuplicateDelivery(t *testing.T) {
	env := newWebhookEnv(t, "")
	env.addPending("tx-1", 7, "100")

	first := env.post("/gateway/woovi/callback", `{"event":"paid","id":"tx-1"}`, nil)
	require.Equal(t, http.StatusOK, first.Code)

	second := env.post("/gateway/woovi/callback", `{"event":"paid","id":"tx-1"}`, nil)

	assert.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, `{"status":"already processed or not found"}`, second.Body.String())
	assert.True(t, env.ledger.balance(7).Equal(decimal.RequireFromString("100")), "balance credited once")
}

func TestHandleCallback_UnknownCorrelationID(t *testing.T) {
	env := newWebhookEnv(t, "")

	rec := env.post("/gateway/woovi/callback", `{"event":"paid","id":"never-seen"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"already processed or not found"}`, rec.Body.String())
}

func TestHandleCallback_ExpiredEventLeavesLedgerAlone(t *testing.T) {
	env := newWebhookEnv(t, "")
	env.addPending("tx-1", 7, "100")

	rec := env.post("/gateway/woovi/callback", `{"event":"expired","id":"tx-1"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"expired"}`, rec.Body.String())
	assert.Equal(t, settlement.StatusPending, env.ledger.transactions["tx-1"].Status)
	assert.True(t, env.ledger.balance(7).IsZero())
}

func TestHandleCallback_IgnoredEvent(t *testing.T) {
	env := newWebhookEnv(t, "")

	rec := env.post("/gateway/woovi/callback", `{"event":"charge.updated","id":"tx-1"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ignored"}`, rec.Body.String())
}

func TestHandleCallback_InvalidSignature(t *testing.T) {
	env := newWebhookEnv(t, "topsecret")
	env.addPending("tx-1", 7, "100")

	rec := env.post("/gateway/woovi/callback", `{"event":"paid","id":"tx-1"}`, map[string]string{
		"X-Test-Signature": "wrong",
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.True(t, env.ledger.balance(7).IsZero())
}

func TestHandleCallback_ValidSignature(t *testing.T) {
	env := newWebhookEnv(t, "topsecret")
	env.addPending("tx-1", 7, "100")

	rec := env.post("/gateway/woovi/callback", `{"event":"paid","id":"tx-1"}`, map[string]string{
		"X-Test-Signature": "topsecret",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.ledger.balance(7).Equal(decimal.RequireFromString("100")))
}

func TestHandleCallback_MalformedBody(t *testing.T) {
	env := newWebhookEnv(t, "")

	rec := env.post("/gateway/woovi/callback", `{not json`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCallback_UnknownProvider(t *testing.T) {
	env := newWebhookEnv(t, "")

	rec := env.post("/gateway/nobody/callback", `{"event":"paid","id":"tx-1"}`, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
