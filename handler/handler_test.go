package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/pixloo/pixgate/infra/config"
	"github.com/pixloo/pixgate/provider"
	"github.com/pixloo/pixgate/settlement"
)

// fakeGateway is a PixProvider test double registered under real provider
// names. Webhook verification expects the X-Test-Signature header to equal
// the configured secret.
type fakeGateway struct {
	secret       string
	chargeErr    error
	transferErr  error
	lastCharge   provider.ChargeRequest
	lastTransfer provider.TransferRequest
}

func (f *fakeGateway) Initialize(conf map[string]string) error {
	f.secret = conf["webhookSecret"]
	return nil
}

func (f *fakeGateway) GetRequiredConfig() []provider.ConfigField { return nil }

func (f *fakeGateway) ValidateConfig(map[string]string) error { return nil }

func (f *fakeGateway) CreateCharge(_ context.Context, req provider.ChargeRequest) (*provider.ChargeResponse, error) {
	if f.chargeErr != nil {
		return nil, f.chargeErr
	}
	f.lastCharge = req
	return &provider.ChargeResponse{
		TransactionID: req.CorrelationID,
		PixCode:       "00020126br.gov.bcb.pix",
		QRCodeImage:   "data:image/png;base64,xxx",
	}, nil
}

func (f *fakeGateway) CreateTransfer(_ context.Context, req provider.TransferRequest) error {
	if f.transferErr != nil {
		return f.transferErr
	}
	f.lastTransfer = req
	return nil
}

func (f *fakeGateway) VerifyWebhook(_ []byte, header http.Header) error {
	if f.secret == "" {
		return nil
	}
	if header.Get("X-Test-Signature") != f.secret {
		return provider.ErrInvalidSignature
	}
	return nil
}

func (f *fakeGateway) ParseWebhook(rawBody []byte, _ url.Values) (*provider.WebhookEvent, error) {
	var payload struct {
		Event string `json:"event"`
		ID    string `json:"id"`
	}
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, provider.ErrMalformedPayload
	}

	event := &provider.WebhookEvent{Event: payload.Event, CorrelationID: payload.ID}
	switch payload.Event {
	case "paid":
		event.Kind = provider.EventCompleted
	case "expired":
		event.Kind = provider.EventExpired
	default:
		event.Kind = provider.EventIgnored
	}
	if event.Kind != provider.EventIgnored && payload.ID == "" {
		return nil, provider.ErrMalformedPayload
	}
	return event, nil
}

type withdrawalKey struct {
	id   int64
	kind settlement.WithdrawKind
}

// fakeLedger is an in-memory settlement.Store.
type fakeLedger struct {
	mu           sync.Mutex
	transactions map[string]*settlement.Transaction
	deposits     map[string]*settlement.Deposit
	users        map[int64]*settlement.User
	balances     map[int64]decimal.Decimal
	withdrawals  map[withdrawalKey]*settlement.Withdrawal
	paid         map[withdrawalKey]bool
	createErr    error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		transactions: make(map[string]*settlement.Transaction),
		deposits:     make(map[string]*settlement.Deposit),
		users:        make(map[int64]*settlement.User),
		balances:     make(map[int64]decimal.Decimal),
		withdrawals:  make(map[withdrawalKey]*settlement.Withdrawal),
		paid:         make(map[withdrawalKey]bool),
	}
}

func (f *fakeLedger) CreatePendingPayment(_ context.Context, t *settlement.Transaction, d *settlement.Deposit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	tc, dc := *t, *d
	f.transactions[t.PaymentID] = &tc
	f.deposits[d.PaymentID] = &dc
	return nil
}

func (f *fakeLedger) FindTransaction(_ context.Context, paymentID string) (*settlement.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transactions[paymentID]
	if !ok {
		return nil, settlement.ErrTransactionNotFound
	}
	out := *t
	return &out, nil
}

func (f *fakeLedger) ListDeposits(_ context.Context, userID int64, _, _ int) ([]settlement.Deposit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []settlement.Deposit
	for _, d := range f.deposits {
		if d.UserID == userID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeLedger) CreditPayment(_ context.Context, correlationID string, _ config.PlatformSettings) (*settlement.CreditOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transactions[correlationID]
	if !ok || t.Status != settlement.StatusPending {
		return nil, settlement.ErrAlreadyProcessed
	}
	t.Status = settlement.StatusSettled
	f.balances[t.UserID] = f.balances[t.UserID].Add(t.Price)
	out := *t
	return &settlement.CreditOutcome{Transaction: out, Bonus: decimal.Zero}, nil
}

func (f *fakeLedger) SettleDeposit(_ context.Context, correlationID string, _ decimal.Decimal) (*settlement.DepositOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.deposits[correlationID]
	if !ok || d.Status != settlement.StatusPending {
		return nil, settlement.ErrAlreadyProcessed
	}
	d.Status = settlement.StatusSettled
	out := *d
	return &settlement.DepositOutcome{Deposit: out}, nil
}

func (f *fakeLedger) GetUser(_ context.Context, id int64) (*settlement.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, errors.New("no such user")
	}
	return u, nil
}

func (f *fakeLedger) ListFreeRoundTiers(context.Context) ([]settlement.FreeRoundTier, error) {
	return nil, nil
}

func (f *fakeLedger) FindWithdrawal(_ context.Context, id int64, kind settlement.WithdrawKind) (*settlement.Withdrawal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.withdrawals[withdrawalKey{id, kind}]
	if !ok {
		return nil, settlement.ErrWithdrawalNotFound
	}
	out := *w
	return &out, nil
}

func (f *fakeLedger) MarkWithdrawalPaid(_ context.Context, id int64, kind settlement.WithdrawKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paid[withdrawalKey{id, kind}] = true
	return nil
}

func (f *fakeLedger) balance(userID int64) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[userID]
}

func testSettings() config.PlatformSettings {
	return config.PlatformSettings{
		MinDeposit:      decimal.NewFromInt(10),
		MaxDeposit:      decimal.NewFromInt(5000),
		CurrencyCode:    "BRL",
		CurrencySymbol:  "R$",
		InitialBonusPct: decimal.Zero,
		Rollover:        1,
		RolloverDeposit: 1,
	}
}
