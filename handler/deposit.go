package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/pixloo/pixgate/infra/config"
	"github.com/pixloo/pixgate/infra/logger"
	"github.com/pixloo/pixgate/infra/metrics"
	"github.com/pixloo/pixgate/infra/middle"
	"github.com/pixloo/pixgate/infra/opensearch"
	"github.com/pixloo/pixgate/infra/response"
	"github.com/pixloo/pixgate/provider"
	"github.com/pixloo/pixgate/settlement"
)

// EventLogger indexes gateway interactions for diagnostics. Nil-safe via
// the noop implementation.
type EventLogger interface {
	LogGatewayEvent(ctx context.Context, event opensearch.GatewayEvent) error
}

// NoopEventLogger discards gateway events when OpenSearch is not configured.
type NoopEventLogger struct{}

func (NoopEventLogger) LogGatewayEvent(context.Context, opensearch.GatewayEvent) error { return nil }

// DepositHandler handles deposit related HTTP requests
type DepositHandler struct {
	gateway  *provider.GatewayService
	store    settlement.Store
	settings config.PlatformSettings
	validate *validator.Validate
	events   EventLogger
}

// NewDepositHandler creates a new deposit handler
func NewDepositHandler(gateway *provider.GatewayService, store settlement.Store, settings config.PlatformSettings, validate *validator.Validate, events EventLogger) *DepositHandler {
	if events == nil {
		events = NoopEventLogger{}
	}
	return &DepositHandler{
		gateway:  gateway,
		store:    store,
		settings: settings,
		validate: validate,
		events:   events,
	}
}

// DepositRequest is the submit payload. Gateway is optional; when empty or
// not enabled the selector picks by priority order.
type DepositRequest struct {
	Gateway string          `json:"gateway"`
	Amount  decimal.Decimal `json:"amount" validate:"required"`
	CPF     string          `json:"cpf" validate:"required,min=11,max=14"`
}

// SubmitDeposit handles POST /wallet/deposit/submit
func (h *DepositHandler) SubmitDeposit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	userID, ok := middle.UserID(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, http.StatusBadRequest, "Validation failed", err)
		return
	}
	if err := h.validateBounds(req.Amount); err != nil {
		response.Error(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	providerName, gw, err := h.gateway.Select(req.Gateway)
	if err != nil {
		if errors.Is(err, provider.ErrGatewayNotConfigured) {
			response.Error(w, http.StatusBadRequest, "No payment gateway available", err)
			return
		}
		response.Error(w, http.StatusInternalServerError, "Gateway selection failed", err)
		return
	}

	user, err := h.store.GetUser(ctx, userID)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "User lookup failed", err)
		return
	}

	correlationID := provider.NewCorrelationID()
	charge := provider.ChargeRequest{
		CorrelationID: correlationID,
		UserID:        userID,
		UserName:      user.Name,
		UserEmail:     user.Email,
		TaxID:         provider.OnlyDigits(req.CPF),
		Amount:        req.Amount,
		Currency:      h.settings.CurrencyCode,
		Comment:       "Wallet deposit",
	}

	resp, err := gw.CreateCharge(ctx, charge)
	if err != nil {
		h.logChargeEvent(ctx, providerName, correlationID, req.Amount, "failed")
		metrics.Get().ChargesCreatedTotal.WithLabelValues(providerName, "failed").Inc()

		status := http.StatusInternalServerError
		var verr *provider.ValidationError
		if errors.As(err, &verr) {
			status = http.StatusBadRequest
		}
		logger.Error("Charge creation failed", err, logger.LogContext{
			Provider:      providerName,
			CorrelationID: correlationID,
		})
		response.Error(w, status, "Charge creation failed", err)
		return
	}

	// Both rows or neither: a webhook for this correlation id must always
	// find its transaction.
	txn := settlement.Transaction{
		PaymentID:     resp.TransactionID,
		UserID:        userID,
		PaymentMethod: providerName,
		Price:         req.Amount,
		Currency:      h.settings.CurrencyCode,
		UniqueID:      provider.NewUniqueToken(),
	}
	dep := settlement.Deposit{
		PaymentID: resp.TransactionID,
		UserID:    userID,
		Amount:    req.Amount,
		Type:      "pix",
		Currency:  h.settings.CurrencyCode,
		Symbol:    h.settings.CurrencySymbol,
	}
	if err := h.store.CreatePendingPayment(ctx, &txn, &dep); err != nil {
		logger.Error("Pending payment not persisted", err, logger.LogContext{
			Provider:      providerName,
			CorrelationID: resp.TransactionID,
		})
		response.Error(w, http.StatusInternalServerError, "Deposit could not be recorded", err)
		return
	}

	h.logChargeEvent(ctx, providerName, resp.TransactionID, req.Amount, "created")
	metrics.Get().ChargesCreatedTotal.WithLabelValues(providerName, "created").Inc()
	metrics.Get().ChargeAmountCents.WithLabelValues(providerName).Add(float64(provider.ToCents(req.Amount)))

	response.Success(w, http.StatusOK, "Deposit created", map[string]any{
		"idTransaction": resp.TransactionID,
		"qrcode":        resp.PixCode,
		"qrCodeImage":   resp.QRCodeImage,
		"paymentLink":   resp.PaymentLinkURL,
		"gateway":       providerName,
	})
}

func (h *DepositHandler) validateBounds(amount decimal.Decimal) error {
	if amount.LessThan(h.settings.MinDeposit) {
		return provider.NewValidationError("amount", "below minimum deposit of "+h.settings.MinDeposit.String())
	}
	if amount.GreaterThan(h.settings.MaxDeposit) {
		return provider.NewValidationError("amount", "above maximum deposit of "+h.settings.MaxDeposit.String())
	}
	return nil
}

func (h *DepositHandler) logChargeEvent(ctx context.Context, providerName, correlationID string, amount decimal.Decimal, status string) {
	err := h.events.LogGatewayEvent(ctx, opensearch.GatewayEvent{
		Timestamp:     time.Now().UTC(),
		Provider:      providerName,
		EventType:     "charge",
		CorrelationID: correlationID,
		Status:        status,
		AmountCents:   provider.ToCents(amount),
	})
	if err != nil {
		logger.Debug("Gateway event not indexed: " + err.Error())
	}
}

// DepositStatus handles GET /wallet/deposit/status?idTransaction=...
func (h *DepositHandler) DepositStatus(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("idTransaction")
	if id == "" {
		response.Error(w, http.StatusBadRequest, "idTransaction is required", nil)
		return
	}

	t, err := h.store.FindTransaction(r.Context(), id)
	if errors.Is(err, settlement.ErrTransactionNotFound) {
		response.WriteJSON(w, http.StatusNotFound, map[string]string{"status": "NOT_FOUND"})
		return
	}
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Status lookup failed", err)
		return
	}

	status := "PENDING"
	if t.Status == settlement.StatusSettled {
		status = "PAID"
	}
	response.WriteJSON(w, http.StatusOK, map[string]string{"status": status})
}

// ListDeposits handles GET /wallet/deposits
func (h *DepositHandler) ListDeposits(w http.ResponseWriter, r *http.Request) {
	userID, ok := middle.UserID(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	limit := queryInt(r, "limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}

	deposits, err := h.store.ListDeposits(r.Context(), userID, limit, (page-1)*limit)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Deposit listing failed", err)
		return
	}

	items := make([]map[string]any, 0, len(deposits))
	for _, d := range deposits {
		status := "PENDING"
		if d.Status == settlement.StatusSettled {
			status = "PAID"
		}
		items = append(items, map[string]any{
			"idTransaction": d.PaymentID,
			"amount":        d.Amount,
			"type":          d.Type,
			"currency":      d.Currency,
			"symbol":        d.Symbol,
			"status":        status,
			"createdAt":     d.CreatedAt,
		})
	}

	response.Success(w, http.StatusOK, "Deposits", map[string]any{
		"page":     page,
		"limit":    limit,
		"deposits": items,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
