package handler

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pixloo/pixgate/infra/logger"
	"github.com/pixloo/pixgate/infra/metrics"
	"github.com/pixloo/pixgate/infra/opensearch"
	"github.com/pixloo/pixgate/infra/response"
	"github.com/pixloo/pixgate/provider"
	"github.com/pixloo/pixgate/settlement"
)

// maxWebhookBody bounds callback payloads; provider charges are small.
const maxWebhookBody = 1 << 20

// WebhookHandler receives and settles provider callbacks
type WebhookHandler struct {
	gateway *provider.GatewayService
	engine  *settlement.Engine
	events  EventLogger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(gateway *provider.GatewayService, engine *settlement.Engine, events EventLogger) *WebhookHandler {
	if events == nil {
		events = NoopEventLogger{}
	}
	return &WebhookHandler{
		gateway: gateway,
		engine:  engine,
		events:  events,
	}
}

// HealthCheck handles GET /gateway/{provider}/callback. Providers probe the
// callback URL before enabling webhooks.
func (h *WebhookHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleCallback handles POST /gateway/{provider}/callback.
//
// Response contract: 200 stops provider redelivery, so duplicates, ignored
// events and expirations all answer 200. Only signature failures (401) and
// malformed payloads (400) are non-2xx.
func (h *WebhookHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	providerName := chi.URLParam(r, "provider")

	gw, err := h.gateway.Provider(providerName)
	if err != nil {
		response.Error(w, http.StatusNotFound, "Unknown gateway", err)
		return
	}

	rawBody, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Unreadable request body", err)
		return
	}

	if err := gw.VerifyWebhook(rawBody, r.Header); err != nil {
		h.logWebhookEvent(ctx, providerName, "", "invalid_signature")
		metrics.Get().WebhooksReceivedTotal.WithLabelValues(providerName, "invalid_signature").Inc()
		logger.Warn("Webhook signature rejected", logger.LogContext{Provider: providerName})
		response.Error(w, http.StatusUnauthorized, "Invalid signature", provider.ErrInvalidSignature)
		return
	}

	// The body is already consumed, so form-encoded posts are decoded from
	// the raw bytes rather than through r.ParseForm.
	form, err := url.ParseQuery(string(rawBody))
	if err != nil {
		form = nil
	}

	event, err := gw.ParseWebhook(rawBody, form)
	if err != nil {
		h.logWebhookEvent(ctx, providerName, "", "malformed")
		metrics.Get().WebhooksReceivedTotal.WithLabelValues(providerName, "malformed").Inc()
		response.Error(w, http.StatusBadRequest, "Malformed webhook payload", err)
		return
	}

	switch event.Kind {
	case provider.EventIgnored:
		h.logWebhookEvent(ctx, providerName, event.CorrelationID, "ignored")
		metrics.Get().WebhooksReceivedTotal.WithLabelValues(providerName, "ignored").Inc()
		response.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return

	case provider.EventExpired:
		// terminal for the charge, no ledger effect
		h.logWebhookEvent(ctx, providerName, event.CorrelationID, "expired")
		metrics.Get().WebhooksReceivedTotal.WithLabelValues(providerName, "expired").Inc()
		logger.Info("Charge expired", logger.LogContext{
			Provider:      providerName,
			CorrelationID: event.CorrelationID,
		})
		response.WriteJSON(w, http.StatusOK, map[string]string{"status": "expired"})
		return
	}

	result, err := h.engine.Settle(ctx, event.CorrelationID)
	if err != nil {
		h.logWebhookEvent(ctx, providerName, event.CorrelationID, "settle_error")
		metrics.Get().WebhooksReceivedTotal.WithLabelValues(providerName, "error").Inc()
		logger.Error("Webhook settlement failed", err, logger.LogContext{
			Provider:      providerName,
			CorrelationID: event.CorrelationID,
		})
		response.Error(w, http.StatusInternalServerError, "Settlement failed", err)
		return
	}

	if result == settlement.ResultAlreadyProcessed {
		h.logWebhookEvent(ctx, providerName, event.CorrelationID, "duplicate")
		metrics.Get().WebhooksReceivedTotal.WithLabelValues(providerName, "duplicate").Inc()
		response.WriteJSON(w, http.StatusOK, map[string]string{"status": "already processed or not found"})
		return
	}

	h.logWebhookEvent(ctx, providerName, event.CorrelationID, "settled")
	metrics.Get().WebhooksReceivedTotal.WithLabelValues(providerName, "settled").Inc()
	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *WebhookHandler) logWebhookEvent(ctx context.Context, providerName, correlationID, status string) {
	err := h.events.LogGatewayEvent(ctx, opensearch.GatewayEvent{
		Timestamp:     time.Now().UTC(),
		Provider:      providerName,
		EventType:     "webhook",
		CorrelationID: correlationID,
		Status:        status,
	})
	if err != nil {
		logger.Debug("Gateway event not indexed: " + err.Error())
	}
}
