package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/pixloo/pixgate/infra/response"
	"github.com/pixloo/pixgate/provider"
	"github.com/pixloo/pixgate/settlement"
)

// WithdrawHandler dispatches approved withdrawals as PIX transfers
type WithdrawHandler struct {
	gateway  *provider.GatewayService
	payouts  *settlement.PayoutService
	validate *validator.Validate
}

// NewWithdrawHandler creates a new withdraw handler
func NewWithdrawHandler(gateway *provider.GatewayService, payouts *settlement.PayoutService, validate *validator.Validate) *WithdrawHandler {
	return &WithdrawHandler{
		gateway:  gateway,
		payouts:  payouts,
		validate: validate,
	}
}

// WithdrawRequest selects the pending withdrawal to pay out. Kind picks the
// user or affiliate table; gateway is optional.
type WithdrawRequest struct {
	ID      int64  `json:"id" validate:"required,gt=0"`
	Kind    string `json:"kind" validate:"required,oneof=user affiliate"`
	Gateway string `json:"gateway"`
}

// ProcessWithdraw handles POST /wallet/withdraw/process
func (h *WithdrawHandler) ProcessWithdraw(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
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

	sent, err := h.payouts.SendTransfer(ctx, req.ID, settlement.WithdrawKind(req.Kind), providerName, gw)
	if err != nil {
		if errors.Is(err, settlement.ErrWithdrawalNotFound) {
			response.Error(w, http.StatusNotFound, "Withdrawal not found", err)
			return
		}
		response.Error(w, http.StatusInternalServerError, "Transfer failed", err)
		return
	}

	response.Success(w, http.StatusOK, "Transfer sent", map[string]any{
		"paid":    sent,
		"gateway": providerName,
	})
}
