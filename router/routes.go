package router

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pixloo/pixgate/handler"
	"github.com/pixloo/pixgate/infra/middle"

	// Import for side-effect registration
	_ "github.com/pixloo/pixgate/provider/bspay"
	_ "github.com/pixloo/pixgate/provider/digitopay"
	_ "github.com/pixloo/pixgate/provider/ezzepay"
	_ "github.com/pixloo/pixgate/provider/ondapay"
	_ "github.com/pixloo/pixgate/provider/suitpay"
	_ "github.com/pixloo/pixgate/provider/woovi"
)

// Handlers bundles the HTTP handlers the router wires up.
type Handlers struct {
	Deposit  *handler.DepositHandler
	Withdraw *handler.WithdrawHandler
	Webhook  *handler.WebhookHandler
	Health   *handler.HealthHandler
}

// Routes registers all API routes
func Routes(r chi.Router, h Handlers) {
	r.Get("/health", h.Health.Check)
	r.Handle("/metrics", promhttp.Handler())

	// Provider callbacks carry their own authenticity check (signature),
	// not user auth.
	r.Route("/gateway/{provider}", func(r chi.Router) {
		r.Get("/callback", h.Webhook.HealthCheck)
		r.Post("/callback", h.Webhook.HandleCallback)
	})

	r.Route("/wallet", func(r chi.Router) {
		r.Use(middle.UserAuth)

		r.Post("/deposit/submit", h.Deposit.SubmitDeposit)
		r.Get("/deposit/status", h.Deposit.DepositStatus)
		r.Get("/deposits", h.Deposit.ListDeposits)
		r.Post("/withdraw/process", h.Withdraw.ProcessWithdraw)
	})
}
