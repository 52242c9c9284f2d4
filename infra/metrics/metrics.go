package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// GatewayMetrics holds the Prometheus collectors for the payment gateway.
type GatewayMetrics struct {
	ChargesCreatedTotal   *prometheus.CounterVec
	ChargeAmountCents     *prometheus.CounterVec
	TransfersTotal        *prometheus.CounterVec
	WebhooksReceivedTotal *prometheus.CounterVec
	SettlementsTotal      *prometheus.CounterVec
	SettlementDuration    *prometheus.HistogramVec
}

var (
	instance *GatewayMetrics
	once     sync.Once
)

// Get returns the process-wide gateway metrics, registering them on first use.
func Get() *GatewayMetrics {
	once.Do(func() {
		instance = &GatewayMetrics{
			ChargesCreatedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "pixgate_charges_created_total",
				Help: "PIX charges created, by provider and outcome",
			}, []string{"provider", "status"}),

			ChargeAmountCents: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "pixgate_charge_amount_cents_total",
				Help: "Total charged amount in cents, by provider",
			}, []string{"provider"}),

			TransfersTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "pixgate_transfers_total",
				Help: "PIX transfers sent, by provider and outcome",
			}, []string{"provider", "status"}),

			WebhooksReceivedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "pixgate_webhooks_received_total",
				Help: "Webhook deliveries, by provider and classification",
			}, []string{"provider", "result"}),

			SettlementsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "pixgate_settlements_total",
				Help: "Settlement attempts, by result",
			}, []string{"result"}),

			SettlementDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "pixgate_settlement_duration_seconds",
				Help:    "Settlement processing time",
				Buckets: prometheus.DefBuckets,
			}, []string{"result"}),
		}
	})
	return instance
}
