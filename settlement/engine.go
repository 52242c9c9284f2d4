package settlement

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pixloo/pixgate/infra/config"
	"github.com/pixloo/pixgate/infra/events"
	"github.com/pixloo/pixgate/infra/logger"
	"github.com/pixloo/pixgate/infra/metrics"
)

// Result classifies what a settlement attempt did.
type Result int

const (
	// ResultSettled means this call moved the money.
	ResultSettled Result = iota
	// ResultAlreadyProcessed means the transaction was settled earlier or
	// never existed. Callers report both the same way.
	ResultAlreadyProcessed
)

// FreeRoundsGrant is the reward handed to the rounds service when a
// deposit crosses a configured tier.
type FreeRoundsGrant struct {
	Username string
	GameCode string
	Rounds   int
}

// RoundsService triggers free spins on the game platform.
type RoundsService interface {
	TriggerFreeRounds(ctx context.Context, grant FreeRoundsGrant) error
}

// Engine drives the Pending -> Settled transition. The database claim is
// the source of truth for idempotency; the singleflight group only
// collapses concurrent deliveries of the same correlation id so they do
// not all hit the row lock.
type Engine struct {
	store    Store
	settings config.PlatformSettings
	rounds   RoundsService
	notifier events.Publisher
	group    singleflight.Group
}

func NewEngine(store Store, settings config.PlatformSettings, rounds RoundsService, notifier events.Publisher) *Engine {
	return &Engine{
		store:    store,
		settings: settings,
		rounds:   rounds,
		notifier: notifier,
	}
}

// Settle processes a confirmed payment for the given correlation id.
// It is safe to call any number of times for the same id.
func (e *Engine) Settle(ctx context.Context, correlationID string) (Result, error) {
	v, err, _ := e.group.Do(correlationID, func() (any, error) {
		return e.settle(ctx, correlationID)
	})
	if err != nil {
		return 0, err
	}
	return v.(Result), nil
}

func (e *Engine) settle(ctx context.Context, correlationID string) (Result, error) {
	start := time.Now()

	outcome, err := e.store.CreditPayment(ctx, correlationID, e.settings)
	if errors.Is(err, ErrAlreadyProcessed) {
		metrics.Get().SettlementsTotal.WithLabelValues("duplicate").Inc()
		return ResultAlreadyProcessed, nil
	}
	if err != nil {
		metrics.Get().SettlementsTotal.WithLabelValues("error").Inc()
		return 0, err
	}

	t := outcome.Transaction
	logger.Info("Payment settled", logger.LogContext{
		Provider:      t.PaymentMethod,
		CorrelationID: t.PaymentID,
	})

	// Everything below runs after the credit has committed. Failures here
	// are logged and retried out of band; they never undo the credit.
	e.afterCredit(ctx, outcome)

	metrics.Get().SettlementsTotal.WithLabelValues("settled").Inc()
	metrics.Get().SettlementDuration.WithLabelValues("settled").Observe(time.Since(start).Seconds())
	return ResultSettled, nil
}

func (e *Engine) afterCredit(ctx context.Context, outcome *CreditOutcome) {
	t := outcome.Transaction

	user, err := e.store.GetUser(ctx, t.UserID)
	if err != nil {
		logger.Error("Settled payment for unknown user", err, logger.LogContext{
			CorrelationID: t.PaymentID,
		})
	} else {
		e.grantFreeRounds(ctx, user, outcome)
	}

	depOutcome, err := e.store.SettleDeposit(ctx, t.PaymentID, t.Price)
	if err != nil {
		logger.Warn("Deposit settlement incomplete: "+err.Error(), logger.LogContext{
			Provider:      t.PaymentMethod,
			CorrelationID: t.PaymentID,
		})
		return
	}
	if depOutcome.CommissionPaid {
		logger.Info("CPA commission paid", logger.LogContext{
			CorrelationID: t.PaymentID,
			Fields:        map[string]any{"inviter": depOutcome.InviterID, "commission": depOutcome.Commission.String()},
		})
	}

	name := ""
	if user != nil {
		name = user.Name
	}
	err = e.notifier.PublishDepositSettled(ctx, events.DepositSettledEvent{
		PaymentID: t.PaymentID,
		UserID:    t.UserID,
		UserName:  name,
		Amount:    t.Price.String(),
		Currency:  t.Currency,
		Provider:  t.PaymentMethod,
		At:        time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		logger.Warn("Deposit notification failed: "+err.Error(), logger.LogContext{
			CorrelationID: t.PaymentID,
		})
	}
}

// grantFreeRounds scans the tiers in ascending threshold order and fires
// the first one the deposit amount reaches. Tiers are inclusive lower
// bounds, so a small deposit matching the lowest tier wins even when a
// higher tier would also match.
func (e *Engine) grantFreeRounds(ctx context.Context, user *User, outcome *CreditOutcome) {
	tiers, err := e.store.ListFreeRoundTiers(ctx)
	if err != nil {
		logger.Warn("Free round tiers unavailable: "+err.Error(), logger.LogContext{
			CorrelationID: outcome.Transaction.PaymentID,
		})
		return
	}
	for _, tier := range tiers {
		if outcome.Transaction.Price.GreaterThanOrEqual(tier.Threshold) {
			err := e.rounds.TriggerFreeRounds(ctx, FreeRoundsGrant{
				Username: user.Email,
				GameCode: tier.GameCode,
				Rounds:   tier.Spins,
			})
			if err != nil {
				logger.Warn("Free rounds trigger failed: "+err.Error(), logger.LogContext{
					CorrelationID: outcome.Transaction.PaymentID,
					Fields:        map[string]any{"user_id": user.ID, "game": tier.GameCode},
				})
			}
			return
		}
	}
}
