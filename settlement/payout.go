package settlement

import (
	"context"

	"github.com/pixloo/pixgate/infra/logger"
	"github.com/pixloo/pixgate/infra/metrics"
	"github.com/pixloo/pixgate/provider"
)

// TransferSender is the slice of a PIX provider the payout flow needs.
type TransferSender interface {
	CreateTransfer(ctx context.Context, req provider.TransferRequest) error
}

// PayoutService dispatches approved withdrawals as PIX transfers.
type PayoutService struct {
	store   Store
	comment string
}

func NewPayoutService(store Store, comment string) *PayoutService {
	return &PayoutService{store: store, comment: comment}
}

// SendTransfer pays out the pending withdrawal with the given id. It
// returns true when the provider accepted the transfer. A failure to mark
// the row afterwards is logged but does not fail the payout, since the
// money has already moved.
func (p *PayoutService) SendTransfer(ctx context.Context, id int64, kind WithdrawKind, providerName string, sender TransferSender) (bool, error) {
	w, err := p.store.FindWithdrawal(ctx, id, kind)
	if err != nil {
		return false, err
	}

	key, keyType := provider.NormalizePixKey(w.PixKey, w.PixType)
	req := provider.TransferRequest{
		CorrelationID: provider.NewCorrelationID(),
		Amount:        w.Amount,
		PixKey:        key,
		PixKeyType:    keyType,
		Comment:       p.comment,
	}

	if err := sender.CreateTransfer(ctx, req); err != nil {
		metrics.Get().TransfersTotal.WithLabelValues(providerName, "failed").Inc()
		logger.Error("PIX transfer rejected", err, logger.LogContext{
			Provider:      providerName,
			CorrelationID: req.CorrelationID,
		})
		return false, err
	}

	metrics.Get().TransfersTotal.WithLabelValues(providerName, "sent").Inc()
	logger.Info("PIX transfer sent", logger.LogContext{
		Provider:      providerName,
		CorrelationID: req.CorrelationID,
		Fields:        map[string]any{"withdrawal_id": w.ID, "amount": w.Amount.String()},
	})

	if err := p.store.MarkWithdrawalPaid(ctx, w.ID, kind); err != nil {
		logger.Error("Transfer sent but withdrawal not marked paid", err, logger.LogContext{
			Provider:      providerName,
			CorrelationID: req.CorrelationID,
		})
	}
	return true, nil
}
