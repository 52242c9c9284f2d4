package settlement

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/pixloo/pixgate/infra/config"
)

var (
	// ErrAlreadyProcessed means no pending transaction existed for the
	// correlation id: either it was settled before, or it never existed.
	// The two cases are deliberately indistinguishable to webhook callers.
	ErrAlreadyProcessed = errors.New("transaction already processed or not found")

	// ErrTransactionNotFound is returned by lookups that do distinguish
	// absence, such as the deposit status endpoint.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrWalletNotFound aborts a credit when the user has no wallet row.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrWithdrawalNotFound is returned when a payout targets a
	// withdrawal that does not exist or is not pending.
	ErrWithdrawalNotFound = errors.New("withdrawal not found")
)

// CreditOutcome reports what the atomic credit phase did.
type CreditOutcome struct {
	Transaction  Transaction
	FirstDeposit bool
	Bonus        decimal.Decimal
}

// DepositOutcome reports what the deposit settlement phase did, including
// any CPA commission paid out to the user's inviter.
type DepositOutcome struct {
	Deposit        Deposit
	CommissionPaid bool
	InviterID      int64
	Commission     decimal.Decimal
}

// Store is the persistence boundary of the settlement engine.
type Store interface {
	// CreatePendingPayment records a new pending transaction together
	// with its deposit row in a single transaction.
	CreatePendingPayment(ctx context.Context, t *Transaction, d *Deposit) error

	// FindTransaction returns the transaction for a payment id, or
	// ErrTransactionNotFound.
	FindTransaction(ctx context.Context, paymentID string) (*Transaction, error)

	// ListDeposits returns a page of a user's deposits, newest first.
	ListDeposits(ctx context.Context, userID int64, limit, offset int) ([]Deposit, error)

	// CreditPayment claims the pending transaction for the correlation id
	// and, in one database transaction, applies the first-deposit bonus,
	// sets the deposit rollover, credits the balance and flips the
	// transaction to settled. Returns ErrAlreadyProcessed when there is
	// no pending row to claim.
	CreditPayment(ctx context.Context, correlationID string, settings config.PlatformSettings) (*CreditOutcome, error)

	// SettleDeposit flips the deposit row for the correlation id to
	// settled and resolves any open CPA commission for the depositor.
	SettleDeposit(ctx context.Context, correlationID string, price decimal.Decimal) (*DepositOutcome, error)

	GetUser(ctx context.Context, id int64) (*User, error)
	ListFreeRoundTiers(ctx context.Context) ([]FreeRoundTier, error)

	FindWithdrawal(ctx context.Context, id int64, kind WithdrawKind) (*Withdrawal, error)
	MarkWithdrawalPaid(ctx context.Context, id int64, kind WithdrawKind) error
}
