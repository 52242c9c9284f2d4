package settlement

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state shared by transactions, deposits,
// withdrawals and commission records. Pending -> Settled is the only
// transition the engine performs; it never goes back.
type Status int

const (
	StatusPending Status = 0
	StatusSettled Status = 1
)

// Transaction is one payment attempt, keyed by the provider correlation id.
type Transaction struct {
	ID            int64
	PaymentID     string
	UserID        int64
	PaymentMethod string
	Price         decimal.Decimal
	Currency      string
	Status        Status
	UniqueID      string
	CreatedAt     time.Time
}

// Deposit mirrors a Transaction as the user-facing deposit record. It is a
// distinct entity because other deposit types (card, crypto) share the table.
type Deposit struct {
	ID        int64
	PaymentID string
	UserID    int64
	Amount    decimal.Decimal
	Type      string
	Currency  string
	Symbol    string
	Status    Status
	CreatedAt time.Time
}

// Wallet holds a user's balances. The settlement engine only ever increments.
type Wallet struct {
	UserID                 int64
	Balance                decimal.Decimal
	BalanceBonus           decimal.Decimal
	BalanceBonusRollover   decimal.Decimal
	BalanceDepositRollover decimal.Decimal
	ReferRewards           decimal.Decimal
	Currency               string
	Symbol                 string
}

// User carries the fields the settlement engine needs: identity for the
// free-rounds grant and the affiliate terms of the user's inviter.
type User struct {
	ID                int64
	Name              string
	Email             string
	RoleID            int
	Inviter           int64
	AffiliateBaseline decimal.Decimal
	AffiliateCPA      decimal.Decimal
}

// AffiliateHistory is a user's CPA commission record against their inviter.
type AffiliateHistory struct {
	ID              int64
	UserID          int64
	Inviter         int64
	CommissionType  string
	Status          Status
	DepositedAmount decimal.Decimal
	CommissionPaid  decimal.Decimal
}

// Withdrawal is a pending cash-out request (user or affiliate).
type Withdrawal struct {
	ID      int64
	UserID  int64
	Amount  decimal.Decimal
	PixKey  string
	PixType string
	Status  Status
}

// FreeRoundTier is one configured reward tier, ordered by threshold.
type FreeRoundTier struct {
	ID        int64
	Threshold decimal.Decimal
	GameCode  string
	Spins     int
}

// WithdrawKind selects which withdrawal table a cash-out targets.
type WithdrawKind string

const (
	WithdrawUser      WithdrawKind = "user"
	WithdrawAffiliate WithdrawKind = "affiliate"
)
