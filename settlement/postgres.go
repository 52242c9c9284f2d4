package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/pixloo/pixgate/infra/config"
)

// DB is the subset of pgxpool.Pool the store uses. pgxmock satisfies it.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store on top of a pgx pool.
type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreatePendingPayment(ctx context.Context, t *Transaction, d *Deposit) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO transactions (payment_id, user_id, payment_method, price, currency, status, unique_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		t.PaymentID, t.UserID, t.PaymentMethod, t.Price, t.Currency, StatusPending, t.UniqueID,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO deposits (payment_id, user_id, amount, type, currency, symbol, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		d.PaymentID, d.UserID, d.Amount, d.Type, d.Currency, d.Symbol, StatusPending,
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert deposit: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) FindTransaction(ctx context.Context, paymentID string) (*Transaction, error) {
	var t Transaction
	err := s.db.QueryRow(ctx, `
		SELECT id, payment_id, user_id, payment_method, price, currency, status, unique_id, created_at
		FROM transactions WHERE payment_id = $1`,
		paymentID,
	).Scan(&t.ID, &t.PaymentID, &t.UserID, &t.PaymentMethod, &t.Price, &t.Currency, &t.Status, &t.UniqueID, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select transaction: %w", err)
	}
	return &t, nil
}

func (s *PostgresStore) ListDeposits(ctx context.Context, userID int64, limit, offset int) ([]Deposit, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, payment_id, user_id, amount, type, currency, symbol, status, created_at
		FROM deposits WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("select deposits: %w", err)
	}
	defer rows.Close()

	var out []Deposit
	for rows.Next() {
		var d Deposit
		if err := rows.Scan(&d.ID, &d.PaymentID, &d.UserID, &d.Amount, &d.Type, &d.Currency, &d.Symbol, &d.Status, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan deposit: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CreditPayment performs the money movement. The pending row is claimed
// with FOR UPDATE so concurrent deliveries of the same webhook serialize:
// the second one finds no pending row and gets ErrAlreadyProcessed.
func (s *PostgresStore) CreditPayment(ctx context.Context, correlationID string, settings config.PlatformSettings) (*CreditOutcome, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var t Transaction
	err = tx.QueryRow(ctx, `
		SELECT id, payment_id, user_id, payment_method, price, currency, status, unique_id, created_at
		FROM transactions WHERE payment_id = $1 AND status = $2
		FOR UPDATE`,
		correlationID, StatusPending,
	).Scan(&t.ID, &t.PaymentID, &t.UserID, &t.PaymentMethod, &t.Price, &t.Currency, &t.Status, &t.UniqueID, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAlreadyProcessed
	}
	if err != nil {
		return nil, fmt.Errorf("claim transaction: %w", err)
	}

	outcome := &CreditOutcome{Transaction: t, Bonus: decimal.Zero}

	var settled int64
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM transactions WHERE user_id = $1 AND status = $2`,
		t.UserID, StatusSettled,
	).Scan(&settled)
	if err != nil {
		return nil, fmt.Errorf("count settled: %w", err)
	}
	outcome.FirstDeposit = settled == 0

	if outcome.FirstDeposit && settings.InitialBonusPct.IsPositive() {
		bonus := t.Price.Mul(settings.InitialBonusPct).Div(decimal.NewFromInt(100))
		rollover := bonus.Mul(decimal.NewFromInt(settings.Rollover))
		_, err = tx.Exec(ctx, `
			UPDATE wallets SET balance_bonus = balance_bonus + $1, balance_bonus_rollover = $2
			WHERE user_id = $3`,
			bonus, rollover, t.UserID,
		)
		if err != nil {
			return nil, fmt.Errorf("apply bonus: %w", err)
		}
		outcome.Bonus = bonus
	}

	depositRollover := t.Price.Mul(decimal.NewFromInt(settings.RolloverDeposit))
	_, err = tx.Exec(ctx, `
		UPDATE wallets SET balance_deposit_rollover = $1 WHERE user_id = $2`,
		depositRollover, t.UserID,
	)
	if err != nil {
		return nil, fmt.Errorf("set deposit rollover: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE wallets SET balance = balance + $1 WHERE user_id = $2`,
		t.Price, t.UserID,
	)
	if err != nil {
		return nil, fmt.Errorf("credit balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrWalletNotFound
	}

	_, err = tx.Exec(ctx, `
		UPDATE transactions SET status = $1 WHERE id = $2`,
		StatusSettled, t.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("settle transaction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	t.Status = StatusSettled
	outcome.Transaction = t
	return outcome, nil
}

// SettleDeposit runs after the credit has committed. It flips the deposit
// row and resolves the depositor's open CPA commission, if any.
func (s *PostgresStore) SettleDeposit(ctx context.Context, correlationID string, price decimal.Decimal) (*DepositOutcome, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var d Deposit
	err = tx.QueryRow(ctx, `
		SELECT id, payment_id, user_id, amount, type, currency, symbol, status, created_at
		FROM deposits WHERE payment_id = $1 AND status = $2
		FOR UPDATE`,
		correlationID, StatusPending,
	).Scan(&d.ID, &d.PaymentID, &d.UserID, &d.Amount, &d.Type, &d.Currency, &d.Symbol, &d.Status, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAlreadyProcessed
	}
	if err != nil {
		return nil, fmt.Errorf("claim deposit: %w", err)
	}

	outcome := &DepositOutcome{Deposit: d, Commission: decimal.Zero}

	var h AffiliateHistory
	err = tx.QueryRow(ctx, `
		SELECT id, user_id, inviter, deposited_amount
		FROM affiliate_histories
		WHERE user_id = $1 AND commission_type = 'cpa' AND status = $2
		LIMIT 1`,
		d.UserID, StatusPending,
	).Scan(&h.ID, &h.UserID, &h.Inviter, &h.DepositedAmount)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// no open commission for this user
	case err != nil:
		return nil, fmt.Errorf("select commission: %w", err)
	default:
		if err := s.resolveCommission(ctx, tx, &h, d, price, outcome); err != nil {
			return nil, err
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE deposits SET status = $1 WHERE id = $2`,
		StatusSettled, d.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("settle deposit: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	outcome.Deposit.Status = StatusSettled
	return outcome, nil
}

// resolveCommission applies the inviter's CPA terms. The baseline and rate
// come from the depositor's inviter; the rewards land in the wallet named
// by the commission record.
func (s *PostgresStore) resolveCommission(ctx context.Context, tx pgx.Tx, h *AffiliateHistory, d Deposit, price decimal.Decimal, outcome *DepositOutcome) error {
	var baseline, cpa decimal.Decimal
	err := tx.QueryRow(ctx, `
		SELECT affiliate_baseline, affiliate_cpa FROM users
		WHERE id = (SELECT inviter FROM users WHERE id = $1)`,
		d.UserID,
	).Scan(&baseline, &cpa)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("select inviter terms: %w", err)
	}

	if h.DepositedAmount.GreaterThanOrEqual(baseline) || d.Amount.GreaterThanOrEqual(baseline) {
		tag, err := tx.Exec(ctx, `
			UPDATE wallets SET refer_rewards = refer_rewards + $1 WHERE user_id = $2`,
			cpa, h.Inviter,
		)
		if err != nil {
			return fmt.Errorf("credit inviter: %w", err)
		}
		if tag.RowsAffected() > 0 {
			_, err = tx.Exec(ctx, `
				UPDATE affiliate_histories SET status = $1, deposited = $2, commission_paid = $3
				WHERE id = $4`,
				StatusSettled, price, cpa, h.ID,
			)
			if err != nil {
				return fmt.Errorf("close commission: %w", err)
			}
			outcome.CommissionPaid = true
			outcome.InviterID = h.Inviter
			outcome.Commission = cpa
		}
		return nil
	}

	// Baseline not reached yet: record the latest deposit amount. The
	// column holds the last qualifying amount, not a running total.
	_, err = tx.Exec(ctx, `
		UPDATE affiliate_histories SET deposited_amount = $1 WHERE id = $2`,
		price, h.ID,
	)
	if err != nil {
		return fmt.Errorf("update commission progress: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id int64) (*User, error) {
	var u User
	err := s.db.QueryRow(ctx, `
		SELECT id, name, email, role_id, COALESCE(inviter, 0), affiliate_baseline, affiliate_cpa
		FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.RoleID, &u.Inviter, &u.AffiliateBaseline, &u.AffiliateCPA)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) ListFreeRoundTiers(ctx context.Context) ([]FreeRoundTier, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, threshold, game_code, spins FROM free_round_tiers
		ORDER BY threshold ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select tiers: %w", err)
	}
	defer rows.Close()

	var out []FreeRoundTier
	for rows.Next() {
		var t FreeRoundTier
		if err := rows.Scan(&t.ID, &t.Threshold, &t.GameCode, &t.Spins); err != nil {
			return nil, fmt.Errorf("scan tier: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func withdrawalTable(kind WithdrawKind) string {
	if kind == WithdrawAffiliate {
		return "affiliate_withdrawals"
	}
	return "withdrawals"
}

func (s *PostgresStore) FindWithdrawal(ctx context.Context, id int64, kind WithdrawKind) (*Withdrawal, error) {
	var w Withdrawal
	err := s.db.QueryRow(ctx, fmt.Sprintf(`
		SELECT id, user_id, amount, pix_key, pix_type, status
		FROM %s WHERE id = $1 AND status = $2`, withdrawalTable(kind)),
		id, StatusPending,
	).Scan(&w.ID, &w.UserID, &w.Amount, &w.PixKey, &w.PixType, &w.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrWithdrawalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select withdrawal: %w", err)
	}
	return &w, nil
}

func (s *PostgresStore) MarkWithdrawalPaid(ctx context.Context, id int64, kind WithdrawKind) error {
	tag, err := s.db.Exec(ctx, fmt.Sprintf(`
		UPDATE %s SET status = $1 WHERE id = $2`, withdrawalTable(kind)),
		StatusSettled, id,
	)
	if err != nil {
		return fmt.Errorf("mark withdrawal paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWithdrawalNotFound
	}
	return nil
}
