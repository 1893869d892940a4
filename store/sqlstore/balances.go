package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// LEAVE BALANCES (ledger rows)
// =============================================================================

type balanceRow struct {
	UserID            string          `db:"user_id"`
	LeaveTypeID       string          `db:"leave_type_id"`
	Year              int             `db:"year"`
	AllocatedDays     decimal.Decimal `db:"allocated_days"`
	UsedDays          decimal.Decimal `db:"used_days"`
	RateOfLeave       decimal.Decimal `db:"rate_of_leave"`
	LastCreditedMonth string          `db:"last_credited_month"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

func (r balanceRow) toBalance() leave.Balance {
	return leave.Balance{
		BalanceKey:        leave.BalanceKey{UserID: r.UserID, LeaveTypeID: r.LeaveTypeID, Year: r.Year},
		AllocatedDays:     r.AllocatedDays,
		UsedDays:          r.UsedDays,
		RateOfLeave:       r.RateOfLeave,
		LastCreditedMonth: r.LastCreditedMonth,
		UpdatedAt:         r.UpdatedAt,
	}
}

const balanceColumns = `user_id, leave_type_id, year, allocated_days, used_days,
	rate_of_leave, last_credited_month, updated_at`

// GetBalance returns (nil, nil) when the row does not exist.
func (c *conn) GetBalance(ctx context.Context, key leave.BalanceKey) (*leave.Balance, error) {
	var row balanceRow
	err := c.get(ctx, &row, c.forUpdate(`
		SELECT `+balanceColumns+` FROM leave_balances
		WHERE user_id = ? AND leave_type_id = ? AND year = ?`),
		key.UserID, key.LeaveTypeID, key.Year)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	b := row.toBalance()
	return &b, nil
}

func (c *conn) SaveBalance(ctx context.Context, b leave.Balance) error {
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = time.Now().UTC()
	}
	err := c.exec(ctx, `
		INSERT INTO leave_balances (`+balanceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, leave_type_id, year) DO UPDATE SET
			allocated_days = excluded.allocated_days,
			used_days = excluded.used_days,
			rate_of_leave = excluded.rate_of_leave,
			last_credited_month = excluded.last_credited_month,
			updated_at = excluded.updated_at`,
		b.UserID, b.LeaveTypeID, b.Year, b.AllocatedDays, b.UsedDays,
		b.RateOfLeave, b.LastCreditedMonth, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save balance: %w", err)
	}
	return nil
}

// CreateBalance inserts a fresh row unless one already exists. On PostgreSQL
// a concurrent insert of the same key blocks until the other transaction
// ends, after which the caller's locked re-read sees its row.
func (c *conn) CreateBalance(ctx context.Context, b leave.Balance) (bool, error) {
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = time.Now().UTC()
	}
	n, err := c.execRows(ctx, `
		INSERT INTO leave_balances (`+balanceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, leave_type_id, year) DO NOTHING`,
		b.UserID, b.LeaveTypeID, b.Year, b.AllocatedDays, b.UsedDays,
		b.RateOfLeave, b.LastCreditedMonth, b.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("create balance: %w", err)
	}
	return n > 0, nil
}

func (c *conn) ListBalances(ctx context.Context, f leave.BalanceFilter) ([]leave.Balance, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.LeaveTypeID != "" {
		where = append(where, "leave_type_id = ?")
		args = append(args, f.LeaveTypeID)
	}
	if f.Year != 0 {
		where = append(where, "year = ?")
		args = append(args, f.Year)
	}
	if f.MinYear != 0 {
		where = append(where, "year >= ?")
		args = append(args, f.MinYear)
	}

	query := `SELECT ` + balanceColumns + ` FROM leave_balances`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY user_id, year, leave_type_id"

	var rows []balanceRow
	if err := c.selectAll(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	out := make([]leave.Balance, len(rows))
	for i, r := range rows {
		out[i] = r.toBalance()
	}
	return out, nil
}
