package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// BALANCE TRANSACTIONS (generic.JournalStore)
// =============================================================================

type transactionRow struct {
	ID             string          `db:"id"`
	UserID         string          `db:"user_id"`
	LeaveTypeID    string          `db:"leave_type_id"`
	Year           int             `db:"year"`
	Type           string          `db:"tx_type"`
	Delta          decimal.Decimal `db:"delta"`
	ReferenceID    string          `db:"reference_id"`
	Reason         string          `db:"reason"`
	IdempotencyKey sql.NullString  `db:"idempotency_key"`
	CreatedBy      string          `db:"created_by"`
	CreatedAt      time.Time       `db:"created_at"`
}

const transactionColumns = `id, user_id, leave_type_id, year, tx_type, delta,
	reference_id, reason, idempotency_key, created_by, created_at`

// AppendTransaction inserts a journal entry. Append-only: there is no update.
func (c *conn) AppendTransaction(ctx context.Context, tx generic.Transaction) error {
	err := c.exec(ctx, `
		INSERT INTO balance_transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(tx.ID), tx.UserID, tx.LeaveTypeID, tx.Year, string(tx.Type), tx.Delta,
		tx.ReferenceID, tx.Reason, nullString(tx.IdempotencyKey), tx.CreatedBy, tx.CreatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

func (c *conn) TransactionExists(ctx context.Context, idempotencyKey string) (bool, error) {
	var count int
	err := c.get(ctx, &count, `SELECT COUNT(*) FROM balance_transactions WHERE idempotency_key = ?`, idempotencyKey)
	if err != nil {
		return false, fmt.Errorf("check idempotency key: %w", err)
	}
	return count > 0, nil
}

func (c *conn) ListTransactions(ctx context.Context, f generic.TransactionFilter) ([]generic.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.ReferenceID != "" {
		where = append(where, "reference_id = ?")
		args = append(args, f.ReferenceID)
	}
	if f.Year != 0 {
		where = append(where, "year = ?")
		args = append(args, f.Year)
	}
	if len(f.Types) > 0 {
		types := make([]string, len(f.Types))
		for i, t := range f.Types {
			types[i] = string(t)
		}
		where = append(where, "tx_type IN (?)")
		args = append(args, types)
	}

	query := `SELECT ` + transactionColumns + ` FROM balance_transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("build transaction query: %w", err)
	}

	var rows []transactionRow
	if err := c.selectAll(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	out := make([]generic.Transaction, len(rows))
	for i, r := range rows {
		out[i] = generic.Transaction{
			ID:             generic.TransactionID(r.ID),
			UserID:         r.UserID,
			LeaveTypeID:    r.LeaveTypeID,
			Year:           r.Year,
			Type:           generic.TransactionType(r.Type),
			Delta:          r.Delta,
			ReferenceID:    r.ReferenceID,
			Reason:         r.Reason,
			IdempotencyKey: r.IdempotencyKey.String,
			CreatedBy:      r.CreatedBy,
			CreatedAt:      r.CreatedAt,
		}
	}
	return out, nil
}
