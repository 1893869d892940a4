/*
ledger.go - Balance ledger mutations

PURPOSE:
  Every change to used_days or allocated_days goes through Ledger. Each call
  is one locked read-modify-write of a single row plus one journal entry, run
  on the transactional Store the caller is already inside.

MISSING ROWS:
  A deduction or restoration against a row that does not exist yet creates
  it (allocated 0, rate from the user's employment term) and emits a
  WarnBalanceRowCreated warning. The status change is never blocked.

  Creation is insert-if-absent followed by a second locked read, so two
  transactions racing to create the same row both end up applying their
  delta to the one stored row.

NEGATIVE BALANCES:
  used_days may exceed allocated_days. The charge is applied as-is and a
  WarnOverdrawn warning is emitted; a later monthly credit catches up.
*/
package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/generic"
	"go.uber.org/zap"
)

type Ledger struct {
	Logger *zap.Logger
	Now    func() time.Time
}

func NewLedger(logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{Logger: logger, Now: time.Now}
}

// Entry describes the journal side of a mutation. The ledger fills in user,
// type, year and delta.
type Entry struct {
	Type           generic.TransactionType
	ReferenceID    string
	Reason         string
	IdempotencyKey string
	Actor          string
}

// Ensure returns the row for key, creating it if absent.
func (l *Ledger) Ensure(ctx context.Context, st Store, key BalanceKey, out *generic.Outcome) (*Balance, error) {
	b, err := st.GetBalance(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get balance %s/%s/%d: %w", key.UserID, key.LeaveTypeID, key.Year, err)
	}
	if b != nil {
		return b, nil
	}

	rate := l.rateFor(ctx, st, key.UserID, out)
	created, err := st.CreateBalance(ctx, Balance{
		BalanceKey:    key,
		AllocatedDays: decimal.Zero,
		UsedDays:      decimal.Zero,
		RateOfLeave:   rate,
		UpdatedAt:     l.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("create balance row: %w", err)
	}
	b, err = st.GetBalance(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get balance %s/%s/%d: %w", key.UserID, key.LeaveTypeID, key.Year, err)
	}
	if b == nil {
		return nil, fmt.Errorf("balance row %s/%s/%d missing after create", key.UserID, key.LeaveTypeID, key.Year)
	}
	if !created {
		return b, nil
	}
	if out != nil {
		out.Warn(generic.WarnBalanceRowCreated, "created balance row for user %s type %s year %d",
			key.UserID, key.LeaveTypeID, key.Year)
	}
	l.Logger.Warn("balance row created on demand",
		zap.String("user_id", key.UserID),
		zap.String("leave_type_id", key.LeaveTypeID),
		zap.Int("year", key.Year))
	return b, nil
}

// ApplyUsed adds delta to used_days. Positive deltas are charges, negative
// ones restorations. A zero delta is a no-op.
func (l *Ledger) ApplyUsed(ctx context.Context, st Store, key BalanceKey, delta decimal.Decimal, e Entry, out *generic.Outcome) (*Balance, error) {
	if delta.IsZero() {
		return nil, nil
	}
	b, err := l.Ensure(ctx, st, key, out)
	if err != nil {
		return nil, err
	}
	b.UsedDays = b.UsedDays.Add(delta)
	b.UpdatedAt = l.now()
	if err := l.write(ctx, st, b, delta, e); err != nil {
		return nil, err
	}
	if delta.IsPositive() && b.Remaining().IsNegative() && out != nil {
		out.Warn(generic.WarnOverdrawn, "user %s type %s year %d overdrawn: remaining %s",
			key.UserID, key.LeaveTypeID, key.Year, b.Remaining())
	}
	return b, nil
}

// ApplyAllocated adds delta to allocated_days.
func (l *Ledger) ApplyAllocated(ctx context.Context, st Store, key BalanceKey, delta decimal.Decimal, e Entry, out *generic.Outcome) (*Balance, error) {
	b, err := l.Ensure(ctx, st, key, out)
	if err != nil {
		return nil, err
	}
	if delta.IsZero() {
		return b, nil
	}
	b.AllocatedDays = b.AllocatedDays.Add(delta)
	b.UpdatedAt = l.now()
	if err := l.write(ctx, st, b, delta, e); err != nil {
		return nil, err
	}
	return b, nil
}

// Credit adds a monthly credit and stamps the month. It is keyed so the same
// month is never credited twice for one row.
func (l *Ledger) Credit(ctx context.Context, st Store, b *Balance, month string, e Entry) error {
	b.AllocatedDays = b.AllocatedDays.Add(b.RateOfLeave)
	b.LastCreditedMonth = month
	b.UpdatedAt = l.now()
	return l.write(ctx, st, b, b.RateOfLeave, e)
}

func (l *Ledger) write(ctx context.Context, st Store, b *Balance, delta decimal.Decimal, e Entry) error {
	if err := st.SaveBalance(ctx, *b); err != nil {
		return fmt.Errorf("save balance: %w", err)
	}
	journal := generic.Journal{Store: st, Now: l.Now}
	err := journal.Append(ctx, generic.Transaction{
		UserID:         b.UserID,
		LeaveTypeID:    b.LeaveTypeID,
		Year:           b.Year,
		Type:           e.Type,
		Delta:          delta,
		ReferenceID:    e.ReferenceID,
		Reason:         e.Reason,
		IdempotencyKey: e.IdempotencyKey,
		CreatedBy:      e.Actor,
	})
	if err != nil {
		return fmt.Errorf("journal %s: %w", e.Type, err)
	}
	return nil
}

func (l *Ledger) rateFor(ctx context.Context, st Store, userID string, out *generic.Outcome) decimal.Decimal {
	user, err := st.GetUser(ctx, userID)
	if err != nil {
		l.Logger.Warn("rate lookup: user unavailable", zap.String("user_id", userID), zap.Error(err))
		return decimal.Zero
	}
	rate, ok, err := st.GetTermRate(ctx, user.EmploymentTerm)
	if err != nil || !ok {
		if out != nil {
			out.Warn(generic.WarnMissingTermRate, "no accrual rate for employment term %q", user.EmploymentTerm)
		}
		return decimal.Zero
	}
	return rate
}

func (l *Ledger) now() time.Time {
	if l.Now == nil {
		return time.Now().UTC()
	}
	return l.Now().UTC()
}
