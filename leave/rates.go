package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RateSync copies the employment-term accrual rate onto ledger rows. Rows of
// past years keep the rate they were accrued at.
type RateSync struct {
	Logger *zap.Logger
	Now    func() time.Time
}

// SyncUser rewrites rate_of_leave on the user's rows for the current and later
// years. Returns the number of rows updated.
func (r *RateSync) SyncUser(ctx context.Context, st Store, user User) (int, error) {
	rate, ok, err := st.GetTermRate(ctx, user.EmploymentTerm)
	if err != nil {
		return 0, fmt.Errorf("term rate %s: %w", user.EmploymentTerm, err)
	}
	if !ok {
		r.logger().Warn("no accrual rate for employment term, using 0",
			zap.String("user_id", user.ID),
			zap.String("term", string(user.EmploymentTerm)))
		rate = decimal.Zero
	}

	rows, err := st.ListBalances(ctx, BalanceFilter{UserID: user.ID, MinYear: r.now().Year()})
	if err != nil {
		return 0, fmt.Errorf("list balances for %s: %w", user.ID, err)
	}
	n := 0
	for _, listed := range rows {
		if listed.RateOfLeave.Equal(rate) {
			continue
		}
		// The list is unlocked; rewrite from the locked row.
		b, err := st.GetBalance(ctx, listed.BalanceKey)
		if err != nil {
			return n, fmt.Errorf("get balance: %w", err)
		}
		if b == nil || b.RateOfLeave.Equal(rate) {
			continue
		}
		b.RateOfLeave = rate
		b.UpdatedAt = r.now()
		if err := st.SaveBalance(ctx, *b); err != nil {
			return n, fmt.Errorf("save balance: %w", err)
		}
		n++
	}
	return n, nil
}

// SyncTerm resyncs every user on term.
func (r *RateSync) SyncTerm(ctx context.Context, st Store, term EmploymentTerm) (int, error) {
	users, err := st.ListUsersByTerm(ctx, term)
	if err != nil {
		return 0, fmt.Errorf("list users on %s: %w", term, err)
	}
	total := 0
	for _, u := range users {
		n, err := r.SyncUser(ctx, st, u)
		total += n
		if err != nil {
			return total, err
		}
	}
	r.logger().Info("accrual rate synced",
		zap.String("term", string(term)),
		zap.Int("users", len(users)),
		zap.Int("rows", total))
	return total, nil
}

func (r *RateSync) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

func (r *RateSync) now() time.Time {
	if r.Now == nil {
		return time.Now().UTC()
	}
	return r.Now().UTC()
}

// DefaultTermRates seeds an empty rate table. Operators override them
// through SetTermRate.
func DefaultTermRates() map[EmploymentTerm]decimal.Decimal {
	return map[EmploymentTerm]decimal.Decimal{
		TermFullTime:            decimal.RequireFromString("1.5"),
		TermAssociate:           decimal.RequireFromString("1.5"),
		TermPartTime:            decimal.NewFromInt(1),
		TermContract:            decimal.NewFromInt(1),
		TermProbationInternship: decimal.NewFromInt(1),
	}
}
