package leave_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/memory"
	"go.uber.org/zap"
)

// lateRowView hides the row from the first read, the way a concurrent
// transaction's insert is invisible until it commits.
type lateRowView struct {
	leave.Store
	missed bool
}

func (v *lateRowView) GetBalance(ctx context.Context, key leave.BalanceKey) (*leave.Balance, error) {
	if !v.missed {
		v.missed = true
		return nil, nil
	}
	return v.Store.GetBalance(ctx, key)
}

var ledgerKey = leave.BalanceKey{UserID: "u-1", LeaveTypeID: "annual", Year: 2026}

func TestLedger_EnsureCreatesMissingRow(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	ledger := leave.NewLedger(zap.NewNop())

	var out generic.Outcome
	err := store.WithTx(ctx, func(st leave.Store) error {
		_, err := ledger.ApplyUsed(ctx, st, ledgerKey, days("2"), leave.Entry{Type: generic.TxConsumption}, &out)
		return err
	})

	require.NoError(t, err)
	b, err := store.GetBalance(ctx, ledgerKey)
	require.NoError(t, err)
	assertDays(t, "2", b.UsedDays)
	assert.True(t, out.HasWarning(generic.WarnBalanceRowCreated))
}

func TestLedger_ConcurrentFirstWritesBothApply(t *testing.T) {
	// GIVEN: another transaction already created the row and charged 2 days,
	// after this one's first read missed it
	ctx := context.Background()
	store := memory.New()
	ledger := leave.NewLedger(zap.NewNop())
	require.NoError(t, store.SaveBalance(ctx, leave.Balance{BalanceKey: ledgerKey, UsedDays: days("2")}))

	// WHEN: this transaction charges 1 day against the row it did not see
	var out generic.Outcome
	err := store.WithTx(ctx, func(st leave.Store) error {
		_, err := ledger.ApplyUsed(ctx, &lateRowView{Store: st}, ledgerKey, days("1"), leave.Entry{Type: generic.TxConsumption}, &out)
		return err
	})

	// THEN: both charges survive and no row was reported as created
	require.NoError(t, err)
	b, err := store.GetBalance(ctx, ledgerKey)
	require.NoError(t, err)
	assertDays(t, "3", b.UsedDays)
	assert.False(t, out.HasWarning(generic.WarnBalanceRowCreated))
}
