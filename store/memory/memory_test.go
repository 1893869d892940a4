package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/accrual"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/notify"
	"github.com/warp/leave-engine/store/memory"
)

var key = leave.BalanceKey{UserID: "u-1", LeaveTypeID: "annual", Year: 2026}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	err := store.WithTx(ctx, func(st leave.Store) error {
		if err := st.SaveBalance(ctx, leave.Balance{BalanceKey: key, AllocatedDays: decimal.NewFromInt(5)}); err != nil {
			return err
		}
		return st.AppendTransaction(ctx, generic.Transaction{ID: "tx-1", UserID: "u-1", IdempotencyKey: "k-1"})
	})
	require.NoError(t, err)

	b, err := store.GetBalance(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.True(t, b.AllocatedDays.Equal(decimal.NewFromInt(5)))

	exists, err := store.TransactionExists(ctx, "k-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: a committed row
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.SaveBalance(ctx, leave.Balance{BalanceKey: key, AllocatedDays: decimal.NewFromInt(5)}))

	// WHEN: a transaction writes and then fails
	boom := errors.New("boom")
	err := store.WithTx(ctx, func(st leave.Store) error {
		b, err := st.GetBalance(ctx, key)
		if err != nil {
			return err
		}
		b.UsedDays = decimal.NewFromInt(3)
		if err := st.SaveBalance(ctx, *b); err != nil {
			return err
		}
		if err := st.AppendTransaction(ctx, generic.Transaction{ID: "tx-1", IdempotencyKey: "k-1"}); err != nil {
			return err
		}
		return boom
	})

	// THEN: none of its writes are visible
	assert.ErrorIs(t, err, boom)
	b, err := store.GetBalance(ctx, key)
	require.NoError(t, err)
	assert.True(t, b.UsedDays.IsZero())

	exists, err := store.TransactionExists(ctx, "k-1")
	require.NoError(t, err)
	assert.False(t, exists, "idempotency key released with the rollback")
}

func TestCreateBalance_InsertsOnlyWhenAbsent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	created, err := store.CreateBalance(ctx, leave.Balance{BalanceKey: key, UsedDays: decimal.NewFromInt(2)})
	require.NoError(t, err)
	assert.True(t, created)

	err = store.WithTx(ctx, func(st leave.Store) error {
		created, err = st.CreateBalance(ctx, leave.Balance{BalanceKey: key})
		return err
	})
	require.NoError(t, err)
	assert.False(t, created)

	b, err := store.GetBalance(ctx, key)
	require.NoError(t, err)
	assert.True(t, b.UsedDays.Equal(decimal.NewFromInt(2)))
}

func TestAppendTransaction_DuplicateKey(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	require.NoError(t, store.AppendTransaction(ctx, generic.Transaction{ID: "tx-1", IdempotencyKey: "k-1"}))
	err := store.AppendTransaction(ctx, generic.Transaction{ID: "tx-2", IdempotencyKey: "k-1"})
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	// Unkeyed entries never collide.
	require.NoError(t, store.AppendTransaction(ctx, generic.Transaction{ID: "tx-3"}))
	require.NoError(t, store.AppendTransaction(ctx, generic.Transaction{ID: "tx-4"}))

	txs, err := store.ListTransactions(ctx, generic.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, txs, 3)
}

func TestGetters_Missing(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	_, err := store.GetUser(ctx, "nobody")
	assert.True(t, generic.IsNotFound(err))

	_, err = store.GetApplication(ctx, "nothing")
	assert.True(t, generic.IsNotFound(err))

	b, err := store.GetBalance(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, b)

	_, ok, err := store.GetTermRate(ctx, leave.TermFullTime)
	require.NoError(t, err)
	assert.False(t, ok)

	s, err := store.GetSettings(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestListUsers_Filters(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.SaveUser(ctx, leave.User{ID: "b", EmploymentTerm: leave.TermFullTime, Status: leave.UserActive}))
	require.NoError(t, store.SaveUser(ctx, leave.User{ID: "a", EmploymentTerm: leave.TermPartTime, Status: leave.UserActive}))
	require.NoError(t, store.SaveUser(ctx, leave.User{ID: "c", EmploymentTerm: leave.TermFullTime, Status: leave.UserInactive}))

	all, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "a", all[0].ID)

	active, err := store.ListActiveUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	fullTime, err := store.ListUsersByTerm(ctx, leave.TermFullTime)
	require.NoError(t, err)
	assert.Len(t, fullTime, 2)
}

func TestListApplications_Filter(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	save := func(id, user string, status leave.Status) {
		require.NoError(t, store.SaveApplication(ctx, leave.Application{
			ID: id, UserID: user, LeaveTypeID: "annual", Status: status,
			StartDate: generic.MustParseDate("2026-03-03"), EndDate: generic.MustParseDate("2026-03-03"),
		}))
	}
	save("a-1", "u-1", leave.StatusPending)
	save("a-2", "u-1", leave.StatusApproved)
	save("a-3", "u-2", leave.StatusApproved)

	apps, err := store.ListApplications(ctx, leave.ApplicationFilter{
		UserID:   "u-1",
		Statuses: []leave.Status{leave.StatusApproved, leave.StatusRejected},
	})
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "a-2", apps[0].ID)
}

func TestRunsAndOutbox(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	started := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveRun(ctx, accrual.Run{ID: "r-1", Status: accrual.RunRunning, StartedAt: started}))
	require.NoError(t, store.SaveRun(ctx, accrual.Run{ID: "r-2", Status: accrual.RunRunning, StartedAt: started.AddDate(0, 1, 0)}))
	require.NoError(t, store.SaveRun(ctx, accrual.Run{ID: "r-1", Status: accrual.RunCompleted, Credited: 4, StartedAt: started}))

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r-2", runs[0].ID, "most recent first")
	assert.Equal(t, accrual.RunCompleted, runs[1].Status, "saving an existing id updates in place")

	require.NoError(t, store.EnqueueEmail(ctx, notify.EmailJob{ID: "e-1", Status: notify.StatusPending}))
	require.NoError(t, store.EnqueueEmail(ctx, notify.EmailJob{ID: "e-2", Status: notify.StatusSent}))
	pending, err := store.ListPendingEmails(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "e-1", pending[0].ID)

	require.NoError(t, store.CreateNotification(ctx, notify.Notification{ID: "n-1", UserID: "u-1"}))
	require.NoError(t, store.CreateNotification(ctx, notify.Notification{ID: "n-2", UserID: "u-2"}))
	require.NoError(t, store.CreateNotification(ctx, notify.Notification{ID: "n-3", UserID: "u-1"}))
	ns, err := store.ListNotifications(ctx, "u-1", 10)
	require.NoError(t, err)
	require.Len(t, ns, 2)
	assert.Equal(t, "n-3", ns[0].ID)
}
