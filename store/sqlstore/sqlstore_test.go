package sqlstore_test

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
	"github.com/warp/leave-engine/store/sqlstore"
	"go.uber.org/zap"
)

func newStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	store, err := sqlstore.Open(sqlstore.SQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	for _, lt := range leave.DefaultLeaveTypes() {
		require.NoError(t, store.SaveLeaveType(ctx, lt))
	}
	require.NoError(t, store.SaveUser(ctx, leave.User{
		ID:             "u-1",
		Name:           "Asha",
		Email:          "asha@example.com",
		BirthDate:      generic.MustParseDate("1991-03-10"),
		EmploymentTerm: leave.TermFullTime,
		Status:         leave.UserActive,
		CompOffBalance: decimal.RequireFromString("1.5"),
	}))
	return store
}

func days(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestParseDialect(t *testing.T) {
	for in, want := range map[string]sqlstore.Dialect{
		"":           sqlstore.SQLite,
		"sqlite":     sqlstore.SQLite,
		"Postgres":   sqlstore.Postgres,
		"postgresql": sqlstore.Postgres,
		"pgx":        sqlstore.Postgres,
	} {
		got, err := sqlstore.ParseDialect(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := sqlstore.ParseDialect("mysql")
	assert.Error(t, err)
}

// =============================================================================
// USERS, LEAVE TYPES, RATES
// =============================================================================

func TestUsers_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	u, err := store.GetUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "Asha", u.Name)
	assert.Equal(t, "asha@example.com", u.Email)
	assert.Equal(t, "1991-03-10", u.BirthDate.String())
	assert.True(t, u.CompOffBalance.Equal(days("1.5")))
	assert.False(t, u.CreatedAt.IsZero())

	// Upsert keeps the row and updates the mutable columns.
	u.Status = leave.UserInactive
	u.EmploymentTerm = leave.TermContract
	require.NoError(t, store.SaveUser(ctx, *u))
	require.NoError(t, store.SaveUser(ctx, leave.User{ID: "u-2", Name: "Ben", EmploymentTerm: leave.TermContract, Status: leave.UserActive}))

	active, err := store.ListActiveUsers(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "u-2", active[0].ID)
	assert.True(t, active[0].BirthDate.IsZero())

	contract, err := store.ListUsersByTerm(ctx, leave.TermContract)
	require.NoError(t, err)
	assert.Len(t, contract, 2)

	_, err = store.GetUser(ctx, "ghost")
	assert.True(t, generic.IsNotFound(err))
}

func TestLeaveTypes_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	types, err := store.ListLeaveTypes(ctx)
	require.NoError(t, err)
	assert.Len(t, types, len(leave.DefaultLeaveTypes()))

	reg, err := leave.NewRegistry(types)
	require.NoError(t, err)
	assert.Equal(t, "annual", reg.Default().ID)

	// A second default bucket violates the partial unique index.
	err = store.SaveLeaveType(ctx, leave.LeaveType{ID: "total", Name: "Total Leave", Category: leave.CategoryDefault})
	assert.Error(t, err)
}

func TestTermRates(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	_, ok, err := store.GetTermRate(ctx, leave.TermFullTime)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SaveTermRate(ctx, leave.TermFullTime, days("1.5")))
	require.NoError(t, store.SaveTermRate(ctx, leave.TermFullTime, days("1.75")))
	require.NoError(t, store.SaveTermRate(ctx, leave.TermPartTime, days("1")))

	rate, ok, err := store.GetTermRate(ctx, leave.TermFullTime)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, rate.Equal(days("1.75")))

	all, err := store.ListTermRates(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// =============================================================================
// LEDGER ROWS AND JOURNAL
// =============================================================================

func TestBalances_Upsert(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	key := leave.BalanceKey{UserID: "u-1", LeaveTypeID: "annual", Year: 2026}

	b, err := store.GetBalance(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, b)

	require.NoError(t, store.SaveBalance(ctx, leave.Balance{BalanceKey: key, AllocatedDays: days("12"), RateOfLeave: days("1.5")}))
	require.NoError(t, store.SaveBalance(ctx, leave.Balance{
		BalanceKey:        key,
		AllocatedDays:     days("13.5"),
		UsedDays:          days("2.5"),
		RateOfLeave:       days("1.5"),
		LastCreditedMonth: "2026-03",
	}))
	require.NoError(t, store.SaveBalance(ctx, leave.Balance{
		BalanceKey: leave.BalanceKey{UserID: "u-1", LeaveTypeID: "sick", Year: 2025},
	}))

	b, err = store.GetBalance(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.True(t, b.AllocatedDays.Equal(days("13.5")))
	assert.True(t, b.Remaining().Equal(days("11")))
	assert.Equal(t, "2026-03", b.LastCreditedMonth)

	rows, err := store.ListBalances(ctx, leave.BalanceFilter{UserID: "u-1", MinYear: 2026})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, err = store.ListBalances(ctx, leave.BalanceFilter{})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestBalances_CreateNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	key := leave.BalanceKey{UserID: "u-1", LeaveTypeID: "annual", Year: 2026}

	created, err := store.CreateBalance(ctx, leave.Balance{BalanceKey: key, UsedDays: days("2")})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.CreateBalance(ctx, leave.Balance{BalanceKey: key})
	require.NoError(t, err)
	assert.False(t, created)

	b, err := store.GetBalance(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.True(t, b.UsedDays.Equal(days("2")), "existing row kept")
}

func TestJournal_IdempotencyAndFilter(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	grant := generic.Transaction{
		ID: "tx-1", UserID: "u-1", LeaveTypeID: "annual", Year: 2026,
		Type: generic.TxGrant, Delta: days("1.5"), IdempotencyKey: "monthly-credit:u-1:annual:2026-03",
		CreatedBy: generic.ActorSystem, CreatedAt: at,
	}
	require.NoError(t, store.AppendTransaction(ctx, grant))

	dup := grant
	dup.ID = "tx-2"
	err := store.AppendTransaction(ctx, dup)
	assert.True(t, errors.Is(err, generic.ErrDuplicateIdempotencyKey))

	// Entries without a key never collide.
	for _, id := range []generic.TransactionID{"tx-3", "tx-4"} {
		require.NoError(t, store.AppendTransaction(ctx, generic.Transaction{
			ID: id, UserID: "u-1", LeaveTypeID: "annual", Year: 2026, Type: generic.TxConsumption,
			Delta: days("1"), ReferenceID: "app-1", CreatedBy: "hr-1", CreatedAt: at.Add(time.Hour),
		}))
	}

	exists, err := store.TransactionExists(ctx, grant.IdempotencyKey)
	require.NoError(t, err)
	assert.True(t, exists)

	txs, err := store.ListTransactions(ctx, generic.TransactionFilter{
		UserID: "u-1",
		Types:  []generic.TransactionType{generic.TxGrant, generic.TxReversal},
	})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, grant.IdempotencyKey, txs[0].IdempotencyKey)
	assert.True(t, txs[0].Delta.Equal(days("1.5")))

	txs, err = store.ListTransactions(ctx, generic.TransactionFilter{ReferenceID: "app-1"})
	require.NoError(t, err)
	assert.Len(t, txs, 2)
	assert.Empty(t, txs[0].IdempotencyKey)
}

func TestWithTx_RollsBack(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	key := leave.BalanceKey{UserID: "u-1", LeaveTypeID: "annual", Year: 2026}

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(st leave.Store) error {
		if err := st.SaveBalance(ctx, leave.Balance{BalanceKey: key, UsedDays: days("2")}); err != nil {
			return err
		}
		if err := st.AppendTransaction(ctx, generic.Transaction{
			ID: "tx-1", UserID: "u-1", Type: generic.TxConsumption, Delta: days("2"),
			IdempotencyKey: "k-1", CreatedBy: "hr-1", CreatedAt: time.Now(),
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	b, err := store.GetBalance(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, b)

	exists, err := store.TransactionExists(ctx, "k-1")
	require.NoError(t, err)
	assert.False(t, exists)
}

// =============================================================================
// APPLICATIONS
// =============================================================================

func TestApplications_RoundTripAndFilter(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	applied := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	decided := applied.Add(time.Hour)

	fri := leave.Application{
		ID: "app-fri", UserID: "u-1", LeaveTypeID: "annual",
		StartDate: generic.MustParseDate("2026-03-06"), EndDate: generic.MustParseDate("2026-03-06"),
		DaysCount: days("1"), Status: leave.StatusApproved,
		SandwichDeductedDays: decimal.NewNullDecimal(days("2")),
		SandwichReason:       "lone Friday",
		IsSandwichLeave:      true,
		PricingRule:          leave.RuleLoneBridge,
		DecidedBy:            "hr-1",
		DecidedAt:            &decided,
		AppliedAt:            applied,
		UpdatedAt:            decided,
	}
	half := leave.Application{
		ID: "app-half", UserID: "u-1", LeaveTypeID: "sick",
		StartDate: generic.MustParseDate("2026-03-17"), EndDate: generic.MustParseDate("2026-03-17"),
		DaysCount: days("0.5"), IsHalfDay: true, HalfDayPeriod: leave.FirstHalf,
		Status: leave.StatusPending, AppliedAt: applied, UpdatedAt: applied,
	}
	require.NoError(t, store.SaveApplication(ctx, fri))
	require.NoError(t, store.SaveApplication(ctx, half))

	got, err := store.GetApplication(ctx, "app-fri")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-06", got.StartDate.String())
	require.True(t, got.SandwichDeductedDays.Valid)
	assert.True(t, got.SandwichDeductedDays.Decimal.Equal(days("2")))
	assert.True(t, got.IsSandwichLeave)
	assert.Equal(t, leave.RuleLoneBridge, got.PricingRule)
	assert.True(t, got.PricedAsLoneBridge())
	require.NotNil(t, got.DecidedAt)
	assert.True(t, got.DecidedAt.Equal(decided))

	got, err = store.GetApplication(ctx, "app-half")
	require.NoError(t, err)
	assert.Equal(t, leave.FirstHalf, got.HalfDayPeriod)
	assert.False(t, got.SandwichDeductedDays.Valid)

	// Status transition clears the cache.
	fri.Status = leave.StatusWithdrawn
	fri.SandwichDeductedDays = decimal.NullDecimal{}
	require.NoError(t, store.SaveApplication(ctx, fri))

	apps, err := store.ListApplications(ctx, leave.ApplicationFilter{
		UserID:   "u-1",
		Statuses: []leave.Status{leave.StatusPending, leave.StatusApproved},
	})
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "app-half", apps[0].ID)

	apps, err = store.ListApplications(ctx, leave.ApplicationFilter{
		From: generic.MustParseDate("2026-03-01"),
		To:   generic.MustParseDate("2026-03-10"),
	})
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "app-fri", apps[0].ID)
	assert.False(t, apps[0].SandwichDeductedDays.Valid)

	_, err = store.GetApplication(ctx, "missing")
	assert.True(t, generic.IsNotFound(err))
}

// =============================================================================
// SETTINGS, RUNS, OUTBOX
// =============================================================================

func TestSettingsAndRuns(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	s, err := store.GetSettings(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)

	next := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveSettings(ctx, accrual.Settings{
		IsActive:     true,
		CronSchedule: accrual.DefaultCronSchedule,
		NextRunAt:    &next,
		UpdatedBy:    "seed",
	}))
	require.NoError(t, store.SaveSettings(ctx, accrual.Settings{
		IsActive:     false,
		CronSchedule: "0 6 * * 1",
		EndDate:      generic.MustParseDate("2026-12-31"),
		NextRunAt:    &next,
		UpdatedBy:    "hr-1",
	}))

	s, err = store.GetSettings(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.False(t, s.IsActive)
	assert.Equal(t, "0 6 * * 1", s.CronSchedule)
	assert.Equal(t, "2026-12-31", s.EndDate.String())
	assert.Nil(t, s.LastRunAt)
	require.NotNil(t, s.NextRunAt)
	assert.True(t, s.NextRunAt.Equal(next))

	started := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveRun(ctx, accrual.Run{ID: "r-1", Trigger: accrual.TriggerScheduled, Month: "2026-03", Status: accrual.RunRunning, StartedAt: started}))
	done := started.Add(time.Second)
	require.NoError(t, store.SaveRun(ctx, accrual.Run{ID: "r-1", Trigger: accrual.TriggerScheduled, Month: "2026-03", Status: accrual.RunCompleted, Credited: 3, StartedAt: started, CompletedAt: &done}))
	require.NoError(t, store.SaveRun(ctx, accrual.Run{ID: "r-2", Trigger: accrual.TriggerManual, Month: "2026-04", Status: accrual.RunRunning, StartedAt: started.AddDate(0, 1, 0)}))

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r-2", runs[0].ID)
	assert.Nil(t, runs[0].CompletedAt)
	assert.Equal(t, accrual.RunCompleted, runs[1].Status)
	assert.Equal(t, 3, runs[1].Credited)
	require.NotNil(t, runs[1].CompletedAt)
}

func TestOutbox(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	d := notify.NewDispatcher(store, zap.NewNop())

	d.EnqueueEmail(ctx, notify.EmailJob{
		ReferenceID: "app-1",
		EmailType:   notify.EmailLeaveSubmitted,
		Data:        map[string]any{"days": "2", "leave_type": "Annual Leave"},
		Recipients:  []notify.Recipient{{Email: "asha@example.com", Name: "Asha", Type: "to"}},
	})
	d.Notify(ctx, notify.Notification{UserID: "u-1", Title: "Submitted", Message: "pending", Type: notify.EmailLeaveSubmitted, Data: map[string]any{"application_id": "app-1"}})
	d.Notify(ctx, notify.Notification{UserID: "u-1", Title: "Plain", Message: "no data", Type: "info"})

	jobs, err := store.ListPendingEmails(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "app-1", jobs[0].ReferenceID)
	assert.Equal(t, notify.ModuleLeave, jobs[0].ModuleType)
	assert.Equal(t, "Annual Leave", jobs[0].Data["leave_type"])
	require.Len(t, jobs[0].Recipients, 1)
	assert.Equal(t, "asha@example.com", jobs[0].Recipients[0].Email)

	ns, err := store.ListNotifications(ctx, "u-1", 10)
	require.NoError(t, err)
	require.Len(t, ns, 2)
	titles := []string{ns[0].Title, ns[1].Title}
	assert.ElementsMatch(t, []string{"Submitted", "Plain"}, titles)
	for _, n := range ns {
		if n.Title == "Submitted" {
			assert.Equal(t, "app-1", n.Data["application_id"])
		} else {
			assert.Nil(t, n.Data)
		}
	}
}

// =============================================================================
// END TO END
// =============================================================================

func TestServiceFlow_SQLite(t *testing.T) {
	// GIVEN: the engine wired on SQLite with a lone Friday leave
	ctx := context.Background()
	store := newStore(t)
	types, err := store.ListLeaveTypes(ctx)
	require.NoError(t, err)
	reg, err := leave.NewRegistry(types)
	require.NoError(t, err)
	require.NoError(t, store.SaveTermRate(ctx, leave.TermFullTime, days("1.5")))

	svc := leave.NewService(store, reg, notify.NewDispatcher(store, zap.NewNop()), zap.NewNop())
	svc.Now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }

	fri := generic.MustParseDate("2026-03-06")
	sub, err := svc.Submit(ctx, leave.SubmitInput{UserID: "u-1", LeaveTypeID: "annual", StartDate: fri, EndDate: fri})
	require.NoError(t, err)

	// WHEN: approved and then withdrawn
	approved, err := svc.Approve(ctx, sub.Application.ID, "hr-1")
	require.NoError(t, err)
	withdrawn, err := svc.Withdraw(ctx, sub.Application.ID, "u-1", "plans changed")
	require.NoError(t, err)

	// THEN: the sandwich charge is booked and fully restored
	assert.True(t, approved.Outcome.Deducted.Equal(days("2")))
	assert.True(t, withdrawn.Outcome.Restored.Equal(days("2")))

	b, err := store.GetBalance(ctx, leave.BalanceKey{UserID: "u-1", LeaveTypeID: "annual", Year: 2026})
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.True(t, b.UsedDays.IsZero())
	assert.True(t, b.RateOfLeave.Equal(days("1.5")))

	txs, err := store.ListTransactions(ctx, generic.TransactionFilter{ReferenceID: sub.Application.ID})
	require.NoError(t, err)
	require.Len(t, txs, 2)
	sum := decimal.Zero
	for _, tx := range txs {
		sum = sum.Add(tx.Delta)
	}
	assert.True(t, sum.IsZero())

	app, err := store.GetApplication(ctx, sub.Application.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusWithdrawn, app.Status)
	assert.False(t, app.SandwichDeductedDays.Valid)

	jobs, err := store.ListPendingEmails(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, jobs, 3, "submitted, approved, withdrawn")
}
