package accrual_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/accrual"
	"github.com/warp/leave-engine/generic"
	"go.uber.org/zap"
)

func TestNextRun(t *testing.T) {
	after := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC) // a Sunday

	cases := []struct {
		expr string
		want time.Time
	}{
		{accrual.DefaultCronSchedule, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)},
		{"*/15 * * * *", time.Date(2026, 3, 15, 10, 15, 0, 0, time.UTC)},
		{"0 9 * * 1-5", time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC)},
		{"0 0 1,15 * *", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)},
		{"0 0 31 12 *", time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			got, err := accrual.NextRun(tc.expr, after)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, accrual.ValidateSchedule("0 0 1 * *"))

	for _, expr := range []string{"", "every month", "0 0 1 * * *", "0 25 * * *"} {
		err := accrual.ValidateSchedule(expr)
		assert.True(t, generic.IsClientError(err), "expr %q", expr)
	}
}

func TestScheduler_RunNowKeepsLastReport(t *testing.T) {
	// GIVEN: a due schedule
	e := newEnv(t)
	e.settings(t, accrual.Settings{IsActive: true, NextRunAt: ptr(march15.Add(-time.Hour))})
	scheduler := accrual.NewScheduler(e.allocator, time.Minute, zap.NewNop())
	assert.Nil(t, scheduler.LastReport())

	// WHEN: a check is forced
	report, err := scheduler.RunNow(e.ctx)

	// THEN: the report is retained for inspection
	require.NoError(t, err)
	assert.True(t, report.Ran)
	assert.Same(t, report, scheduler.LastReport())
}

func TestScheduler_StartStop(t *testing.T) {
	e := newEnv(t)
	scheduler := accrual.NewScheduler(e.allocator, time.Hour, zap.NewNop())

	scheduler.Start()
	scheduler.Start() // idempotent
	scheduler.Stop()
	scheduler.Stop()

	// The immediate tick ran with no settings and left a report behind.
	require.NotNil(t, scheduler.LastReport())
	assert.False(t, scheduler.LastReport().Ran)
}

func TestScheduler_Disabled(t *testing.T) {
	e := newEnv(t)
	scheduler := accrual.NewScheduler(e.allocator, 0, nil)
	scheduler.Enabled = false

	scheduler.Start()
	scheduler.Stop()

	assert.Equal(t, time.Hour, scheduler.CheckInterval)
	assert.Nil(t, scheduler.LastReport())
}
