package accrual

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/warp/leave-engine/generic"
)

// NextRun returns the first time after `after` matching the 5-field cron
// expression (minute hour day-of-month month day-of-week).
func NextRun(expr string, after time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}, generic.NewValidationError("cron_schedule", "invalid cron expression %q: %v", expr, err)
	}
	next := sched.Next(after)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("cron expression %q never fires", expr)
	}
	return next, nil
}

// ValidateSchedule checks that expr parses.
func ValidateSchedule(expr string) error {
	_, err := NextRun(expr, time.Now())
	return err
}
