// Package accrual credits the monthly leave allocation to every active user.
package accrual

import (
	"context"
	"time"

	"github.com/warp/leave-engine/generic"
)

// Settings is the single global allocation schedule record. The allocator
// consumes it and only ever writes the run bookkeeping.
type Settings struct {
	IsActive     bool
	CronSchedule string       // 5-field cron expression
	EndDate      generic.Date // zero = no end
	LastRunAt    *time.Time
	NextRunAt    *time.Time
	UpdatedBy    string
	UpdatedAt    time.Time
}

const DefaultCronSchedule = "0 0 1 * *"

type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// Run is the audit record of one allocation pass.
type Run struct {
	ID          string
	Trigger     Trigger
	Month       string
	Status      string // running, completed, failed
	Credited    int
	Skipped     int
	Failed      int
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
}

const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

type SettingsStore interface {
	// GetSettings returns (nil, nil) when no record exists.
	GetSettings(ctx context.Context) (*Settings, error)
	SaveSettings(ctx context.Context, s Settings) error
	SaveRun(ctx context.Context, run Run) error
	// ListRuns returns the most recent runs first.
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}
