/*
allocator.go - Monthly leave allocation

PURPOSE:
  Credits rate_of_leave to the current-year default-bucket row of every
  active user, once per calendar month.

GUARDS (scheduled runs):
  1. Settings record must exist           (warning + no-op otherwise)
  2. is_active must be set
  3. end_date, when set, must not have passed
  4. now >= next_run_at

  A manual run skips guards 3 and 4 and otherwise does identical work,
  bookkeeping included.

IDEMPOTENCE:
  A row whose last_credited_month is the current month is skipped, and the
  journal entry is keyed monthly-credit:<user>:<type>:<YYYY-MM>, so two runs
  in the same slot never double-credit.

FAILURE ISOLATION:
  Each user is credited in its own store transaction. A failure is recorded
  in the Report and the batch moves on.
*/
package accrual

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/notify"
	"go.uber.org/zap"
)

var errAlreadyCredited = errors.New("already credited this month")

type Allocator struct {
	Store    leave.TxStore
	Settings SettingsStore
	Registry *leave.Registry
	Ledger   *leave.Ledger
	Notifier *notify.Dispatcher
	Logger   *zap.Logger
	Now      func() time.Time
}

func NewAllocator(store leave.TxStore, settings SettingsStore, reg *leave.Registry, notifier *notify.Dispatcher, logger *zap.Logger) *Allocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Allocator{
		Store:    store,
		Settings: settings,
		Registry: reg,
		Ledger:   leave.NewLedger(logger),
		Notifier: notifier,
		Logger:   logger,
		Now:      time.Now,
	}
}

// Failure is one user the run could not credit.
type Failure struct {
	UserID string
	Err    error
}

type Report struct {
	RunID     string
	Trigger   Trigger
	RunAt     time.Time
	Month     string
	Ran       bool
	SkipCause string // why the run did nothing, when Ran is false
	Credited  []string
	Skipped   []string
	Failures  []Failure
	Warnings  []generic.Warning
	NextRunAt *time.Time
}

// RunScheduled is what the timer calls.
func (a *Allocator) RunScheduled(ctx context.Context) (*Report, error) {
	return a.execute(ctx, TriggerScheduled)
}

// RunManual is the admin trigger. It ignores the end date and the due time.
func (a *Allocator) RunManual(ctx context.Context) (*Report, error) {
	return a.execute(ctx, TriggerManual)
}

func (a *Allocator) execute(ctx context.Context, trigger Trigger) (*Report, error) {
	now := a.now()
	report := &Report{Trigger: trigger, RunAt: now, Month: generic.MonthKey(now)}

	settings, err := a.Settings.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load allocation settings: %w", err)
	}
	if settings == nil {
		report.SkipCause = "no allocation settings"
		report.Warnings = append(report.Warnings, generic.Warning{
			Code:    generic.WarnMissingSettings,
			Message: "allocation settings record missing, nothing credited",
		})
		a.Logger.Warn("allocation skipped: settings missing", zap.String("trigger", string(trigger)))
		return report, nil
	}
	report.NextRunAt = settings.NextRunAt

	if cause := a.guard(*settings, trigger, now); cause != "" {
		report.SkipCause = cause
		a.Logger.Debug("allocation skipped", zap.String("trigger", string(trigger)), zap.String("cause", cause))
		if settings.NextRunAt == nil && cause == "schedule initialised" {
			next, err := NextRun(settings.CronSchedule, now)
			if err != nil {
				return report, err
			}
			settings.NextRunAt = &next
			report.NextRunAt = &next
			if err := a.Settings.SaveSettings(ctx, *settings); err != nil {
				return report, fmt.Errorf("save allocation settings: %w", err)
			}
		}
		return report, nil
	}

	report.Ran = true
	if err := a.allocate(ctx, report); err != nil {
		return report, err
	}

	// Bookkeeping: identical for scheduled and manual runs.
	settings.LastRunAt = &now
	next, err := NextRun(settings.CronSchedule, now)
	if err != nil {
		a.Logger.Error("next run not computable", zap.String("cron", settings.CronSchedule), zap.Error(err))
		settings.NextRunAt = nil
	} else {
		settings.NextRunAt = &next
	}
	report.NextRunAt = settings.NextRunAt
	if err := a.Settings.SaveSettings(ctx, *settings); err != nil {
		return report, fmt.Errorf("save allocation settings: %w", err)
	}

	a.Logger.Info("monthly allocation completed",
		zap.String("run_id", report.RunID),
		zap.String("trigger", string(trigger)),
		zap.String("month", report.Month),
		zap.Int("credited", len(report.Credited)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("failed", len(report.Failures)))
	return report, nil
}

// guard returns a non-empty cause when the run must not proceed.
func (a *Allocator) guard(s Settings, trigger Trigger, now time.Time) string {
	if !s.IsActive {
		return "schedule inactive"
	}
	if trigger == TriggerManual {
		return ""
	}
	if !s.EndDate.IsZero() && generic.DateOf(now).After(s.EndDate) {
		return "schedule ended"
	}
	if s.NextRunAt == nil {
		return "schedule initialised"
	}
	if now.Before(*s.NextRunAt) {
		return "not due"
	}
	return ""
}

func (a *Allocator) allocate(ctx context.Context, report *Report) error {
	run := Run{
		ID:        uuid.NewString(),
		Trigger:   report.Trigger,
		Month:     report.Month,
		Status:    RunRunning,
		StartedAt: report.RunAt,
	}
	report.RunID = run.ID
	if err := a.Settings.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("save run record: %w", err)
	}

	users, err := a.Store.ListActiveUsers(ctx)
	if err != nil {
		a.finish(ctx, run, report, err)
		return fmt.Errorf("list active users: %w", err)
	}

	for _, u := range users {
		credited, warnings, err := a.creditUser(ctx, u, report.Month, report.RunAt.Year())
		report.Warnings = append(report.Warnings, warnings...)
		switch {
		case err != nil:
			report.Failures = append(report.Failures, Failure{UserID: u.ID, Err: err})
			a.Logger.Error("monthly credit failed", zap.String("user_id", u.ID), zap.Error(err))
		case credited.IsZero():
			report.Skipped = append(report.Skipped, u.ID)
		default:
			report.Credited = append(report.Credited, u.ID)
			a.announce(ctx, u, credited, report.Month)
		}
	}

	a.finish(ctx, run, report, nil)
	return nil
}

// creditUser returns the days credited, zero when the user was skipped.
func (a *Allocator) creditUser(ctx context.Context, u leave.User, month string, year int) (decimal.Decimal, []generic.Warning, error) {
	var out generic.Outcome
	credited := decimal.Zero
	bucket := a.Registry.Default().ID
	err := a.Store.WithTx(ctx, func(st leave.Store) error {
		key := leave.BalanceKey{UserID: u.ID, LeaveTypeID: bucket, Year: year}
		b, err := a.Ledger.Ensure(ctx, st, key, &out)
		if err != nil {
			return err
		}
		if !b.RateOfLeave.IsPositive() || b.LastCreditedMonth == month {
			return nil
		}
		err = a.Ledger.Credit(ctx, st, b, month, leave.Entry{
			Type:           generic.TxGrant,
			Reason:         fmt.Sprintf("monthly credit %s", month),
			IdempotencyKey: CreditKey(u.ID, bucket, month),
			Actor:          generic.ActorSystem,
		})
		if errors.Is(err, generic.ErrDuplicateIdempotencyKey) {
			return errAlreadyCredited
		}
		if err != nil {
			return err
		}
		credited = b.RateOfLeave
		return nil
	})
	if errors.Is(err, errAlreadyCredited) {
		return decimal.Zero, out.Warnings, nil
	}
	return credited, out.Warnings, err
}

// CreditKey is the journal idempotency key of a monthly credit.
func CreditKey(userID, leaveTypeID, month string) string {
	return fmt.Sprintf("monthly-credit:%s:%s:%s", userID, leaveTypeID, month)
}

func (a *Allocator) finish(ctx context.Context, run Run, report *Report, cause error) {
	done := a.now()
	run.CompletedAt = &done
	run.Credited = len(report.Credited)
	run.Skipped = len(report.Skipped)
	run.Failed = len(report.Failures)
	run.Status = RunCompleted
	if cause != nil {
		run.Status = RunFailed
		run.Error = cause.Error()
	}
	if err := a.Settings.SaveRun(ctx, run); err != nil {
		a.Logger.Warn("update run record failed", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func (a *Allocator) announce(ctx context.Context, u leave.User, days decimal.Decimal, month string) {
	a.Notifier.Notify(ctx, notify.Notification{
		UserID:  u.ID,
		Title:   "Monthly leave credited",
		Message: fmt.Sprintf("%s day(s) of leave were credited for %s.", days, month),
		Type:    notify.EmailMonthlyCredit,
		Data:    map[string]any{"month": month, "days": days.String()},
	})
}

func (a *Allocator) now() time.Time {
	if a.Now == nil {
		return time.Now().UTC()
	}
	return a.Now().UTC()
}

// UpdateSettings validates and stores a new schedule. next_run_at is
// recomputed from the expression so a changed schedule takes effect on the
// next tick. Run bookkeeping (last_run_at) is preserved.
func (a *Allocator) UpdateSettings(ctx context.Context, in Settings, actor string) (*Settings, error) {
	if in.CronSchedule == "" {
		in.CronSchedule = DefaultCronSchedule
	}
	now := a.now()
	next, err := NextRun(in.CronSchedule, now)
	if err != nil {
		return nil, err
	}
	current, err := a.Settings.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load allocation settings: %w", err)
	}
	if current != nil {
		in.LastRunAt = current.LastRunAt
	}
	in.NextRunAt = &next
	in.UpdatedBy = actor
	in.UpdatedAt = now
	if err := a.Settings.SaveSettings(ctx, in); err != nil {
		return nil, fmt.Errorf("save allocation settings: %w", err)
	}
	a.Logger.Info("allocation settings updated",
		zap.Bool("is_active", in.IsActive),
		zap.String("cron", in.CronSchedule),
		zap.Time("next_run_at", next),
		zap.String("updated_by", actor))
	return &in, nil
}
