package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/warp/leave-engine/accrual"
	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// ALLOCATION SETTINGS (single global record, id = 1)
// =============================================================================

type settingsRow struct {
	IsActive     bool         `db:"is_active"`
	CronSchedule string       `db:"cron_schedule"`
	EndDate      generic.Date `db:"end_date"`
	LastRunAt    *time.Time   `db:"last_run_at"`
	NextRunAt    *time.Time   `db:"next_run_at"`
	UpdatedBy    string       `db:"updated_by"`
	UpdatedAt    time.Time    `db:"updated_at"`
}

func (c *conn) GetSettings(ctx context.Context) (*accrual.Settings, error) {
	var row settingsRow
	err := c.get(ctx, &row, `
		SELECT is_active, cron_schedule, end_date, last_run_at, next_run_at, updated_by, updated_at
		FROM allocation_settings WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get allocation settings: %w", err)
	}
	return &accrual.Settings{
		IsActive:     row.IsActive,
		CronSchedule: row.CronSchedule,
		EndDate:      row.EndDate,
		LastRunAt:    row.LastRunAt,
		NextRunAt:    row.NextRunAt,
		UpdatedBy:    row.UpdatedBy,
		UpdatedAt:    row.UpdatedAt,
	}, nil
}

func (c *conn) SaveSettings(ctx context.Context, s accrual.Settings) error {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}
	err := c.exec(ctx, `
		INSERT INTO allocation_settings
		(id, is_active, cron_schedule, end_date, last_run_at, next_run_at, updated_by, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			is_active = excluded.is_active,
			cron_schedule = excluded.cron_schedule,
			end_date = excluded.end_date,
			last_run_at = excluded.last_run_at,
			next_run_at = excluded.next_run_at,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at`,
		s.IsActive, s.CronSchedule, s.EndDate, s.LastRunAt, s.NextRunAt, s.UpdatedBy, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save allocation settings: %w", err)
	}
	return nil
}

// =============================================================================
// ALLOCATION RUNS
// =============================================================================

type runRow struct {
	ID          string     `db:"id"`
	Trigger     string     `db:"trigger_type"`
	Month       string     `db:"month"`
	Status      string     `db:"status"`
	Credited    int        `db:"credited"`
	Skipped     int        `db:"skipped"`
	Failed      int        `db:"failed"`
	Error       string     `db:"error"`
	StartedAt   time.Time  `db:"started_at"`
	CompletedAt *time.Time `db:"completed_at"`
}

func (c *conn) SaveRun(ctx context.Context, r accrual.Run) error {
	err := c.exec(ctx, `
		INSERT INTO allocation_runs
		(id, trigger_type, month, status, credited, skipped, failed, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			credited = excluded.credited,
			skipped = excluded.skipped,
			failed = excluded.failed,
			error = excluded.error,
			completed_at = excluded.completed_at`,
		r.ID, string(r.Trigger), r.Month, r.Status, r.Credited, r.Skipped, r.Failed,
		r.Error, r.StartedAt, r.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("save allocation run: %w", err)
	}
	return nil
}

func (c *conn) ListRuns(ctx context.Context, limit int) ([]accrual.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []runRow
	err := c.selectAll(ctx, &rows, `
		SELECT id, trigger_type, month, status, credited, skipped, failed, error, started_at, completed_at
		FROM allocation_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list allocation runs: %w", err)
	}
	out := make([]accrual.Run, len(rows))
	for i, r := range rows {
		out[i] = accrual.Run{
			ID:          r.ID,
			Trigger:     accrual.Trigger(r.Trigger),
			Month:       r.Month,
			Status:      r.Status,
			Credited:    r.Credited,
			Skipped:     r.Skipped,
			Failed:      r.Failed,
			Error:       r.Error,
			StartedAt:   r.StartedAt,
			CompletedAt: r.CompletedAt,
		}
	}
	return out, nil
}
