package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// LEAVE APPLICATIONS
// =============================================================================

type applicationRow struct {
	ID                   string              `db:"id"`
	UserID               string              `db:"user_id"`
	LeaveTypeID          string              `db:"leave_type_id"`
	StartDate            generic.Date        `db:"start_date"`
	EndDate              generic.Date        `db:"end_date"`
	DaysCount            decimal.Decimal     `db:"days_count"`
	IsHalfDay            bool                `db:"is_half_day"`
	HalfDayPeriod        sql.NullString      `db:"half_day_period"`
	Status               string              `db:"status"`
	Reason               string              `db:"reason"`
	LOPDays              decimal.Decimal     `db:"lop_days"`
	SandwichDeductedDays decimal.NullDecimal `db:"sandwich_deducted_days"`
	SandwichReason       string              `db:"sandwich_reason"`
	IsSandwichLeave      bool                `db:"is_sandwich_leave"`
	PricingRule          string              `db:"pricing_rule"`
	DecidedBy            string              `db:"decided_by"`
	DecidedAt            *time.Time          `db:"decided_at"`
	RejectionReason      string              `db:"rejection_reason"`
	WithdrawnBy          string              `db:"withdrawn_by"`
	WithdrawalReason     string              `db:"withdrawal_reason"`
	WithdrawnAt          *time.Time          `db:"withdrawn_at"`
	AppliedAt            time.Time           `db:"applied_at"`
	UpdatedAt            time.Time           `db:"updated_at"`
}

func (r applicationRow) toApplication() leave.Application {
	return leave.Application{
		ID:                   r.ID,
		UserID:               r.UserID,
		LeaveTypeID:          r.LeaveTypeID,
		StartDate:            r.StartDate,
		EndDate:              r.EndDate,
		DaysCount:            r.DaysCount,
		IsHalfDay:            r.IsHalfDay,
		HalfDayPeriod:        leave.HalfDayPeriod(r.HalfDayPeriod.String),
		Status:               leave.Status(r.Status),
		Reason:               r.Reason,
		LOPDays:              r.LOPDays,
		SandwichDeductedDays: r.SandwichDeductedDays,
		SandwichReason:       r.SandwichReason,
		IsSandwichLeave:      r.IsSandwichLeave,
		PricingRule:          leave.Rule(r.PricingRule),
		DecidedBy:            r.DecidedBy,
		DecidedAt:            r.DecidedAt,
		RejectionReason:      r.RejectionReason,
		WithdrawnBy:          r.WithdrawnBy,
		WithdrawalReason:     r.WithdrawalReason,
		WithdrawnAt:          r.WithdrawnAt,
		AppliedAt:            r.AppliedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

const applicationColumns = `id, user_id, leave_type_id, start_date, end_date, days_count,
	is_half_day, half_day_period, status, reason, lop_days, sandwich_deducted_days,
	sandwich_reason, is_sandwich_leave, pricing_rule, decided_by, decided_at, rejection_reason,
	withdrawn_by, withdrawal_reason, withdrawn_at, applied_at, updated_at`

func (c *conn) GetApplication(ctx context.Context, id string) (*leave.Application, error) {
	var row applicationRow
	err := c.get(ctx, &row, c.forUpdate(`SELECT `+applicationColumns+` FROM leave_applications WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, generic.NotFound("application", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get application: %w", err)
	}
	a := row.toApplication()
	return &a, nil
}

func (c *conn) SaveApplication(ctx context.Context, a leave.Application) error {
	err := c.exec(ctx, `
		INSERT INTO leave_applications (`+applicationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			reason = excluded.reason,
			lop_days = excluded.lop_days,
			sandwich_deducted_days = excluded.sandwich_deducted_days,
			sandwich_reason = excluded.sandwich_reason,
			is_sandwich_leave = excluded.is_sandwich_leave,
			pricing_rule = excluded.pricing_rule,
			decided_by = excluded.decided_by,
			decided_at = excluded.decided_at,
			rejection_reason = excluded.rejection_reason,
			withdrawn_by = excluded.withdrawn_by,
			withdrawal_reason = excluded.withdrawal_reason,
			withdrawn_at = excluded.withdrawn_at,
			updated_at = excluded.updated_at`,
		a.ID, a.UserID, a.LeaveTypeID, a.StartDate, a.EndDate, a.DaysCount,
		a.IsHalfDay, nullString(string(a.HalfDayPeriod)), string(a.Status), a.Reason, a.LOPDays,
		a.SandwichDeductedDays, a.SandwichReason, a.IsSandwichLeave, string(a.PricingRule), a.DecidedBy, a.DecidedAt,
		a.RejectionReason, a.WithdrawnBy, a.WithdrawalReason, a.WithdrawnAt, a.AppliedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save application: %w", err)
	}
	return nil
}

func (c *conn) ListApplications(ctx context.Context, f leave.ApplicationFilter) ([]leave.Application, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.LeaveTypeID != "" {
		where = append(where, "leave_type_id = ?")
		args = append(args, f.LeaveTypeID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		where = append(where, "status IN (?)")
		args = append(args, statuses)
	}
	if !f.From.IsZero() {
		where = append(where, "end_date >= ?")
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		where = append(where, "start_date <= ?")
		args = append(args, f.To)
	}

	query := `SELECT ` + applicationColumns + ` FROM leave_applications`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY start_date, applied_at"

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("build application query: %w", err)
	}

	var rows []applicationRow
	if err := c.selectAll(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	out := make([]leave.Application, len(rows))
	for i, r := range rows {
		out[i] = r.toApplication()
	}
	return out, nil
}
