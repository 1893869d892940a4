package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// USERS
// =============================================================================

type userRow struct {
	ID             string          `db:"id"`
	Name           string          `db:"name"`
	Email          sql.NullString  `db:"email"`
	BirthDate      generic.Date    `db:"birth_date"`
	EmploymentTerm string          `db:"employment_term"`
	Status         string          `db:"status"`
	CompOffBalance decimal.Decimal `db:"comp_off_balance"`
	CreatedAt      time.Time       `db:"created_at"`
}

func (r userRow) toUser() leave.User {
	return leave.User{
		ID:             r.ID,
		Name:           r.Name,
		Email:          r.Email.String,
		BirthDate:      r.BirthDate,
		EmploymentTerm: leave.EmploymentTerm(r.EmploymentTerm),
		Status:         leave.UserStatus(r.Status),
		CompOffBalance: r.CompOffBalance,
		CreatedAt:      r.CreatedAt,
	}
}

const userColumns = `id, name, email, birth_date, employment_term, status, comp_off_balance, created_at`

func (c *conn) GetUser(ctx context.Context, id string) (*leave.User, error) {
	var row userRow
	err := c.get(ctx, &row, c.forUpdate(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, generic.NotFound("user", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u := row.toUser()
	return &u, nil
}

func (c *conn) ListUsers(ctx context.Context) ([]leave.User, error) {
	return c.queryUsers(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
}

func (c *conn) ListActiveUsers(ctx context.Context) ([]leave.User, error) {
	return c.queryUsers(ctx, `SELECT `+userColumns+` FROM users WHERE status = ? ORDER BY id`, string(leave.UserActive))
}

func (c *conn) ListUsersByTerm(ctx context.Context, term leave.EmploymentTerm) ([]leave.User, error) {
	return c.queryUsers(ctx, `SELECT `+userColumns+` FROM users WHERE employment_term = ? ORDER BY id`, string(term))
}

func (c *conn) queryUsers(ctx context.Context, query string, args ...any) ([]leave.User, error) {
	var rows []userRow
	if err := c.selectAll(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]leave.User, len(rows))
	for i, r := range rows {
		out[i] = r.toUser()
	}
	return out, nil
}

func (c *conn) SaveUser(ctx context.Context, u leave.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	err := c.exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			birth_date = excluded.birth_date,
			employment_term = excluded.employment_term,
			status = excluded.status,
			comp_off_balance = excluded.comp_off_balance`,
		u.ID, u.Name, nullString(u.Email), u.BirthDate, string(u.EmploymentTerm),
		string(u.Status), u.CompOffBalance, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// =============================================================================
// LEAVE TYPES
// =============================================================================

type leaveTypeRow struct {
	ID               string          `db:"id"`
	Name             string          `db:"name"`
	Category         string          `db:"category"`
	MaxDaysPerYear   decimal.Decimal `db:"max_days_per_year"`
	CarryForward     bool            `db:"carry_forward"`
	RequiresApproval bool            `db:"requires_approval"`
	DeductsBalance   bool            `db:"deducts_balance"`
	OwnBalance       bool            `db:"own_balance"`
}

func (c *conn) ListLeaveTypes(ctx context.Context) ([]leave.LeaveType, error) {
	var rows []leaveTypeRow
	err := c.selectAll(ctx, &rows, `
		SELECT id, name, category, max_days_per_year, carry_forward,
		       requires_approval, deducts_balance, own_balance
		FROM leave_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list leave types: %w", err)
	}
	out := make([]leave.LeaveType, len(rows))
	for i, r := range rows {
		out[i] = leave.LeaveType{
			ID:               r.ID,
			Name:             r.Name,
			Category:         leave.Category(r.Category),
			MaxDaysPerYear:   r.MaxDaysPerYear,
			CarryForward:     r.CarryForward,
			RequiresApproval: r.RequiresApproval,
			DeductsBalance:   r.DeductsBalance,
			OwnBalance:       r.OwnBalance,
		}
	}
	return out, nil
}

func (c *conn) SaveLeaveType(ctx context.Context, lt leave.LeaveType) error {
	err := c.exec(ctx, `
		INSERT INTO leave_types (id, name, category, max_days_per_year, carry_forward,
		                         requires_approval, deducts_balance, own_balance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			max_days_per_year = excluded.max_days_per_year,
			carry_forward = excluded.carry_forward,
			requires_approval = excluded.requires_approval,
			deducts_balance = excluded.deducts_balance,
			own_balance = excluded.own_balance`,
		lt.ID, lt.Name, string(lt.Category), lt.MaxDaysPerYear, lt.CarryForward,
		lt.RequiresApproval, lt.DeductsBalance, lt.OwnBalance,
	)
	if err != nil {
		return fmt.Errorf("save leave type: %w", err)
	}
	return nil
}

// =============================================================================
// EMPLOYMENT TERM RATES
// =============================================================================

type rateRow struct {
	Term string          `db:"term"`
	Rate decimal.Decimal `db:"rate"`
}

func (c *conn) GetTermRate(ctx context.Context, term leave.EmploymentTerm) (decimal.Decimal, bool, error) {
	var rate decimal.Decimal
	err := c.get(ctx, &rate, `SELECT rate FROM employment_term_rates WHERE term = ?`, string(term))
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("get term rate: %w", err)
	}
	return rate, true, nil
}

func (c *conn) SaveTermRate(ctx context.Context, term leave.EmploymentTerm, rate decimal.Decimal) error {
	err := c.exec(ctx, `
		INSERT INTO employment_term_rates (term, rate) VALUES (?, ?)
		ON CONFLICT (term) DO UPDATE SET rate = excluded.rate`,
		string(term), rate)
	if err != nil {
		return fmt.Errorf("save term rate: %w", err)
	}
	return nil
}

func (c *conn) ListTermRates(ctx context.Context) (map[leave.EmploymentTerm]decimal.Decimal, error) {
	var rows []rateRow
	if err := c.selectAll(ctx, &rows, `SELECT term, rate FROM employment_term_rates`); err != nil {
		return nil, fmt.Errorf("list term rates: %w", err)
	}
	out := make(map[leave.EmploymentTerm]decimal.Decimal, len(rows))
	for _, r := range rows {
		out[leave.EmploymentTerm(r.Term)] = r.Rate
	}
	return out, nil
}
