/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry go-playground/validator tags. Handlers call
  h.validate.Struct before touching the domain; semantic checks that need
  the store (overlap, yearly cap, birthday match) stay in leave.Service.

DAY QUANTITIES:
  decimal.Decimal fields marshal as JSON strings ("2.5") and accept either
  strings or numbers on input.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/accrual"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// USERS
// =============================================================================

type UserDTO struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Email          string          `json:"email,omitempty"`
	BirthDate      generic.Date    `json:"birth_date"`
	EmploymentTerm string          `json:"employment_term"`
	Status         string          `json:"status"`
	CompOffBalance decimal.Decimal `json:"comp_off_balance"`
	CreatedAt      string          `json:"created_at,omitempty"`
}

type CreateUserRequest struct {
	ID             string `json:"id" validate:"omitempty,max=64"`
	Name           string `json:"name" validate:"required,max=200"`
	Email          string `json:"email" validate:"omitempty,email"`
	BirthDate      string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	EmploymentTerm string `json:"employment_term" validate:"omitempty,oneof=full_time part_time associate contract probation_internship"`
}

type ChangeTermRequest struct {
	EmploymentTerm string `json:"employment_term" validate:"required,oneof=full_time part_time associate contract probation_internship"`
}

type CompOffRequest struct {
	Days    decimal.Decimal `json:"days"`
	Reason  string          `json:"reason" validate:"max=500"`
	ActorID string          `json:"actor_id"`
}

// =============================================================================
// LEAVE TYPES
// =============================================================================

type LeaveTypeDTO struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Category         string          `json:"category"`
	MaxDaysPerYear   decimal.Decimal `json:"max_days_per_year"`
	CarryForward     bool            `json:"carry_forward"`
	RequiresApproval bool            `json:"requires_approval"`
	DeductsBalance   bool            `json:"deducts_balance"`
	OwnBalance       bool            `json:"own_balance"`
}

type CreateLeaveTypeRequest struct {
	ID               string          `json:"id" validate:"required,max=64"`
	Name             string          `json:"name" validate:"required,max=100"`
	Category         string          `json:"category" validate:"omitempty,oneof=default compensatory_off birthday standard"`
	MaxDaysPerYear   decimal.Decimal `json:"max_days_per_year"`
	CarryForward     bool            `json:"carry_forward"`
	RequiresApproval *bool           `json:"requires_approval"`
	DeductsBalance   *bool           `json:"deducts_balance"`
	OwnBalance       bool            `json:"own_balance"`
}

// =============================================================================
// APPLICATIONS
// =============================================================================

type SubmitApplicationRequest struct {
	UserID        string          `json:"user_id" validate:"required"`
	LeaveTypeID   string          `json:"leave_type_id" validate:"required"`
	StartDate     string          `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate       string          `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	DaysCount     decimal.Decimal `json:"days_count"`
	IsHalfDay     bool            `json:"is_half_day"`
	HalfDayPeriod string          `json:"half_day_period" validate:"omitempty,oneof=1st_half 2nd_half"`
	LOPDays       decimal.Decimal `json:"lop_days"`
	Reason        string          `json:"reason" validate:"max=1000"`
}

type TransitionRequest struct {
	ActorID string `json:"actor_id"`
	Reason  string `json:"reason" validate:"max=1000"`
}

type ApplicationDTO struct {
	ID                   string           `json:"id"`
	UserID               string           `json:"user_id"`
	LeaveTypeID          string           `json:"leave_type_id"`
	StartDate            generic.Date     `json:"start_date"`
	EndDate              generic.Date     `json:"end_date"`
	DaysCount            decimal.Decimal  `json:"days_count"`
	IsHalfDay            bool             `json:"is_half_day"`
	HalfDayPeriod        string           `json:"half_day_period,omitempty"`
	Status               string           `json:"status"`
	Reason               string           `json:"reason,omitempty"`
	LOPDays              decimal.Decimal  `json:"lop_days"`
	SandwichDeductedDays *decimal.Decimal `json:"sandwich_deducted_days"`
	SandwichReason       string           `json:"sandwich_reason,omitempty"`
	IsSandwichLeave      bool             `json:"is_sandwich_leave"`
	PricingRule          string           `json:"pricing_rule,omitempty"`
	DecidedBy            string           `json:"decided_by,omitempty"`
	DecidedAt            *time.Time       `json:"decided_at,omitempty"`
	RejectionReason      string           `json:"rejection_reason,omitempty"`
	WithdrawnBy          string           `json:"withdrawn_by,omitempty"`
	WithdrawalReason     string           `json:"withdrawal_reason,omitempty"`
	WithdrawnAt          *time.Time       `json:"withdrawn_at,omitempty"`
	AppliedAt            time.Time        `json:"applied_at"`
}

type WarningDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TransitionResponse is returned by submit and every status change.
type TransitionResponse struct {
	Application ApplicationDTO  `json:"application"`
	Changed     bool            `json:"changed"`
	Deducted    decimal.Decimal `json:"deducted"`
	Restored    decimal.Decimal `json:"restored"`
	Warnings    []WarningDTO    `json:"warnings"`
}

// =============================================================================
// BALANCES AND JOURNAL
// =============================================================================

type BalanceDTO struct {
	UserID            string          `json:"user_id"`
	LeaveTypeID       string          `json:"leave_type_id"`
	Year              int             `json:"year"`
	AllocatedDays     decimal.Decimal `json:"allocated_days"`
	UsedDays          decimal.Decimal `json:"used_days"`
	RemainingDays     decimal.Decimal `json:"remaining_days"`
	RateOfLeave       decimal.Decimal `json:"rate_of_leave"`
	LastCreditedMonth string          `json:"last_credited_month,omitempty"`
}

type SetAllocationRequest struct {
	UserID        string          `json:"user_id" validate:"required"`
	LeaveTypeID   string          `json:"leave_type_id" validate:"required"`
	Year          int             `json:"year" validate:"omitempty,min=2000,max=2100"`
	AllocatedDays decimal.Decimal `json:"allocated_days"`
	Reason        string          `json:"reason" validate:"max=500"`
	ActorID       string          `json:"actor_id"`
}

type TransactionDTO struct {
	ID          string          `json:"id"`
	LeaveTypeID string          `json:"leave_type_id,omitempty"`
	Year        int             `json:"year,omitempty"`
	Type        string          `json:"type"`
	Delta       decimal.Decimal `json:"delta"`
	ReferenceID string          `json:"reference_id,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	CreatedBy   string          `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
}

// =============================================================================
// ALLOCATION
// =============================================================================

type AllocationSettingsDTO struct {
	IsActive     bool         `json:"is_active"`
	CronSchedule string       `json:"cron_schedule"`
	EndDate      generic.Date `json:"end_date"`
	LastRunAt    *time.Time   `json:"last_run_at"`
	NextRunAt    *time.Time   `json:"next_run_at"`
	UpdatedBy    string       `json:"updated_by,omitempty"`
}

type UpdateSettingsRequest struct {
	IsActive     bool   `json:"is_active"`
	CronSchedule string `json:"cron_schedule" validate:"required"`
	EndDate      string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	ActorID      string `json:"actor_id"`
}

type FailureDTO struct {
	UserID string `json:"user_id"`
	Error  string `json:"error"`
}

type AllocationReportDTO struct {
	RunID     string       `json:"run_id,omitempty"`
	Trigger   string       `json:"trigger"`
	Month     string       `json:"month"`
	Ran       bool         `json:"ran"`
	SkipCause string       `json:"skip_cause,omitempty"`
	Credited  []string     `json:"credited"`
	Skipped   []string     `json:"skipped"`
	Failures  []FailureDTO `json:"failures"`
	Warnings  []WarningDTO `json:"warnings"`
	NextRunAt *time.Time   `json:"next_run_at"`
}

type AllocationRunDTO struct {
	ID          string     `json:"id"`
	Trigger     string     `json:"trigger"`
	Month       string     `json:"month"`
	Status      string     `json:"status"`
	Credited    int        `json:"credited"`
	Skipped     int        `json:"skipped"`
	Failed      int        `json:"failed"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type TermRateDTO struct {
	Term string          `json:"term"`
	Rate decimal.Decimal `json:"rate"`
}

type SetTermRateRequest struct {
	Rate decimal.Decimal `json:"rate"`
}

type TermRateResponse struct {
	Term        string          `json:"term"`
	Rate        decimal.Decimal `json:"rate"`
	RowsUpdated int             `json:"rows_updated"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toUserDTO(u leave.User) UserDTO {
	dto := UserDTO{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		BirthDate:      u.BirthDate,
		EmploymentTerm: string(u.EmploymentTerm),
		Status:         string(u.Status),
		CompOffBalance: u.CompOffBalance,
	}
	if !u.CreatedAt.IsZero() {
		dto.CreatedAt = u.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toLeaveTypeDTO(lt leave.LeaveType) LeaveTypeDTO {
	return LeaveTypeDTO{
		ID:               lt.ID,
		Name:             lt.Name,
		Category:         string(lt.Category),
		MaxDaysPerYear:   lt.MaxDaysPerYear,
		CarryForward:     lt.CarryForward,
		RequiresApproval: lt.RequiresApproval,
		DeductsBalance:   lt.DeductsBalance,
		OwnBalance:       lt.OwnBalance,
	}
}

func toApplicationDTO(a leave.Application) ApplicationDTO {
	dto := ApplicationDTO{
		ID:               a.ID,
		UserID:           a.UserID,
		LeaveTypeID:      a.LeaveTypeID,
		StartDate:        a.StartDate,
		EndDate:          a.EndDate,
		DaysCount:        a.DaysCount,
		IsHalfDay:        a.IsHalfDay,
		HalfDayPeriod:    string(a.HalfDayPeriod),
		Status:           string(a.Status),
		Reason:           a.Reason,
		LOPDays:          a.LOPDays,
		SandwichReason:   a.SandwichReason,
		IsSandwichLeave:  a.IsSandwichLeave,
		PricingRule:      string(a.PricingRule),
		DecidedBy:        a.DecidedBy,
		DecidedAt:        a.DecidedAt,
		RejectionReason:  a.RejectionReason,
		WithdrawnBy:      a.WithdrawnBy,
		WithdrawalReason: a.WithdrawalReason,
		WithdrawnAt:      a.WithdrawnAt,
		AppliedAt:        a.AppliedAt,
	}
	if a.SandwichDeductedDays.Valid {
		d := a.SandwichDeductedDays.Decimal
		dto.SandwichDeductedDays = &d
	}
	return dto
}

func toWarningDTOs(ws []generic.Warning) []WarningDTO {
	out := make([]WarningDTO, len(ws))
	for i, w := range ws {
		out[i] = WarningDTO{Code: string(w.Code), Message: w.Message}
	}
	return out
}

func toTransitionResponse(res *leave.Result) TransitionResponse {
	return TransitionResponse{
		Application: toApplicationDTO(res.Application),
		Changed:     res.Changed,
		Deducted:    res.Outcome.Deducted,
		Restored:    res.Outcome.Restored,
		Warnings:    toWarningDTOs(res.Outcome.Warnings),
	}
}

func toBalanceDTO(b leave.Balance) BalanceDTO {
	return BalanceDTO{
		UserID:            b.UserID,
		LeaveTypeID:       b.LeaveTypeID,
		Year:              b.Year,
		AllocatedDays:     b.AllocatedDays,
		UsedDays:          b.UsedDays,
		RemainingDays:     b.Remaining(),
		RateOfLeave:       b.RateOfLeave,
		LastCreditedMonth: b.LastCreditedMonth,
	}
}

func toTransactionDTO(tx generic.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:          string(tx.ID),
		LeaveTypeID: tx.LeaveTypeID,
		Year:        tx.Year,
		Type:        string(tx.Type),
		Delta:       tx.Delta,
		ReferenceID: tx.ReferenceID,
		Reason:      tx.Reason,
		CreatedBy:   tx.CreatedBy,
		CreatedAt:   tx.CreatedAt,
	}
}

func toSettingsDTO(s accrual.Settings) AllocationSettingsDTO {
	return AllocationSettingsDTO{
		IsActive:     s.IsActive,
		CronSchedule: s.CronSchedule,
		EndDate:      s.EndDate,
		LastRunAt:    s.LastRunAt,
		NextRunAt:    s.NextRunAt,
		UpdatedBy:    s.UpdatedBy,
	}
}

func toReportDTO(r *accrual.Report) AllocationReportDTO {
	dto := AllocationReportDTO{
		RunID:     r.RunID,
		Trigger:   string(r.Trigger),
		Month:     r.Month,
		Ran:       r.Ran,
		SkipCause: r.SkipCause,
		Credited:  append([]string{}, r.Credited...),
		Skipped:   append([]string{}, r.Skipped...),
		Failures:  make([]FailureDTO, len(r.Failures)),
		Warnings:  toWarningDTOs(r.Warnings),
		NextRunAt: r.NextRunAt,
	}
	for i, f := range r.Failures {
		dto.Failures[i] = FailureDTO{UserID: f.UserID, Error: f.Err.Error()}
	}
	return dto
}

func toRunDTO(r accrual.Run) AllocationRunDTO {
	return AllocationRunDTO{
		ID:          r.ID,
		Trigger:     string(r.Trigger),
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
