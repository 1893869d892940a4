// Package leave implements leave balance accounting: the leave type registry,
// the per-user/type/year balance ledger, sandwich-leave pricing and the
// status-change reconciliation engine that charges and restores balances.
package leave

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// USERS
// =============================================================================

// EmploymentTerm keys the monthly accrual rate table.
type EmploymentTerm string

const (
	TermFullTime            EmploymentTerm = "full_time"
	TermPartTime            EmploymentTerm = "part_time"
	TermAssociate           EmploymentTerm = "associate"
	TermContract            EmploymentTerm = "contract"
	TermProbationInternship EmploymentTerm = "probation_internship"
)

func AllTerms() []EmploymentTerm {
	return []EmploymentTerm{TermFullTime, TermPartTime, TermAssociate, TermContract, TermProbationInternship}
}

func (t EmploymentTerm) Valid() bool {
	for _, known := range AllTerms() {
		if t == known {
			return true
		}
	}
	return false
}

type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserInactive UserStatus = "inactive"
)

type User struct {
	ID             string
	Name           string
	Email          string
	BirthDate      generic.Date // zero when not on record
	EmploymentTerm EmploymentTerm
	Status         UserStatus

	// CompOffBalance is a unit ledger separate from the yearly balances.
	// It may go negative.
	CompOffBalance decimal.Decimal
	CreatedAt      time.Time
}

func (u User) IsActive() bool { return u.Status == UserActive }

// =============================================================================
// LEAVE TYPES
// =============================================================================

// Category is the explicit tag the engine branches on. It is resolved once
// when a type is registered, never by matching names at transition time.
type Category string

const (
	CategoryDefault  Category = "default"          // the pooled "total leave" bucket
	CategoryCompOff  Category = "compensatory_off" // drawn from User.CompOffBalance
	CategoryBirthday Category = "birthday"         // never touches a balance
	CategoryStandard Category = "standard"
)

type LeaveType struct {
	ID               string
	Name             string
	Category         Category
	MaxDaysPerYear   decimal.Decimal // zero = unlimited
	CarryForward     bool
	RequiresApproval bool
	DeductsBalance   bool
	OwnBalance       bool // standard types only: charge a row of this type instead of the default bucket
}

// =============================================================================
// APPLICATIONS
// =============================================================================

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusWithdrawn Status = "withdrawn"
	StatusCancelled Status = "cancelled"
)

type HalfDayPeriod string

const (
	FirstHalf  HalfDayPeriod = "1st_half"
	SecondHalf HalfDayPeriod = "2nd_half"
)

func (p HalfDayPeriod) Valid() bool { return p == FirstHalf || p == SecondHalf }

type Application struct {
	ID            string
	UserID        string
	LeaveTypeID   string
	StartDate     generic.Date
	EndDate       generic.Date
	DaysCount     decimal.Decimal // face value requested, 0.5 for a half day
	IsHalfDay     bool
	HalfDayPeriod HalfDayPeriod
	Status        Status
	Reason        string

	// LOPDays is the unpaid portion, never charged to a balance.
	LOPDays decimal.Decimal

	// SandwichDeductedDays is what was actually charged when last approved.
	// Restorations give back exactly this; it is never recomputed.
	SandwichDeductedDays decimal.NullDecimal
	SandwichReason       string
	IsSandwichLeave      bool

	// PricingRule is the calculator rule behind the cached charge, empty for
	// non-ledger categories.
	PricingRule Rule

	DecidedBy       string
	DecidedAt       *time.Time
	RejectionReason string

	WithdrawnBy      string
	WithdrawalReason string
	WithdrawnAt      *time.Time

	AppliedAt time.Time
	UpdatedAt time.Time
}

func (a Application) IsSingleDay() bool { return a.StartDate.Equal(a.EndDate) }

// ClearDeduction drops the cached charge after it has been restored.
func (a *Application) ClearDeduction() {
	a.SandwichDeductedDays = decimal.NullDecimal{}
	a.SandwichReason = ""
	a.IsSandwichLeave = false
	a.PricingRule = ""
}

func (a *Application) CacheDeduction(days decimal.Decimal, reason string, sandwich bool) {
	a.SandwichDeductedDays = decimal.NewNullDecimal(days)
	a.SandwichReason = reason
	a.IsSandwichLeave = sandwich
	a.PricingRule = ""
}

// CachePricing caches a calculator result together with the rule that fired.
func (a *Application) CachePricing(days decimal.Decimal, rule Rule, reason string) {
	a.CacheDeduction(days, reason, rule.IsSandwich())
	a.PricingRule = rule
}

// PricedAsLoneBridge reports whether the cached charge came from the lone
// Friday/Monday rule, LOP included. Rows cached without a rule fall back to
// the bare 2.0 charge.
func (a Application) PricedAsLoneBridge() bool {
	if !a.SandwichDeductedDays.Valid || !IsBridgeCandidate(a.StartDate, a.EndDate, a.IsHalfDay) {
		return false
	}
	if a.PricingRule != "" {
		return a.PricingRule == RuleLoneBridge
	}
	return a.IsSandwichLeave && a.ChargedExactly(generic.TwoDays)
}

// ChargedExactly reports whether the cached charge equals d.
func (a Application) ChargedExactly(d decimal.Decimal) bool {
	return a.SandwichDeductedDays.Valid && a.SandwichDeductedDays.Decimal.Equal(d)
}

// ApplicationFilter narrows application queries. Zero values match everything.
// From/To select applications whose range overlaps [From, To].
type ApplicationFilter struct {
	UserID      string
	LeaveTypeID string
	Statuses    []Status
	From        generic.Date
	To          generic.Date
}

func (f ApplicationFilter) Matches(a Application) bool {
	if f.UserID != "" && a.UserID != f.UserID {
		return false
	}
	if f.LeaveTypeID != "" && a.LeaveTypeID != f.LeaveTypeID {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if a.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.From.IsZero() && a.EndDate.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && a.StartDate.After(f.To) {
		return false
	}
	return true
}

// =============================================================================
// BALANCES
// =============================================================================

// BalanceKey identifies a ledger row. At most one row exists per key.
type BalanceKey struct {
	UserID      string
	LeaveTypeID string
	Year        int
}

type Balance struct {
	BalanceKey
	AllocatedDays     decimal.Decimal
	UsedDays          decimal.Decimal
	RateOfLeave       decimal.Decimal // days credited per month
	LastCreditedMonth string          // "YYYY-MM" of the last monthly credit
	UpdatedAt         time.Time
}

// Remaining is derived on every call and never stored.
func (b Balance) Remaining() decimal.Decimal {
	return b.AllocatedDays.Sub(b.UsedDays)
}

// BalanceFilter narrows balance queries. Zero values match everything.
type BalanceFilter struct {
	UserID      string
	LeaveTypeID string
	Year        int
	MinYear     int
}

func (f BalanceFilter) Matches(b Balance) bool {
	if f.UserID != "" && b.UserID != f.UserID {
		return false
	}
	if f.LeaveTypeID != "" && b.LeaveTypeID != f.LeaveTypeID {
		return false
	}
	if f.Year != 0 && b.Year != f.Year {
		return false
	}
	if f.MinYear != 0 && b.Year < f.MinYear {
		return false
	}
	return true
}
