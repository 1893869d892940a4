/*
service.go - Leave application service

PURPOSE:
  The entry point used by the HTTP layer. Each operation runs in one store
  transaction: load, validate, change status, reconcile the ledger, persist.
  Notifications are queued only after the transaction commits.

OPERATIONS:
  Submit, Approve, Reject, Withdraw, Cancel   application lifecycle
  Get, List, Balances, Transactions           reads
  SetAllocation, CreditCompOff                HR balance corrections
  ChangeEmploymentTerm, SetTermRate           accrual rate maintenance
  CreateUser, RegisterLeaveType               reference data
*/
package leave

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/notify"
	"go.uber.org/zap"
)

type Service struct {
	Store    TxStore
	Registry *Registry
	Engine   *Engine
	Rates    *RateSync
	Notifier *notify.Dispatcher
	Logger   *zap.Logger
	Now      func() time.Time
}

func NewService(store TxStore, reg *Registry, notifier *notify.Dispatcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		Store:    store,
		Registry: reg,
		Engine:   NewEngine(reg, logger),
		Notifier: notifier,
		Logger:   logger,
		Now:      time.Now,
	}
}

// Result is an application after a status change together with its ledger outcome.
type Result struct {
	Application Application
	Outcome     generic.Outcome
	Changed     bool
}

type SubmitInput struct {
	UserID        string
	LeaveTypeID   string
	StartDate     generic.Date
	EndDate       generic.Date // defaults to StartDate
	DaysCount     decimal.Decimal
	IsHalfDay     bool
	HalfDayPeriod HalfDayPeriod
	LOPDays       decimal.Decimal
	Reason        string
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Submit creates a pending application. Types that need no approval are
// approved in the same transaction.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*Result, error) {
	var res Result
	err := s.Store.WithTx(ctx, func(st Store) error {
		user, err := st.GetUser(ctx, in.UserID)
		if err != nil {
			return err
		}
		if !user.IsActive() {
			return generic.NewValidationError("user_id", "user %s is not active", user.ID)
		}
		lt, err := s.Registry.Lookup(in.LeaveTypeID)
		if err != nil {
			return generic.NewValidationError("leave_type_id", "unknown leave type %q", in.LeaveTypeID)
		}

		app, err := s.buildApplication(in)
		if err != nil {
			return err
		}
		if lt.Category == CategoryBirthday {
			if err := ValidateBirthdayLeave(*user, app); err != nil {
				return err
			}
		}
		if err := s.checkOverlap(ctx, st, app); err != nil {
			return err
		}
		if err := s.checkYearlyCap(ctx, st, lt, app); err != nil {
			return err
		}

		if err := st.SaveApplication(ctx, app); err != nil {
			return fmt.Errorf("save application: %w", err)
		}
		res.Application = app
		res.Changed = true

		if !lt.RequiresApproval {
			out, err := s.apply(ctx, st, &app, StatusApproved, generic.ActorSystem, "")
			if err != nil {
				return err
			}
			res.Application = app
			res.Outcome = out
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("leave submitted",
		zap.String("application_id", res.Application.ID),
		zap.String("user_id", res.Application.UserID),
		zap.String("status", string(res.Application.Status)))
	s.logWarnings(res)
	s.announce(ctx, res.Application, notify.EmailLeaveSubmitted)
	if res.Application.Status == StatusApproved {
		s.announce(ctx, res.Application, notify.EmailLeaveApproved)
	}
	return &res, nil
}

func (s *Service) Approve(ctx context.Context, id, actor string) (*Result, error) {
	return s.Transition(ctx, id, StatusApproved, actor, "")
}

func (s *Service) Reject(ctx context.Context, id, actor, reason string) (*Result, error) {
	return s.Transition(ctx, id, StatusRejected, actor, reason)
}

func (s *Service) Withdraw(ctx context.Context, id, actor, reason string) (*Result, error) {
	return s.Transition(ctx, id, StatusWithdrawn, actor, reason)
}

func (s *Service) Cancel(ctx context.Context, id, actor, reason string) (*Result, error) {
	return s.Transition(ctx, id, StatusCancelled, actor, reason)
}

// Transition moves an application to status `to`. Requesting the current
// status is a no-op with an empty outcome.
func (s *Service) Transition(ctx context.Context, id string, to Status, actor, reason string) (*Result, error) {
	if !to.Valid() {
		return nil, generic.NewValidationError("status", "unknown status %q", to)
	}
	if actor == "" {
		actor = generic.ActorSystem
	}
	var res Result
	err := s.Store.WithTx(ctx, func(st Store) error {
		app, err := st.GetApplication(ctx, id)
		if err != nil {
			return err
		}
		if app.Status == to {
			res.Application = *app
			return nil
		}
		out, err := s.apply(ctx, st, app, to, actor, reason)
		if err != nil {
			return err
		}
		res.Application = *app
		res.Outcome = out
		res.Changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !res.Changed {
		return &res, nil
	}

	s.Logger.Info("leave status changed",
		zap.String("application_id", id),
		zap.String("status", string(to)),
		zap.String("actor", actor),
		zap.String("deducted", res.Outcome.Deducted.String()),
		zap.String("restored", res.Outcome.Restored.String()))
	s.logWarnings(res)
	s.announce(ctx, res.Application, emailTypeFor(to))
	return &res, nil
}

// apply validates and performs one transition on app inside st.
func (s *Service) apply(ctx context.Context, st Store, app *Application, to Status, actor, reason string) (generic.Outcome, error) {
	from := app.Status
	if err := CheckTransition(from, to); err != nil {
		return generic.Outcome{}, err
	}
	if to == StatusApproved {
		lt, err := s.Registry.Lookup(app.LeaveTypeID)
		if err != nil {
			return generic.Outcome{}, err
		}
		if lt.Category == CategoryBirthday {
			user, err := st.GetUser(ctx, app.UserID)
			if err != nil {
				return generic.Outcome{}, err
			}
			if err := ValidateBirthdayLeave(*user, *app); err != nil {
				return generic.Outcome{}, err
			}
		}
	}

	now := s.now()
	app.Status = to
	app.UpdatedAt = now
	switch to {
	case StatusApproved:
		app.DecidedBy, app.DecidedAt, app.RejectionReason = actor, &now, ""
	case StatusRejected, StatusCancelled:
		app.DecidedBy, app.DecidedAt, app.RejectionReason = actor, &now, reason
	case StatusWithdrawn:
		app.WithdrawnBy, app.WithdrawnAt, app.WithdrawalReason = actor, &now, reason
	}

	out, err := s.Engine.Reconcile(ctx, st, app, from, actor)
	if err != nil {
		return out, fmt.Errorf("reconcile %s %s->%s: %w", app.ID, from, to, err)
	}
	if err := st.SaveApplication(ctx, *app); err != nil {
		return out, fmt.Errorf("save application: %w", err)
	}
	return out, nil
}

// =============================================================================
// SUBMISSION CHECKS
// =============================================================================

func (s *Service) buildApplication(in SubmitInput) (Application, error) {
	if in.StartDate.IsZero() {
		return Application{}, generic.NewValidationError("start_date", "start date is required")
	}
	end := in.EndDate
	if end.IsZero() {
		end = in.StartDate
	}
	if end.Before(in.StartDate) {
		return Application{}, generic.NewValidationError("end_date", "end date %s before start date %s", end, in.StartDate)
	}
	span := generic.DaysInclusive(in.StartDate, end)

	days := in.DaysCount
	if in.IsHalfDay {
		if span != 1 {
			return Application{}, generic.NewValidationError("is_half_day", "half day leave must be a single day")
		}
		if !in.HalfDayPeriod.Valid() {
			return Application{}, generic.NewValidationError("half_day_period", "must be %q or %q", FirstHalf, SecondHalf)
		}
		if days.IsZero() {
			days = generic.HalfDay
		}
		if !days.Equal(generic.HalfDay) {
			return Application{}, generic.NewValidationError("days_count", "half day leave counts 0.5 days")
		}
	} else {
		if in.HalfDayPeriod != "" {
			return Application{}, generic.NewValidationError("half_day_period", "only allowed on half day leave")
		}
		if days.IsZero() {
			days = generic.DaysFromInt(span)
		}
		if !days.IsPositive() || days.GreaterThan(generic.DaysFromInt(span)) {
			return Application{}, generic.NewValidationError("days_count", "must be between 0 and %d", span)
		}
	}

	if in.LOPDays.IsNegative() || in.LOPDays.GreaterThan(days) {
		return Application{}, generic.NewValidationError("lop_days", "must be between 0 and %s", days)
	}

	now := s.now()
	return Application{
		ID:            uuid.NewString(),
		UserID:        in.UserID,
		LeaveTypeID:   in.LeaveTypeID,
		StartDate:     in.StartDate,
		EndDate:       end,
		DaysCount:     days,
		IsHalfDay:     in.IsHalfDay,
		HalfDayPeriod: in.HalfDayPeriod,
		Status:        StatusPending,
		Reason:        strings.TrimSpace(in.Reason),
		LOPDays:       in.LOPDays,
		AppliedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// checkOverlap rejects a leave overlapping one of the user's live applications.
// Two half days on the same date are allowed when their periods differ.
func (s *Service) checkOverlap(ctx context.Context, st Store, app Application) error {
	live, err := st.ListApplications(ctx, ApplicationFilter{
		UserID:   app.UserID,
		Statuses: []Status{StatusPending, StatusApproved},
		From:     app.StartDate,
		To:       app.EndDate,
	})
	if err != nil {
		return fmt.Errorf("check overlap: %w", err)
	}
	for _, other := range live {
		if app.IsHalfDay && other.IsHalfDay && app.HalfDayPeriod != other.HalfDayPeriod {
			continue
		}
		return generic.NewValidationError("start_date", "overlaps application %s (%s to %s)",
			other.ID, other.StartDate, other.EndDate)
	}
	return nil
}

// checkYearlyCap enforces max_days_per_year over pending and approved
// applications of the same type starting in the same year.
func (s *Service) checkYearlyCap(ctx context.Context, st Store, lt LeaveType, app Application) error {
	if !lt.MaxDaysPerYear.IsPositive() {
		return nil
	}
	year := app.StartDate.Year()
	existing, err := st.ListApplications(ctx, ApplicationFilter{
		UserID:      app.UserID,
		LeaveTypeID: lt.ID,
		Statuses:    []Status{StatusPending, StatusApproved},
		From:        generic.StartOfYear(year),
		To:          generic.EndOfYear(year),
	})
	if err != nil {
		return fmt.Errorf("check yearly cap: %w", err)
	}
	total := app.DaysCount
	for _, e := range existing {
		if e.StartDate.Year() == year {
			total = total.Add(e.DaysCount)
		}
	}
	if total.GreaterThan(lt.MaxDaysPerYear) {
		return generic.NewValidationError("days_count", "%s allows %s days per year, %s requested in %d",
			lt.Name, lt.MaxDaysPerYear, total, year)
	}
	return nil
}

// =============================================================================
// READS
// =============================================================================

func (s *Service) Get(ctx context.Context, id string) (*Application, error) {
	return s.Store.GetApplication(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ApplicationFilter) ([]Application, error) {
	return s.Store.ListApplications(ctx, filter)
}

// Balances lists a user's ledger rows for year, the current year when 0.
func (s *Service) Balances(ctx context.Context, userID string, year int) ([]Balance, error) {
	if _, err := s.Store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	if year == 0 {
		year = s.now().Year()
	}
	return s.Store.ListBalances(ctx, BalanceFilter{UserID: userID, Year: year})
}

func (s *Service) Transactions(ctx context.Context, userID string) ([]generic.Transaction, error) {
	if _, err := s.Store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.Store.ListTransactions(ctx, generic.TransactionFilter{UserID: userID})
}

// =============================================================================
// HR CORRECTIONS
// =============================================================================

// SetAllocation sets allocated_days on a row to an absolute value and
// journals the difference as an adjustment.
func (s *Service) SetAllocation(ctx context.Context, key BalanceKey, allocated decimal.Decimal, actor, reason string) (*Balance, error) {
	if allocated.IsNegative() {
		return nil, generic.NewValidationError("allocated_days", "must not be negative")
	}
	if key.Year == 0 {
		key.Year = s.now().Year()
	}
	var result *Balance
	err := s.Store.WithTx(ctx, func(st Store) error {
		if _, err := st.GetUser(ctx, key.UserID); err != nil {
			return err
		}
		if _, err := s.Registry.Lookup(key.LeaveTypeID); err != nil {
			return err
		}
		current, err := s.Engine.Ledger.Ensure(ctx, st, key, nil)
		if err != nil {
			return err
		}
		if reason == "" {
			reason = "allocation set by HR"
		}
		b, err := s.Engine.Ledger.ApplyAllocated(ctx, st, key, allocated.Sub(current.AllocatedDays), Entry{
			Type:   generic.TxAdjustment,
			Reason: reason,
			Actor:  actor,
		}, nil)
		result = b
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Info("allocation set",
		zap.String("user_id", key.UserID),
		zap.String("leave_type_id", key.LeaveTypeID),
		zap.Int("year", key.Year),
		zap.String("allocated", allocated.String()))
	return result, nil
}

// CreditCompOff adds days to a user's comp-off balance. Negative days debit it.
func (s *Service) CreditCompOff(ctx context.Context, userID string, days decimal.Decimal, actor, reason string) (*User, error) {
	if days.IsZero() {
		return nil, generic.NewValidationError("days", "must not be zero")
	}
	var user *User
	err := s.Store.WithTx(ctx, func(st Store) error {
		u, err := st.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if reason == "" {
			reason = "comp-off credit"
		}
		if err := s.Engine.moveCompOff(ctx, st, u, days, "", reason, actor); err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ChangeEmploymentTerm updates a user's term and resyncs their accrual rate.
func (s *Service) ChangeEmploymentTerm(ctx context.Context, userID string, term EmploymentTerm) (*User, int, error) {
	if !term.Valid() {
		return nil, 0, generic.NewValidationError("employment_term", "unknown term %q", term)
	}
	var user *User
	var rows int
	err := s.Store.WithTx(ctx, func(st Store) error {
		u, err := st.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		u.EmploymentTerm = term
		if err := st.SaveUser(ctx, *u); err != nil {
			return err
		}
		rows, err = s.rates().SyncUser(ctx, st, *u)
		user = u
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return user, rows, nil
}

// SetTermRate stores the monthly rate for a term and resyncs every user on it.
func (s *Service) SetTermRate(ctx context.Context, term EmploymentTerm, rate decimal.Decimal) (int, error) {
	if !term.Valid() {
		return 0, generic.NewValidationError("employment_term", "unknown term %q", term)
	}
	if rate.IsNegative() {
		return 0, generic.NewValidationError("rate", "must not be negative")
	}
	var rows int
	err := s.Store.WithTx(ctx, func(st Store) error {
		if err := st.SaveTermRate(ctx, term, rate); err != nil {
			return err
		}
		var err error
		rows, err = s.rates().SyncTerm(ctx, st, term)
		return err
	})
	return rows, err
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

func (s *Service) CreateUser(ctx context.Context, u User) (*User, error) {
	if strings.TrimSpace(u.Name) == "" {
		return nil, generic.NewValidationError("name", "name is required")
	}
	if u.EmploymentTerm == "" {
		u.EmploymentTerm = TermFullTime
	}
	if !u.EmploymentTerm.Valid() {
		return nil, generic.NewValidationError("employment_term", "unknown term %q", u.EmploymentTerm)
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Status == "" {
		u.Status = UserActive
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	if err := s.Store.SaveUser(ctx, u); err != nil {
		return nil, err
	}
	return &u, nil
}

// RegisterLeaveType persists lt and only then makes it visible to the engine.
func (s *Service) RegisterLeaveType(ctx context.Context, lt LeaveType) (LeaveType, error) {
	resolved, err := s.Registry.Resolve(lt)
	if err != nil {
		return LeaveType{}, err
	}
	if err := s.Store.SaveLeaveType(ctx, resolved); err != nil {
		return LeaveType{}, fmt.Errorf("save leave type: %w", err)
	}
	return s.Registry.Register(resolved)
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Service) logWarnings(res Result) {
	for _, w := range res.Outcome.Warnings {
		s.Logger.Warn("ledger warning",
			zap.String("application_id", res.Application.ID),
			zap.String("code", string(w.Code)),
			zap.String("message", w.Message))
	}
}

// announce queues the applicant notification and email. Failures are logged
// by the dispatcher and never reach the caller.
func (s *Service) announce(ctx context.Context, app Application, emailType string) {
	if s.Notifier == nil {
		return
	}
	user, err := s.Store.GetUser(ctx, app.UserID)
	if err != nil {
		s.Logger.Warn("announce: user lookup failed", zap.String("user_id", app.UserID), zap.Error(err))
		return
	}
	data := map[string]any{
		"application_id": app.ID,
		"leave_type_id":  app.LeaveTypeID,
		"start_date":     app.StartDate.String(),
		"end_date":       app.EndDate.String(),
		"days_count":     app.DaysCount.String(),
		"status":         string(app.Status),
	}
	if app.SandwichDeductedDays.Valid {
		data["deducted_days"] = app.SandwichDeductedDays.Decimal.String()
	}
	title := fmt.Sprintf("Leave %s", app.Status)
	s.Notifier.Notify(ctx, notify.Notification{
		UserID:  user.ID,
		Title:   title,
		Message: fmt.Sprintf("Your leave from %s to %s is %s.", app.StartDate, app.EndDate, app.Status),
		Type:    emailType,
		Data:    data,
	})
	if user.Email == "" {
		return
	}
	emailData := maps.Clone(data)
	emailData["user_name"] = user.Name
	s.Notifier.EnqueueEmail(ctx, notify.EmailJob{
		ReferenceID: app.ID,
		ModuleType:  notify.ModuleLeave,
		EmailType:   emailType,
		Data:        emailData,
		Recipients:  []notify.Recipient{{Email: user.Email, Name: user.Name, Type: "to"}},
	})
}

func emailTypeFor(s Status) string {
	switch s {
	case StatusApproved:
		return notify.EmailLeaveApproved
	case StatusRejected:
		return notify.EmailLeaveRejected
	case StatusWithdrawn:
		return notify.EmailLeaveWithdrawn
	case StatusCancelled:
		return notify.EmailLeaveCancelled
	}
	return notify.EmailLeaveSubmitted
}

func (s *Service) rates() *RateSync {
	if s.Rates == nil {
		return &RateSync{Logger: s.Logger, Now: s.Now}
	}
	return s.Rates
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}
