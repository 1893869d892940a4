/*
handlers.go - HTTP API handlers for the leave engine

PURPOSE:
  Exposes leave.Service and the monthly allocator via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Users:
    GET    /api/users                         List users
    POST   /api/users                         Create user
    GET    /api/users/{id}                    Get user
    PUT    /api/users/{id}/employment-term    Change term (resyncs rates)
    POST   /api/users/{id}/comp-off           Credit/debit comp-off days
    GET    /api/users/{id}/balances?year=     Ledger rows for a year
    GET    /api/users/{id}/transactions       Balance journal
    GET    /api/users/{id}/notifications      In-app notifications

  Leave types:
    GET    /api/leave-types                   List registry
    POST   /api/leave-types                   Register a type

  Applications:
    GET    /api/applications?user_id=&status= List
    POST   /api/applications                  Submit
    GET    /api/applications/{id}             Get
    POST   /api/applications/{id}/{action}    approve|reject|withdraw|cancel

  Admin:
    PUT    /api/admin/balances                Set allocated days (HR)
    GET    /api/admin/allocation-settings     Read schedule
    PUT    /api/admin/allocation-settings     Update schedule
    POST   /api/admin/allocation/run          Manual monthly credit
    GET    /api/admin/allocation/runs         Run history
    GET    /api/admin/term-rates              Monthly rate per term
    PUT    /api/admin/term-rates/{term}       Set a term's rate
    GET    /api/admin/email-queue             Pending outbox emails

REQUEST FLOW:
  1. Decode JSON body
  2. Validate tags (go-playground/validator)
  3. Call leave.Service / accrual.Allocator
  4. Serialize response DTO
  5. Map errors to status codes

ERROR HANDLING:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Illegal transition, duplicate idempotency key
  - 500: Internal errors (logged)

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/warp/leave-engine/accrual"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/notify"
	"go.uber.org/zap"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Service   *leave.Service
	Allocator *accrual.Allocator
	Store     leave.Store
	Outbox    notify.Reader
	Logger    *zap.Logger
	validate  *validator.Validate
}

func NewHandler(svc *leave.Service, allocator *accrual.Allocator, outbox notify.Reader, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Service:   svc,
		Allocator: allocator,
		Store:     svc.Store,
		Outbox:    outbox,
		Logger:    logger.Named("api"),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

// =============================================================================
// USERS
// =============================================================================

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.ListUsers(r.Context())
	if err != nil {
		h.writeDomainError(w, "failed to list users", err)
		return
	}
	out := make([]UserDTO, len(users))
	for i, u := range users {
		out[i] = toUserDTO(u)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	u := leave.User{
		ID:             req.ID,
		Name:           req.Name,
		Email:          req.Email,
		EmploymentTerm: leave.EmploymentTerm(req.EmploymentTerm),
	}
	if req.BirthDate != "" {
		d, err := generic.ParseDate(req.BirthDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid birth_date", err)
			return
		}
		u.BirthDate = d
	}
	created, err := h.Service.CreateUser(r.Context(), u)
	if err != nil {
		h.writeDomainError(w, "failed to create user", err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(*created))
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.Store.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "failed to get user", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*u))
}

func (h *Handler) ChangeEmploymentTerm(w http.ResponseWriter, r *http.Request) {
	var req ChangeTermRequest
	if !h.decode(w, r, &req) {
		return
	}
	u, rows, err := h.Service.ChangeEmploymentTerm(r.Context(), chi.URLParam(r, "id"), leave.EmploymentTerm(req.EmploymentTerm))
	if err != nil {
		h.writeDomainError(w, "failed to change employment term", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":         toUserDTO(*u),
		"rows_updated": rows,
	})
}

func (h *Handler) CreditCompOff(w http.ResponseWriter, r *http.Request) {
	var req CompOffRequest
	if !h.decode(w, r, &req) {
		return
	}
	u, err := h.Service.CreditCompOff(r.Context(), chi.URLParam(r, "id"), req.Days, actorOr(req.ActorID), req.Reason)
	if err != nil {
		h.writeDomainError(w, "failed to credit comp-off", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*u))
}

func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	year := 0
	if raw := r.URL.Query().Get("year"); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid year", err)
			return
		}
		year = y
	}
	balances, err := h.Service.Balances(r.Context(), chi.URLParam(r, "id"), year)
	if err != nil {
		h.writeDomainError(w, "failed to get balances", err)
		return
	}
	out := make([]BalanceDTO, len(balances))
	for i, b := range balances {
		out[i] = toBalanceDTO(b)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.Service.Transactions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "failed to get transactions", err)
		return
	}
	out := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		out[i] = toTransactionDTO(tx)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	ns, err := h.Outbox.ListNotifications(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		h.writeDomainError(w, "failed to list notifications", err)
		return
	}
	if ns == nil {
		ns = []notify.Notification{}
	}
	writeJSON(w, http.StatusOK, ns)
}

// =============================================================================
// LEAVE TYPES
// =============================================================================

func (h *Handler) ListLeaveTypes(w http.ResponseWriter, r *http.Request) {
	types := h.Service.Registry.List()
	out := make([]LeaveTypeDTO, len(types))
	for i, lt := range types {
		out[i] = toLeaveTypeDTO(lt)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateLeaveType(w http.ResponseWriter, r *http.Request) {
	var req CreateLeaveTypeRequest
	if !h.decode(w, r, &req) {
		return
	}
	lt := leave.LeaveType{
		ID:               req.ID,
		Name:             req.Name,
		Category:         leave.Category(req.Category),
		MaxDaysPerYear:   req.MaxDaysPerYear,
		CarryForward:     req.CarryForward,
		RequiresApproval: true,
		DeductsBalance:   true,
		OwnBalance:       req.OwnBalance,
	}
	if lt.Category == "" {
		lt.Category = leave.Classify(req.Name)
	}
	if req.RequiresApproval != nil {
		lt.RequiresApproval = *req.RequiresApproval
	}
	if req.DeductsBalance != nil {
		lt.DeductsBalance = *req.DeductsBalance
	}
	registered, err := h.Service.RegisterLeaveType(r.Context(), lt)
	if err != nil {
		h.writeDomainError(w, "failed to register leave type", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLeaveTypeDTO(registered))
}

// =============================================================================
// APPLICATIONS
// =============================================================================

func (h *Handler) ListApplications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := leave.ApplicationFilter{
		UserID:      q.Get("user_id"),
		LeaveTypeID: q.Get("leave_type_id"),
	}
	if raw := q.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			st := leave.Status(strings.TrimSpace(s))
			if !st.Valid() {
				writeError(w, http.StatusBadRequest, "invalid status", errors.New(string(st)))
				return
			}
			filter.Statuses = append(filter.Statuses, st)
		}
	}
	apps, err := h.Service.List(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, "failed to list applications", err)
		return
	}
	out := make([]ApplicationDTO, len(apps))
	for i, a := range apps {
		out[i] = toApplicationDTO(a)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	var req SubmitApplicationRequest
	if !h.decode(w, r, &req) {
		return
	}
	start, err := generic.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_date", err)
		return
	}
	in := leave.SubmitInput{
		UserID:        req.UserID,
		LeaveTypeID:   req.LeaveTypeID,
		StartDate:     start,
		DaysCount:     req.DaysCount,
		IsHalfDay:     req.IsHalfDay,
		HalfDayPeriod: leave.HalfDayPeriod(req.HalfDayPeriod),
		LOPDays:       req.LOPDays,
		Reason:        req.Reason,
	}
	if req.EndDate != "" {
		end, err := generic.ParseDate(req.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end_date", err)
			return
		}
		in.EndDate = end
	}
	res, err := h.Service.Submit(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, "failed to submit application", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransitionResponse(res))
}

func (h *Handler) GetApplication(w http.ResponseWriter, r *http.Request) {
	app, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "failed to get application", err)
		return
	}
	writeJSON(w, http.StatusOK, toApplicationDTO(*app))
}

func (h *Handler) ApproveApplication(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, leave.StatusApproved)
}

func (h *Handler) RejectApplication(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, leave.StatusRejected)
}

func (h *Handler) WithdrawApplication(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, leave.StatusWithdrawn)
}

func (h *Handler) CancelApplication(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, leave.StatusCancelled)
}

// transition accepts an empty body: actor and reason are optional.
func (h *Handler) transition(w http.ResponseWriter, r *http.Request, to leave.Status) {
	var req TransitionRequest
	if r.ContentLength != 0 {
		if !h.decode(w, r, &req) {
			return
		}
	}
	res, err := h.Service.Transition(r.Context(), chi.URLParam(r, "id"), to, actorOr(req.ActorID), req.Reason)
	if err != nil {
		h.writeDomainError(w, "failed to change application status", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransitionResponse(res))
}

// =============================================================================
// ADMIN
// =============================================================================

func (h *Handler) SetAllocation(w http.ResponseWriter, r *http.Request) {
	var req SetAllocationRequest
	if !h.decode(w, r, &req) {
		return
	}
	key := leave.BalanceKey{UserID: req.UserID, LeaveTypeID: req.LeaveTypeID, Year: req.Year}
	b, err := h.Service.SetAllocation(r.Context(), key, req.AllocatedDays, actorOr(req.ActorID), req.Reason)
	if err != nil {
		h.writeDomainError(w, "failed to set allocation", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(*b))
}

func (h *Handler) GetAllocationSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.Allocator.Settings.GetSettings(r.Context())
	if err != nil {
		h.writeDomainError(w, "failed to load allocation settings", err)
		return
	}
	if s == nil {
		writeError(w, http.StatusNotFound, "allocation settings not configured", nil)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsDTO(*s))
}

func (h *Handler) UpdateAllocationSettings(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if !h.decode(w, r, &req) {
		return
	}
	in := accrual.Settings{IsActive: req.IsActive, CronSchedule: req.CronSchedule}
	if req.EndDate != "" {
		d, err := generic.ParseDate(req.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end_date", err)
			return
		}
		in.EndDate = d
	}
	s, err := h.Allocator.UpdateSettings(r.Context(), in, actorOr(req.ActorID))
	if err != nil {
		h.writeDomainError(w, "failed to update allocation settings", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsDTO(*s))
}

func (h *Handler) RunAllocation(w http.ResponseWriter, r *http.Request) {
	report, err := h.Allocator.RunManual(r.Context())
	if err != nil {
		h.writeDomainError(w, "allocation run failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(report))
}

func (h *Handler) ListAllocationRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Allocator.Settings.ListRuns(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		h.writeDomainError(w, "failed to list allocation runs", err)
		return
	}
	out := make([]AllocationRunDTO, len(runs))
	for i, run := range runs {
		out[i] = toRunDTO(run)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) ListTermRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.Store.ListTermRates(r.Context())
	if err != nil {
		h.writeDomainError(w, "failed to list term rates", err)
		return
	}
	out := make([]TermRateDTO, 0, len(rates))
	for _, term := range leave.AllTerms() {
		if rate, ok := rates[term]; ok {
			out = append(out, TermRateDTO{Term: string(term), Rate: rate})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) SetTermRate(w http.ResponseWriter, r *http.Request) {
	var req SetTermRateRequest
	if !h.decode(w, r, &req) {
		return
	}
	term := leave.EmploymentTerm(chi.URLParam(r, "term"))
	rows, err := h.Service.SetTermRate(r.Context(), term, req.Rate)
	if err != nil {
		h.writeDomainError(w, "failed to set term rate", err)
		return
	}
	writeJSON(w, http.StatusOK, TermRateResponse{Term: string(term), Rate: req.Rate, RowsUpdated: rows})
}

func (h *Handler) ListPendingEmails(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.Outbox.ListPendingEmails(r.Context(), queryInt(r, "limit", 100))
	if err != nil {
		h.writeDomainError(w, "failed to list email queue", err)
		return
	}
	if jobs == nil {
		jobs = []notify.EmailJob{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads and validates a JSON body, writing a 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed", describeValidation(err))
		return false
	}
	return true
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, len(verrs))
	for i, fe := range verrs {
		parts[i] = fe.Field() + ": failed " + fe.Tag()
		if fe.Param() != "" {
			parts[i] += "=" + fe.Param()
		}
	}
	return errors.New(strings.Join(parts, "; "))
}

// writeDomainError maps engine errors onto HTTP status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case generic.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.Logger.Error(message, zap.Error(err))
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func actorOr(actor string) string {
	if actor == "" {
		return generic.ActorSystem
	}
	return actor
}
