// Package memory provides an in-memory Store (for testing/dev).
package memory

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/accrual"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/notify"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Store keeps every table in maps guarded by one mutex. WithTx holds the
// mutex for the whole transaction and restores a snapshot on error.
type Store struct {
	mu sync.RWMutex
	st *state
}

var (
	_ leave.TxStore         = (*Store)(nil)
	_ accrual.SettingsStore = (*Store)(nil)
	_ notify.Sink           = (*Store)(nil)
	_ notify.Reader         = (*Store)(nil)
)

func New() *Store {
	return &Store{st: newState()}
}

// WithTx executes fn within a transaction.
// For the memory store this is simulated with a snapshot + rollback on error.
func (m *Store) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(&txView{st: m.st}); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

// =============================================================================
// STATE
// =============================================================================

type state struct {
	users         map[string]leave.User
	leaveTypes    map[string]leave.LeaveType
	applications  map[string]leave.Application
	balances      map[leave.BalanceKey]leave.Balance
	rates         map[leave.EmploymentTerm]decimal.Decimal
	transactions  []generic.Transaction
	idempotency   map[string]bool
	settings      *accrual.Settings
	runs          []accrual.Run
	emails        []notify.EmailJob
	notifications []notify.Notification
}

func newState() *state {
	return &state{
		users:        make(map[string]leave.User),
		leaveTypes:   make(map[string]leave.LeaveType),
		applications: make(map[string]leave.Application),
		balances:     make(map[leave.BalanceKey]leave.Balance),
		rates:        make(map[leave.EmploymentTerm]decimal.Decimal),
		idempotency:  make(map[string]bool),
	}
}

// clone copies every table. Records are values, so a shallow map copy is
// enough except for the settings pointer.
func (s *state) clone() *state {
	c := &state{
		users:         maps.Clone(s.users),
		leaveTypes:    maps.Clone(s.leaveTypes),
		applications:  maps.Clone(s.applications),
		balances:      maps.Clone(s.balances),
		rates:         maps.Clone(s.rates),
		transactions:  append([]generic.Transaction(nil), s.transactions...),
		idempotency:   maps.Clone(s.idempotency),
		runs:          append([]accrual.Run(nil), s.runs...),
		emails:        append([]notify.EmailJob(nil), s.emails...),
		notifications: append([]notify.Notification(nil), s.notifications...),
	}
	if s.settings != nil {
		settings := *s.settings
		c.settings = &settings
	}
	return c
}

// --- users ---

func (s *state) getUser(id string) (*leave.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, generic.NotFound("user", id)
	}
	return &u, nil
}

func (s *state) listUsers(keep func(leave.User) bool) []leave.User {
	out := make([]leave.User, 0, len(s.users))
	for _, u := range s.users {
		if keep == nil || keep(u) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// --- leave types ---

func (s *state) listLeaveTypes() []leave.LeaveType {
	out := make([]leave.LeaveType, 0, len(s.leaveTypes))
	for _, lt := range s.leaveTypes {
		out = append(out, lt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// --- applications ---

func (s *state) getApplication(id string) (*leave.Application, error) {
	a, ok := s.applications[id]
	if !ok {
		return nil, generic.NotFound("application", id)
	}
	return &a, nil
}

func (s *state) listApplications(f leave.ApplicationFilter) []leave.Application {
	var out []leave.Application
	for _, a := range s.applications {
		if f.Matches(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].AppliedAt.Before(out[j].AppliedAt)
	})
	return out
}

// --- balances ---

func (s *state) getBalance(key leave.BalanceKey) *leave.Balance {
	b, ok := s.balances[key]
	if !ok {
		return nil
	}
	return &b
}

func (s *state) createBalance(b leave.Balance) bool {
	if _, ok := s.balances[b.BalanceKey]; ok {
		return false
	}
	s.balances[b.BalanceKey] = b
	return true
}

func (s *state) listBalances(f leave.BalanceFilter) []leave.Balance {
	var out []leave.Balance
	for _, b := range s.balances {
		if f.Matches(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].LeaveTypeID < out[j].LeaveTypeID
	})
	return out
}

// --- journal ---

func (s *state) appendTransaction(tx generic.Transaction) error {
	if tx.IdempotencyKey != "" {
		if s.idempotency[tx.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
		s.idempotency[tx.IdempotencyKey] = true
	}
	s.transactions = append(s.transactions, tx)
	return nil
}

func (s *state) listTransactions(f generic.TransactionFilter) []generic.Transaction {
	var out []generic.Transaction
	for _, tx := range s.transactions {
		if f.Matches(tx) {
			out = append(out, tx)
		}
	}
	return out
}

// =============================================================================
// STORE METHODS (locking)
// =============================================================================

func (m *Store) GetUser(_ context.Context, id string) (*leave.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.getUser(id)
}

func (m *Store) ListUsers(_ context.Context) ([]leave.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listUsers(nil), nil
}

func (m *Store) ListActiveUsers(_ context.Context) ([]leave.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listUsers(leave.User.IsActive), nil
}

func (m *Store) ListUsersByTerm(_ context.Context, term leave.EmploymentTerm) ([]leave.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listUsers(func(u leave.User) bool { return u.EmploymentTerm == term }), nil
}

func (m *Store) SaveUser(_ context.Context, u leave.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.users[u.ID] = u
	return nil
}

func (m *Store) ListLeaveTypes(_ context.Context) ([]leave.LeaveType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listLeaveTypes(), nil
}

func (m *Store) SaveLeaveType(_ context.Context, lt leave.LeaveType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.leaveTypes[lt.ID] = lt
	return nil
}

func (m *Store) GetApplication(_ context.Context, id string) (*leave.Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.getApplication(id)
}

func (m *Store) SaveApplication(_ context.Context, a leave.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.applications[a.ID] = a
	return nil
}

func (m *Store) ListApplications(_ context.Context, f leave.ApplicationFilter) ([]leave.Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listApplications(f), nil
}

func (m *Store) GetBalance(_ context.Context, key leave.BalanceKey) (*leave.Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.getBalance(key), nil
}

func (m *Store) SaveBalance(_ context.Context, b leave.Balance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.balances[b.BalanceKey] = b
	return nil
}

func (m *Store) CreateBalance(_ context.Context, b leave.Balance) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.createBalance(b), nil
}

func (m *Store) ListBalances(_ context.Context, f leave.BalanceFilter) ([]leave.Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listBalances(f), nil
}

func (m *Store) GetTermRate(_ context.Context, term leave.EmploymentTerm) (decimal.Decimal, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.st.rates[term]
	return r, ok, nil
}

func (m *Store) SaveTermRate(_ context.Context, term leave.EmploymentTerm, rate decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.rates[term] = rate
	return nil
}

func (m *Store) ListTermRates(_ context.Context) (map[leave.EmploymentTerm]decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.st.rates), nil
}

func (m *Store) AppendTransaction(_ context.Context, tx generic.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.appendTransaction(tx)
}

func (m *Store) TransactionExists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.idempotency[key], nil
}

func (m *Store) ListTransactions(_ context.Context, f generic.TransactionFilter) ([]generic.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listTransactions(f), nil
}

func (m *Store) GetSettings(_ context.Context) (*accrual.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.st.settings == nil {
		return nil, nil
	}
	s := *m.st.settings
	return &s, nil
}

func (m *Store) SaveSettings(_ context.Context, s accrual.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.settings = &s
	return nil
}

func (m *Store) SaveRun(_ context.Context, run accrual.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.st.runs {
		if m.st.runs[i].ID == run.ID {
			m.st.runs[i] = run
			return nil
		}
	}
	m.st.runs = append(m.st.runs, run)
	return nil
}

func (m *Store) ListRuns(_ context.Context, limit int) ([]accrual.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []accrual.Run
	for i := len(m.st.runs) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, m.st.runs[i])
	}
	return out, nil
}

func (m *Store) EnqueueEmail(_ context.Context, job notify.EmailJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.emails = append(m.st.emails, job)
	return nil
}

func (m *Store) CreateNotification(_ context.Context, n notify.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.notifications = append(m.st.notifications, n)
	return nil
}

func (m *Store) ListNotifications(_ context.Context, userID string, limit int) ([]notify.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []notify.Notification
	for i := len(m.st.notifications) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		if n := m.st.notifications[i]; n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *Store) ListPendingEmails(_ context.Context, limit int) ([]notify.EmailJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []notify.EmailJob
	for _, job := range m.st.emails {
		if limit > 0 && len(out) == limit {
			break
		}
		if job.Status == notify.StatusPending {
			out = append(out, job)
		}
	}
	return out, nil
}

// =============================================================================
// TRANSACTIONAL VIEW (lock already held by WithTx)
// =============================================================================

type txView struct {
	st *state
}

func (tv *txView) GetUser(_ context.Context, id string) (*leave.User, error) {
	return tv.st.getUser(id)
}

func (tv *txView) ListUsers(_ context.Context) ([]leave.User, error) {
	return tv.st.listUsers(nil), nil
}

func (tv *txView) ListActiveUsers(_ context.Context) ([]leave.User, error) {
	return tv.st.listUsers(leave.User.IsActive), nil
}

func (tv *txView) ListUsersByTerm(_ context.Context, term leave.EmploymentTerm) ([]leave.User, error) {
	return tv.st.listUsers(func(u leave.User) bool { return u.EmploymentTerm == term }), nil
}

func (tv *txView) SaveUser(_ context.Context, u leave.User) error {
	tv.st.users[u.ID] = u
	return nil
}

func (tv *txView) ListLeaveTypes(_ context.Context) ([]leave.LeaveType, error) {
	return tv.st.listLeaveTypes(), nil
}

func (tv *txView) SaveLeaveType(_ context.Context, lt leave.LeaveType) error {
	tv.st.leaveTypes[lt.ID] = lt
	return nil
}

func (tv *txView) GetApplication(_ context.Context, id string) (*leave.Application, error) {
	return tv.st.getApplication(id)
}

func (tv *txView) SaveApplication(_ context.Context, a leave.Application) error {
	tv.st.applications[a.ID] = a
	return nil
}

func (tv *txView) ListApplications(_ context.Context, f leave.ApplicationFilter) ([]leave.Application, error) {
	return tv.st.listApplications(f), nil
}

func (tv *txView) GetBalance(_ context.Context, key leave.BalanceKey) (*leave.Balance, error) {
	return tv.st.getBalance(key), nil
}

func (tv *txView) SaveBalance(_ context.Context, b leave.Balance) error {
	tv.st.balances[b.BalanceKey] = b
	return nil
}

func (tv *txView) CreateBalance(_ context.Context, b leave.Balance) (bool, error) {
	return tv.st.createBalance(b), nil
}

func (tv *txView) ListBalances(_ context.Context, f leave.BalanceFilter) ([]leave.Balance, error) {
	return tv.st.listBalances(f), nil
}

func (tv *txView) GetTermRate(_ context.Context, term leave.EmploymentTerm) (decimal.Decimal, bool, error) {
	r, ok := tv.st.rates[term]
	return r, ok, nil
}

func (tv *txView) SaveTermRate(_ context.Context, term leave.EmploymentTerm, rate decimal.Decimal) error {
	tv.st.rates[term] = rate
	return nil
}

func (tv *txView) ListTermRates(_ context.Context) (map[leave.EmploymentTerm]decimal.Decimal, error) {
	return maps.Clone(tv.st.rates), nil
}

func (tv *txView) AppendTransaction(_ context.Context, tx generic.Transaction) error {
	return tv.st.appendTransaction(tx)
}

func (tv *txView) TransactionExists(_ context.Context, key string) (bool, error) {
	return tv.st.idempotency[key], nil
}

func (tv *txView) ListTransactions(_ context.Context, f generic.TransactionFilter) ([]generic.Transaction, error) {
	return tv.st.listTransactions(f), nil
}
