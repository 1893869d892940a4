package leave

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// STORE INTERFACES
// =============================================================================

type UserStore interface {
	// GetUser returns a NotFoundError when the user does not exist.
	GetUser(ctx context.Context, id string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	ListActiveUsers(ctx context.Context) ([]User, error)
	ListUsersByTerm(ctx context.Context, term EmploymentTerm) ([]User, error)
	SaveUser(ctx context.Context, user User) error
}

type LeaveTypeStore interface {
	ListLeaveTypes(ctx context.Context) ([]LeaveType, error)
	SaveLeaveType(ctx context.Context, lt LeaveType) error
}

type ApplicationStore interface {
	// GetApplication returns a NotFoundError when the application does not exist.
	GetApplication(ctx context.Context, id string) (*Application, error)
	SaveApplication(ctx context.Context, app Application) error
	// ListApplications returns matches ordered by start date, then applied_at.
	ListApplications(ctx context.Context, filter ApplicationFilter) ([]Application, error)
}

type BalanceStore interface {
	// GetBalance returns (nil, nil) when no row exists for key.
	// Inside WithTx the row is locked until the transaction ends.
	GetBalance(ctx context.Context, key BalanceKey) (*Balance, error)
	// SaveBalance inserts or replaces the row for b.BalanceKey.
	SaveBalance(ctx context.Context, b Balance) error
	// CreateBalance inserts b only when no row exists for its key and
	// reports whether it did. An existing row is never touched.
	CreateBalance(ctx context.Context, b Balance) (bool, error)
	ListBalances(ctx context.Context, filter BalanceFilter) ([]Balance, error)
}

type RateStore interface {
	// GetTermRate reports false when no rate is configured for term.
	GetTermRate(ctx context.Context, term EmploymentTerm) (decimal.Decimal, bool, error)
	SaveTermRate(ctx context.Context, term EmploymentTerm, rate decimal.Decimal) error
	ListTermRates(ctx context.Context) (map[EmploymentTerm]decimal.Decimal, error)
}

// Store is everything the engine reads and writes.
type Store interface {
	UserStore
	LeaveTypeStore
	ApplicationStore
	BalanceStore
	RateStore
	generic.JournalStore
}

// TxStore runs fn atomically. If fn returns an error every write made
// through the Store passed to fn is rolled back.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
