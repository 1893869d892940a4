/*
registry.go - Leave type registry

PURPOSE:
  Holds the configured leave types and answers two questions for the engine:
  which category a type belongs to, and which ledger row it charges.

CATEGORY RESOLUTION:
  Types carry an explicit Category. Types stored without one are classified
  by name exactly once, when registered:

    "total leave", "annual leave", "total", "annual"  -> default
    "compensatory off", "comp off"                    -> compensatory_off
    "birthday leave"                                  -> birthday
    anything else                                     -> standard

  The engine only ever compares Category values.

LEDGER ROUTING:
  default bucket            -> its own row
  standard with OwnBalance  -> its own row
  standard without          -> the default bucket's row
  comp-off / birthday       -> no ledger row (handled by the engine)

SEE ALSO:
  - engine.go: branches on Category
  - accrual/allocator.go: credits the default bucket
*/
package leave

import (
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/generic"
)

var categoryNames = map[string]Category{
	"total leave":      CategoryDefault,
	"annual leave":     CategoryDefault,
	"total":            CategoryDefault,
	"annual":           CategoryDefault,
	"compensatory off": CategoryCompOff,
	"comp off":         CategoryCompOff,
	"birthday leave":   CategoryBirthday,
}

// Classify maps a leave type name to its category.
func Classify(name string) Category {
	if c, ok := categoryNames[strings.ToLower(strings.TrimSpace(name))]; ok {
		return c
	}
	return CategoryStandard
}

type Registry struct {
	mu        sync.RWMutex
	byID      map[string]LeaveType
	defaultID string
}

// NewRegistry builds a registry. Exactly one default bucket is required.
func NewRegistry(types []LeaveType) (*Registry, error) {
	r := &Registry{byID: make(map[string]LeaveType)}
	for _, t := range types {
		if _, err := r.Register(t); err != nil {
			return nil, err
		}
	}
	if r.defaultID == "" {
		return nil, generic.ErrNoDefaultBucket
	}
	return r, nil
}

// Register adds or replaces a leave type and returns it with its category resolved.
func (r *Registry) Register(t LeaveType) (LeaveType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.resolve(t)
	if err != nil {
		return LeaveType{}, err
	}
	if t.Category == CategoryDefault {
		r.defaultID = t.ID
	}
	r.byID[t.ID] = t
	return t, nil
}

// Resolve returns t as Register would store it, without registering it.
func (r *Registry) Resolve(t LeaveType) (LeaveType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolve(t)
}

func (r *Registry) resolve(t LeaveType) (LeaveType, error) {
	if t.ID == "" {
		return LeaveType{}, generic.NewValidationError("id", "leave type id is required")
	}
	if strings.TrimSpace(t.Name) == "" {
		return LeaveType{}, generic.NewValidationError("name", "leave type name is required")
	}
	if t.Category == "" {
		t.Category = Classify(t.Name)
	}
	switch t.Category {
	case CategoryDefault, CategoryCompOff, CategoryBirthday, CategoryStandard:
	default:
		return LeaveType{}, generic.NewValidationError("category", "unknown category %q", t.Category)
	}
	if t.MaxDaysPerYear.IsNegative() {
		return LeaveType{}, generic.NewValidationError("max_days_per_year", "must not be negative")
	}
	if r.defaultID != "" && t.ID == r.defaultID && t.Category != CategoryDefault {
		return LeaveType{}, generic.NewValidationError("category",
			"%s is the default bucket and must stay %s", t.ID, CategoryDefault)
	}
	if t.Category == CategoryDefault {
		if r.defaultID != "" && r.defaultID != t.ID {
			return LeaveType{}, generic.NewValidationError("category",
				"default bucket already configured as %s", r.defaultID)
		}
		t.DeductsBalance = true
	}
	if t.Category != CategoryStandard {
		t.OwnBalance = false
	}
	return t, nil
}

func (r *Registry) Get(id string) (LeaveType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	return t, ok
}

// Lookup is Get with a NotFound error.
func (r *Registry) Lookup(id string) (LeaveType, error) {
	t, ok := r.Get(id)
	if !ok {
		return LeaveType{}, generic.NotFound("leave_type", id)
	}
	return t, nil
}

// Default returns the pooled bucket.
func (r *Registry) Default() LeaveType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[r.defaultID]
}

// LedgerTypeFor returns the leave type id whose ledger row t charges.
func (r *Registry) LedgerTypeFor(t LeaveType) string {
	if t.Category == CategoryDefault || (t.Category == CategoryStandard && t.OwnBalance) {
		return t.ID
	}
	return r.Default().ID
}

// List returns all types ordered by name.
func (r *Registry) List() []LeaveType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]LeaveType, 0, len(r.byID))
	for _, t := range r.byID {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DefaultLeaveTypes is the reference data a fresh database is seeded with.
func DefaultLeaveTypes() []LeaveType {
	return []LeaveType{
		{ID: "annual", Name: "Annual Leave", MaxDaysPerYear: decimal.NewFromInt(24), CarryForward: true, RequiresApproval: true, DeductsBalance: true},
		{ID: "sick", Name: "Sick Leave", MaxDaysPerYear: decimal.NewFromInt(12), RequiresApproval: true, DeductsBalance: true, OwnBalance: true},
		{ID: "casual", Name: "Casual Leave", RequiresApproval: true, DeductsBalance: true},
		{ID: "comp-off", Name: "Compensatory Off", RequiresApproval: true, DeductsBalance: true},
		{ID: "birthday", Name: "Birthday Leave", MaxDaysPerYear: decimal.NewFromInt(1), RequiresApproval: false},
		{ID: "unpaid", Name: "Unpaid Leave", RequiresApproval: true, DeductsBalance: false},
	}
}
