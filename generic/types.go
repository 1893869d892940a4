/*
Package generic provides the domain-agnostic kernel of the leave engine.

PURPOSE:
  Types shared by every package: day quantities on decimal.Decimal, the
  calendar Date, the append-only audit journal, the Outcome/Warning result
  and the error taxonomy. Nothing here knows about leave types, sandwich
  rules or schedules.

KEY CONCEPTS IN THIS FILE (types.go):
  - Day quantities: decimal.Decimal, never float64 (0.5 and 0.9 must be exact)
  - Transaction: an immutable journal entry recording one balance change
  - TransactionType: consumption, reversal, adjustment, grant, comp_off

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for every amount of days
  2. Auditability: every mutation of a balance has a journal entry with a
     reason, a reference and an optional idempotency key
  3. Append-only: journal entries are never edited, corrections are new entries

SEE ALSO:
  - journal.go: Journal append with idempotency
  - outcome.go: Outcome and Warning
  - errors.go: Sentinel and structured errors
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DAY QUANTITIES
// =============================================================================

var (
	HalfDay = decimal.RequireFromString("0.5")
	OneDay  = decimal.NewFromInt(1)
	TwoDays = decimal.NewFromInt(2)
)

func Days(value float64) decimal.Decimal { return decimal.NewFromFloat(value) }

func DaysFromInt(value int) decimal.Decimal { return decimal.NewFromInt(int64(value)) }

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// FloorZero returns d, or zero when d is negative.
func FloorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// TRANSACTION - Journal entry for one balance change
// =============================================================================

type TransactionID string

type TransactionType string

const (
	TxConsumption TransactionType = "consumption" // approved leave charged to a ledger row
	TxReversal    TransactionType = "reversal"    // charge restored on withdraw/reject/cancel
	TxAdjustment  TransactionType = "adjustment"  // pair re-pricing, HR corrections
	TxGrant       TransactionType = "grant"       // monthly credit to allocated_days
	TxCompOff     TransactionType = "comp_off"    // movement on the comp-off balance
)

type Transaction struct {
	ID             TransactionID
	UserID         string
	LeaveTypeID    string // empty for comp-off movements
	Year           int    // ledger year, zero for comp-off movements
	Type           TransactionType
	Delta          decimal.Decimal
	ReferenceID    string // application id, run id, ...
	Reason         string
	IdempotencyKey string

	// Audit fields
	CreatedBy string // actor id or "system"
	CreatedAt time.Time
}

// TransactionFilter narrows journal queries. Zero values match everything.
type TransactionFilter struct {
	UserID      string
	ReferenceID string
	Year        int
	Types       []TransactionType
}

func (f TransactionFilter) Matches(tx Transaction) bool {
	if f.UserID != "" && tx.UserID != f.UserID {
		return false
	}
	if f.ReferenceID != "" && tx.ReferenceID != f.ReferenceID {
		return false
	}
	if f.Year != 0 && tx.Year != f.Year {
		return false
	}
	if len(f.Types) > 0 {
		for _, t := range f.Types {
			if t == tx.Type {
				return true
			}
		}
		return false
	}
	return true
}

const ActorSystem = "system"
