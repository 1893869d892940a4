package generic

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// OUTCOME - Result of a ledger side-effect, with non-fatal warnings
// =============================================================================

// WarningCode classifies a soft anomaly. A warning never blocks the status
// change that produced it; a supervising layer decides what to surface.
type WarningCode string

const (
	WarnBalanceRowCreated    WarningCode = "balance_row_created"
	WarnInsufficientCompOff  WarningCode = "insufficient_comp_off"
	WarnCompOffFailed        WarningCode = "comp_off_failed"
	WarnOverdrawn            WarningCode = "balance_overdrawn"
	WarnSiblingNotFound      WarningCode = "pair_sibling_not_found"
	WarnCachedDeductionEmpty WarningCode = "cached_deduction_empty"
	WarnMissingSettings      WarningCode = "allocation_settings_missing"
	WarnMissingTermRate      WarningCode = "employment_term_rate_missing"
)

type Warning struct {
	Code    WarningCode
	Message string
}

func (w Warning) String() string { return fmt.Sprintf("%s: %s", w.Code, w.Message) }

type Outcome struct {
	Deducted decimal.Decimal // charged to a ledger row or the comp-off balance
	Restored decimal.Decimal // given back, including pair re-pricing
	Warnings []Warning
}

func (o *Outcome) Warn(code WarningCode, format string, args ...any) {
	o.Warnings = append(o.Warnings, Warning{Code: code, Message: fmt.Sprintf(format, args...)})
}

func (o *Outcome) Merge(other Outcome) {
	o.Deducted = o.Deducted.Add(other.Deducted)
	o.Restored = o.Restored.Add(other.Restored)
	o.Warnings = append(o.Warnings, other.Warnings...)
}

func (o Outcome) HasWarnings() bool { return len(o.Warnings) > 0 }

func (o Outcome) HasWarning(code WarningCode) bool {
	for _, w := range o.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}
