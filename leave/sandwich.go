/*
sandwich.go - Sandwich leave pricing

PURPOSE:
  Decides how many balance days an approved leave actually costs. The
  calculator is pure: same input, same Deduction. The engine looks up the
  pair sibling and passes it in.

RULES (first match wins):
  1. Half day                              -> 0.5
  2. Single-day Friday or Monday:
       no approved single-day leave on the
       paired day (Fri+3 / Mon-3)          -> 2.0  (the weekend is sandwiched)
       paired day already approved         -> 1.0  (sibling re-priced to 1.0)
  3. Multi-day range containing Sat/Sun    -> calendar days, inclusive
  4. Otherwise                             -> days_count

  The unpaid LOP portion is then subtracted, floored at zero.

EXAMPLE:
  Friday alone            = 2.0
  Friday then Monday      = 1.0 + 1.0 (Friday re-priced from 2.0)
  Friday to Monday range  = 4.0
  Mon to Wed              = 3.0
*/
package leave

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/generic"
)

type Rule string

const (
	RuleHalfDay      Rule = "half_day"
	RuleLoneBridge   Rule = "lone_bridge_day"
	RulePairedBridge Rule = "paired_bridge_day"
	RuleWeekendSpan  Rule = "weekend_span"
	RuleStandard     Rule = "standard"
)

// IsSandwich reports whether the rule charges days around a weekend.
func (r Rule) IsSandwich() bool {
	return r == RuleLoneBridge || r == RulePairedBridge || r == RuleWeekendSpan
}

type DeductionInput struct {
	StartDate generic.Date
	EndDate   generic.Date
	DaysCount decimal.Decimal
	IsHalfDay bool
	LOPDays   decimal.Decimal

	// Sibling is the approved single-day leave on the paired day, if any.
	Sibling *Application
}

type Deduction struct {
	Days       decimal.Decimal // what the balance is charged, after LOP
	Base       decimal.Decimal // before LOP
	Rule       Rule
	Reason     string
	IsSandwich bool

	// RepriceSibling is set when the sibling was priced as a lone bridge day
	// and must drop by one day now that the pair is complete.
	RepriceSibling bool
}

// PairedDay returns the other half of a Friday/Monday pair.
func PairedDay(d generic.Date) (generic.Date, bool) {
	switch {
	case d.IsFriday():
		return d.AddDays(3), true
	case d.IsMonday():
		return d.AddDays(-3), true
	}
	return generic.Date{}, false
}

// IsBridgeCandidate reports whether a leave is priced by the pair rule.
func IsBridgeCandidate(start, end generic.Date, halfDay bool) bool {
	if halfDay || !start.Equal(end) {
		return false
	}
	_, ok := PairedDay(start)
	return ok
}

func ComputeDeduction(in DeductionInput) Deduction {
	d := price(in)
	d.Base = d.Days
	if in.LOPDays.IsPositive() {
		d.Days = generic.FloorZero(d.Days.Sub(in.LOPDays))
		d.Reason = fmt.Sprintf("%s; %s LOP day(s) excluded", d.Reason, in.LOPDays)
	}
	return d
}

func price(in DeductionInput) Deduction {
	if in.IsHalfDay {
		return Deduction{Days: generic.HalfDay, Rule: RuleHalfDay, Reason: "half day"}
	}

	if IsBridgeCandidate(in.StartDate, in.EndDate, in.IsHalfDay) {
		paired, _ := PairedDay(in.StartDate)
		day := in.StartDate.Weekday()
		if in.Sibling == nil {
			return Deduction{
				Days:       generic.TwoDays,
				Rule:       RuleLoneBridge,
				Reason:     fmt.Sprintf("%s %s adjacent to weekend with no leave on %s: charged 2 days", day, in.StartDate, paired),
				IsSandwich: true,
			}
		}
		return Deduction{
			Days:           generic.OneDay,
			Rule:           RulePairedBridge,
			Reason:         fmt.Sprintf("%s %s paired with approved leave on %s: charged 1 day", day, in.StartDate, paired),
			IsSandwich:     true,
			RepriceSibling: in.Sibling.PricedAsLoneBridge(),
		}
	}

	if !in.StartDate.Equal(in.EndDate) && generic.SpansWeekend(in.StartDate, in.EndDate) {
		n := generic.DaysInclusive(in.StartDate, in.EndDate)
		return Deduction{
			Days:       generic.DaysFromInt(n),
			Rule:       RuleWeekendSpan,
			Reason:     fmt.Sprintf("%s to %s spans a weekend: %d calendar days", in.StartDate, in.EndDate, n),
			IsSandwich: true,
		}
	}

	return Deduction{
		Days:   in.DaysCount,
		Rule:   RuleStandard,
		Reason: fmt.Sprintf("%s day(s)", in.DaysCount),
	}
}
