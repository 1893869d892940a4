package leave_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// March 2026: 2 Mon, 3 Tue, 4 Wed, 5 Thu, 6 Fri, 7 Sat, 8 Sun, 9 Mon.
var (
	tue     = generic.MustParseDate("2026-03-03")
	wed     = generic.MustParseDate("2026-03-04")
	thu     = generic.MustParseDate("2026-03-05")
	fri     = generic.MustParseDate("2026-03-06")
	sat     = generic.MustParseDate("2026-03-07")
	nextMon = generic.MustParseDate("2026-03-09")
	nextWed = generic.MustParseDate("2026-03-11")
)

func days(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeDeduction(t *testing.T) {
	chargedTwo := &leave.Application{StartDate: fri, EndDate: fri}
	chargedTwo.CachePricing(days("2"), leave.RuleLoneBridge, "lone")
	loneWithLOP := &leave.Application{StartDate: fri, EndDate: fri, LOPDays: days("0.5")}
	loneWithLOP.CachePricing(days("1.5"), leave.RuleLoneBridge, "lone, 0.5 LOP")
	chargedOne := &leave.Application{}
	chargedOne.CacheDeduction(days("1"), "paired", true)

	tests := []struct {
		name     string
		in       leave.DeductionInput
		want     string
		rule     leave.Rule
		sandwich bool
		reprice  bool
	}{
		{
			name: "half day on a Friday is still half",
			in:   leave.DeductionInput{StartDate: fri, EndDate: fri, DaysCount: days("0.5"), IsHalfDay: true},
			want: "0.5", rule: leave.RuleHalfDay,
		},
		{
			name: "lone Friday costs two days",
			in:   leave.DeductionInput{StartDate: fri, EndDate: fri, DaysCount: days("1")},
			want: "2", rule: leave.RuleLoneBridge, sandwich: true,
		},
		{
			name: "lone Monday costs two days",
			in:   leave.DeductionInput{StartDate: nextMon, EndDate: nextMon, DaysCount: days("1")},
			want: "2", rule: leave.RuleLoneBridge, sandwich: true,
		},
		{
			name: "Monday paired with a lone-priced Friday re-prices it",
			in:   leave.DeductionInput{StartDate: nextMon, EndDate: nextMon, DaysCount: days("1"), Sibling: chargedTwo},
			want: "1", rule: leave.RulePairedBridge, sandwich: true, reprice: true,
		},
		{
			name: "lone sibling reduced by LOP is still re-priced",
			in:   leave.DeductionInput{StartDate: nextMon, EndDate: nextMon, DaysCount: days("1"), Sibling: loneWithLOP},
			want: "1", rule: leave.RulePairedBridge, sandwich: true, reprice: true,
		},
		{
			name: "paired leg with LOP",
			in:   leave.DeductionInput{StartDate: nextMon, EndDate: nextMon, DaysCount: days("1"), LOPDays: days("0.5"), Sibling: chargedOne},
			want: "0.5", rule: leave.RulePairedBridge, sandwich: true,
		},
		{
			name: "sibling already at one day is left alone",
			in:   leave.DeductionInput{StartDate: fri, EndDate: fri, DaysCount: days("1"), Sibling: chargedOne},
			want: "1", rule: leave.RulePairedBridge, sandwich: true,
		},
		{
			name: "Friday to Monday range counts calendar days",
			in:   leave.DeductionInput{StartDate: fri, EndDate: nextMon, DaysCount: days("2")},
			want: "4", rule: leave.RuleWeekendSpan, sandwich: true,
		},
		{
			name: "Thursday to next Wednesday",
			in:   leave.DeductionInput{StartDate: thu, EndDate: nextWed, DaysCount: days("5")},
			want: "7", rule: leave.RuleWeekendSpan, sandwich: true,
		},
		{
			name: "weekday range uses days_count",
			in:   leave.DeductionInput{StartDate: tue, EndDate: thu, DaysCount: days("3")},
			want: "3", rule: leave.RuleStandard,
		},
		{
			name: "single Wednesday",
			in:   leave.DeductionInput{StartDate: wed, EndDate: wed, DaysCount: days("1")},
			want: "1", rule: leave.RuleStandard,
		},
		{
			name: "LOP is excluded",
			in:   leave.DeductionInput{StartDate: tue, EndDate: thu, DaysCount: days("3"), LOPDays: days("0.9")},
			want: "2.1", rule: leave.RuleStandard,
		},
		{
			name: "LOP larger than the charge floors at zero",
			in:   leave.DeductionInput{StartDate: wed, EndDate: wed, DaysCount: days("1"), LOPDays: days("1.5")},
			want: "0", rule: leave.RuleStandard,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := leave.ComputeDeduction(tt.in)
			assert.True(t, got.Days.Equal(days(tt.want)), "days: got %s want %s", got.Days, tt.want)
			assert.Equal(t, tt.rule, got.Rule)
			assert.Equal(t, tt.sandwich, got.IsSandwich)
			assert.Equal(t, tt.reprice, got.RepriceSibling)
			assert.NotEmpty(t, got.Reason)
		})
	}
}

func TestComputeDeduction_IsPure(t *testing.T) {
	in := leave.DeductionInput{StartDate: fri, EndDate: nextMon, DaysCount: days("2"), LOPDays: days("1")}
	first := leave.ComputeDeduction(in)
	second := leave.ComputeDeduction(in)
	assert.Equal(t, first, second)
	assert.True(t, first.Base.Equal(days("4")))
	assert.True(t, first.Days.Equal(days("3")))
	assert.Contains(t, first.Reason, "LOP")
}

func TestPricedAsLoneBridge(t *testing.T) {
	lone := leave.Application{StartDate: fri, EndDate: fri, LOPDays: days("0.5")}
	lone.CachePricing(days("1.5"), leave.RuleLoneBridge, "lone")
	assert.True(t, lone.PricedAsLoneBridge())
	assert.True(t, lone.IsSandwichLeave)

	paired := leave.Application{StartDate: fri, EndDate: fri}
	paired.CachePricing(days("2"), leave.RulePairedBridge, "paired")
	assert.False(t, paired.PricedAsLoneBridge(), "the rule wins over the amount")

	legacy := leave.Application{StartDate: nextMon, EndDate: nextMon}
	legacy.CacheDeduction(days("2"), "cached before rules were stored", true)
	assert.True(t, legacy.PricedAsLoneBridge())

	legacy.ClearDeduction()
	assert.False(t, legacy.PricedAsLoneBridge())
	assert.Empty(t, legacy.PricingRule)
}

func TestPairedDay(t *testing.T) {
	d, ok := leave.PairedDay(fri)
	assert.True(t, ok)
	assert.True(t, d.Equal(nextMon))

	d, ok = leave.PairedDay(nextMon)
	assert.True(t, ok)
	assert.True(t, d.Equal(fri))

	_, ok = leave.PairedDay(wed)
	assert.False(t, ok)

	assert.False(t, leave.IsBridgeCandidate(fri, fri, true))
	assert.False(t, leave.IsBridgeCandidate(fri, sat, false))
	assert.True(t, leave.IsBridgeCandidate(fri, fri, false))
}
