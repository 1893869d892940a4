/*
pair.go - Friday/Monday pair resolution

PURPOSE:
  A lone Friday (or Monday) is charged 2.0 because the weekend next to it is
  sandwiched. Once both legs of the pair are approved each leg costs 1.0.
  The resolver keeps the cached charges of the two legs consistent:

    approve second leg      sibling priced lone -> one day less, ledger -1
    leave a lone-priced leg sibling priced lone -> one day less, ledger -1

  "Priced lone" is the rule recorded with the cached charge, so a leg whose
  2.0 was reduced by LOP days still qualifies. The re-priced charge is
  floored at zero.

  The second case only happens for pairs that were both priced lone (legacy
  data or concurrent approvals).

  Re-pricing never goes the other way: a sibling billed 1.0 stays at 1.0
  after its partner is withdrawn.
*/
package leave

import (
	"context"
	"fmt"

	"github.com/warp/leave-engine/generic"
	"go.uber.org/zap"
)

type PairResolver struct {
	Registry *Registry
	Ledger   *Ledger
	Logger   *zap.Logger
}

// FindSibling returns the approved single-day leave on the day paired with
// app, or nil. Only leaves priced by the sandwich calculator qualify.
func (p *PairResolver) FindSibling(ctx context.Context, st Store, app Application) (*Application, error) {
	if !IsBridgeCandidate(app.StartDate, app.EndDate, app.IsHalfDay) {
		return nil, nil
	}
	paired, _ := PairedDay(app.StartDate)
	candidates, err := st.ListApplications(ctx, ApplicationFilter{
		UserID:   app.UserID,
		Statuses: []Status{StatusApproved},
		From:     paired,
		To:       paired,
	})
	if err != nil {
		return nil, fmt.Errorf("find pair sibling: %w", err)
	}
	for i := range candidates {
		c := candidates[i]
		if c.ID == app.ID || c.IsHalfDay || !c.IsSingleDay() || !c.StartDate.Equal(paired) {
			continue
		}
		lt, ok := p.Registry.Get(c.LeaveTypeID)
		if !ok || !pricedBySandwich(lt) {
			continue
		}
		return &c, nil
	}
	return nil, nil
}

// Reprice takes one day off a sibling priced as a lone bridge day and gives
// the difference back to its ledger row. Anything else is left untouched.
func (p *PairResolver) Reprice(ctx context.Context, st Store, sibling *Application, partner Application, actor string) (generic.Outcome, error) {
	var out generic.Outcome
	if sibling == nil || !sibling.PricedAsLoneBridge() {
		return out, nil
	}
	lt, err := p.Registry.Lookup(sibling.LeaveTypeID)
	if err != nil {
		return out, err
	}
	cached := sibling.SandwichDeductedDays.Decimal
	repriced := generic.FloorZero(cached.Sub(generic.OneDay))
	refund := cached.Sub(repriced)

	if refund.IsPositive() {
		key := BalanceKey{UserID: sibling.UserID, LeaveTypeID: p.Registry.LedgerTypeFor(lt), Year: sibling.StartDate.Year()}
		_, err = p.Ledger.ApplyUsed(ctx, st, key, refund.Neg(), Entry{
			Type:        generic.TxAdjustment,
			ReferenceID: sibling.ID,
			Reason:      fmt.Sprintf("pair re-priced with %s (%s)", partner.ID, partner.StartDate),
			Actor:       actor,
		}, &out)
		if err != nil {
			return out, err
		}
	}

	reason := fmt.Sprintf("%s %s paired with %s: re-priced from %s days to %s",
		sibling.StartDate.Weekday(), sibling.StartDate, partner.StartDate, cached, repriced)
	if sibling.LOPDays.IsPositive() {
		reason = fmt.Sprintf("%s; %s LOP day(s) excluded", reason, sibling.LOPDays)
	}
	sibling.CachePricing(repriced, RulePairedBridge, reason)
	if err := st.SaveApplication(ctx, *sibling); err != nil {
		return out, fmt.Errorf("save re-priced sibling: %w", err)
	}
	out.Restored = out.Restored.Add(refund)

	p.Logger.Info("pair sibling re-priced",
		zap.String("sibling_id", sibling.ID),
		zap.String("partner_id", partner.ID),
		zap.String("user_id", sibling.UserID))
	return out, nil
}

// ResolveRelease runs when a leg priced as a lone bridge day leaves approved.
// A sibling still priced lone is re-priced.
func (p *PairResolver) ResolveRelease(ctx context.Context, st Store, released Application, actor string) (generic.Outcome, error) {
	var out generic.Outcome
	sibling, err := p.FindSibling(ctx, st, released)
	if err != nil {
		return out, err
	}
	if sibling == nil {
		paired, _ := PairedDay(released.StartDate)
		out.Warn(generic.WarnSiblingNotFound, "no approved leave on %s paired with %s", paired, released.ID)
		return out, nil
	}
	return p.Reprice(ctx, st, sibling, released, actor)
}

func pricedBySandwich(lt LeaveType) bool {
	return (lt.Category == CategoryDefault || lt.Category == CategoryStandard) && lt.DeductsBalance
}
