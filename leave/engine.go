/*
engine.go - Status-change reconciliation

PURPOSE:
  Applies the ledger side-effect of one application moving between statuses.
  It runs inside the caller's transaction; the caller persists the mutated
  application afterwards.

EFFECTS:
  into approved      -> price the leave, charge the ledger, cache the charge
  out of approved    -> give back exactly the cached charge, clear the cache
  anything else      -> nothing

  The cached charge (SandwichDeductedDays) is the only source of truth for a
  restoration. The calculator is never re-run on the way out, so a leave
  approved and withdrawn any number of times nets to zero.

CATEGORY BRANCHES:
  default / standard  -> sandwich calculator, ledger row per LedgerTypeFor
  compensatory_off    -> days_count against User.CompOffBalance
  birthday            -> cached 0, no balance touched
  DeductsBalance off  -> cached 0, no balance touched

FAILURE SEMANTICS:
  A missing ledger row is created with a warning. Comp-off shortfalls and
  comp-off write failures are warnings. Store errors on the ledger row itself
  abort the transition.
*/
package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/generic"
	"go.uber.org/zap"
)

type Engine struct {
	Registry *Registry
	Ledger   *Ledger
	Pairs    *PairResolver
	Logger   *zap.Logger
	Now      func() time.Time
}

func NewEngine(reg *Registry, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	ledger := NewLedger(logger)
	return &Engine{
		Registry: reg,
		Ledger:   ledger,
		Pairs:    &PairResolver{Registry: reg, Ledger: ledger, Logger: logger},
		Logger:   logger,
		Now:      time.Now,
	}
}

// Reconcile applies the effect of app moving from `from` to app.Status.
func (e *Engine) Reconcile(ctx context.Context, st Store, app *Application, from Status, actor string) (generic.Outcome, error) {
	switch EffectOf(from, app.Status) {
	case EffectDeduct:
		return e.deduct(ctx, st, app, actor)
	case EffectRestore:
		return e.restore(ctx, st, app, actor)
	}
	return generic.Outcome{}, nil
}

// =============================================================================
// DEDUCTION
// =============================================================================

func (e *Engine) deduct(ctx context.Context, st Store, app *Application, actor string) (generic.Outcome, error) {
	var out generic.Outcome
	lt, err := e.Registry.Lookup(app.LeaveTypeID)
	if err != nil {
		return out, err
	}

	switch {
	case lt.Category == CategoryBirthday:
		app.CacheDeduction(decimal.Zero, "birthday leave: no balance deduction", false)
		return out, nil

	case lt.Category == CategoryCompOff:
		charged := e.chargeCompOff(ctx, st, app, actor, &out)
		app.CacheDeduction(charged, fmt.Sprintf("%s day(s) from comp-off balance", charged), false)
		out.Deducted = charged
		return out, nil

	case !lt.DeductsBalance:
		app.CacheDeduction(decimal.Zero, fmt.Sprintf("%s does not deduct balance", lt.Name), false)
		return out, nil
	}

	sibling, err := e.Pairs.FindSibling(ctx, st, *app)
	if err != nil {
		return out, err
	}
	d := ComputeDeduction(DeductionInput{
		StartDate: app.StartDate,
		EndDate:   app.EndDate,
		DaysCount: app.DaysCount,
		IsHalfDay: app.IsHalfDay,
		LOPDays:   app.LOPDays,
		Sibling:   sibling,
	})

	key := e.ledgerKey(app, lt)
	if _, err := e.Ledger.ApplyUsed(ctx, st, key, d.Days, Entry{
		Type:        generic.TxConsumption,
		ReferenceID: app.ID,
		Reason:      d.Reason,
		Actor:       actor,
	}, &out); err != nil {
		return out, err
	}
	app.CachePricing(d.Days, d.Rule, d.Reason)
	out.Deducted = d.Days

	if d.RepriceSibling {
		repriced, err := e.Pairs.Reprice(ctx, st, sibling, *app, actor)
		if err != nil {
			return out, err
		}
		out.Merge(repriced)
	}

	e.Logger.Debug("leave charged",
		zap.String("application_id", app.ID),
		zap.String("rule", string(d.Rule)),
		zap.String("days", d.Days.String()))
	return out, nil
}

// chargeCompOff returns what was actually taken from the comp-off balance.
func (e *Engine) chargeCompOff(ctx context.Context, st Store, app *Application, actor string, out *generic.Outcome) decimal.Decimal {
	amount := app.DaysCount
	user, err := st.GetUser(ctx, app.UserID)
	if err != nil {
		out.Warn(generic.WarnCompOffFailed, "comp-off deduction for %s failed: %v", app.ID, err)
		e.Logger.Warn("comp-off deduction failed", zap.String("application_id", app.ID), zap.Error(err))
		return decimal.Zero
	}
	if user.CompOffBalance.LessThan(amount) {
		out.Warn(generic.WarnInsufficientCompOff, "user %s comp-off balance %s below %s",
			user.ID, user.CompOffBalance, amount)
	}
	if err := e.moveCompOff(ctx, st, user, amount.Neg(), app.ID, "comp-off leave approved", actor); err != nil {
		out.Warn(generic.WarnCompOffFailed, "comp-off deduction for %s failed: %v", app.ID, err)
		e.Logger.Warn("comp-off deduction failed", zap.String("application_id", app.ID), zap.Error(err))
		return decimal.Zero
	}
	return amount
}

// =============================================================================
// RESTORATION
// =============================================================================

func (e *Engine) restore(ctx context.Context, st Store, app *Application, actor string) (generic.Outcome, error) {
	var out generic.Outcome
	lt, err := e.Registry.Lookup(app.LeaveTypeID)
	if err != nil {
		return out, err
	}

	amount := app.SandwichDeductedDays.Decimal
	if !app.SandwichDeductedDays.Valid {
		amount = app.DaysCount
		out.Warn(generic.WarnCachedDeductionEmpty, "application %s has no cached charge, restoring days_count %s", app.ID, amount)
	}
	loneBridge := app.PricedAsLoneBridge()

	switch {
	case lt.Category == CategoryBirthday:
		amount = decimal.Zero

	case lt.Category == CategoryCompOff:
		if amount.IsPositive() {
			user, err := st.GetUser(ctx, app.UserID)
			if err == nil {
				err = e.moveCompOff(ctx, st, user, amount, app.ID, fmt.Sprintf("comp-off leave %s", app.Status), actor)
			}
			if err != nil {
				out.Warn(generic.WarnCompOffFailed, "comp-off restoration for %s failed: %v", app.ID, err)
				e.Logger.Warn("comp-off restoration failed", zap.String("application_id", app.ID), zap.Error(err))
				amount = decimal.Zero
			}
		}

	case !lt.DeductsBalance:
		amount = decimal.Zero

	default:
		key := e.ledgerKey(app, lt)
		if _, err := e.Ledger.ApplyUsed(ctx, st, key, amount.Neg(), Entry{
			Type:        generic.TxReversal,
			ReferenceID: app.ID,
			Reason:      fmt.Sprintf("leave %s: restored %s day(s)", app.Status, amount),
			Actor:       actor,
		}, &out); err != nil {
			return out, err
		}
	}

	app.ClearDeduction()
	out.Restored = amount

	if loneBridge && pricedBySandwich(lt) {
		resolved, err := e.Pairs.ResolveRelease(ctx, st, *app, actor)
		if err != nil {
			return out, err
		}
		out.Merge(resolved)
	}
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// ledgerKey is the row an application charges: the year of its start date.
func (e *Engine) ledgerKey(app *Application, lt LeaveType) BalanceKey {
	return BalanceKey{
		UserID:      app.UserID,
		LeaveTypeID: e.Registry.LedgerTypeFor(lt),
		Year:        app.StartDate.Year(),
	}
}

func (e *Engine) moveCompOff(ctx context.Context, st Store, user *User, delta decimal.Decimal, ref, reason, actor string) error {
	user.CompOffBalance = user.CompOffBalance.Add(delta)
	if err := st.SaveUser(ctx, *user); err != nil {
		return err
	}
	journal := generic.Journal{Store: st, Now: e.Now}
	return journal.Append(ctx, generic.Transaction{
		UserID:      user.ID,
		Type:        generic.TxCompOff,
		Delta:       delta,
		ReferenceID: ref,
		Reason:      reason,
		CreatedBy:   actor,
	})
}
