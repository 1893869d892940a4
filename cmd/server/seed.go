package main

import (
	"context"
	"fmt"

	"github.com/warp/leave-engine/accrual"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/sqlstore"
	"go.uber.org/zap"
)

// seedReferenceData fills an empty database with the default leave types,
// term rates and an allocation settings record, then builds the registry
// from what is stored. Existing rows are never overwritten.
func seedReferenceData(ctx context.Context, store *sqlstore.Store, cronSchedule string, logger *zap.Logger) (*leave.Registry, error) {
	types, err := store.ListLeaveTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list leave types: %w", err)
	}
	seedTypes := len(types) == 0
	if seedTypes {
		types = leave.DefaultLeaveTypes()
	}
	reg, err := leave.NewRegistry(types)
	if err != nil {
		return nil, fmt.Errorf("build leave type registry: %w", err)
	}
	if seedTypes {
		for _, lt := range reg.List() {
			if err := store.SaveLeaveType(ctx, lt); err != nil {
				return nil, fmt.Errorf("seed leave type %s: %w", lt.ID, err)
			}
		}
		logger.Info("seeded leave types", zap.Int("count", len(types)))
	}

	rates, err := store.ListTermRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list term rates: %w", err)
	}
	for term, rate := range leave.DefaultTermRates() {
		if _, ok := rates[term]; ok {
			continue
		}
		if err := store.SaveTermRate(ctx, term, rate); err != nil {
			return nil, fmt.Errorf("seed term rate %s: %w", term, err)
		}
		logger.Info("seeded term rate", zap.String("term", string(term)), zap.String("rate", rate.String()))
	}

	settings, err := store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load allocation settings: %w", err)
	}
	if settings == nil {
		if err := accrual.ValidateSchedule(cronSchedule); err != nil {
			return nil, err
		}
		if err := store.SaveSettings(ctx, accrual.Settings{
			IsActive:     true,
			CronSchedule: cronSchedule,
			UpdatedBy:    "seed",
		}); err != nil {
			return nil, fmt.Errorf("seed allocation settings: %w", err)
		}
		logger.Info("seeded allocation settings", zap.String("cron", cronSchedule))
	}
	return reg, nil
}
