/*
Leave type catalog.

PURPOSE:
  Admin-facing CRUD over a tenant's leave types, with the validation the
  raw store does not do: codes are stable identifiers, rates and caps
  are half-day granular and non-negative.
*/
package leave

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Catalog manages a tenant's leave type definitions.
type Catalog struct {
	store  CatalogStore
	logger *zap.Logger
}

func NewCatalog(store CatalogStore, logger *zap.Logger) *Catalog {
	return &Catalog{store: store, logger: logger}
}

func validateLeaveType(lt LeaveType) error {
	if lt.Code == "" {
		return fmt.Errorf("%w: empty code", ErrInvalidLeaveType)
	}
	for _, d := range []Days{lt.AnnualEntitlement, lt.AccrualRatePerMonth, lt.CarryoverCap} {
		if d.IsNegative() {
			return fmt.Errorf("%w: %s", ErrNegativeAmount, d)
		}
	}
	if !lt.AnnualEntitlement.IsHalfDayGranular() || !lt.CarryoverCap.IsHalfDayGranular() {
		return ErrNotHalfDayGranular
	}
	return nil
}

// Create adds a leave type to the tenant's catalog.
func (c *Catalog) Create(ctx context.Context, lt LeaveType) (LeaveType, error) {
	if err := validateLeaveType(lt); err != nil {
		return LeaveType{}, err
	}
	lt.CreatedAt = time.Now()
	if err := c.store.CreateLeaveType(ctx, lt); err != nil {
		return LeaveType{}, err
	}
	c.logger.Info("leave type created",
		zap.String("tenant", string(lt.TenantID)),
		zap.String("code", string(lt.Code)),
	)
	return lt, nil
}

// Update replaces a leave type's configuration. The code is immutable;
// existing balances keep referring to it.
func (c *Catalog) Update(ctx context.Context, lt LeaveType) (LeaveType, error) {
	if err := validateLeaveType(lt); err != nil {
		return LeaveType{}, err
	}
	if err := c.store.UpdateLeaveType(ctx, lt); err != nil {
		return LeaveType{}, err
	}
	return lt, nil
}

func (c *Catalog) Get(ctx context.Context, tenant TenantID, code LeaveTypeCode) (LeaveType, error) {
	return c.store.GetLeaveType(ctx, tenant, code)
}

func (c *Catalog) List(ctx context.Context, tenant TenantID) ([]LeaveType, error) {
	return c.store.ListLeaveTypes(ctx, tenant)
}

func (c *Catalog) Delete(ctx context.Context, tenant TenantID, code LeaveTypeCode) error {
	return c.store.DeleteLeaveType(ctx, tenant, code)
}

// SeedDefaults installs the default catalog for a new tenant. Existing
// codes are left untouched so re-seeding is harmless.
func (c *Catalog) SeedDefaults(ctx context.Context, tenant TenantID) error {
	for _, lt := range DefaultLeaveTypes(tenant) {
		lt.CreatedAt = time.Now()
		err := c.store.CreateLeaveType(ctx, lt)
		if err != nil && !IsConflict(err) {
			return fmt.Errorf("seed %s: %w", lt.Code, err)
		}
	}
	return nil
}
