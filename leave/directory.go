/*
Tenant and employee directory.

PURPOSE:
  Admin-facing operations over tenants, employees and company holidays.
  Creating a tenant seeds its default leave type catalog.
*/
package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loomhr/leave-engine/calendar"
)

// Directory manages tenants, employees and holidays.
type Directory struct {
	tenants   TenantStore
	employees EmployeeStore
	holidays  HolidayStore
	catalog   *Catalog
	logger    *zap.Logger
}

func NewDirectory(tenants TenantStore, employees EmployeeStore, holidays HolidayStore, catalog *Catalog, logger *zap.Logger) *Directory {
	return &Directory{
		tenants:   tenants,
		employees: employees,
		holidays:  holidays,
		catalog:   catalog,
		logger:    logger,
	}
}

// CreateTenant registers a tenant and seeds its default catalog. An empty
// ID gets a generated one.
func (d *Directory) CreateTenant(ctx context.Context, t Tenant) (Tenant, error) {
	if t.ID == "" {
		t.ID = TenantID(uuid.NewString())
	}
	t.CreatedAt = time.Now()
	if err := d.tenants.CreateTenant(ctx, t); err != nil {
		return Tenant{}, err
	}
	if err := d.catalog.SeedDefaults(ctx, t.ID); err != nil {
		return Tenant{}, fmt.Errorf("seed catalog: %w", err)
	}
	d.logger.Info("tenant created", zap.String("tenant", string(t.ID)), zap.String("name", t.Name))
	return t, nil
}

func (d *Directory) GetTenant(ctx context.Context, id TenantID) (Tenant, error) {
	return d.tenants.GetTenant(ctx, id)
}

func (d *Directory) ListTenants(ctx context.Context) ([]Tenant, error) {
	return d.tenants.ListTenants(ctx)
}

// CreateEmployee registers an employee under a tenant.
func (d *Directory) CreateEmployee(ctx context.Context, e Employee) (Employee, error) {
	if _, err := d.tenants.GetTenant(ctx, e.TenantID); err != nil {
		return Employee{}, err
	}
	if e.ID == "" {
		e.ID = EmployeeID(uuid.NewString())
	}
	e.Active = true
	e.CreatedAt = time.Now()
	if e.ContractStart.IsZero() {
		e.ContractStart = calendar.Today()
	}
	if err := d.employees.CreateEmployee(ctx, e); err != nil {
		return Employee{}, err
	}
	d.logger.Info("employee created",
		zap.String("tenant", string(e.TenantID)),
		zap.String("employee", string(e.ID)),
	)
	return e, nil
}

func (d *Directory) UpdateEmployee(ctx context.Context, e Employee) (Employee, error) {
	if err := d.employees.UpdateEmployee(ctx, e); err != nil {
		return Employee{}, err
	}
	return e, nil
}

func (d *Directory) GetEmployee(ctx context.Context, tenant TenantID, id EmployeeID) (Employee, error) {
	return d.employees.GetEmployee(ctx, tenant, id)
}

func (d *Directory) ListEmployees(ctx context.Context, tenant TenantID) ([]Employee, error) {
	return d.employees.ListEmployees(ctx, tenant)
}

// Deactivate marks an employee inactive and closes their contract today.
// Balances and request history stay queryable.
func (d *Directory) Deactivate(ctx context.Context, tenant TenantID, id EmployeeID) (Employee, error) {
	e, err := d.employees.GetEmployee(ctx, tenant, id)
	if err != nil {
		return Employee{}, err
	}
	e.Active = false
	if e.ContractEnd.IsZero() {
		e.ContractEnd = calendar.Today()
	}
	if err := d.employees.UpdateEmployee(ctx, e); err != nil {
		return Employee{}, err
	}
	return e, nil
}

// AddHoliday registers a company-wide blackout date.
func (d *Directory) AddHoliday(ctx context.Context, tenant TenantID, date calendar.Date, label string) error {
	if _, err := d.tenants.GetTenant(ctx, tenant); err != nil {
		return err
	}
	return d.holidays.AddHoliday(ctx, tenant, date, label)
}

func (d *Directory) RemoveHoliday(ctx context.Context, tenant TenantID, date calendar.Date) error {
	return d.holidays.RemoveHoliday(ctx, tenant, date)
}

func (d *Directory) HolidaysForYear(ctx context.Context, tenant TenantID, year int) (calendar.BlackoutSet, error) {
	return d.holidays.HolidaysForYear(ctx, tenant, year)
}
