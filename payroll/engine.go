/*
engine.go - Engine construction and fleet administration

PURPOSE:
  Engine ties the store, rate configuration, period configuration, and
  lifecycle policy together, and carries the clock so tests can pin
  "now". All domain operations hang off it:

    submit.go     Submit (duplicate resolution + rate snapshot)
    lifecycle.go  AssignPeriod, Approve, ClosePeriod, MarkPaid, EditEntry
    aggregate.go  Payroll, DailySummary

  This file holds construction plus the small driver/truck administration
  surface (seeding drivers, updating default rates, registering trucks).
*/
package payroll

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LifecyclePolicy holds the product-level policy switches for lifecycle
// transitions.
type LifecyclePolicy struct {
	// RequireApprovedBeforePaid gates MarkPaid on prior approval.
	// Off by default: pending a product decision, paying an unapproved
	// entry is allowed.
	RequireApprovedBeforePaid bool
}

// Config bundles the injectable engine configuration. A zero Rates and a
// nil Periods fall back to defaults in New. Periods is a pointer because
// its zero value (Sunday week start, midnight cutoff) is a legitimate
// configuration that must not be mistaken for "unset".
type Config struct {
	Rates     RateConfig
	Periods   *PeriodConfig
	Lifecycle LifecyclePolicy
}

// Engine exposes the payroll domain operations over a TxStore.
type Engine struct {
	store     TxStore
	rates     RateConfig
	periods   PeriodConfig
	lifecycle LifecyclePolicy
	now       func() time.Time
}

func New(store TxStore, cfg Config) *Engine {
	if cfg.Rates == (RateConfig{}) {
		cfg.Rates = DefaultRateConfig()
	}
	periods := DefaultPeriodConfig()
	if cfg.Periods != nil {
		periods = *cfg.Periods
	}
	return &Engine{
		store:     store,
		rates:     cfg.Rates,
		periods:   periods,
		lifecycle: cfg.Lifecycle,
		now:       time.Now,
	}
}

// WithClock pins the engine's clock. Tests use this to make period
// calculation and lifecycle stamps deterministic.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Store exposes the underlying store for read-only plumbing (exports,
// listing). Writes must go through engine operations.
func (e *Engine) Store() TxStore { return e.store }

// CurrentPeriod returns the pay period active right now.
func (e *Engine) CurrentPeriod() Period {
	return e.periods.CurrentPeriod(e.now())
}

// PeriodFor returns the period boundaries containing the given date.
func (e *Engine) PeriodFor(d Date) Period {
	return e.periods.PeriodFor(d)
}

// ResolveRates exposes rate resolution for callers that need a preview
// (e.g. the submission form showing effective rates).
func (e *Engine) ResolveRates(driver *Driver, o RateOverrides) RateSnapshot {
	return e.rates.Resolve(driver, o)
}

// =============================================================================
// DRIVER / TRUCK ADMINISTRATION
// =============================================================================

// CreateDriver seeds a driver record. Admin only.
func (e *Engine) CreateDriver(ctx context.Context, actor Actor, name, email string, mileage, detention *decimal.Decimal) (*Driver, error) {
	if err := requireAdmin(actor, "create driver"); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Message: "required"}
	}
	if err := validateRate("default_mileage_rate", mileage); err != nil {
		return nil, err
	}
	if err := validateRate("default_detention_rate", detention); err != nil {
		return nil, err
	}

	d := &Driver{
		Name:                 name,
		Email:                strings.TrimSpace(email),
		DefaultMileageRate:   mileage,
		DefaultDetentionRate: detention,
		CreatedAt:            e.now().UTC(),
	}
	id, err := e.store.CreateDriver(ctx, d)
	if err != nil {
		return nil, storageErr("create driver", err)
	}
	d.ID = id
	return d, nil
}

// SetDriverRates updates a driver's default rates. Admin only. Existing
// entries keep their snapshots; only future submissions see the change.
func (e *Engine) SetDriverRates(ctx context.Context, actor Actor, id DriverID, mileage, detention *decimal.Decimal) error {
	if err := requireAdmin(actor, "update driver rates"); err != nil {
		return err
	}
	if err := validateRate("default_mileage_rate", mileage); err != nil {
		return err
	}
	if err := validateRate("default_detention_rate", detention); err != nil {
		return err
	}
	return e.store.UpdateDriverRates(ctx, id, mileage, detention)
}

func (e *Engine) Driver(ctx context.Context, id DriverID) (*Driver, error) {
	return e.store.GetDriver(ctx, id)
}

func (e *Engine) Drivers(ctx context.Context) ([]Driver, error) {
	return e.store.ListDrivers(ctx)
}

// RegisterTruck finds or creates a truck by unit label. Units are
// immutable once created.
func (e *Engine) RegisterTruck(ctx context.Context, unit string) (*Truck, error) {
	unit = strings.TrimSpace(unit)
	if unit == "" {
		return nil, &ValidationError{Field: "truck_unit", Message: "required"}
	}
	truck, err := e.store.GetTruckByUnit(ctx, unit)
	if err != nil {
		return nil, storageErr("lookup truck", err)
	}
	if truck != nil {
		return truck, nil
	}
	truck, err = e.store.CreateTruck(ctx, unit)
	if err != nil {
		return nil, storageErr("create truck", err)
	}
	return truck, nil
}

func (e *Engine) Trucks(ctx context.Context) ([]Truck, error) {
	return e.store.ListTrucks(ctx)
}

// Entries lists log entries through the store's ordering contract.
func (e *Engine) Entries(ctx context.Context, f EntryFilter) ([]LogEntry, error) {
	return e.store.ListEntries(ctx, f)
}

func (e *Engine) Entry(ctx context.Context, id EntryID) (*LogEntry, error) {
	return e.store.GetEntry(ctx, id)
}

// =============================================================================
// SHARED CHECKS
// =============================================================================

func requireAdmin(actor Actor, op string) error {
	if !actor.IsAdmin() {
		return &AuthorizationError{Op: op, Required: RoleAdmin, Actor: actor}
	}
	return nil
}

func validateRate(field string, v *decimal.Decimal) error {
	if v != nil && v.IsNegative() {
		return &ValidationError{Field: field, Message: "must not be negative"}
	}
	return nil
}
