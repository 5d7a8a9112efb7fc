/*
store.go - Persistence interface between the engine and the database

PURPOSE:
  Defines what the engine needs from storage. Implementations exist for
  SQLite (store/sqlite) and in-memory (payroll/store, used by tests and
  dev mode).

TRANSACTIONS:
  TxStore.WithTx wraps a read-then-write sequence in one atomic
  transaction. The engine uses it for:
  - Submit: the duplicate lookup and the subsequent create/replace/merge
    must be a single logical transaction, or two concurrent submissions
    for the same (driver, truck, date) could both observe "no match"
  - Bulk lifecycle writes: assign-period, close-period, mark-paid apply
    to all target ids or none

NOT-FOUND SEMANTICS:
  Point lookups by id (GetDriver, GetEntry) return a NotFoundError.
  Existence probes whose misses are part of normal flow
  (GetTruckByUnit, FindEntryByDriverTruckDate) return (nil, nil).
  Bulk writes targeting a missing id fail the whole batch with a
  NotFoundError; they never silently skip.

SEE ALSO:
  - store/memory.go: In-memory implementation
  - store/sqlite/sqlite.go: SQLite implementation
*/
package payroll

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENTRY FILTER
// =============================================================================

// EntryFilter narrows ListEntries and Payroll. nil fields mean "no
// restriction"; a zero-valued filter is different from no filter at all.
type EntryFilter struct {
	From     *Date
	To       *Date
	DriverID *DriverID
	TruckID  *TruckID
	Period   *Period
}

// Matches reports whether an entry passes the filter. Shared by the
// in-memory store and by tests.
func (f EntryFilter) Matches(e *LogEntry) bool {
	if f.From != nil && e.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Date.After(*f.To) {
		return false
	}
	if f.DriverID != nil && e.DriverID != *f.DriverID {
		return false
	}
	if f.TruckID != nil && e.TruckID != *f.TruckID {
		return false
	}
	if f.Period != nil {
		if e.PeriodStart == nil || e.PeriodEnd == nil {
			return false
		}
		if !e.PeriodStart.Equal(f.Period.Start) || !e.PeriodEnd.Equal(f.Period.End) {
			return false
		}
	}
	return true
}

// =============================================================================
// STORE
// =============================================================================

// Store is the persistence contract for drivers, trucks, and log entries.
//
// Ordering contract for ListEntries: newest first (date DESC, id DESC),
// EXCEPT when filtered by period, where ascending date order is used
// (chronological settlement order).
type Store interface {
	// Drivers
	CreateDriver(ctx context.Context, d *Driver) (DriverID, error)
	GetDriver(ctx context.Context, id DriverID) (*Driver, error)
	ListDrivers(ctx context.Context) ([]Driver, error)
	// UpdateDriverRates replaces both driver defaults. nil clears a
	// default back to the system fallback.
	UpdateDriverRates(ctx context.Context, id DriverID, mileage, detention *decimal.Decimal) error

	// Trucks
	CreateTruck(ctx context.Context, unit string) (*Truck, error)
	GetTruckByUnit(ctx context.Context, unit string) (*Truck, error)
	ListTrucks(ctx context.Context) ([]Truck, error)

	// Entries
	CreateEntry(ctx context.Context, e *LogEntry) (EntryID, error)
	GetEntry(ctx context.Context, id EntryID) (*LogEntry, error)
	// FindEntryByDriverTruckDate returns the most recent entry for the
	// key, or (nil, nil) when none exists.
	FindEntryByDriverTruckDate(ctx context.Context, driver DriverID, truck TruckID, date Date) (*LogEntry, error)
	// ReplaceEntry overwrites quantities, rates, shift fields, and notes
	// of an existing entry. Lifecycle stamps are preserved.
	ReplaceEntry(ctx context.Context, id EntryID, e *LogEntry) error
	// MergeQuantities adds deltas onto an existing entry's quantities and
	// sets its notes to the given final value.
	MergeQuantities(ctx context.Context, id EntryID, deltas Quantities, notes string) error
	ListEntries(ctx context.Context, f EntryFilter) ([]LogEntry, error)

	// Lifecycle writes. All-or-nothing across the targeted ids.
	AssignPeriod(ctx context.Context, ids []EntryID, p Period) error
	ApproveEntry(ctx context.Context, id EntryID, approver string, at time.Time) error
	// ClosePeriod approves every entry whose period matches, preserving
	// pre-existing approval timestamps (COALESCE) while always refreshing
	// the approver. Returns the number of entries touched.
	ClosePeriod(ctx context.Context, p Period, approver string, at time.Time) (int, error)
	MarkPaid(ctx context.Context, ids []EntryID, at time.Time) error
}

// TxStore adds atomic transaction scoping around a sequence of Store calls.
type TxStore interface {
	Store

	// WithTx executes fn within one transaction. fn returning an error
	// rolls everything back; nil commits.
	WithTx(ctx context.Context, fn func(Store) error) error
}
