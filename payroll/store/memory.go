// Package store provides the in-memory Store implementation, used by
// tests and by dev mode. The SQLite implementation lives in store/sqlite.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fleetware/driverlog/payroll"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Memory implements payroll.TxStore with maps behind one mutex. WithTx
// holds the lock for the whole callback and restores a snapshot on error,
// which gives the same serialization and all-or-nothing guarantees the
// SQLite store gets from database transactions.
type Memory struct {
	mu sync.Mutex
	st *state
}

type state struct {
	drivers      map[payroll.DriverID]payroll.Driver
	trucks       map[payroll.TruckID]payroll.Truck
	trucksByUnit map[string]payroll.TruckID
	entries      map[payroll.EntryID]payroll.LogEntry

	nextDriver int64
	nextTruck  int64
	nextEntry  int64
}

func NewMemory() *Memory {
	return &Memory{st: newState()}
}

func newState() *state {
	return &state{
		drivers:      make(map[payroll.DriverID]payroll.Driver),
		trucks:       make(map[payroll.TruckID]payroll.Truck),
		trucksByUnit: make(map[string]payroll.TruckID),
		entries:      make(map[payroll.EntryID]payroll.LogEntry),
	}
}

// clone deep-copies the state so WithTx can roll back on error.
func (st *state) clone() *state {
	c := newState()
	c.nextDriver, c.nextTruck, c.nextEntry = st.nextDriver, st.nextTruck, st.nextEntry
	for id, d := range st.drivers {
		c.drivers[id] = copyDriver(d)
	}
	for id, t := range st.trucks {
		c.trucks[id] = t
	}
	for unit, id := range st.trucksByUnit {
		c.trucksByUnit[unit] = id
	}
	for id, e := range st.entries {
		c.entries[id] = copyEntry(e)
	}
	return c
}

func copyDriver(d payroll.Driver) payroll.Driver {
	d.DefaultMileageRate = copyDecimal(d.DefaultMileageRate)
	d.DefaultDetentionRate = copyDecimal(d.DefaultDetentionRate)
	return d
}

func copyEntry(e payroll.LogEntry) payroll.LogEntry {
	e.PeriodStart = copyDate(e.PeriodStart)
	e.PeriodEnd = copyDate(e.PeriodEnd)
	e.ApprovedAt = copyTime(e.ApprovedAt)
	e.PaidAt = copyTime(e.PaidAt)
	return e
}

func copyDecimal(v *decimal.Decimal) *decimal.Decimal {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyDate(v *payroll.Date) *payroll.Date {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx runs fn against the store while holding the lock. On error the
// pre-transaction snapshot is restored.
func (m *Memory) WithTx(_ context.Context, fn func(payroll.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(&txView{st: m.st}); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

// txView exposes the state without re-locking; only WithTx hands it out.
type txView struct {
	st *state
}

// =============================================================================
// DRIVERS
// =============================================================================

func (m *Memory) CreateDriver(ctx context.Context, d *payroll.Driver) (payroll.DriverID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.createDriver(d)
}

func (v *txView) CreateDriver(ctx context.Context, d *payroll.Driver) (payroll.DriverID, error) {
	return v.st.createDriver(d)
}

func (st *state) createDriver(d *payroll.Driver) (payroll.DriverID, error) {
	st.nextDriver++
	id := payroll.DriverID(st.nextDriver)
	stored := copyDriver(*d)
	stored.ID = id
	st.drivers[id] = stored
	return id, nil
}

func (m *Memory) GetDriver(ctx context.Context, id payroll.DriverID) (*payroll.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.getDriver(id)
}

func (v *txView) GetDriver(ctx context.Context, id payroll.DriverID) (*payroll.Driver, error) {
	return v.st.getDriver(id)
}

func (st *state) getDriver(id payroll.DriverID) (*payroll.Driver, error) {
	d, ok := st.drivers[id]
	if !ok {
		return nil, &payroll.NotFoundError{Kind: "driver", ID: int64(id)}
	}
	out := copyDriver(d)
	return &out, nil
}

func (m *Memory) ListDrivers(ctx context.Context) ([]payroll.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.listDrivers()
}

func (v *txView) ListDrivers(ctx context.Context) ([]payroll.Driver, error) {
	return v.st.listDrivers()
}

func (st *state) listDrivers() ([]payroll.Driver, error) {
	out := make([]payroll.Driver, 0, len(st.drivers))
	for _, d := range st.drivers {
		out = append(out, copyDriver(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpdateDriverRates(ctx context.Context, id payroll.DriverID, mileage, detention *decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.updateDriverRates(id, mileage, detention)
}

func (v *txView) UpdateDriverRates(ctx context.Context, id payroll.DriverID, mileage, detention *decimal.Decimal) error {
	return v.st.updateDriverRates(id, mileage, detention)
}

func (st *state) updateDriverRates(id payroll.DriverID, mileage, detention *decimal.Decimal) error {
	d, ok := st.drivers[id]
	if !ok {
		return &payroll.NotFoundError{Kind: "driver", ID: int64(id)}
	}
	d.DefaultMileageRate = copyDecimal(mileage)
	d.DefaultDetentionRate = copyDecimal(detention)
	st.drivers[id] = d
	return nil
}

// =============================================================================
// TRUCKS
// =============================================================================

func (m *Memory) CreateTruck(ctx context.Context, unit string) (*payroll.Truck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.createTruck(unit)
}

func (v *txView) CreateTruck(ctx context.Context, unit string) (*payroll.Truck, error) {
	return v.st.createTruck(unit)
}

func (st *state) createTruck(unit string) (*payroll.Truck, error) {
	if id, ok := st.trucksByUnit[unit]; ok {
		t := st.trucks[id]
		return &t, nil
	}
	st.nextTruck++
	t := payroll.Truck{ID: payroll.TruckID(st.nextTruck), Unit: unit, CreatedAt: time.Now().UTC()}
	st.trucks[t.ID] = t
	st.trucksByUnit[unit] = t.ID
	return &t, nil
}

func (m *Memory) GetTruckByUnit(ctx context.Context, unit string) (*payroll.Truck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.getTruckByUnit(unit)
}

func (v *txView) GetTruckByUnit(ctx context.Context, unit string) (*payroll.Truck, error) {
	return v.st.getTruckByUnit(unit)
}

func (st *state) getTruckByUnit(unit string) (*payroll.Truck, error) {
	id, ok := st.trucksByUnit[unit]
	if !ok {
		return nil, nil
	}
	t := st.trucks[id]
	return &t, nil
}

func (m *Memory) ListTrucks(ctx context.Context) ([]payroll.Truck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.listTrucks()
}

func (v *txView) ListTrucks(ctx context.Context) ([]payroll.Truck, error) {
	return v.st.listTrucks()
}

func (st *state) listTrucks() ([]payroll.Truck, error) {
	out := make([]payroll.Truck, 0, len(st.trucks))
	for _, t := range st.trucks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// ENTRIES
// =============================================================================

func (m *Memory) CreateEntry(ctx context.Context, e *payroll.LogEntry) (payroll.EntryID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.createEntry(e)
}

func (v *txView) CreateEntry(ctx context.Context, e *payroll.LogEntry) (payroll.EntryID, error) {
	return v.st.createEntry(e)
}

func (st *state) createEntry(e *payroll.LogEntry) (payroll.EntryID, error) {
	st.nextEntry++
	id := payroll.EntryID(st.nextEntry)
	stored := copyEntry(*e)
	stored.ID = id
	st.entries[id] = stored
	return id, nil
}

func (m *Memory) GetEntry(ctx context.Context, id payroll.EntryID) (*payroll.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.getEntry(id)
}

func (v *txView) GetEntry(ctx context.Context, id payroll.EntryID) (*payroll.LogEntry, error) {
	return v.st.getEntry(id)
}

func (st *state) getEntry(id payroll.EntryID) (*payroll.LogEntry, error) {
	e, ok := st.entries[id]
	if !ok {
		return nil, &payroll.NotFoundError{Kind: "entry", ID: int64(id)}
	}
	out := copyEntry(e)
	return &out, nil
}

func (m *Memory) FindEntryByDriverTruckDate(ctx context.Context, driver payroll.DriverID, truck payroll.TruckID, date payroll.Date) (*payroll.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.findEntryByDriverTruckDate(driver, truck, date)
}

func (v *txView) FindEntryByDriverTruckDate(ctx context.Context, driver payroll.DriverID, truck payroll.TruckID, date payroll.Date) (*payroll.LogEntry, error) {
	return v.st.findEntryByDriverTruckDate(driver, truck, date)
}

func (st *state) findEntryByDriverTruckDate(driver payroll.DriverID, truck payroll.TruckID, date payroll.Date) (*payroll.LogEntry, error) {
	var best *payroll.LogEntry
	for id := range st.entries {
		e := st.entries[id]
		if e.DriverID != driver || e.TruckID != truck || !e.Date.Equal(date) {
			continue
		}
		// Most recent wins when duplicates somehow exist.
		if best == nil || e.ID > best.ID {
			c := copyEntry(e)
			best = &c
		}
	}
	return best, nil
}

func (m *Memory) ReplaceEntry(ctx context.Context, id payroll.EntryID, e *payroll.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.replaceEntry(id, e)
}

func (v *txView) ReplaceEntry(ctx context.Context, id payroll.EntryID, e *payroll.LogEntry) error {
	return v.st.replaceEntry(id, e)
}

func (st *state) replaceEntry(id payroll.EntryID, e *payroll.LogEntry) error {
	existing, ok := st.entries[id]
	if !ok {
		return &payroll.NotFoundError{Kind: "entry", ID: int64(id)}
	}
	updated := copyEntry(*e)
	updated.ID = id
	// Lifecycle stamps and creation time survive a content replacement.
	updated.PeriodStart = existing.PeriodStart
	updated.PeriodEnd = existing.PeriodEnd
	updated.ApprovedAt = existing.ApprovedAt
	updated.ApprovedBy = existing.ApprovedBy
	updated.PaidAt = existing.PaidAt
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	st.entries[id] = updated
	return nil
}

func (m *Memory) MergeQuantities(ctx context.Context, id payroll.EntryID, deltas payroll.Quantities, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.mergeQuantities(id, deltas, notes)
}

func (v *txView) MergeQuantities(ctx context.Context, id payroll.EntryID, deltas payroll.Quantities, notes string) error {
	return v.st.mergeQuantities(id, deltas, notes)
}

func (st *state) mergeQuantities(id payroll.EntryID, deltas payroll.Quantities, notes string) error {
	e, ok := st.entries[id]
	if !ok {
		return &payroll.NotFoundError{Kind: "entry", ID: int64(id)}
	}
	e.Quantities = e.Quantities.Add(deltas)
	e.Notes = notes
	e.UpdatedAt = time.Now().UTC()
	st.entries[id] = e
	return nil
}

func (m *Memory) ListEntries(ctx context.Context, f payroll.EntryFilter) ([]payroll.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.listEntries(f)
}

func (v *txView) ListEntries(ctx context.Context, f payroll.EntryFilter) ([]payroll.LogEntry, error) {
	return v.st.listEntries(f)
}

func (st *state) listEntries(f payroll.EntryFilter) ([]payroll.LogEntry, error) {
	var out []payroll.LogEntry
	for id := range st.entries {
		e := st.entries[id]
		if f.Matches(&e) {
			out = append(out, copyEntry(e))
		}
	}
	if f.Period != nil {
		// Chronological settlement order for period exports.
		sort.Slice(out, func(i, j int) bool {
			if !out[i].Date.Equal(out[j].Date) {
				return out[i].Date.Before(out[j].Date)
			}
			return out[i].ID < out[j].ID
		})
	} else {
		sort.Slice(out, func(i, j int) bool {
			if !out[i].Date.Equal(out[j].Date) {
				return out[i].Date.After(out[j].Date)
			}
			return out[i].ID > out[j].ID
		})
	}
	return out, nil
}

// =============================================================================
// LIFECYCLE WRITES
// =============================================================================

func (m *Memory) AssignPeriod(ctx context.Context, ids []payroll.EntryID, p payroll.Period) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.assignPeriod(ids, p)
}

func (v *txView) AssignPeriod(ctx context.Context, ids []payroll.EntryID, p payroll.Period) error {
	return v.st.assignPeriod(ids, p)
}

func (st *state) assignPeriod(ids []payroll.EntryID, p payroll.Period) error {
	// All-or-nothing: verify every id before touching anything.
	for _, id := range ids {
		if _, ok := st.entries[id]; !ok {
			return &payroll.NotFoundError{Kind: "entry", ID: int64(id)}
		}
	}
	now := time.Now().UTC()
	for _, id := range ids {
		e := st.entries[id]
		start, end := p.Start, p.End
		e.PeriodStart = &start
		e.PeriodEnd = &end
		e.UpdatedAt = now
		st.entries[id] = e
	}
	return nil
}

func (m *Memory) ApproveEntry(ctx context.Context, id payroll.EntryID, approver string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.approveEntry(id, approver, at)
}

func (v *txView) ApproveEntry(ctx context.Context, id payroll.EntryID, approver string, at time.Time) error {
	return v.st.approveEntry(id, approver, at)
}

func (st *state) approveEntry(id payroll.EntryID, approver string, at time.Time) error {
	e, ok := st.entries[id]
	if !ok {
		return &payroll.NotFoundError{Kind: "entry", ID: int64(id)}
	}
	stamp := at
	e.ApprovedAt = &stamp
	e.ApprovedBy = approver
	e.UpdatedAt = at
	st.entries[id] = e
	return nil
}

func (m *Memory) ClosePeriod(ctx context.Context, p payroll.Period, approver string, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.closePeriod(p, approver, at)
}

func (v *txView) ClosePeriod(ctx context.Context, p payroll.Period, approver string, at time.Time) (int, error) {
	return v.st.closePeriod(p, approver, at)
}

func (st *state) closePeriod(p payroll.Period, approver string, at time.Time) (int, error) {
	n := 0
	for id := range st.entries {
		e := st.entries[id]
		if e.PeriodStart == nil || e.PeriodEnd == nil {
			continue
		}
		if !e.PeriodStart.Equal(p.Start) || !e.PeriodEnd.Equal(p.End) {
			continue
		}
		if e.ApprovedAt == nil {
			stamp := at
			e.ApprovedAt = &stamp
		}
		e.ApprovedBy = approver
		e.UpdatedAt = at
		st.entries[id] = e
		n++
	}
	return n, nil
}

func (m *Memory) MarkPaid(ctx context.Context, ids []payroll.EntryID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.markPaid(ids, at)
}

func (v *txView) MarkPaid(ctx context.Context, ids []payroll.EntryID, at time.Time) error {
	return v.st.markPaid(ids, at)
}

func (st *state) markPaid(ids []payroll.EntryID, at time.Time) error {
	for _, id := range ids {
		if _, ok := st.entries[id]; !ok {
			return &payroll.NotFoundError{Kind: "entry", ID: int64(id)}
		}
	}
	for _, id := range ids {
		e := st.entries[id]
		stamp := at
		e.PaidAt = &stamp
		e.UpdatedAt = at
		st.entries[id] = e
	}
	return nil
}
