/*
Package payroll is the core engine for driver daily-log payroll.

PURPOSE:
  This package contains the domain types and rules for turning raw driver
  log entries (miles, value-hours, detention minutes) into money, and for
  walking entries through their settlement lifecycle: submitted, assigned
  to a pay period, approved, paid.

KEY CONCEPTS IN THIS FILE (types.go):
  - Date: A calendar day (the unit all logs and periods are keyed on)
  - Driver/Truck: The two required foreign keys on every log entry
  - LogEntry: The central fact record, carrying its own rate snapshot
  - RateSnapshot: Rates frozen onto an entry at creation time
  - Period: A 7-day settlement window
  - Actor/Role: Explicit capability value passed into lifecycle calls

DESIGN PRINCIPLES:
  1. Precision: Money and quantities use decimal.Decimal, never float64
  2. Snapshot stability: Pay is always computed from the entry's own
     snapshot rates, so history stays stable when driver defaults change
  3. One formula: GrossPay on LogEntry is the ONLY place the pay formula
     lives; every component that needs money calls it
  4. Explicit authorization: lifecycle operations take an Actor, nothing
     is inferred from ambient request state

SEE ALSO:
  - rates.go:     Rate resolution at submission time
  - submit.go:    Duplicate resolution policy
  - period.go:    Pay period calculation
  - lifecycle.go: Assign/approve/close/paid transitions
  - aggregate.go: Per-driver payroll totals
*/
package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type DriverID int64
type TruckID int64
type EntryID int64

// =============================================================================
// DATE - Calendar day, the granularity everything is keyed on
// =============================================================================

// Date is a calendar day. The wall-clock time and zone of the underlying
// value are irrelevant; all comparisons normalize to midnight UTC.
type Date struct {
	Time time.Time
}

const dateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an instant to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

func (d Date) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

func (d Date) Before(other Date) bool        { return d.normalize().Before(other.normalize()) }
func (d Date) After(other Date) bool         { return d.normalize().After(other.normalize()) }
func (d Date) Equal(other Date) bool         { return d.normalize().Equal(other.normalize()) }
func (d Date) BeforeOrEqual(other Date) bool { return d.Before(other) || d.Equal(other) }
func (d Date) AfterOrEqual(other Date) bool  { return d.After(other) || d.Equal(other) }

func (d Date) AddDays(n int) Date       { return DateOf(d.Time.AddDate(0, 0, n)) }
func (d Date) Weekday() time.Weekday    { return d.normalize().Weekday() }
func (d Date) IsZero() bool             { return d.Time.IsZero() }
func (d Date) String() string           { return d.normalize().Format(dateLayout) }

// =============================================================================
// DRIVER / TRUCK
// =============================================================================

// Driver is the payee. Default rates are optional; when nil the system
// defaults from RateConfig apply. Drivers are seeded by admins and never
// deleted in normal operation.
type Driver struct {
	ID    DriverID
	Name  string
	Email string

	// Per-driver rate defaults. nil means "use the system default".
	// There is deliberately no per-driver default for the per-value-hour
	// rate; that one is a system constant unless overridden per entry.
	DefaultMileageRate   *decimal.Decimal
	DefaultDetentionRate *decimal.Decimal

	CreatedAt time.Time
}

// Truck is a unit in the fleet. Created on first reference (admin seed or
// a driver submission naming an unknown unit) and immutable thereafter.
type Truck struct {
	ID        TruckID
	Unit      string
	CreatedAt time.Time
}

// =============================================================================
// RATE SNAPSHOT - Rates frozen onto an entry at creation time
// =============================================================================

// RateSnapshot is captured from the rate resolver when an entry is created
// (or explicitly edited) and never recomputed afterwards. Historical pay
// stays stable even when driver defaults change later.
type RateSnapshot struct {
	Mileage   decimal.Decimal // currency per mile
	PerValue  decimal.Decimal // currency per value-hour
	Detention decimal.Decimal // currency per hour of detention
}

// =============================================================================
// QUANTITIES - The billable amounts on an entry
// =============================================================================

type Quantities struct {
	Miles            decimal.Decimal
	ValueHours       decimal.Decimal
	DetentionMinutes int
}

// Add returns the element-wise sum. Used by the merge path of the
// duplicate resolution policy.
func (q Quantities) Add(other Quantities) Quantities {
	return Quantities{
		Miles:            q.Miles.Add(other.Miles),
		ValueHours:       q.ValueHours.Add(other.ValueHours),
		DetentionMinutes: q.DetentionMinutes + other.DetentionMinutes,
	}
}

func (q Quantities) IsNegative() bool {
	return q.Miles.IsNegative() || q.ValueHours.IsNegative() || q.DetentionMinutes < 0
}

// =============================================================================
// LOG ENTRY - The central fact record
// =============================================================================

// LogEntry is one driver/truck/day of work. Quantities and the rate
// snapshot are set at creation; after that the snapshot only changes via
// an explicit admin edit (which re-resolves rates).
type LogEntry struct {
	ID       EntryID
	DriverID DriverID
	TruckID  TruckID
	Date     Date

	Quantities
	Rates RateSnapshot

	// Shift bookkeeping from the submission form. Informational only;
	// not part of the pay formula.
	StartTime    string // "HH:MM", optional
	EndTime      string // "HH:MM", optional
	TotalMinutes int

	Notes string

	// Lifecycle stamps. All nil/empty until the matching transition runs.
	PeriodStart *Date
	PeriodEnd   *Date
	ApprovedAt  *time.Time
	ApprovedBy  string
	PaidAt      *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

var minutesPerHour = decimal.NewFromInt(60)

// GrossPay computes the monetary value of the entry from its own snapshot:
//
//	miles*mileage + valueHours*perValue + (detentionMinutes/60)*detention
//
// This is the single authoritative implementation. Aggregations sum this
// per entry; they never multiply averaged rates by summed quantities.
func (e *LogEntry) GrossPay() decimal.Decimal {
	detentionHours := decimal.NewFromInt(int64(e.DetentionMinutes)).Div(minutesPerHour)
	return e.Miles.Mul(e.Rates.Mileage).
		Add(e.ValueHours.Mul(e.Rates.PerValue)).
		Add(detentionHours.Mul(e.Rates.Detention))
}

// DetentionPay is the detention portion of GrossPay, broken out for
// exports and summaries.
func (e *LogEntry) DetentionPay() decimal.Decimal {
	return decimal.NewFromInt(int64(e.DetentionMinutes)).Div(minutesPerHour).Mul(e.Rates.Detention)
}

// =============================================================================
// LIFECYCLE STATUS - Derived, not stored
// =============================================================================

type Status string

const (
	StatusOpen           Status = "open"
	StatusPeriodAssigned Status = "period-assigned"
	StatusApproved       Status = "approved"
	StatusPaid           Status = "paid"
)

// Status derives the entry's lifecycle position from its stamps. Approval
// and period assignment are independent axes; paid wins, then approved,
// then period-assigned.
func (e *LogEntry) Status() Status {
	switch {
	case e.PaidAt != nil:
		return StatusPaid
	case e.ApprovedAt != nil:
		return StatusApproved
	case e.PeriodStart != nil:
		return StatusPeriodAssigned
	default:
		return StatusOpen
	}
}

func (e *LogEntry) IsApproved() bool { return e.ApprovedAt != nil }
func (e *LogEntry) IsPaid() bool     { return e.PaidAt != nil }

// =============================================================================
// PERIOD - 7-day settlement window
// =============================================================================

// Period is a derived value, not a stored entity. Entries reference a
// period by copying its boundary dates; entries assigned together share
// identical boundaries.
type Period struct {
	Start Date
	End   Date
}

func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

func (p Period) IsZero() bool { return p.Start.IsZero() && p.End.IsZero() }

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// ACTOR / ROLE - Explicit capability value for lifecycle operations
// =============================================================================

type Role string

const (
	RoleDriver Role = "driver"
	RoleAdmin  Role = "admin"
)

// Actor identifies who is performing an operation. Lifecycle transitions
// require it explicitly; nothing is inferred from ambient request state.
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }
