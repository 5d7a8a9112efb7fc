/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements payroll.Store and payroll.TxStore using database/sql with
  mattn/go-sqlite3. The same patterns apply to PostgreSQL; only minor SQL
  dialect differences.

KEY TABLES:
  drivers: Payees with optional per-driver default rates
  trucks:  Fleet units, unique by label
  logs:    Daily log entries with their frozen rate snapshots and
           lifecycle stamps

STORAGE CHOICES:
  - Decimal rates and quantities are stored as TEXT and re-parsed, never
    as REAL, so money survives round-trips exactly
  - Dates are TEXT in YYYY-MM-DD form, timestamps TEXT in RFC3339
  - WAL mode for concurrent readers; a single mutex serializes writers

TRANSACTIONS:
  WithTx wraps a sequence of store calls in one database transaction.
  The engine routes the duplicate-resolution lookup and every bulk
  lifecycle write through it, so concurrent submissions serialize and
  bulk updates are all-or-nothing.

SEE ALSO:
  - payroll/store.go: Interface definitions and ordering contract
  - payroll/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/fleetware/driverlog/payroll"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = time.RFC3339
)

// Store implements payroll.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New opens (or creates) the database at the given path and migrates the
// schema. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS drivers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		default_mileage_rate TEXT,
		default_detention_rate TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trucks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		unit TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		driver_id INTEGER NOT NULL REFERENCES drivers(id),
		truck_id INTEGER NOT NULL REFERENCES trucks(id),
		log_date TEXT NOT NULL,
		miles TEXT NOT NULL DEFAULT '0',
		value_hours TEXT NOT NULL DEFAULT '0',
		detention_minutes INTEGER NOT NULL DEFAULT 0,
		mileage_rate TEXT NOT NULL,
		per_value_rate TEXT NOT NULL,
		detention_rate TEXT NOT NULL,
		start_time TEXT,
		end_time TEXT,
		total_minutes INTEGER NOT NULL DEFAULT 0,
		notes TEXT,
		period_start TEXT,
		period_end TEXT,
		approved_at TEXT,
		approved_by TEXT,
		paid_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Duplicate lookup (hot path on every submission)
	CREATE INDEX IF NOT EXISTS idx_logs_driver_truck_date
		ON logs(driver_id, truck_id, log_date);

	CREATE INDEX IF NOT EXISTS idx_logs_date ON logs(log_date);

	-- Period settlement queries
	CREATE INDEX IF NOT EXISTS idx_logs_period
		ON logs(period_start, period_end)
		WHERE period_start IS NOT NULL;

	CREATE INDEX IF NOT EXISTS idx_logs_paid
		ON logs(paid_at) WHERE paid_at IS NOT NULL;
	`
	_, err := s.db.Exec(schema)
	return err
}

// dbtx abstracts *sql.DB and *sql.Tx so every query helper works both
// standalone and inside WithTx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TRANSACTIONS (payroll.TxStore)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(payroll.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore routes every store call through the open transaction.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) CreateDriver(ctx context.Context, d *payroll.Driver) (payroll.DriverID, error) {
	return createDriver(ctx, ts.tx, d)
}
func (ts *txStore) GetDriver(ctx context.Context, id payroll.DriverID) (*payroll.Driver, error) {
	return getDriver(ctx, ts.tx, id)
}
func (ts *txStore) ListDrivers(ctx context.Context) ([]payroll.Driver, error) {
	return listDrivers(ctx, ts.tx)
}
func (ts *txStore) UpdateDriverRates(ctx context.Context, id payroll.DriverID, mileage, detention *decimal.Decimal) error {
	return updateDriverRates(ctx, ts.tx, id, mileage, detention)
}
func (ts *txStore) CreateTruck(ctx context.Context, unit string) (*payroll.Truck, error) {
	return createTruck(ctx, ts.tx, unit)
}
func (ts *txStore) GetTruckByUnit(ctx context.Context, unit string) (*payroll.Truck, error) {
	return getTruckByUnit(ctx, ts.tx, unit)
}
func (ts *txStore) ListTrucks(ctx context.Context) ([]payroll.Truck, error) {
	return listTrucks(ctx, ts.tx)
}
func (ts *txStore) CreateEntry(ctx context.Context, e *payroll.LogEntry) (payroll.EntryID, error) {
	return createEntry(ctx, ts.tx, e)
}
func (ts *txStore) GetEntry(ctx context.Context, id payroll.EntryID) (*payroll.LogEntry, error) {
	return getEntry(ctx, ts.tx, id)
}
func (ts *txStore) FindEntryByDriverTruckDate(ctx context.Context, driver payroll.DriverID, truck payroll.TruckID, date payroll.Date) (*payroll.LogEntry, error) {
	return findEntryByDriverTruckDate(ctx, ts.tx, driver, truck, date)
}
func (ts *txStore) ReplaceEntry(ctx context.Context, id payroll.EntryID, e *payroll.LogEntry) error {
	return replaceEntry(ctx, ts.tx, id, e)
}
func (ts *txStore) MergeQuantities(ctx context.Context, id payroll.EntryID, deltas payroll.Quantities, notes string) error {
	return mergeQuantities(ctx, ts.tx, id, deltas, notes)
}
func (ts *txStore) ListEntries(ctx context.Context, f payroll.EntryFilter) ([]payroll.LogEntry, error) {
	return listEntries(ctx, ts.tx, f)
}
func (ts *txStore) AssignPeriod(ctx context.Context, ids []payroll.EntryID, p payroll.Period) error {
	return assignPeriod(ctx, ts.tx, ids, p)
}
func (ts *txStore) ApproveEntry(ctx context.Context, id payroll.EntryID, approver string, at time.Time) error {
	return approveEntry(ctx, ts.tx, id, approver, at)
}
func (ts *txStore) ClosePeriod(ctx context.Context, p payroll.Period, approver string, at time.Time) (int, error) {
	return closePeriod(ctx, ts.tx, p, approver, at)
}
func (ts *txStore) MarkPaid(ctx context.Context, ids []payroll.EntryID, at time.Time) error {
	return markPaid(ctx, ts.tx, ids, at)
}

// =============================================================================
// STANDALONE WRAPPERS (payroll.Store)
// =============================================================================

func (s *Store) CreateDriver(ctx context.Context, d *payroll.Driver) (payroll.DriverID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createDriver(ctx, s.db, d)
}

func (s *Store) GetDriver(ctx context.Context, id payroll.DriverID) (*payroll.Driver, error) {
	return getDriver(ctx, s.db, id)
}

func (s *Store) ListDrivers(ctx context.Context) ([]payroll.Driver, error) {
	return listDrivers(ctx, s.db)
}

func (s *Store) UpdateDriverRates(ctx context.Context, id payroll.DriverID, mileage, detention *decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateDriverRates(ctx, s.db, id, mileage, detention)
}

func (s *Store) CreateTruck(ctx context.Context, unit string) (*payroll.Truck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createTruck(ctx, s.db, unit)
}

func (s *Store) GetTruckByUnit(ctx context.Context, unit string) (*payroll.Truck, error) {
	return getTruckByUnit(ctx, s.db, unit)
}

func (s *Store) ListTrucks(ctx context.Context) ([]payroll.Truck, error) {
	return listTrucks(ctx, s.db)
}

func (s *Store) CreateEntry(ctx context.Context, e *payroll.LogEntry) (payroll.EntryID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createEntry(ctx, s.db, e)
}

func (s *Store) GetEntry(ctx context.Context, id payroll.EntryID) (*payroll.LogEntry, error) {
	return getEntry(ctx, s.db, id)
}

func (s *Store) FindEntryByDriverTruckDate(ctx context.Context, driver payroll.DriverID, truck payroll.TruckID, date payroll.Date) (*payroll.LogEntry, error) {
	return findEntryByDriverTruckDate(ctx, s.db, driver, truck, date)
}

func (s *Store) ReplaceEntry(ctx context.Context, id payroll.EntryID, e *payroll.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return replaceEntry(ctx, s.db, id, e)
}

func (s *Store) MergeQuantities(ctx context.Context, id payroll.EntryID, deltas payroll.Quantities, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return mergeQuantities(ctx, s.db, id, deltas, notes)
}

func (s *Store) ListEntries(ctx context.Context, f payroll.EntryFilter) ([]payroll.LogEntry, error) {
	return listEntries(ctx, s.db, f)
}

func (s *Store) AssignPeriod(ctx context.Context, ids []payroll.EntryID, p payroll.Period) error {
	return s.WithTx(ctx, func(st payroll.Store) error {
		return st.AssignPeriod(ctx, ids, p)
	})
}

func (s *Store) ApproveEntry(ctx context.Context, id payroll.EntryID, approver string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return approveEntry(ctx, s.db, id, approver, at)
}

func (s *Store) ClosePeriod(ctx context.Context, p payroll.Period, approver string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return closePeriod(ctx, s.db, p, approver, at)
}

func (s *Store) MarkPaid(ctx context.Context, ids []payroll.EntryID, at time.Time) error {
	return s.WithTx(ctx, func(st payroll.Store) error {
		return st.MarkPaid(ctx, ids, at)
	})
}

// =============================================================================
// DRIVERS
// =============================================================================

func createDriver(ctx context.Context, db dbtx, d *payroll.Driver) (payroll.DriverID, error) {
	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO drivers (name, email, default_mileage_rate, default_detention_rate, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		d.Name, d.Email, nullDecimal(d.DefaultMileageRate), nullDecimal(d.DefaultDetentionRate),
		createdAt.Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert driver: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return payroll.DriverID(id), nil
}

func getDriver(ctx context.Context, db dbtx, id payroll.DriverID) (*payroll.Driver, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, name, email, default_mileage_rate, default_detention_rate, created_at
		FROM drivers WHERE id = ?`, int64(id))
	d, err := scanDriver(row)
	if err == sql.ErrNoRows {
		return nil, &payroll.NotFoundError{Kind: "driver", ID: int64(id)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get driver: %w", err)
	}
	return d, nil
}

func listDrivers(ctx context.Context, db dbtx) ([]payroll.Driver, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, email, default_mileage_rate, default_detention_rate, created_at
		FROM drivers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list drivers: %w", err)
	}
	defer rows.Close()

	var out []payroll.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func updateDriverRates(ctx context.Context, db dbtx, id payroll.DriverID, mileage, detention *decimal.Decimal) error {
	res, err := db.ExecContext(ctx, `
		UPDATE drivers SET default_mileage_rate = ?, default_detention_rate = ? WHERE id = ?`,
		nullDecimal(mileage), nullDecimal(detention), int64(id))
	if err != nil {
		return fmt.Errorf("failed to update driver rates: %w", err)
	}
	return requireRow(res, "driver", int64(id))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDriver(row rowScanner) (*payroll.Driver, error) {
	var (
		d         payroll.Driver
		mileage   sql.NullString
		detention sql.NullString
		createdAt string
	)
	if err := row.Scan(&d.ID, &d.Name, &d.Email, &mileage, &detention, &createdAt); err != nil {
		return nil, err
	}
	d.DefaultMileageRate = parseNullDecimal(mileage)
	d.DefaultDetentionRate = parseNullDecimal(detention)
	d.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return &d, nil
}

// =============================================================================
// TRUCKS
// =============================================================================

func createTruck(ctx context.Context, db dbtx, unit string) (*payroll.Truck, error) {
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx,
		`INSERT INTO trucks (unit, created_at) VALUES (?, ?)`,
		unit, now.Format(timeLayout))
	if err != nil {
		if isUniqueConstraintError(err) {
			// Lost a race to another writer; the existing row wins.
			return getTruckByUnit(ctx, db, unit)
		}
		return nil, fmt.Errorf("failed to insert truck: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &payroll.Truck{ID: payroll.TruckID(id), Unit: unit, CreatedAt: now}, nil
}

func getTruckByUnit(ctx context.Context, db dbtx, unit string) (*payroll.Truck, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, unit, created_at FROM trucks WHERE unit = ?`, unit)

	var (
		t         payroll.Truck
		createdAt string
	)
	err := row.Scan(&t.ID, &t.Unit, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get truck: %w", err)
	}
	t.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return &t, nil
}

func listTrucks(ctx context.Context, db dbtx) ([]payroll.Truck, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, unit, created_at FROM trucks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list trucks: %w", err)
	}
	defer rows.Close()

	var out []payroll.Truck
	for rows.Next() {
		var (
			t         payroll.Truck
			createdAt string
		)
		if err := rows.Scan(&t.ID, &t.Unit, &createdAt); err != nil {
			return nil, err
		}
		t.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		out = append(out, t)
	}
	return out, rows.Err()
}

// =============================================================================
// ENTRIES
// =============================================================================

const entryColumns = `id, driver_id, truck_id, log_date, miles, value_hours, detention_minutes,
	mileage_rate, per_value_rate, detention_rate,
	start_time, end_time, total_minutes, notes,
	period_start, period_end, approved_at, approved_by, paid_at,
	created_at, updated_at`

func createEntry(ctx context.Context, db dbtx, e *payroll.LogEntry) (payroll.EntryID, error) {
	now := time.Now().UTC()
	createdAt, updatedAt := e.CreatedAt, e.UpdatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	if updatedAt.IsZero() {
		updatedAt = now
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO logs
		(driver_id, truck_id, log_date, miles, value_hours, detention_minutes,
		 mileage_rate, per_value_rate, detention_rate,
		 start_time, end_time, total_minutes, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(e.DriverID), int64(e.TruckID), e.Date.String(),
		e.Miles.String(), e.ValueHours.String(), e.DetentionMinutes,
		e.Rates.Mileage.String(), e.Rates.PerValue.String(), e.Rates.Detention.String(),
		nullString(e.StartTime), nullString(e.EndTime), e.TotalMinutes, nullString(e.Notes),
		createdAt.Format(timeLayout), updatedAt.Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return payroll.EntryID(id), nil
}

func getEntry(ctx context.Context, db dbtx, id payroll.EntryID) (*payroll.LogEntry, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM logs WHERE id = ?`, int64(id))
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, &payroll.NotFoundError{Kind: "entry", ID: int64(id)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return e, nil
}

func findEntryByDriverTruckDate(ctx context.Context, db dbtx, driver payroll.DriverID, truck payroll.TruckID, date payroll.Date) (*payroll.LogEntry, error) {
	// Most recent row wins when duplicates somehow exist.
	row := db.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM logs
		WHERE driver_id = ? AND truck_id = ? AND log_date = ?
		ORDER BY id DESC LIMIT 1`,
		int64(driver), int64(truck), date.String())
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find entry: %w", err)
	}
	return e, nil
}

func replaceEntry(ctx context.Context, db dbtx, id payroll.EntryID, e *payroll.LogEntry) error {
	res, err := db.ExecContext(ctx, `
		UPDATE logs SET
			log_date = ?, miles = ?, value_hours = ?, detention_minutes = ?,
			mileage_rate = ?, per_value_rate = ?, detention_rate = ?,
			start_time = ?, end_time = ?, total_minutes = ?, notes = ?,
			updated_at = ?
		WHERE id = ?`,
		e.Date.String(), e.Miles.String(), e.ValueHours.String(), e.DetentionMinutes,
		e.Rates.Mileage.String(), e.Rates.PerValue.String(), e.Rates.Detention.String(),
		nullString(e.StartTime), nullString(e.EndTime), e.TotalMinutes, nullString(e.Notes),
		time.Now().UTC().Format(timeLayout),
		int64(id),
	)
	if err != nil {
		return fmt.Errorf("failed to replace entry: %w", err)
	}
	return requireRow(res, "entry", int64(id))
}

func mergeQuantities(ctx context.Context, db dbtx, id payroll.EntryID, deltas payroll.Quantities, notes string) error {
	// Quantities are decimal TEXT, so the addition happens in Go, not SQL.
	existing, err := getEntry(ctx, db, id)
	if err != nil {
		return err
	}
	merged := existing.Quantities.Add(deltas)

	_, err = db.ExecContext(ctx, `
		UPDATE logs SET miles = ?, value_hours = ?, detention_minutes = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		merged.Miles.String(), merged.ValueHours.String(), merged.DetentionMinutes,
		nullString(notes), time.Now().UTC().Format(timeLayout), int64(id))
	if err != nil {
		return fmt.Errorf("failed to merge entry: %w", err)
	}
	return nil
}

func listEntries(ctx context.Context, db dbtx, f payroll.EntryFilter) ([]payroll.LogEntry, error) {
	var (
		where []string
		args  []any
	)
	if f.From != nil {
		where = append(where, "log_date >= ?")
		args = append(args, f.From.String())
	}
	if f.To != nil {
		where = append(where, "log_date <= ?")
		args = append(args, f.To.String())
	}
	if f.DriverID != nil {
		where = append(where, "driver_id = ?")
		args = append(args, int64(*f.DriverID))
	}
	if f.TruckID != nil {
		where = append(where, "truck_id = ?")
		args = append(args, int64(*f.TruckID))
	}
	if f.Period != nil {
		where = append(where, "period_start = ? AND period_end = ?")
		args = append(args, f.Period.Start.String(), f.Period.End.String())
	}

	query := `SELECT ` + entryColumns + ` FROM logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if f.Period != nil {
		// Chronological settlement order for period views.
		query += " ORDER BY log_date ASC, id ASC"
	} else {
		query += " ORDER BY log_date DESC, id DESC"
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var out []payroll.LogEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func scanEntry(row rowScanner) (*payroll.LogEntry, error) {
	var (
		e           payroll.LogEntry
		logDate     string
		miles       string
		valueHours  string
		mileageRate string
		perValue    string
		detention   string
		startTime   sql.NullString
		endTime     sql.NullString
		notes       sql.NullString
		periodStart sql.NullString
		periodEnd   sql.NullString
		approvedAt  sql.NullString
		approvedBy  sql.NullString
		paidAt      sql.NullString
		createdAt   string
		updatedAt   string
	)
	err := row.Scan(
		&e.ID, &e.DriverID, &e.TruckID, &logDate, &miles, &valueHours, &e.DetentionMinutes,
		&mileageRate, &perValue, &detention,
		&startTime, &endTime, &e.TotalMinutes, &notes,
		&periodStart, &periodEnd, &approvedAt, &approvedBy, &paidAt,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if e.Date, err = payroll.ParseDate(logDate); err != nil {
		return nil, fmt.Errorf("corrupt log_date %q: %w", logDate, err)
	}
	if e.Miles, err = decimal.NewFromString(miles); err != nil {
		return nil, fmt.Errorf("corrupt miles %q: %w", miles, err)
	}
	if e.ValueHours, err = decimal.NewFromString(valueHours); err != nil {
		return nil, fmt.Errorf("corrupt value_hours %q: %w", valueHours, err)
	}
	if e.Rates.Mileage, err = decimal.NewFromString(mileageRate); err != nil {
		return nil, fmt.Errorf("corrupt mileage_rate %q: %w", mileageRate, err)
	}
	if e.Rates.PerValue, err = decimal.NewFromString(perValue); err != nil {
		return nil, fmt.Errorf("corrupt per_value_rate %q: %w", perValue, err)
	}
	if e.Rates.Detention, err = decimal.NewFromString(detention); err != nil {
		return nil, fmt.Errorf("corrupt detention_rate %q: %w", detention, err)
	}

	e.StartTime = startTime.String
	e.EndTime = endTime.String
	e.Notes = notes.String
	e.ApprovedBy = approvedBy.String
	e.PeriodStart = parseNullDate(periodStart)
	e.PeriodEnd = parseNullDate(periodEnd)
	e.ApprovedAt = parseNullTime(approvedAt)
	e.PaidAt = parseNullTime(paidAt)
	e.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	e.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return &e, nil
}

// =============================================================================
// LIFECYCLE WRITES
// =============================================================================

func assignPeriod(ctx context.Context, db dbtx, ids []payroll.EntryID, p payroll.Period) error {
	now := time.Now().UTC().Format(timeLayout)
	for _, id := range ids {
		res, err := db.ExecContext(ctx, `
			UPDATE logs SET period_start = ?, period_end = ?, updated_at = ? WHERE id = ?`,
			p.Start.String(), p.End.String(), now, int64(id))
		if err != nil {
			return fmt.Errorf("failed to assign period: %w", err)
		}
		if err := requireRow(res, "entry", int64(id)); err != nil {
			return err
		}
	}
	return nil
}

func approveEntry(ctx context.Context, db dbtx, id payroll.EntryID, approver string, at time.Time) error {
	res, err := db.ExecContext(ctx, `
		UPDATE logs SET approved_at = ?, approved_by = ?, updated_at = ? WHERE id = ?`,
		at.Format(timeLayout), approver, at.Format(timeLayout), int64(id))
	if err != nil {
		return fmt.Errorf("failed to approve entry: %w", err)
	}
	return requireRow(res, "entry", int64(id))
}

func closePeriod(ctx context.Context, db dbtx, p payroll.Period, approver string, at time.Time) (int, error) {
	// COALESCE keeps the first approval timestamp across repeated closes;
	// the approver is always refreshed.
	res, err := db.ExecContext(ctx, `
		UPDATE logs SET approved_at = COALESCE(approved_at, ?), approved_by = ?, updated_at = ?
		WHERE period_start = ? AND period_end = ?`,
		at.Format(timeLayout), approver, at.Format(timeLayout),
		p.Start.String(), p.End.String())
	if err != nil {
		return 0, fmt.Errorf("failed to close period: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func markPaid(ctx context.Context, db dbtx, ids []payroll.EntryID, at time.Time) error {
	stamp := at.Format(timeLayout)
	for _, id := range ids {
		res, err := db.ExecContext(ctx, `
			UPDATE logs SET paid_at = ?, updated_at = ? WHERE id = ?`,
			stamp, stamp, int64(id))
		if err != nil {
			return fmt.Errorf("failed to mark paid: %w", err)
		}
		if err := requireRow(res, "entry", int64(id)); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// requireRow turns a zero-row update into a not-found error so lifecycle
// operations on missing ids never silently succeed.
func requireRow(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &payroll.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDecimal(v *decimal.Decimal) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: v.String(), Valid: true}
}

func parseNullDecimal(v sql.NullString) *decimal.Decimal {
	if !v.Valid {
		return nil
	}
	d, err := decimal.NewFromString(v.String)
	if err != nil {
		return nil
	}
	return &d
}

func parseNullDate(v sql.NullString) *payroll.Date {
	if !v.Valid {
		return nil
	}
	d, err := payroll.ParseDate(v.String)
	if err != nil {
		return nil
	}
	return &d
}

func parseNullTime(v sql.NullString) *time.Time {
	if !v.Valid {
		return nil
	}
	t, err := time.Parse(timeLayout, v.String)
	if err != nil {
		return nil
	}
	return &t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
