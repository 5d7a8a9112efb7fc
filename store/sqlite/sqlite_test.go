package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetware/driverlog/payroll"
	"github.com/fleetware/driverlog/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func decPtr(t *testing.T, s string) *decimal.Decimal {
	d := dec(t, s)
	return &d
}

func seedDriverTruck(t *testing.T, s *sqlite.Store) (payroll.DriverID, payroll.TruckID) {
	t.Helper()
	ctx := context.Background()
	driverID, err := s.CreateDriver(ctx, &payroll.Driver{Name: "Marcus Webb"})
	require.NoError(t, err)
	truck, err := s.CreateTruck(ctx, "T-104")
	require.NoError(t, err)
	return driverID, truck.ID
}

func testEntry(driver payroll.DriverID, truck payroll.TruckID, date payroll.Date) *payroll.LogEntry {
	return &payroll.LogEntry{
		DriverID: driver,
		TruckID:  truck,
		Date:     date,
		Quantities: payroll.Quantities{
			Miles:            decimal.NewFromInt(412),
			ValueHours:       decimal.NewFromInt(2),
			DetentionMinutes: 45,
		},
		Rates: payroll.RateSnapshot{
			Mileage:   decimal.NewFromFloat(0.52),
			PerValue:  decimal.NewFromInt(25),
			Detention: decimal.NewFromInt(20),
		},
		StartTime:    "06:30",
		EndTime:      "16:15",
		TotalMinutes: 585,
		Notes:        "Detention at Rochelle DC",
	}
}

// =============================================================================
// ROUND TRIPS
// =============================================================================

func TestDriver_RoundTrip(t *testing.T) {
	// GIVEN: A driver with decimal default rates
	// WHEN: Storing and reloading
	// THEN: The rates survive exactly (TEXT storage, never REAL)

	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateDriver(ctx, &payroll.Driver{
		Name:                 "Marcus Webb",
		Email:                "marcus@example.com",
		DefaultMileageRate:   decPtr(t, "0.52"),
		DefaultDetentionRate: decPtr(t, "20"),
	})
	require.NoError(t, err)

	d, err := s.GetDriver(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Marcus Webb", d.Name)
	assert.Equal(t, "marcus@example.com", d.Email)
	require.NotNil(t, d.DefaultMileageRate)
	assert.True(t, d.DefaultMileageRate.Equal(dec(t, "0.52")))
	require.NotNil(t, d.DefaultDetentionRate)
	assert.True(t, d.DefaultDetentionRate.Equal(dec(t, "20")))
}

func TestDriver_NilRates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateDriver(ctx, &payroll.Driver{Name: "Elena Vasquez"})
	require.NoError(t, err)

	d, err := s.GetDriver(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, d.DefaultMileageRate)
	assert.Nil(t, d.DefaultDetentionRate)
}

func TestUpdateDriverRates_NilClears(t *testing.T) {
	// Passing nil clears a stored default back to "use the system rate".
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateDriver(ctx, &payroll.Driver{
		Name:               "Marcus Webb",
		DefaultMileageRate: decPtr(t, "0.52"),
	})
	require.NoError(t, err)

	require.NoError(t, s.UpdateDriverRates(ctx, id, nil, decPtr(t, "18")))

	d, err := s.GetDriver(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, d.DefaultMileageRate)
	require.NotNil(t, d.DefaultDetentionRate)
	assert.True(t, d.DefaultDetentionRate.Equal(dec(t, "18")))
}

func TestEntry_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	driverID, truckID := seedDriverTruck(t, s)
	date := payroll.NewDate(2025, time.March, 11)

	id, err := s.CreateEntry(ctx, testEntry(driverID, truckID, date))
	require.NoError(t, err)

	e, err := s.GetEntry(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, driverID, e.DriverID)
	assert.Equal(t, truckID, e.TruckID)
	assert.True(t, e.Date.Equal(date))
	assert.True(t, e.Miles.Equal(dec(t, "412")))
	assert.True(t, e.Rates.Mileage.Equal(dec(t, "0.52")))
	assert.Equal(t, 45, e.DetentionMinutes)
	assert.Equal(t, "06:30", e.StartTime)
	assert.Equal(t, 585, e.TotalMinutes)
	assert.Equal(t, "Detention at Rochelle DC", e.Notes)
	assert.Nil(t, e.PeriodStart)
	assert.Nil(t, e.ApprovedAt)
	assert.Nil(t, e.PaidAt)
	assert.Equal(t, payroll.StatusOpen, e.Status())
}

// =============================================================================
// NOT-FOUND SEMANTICS
// =============================================================================

func TestNotFoundSemantics(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Point lookups surface NotFoundError.
	_, err := s.GetDriver(ctx, 99)
	var nf *payroll.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "driver", nf.Kind)

	_, err = s.GetEntry(ctx, 99)
	assert.True(t, payroll.IsNotFound(err))

	// Existence probes return (nil, nil) on a miss.
	truck, err := s.GetTruckByUnit(ctx, "T-999")
	require.NoError(t, err)
	assert.Nil(t, truck)

	entry, err := s.FindEntryByDriverTruckDate(ctx, 1, 1, payroll.NewDate(2025, time.March, 11))
	require.NoError(t, err)
	assert.Nil(t, entry)

	// Zero-row lifecycle writes are errors, never silent no-ops.
	err = s.ApproveEntry(ctx, 99, "ops", time.Now().UTC())
	assert.True(t, payroll.IsNotFound(err))
	err = s.MarkPaid(ctx, []payroll.EntryID{99}, time.Now().UTC())
	assert.True(t, payroll.IsNotFound(err))
}

func TestCreateTruck_DuplicateUnitReturnsExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreateTruck(ctx, "T-104")
	require.NoError(t, err)
	second, err := s.CreateTruck(ctx, "T-104")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_RollbackOnError(t *testing.T) {
	// GIVEN: A transaction that creates an entry then fails
	// WHEN: WithTx returns the error
	// THEN: The entry does not exist

	s := newTestStore(t)
	ctx := context.Background()
	driverID, truckID := seedDriverTruck(t, s)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(st payroll.Store) error {
		_, err := st.CreateEntry(ctx, testEntry(driverID, truckID, payroll.NewDate(2025, time.March, 11)))
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	entries, err := s.ListEntries(ctx, payroll.EntryFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWithTx_Commit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	driverID, truckID := seedDriverTruck(t, s)

	var id payroll.EntryID
	err := s.WithTx(ctx, func(st payroll.Store) error {
		var err error
		id, err = st.CreateEntry(ctx, testEntry(driverID, truckID, payroll.NewDate(2025, time.March, 11)))
		return err
	})
	require.NoError(t, err)

	_, err = s.GetEntry(ctx, id)
	assert.NoError(t, err)
}

// =============================================================================
// REPLACE / MERGE
// =============================================================================

func TestReplaceEntry_PreservesLifecycleStamps(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	driverID, truckID := seedDriverTruck(t, s)
	date := payroll.NewDate(2025, time.March, 11)

	id, err := s.CreateEntry(ctx, testEntry(driverID, truckID, date))
	require.NoError(t, err)

	period := payroll.Period{Start: payroll.NewDate(2025, time.March, 10), End: payroll.NewDate(2025, time.March, 16)}
	require.NoError(t, s.AssignPeriod(ctx, []payroll.EntryID{id}, period))
	approvedAt := time.Date(2025, time.March, 12, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.ApproveEntry(ctx, id, "alice", approvedAt))

	replacement := testEntry(driverID, truckID, date)
	replacement.Miles = dec(t, "500")
	require.NoError(t, s.ReplaceEntry(ctx, id, replacement))

	e, err := s.GetEntry(ctx, id)
	require.NoError(t, err)
	assert.True(t, e.Miles.Equal(dec(t, "500")))
	require.NotNil(t, e.PeriodStart)
	assert.True(t, e.PeriodStart.Equal(period.Start))
	require.NotNil(t, e.ApprovedAt)
	assert.True(t, e.ApprovedAt.Equal(approvedAt))
	assert.Equal(t, "alice", e.ApprovedBy)
}

func TestMergeQuantities(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	driverID, truckID := seedDriverTruck(t, s)

	id, err := s.CreateEntry(ctx, testEntry(driverID, truckID, payroll.NewDate(2025, time.March, 11)))
	require.NoError(t, err)

	deltas := payroll.Quantities{
		Miles:            dec(t, "50"),
		ValueHours:       dec(t, "1"),
		DetentionMinutes: 10,
	}
	require.NoError(t, s.MergeQuantities(ctx, id, deltas, "first\nsecond"))

	e, err := s.GetEntry(ctx, id)
	require.NoError(t, err)
	assert.True(t, e.Miles.Equal(dec(t, "462")))
	assert.True(t, e.ValueHours.Equal(dec(t, "3")))
	assert.Equal(t, 55, e.DetentionMinutes)
	assert.Equal(t, "first\nsecond", e.Notes)
	assert.True(t, e.Rates.Mileage.Equal(dec(t, "0.52")), "merge never touches the snapshot")
}

// =============================================================================
// CLOSE PERIOD - COALESCE semantics
// =============================================================================

func TestClosePeriod_Coalesce(t *testing.T) {
	// GIVEN: Two entries in the period, one already approved earlier
	// WHEN: Closing the period twice with later clocks
	// THEN: Approval timestamps never move once set; approver always refreshed

	s := newTestStore(t)
	ctx := context.Background()
	driverID, truckID := seedDriverTruck(t, s)

	id1, err := s.CreateEntry(ctx, testEntry(driverID, truckID, payroll.NewDate(2025, time.March, 10)))
	require.NoError(t, err)
	id2, err := s.CreateEntry(ctx, testEntry(driverID, truckID, payroll.NewDate(2025, time.March, 11)))
	require.NoError(t, err)

	period := payroll.Period{Start: payroll.NewDate(2025, time.March, 10), End: payroll.NewDate(2025, time.March, 16)}
	require.NoError(t, s.AssignPeriod(ctx, []payroll.EntryID{id1, id2}, period))

	early := time.Date(2025, time.March, 12, 8, 0, 0, 0, time.UTC)
	require.NoError(t, s.ApproveEntry(ctx, id1, "alice", early))

	closeAt := time.Date(2025, time.March, 17, 9, 0, 0, 0, time.UTC)
	n, err := s.ClosePeriod(ctx, period, "bob", closeAt)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	e1, err := s.GetEntry(ctx, id1)
	require.NoError(t, err)
	assert.True(t, e1.ApprovedAt.Equal(early), "pre-existing timestamp preserved")
	assert.Equal(t, "bob", e1.ApprovedBy, "approver refreshed")

	e2, err := s.GetEntry(ctx, id2)
	require.NoError(t, err)
	assert.True(t, e2.ApprovedAt.Equal(closeAt))

	// Second close with a later clock changes nothing.
	n, err = s.ClosePeriod(ctx, period, "bob", closeAt.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	e2, err = s.GetEntry(ctx, id2)
	require.NoError(t, err)
	assert.True(t, e2.ApprovedAt.Equal(closeAt), "close is idempotent on timestamps")
}

// =============================================================================
// LISTING
// =============================================================================

func TestListEntries_Ordering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	driverID, truckID := seedDriverTruck(t, s)

	var ids []payroll.EntryID
	for _, day := range []int{11, 10, 12} {
		id, err := s.CreateEntry(ctx, testEntry(driverID, truckID, payroll.NewDate(2025, time.March, day)))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	// Default: newest first.
	entries, err := s.ListEntries(ctx, payroll.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "2025-03-12", entries[0].Date.String())
	assert.Equal(t, "2025-03-10", entries[2].Date.String())

	// Period filter: chronological.
	period := payroll.Period{Start: payroll.NewDate(2025, time.March, 10), End: payroll.NewDate(2025, time.March, 16)}
	require.NoError(t, s.AssignPeriod(ctx, ids, period))

	entries, err = s.ListEntries(ctx, payroll.EntryFilter{Period: &period})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "2025-03-10", entries[0].Date.String())
	assert.Equal(t, "2025-03-12", entries[2].Date.String())
}

func TestListEntries_DriverAndDateFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	driverID, truckID := seedDriverTruck(t, s)
	otherID, err := s.CreateDriver(ctx, &payroll.Driver{Name: "Elena Vasquez"})
	require.NoError(t, err)

	for _, day := range []int{10, 11} {
		_, err := s.CreateEntry(ctx, testEntry(driverID, truckID, payroll.NewDate(2025, time.March, day)))
		require.NoError(t, err)
	}
	_, err = s.CreateEntry(ctx, testEntry(otherID, truckID, payroll.NewDate(2025, time.March, 10)))
	require.NoError(t, err)

	entries, err := s.ListEntries(ctx, payroll.EntryFilter{DriverID: &driverID})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	from := payroll.NewDate(2025, time.March, 11)
	entries, err = s.ListEntries(ctx, payroll.EntryFilter{From: &from})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
