package payroll_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetware/driverlog/payroll"
)

// =============================================================================
// SETUP
// =============================================================================

// seedEntries creates n open entries for one driver on consecutive dates
// starting March 10 (a Monday) and returns their ids.
func seedEntries(t *testing.T, e *payroll.Engine, n int) (payroll.DriverID, []payroll.EntryID) {
	t.Helper()
	ctx := context.Background()
	driver := seedDriver(t, e, "Marcus Webb", nil, nil)

	ids := make([]payroll.EntryID, n)
	for i := 0; i < n; i++ {
		date := payroll.NewDate(2025, time.March, 10).AddDays(i)
		result, err := e.Submit(ctx, submission(driver, "T-104", date, "100", "1", 0))
		require.NoError(t, err)
		ids[i] = result.Entry.ID
	}
	return driver, ids
}

var marchPeriod = payroll.Period{
	Start: payroll.NewDate(2025, time.March, 10),
	End:   payroll.NewDate(2025, time.March, 16),
}

// =============================================================================
// ASSIGN PERIOD
// =============================================================================

func TestAssignPeriod_Stamps(t *testing.T) {
	// GIVEN: Three open entries
	// WHEN: Assigning them to a period
	// THEN: All three carry identical period boundaries and report
	//       the period-assigned status

	engine, _ := newTestEngine(t, payroll.Config{})
	_, ids := seedEntries(t, engine, 3)
	ctx := context.Background()

	require.NoError(t, engine.AssignPeriod(ctx, admin, ids, marchPeriod))

	for _, id := range ids {
		entry, err := engine.Entry(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, entry.PeriodStart)
		assert.True(t, entry.PeriodStart.Equal(marchPeriod.Start))
		assert.True(t, entry.PeriodEnd.Equal(marchPeriod.End))
		assert.Equal(t, payroll.StatusPeriodAssigned, entry.Status())
	}
}

func TestAssignPeriod_ReassignOverwrites(t *testing.T) {
	// Reassigning an already-assigned entry overwrites the stamp.
	engine, _ := newTestEngine(t, payroll.Config{})
	_, ids := seedEntries(t, engine, 1)
	ctx := context.Background()

	require.NoError(t, engine.AssignPeriod(ctx, admin, ids, marchPeriod))

	next := payroll.Period{Start: marchPeriod.Start.AddDays(7), End: marchPeriod.End.AddDays(7)}
	require.NoError(t, engine.AssignPeriod(ctx, admin, ids, next))

	entry, err := engine.Entry(ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, entry.PeriodStart.Equal(next.Start))
}

func TestAssignPeriod_MissingIDFailsWholeBatch(t *testing.T) {
	// GIVEN: Two real entries and one bogus id
	// WHEN: Assigning the batch
	// THEN: The whole batch fails with not-found; the real entries stay open

	engine, _ := newTestEngine(t, payroll.Config{})
	_, ids := seedEntries(t, engine, 2)
	ctx := context.Background()

	err := engine.AssignPeriod(ctx, admin, append(ids, 999), marchPeriod)
	assert.True(t, payroll.IsNotFound(err), "got %v", err)

	for _, id := range ids {
		entry, err := engine.Entry(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, entry.PeriodStart, "batch must be all-or-nothing")
	}
}

func TestAssignPeriod_Validation(t *testing.T) {
	engine, _ := newTestEngine(t, payroll.Config{})
	_, ids := seedEntries(t, engine, 1)
	ctx := context.Background()

	err := engine.AssignPeriod(ctx, admin, nil, marchPeriod)
	assert.True(t, payroll.IsValidation(err), "empty ids")

	err = engine.AssignPeriod(ctx, admin, ids, payroll.Period{})
	assert.True(t, payroll.IsValidation(err), "zero period")

	err = engine.AssignPeriod(ctx, admin, ids, payroll.Period{Start: marchPeriod.End, End: marchPeriod.Start})
	assert.True(t, payroll.IsValidation(err), "end before start")
}

// =============================================================================
// APPROVE / CLOSE PERIOD
// =============================================================================

func TestApprove_Stamps(t *testing.T) {
	engine, _ := newTestEngine(t, payroll.Config{})
	_, ids := seedEntries(t, engine, 1)
	ctx := context.Background()

	require.NoError(t, engine.Approve(ctx, admin, ids[0]))

	entry, err := engine.Entry(ctx, ids[0])
	require.NoError(t, err)
	require.NotNil(t, entry.ApprovedAt)
	assert.Equal(t, testClock, *entry.ApprovedAt)
	assert.Equal(t, "ops", entry.ApprovedBy)
	assert.Equal(t, payroll.StatusApproved, entry.Status())
}

func TestApprove_MissingEntry(t *testing.T) {
	engine, _ := newTestEngine(t, payroll.Config{})

	err := engine.Approve(context.Background(), admin, 42)
	assert.True(t, payroll.IsNotFound(err), "approval of a missing id must surface, got %v", err)
}

func TestClosePeriod_ApprovesAllAssigned(t *testing.T) {
	// GIVEN: Three entries assigned to the period and one left open
	// WHEN: Closing the period
	// THEN: The three assigned entries are approved; the open one is not

	engine, _ := newTestEngine(t, payroll.Config{})
	_, ids := seedEntries(t, engine, 4)
	ctx := context.Background()

	require.NoError(t, engine.AssignPeriod(ctx, admin, ids[:3], marchPeriod))

	n, err := engine.ClosePeriod(ctx, admin, marchPeriod)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, id := range ids[:3] {
		entry, err := engine.Entry(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, payroll.StatusApproved, entry.Status())
		assert.Equal(t, "ops", entry.ApprovedBy)
	}
	open, err := engine.Entry(ctx, ids[3])
	require.NoError(t, err)
	assert.Equal(t, payroll.StatusOpen, open.Status())
}

func TestClosePeriod_PreservesEarlierApprovalTimestamp(t *testing.T) {
	// GIVEN: One entry individually approved at an earlier instant, then
	//        assigned to the period alongside an unapproved one
	// WHEN: Closing the period with a later clock
	// THEN: The earlier approval timestamp survives, the approver is
	//       refreshed, and a second close changes no timestamps

	engine, _ := newTestEngine(t, payroll.Config{})
	_, ids := seedEntries(t, engine, 2)
	ctx := context.Background()

	earlier := testClock.Add(-48 * time.Hour)
	engine.WithClock(func() time.Time { return earlier })
	firstAdmin := payroll.Actor{ID: "alice", Role: payroll.RoleAdmin}
	require.NoError(t, engine.Approve(ctx, firstAdmin, ids[0]))

	engine.WithClock(func() time.Time { return testClock })
	require.NoError(t, engine.AssignPeriod(ctx, admin, ids, marchPeriod))

	n, err := engine.ClosePeriod(ctx, admin, marchPeriod)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	preApproved, err := engine.Entry(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, earlier, *preApproved.ApprovedAt, "original timestamp preserved")
	assert.Equal(t, "ops", preApproved.ApprovedBy, "approver always refreshed")

	fresh, err := engine.Entry(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, testClock, *fresh.ApprovedAt)

	// Second close: idempotent on timestamps.
	later := testClock.Add(24 * time.Hour)
	engine.WithClock(func() time.Time { return later })
	n, err = engine.ClosePeriod(ctx, admin, marchPeriod)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	preApproved, err = engine.Entry(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, earlier, *preApproved.ApprovedAt)
	fresh, err = engine.Entry(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, testClock, *fresh.ApprovedAt, "second close must not re-stamp")
}

func TestClosePeriod_EmptyPeriod(t *testing.T) {
	// Closing a period nothing was assigned to approves zero entries.
	engine, _ := newTestEngine(t, payroll.Config{})
	seedEntries(t, engine, 2)

	n, err := engine.ClosePeriod(context.Background(), admin, marchPeriod)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// =============================================================================
// MARK PAID
// =============================================================================

func TestMarkPaid_Stamps(t *testing.T) {
	engine, _ := newTestEngine(t, payroll.Config{})
	_, ids := seedEntries(t, engine, 2)
	ctx := context.Background()

	require.NoError(t, engine.MarkPaid(ctx, admin, ids))

	for _, id := range ids {
		entry, err := engine.Entry(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, entry.PaidAt)
		assert.Equal(t, testClock, *entry.PaidAt)
		assert.Equal(t, payroll.StatusPaid, entry.Status())
	}
}

func TestMarkPaid_MissingIDFailsWholeBatch(t *testing.T) {
	engine, _ := newTestEngine(t, payroll.Config{})
	_, ids := seedEntries(t, engine, 1)
	ctx := context.Background()

	err := engine.MarkPaid(ctx, admin, append(ids, 999))
	assert.True(t, payroll.IsNotFound(err), "got %v", err)

	entry, err := engine.Entry(ctx, ids[0])
	require.NoError(t, err)
	assert.Nil(t, entry.PaidAt)
}

func TestMarkPaid_UnapprovedAllowedByDefault(t *testing.T) {
	// Default policy: approval is not a precondition for payment.
	engine, _ := newTestEngine(t, payroll.Config{})
	_, ids := seedEntries(t, engine, 1)

	assert.NoError(t, engine.MarkPaid(context.Background(), admin, ids))
}

func TestMarkPaid_ApprovalRequiredByPolicy(t *testing.T) {
	// GIVEN: The require-approval policy switch is on
	// WHEN: Marking one approved and one unapproved entry paid
	// THEN: The batch is rejected and the approved entry is not stamped

	engine, _ := newTestEngine(t, payroll.Config{
		Lifecycle: payroll.LifecyclePolicy{RequireApprovedBeforePaid: true},
	})
	_, ids := seedEntries(t, engine, 2)
	ctx := context.Background()

	require.NoError(t, engine.Approve(ctx, admin, ids[0]))

	err := engine.MarkPaid(ctx, admin, ids)
	assert.True(t, payroll.IsValidation(err), "got %v", err)

	approved, err := engine.Entry(ctx, ids[0])
	require.NoError(t, err)
	assert.Nil(t, approved.PaidAt, "batch must be all-or-nothing")

	// Approving the second entry unblocks the batch.
	require.NoError(t, engine.Approve(ctx, admin, ids[1]))
	assert.NoError(t, engine.MarkPaid(ctx, admin, ids))
}

// =============================================================================
// AUTHORIZATION
// =============================================================================

func TestLifecycle_RequiresAdmin(t *testing.T) {
	engine, _ := newTestEngine(t, payroll.Config{})
	_, ids := seedEntries(t, engine, 1)
	ctx := context.Background()
	driver := payroll.Actor{ID: "marcus", Role: payroll.RoleDriver}

	assert.True(t, payroll.IsAuthorization(engine.AssignPeriod(ctx, driver, ids, marchPeriod)))
	assert.True(t, payroll.IsAuthorization(engine.Approve(ctx, driver, ids[0])))
	_, err := engine.ClosePeriod(ctx, driver, marchPeriod)
	assert.True(t, payroll.IsAuthorization(err))
	assert.True(t, payroll.IsAuthorization(engine.MarkPaid(ctx, driver, ids)))
	_, err = engine.EditEntry(ctx, driver, ids[0], payroll.EntryEdit{Date: marchPeriod.Start})
	assert.True(t, payroll.IsAuthorization(err))
	_, err = engine.CreateDriver(ctx, driver, "Someone", "", nil, nil)
	assert.True(t, payroll.IsAuthorization(err))
}

// =============================================================================
// EDIT
// =============================================================================

func TestEditEntry_ReSnapshotsRates(t *testing.T) {
	// GIVEN: An entry snapshotted at the driver's old default of 0.52
	// WHEN: The default changes to 0.60 and an admin edits the entry
	// THEN: The edit re-resolves the snapshot against the current defaults

	engine, _ := newTestEngine(t, payroll.Config{})
	driver := seedDriver(t, engine, "Marcus Webb", decPtr("0.52"), nil)
	ctx := context.Background()
	date := payroll.NewDate(2025, time.March, 11)

	result, err := engine.Submit(ctx, submission(driver, "T-104", date, "100", "1", 0))
	require.NoError(t, err)

	require.NoError(t, engine.SetDriverRates(ctx, admin, driver, decPtr("0.60"), nil))

	updated, err := engine.EditEntry(ctx, admin, result.Entry.ID, payroll.EntryEdit{
		Date:       date,
		Quantities: payroll.Quantities{Miles: dec("120"), ValueHours: dec("1")},
		Notes:      "corrected odometer",
	})
	require.NoError(t, err)

	assert.True(t, updated.Miles.Equal(dec("120")))
	assert.True(t, updated.Rates.Mileage.Equal(dec("0.60")), "snapshot re-resolved on edit")
	assert.Equal(t, "corrected odometer", updated.Notes)
}

func TestEditEntry_PreservesLifecycleStamps(t *testing.T) {
	engine, _ := newTestEngine(t, payroll.Config{})
	_, ids := seedEntries(t, engine, 1)
	ctx := context.Background()

	require.NoError(t, engine.AssignPeriod(ctx, admin, ids, marchPeriod))
	require.NoError(t, engine.Approve(ctx, admin, ids[0]))

	updated, err := engine.EditEntry(ctx, admin, ids[0], payroll.EntryEdit{
		Date:       marchPeriod.Start,
		Quantities: payroll.Quantities{Miles: dec("55")},
	})
	require.NoError(t, err)

	require.NotNil(t, updated.PeriodStart)
	assert.True(t, updated.PeriodStart.Equal(marchPeriod.Start))
	assert.NotNil(t, updated.ApprovedAt)
	assert.Equal(t, payroll.StatusApproved, updated.Status())
}

func TestEditEntry_Validation(t *testing.T) {
	engine, _ := newTestEngine(t, payroll.Config{})
	_, ids := seedEntries(t, engine, 1)
	ctx := context.Background()

	_, err := engine.EditEntry(ctx, admin, ids[0], payroll.EntryEdit{})
	assert.True(t, payroll.IsValidation(err), "missing date")

	_, err = engine.EditEntry(ctx, admin, ids[0], payroll.EntryEdit{
		Date:       marchPeriod.Start,
		Quantities: payroll.Quantities{Miles: dec("-1")},
	})
	assert.True(t, payroll.IsValidation(err), "negative quantities")

	_, err = engine.EditEntry(ctx, admin, 999, payroll.EntryEdit{Date: marchPeriod.Start})
	assert.True(t, payroll.IsNotFound(err), "missing entry")
}
