/*
lifecycle.go - Log entry lifecycle transitions

PURPOSE:
  Admin operations that move entries from "open" toward "paid":

    AssignPeriod  stamp period boundaries on a set of entries
    Approve       stamp approval on a single entry (always overwrites)
    ClosePeriod   bulk-approve a period, keeping earlier approval stamps
    MarkPaid      stamp a paid timestamp on a set of entries
    EditEntry     correct an entry's content, re-snapshotting rates

  Every operation takes an explicit Actor and requires the admin role.
  Bulk writes are atomic: a missing id fails the whole batch with a
  not-found error rather than silently skipping it.
*/
package payroll

import (
	"context"
	"strings"
)

// AssignPeriod stamps the period boundaries on each entry. Idempotent:
// reassigning already-assigned entries simply overwrites the stamp. No
// approval side effect.
func (e *Engine) AssignPeriod(ctx context.Context, actor Actor, ids []EntryID, p Period) error {
	if err := requireAdmin(actor, "assign period"); err != nil {
		return err
	}
	if len(ids) == 0 {
		return &ValidationError{Field: "ids", Message: "required"}
	}
	if p.Start.IsZero() || p.End.IsZero() {
		return &ValidationError{Field: "period", Message: "start and end required"}
	}
	if p.End.Before(p.Start) {
		return &ValidationError{Field: "period", Message: "end before start"}
	}
	return e.store.WithTx(ctx, func(s Store) error {
		return s.AssignPeriod(ctx, ids, p)
	})
}

// Approve stamps approval timestamp and approver on a single entry. A
// direct approve always overwrites both, even when the entry was already
// approved; use ClosePeriod for the stamp-preserving bulk path.
func (e *Engine) Approve(ctx context.Context, actor Actor, id EntryID) error {
	if err := requireAdmin(actor, "approve entry"); err != nil {
		return err
	}
	return e.store.ApproveEntry(ctx, id, actor.ID, e.now().UTC())
}

// ClosePeriod approves every entry assigned to the period, preserving any
// pre-existing approval timestamp while always refreshing the approver.
// Running it twice is safe: the second run changes no timestamps.
// Returns how many entries the period contained.
func (e *Engine) ClosePeriod(ctx context.Context, actor Actor, p Period) (int, error) {
	if err := requireAdmin(actor, "close period"); err != nil {
		return 0, err
	}
	if p.Start.IsZero() || p.End.IsZero() {
		return 0, &ValidationError{Field: "period", Message: "start and end required"}
	}

	var n int
	err := e.store.WithTx(ctx, func(s Store) error {
		var err error
		n, err = s.ClosePeriod(ctx, p, actor.ID, e.now().UTC())
		return err
	})
	return n, err
}

// MarkPaid stamps a paid timestamp on each entry. Whether approval must
// come first is a policy switch (LifecyclePolicy.RequireApprovedBeforePaid,
// off by default).
func (e *Engine) MarkPaid(ctx context.Context, actor Actor, ids []EntryID) error {
	if err := requireAdmin(actor, "mark paid"); err != nil {
		return err
	}
	if len(ids) == 0 {
		return &ValidationError{Field: "ids", Message: "required"}
	}
	return e.store.WithTx(ctx, func(s Store) error {
		if e.lifecycle.RequireApprovedBeforePaid {
			for _, id := range ids {
				entry, err := s.GetEntry(ctx, id)
				if err != nil {
					return err
				}
				if !entry.IsApproved() {
					return &ValidationError{Field: "ids", Message: "entry " + entry.Date.String() + " is not approved"}
				}
			}
		}
		return s.MarkPaid(ctx, ids, e.now().UTC())
	})
}

// =============================================================================
// EDIT - The one legal way to change a snapshot after creation
// =============================================================================

// EntryEdit carries the replacement content for an admin edit. The rate
// snapshot is re-resolved from the driver's current defaults plus the
// given overrides; an edit is the only operation allowed to do that.
type EntryEdit struct {
	Date Date
	Quantities
	Overrides RateOverrides

	StartTime    string
	EndTime      string
	TotalMinutes int
	Notes        string
}

// EditEntry replaces an entry's content and re-snapshots its rates.
// Lifecycle stamps (period, approval, paid) are untouched. Admin only.
func (e *Engine) EditEntry(ctx context.Context, actor Actor, id EntryID, edit EntryEdit) (*LogEntry, error) {
	if err := requireAdmin(actor, "edit entry"); err != nil {
		return nil, err
	}
	if edit.Date.IsZero() {
		return nil, &ValidationError{Field: "date", Message: "required"}
	}
	if edit.Quantities.IsNegative() {
		return nil, &ValidationError{Field: "quantities", Message: "must not be negative"}
	}

	var updated *LogEntry
	err := e.store.WithTx(ctx, func(s Store) error {
		entry, err := s.GetEntry(ctx, id)
		if err != nil {
			return err
		}
		driver, err := s.GetDriver(ctx, entry.DriverID)
		if err != nil {
			return err
		}

		replacement := &LogEntry{
			DriverID:     entry.DriverID,
			TruckID:      entry.TruckID,
			Date:         edit.Date,
			Quantities:   edit.Quantities,
			Rates:        e.rates.Resolve(driver, edit.Overrides),
			StartTime:    edit.StartTime,
			EndTime:      edit.EndTime,
			TotalMinutes: edit.TotalMinutes,
			Notes:        strings.TrimSpace(edit.Notes),
			UpdatedAt:    e.now().UTC(),
		}
		if err := s.ReplaceEntry(ctx, id, replacement); err != nil {
			return err
		}
		updated, err = s.GetEntry(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
