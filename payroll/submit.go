/*
submit.go - Daily log submission and duplicate resolution

PURPOSE:
  A submission for a (driver, truck, date) that already has an entry is a
  conflict the submitter has to resolve, not an error and not a silent
  second row. The policy:

    no existing entry            -> create, outcome "created"
    existing + no action token   -> persist NOTHING, return the existing
                                    entry so the caller can offer a choice
    existing + action "replace"  -> full overwrite of quantities, rate
                                    snapshot, shift fields, and notes
    existing + action "merge"    -> quantities are ADDED; notes joined on
                                    a new line when both sides are
                                    non-blank, otherwise the non-blank one

ATOMICITY:
  The whole lookup-then-act sequence runs inside WithTx. Two concurrent
  submissions for the same key serialize; the second sees the first's
  entry and reports the conflict instead of creating a twin row.
*/
package payroll

import (
	"context"
	"strings"
	"time"
)

// =============================================================================
// SUBMISSION
// =============================================================================

// DuplicateAction is the caller's explicit decision for handling a
// colliding submission.
type DuplicateAction string

const (
	DuplicateNone    DuplicateAction = ""
	DuplicateReplace DuplicateAction = "replace"
	DuplicateMerge   DuplicateAction = "merge"
)

// Submission is a driver's daily log as it arrives from the form.
type Submission struct {
	DriverID  DriverID
	TruckUnit string
	Date      Date

	Quantities
	Overrides RateOverrides

	StartTime    string
	EndTime      string
	TotalMinutes int
	Notes        string

	OnDuplicate DuplicateAction
}

// SubmitOutcome tells the caller what happened.
type SubmitOutcome string

const (
	OutcomeCreated   SubmitOutcome = "created"
	OutcomeDuplicate SubmitOutcome = "duplicate-conflict"
	OutcomeReplaced  SubmitOutcome = "replaced"
	OutcomeMerged    SubmitOutcome = "merged"
)

// SubmitResult carries the outcome plus the persisted entry, or, for a
// duplicate conflict, the untouched existing entry.
type SubmitResult struct {
	Outcome  SubmitOutcome
	Entry    *LogEntry // persisted state (nil on duplicate-conflict)
	Existing *LogEntry // the conflicting entry (duplicate-conflict only)
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit validates and persists a daily log according to the duplicate
// resolution policy. Unknown truck units are registered on first use.
func (e *Engine) Submit(ctx context.Context, sub Submission) (*SubmitResult, error) {
	if err := sub.validate(); err != nil {
		return nil, err
	}

	var result *SubmitResult
	err := e.store.WithTx(ctx, func(s Store) error {
		driver, err := s.GetDriver(ctx, sub.DriverID)
		if err != nil {
			return err
		}

		truck, err := s.GetTruckByUnit(ctx, sub.TruckUnit)
		if err != nil {
			return storageErr("lookup truck", err)
		}
		if truck == nil {
			truck, err = s.CreateTruck(ctx, sub.TruckUnit)
			if err != nil {
				return storageErr("create truck", err)
			}
		}

		existing, err := s.FindEntryByDriverTruckDate(ctx, driver.ID, truck.ID, sub.Date)
		if err != nil {
			return storageErr("duplicate lookup", err)
		}

		now := e.now().UTC()
		entry := sub.toEntry(driver.ID, truck.ID, e.rates.Resolve(driver, sub.Overrides), now)

		switch {
		case existing == nil:
			id, err := s.CreateEntry(ctx, entry)
			if err != nil {
				return storageErr("create entry", err)
			}
			entry.ID = id
			result = &SubmitResult{Outcome: OutcomeCreated, Entry: entry}

		case sub.OnDuplicate == DuplicateReplace:
			if err := s.ReplaceEntry(ctx, existing.ID, entry); err != nil {
				return err
			}
			updated, err := s.GetEntry(ctx, existing.ID)
			if err != nil {
				return err
			}
			result = &SubmitResult{Outcome: OutcomeReplaced, Entry: updated}

		case sub.OnDuplicate == DuplicateMerge:
			notes := mergeNotes(existing.Notes, sub.Notes)
			if err := s.MergeQuantities(ctx, existing.ID, sub.Quantities, notes); err != nil {
				return err
			}
			merged, err := s.GetEntry(ctx, existing.ID)
			if err != nil {
				return err
			}
			result = &SubmitResult{Outcome: OutcomeMerged, Entry: merged}

		default:
			// No action token: nothing is persisted, the caller decides.
			result = &SubmitResult{Outcome: OutcomeDuplicate, Existing: existing}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (sub *Submission) validate() error {
	if sub.Date.IsZero() {
		return &ValidationError{Field: "date", Message: "required"}
	}
	if sub.DriverID == 0 {
		return &ValidationError{Field: "driver", Message: "required"}
	}
	if strings.TrimSpace(sub.TruckUnit) == "" {
		return &ValidationError{Field: "truck_unit", Message: "required"}
	}
	if sub.Quantities.IsNegative() {
		return &ValidationError{Field: "quantities", Message: "must not be negative"}
	}
	switch sub.OnDuplicate {
	case DuplicateNone, DuplicateReplace, DuplicateMerge:
	default:
		return &ValidationError{Field: "on_duplicate", Message: "must be empty, \"replace\", or \"merge\""}
	}
	return nil
}

func (sub *Submission) toEntry(driver DriverID, truck TruckID, rates RateSnapshot, now time.Time) *LogEntry {
	return &LogEntry{
		DriverID:     driver,
		TruckID:      truck,
		Date:         sub.Date,
		Quantities:   sub.Quantities,
		Rates:        rates,
		StartTime:    sub.StartTime,
		EndTime:      sub.EndTime,
		TotalMinutes: sub.TotalMinutes,
		Notes:        strings.TrimSpace(sub.Notes),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// mergeNotes keeps whichever note is non-blank; when both are, the
// incoming note is appended as an additional line.
func mergeNotes(existing, incoming string) string {
	existing = strings.TrimSpace(existing)
	incoming = strings.TrimSpace(incoming)
	switch {
	case existing == "":
		return incoming
	case incoming == "":
		return existing
	default:
		return existing + "\n" + incoming
	}
}
