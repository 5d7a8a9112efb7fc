/*
aggregate.go - Payroll totals

PURPOSE:
  Rolls matching log entries up into per-driver totals. Gross pay is the
  SUM of each entry's own GrossPay(); rates are never averaged and then
  multiplied by summed quantities. Two entries at 0.40/mi and 0.50/mi pay
  exactly miles1*0.40 + miles2*0.50, whatever the mile split.

  The summation lives here, in one place, on top of ListEntries. Both
  store implementations share it, so the formula cannot drift between a
  SQL rendition and a Go rendition.
*/
package payroll

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PER-DRIVER PAYROLL
// =============================================================================

// PayrollRow is one driver's totals over the filtered entries.
type PayrollRow struct {
	DriverID         DriverID
	DriverName       string
	Entries          int
	Miles            decimal.Decimal
	ValueHours       decimal.Decimal
	DetentionMinutes int
	GrossPay         decimal.Decimal
}

// Payroll aggregates entries into one row per driver. Drivers with no
// matching entries do not appear. Rows are ordered by driver name,
// case-insensitive. An empty filter means all entries.
func (e *Engine) Payroll(ctx context.Context, f EntryFilter) ([]PayrollRow, error) {
	entries, err := e.store.ListEntries(ctx, f)
	if err != nil {
		return nil, storageErr("list entries", err)
	}
	if len(entries) == 0 {
		return []PayrollRow{}, nil
	}

	drivers, err := e.store.ListDrivers(ctx)
	if err != nil {
		return nil, storageErr("list drivers", err)
	}
	names := make(map[DriverID]string, len(drivers))
	for _, d := range drivers {
		names[d.ID] = d.Name
	}

	byDriver := make(map[DriverID]*PayrollRow)
	for i := range entries {
		entry := &entries[i]
		row, ok := byDriver[entry.DriverID]
		if !ok {
			row = &PayrollRow{
				DriverID:   entry.DriverID,
				DriverName: names[entry.DriverID],
				Miles:      decimal.Zero,
				ValueHours: decimal.Zero,
				GrossPay:   decimal.Zero,
			}
			byDriver[entry.DriverID] = row
		}
		row.Entries++
		row.Miles = row.Miles.Add(entry.Miles)
		row.ValueHours = row.ValueHours.Add(entry.ValueHours)
		row.DetentionMinutes += entry.DetentionMinutes
		row.GrossPay = row.GrossPay.Add(entry.GrossPay())
	}

	rows := make([]PayrollRow, 0, len(byDriver))
	for _, row := range byDriver {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := strings.ToLower(rows[i].DriverName), strings.ToLower(rows[j].DriverName)
		if a != b {
			return a < b
		}
		return rows[i].DriverID < rows[j].DriverID
	})
	return rows, nil
}

// =============================================================================
// PER-DAY SUMMARY
// =============================================================================

// DailyRow is the per-calendar-day rollup used by the admin console's
// payroll overview.
type DailyRow struct {
	Date             Date
	Entries          int
	Miles            decimal.Decimal
	ValueHours       decimal.Decimal
	DetentionMinutes int
	DetentionPay     decimal.Decimal
	TotalMinutes     int
	GrossPay         decimal.Decimal
}

// DailySummary aggregates entries by calendar date, newest first.
func (e *Engine) DailySummary(ctx context.Context, f EntryFilter) ([]DailyRow, error) {
	entries, err := e.store.ListEntries(ctx, f)
	if err != nil {
		return nil, storageErr("list entries", err)
	}

	byDate := make(map[string]*DailyRow)
	for i := range entries {
		entry := &entries[i]
		k := entry.Date.String()
		row, ok := byDate[k]
		if !ok {
			row = &DailyRow{
				Date:         entry.Date,
				Miles:        decimal.Zero,
				ValueHours:   decimal.Zero,
				DetentionPay: decimal.Zero,
				GrossPay:     decimal.Zero,
			}
			byDate[k] = row
		}
		row.Entries++
		row.Miles = row.Miles.Add(entry.Miles)
		row.ValueHours = row.ValueHours.Add(entry.ValueHours)
		row.DetentionMinutes += entry.DetentionMinutes
		row.DetentionPay = row.DetentionPay.Add(entry.DetentionPay())
		row.TotalMinutes += entry.TotalMinutes
		row.GrossPay = row.GrossPay.Add(entry.GrossPay())
	}

	rows := make([]DailyRow, 0, len(byDate))
	for _, row := range byDate {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.After(rows[j].Date) })
	return rows, nil
}
