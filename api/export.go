/*
export.go - Period settlement CSV export

PURPOSE:
  Streams a closed (or closing) period's entries as CSV for the back
  office. Entries come back from the store in chronological settlement
  order; gross pay per row uses each entry's own snapshot rates.
*/
package api

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"

	"github.com/fleetware/driverlog/payroll"
)

var exportHeader = []string{
	"date", "driver", "truck", "miles", "value_hrs", "detention_min",
	"mileage_rate", "per_value_rate", "detention_rate", "gross_pay",
	"status", "approved_by", "notes",
}

// ExportPeriodCSV writes all entries of the given period as CSV.
// Query: period_start, period_end (both YYYY-MM-DD, required).
func (h *Handler) ExportPeriodCSV(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period, err := parsePeriod(q.Get("period_start"), q.Get("period_end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "period_start and period_end required (YYYY-MM-DD)", err)
		return
	}

	entries, err := h.Engine.Entries(r.Context(), payroll.EntryFilter{Period: &period})
	if err != nil {
		writeDomainError(w, "Failed to load period entries", err)
		return
	}

	driverNames, truckUnits, err := h.lookupNames(r)
	if err != nil {
		writeDomainError(w, "Failed to load fleet records", err)
		return
	}

	filename := fmt.Sprintf("payroll_%s_%s.csv", period.Start, period.End)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(exportHeader); err != nil {
		return
	}
	for i := range entries {
		e := &entries[i]
		record := []string{
			e.Date.String(),
			driverNames[e.DriverID],
			truckUnits[e.TruckID],
			e.Miles.String(),
			e.ValueHours.String(),
			strconv.Itoa(e.DetentionMinutes),
			e.Rates.Mileage.String(),
			e.Rates.PerValue.String(),
			e.Rates.Detention.String(),
			e.GrossPay().String(),
			string(e.Status()),
			e.ApprovedBy,
			e.Notes,
		}
		if err := cw.Write(record); err != nil {
			return
		}
	}
}

func (h *Handler) lookupNames(r *http.Request) (map[payroll.DriverID]string, map[payroll.TruckID]string, error) {
	drivers, err := h.Engine.Drivers(r.Context())
	if err != nil {
		return nil, nil, err
	}
	trucks, err := h.Engine.Trucks(r.Context())
	if err != nil {
		return nil, nil, err
	}

	driverNames := make(map[payroll.DriverID]string, len(drivers))
	for _, d := range drivers {
		driverNames[d.ID] = d.Name
	}
	truckUnits := make(map[payroll.TruckID]string, len(trucks))
	for _, t := range trucks {
		truckUnits[t.ID] = t.Unit
	}
	return driverNames, truckUnits, nil
}
