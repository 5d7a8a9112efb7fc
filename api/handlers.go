/*
handlers.go - HTTP API handlers for the driver log system

PURPOSE:
  Exposes the payroll engine via REST. Handlers parse HTTP, delegate to
  the engine, and serialize the result; no domain rules live here.

ENDPOINTS:
  Public (driver-facing):
    POST   /api/public/submit          Submit a daily log
    GET    /api/ping                   Health check

  Admin (shared-secret token):
    GET    /api/admin/logs             List logs with filters
    GET    /api/admin/logs/{id}        Get one log
    PUT    /api/admin/logs/{id}        Edit a log (re-snapshots rates)
    POST   /api/admin/logs/{id}/approve
    GET    /api/admin/period/current   Active pay period
    POST   /api/admin/assign-period    Stamp a period on entries
    POST   /api/admin/close-period     Bulk-approve a period
    POST   /api/admin/mark-paid        Stamp paid on entries
    GET    /api/admin/payroll          Per-driver totals
    GET    /api/admin/payroll/daily    Per-day totals
    GET    /api/admin/export.csv       Period settlement CSV
    GET/POST /api/admin/drivers        List / seed drivers
    PUT    /api/admin/drivers/{id}/rates
    GET    /api/admin/trucks
    POST   /api/admin/scenarios/load   Seed demo data

ERROR HANDLING:
  Engine error kinds map to HTTP status:
  - validation        -> 400
  - authorization     -> 403
  - not found         -> 404
  - duplicate         -> 409 (with the existing entry in the body)
  - storage/internal  -> 500
*/
package api

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fleetware/driverlog/payroll"
)

// =============================================================================
// HANDLER
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *payroll.Engine

	// AdminToken is the shared secret for admin routes (query "token" or
	// X-Auth header).
	AdminToken string

	// WebhookURL, when set, receives a JSON copy of edited logs.
	// Best-effort: delivery failures are logged, never surfaced.
	WebhookURL string

	webhookClient *http.Client
}

func NewHandler(engine *payroll.Engine, adminToken, webhookURL string) *Handler {
	return &Handler{
		Engine:        engine,
		AdminToken:    adminToken,
		WebhookURL:    webhookURL,
		webhookClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// adminActor builds the explicit capability value passed into lifecycle
// operations. The token proves the admin role; X-Admin-User carries the
// identity recorded on approvals.
func adminActor(r *http.Request) payroll.Actor {
	id := r.Header.Get("X-Admin-User")
	if id == "" {
		id = "admin"
	}
	return payroll.Actor{ID: id, Role: payroll.RoleAdmin}
}

// =============================================================================
// PUBLIC HANDLERS
// =============================================================================

// Ping is the health check.
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"time": time.Now().UTC().Format(time.RFC3339),
	})
}

// SubmitLog accepts a driver's daily log submission.
func (h *Handler) SubmitLog(w http.ResponseWriter, r *http.Request) {
	var req SubmitLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date, err := payroll.ParseDate(req.LogDate)
	if err != nil && req.LogDate != "" {
		writeError(w, http.StatusBadRequest, "Invalid log_date format (use YYYY-MM-DD)", err)
		return
	}

	sub := payroll.Submission{
		DriverID:  payroll.DriverID(req.DriverID),
		TruckUnit: req.TruckUnit,
		Date:      date,
		Quantities: payroll.Quantities{
			Miles:            decimalFromFloat(req.Miles),
			ValueHours:       decimalFromFloat(req.ValueHours),
			DetentionMinutes: req.DetentionMinutes,
		},
		Overrides: payroll.RateOverrides{
			Mileage:   optDecimal(req.MileageRate),
			PerValue:  optDecimal(req.PerValueRate),
			Detention: optDecimal(req.DetentionRate),
		},
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		TotalMinutes: req.TotalMinutes,
		Notes:        req.Notes,
		OnDuplicate:  payroll.DuplicateAction(req.OnDuplicate),
	}

	result, err := h.Engine.Submit(r.Context(), sub)
	if err != nil {
		writeDomainError(w, "Failed to submit log", err)
		return
	}

	dto := SubmitResultDTO{Outcome: string(result.Outcome)}
	if result.Entry != nil {
		dto.Entry = toEntryDTO(result.Entry)
	}
	if result.Existing != nil {
		dto.Existing = toEntryDTO(result.Existing)
	}

	status := http.StatusCreated
	switch result.Outcome {
	case payroll.OutcomeDuplicate:
		status = http.StatusConflict
	case payroll.OutcomeReplaced, payroll.OutcomeMerged:
		status = http.StatusOK
	}
	writeJSON(w, status, dto)
}

// =============================================================================
// ADMIN: LOGS
// =============================================================================

// ListLogs returns entries matching the query filters.
func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}

	entries, err := h.Engine.Entries(r.Context(), filter)
	if err != nil {
		writeDomainError(w, "Failed to list logs", err)
		return
	}

	dtos := make([]*LogEntryDTO, len(entries))
	for i := range entries {
		dtos[i] = toEntryDTO(&entries[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetLog returns a single entry.
func (h *Handler) GetLog(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return
	}

	entry, err := h.Engine.Entry(r.Context(), payroll.EntryID(id))
	if err != nil {
		writeDomainError(w, "Failed to get log", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(entry))
}

// EditLog replaces an entry's content and re-snapshots its rates.
func (h *Handler) EditLog(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return
	}

	var req EditLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date, err := payroll.ParseDate(req.LogDate)
	if err != nil && req.LogDate != "" {
		writeError(w, http.StatusBadRequest, "Invalid log_date format (use YYYY-MM-DD)", err)
		return
	}

	edit := payroll.EntryEdit{
		Date: date,
		Quantities: payroll.Quantities{
			Miles:            decimalFromFloat(req.Miles),
			ValueHours:       decimalFromFloat(req.ValueHours),
			DetentionMinutes: req.DetentionMinutes,
		},
		Overrides: payroll.RateOverrides{
			Mileage:   optDecimal(req.MileageRate),
			PerValue:  optDecimal(req.PerValueRate),
			Detention: optDecimal(req.DetentionRate),
		},
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		TotalMinutes: req.TotalMinutes,
		Notes:        req.Notes,
	}

	entry, err := h.Engine.EditEntry(r.Context(), adminActor(r), payroll.EntryID(id), edit)
	if err != nil {
		writeDomainError(w, "Failed to edit log", err)
		return
	}

	h.notifyEdited(entry)
	writeJSON(w, http.StatusOK, toEntryDTO(entry))
}

// notifyEdited POSTs the edited entry to the configured webhook.
func (h *Handler) notifyEdited(entry *payroll.LogEntry) {
	if h.WebhookURL == "" {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"type": "driver_log_edited",
		"log":  toEntryDTO(entry),
	})
	if err != nil {
		return
	}
	go func() {
		resp, err := h.webhookClient.Post(h.WebhookURL, "application/json", bytes.NewReader(payload))
		if err != nil {
			log.Printf("webhook delivery failed: %v", err)
			return
		}
		resp.Body.Close()
	}()
}

// =============================================================================
// ADMIN: LIFECYCLE
// =============================================================================

// CurrentPeriod returns the pay period active right now.
func (h *Handler) CurrentPeriod(w http.ResponseWriter, r *http.Request) {
	p := h.Engine.CurrentPeriod()
	writeJSON(w, http.StatusOK, PeriodDTO{Start: p.Start.String(), End: p.End.String()})
}

// AssignPeriod stamps period boundaries on the given entries.
func (h *Handler) AssignPeriod(w http.ResponseWriter, r *http.Request) {
	var req AssignPeriodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	period, err := parsePeriod(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	if err := h.Engine.AssignPeriod(r.Context(), adminActor(r), entryIDs(req.IDs), period); err != nil {
		writeDomainError(w, "Failed to assign period", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "count": len(req.IDs)})
}

// ApproveLog approves a single entry.
func (h *Handler) ApproveLog(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return
	}

	if err := h.Engine.Approve(r.Context(), adminActor(r), payroll.EntryID(id)); err != nil {
		writeDomainError(w, "Failed to approve log", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// ClosePeriod bulk-approves all entries assigned to the period.
func (h *Handler) ClosePeriod(w http.ResponseWriter, r *http.Request) {
	var req ClosePeriodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	period, err := parsePeriod(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	n, err := h.Engine.ClosePeriod(r.Context(), adminActor(r), period)
	if err != nil {
		writeDomainError(w, "Failed to close period", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "approved": n})
}

// MarkPaid stamps a paid timestamp on the given entries.
func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	var req MarkPaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Engine.MarkPaid(r.Context(), adminActor(r), entryIDs(req.IDs)); err != nil {
		writeDomainError(w, "Failed to mark paid", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "count": len(req.IDs)})
}

// =============================================================================
// ADMIN: PAYROLL
// =============================================================================

// Payroll returns per-driver totals over the filtered entries.
func (h *Handler) Payroll(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}

	rows, err := h.Engine.Payroll(r.Context(), filter)
	if err != nil {
		writeDomainError(w, "Failed to compute payroll", err)
		return
	}

	dtos := make([]PayrollRowDTO, len(rows))
	for i, row := range rows {
		dtos[i] = toPayrollRowDTO(row)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// DailyPayroll returns per-calendar-day totals.
func (h *Handler) DailyPayroll(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}

	rows, err := h.Engine.DailySummary(r.Context(), filter)
	if err != nil {
		writeDomainError(w, "Failed to compute daily summary", err)
		return
	}

	dtos := make([]DailyRowDTO, len(rows))
	for i, row := range rows {
		dtos[i] = toDailyRowDTO(row)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ADMIN: DRIVERS / TRUCKS
// =============================================================================

// ListDrivers returns all drivers.
func (h *Handler) ListDrivers(w http.ResponseWriter, r *http.Request) {
	drivers, err := h.Engine.Drivers(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list drivers", err)
		return
	}
	dtos := make([]DriverDTO, len(drivers))
	for i := range drivers {
		dtos[i] = toDriverDTO(&drivers[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateDriver seeds a driver.
func (h *Handler) CreateDriver(w http.ResponseWriter, r *http.Request) {
	var req CreateDriverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	driver, err := h.Engine.CreateDriver(r.Context(), adminActor(r), req.Name, req.Email,
		optDecimal(req.MileageRate), optDecimal(req.DetentionRate))
	if err != nil {
		writeDomainError(w, "Failed to create driver", err)
		return
	}
	writeJSON(w, http.StatusCreated, toDriverDTO(driver))
}

// UpdateDriverRates replaces a driver's default rates.
func (h *Handler) UpdateDriverRates(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return
	}

	var req UpdateDriverRatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	err = h.Engine.SetDriverRates(r.Context(), adminActor(r), payroll.DriverID(id),
		optDecimal(req.MileageRate), optDecimal(req.DetentionRate))
	if err != nil {
		writeDomainError(w, "Failed to update driver rates", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// ListTrucks returns all trucks.
func (h *Handler) ListTrucks(w http.ResponseWriter, r *http.Request) {
	trucks, err := h.Engine.Trucks(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list trucks", err)
		return
	}
	dtos := make([]TruckDTO, len(trucks))
	for i, t := range trucks {
		dtos[i] = TruckDTO{ID: int64(t.ID), Unit: t.Unit}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func entryIDs(ids []int64) []payroll.EntryID {
	out := make([]payroll.EntryID, len(ids))
	for i, id := range ids {
		out[i] = payroll.EntryID(id)
	}
	return out
}

func parsePeriod(start, end string) (payroll.Period, error) {
	s, err := payroll.ParseDate(start)
	if err != nil {
		return payroll.Period{}, err
	}
	e, err := payroll.ParseDate(end)
	if err != nil {
		return payroll.Period{}, err
	}
	return payroll.Period{Start: s, End: e}, nil
}

// filterFromQuery builds an EntryFilter from from/to/driver/truck/
// period_start+period_end query parameters. Absent parameters leave the
// corresponding filter field nil (unrestricted).
func filterFromQuery(r *http.Request) (payroll.EntryFilter, error) {
	var f payroll.EntryFilter
	q := r.URL.Query()

	if v := q.Get("from"); v != "" {
		d, err := payroll.ParseDate(v)
		if err != nil {
			return f, err
		}
		f.From = &d
	}
	if v := q.Get("to"); v != "" {
		d, err := payroll.ParseDate(v)
		if err != nil {
			return f, err
		}
		f.To = &d
	}
	if v := q.Get("driver"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, err
		}
		did := payroll.DriverID(id)
		f.DriverID = &did
	}
	if v := q.Get("truck"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, err
		}
		tid := payroll.TruckID(id)
		f.TruckID = &tid
	}
	if start, end := q.Get("period_start"), q.Get("period_end"); start != "" && end != "" {
		p, err := parsePeriod(start, end)
		if err != nil {
			return f, err
		}
		f.Period = &p
	}
	return f, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine error kinds to HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case payroll.IsValidation(err):
		writeError(w, http.StatusBadRequest, message, err)
	case payroll.IsAuthorization(err):
		writeError(w, http.StatusForbidden, message, err)
	case payroll.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
