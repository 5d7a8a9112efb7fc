/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for API communication, decoupled from the domain types
  so field names can evolve without touching the engine.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Rates and money travel as JSON strings ("0.46"), produced from decimal
  values. Quantities arrive as JSON numbers from the submission form and
  are converted to decimals at the boundary.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fleetware/driverlog/payroll"
)

// =============================================================================
// REQUESTS
// =============================================================================

// SubmitLogRequest is the driver-facing submission body.
type SubmitLogRequest struct {
	DriverID  int64  `json:"driver_id"`
	TruckUnit string `json:"truck_unit"`
	LogDate   string `json:"log_date"`

	Miles            float64 `json:"miles"`
	ValueHours       float64 `json:"value"`
	DetentionMinutes int     `json:"detention_minutes"`

	// Optional per-entry rate overrides.
	MileageRate   *float64 `json:"mileage_rate,omitempty"`
	PerValueRate  *float64 `json:"per_value_rate,omitempty"`
	DetentionRate *float64 `json:"detention_rate,omitempty"`

	StartTime    string `json:"start_time,omitempty"`
	EndTime      string `json:"end_time,omitempty"`
	TotalMinutes int    `json:"total_minutes,omitempty"`
	Notes        string `json:"notes,omitempty"`

	// "", "replace", or "merge".
	OnDuplicate string `json:"on_duplicate,omitempty"`
}

// EditLogRequest is the admin edit body. Rates are re-resolved from the
// driver's current defaults plus these overrides.
type EditLogRequest struct {
	LogDate          string   `json:"log_date"`
	Miles            float64  `json:"miles"`
	ValueHours       float64  `json:"value"`
	DetentionMinutes int      `json:"detention_minutes"`
	MileageRate      *float64 `json:"mileage_rate,omitempty"`
	PerValueRate     *float64 `json:"per_value_rate,omitempty"`
	DetentionRate    *float64 `json:"detention_rate,omitempty"`
	StartTime        string   `json:"start_time,omitempty"`
	EndTime          string   `json:"end_time,omitempty"`
	TotalMinutes     int      `json:"total_minutes,omitempty"`
	Notes            string   `json:"notes,omitempty"`
}

// AssignPeriodRequest stamps a period on a set of entries.
type AssignPeriodRequest struct {
	IDs         []int64 `json:"ids"`
	PeriodStart string  `json:"period_start"`
	PeriodEnd   string  `json:"period_end"`
}

// ClosePeriodRequest bulk-approves a period.
type ClosePeriodRequest struct {
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
}

// MarkPaidRequest stamps a paid timestamp on a set of entries.
type MarkPaidRequest struct {
	IDs []int64 `json:"ids"`
}

// CreateDriverRequest seeds a driver.
type CreateDriverRequest struct {
	Name          string   `json:"name"`
	Email         string   `json:"email,omitempty"`
	MileageRate   *float64 `json:"default_mileage_rate,omitempty"`
	DetentionRate *float64 `json:"default_detention_rate,omitempty"`
}

// UpdateDriverRatesRequest replaces a driver's default rates; omitted
// fields clear back to the system default.
type UpdateDriverRatesRequest struct {
	MileageRate   *float64 `json:"default_mileage_rate"`
	DetentionRate *float64 `json:"default_detention_rate"`
}

// LoadScenarioRequest selects a demo dataset.
type LoadScenarioRequest struct {
	Name string `json:"name"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type DriverDTO struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Email         string  `json:"email,omitempty"`
	MileageRate   *string `json:"default_mileage_rate,omitempty"`
	DetentionRate *string `json:"default_detention_rate,omitempty"`
	CreatedAt     string  `json:"created_at,omitempty"`
}

type TruckDTO struct {
	ID   int64  `json:"id"`
	Unit string `json:"unit"`
}

type LogEntryDTO struct {
	ID       int64  `json:"id"`
	DriverID int64  `json:"driver_id"`
	TruckID  int64  `json:"truck_id"`
	LogDate  string `json:"log_date"`

	Miles            string `json:"miles"`
	ValueHours       string `json:"value"`
	DetentionMinutes int    `json:"detention_minutes"`

	MileageRate   string `json:"mileage_rate"`
	PerValueRate  string `json:"per_value_rate"`
	DetentionRate string `json:"detention_rate"`
	GrossPay      string `json:"gross_pay"`

	StartTime    string `json:"start_time,omitempty"`
	EndTime      string `json:"end_time,omitempty"`
	TotalMinutes int    `json:"total_minutes,omitempty"`
	Notes        string `json:"notes,omitempty"`

	Status      string  `json:"status"`
	PeriodStart *string `json:"period_start,omitempty"`
	PeriodEnd   *string `json:"period_end,omitempty"`
	ApprovedAt  *string `json:"approved_at,omitempty"`
	ApprovedBy  string  `json:"approved_by,omitempty"`
	PaidAt      *string `json:"paid_at,omitempty"`

	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

type SubmitResultDTO struct {
	Outcome  string       `json:"outcome"`
	Entry    *LogEntryDTO `json:"entry,omitempty"`
	Existing *LogEntryDTO `json:"existing,omitempty"`
}

type PeriodDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type PayrollRowDTO struct {
	DriverID         int64  `json:"driver_id"`
	DriverName       string `json:"driver_name"`
	Entries          int    `json:"entries"`
	Miles            string `json:"miles"`
	ValueHours       string `json:"value"`
	DetentionMinutes int    `json:"detention_minutes"`
	GrossPay         string `json:"gross_pay"`
}

type DailyRowDTO struct {
	Date             string `json:"date"`
	Entries          int    `json:"entries"`
	Miles            string `json:"miles"`
	ValueHours       string `json:"value"`
	DetentionMinutes int    `json:"detention_minutes"`
	DetentionPay     string `json:"detention_pay"`
	TotalMinutes     int    `json:"total_minutes"`
	GrossPay         string `json:"gross_pay"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toDriverDTO(d *payroll.Driver) DriverDTO {
	dto := DriverDTO{
		ID:        int64(d.ID),
		Name:      d.Name,
		Email:     d.Email,
		CreatedAt: formatTime(d.CreatedAt),
	}
	if d.DefaultMileageRate != nil {
		s := d.DefaultMileageRate.String()
		dto.MileageRate = &s
	}
	if d.DefaultDetentionRate != nil {
		s := d.DefaultDetentionRate.String()
		dto.DetentionRate = &s
	}
	return dto
}

func toEntryDTO(e *payroll.LogEntry) *LogEntryDTO {
	dto := &LogEntryDTO{
		ID:               int64(e.ID),
		DriverID:         int64(e.DriverID),
		TruckID:          int64(e.TruckID),
		LogDate:          e.Date.String(),
		Miles:            e.Miles.String(),
		ValueHours:       e.ValueHours.String(),
		DetentionMinutes: e.DetentionMinutes,
		MileageRate:      e.Rates.Mileage.String(),
		PerValueRate:     e.Rates.PerValue.String(),
		DetentionRate:    e.Rates.Detention.String(),
		GrossPay:         e.GrossPay().String(),
		StartTime:        e.StartTime,
		EndTime:          e.EndTime,
		TotalMinutes:     e.TotalMinutes,
		Notes:            e.Notes,
		Status:           string(e.Status()),
		ApprovedBy:       e.ApprovedBy,
		CreatedAt:        formatTime(e.CreatedAt),
		UpdatedAt:        formatTime(e.UpdatedAt),
	}
	if e.PeriodStart != nil {
		s := e.PeriodStart.String()
		dto.PeriodStart = &s
	}
	if e.PeriodEnd != nil {
		s := e.PeriodEnd.String()
		dto.PeriodEnd = &s
	}
	if e.ApprovedAt != nil {
		s := e.ApprovedAt.Format(time.RFC3339)
		dto.ApprovedAt = &s
	}
	if e.PaidAt != nil {
		s := e.PaidAt.Format(time.RFC3339)
		dto.PaidAt = &s
	}
	return dto
}

func toPayrollRowDTO(r payroll.PayrollRow) PayrollRowDTO {
	return PayrollRowDTO{
		DriverID:         int64(r.DriverID),
		DriverName:       r.DriverName,
		Entries:          r.Entries,
		Miles:            r.Miles.String(),
		ValueHours:       r.ValueHours.String(),
		DetentionMinutes: r.DetentionMinutes,
		GrossPay:         r.GrossPay.String(),
	}
}

func toDailyRowDTO(r payroll.DailyRow) DailyRowDTO {
	return DailyRowDTO{
		Date:             r.Date.String(),
		Entries:          r.Entries,
		Miles:            r.Miles.String(),
		ValueHours:       r.ValueHours.String(),
		DetentionMinutes: r.DetentionMinutes,
		DetentionPay:     r.DetentionPay.String(),
		TotalMinutes:     r.TotalMinutes,
		GrossPay:         r.GrossPay.String(),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func decimalFromFloat(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func optDecimal(v *float64) *decimal.Decimal {
	if v == nil {
		return nil
	}
	d := decimal.NewFromFloat(*v)
	return &d
}
