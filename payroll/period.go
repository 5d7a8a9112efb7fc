package payroll

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// PAY PERIOD CALCULATION - 7-day window from week-start day + cutoff
// =============================================================================

// PeriodConfig describes how pay periods are cut: the weekday a period
// starts on, and the time of day on that weekday at which the new period
// takes over from the old one.
type PeriodConfig struct {
	WeekStart    time.Weekday
	CutoffHour   int
	CutoffMinute int
}

func DefaultPeriodConfig() PeriodConfig {
	// Periods run Monday through Sunday; Monday morning submissions
	// before 09:00 still land in the closing week.
	return PeriodConfig{WeekStart: time.Monday, CutoffHour: 9}
}

// CurrentPeriod returns the pay period active at the given instant.
//
// The most recent occurrence of WeekStart on or before now's date is the
// candidate start. If now is still before the cutoff time on that day,
// the previous period is still active and the start slides back a week.
// The cutoff therefore only changes behavior on the start weekday itself.
// End is start + 6 days (inclusive 7-day window).
func (c PeriodConfig) CurrentPeriod(now time.Time) Period {
	today := DateOf(now)
	start := today
	for start.Weekday() != c.WeekStart {
		start = start.AddDays(-1)
	}

	cutoff := time.Date(start.Time.Year(), start.Time.Month(), start.Time.Day(),
		c.CutoffHour, c.CutoffMinute, 0, 0, now.Location())
	if now.Before(cutoff) {
		start = start.AddDays(-7)
	}

	return Period{Start: start, End: start.AddDays(6)}
}

// PeriodFor returns the period boundaries containing an arbitrary date.
// The cutoff does not apply here; it only matters relative to "now".
func (c PeriodConfig) PeriodFor(d Date) Period {
	start := d
	for start.Weekday() != c.WeekStart {
		start = start.AddDays(-1)
	}
	return Period{Start: start, End: start.AddDays(6)}
}

// ParseWeekday maps the usual three-letter codes (and full names) to a
// weekday. Used by configuration loading.
func ParseWeekday(s string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sun", "sunday":
		return time.Sunday, nil
	case "mon", "monday":
		return time.Monday, nil
	case "tue", "tuesday":
		return time.Tuesday, nil
	case "wed", "wednesday":
		return time.Wednesday, nil
	case "thu", "thursday":
		return time.Thursday, nil
	case "fri", "friday":
		return time.Friday, nil
	case "sat", "saturday":
		return time.Saturday, nil
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", s)
}

// ParseCutoff parses "HH:MM" into hour and minute.
func ParseCutoff(s string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("cutoff must be HH:MM, got %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err == nil {
		minute, err = strconv.Atoi(parts[1])
	}
	if err != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("cutoff must be HH:MM, got %q", s)
	}
	return hour, minute, nil
}
