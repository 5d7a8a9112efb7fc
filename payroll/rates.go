package payroll

import "github.com/shopspring/decimal"

// =============================================================================
// RATE RESOLUTION - Effective rates for a new entry
// =============================================================================

// System fallback rates, applied when neither an explicit override nor a
// driver default is present. Injected through RateConfig so nothing else
// in the codebase hard-codes them.
var (
	systemMileageRate   = decimal.NewFromFloat(0.46) // currency per mile
	systemPerValueRate  = decimal.NewFromInt(25)     // currency per value-hour
	systemDetentionRate = decimal.Zero               // currency per hour
)

// RateConfig holds the system-wide fallback rates.
type RateConfig struct {
	DefaultMileageRate   decimal.Decimal
	DefaultPerValueRate  decimal.Decimal
	DefaultDetentionRate decimal.Decimal
}

func DefaultRateConfig() RateConfig {
	return RateConfig{
		DefaultMileageRate:   systemMileageRate,
		DefaultPerValueRate:  systemPerValueRate,
		DefaultDetentionRate: systemDetentionRate,
	}
}

// RateOverrides are explicit per-entry rates from the submission. nil
// means "no override for this rate".
type RateOverrides struct {
	Mileage   *decimal.Decimal
	PerValue  *decimal.Decimal
	Detention *decimal.Decimal
}

// Resolve produces the snapshot for a new entry.
//
// Precedence per rate: explicit override, then the driver's stored default
// (mileage and detention only; per-value has no driver default), then the
// system fallback. The driver record is never mutated here.
func (c RateConfig) Resolve(driver *Driver, o RateOverrides) RateSnapshot {
	snap := RateSnapshot{
		Mileage:   c.DefaultMileageRate,
		PerValue:  c.DefaultPerValueRate,
		Detention: c.DefaultDetentionRate,
	}

	if driver != nil {
		if driver.DefaultMileageRate != nil {
			snap.Mileage = *driver.DefaultMileageRate
		}
		if driver.DefaultDetentionRate != nil {
			snap.Detention = *driver.DefaultDetentionRate
		}
	}

	if o.Mileage != nil {
		snap.Mileage = *o.Mileage
	}
	if o.PerValue != nil {
		snap.PerValue = *o.PerValue
	}
	if o.Detention != nil {
		snap.Detention = *o.Detention
	}
	return snap
}
