package domain

// EngineParams are the money-movement tunables. Defaults mirror the
// production rate card; all of them are overridable through configuration.
type EngineParams struct {
	// TDSRatePercent is the withholding applied to every distribution line.
	TDSRatePercent float64

	// PayoutTATDays is the turnaround between disbursement and payout.
	PayoutTATDays int

	// AdvancePayoutThreshold is the loan amount above which a commission
	// becomes eligible for the earlier manual payout track.
	AdvancePayoutThreshold float64

	// ActivationBonusAmount is the default one-time bonus credited to a
	// DSA's activator, used when a criterion carries no amount of its own.
	ActivationBonusAmount float64
}

// DefaultEngineParams returns the standard parameter set: 2% TDS, 45-day
// TAT, 40 lakh advance threshold, 1000 bonus units.
func DefaultEngineParams() EngineParams {
	return EngineParams{
		TDSRatePercent:         2.0,
		PayoutTATDays:          45,
		AdvancePayoutThreshold: 4_000_000,
		ActivationBonusAmount:  1_000,
	}
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
}
