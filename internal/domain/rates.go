package domain

// RateTables is the injectable rate configuration. Tables are loaded once at
// startup (compiled-in defaults or a YAML file) and treated as read-only,
// process-wide state; versioned rate changes ship as new files, not code.
type RateTables struct {
	// BankPayout maps loan type to the bank payout percentage.
	BankPayout map[LoanType]float64 `yaml:"bank_payout"`

	// DSACommission maps loan type and DSA category to the originator
	// commission percentage. A missing combination resolves to 0.
	DSACommission map[LoanType]map[DSACategory]float64 `yaml:"dsa_commission"`

	// IncentiveBands maps a band group to its volume thresholds, highest
	// first. Grades BDE/BDM share one group, SM/ASM the other.
	IncentiveBands map[string][]IncentiveBand `yaml:"incentive_bands"`

	// LevelRates maps hierarchy level (>= 1) to the override percentage of
	// the bank payout pool. The default table used by calculate when the
	// caller supplies none.
	LevelRates map[int]float64 `yaml:"level_rates"`

	// ActivationCriteria are the DSA activation-bonus qualifying rules.
	ActivationCriteria []ActivationCriterion `yaml:"activation_criteria"`
}

// IncentiveBand is one step of the incentive rate function:
// the first band whose threshold the monthly volume reaches wins.
type IncentiveBand struct {
	Threshold float64 `yaml:"threshold"`
	Rate      float64 `yaml:"rate"`
}

// Band group names used by IncentiveBands.
const (
	BandGroupBDEBDM = "bde_bdm"
	BandGroupSMASM  = "sm_asm"
)

// BandGroupForGrade maps an employee grade to its incentive band group.
func BandGroupForGrade(grade EmployeeGrade) string {
	switch grade {
	case GradeSM, GradeASM:
		return BandGroupSMASM
	default:
		return BandGroupBDEBDM
	}
}

// ActivationCriterion is a named qualifying rule for the one-time DSA
// activation bonus. Expression is a CEL program over the variables
// loan_type (string) and volume (double, cumulative sourced amount).
type ActivationCriterion struct {
	ID          string  `yaml:"id"`
	Description string  `yaml:"description"`
	Expression  string  `yaml:"expression"`
	BonusAmount float64 `yaml:"bonus_amount"`
}
