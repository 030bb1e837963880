package rates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/loanpulse/commission-engine/internal/domain"
)

func TestBankPayoutRate(t *testing.T) {
	r := NewResolver(DefaultRateTables(), nil)

	tests := []struct {
		loanType domain.LoanType
		want     string
	}{
		{domain.LoanTypeHome, "0.8"},
		{domain.LoanTypeLAP, "1"},
		{domain.LoanTypeBusiness, "2"},
		{domain.LoanTypeWorkingCapital, "1.5"},
	}

	for _, tt := range tests {
		t.Run(string(tt.loanType), func(t *testing.T) {
			got := r.BankPayoutRate(tt.loanType)
			if got.String() != tt.want {
				t.Errorf("BankPayoutRate(%s) = %s, want %s", tt.loanType, got, tt.want)
			}
		})
	}
}

func TestBankPayoutRateUnknownLoanType(t *testing.T) {
	var observed []string
	r := NewResolver(DefaultRateTables(), func(kind, key string) {
		observed = append(observed, kind+":"+key)
	})

	got := r.BankPayoutRate("gold_loan")
	if !got.IsZero() {
		t.Errorf("unknown loan type rate = %s, want 0", got)
	}
	if len(observed) != 1 || observed[0] != ZeroRateBankPayout+":gold_loan" {
		t.Errorf("observed = %v, want one bank_payout:gold_loan", observed)
	}
}

func TestTotalBankPayout(t *testing.T) {
	r := NewResolver(DefaultRateTables(), nil)

	// 6,000,000 home loan at 0.8% = 48,000.
	got := r.TotalBankPayout(domain.LoanTypeHome, decimal.NewFromInt(6_000_000))
	if got.String() != "48000" {
		t.Errorf("TotalBankPayout = %s, want 48000", got)
	}
}

func TestDSACommissionRate(t *testing.T) {
	r := NewResolver(DefaultRateTables(), nil)

	got := r.DSACommissionRate(domain.LoanTypeHome, domain.CategoryA)
	if got.String() != "0.7" {
		t.Errorf("rate = %s, want 0.7", got)
	}

	// Missing combination degrades to zero.
	if got := r.DSACommissionRate("gold_loan", domain.CategoryA); !got.IsZero() {
		t.Errorf("missing combination rate = %s, want 0", got)
	}
}

func TestEmployeeIncentiveRate(t *testing.T) {
	r := NewResolver(DefaultRateTables(), nil)

	tests := []struct {
		name   string
		grade  domain.EmployeeGrade
		volume int64
		want   string
	}{
		{"BDE top band", domain.GradeBDE, 50_000_000, "0.15"},
		{"BDE middle band", domain.GradeBDE, 20_000_000, "0.1"},
		{"BDM low band", domain.GradeBDM, 10_000_000, "0.05"},
		{"BDE below bands", domain.GradeBDE, 9_999_999, "0"},
		{"SM top band", domain.GradeSM, 75_000_000, "0.12"},
		{"ASM middle band", domain.GradeASM, 30_000_000, "0.08"},
		{"SM low band", domain.GradeSM, 15_000_000, "0.04"},
		{"ASM below bands", domain.GradeASM, 14_000_000, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.EmployeeIncentiveRate(tt.grade, decimal.NewFromInt(tt.volume))
			if got.String() != tt.want {
				t.Errorf("rate = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestApplyPercentRounding(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		percent string
		want    string
	}{
		{"exact", "42000", "2", "840"},
		{"round half up", "1001", "0.25", "2.5"},
		{"round up at midpoint", "12345", "0.1", "12.35"},
		{"zero percent", "50000", "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, _ := decimal.NewFromString(tt.amount)
			percent, _ := decimal.NewFromString(tt.percent)
			got := ApplyPercent(amount, percent)
			if got.String() != tt.want {
				t.Errorf("ApplyPercent(%s, %s) = %s, want %s", tt.amount, tt.percent, got, tt.want)
			}
		})
	}
}

func TestTDSWithhold(t *testing.T) {
	tds := NewTDSCalculator(2.0)

	// 42,000 gross withholds 840, leaving 41,160 net.
	gross := decimal.NewFromInt(42_000)
	withheld := tds.Withhold(gross)
	if withheld.String() != "840" {
		t.Errorf("Withhold = %s, want 840", withheld)
	}
	if net := gross.Sub(withheld); net.String() != "41160" {
		t.Errorf("net = %s, want 41160", net)
	}
}

func TestLevelRate(t *testing.T) {
	levels := DefaultRateTables().LevelRates

	if got := LevelRate(levels, 1); got.String() != "0.1" {
		t.Errorf("level 1 = %s, want 0.1", got)
	}
	if got := LevelRate(levels, 9); !got.IsZero() {
		t.Errorf("unmapped level = %s, want 0", got)
	}
}

func TestValidateLevelRates(t *testing.T) {
	tests := []struct {
		name    string
		rates   map[int]float64
		wantErr bool
	}{
		{"valid", map[int]float64{1: 0.1, 2: 0.05}, false},
		{"level zero", map[int]float64{0: 0.1}, true},
		{"negative rate", map[int]float64{1: -0.1}, true},
		{"sum over 100", map[int]float64{1: 60, 2: 50}, true},
		{"empty", map[int]float64{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLevelRates(tt.rates)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateRateTablesDefaults(t *testing.T) {
	if err := ValidateRateTables(DefaultRateTables()); err != nil {
		t.Errorf("default tables invalid: %v", err)
	}
}

func TestValidateRateTablesRejectsBadBands(t *testing.T) {
	tables := DefaultRateTables()
	tables.IncentiveBands[domain.BandGroupBDEBDM] = []domain.IncentiveBand{
		{Threshold: 10_000_000, Rate: 0.05},
		{Threshold: 20_000_000, Rate: 0.10},
	}
	if err := ValidateRateTables(tables); err == nil {
		t.Error("expected error for out-of-order bands")
	}
}

func TestLoadRateTables(t *testing.T) {
	content := `
bank_payout:
  home_loan: 0.8
  personal_loan: 2.0
dsa_commission:
  home_loan:
    A: 0.7
level_rates:
  1: 0.1
  2: 0.05
`
	path := filepath.Join(t.TempDir(), "rates.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write rate card: %v", err)
	}

	tables, err := LoadRateTables(path)
	if err != nil {
		t.Fatalf("LoadRateTables failed: %v", err)
	}
	if tables.BankPayout[domain.LoanTypeHome] != 0.8 {
		t.Errorf("home rate = %v, want 0.8", tables.BankPayout[domain.LoanTypeHome])
	}
	if tables.LevelRates[1] != 0.1 {
		t.Errorf("level 1 rate = %v, want 0.1", tables.LevelRates[1])
	}
}

func TestLoadRateTablesRejectsInvalid(t *testing.T) {
	content := `
bank_payout:
  home_loan: 250.0
`
	path := filepath.Join(t.TempDir(), "rates.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write rate card: %v", err)
	}

	if _, err := LoadRateTables(path); err == nil {
		t.Error("expected validation error for 250% rate")
	}
}
