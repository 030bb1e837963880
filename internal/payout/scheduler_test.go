package payout

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/loanpulse/commission-engine/internal/domain"
)

func TestExpectedPayoutDate(t *testing.T) {
	s := NewScheduler(45, 4_000_000)
	disbursed := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		conf   *domain.BankConfirmation
		want   time.Time
		wantOK bool
	}{
		{
			name:   "confirmed disbursement",
			conf:   &domain.BankConfirmation{Confirmed: true, DisbursementDate: disbursed},
			want:   time.Date(2026, time.April, 15, 0, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "no confirmation yet",
			conf:   nil,
			wantOK: false,
		},
		{
			name:   "unconfirmed record",
			conf:   &domain.BankConfirmation{Confirmed: false, DisbursementDate: disbursed},
			wantOK: false,
		},
		{
			name:   "confirmed without a disbursement date",
			conf:   &domain.BankConfirmation{Confirmed: true},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := s.ExpectedPayoutDate(tt.conf)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("date = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAdvanceEligible(t *testing.T) {
	s := NewScheduler(45, 4_000_000)

	tests := []struct {
		name   string
		amount int64
		want   bool
	}{
		{"above threshold", 6_000_000, true},
		{"exactly at threshold", 4_000_000, false},
		{"below threshold", 1_500_000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.AdvanceEligible(decimal.NewFromInt(tt.amount)); got != tt.want {
				t.Errorf("AdvanceEligible(%d) = %v, want %v", tt.amount, got, tt.want)
			}
		})
	}
}

func TestApply(t *testing.T) {
	s := NewScheduler(30, 4_000_000)
	disbursed := time.Date(2026, time.June, 10, 0, 0, 0, 0, time.UTC)

	c := &domain.Commission{
		LoanAmount: decimal.NewFromInt(6_000_000),
		BankConfirmation: &domain.BankConfirmation{
			Confirmed:        true,
			DisbursementDate: disbursed,
		},
	}
	s.Apply(c)

	if c.PayoutDetails.TATDays != 30 {
		t.Errorf("TATDays = %d, want 30", c.PayoutDetails.TATDays)
	}
	if !c.PayoutDetails.AdvancePayout {
		t.Error("6M loan should carry the advance flag")
	}
	if c.PayoutDetails.ExpectedPayoutDate == nil {
		t.Fatal("expected payout date not set")
	}
	if want := disbursed.AddDate(0, 0, 30); !c.PayoutDetails.ExpectedPayoutDate.Equal(want) {
		t.Errorf("expected payout date = %s, want %s", c.PayoutDetails.ExpectedPayoutDate, want)
	}
}

func TestApplyBeforeConfirmationLeavesDateUnset(t *testing.T) {
	s := NewScheduler(45, 4_000_000)
	c := &domain.Commission{LoanAmount: decimal.NewFromInt(2_000_000)}

	s.Apply(c)

	if c.PayoutDetails.ExpectedPayoutDate != nil {
		t.Errorf("expected payout date = %s, want unset before bank confirmation", c.PayoutDetails.ExpectedPayoutDate)
	}
	if c.PayoutDetails.AdvancePayout {
		t.Error("2M loan should not carry the advance flag")
	}
	if c.PayoutDetails.TATDays != 45 {
		t.Errorf("TATDays = %d, want 45", c.PayoutDetails.TATDays)
	}
}
