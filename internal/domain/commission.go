// Package domain defines the core entities and ports of the commission engine.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanType enumerates the loan products the engine pays commission on.
type LoanType string

const (
	LoanTypeHome           LoanType = "home_loan"
	LoanTypeLAP            LoanType = "loan_against_property"
	LoanTypeBusiness       LoanType = "business_loan"
	LoanTypePersonal       LoanType = "personal_loan"
	LoanTypeWorkingCapital LoanType = "working_capital"
	LoanTypeEducation      LoanType = "education_loan"
	LoanTypeAuto           LoanType = "auto_loan"
)

// ParticipantRole identifies the kind of worker in a sourcing hierarchy.
type ParticipantRole string

const (
	RoleEmployee    ParticipantRole = "employee"
	RoleSubEmployee ParticipantRole = "sub_employee"
	RoleDSA         ParticipantRole = "dsa"
	RoleSubDSA      ParticipantRole = "sub_dsa"
	RoleAdmin       ParticipantRole = "admin"
)

// IsEmployee reports whether the role earns through the monthly incentive
// track instead of the per-loan commission pool.
func (r ParticipantRole) IsEmployee() bool {
	return r == RoleEmployee || r == RoleSubEmployee
}

// IsDSA reports whether the role earns a category-based commission from the
// bank payout pool.
func (r ParticipantRole) IsDSA() bool {
	return r == RoleDSA || r == RoleSubDSA
}

// EmployeeGrade is the designation used for incentive banding.
type EmployeeGrade string

const (
	GradeBDE EmployeeGrade = "BDE"
	GradeBDM EmployeeGrade = "BDM"
	GradeSM  EmployeeGrade = "SM"
	GradeASM EmployeeGrade = "ASM"
)

// DSACategory is the performance tier of a Direct Selling Agent.
type DSACategory string

const (
	CategoryA DSACategory = "A"
	CategoryB DSACategory = "B"
	CategoryC DSACategory = "C"
)

// Status is the lifecycle state of a commission record.
type Status string

const (
	StatusPending              Status = "pending"
	StatusBankConfirmed        Status = "bank_confirmed"
	StatusCommissionCalculated Status = "commission_calculated"
	StatusPayoutInitiated      Status = "payout_initiated"
	StatusCompleted            Status = "completed"
	StatusRejected             Status = "rejected"
)

// PayoutStatus is the per-line payout state.
type PayoutStatus string

const (
	PayoutPending   PayoutStatus = "pending"
	PayoutProcessed PayoutStatus = "processed"
	PayoutPaid      PayoutStatus = "paid"
	PayoutFailed    PayoutStatus = "failed"
)

// Originator is the worker who sourced a loan.
type Originator struct {
	WorkerID string          `json:"workerId"`
	Name     string          `json:"name,omitempty"`
	Role     ParticipantRole `json:"role"`
	// Grade applies to employee/sub-employee originators.
	Grade EmployeeGrade `json:"grade,omitempty"`
	// Category applies to DSA/sub-DSA originators.
	Category DSACategory `json:"category,omitempty"`
}

// HierarchyMember is one participant in the upward referral chain.
// Level 0 is the originator; levels increase with distance up the chain.
type HierarchyMember struct {
	WorkerID string          `json:"workerId"`
	Role     ParticipantRole `json:"role"`
	Level    int             `json:"level"`
}

// LoanAuditSnapshot is the finalized loan-audit record the engine consumes.
// It is immutable once a commission has been created from it.
type LoanAuditSnapshot struct {
	LoanAuditID     string            `json:"loanAuditId"`
	ClientName      string            `json:"clientName"`
	BankName        string            `json:"bankName"`
	LoanType        LoanType          `json:"loanType"`
	LoanAmount      decimal.Decimal   `json:"loanAmount"`
	ApplicationDate time.Time         `json:"applicationDate"`
	Originator      Originator        `json:"originator"`
	Hierarchy       []HierarchyMember `json:"hierarchy"`
}

// DistributionLine is one participant's share of a loan's commission.
type DistributionLine struct {
	WorkerID         string          `json:"workerId"`
	Role             ParticipantRole `json:"role"`
	Level            int             `json:"level"`
	RateApplied      decimal.Decimal `json:"rateApplied"`
	CommissionAmount decimal.Decimal `json:"commissionAmount"`
	TDSDeducted      decimal.Decimal `json:"tdsDeducted"`
	NetAmount        decimal.Decimal `json:"netAmount"`
	PayoutStatus     PayoutStatus    `json:"payoutStatus"`
	PaymentReference string          `json:"paymentReference,omitempty"`
	// Warning records an observed zero-rate fallback for this line.
	Warning string `json:"warning,omitempty"`
}

// InsuranceCommission is a policy-linked commission entry. It counts toward
// payable totals only once the freelook period has been survived.
type InsuranceCommission struct {
	PolicyNumber     string          `json:"policyNumber"`
	Insurer          string          `json:"insurer,omitempty"`
	CommissionAmount decimal.Decimal `json:"commissionAmount"`
	FreelookSurvived bool            `json:"freelookPeriodSurvived"`
	AddedAt          time.Time       `json:"addedAt"`
}

// BankConfirmation holds disbursement facts set once by the bank feed.
type BankConfirmation struct {
	Confirmed        bool            `json:"isConfirmed"`
	DisbursedAmount  decimal.Decimal `json:"disbursedAmount"`
	DisbursementDate time.Time       `json:"disbursementDate"`
	BankReference    string          `json:"bankReference,omitempty"`
	ConfirmedAt      time.Time       `json:"confirmedAt"`
}

// PayoutDetails tracks the payout schedule for a commission.
type PayoutDetails struct {
	TATDays            int        `json:"tatDays"`
	ExpectedPayoutDate *time.Time `json:"expectedPayoutDate,omitempty"`
	ActualPayoutDate   *time.Time `json:"actualPayoutDate,omitempty"`
	TransferReference  string     `json:"transferReference,omitempty"`
	AdvancePayout      bool       `json:"advancePayout"`
}

// FinancialSummary holds the derived totals. It is recomputed by the
// reconciler and never hand-edited.
type FinancialSummary struct {
	TotalCommissionEarned decimal.Decimal `json:"totalCommissionEarned"`
	TotalTDSDeducted      decimal.Decimal `json:"totalTDSDeducted"`
	TotalNetPayout        decimal.Decimal `json:"totalNetPayout"`
	InsurancePayable      decimal.Decimal `json:"insurancePayable"`
	ReconciledAt          time.Time       `json:"reconciledAt"`
}

// Flags are derived booleans consumed by the surrounding UI layer.
type Flags struct {
	IsAdvancePayoutCase     bool `json:"isAdvancePayoutCase"`
	ManagerApprovalRequired bool `json:"managerApprovalRequired"`
	HasInsurance            bool `json:"hasInsurance"`
	IsActivationCase        bool `json:"isActivationCase"`
}

// Commission is the root entity, one per closed loan audit.
type Commission struct {
	ID          string `json:"id"`
	LoanAuditID string `json:"loanAuditId"`

	// Loan facts, immutable once set.
	ClientName      string          `json:"clientName"`
	BankName        string          `json:"bankName"`
	LoanType        LoanType        `json:"loanType"`
	LoanAmount      decimal.Decimal `json:"loanAmount"`
	ApplicationDate time.Time       `json:"applicationDate"`

	// Derived from the loan type at creation.
	BankPayoutRate  decimal.Decimal `json:"bankPayoutRate"`
	TotalBankPayout decimal.Decimal `json:"totalBankPayout"`

	Originator Originator        `json:"originator"`
	Hierarchy  []HierarchyMember `json:"hierarchy"`

	Distribution []DistributionLine    `json:"commissionDistribution"`
	Insurance    []InsuranceCommission `json:"insuranceCommissions,omitempty"`

	Status           Status            `json:"status"`
	BankConfirmation *BankConfirmation `json:"bankConfirmation,omitempty"`
	PayoutDetails    PayoutDetails     `json:"payoutDetails"`
	Summary          FinancialSummary  `json:"financialSummary"`
	Flags            Flags             `json:"flags"`

	// Version guards against racing writers (optimistic concurrency).
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ReferrerID returns the worker directly above the originator, or "" when
// the originator has no upward chain.
func (c *Commission) ReferrerID() string {
	for _, m := range c.Hierarchy {
		if m.Level == 1 {
			return m.WorkerID
		}
	}
	return ""
}

// AuditEntry is one record in the append-only audit trail.
type AuditEntry struct {
	ID           string            `json:"id"`
	CommissionID string            `json:"commissionId"`
	Action       string            `json:"action"`
	Actor        string            `json:"actor"`
	FromStatus   Status            `json:"fromStatus,omitempty"`
	ToStatus     Status            `json:"toStatus,omitempty"`
	Details      map[string]string `json:"details,omitempty"`
	Origin       string            `json:"origin,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
}

// IncentiveRecord is one employee's monthly incentive. At most one record
// exists per (employee, month, year).
type IncentiveRecord struct {
	ID         string          `json:"id"`
	EmployeeID string          `json:"employeeId"`
	Grade      EmployeeGrade   `json:"grade"`
	Month      time.Month      `json:"month"`
	Year       int             `json:"year"`
	Volume     decimal.Decimal `json:"volume"`
	Rate       decimal.Decimal `json:"rate"`
	Amount     decimal.Decimal `json:"amount"`
	ComputedAt time.Time       `json:"computedAt"`
}

// ActivationBonus is a one-time grant to the activator who recruited a DSA.
// A given (activated DSA, criterion) pair fires at most once.
type ActivationBonus struct {
	ID               string          `json:"id"`
	ActivatorID      string          `json:"activatorId"`
	DSAID            string          `json:"dsaId"`
	CriterionID      string          `json:"criterionId"`
	LoanType         LoanType        `json:"loanType"`
	QualifyingVolume decimal.Decimal `json:"qualifyingVolume"`
	Amount           decimal.Decimal `json:"amount"`
	GrantedAt        time.Time       `json:"grantedAt"`
}

// EmployeeRef identifies an employee originator active in a period.
type EmployeeRef struct {
	WorkerID string        `json:"workerId"`
	Grade    EmployeeGrade `json:"grade"`
}

// DSARef identifies a DSA and the worker who referred them.
type DSARef struct {
	WorkerID   string      `json:"workerId"`
	Category   DSACategory `json:"category"`
	ReferrerID string      `json:"referrerId,omitempty"`
}
