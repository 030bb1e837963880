package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Repository defines the persistence port for the engine.
type Repository interface {
	// Commission operations. UpdateCommission performs an optimistic
	// version check and fails with ErrConcurrentModification when a racing
	// writer got there first. When audit is non-nil it is appended in the
	// same transaction, so a transition and its trail commit atomically.
	CreateCommission(ctx context.Context, c *Commission, audit *AuditEntry) error
	GetCommission(ctx context.Context, id string) (*Commission, error)
	GetCommissionByLoanAudit(ctx context.Context, loanAuditID string) (*Commission, error)
	UpdateCommission(ctx context.Context, c *Commission, audit *AuditEntry) error
	ListCommissions(ctx context.Context, status Status, limit, offset int) ([]*Commission, error)

	// Audit trail, insertion order, paginated.
	AppendAuditEntry(ctx context.Context, entry *AuditEntry) error
	ListAuditEntries(ctx context.Context, commissionID string, limit, offset int) ([]*AuditEntry, error)

	// Monthly incentives, keyed by (employee, month, year). Upsert
	// replaces the prior record for the period, never accumulates.
	UpsertIncentive(ctx context.Context, rec *IncentiveRecord) error
	GetIncentive(ctx context.Context, employeeID string, month time.Month, year int) (*IncentiveRecord, error)
	ListIncentives(ctx context.Context, employeeID string) ([]*IncentiveRecord, error)

	// Activation bonuses, exactly-once per (DSA, criterion). Insert
	// reports false without error when the pair already fired.
	InsertActivationBonus(ctx context.Context, bonus *ActivationBonus) (bool, error)
	ListActivationBonuses(ctx context.Context, dsaID string) ([]*ActivationBonus, error)

	// Volume aggregation feeding the batch jobs.
	MonthlySourcedVolume(ctx context.Context, workerID string, month time.Month, year int) (decimal.Decimal, error)
	DSAVolumeByLoanType(ctx context.Context, dsaID string) (map[LoanType]decimal.Decimal, error)
	ActiveEmployees(ctx context.Context, month time.Month, year int) ([]EmployeeRef, error)
	ActiveDSAs(ctx context.Context) ([]DSARef, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
