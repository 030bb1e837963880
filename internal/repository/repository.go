// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/loanpulse/commission-engine/internal/domain"
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

const commissionColumns = `id, loan_audit_id, client_name, bank_name, loan_type, loan_amount,
	application_date, bank_payout_rate, total_bank_payout,
	originator_id, originator_role, originator_grade, originator_category, referrer_id,
	hierarchy, distribution, insurance, status, bank_confirmation,
	payout_details, summary, flags, version, created_at, updated_at`

// CreateCommission stores a new commission, appending the creation audit
// entry in the same transaction.
func (r *SQLRepository) CreateCommission(ctx context.Context, c *domain.Commission, audit *domain.AuditEntry) error {
	if c.ID == "" {
		return fmt.Errorf("%w: commission id is required", domain.ErrValidation)
	}

	cols, err := marshalCommission(c)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO commissions (` + commissionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, r.rebind(query),
		c.ID, c.LoanAuditID, c.ClientName, c.BankName, string(c.LoanType), c.LoanAmount.String(),
		c.ApplicationDate, c.BankPayoutRate.String(), c.TotalBankPayout.String(),
		c.Originator.WorkerID, string(c.Originator.Role), string(c.Originator.Grade), string(c.Originator.Category), c.ReferrerID(),
		cols.hierarchy, cols.distribution, cols.insurance, string(c.Status), cols.bankConfirmation,
		cols.payoutDetails, cols.summary, cols.flags, c.Version, c.CreatedAt, c.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert commission: %w", err)
	}

	if audit != nil {
		if err := r.insertAuditEntry(ctx, tx, audit); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetCommission retrieves a commission by id.
func (r *SQLRepository) GetCommission(ctx context.Context, id string) (*domain.Commission, error) {
	query := `SELECT ` + commissionColumns + ` FROM commissions WHERE id = ?`
	return r.scanCommission(r.db.QueryRowContext(ctx, r.rebind(query), id))
}

// GetCommissionByLoanAudit retrieves the commission created from a loan audit.
func (r *SQLRepository) GetCommissionByLoanAudit(ctx context.Context, loanAuditID string) (*domain.Commission, error) {
	query := `SELECT ` + commissionColumns + ` FROM commissions WHERE loan_audit_id = ?`
	return r.scanCommission(r.db.QueryRowContext(ctx, r.rebind(query), loanAuditID))
}

// UpdateCommission persists a mutation with an optimistic version check:
// the UPDATE only matches the version the caller read, so a racing writer
// fails with ErrConcurrentModification instead of silently merging. The
// audit entry, when given, commits in the same transaction.
func (r *SQLRepository) UpdateCommission(ctx context.Context, c *domain.Commission, audit *domain.AuditEntry) error {
	cols, err := marshalCommission(c)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	query := `
		UPDATE commissions SET
			distribution = ?, insurance = ?, status = ?, bank_confirmation = ?,
			payout_details = ?, summary = ?, flags = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`
	res, err := tx.ExecContext(ctx, r.rebind(query),
		cols.distribution, cols.insurance, string(c.Status), cols.bankConfirmation,
		cols.payoutDetails, cols.summary, cols.flags,
		now, c.ID, c.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update commission: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx, r.rebind(`SELECT COUNT(*) FROM commissions WHERE id = ?`), c.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check commission existence: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, c.ID)
		}
		return fmt.Errorf("%w: commission %s version %d", domain.ErrConcurrentModification, c.ID, c.Version)
	}

	if audit != nil {
		if err := r.insertAuditEntry(ctx, tx, audit); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	c.Version++
	c.UpdatedAt = now
	return nil
}

// ListCommissions returns commissions newest first, optionally filtered by
// status.
func (r *SQLRepository) ListCommissions(ctx context.Context, status domain.Status, limit, offset int) ([]*domain.Commission, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + commissionColumns + ` FROM commissions`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list commissions: %w", err)
	}
	defer rows.Close()

	var result []*domain.Commission
	for rows.Next() {
		c, err := r.scanCommissionRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// AppendAuditEntry appends a standalone audit record.
func (r *SQLRepository) AppendAuditEntry(ctx context.Context, entry *domain.AuditEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.insertAuditEntry(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SQLRepository) insertAuditEntry(ctx context.Context, tx *sql.Tx, entry *domain.AuditEntry) error {
	details, _ := json.Marshal(entry.Details)
	query := `
		INSERT INTO commission_audit_log (id, commission_id, action, actor, from_status, to_status, details, origin, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, r.rebind(query),
		entry.ID, entry.CommissionID, entry.Action, entry.Actor,
		string(entry.FromStatus), string(entry.ToStatus), string(details), entry.Origin, entry.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// ListAuditEntries returns a commission's audit trail in insertion order.
func (r *SQLRepository) ListAuditEntries(ctx context.Context, commissionID string, limit, offset int) ([]*domain.AuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, commission_id, action, actor, from_status, to_status, details, origin, created_at
		FROM commission_audit_log
		WHERE commission_id = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ? OFFSET ?
	`
	rows, err := r.db.QueryContext(ctx, r.rebind(query), commissionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var result []*domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		var fromStatus, toStatus, details string
		if err := rows.Scan(&entry.ID, &entry.CommissionID, &entry.Action, &entry.Actor,
			&fromStatus, &toStatus, &details, &entry.Origin, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entry.FromStatus = domain.Status(fromStatus)
		entry.ToStatus = domain.Status(toStatus)
		if details != "" && details != "null" {
			_ = json.Unmarshal([]byte(details), &entry.Details)
		}
		result = append(result, &entry)
	}
	return result, rows.Err()
}

// UpsertIncentive replaces the incentive record for (employee, month, year).
func (r *SQLRepository) UpsertIncentive(ctx context.Context, rec *domain.IncentiveRecord) error {
	query := `
		INSERT INTO employee_incentives (employee_id, month, year, id, grade, volume, rate, amount, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (employee_id, month, year) DO UPDATE SET
			id = excluded.id,
			grade = excluded.grade,
			volume = excluded.volume,
			rate = excluded.rate,
			amount = excluded.amount,
			computed_at = excluded.computed_at
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rec.EmployeeID, int(rec.Month), rec.Year, rec.ID, string(rec.Grade),
		rec.Volume.String(), rec.Rate.String(), rec.Amount.String(), rec.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert incentive: %w", err)
	}
	return nil
}

// GetIncentive retrieves the incentive record for a period.
func (r *SQLRepository) GetIncentive(ctx context.Context, employeeID string, month time.Month, year int) (*domain.IncentiveRecord, error) {
	query := `
		SELECT employee_id, month, year, id, grade, volume, rate, amount, computed_at
		FROM employee_incentives
		WHERE employee_id = ? AND month = ? AND year = ?
	`
	rec, err := scanIncentive(r.db.QueryRowContext(ctx, r.rebind(query), employeeID, int(month), year))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: incentive for %s %d/%d", domain.ErrNotFound, employeeID, month, year)
	}
	return rec, err
}

// ListIncentives returns all incentive records for an employee, newest
// period first.
func (r *SQLRepository) ListIncentives(ctx context.Context, employeeID string) ([]*domain.IncentiveRecord, error) {
	query := `
		SELECT employee_id, month, year, id, grade, volume, rate, amount, computed_at
		FROM employee_incentives
		WHERE employee_id = ?
		ORDER BY year DESC, month DESC
	`
	rows, err := r.db.QueryContext(ctx, r.rebind(query), employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list incentives: %w", err)
	}
	defer rows.Close()

	var result []*domain.IncentiveRecord
	for rows.Next() {
		rec, err := scanIncentive(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// InsertActivationBonus inserts a bonus grant unless the (dsa, criterion)
// pair has already fired. Returns false, nil on the duplicate path.
func (r *SQLRepository) InsertActivationBonus(ctx context.Context, bonus *domain.ActivationBonus) (bool, error) {
	query := `
		INSERT INTO dsa_activation_bonuses (dsa_id, criterion_id, id, activator_id, loan_type, qualifying_volume, amount, granted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (dsa_id, criterion_id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, r.rebind(query),
		bonus.DSAID, bonus.CriterionID, bonus.ID, bonus.ActivatorID,
		string(bonus.LoanType), bonus.QualifyingVolume.String(), bonus.Amount.String(), bonus.GrantedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert activation bonus: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return affected > 0, nil
}

// ListActivationBonuses returns the bonuses fired for a DSA.
func (r *SQLRepository) ListActivationBonuses(ctx context.Context, dsaID string) ([]*domain.ActivationBonus, error) {
	query := `
		SELECT dsa_id, criterion_id, id, activator_id, loan_type, qualifying_volume, amount, granted_at
		FROM dsa_activation_bonuses
		WHERE dsa_id = ?
		ORDER BY granted_at ASC
	`
	rows, err := r.db.QueryContext(ctx, r.rebind(query), dsaID)
	if err != nil {
		return nil, fmt.Errorf("failed to list activation bonuses: %w", err)
	}
	defer rows.Close()

	var result []*domain.ActivationBonus
	for rows.Next() {
		var b domain.ActivationBonus
		var loanType, volume, amount string
		if err := rows.Scan(&b.DSAID, &b.CriterionID, &b.ID, &b.ActivatorID, &loanType, &volume, &amount, &b.GrantedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activation bonus: %w", err)
		}
		b.LoanType = domain.LoanType(loanType)
		b.QualifyingVolume, _ = decimal.NewFromString(volume)
		b.Amount, _ = decimal.NewFromString(amount)
		result = append(result, &b)
	}
	return result, rows.Err()
}

// MonthlySourcedVolume sums loan amounts the worker directly sourced in a
// calendar month. Rejected commissions don't count. Amounts are summed in
// Go to keep decimal exactness across drivers.
func (r *SQLRepository) MonthlySourcedVolume(ctx context.Context, workerID string, month time.Month, year int) (decimal.Decimal, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	query := `
		SELECT loan_amount FROM commissions
		WHERE originator_id = ? AND application_date >= ? AND application_date < ? AND status != ?
	`
	rows, err := r.db.QueryContext(ctx, r.rebind(query), workerID, start, end, string(domain.StatusRejected))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query monthly volume: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan loan amount: %w", err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return decimal.Zero, fmt.Errorf("corrupt loan amount %q: %w", amount, err)
		}
		total = total.Add(d)
	}
	return total, rows.Err()
}

// DSAVolumeByLoanType sums a DSA's cumulative sourced volume per loan type.
func (r *SQLRepository) DSAVolumeByLoanType(ctx context.Context, dsaID string) (map[domain.LoanType]decimal.Decimal, error) {
	query := `
		SELECT loan_type, loan_amount FROM commissions
		WHERE originator_id = ? AND status != ?
	`
	rows, err := r.db.QueryContext(ctx, r.rebind(query), dsaID, string(domain.StatusRejected))
	if err != nil {
		return nil, fmt.Errorf("failed to query dsa volume: %w", err)
	}
	defer rows.Close()

	volumes := make(map[domain.LoanType]decimal.Decimal)
	for rows.Next() {
		var loanType, amount string
		if err := rows.Scan(&loanType, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan dsa volume row: %w", err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("corrupt loan amount %q: %w", amount, err)
		}
		lt := domain.LoanType(loanType)
		volumes[lt] = volumes[lt].Add(d)
	}
	return volumes, rows.Err()
}

// ActiveEmployees lists employee originators with commissions in a month.
func (r *SQLRepository) ActiveEmployees(ctx context.Context, month time.Month, year int) ([]domain.EmployeeRef, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	query := `
		SELECT DISTINCT originator_id, originator_grade FROM commissions
		WHERE originator_role IN (?, ?) AND application_date >= ? AND application_date < ?
	`
	rows, err := r.db.QueryContext(ctx, r.rebind(query),
		string(domain.RoleEmployee), string(domain.RoleSubEmployee), start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list active employees: %w", err)
	}
	defer rows.Close()

	var result []domain.EmployeeRef
	for rows.Next() {
		var ref domain.EmployeeRef
		var grade string
		if err := rows.Scan(&ref.WorkerID, &grade); err != nil {
			return nil, fmt.Errorf("failed to scan employee ref: %w", err)
		}
		ref.Grade = domain.EmployeeGrade(grade)
		result = append(result, ref)
	}
	return result, rows.Err()
}

// ActiveDSAs lists DSA originators with their referrer, one entry per DSA.
func (r *SQLRepository) ActiveDSAs(ctx context.Context) ([]domain.DSARef, error) {
	query := `
		SELECT DISTINCT originator_id, originator_category, referrer_id FROM commissions
		WHERE originator_role IN (?, ?)
	`
	rows, err := r.db.QueryContext(ctx, r.rebind(query),
		string(domain.RoleDSA), string(domain.RoleSubDSA))
	if err != nil {
		return nil, fmt.Errorf("failed to list active dsas: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var result []domain.DSARef
	for rows.Next() {
		var ref domain.DSARef
		var category string
		if err := rows.Scan(&ref.WorkerID, &category, &ref.ReferrerID); err != nil {
			return nil, fmt.Errorf("failed to scan dsa ref: %w", err)
		}
		if seen[ref.WorkerID] {
			continue
		}
		seen[ref.WorkerID] = true
		ref.Category = domain.DSACategory(category)
		result = append(result, ref)
	}
	return result, rows.Err()
}

// Ping verifies database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// ----- row mapping -----

type commissionColumnsJSON struct {
	hierarchy        string
	distribution     string
	insurance        string
	bankConfirmation sql.NullString
	payoutDetails    string
	summary          string
	flags            string
}

func marshalCommission(c *domain.Commission) (*commissionColumnsJSON, error) {
	hierarchy, err := json.Marshal(c.Hierarchy)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal hierarchy: %w", err)
	}
	dist, err := json.Marshal(c.Distribution)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal distribution: %w", err)
	}
	insurance, err := json.Marshal(c.Insurance)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal insurance: %w", err)
	}
	payout, err := json.Marshal(c.PayoutDetails)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payout details: %w", err)
	}
	summary, err := json.Marshal(c.Summary)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal summary: %w", err)
	}
	flags, err := json.Marshal(c.Flags)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal flags: %w", err)
	}

	cols := &commissionColumnsJSON{
		hierarchy:     string(hierarchy),
		distribution:  string(dist),
		insurance:     string(insurance),
		payoutDetails: string(payout),
		summary:       string(summary),
		flags:         string(flags),
	}
	if c.BankConfirmation != nil {
		conf, err := json.Marshal(c.BankConfirmation)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal bank confirmation: %w", err)
		}
		cols.bankConfirmation = sql.NullString{String: string(conf), Valid: true}
	}
	return cols, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLRepository) scanCommission(row *sql.Row) (*domain.Commission, error) {
	c, err := r.scanCommissionRow(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return c, err
}

func (r *SQLRepository) scanCommissionRow(row rowScanner) (*domain.Commission, error) {
	var c domain.Commission
	var loanType, loanAmount, payoutRate, totalPayout string
	var origRole, origGrade, origCategory, referrer sql.NullString
	var hierarchy, distribution, insurance, payoutDetails, summary, flags string
	var bankConfirmation sql.NullString
	var status string

	err := row.Scan(
		&c.ID, &c.LoanAuditID, &c.ClientName, &c.BankName, &loanType, &loanAmount,
		&c.ApplicationDate, &payoutRate, &totalPayout,
		&c.Originator.WorkerID, &origRole, &origGrade, &origCategory, &referrer,
		&hierarchy, &distribution, &insurance, &status, &bankConfirmation,
		&payoutDetails, &summary, &flags, &c.Version, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.LoanType = domain.LoanType(loanType)
	c.Status = domain.Status(status)
	c.Originator.Role = domain.ParticipantRole(origRole.String)
	c.Originator.Grade = domain.EmployeeGrade(origGrade.String)
	c.Originator.Category = domain.DSACategory(origCategory.String)

	if c.LoanAmount, err = decimal.NewFromString(loanAmount); err != nil {
		return nil, fmt.Errorf("corrupt loan amount: %w", err)
	}
	if c.BankPayoutRate, err = decimal.NewFromString(payoutRate); err != nil {
		return nil, fmt.Errorf("corrupt bank payout rate: %w", err)
	}
	if c.TotalBankPayout, err = decimal.NewFromString(totalPayout); err != nil {
		return nil, fmt.Errorf("corrupt total bank payout: %w", err)
	}

	if err := json.Unmarshal([]byte(hierarchy), &c.Hierarchy); err != nil {
		return nil, fmt.Errorf("corrupt hierarchy: %w", err)
	}
	if distribution != "" && distribution != "null" {
		if err := json.Unmarshal([]byte(distribution), &c.Distribution); err != nil {
			return nil, fmt.Errorf("corrupt distribution: %w", err)
		}
	}
	if insurance != "" && insurance != "null" {
		if err := json.Unmarshal([]byte(insurance), &c.Insurance); err != nil {
			return nil, fmt.Errorf("corrupt insurance: %w", err)
		}
	}
	if bankConfirmation.Valid && bankConfirmation.String != "" {
		var conf domain.BankConfirmation
		if err := json.Unmarshal([]byte(bankConfirmation.String), &conf); err != nil {
			return nil, fmt.Errorf("corrupt bank confirmation: %w", err)
		}
		c.BankConfirmation = &conf
	}
	if err := json.Unmarshal([]byte(payoutDetails), &c.PayoutDetails); err != nil {
		return nil, fmt.Errorf("corrupt payout details: %w", err)
	}
	if err := json.Unmarshal([]byte(summary), &c.Summary); err != nil {
		return nil, fmt.Errorf("corrupt summary: %w", err)
	}
	if err := json.Unmarshal([]byte(flags), &c.Flags); err != nil {
		return nil, fmt.Errorf("corrupt flags: %w", err)
	}

	return &c, nil
}

func scanIncentive(row rowScanner) (*domain.IncentiveRecord, error) {
	var rec domain.IncentiveRecord
	var month int
	var grade, volume, rate, amount string
	if err := row.Scan(&rec.EmployeeID, &month, &rec.Year, &rec.ID, &grade, &volume, &rate, &amount, &rec.ComputedAt); err != nil {
		return nil, err
	}
	rec.Month = time.Month(month)
	rec.Grade = domain.EmployeeGrade(grade)
	rec.Volume, _ = decimal.NewFromString(volume)
	rec.Rate, _ = decimal.NewFromString(rate)
	rec.Amount, _ = decimal.NewFromString(amount)
	return &rec, nil
}

// rebind converts ? placeholders to $n for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
