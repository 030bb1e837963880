package repository

// Schema definitions for the commission engine database.
// Compatible with both SQLite and PostgreSQL.

const schemaCommissions = `
CREATE TABLE IF NOT EXISTS commissions (
    id TEXT PRIMARY KEY,
    loan_audit_id TEXT NOT NULL UNIQUE,
    client_name TEXT NOT NULL,
    bank_name TEXT NOT NULL,
    loan_type TEXT NOT NULL,
    loan_amount TEXT NOT NULL,
    application_date TIMESTAMP NOT NULL,
    bank_payout_rate TEXT NOT NULL,
    total_bank_payout TEXT NOT NULL,
    originator_id TEXT NOT NULL,
    originator_role TEXT NOT NULL,
    originator_grade TEXT,
    originator_category TEXT,
    referrer_id TEXT,
    hierarchy TEXT NOT NULL,
    distribution TEXT,
    insurance TEXT,
    status TEXT NOT NULL,
    bank_confirmation TEXT,
    payout_details TEXT NOT NULL,
    summary TEXT NOT NULL,
    flags TEXT NOT NULL,
    version INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_commissions_status ON commissions(status);
CREATE INDEX IF NOT EXISTS idx_commissions_originator ON commissions(originator_id, application_date);
CREATE INDEX IF NOT EXISTS idx_commissions_originator_role ON commissions(originator_role);
`

const schemaAuditLog = `
CREATE TABLE IF NOT EXISTS commission_audit_log (
    id TEXT PRIMARY KEY,
    commission_id TEXT NOT NULL,
    action TEXT NOT NULL,
    actor TEXT NOT NULL,
    from_status TEXT,
    to_status TEXT,
    details TEXT,
    origin TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_commission ON commission_audit_log(commission_id, created_at);
`

// employee_incentives holds at most one record per (employee, month, year);
// upserts replace the period's record.
const schemaIncentives = `
CREATE TABLE IF NOT EXISTS employee_incentives (
    employee_id TEXT NOT NULL,
    month INTEGER NOT NULL,
    year INTEGER NOT NULL,
    id TEXT NOT NULL,
    grade TEXT NOT NULL,
    volume TEXT NOT NULL,
    rate TEXT NOT NULL,
    amount TEXT NOT NULL,
    computed_at TIMESTAMP NOT NULL,
    PRIMARY KEY (employee_id, month, year)
);
`

// The (dsa_id, criterion_id) primary key is what makes activation-bonus
// grants exactly-once under concurrent batch runs.
const schemaActivationBonuses = `
CREATE TABLE IF NOT EXISTS dsa_activation_bonuses (
    dsa_id TEXT NOT NULL,
    criterion_id TEXT NOT NULL,
    id TEXT NOT NULL,
    activator_id TEXT NOT NULL,
    loan_type TEXT NOT NULL,
    qualifying_volume TEXT NOT NULL,
    amount TEXT NOT NULL,
    granted_at TIMESTAMP NOT NULL,
    PRIMARY KEY (dsa_id, criterion_id)
);

CREATE INDEX IF NOT EXISTS idx_bonuses_activator ON dsa_activation_bonuses(activator_id);
`

// AllSchemas returns all schema definitions.
func AllSchemas() []string {
	return []string{
		schemaCommissions,
		schemaAuditLog,
		schemaIncentives,
		schemaActivationBonuses,
	}
}
