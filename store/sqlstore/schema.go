package sqlstore

import (
	"context"
	"strings"
)

// Column types that differ between dialects.
var columnTypes = map[Dialect]*strings.Replacer{
	SQLite: strings.NewReplacer(
		"{{DAYS}}", "TEXT",
		"{{DATE}}", "TEXT",
		"{{TS}}", "TIMESTAMP",
		"{{JSON}}", "TEXT",
		"{{BOOL}}", "BOOLEAN",
	),
	Postgres: strings.NewReplacer(
		"{{DAYS}}", "NUMERIC(10,2)",
		"{{DATE}}", "DATE",
		"{{TS}}", "TIMESTAMPTZ",
		"{{JSON}}", "JSONB",
		"{{BOOL}}", "BOOLEAN",
	),
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT,
	birth_date {{DATE}},
	employment_term TEXT NOT NULL DEFAULT 'full_time',
	status TEXT NOT NULL DEFAULT 'active',
	comp_off_balance {{DAYS}} NOT NULL DEFAULT '0',
	created_at {{TS}} NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_users_term ON users(employment_term);

CREATE TABLE IF NOT EXISTS leave_types (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	category TEXT NOT NULL,
	max_days_per_year {{DAYS}} NOT NULL DEFAULT '0',
	carry_forward {{BOOL}} NOT NULL DEFAULT FALSE,
	requires_approval {{BOOL}} NOT NULL DEFAULT TRUE,
	deducts_balance {{BOOL}} NOT NULL DEFAULT TRUE,
	own_balance {{BOOL}} NOT NULL DEFAULT FALSE
);

-- At most one default bucket
CREATE UNIQUE INDEX IF NOT EXISTS idx_leave_types_default
	ON leave_types(category) WHERE category = 'default';

CREATE TABLE IF NOT EXISTS leave_applications (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id),
	leave_type_id TEXT NOT NULL REFERENCES leave_types(id),
	start_date {{DATE}} NOT NULL,
	end_date {{DATE}} NOT NULL,
	days_count {{DAYS}} NOT NULL,
	is_half_day {{BOOL}} NOT NULL DEFAULT FALSE,
	half_day_period TEXT,
	status TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	lop_days {{DAYS}} NOT NULL DEFAULT '0',
	sandwich_deducted_days {{DAYS}},
	sandwich_reason TEXT NOT NULL DEFAULT '',
	is_sandwich_leave {{BOOL}} NOT NULL DEFAULT FALSE,
	pricing_rule TEXT NOT NULL DEFAULT '',
	decided_by TEXT NOT NULL DEFAULT '',
	decided_at {{TS}},
	rejection_reason TEXT NOT NULL DEFAULT '',
	withdrawn_by TEXT NOT NULL DEFAULT '',
	withdrawal_reason TEXT NOT NULL DEFAULT '',
	withdrawn_at {{TS}},
	applied_at {{TS}} NOT NULL,
	updated_at {{TS}} NOT NULL
);

-- Pair sibling lookup and overlap checks
CREATE INDEX IF NOT EXISTS idx_applications_user_dates
	ON leave_applications(user_id, start_date, end_date);
CREATE INDEX IF NOT EXISTS idx_applications_status
	ON leave_applications(status);

CREATE TABLE IF NOT EXISTS leave_balances (
	user_id TEXT NOT NULL REFERENCES users(id),
	leave_type_id TEXT NOT NULL REFERENCES leave_types(id),
	year INTEGER NOT NULL,
	allocated_days {{DAYS}} NOT NULL DEFAULT '0',
	used_days {{DAYS}} NOT NULL DEFAULT '0',
	rate_of_leave {{DAYS}} NOT NULL DEFAULT '0',
	last_credited_month TEXT NOT NULL DEFAULT '',
	updated_at {{TS}} NOT NULL,
	PRIMARY KEY (user_id, leave_type_id, year)
);

CREATE TABLE IF NOT EXISTS employment_term_rates (
	term TEXT PRIMARY KEY,
	rate {{DAYS}} NOT NULL
);

-- Append-only journal. No UPDATE or DELETE is ever issued against it.
CREATE TABLE IF NOT EXISTS balance_transactions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	leave_type_id TEXT NOT NULL DEFAULT '',
	year INTEGER NOT NULL DEFAULT 0,
	tx_type TEXT NOT NULL,
	delta {{DAYS}} NOT NULL,
	reference_id TEXT NOT NULL DEFAULT '',
	reason TEXT NOT NULL DEFAULT '',
	idempotency_key TEXT UNIQUE,
	created_by TEXT NOT NULL,
	created_at {{TS}} NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_user
	ON balance_transactions(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_transactions_reference
	ON balance_transactions(reference_id);

CREATE TABLE IF NOT EXISTS allocation_settings (
	id INTEGER PRIMARY KEY,
	is_active {{BOOL}} NOT NULL DEFAULT TRUE,
	cron_schedule TEXT NOT NULL,
	end_date {{DATE}},
	last_run_at {{TS}},
	next_run_at {{TS}},
	updated_by TEXT NOT NULL DEFAULT '',
	updated_at {{TS}} NOT NULL
);

CREATE TABLE IF NOT EXISTS allocation_runs (
	id TEXT PRIMARY KEY,
	trigger_type TEXT NOT NULL,
	month TEXT NOT NULL,
	status TEXT NOT NULL,
	credited INTEGER NOT NULL DEFAULT 0,
	skipped INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	started_at {{TS}} NOT NULL,
	completed_at {{TS}}
);

CREATE TABLE IF NOT EXISTS email_queue (
	id TEXT PRIMARY KEY,
	reference_id TEXT NOT NULL DEFAULT '',
	module_type TEXT NOT NULL,
	email_type TEXT NOT NULL,
	email_data {{JSON}} NOT NULL,
	recipients {{JSON}} NOT NULL,
	status TEXT NOT NULL,
	priority INTEGER NOT NULL DEFAULT 5,
	created_at {{TS}} NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_email_queue_status
	ON email_queue(status, priority, created_at);

CREATE TABLE IF NOT EXISTS notifications (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL,
	message TEXT NOT NULL,
	type TEXT NOT NULL,
	data {{JSON}},
	is_read {{BOOL}} NOT NULL DEFAULT FALSE,
	created_at {{TS}} NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_user
	ON notifications(user_id, created_at);
`

// migrate creates the database schema.
func (s *Store) migrate(ctx context.Context) error {
	ddl := columnTypes[s.dialect].Replace(schema)
	for _, stmt := range strings.Split(ddl, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
