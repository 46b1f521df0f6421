package store

// Decimal fields are TEXT so no precision is lost in either backend. Dates
// and timestamps are always written in UTC.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL DEFAULT '',
	mobile TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL DEFAULT '',
	is_active BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS punds (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	pund_type TEXT NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	owner_id TEXT NOT NULL REFERENCES users(id),
	start_date TIMESTAMP NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS memberships (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id),
	pund_id TEXT NOT NULL REFERENCES punds(id),
	role TEXT NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	joined_at TIMESTAMP NOT NULL,
	UNIQUE (user_id, pund_id)
);
CREATE TABLE IF NOT EXISTS structures (
	id TEXT PRIMARY KEY,
	pund_id TEXT NOT NULL REFERENCES punds(id),
	saving_amount TEXT NOT NULL,
	loan_interest_percentage TEXT NOT NULL,
	missed_saving_penalty TEXT NOT NULL,
	missed_loan_penalty TEXT NOT NULL,
	default_loan_cycles INTEGER NOT NULL,
	effective_from TIMESTAMP NOT NULL,
	created_at TIMESTAMP NOT NULL,
	UNIQUE (pund_id, effective_from)
);
CREATE TABLE IF NOT EXISTS saving_cycles (
	id TEXT PRIMARY KEY,
	pund_id TEXT NOT NULL REFERENCES punds(id),
	sequence INTEGER NOT NULL,
	due_date TIMESTAMP NOT NULL,
	structure_id TEXT NOT NULL REFERENCES structures(id),
	created_at TIMESTAMP NOT NULL,
	UNIQUE (pund_id, sequence)
);
CREATE TABLE IF NOT EXISTS payments (
	id TEXT PRIMARY KEY,
	cycle_id TEXT NOT NULL REFERENCES saving_cycles(id),
	pund_id TEXT NOT NULL REFERENCES punds(id),
	member_id TEXT NOT NULL REFERENCES users(id),
	cycle_number INTEGER NOT NULL,
	due_date TIMESTAMP NOT NULL,
	amount TEXT NOT NULL,
	penalty_amount TEXT NOT NULL DEFAULT '0',
	is_paid BOOLEAN NOT NULL DEFAULT FALSE,
	paid_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL,
	UNIQUE (cycle_id, member_id)
);
CREATE TABLE IF NOT EXISTS loans (
	id TEXT PRIMARY KEY,
	pund_id TEXT NOT NULL REFERENCES punds(id),
	member_id TEXT NOT NULL REFERENCES users(id),
	principal TEXT NOT NULL,
	interest_percentage TEXT NOT NULL DEFAULT '0',
	missed_loan_penalty TEXT NOT NULL DEFAULT '0',
	status TEXT NOT NULL,
	total_payable TEXT NOT NULL DEFAULT '0',
	remaining_amount TEXT NOT NULL DEFAULT '0',
	cycles INTEGER NOT NULL DEFAULT 0,
	approved_by TEXT,
	approved_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS installments (
	id TEXT PRIMARY KEY,
	loan_id TEXT NOT NULL REFERENCES loans(id),
	cycle_number INTEGER NOT NULL,
	due_date TIMESTAMP NOT NULL,
	emi_amount TEXT NOT NULL,
	penalty_amount TEXT NOT NULL DEFAULT '0',
	is_paid BOOLEAN NOT NULL DEFAULT FALSE,
	paid_at TIMESTAMP,
	UNIQUE (loan_id, cycle_number)
);
CREATE TABLE IF NOT EXISTS audit_logs (
	id TEXT PRIMARY KEY,
	pund_id TEXT NOT NULL REFERENCES punds(id),
	action TEXT NOT NULL,
	description TEXT NOT NULL,
	performed_by TEXT,
	performed_by_name TEXT NOT NULL,
	logged_at TIMESTAMP NOT NULL,
	seq INTEGER NOT NULL,
	UNIQUE (pund_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_payments_pund ON payments (pund_id, due_date);
CREATE INDEX IF NOT EXISTS idx_payments_member ON payments (member_id);
CREATE INDEX IF NOT EXISTS idx_loans_pund ON loans (pund_id);
CREATE INDEX IF NOT EXISTS idx_loans_member ON loans (member_id);
`
