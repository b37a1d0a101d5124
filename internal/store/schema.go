package store

import (
	"context"
	"fmt"
)

// schemaDDL is idempotent and safe to apply on every start.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name TEXT NOT NULL,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    role TEXT NOT NULL CHECK (role IN ('requester', 'approver', 'bank_payer', 'admin')),
    failed_attempts INTEGER NOT NULL DEFAULT 0 CHECK (failed_attempts >= 0),
    temp_lock_until TIMESTAMPTZ,
    temp_lock_activated BOOLEAN NOT NULL DEFAULT FALSE,
    permanently_locked BOOLEAN NOT NULL DEFAULT FALSE,
    version BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS users_single_admin_idx ON users (role) WHERE role = 'admin';

CREATE TABLE IF NOT EXISTS recurring_templates (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    owner_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    department TEXT NOT NULL,
    amount NUMERIC(14, 2) NOT NULL CHECK (amount > 0),
    destination_account TEXT NOT NULL,
    concept TEXT NOT NULL,
    payment_type TEXT NOT NULL,
    frequency TEXT NOT NULL,
    next_due_date DATE NOT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
ALTER TABLE recurring_templates DROP COLUMN IF EXISTS anchor_day;
CREATE INDEX IF NOT EXISTS recurring_templates_due_idx ON recurring_templates (next_due_date) WHERE active;

CREATE TABLE IF NOT EXISTS payment_requests (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    requester_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    department TEXT NOT NULL,
    amount NUMERIC(14, 2) NOT NULL CHECK (amount > 0),
    destination_account TEXT NOT NULL,
    invoice_url TEXT,
    concept TEXT NOT NULL,
    payment_type TEXT NOT NULL,
    due_date DATE NOT NULL,
    support_url TEXT,
    status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'authorized', 'rejected', 'paid')),
    approver_id UUID REFERENCES users(id) ON DELETE SET NULL,
    approver_comment TEXT,
    reviewed_at TIMESTAMPTZ,
    payer_id UUID REFERENCES users(id) ON DELETE SET NULL,
    paid_at TIMESTAMPTZ,
    template_id UUID REFERENCES recurring_templates(id) ON DELETE SET NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS payment_requests_requester_idx ON payment_requests (requester_id);
CREATE INDEX IF NOT EXISTS payment_requests_status_idx ON payment_requests (status);
`

// EnsureSchema creates the tables and indexes the service needs.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Ping checks that the pool can reach the database.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
