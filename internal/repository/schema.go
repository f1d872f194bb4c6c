package repository

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS loan_applications (
		id BIGSERIAL PRIMARY KEY,
		application_id VARCHAR(64) UNIQUE NOT NULL,
		amount NUMERIC(14, 2) NOT NULL CHECK (amount > 0),
		duration INTEGER NOT NULL CHECK (duration > 0),
		income NUMERIC(14, 2) NOT NULL CHECK (income > 0),
		annual_rate NUMERIC(7, 4) NOT NULL,
		monthly_payment NUMERIC(14, 2) NOT NULL,
		id_document VARCHAR(500) NOT NULL,
		salary_slip VARCHAR(500) NOT NULL,
		contract_path VARCHAR(500),
		amortization_path VARCHAR(500),
		status VARCHAR(50) NOT NULL DEFAULT 'Submitted',
		created_at TIMESTAMPTZ NOT NULL,
		approved_at TIMESTAMPTZ,
		CONSTRAINT loan_applications_documents_iff_approved CHECK (
			(status = 'Approved') = (contract_path IS NOT NULL AND amortization_path IS NOT NULL AND approved_at IS NOT NULL)
		)
	)`,
	`CREATE INDEX IF NOT EXISTS loan_applications_status_idx ON loan_applications (status)`,
}

// EnsureSchema creates the tables used by ApplicationRepository if missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
