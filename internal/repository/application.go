package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"loan-engine/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

var ErrDuplicateID = errors.New("application id already exists")

const applicationColumns = `application_id, amount, duration, income, annual_rate, monthly_payment, ` +
	`id_document, salary_slip, contract_path, amortization_path, status, created_at, approved_at`

type ApplicationRepository struct {
	db *sql.DB
}

func NewApplicationRepository(db *sql.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

func (r *ApplicationRepository) Insert(ctx context.Context, app domain.LoanApplication) error {
	query := `INSERT INTO loan_applications (` + applicationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.ExecContext(ctx, query,
		app.ID,
		app.Amount,
		app.Duration,
		app.Income,
		app.AnnualRate,
		app.MonthlyPayment,
		app.IDDocumentRef,
		app.SalarySlipRef,
		nullString(app.ContractRef),
		nullString(app.AmortizationRef),
		string(app.Status),
		app.CreatedAt,
		nullTime(app.ApprovedAt),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", ErrDuplicateID, app.ID)
		}
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (domain.LoanApplication, error) {
	query := `SELECT ` + applicationColumns + ` FROM loan_applications WHERE application_id = $1`

	app, err := scanApplication(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LoanApplication{}, domain.NewError(domain.ErrNotFound, id, "application not found")
	}
	if err != nil {
		return domain.LoanApplication{}, fmt.Errorf("find application: %w", err)
	}
	return app, nil
}

// List returns applications in insertion order.
func (r *ApplicationRepository) List(ctx context.Context) ([]domain.LoanApplication, error) {
	query := `SELECT ` + applicationColumns + ` FROM loan_applications ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	out := []domain.LoanApplication{}
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		out = append(out, app)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkApproved moves a Submitted application to Approved and stores both
// document references in a single statement.
func (r *ApplicationRepository) MarkApproved(ctx context.Context, id string, refs domain.DocumentRefs, approvedAt time.Time) (domain.LoanApplication, error) {
	query := `UPDATE loan_applications
		SET status = $2, contract_path = $3, amortization_path = $4, approved_at = $5
		WHERE application_id = $1 AND status = $6
		RETURNING ` + applicationColumns

	app, err := scanApplication(r.db.QueryRowContext(ctx, query,
		id,
		string(domain.StatusApproved),
		refs.Contract,
		refs.Amortization,
		approvedAt,
		string(domain.StatusSubmitted),
	))
	if err == nil {
		return app, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.LoanApplication{}, fmt.Errorf("approve application: %w", err)
	}

	// nothing updated: either unknown id or not Submitted any more
	current, findErr := r.FindByID(ctx, id)
	if findErr != nil {
		return domain.LoanApplication{}, findErr
	}
	return domain.LoanApplication{}, domain.Errorf(domain.ErrInvalidTransition, id, "cannot approve application in status %s", current.Status)
}

func (r *ApplicationRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM loan_applications`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count applications: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (domain.LoanApplication, error) {
	var (
		app          domain.LoanApplication
		status       string
		contract     sql.NullString
		amortization sql.NullString
		approvedAt   sql.NullTime
	)

	if err := row.Scan(
		&app.ID,
		&app.Amount,
		&app.Duration,
		&app.Income,
		&app.AnnualRate,
		&app.MonthlyPayment,
		&app.IDDocumentRef,
		&app.SalarySlipRef,
		&contract,
		&amortization,
		&status,
		&app.CreatedAt,
		&approvedAt,
	); err != nil {
		return domain.LoanApplication{}, err
	}

	app.Status = domain.Status(status)
	if contract.Valid {
		app.ContractRef = &contract.String
	}
	if amortization.Valid {
		app.AmortizationRef = &amortization.String
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		app.ApprovedAt = &t
	}
	return app, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
