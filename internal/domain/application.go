package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusSubmitted Status = "Submitted"
	StatusApproved  Status = "Approved"
)

const DefaultMaxDuration = 360

type LoanApplication struct {
	ID             string
	Amount         decimal.Decimal
	Duration       int
	Income         decimal.Decimal
	Status         Status
	CreatedAt      time.Time
	MonthlyPayment decimal.Decimal
	AnnualRate     decimal.Decimal

	IDDocumentRef string
	SalarySlipRef string

	// set together with Status = Approved
	ContractRef     *string
	AmortizationRef *string
	ApprovedAt      *time.Time
}

type DocumentRefs struct {
	Contract     string
	Amortization string
}

func (a LoanApplication) IsApproved() bool {
	return a.Status == StatusApproved
}

// Validate checks the numeric and state invariants of a stored application.
func (a LoanApplication) Validate(maxDuration int) error {
	if maxDuration <= 0 {
		maxDuration = DefaultMaxDuration
	}
	if err := ValidateTerms(a.Amount, a.Duration, a.Income, maxDuration); err != nil {
		return err
	}

	hasRefs := a.ContractRef != nil && a.AmortizationRef != nil && a.ApprovedAt != nil
	noRefs := a.ContractRef == nil && a.AmortizationRef == nil && a.ApprovedAt == nil

	switch a.Status {
	case StatusSubmitted:
		if !noRefs {
			return NewError(ErrInvalidTransition, a.ID, "submitted application must not carry documents")
		}
	case StatusApproved:
		if !hasRefs {
			return NewError(ErrInvalidTransition, a.ID, "approved application must carry both documents")
		}
	default:
		return NewError(ErrInvalidInput, a.ID, "unknown status "+string(a.Status))
	}
	return nil
}

// ValidateTerms checks amount, duration and income of a loan request.
func ValidateTerms(amount decimal.Decimal, duration int, income decimal.Decimal, maxDuration int) error {
	if !amount.IsPositive() {
		return NewError(ErrInvalidInput, "", "amount must be greater than 0")
	}
	if duration < 1 || duration > maxDuration {
		return Errorf(ErrInvalidInput, "", "duration must be between 1 and %d months", maxDuration)
	}
	if !income.IsPositive() {
		return NewError(ErrInvalidInput, "", "income must be greater than 0")
	}
	return nil
}

// Approved returns a copy of a moved to Approved with the given document refs.
// The receiver is not modified.
func (a LoanApplication) Approved(refs DocumentRefs, at time.Time) LoanApplication {
	contract := refs.Contract
	amort := refs.Amortization
	approvedAt := at

	out := a
	out.Status = StatusApproved
	out.ContractRef = &contract
	out.AmortizationRef = &amort
	out.ApprovedAt = &approvedAt
	return out
}
