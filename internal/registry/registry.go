// Package registry owns loan application state: creation, lookup and the
// single Submitted to Approved transition.
package registry

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"loan-engine/internal/amortization"
	"loan-engine/internal/domain"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const pdfMIME = "application/pdf"

var DefaultAnnualRate = decimal.RequireFromString("5.5")

type Store interface {
	Insert(ctx context.Context, app domain.LoanApplication) error
	FindByID(ctx context.Context, id string) (domain.LoanApplication, error)
	List(ctx context.Context) ([]domain.LoanApplication, error)
	// MarkApproved must only succeed for a Submitted application.
	MarkApproved(ctx context.Context, id string, refs domain.DocumentRefs, approvedAt time.Time) (domain.LoanApplication, error)
	Count(ctx context.Context) (int, error)
}

type BlobStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// Locker serializes work on a key across processes.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// DocumentProducer generates and stores the documents of an approved
// candidate and returns their references.
type DocumentProducer func(ctx context.Context, candidate domain.LoanApplication) (domain.DocumentRefs, error)

type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

type SubmitInput struct {
	Amount     decimal.Decimal
	Duration   int
	Income     decimal.Decimal
	IDDocument Upload
	SalarySlip Upload
}

type Registry struct {
	store Store
	blobs BlobStore
	local *keyedMutex

	locker  Locker
	lockTTL time.Duration

	now         func() time.Time
	newID       func() string
	annualRate  decimal.Decimal
	maxDuration int
}

type Option func(*Registry)

func WithLocker(l Locker, ttl time.Duration) Option {
	return func(r *Registry) {
		r.locker = l
		r.lockTTL = ttl
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(r *Registry) { r.newID = gen }
}

func WithAnnualRate(rate decimal.Decimal) Option {
	return func(r *Registry) { r.annualRate = rate }
}

func WithMaxDuration(months int) Option {
	return func(r *Registry) {
		if months > 0 {
			r.maxDuration = months
		}
	}
}

func New(store Store, blobs BlobStore, opts ...Option) *Registry {
	r := &Registry{
		store:       store,
		blobs:       blobs,
		local:       newKeyedMutex(),
		lockTTL:     30 * time.Second,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
		annualRate:  DefaultAnnualRate,
		maxDuration: domain.DefaultMaxDuration,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) AnnualRate() decimal.Decimal {
	return r.annualRate
}

func (r *Registry) MaxDuration() int {
	return r.maxDuration
}

// Submit validates the request and both uploads, stores the uploads and
// records a new Submitted application. Nothing is stored when validation fails.
func (r *Registry) Submit(ctx context.Context, in SubmitInput) (domain.LoanApplication, error) {
	amount := in.Amount.Round(amortization.MoneyPlaces)
	income := in.Income.Round(amortization.MoneyPlaces)
	if err := domain.ValidateTerms(amount, in.Duration, income, r.maxDuration); err != nil {
		return domain.LoanApplication{}, err
	}
	if err := validatePDF("id_document", in.IDDocument); err != nil {
		return domain.LoanApplication{}, err
	}
	if err := validatePDF("salary_slip", in.SalarySlip); err != nil {
		return domain.LoanApplication{}, err
	}

	payment, err := amortization.MonthlyPayment(amount, in.Duration, r.annualRate)
	if err != nil {
		return domain.LoanApplication{}, err
	}

	app := domain.LoanApplication{
		ID:             r.newID(),
		Amount:         amount,
		Duration:       in.Duration,
		Income:         income,
		Status:         domain.StatusSubmitted,
		CreatedAt:      r.now(),
		MonthlyPayment: payment,
		AnnualRate:     r.annualRate,
	}
	if err := app.Validate(r.maxDuration); err != nil {
		return domain.LoanApplication{}, err
	}

	app.IDDocumentRef, err = r.blobs.Put(ctx, app.ID+"_id.pdf", pdfMIME, in.IDDocument.Data)
	if err != nil {
		return domain.LoanApplication{}, fmt.Errorf("store id document of %s: %w", app.ID, err)
	}
	app.SalarySlipRef, err = r.blobs.Put(ctx, app.ID+"_salary.pdf", pdfMIME, in.SalarySlip.Data)
	if err != nil {
		return domain.LoanApplication{}, fmt.Errorf("store salary slip of %s: %w", app.ID, err)
	}

	if err := r.store.Insert(ctx, app); err != nil {
		return domain.LoanApplication{}, err
	}
	return app, nil
}

func (r *Registry) Get(ctx context.Context, id string) (domain.LoanApplication, error) {
	if strings.TrimSpace(id) == "" {
		return domain.LoanApplication{}, domain.NewError(domain.ErrNotFound, id, "application not found")
	}
	return r.store.FindByID(ctx, id)
}

// List returns every application in insertion order.
func (r *Registry) List(ctx context.Context) ([]domain.LoanApplication, error) {
	return r.store.List(ctx)
}

func (r *Registry) Len(ctx context.Context) (int, error) {
	return r.store.Count(ctx)
}

// Approve moves id from Submitted to Approved. produce runs while the
// per-application lock is held; the new status and both references are
// committed together only after it succeeds.
func (r *Registry) Approve(ctx context.Context, id string, produce DocumentProducer) (domain.LoanApplication, error) {
	unlock, err := r.local.Lock(ctx, id)
	if err != nil {
		return domain.LoanApplication{}, err
	}
	defer unlock()

	if r.locker != nil {
		release, err := r.locker.Acquire(ctx, "approve:"+id, r.lockTTL)
		if err != nil {
			return domain.LoanApplication{}, err
		}
		defer release()
	}

	app, err := r.Get(ctx, id)
	if err != nil {
		return domain.LoanApplication{}, err
	}
	if app.Status != domain.StatusSubmitted {
		return domain.LoanApplication{}, domain.Errorf(domain.ErrInvalidTransition, id, "cannot approve application in status %s", app.Status)
	}

	approvedAt := r.now()
	candidate := app.Approved(domain.DocumentRefs{}, approvedAt)

	refs, err := produce(ctx, candidate)
	if err != nil {
		if errors.Is(err, domain.ErrGenerationFailure) {
			return domain.LoanApplication{}, err
		}
		return domain.LoanApplication{}, domain.WrapError(domain.ErrGenerationFailure, id, "failed to produce approval documents", err)
	}
	if refs.Contract == "" || refs.Amortization == "" {
		return domain.LoanApplication{}, domain.NewError(domain.ErrGenerationFailure, id, "document references are missing")
	}

	return r.store.MarkApproved(ctx, id, refs, approvedAt)
}

func validatePDF(field string, u Upload) error {
	if len(u.Data) == 0 {
		return domain.Errorf(domain.ErrInvalidDocument, "", "%s is required", field)
	}
	if !strings.EqualFold(filepath.Ext(u.FileName), ".pdf") {
		return domain.Errorf(domain.ErrInvalidDocument, "", "%s must be a .pdf file", field)
	}
	if ct := strings.ToLower(strings.TrimSpace(u.ContentType)); ct != "" && ct != pdfMIME && ct != "application/octet-stream" {
		return domain.Errorf(domain.ErrInvalidDocument, "", "%s has content type %s, expected %s", field, u.ContentType, pdfMIME)
	}
	if !mimetype.Detect(u.Data).Is(pdfMIME) {
		return domain.Errorf(domain.ErrInvalidDocument, "", "%s is not a PDF document", field)
	}
	return nil
}
