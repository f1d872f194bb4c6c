// Package service orchestrates the loan application lifecycle on top of
// the registry, the document generator and document storage.
package service

import (
	"context"
	"errors"
	"time"

	"loan-engine/internal/amortization"
	"loan-engine/internal/clients"
	"loan-engine/internal/document"
	"loan-engine/internal/domain"
	"loan-engine/internal/metrics"
	"loan-engine/internal/registry"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	pdfContentType  = "application/pdf"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type ApplicationRegistry interface {
	Submit(ctx context.Context, in registry.SubmitInput) (domain.LoanApplication, error)
	Get(ctx context.Context, id string) (domain.LoanApplication, error)
	List(ctx context.Context) ([]domain.LoanApplication, error)
	Approve(ctx context.Context, id string, produce registry.DocumentProducer) (domain.LoanApplication, error)
	AnnualRate() decimal.Decimal
	MaxDuration() int
}

type DocumentStorage interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
	Link(ctx context.Context, ref string) (string, error)
}

type Notifier interface {
	NotifyApplicationSubmitted(ctx context.Context, app domain.LoanApplication) error
	NotifyApplicationApproved(ctx context.Context, app domain.LoanApplication) error
}

// File is a rendered document ready to be sent to a client.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

type Approval struct {
	Application     domain.LoanApplication
	ContractURL     string
	AmortizationURL string
}

type QuoteRequest struct {
	Principal decimal.Decimal
	Duration  int
	// nil uses the configured policy rate
	AnnualRate *decimal.Decimal
}

type LifecycleService struct {
	registry  ApplicationRegistry
	generator *document.Generator
	docs      DocumentStorage
	notifier  Notifier
	log       zerolog.Logger
}

func NewLifecycleService(
	reg ApplicationRegistry,
	generator *document.Generator,
	docs DocumentStorage,
	notifier Notifier,
	log zerolog.Logger,
) *LifecycleService {
	if generator == nil {
		generator = document.NewGenerator("", "")
	}
	return &LifecycleService{
		registry:  reg,
		generator: generator,
		docs:      docs,
		notifier:  notifier,
		log:       log.With().Str("component", "lifecycle").Logger(),
	}
}

func (s *LifecycleService) SubmitApplication(ctx context.Context, in registry.SubmitInput) (domain.LoanApplication, error) {
	app, err := s.registry.Submit(ctx, in)
	if err != nil {
		s.log.Warn().Err(err).Msg("application rejected")
		return domain.LoanApplication{}, err
	}

	metrics.RecordSubmitted()
	s.log.Info().
		Str("application_id", app.ID).
		Str("amount", app.Amount.StringFixed(2)).
		Int("duration", app.Duration).
		Msg("application submitted")

	if s.notifier != nil {
		if err := s.notifier.NotifyApplicationSubmitted(ctx, app); err != nil {
			s.log.Warn().Err(err).Str("application_id", app.ID).Msg("submit notification failed")
		}
	}
	return app, nil
}

func (s *LifecycleService) ListApplications(ctx context.Context) ([]domain.LoanApplication, error) {
	return s.registry.List(ctx)
}

func (s *LifecycleService) GetApplication(ctx context.Context, id string) (domain.LoanApplication, error) {
	return s.registry.Get(ctx, id)
}

// ApproveApplication generates and stores both documents, then publishes
// the Approved status. Concurrent calls for one id approve it once.
func (s *LifecycleService) ApproveApplication(ctx context.Context, id string) (Approval, error) {
	app, err := s.registry.Approve(ctx, id, s.produceDocuments)
	if err != nil {
		metrics.RecordApprovalFailure(KindName(err))
		s.log.Warn().Err(err).Str("application_id", id).Msg("approval failed")
		return Approval{}, err
	}

	metrics.RecordApproved()
	s.log.Info().
		Str("application_id", app.ID).
		Str("status", string(app.Status)).
		Str("monthly_payment", app.MonthlyPayment.StringFixed(2)).
		Msg("application approved")

	if s.notifier != nil {
		if err := s.notifier.NotifyApplicationApproved(ctx, app); err != nil {
			s.log.Warn().Err(err).Str("application_id", app.ID).Msg("approve notification failed")
		}
	}

	// The approval is committed; a link failure is logged by Link and leaves
	// the URL empty. Documents stay reachable through the fetch endpoints.
	out := Approval{Application: app}
	out.ContractURL, _ = s.Link(ctx, app.ContractRef)
	out.AmortizationURL, _ = s.Link(ctx, app.AmortizationRef)
	return out, nil
}

func (s *LifecycleService) produceDocuments(ctx context.Context, candidate domain.LoanApplication) (domain.DocumentRefs, error) {
	start := time.Now()

	contract, err := s.renderAndStore(ctx, candidate, domain.DocumentContract)
	if err != nil {
		metrics.RecordGeneration(time.Since(start), false)
		return domain.DocumentRefs{}, err
	}
	schedule, err := s.renderAndStore(ctx, candidate, domain.DocumentAmortization)
	if err != nil {
		metrics.RecordGeneration(time.Since(start), false)
		return domain.DocumentRefs{}, err
	}

	metrics.RecordGeneration(time.Since(start), true)
	return domain.DocumentRefs{Contract: contract, Amortization: schedule}, nil
}

func (s *LifecycleService) renderAndStore(ctx context.Context, app domain.LoanApplication, kind domain.DocumentKind) (string, error) {
	data, name, err := s.renderPDF(app, kind)
	if err != nil {
		return "", err
	}

	ref, err := s.docs.Put(ctx, name, pdfContentType, data)
	if err != nil {
		return "", domain.WrapError(domain.ErrGenerationFailure, app.ID, "failed to store "+string(kind), err)
	}
	return ref, nil
}

func (s *LifecycleService) renderPDF(app domain.LoanApplication, kind domain.DocumentKind) ([]byte, string, error) {
	var (
		doc domain.Document
		err error
	)
	switch kind {
	case domain.DocumentContract:
		doc, err = s.generator.GenerateContract(app)
	default:
		doc, err = s.generator.GenerateAmortization(app)
	}
	if err != nil {
		return nil, "", err
	}

	data, err := document.RenderPDF(doc)
	if err != nil {
		return nil, "", err
	}
	return data, doc.FileName("pdf"), nil
}

func (s *LifecycleService) FetchContract(ctx context.Context, id string) (File, error) {
	return s.fetchDocument(ctx, id, domain.DocumentContract)
}

func (s *LifecycleService) FetchAmortization(ctx context.Context, id string) (File, error) {
	return s.fetchDocument(ctx, id, domain.DocumentAmortization)
}

func (s *LifecycleService) fetchDocument(ctx context.Context, id string, kind domain.DocumentKind) (File, error) {
	app, err := s.approved(ctx, id)
	if err != nil {
		return File{}, err
	}

	ref := *app.ContractRef
	if kind == domain.DocumentAmortization {
		ref = *app.AmortizationRef
	}

	data, err := s.docs.Get(ctx, ref)
	switch {
	case err == nil:
	case errors.Is(err, clients.ErrObjectNotFound):
		// documents are a pure function of the application, rebuild a lost copy
		s.log.Warn().Str("application_id", id).Str("ref", ref).Msg("stored document missing, regenerating")
		data, _, err = s.renderPDF(app, kind)
		if err != nil {
			return File{}, err
		}
	default:
		return File{}, domain.WrapError(domain.ErrGenerationFailure, id, "failed to read "+string(kind), err)
	}

	return File{
		Name:        app.ID + "_" + string(kind) + ".pdf",
		ContentType: pdfContentType,
		Data:        data,
	}, nil
}

// FetchAmortizationSchedule returns the schedule rows of an approved application.
func (s *LifecycleService) FetchAmortizationSchedule(ctx context.Context, id string) (domain.ScheduleSummary, error) {
	app, err := s.approved(ctx, id)
	if err != nil {
		return domain.ScheduleSummary{}, err
	}
	return s.generator.Schedule(app)
}

func (s *LifecycleService) ExportAmortizationXLSX(ctx context.Context, id string) (File, error) {
	app, err := s.approved(ctx, id)
	if err != nil {
		return File{}, err
	}

	doc, err := s.generator.GenerateAmortization(app)
	if err != nil {
		return File{}, err
	}
	data, err := document.RenderXLSX(doc)
	if err != nil {
		return File{}, err
	}
	return File{Name: doc.FileName("xlsx"), ContentType: xlsxContentType, Data: data}, nil
}

// ComputeSchedule quotes a loan without creating an application.
func (s *LifecycleService) ComputeSchedule(ctx context.Context, req QuoteRequest) (domain.ScheduleSummary, error) {
	if err := ctx.Err(); err != nil {
		return domain.ScheduleSummary{}, err
	}

	rate := s.registry.AnnualRate()
	if req.AnnualRate != nil {
		rate = *req.AnnualRate
	}
	if limit := s.registry.MaxDuration(); req.Duration > limit {
		return domain.ScheduleSummary{}, domain.Errorf(domain.ErrInvalidInput, "", "duration must be between 1 and %d months", limit)
	}
	return amortization.Summarize(req.Principal, req.Duration, rate)
}

// Link turns a stored document reference into a client-facing URL.
func (s *LifecycleService) Link(ctx context.Context, ref *string) (string, error) {
	if ref == nil || *ref == "" {
		return "", nil
	}
	url, err := s.docs.Link(ctx, *ref)
	if err != nil {
		s.log.Error().Err(err).Str("ref", *ref).Msg("document link failed")
		return "", err
	}
	return url, nil
}

func (s *LifecycleService) approved(ctx context.Context, id string) (domain.LoanApplication, error) {
	app, err := s.registry.Get(ctx, id)
	if err != nil {
		return domain.LoanApplication{}, err
	}
	if !app.IsApproved() {
		return domain.LoanApplication{}, domain.Errorf(domain.ErrNotReady, id, "documents are available after approval, status is %s", app.Status)
	}
	return app, nil
}

// KindName is the metrics and log label of a domain error kind.
func KindName(err error) string {
	switch domain.KindOf(err) {
	case domain.ErrInvalidInput:
		return "invalid_input"
	case domain.ErrInvalidDocument:
		return "invalid_document"
	case domain.ErrNotFound:
		return "not_found"
	case domain.ErrInvalidTransition:
		return "invalid_transition"
	case domain.ErrNotReady:
		return "not_ready"
	case domain.ErrGenerationFailure:
		return "generation_failure"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "internal"
}
