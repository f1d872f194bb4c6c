package rest

import (
	"context"
	"net/http"
	"time"

	"loan-engine/internal/domain"
	"loan-engine/internal/logger"
	"loan-engine/internal/registry"
	"loan-engine/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const defaultMaxUpload = 10 << 20

type LoanService interface {
	SubmitApplication(ctx context.Context, in registry.SubmitInput) (domain.LoanApplication, error)
	ListApplications(ctx context.Context) ([]domain.LoanApplication, error)
	GetApplication(ctx context.Context, id string) (domain.LoanApplication, error)
	ApproveApplication(ctx context.Context, id string) (service.Approval, error)
	FetchContract(ctx context.Context, id string) (service.File, error)
	FetchAmortization(ctx context.Context, id string) (service.File, error)
	FetchAmortizationSchedule(ctx context.Context, id string) (domain.ScheduleSummary, error)
	ExportAmortizationXLSX(ctx context.Context, id string) (service.File, error)
	ComputeSchedule(ctx context.Context, req service.QuoteRequest) (domain.ScheduleSummary, error)
	Link(ctx context.Context, ref *string) (string, error)
}

type Handler struct {
	loans     LoanService
	log       zerolog.Logger
	maxUpload int64
	health    func(ctx context.Context) error
}

type HandlerOption func(*Handler)

func WithMaxUpload(n int64) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxUpload = n
		}
	}
}

// WithHealthCheck makes /health report the result of check.
func WithHealthCheck(check func(ctx context.Context) error) HandlerOption {
	return func(h *Handler) { h.health = check }
}

func NewHandler(loans LoanService, log zerolog.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		loans:     loans,
		log:       log,
		maxUpload: defaultMaxUpload,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) InitRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
		h.withRequestLogger,
	)

	r.Get("/health", h.healthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Post("/loan-application", h.submitApplication)
		r.Post("/loan-application/approve", h.approveApplicationByBody)
		r.Get("/loan-applications", h.listApplications)

		r.Route("/loan-application/{id}", func(r chi.Router) {
			r.Get("/", h.getApplication)
			r.Post("/approve", h.approveApplication)
			r.Get("/contract", h.getContract)
			r.Get("/amortization", h.getAmortization)
		})

		r.Post("/amortization", h.quoteAmortization)
	})

	return r
}

// withRequestLogger stores a logger tagged with the request id in the context.
func (h *Handler) withRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := h.log.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context(), l)))
	})
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			l := logger.FromContext(r.Context())
			l.Warn().Err(err).Msg("[HTTP] health check failed")
			Error(w, "unhealthy", 503, http.StatusServiceUnavailable)
			return
		}
	}
	Success(w, "", map[string]string{"status": "healthy"})
}
