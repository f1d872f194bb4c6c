package rest

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"loan-engine/internal/logger"
	"loan-engine/internal/service"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) submitApplication(w http.ResponseWriter, r *http.Request) {
	// two uploads plus form fields
	r.Body = http.MaxBytesReader(w, r.Body, 2*h.maxUpload+(1<<20))

	in, err := ValidateSubmitRequest(r, h.maxUpload)
	if err != nil {
		ErrorFrom(w, r, err)
		return
	}

	app, err := h.loans.SubmitApplication(r.Context(), *in)
	if err != nil {
		ErrorFrom(w, r, err)
		return
	}

	SuccessCreated(w, "application submitted", toApplicationResponse(app))
}

func (h *Handler) listApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.loans.ListApplications(r.Context())
	if err != nil {
		ErrorFrom(w, r, err)
		return
	}

	out := make([]applicationResponse, 0, len(apps))
	for _, app := range apps {
		out = append(out, toApplicationResponse(app))
	}
	Success(w, "", out)
}

func (h *Handler) getApplication(w http.ResponseWriter, r *http.Request) {
	app, err := h.loans.GetApplication(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		ErrorFrom(w, r, err)
		return
	}

	Success(w, "", h.toDetailResponse(r.Context(), app))
}

func (h *Handler) approveApplication(w http.ResponseWriter, r *http.Request) {
	h.approve(w, r, chi.URLParam(r, "id"))
}

func (h *Handler) approveApplicationByBody(w http.ResponseWriter, r *http.Request) {
	id, err := ValidateApproveRequest(r)
	if err != nil {
		ErrorFrom(w, r, err)
		return
	}
	h.approve(w, r, id)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request, id string) {
	approval, err := h.loans.ApproveApplication(r.Context(), id)
	if err != nil {
		ErrorFrom(w, r, err)
		return
	}

	app := approval.Application
	l := logger.FromContext(r.Context())
	l.Info().Str("application_id", app.ID).Msg("[HTTP] application approved")

	Success(w, "application approved", approvalResponse{
		ApplicationID:  app.ID,
		Status:         string(app.Status),
		Contract:       approval.ContractURL,
		Amortization:   approval.AmortizationURL,
		MonthlyPayment: money(app.MonthlyPayment),
		ApprovedAt:     app.ApprovedAt.Format(time.RFC3339),
	})
}

func (h *Handler) getContract(w http.ResponseWriter, r *http.Request) {
	file, err := h.loans.FetchContract(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		ErrorFrom(w, r, err)
		return
	}
	writeFile(w, file)
}

func (h *Handler) getAmortization(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	switch format := strings.ToLower(r.URL.Query().Get("format")); format {
	case "", "pdf":
		file, err := h.loans.FetchAmortization(r.Context(), id)
		if err != nil {
			ErrorFrom(w, r, err)
			return
		}
		writeFile(w, file)
	case "xlsx":
		file, err := h.loans.ExportAmortizationXLSX(r.Context(), id)
		if err != nil {
			ErrorFrom(w, r, err)
			return
		}
		writeFile(w, file)
	case "json":
		summary, err := h.loans.FetchAmortizationSchedule(r.Context(), id)
		if err != nil {
			ErrorFrom(w, r, err)
			return
		}
		Success(w, "", toScheduleResponse(summary))
	default:
		ErrorFrom(w, r, &ValidationError{Field: "format", Message: "format must be pdf, xlsx or json"})
	}
}

func (h *Handler) quoteAmortization(w http.ResponseWriter, r *http.Request) {
	req, err := ValidateQuoteRequest(r)
	if err != nil {
		ErrorFrom(w, r, err)
		return
	}

	summary, err := h.loans.ComputeSchedule(r.Context(), req)
	if err != nil {
		ErrorFrom(w, r, err)
		return
	}
	Success(w, "", toScheduleResponse(summary))
}

func writeFile(w http.ResponseWriter, f service.File) {
	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(f.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f.Data)
}
