package rest

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"loan-engine/internal/domain"
	"loan-engine/internal/registry"
	"loan-engine/internal/service"

	"github.com/shopspring/decimal"
)

const multipartMemory = 32 << 20

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ValidateSubmitRequest reads the multipart submission form. A missing file
// is passed on as an empty upload and rejected by the registry.
func ValidateSubmitRequest(r *http.Request, maxUpload int64) (*registry.SubmitInput, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, &ValidationError{Field: "form", Message: "request must be multipart/form-data"}
	}

	amount, err := formDecimal(r, "amount")
	if err != nil {
		return nil, err
	}
	income, err := formDecimal(r, "income")
	if err != nil {
		return nil, err
	}

	rawDuration := strings.TrimSpace(r.FormValue("duration"))
	if rawDuration == "" {
		return nil, &ValidationError{Field: "duration", Message: "duration is required"}
	}
	duration, err := strconv.Atoi(rawDuration)
	if err != nil {
		return nil, &ValidationError{Field: "duration", Message: "duration must be an integer number of months"}
	}

	idDoc, err := formUpload(r, "id_document", maxUpload)
	if err != nil {
		return nil, err
	}
	salary, err := formUpload(r, "salary_slip", maxUpload)
	if err != nil {
		return nil, err
	}

	return &registry.SubmitInput{
		Amount:     amount,
		Duration:   duration,
		Income:     income,
		IDDocument: idDoc,
		SalarySlip: salary,
	}, nil
}

func formDecimal(r *http.Request, field string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(r.FormValue(field))
	if raw == "" {
		return decimal.Zero, &ValidationError{Field: field, Message: field + " is required"}
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: field, Message: field + " must be a number"}
	}
	return d, nil
}

func formUpload(r *http.Request, field string, maxUpload int64) (registry.Upload, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return registry.Upload{}, nil
	}
	if err != nil {
		return registry.Upload{}, &ValidationError{Field: field, Message: field + " could not be read"}
	}
	defer file.Close()

	if maxUpload > 0 && header.Size > maxUpload {
		return registry.Upload{}, domain.Errorf(domain.ErrInvalidDocument, "", "%s exceeds %d bytes", field, maxUpload)
	}

	data, err := readAll(file, maxUpload)
	if err != nil {
		return registry.Upload{}, domain.Errorf(domain.ErrInvalidDocument, "", "%s exceeds %d bytes", field, maxUpload)
	}

	return registry.Upload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func readAll(file multipart.File, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(file)
	}
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errors.New("upload too large")
	}
	return data, nil
}

type ApproveRequest struct {
	ID string `json:"id"`
	// accepted for clients that send the listing field name
	ApplicationID string `json:"application_id"`
}

func ValidateApproveRequest(r *http.Request) (string, error) {
	var req ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		return "", &ValidationError{Field: "body", Message: "invalid JSON"}
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = strings.TrimSpace(req.ApplicationID)
	}
	if id == "" {
		return "", &ValidationError{Field: "id", Message: "id is required"}
	}
	return id, nil
}

type QuoteRequest struct {
	Principal *decimal.Decimal `json:"principal"`
	Duration  *int             `json:"duration"`
	Rate      *decimal.Decimal `json:"rate,omitempty"`
}

func ValidateQuoteRequest(r *http.Request) (service.QuoteRequest, error) {
	var req QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return service.QuoteRequest{}, &ValidationError{Field: "body", Message: "invalid JSON"}
	}

	if req.Principal == nil {
		return service.QuoteRequest{}, &ValidationError{Field: "principal", Message: "principal is required"}
	}
	if req.Duration == nil {
		return service.QuoteRequest{}, &ValidationError{Field: "duration", Message: "duration is required"}
	}

	return service.QuoteRequest{
		Principal:  *req.Principal,
		Duration:   *req.Duration,
		AnnualRate: req.Rate,
	}, nil
}
