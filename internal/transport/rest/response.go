package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"loan-engine/internal/domain"
	"loan-engine/internal/logger"

	"github.com/rs/zerolog/log"
)

type APIResponse struct {
	ErrorCode int         `json:"error_code"`
	Status    string      `json:"status"`
	Message   string      `json:"message"`
	Detail    string      `json:"detail,omitempty"`
	Kind      string      `json:"kind,omitempty"`
	Data      interface{} `json:"data"`
}

func Response(w http.ResponseWriter, message string, data interface{}, errorCode int, status string, httpStatus int) {
	write(w, APIResponse{
		ErrorCode: errorCode,
		Status:    status,
		Message:   message,
		Data:      data,
	}, httpStatus)
}

func write(w http.ResponseWriter, response APIResponse, httpStatus int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error().Err(err).Msg("[HTTP] write response error")
	}
}

func Success(w http.ResponseWriter, message string, data interface{}) {
	Response(w, message, data, 0, "success", http.StatusOK)
}

func SuccessCreated(w http.ResponseWriter, message string, data interface{}) {
	Response(w, message, data, 0, "success", http.StatusCreated)
}

func Error(w http.ResponseWriter, message string, errorCode int, httpStatus int) {
	Response(w, message, nil, errorCode, "error", httpStatus)
}

// ErrorDetail writes a human-readable detail together with the error kind
// clients can switch on.
func ErrorDetail(w http.ResponseWriter, detail, kind string, httpStatus int) {
	write(w, APIResponse{
		ErrorCode: httpStatus,
		Status:    "error",
		Message:   detail,
		Detail:    detail,
		Kind:      kind,
	}, httpStatus)
}

func ErrorBadRequest(w http.ResponseWriter, message string) {
	Error(w, message, 400, http.StatusBadRequest)
}

func ErrorNotFound(w http.ResponseWriter, message string) {
	Error(w, message, 404, http.StatusNotFound)
}

func ErrorInternal(w http.ResponseWriter, message string) {
	Error(w, message, 500, http.StatusInternalServerError)
}

// ErrorFrom writes err with the status of its domain kind. Errors without a
// kind are logged and answered with a generic 500.
func ErrorFrom(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		ErrorDetail(w, verr.Error(), "InvalidInput", http.StatusBadRequest)
		return
	}

	status, kind := statusOf(err)
	if status == http.StatusInternalServerError {
		l := logger.FromContext(r.Context())
		l.Error().Err(err).Str("path", r.URL.Path).Msg("[HTTP] request failed")
		if kind == "" {
			ErrorDetail(w, "internal server error", "", status)
			return
		}
	}
	ErrorDetail(w, err.Error(), kind, status)
}

func statusOf(err error) (int, string) {
	switch domain.KindOf(err) {
	case domain.ErrInvalidInput:
		return http.StatusBadRequest, "InvalidInput"
	case domain.ErrInvalidDocument:
		return http.StatusBadRequest, "InvalidDocument"
	case domain.ErrNotFound:
		return http.StatusNotFound, "NotFound"
	case domain.ErrInvalidTransition:
		return http.StatusConflict, "InvalidTransition"
	case domain.ErrNotReady:
		return http.StatusConflict, "NotReady"
	case domain.ErrGenerationFailure:
		return http.StatusInternalServerError, "GenerationFailure"
	}
	return http.StatusInternalServerError, ""
}
