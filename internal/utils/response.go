package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ms-demo-booking/internal/ledger"
	"ms-demo-booking/internal/logger"
)

// Error codes returned in the API envelope.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeCapacityExceeded = "CAPACITY_EXCEEDED"
	CodeConflict         = "CONFLICT"
	CodeScanUnresolved   = "SCAN_UNRESOLVED"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeInternal         = "INTERNAL"
)

type APIResponse struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message"`
	Data      interface{}       `json:"data,omitempty"`
	Error     string            `json:"error,omitempty"`
	Code      string            `json:"code,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func ErrorResponse(message, error string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     error,
		Timestamp: time.Now(),
	}
}

func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func WriteSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	WriteJSON(w, status, SuccessResponse(message, data))
}

// WriteFailure writes an error envelope with an explicit status and code.
func WriteFailure(w http.ResponseWriter, status int, code, message string) {
	resp := ErrorResponse(message, message)
	resp.Code = code
	WriteJSON(w, status, resp)
}

// Classify maps an error onto its HTTP status and error code.
func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, ErrScanUnresolved):
		return http.StatusNotFound, CodeScanUnresolved
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, ledger.ErrCapacityExceeded):
		return http.StatusConflict, CodeCapacityExceeded
	case errors.Is(err, ledger.ErrConflict):
		return http.StatusConflict, CodeConflict
	}
	return http.StatusInternalServerError, CodeInternal
}

// WriteError writes err as an API error. Internal failures are logged with
// their detail and answered with a generic message.
func WriteError(w http.ResponseWriter, log *logger.Logger, message string, err error) {
	status, code := Classify(err)
	resp := ErrorResponse(message, err.Error())
	resp.Code = code

	var ve *ValidationError
	if errors.As(err, &ve) {
		resp.Error = ve.Message
		resp.Details = ve.Fields
	}
	if status == http.StatusInternalServerError {
		log.Error("HTTP", fmt.Sprintf("%s: %v", message, err))
		resp.Error = "internal error"
	}
	WriteJSON(w, status, resp)
}

// DecodeJSON reads a JSON body into dst, reporting malformed input and
// unknown fields as a validation error.
func DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &ValidationError{Message: "invalid request body: " + err.Error()}
	}
	return nil
}
