package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/wisbric/blacklistguard/internal/apierror"
)

// Envelope is the stable JSON response shape required by §6: every response
// body is {success, data?, error?, timestamp, request_id}.
type Envelope struct {
	Success   bool           `json:"success"`
	Data      any            `json:"data,omitempty"`
	Error     *EnvelopeError `json:"error,omitempty"`
	Timestamp string         `json:"timestamp"`
	RequestID string         `json:"request_id"`
}

// EnvelopeError is the error sub-object of Envelope.
type EnvelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Respond writes a successful JSON envelope with the given status code.
func Respond(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeEnvelope(w, r, status, Envelope{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: RequestIDFromContext(r.Context()),
	})
}

// RespondError writes a JSON error envelope.
func RespondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	RespondErrorDetails(w, r, status, code, message, nil)
}

// RespondErrorDetails writes a JSON error envelope including structured details.
func RespondErrorDetails(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	writeEnvelope(w, r, status, Envelope{
		Success: false,
		Error: &EnvelopeError{
			Code:    code,
			Message: message,
			Details: details,
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: RequestIDFromContext(r.Context()),
	})
}

// RespondAPIError writes the envelope for a *apierror.Error, mapping its Code
// to the right HTTP status.
func RespondAPIError(w http.ResponseWriter, r *http.Request, err *apierror.Error) {
	RespondErrorDetails(w, r, err.Status(), string(err.Code), err.Message, err.Details)
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, env Envelope) {
	if env.RequestID == "" {
		env.RequestID = uuid.New().String()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// RespondValidationError writes a 400 envelope with field-level validation errors.
func RespondValidationError(w http.ResponseWriter, r *http.Request, errs []ValidationError) {
	RespondErrorDetails(w, r, http.StatusBadRequest, "validation_error", "one or more fields failed validation", errs)
}

// DecodeAndValidate decodes a JSON body and validates the result. On failure
// it writes an error envelope and returns false.
func DecodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := Decode(r, dst); err != nil {
		RespondError(w, r, http.StatusBadRequest, "bad_request", err.Error())
		return false
	}
	if errs := Validate(dst); len(errs) > 0 {
		RespondValidationError(w, r, errs)
		return false
	}
	return true
}
