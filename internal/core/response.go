package core

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"leanpulse/internal/types"
)

// maxRequestBodySize is the maximum allowed size of a request body (1 MB).
const maxRequestBodySize = 1 << 20

// APIResponse is the standard envelope for successful API responses.
type APIResponse struct {
	Data any `json:"data"`
}

// APIErrorResponse is the standard envelope for all error API responses.
type APIErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the structured error information returned to clients.
type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id"`
}

// JSON writes data with the given status. A marshalling failure falls back to
// a 500 error envelope.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fallback := APIErrorResponse{
			Error: ErrorDetail{
				Code:      string(types.ErrCodeInternalUnexpected),
				Message:   "failed to marshal response",
				RequestID: types.GetRequestID(r.Context()),
			},
		}
		_ = json.NewEncoder(w).Encode(fallback)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Data writes v inside the {data} envelope.
func Data(w http.ResponseWriter, r *http.Request, status int, v any) {
	JSON(w, r, status, APIResponse{Data: v})
}

// Error writes an error envelope. A *types.AppError anywhere in the chain
// selects the status from its code; any other error becomes a generic 500.
// Wrapped causes are never sent to the client. Server-side failures are
// logged with their cause through the request logger.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	detail := ErrorDetail{
		Code:      string(types.ErrCodeInternalUnexpected),
		Message:   "an unexpected error occurred",
		RequestID: types.GetRequestID(r.Context()),
	}
	status := http.StatusInternalServerError

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		status = appErr.HTTPStatus()
		detail.Code = string(appErr.Code)
		detail.Message = appErr.Message
		detail.Details = appErr.Details
	}

	if status >= http.StatusInternalServerError {
		if l := types.LoggerFromContext(r.Context()); l != nil {
			args := []any{"code", detail.Code, "status", status, "error", err.Error()}
			if appErr != nil && appErr.Err != nil {
				args = append(args, "cause", appErr.Err.Error())
			}
			l.Error("request failed", args...)
		}
	}
	JSON(w, r, status, APIErrorResponse{Error: detail})
}

// errCodeValidationInvalidJSON is local to the chassis layer.
const errCodeValidationInvalidJSON types.ErrorCode = "validation_invalid_json"

// DecodeJSON reads exactly one JSON object from the body into dst. Every
// failure is a 400 validation_invalid_json AppError; field-level failures
// name the field in details.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		msg, details := describeDecodeError(err)
		return types.NewAppErrorWithDetails(errCodeValidationInvalidJSON, msg, err, details)
	}
	if dec.More() {
		return types.NewAppError(errCodeValidationInvalidJSON, "request body must contain a single JSON object", nil)
	}
	return nil
}

func describeDecodeError(err error) (string, map[string]any) {
	var (
		maxBytesErr *http.MaxBytesError
		syntaxErr   *json.SyntaxError
		typeErr     *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &maxBytesErr):
		return "request body must not exceed 1MB", nil
	case errors.As(err, &syntaxErr):
		return "malformed JSON in request body", map[string]any{"offset": syntaxErr.Offset}
	case errors.As(err, &typeErr):
		return "invalid value for field " + typeErr.Field, map[string]any{
			"field":    typeErr.Field,
			"expected": typeErr.Type.String(),
		}
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		return "unknown field in request body: " + field, map[string]any{"field": field}
	case errors.Is(err, io.EOF):
		return "request body must not be empty", nil
	case errors.Is(err, io.ErrUnexpectedEOF):
		return "malformed JSON in request body", nil
	}
	return "invalid JSON in request body", nil
}
