package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/conduit-lang/recordkit/internal/datasource"
	"github.com/conduit-lang/recordkit/internal/orm/crud"
	"github.com/conduit-lang/recordkit/internal/orm/query"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// RenderJSON writes v as a JSON body
func RenderJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// RenderError renders a standard error response
func RenderError(w http.ResponseWriter, statusCode int, err error) {
	RenderJSON(w, statusCode, &ErrorResponse{
		Error:   "error",
		Message: err.Error(),
		Code:    errorCodeFromStatus(statusCode),
	})
}

// RenderRecordError renders err with the status matching what went wrong
func RenderRecordError(w http.ResponseWriter, err error) {
	RenderError(w, StatusOf(err), err)
}

// StatusOf maps a record error to an HTTP status
func StatusOf(err error) int {
	switch {
	case errors.Is(err, crud.ErrUnknownEntity),
		errors.Is(err, crud.ErrNotFound),
		errors.Is(err, datasource.ErrUnknownDatasource):
		return http.StatusNotFound
	case errors.Is(err, crud.ErrRemoved):
		return http.StatusGone
	case errors.Is(err, crud.ErrNoRowsAffected),
		errors.Is(err, crud.ErrUniqueViolation),
		errors.Is(err, crud.ErrForeignKeyViolation),
		errors.Is(err, crud.ErrPrimaryKeyMismatch):
		return http.StatusConflict
	case errors.Is(err, crud.ErrNotNullViolation),
		errors.Is(err, crud.ErrCheckViolation),
		errors.Is(err, query.ErrUnsupportedLiteral):
		return http.StatusUnprocessableEntity
	case errors.Is(err, query.ErrUnsupportedCriterion):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// errorCodeFromStatus maps HTTP status codes to error codes
func errorCodeFromStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusConflict:
		return "conflict"
	case http.StatusGone:
		return "gone"
	case http.StatusUnprocessableEntity:
		return "unprocessable_entity"
	case http.StatusInternalServerError:
		return "internal_error"
	case http.StatusServiceUnavailable:
		return "service_unavailable"
	default:
		return "error"
	}
}
