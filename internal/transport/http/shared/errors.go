package shared

import (
	"errors"
	"log/slog"
	"net/http"

	"reviewflow/internal/platform/apperror"
	"reviewflow/internal/transport/http/api"
)

var statusByCode = map[apperror.Code]int{
	apperror.CodeValidation:   http.StatusBadRequest,
	apperror.CodeNotFound:     http.StatusNotFound,
	apperror.CodeForbidden:    http.StatusForbidden,
	apperror.CodeUnauthorized: http.StatusUnauthorized,
	apperror.CodeConflict:     http.StatusConflict,
	apperror.CodeInternal:     http.StatusInternalServerError,
}

// StatusFor maps an error to its HTTP status. Unknown errors are internal.
func StatusFor(err error) int {
	if status, ok := statusByCode[apperror.GetCode(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// FailError writes the envelope for err. Internal errors are logged and
// reported to the client with a generic message.
func FailError(w http.ResponseWriter, requestID string, err error) {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", requestID)
		return
	}
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "requestId", requestID, "err", err)
	}
	api.Fail(w, status, string(apperror.GetCode(err)), apperror.Message(err), requestID)
}
