package shared

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"reviewflow/internal/platform/apperror"
)

var ErrInvalidPayload = apperror.Validation("invalid request payload")

// DecodeJSON decodes the request body into dst. An empty body is rejected.
func DecodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return ErrInvalidPayload
		}
		return apperror.Wrap(apperror.CodeValidation, "invalid request payload", err)
	}
	return nil
}

// PathID returns the named URL parameter after checking it is a UUID.
func PathID(r *http.Request, name string) (string, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if _, err := uuid.Parse(raw); err != nil {
		return "", apperror.Validationf("%s must be a valid id", name)
	}
	return raw, nil
}

// ValidID reports whether raw is empty or a UUID. Used for optional query filters.
func ValidID(raw string) bool {
	if raw == "" {
		return true
	}
	_, err := uuid.Parse(raw)
	return err == nil
}

func ClientIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if value := strings.TrimSpace(first); value != "" {
			return value
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
