package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Envelope is the body of every JSON response. Exactly one of Data or
// Error is set.
type Envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     *Error `json:"error,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("encode response", "status", status, "err", err)
	}
}

func ok(w http.ResponseWriter, status int, data any, requestID string) {
	WriteJSON(w, status, Envelope{Success: true, Data: data, RequestID: requestID})
}

func Success(w http.ResponseWriter, data any, requestID string) {
	ok(w, http.StatusOK, data, requestID)
}

func Created(w http.ResponseWriter, data any, requestID string) {
	ok(w, http.StatusCreated, data, requestID)
}

func Fail(w http.ResponseWriter, status int, code, message, requestID string) {
	FailWithDetails(w, status, code, message, nil, requestID)
}

func FailWithDetails(w http.ResponseWriter, status int, code, message string, details any, requestID string) {
	WriteJSON(w, status, Envelope{
		Error:     &Error{Code: code, Message: message, Details: details},
		RequestID: requestID,
	})
}
