package shared

import (
	"cmp"
	"net/http"
	"slices"
	"strings"

	"reviewflow/internal/transport/http/api"
)

type ValidationIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Validator collects field-level problems for one request body.
type Validator struct {
	issues []ValidationIssue
}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) Add(field, reason string) {
	if v == nil {
		return
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		v.issues = append(v.issues, ValidationIssue{Field: strings.TrimSpace(field), Reason: reason})
	}
}

func (v *Validator) Required(field, value, reason string) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, reason)
	}
}

// Enum ignores empty values; pair it with Required when the field is mandatory.
func (v *Validator) Enum(field, value string, allowed []string, reason string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	if !slices.ContainsFunc(allowed, func(candidate string) bool {
		return strings.EqualFold(value, strings.TrimSpace(candidate))
	}) {
		v.Add(field, reason)
	}
}

func (v *Validator) HasIssues() bool {
	return v != nil && len(v.issues) > 0
}

// Issues returns a copy sorted by field, then reason.
func (v *Validator) Issues() []ValidationIssue {
	if !v.HasIssues() {
		return nil
	}
	out := slices.Clone(v.issues)
	slices.SortStableFunc(out, func(a, b ValidationIssue) int {
		return cmp.Or(cmp.Compare(a.Field, b.Field), cmp.Compare(a.Reason, b.Reason))
	})
	return out
}

// Reject writes the collected issues and reports whether it did.
func (v *Validator) Reject(w http.ResponseWriter, requestID string) bool {
	if !v.HasIssues() {
		return false
	}
	FailValidation(w, requestID, v.Issues())
	return true
}

func FailValidation(w http.ResponseWriter, requestID string, issues []ValidationIssue) {
	api.FailWithDetails(w, http.StatusBadRequest, "validation_error", "payload validation failed",
		map[string]any{"fields": issues}, requestID)
}
