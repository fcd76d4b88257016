package feedbackhandler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"reviewflow/internal/domain/audit"
	"reviewflow/internal/domain/auth"
	"reviewflow/internal/domain/feedback"
	"reviewflow/internal/domain/selections"
	"reviewflow/internal/platform/apperror"
	"reviewflow/internal/platform/metrics"
	"reviewflow/internal/transport/http/api"
	"reviewflow/internal/transport/http/middleware"
	"reviewflow/internal/transport/http/shared"
)

type Service interface {
	Create(ctx context.Context, actor auth.UserContext, in feedback.CreateInput) (feedback.Form, error)
	Update(ctx context.Context, actor auth.UserContext, id string, in feedback.UpdateInput) (feedback.Form, error)
	Delete(ctx context.Context, actor auth.UserContext, id string) error
	Get(ctx context.Context, actor auth.UserContext, id string) (feedback.Form, error)
	ListByReviewer(ctx context.Context, actor auth.UserContext, filter feedback.Filter, limit, offset int) ([]feedback.Form, int, error)
	ListForEmployee(ctx context.Context, employeeID, cycleID string) ([]feedback.Form, error)
	ListAll(ctx context.Context, filter feedback.Filter, limit, offset int) ([]feedback.Form, int, error)
	Report(ctx context.Context, employeeID, cycleID string, w io.Writer) error
}

// Assignments lists the approved selections naming the caller as reviewer.
type Assignments interface {
	ReviewerAssignments(ctx context.Context, actor auth.UserContext) ([]selections.Assignment, error)
}

type Handler struct {
	Service     Service
	Assignments Assignments
	Perms       middleware.PermissionStore
	Audit       audit.Recorder
	Metrics     *metrics.Collector
}

func NewHandler(service Service, assignments Assignments, perms middleware.PermissionStore, auditSvc audit.Recorder, collector *metrics.Collector) *Handler {
	return &Handler{Service: service, Assignments: assignments, Perms: perms, Audit: auditSvc, Metrics: collector}
}

type createRequest struct {
	EmployeeID         string `json:"employeeId"`
	PerformanceCycleID string `json:"performanceCycleId"`
	Strengths          string `json:"strengths"`
	Improvements       string `json:"improvements"`
	OverallRating      string `json:"overallRating"`
	Status             string `json:"status"`
}

type updateRequest struct {
	Strengths     *string `json:"strengths"`
	Improvements  *string `json:"improvements"`
	OverallRating *string `json:"overallRating"`
	Status        *string `json:"status"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/feedback-forms", func(r chi.Router) {
		r.Route("/reviewer", func(r chi.Router) {
			r.Use(middleware.RequirePermission(auth.PermFeedbackWrite, h.Perms))
			r.Get("/assignments", h.handleAssignments)
			r.Get("/feedback-forms", h.handleListOwn)
			r.Post("/feedback-forms", h.handleCreate)
			r.Get("/feedback-forms/{formID}", h.handleGet)
			r.Put("/feedback-forms/{formID}", h.handleUpdate)
			r.Delete("/feedback-forms/{formID}", h.handleDelete)
		})
		r.Route("/employee", func(r chi.Router) {
			r.Use(middleware.RequirePermission(auth.PermFeedbackReadOwn, h.Perms))
			r.Get("/feedback-forms", h.handleListReceived)
			r.Get("/report.pdf", h.handleOwnReport)
		})
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequirePermission(auth.PermFeedbackReadAll, h.Perms))
			r.Get("/feedback-forms", h.handleListAll)
			r.Get("/employees/{employeeID}/report.pdf", h.handleEmployeeReport)
		})
	})
}

func (h *Handler) handleAssignments(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	items, err := h.Assignments.ReviewerAssignments(r.Context(), user)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	api.Success(w, items, requestID)
}

func (h *Handler) handleListOwn(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	filter, err := parseFilter(r)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	page := shared.ParsePagination(r, shared.DefaultPageSize, shared.MaxPageSize)
	items, total, err := h.Service.ListByReviewer(r.Context(), user, filter, page.Limit, page.Offset)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	shared.SetTotalCount(w, total)
	api.Success(w, items, requestID)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	var payload createRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	v := shared.NewValidator()
	v.Required("employeeId", payload.EmployeeID, "is required")
	v.Required("performanceCycleId", payload.PerformanceCycleID, "is required")
	if !shared.ValidID(strings.TrimSpace(payload.EmployeeID)) {
		v.Add("employeeId", "must be a valid id")
	}
	if !shared.ValidID(strings.TrimSpace(payload.PerformanceCycleID)) {
		v.Add("performanceCycleId", "must be a valid id")
	}
	if v.Reject(w, requestID) {
		return
	}

	created, err := h.Service.Create(r.Context(), user, feedback.CreateInput{
		EmployeeID:         payload.EmployeeID,
		PerformanceCycleID: payload.PerformanceCycleID,
		Strengths:          payload.Strengths,
		Improvements:       payload.Improvements,
		OverallRating:      feedback.Rating(strings.TrimSpace(payload.OverallRating)),
		Status:             feedback.Status(strings.TrimSpace(payload.Status)),
	})
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	h.Metrics.Event("feedback.created")
	if created.Status == feedback.StatusSubmitted {
		h.Metrics.Event("feedback.submitted")
	}
	shared.RecordAudit(r, h.Audit, requestID, user.UserID, "feedback.create", "feedback_form", created.ID, nil, created)
	api.Created(w, created, requestID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	id, err := shared.PathID(r, "formID")
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	form, err := h.Service.Get(r.Context(), user, id)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	api.Success(w, form, requestID)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	id, err := shared.PathID(r, "formID")
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	var payload updateRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	in := feedback.UpdateInput{Strengths: payload.Strengths, Improvements: payload.Improvements}
	if payload.OverallRating != nil {
		rating := feedback.Rating(strings.TrimSpace(*payload.OverallRating))
		in.OverallRating = &rating
	}
	if payload.Status != nil {
		status := feedback.Status(strings.TrimSpace(*payload.Status))
		in.Status = &status
	}

	updated, err := h.Service.Update(r.Context(), user, id, in)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	if updated.Status == feedback.StatusSubmitted {
		h.Metrics.Event("feedback.submitted")
	}
	shared.RecordAudit(r, h.Audit, requestID, user.UserID, "feedback.update", "feedback_form", id, nil, updated)
	api.Success(w, updated, requestID)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	id, err := shared.PathID(r, "formID")
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	if err := h.Service.Delete(r.Context(), user, id); err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	shared.RecordAudit(r, h.Audit, requestID, user.UserID, "feedback.delete", "feedback_form", id, nil, nil)
	api.Success(w, map[string]string{"status": "deleted"}, requestID)
}

func (h *Handler) handleListReceived(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	cycleID, err := cycleFilter(r)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	items, err := h.Service.ListForEmployee(r.Context(), user.UserID, cycleID)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	api.Success(w, items, requestID)
}

func (h *Handler) handleListAll(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	filter, err := parseFilter(r)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	page := shared.ParsePagination(r, shared.DefaultPageSize, shared.MaxPageSize)
	items, total, err := h.Service.ListAll(r.Context(), filter, page.Limit, page.Offset)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	shared.SetTotalCount(w, total)
	api.Success(w, items, requestID)
}

func (h *Handler) handleOwnReport(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	h.writeReport(w, r, user.UserID)
}

func (h *Handler) handleEmployeeReport(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	employeeID, err := shared.PathID(r, "employeeID")
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	shared.RecordAudit(r, h.Audit, requestID, user.UserID, "feedback.report.export", "user", employeeID, nil, nil)
	h.writeReport(w, r, employeeID)
}

// writeReport renders into memory first so a failure can still be reported as JSON.
func (h *Handler) writeReport(w http.ResponseWriter, r *http.Request, employeeID string) {
	requestID := middleware.GetRequestID(r.Context())
	cycleID, err := cycleFilter(r)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	var buf bytes.Buffer
	if err := h.Service.Report(r.Context(), employeeID, cycleID, &buf); err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	h.Metrics.Event("feedback.report")
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=feedback-%s.pdf", employeeID))
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Warn("report write failed", "requestId", requestID, "err", err)
	}
}

func parseFilter(r *http.Request) (feedback.Filter, error) {
	cycleID, err := cycleFilter(r)
	if err != nil {
		return feedback.Filter{}, err
	}
	return feedback.Filter{
		Status:  feedback.Status(strings.TrimSpace(r.URL.Query().Get("status"))),
		CycleID: cycleID,
	}, nil
}

func cycleFilter(r *http.Request) (string, error) {
	cycleID := strings.TrimSpace(r.URL.Query().Get("performanceCycleId"))
	if !shared.ValidID(cycleID) {
		return "", apperror.Validation("performanceCycleId must be a valid id")
	}
	return cycleID, nil
}
