package cycleshandler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"reviewflow/internal/domain/audit"
	"reviewflow/internal/domain/auth"
	"reviewflow/internal/domain/cycles"
	"reviewflow/internal/platform/jobs"
	"reviewflow/internal/platform/metrics"
	"reviewflow/internal/transport/http/api"
	"reviewflow/internal/transport/http/middleware"
	"reviewflow/internal/transport/http/shared"
)

type Service interface {
	Create(ctx context.Context, in cycles.CreateInput) (cycles.Cycle, error)
	Update(ctx context.Context, id string, in cycles.UpdateInput) (cycles.Cycle, error)
	Get(ctx context.Context, id string) (cycles.Cycle, error)
	Active(ctx context.Context) (*cycles.Cycle, error)
	List(ctx context.Context, status cycles.Status, limit, offset int) ([]cycles.Cycle, int, error)
	Delete(ctx context.Context, id string) error
}

// JobRunner runs the expiry sweep on demand with the same run log as the schedule.
type JobRunner interface {
	RunNow(ctx context.Context, jobType string, run func(context.Context) (any, error)) (any, error)
	CloseExpiredCycles(ctx context.Context) (any, error)
}

type Handler struct {
	Service Service
	Perms   middleware.PermissionStore
	Audit   audit.Recorder
	Jobs    JobRunner
	Metrics *metrics.Collector
}

func NewHandler(service Service, perms middleware.PermissionStore, auditSvc audit.Recorder, jobsSvc JobRunner, collector *metrics.Collector) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditSvc, Jobs: jobsSvc, Metrics: collector}
}

type cycleRequest struct {
	Name        *string `json:"name"`
	StartDate   *string `json:"startDate"`
	EndDate     *string `json:"endDate"`
	Status      *string `json:"status"`
	Description *string `json:"description"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/performance-cycles", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/active", h.handleActive)
		r.Get("/", h.handleList)
		r.Get("/{cycleID}", h.handleGet)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequirePermission(auth.PermCyclesManage, h.Perms))
			r.Post("/", h.handleCreate)
			r.Put("/{cycleID}", h.handleUpdate)
			r.Delete("/{cycleID}", h.handleDelete)
		})
		r.With(middleware.RequirePermission(auth.PermJobsRun, h.Perms)).Post("/close-expired", h.handleCloseExpired)
	})
}

func (h *Handler) handleActive(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	active, err := h.Service.Active(r.Context())
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	if active == nil {
		shared.FailError(w, requestID, cycles.ErrNoActiveCycle)
		return
	}
	api.Success(w, active, requestID)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	page := shared.ParsePagination(r, shared.DefaultPageSize, shared.MaxPageSize)
	status := cycles.Status(strings.TrimSpace(r.URL.Query().Get("status")))
	items, total, err := h.Service.List(r.Context(), status, page.Limit, page.Offset)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	shared.SetTotalCount(w, total)
	api.Success(w, items, requestID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	id, err := shared.PathID(r, "cycleID")
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	cycle, err := h.Service.Get(r.Context(), id)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	api.Success(w, cycle, requestID)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	var payload cycleRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailError(w, requestID, err)
		return
	}

	v := shared.NewValidator()
	v.Required("name", deref(payload.Name), "is required")
	v.Required("startDate", deref(payload.StartDate), "is required")
	v.Required("endDate", deref(payload.EndDate), "is required")
	v.Enum("status", deref(payload.Status), statusNames(), "must be one of active, inactive, completed")
	start := parseDate(v, "startDate", payload.StartDate)
	end := parseDate(v, "endDate", payload.EndDate)
	if v.Reject(w, requestID) {
		return
	}

	created, err := h.Service.Create(r.Context(), cycles.CreateInput{
		Name:        deref(payload.Name),
		StartDate:   *start,
		EndDate:     *end,
		Status:      cycles.Status(strings.ToLower(strings.TrimSpace(deref(payload.Status)))),
		Description: deref(payload.Description),
	})
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	h.Metrics.Event("cycle.created")
	shared.RecordAudit(r, h.Audit, requestID, user.UserID, "cycle.create", "performance_cycle", created.ID, nil, created)
	api.Created(w, created, requestID)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	id, err := shared.PathID(r, "cycleID")
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	var payload cycleRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailError(w, requestID, err)
		return
	}

	v := shared.NewValidator()
	if payload.Status != nil {
		v.Required("status", *payload.Status, "must not be empty")
		v.Enum("status", *payload.Status, statusNames(), "must be one of active, inactive, completed")
	}
	in := cycles.UpdateInput{
		Name:        payload.Name,
		Description: payload.Description,
		StartDate:   parseDate(v, "startDate", payload.StartDate),
		EndDate:     parseDate(v, "endDate", payload.EndDate),
	}
	if v.Reject(w, requestID) {
		return
	}
	if payload.Status != nil {
		status := cycles.Status(strings.ToLower(strings.TrimSpace(*payload.Status)))
		in.Status = &status
	}

	before, err := h.Service.Get(r.Context(), id)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	updated, err := h.Service.Update(r.Context(), id, in)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	shared.RecordAudit(r, h.Audit, requestID, user.UserID, "cycle.update", "performance_cycle", id, before, updated)
	api.Success(w, updated, requestID)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	id, err := shared.PathID(r, "cycleID")
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	if err := h.Service.Delete(r.Context(), id); err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	shared.RecordAudit(r, h.Audit, requestID, user.UserID, "cycle.delete", "performance_cycle", id, nil, nil)
	api.Success(w, map[string]string{"status": "deleted"}, requestID)
}

func (h *Handler) handleCloseExpired(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	result, err := h.Jobs.RunNow(r.Context(), jobs.JobCycleClose, h.Jobs.CloseExpiredCycles)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	shared.RecordAudit(r, h.Audit, requestID, user.UserID, "cycle.close_expired", "performance_cycle", "", nil, result)
	api.Success(w, result, requestID)
}

// parseDate returns nil for an absent field and records an issue for a bad one.
func parseDate(v *shared.Validator, field string, raw *string) *time.Time {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil
	}
	parsed, err := cycles.ParseDate(*raw)
	if err != nil {
		v.Add(field, "must be a valid date in YYYY-MM-DD format")
		return nil
	}
	return &parsed
}

func statusNames() []string {
	names := make([]string, 0, len(cycles.Statuses))
	for _, s := range cycles.Statuses {
		names = append(names, string(s))
	}
	return names
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
