package usershandler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"reviewflow/internal/domain/audit"
	"reviewflow/internal/domain/auth"
	"reviewflow/internal/domain/users"
	"reviewflow/internal/platform/metrics"
	"reviewflow/internal/transport/http/api"
	"reviewflow/internal/transport/http/middleware"
	"reviewflow/internal/transport/http/shared"
)

type Service interface {
	Create(ctx context.Context, actor auth.UserContext, in users.CreateInput) (users.User, error)
	Get(ctx context.Context, actor auth.UserContext, id string) (users.User, error)
	List(ctx context.Context, filter users.Filter, limit, offset int) ([]users.User, int, error)
	Update(ctx context.Context, actor auth.UserContext, id string, in users.UpdateInput) (users.User, error)
	Delete(ctx context.Context, actor auth.UserContext, id string) error
	AvailableReviewers(ctx context.Context, actor auth.UserContext, department string) ([]users.User, error)
	Me(ctx context.Context, actor auth.UserContext) (users.User, error)
	UpdateMe(ctx context.Context, actor auth.UserContext, in users.UpdateInput) (users.User, error)
}

type Handler struct {
	Service Service
	Perms   middleware.PermissionStore
	Audit   audit.Recorder
	Metrics *metrics.Collector
}

func NewHandler(service Service, perms middleware.PermissionStore, auditSvc audit.Recorder, collector *metrics.Collector) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditSvc, Metrics: collector}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/me", h.handleMe)
		r.Put("/me", h.handleUpdateMe)
		r.With(middleware.RequirePermission(auth.PermUsersReadAll, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermUsersWrite, h.Perms)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermReviewersRead, h.Perms)).Get("/available-reviewers", h.handleAvailableReviewers)
		r.Get("/{userID}", h.handleGet)
		r.Put("/{userID}", h.handleUpdate)
		r.With(middleware.RequirePermission(auth.PermUsersDelete, h.Perms)).Delete("/{userID}", h.handleDelete)
	})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	me, err := h.Service.Me(r.Context(), user)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	api.Success(w, me, requestID)
}

func (h *Handler) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	var payload users.UpdateInput
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	updated, err := h.Service.UpdateMe(r.Context(), user, payload)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	shared.RecordAudit(r, h.Audit, requestID, user.UserID, "user.update_self", "user", user.UserID, nil, updated)
	api.Success(w, updated, requestID)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	page := shared.ParsePagination(r, shared.DefaultPageSize, shared.MaxPageSize)
	filter := users.Filter{
		Role:       r.URL.Query().Get("role"),
		Department: r.URL.Query().Get("department"),
	}
	items, total, err := h.Service.List(r.Context(), filter, page.Limit, page.Offset)
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
	var payload users.CreateInput
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	created, err := h.Service.Create(r.Context(), user, payload)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	h.Metrics.Event("user.created")
	shared.RecordAudit(r, h.Audit, requestID, user.UserID, "user.create", "user", created.ID, nil, created)
	api.Created(w, created, requestID)
}

func (h *Handler) handleAvailableReviewers(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	reviewers, err := h.Service.AvailableReviewers(r.Context(), user, r.URL.Query().Get("department"))
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	api.Success(w, reviewers, requestID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	id, err := shared.PathID(r, "userID")
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	found, err := h.Service.Get(r.Context(), user, id)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	api.Success(w, found, requestID)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	id, err := shared.PathID(r, "userID")
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	var payload users.UpdateInput
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	updated, err := h.Service.Update(r.Context(), user, id, payload)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	shared.RecordAudit(r, h.Audit, requestID, user.UserID, "user.update", "user", id, nil, updated)
	api.Success(w, updated, requestID)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	id, err := shared.PathID(r, "userID")
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	if err := h.Service.Delete(r.Context(), user, id); err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	h.Metrics.Event("user.deleted")
	shared.RecordAudit(r, h.Audit, requestID, user.UserID, "user.delete", "user", id, nil, nil)
	api.Success(w, map[string]string{"status": "deleted"}, requestID)
}
