package audithandler

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"reviewflow/internal/domain/audit"
	"reviewflow/internal/domain/auth"
	"reviewflow/internal/platform/apperror"
	"reviewflow/internal/transport/http/api"
	"reviewflow/internal/transport/http/middleware"
	"reviewflow/internal/transport/http/shared"
)

type Service interface {
	Count(ctx context.Context, filter audit.Filter) (int, error)
	List(ctx context.Context, filter audit.Filter, includeDetails bool, limit, offset int) ([]audit.Event, error)
	ListExport(ctx context.Context, filter audit.Filter) ([]audit.Event, error)
}

type Handler struct {
	Service Service
	Perms   middleware.PermissionStore
}

func NewHandler(service Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/audit", func(r chi.Router) {
		r.Use(middleware.RequirePermission(auth.PermAuditRead, h.Perms))
		r.Get("/", h.handleList)
		r.Get("/export", h.handleExport)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	filter, err := parseFilter(r)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	page := shared.ParsePagination(r, shared.DefaultPageSize, shared.MaxPageSize)
	includeDetails := r.URL.Query().Get("includeDetails") == "true"

	total, err := h.Service.Count(r.Context(), filter)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	events, err := h.Service.List(r.Context(), filter, includeDetails, page.Limit, page.Offset)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	shared.SetTotalCount(w, total)
	api.Success(w, events, requestID)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	filter, err := parseFilter(r)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	events, err := h.Service.ListExport(r.Context(), filter)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	var buf bytes.Buffer
	if err := audit.WriteCSV(&buf, events); err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=audit-events.csv")
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Warn("audit export write failed", "requestId", requestID, "err", err)
	}
}

func parseFilter(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	actor := strings.TrimSpace(q.Get("actorUserId"))
	if !shared.ValidID(actor) {
		return audit.Filter{}, apperror.Validation("actorUserId must be a valid id")
	}
	return audit.Filter{
		Action:     strings.TrimSpace(q.Get("action")),
		EntityType: strings.TrimSpace(q.Get("entityType")),
		ActorUser:  actor,
	}, nil
}
