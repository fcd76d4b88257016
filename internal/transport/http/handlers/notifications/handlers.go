package notificationshandler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"reviewflow/internal/domain/audit"
	"reviewflow/internal/domain/auth"
	"reviewflow/internal/domain/notifications"
	"reviewflow/internal/platform/apperror"
	"reviewflow/internal/platform/metrics"
	"reviewflow/internal/transport/http/api"
	"reviewflow/internal/transport/http/middleware"
	"reviewflow/internal/transport/http/shared"
)

type Service interface {
	List(ctx context.Context, actor auth.UserContext, unreadOnly bool, limit, offset int) ([]notifications.Notification, int, error)
	UnreadCount(ctx context.Context, actor auth.UserContext) (int, error)
	MarkRead(ctx context.Context, actor auth.UserContext, id string) (notifications.Notification, error)
	MarkAllRead(ctx context.Context, actor auth.UserContext) (int, error)
	Create(ctx context.Context, userID, title, message, ntype string) (notifications.Notification, error)
	Update(ctx context.Context, id string, in notifications.UpdateInput) (notifications.Notification, error)
	Delete(ctx context.Context, id string) error
	ListAll(ctx context.Context, limit, offset int) ([]notifications.Notification, int, error)
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

type createRequest struct {
	UserID  string `json:"userId"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

type updateRequest struct {
	Title   *string `json:"title"`
	Message *string `json:"message"`
	Type    *string `json:"type"`
	IsRead  *bool   `json:"isRead"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/", h.handleList)
		r.Get("/unread-count", h.handleUnreadCount)
		r.Put("/read-all", h.handleMarkAllRead)
		r.Put("/{notificationID}/read", h.handleMarkRead)

		r.Route("/admin/notifications", func(r chi.Router) {
			r.Use(middleware.RequirePermission(auth.PermNotificationsManage, h.Perms))
			r.Get("/", h.handleListAll)
			r.Post("/", h.handleCreate)
			r.Put("/{notificationID}", h.handleUpdate)
			r.Delete("/{notificationID}", h.handleDelete)
		})
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	unreadOnly := false
	if raw := strings.TrimSpace(r.URL.Query().Get("unreadOnly")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			shared.FailError(w, requestID, apperror.Validation("unreadOnly must be true or false"))
			return
		}
		unreadOnly = parsed
	}
	page := shared.ParsePagination(r, shared.DefaultPageSize, shared.MaxPageSize)
	items, total, err := h.Service.List(r.Context(), user, unreadOnly, page.Limit, page.Offset)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	shared.SetTotalCount(w, total)
	api.Success(w, items, requestID)
}

func (h *Handler) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	count, err := h.Service.UnreadCount(r.Context(), user)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	api.Success(w, map[string]int{"count": count}, requestID)
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	id, err := shared.PathID(r, "notificationID")
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	n, err := h.Service.MarkRead(r.Context(), user, id)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	api.Success(w, n, requestID)
}

func (h *Handler) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	updated, err := h.Service.MarkAllRead(r.Context(), user)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	api.Success(w, map[string]int{"updated": updated}, requestID)
}

func (h *Handler) handleListAll(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	page := shared.ParsePagination(r, shared.DefaultPageSize, shared.MaxPageSize)
	items, total, err := h.Service.ListAll(r.Context(), page.Limit, page.Offset)
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
	v.Required("userId", payload.UserID, "is required")
	if !shared.ValidID(strings.TrimSpace(payload.UserID)) {
		v.Add("userId", "must be a valid id")
	}
	v.Required("title", payload.Title, "is required")
	v.Required("message", payload.Message, "is required")
	if v.Reject(w, requestID) {
		return
	}

	created, err := h.Service.Create(r.Context(), payload.UserID, payload.Title, payload.Message, payload.Type)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	h.Metrics.Event("notification.created")
	shared.RecordAudit(r, h.Audit, requestID, user.UserID, "notification.create", "notification", created.ID, nil, created)
	api.Created(w, created, requestID)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	id, err := shared.PathID(r, "notificationID")
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	var payload updateRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	updated, err := h.Service.Update(r.Context(), id, notifications.UpdateInput{
		Title:   payload.Title,
		Message: payload.Message,
		Type:    payload.Type,
		IsRead:  payload.IsRead,
	})
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	shared.RecordAudit(r, h.Audit, requestID, user.UserID, "notification.update", "notification", id, nil, updated)
	api.Success(w, updated, requestID)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	id, err := shared.PathID(r, "notificationID")
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	if err := h.Service.Delete(r.Context(), id); err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	shared.RecordAudit(r, h.Audit, requestID, user.UserID, "notification.delete", "notification", id, nil, nil)
	api.Success(w, map[string]string{"status": "deleted"}, requestID)
}
