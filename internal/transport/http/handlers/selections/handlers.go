package selectionshandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"reviewflow/internal/domain/audit"
	"reviewflow/internal/domain/auth"
	"reviewflow/internal/domain/selections"
	"reviewflow/internal/platform/apperror"
	"reviewflow/internal/platform/metrics"
	"reviewflow/internal/transport/http/api"
	"reviewflow/internal/transport/http/middleware"
	"reviewflow/internal/transport/http/shared"
)

const createEndpoint = "reviewer-selections.create"

var errInvalidCycleFilter = apperror.Validation("performanceCycleId must be a valid id")

type Service interface {
	Create(ctx context.Context, actor auth.UserContext, in selections.CreateInput) (selections.View, error)
	Update(ctx context.Context, actor auth.UserContext, id string, in selections.UpdateInput) (selections.View, error)
	Approve(ctx context.Context, actor auth.UserContext, id, comments string) (selections.View, error)
	SendBack(ctx context.Context, actor auth.UserContext, id, feedback string, requiredChanges []string) (selections.View, error)
	Delete(ctx context.Context, actor auth.UserContext, id string) error
	Mine(ctx context.Context, actor auth.UserContext, cycleID string) (selections.View, error)
	PendingApprovals(ctx context.Context, limit, offset int) ([]selections.View, int, error)
	Approvals(ctx context.Context, status selections.Status, limit, offset int) ([]selections.View, int, error)
	ApprovalDetail(ctx context.Context, id string) (selections.View, error)
}

// IdempotencyKeys replays the stored response of a retried create.
type IdempotencyKeys interface {
	Check(ctx context.Context, userID, endpoint, key, requestHash string) (json.RawMessage, bool, error)
	Save(ctx context.Context, userID, endpoint, key, requestHash string, response json.RawMessage) error
}

type Handler struct {
	Service     Service
	Perms       middleware.PermissionStore
	Audit       audit.Recorder
	Idempotency IdempotencyKeys
	Metrics     *metrics.Collector
}

func NewHandler(service Service, perms middleware.PermissionStore, auditSvc audit.Recorder, idempotency IdempotencyKeys, collector *metrics.Collector) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditSvc, Idempotency: idempotency, Metrics: collector}
}

type createRequest struct {
	PerformanceCycleID string   `json:"performanceCycleId"`
	ReviewerIDs        []string `json:"reviewerIds"`
	Comments           string   `json:"comments"`
}

type updateRequest struct {
	ReviewerIDs []string `json:"reviewerIds"`
	Comments    *string  `json:"comments"`
}

type approveRequest struct {
	Comments string `json:"comments"`
}

type sendBackRequest struct {
	Feedback        string   `json:"feedback"`
	RequiredChanges []string `json:"requiredChanges"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reviewer-selections", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequirePermission(auth.PermSelectionsSubmit, h.Perms))
			r.Post("/", h.handleCreate)
			r.Get("/my-selection", h.handleMine)
			r.Put("/{selectionID}", h.handleUpdate)
			r.Delete("/{selectionID}", h.handleDelete)
		})
		r.Route("/mentor/approvals", func(r chi.Router) {
			r.Use(middleware.RequirePermission(auth.PermSelectionsApprove, h.Perms))
			r.Get("/pending", h.handlePending)
			r.Get("/", h.handleApprovals)
			r.Get("/{selectionID}", h.handleApprovalDetail)
			r.Post("/{selectionID}/approve", h.handleApprove)
			r.Post("/{selectionID}/send-back", h.handleSendBack)
		})
	})
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
	if !shared.ValidID(strings.TrimSpace(payload.PerformanceCycleID)) {
		v.Add("performanceCycleId", "must be a valid id")
	}
	for _, id := range payload.ReviewerIDs {
		if !shared.ValidID(strings.TrimSpace(id)) || strings.TrimSpace(id) == "" {
			v.Add("reviewerIds", "must contain valid ids")
			break
		}
	}
	if v.Reject(w, requestID) {
		return
	}

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	var requestHash string
	if idempotencyKey != "" && h.Idempotency != nil {
		canonical, _ := json.Marshal(payload)
		requestHash = middleware.RequestHash(canonical)
		stored, found, err := h.Idempotency.Check(r.Context(), user.UserID, createEndpoint, idempotencyKey, requestHash)
		if errors.Is(err, middleware.ErrIdempotencyConflict) || errors.Is(err, middleware.ErrIdempotencyKey) {
			shared.FailError(w, requestID, err)
			return
		}
		if err != nil {
			slog.Warn("idempotency check failed", "requestId", requestID, "err", err)
		}
		if found {
			api.Created(w, stored, requestID)
			return
		}
	}

	created, err := h.Service.Create(r.Context(), user, selections.CreateInput{
		PerformanceCycleID: strings.TrimSpace(payload.PerformanceCycleID),
		ReviewerIDs:        trimAll(payload.ReviewerIDs),
		Comments:           payload.Comments,
	})
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}

	if idempotencyKey != "" && h.Idempotency != nil {
		encoded, err := json.Marshal(created)
		if err != nil {
			slog.Warn("idempotency response marshal failed", "requestId", requestID, "err", err)
		} else if err := h.Idempotency.Save(r.Context(), user.UserID, createEndpoint, idempotencyKey, requestHash, encoded); err != nil {
			slog.Warn("idempotency save failed", "requestId", requestID, "err", err)
		}
	}
	h.Metrics.Event("selection.submitted")
	shared.RecordAudit(r, h.Audit, requestID, user.UserID, "selection.create", "reviewer_selection", created.ID, nil, created.Selection)
	api.Created(w, created, requestID)
}

func (h *Handler) handleMine(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	cycleID := strings.TrimSpace(r.URL.Query().Get("performanceCycleId"))
	if !shared.ValidID(cycleID) {
		shared.FailError(w, requestID, errInvalidCycleFilter)
		return
	}
	mine, err := h.Service.Mine(r.Context(), user, cycleID)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	api.Success(w, mine, requestID)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	id, err := shared.PathID(r, "selectionID")
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	var payload updateRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	in := selections.UpdateInput{Comments: payload.Comments}
	if payload.ReviewerIDs != nil {
		in.ReviewerIDs = trimAll(payload.ReviewerIDs)
	}
	updated, err := h.Service.Update(r.Context(), user, id, in)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	h.Metrics.Event("selection.resubmitted")
	shared.RecordAudit(r, h.Audit, requestID, user.UserID, "selection.update", "reviewer_selection", id, nil, updated.Selection)
	api.Success(w, updated, requestID)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	id, err := shared.PathID(r, "selectionID")
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	if err := h.Service.Delete(r.Context(), user, id); err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	shared.RecordAudit(r, h.Audit, requestID, user.UserID, "selection.delete", "reviewer_selection", id, nil, nil)
	api.Success(w, map[string]string{"status": "deleted"}, requestID)
}

func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	page := shared.ParsePagination(r, shared.DefaultPageSize, shared.MaxPageSize)
	items, total, err := h.Service.PendingApprovals(r.Context(), page.Limit, page.Offset)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	shared.SetTotalCount(w, total)
	api.Success(w, items, requestID)
}

func (h *Handler) handleApprovals(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	page := shared.ParsePagination(r, shared.DefaultPageSize, shared.MaxPageSize)
	status := selections.Status(strings.TrimSpace(r.URL.Query().Get("status")))
	items, total, err := h.Service.Approvals(r.Context(), status, page.Limit, page.Offset)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	shared.SetTotalCount(w, total)
	api.Success(w, items, requestID)
}

func (h *Handler) handleApprovalDetail(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	id, err := shared.PathID(r, "selectionID")
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	detail, err := h.Service.ApprovalDetail(r.Context(), id)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	api.Success(w, detail, requestID)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	id, err := shared.PathID(r, "selectionID")
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	var payload approveRequest
	if r.ContentLength != 0 {
		if err := shared.DecodeJSON(r, &payload); err != nil {
			shared.FailError(w, requestID, err)
			return
		}
	}
	approved, err := h.Service.Approve(r.Context(), user, id, payload.Comments)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	h.Metrics.Event("selection.approved")
	shared.RecordAudit(r, h.Audit, requestID, user.UserID, "selection.approve", "reviewer_selection", id, nil, approved.Selection)
	api.Success(w, approved, requestID)
}

func (h *Handler) handleSendBack(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	id, err := shared.PathID(r, "selectionID")
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	var payload sendBackRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	sentBack, err := h.Service.SendBack(r.Context(), user, id, payload.Feedback, payload.RequiredChanges)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	h.Metrics.Event("selection.sent_back")
	shared.RecordAudit(r, h.Audit, requestID, user.UserID, "selection.send_back", "reviewer_selection", id, nil, sentBack.Selection)
	api.Success(w, sentBack, requestID)
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		out = append(out, strings.TrimSpace(value))
	}
	return out
}
