package authhandler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"reviewflow/internal/domain/audit"
	"reviewflow/internal/domain/auth"
	"reviewflow/internal/platform/apperror"
	"reviewflow/internal/platform/metrics"
	"reviewflow/internal/transport/http/api"
	"reviewflow/internal/transport/http/middleware"
	"reviewflow/internal/transport/http/shared"
)

type Service interface {
	Login(ctx context.Context, email, password, mfaCode string) (auth.TokenResult, error)
	Refresh(ctx context.Context, rawToken string) (auth.TokenResult, error)
	Logout(ctx context.Context, user auth.UserContext) error
	SetupMFA(ctx context.Context, user auth.UserContext) (auth.MFASetup, error)
	EnableMFA(ctx context.Context, user auth.UserContext, code string) error
	DisableMFA(ctx context.Context, user auth.UserContext, code string) error
}

type Handler struct {
	Service Service
	Audit   audit.Recorder
	Metrics *metrics.Collector
}

func NewHandler(service Service, auditSvc audit.Recorder, collector *metrics.Collector) *Handler {
	return &Handler{Service: service, Audit: auditSvc, Metrics: collector}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	MFACode  string `json:"mfaCode"`
}

type refreshRequest struct {
	Token string `json:"token"`
}

type mfaCodeRequest struct {
	Code string `json:"code"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.handleLogin)
		r.Post("/refresh", h.handleRefresh)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Post("/logout", h.handleLogout)
			r.Post("/mfa/setup", h.handleMFASetup)
			r.Post("/mfa/enable", h.handleMFAEnable)
			r.Post("/mfa/disable", h.handleMFADisable)
		})
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload loginRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	v := shared.NewValidator()
	v.Required("email", payload.Email, "is required")
	v.Required("password", payload.Password, "is required")
	if v.Reject(w, requestID) {
		return
	}

	result, err := h.Service.Login(r.Context(), strings.ToLower(strings.TrimSpace(payload.Email)), payload.Password, strings.TrimSpace(payload.MFACode))
	if err != nil {
		h.Metrics.Event("auth.login_failed")
		shared.FailError(w, requestID, err)
		return
	}
	h.Metrics.Event("auth.login")
	shared.RecordAudit(r, h.Audit, requestID, result.User.ID, "auth.login", "user", result.User.ID, nil, nil)
	api.Success(w, result, requestID)
}

// handleRefresh takes the token from the body, falling back to the bearer
// header. Expired access tokens are accepted while their session is live.
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload refreshRequest
	if r.ContentLength != 0 {
		if err := shared.DecodeJSON(r, &payload); err != nil {
			shared.FailError(w, requestID, err)
			return
		}
	}
	token := strings.TrimSpace(payload.Token)
	if token == "" {
		scheme, value, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			token = strings.TrimSpace(value)
		}
	}
	if token == "" {
		shared.FailError(w, requestID, apperror.Unauthorized("authentication required"))
		return
	}

	result, err := h.Service.Refresh(r.Context(), token)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	api.Success(w, result, requestID)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	if err := h.Service.Logout(r.Context(), user); err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	shared.RecordAudit(r, h.Audit, requestID, user.UserID, "auth.logout", "user", user.UserID, nil, nil)
	api.Success(w, map[string]string{"status": "logged_out"}, requestID)
}

func (h *Handler) handleMFASetup(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	setup, err := h.Service.SetupMFA(r.Context(), user)
	if err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	api.Success(w, setup, requestID)
}

func (h *Handler) handleMFAEnable(w http.ResponseWriter, r *http.Request) {
	h.toggleMFA(w, r, true)
}

func (h *Handler) handleMFADisable(w http.ResponseWriter, r *http.Request) {
	h.toggleMFA(w, r, false)
}

func (h *Handler) toggleMFA(w http.ResponseWriter, r *http.Request, enable bool) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	var payload mfaCodeRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	v := shared.NewValidator()
	v.Required("code", payload.Code, "is required")
	if v.Reject(w, requestID) {
		return
	}

	action, status := "auth.mfa.enable", "enabled"
	toggle := h.Service.EnableMFA
	if !enable {
		action, status = "auth.mfa.disable", "disabled"
		toggle = h.Service.DisableMFA
	}
	if err := toggle(r.Context(), user, strings.TrimSpace(payload.Code)); err != nil {
		shared.FailError(w, requestID, err)
		return
	}
	shared.RecordAudit(r, h.Audit, requestID, user.UserID, action, "user", user.UserID, nil, nil)
	api.Success(w, map[string]string{"status": status}, requestID)
}
