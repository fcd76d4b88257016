package authhandler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"reviewflow/internal/domain/auth"
	"reviewflow/internal/platform/metrics"
	"reviewflow/internal/transport/http/middleware"
)

type fakeService struct {
	refreshed string
	loggedOut auth.UserContext
	enabled   string
}

func (f *fakeService) Login(_ context.Context, email, password, _ string) (auth.TokenResult, error) {
	if email != "mentee@example.com" || password != "password123" {
		return auth.TokenResult{}, auth.ErrInvalidCredentials
	}
	return auth.TokenResult{Token: "tok", TokenType: "bearer", ExpiresIn: 1800, User: &auth.SessionUser{ID: "u1", Email: email}}, nil
}

func (f *fakeService) Refresh(_ context.Context, rawToken string) (auth.TokenResult, error) {
	f.refreshed = rawToken
	return auth.TokenResult{Token: "tok2", TokenType: "bearer"}, nil
}

func (f *fakeService) Logout(_ context.Context, user auth.UserContext) error {
	f.loggedOut = user
	return nil
}

func (f *fakeService) SetupMFA(context.Context, auth.UserContext) (auth.MFASetup, error) {
	return auth.MFASetup{}, auth.ErrMFAUnavailable
}

func (f *fakeService) EnableMFA(_ context.Context, _ auth.UserContext, code string) error {
	f.enabled = code
	return nil
}

func (f *fakeService) DisableMFA(context.Context, auth.UserContext, string) error {
	return auth.ErrMFACodeRejected
}

func newRouter(svc Service, user *auth.UserContext) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if user != nil {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(middleware.WithUser(req.Context(), *user)))
			})
		})
	}
	NewHandler(svc, nil, metrics.New()).RegisterRoutes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLogin(t *testing.T) {
	router := newRouter(&fakeService{}, nil)
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "ok", body: `{"email":" Mentee@Example.com ","password":"password123"}`, status: http.StatusOK},
		{name: "wrong password", body: `{"email":"mentee@example.com","password":"nope"}`, status: http.StatusUnauthorized},
		{name: "missing fields", body: `{}`, status: http.StatusBadRequest},
		{name: "malformed", body: `{`, status: http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/auth/login", tc.body)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
		})
	}

	rec := do(t, router, http.MethodPost, "/auth/login", `{"email":"mentee@example.com","password":"password123"}`)
	var env struct {
		Success bool             `json:"success"`
		Data    auth.TokenResult `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !env.Success || env.Data.Token != "tok" || env.Data.TokenType != "bearer" {
		t.Fatalf("unexpected body: %+v", env)
	}
}

func TestRefreshFallsBackToBearerHeader(t *testing.T) {
	svc := &fakeService{}
	router := newRouter(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.Header.Set("Authorization", "Bearer expired-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.refreshed != "expired-token" {
		t.Fatalf("expected header token to be used, got %q", svc.refreshed)
	}

	rec = do(t, router, http.MethodPost, "/auth/refresh", `{"token":"body-token"}`)
	if rec.Code != http.StatusOK || svc.refreshed != "body-token" {
		t.Fatalf("expected body token, got %d %q", rec.Code, svc.refreshed)
	}

	req = httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestLogoutRequiresAuth(t *testing.T) {
	rec := do(t, newRouter(&fakeService{}, nil), http.MethodPost, "/auth/logout", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	svc := &fakeService{}
	user := auth.UserContext{UserID: "u1", RoleName: auth.RoleEmployee, SessionID: "s1"}
	rec = do(t, newRouter(svc, &user), http.MethodPost, "/auth/logout", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.loggedOut.SessionID != "s1" {
		t.Fatalf("expected session to be revoked, got %+v", svc.loggedOut)
	}
}

func TestMFAEndpointsMapErrors(t *testing.T) {
	svc := &fakeService{}
	user := auth.UserContext{UserID: "u1", RoleName: auth.RoleEmployee}
	router := newRouter(svc, &user)

	if rec := do(t, router, http.MethodPost, "/auth/mfa/setup", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 when mfa unavailable, got %d", rec.Code)
	}
	if rec := do(t, router, http.MethodPost, "/auth/mfa/enable", `{"code":" 123456 "}`); rec.Code != http.StatusOK || svc.enabled != "123456" {
		t.Fatalf("expected enable to pass trimmed code, got %d %q", rec.Code, svc.enabled)
	}
	if rec := do(t, router, http.MethodPost, "/auth/mfa/disable", `{"code":"000000"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for rejected code, got %d", rec.Code)
	}
	if rec := do(t, router, http.MethodPost, "/auth/mfa/enable", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing code, got %d", rec.Code)
	}
}
