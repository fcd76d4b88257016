package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"reviewflow/internal/app/server"
	"reviewflow/internal/domain/auth"
	"reviewflow/internal/platform/config"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error any             `json:"error"`
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	return config.Config{
		DatabaseURL:        dbURL,
		JWTSecret:          "test-secret",
		AccessTokenTTL:     15 * time.Minute,
		SessionTTL:         time.Hour,
		DataEncryptionKey:  "0123456789abcdef0123456789abcdef",
		Environment:        "test",
		SeedAdminEmail:     "admin@test.local",
		SeedAdminPassword:  "ChangeMe123!",
		EmailFrom:          "no-reply@test.local",
		RunMigrations:      true,
		RunSeed:            true,
		MaxBodyBytes:       1048576,
		RateLimitPerMinute: 1000,
		MetricsEnabled:     true,
	}
}

func TestReviewCycleJourney(t *testing.T) {
	cfg := testConfig(t)
	app, err := server.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	defer app.Close()

	ts := httptest.NewServer(app.Router)
	defer ts.Close()
	client := ts.Client()
	suffix := time.Now().UnixNano()

	admin := login(t, client, ts.URL, cfg.SeedAdminEmail, cfg.SeedAdminPassword)

	mentorEmail := fmt.Sprintf("mentor-%d@example.com", suffix)
	mentorID := createUser(t, client, ts.URL, admin, mentorEmail, auth.RoleMentor)
	menteeEmail := fmt.Sprintf("mentee-%d@example.com", suffix)
	menteeID := createUser(t, client, ts.URL, admin, menteeEmail, auth.RoleEmployee)

	today := time.Now().UTC()
	var cycle struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	call(t, client, http.MethodPost, ts.URL+"/api/v1/performance-cycles", admin, map[string]any{
		"name":      fmt.Sprintf("Journey %d", suffix),
		"startDate": today.AddDate(0, 0, -1).Format("2006-01-02"),
		"endDate":   today.AddDate(0, 1, 0).Format("2006-01-02"),
		"status":    "active",
	}, http.StatusCreated, &cycle)
	if cycle.Status != "active" {
		t.Fatalf("expected active cycle, got %q", cycle.Status)
	}

	mentee := login(t, client, ts.URL, menteeEmail, "Password123!")
	mentor := login(t, client, ts.URL, mentorEmail, "Password123!")

	var selection struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	call(t, client, http.MethodPost, ts.URL+"/api/v1/reviewer-selections", mentee, map[string]any{
		"performanceCycleId": cycle.ID,
		"reviewerIds":        []string{mentorID},
	}, http.StatusCreated, &selection)
	if selection.Status != "pending" {
		t.Fatalf("expected pending selection, got %q", selection.Status)
	}

	call(t, client, http.MethodPost, ts.URL+"/api/v1/reviewer-selections", mentee, map[string]any{
		"performanceCycleId": cycle.ID,
		"reviewerIds":        []string{mentorID},
	}, http.StatusBadRequest, nil)

	call(t, client, http.MethodPost, ts.URL+"/api/v1/reviewer-selections/mentor/approvals/"+selection.ID+"/send-back", mentor, map[string]any{
		"feedback":        "add a peer from another team",
		"requiredChanges": []string{"add reviewer"},
	}, http.StatusOK, &selection)
	if selection.Status != "sent_back" {
		t.Fatalf("expected sent_back, got %q", selection.Status)
	}

	call(t, client, http.MethodPut, ts.URL+"/api/v1/reviewer-selections/"+selection.ID, mentee, map[string]any{
		"reviewerIds": []string{mentorID},
		"comments":    "kept my mentor",
	}, http.StatusOK, &selection)
	if selection.Status != "pending" {
		t.Fatalf("expected resubmitted selection to be pending, got %q", selection.Status)
	}

	call(t, client, http.MethodPost, ts.URL+"/api/v1/reviewer-selections/mentor/approvals/"+selection.ID+"/approve", mentor, nil, http.StatusOK, &selection)
	if selection.Status != "approved" {
		t.Fatalf("expected approved, got %q", selection.Status)
	}

	var assignments []struct {
		SelectionID    string `json:"selectionId"`
		FeedbackStatus string `json:"feedbackStatus"`
	}
	call(t, client, http.MethodGet, ts.URL+"/api/v1/feedback-forms/reviewer/assignments", mentor, nil, http.StatusOK, &assignments)
	found := false
	for _, a := range assignments {
		if a.SelectionID == selection.ID {
			found = a.FeedbackStatus == "not_started"
		}
	}
	if !found {
		t.Fatalf("expected a not_started assignment for %s, got %+v", selection.ID, assignments)
	}

	var form struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	call(t, client, http.MethodPost, ts.URL+"/api/v1/feedback-forms/reviewer/feedback-forms", mentor, map[string]any{
		"employeeId":         menteeID,
		"performanceCycleId": cycle.ID,
		"strengths":          "clear written design docs",
		"improvements":       "share progress earlier",
		"overallRating":      "tracking_expected",
	}, http.StatusCreated, &form)
	if form.Status != "draft" {
		t.Fatalf("expected draft, got %q", form.Status)
	}

	var received []json.RawMessage
	call(t, client, http.MethodGet, ts.URL+"/api/v1/feedback-forms/employee/feedback-forms?performanceCycleId="+cycle.ID, mentee, nil, http.StatusOK, &received)
	if len(received) != 0 {
		t.Fatalf("drafts must stay hidden from the employee, got %d", len(received))
	}

	call(t, client, http.MethodPut, ts.URL+"/api/v1/feedback-forms/reviewer/feedback-forms/"+form.ID, mentor, map[string]any{"status": "submitted"}, http.StatusOK, &form)
	if form.Status != "submitted" {
		t.Fatalf("expected submitted, got %q", form.Status)
	}
	call(t, client, http.MethodPut, ts.URL+"/api/v1/feedback-forms/reviewer/feedback-forms/"+form.ID, mentor, map[string]any{"strengths": "changed"}, http.StatusBadRequest, nil)

	call(t, client, http.MethodGet, ts.URL+"/api/v1/feedback-forms/employee/feedback-forms?performanceCycleId="+cycle.ID, mentee, nil, http.StatusOK, &received)
	if len(received) != 1 {
		t.Fatalf("expected one submitted form, got %d", len(received))
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/feedback-forms/employee/report.pdf?performanceCycleId="+cycle.ID, nil)
	req.Header.Set("Authorization", "Bearer "+mentee)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("report request failed: %v", err)
	}
	pdf, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Fatalf("expected pdf report, got %d", resp.StatusCode)
	}

	var events []struct {
		Action string `json:"action"`
	}
	call(t, client, http.MethodGet, ts.URL+"/api/v1/audit?entityType=reviewer_selection&actorUserId="+mentorID, admin, nil, http.StatusOK, &events)
	if len(events) < 2 {
		t.Fatalf("expected send-back and approve audit events, got %+v", events)
	}
}

func TestEmployeeCannotReachAdminSurfaces(t *testing.T) {
	cfg := testConfig(t)
	app, err := server.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	defer app.Close()

	ts := httptest.NewServer(app.Router)
	defer ts.Close()
	client := ts.Client()

	admin := login(t, client, ts.URL, cfg.SeedAdminEmail, cfg.SeedAdminPassword)
	email := fmt.Sprintf("emp-%d@example.com", time.Now().UnixNano())
	createUser(t, client, ts.URL, admin, email, auth.RoleEmployee)
	employee := login(t, client, ts.URL, email, "Password123!")

	for _, path := range []string{"/api/v1/users", "/api/v1/audit", "/api/v1/feedback-forms/admin/feedback-forms", "/api/v1/notifications/admin/notifications"} {
		call(t, client, http.MethodGet, ts.URL+path, employee, nil, http.StatusForbidden, nil)
	}
	call(t, client, http.MethodPost, ts.URL+"/api/v1/performance-cycles", employee, map[string]any{"name": "x"}, http.StatusForbidden, nil)

	call(t, client, http.MethodPost, ts.URL+"/api/v1/auth/logout", employee, nil, http.StatusOK, nil)
	call(t, client, http.MethodGet, ts.URL+"/api/v1/users/me", employee, nil, http.StatusUnauthorized, nil)
}

func TestDirectoryChangesApplyToLiveTokens(t *testing.T) {
	cfg := testConfig(t)
	app, err := server.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	defer app.Close()

	ts := httptest.NewServer(app.Router)
	defer ts.Close()
	client := ts.Client()
	suffix := time.Now().UnixNano()

	admin := login(t, client, ts.URL, cfg.SeedAdminEmail, cfg.SeedAdminPassword)
	leadEmail := fmt.Sprintf("lead-%d@example.com", suffix)
	leadID := createUser(t, client, ts.URL, admin, leadEmail, auth.RoleHRLead)
	empEmail := fmt.Sprintf("emp-live-%d@example.com", suffix)
	empID := createUser(t, client, ts.URL, admin, empEmail, auth.RoleEmployee)

	lead := login(t, client, ts.URL, leadEmail, "Password123!")
	call(t, client, http.MethodPut, ts.URL+"/api/v1/users/"+leadID, lead, map[string]any{"role": auth.RoleSystemAdmin}, http.StatusForbidden, nil)
	call(t, client, http.MethodPut, ts.URL+"/api/v1/users/"+empID, lead, map[string]any{"role": auth.RoleSystemAdmin}, http.StatusForbidden, nil)

	call(t, client, http.MethodGet, ts.URL+"/api/v1/users", lead, nil, http.StatusOK, nil)
	call(t, client, http.MethodPut, ts.URL+"/api/v1/users/"+leadID, admin, map[string]any{"role": auth.RoleEmployee}, http.StatusOK, nil)
	call(t, client, http.MethodGet, ts.URL+"/api/v1/users", lead, nil, http.StatusForbidden, nil)

	employee := login(t, client, ts.URL, empEmail, "Password123!")
	call(t, client, http.MethodGet, ts.URL+"/api/v1/users/me", employee, nil, http.StatusOK, nil)
	call(t, client, http.MethodPut, ts.URL+"/api/v1/users/"+empID, admin, map[string]any{"isActive": false}, http.StatusOK, nil)
	call(t, client, http.MethodGet, ts.URL+"/api/v1/users/me", employee, nil, http.StatusUnauthorized, nil)
}

func login(t *testing.T, client *http.Client, baseURL, email, password string) string {
	t.Helper()
	var result struct {
		Token string `json:"token"`
	}
	call(t, client, http.MethodPost, baseURL+"/api/v1/auth/login", "", map[string]string{"email": email, "password": password}, http.StatusOK, &result)
	if result.Token == "" {
		t.Fatal("expected token")
	}
	return result.Token
}

func createUser(t *testing.T, client *http.Client, baseURL, token, email, role string) string {
	t.Helper()
	var user struct {
		ID string `json:"id"`
	}
	call(t, client, http.MethodPost, baseURL+"/api/v1/users", token, map[string]any{
		"email":      email,
		"name":       strings.Split(email, "@")[0],
		"role":       role,
		"department": "Engineering",
		"password":   "Password123!",
	}, http.StatusCreated, &user)
	return user.ID
}

func call(t *testing.T, client *http.Client, method, url, token string, body any, wantStatus int, out any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: expected %d, got %d: %s", method, url, wantStatus, resp.StatusCode, raw)
	}
	if out == nil {
		return
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}
