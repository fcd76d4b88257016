package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"reviewflow/internal/transport/http/api"
	"reviewflow/internal/transport/http/shared"
)

type rateKeyFunc func(r *http.Request) string

// windowCounter is a fixed-window counter per key. Expired windows are
// swept at most once per window so idle clients do not accumulate.
type windowCounter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	key       rateKeyFunc
	counts    map[string]*rateWindow
	lastSweep time.Time
	now       func() time.Time
}

type rateWindow struct {
	count int
	reset time.Time
}

func newWindowCounter(limit int, window time.Duration, key rateKeyFunc) *windowCounter {
	return &windowCounter{
		limit:  limit,
		window: window,
		key:    key,
		counts: map[string]*rateWindow{},
		now:    time.Now,
	}
}

// RateLimit throttles every request per signed-in user, or per client IP
// for anonymous callers.
func RateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	wc := newWindowCounter(limit, window, actorOrIPKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if wc.allow(w, r) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// SensitiveMutationRateLimit adds tighter limits on credential endpoints
// (per IP and per submitted email) and on workflow decisions (per actor).
func SensitiveMutationRateLimit(baseLimit int, window time.Duration) func(http.Handler) http.Handler {
	credentialLimit := max(baseLimit/4, 1)
	byIP := newWindowCounter(credentialLimit, window, clientIPKey)
	byEmail := newWindowCounter(credentialLimit, window, emailOrIPKey)
	byActor := newWindowCounter(max(baseLimit/2, 1), window, actorOrIPKey)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch sensitiveRateScope(r) {
			case scopeCredentials:
				if !byIP.allow(w, r) || !byEmail.allow(w, r) {
					return
				}
			case scopeDecision:
				if !byActor.allow(w, r) {
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (wc *windowCounter) allow(w http.ResponseWriter, r *http.Request) bool {
	if wc.limit <= 0 {
		return true
	}
	key := wc.key(r)
	if key == "" {
		key = clientIPKey(r)
	}

	wc.mu.Lock()
	now := wc.now()
	wc.sweep(now)
	win, ok := wc.counts[key]
	if !ok || !now.Before(win.reset) {
		win = &rateWindow{reset: now.Add(wc.window)}
		wc.counts[key] = win
	}
	win.count++
	count, reset := win.count, win.reset
	wc.mu.Unlock()

	resetIn := ceilSeconds(reset.Sub(now))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(wc.limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(wc.limit-count, 0)))
	w.Header().Set("X-RateLimit-Reset", strconv.Itoa(resetIn))
	if count <= wc.limit {
		return true
	}

	w.Header().Set("Retry-After", strconv.Itoa(max(resetIn, 1)))
	slog.Warn("rate limit exceeded", "key", key, "method", r.Method, "path", r.URL.Path, "limit", wc.limit)
	api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
	return false
}

// sweep must be called with mu held.
func (wc *windowCounter) sweep(now time.Time) {
	if now.Sub(wc.lastSweep) < wc.window {
		return
	}
	for key, win := range wc.counts {
		if !now.Before(win.reset) {
			delete(wc.counts, key)
		}
	}
	wc.lastSweep = now
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

func actorOrIPKey(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok && user.UserID != "" {
		return "user:" + user.UserID
	}
	return clientIPKey(r)
}

func clientIPKey(r *http.Request) string {
	return "ip:" + shared.ClientIP(r)
}

// emailOrIPKey peeks at a JSON body's "email" field and restores the body.
func emailOrIPKey(r *http.Request) string {
	if r.Body == nil || !strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
		return clientIPKey(r)
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil || len(raw) == 0 {
		return clientIPKey(r)
	}
	var payload struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(raw, &payload) != nil || strings.TrimSpace(payload.Email) == "" {
		return clientIPKey(r)
	}
	return "email:" + strings.ToLower(strings.TrimSpace(payload.Email))
}

type rateScope int

const (
	scopeNone rateScope = iota
	scopeCredentials
	scopeDecision
)

var credentialPaths = map[string]bool{
	"/auth/login":       true,
	"/auth/refresh":     true,
	"/auth/mfa/setup":   true,
	"/auth/mfa/enable":  true,
	"/auth/mfa/disable": true,
}

func sensitiveRateScope(r *http.Request) rateScope {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return scopeNone
	}
	path := strings.TrimPrefix(strings.TrimSpace(r.URL.Path), "/api/v1")
	switch {
	case credentialPaths[path]:
		return scopeCredentials
	case path == "/performance-cycles/close-expired", path == "/reviewer-selections":
		return scopeDecision
	case strings.HasPrefix(path, "/reviewer-selections/mentor/approvals/") &&
		(strings.HasSuffix(path, "/approve") || strings.HasSuffix(path, "/send-back")):
		return scopeDecision
	}
	return scopeNone
}
