package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"

	cryptoutil "reviewflow/internal/platform/crypto"
)

type fakeSession struct {
	userID  string
	expires time.Time
	revoked bool
}

type fakeStore struct {
	mu       sync.Mutex
	users    map[string]AuthUser
	disabled map[string]bool
	sessions map[string]*fakeSession
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[string]AuthUser{}, disabled: map[string]bool{}, sessions: map[string]*fakeSession{}}
}

func (f *fakeStore) FindActiveUserByEmail(_ context.Context, email string) (AuthUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return AuthUser{}, ErrUserNotFound
}

func (f *fakeStore) ActiveUserByID(_ context.Context, userID string) (AuthUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return AuthUser{}, ErrUserNotFound
	}
	return u, nil
}

func (f *fakeStore) UpdateLastLogin(context.Context, string) error { return nil }

func (f *fakeStore) CreateSession(_ context.Context, userID, hash string, expires time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[hash] = &fakeSession{userID: userID, expires: expires}
	return nil
}

func (f *fakeStore) SessionRole(_ context.Context, userID, hash string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[hash]
	if !ok || s.userID != userID || s.revoked || !s.expires.After(time.Now()) || f.disabled[userID] {
		return "", false, nil
	}
	u, ok := f.users[userID]
	if !ok {
		return "", false, nil
	}
	return u.RoleName, true, nil
}

func (f *fakeStore) RotateSession(_ context.Context, userID, oldHash, newHash string, expires time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[oldHash]
	if !ok || s.userID != userID || s.revoked || !s.expires.After(time.Now()) {
		return false, nil
	}
	delete(f.sessions, oldHash)
	f.sessions[newHash] = &fakeSession{userID: userID, expires: expires}
	return true, nil
}

func (f *fakeStore) RevokeSession(_ context.Context, userID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[hash]; ok && s.userID == userID {
		s.revoked = true
	}
	return nil
}

func (f *fakeStore) UpdateMFASecret(_ context.Context, userID string, secretEnc []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[userID]
	u.MFASecretEn = secretEnc
	u.MFAEnabled = false
	f.users[userID] = u
	return nil
}

func (f *fakeStore) GetMFASecret(_ context.Context, userID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u.MFASecretEn, nil
}

func (f *fakeStore) SetMFAEnabled(_ context.Context, userID string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[userID]
	u.MFAEnabled = enabled
	f.users[userID] = u
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	hash, err := HashPassword("password123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	store.users["u1"] = AuthUser{ID: "u1", Email: "mentee@example.com", Name: "Mentee", RoleName: RoleEmployee, Password: hash}
	crypto, err := cryptoutil.New("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("crypto: %v", err)
	}
	svc := NewService(store, crypto, Options{Secret: "test-secret", AccessTokenTTL: time.Minute, SessionTTL: time.Hour})
	return svc, store
}

func TestLoginIssuesTokenWithSubject(t *testing.T) {
	svc, _ := newTestService(t)

	result, err := svc.Login(context.Background(), "mentee@example.com", "password123", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := ParseToken("test-secret", result.Token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "u1" || claims.RoleName != RoleEmployee {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if result.User == nil || result.User.Email != "mentee@example.com" {
		t.Fatalf("expected user summary, got %+v", result.User)
	}
	role, active, err := svc.SessionRole(context.Background(), "u1", claims.SessionID)
	if err != nil || !active || role != RoleEmployee {
		t.Fatalf("expected active employee session, got %q %v %v", role, active, err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.Login(context.Background(), "mentee@example.com", "wrong", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "nobody@example.com", "password123", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}
}

func TestRefreshRotatesSessionOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	login, err := svc.Login(ctx, "mentee@example.com", "password123", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	refreshed, err := svc.Refresh(ctx, login.Token)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.Token == login.Token {
		t.Fatal("expected a new token")
	}
	if _, err := svc.Refresh(ctx, login.Token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected replayed refresh to fail, got %v", err)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	login, err := svc.Login(ctx, "mentee@example.com", "password123", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, _ := ParseToken("test-secret", login.Token)
	user := UserContext{UserID: claims.UserID, RoleName: claims.RoleName, SessionID: claims.SessionID}
	if err := svc.Logout(ctx, user); err != nil {
		t.Fatalf("logout: %v", err)
	}
	_, active, _ := svc.SessionRole(ctx, user.UserID, user.SessionID)
	if active {
		t.Fatal("expected session to be revoked")
	}
	if _, err := svc.Refresh(ctx, login.Token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected refresh after logout to fail, got %v", err)
	}
}

func TestSessionFollowsDirectoryChanges(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	login, err := svc.Login(ctx, "mentee@example.com", "password123", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := ParseToken("test-secret", login.Token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	store.mu.Lock()
	u := store.users["u1"]
	u.RoleName = RoleMentor
	store.users["u1"] = u
	store.mu.Unlock()

	role, active, err := svc.SessionRole(ctx, "u1", claims.SessionID)
	if err != nil || !active {
		t.Fatalf("expected live session, got %v %v", active, err)
	}
	if role != RoleMentor || claims.RoleName != RoleEmployee {
		t.Fatalf("expected directory role %q over token role %q, got %q", RoleMentor, claims.RoleName, role)
	}

	store.mu.Lock()
	store.disabled["u1"] = true
	store.mu.Unlock()

	if _, active, _ := svc.SessionRole(ctx, "u1", claims.SessionID); active {
		t.Fatal("expected a deactivated user's session to be rejected")
	}
}

func TestMFAEnrollmentAndLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	user := UserContext{UserID: "u1", RoleName: RoleEmployee}

	setup, err := svc.SetupMFA(ctx, user)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := svc.EnableMFA(ctx, user, "000000x"); !errors.Is(err, ErrMFACodeRejected) {
		t.Fatalf("expected bad code rejection, got %v", err)
	}
	code, err := totp.GenerateCode(setup.Secret, time.Now())
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	if err := svc.EnableMFA(ctx, user, code); err != nil {
		t.Fatalf("enable: %v", err)
	}

	if _, err := svc.Login(ctx, "mentee@example.com", "password123", ""); !errors.Is(err, ErrMFARequired) {
		t.Fatalf("expected mfa required, got %v", err)
	}
	if _, err := svc.Login(ctx, "mentee@example.com", "password123", code); err != nil {
		t.Fatalf("expected login with mfa code to succeed, got %v", err)
	}
}

func TestMFARequiresEncryptionKey(t *testing.T) {
	store := newFakeStore()
	crypto, _ := cryptoutil.New("")
	svc := NewService(store, crypto, Options{Secret: "s"})
	if _, err := svc.SetupMFA(context.Background(), UserContext{UserID: "u1"}); !errors.Is(err, ErrMFAUnavailable) {
		t.Fatalf("expected mfa unavailable, got %v", err)
	}
}
