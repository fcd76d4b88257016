package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	cryptoutil "reviewflow/internal/platform/crypto"
)

type Options struct {
	Secret         string
	AccessTokenTTL time.Duration
	SessionTTL     time.Duration
	MFAIssuer      string
}

type Service struct {
	store  StoreAPI
	crypto *cryptoutil.Service
	opts   Options
	now    func() time.Time
}

func NewService(store StoreAPI, crypto *cryptoutil.Service, opts Options) *Service {
	if opts.AccessTokenTTL <= 0 {
		opts.AccessTokenTTL = 30 * time.Minute
	}
	if opts.SessionTTL < opts.AccessTokenTTL {
		opts.SessionTTL = opts.AccessTokenTTL
	}
	if opts.MFAIssuer == "" {
		opts.MFAIssuer = "ReviewFlow"
	}
	return &Service{store: store, crypto: crypto, opts: opts, now: time.Now}
}

type SessionUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type TokenResult struct {
	Token     string       `json:"token"`
	TokenType string       `json:"tokenType"`
	ExpiresIn int          `json:"expiresIn"`
	User      *SessionUser `json:"user,omitempty"`
}

type MFASetup struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauthUrl"`
}

func (s *Service) Login(ctx context.Context, email, password, mfaCode string) (TokenResult, error) {
	user, err := s.store.FindActiveUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return TokenResult{}, ErrInvalidCredentials
		}
		return TokenResult{}, err
	}
	if err := CheckPassword(user.Password, password); err != nil {
		return TokenResult{}, ErrInvalidCredentials
	}

	if user.MFAEnabled {
		if mfaCode == "" {
			return TokenResult{}, ErrMFARequired
		}
		secret, err := s.crypto.DecryptString(user.MFASecretEn)
		if err != nil || secret == "" || !totp.Validate(mfaCode, secret) {
			return TokenResult{}, ErrMFAInvalid
		}
	}

	sessionID, err := NewSessionID()
	if err != nil {
		return TokenResult{}, fmt.Errorf("issue session: %w", err)
	}
	if err := s.store.CreateSession(ctx, user.ID, HashToken(sessionID), s.now().Add(s.opts.SessionTTL)); err != nil {
		return TokenResult{}, fmt.Errorf("create session: %w", err)
	}

	result, err := s.issue(user.ID, user.RoleName, sessionID)
	if err != nil {
		return TokenResult{}, err
	}
	if err := s.store.UpdateLastLogin(ctx, user.ID); err != nil {
		slog.Warn("update last_login failed", "userId", user.ID, "err", err)
	}
	result.User = &SessionUser{ID: user.ID, Email: user.Email, Name: user.Name, Role: user.RoleName}
	return result, nil
}

// Refresh accepts an expired access token as long as its session is still
// live, rotates the session id and re-reads the role from the directory.
func (s *Service) Refresh(ctx context.Context, rawToken string) (TokenResult, error) {
	claims, err := ParseToken(s.opts.Secret, rawToken, jwt.WithoutClaimsValidation())
	if err != nil || claims.SessionID == "" {
		return TokenResult{}, ErrSessionExpired
	}

	user, err := s.store.ActiveUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return TokenResult{}, ErrSessionExpired
		}
		return TokenResult{}, err
	}

	newSessionID, err := NewSessionID()
	if err != nil {
		return TokenResult{}, fmt.Errorf("issue session: %w", err)
	}
	rotated, err := s.store.RotateSession(ctx, user.ID, HashToken(claims.SessionID), HashToken(newSessionID), s.now().Add(s.opts.SessionTTL))
	if err != nil {
		return TokenResult{}, fmt.Errorf("rotate session: %w", err)
	}
	if !rotated {
		return TokenResult{}, ErrSessionExpired
	}
	return s.issue(user.ID, user.RoleName, newSessionID)
}

func (s *Service) Logout(ctx context.Context, user UserContext) error {
	if user.SessionID == "" {
		return nil
	}
	return s.store.RevokeSession(ctx, user.UserID, HashToken(user.SessionID))
}

// SessionRole backs the auth middleware: it returns the current role of an
// active user holding a live session.
func (s *Service) SessionRole(ctx context.Context, userID, sessionID string) (string, bool, error) {
	if sessionID == "" {
		return "", false, nil
	}
	return s.store.SessionRole(ctx, userID, HashToken(sessionID))
}

func (s *Service) SetupMFA(ctx context.Context, user UserContext) (MFASetup, error) {
	if !s.crypto.Configured() {
		return MFASetup{}, ErrMFAUnavailable
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.opts.MFAIssuer,
		AccountName: user.UserID,
		Period:      30,
		Digits:      otp.DigitsSix,
	})
	if err != nil {
		return MFASetup{}, fmt.Errorf("generate mfa secret: %w", err)
	}
	encrypted, err := s.crypto.EncryptString(key.Secret())
	if err != nil {
		return MFASetup{}, fmt.Errorf("encrypt mfa secret: %w", err)
	}
	if err := s.store.UpdateMFASecret(ctx, user.UserID, encrypted); err != nil {
		return MFASetup{}, err
	}
	return MFASetup{Secret: key.Secret(), OTPAuthURL: key.URL()}, nil
}

func (s *Service) EnableMFA(ctx context.Context, user UserContext, code string) error {
	if err := s.verifyStoredCode(ctx, user.UserID, code); err != nil {
		return err
	}
	return s.store.SetMFAEnabled(ctx, user.UserID, true)
}

func (s *Service) DisableMFA(ctx context.Context, user UserContext, code string) error {
	if err := s.verifyStoredCode(ctx, user.UserID, code); err != nil {
		return err
	}
	return s.store.SetMFAEnabled(ctx, user.UserID, false)
}

func (s *Service) verifyStoredCode(ctx context.Context, userID, code string) error {
	if !s.crypto.Configured() {
		return ErrMFAUnavailable
	}
	secretEnc, err := s.store.GetMFASecret(ctx, userID)
	if err != nil {
		return err
	}
	if len(secretEnc) == 0 {
		return ErrMFANotSetUp
	}
	secret, err := s.crypto.DecryptString(secretEnc)
	if err != nil {
		return ErrMFANotSetUp
	}
	if !totp.Validate(code, secret) {
		return ErrMFACodeRejected
	}
	return nil
}

func (s *Service) issue(userID, role, sessionID string) (TokenResult, error) {
	token, err := GenerateToken(s.opts.Secret, Claims{UserID: userID, RoleName: role, SessionID: sessionID}, s.opts.AccessTokenTTL)
	if err != nil {
		return TokenResult{}, fmt.Errorf("sign token: %w", err)
	}
	return TokenResult{
		Token:     token,
		TokenType: "bearer",
		ExpiresIn: int(s.opts.AccessTokenTTL.Seconds()),
	}, nil
}
