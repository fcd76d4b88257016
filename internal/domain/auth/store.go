package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

type AuthUser struct {
	ID          string
	Email       string
	Name        string
	RoleName    string
	Password    string
	MFAEnabled  bool
	MFASecretEn []byte
}

const authUserColumns = "id, email, name, role, password_hash, mfa_enabled, mfa_secret_enc"

func scanAuthUser(row pgx.Row) (AuthUser, error) {
	var out AuthUser
	err := row.Scan(&out.ID, &out.Email, &out.Name, &out.RoleName, &out.Password, &out.MFAEnabled, &out.MFASecretEn)
	if errors.Is(err, pgx.ErrNoRows) {
		return AuthUser{}, ErrUserNotFound
	}
	return out, err
}

func (s *Store) FindActiveUserByEmail(ctx context.Context, email string) (AuthUser, error) {
	return scanAuthUser(s.DB.QueryRow(ctx, `
    SELECT `+authUserColumns+`
    FROM users
    WHERE lower(email) = $1 AND is_active = true
  `, strings.ToLower(strings.TrimSpace(email))))
}

func (s *Store) ActiveUserByID(ctx context.Context, userID string) (AuthUser, error) {
	return scanAuthUser(s.DB.QueryRow(ctx, `
    SELECT `+authUserColumns+`
    FROM users
    WHERE id = $1::uuid AND is_active = true
  `, userID))
}

func (s *Store) UpdateLastLogin(ctx context.Context, userID string) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET last_login = now() WHERE id = $1::uuid", userID)
	return err
}

func (s *Store) CreateSession(ctx context.Context, userID, sessionHash string, expires time.Time) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO sessions (user_id, refresh_token, expires_at)
    VALUES ($1,$2,$3)
  `, userID, sessionHash, expires)
	return err
}

// SessionRole returns the user's current role while the session is live
// and the account is active. A deactivated user or a revoked session
// yields ok=false.
func (s *Store) SessionRole(ctx context.Context, userID, sessionHash string) (string, bool, error) {
	var role string
	err := s.DB.QueryRow(ctx, `
    SELECT u.role
    FROM sessions s
    JOIN users u ON u.id = s.user_id
    WHERE s.user_id = $1::uuid AND s.refresh_token = $2
      AND s.expires_at > now() AND s.revoked_at IS NULL
      AND u.is_active = true
  `, userID, sessionHash).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return role, true, nil
}

// RotateSession swaps the session token only if the old one is still live,
// so a replayed refresh loses the race.
func (s *Store) RotateSession(ctx context.Context, userID, oldHash, newHash string, expires time.Time) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE sessions
    SET refresh_token = $1, expires_at = $2, rotated_at = now()
    WHERE user_id = $3::uuid AND refresh_token = $4 AND expires_at > now() AND revoked_at IS NULL
  `, newHash, expires, userID, oldHash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) RevokeSession(ctx context.Context, userID, sessionHash string) error {
	_, err := s.DB.Exec(ctx, "UPDATE sessions SET revoked_at = now() WHERE user_id = $1::uuid AND refresh_token = $2", userID, sessionHash)
	return err
}

func (s *Store) UpdateMFASecret(ctx context.Context, userID string, secretEnc []byte) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE users SET mfa_secret_enc = $1, mfa_enabled = false, updated_at = now() WHERE id = $2::uuid
  `, secretEnc, userID)
	return err
}

func (s *Store) GetMFASecret(ctx context.Context, userID string) ([]byte, error) {
	var secretEnc []byte
	err := s.DB.QueryRow(ctx, "SELECT mfa_secret_enc FROM users WHERE id = $1::uuid", userID).Scan(&secretEnc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return secretEnc, nil
}

func (s *Store) SetMFAEnabled(ctx context.Context, userID string, enabled bool) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET mfa_enabled = $1, updated_at = now() WHERE id = $2::uuid", enabled, userID)
	return err
}
