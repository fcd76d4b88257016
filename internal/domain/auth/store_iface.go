package auth

import (
	"context"
	"time"
)

type StoreAPI interface {
	FindActiveUserByEmail(ctx context.Context, email string) (AuthUser, error)
	ActiveUserByID(ctx context.Context, userID string) (AuthUser, error)
	UpdateLastLogin(ctx context.Context, userID string) error
	CreateSession(ctx context.Context, userID, sessionHash string, expires time.Time) error
	SessionRole(ctx context.Context, userID, sessionHash string) (string, bool, error)
	RotateSession(ctx context.Context, userID, oldHash, newHash string, expires time.Time) (bool, error)
	RevokeSession(ctx context.Context, userID, sessionHash string) error
	UpdateMFASecret(ctx context.Context, userID string, secretEnc []byte) error
	GetMFASecret(ctx context.Context, userID string) ([]byte, error)
	SetMFAEnabled(ctx context.Context, userID string, enabled bool) error
}
