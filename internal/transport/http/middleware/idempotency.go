package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reviewflow/internal/platform/apperror"
)

const (
	DefaultIdempotencyTTL = 24 * time.Hour
	maxIdempotencyKeyLen  = 255
)

var (
	ErrIdempotencyConflict = apperror.New(apperror.CodeConflict, "idempotency key was already used with a different request")
	ErrIdempotencyKey      = apperror.Validation("Idempotency-Key must be at most 255 characters")
)

// IdempotencyStore remembers the response of a keyed create per user and
// endpoint. A retry within the TTL replays the stored response; after the
// TTL the key may be reused.
type IdempotencyStore struct {
	db  *pgxpool.Pool
	ttl time.Duration
}

func NewIdempotencyStore(db *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{db: db, ttl: DefaultIdempotencyTTL}
}

// RequestHash fingerprints a request payload.
func RequestHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func (s *IdempotencyStore) Check(ctx context.Context, userID, endpoint, key, requestHash string) (json.RawMessage, bool, error) {
	if len(key) > maxIdempotencyKeyLen {
		return nil, false, ErrIdempotencyKey
	}
	if s == nil || s.db == nil {
		return nil, false, nil
	}
	var storedHash string
	var stored json.RawMessage
	err := s.db.QueryRow(ctx, `
    SELECT request_hash, response_json
    FROM idempotency_keys
    WHERE user_id = $1::uuid AND key = $2 AND endpoint = $3
      AND created_at > now() - make_interval(secs => $4)
  `, userID, key, endpoint, s.ttl.Seconds()).Scan(&storedHash, &stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if storedHash != requestHash {
		return nil, false, ErrIdempotencyConflict
	}
	return stored, true, nil
}

// Save stores the response. An expired row for the same key is replaced;
// a live row with a different hash is a conflict.
func (s *IdempotencyStore) Save(ctx context.Context, userID, endpoint, key, requestHash string, response json.RawMessage) error {
	if s == nil || s.db == nil {
		return nil
	}
	tag, err := s.db.Exec(ctx, `
    INSERT INTO idempotency_keys (user_id, key, endpoint, request_hash, response_json)
    VALUES ($1, $2, $3, $4, $5)
    ON CONFLICT (user_id, key, endpoint)
    DO UPDATE SET request_hash = EXCLUDED.request_hash,
                  response_json = EXCLUDED.response_json,
                  created_at = now()
    WHERE idempotency_keys.request_hash = EXCLUDED.request_hash
       OR idempotency_keys.created_at <= now() - make_interval(secs => $6)
  `, userID, key, endpoint, requestHash, response, s.ttl.Seconds())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrIdempotencyConflict
	}
	return nil
}
