package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reviewflow/internal/platform/db"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const notificationColumns = "id::text, user_id::text, title, message, type, is_read, read_at, created_at"

func scanNotification(row pgx.Row) (Notification, error) {
	var n Notification
	err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.IsRead, &n.ReadAt, &n.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) || db.IsInvalidInput(err) {
		return Notification{}, ErrNotFound
	}
	return n, err
}

func collectNotifications(rows pgx.Rows) ([]Notification, error) {
	defer rows.Close()
	out := []Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) Insert(ctx context.Context, n Notification) (Notification, error) {
	created, err := scanNotification(s.DB.QueryRow(ctx, `
    INSERT INTO notifications (user_id, title, message, type)
    VALUES ($1,$2,$3,$4)
    RETURNING `+notificationColumns,
		n.UserID, n.Title, n.Message, n.Type))
	if db.IsForeignKeyViolation(err) {
		return Notification{}, ErrRecipientNotFound
	}
	if err != nil {
		return Notification{}, fmt.Errorf("insert notification: %w", err)
	}
	return created, nil
}

func (s *Store) Get(ctx context.Context, id string) (Notification, error) {
	return scanNotification(s.DB.QueryRow(ctx, "SELECT "+notificationColumns+" FROM notifications WHERE id = $1::uuid", id))
}

func (s *Store) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]Notification, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+notificationColumns+`
    FROM notifications
    WHERE user_id = $1::uuid AND (NOT $2 OR is_read = false)
    ORDER BY created_at DESC
    LIMIT $3 OFFSET $4
  `, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectNotifications(rows)
}

func (s *Store) CountForUser(ctx context.Context, userID string, unreadOnly bool) (int, error) {
	var total int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM notifications
    WHERE user_id = $1::uuid AND (NOT $2 OR is_read = false)
  `, userID, unreadOnly).Scan(&total)
	return total, err
}

func (s *Store) MarkRead(ctx context.Context, id string) (Notification, error) {
	return scanNotification(s.DB.QueryRow(ctx, `
    UPDATE notifications SET is_read = true, read_at = COALESCE(read_at, now())
    WHERE id = $1::uuid
    RETURNING `+notificationColumns, id))
}

func (s *Store) MarkAllRead(ctx context.Context, userID string) (int, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE notifications SET is_read = true, read_at = now()
    WHERE user_id = $1::uuid AND is_read = false
  `, userID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) Update(ctx context.Context, n Notification) (Notification, error) {
	return scanNotification(s.DB.QueryRow(ctx, `
    UPDATE notifications
    SET title = $2, message = $3, type = $4, is_read = $5,
        read_at = CASE WHEN $5 THEN COALESCE(read_at, now()) END
    WHERE id = $1::uuid
    RETURNING `+notificationColumns,
		n.ID, n.Title, n.Message, n.Type, n.IsRead))
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if !db.ValidID(id) {
		return ErrNotFound
	}
	tag, err := s.DB.Exec(ctx, "DELETE FROM notifications WHERE id = $1::uuid", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListAll(ctx context.Context, limit, offset int) ([]Notification, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+notificationColumns+`
    FROM notifications
    ORDER BY created_at DESC
    LIMIT $1 OFFSET $2
  `, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectNotifications(rows)
}

func (s *Store) CountAll(ctx context.Context) (int, error) {
	var total int
	err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM notifications").Scan(&total)
	return total, err
}

func (s *Store) UserEmail(ctx context.Context, userID string) (string, error) {
	var email string
	err := s.DB.QueryRow(ctx, "SELECT email FROM users WHERE id = $1::uuid AND is_active = true", userID).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) || db.IsInvalidInput(err) {
		return "", nil
	}
	return email, err
}

func (s *Store) PurgeReadBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.DB.Exec(ctx, "DELETE FROM notifications WHERE is_read = true AND created_at < $1", cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
