package notifications

import (
	"context"
	"time"
)

type StoreAPI interface {
	Insert(ctx context.Context, n Notification) (Notification, error)
	Get(ctx context.Context, id string) (Notification, error)
	ListForUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]Notification, error)
	CountForUser(ctx context.Context, userID string, unreadOnly bool) (int, error)
	MarkRead(ctx context.Context, id string) (Notification, error)
	// MarkAllRead returns the number of rows that were unread.
	MarkAllRead(ctx context.Context, userID string) (int, error)
	Update(ctx context.Context, n Notification) (Notification, error)
	Delete(ctx context.Context, id string) error
	ListAll(ctx context.Context, limit, offset int) ([]Notification, error)
	CountAll(ctx context.Context) (int, error)
	UserEmail(ctx context.Context, userID string) (string, error)
	PurgeReadBefore(ctx context.Context, cutoff time.Time) (int, error)
}
