package notifications

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"reviewflow/internal/domain/auth"
)

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

type Service struct {
	store       StoreAPI
	Mailer      Mailer
	DefaultFrom string
}

func New(store StoreAPI, mailer Mailer) *Service {
	return &Service{store: store, Mailer: mailer, DefaultFrom: "no-reply@example.com"}
}

// Create stores a notification for userID and mails it when a mailer is
// configured. Mail failures are logged, never returned.
func (s *Service) Create(ctx context.Context, userID, title, message, ntype string) (Notification, error) {
	n := Notification{
		UserID:  strings.TrimSpace(userID),
		Title:   strings.TrimSpace(title),
		Message: strings.TrimSpace(message),
		Type:    strings.TrimSpace(ntype),
	}
	if n.Type == "" {
		n.Type = TypeInfo
	}
	if err := validate(n); err != nil {
		return Notification{}, err
	}
	created, err := s.store.Insert(ctx, n)
	if err != nil {
		return Notification{}, err
	}
	s.mail(ctx, created)
	return created, nil
}

// Notify is the fire-and-forget form of Create used by workflows.
func (s *Service) Notify(ctx context.Context, userID, title, message, ntype string) {
	if _, err := s.Create(ctx, userID, title, message, ntype); err != nil {
		slog.Warn("workflow notification failed", "userId", userID, "type", ntype, "err", err)
	}
}

func (s *Service) mail(ctx context.Context, n Notification) {
	if s.Mailer == nil {
		return
	}
	email, err := s.store.UserEmail(ctx, n.UserID)
	if err != nil {
		slog.Warn("notification email lookup failed", "err", err)
		return
	}
	if email == "" {
		return
	}
	if err := s.Mailer.Send(ctx, s.DefaultFrom, email, n.Title, n.Message); err != nil {
		slog.Warn("notification email send failed", "err", err)
	}
}

func (s *Service) List(ctx context.Context, actor auth.UserContext, unreadOnly bool, limit, offset int) ([]Notification, int, error) {
	total, err := s.store.CountForUser(ctx, actor.UserID, unreadOnly)
	if err != nil {
		return nil, 0, err
	}
	items, err := s.store.ListForUser(ctx, actor.UserID, unreadOnly, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Service) UnreadCount(ctx context.Context, actor auth.UserContext) (int, error) {
	return s.store.CountForUser(ctx, actor.UserID, true)
}

func (s *Service) MarkRead(ctx context.Context, actor auth.UserContext, id string) (Notification, error) {
	n, err := s.store.Get(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if n.UserID != actor.UserID {
		return Notification{}, ErrNotRecipient
	}
	return s.store.MarkRead(ctx, id)
}

func (s *Service) MarkAllRead(ctx context.Context, actor auth.UserContext) (int, error) {
	return s.store.MarkAllRead(ctx, actor.UserID)
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Notification, error) {
	n, err := s.store.Get(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if in.Title != nil {
		n.Title = strings.TrimSpace(*in.Title)
	}
	if in.Message != nil {
		n.Message = strings.TrimSpace(*in.Message)
	}
	if in.Type != nil {
		n.Type = strings.TrimSpace(*in.Type)
	}
	if in.IsRead != nil {
		n.IsRead = *in.IsRead
	}
	if err := validate(n); err != nil {
		return Notification{}, err
	}
	return s.store.Update(ctx, n)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

func (s *Service) ListAll(ctx context.Context, limit, offset int) ([]Notification, int, error) {
	total, err := s.store.CountAll(ctx)
	if err != nil {
		return nil, 0, err
	}
	items, err := s.store.ListAll(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Purge deletes read notifications created more than retention before now.
func (s *Service) Purge(ctx context.Context, retention time.Duration, now time.Time) (int, error) {
	if retention <= 0 {
		return 0, nil
	}
	return s.store.PurgeReadBefore(ctx, now.Add(-retention))
}

func validate(n Notification) error {
	if n.Title == "" {
		return ErrTitleRequired
	}
	if len(n.Title) > maxTitleLength {
		return ErrTitleTooLong
	}
	if n.Message == "" {
		return ErrMessageRequired
	}
	if n.Type == "" || len(n.Type) > maxTypeLength {
		return ErrTypeTooLong
	}
	return nil
}
