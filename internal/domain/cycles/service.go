package cycles

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"reviewflow/internal/platform/apperror"
)

type Service struct {
	store StoreAPI
}

func NewService(store StoreAPI) *Service {
	return &Service{store: store}
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Cycle, error) {
	if in.Status == "" {
		in.Status = StatusInactive
	}
	c := Cycle{
		Name:        strings.TrimSpace(in.Name),
		StartDate:   dateOnly(in.StartDate),
		EndDate:     dateOnly(in.EndDate),
		Status:      in.Status,
		Description: strings.TrimSpace(in.Description),
	}
	if err := validate(c); err != nil {
		return Cycle{}, err
	}
	return s.store.Insert(ctx, c, c.IsActive())
}

// Update merges the input onto the stored cycle and validates the result,
// so a partial date change is checked against the other stored date.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Cycle, error) {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return Cycle{}, err
	}
	merged := current
	if in.Name != nil {
		merged.Name = strings.TrimSpace(*in.Name)
	}
	if in.StartDate != nil {
		merged.StartDate = dateOnly(*in.StartDate)
	}
	if in.EndDate != nil {
		merged.EndDate = dateOnly(*in.EndDate)
	}
	if in.Status != nil {
		merged.Status = *in.Status
	}
	if in.Description != nil {
		merged.Description = strings.TrimSpace(*in.Description)
	}
	if err := validate(merged); err != nil {
		return Cycle{}, err
	}
	return s.store.Update(ctx, merged, merged.IsActive())
}

func (s *Service) Get(ctx context.Context, id string) (Cycle, error) {
	return s.store.Get(ctx, id)
}

// Active returns nil when no cycle is active.
func (s *Service) Active(ctx context.Context) (*Cycle, error) {
	return s.store.Active(ctx)
}

// RequireActive is used by workflows that only run inside the active cycle.
func (s *Service) RequireActive(ctx context.Context) (Cycle, error) {
	c, err := s.store.Active(ctx)
	if err != nil {
		return Cycle{}, err
	}
	if c == nil {
		return Cycle{}, ErrNoActiveCycle
	}
	return *c, nil
}

func (s *Service) List(ctx context.Context, status Status, limit, offset int) ([]Cycle, int, error) {
	if status != "" && !status.Valid() {
		return nil, 0, ErrInvalidStatus
	}
	total, err := s.store.Count(ctx, status)
	if err != nil {
		return nil, 0, err
	}
	items, err := s.store.List(ctx, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// CloseExpired marks active cycles whose end date is before now's date as
// completed.
func (s *Service) CloseExpired(ctx context.Context, now time.Time) ([]string, error) {
	ids, err := s.store.CompleteEndedBefore(ctx, dateOnly(now))
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		slog.Info("performance cycles completed", "count", len(ids), "ids", ids)
	}
	return ids, nil
}

func validate(c Cycle) error {
	if c.Name == "" {
		return ErrNameRequired
	}
	if len(c.Name) > maxNameLength {
		return ErrNameTooLong
	}
	if !c.Status.Valid() {
		return ErrInvalidStatus
	}
	if c.StartDate.IsZero() || c.EndDate.IsZero() {
		return apperror.Validation("start date and end date are required")
	}
	if !c.StartDate.Before(c.EndDate) {
		return ErrDateOrder
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate accepts YYYY-MM-DD or a full RFC3339 timestamp.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperror.Validationf("invalid date %q, expected YYYY-MM-DD", raw)
	}
	return dateOnly(t), nil
}
