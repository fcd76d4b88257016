package feedback

import (
	"context"
	"strings"

	"reviewflow/internal/domain/auth"
	"reviewflow/internal/domain/cycles"
	"reviewflow/internal/domain/notifications"
)

type CycleReader interface {
	Get(ctx context.Context, id string) (cycles.Cycle, error)
	Active(ctx context.Context) (*cycles.Cycle, error)
}

type Notifier interface {
	Notify(ctx context.Context, userID, title, message, kind string)
}

type Service struct {
	store    StoreAPI
	cycles   CycleReader
	notifier Notifier
}

func NewService(store StoreAPI, cycles CycleReader, notifier Notifier) *Service {
	return &Service{store: store, cycles: cycles, notifier: notifier}
}

func (s *Service) Create(ctx context.Context, actor auth.UserContext, in CreateInput) (Form, error) {
	if in.Status == "" {
		in.Status = StatusDraft
	}
	form := Form{
		EmployeeID:         strings.TrimSpace(in.EmployeeID),
		ReviewerID:         actor.UserID,
		PerformanceCycleID: strings.TrimSpace(in.PerformanceCycleID),
		Strengths:          strings.TrimSpace(in.Strengths),
		Improvements:       strings.TrimSpace(in.Improvements),
		OverallRating:      in.OverallRating,
		Status:             in.Status,
	}
	if err := validateContent(form); err != nil {
		return Form{}, err
	}

	cycle, err := s.cycles.Get(ctx, form.PerformanceCycleID)
	if err != nil {
		return Form{}, err
	}
	if !cycle.IsActive() {
		return Form{}, ErrCycleInactive
	}
	if form.EmployeeID == actor.UserID {
		return Form{}, ErrSelfFeedback
	}
	employee, err := s.store.Person(ctx, form.EmployeeID)
	if err != nil {
		return Form{}, err
	}
	if !employee.IsActive {
		return Form{}, ErrEmployeeInactive
	}
	exists, err := s.store.Exists(ctx, actor.UserID, form.EmployeeID, form.PerformanceCycleID)
	if err != nil {
		return Form{}, err
	}
	if exists {
		return Form{}, ErrDuplicate
	}

	created, err := s.store.Insert(ctx, form)
	if err != nil {
		return Form{}, err
	}
	if created.Status == StatusSubmitted {
		s.notifySubmitted(ctx, created)
	}
	return created, nil
}

// Update edits the caller's own draft. Setting status to submitted freezes it.
func (s *Service) Update(ctx context.Context, actor auth.UserContext, id string, in UpdateInput) (Form, error) {
	current, err := s.ownDraft(ctx, actor, id)
	if err != nil {
		return Form{}, err
	}
	merged := current
	if in.Strengths != nil {
		merged.Strengths = strings.TrimSpace(*in.Strengths)
	}
	if in.Improvements != nil {
		merged.Improvements = strings.TrimSpace(*in.Improvements)
	}
	if in.OverallRating != nil {
		merged.OverallRating = *in.OverallRating
	}
	if in.Status != nil {
		merged.Status = *in.Status
	}
	if err := validateContent(merged); err != nil {
		return Form{}, err
	}

	updated, err := s.store.UpdateDraft(ctx, merged)
	if err != nil {
		return Form{}, err
	}
	if updated.Status == StatusSubmitted {
		s.notifySubmitted(ctx, updated)
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, actor auth.UserContext, id string) error {
	if _, err := s.ownDraft(ctx, actor, id); err != nil {
		return err
	}
	return s.store.DeleteDraft(ctx, id)
}

// Get returns a form written by the caller.
func (s *Service) Get(ctx context.Context, actor auth.UserContext, id string) (Form, error) {
	form, err := s.store.Get(ctx, id)
	if err != nil {
		return Form{}, err
	}
	if form.ReviewerID != actor.UserID {
		return Form{}, ErrNotOwner
	}
	return form, nil
}

func (s *Service) ListByReviewer(ctx context.Context, actor auth.UserContext, filter Filter, limit, offset int) ([]Form, int, error) {
	if err := validateFilter(filter); err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountByReviewer(ctx, actor.UserID, filter)
	if err != nil {
		return nil, 0, err
	}
	items, err := s.store.ListByReviewer(ctx, actor.UserID, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListForEmployee returns only submitted forms about the employee.
func (s *Service) ListForEmployee(ctx context.Context, employeeID, cycleID string) ([]Form, error) {
	return s.store.ListSubmittedForEmployee(ctx, employeeID, cycleID)
}

func (s *Service) ListAll(ctx context.Context, filter Filter, limit, offset int) ([]Form, int, error) {
	if err := validateFilter(filter); err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountAll(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	items, err := s.store.ListAll(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Service) ownDraft(ctx context.Context, actor auth.UserContext, id string) (Form, error) {
	form, err := s.store.Get(ctx, id)
	if err != nil {
		return Form{}, err
	}
	if form.ReviewerID != actor.UserID {
		return Form{}, ErrNotOwner
	}
	if form.Status != StatusDraft {
		return Form{}, ErrSubmitted
	}
	return form, nil
}

func (s *Service) notifySubmitted(ctx context.Context, form Form) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, form.EmployeeID, "New feedback received",
		"A reviewer submitted feedback for you.", notifications.TypeFeedbackSubmitted)
}

func validateContent(form Form) error {
	if form.Strengths == "" {
		return ErrStrengthsRequired
	}
	if form.Improvements == "" {
		return ErrImprovementsReq
	}
	if !form.OverallRating.Valid() {
		return ErrInvalidRating
	}
	if !form.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

func validateFilter(filter Filter) error {
	if filter.Status != "" && !filter.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}
