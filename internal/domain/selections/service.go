package selections

import (
	"context"
	"fmt"
	"strings"

	"reviewflow/internal/domain/auth"
	"reviewflow/internal/domain/cycles"
	"reviewflow/internal/domain/notifications"
	"reviewflow/internal/platform/apperror"
)

// CycleReader is the slice of the cycle registry the workflow needs.
type CycleReader interface {
	Get(ctx context.Context, id string) (cycles.Cycle, error)
	Active(ctx context.Context) (*cycles.Cycle, error)
}

// Notifier delivers workflow notifications. Failures are the notifier's
// concern and never fail the transition.
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

func (s *Service) Create(ctx context.Context, actor auth.UserContext, in CreateInput) (View, error) {
	cycle, err := s.targetCycle(ctx, in.PerformanceCycleID)
	if err != nil {
		return View{}, err
	}
	reviewerIDs, err := s.checkReviewers(ctx, actor.UserID, in.ReviewerIDs)
	if err != nil {
		return View{}, err
	}
	existing, err := s.store.FindByMentee(ctx, actor.UserID, cycle.ID)
	if err != nil {
		return View{}, err
	}
	if existing != nil {
		return View{}, ErrDuplicate
	}

	created, err := s.store.Insert(ctx, Selection{
		PerformanceCycleID: cycle.ID,
		MenteeID:           actor.UserID,
		Status:             StatusPending,
		Comments:           strings.TrimSpace(in.Comments),
		ReviewerIDs:        reviewerIDs,
	})
	if err != nil {
		return View{}, err
	}
	return s.expandOne(ctx, created)
}

// Update replaces the reviewer list of the caller's own selection. A
// selection that was sent back returns to pending for the mentor.
func (s *Service) Update(ctx context.Context, actor auth.UserContext, id string, in UpdateInput) (View, error) {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	if current.MenteeID != actor.UserID {
		return View{}, ErrNotOwner
	}
	if _, err := Next(current.Status, ActionUpdate); err != nil {
		return View{}, err
	}

	reviewerIDs := current.ReviewerIDs
	if in.ReviewerIDs != nil {
		if reviewerIDs, err = s.checkReviewers(ctx, actor.UserID, in.ReviewerIDs); err != nil {
			return View{}, err
		}
	}
	comments := current.Comments
	if in.Comments != nil {
		comments = strings.TrimSpace(*in.Comments)
	}

	updated, err := s.store.Resubmit(ctx, id, []Status{StatusPending, StatusSentBack}, reviewerIDs, comments)
	if err != nil {
		return View{}, err
	}
	return s.expandOne(ctx, updated)
}

func (s *Service) Approve(ctx context.Context, actor auth.UserContext, id, comments string) (View, error) {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	next, err := Next(current.Status, ActionApprove)
	if err != nil {
		return View{}, err
	}
	approved, err := s.store.Review(ctx, id, Review{
		Status:         next,
		ReviewedBy:     actor.UserID,
		MentorFeedback: strings.TrimSpace(comments),
	})
	if err != nil {
		return View{}, err
	}
	s.notify(ctx, approved.MenteeID, "Reviewer selection approved",
		"Your reviewer selection has been approved.", notifications.TypeSelectionApproved)
	return s.expandOne(ctx, approved)
}

func (s *Service) SendBack(ctx context.Context, actor auth.UserContext, id, feedback string, requiredChanges []string) (View, error) {
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return View{}, ErrFeedbackRequired
	}
	changes := make([]string, 0, len(requiredChanges))
	for _, change := range requiredChanges {
		if change = strings.TrimSpace(change); change != "" {
			changes = append(changes, change)
		}
	}
	if len(changes) == 0 {
		return View{}, ErrChangesRequired
	}

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	next, err := Next(current.Status, ActionSendBack)
	if err != nil {
		return View{}, err
	}
	sentBack, err := s.store.Review(ctx, id, Review{
		Status:          next,
		ReviewedBy:      actor.UserID,
		MentorFeedback:  feedback,
		RequiredChanges: changes,
	})
	if err != nil {
		return View{}, err
	}
	s.notify(ctx, sentBack.MenteeID, "Reviewer selection sent back",
		"Your mentor asked for changes: "+feedback, notifications.TypeSelectionSentBack)
	return s.expandOne(ctx, sentBack)
}

func (s *Service) Delete(ctx context.Context, actor auth.UserContext, id string) error {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.MenteeID != actor.UserID {
		return ErrNotOwner
	}
	if _, err := Next(current.Status, ActionDelete); err != nil {
		return err
	}
	return s.store.DeletePending(ctx, id)
}

// Mine returns the caller's latest selection, or the one for cycleID when set.
func (s *Service) Mine(ctx context.Context, actor auth.UserContext, cycleID string) (View, error) {
	sel, err := s.store.FindByMentee(ctx, actor.UserID, cycleID)
	if err != nil {
		return View{}, err
	}
	if sel == nil {
		return View{}, apperror.NotFound("no reviewer selection found")
	}
	return s.expandOne(ctx, *sel)
}

func (s *Service) PendingApprovals(ctx context.Context, limit, offset int) ([]View, int, error) {
	return s.Approvals(ctx, StatusPending, limit, offset)
}

func (s *Service) Approvals(ctx context.Context, status Status, limit, offset int) ([]View, int, error) {
	if status != "" && !status.Valid() {
		return nil, 0, apperror.Validation("status must be one of: pending, approved, sent_back")
	}
	total, err := s.store.Count(ctx, status)
	if err != nil {
		return nil, 0, err
	}
	items, err := s.store.List(ctx, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	views, err := s.expand(ctx, items)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

func (s *Service) ApprovalDetail(ctx context.Context, id string) (View, error) {
	sel, err := s.store.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	return s.expandOne(ctx, sel)
}

func (s *Service) ReviewerAssignments(ctx context.Context, actor auth.UserContext) ([]Assignment, error) {
	return s.store.Assignments(ctx, actor.UserID)
}

func (s *Service) targetCycle(ctx context.Context, cycleID string) (cycles.Cycle, error) {
	if cycleID == "" {
		active, err := s.cycles.Active(ctx)
		if err != nil {
			return cycles.Cycle{}, err
		}
		if active == nil {
			return cycles.Cycle{}, ErrCycleInactive
		}
		return *active, nil
	}
	cycle, err := s.cycles.Get(ctx, cycleID)
	if err != nil {
		return cycles.Cycle{}, err
	}
	if !cycle.IsActive() {
		return cycles.Cycle{}, ErrCycleInactive
	}
	return cycle, nil
}

// checkReviewers normalizes the proposed list and rejects it as a whole when
// any entry is unknown, inactive or not allowed to review.
func (s *Service) checkReviewers(ctx context.Context, menteeID string, proposed []string) ([]string, error) {
	ids := make([]string, 0, len(proposed))
	seen := map[string]bool{}
	for _, id := range proposed {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		if id == menteeID {
			return nil, ErrSelfReviewer
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, ErrNoReviewers
	}

	found, err := s.store.Users(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]UserSummary, len(found))
	for _, u := range found {
		byID[u.ID] = u
	}
	for _, id := range ids {
		u, ok := byID[id]
		if !ok {
			return nil, apperror.NotFound(fmt.Sprintf("reviewer %s not found", id))
		}
		if !u.IsActive {
			return nil, apperror.Validationf("reviewer %s is not active", u.Name)
		}
		if !auth.IsReviewerRole(u.Role) {
			return nil, apperror.Validationf("user %s is not eligible as a reviewer", u.Name)
		}
	}
	return ids, nil
}

func (s *Service) expandOne(ctx context.Context, sel Selection) (View, error) {
	views, err := s.expand(ctx, []Selection{sel})
	if err != nil {
		return View{}, err
	}
	return views[0], nil
}

func (s *Service) expand(ctx context.Context, items []Selection) ([]View, error) {
	ids := []string{}
	for _, sel := range items {
		ids = append(ids, sel.MenteeID)
		ids = append(ids, sel.ReviewerIDs...)
	}
	found, err := s.store.Users(ctx, ids)
	if err != nil {
		return nil, err
	}
	usersByID := make(map[string]UserSummary, len(found))
	for _, u := range found {
		usersByID[u.ID] = u
	}

	cyclesByID := map[string]*CycleSummary{}
	views := make([]View, 0, len(items))
	for _, sel := range items {
		view := View{Selection: sel, SelectedReviewers: []UserSummary{}}
		if mentee, ok := usersByID[sel.MenteeID]; ok {
			view.Mentee = &mentee
		}
		for _, id := range sel.ReviewerIDs {
			if reviewer, ok := usersByID[id]; ok {
				view.SelectedReviewers = append(view.SelectedReviewers, reviewer)
			}
		}
		summary, ok := cyclesByID[sel.PerformanceCycleID]
		if !ok {
			summary, err = s.cycleSummary(ctx, sel.PerformanceCycleID)
			if err != nil {
				return nil, err
			}
			cyclesByID[sel.PerformanceCycleID] = summary
		}
		view.PerformanceCycle = summary
		views = append(views, view)
	}
	return views, nil
}

func (s *Service) cycleSummary(ctx context.Context, id string) (*CycleSummary, error) {
	cycle, err := s.cycles.Get(ctx, id)
	if err != nil {
		if apperror.Is(err, apperror.CodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &CycleSummary{
		ID:        cycle.ID,
		Name:      cycle.Name,
		StartDate: cycle.StartDate,
		EndDate:   cycle.EndDate,
		Status:    string(cycle.Status),
	}, nil
}

func (s *Service) notify(ctx context.Context, userID, title, message, kind string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, userID, title, message, kind)
}
