package selections

import "context"

type StoreAPI interface {
	Insert(ctx context.Context, sel Selection) (Selection, error)
	Get(ctx context.Context, id string) (Selection, error)
	FindByMentee(ctx context.Context, menteeID, cycleID string) (*Selection, error)
	// Resubmit replaces the reviewer rows and moves the selection to pending,
	// provided it is still in one of the from states.
	Resubmit(ctx context.Context, id string, from []Status, reviewerIDs []string, comments string) (Selection, error)
	// Review writes a mentor decision on a pending selection.
	Review(ctx context.Context, id string, review Review) (Selection, error)
	DeletePending(ctx context.Context, id string) error
	List(ctx context.Context, status Status, limit, offset int) ([]Selection, error)
	Count(ctx context.Context, status Status) (int, error)
	Users(ctx context.Context, ids []string) ([]UserSummary, error)
	Assignments(ctx context.Context, reviewerID string) ([]Assignment, error)
}
