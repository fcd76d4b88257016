package feedback

import "context"

type StoreAPI interface {
	Insert(ctx context.Context, form Form) (Form, error)
	Get(ctx context.Context, id string) (Form, error)
	Exists(ctx context.Context, reviewerID, employeeID, cycleID string) (bool, error)
	// UpdateDraft and DeleteDraft only touch forms still in draft.
	UpdateDraft(ctx context.Context, form Form) (Form, error)
	DeleteDraft(ctx context.Context, id string) error
	ListByReviewer(ctx context.Context, reviewerID string, filter Filter, limit, offset int) ([]Form, error)
	CountByReviewer(ctx context.Context, reviewerID string, filter Filter) (int, error)
	ListSubmittedForEmployee(ctx context.Context, employeeID, cycleID string) ([]Form, error)
	ListAll(ctx context.Context, filter Filter, limit, offset int) ([]Form, error)
	CountAll(ctx context.Context, filter Filter) (int, error)
	Person(ctx context.Context, id string) (Person, error)
}
