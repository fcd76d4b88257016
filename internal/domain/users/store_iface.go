package users

import "context"

type StoreAPI interface {
	Create(ctx context.Context, user NewUser) (User, error)
	Get(ctx context.Context, id string) (User, error)
	EmailTaken(ctx context.Context, email, excludeID string) (bool, error)
	List(ctx context.Context, filter Filter, limit, offset int) ([]User, error)
	Count(ctx context.Context, filter Filter) (int, error)
	Update(ctx context.Context, id string, patch Patch) (User, error)
	Delete(ctx context.Context, id string) error
	AvailableReviewers(ctx context.Context, excludeID, department string) ([]User, error)
}
