package cycles

import (
	"context"
	"time"
)

type StoreAPI interface {
	// Insert and Update deactivate every other active cycle in the same
	// transaction when deactivateOthers is set.
	Insert(ctx context.Context, c Cycle, deactivateOthers bool) (Cycle, error)
	Update(ctx context.Context, c Cycle, deactivateOthers bool) (Cycle, error)
	Get(ctx context.Context, id string) (Cycle, error)
	Active(ctx context.Context) (*Cycle, error)
	List(ctx context.Context, status Status, limit, offset int) ([]Cycle, error)
	Count(ctx context.Context, status Status) (int, error)
	Delete(ctx context.Context, id string) error
	CompleteEndedBefore(ctx context.Context, day time.Time) ([]string, error)
}
