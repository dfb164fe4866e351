package task

import (
	"context"
	"time"
)

// Repository is the task persistence the service needs. Implementations
// return apperr.ErrRecordNotFound (possibly wrapped) for missing ids and do
// no ownership checks of their own.
type Repository interface {
	// ListTasksByUser returns every task owned by userID, in no particular order.
	ListTasksByUser(ctx context.Context, userID string) ([]*Task, error)

	GetTask(ctx context.Context, id string) (*Task, error)

	// CreateTask persists t as given, including its ID.
	CreateTask(ctx context.Context, t *Task) error

	// UpdateTask sets only the fields present in p plus updatedAt and returns
	// the stored result.
	UpdateTask(ctx context.Context, id string, p Patch, updatedAt time.Time) (*Task, error)

	DeleteTask(ctx context.Context, id string) error
}
