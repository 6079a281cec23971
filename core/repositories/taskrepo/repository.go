package taskrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jrazmi/lexprep/sdk/logger"
)

// Set of error values for CRUD operations on the task resource.
var (
	ErrNotFound = errors.New("task not found")
)

// MaxBatchSize is the ceiling the remote backend imposes on a single
// atomic batch write. Bulk operations are chunked to stay under it.
const MaxBatchSize = 500

// Storer defines the data storage interface for tasks. Both the remote
// document store and the device-local store implement it.
type Storer interface {
	Query(ctx context.Context, filter TaskFilter) ([]Task, error)
	Create(ctx context.Context, input CreateTask) (Task, error)
	// CreateBatch atomically writes one chunk of tasks. Callers must keep
	// chunks at or under MaxBatchSize; the Repository handles chunking.
	CreateBatch(ctx context.Context, inputs []CreateTask) error
	Update(ctx context.Context, taskID string, input UpdateTask) (Task, error)
	Delete(ctx context.Context, taskID string) error
	// Watch establishes a live view of tasks matching filter. The remote
	// store pushes a new snapshot on every observed change; the local
	// store emits exactly one snapshot. The channel closes when ctx is
	// canceled or the store has nothing further to push.
	Watch(ctx context.Context, filter TaskFilter) (<-chan []Task, error)
}

// Repository provides access to task storage.
type Repository struct {
	log    *logger.Logger
	storer Storer
}

func NewRepository(log *logger.Logger, storer Storer) *Repository {
	return &Repository{
		log:    log,
		storer: storer,
	}
}

// Query returns tasks matching filter, sorted by start time ascending.
func (r *Repository) Query(ctx context.Context, filter TaskFilter) ([]Task, error) {
	records, err := r.storer.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("task repository query: %w", err)
	}
	SortByTime(records)
	return records, nil
}

func (r *Repository) Create(ctx context.Context, input CreateTask) (Task, error) {
	record, err := r.storer.Create(ctx, input)
	if err != nil {
		return Task{}, fmt.Errorf("task repository create: %w", err)
	}
	r.log.Debug("created task", "id", record.ID, "date", record.Date)
	return record, nil
}

// CreateBatch bulk-inserts tasks, chunked to the backend's batch ceiling.
// Each chunk commits atomically; the caller decides what a partial
// failure across chunks means.
func (r *Repository) CreateBatch(ctx context.Context, inputs []CreateTask) error {
	for start := 0; start < len(inputs); start += MaxBatchSize {
		end := min(start+MaxBatchSize, len(inputs))
		if err := r.storer.CreateBatch(ctx, inputs[start:end]); err != nil {
			return fmt.Errorf("task repository create batch [%d:%d]: %w", start, end, err)
		}
	}
	r.log.Debug("batch created tasks", "count", len(inputs))
	return nil
}

func (r *Repository) Update(ctx context.Context, taskID string, input UpdateTask) (Task, error) {
	record, err := r.storer.Update(ctx, taskID, input)
	if err != nil {
		return Task{}, fmt.Errorf("task repository update %s: %w", taskID, err)
	}
	return record, nil
}

func (r *Repository) Delete(ctx context.Context, taskID string) error {
	if err := r.storer.Delete(ctx, taskID); err != nil {
		return fmt.Errorf("task repository delete %s: %w", taskID, err)
	}
	r.log.Debug("deleted task", "id", taskID)
	return nil
}

// Watch establishes a live view of tasks matching filter. Snapshots are
// sorted by start time before delivery.
func (r *Repository) Watch(ctx context.Context, filter TaskFilter) (<-chan []Task, error) {
	src, err := r.storer.Watch(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("task repository watch: %w", err)
	}

	out := make(chan []Task)
	go func() {
		defer close(out)
		for snapshot := range src {
			SortByTime(snapshot)
			select {
			case out <- snapshot:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
