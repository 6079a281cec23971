// Package taskpgxstore is the remote task document store, backed by
// Postgres. Tasks are partitioned per user and queried per calendar
// date; Watch approximates the document-store listener by re-querying on
// an interval and pushing snapshots whenever the result set changes.
package taskpgxstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jrazmi/lexprep/core/repositories/taskrepo"
	"github.com/jrazmi/lexprep/infrastructure/postgresdb"
	"github.com/jrazmi/lexprep/sdk/logger"
)

// defaultPollInterval paces the Watch re-query loop.
const defaultPollInterval = 3 * time.Second

type Store struct {
	log  *logger.Logger
	pool *postgresdb.Pool

	pollInterval time.Duration
}

func NewStore(log *logger.Logger, pool *postgresdb.Pool) *Store {
	return &Store{
		log:          log,
		pool:         pool,
		pollInterval: defaultPollInterval,
	}
}

// WithPollInterval overrides the Watch re-query interval. Tests use
// short intervals.
func (s *Store) WithPollInterval(d time.Duration) *Store {
	s.pollInterval = d
	return s
}

func (s *Store) Query(ctx context.Context, filter taskrepo.TaskFilter) ([]taskrepo.Task, error) {
	query := `SELECT task_id, start_time, end_time, content, tag, completed, task_date, user_id
		FROM tasks
		WHERE (@user_id::text IS NULL OR user_id = @user_id)
		  AND (@task_date::text IS NULL OR task_date = @task_date)
		ORDER BY start_time`

	args := pgx.NamedArgs{
		"user_id":   filter.UserID,
		"task_date": filter.Date,
	}

	rows, err := s.pool.Query(ctx, query, args)
	if err != nil {
		return nil, postgresdb.HandlePgError(err)
	}
	defer rows.Close()

	sl, err := pgx.CollectRows(rows, pgx.RowToStructByName[taskrepo.Task])
	if err != nil {
		return nil, postgresdb.HandlePgError(err)
	}
	return sl, nil
}

func (s *Store) Create(ctx context.Context, input taskrepo.CreateTask) (taskrepo.Task, error) {
	query := `INSERT INTO tasks (task_id, start_time, end_time, content, tag, completed, task_date, user_id)
		VALUES (@task_id, @start_time, @end_time, @content, @tag, @completed, @task_date, @user_id)
		RETURNING task_id, start_time, end_time, content, tag, completed, task_date, user_id`

	rows, err := s.pool.Query(ctx, query, createArgs(uuid.NewString(), input))
	if err != nil {
		return taskrepo.Task{}, postgresdb.HandlePgError(err)
	}
	defer rows.Close()

	record, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[taskrepo.Task])
	if err != nil {
		return taskrepo.Task{}, postgresdb.HandlePgError(err)
	}
	return record, nil
}

// CreateBatch writes one chunk of tasks inside a single transaction, so
// the chunk commits or rolls back as a unit.
func (s *Store) CreateBatch(ctx context.Context, inputs []taskrepo.CreateTask) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return postgresdb.HandlePgError(err)
	}
	defer tx.Rollback(ctx)

	query := `INSERT INTO tasks (task_id, start_time, end_time, content, tag, completed, task_date, user_id)
		VALUES (@task_id, @start_time, @end_time, @content, @tag, @completed, @task_date, @user_id)`

	batch := &pgx.Batch{}
	for _, input := range inputs {
		batch.Queue(query, createArgs(uuid.NewString(), input))
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return postgresdb.HandlePgError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return postgresdb.HandlePgError(err)
	}

	s.log.Debug("committed task batch", "count", len(inputs))
	return nil
}

func (s *Store) Update(ctx context.Context, taskID string, input taskrepo.UpdateTask) (taskrepo.Task, error) {
	query := `UPDATE tasks SET
			start_time = COALESCE(@start_time, start_time),
			end_time = COALESCE(@end_time, end_time),
			content = COALESCE(@content, content),
			tag = COALESCE(@tag, tag),
			completed = COALESCE(@completed, completed)
		WHERE task_id = @task_id
		RETURNING task_id, start_time, end_time, content, tag, completed, task_date, user_id`

	args := pgx.NamedArgs{
		"task_id":    taskID,
		"start_time": input.Time,
		"end_time":   input.EndTime,
		"content":    input.Content,
		"tag":        input.Tag,
		"completed":  input.Completed,
	}

	rows, err := s.pool.Query(ctx, query, args)
	if err != nil {
		return taskrepo.Task{}, postgresdb.HandlePgError(err)
	}
	defer rows.Close()

	record, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[taskrepo.Task])
	if err != nil {
		if postgresdb.HandlePgError(err) == postgresdb.ErrDBNotFound {
			return taskrepo.Task{}, taskrepo.ErrNotFound
		}
		return taskrepo.Task{}, postgresdb.HandlePgError(err)
	}
	return record, nil
}

// Delete hard-deletes the task document.
func (s *Store) Delete(ctx context.Context, taskID string) error {
	query := `DELETE FROM tasks WHERE task_id = @task_id`

	tag, err := s.pool.Exec(ctx, query, pgx.NamedArgs{"task_id": taskID})
	if err != nil {
		return postgresdb.HandlePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return taskrepo.ErrNotFound
	}
	return nil
}

// Watch delivers an initial snapshot, then re-queries on the poll
// interval and pushes a fresh snapshot whenever the result set changed.
// The channel closes when ctx is canceled.
func (s *Store) Watch(ctx context.Context, filter taskrepo.TaskFilter) (<-chan []taskrepo.Task, error) {
	initial, err := s.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("watch initial query: %w", err)
	}

	out := make(chan []taskrepo.Task, 1)
	out <- initial

	go func() {
		defer close(out)

		last := initial
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snapshot, err := s.Query(ctx, filter)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					s.log.Error("watch re-query failed", "error", err)
					continue
				}
				if equalTasks(last, snapshot) {
					continue
				}
				last = snapshot
				select {
				case out <- snapshot:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func createArgs(id string, input taskrepo.CreateTask) pgx.NamedArgs {
	return pgx.NamedArgs{
		"task_id":    id,
		"start_time": input.Time,
		"end_time":   input.EndTime,
		"content":    input.Content,
		"tag":        input.Tag,
		"completed":  input.Completed,
		"task_date":  input.Date,
		"user_id":    input.UserID,
	}
}

func equalTasks(a, b []taskrepo.Task) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID ||
			a[i].Time != b[i].Time ||
			a[i].Content != b[i].Content ||
			a[i].Tag != b[i].Tag ||
			a[i].Completed != b[i].Completed ||
			a[i].Date != b[i].Date {
			return false
		}
		ae, be := a[i].EndTime, b[i].EndTime
		if (ae == nil) != (be == nil) || (ae != nil && *ae != *be) {
			return false
		}
	}
	return true
}
