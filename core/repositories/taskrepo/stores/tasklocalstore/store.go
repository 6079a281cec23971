// Package tasklocalstore persists tasks in the device-local key-value
// store. The whole task set across all dates lives under a single key as
// one JSON array, so every mutation is a read-modify-write of the full
// set; this keeps other dates' tasks intact.
package tasklocalstore

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jrazmi/lexprep/core/repositories/taskrepo"
	"github.com/jrazmi/lexprep/infrastructure/localstore"
	"github.com/jrazmi/lexprep/sdk/logger"
)

type Store struct {
	log *logger.Logger
	kv  localstore.KV

	// entropyMu guards entropy; MonotonicEntropy is not safe for
	// concurrent readers.
	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

func NewStore(log *logger.Logger, kv localstore.KV) *Store {
	return &Store{
		log:     log,
		kv:      kv,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// newID returns a clock-based, locally-unique task id.
func (s *Store) newID() string {
	s.entropyMu.Lock()
	defer s.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *Store) Query(ctx context.Context, filter taskrepo.TaskFilter) ([]taskrepo.Task, error) {
	all, err := s.readAll()
	if err != nil {
		return nil, err
	}

	var out []taskrepo.Task
	for _, t := range all {
		if filter.Date != nil && t.Date != *filter.Date {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) Create(ctx context.Context, input taskrepo.CreateTask) (taskrepo.Task, error) {
	all, err := s.readAll()
	if err != nil {
		return taskrepo.Task{}, err
	}

	record := fromCreate(input)
	record.ID = s.newID()

	all = append(all, record)
	if err := s.writeAll(all); err != nil {
		return taskrepo.Task{}, err
	}
	return record, nil
}

func (s *Store) CreateBatch(ctx context.Context, inputs []taskrepo.CreateTask) error {
	all, err := s.readAll()
	if err != nil {
		return err
	}

	for _, input := range inputs {
		record := fromCreate(input)
		record.ID = s.newID()
		all = append(all, record)
	}
	return s.writeAll(all)
}

func (s *Store) Update(ctx context.Context, taskID string, input taskrepo.UpdateTask) (taskrepo.Task, error) {
	all, err := s.readAll()
	if err != nil {
		return taskrepo.Task{}, err
	}

	for i := range all {
		if all[i].ID != taskID {
			continue
		}
		applyUpdate(&all[i], input)
		if err := s.writeAll(all); err != nil {
			return taskrepo.Task{}, err
		}
		return all[i], nil
	}
	return taskrepo.Task{}, taskrepo.ErrNotFound
}

func (s *Store) Delete(ctx context.Context, taskID string) error {
	all, err := s.readAll()
	if err != nil {
		return err
	}

	kept := all[:0]
	found := false
	for _, t := range all {
		if t.ID == taskID {
			found = true
			continue
		}
		kept = append(kept, t)
	}
	if !found {
		return taskrepo.ErrNotFound
	}
	return s.writeAll(kept)
}

// Watch emits a single snapshot and closes. The local store has no push
// updates; the service re-reads after every mutation instead.
func (s *Store) Watch(ctx context.Context, filter taskrepo.TaskFilter) (<-chan []taskrepo.Task, error) {
	snapshot, err := s.Query(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := make(chan []taskrepo.Task, 1)
	out <- snapshot
	close(out)
	return out, nil
}

// All returns every persisted task across all dates. Export and
// local-to-cloud sync read the full set.
func (s *Store) All() ([]taskrepo.Task, error) {
	return s.readAll()
}

// HasData reports whether any task is persisted, on any date.
func (s *Store) HasData() bool {
	all, err := s.readAll()
	return err == nil && len(all) > 0
}

// Clear erases the persisted task set.
func (s *Store) Clear() error {
	if err := s.kv.Delete(localstore.KeyTasks); err != nil {
		return fmt.Errorf("clearing local tasks: %w", err)
	}
	s.log.Info("cleared local task data")
	return nil
}

func (s *Store) readAll() ([]taskrepo.Task, error) {
	bs, ok, err := s.kv.Get(localstore.KeyTasks)
	if err != nil {
		return nil, fmt.Errorf("reading local tasks: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var all []taskrepo.Task
	if err := json.Unmarshal(bs, &all); err != nil {
		return nil, fmt.Errorf("decoding local tasks: %w", err)
	}
	return all, nil
}

func (s *Store) writeAll(all []taskrepo.Task) error {
	bs, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("encoding local tasks: %w", err)
	}
	if err := s.kv.Set(localstore.KeyTasks, bs); err != nil {
		return fmt.Errorf("writing local tasks: %w", err)
	}
	return nil
}

func fromCreate(input taskrepo.CreateTask) taskrepo.Task {
	return taskrepo.Task{
		Time:      input.Time,
		EndTime:   input.EndTime,
		Content:   input.Content,
		Tag:       input.Tag,
		Completed: input.Completed,
		Date:      input.Date,
		UserID:    input.UserID,
	}
}

func applyUpdate(t *taskrepo.Task, input taskrepo.UpdateTask) {
	if input.Time != nil {
		t.Time = *input.Time
	}
	if input.EndTime != nil {
		t.EndTime = input.EndTime
	}
	if input.Content != nil {
		t.Content = *input.Content
	}
	if input.Tag != nil {
		t.Tag = *input.Tag
	}
	if input.Completed != nil {
		t.Completed = *input.Completed
	}
}
