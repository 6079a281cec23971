// Package taskservice is the single source of truth for the current
// day's task list. It abstracts over two backends: the remote per-user
// document store and the device-local store, switching whenever the
// identity or the guest override changes.
package taskservice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jrazmi/lexprep/core/identity"
	"github.com/jrazmi/lexprep/core/repositories/taskrepo"
	"github.com/jrazmi/lexprep/core/repositories/taskrepo/stores/tasklocalstore"
	"github.com/jrazmi/lexprep/sdk/logger"
	"github.com/jrazmi/lexprep/sdk/validation"
)

// Set of error values for task service operations.
var (
	ErrNoIdentity    = errors.New("no signed-in identity")
	ErrNoRemote      = errors.New("remote backend not configured")
	ErrInvalidImport = errors.New("invalid import payload")
)

// errClearDelay is how long a surfaced error message stays up before it
// auto-clears.
const errClearDelay = 4 * time.Second

// Backend identifies which store currently backs the task list. The
// three-way split makes "signed in but still on local data" a first
// class state instead of two interacting booleans.
type Backend int

const (
	// BackendLocalGuest: no identity; all data device-local.
	BackendLocalGuest Backend = iota
	// BackendLocalOverride: identity present, but the user has not
	// migrated yet; device-local data stays active.
	BackendLocalOverride
	// BackendRemote: identity present and active; the per-user document
	// store backs the list.
	BackendRemote
)

func (b Backend) Local() bool {
	return b != BackendRemote
}

func (b Backend) String() string {
	switch b {
	case BackendLocalGuest:
		return "local-guest"
	case BackendLocalOverride:
		return "local-override"
	case BackendRemote:
		return "remote"
	default:
		return fmt.Sprintf("backend(%d)", int(b))
	}
}

// Listener observes task list changes.
type Listener func(tasks []taskrepo.Task)

// Service owns the reactive task list and every mutation path into it.
type Service struct {
	log        *logger.Logger
	remote     *taskrepo.Repository // nil when no remote is configured
	local      *taskrepo.Repository
	localStore *tasklocalstore.Store
	exportDir  string

	mu          sync.Mutex
	ident       *identity.Identity
	override    bool // guest override; starts true so first paint is instant
	tasks       []taskrepo.Task
	loading     bool
	errMsg      string
	errTimer    *time.Timer
	watchCancel context.CancelFunc
	// watchGen invalidates in-flight snapshot deliveries from a
	// superseded subscription.
	watchGen  int
	listeners []Listener

	// syncPromptShown is session-scoped: the sync offer appears at most
	// once per process.
	syncPromptShown bool

	now func() time.Time
}

// Options configures the service.
type Options struct {
	ExportDir string `env:"EXPORT_DIR" default:"."`
}

// New builds a Service. remote may be nil, which pins the service to the
// local backend regardless of identity.
func New(log *logger.Logger, remote *taskrepo.Repository, localStore *tasklocalstore.Store, opts Options) *Service {
	exportDir := opts.ExportDir
	if exportDir == "" {
		exportDir = "."
	}
	return &Service{
		log:        log,
		remote:     remote,
		local:      taskrepo.NewRepository(log, localStore),
		localStore: localStore,
		exportDir:  exportDir,
		override:   true,
		now:        time.Now,
	}
}

// WithClock overrides the service clock. Tests use a fixed instant.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// Backend returns the currently selected backend.
func (s *Service) Backend() Backend {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backendLocked()
}

func (s *Service) backendLocked() Backend {
	switch {
	case s.ident == nil:
		return BackendLocalGuest
	case s.override || s.remote == nil:
		return BackendLocalOverride
	default:
		return BackendRemote
	}
}

// GuestMode reports whether the local backend is active, either because
// nobody is signed in or because the override is set.
func (s *Service) GuestMode() bool {
	return s.Backend().Local()
}

// Loading reports whether the initial read for the active backend is in
// flight.
func (s *Service) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// HasLocalData reports whether the device store holds any tasks, on any
// date.
func (s *Service) HasLocalData() bool {
	return s.localStore.HasData()
}

// Tasks returns the current day's task list, sorted by start time.
func (s *Service) Tasks() []taskrepo.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]taskrepo.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// OnChange registers a listener for task list changes.
func (s *Service) OnChange(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// SetIdentity records the signed-in identity (nil for guest) and
// re-evaluates the backend. Signing out always reverts to guest mode.
func (s *Service) SetIdentity(ctx context.Context, ident *identity.Identity) {
	s.mu.Lock()
	s.ident = ident
	if ident == nil {
		s.override = true
	}
	s.mu.Unlock()

	s.Subscribe(ctx)
}

// SetGuestMode toggles the explicit override that keeps a signed-in user
// on the local backend. Enabling it re-reads local data immediately.
func (s *Service) SetGuestMode(ctx context.Context, guest bool) {
	s.mu.Lock()
	s.override = guest
	s.mu.Unlock()

	s.Subscribe(ctx)
}

// Subscribe (re-)establishes the live view of today's tasks for the
// active backend. Any previous remote watch is fully torn down before
// the new read path starts, so two subscriptions are never active at
// once. A snapshot the old watch already pulled off its channel carries
// a stale generation and is dropped on delivery.
func (s *Service) Subscribe(ctx context.Context) {
	s.mu.Lock()
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	s.watchGen++
	gen := s.watchGen
	backend := s.backendLocked()
	ident := s.ident
	s.loading = true
	s.mu.Unlock()

	s.log.Info("subscribing task view", "backend", backend.String())

	if backend != BackendRemote {
		s.readLocal(ctx)
		return
	}

	watchCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.watchCancel = cancel
	s.mu.Unlock()

	filter := taskrepo.TaskFilter{
		UserID: validation.StringPtr(ident.UID),
		Date:   validation.StringPtr(s.today()),
	}
	snapshots, err := s.remote.Watch(watchCtx, filter)
	if err != nil {
		cancel()
		s.fail(err, "Failed to load tasks from the cloud")
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
		return
	}

	go func() {
		for snapshot := range snapshots {
			s.applyWatch(gen, snapshot)
		}
	}()
}

// applyWatch delivers a watch snapshot unless the subscription that
// produced it has been superseded by a newer Subscribe.
func (s *Service) applyWatch(gen int, records []taskrepo.Task) {
	taskrepo.SortByTime(records)

	s.mu.Lock()
	if gen != s.watchGen {
		s.mu.Unlock()
		return
	}
	s.tasks = records
	s.loading = false
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(records)
	}
}

// readLocal performs the one-shot local read of today's tasks.
func (s *Service) readLocal(ctx context.Context) {
	records, err := s.local.Query(ctx, taskrepo.TaskFilter{Date: validation.StringPtr(s.today())})
	if err != nil {
		s.fail(err, "Failed to read local tasks")
		records = nil
	}
	s.setTasks(records)
}

// AddTask creates a single task on the active backend. The remote path
// stamps the current identity; the local path assigns a device-local id.
func (s *Service) AddTask(ctx context.Context, input taskrepo.CreateTask) error {
	backend, ident := s.snapshot()

	if backend == BackendRemote {
		input.UserID = validation.StringPtr(ident.UID)
		if _, err := s.remote.Create(ctx, input); err != nil {
			return s.fail(err, "Failed to add task")
		}
		s.refreshRemote(ctx, ident)
		return nil
	}

	if _, err := s.local.Create(ctx, input); err != nil {
		return s.fail(err, "Failed to add task")
	}
	s.readLocal(ctx)
	return nil
}

// AddTasks bulk-creates parsed routine tasks on the active backend.
func (s *Service) AddTasks(ctx context.Context, inputs []taskrepo.CreateTask) error {
	if len(inputs) == 0 {
		return nil
	}
	backend, ident := s.snapshot()

	if backend == BackendRemote {
		for i := range inputs {
			inputs[i].UserID = validation.StringPtr(ident.UID)
		}
		if err := s.remote.CreateBatch(ctx, inputs); err != nil {
			return s.fail(err, "Failed to save routine")
		}
		s.refreshRemote(ctx, ident)
		return nil
	}

	if err := s.local.CreateBatch(ctx, inputs); err != nil {
		return s.fail(err, "Failed to save routine")
	}
	s.readLocal(ctx)
	return nil
}

// UpdateTask patches the identified task's fields on the active backend.
func (s *Service) UpdateTask(ctx context.Context, taskID string, input taskrepo.UpdateTask) error {
	backend, ident := s.snapshot()

	if backend == BackendRemote {
		if _, err := s.remote.Update(ctx, taskID, input); err != nil {
			return s.fail(err, "Failed to update task")
		}
		s.refreshRemote(ctx, ident)
		return nil
	}

	if _, err := s.local.Update(ctx, taskID, input); err != nil {
		return s.fail(err, "Failed to update task")
	}
	s.readLocal(ctx)
	return nil
}

// DeleteTask removes the task from the active backend.
func (s *Service) DeleteTask(ctx context.Context, taskID string) error {
	backend, ident := s.snapshot()

	if backend == BackendRemote {
		if err := s.remote.Delete(ctx, taskID); err != nil {
			return s.fail(err, "Failed to delete task")
		}
		s.refreshRemote(ctx, ident)
		return nil
	}

	if err := s.local.Delete(ctx, taskID); err != nil {
		return s.fail(err, "Failed to delete task")
	}
	s.readLocal(ctx)
	return nil
}

// SyncLocalToCloud bulk-inserts the entire local task set to the remote
// backend and, only after every chunk commits, clears local storage and
// switches to the remote backend. A failed chunk leaves local data
// intact.
func (s *Service) SyncLocalToCloud(ctx context.Context) error {
	s.mu.Lock()
	ident := s.ident
	s.mu.Unlock()

	if ident == nil {
		return s.fail(ErrNoIdentity, "Sign in before syncing to the cloud")
	}
	if s.remote == nil {
		return s.fail(ErrNoRemote, "Cloud backend is not configured")
	}

	all, err := s.localStore.All()
	if err != nil {
		return s.fail(err, "Failed to read local tasks")
	}
	if len(all) == 0 {
		s.SetGuestMode(ctx, false)
		return nil
	}

	inputs := inputsFromTasks(all, ident.UID)

	if err := s.remote.CreateBatch(ctx, inputs); err != nil {
		// Local data stays untouched; the worst case is duplicate remote
		// rows on retry, which last-write-wins tolerates.
		return s.fail(err, "Failed to sync data to cloud")
	}

	if err := s.localStore.Clear(); err != nil {
		return s.fail(err, "Synced, but clearing local data failed")
	}

	s.log.Info("synced local tasks to cloud", "count", len(inputs))
	s.SetGuestMode(ctx, false)
	return nil
}

// ClearLocalData erases the device store's task set. In local mode the
// in-memory list clears immediately as well.
func (s *Service) ClearLocalData() error {
	if err := s.localStore.Clear(); err != nil {
		return s.fail(err, "Failed to clear local data")
	}
	if s.Backend().Local() {
		s.setTasks(nil)
	}
	return nil
}

// ShouldOfferSync reports whether the one-per-session sync offer should
// be shown: a signed-in user still on local data that exists.
func (s *Service) ShouldOfferSync() bool {
	s.mu.Lock()
	offered := s.syncPromptShown
	backend := s.backendLocked()
	s.mu.Unlock()
	return !offered && backend == BackendLocalOverride && s.HasLocalData()
}

// MarkSyncOffered records that the sync offer was shown this session.
func (s *Service) MarkSyncOffered() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncPromptShown = true
}

// LastError returns the displayable message from the most recent failed
// operation, or "". Messages auto-clear after a few seconds.
func (s *Service) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// Close tears down any active remote watch.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
}

func (s *Service) snapshot() (Backend, *identity.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backendLocked(), s.ident
}

func (s *Service) today() string {
	s.mu.Lock()
	now := s.now
	s.mu.Unlock()
	return validation.DateOf(now())
}

// refreshRemote re-queries the remote backend immediately after a
// mutation instead of waiting for the watch poll to catch up.
func (s *Service) refreshRemote(ctx context.Context, ident *identity.Identity) {
	records, err := s.remote.Query(ctx, taskrepo.TaskFilter{
		UserID: validation.StringPtr(ident.UID),
		Date:   validation.StringPtr(s.today()),
	})
	if err != nil {
		// The watch will self-heal on its next successful poll.
		s.log.Warn("post-mutation refresh failed", "error", err)
		return
	}
	s.setTasks(records)
}

func (s *Service) setTasks(records []taskrepo.Task) {
	taskrepo.SortByTime(records)

	s.mu.Lock()
	s.tasks = records
	s.loading = false
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(records)
	}
}

// fail records a displayable error message, arms its auto-clear, and
// returns the wrapped error so callers can react too.
func (s *Service) fail(err error, msg string) error {
	s.mu.Lock()
	s.errMsg = msg
	if s.errTimer != nil {
		s.errTimer.Stop()
	}
	s.errTimer = time.AfterFunc(errClearDelay, func() {
		s.mu.Lock()
		if s.errMsg == msg {
			s.errMsg = ""
		}
		s.mu.Unlock()
	})
	s.mu.Unlock()

	s.log.Error(msg, "error", err)
	return fmt.Errorf("%s: %w", msg, err)
}

func inputsFromTasks(tasks []taskrepo.Task, uid string) []taskrepo.CreateTask {
	inputs := make([]taskrepo.CreateTask, len(tasks))
	for i, t := range tasks {
		inputs[i] = taskrepo.CreateTask{
			Time:      t.Time,
			EndTime:   t.EndTime,
			Content:   t.Content,
			Tag:       t.Tag,
			Completed: t.Completed,
			Date:      t.Date,
			UserID:    validation.StringPtr(uid),
		}
	}
	return inputs
}
