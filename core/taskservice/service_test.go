package taskservice_test

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/jrazmi/lexprep/core/identity"
	"github.com/jrazmi/lexprep/core/repositories/taskrepo"
	"github.com/jrazmi/lexprep/core/repositories/taskrepo/stores/tasklocalstore"
	"github.com/jrazmi/lexprep/core/taskservice"
	"github.com/jrazmi/lexprep/infrastructure/localstore"
	"github.com/jrazmi/lexprep/sdk/logger"
	"github.com/jrazmi/lexprep/sdk/validation"
)

var fixedNow = time.Date(2025, 9, 1, 9, 0, 0, 0, time.Local)

const fixedDate = "2025-09-01"

// stubRemote is an in-memory Storer standing in for the remote document
// store.
type stubRemote struct {
	mu     sync.Mutex
	tasks  []taskrepo.Task
	nextID int

	batchCalls     int
	failBatchAfter int // fail on this call number (1-based); 0 disables

	// watchCh, when set, is handed out as the watch stream so tests
	// control exactly when snapshots arrive.
	watchCh chan []taskrepo.Task
}

func (s *stubRemote) Query(ctx context.Context, filter taskrepo.TaskFilter) ([]taskrepo.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []taskrepo.Task
	for _, t := range s.tasks {
		if filter.Date != nil && t.Date != *filter.Date {
			continue
		}
		if filter.UserID != nil && (t.UserID == nil || *t.UserID != *filter.UserID) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *stubRemote) Create(ctx context.Context, input taskrepo.CreateTask) (taskrepo.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	record := taskrepo.Task{
		ID:        "r" + strconv.Itoa(s.nextID),
		Time:      input.Time,
		EndTime:   input.EndTime,
		Content:   input.Content,
		Tag:       input.Tag,
		Completed: input.Completed,
		Date:      input.Date,
		UserID:    input.UserID,
	}
	s.tasks = append(s.tasks, record)
	return record, nil
}

func (s *stubRemote) CreateBatch(ctx context.Context, inputs []taskrepo.CreateTask) error {
	s.mu.Lock()
	s.batchCalls++
	fail := s.failBatchAfter != 0 && s.batchCalls >= s.failBatchAfter
	s.mu.Unlock()
	if fail {
		return fmt.Errorf("simulated batch commit failure")
	}
	for _, input := range inputs {
		if _, err := s.Create(ctx, input); err != nil {
			return err
		}
	}
	return nil
}

func (s *stubRemote) Update(ctx context.Context, taskID string, input taskrepo.UpdateTask) (taskrepo.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID != taskID {
			continue
		}
		if input.Completed != nil {
			s.tasks[i].Completed = *input.Completed
		}
		if input.Content != nil {
			s.tasks[i].Content = *input.Content
		}
		if input.Time != nil {
			s.tasks[i].Time = *input.Time
		}
		return s.tasks[i], nil
	}
	return taskrepo.Task{}, taskrepo.ErrNotFound
}

func (s *stubRemote) Delete(ctx context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID == taskID {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			return nil
		}
	}
	return taskrepo.ErrNotFound
}

func (s *stubRemote) Watch(ctx context.Context, filter taskrepo.TaskFilter) (<-chan []taskrepo.Task, error) {
	if s.watchCh != nil {
		return s.watchCh, nil
	}
	snapshot, err := s.Query(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make(chan []taskrepo.Task, 1)
	out <- snapshot
	close(out)
	return out, nil
}

type fixture struct {
	svc    *taskservice.Service
	remote *stubRemote
	kv     *localstore.Memory
	local  *tasklocalstore.Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	log := logger.NewDiscard()
	kv := localstore.NewMemory()
	local := tasklocalstore.NewStore(log, kv)
	remote := &stubRemote{}
	svc := taskservice.New(log, taskrepo.NewRepository(log, remote), local, taskservice.Options{ExportDir: t.TempDir()}).
		WithClock(func() time.Time { return fixedNow })
	return fixture{svc: svc, remote: remote, kv: kv, local: local}
}

func create(clock, content string) taskrepo.CreateTask {
	return taskrepo.CreateTask{
		Time:    clock,
		Content: content,
		Tag:     taskrepo.TagStudy,
		Date:    fixedDate,
	}
}

func TestLocalAddKeepsSortedUniqueList(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	ctx := context.Background()

	f.svc.Subscribe(ctx)
	is.Equal(len(f.svc.Tasks()), 0)

	is.NoErr(f.svc.AddTask(ctx, create("14:00", "mock exam")))
	is.NoErr(f.svc.AddTask(ctx, create("08:00", "school")))
	is.NoErr(f.svc.AddTask(ctx, create("10:30", "revision")))

	tasks := f.svc.Tasks()
	is.Equal(len(tasks), 3)
	is.Equal(tasks[0].Time, "08:00")
	is.Equal(tasks[1].Time, "10:30")
	is.Equal(tasks[2].Time, "14:00")

	seen := map[string]bool{}
	for _, task := range tasks {
		is.True(task.ID != "")
		is.True(!seen[task.ID])
		seen[task.ID] = true
	}
}

func TestLocalUpdateAndDelete(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	ctx := context.Background()

	is.NoErr(f.svc.AddTask(ctx, create("09:30", "flashcards")))
	id := f.svc.Tasks()[0].ID

	is.NoErr(f.svc.UpdateTask(ctx, id, taskrepo.UpdateTask{Completed: validation.BoolPtr(true)}))
	is.True(f.svc.Tasks()[0].Completed)

	is.NoErr(f.svc.DeleteTask(ctx, id))
	is.Equal(len(f.svc.Tasks()), 0)
}

func TestLocalMutationPreservesOtherDates(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	ctx := context.Background()

	yesterday := create("08:00", "old notes")
	yesterday.Date = "2025-08-31"
	is.NoErr(f.svc.AddTask(ctx, yesterday))
	is.NoErr(f.svc.AddTask(ctx, create("10:00", "today's drill")))

	// Today's view has one task, but the store still holds both dates.
	is.Equal(len(f.svc.Tasks()), 1)
	all, err := f.local.All()
	is.NoErr(err)
	is.Equal(len(all), 2)
}

func TestBackendSwitching(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	ctx := context.Background()

	is.Equal(f.svc.Backend(), taskservice.BackendLocalGuest)
	is.True(f.svc.GuestMode())

	ident := &identity.Identity{UID: "u1"}
	f.svc.SetIdentity(ctx, ident)
	// Signing in alone keeps the local override active.
	is.Equal(f.svc.Backend(), taskservice.BackendLocalOverride)
	is.True(f.svc.GuestMode())

	f.remote.Create(ctx, taskrepo.CreateTask{
		Time: "11:00", Content: "cloud task", Tag: taskrepo.TagStudy,
		Date: fixedDate, UserID: validation.StringPtr("u1"),
	})

	f.svc.SetGuestMode(ctx, false)
	is.Equal(f.svc.Backend(), taskservice.BackendRemote)
	is.True(!f.svc.GuestMode())

	waitFor(t, func() bool {
		tasks := f.svc.Tasks()
		return len(tasks) == 1 && tasks[0].Content == "cloud task"
	})

	// Signing out reverts to guest mode and local data.
	f.svc.SetIdentity(ctx, nil)
	is.Equal(f.svc.Backend(), taskservice.BackendLocalGuest)
}

func TestStaleWatchSnapshotDroppedAfterBackendSwitch(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	ctx := context.Background()

	is.NoErr(f.svc.AddTask(ctx, create("08:00", "device task")))

	f.remote.watchCh = make(chan []taskrepo.Task, 1)
	f.svc.SetIdentity(ctx, &identity.Identity{UID: "u1"})
	f.svc.SetGuestMode(ctx, false)

	// Switch back to the device view, then a snapshot from the
	// torn-down cloud watch arrives late. It must not overwrite the
	// local view.
	f.svc.SetGuestMode(ctx, true)
	f.remote.watchCh <- []taskrepo.Task{{
		ID: "r9", Time: "11:00", Content: "cloud leftover",
		Tag: taskrepo.TagStudy, Date: fixedDate, UserID: validation.StringPtr("u1"),
	}}
	close(f.remote.watchCh)

	time.Sleep(50 * time.Millisecond)
	tasks := f.svc.Tasks()
	is.Equal(len(tasks), 1)
	is.Equal(tasks[0].Content, "device task")
}

func TestExportImportRoundTrip(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	ctx := context.Background()

	end := "15:00"
	task := create("14:00", "mock exam")
	task.EndTime = &end
	is.NoErr(f.svc.AddTask(ctx, task))
	is.NoErr(f.svc.AddTask(ctx, create("08:00", "school")))

	path, err := f.svc.ExportData()
	is.NoErr(err)
	is.True(len(path) > 0)

	// Import the export into a fresh, empty store.
	f2 := newFixture(t)
	f2.svc.Subscribe(ctx)

	bs := readFile(t, path)
	count, err := f2.svc.ImportData(ctx, bs)
	is.NoErr(err)
	is.Equal(count, 2)

	got := f2.svc.Tasks()
	is.Equal(len(got), 2)
	is.Equal(got[0].Time, "08:00")
	is.Equal(got[0].Content, "school")
	is.Equal(got[1].Time, "14:00")
	is.True(got[1].EndTime != nil)
	is.Equal(*got[1].EndTime, "15:00")
}

func TestImportRejectsMalformedPayloadEntirely(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	ctx := context.Background()

	is.NoErr(f.svc.AddTask(ctx, create("08:00", "existing")))

	// The second task is missing content, so nothing must be written.
	payload := `{"tasks":[
		{"time":"09:00","content":"ok","tag":"Study","completed":false,"date":"2025-09-01"},
		{"time":"10:00","content":"","tag":"Study","completed":false,"date":"2025-09-01"}
	]}`

	_, err := f.svc.ImportData(ctx, []byte(payload))
	is.True(err != nil)
	is.True(f.svc.LastError() != "")

	all, lerr := f.local.All()
	is.NoErr(lerr)
	is.Equal(len(all), 1) // only the pre-existing task
}

func TestImportRejectsMissingCompletedFlag(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	ctx := context.Background()

	// Absent "completed" must not be read as false.
	payload := `{"tasks":[{"time":"09:00","content":"ok","tag":"Study","date":"2025-09-01"}],"version":"1.0"}`
	_, err := f.svc.ImportData(ctx, []byte(payload))
	is.True(err != nil)

	all, lerr := f.local.All()
	is.NoErr(lerr)
	is.Equal(len(all), 0)
}

func TestImportRejectsNonArrayTasks(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)

	_, err := f.svc.ImportData(context.Background(), []byte(`{"exportDate":"x"}`))
	is.True(err != nil)
}

func TestImportIsAdditiveLocally(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	ctx := context.Background()

	is.NoErr(f.svc.AddTask(ctx, create("08:00", "existing")))

	payload := `{"tasks":[{"time":"09:00","content":"imported","tag":"Study","completed":false,"date":"2025-09-01"}],"version":"1.0"}`
	count, err := f.svc.ImportData(ctx, []byte(payload))
	is.NoErr(err)
	is.Equal(count, 1)
	is.Equal(len(f.svc.Tasks()), 2)
}

func TestSyncLocalToCloud(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	ctx := context.Background()

	is.NoErr(f.svc.AddTask(ctx, create("08:00", "school")))
	is.NoErr(f.svc.AddTask(ctx, create("14:00", "mock exam")))

	f.svc.SetIdentity(ctx, &identity.Identity{UID: "u1"})
	is.NoErr(f.svc.SyncLocalToCloud(ctx))

	// Local store cleared, backend flipped to remote, tasks stamped.
	is.True(!f.svc.HasLocalData())
	is.Equal(f.svc.Backend(), taskservice.BackendRemote)
	is.Equal(len(f.remote.tasks), 2)
	for _, task := range f.remote.tasks {
		is.True(task.UserID != nil)
		is.Equal(*task.UserID, "u1")
	}
}

func TestSyncRequiresIdentity(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)

	err := f.svc.SyncLocalToCloud(context.Background())
	is.True(err != nil)
}

func TestSyncFailureLeavesLocalIntact(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	ctx := context.Background()

	// More than one chunk's worth of tasks, with the second chunk's
	// commit failing partway through the sync.
	var inputs []taskrepo.CreateTask
	for i := 0; i < taskrepo.MaxBatchSize+1; i++ {
		inputs = append(inputs, create(fmt.Sprintf("%02d:%02d", i/60, i%60), "bulk "+strconv.Itoa(i)))
	}
	is.NoErr(f.svc.AddTasks(ctx, inputs))
	f.remote.failBatchAfter = 2

	f.svc.SetIdentity(ctx, &identity.Identity{UID: "u1"})
	err := f.svc.SyncLocalToCloud(ctx)
	is.True(err != nil)

	// The full original set is still on the device.
	all, lerr := f.local.All()
	is.NoErr(lerr)
	is.Equal(len(all), taskrepo.MaxBatchSize+1)
	is.True(f.svc.Backend().Local())
}

func TestClearLocalData(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	ctx := context.Background()

	is.NoErr(f.svc.AddTask(ctx, create("08:00", "school")))
	is.True(f.svc.HasLocalData())

	is.NoErr(f.svc.ClearLocalData())
	is.True(!f.svc.HasLocalData())
	is.Equal(len(f.svc.Tasks()), 0)
}

func TestShouldOfferSyncOncePerSession(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	ctx := context.Background()

	is.NoErr(f.svc.AddTask(ctx, create("08:00", "school")))
	is.True(!f.svc.ShouldOfferSync()) // not signed in

	f.svc.SetIdentity(ctx, &identity.Identity{UID: "u1"})
	is.True(f.svc.ShouldOfferSync())

	f.svc.MarkSyncOffered()
	is.True(!f.svc.ShouldOfferSync())
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatal("condition never met")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	bs, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return bs
}
