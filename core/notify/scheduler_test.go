package notify_test

import (
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/jrazmi/lexprep/core/notify"
	"github.com/jrazmi/lexprep/core/repositories/taskrepo"
	"github.com/jrazmi/lexprep/infrastructure/localstore"
	"github.com/jrazmi/lexprep/sdk/logger"
	"github.com/jrazmi/lexprep/sdk/validation"
)

type stubNotifier struct {
	mu         sync.Mutex
	supported  bool
	permission notify.Permission
	sent       []notify.Notification
}

func (n *stubNotifier) Supported() bool               { return n.supported }
func (n *stubNotifier) Permission() notify.Permission { return n.permission }

func (n *stubNotifier) Send(msg notify.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func grantedNotifier() *stubNotifier {
	return &stubNotifier{supported: true, permission: notify.PermissionGranted}
}

// fixedNow is mid-morning so tasks later in the day are in the future.
var fixedNow = time.Date(2025, 9, 1, 9, 0, 0, 0, time.Local)

func today(clock string) taskrepo.Task {
	return taskrepo.Task{
		ID:      "t-" + clock,
		Time:    clock,
		Content: "revision block",
		Tag:     taskrepo.TagStudy,
		Date:    validation.DateOf(fixedNow),
	}
}

func newScheduler(n notify.Notifier, settings notify.Settings) *notify.Scheduler {
	return notify.NewScheduler(logger.NewDiscard(), n, settings).
		WithClock(func() time.Time { return fixedNow })
}

func TestScheduleArmsReminderAndStart(t *testing.T) {
	is := is.New(t)

	s := newScheduler(grantedNotifier(), notify.Settings{Enabled: true, ReminderOffset: 5})
	s.Schedule([]taskrepo.Task{today("10:00")})
	defer s.ClearAll()

	is.Equal(s.Armed(), 2) // one reminder, one start alarm
}

func TestScheduleIsIdempotent(t *testing.T) {
	is := is.New(t)

	s := newScheduler(grantedNotifier(), notify.Settings{Enabled: true, ReminderOffset: 5})
	tasks := []taskrepo.Task{today("10:00"), today("11:30")}

	s.Schedule(tasks)
	s.Schedule(tasks)
	defer s.ClearAll()

	is.Equal(s.Armed(), 4) // re-scheduling cleared the first batch
}

func TestScheduleSkipsPastTasks(t *testing.T) {
	is := is.New(t)

	s := newScheduler(grantedNotifier(), notify.Settings{Enabled: true, ReminderOffset: 5})
	s.Schedule([]taskrepo.Task{today("08:00")})

	is.Equal(s.Armed(), 0) // started an hour ago, nothing armed
}

func TestScheduleSkipsCompletedAndOtherDates(t *testing.T) {
	is := is.New(t)

	done := today("10:00")
	done.Completed = true
	tomorrow := today("10:00")
	tomorrow.Date = "2025-09-02"

	s := newScheduler(grantedNotifier(), notify.Settings{Enabled: true, ReminderOffset: 5})
	s.Schedule([]taskrepo.Task{done, tomorrow})

	is.Equal(s.Armed(), 0)
}

func TestScheduleSkipsElapsedReminder(t *testing.T) {
	is := is.New(t)

	// Task starts in 3 minutes; a 5-minute reminder would be in the past,
	// so only the start alarm is armed.
	s := newScheduler(grantedNotifier(), notify.Settings{Enabled: true, ReminderOffset: 5})
	s.Schedule([]taskrepo.Task{today("09:03")})
	defer s.ClearAll()

	is.Equal(s.Armed(), 1)
}

func TestScheduleGatesOnCapability(t *testing.T) {
	cases := []struct {
		name     string
		notifier *stubNotifier
		settings notify.Settings
	}{
		{"disabled in settings", grantedNotifier(), notify.Settings{Enabled: false, ReminderOffset: 5}},
		{"permission denied", &stubNotifier{supported: true, permission: notify.PermissionDenied}, notify.Settings{Enabled: true, ReminderOffset: 5}},
		{"unsupported platform", &stubNotifier{supported: false, permission: notify.PermissionGranted}, notify.Settings{Enabled: true, ReminderOffset: 5}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			is := is.New(t)
			s := newScheduler(c.notifier, c.settings)
			s.Schedule([]taskrepo.Task{today("10:00")})
			is.Equal(s.Armed(), 0)
		})
	}
}

func TestReminderFires(t *testing.T) {
	is := is.New(t)

	n := grantedNotifier()
	// Clock fixed just before start so the armed durations are tiny.
	now := time.Date(2025, 9, 1, 9, 59, 59, int(900*time.Millisecond), time.Local)
	s := notify.NewScheduler(logger.NewDiscard(), n, notify.Settings{Enabled: true, ReminderOffset: 5}).
		WithClock(func() time.Time { return now })

	task := taskrepo.Task{ID: "t1", Time: "10:00", Content: "mock exam", Tag: taskrepo.TagStudy, Date: "2025-09-01"}
	s.Schedule([]taskrepo.Task{task})
	defer s.ClearAll()

	deadline := time.After(2 * time.Second)
	for {
		n.mu.Lock()
		count := len(n.sent)
		n.mu.Unlock()
		if count >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("start alarm never fired")
		case <-time.After(10 * time.Millisecond):
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	is.Equal(n.sent[0].Title, "🚀 Task Starting Now")
	is.Equal(n.sent[0].Body, "mock exam")
	is.True(n.sent[0].RequireInteraction)
	is.True(n.sent[0].Tag != "")
}

func TestConcurrentScheduleAndSettingsUpdates(t *testing.T) {
	is := is.New(t)

	// The task watch reschedules from its own goroutine while the UI
	// changes settings; interleaved cancel/arm cycles must never stack
	// alarms.
	s := newScheduler(grantedNotifier(), notify.Settings{Enabled: true, ReminderOffset: 5})
	tasks := []taskrepo.Task{today("10:00"), today("11:30")}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				s.Schedule(tasks)
			}
		}()
		go func(offset int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				s.UpdateSettings(notify.Settings{Enabled: true, ReminderOffset: offset})
			}
		}(notify.ReminderOffsetOptions[i])
	}
	wg.Wait()

	s.Schedule(tasks)
	defer s.ClearAll()

	is.Equal(s.Armed(), 4) // exactly one reminder and one start alarm per task
}

func TestSettingsStoreRoundTrip(t *testing.T) {
	is := is.New(t)

	kv := localstore.NewMemory()
	store := notify.NewSettingsStore(logger.NewDiscard(), kv)

	is.Equal(store.Load(), notify.DefaultSettings)

	want := notify.Settings{Enabled: false, ReminderOffset: 15}
	is.NoErr(store.Save(want))
	is.Equal(store.Load(), want)

	is.True(!store.HasSeenPrompt())
	is.NoErr(store.MarkPromptSeen())
	is.True(store.HasSeenPrompt())
}
