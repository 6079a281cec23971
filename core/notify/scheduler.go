// Package notify arms local, device-only reminder alarms for upcoming
// tasks. The platform notification capability is consumed through the
// Notifier port; capability or permission problems degrade silently to
// "no notifications armed".
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/jrazmi/lexprep/core/repositories/taskrepo"
	"github.com/jrazmi/lexprep/sdk/cryptids"
	"github.com/jrazmi/lexprep/sdk/logger"
	"github.com/jrazmi/lexprep/sdk/validation"
)

// Permission mirrors the platform notification permission states.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// Notification is the payload handed to the platform.
type Notification struct {
	Title string
	Body  string
	// Tag is a dedup/group key, unique per firing.
	Tag string
	// RequireInteraction keeps the notification up until acted on.
	RequireInteraction bool
	// DismissAfter auto-closes the notification; reminders use a shorter
	// delay than start alarms.
	DismissAfter time.Duration
}

// Notifier is the platform notification capability.
type Notifier interface {
	Supported() bool
	Permission() Permission
	Send(n Notification) error
}

const (
	reminderDismiss = 5 * time.Second
	startDismiss    = 10 * time.Second
)

// Scheduler computes and arms the alarm set for the current task list.
// Rescheduling always cancels the previous batch first, so two calls
// with the same list arm the same number of timers as one. The task
// watch and the UI both call in, so the mutex serializes every
// cancel-and-rearm cycle.
type Scheduler struct {
	log      *logger.Logger
	notifier Notifier
	timers   *TimerSet

	mu       sync.Mutex
	settings Settings

	// now is injected for tests.
	now func() time.Time
}

func NewScheduler(log *logger.Logger, notifier Notifier, settings Settings) *Scheduler {
	return &Scheduler{
		log:      log,
		notifier: notifier,
		timers:   NewTimerSet(),
		settings: settings,
		now:      time.Now,
	}
}

// WithClock overrides the scheduler's clock. Tests use a fixed instant.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// UpdateSettings replaces the active settings. The caller re-runs
// Schedule afterwards; settings alone never fire anything.
func (s *Scheduler) UpdateSettings(settings Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

// Schedule re-arms the alarm set for tasks. Completed tasks, tasks on
// other dates, and tasks already started are skipped; a reminder alarm
// is armed only when its instant is still in the future.
func (s *Scheduler) Schedule(tasks []taskrepo.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.timers.CancelAll()

	if !s.settings.Enabled || !s.notifier.Supported() || s.notifier.Permission() != PermissionGranted {
		return
	}

	now := s.now()
	today := validation.DateOf(now)
	offset := time.Duration(s.settings.ReminderOffset) * time.Minute
	armed := 0

	for _, task := range tasks {
		if task.Date != today || task.Completed {
			continue
		}

		start, err := task.StartAt(now.Location())
		if err != nil {
			s.log.Warn("skipping task with unreadable time", "id", task.ID, "error", err)
			continue
		}
		if !start.After(now) {
			continue
		}

		content := task.Content
		startClock := formatClock12h(task.Time)

		if reminderAt := start.Add(-offset); reminderAt.After(now) {
			s.timers.Arm(reminderAt.Sub(now), func() {
				s.send(Notification{
					Title:        "⏰ Upcoming Task",
					Body:         content + " at " + startClock,
					Tag:          firingTag("reminder"),
					DismissAfter: reminderDismiss,
				})
			})
			armed++
		}

		s.timers.Arm(start.Sub(now), func() {
			s.send(Notification{
				Title:              "🚀 Task Starting Now",
				Body:               content,
				Tag:                firingTag("start"),
				RequireInteraction: true,
				DismissAfter:       startDismiss,
			})
		})
		armed++
	}

	s.log.Debug("armed task alarms", "count", armed)
}

// ClearAll cancels every armed alarm.
func (s *Scheduler) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers.CancelAll()
}

// Armed returns the number of alarms pending from the last Schedule.
func (s *Scheduler) Armed() int {
	return s.timers.Len()
}

func (s *Scheduler) send(n Notification) {
	if err := s.notifier.Send(n); err != nil {
		s.log.Error("sending notification failed", "title", n.Title, "error", err)
	}
}

// firingTag builds a dedup tag unique per firing.
func firingTag(kind string) string {
	id, err := cryptids.GenerateID()
	if err != nil {
		id = "untagged"
	}
	return "task-" + kind + "-" + id
}

// formatClock12h renders an HH:MM 24-hour string as "h:MM AM/PM".
func formatClock12h(clock string) string {
	h, m, ok := validation.SplitClockTime(clock)
	if !ok {
		return clock
	}
	period := "AM"
	if h >= 12 {
		period = "PM"
	}
	display := h
	switch {
	case h > 12:
		display = h - 12
	case h == 0:
		display = 12
	}
	return fmt.Sprintf("%d:%02d %s", display, m, period)
}
