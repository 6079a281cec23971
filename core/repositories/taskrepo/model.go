package taskrepo

import (
	"fmt"
	"sort"
	"time"

	"github.com/jrazmi/lexprep/sdk/validation"
)

// Tag values the UI understands. The column is free text, but the parser
// and forms only ever produce these.
const (
	TagSchool   = "School"
	TagStudy    = "Study"
	TagChat     = "Chat"
	TagBreak    = "Break"
	TagCoaching = "Coaching"
	TagOther    = "Other"
)

// Tags lists the known tags in display order.
var Tags = []string{TagStudy, TagSchool, TagChat, TagBreak, TagCoaching, TagOther}

// Task is one schedule entry. Time is an HH:MM 24-hour string and Date a
// YYYY-MM-DD calendar date; EndTime is optional, an absent end means an
// implicit 60-minute duration. UserID is set only for remote-backed tasks.
type Task struct {
	ID        string  `json:"id" db:"task_id"`
	Time      string  `json:"time" db:"start_time"`
	EndTime   *string `json:"endTime,omitempty" db:"end_time"`
	Content   string  `json:"content" db:"content"`
	Tag       string  `json:"tag" db:"tag"`
	Completed bool    `json:"completed" db:"completed"`
	Date      string  `json:"date" db:"task_date"`
	UserID    *string `json:"userId,omitempty" db:"user_id"`
}

// CreateTask contains the fields for creating a new task. The id is
// assigned by the store.
type CreateTask struct {
	Time      string  `json:"time"`
	EndTime   *string `json:"endTime,omitempty"`
	Content   string  `json:"content"`
	Tag       string  `json:"tag"`
	Completed bool    `json:"completed"`
	Date      string  `json:"date"`
	UserID    *string `json:"userId,omitempty"`
}

// UpdateTask contains optional fields for a partial update.
type UpdateTask struct {
	Time      *string `json:"time,omitempty"`
	EndTime   *string `json:"endTime,omitempty"`
	Content   *string `json:"content,omitempty"`
	Tag       *string `json:"tag,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

// TaskFilter holds the fields a query can be filtered on.
type TaskFilter struct {
	UserID *string
	Date   *string
}

// StartAt returns the task's start instant on its calendar date in loc.
func (t Task) StartAt(loc *time.Location) (time.Time, error) {
	return clockInstant(t.Date, t.Time, loc)
}

// EndAt returns the effective end instant: the end time when present,
// otherwise start plus 60 minutes.
func (t Task) EndAt(loc *time.Location) (time.Time, error) {
	if t.EndTime != nil {
		return clockInstant(t.Date, *t.EndTime, loc)
	}
	start, err := t.StartAt(loc)
	if err != nil {
		return time.Time{}, err
	}
	return start.Add(60 * time.Minute), nil
}

func clockInstant(date, clock string, loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing task date %q: %w", date, err)
	}
	h, m, ok := validation.SplitClockTime(clock)
	if !ok {
		return time.Time{}, fmt.Errorf("parsing task time %q", clock)
	}
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute), nil
}

// SortByTime orders tasks by start time ascending, in place. Display and
// storage both rely on this ordering.
func SortByTime(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Time < tasks[j].Time
	})
}
