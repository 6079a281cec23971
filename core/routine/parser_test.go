package routine_test

import (
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/jrazmi/lexprep/core/repositories/taskrepo"
	"github.com/jrazmi/lexprep/core/routine"
)

var now = time.Date(2025, 9, 1, 7, 0, 0, 0, time.Local)

func TestParseTimeRange(t *testing.T) {
	is := is.New(t)

	tasks := routine.Parse("8:00 AM – 2:00 PM → School time", now)
	is.Equal(len(tasks), 1)

	task := tasks[0]
	is.Equal(task.Time, "08:00")
	is.True(task.EndTime != nil)
	is.Equal(*task.EndTime, "14:00")
	is.Equal(task.Content, "School time")
	is.Equal(task.Tag, taskrepo.TagSchool)
	is.Equal(task.Completed, false)
	is.Equal(task.Date, "2025-09-01")
}

func TestParseStartOnly(t *testing.T) {
	is := is.New(t)

	tasks := routine.Parse("2:00 PM chilling", now)
	is.Equal(len(tasks), 1)
	is.Equal(tasks[0].Time, "14:00")
	is.Equal(tasks[0].EndTime, (*string)(nil))
}

func TestParseDropsLinesWithoutTimes(t *testing.T) {
	is := is.New(t)

	text := "🍂 Afternoon\n3:00 PM – 5:00 PM → Study session\njust vibes\n"
	tasks := routine.Parse(text, now)
	is.Equal(len(tasks), 1)
	is.Equal(tasks[0].Content, "Study session")
}

func TestParseNormalization(t *testing.T) {
	cases := []struct {
		name string
		line string
		want string
	}{
		{"noon stays twelve", "12:30 PM lunch", "12:30"},
		{"midnight wraps to zero", "12:15 AM revision", "00:15"},
		{"no period taken as 24h", "14:30 mock exam", "14:30"},
		{"pm adds twelve", "9:05 pm recap", "21:05"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			is := is.New(t)
			tasks := routine.Parse(c.line, now)
			is.Equal(len(tasks), 1)
			is.Equal(tasks[0].Time, c.want)
		})
	}
}

func TestParseRejectsOutOfRangeClock(t *testing.T) {
	is := is.New(t)

	// Minutes above 59 and normalized hours above 23 both drop the line.
	is.Equal(len(routine.Parse("8:75 AM warmup", now)), 0)
	is.Equal(len(routine.Parse("13:00 PM broken", now)), 0)
}

func TestParseEmptyContentDefaultsToTask(t *testing.T) {
	is := is.New(t)

	tasks := routine.Parse("2:00 PM – 3:00 PM", now)
	is.Equal(len(tasks), 1)
	is.Equal(tasks[0].Content, "Task")
	is.Equal(tasks[0].Tag, taskrepo.TagOther)
}

func TestTagPriorityOrder(t *testing.T) {
	is := is.New(t)

	// "study" outranks "chat": the rules are checked in a fixed order.
	tasks := routine.Parse("4:00 PM study then chat", now)
	is.Equal(len(tasks), 1)
	is.Equal(tasks[0].Tag, taskrepo.TagStudy)
}

func TestTagKeywords(t *testing.T) {
	cases := []struct {
		line string
		want string
	}{
		{"8:00 AM class prep", taskrepo.TagSchool},
		{"9:00 AM exam drill", taskrepo.TagStudy},
		{"1:00 PM social hour", taskrepo.TagChat},
		{"1:30 PM lunch", taskrepo.TagBreak},
		{"5:00 PM tuition", taskrepo.TagCoaching},
		{"8:00 PM reading", taskrepo.TagOther},
	}

	for _, c := range cases {
		t.Run(c.want, func(t *testing.T) {
			is := is.New(t)
			tasks := routine.Parse(c.line, now)
			is.Equal(len(tasks), 1)
			is.Equal(tasks[0].Tag, c.want)
		})
	}
}
