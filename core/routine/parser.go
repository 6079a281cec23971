// Package routine converts free-form pasted schedule text into task
// records. One logical task per line; lines without a recognizable time
// are dropped.
package routine

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jrazmi/lexprep/core/repositories/taskrepo"
	"github.com/jrazmi/lexprep/sdk/validation"
)

// timePattern matches "8:00 AM", "14:30", and ranges like
// "8:00 AM – 2:00 PM" (dash or en-dash).
var timePattern = regexp.MustCompile(`(?i)(\d{1,2}):(\d{2})\s*(AM|PM)?(?:\s*[–-]\s*(\d{1,2}):(\d{2})\s*(AM|PM)?)?`)

var decorations = strings.NewReplacer("→", "", "–", "", "-", "")

// tagRules map content keywords to tags. Checked in order; the first
// match wins, so "study" beats "chat" on the same line.
var tagRules = []struct {
	keywords []string
	tag      string
}{
	{[]string{"school", "class"}, taskrepo.TagSchool},
	{[]string{"study", "exam"}, taskrepo.TagStudy},
	{[]string{"chat", "social"}, taskrepo.TagChat},
	{[]string{"break", "lunch"}, taskrepo.TagBreak},
	{[]string{"coaching", "tuition"}, taskrepo.TagCoaching},
}

// Parse extracts task records from a block of pasted text. Every task is
// stamped with now's calendar date and starts incomplete. Lines whose
// time groups are out of range (minutes above 59, hours above 23 after
// AM/PM normalization) are dropped along with unmatched lines.
func Parse(text string, now time.Time) []taskrepo.CreateTask {
	var tasks []taskrepo.CreateTask
	date := validation.DateOf(now)

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		m := timePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		startHour, startMinute, ok := normalizeClock(m[1], m[2], m[3])
		if !ok {
			continue
		}

		var endTime *string
		if m[4] != "" {
			endHour, endMinute, ok := normalizeClock(m[4], m[5], m[6])
			if !ok {
				continue
			}
			endTime = validation.StringPtr(validation.FormatClockTime(endHour, endMinute))
		}

		content := strings.TrimSpace(decorations.Replace(strings.Replace(line, m[0], "", 1)))
		if content == "" {
			content = "Task"
		}

		tasks = append(tasks, taskrepo.CreateTask{
			Time:      validation.FormatClockTime(startHour, startMinute),
			EndTime:   endTime,
			Content:   content,
			Tag:       inferTag(content),
			Completed: false,
			Date:      date,
		})
	}

	return tasks
}

// normalizeClock converts matched hour/minute/period groups to 24-hour
// form. PM adds 12 unless the hour is already 12; AM maps 12 to 0. A
// missing period means the digits are taken as already 24-hour.
func normalizeClock(hourStr, minuteStr, period string) (hour, minute int, ok bool) {
	hour, _ = strconv.Atoi(hourStr)
	minute, _ = strconv.Atoi(minuteStr)

	switch strings.ToUpper(period) {
	case "PM":
		if hour != 12 {
			hour += 12
		}
	case "AM":
		if hour == 12 {
			hour = 0
		}
	}

	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

func inferTag(content string) string {
	lower := strings.ToLower(content)
	for _, rule := range tagRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.tag
			}
		}
	}
	return taskrepo.TagOther
}
