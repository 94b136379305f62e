package monitor

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron"
	"github.com/sirupsen/logrus"

	"github.com/ontapmon/internal/ontap"
)

// parseLagTime converts the lag time string returned by the ONTAP API into
// seconds. The string follows the pattern "P#DT#H#M#S" where each "#" is one
// to three digits. The "#D" component is only present when the lag exceeds
// 24 hours (the string then starts with "PT"), and lower components are
// likewise elided when zero.
func parseLagTime(lag string, log *logrus.Logger) int {
	total := 0

	// The day field is present exactly when the second character is a
	// digit; otherwise that position holds the 'T'.
	includesDay := false
	start := 2
	if len(lag) > 1 && isDigit(lag[1]) {
		includesDay = true
		start = 1
	}

	var n int
	n, start = scanComponent(lag, start, log)
	total += n
	if includesDay {
		start++ // skip the 'T' between the day and hour components
	}
	n, start = scanComponent(lag, start, log)
	total += n
	n, start = scanComponent(lag, start, log)
	total += n
	n, _ = scanComponent(lag, start, log)
	total += n

	return total
}

// scanComponent reads one number/unit pair starting at start and returns the
// value in seconds and the position just past the unit character. Past the
// end of the string it returns zero, so callers can scan unconditionally.
func scanComponent(s string, start int, log *logrus.Logger) (int, int) {
	if len(s) <= start {
		return 0, start
	}
	end := start + 1
	for end < len(s) && end < start+3 && isDigit(s[end]) {
		end++
	}
	n, err := strconv.Atoi(s[start:end])
	if err != nil {
		log.Warnf("Unknown lag time specifier %q.", s[start:end])
		return 0, end + 1
	}
	if end < len(s) {
		switch s[end] {
		case 'D':
			n *= 60 * 60 * 24
		case 'H':
			n *= 60 * 60
		case 'M':
			n *= 60
		case 'S':
		default:
			log.Warnf("Unknown lag time specifier %q.", string(s[end]))
		}
	}
	return n, end + 1
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// formatLagTime renders seconds as a readable number of days, hours, minutes
// and seconds for alert messages.
func formatLagTime(seconds int) string {
	days := seconds / (60 * 60 * 24)
	seconds -= days * 60 * 60 * 24
	hours := seconds / (60 * 60)
	seconds -= hours * 60 * 60
	minutes := seconds / 60
	seconds -= minutes * 60

	var b strings.Builder
	if days > 0 {
		fmt.Fprintf(&b, "%d day%s ", days, plural(days))
	}
	if hours > 0 || days > 0 {
		fmt.Fprintf(&b, "%d hour%s ", hours, plural(hours))
	}
	if minutes > 0 || hours > 0 || days > 0 {
		fmt.Fprintf(&b, "%d minute%s and ", minutes, plural(minutes))
	}
	fmt.Fprintf(&b, "%d second%s", seconds, plural(seconds))
	return b.String()
}

func plural(n int) string {
	if n != 1 {
		return "s"
	}
	return ""
}

// cronExpression renders ONTAP schedule fields as a five-field cron
// expression. A nil (or empty) field means "any" and becomes "*".
func cronExpression(fields ontap.CronFields) string {
	return fmt.Sprintf("%s %s %s %s %s",
		joinField(fields.Minutes),
		joinField(fields.Hours),
		joinField(fields.Days),
		joinField(fields.Months),
		joinField(fields.Weekdays))
}

func joinField(values []int) string {
	if len(values) == 0 {
		return "*"
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// backSearchWindows bounds the search for the previous fire time of a
// schedule. Each window is tried in turn; a standard cron expression fires
// at least once a year, so the last window is effectively a hard stop.
var backSearchWindows = []time.Duration{
	time.Hour,
	24 * time.Hour,
	7 * 24 * time.Hour,
	32 * 24 * time.Hour,
	366 * 24 * time.Hour,
}

// lastScheduledRun computes the most recent time at or before now that the
// schedule should have fired. The cron library only walks forward, so this
// steps from the start of progressively wider windows until a fire time
// inside the window is found.
func lastScheduledRun(sched cron.Schedule, now time.Time) (time.Time, bool) {
	for _, window := range backSearchWindows {
		t := now.Add(-window)
		var last time.Time
		for {
			next := sched.Next(t)
			if next.IsZero() || next.After(now) {
				break
			}
			last = next
			t = next
		}
		if !last.IsZero() {
			return last, true
		}
	}
	return time.Time{}, false
}

// clusterLocation resolves the cluster's reported timezone, falling back to
// UTC when it is empty or unknown to the host's tz database.
func clusterLocation(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}
