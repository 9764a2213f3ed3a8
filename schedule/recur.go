package schedule

import (
	"strconv"
	"strings"
	"time"
)

// Recurrence math. Pure functions: recurrence + timezone + now in, next UTC
// fire instant out. All failures degrade to nil ("never fires") so a
// malformed job idles instead of stalling the dispatcher.

// catchUpDelay is applied when an interval fire time has already passed,
// e.g. after downtime longer than the interval. The job fires once shortly
// after restart instead of looping on an instant that never advances.
const catchUpDelay = 5 * time.Second

// ComputeNextRun returns the next UTC instant the job should fire, or nil if
// it never fires again. Interval jobs advance from last_run when set.
func ComputeNextRun(job *Job, now time.Time) *time.Time {
	return computeNext(job.Recurrence, job.Timezone, job.LastRun, now)
}

// PreviewNextRun computes the first fire time for a draft recurrence, as
// shown to the operator before the job is committed.
func PreviewNextRun(rec Recurrence, tz string, now time.Time) *time.Time {
	return computeNext(rec, tz, nil, now)
}

func computeNext(rec Recurrence, tz string, lastRun *time.Time, now time.Time) *time.Time {
	now = now.UTC()

	switch rec.Type {
	case RecurrenceOnce:
		return parseOnce(rec.AtISO, tz)

	case RecurrenceInterval:
		minutes := rec.Minutes
		if minutes < MinIntervalMinutes {
			minutes = MinIntervalMinutes
		}
		if minutes > MaxIntervalMinutes {
			minutes = MaxIntervalMinutes
		}
		base := now
		if lastRun != nil {
			base = lastRun.UTC()
		}
		next := base.Add(time.Duration(minutes) * time.Minute)
		if !next.After(now) {
			next = now.Add(catchUpDelay)
		}
		return &next

	case RecurrenceDaily:
		hh, mm := parseHHMM(rec.Time)
		next := nextDaily(hh, mm, location(tz), now)
		return &next

	case RecurrenceWeekly:
		hh, mm := parseHHMM(rec.Time)
		days := validDays(rec.Days)
		if len(days) == 0 {
			next := nextDaily(hh, mm, location(tz), now)
			return &next
		}
		next := nextWeekly(days, hh, mm, location(tz), now)
		return &next
	}

	return nil
}

// parseOnce resolves a one-shot timestamp to UTC. Strings carrying their own
// offset convert directly; naive strings are wall clock in the job's zone.
func parseOnce(raw, tz string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		u := t.UTC()
		return &u
	}

	loc := location(tz)
	for _, layout := range []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
	} {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			u := t.UTC()
			return &u
		}
	}
	return nil
}

// location resolves an IANA zone name, treating empty/"UTC"/"none" and
// unknown zones as UTC. An unknown zone is an operator typo; the job keeps
// firing on the UTC clock rather than going dark.
func location(tz string) *time.Location {
	tz = strings.TrimSpace(tz)
	if tz == "" || strings.EqualFold(tz, "utc") || strings.EqualFold(tz, "none") {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// parseHHMM parses "HH:MM", defaulting to midnight on any malformed input.
func parseHHMM(s string) (int, int) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	hh, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	mm, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, 0
	}
	return hh, mm
}

func validDays(days []int) []int {
	out := make([]int, 0, len(days))
	seen := map[int]bool{}
	for _, d := range days {
		if d >= 0 && d <= 6 && !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}

// nextDaily returns the next occurrence of hh:mm wall clock in loc strictly
// after now, converted to UTC.
func nextDaily(hh, mm int, loc *time.Location, now time.Time) time.Time {
	nowLocal := now.In(loc)
	cand := time.Date(nowLocal.Year(), nowLocal.Month(), nowLocal.Day(), hh, mm, 0, 0, loc)
	if !cand.After(nowLocal) {
		cand = cand.AddDate(0, 0, 1)
	}
	return cand.UTC()
}

// nextWeekly returns the nearest instant within the next 7 days whose local
// weekday is in days (Monday=0) and whose hh:mm has not yet passed.
func nextWeekly(days []int, hh, mm int, loc *time.Location, now time.Time) time.Time {
	inSet := map[int]bool{}
	for _, d := range days {
		inSet[d] = true
	}

	nowLocal := now.In(loc)
	for i := 0; i <= 7; i++ {
		day := nowLocal.AddDate(0, 0, i)
		cand := time.Date(day.Year(), day.Month(), day.Day(), hh, mm, 0, 0, loc)
		if inSet[mondayIndex(cand.Weekday())] && cand.After(nowLocal) {
			return cand.UTC()
		}
	}
	// Unreachable with a non-empty day set; keep the loop bounded regardless.
	return now.Add(24 * time.Hour)
}

// mondayIndex converts Go's Sunday=0 weekday to the store's Monday=0 indexing.
func mondayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}
