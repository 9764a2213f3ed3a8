// Package schedule provides recurring announcement scheduling: timezone-aware
// recurrence math, a persistent job store, and the fixed-interval dispatcher.
package schedule

import (
	"sort"
	"time"
)

// RecurrenceType discriminates the recurrence variants.
type RecurrenceType string

const (
	RecurrenceOnce     RecurrenceType = "once"
	RecurrenceInterval RecurrenceType = "interval"
	RecurrenceDaily    RecurrenceType = "daily"
	RecurrenceWeekly   RecurrenceType = "weekly"
)

// Interval bounds in minutes. Jobs are clamped to this range at the store
// boundary so an out-of-range value is never persisted.
const (
	MinIntervalMinutes = 1
	MaxIntervalMinutes = 7 * 24 * 60
)

// Recurrence describes how a job's next fire time is computed.
// Only the fields matching Type are meaningful.
type Recurrence struct {
	Type RecurrenceType `json:"type"`

	// Once: full timestamp (with offset) or "YYYY-MM-DD HH:MM" wall clock
	AtISO string `json:"at_iso,omitempty"`

	// Interval: minutes between fires, MinIntervalMinutes..MaxIntervalMinutes
	Minutes int `json:"minutes,omitempty"`

	// Weekly: weekday indexes, Monday=0..Sunday=6
	Days []int `json:"days,omitempty"`

	// Daily/Weekly: wall-clock "HH:MM" in the job's timezone
	Time string `json:"time,omitempty"`
}

// normalize clamps and filters recurrence fields to their stated ranges.
func (r *Recurrence) normalize() {
	if r.Type == RecurrenceInterval {
		if r.Minutes < MinIntervalMinutes {
			r.Minutes = MinIntervalMinutes
		}
		if r.Minutes > MaxIntervalMinutes {
			r.Minutes = MaxIntervalMinutes
		}
	}
	if r.Type == RecurrenceWeekly {
		seen := map[int]bool{}
		days := r.Days[:0]
		for _, d := range r.Days {
			if d >= 0 && d <= 6 && !seen[d] {
				seen[d] = true
				days = append(days, d)
			}
		}
		sort.Ints(days)
		r.Days = days
	}
}

// Embed is the message template materialized at each dispatch.
type Embed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	Footer      string `json:"footer"`
}

// Job is a persisted scheduled-announcement record. The JSON field names are
// a compatibility contract with the state document on disk.
type Job struct {
	ID          int        `json:"id"`
	Name        string     `json:"name"`
	Active      bool       `json:"active"`
	Channels    []int64    `json:"channels"`
	RoleIDs     []int64    `json:"role_ids"`
	Embed       Embed      `json:"embed"`
	Attachments []string   `json:"attachments"`
	Recurrence  Recurrence `json:"recurrence"`
	Timezone    string     `json:"tz"`
	LastRun     *time.Time `json:"last_run_iso"`
	NextRun     *time.Time `json:"next_run_iso"`
}

// Clone returns a deep copy so callers can read a job without holding the
// store lock.
func (j *Job) Clone() *Job {
	c := *j
	c.Channels = append([]int64(nil), j.Channels...)
	c.RoleIDs = append([]int64(nil), j.RoleIDs...)
	c.Attachments = append([]string(nil), j.Attachments...)
	c.Recurrence.Days = append([]int(nil), j.Recurrence.Days...)
	if j.LastRun != nil {
		t := *j.LastRun
		c.LastRun = &t
	}
	if j.NextRun != nil {
		t := *j.NextRun
		c.NextRun = &t
	}
	return &c
}

// Job status labels for the operator surface.
const (
	StatusPending = "pending" // active with a future next run
	StatusDue     = "due"     // active, next run has passed, fires next tick
	StatusPaused  = "paused"  // inactive but recurring, resumable
	StatusDone    = "done"    // terminal: a fired once job
	StatusIdle    = "idle"    // active with no computable next run (misconfigured)
)

// Status reports the dispatch-relevant state of the job at the given instant.
// "done" vs "idle" distinguishes a fired once job from a misconfigured one by
// combining next_run with the active flag.
func (j *Job) Status(now time.Time) string {
	if !j.Active {
		if j.Recurrence.Type == RecurrenceOnce && j.NextRun == nil && j.LastRun != nil {
			return StatusDone
		}
		return StatusPaused
	}
	if j.NextRun == nil {
		return StatusIdle
	}
	if j.NextRun.After(now) {
		return StatusPending
	}
	return StatusDue
}
