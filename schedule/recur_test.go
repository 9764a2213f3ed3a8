package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return ts.UTC()
}

func TestIntervalAdvancesFromLastRun(t *testing.T) {
	now := mustParse(t, "2025-03-10T12:00:00Z")
	last := now.Add(-30 * time.Minute)

	job := &Job{
		Recurrence: Recurrence{Type: RecurrenceInterval, Minutes: 60},
		LastRun:    &last,
	}

	next := ComputeNextRun(job, now)
	require.NotNil(t, next)
	assert.Equal(t, last.Add(60*time.Minute), *next)
}

func TestIntervalFirstRunFromNow(t *testing.T) {
	now := mustParse(t, "2025-03-10T12:00:00Z")

	job := &Job{Recurrence: Recurrence{Type: RecurrenceInterval, Minutes: 15}}

	next := ComputeNextRun(job, now)
	require.NotNil(t, next)
	assert.Equal(t, now.Add(15*time.Minute), *next)
}

func TestIntervalCatchUpAfterDowntime(t *testing.T) {
	now := mustParse(t, "2025-03-10T12:00:00Z")
	last := now.Add(-6 * time.Hour)

	job := &Job{
		Recurrence: Recurrence{Type: RecurrenceInterval, Minutes: 60},
		LastRun:    &last,
	}

	// The computed instant has long passed; the job fires once shortly
	// after now instead of looping on a stale timestamp.
	next := ComputeNextRun(job, now)
	require.NotNil(t, next)
	assert.Equal(t, now.Add(catchUpDelay), *next)
	assert.True(t, next.After(now))
}

func TestIntervalMinutesClamped(t *testing.T) {
	now := mustParse(t, "2025-03-10T12:00:00Z")

	low := &Job{Recurrence: Recurrence{Type: RecurrenceInterval, Minutes: 0}}
	next := ComputeNextRun(low, now)
	require.NotNil(t, next)
	assert.Equal(t, now.Add(time.Minute), *next)

	high := &Job{Recurrence: Recurrence{Type: RecurrenceInterval, Minutes: 1_000_000}}
	next = ComputeNextRun(high, now)
	require.NotNil(t, next)
	assert.Equal(t, now.Add(time.Duration(MaxIntervalMinutes)*time.Minute), *next)
}

func TestDailySameDayWhenTimeStillAhead(t *testing.T) {
	now := mustParse(t, "2025-03-10T10:00:00Z")

	job := &Job{Recurrence: Recurrence{Type: RecurrenceDaily, Time: "10:30"}}

	next := ComputeNextRun(job, now)
	require.NotNil(t, next)
	assert.Equal(t, mustParse(t, "2025-03-10T10:30:00Z"), *next)
}

func TestDailyRollsToTomorrowWhenTimePassed(t *testing.T) {
	now := mustParse(t, "2025-03-10T10:00:00Z")

	job := &Job{Recurrence: Recurrence{Type: RecurrenceDaily, Time: "09:00"}}

	next := ComputeNextRun(job, now)
	require.NotNil(t, next)
	assert.Equal(t, mustParse(t, "2025-03-11T09:00:00Z"), *next)
}

func TestDailyExactBoundaryIsNotToday(t *testing.T) {
	// "strictly after now": landing exactly on the configured time rolls
	// over, so a fired job cannot be due again within the same instant.
	now := mustParse(t, "2025-03-10T09:00:00Z")

	job := &Job{Recurrence: Recurrence{Type: RecurrenceDaily, Time: "09:00"}}

	next := ComputeNextRun(job, now)
	require.NotNil(t, next)
	assert.Equal(t, mustParse(t, "2025-03-11T09:00:00Z"), *next)
}

func TestDailyHonorsTimezone(t *testing.T) {
	// 2025-01-15 13:00 UTC is 08:00 in New York (EST, UTC-5).
	now := mustParse(t, "2025-01-15T13:00:00Z")

	job := &Job{
		Recurrence: Recurrence{Type: RecurrenceDaily, Time: "09:30"},
		Timezone:   "America/New_York",
	}

	next := ComputeNextRun(job, now)
	require.NotNil(t, next)
	assert.Equal(t, mustParse(t, "2025-01-15T14:30:00Z"), *next)
}

func TestDailyUnknownTimezoneFallsBackToUTC(t *testing.T) {
	now := mustParse(t, "2025-03-10T10:00:00Z")

	job := &Job{
		Recurrence: Recurrence{Type: RecurrenceDaily, Time: "11:00"},
		Timezone:   "Mars/Olympus_Mons",
	}

	next := ComputeNextRun(job, now)
	require.NotNil(t, next)
	assert.Equal(t, mustParse(t, "2025-03-10T11:00:00Z"), *next)
}

func TestWeeklyPicksNearestConfiguredDay(t *testing.T) {
	// 2025-01-01 is a Wednesday (index 2).
	now := mustParse(t, "2025-01-01T12:00:00Z")

	job := &Job{
		Recurrence: Recurrence{Type: RecurrenceWeekly, Days: []int{0, 4}, Time: "09:00"},
	}

	// Monday has passed this week; Friday 09:00 is the nearest candidate.
	next := ComputeNextRun(job, now)
	require.NotNil(t, next)
	assert.Equal(t, mustParse(t, "2025-01-03T09:00:00Z"), *next)
}

func TestWeeklySameDayStillAhead(t *testing.T) {
	now := mustParse(t, "2025-01-01T12:00:00Z") // Wednesday

	job := &Job{
		Recurrence: Recurrence{Type: RecurrenceWeekly, Days: []int{2}, Time: "18:00"},
	}

	next := ComputeNextRun(job, now)
	require.NotNil(t, next)
	assert.Equal(t, mustParse(t, "2025-01-01T18:00:00Z"), *next)
}

func TestWeeklySameDayPassedWaitsForNextWeek(t *testing.T) {
	now := mustParse(t, "2025-01-01T12:00:00Z") // Wednesday

	job := &Job{
		Recurrence: Recurrence{Type: RecurrenceWeekly, Days: []int{2}, Time: "09:00"},
	}

	next := ComputeNextRun(job, now)
	require.NotNil(t, next)
	assert.Equal(t, mustParse(t, "2025-01-08T09:00:00Z"), *next)
}

func TestWeeklyResultWeekdayIsInSet(t *testing.T) {
	now := mustParse(t, "2025-01-01T12:00:00Z")

	job := &Job{
		Recurrence: Recurrence{Type: RecurrenceWeekly, Days: []int{1, 3, 5}, Time: "20:00"},
	}

	next := ComputeNextRun(job, now)
	require.NotNil(t, next)
	assert.True(t, next.After(now))
	assert.Contains(t, []int{1, 3, 5}, mondayIndex(next.Weekday()))
}

func TestWeeklyEmptyDaysBehavesAsDaily(t *testing.T) {
	now := mustParse(t, "2025-03-10T10:00:00Z")

	weekly := &Job{Recurrence: Recurrence{Type: RecurrenceWeekly, Time: "11:00"}}
	daily := &Job{Recurrence: Recurrence{Type: RecurrenceDaily, Time: "11:00"}}

	wn := ComputeNextRun(weekly, now)
	dn := ComputeNextRun(daily, now)
	require.NotNil(t, wn)
	require.NotNil(t, dn)
	assert.Equal(t, *dn, *wn)
}

func TestWeeklyOutOfRangeDaysIgnored(t *testing.T) {
	now := mustParse(t, "2025-03-10T10:00:00Z")

	job := &Job{Recurrence: Recurrence{Type: RecurrenceWeekly, Days: []int{-1, 7, 99}, Time: "11:00"}}

	next := ComputeNextRun(job, now)
	require.NotNil(t, next)
	assert.Equal(t, mustParse(t, "2025-03-10T11:00:00Z"), *next)
}

func TestOnceWithExplicitOffset(t *testing.T) {
	job := &Job{
		Recurrence: Recurrence{Type: RecurrenceOnce, AtISO: "2025-06-01T10:00:00+02:00"},
		Timezone:   "America/New_York", // ignored: the string carries its own offset
	}

	next := ComputeNextRun(job, mustParse(t, "2025-05-01T00:00:00Z"))
	require.NotNil(t, next)
	assert.Equal(t, mustParse(t, "2025-06-01T08:00:00Z"), *next)
}

func TestOnceNaiveInterpretedInJobZone(t *testing.T) {
	job := &Job{
		Recurrence: Recurrence{Type: RecurrenceOnce, AtISO: "2025-06-01 10:00"},
		Timezone:   "America/New_York", // EDT, UTC-4 in June
	}

	next := ComputeNextRun(job, mustParse(t, "2025-05-01T00:00:00Z"))
	require.NotNil(t, next)
	assert.Equal(t, mustParse(t, "2025-06-01T14:00:00Z"), *next)
}

func TestOnceNaiveWithoutZoneIsUTC(t *testing.T) {
	job := &Job{Recurrence: Recurrence{Type: RecurrenceOnce, AtISO: "2025-06-01 10:00"}}

	next := ComputeNextRun(job, mustParse(t, "2025-05-01T00:00:00Z"))
	require.NotNil(t, next)
	assert.Equal(t, mustParse(t, "2025-06-01T10:00:00Z"), *next)
}

func TestOnceUnparseableYieldsNoNextRun(t *testing.T) {
	job := &Job{Recurrence: Recurrence{Type: RecurrenceOnce, AtISO: "next thursday-ish"}}

	assert.Nil(t, ComputeNextRun(job, time.Now()))
}

func TestOnceEmptyYieldsNoNextRun(t *testing.T) {
	job := &Job{Recurrence: Recurrence{Type: RecurrenceOnce}}

	assert.Nil(t, ComputeNextRun(job, time.Now()))
}

func TestUnknownRecurrenceTypeYieldsNoNextRun(t *testing.T) {
	job := &Job{Recurrence: Recurrence{Type: "fortnightly"}}

	assert.Nil(t, ComputeNextRun(job, time.Now()))
}

func TestPreviewMatchesFirstComputation(t *testing.T) {
	now := mustParse(t, "2025-03-10T12:00:00Z")
	rec := Recurrence{Type: RecurrenceInterval, Minutes: 45}

	preview := PreviewNextRun(rec, "", now)
	computed := ComputeNextRun(&Job{Recurrence: rec}, now)

	require.NotNil(t, preview)
	require.NotNil(t, computed)
	assert.Equal(t, *computed, *preview)
}
