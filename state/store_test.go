package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/feral-kitty/fifi/schedule"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func TestLoadCreatesFileWithDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "state.json")

	store, err := Load(path, testLogger())
	require.NoError(t, err)

	assert.FileExists(t, path)
	assert.Empty(t, store.Jobs())

	sw := store.Safeword()
	assert.True(t, sw.Enabled)
	assert.Equal(t, "!STOP!", sw.Trigger)
	assert.Equal(t, 30, sw.CooldownSeconds)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	// A partial file: safeword section only, scheduler absent.
	require.NoError(t, os.WriteFile(path, []byte(`{"safeword":{"enabled":false,"trigger":"!HALT!","release_trigger":"!Release","cooldown_seconds":5}}`), 0o644))

	store, err := Load(path, testLogger())
	require.NoError(t, err)

	sw := store.Safeword()
	assert.False(t, sw.Enabled)
	assert.Equal(t, "!HALT!", sw.Trigger)
	assert.Equal(t, 5, sw.CooldownSeconds)
	assert.Empty(t, store.Jobs())
}

func TestSaveJobsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store, err := Load(path, testLogger())
	require.NoError(t, err)

	next := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	jobs := []*schedule.Job{{
		ID:         1,
		Name:       "weekly digest",
		Active:     true,
		Channels:   []int64{123},
		RoleIDs:    []int64{456},
		Recurrence: schedule.Recurrence{Type: schedule.RecurrenceWeekly, Days: []int{0}, Time: "09:00"},
		Timezone:   "Europe/Berlin",
		NextRun:    &next,
	}}
	require.NoError(t, store.SaveJobs(jobs))

	reloaded, err := Load(path, testLogger())
	require.NoError(t, err)

	got := reloaded.Jobs()
	require.Len(t, got, 1)
	assert.Equal(t, "weekly digest", got[0].Name)
	assert.Equal(t, []int64{123}, got[0].Channels)
	assert.Equal(t, schedule.RecurrenceWeekly, got[0].Recurrence.Type)
	require.NotNil(t, got[0].NextRun)
	assert.True(t, next.Equal(*got[0].NextRun))
	assert.Nil(t, got[0].LastRun)
}

func TestJobFieldNamesAreStable(t *testing.T) {
	// The on-disk field names are a compatibility contract; renaming a Go
	// field must not silently rename the JSON key.
	path := filepath.Join(t.TempDir(), "state.json")
	store, err := Load(path, testLogger())
	require.NoError(t, err)

	require.NoError(t, store.SaveJobs([]*schedule.Job{{
		ID:         2,
		Recurrence: schedule.Recurrence{Type: schedule.RecurrenceInterval, Minutes: 60},
	}}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	jobs := doc["scheduler"].(map[string]any)["jobs"].([]any)
	job := jobs[0].(map[string]any)

	for _, key := range []string{"id", "name", "active", "channels", "role_ids", "embed", "attachments", "recurrence", "tz", "last_run_iso", "next_run_iso"} {
		assert.Contains(t, job, key)
	}
	rec := job["recurrence"].(map[string]any)
	assert.Equal(t, "interval", rec["type"])
	assert.Equal(t, float64(60), rec["minutes"])
	assert.Nil(t, job["next_run_iso"])
}

func TestBackupRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store, err := Load(path, testLogger())
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		require.NoError(t, store.UpdateSafeword(func(sw *SafewordConfig) {
			sw.CooldownSeconds = 10 + i
		}))
	}

	assert.FileExists(t, path+".back1")
	assert.FileExists(t, path+".back2")
	assert.FileExists(t, path+".back3")

	// back1 is the newest backup: one save behind the current file.
	var backup Document
	raw, err := os.ReadFile(path + ".back1")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &backup))
	assert.Equal(t, 12, backup.Safeword.CooldownSeconds)
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path, testLogger())
	require.Error(t, err)
}

func TestSaveJobsKeepsItsOwnCopies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store, err := Load(path, testLogger())
	require.NoError(t, err)

	jobs := []*schedule.Job{{
		ID:         1,
		Name:       "before",
		Active:     true,
		Recurrence: schedule.Recurrence{Type: schedule.RecurrenceInterval, Minutes: 60},
	}}
	require.NoError(t, store.SaveJobs(jobs))

	// Mutating the caller's record after the save must not leak into the
	// next document write.
	jobs[0].Name = "after"
	require.NoError(t, store.UpdateSafeword(func(sw *SafewordConfig) {
		sw.CooldownSeconds = 99
	}))

	reloaded, err := Load(path, testLogger())
	require.NoError(t, err)
	got := reloaded.Jobs()
	require.Len(t, got, 1)
	assert.Equal(t, "before", got[0].Name)
}

func TestDocumentWritesIsolatedFromJobMutation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	st, err := Load(path, testLogger())
	require.NoError(t, err)

	jobStore := schedule.NewStore(st.Jobs(), st, testLogger())
	id, err := jobStore.Append(&schedule.Job{
		Name:       "ping",
		Active:     true,
		Channels:   []int64{1},
		Recurrence: schedule.Recurrence{Type: schedule.RecurrenceInterval, Minutes: 5},
	})
	require.NoError(t, err)

	// Job mutations and writes of other sections run concurrently in the
	// daemon; neither side may observe the other mid-flight.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			next := time.Now().Add(time.Duration(i) * time.Minute)
			_ = jobStore.Update(id, func(j *schedule.Job) { j.NextRun = &next })
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_ = st.UpdateSafeword(func(sw *SafewordConfig) { sw.CooldownSeconds = i })
		}
	}()
	wg.Wait()

	reloaded, err := Load(path, testLogger())
	require.NoError(t, err)
	require.Len(t, reloaded.Jobs(), 1)
}

func TestReloadPicksUpForeignWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	daemonState, err := Load(path, testLogger())
	require.NoError(t, err)
	daemonJobs := schedule.NewStore(daemonState.Jobs(), daemonState, testLogger())
	digestID, err := daemonJobs.Append(&schedule.Job{
		Name:       "digest",
		Active:     true,
		Recurrence: schedule.Recurrence{Type: schedule.RecurrenceInterval, Minutes: 60},
	})
	require.NoError(t, err)

	// Second process: its own in-memory copy of the same file.
	cliState, err := Load(path, testLogger())
	require.NoError(t, err)
	cliJobs := schedule.NewStore(cliState.Jobs(), cliState, testLogger())
	_, err = cliJobs.Append(&schedule.Job{
		Name:       "reminder",
		Active:     true,
		Recurrence: schedule.Recurrence{Type: schedule.RecurrenceDaily, Time: "09:00"},
	})
	require.NoError(t, err)

	// The daemon reloads before its next persist, so the foreign job
	// survives the daemon writing its own changes.
	fresh, err := daemonState.Reload()
	require.NoError(t, err)
	daemonJobs.Reload(fresh)

	fired := time.Now().UTC()
	require.NoError(t, daemonJobs.Update(digestID, func(j *schedule.Job) { j.LastRun = &fired }))

	final, err := Load(path, testLogger())
	require.NoError(t, err)
	got := final.Jobs()
	require.Len(t, got, 2)
	assert.Equal(t, "digest", got[0].Name)
	require.NotNil(t, got[0].LastRun)
	assert.Equal(t, "reminder", got[1].Name)
}
