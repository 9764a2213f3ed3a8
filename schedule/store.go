package schedule

import (
	"sync"

	"go.uber.org/zap"

	"github.com/feral-kitty/fifi/errors"
)

// Saver persists the full job collection as part of the larger state
// document. The store writes through after every mutation.
type Saver interface {
	SaveJobs(jobs []*Job) error
}

// Store is the canonical, mutex-guarded collection of jobs in insertion
// order. Ids are assigned monotonically and never reused, so a deleted job's
// id mentioned in an old transcript can't silently point at a new job.
type Store struct {
	mu     sync.Mutex
	jobs   []*Job
	nextID int
	dirty  bool // an earlier persist failed; in-memory state is ahead of disk
	saver  Saver
	logger *zap.SugaredLogger
}

// NewStore creates a store over jobs loaded from the state document.
func NewStore(jobs []*Job, saver Saver, log *zap.SugaredLogger) *Store {
	nextID := 1
	copied := make([]*Job, 0, len(jobs))
	for _, j := range jobs {
		c := j.Clone()
		c.Recurrence.normalize()
		copied = append(copied, c)
		if c.ID >= nextID {
			nextID = c.ID + 1
		}
	}
	return &Store{
		jobs:   copied,
		nextID: nextID,
		saver:  saver,
		logger: log,
	}
}

// Append assigns the next id, normalizes the recurrence, stores the job, and
// persists. Returns the assigned id.
func (s *Store) Append(job *Job) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j := job.Clone()
	j.ID = s.nextID
	s.nextID++
	j.Recurrence.normalize()
	s.jobs = append(s.jobs, j)

	if err := s.save(); err != nil {
		return 0, err
	}
	s.logger.Infow("Job created", "job_id", j.ID, "job_name", j.Name, "recurrence", string(j.Recurrence.Type))
	return j.ID, nil
}

// Get returns a copy of the job with the given id.
func (s *Store) Get(id int) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, j := range s.jobs {
		if j.ID == id {
			return j.Clone(), nil
		}
	}
	return nil, errors.Wrapf(errors.ErrNotFound, "job #%d", id)
}

// List returns copies of all jobs in insertion order.
func (s *Store) List() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.Clone())
	}
	return out
}

// Update applies mutate to the job with the given id under the store lock,
// re-normalizes the recurrence, and persists.
func (s *Store) Update(id int, mutate func(*Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, j := range s.jobs {
		if j.ID == id {
			mutate(j)
			j.ID = id // id is not editable
			j.Recurrence.normalize()
			return s.save()
		}
	}
	return errors.Wrapf(errors.ErrNotFound, "job #%d", id)
}

// Remove deletes the job with the given id. Reports whether a job was
// removed. The id is not reissued.
func (s *Store) Remove(id int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, j := range s.jobs {
		if j.ID == id {
			s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
			if err := s.save(); err != nil {
				return true, err
			}
			s.logger.Infow("Job removed", "job_id", id)
			return true, nil
		}
	}
	return false, nil
}

// Reload replaces the job collection with jobs re-read from the state
// document after another process changed it. The replacement came from disk,
// so it is not persisted again. Ids stay monotonic across the swap: nextID
// never decreases even when the reloaded collection is shorter.
func (s *Store) Reload(jobs []*Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]*Job, 0, len(jobs))
	for _, j := range jobs {
		c := j.Clone()
		c.Recurrence.normalize()
		copied = append(copied, c)
		if c.ID >= s.nextID {
			s.nextID = c.ID + 1
		}
	}
	s.jobs = copied
	s.dirty = false
	s.logger.Infow("Job collection reloaded", "jobs", len(copied))
}

// Batch runs fn with direct access to the job slice while holding the store
// lock, then persists once if fn reports changes. The dispatcher uses this
// so a whole tick is one critical section and one write.
func (s *Store) Batch(fn func(jobs []*Job) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !fn(s.jobs) && !s.dirty {
		return nil
	}
	return s.save()
}

// save persists under the already-held lock. A failed write leaves the store
// dirty so the next batch retries the persist even with no new changes.
func (s *Store) save() error {
	if s.saver == nil {
		return nil
	}
	s.dirty = true
	if err := s.saver.SaveJobs(s.jobs); err != nil {
		return errors.Wrap(err, "persist jobs")
	}
	s.dirty = false
	return nil
}
