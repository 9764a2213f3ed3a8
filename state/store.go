package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/feral-kitty/fifi/errors"
	"github.com/feral-kitty/fifi/schedule"
)

// Store persists the state document. Every mutation writes through to disk;
// the last completed write is the recovery point after a crash.
type Store struct {
	mu      sync.Mutex
	path    string
	doc     *Document
	watcher *Watcher
	logger  *zap.SugaredLogger
}

// Load reads the state document at path, creating it with defaults when
// missing. Known sections in the file merge over defaults, so older files
// missing newer sections stay loadable.
func Load(path string, log *zap.SugaredLogger) (*Store, error) {
	s := &Store{path: path, doc: Defaults(), logger: log}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := s.write(); err != nil {
			return nil, errors.Wrapf(err, "initialize state file %s", path)
		}
		log.Infow("State file created", "path", path)
		return s, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read state file %s", path)
	}

	// Unmarshal over the defaults-prefilled document: present sections
	// override, absent sections keep their defaults.
	if err := json.Unmarshal(raw, s.doc); err != nil {
		return nil, errors.Wrapf(err, "parse state file %s", path)
	}

	log.Infow("State loaded",
		"path", path,
		"jobs", len(s.doc.Scheduler.Jobs),
		"reaction_panels", len(s.doc.ReactionPanels))
	return s, nil
}

// Jobs returns copies of the loaded job collection for seeding the schedule
// store. The document owns its records; live pointers never leave the lock.
func (s *Store) Jobs() []*schedule.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneJobs(s.doc.Scheduler.Jobs)
}

// Safeword returns a copy of the safeword section.
func (s *Store) Safeword() SafewordConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Safeword
}

// UpdateSafeword mutates the safeword section and persists.
func (s *Store) UpdateSafeword(mutate func(*SafewordConfig)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mutate(&s.doc.Safeword)
	return s.write()
}

// ReactionPanels returns a copy of the panel list.
func (s *Store) ReactionPanels() []ReactionPanel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ReactionPanel(nil), s.doc.ReactionPanels...)
}

// SetReactionPanels replaces the panel list and persists.
func (s *Store) SetReactionPanels(panels []ReactionPanel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.ReactionPanels = panels
	return s.write()
}

// SaveJobs implements schedule.Saver: embed the job collection into the
// document and persist the whole blob. The document keeps its own copies so
// a later write of another section marshals a stable snapshot, not job
// records the dispatcher is still mutating under the schedule store's lock.
func (s *Store) SaveJobs(jobs []*schedule.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Scheduler.Jobs = cloneJobs(jobs)
	return s.write()
}

func cloneJobs(jobs []*schedule.Job) []*schedule.Job {
	out := make([]*schedule.Job, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Clone())
	}
	return out
}

// Reload re-reads the document from disk, replacing the in-memory copy.
// Returns copies of the reloaded job collection. Used when another process
// edited the state file out from under this one.
func (s *Store) Reload() ([]*schedule.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.Wrapf(err, "reread state file %s", s.path)
	}
	doc := Defaults()
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, errors.Wrapf(err, "parse state file %s", s.path)
	}
	s.doc = doc

	s.logger.Infow("State reloaded",
		"path", s.path,
		"jobs", len(s.doc.Scheduler.Jobs))
	return cloneJobs(s.doc.Scheduler.Jobs), nil
}

// SetWatcher installs the watcher consulted by write so the store's own
// persists do not trigger a reload.
func (s *Store) SetWatcher(w *Watcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watcher = w
}

// write persists under the already-held lock: rotate backups, then write to
// a temp file and rename so a crash mid-write can't truncate the document.
func (s *Store) write() error {
	if s.watcher != nil {
		s.watcher.MarkOwnWrite()
	}
	if err := rotateBackups(s.path); err != nil {
		// A failed backup never blocks the save itself.
		s.logger.Warnw("State backup rotation failed", "path", s.path, "error", err)
	}

	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode state document")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, "create state directory")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "write state file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "replace state file")
	}
	return nil
}

// rotateBackups keeps .back1..back3 of the state file, newest first.
func rotateBackups(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // nothing to back up
	}

	back1 := path + ".back1"
	back2 := path + ".back2"
	back3 := path + ".back3"

	if err := os.Remove(back3); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "drop oldest backup")
	}
	if _, err := os.Stat(back2); err == nil {
		if err := os.Rename(back2, back3); err != nil {
			return errors.Wrap(err, "rotate .back2 to .back3")
		}
	}
	if _, err := os.Stat(back1); err == nil {
		if err := os.Rename(back1, back2); err != nil {
			return errors.Wrap(err, "rotate .back1 to .back2")
		}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read state for backup")
	}
	if err := os.WriteFile(back1, content, 0o644); err != nil {
		return errors.Wrap(err, "create .back1")
	}
	return nil
}
