package service

import (
	"errors"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PaulBabatuyi/WeddingHub/internal/submission"
	"github.com/PaulBabatuyi/WeddingHub/internal/wizard"
)

// draft is one open wizard plus the staged files it references.
type draft struct {
	id      string
	owner   string
	form    *wizard.Form
	created time.Time
	// lastUsed is unix nanoseconds of the last request that resolved the draft.
	lastUsed atomic.Int64

	mu       sync.Mutex
	staged   map[string]struct{}
	progress *submission.Progress
}

func (d *draft) track(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.staged[path] = struct{}{}
}

// discard removes a staged file the draft no longer references.
func (d *draft) discard(path string) {
	d.mu.Lock()
	delete(d.staged, path)
	d.mu.Unlock()
	removeStaged(path)
}

func (d *draft) discardAll() {
	d.mu.Lock()
	paths := d.staged
	d.staged = make(map[string]struct{})
	d.mu.Unlock()
	for p := range paths {
		removeStaged(p)
	}
}

func (d *draft) setProgress(p submission.Progress) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.progress = &p
}

func (d *draft) lastProgress() *submission.Progress {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.progress == nil {
		return nil
	}
	p := *d.progress
	return &p
}

// removeStaged deletes a staged file. The staging dir is scratch space, so
// failures other than a missing file are only reported.
func removeStaged(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// DraftStore holds open drafts in memory, keyed by id.
type DraftStore struct {
	mu     sync.RWMutex
	drafts map[string]*draft
	now    func() time.Time
}

func NewDraftStore() *DraftStore {
	return &DraftStore{drafts: make(map[string]*draft), now: time.Now}
}

func (s *DraftStore) add(d *draft) {
	d.lastUsed.Store(s.now().UnixNano())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[d.id] = d
}

// get returns the draft only to its owner.
func (s *DraftStore) get(id, owner string) (*draft, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drafts[id]
	if !ok || d.owner != owner {
		return nil, false
	}
	d.lastUsed.Store(s.now().UnixNano())
	return d, true
}

func (s *DraftStore) remove(id, owner string) (*draft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[id]
	if !ok || d.owner != owner {
		return nil, false
	}
	delete(s.drafts, id)
	return d, true
}

func (s *DraftStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.drafts)
}

// Expire discards drafts not used for longer than idle, along with their
// staged files. Drafts with a submission in flight are kept.
func (s *DraftStore) Expire(idle time.Duration) int {
	cutoff := s.now().Add(-idle).UnixNano()

	s.mu.Lock()
	var expired []*draft
	for id, d := range s.drafts {
		if d.lastUsed.Load() < cutoff && !d.form.Busy() {
			expired = append(expired, d)
			delete(s.drafts, id)
		}
	}
	s.mu.Unlock()

	for _, d := range expired {
		d.discardAll()
	}
	return len(expired)
}

// Close discards every draft and its staged files.
func (s *DraftStore) Close() {
	s.mu.Lock()
	drafts := s.drafts
	s.drafts = make(map[string]*draft)
	s.mu.Unlock()
	for _, d := range drafts {
		d.discardAll()
	}
}
