package loading

import (
	"sort"
	"sync"
	"time"
)

// State is the lifecycle of one asynchronous operation.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Entry records the current state of one operation.
type Entry struct {
	Key       string
	State     State
	Err       error
	Attempts  int
	StartedAt time.Time
	UpdatedAt time.Time
}

// Tracker records loading state per operation key. It is owned by the
// application and handed to whatever runs background work; it is safe
// for concurrent use.
type Tracker struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	now     func() time.Time
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
}

// Start marks key as loading and counts an attempt.
func (t *Tracker) Start(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	e, ok := t.entries[key]
	if !ok || e.State != StateLoading {
		e = &Entry{Key: key, StartedAt: now, Attempts: 0}
		t.entries[key] = e
	}
	e.State = StateLoading
	e.Err = nil
	e.Attempts++
	e.UpdatedAt = now
}

// Finish marks key done, or failed when err is non-nil.
func (t *Tracker) Finish(key string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	if !ok {
		e = &Entry{Key: key, StartedAt: t.now()}
		t.entries[key] = e
	}
	e.State = StateDone
	e.Err = err
	if err != nil {
		e.State = StateFailed
	}
	e.UpdatedAt = t.now()
}

// Get returns a copy of the entry for key.
func (t *Tracker) Get(key string) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[key]
	if !ok {
		return Entry{Key: key}, false
	}
	return *e, true
}

// IsLoading reports whether key is currently loading.
func (t *Tracker) IsLoading(key string) bool {
	e, _ := t.Get(key)
	return e.State == StateLoading
}

// AnyLoading reports whether any operation is in flight.
func (t *Tracker) AnyLoading() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, e := range t.entries {
		if e.State == StateLoading {
			return true
		}
	}
	return false
}

// Entries returns a snapshot of all entries ordered by key.
func (t *Tracker) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Clear forgets key.
func (t *Tracker) Clear(key string) {
	t.mu.Lock()
	delete(t.entries, key)
	t.mu.Unlock()
}
