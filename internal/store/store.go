// Package store holds ingested records in memory.
package store

import (
	"sync"
	"sync/atomic"

	"github.com/jmurray2011/spindle/internal/record"
)

// Change describes one accepted batch or a clear.
type Change struct {
	Added   int  `json:"added"`
	Trimmed int  `json:"trimmed"`
	Total   int  `json:"total"`
	Cleared bool `json:"cleared,omitempty"`
}

// Option configures a Store.
type Option func(*Store)

// WithMaxSize bounds the store to n records; the oldest are trimmed first.
// n <= 0 means unbounded.
func WithMaxSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxSize = n
		}
	}
}

// Store is an ordered, append-only record sequence shared by every
// provider. Appends happen a batch at a time and raise one Change per
// batch. A single mutex serializes every mutation and snapshot.
type Store struct {
	mu       sync.Mutex
	entries  []*record.Record
	observed int // entries[observed:] have not been returned by NewEntries
	base     int64 // sequence number of entries[0]
	maxSize  int
	enabled  bool

	subs    map[int]chan Change
	nextSub int

	droppedNotes atomic.Int64
}

// New creates an empty, enabled store.
func New(opts ...Option) *Store {
	s := &Store{
		entries: make([]*record.Record, 0, 1024),
		enabled: true,
		subs:    make(map[int]chan Change),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Entries returns a point-in-time copy of the full sequence.
func (s *Store) Entries() []*record.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*record.Record, len(s.entries))
	copy(out, s.entries)
	return out
}

// NewEntries returns the records appended since the previous call and
// marks them observed.
func (s *Store) NewEntries() []*record.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	fresh := make([]*record.Record, len(s.entries)-s.observed)
	copy(fresh, s.entries[s.observed:])
	s.observed = len(s.entries)
	return fresh
}

// Since returns the records whose sequence number is at least seq, and the
// sequence number following the last of them. Every record ever appended
// has a sequence number, starting at 0; records already trimmed or
// cleared are skipped. Since(0) returns everything held.
func (s *Store) Since(seq int64) ([]*record.Record, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.base + int64(len(s.entries))
	if seq < s.base {
		seq = s.base
	}
	if seq >= next {
		return nil, next
	}
	out := make([]*record.Record, next-seq)
	copy(out, s.entries[seq-s.base:])
	return out, next
}

// Next returns the sequence number the next appended record will get.
func (s *Store) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base + int64(len(s.entries))
}

// AddBatch appends records as one atomic step and notifies subscribers
// once. It returns false when the store is disabled or the batch is empty.
func (s *Store) AddBatch(records []*record.Record) bool {
	if len(records) == 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return false
	}

	s.entries = append(s.entries, records...)

	trimmed := 0
	if s.maxSize > 0 && len(s.entries) > s.maxSize {
		trimmed = len(s.entries) - s.maxSize
		for i := 0; i < trimmed; i++ {
			s.entries[i] = nil
		}
		s.entries = s.entries[trimmed:]
		s.base += int64(trimmed)
		s.observed -= trimmed
		if s.observed < 0 {
			s.observed = 0
		}
	}

	s.notify(Change{Added: len(records), Trimmed: trimmed, Total: len(s.entries)})
	return true
}

// Clear removes every record.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base += int64(len(s.entries))
	s.entries = make([]*record.Record, 0, 1024)
	s.observed = 0
	s.notify(Change{Cleared: true})
}

// Enabled reports whether AddBatch accepts records.
func (s *Store) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// SetEnabled gates incoming batches without touching the providers.
func (s *Store) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

// Len returns the number of records held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// MaxSize returns the configured bound, 0 when unbounded.
func (s *Store) MaxSize() int {
	return s.maxSize
}

// Subscribe registers for change notifications. A subscriber whose buffer
// is full misses notifications and should re-sync from NewEntries or
// Entries. cancel unregisters and closes the channel.
func (s *Store) Subscribe(buffer int) (<-chan Change, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Change, buffer)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// DroppedNotifications returns how many notifications were skipped because
// a subscriber was not keeping up.
func (s *Store) DroppedNotifications() int64 {
	return s.droppedNotes.Load()
}

// notify must be called with s.mu held.
func (s *Store) notify(c Change) {
	for _, ch := range s.subs {
		select {
		case ch <- c:
		default:
			s.droppedNotes.Add(1)
		}
	}
}
