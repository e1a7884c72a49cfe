// Package probe is a small observability buffer: a bounded ring of recent
// notable events (feed degradations, bus errors, refused cues) that the debug
// endpoint can dump. It replaces what would otherwise be ambient global
// logging state with an explicit component owned by main and injected where
// needed.
package probe

import (
	"sync"
	"time"
)

type Entry struct {
	Time    time.Time `json:"time"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	ShowID  string    `json:"showId,omitempty"`
}

// Ring is a fixed-capacity, newest-first event buffer. Safe for concurrent
// use; writes never block and never grow memory past the capacity.
type Ring struct {
	mu      sync.Mutex
	entries []Entry
	cap     int
}

func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 64
	}
	return &Ring{cap: capacity}
}

// Record appends an entry, evicting the oldest when full.
func (r *Ring) Record(kind, showID, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := Entry{Time: time.Now().UTC(), Kind: kind, Message: message, ShowID: showID}
	r.entries = append([]Entry{entry}, r.entries...)
	if len(r.entries) > r.cap {
		r.entries = r.entries[:r.cap]
	}
}

// Report returns a copy of the buffer, newest first.
func (r *Ring) Report() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
