// Package retry implements RetryLedger (spec.md §3, §4.G): bounded
// per-stream retry bookkeeping for the core's error-recovery paths.
package retry

import (
	"sync"

	"github.com/soundboard/playerctld/pkg/streamid"
)

// MaxRetries is the retry budget per stream-id (spec.md §3).
const MaxRetries = 2

// Ledger tracks how many times the currently-remembered stream-id has
// been retried. Safe for concurrent use; spec.md §5 gives it its own
// independent mutex.
type Ledger struct {
	mu sync.Mutex

	id    streamid.ID
	valid bool
	count int
}

// New returns an empty Ledger.
func New() *Ledger {
	return &Ledger{}
}

// Retry records a retry attempt for id. If the ledger's remembered id
// differs from id, it resets first. Returns false once the retry
// budget for id is exhausted.
func (l *Ledger) Retry(id streamid.ID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.valid || l.id != id {
		l.id = id
		l.valid = true
		l.count = 0
	}
	if l.count >= MaxRetries {
		return false
	}
	l.count++
	return true
}

// Playing records that id is now playing, resetting its retry count
// to zero (spec.md §3: "Observing a new stream-id resets both.").
func (l *Ledger) Playing(id streamid.ID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.id = id
	l.valid = true
	l.count = 0
}

// Reset invalidates the ledger entirely.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.valid = false
	l.count = 0
}

// Count returns the current retry count for diagnostics/tests.
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}
