// Package corelog provides structured, component-scoped logging for the
// player control core. It mirrors the category taxonomy the core's
// ancestor used ("INF CATEGORY message", "WRN CATEGORY message", ...)
// but backs it with zerolog so fields stay queryable instead of
// string-formatted.
package corelog

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu         sync.RWMutex
	base       zerolog.Logger
	configured bool
)

// Configure installs the process-wide base logger. Safe to call more
// than once; the last call wins. Callers that never call Configure get
// an info-level logger writing to stderr.
func Configure(level string, w *os.File) {
	mu.Lock()
	defer mu.Unlock()

	lvl := zerolog.InfoLevel
	if level != "" {
		if parsed, err := zerolog.ParseLevel(level); err == nil {
			lvl = parsed
		}
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	out := w
	if out == nil {
		out = os.Stderr
	}

	base = zerolog.New(out).With().Timestamp().Logger()
	configured = true
}

func ensure() zerolog.Logger {
	mu.RLock()
	if configured {
		l := base
		mu.RUnlock()
		return l
	}
	mu.RUnlock()
	Configure("", nil)
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// For returns a child logger tagged with the given component name, e.g.
// corelog.For("control"), corelog.For("crawler"), corelog.For("skipper").
func For(component string) zerolog.Logger {
	return ensure().With().Str("component", component).Logger()
}

var (
	onceMu   sync.Mutex
	onceSeen = map[string]time.Time{}
	onceTTL  = 30 * time.Second
)

// Once runs fn at most once per key within a dedupe window, so a
// wedged collaborator (e.g. a transport that keeps failing) logs once
// instead of flooding output every call. This implements the "log
// once" policy spec.md §7 requires for transport call failures.
func Once(key string, fn func()) {
	onceMu.Lock()
	last, seen := onceSeen[key]
	stale := !seen || time.Since(last) > onceTTL
	if stale {
		onceSeen[key] = time.Now()
	}
	onceMu.Unlock()

	if stale {
		fn()
	}
}
