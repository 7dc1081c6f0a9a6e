package profiler

import (
	"context"
	"sync"
	"time"
)

// Span is a named timing measurement.
type Span interface {
	Stop()
	LastPeriodDuration() time.Duration
}

// Stopwatch starts spans. Starting a name that is already known opens a new
// period on the same span.
type Stopwatch interface {
	Start(name, category string) Span
}

// ContextStopwatch is implemented by stopwatches that can parent their spans
// on the request context (e.g. tracing-backed ones).
type ContextStopwatch interface {
	StartContext(ctx context.Context, name, category string) Span
}

// Period is one start/stop interval of a span.
type Period struct {
	Start time.Time
	End   time.Time
}

// Duration returns the length of the period.
func (p Period) Duration() time.Duration {
	return p.End.Sub(p.Start)
}

// LocalStopwatch is an in-process Stopwatch.
type LocalStopwatch struct {
	mu    sync.Mutex
	now   func() time.Time
	spans map[string]*localSpan
}

// Compile-time interface check.
var _ Stopwatch = (*LocalStopwatch)(nil)

// NewStopwatch creates an in-process stopwatch.
func NewStopwatch() *LocalStopwatch {
	return &LocalStopwatch{
		now:   time.Now,
		spans: make(map[string]*localSpan),
	}
}

// Start implements Stopwatch.
func (s *LocalStopwatch) Start(name, category string) Span {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp, ok := s.spans[name]
	if !ok {
		sp = &localSpan{name: name, category: category, now: s.now}
		s.spans[name] = sp
	}
	sp.start()
	return sp
}

// Periods returns the recorded periods of the named span.
func (s *LocalStopwatch) Periods(name string) []Period {
	s.mu.Lock()
	sp, ok := s.spans[name]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return append([]Period(nil), sp.periods...)
}

type localSpan struct {
	mu       sync.Mutex
	name     string
	category string
	now      func() time.Time
	started  []time.Time
	periods  []Period
}

func (sp *localSpan) start() {
	sp.mu.Lock()
	sp.started = append(sp.started, sp.now())
	sp.mu.Unlock()
}

// Stop closes the most recently opened period. Stopping a span with no open
// period is a no-op.
func (sp *localSpan) Stop() {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if len(sp.started) == 0 {
		return
	}
	last := len(sp.started) - 1
	sp.periods = append(sp.periods, Period{Start: sp.started[last], End: sp.now()})
	sp.started = sp.started[:last]
}

func (sp *localSpan) LastPeriodDuration() time.Duration {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if len(sp.periods) == 0 {
		return 0
	}
	return sp.periods[len(sp.periods)-1].Duration()
}
