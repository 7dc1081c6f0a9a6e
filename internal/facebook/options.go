package facebook

import (
	"time"

	"github.com/fpang/social-graph-bridge/internal/graph"
	"github.com/fpang/social-graph-bridge/internal/profiler"
)

// Option configures a Service.
type Option func(*Service)

// WithStopwatch enables call profiling. Without it the service records no
// profiles.
func WithStopwatch(sw profiler.Stopwatch) Option {
	return func(s *Service) { s.stopwatch = sw }
}

// WithTransport replaces the HTTP transport calls are sent through. The
// profiler still wraps it.
func WithTransport(t graph.Transport) Option {
	return func(s *Service) { s.transport = t }
}

// WithPersistentData sets the store the login helper keeps its state in.
func WithPersistentData(data graph.PersistentData) Option {
	return func(s *Service) { s.data = data }
}

// WithClock overrides the time source used for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}
