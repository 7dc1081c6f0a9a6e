package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fpang/social-graph-bridge/internal/profiler"
)

// Stopwatch is a profiler.Stopwatch that opens one trace span per period.
type Stopwatch struct {
	tracer trace.Tracer
	now    func() time.Time
}

var (
	_ profiler.Stopwatch        = (*Stopwatch)(nil)
	_ profiler.ContextStopwatch = (*Stopwatch)(nil)
)

// NewStopwatch creates a stopwatch on tracer.
func NewStopwatch(tracer trace.Tracer) *Stopwatch {
	return &Stopwatch{tracer: tracer, now: time.Now}
}

// Start implements profiler.Stopwatch with a root span.
func (s *Stopwatch) Start(name, category string) profiler.Span {
	return s.StartContext(context.Background(), name, category)
}

// StartContext implements profiler.ContextStopwatch, parenting the span on
// whatever span ctx carries.
func (s *Stopwatch) StartContext(ctx context.Context, name, category string) profiler.Span {
	start := s.now()
	_, span := s.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithTimestamp(start),
		trace.WithAttributes(attribute.String("profiler.category", category)),
	)
	return &tracedSpan{span: span, start: start, now: s.now}
}

type tracedSpan struct {
	span  trace.Span
	start time.Time
	now   func() time.Time

	once sync.Once
	last time.Duration
}

// Stop ends the trace span. Only the first call has an effect.
func (t *tracedSpan) Stop() {
	t.once.Do(func() {
		end := t.now()
		t.last = end.Sub(t.start)
		t.span.End(trace.WithTimestamp(end))
	})
}

func (t *tracedSpan) LastPeriodDuration() time.Duration {
	return t.last
}
