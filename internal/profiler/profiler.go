// Package profiler records timing and outcome of every Graph API call made
// through a graph.Transport.
//
// The profiler is a decorator: it implements graph.Transport, forwards each
// request to the wrapped transport, and keeps one Profile per call keyed by
// a counter that starts at 1. Without a Stopwatch it is a pass-through and
// records nothing.
package profiler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/fpang/social-graph-bridge/internal/graph"
)

// SpanName is the name and category of every span the profiler starts.
const SpanName = "facebook"

// OutcomeKind classifies how a call finished.
type OutcomeKind int

const (
	// OutcomeResponse is a normal response.
	OutcomeResponse OutcomeKind = iota + 1
	// OutcomeResponseError is a failure that still carries a response.
	OutcomeResponseError
	// OutcomeFailure is any other failure.
	OutcomeFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeResponse:
		return "response"
	case OutcomeResponseError:
		return "response_error"
	case OutcomeFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Outcome is the classified result of one call. Code is nil when the
// failure carries no status.
type Outcome struct {
	Kind     OutcomeKind
	Code     *int
	Response *graph.Response
}

// statusCoder is implemented by errors that carry a status of their own.
type statusCoder interface {
	StatusCode() int
}

// Classify maps a transport result onto an Outcome.
func Classify(resp *graph.Response, err error) Outcome {
	if err == nil {
		out := Outcome{Kind: OutcomeResponse, Response: resp}
		if resp != nil {
			out.Code = intPtr(resp.StatusCode)
		}
		return out
	}

	var respErr *graph.ResponseError
	if errors.As(err, &respErr) && respErr.Response != nil {
		return Outcome{
			Kind:     OutcomeResponseError,
			Code:     intPtr(respErr.Response.StatusCode),
			Response: respErr.Response,
		}
	}

	out := Outcome{Kind: OutcomeFailure}
	var sdkErr *graph.SDKError
	var coder statusCoder
	switch {
	case errors.As(err, &sdkErr):
		if sdkErr.Code != 0 {
			out.Code = intPtr(sdkErr.Code)
		}
	case errors.As(err, &coder):
		if c := coder.StatusCode(); c != 0 {
			out.Code = intPtr(c)
		}
	}
	return out
}

// Profile is one recorded call. Duration, Code and Response are nil while
// the call is in flight.
type Profile struct {
	ID       int
	Request  *graph.Request
	Duration *time.Duration
	Code     *int
	Response *graph.Response
	Outcome  OutcomeKind
}

// Completed reports whether the call has finished.
func (p Profile) Completed() bool {
	return p.Duration != nil
}

// Summary aggregates the recorded calls.
type Summary struct {
	Calls         int
	TotalDuration time.Duration
}

// Transport is the profiling graph.Transport decorator.
type Transport struct {
	next      graph.Transport
	stopwatch Stopwatch

	mu       sync.Mutex
	counter  int
	profiles map[int]*Profile
}

// Compile-time interface check.
var _ graph.Transport = (*Transport)(nil)

// New wraps next. A nil stopwatch disables profiling.
func New(next graph.Transport, sw Stopwatch) *Transport {
	return &Transport{
		next:      next,
		stopwatch: sw,
		profiles:  make(map[int]*Profile),
	}
}

// Enabled reports whether calls are being recorded.
func (t *Transport) Enabled() bool {
	return t.stopwatch != nil
}

// SendRequest implements graph.Transport. The wrapped transport's error is
// returned unchanged.
func (t *Transport) SendRequest(ctx context.Context, req *graph.Request) (*graph.Response, error) {
	id, span := t.startProfile(ctx, req)
	resp, err := t.next.SendRequest(ctx, req)
	t.stopProfile(id, Classify(resp, err), span)
	return resp, err
}

func (t *Transport) startProfile(ctx context.Context, req *graph.Request) (int, Span) {
	if t.stopwatch == nil {
		return 0, nil
	}

	t.mu.Lock()
	t.counter++
	id := t.counter
	t.profiles[id] = &Profile{ID: id, Request: req}
	t.mu.Unlock()

	if csw, ok := t.stopwatch.(ContextStopwatch); ok {
		return id, csw.StartContext(ctx, SpanName, SpanName)
	}
	return id, t.stopwatch.Start(SpanName, SpanName)
}

func (t *Transport) stopProfile(id int, out Outcome, span Span) {
	if t.stopwatch == nil || span == nil {
		return
	}

	span.Stop()
	d := span.LastPeriodDuration()

	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.profiles[id]
	if !ok {
		return
	}
	p.Duration = &d
	p.Code = out.Code
	p.Response = out.Response
	p.Outcome = out.Kind
}

// Counter returns the id of the most recently started call (0 if none).
func (t *Transport) Counter() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counter
}

// Profiles returns a snapshot of all entries ordered by id.
func (t *Transport) Profiles() []Profile {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Profile, 0, len(t.profiles))
	for _, p := range t.profiles {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Summary returns the call count and the sum of completed call durations.
func (t *Transport) Summary() Summary {
	var s Summary
	for _, p := range t.Profiles() {
		s.Calls++
		if p.Duration != nil {
			s.TotalDuration += *p.Duration
		}
	}
	return s
}

func intPtr(v int) *int { return &v }
