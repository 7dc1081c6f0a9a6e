package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/fpang/social-graph-bridge/internal/facebook"
	"github.com/fpang/social-graph-bridge/internal/graph"
	"github.com/fpang/social-graph-bridge/internal/profiler"
)

// RequestProfiles is the set of Graph calls made while serving one request.
type RequestProfiles struct {
	RequestID     string         `json:"requestId"`
	Method        string         `json:"method"`
	Path          string         `json:"path"`
	At            time.Time      `json:"at"`
	Calls         int            `json:"calls"`
	TotalDuration time.Duration  `json:"totalDurationNs"`
	Profiles      []ProfileEntry `json:"profiles"`
}

// ProfileEntry is the JSON form of a profiler.Profile.
type ProfileEntry struct {
	ID       int            `json:"id"`
	Request  string         `json:"request"`
	Duration *time.Duration `json:"durationNs,omitempty"`
	Code     *int           `json:"code,omitempty"`
	Outcome  string         `json:"outcome"`
	Response string         `json:"response,omitempty"`
}

// Collector keeps the profiles of the most recent requests.
type Collector struct {
	mu     sync.Mutex
	max    int
	recent []RequestProfiles
}

// NewCollector keeps up to max requests.
func NewCollector(max int) *Collector {
	return &Collector{max: max}
}

// Recent returns the kept requests, newest first.
func (c *Collector) Recent() []RequestProfiles {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]RequestProfiles, len(c.recent))
	for i, rp := range c.recent {
		out[len(c.recent)-1-i] = rp
	}
	return out
}

func (c *Collector) add(rp RequestProfiles) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recent = append(c.recent, rp)
	if len(c.recent) > c.max {
		c.recent = c.recent[len(c.recent)-c.max:]
	}
}

type servicesKey struct{}

// services is the request-scoped list of facades built while serving.
type services struct {
	mu   sync.Mutex
	list []*facebook.Service
}

func trackService(ctx context.Context, svc *facebook.Service) {
	if s, ok := ctx.Value(servicesKey{}).(*services); ok {
		s.mu.Lock()
		s.list = append(s.list, svc)
		s.mu.Unlock()
	}
}

// Middleware records the profiles of every facade built during a request.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracked := &services{}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), servicesKey{}, tracked)))

		var profiles []profiler.Profile
		tracked.mu.Lock()
		for _, svc := range tracked.list {
			profiles = append(profiles, svc.Profiles()...)
		}
		tracked.mu.Unlock()
		if len(profiles) == 0 {
			return
		}

		rp := RequestProfiles{
			RequestID: middleware.GetReqID(r.Context()),
			Method:    r.Method,
			Path:      r.URL.Path,
			At:        time.Now().UTC(),
		}
		for _, p := range profiles {
			rp.Calls++
			if p.Duration != nil {
				rp.TotalDuration += *p.Duration
			}
			rp.Profiles = append(rp.Profiles, toEntry(p))
		}
		c.add(rp)
	})
}

func toEntry(p profiler.Profile) ProfileEntry {
	e := ProfileEntry{
		ID:       p.ID,
		Duration: p.Duration,
		Code:     p.Code,
		Outcome:  p.Outcome.String(),
	}
	if p.Request != nil {
		e.Request = p.Request.String()
	}
	if p.Response != nil {
		e.Response = graph.Truncate(string(p.Response.Body), 500)
	}
	if !p.Completed() {
		e.Outcome = "in_flight"
	}
	return e
}
