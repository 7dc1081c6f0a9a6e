package facebook

import (
	"io"

	"github.com/rs/zerolog/log"

	"github.com/fpang/social-graph-bridge/internal/metrics"
)

// ReportProfiles logs every recorded call at debug level and flushes the
// call metrics for operation to w. Nothing is written when no call was
// recorded.
func (s *Service) ReportProfiles(operation string, w io.Writer) {
	profiles := s.Profiles()
	for _, p := range profiles {
		evt := log.Debug().
			Int("id", p.ID).
			Str("operation", operation).
			Str("outcome", p.Outcome.String())
		if p.Request != nil {
			evt = evt.Str("request", p.Request.String())
		}
		if p.Duration != nil {
			evt = evt.Dur("duration", *p.Duration)
		}
		if p.Code != nil {
			evt = evt.Int("code", *p.Code)
		}
		evt.Msg("Graph call")
	}

	rec := metrics.GraphCalls(operation, profiles)
	if rec == nil {
		return
	}
	if w != nil {
		rec.WithWriter(w)
	}
	rec.Flush()
}
