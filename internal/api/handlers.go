package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/huntwise/regwatch/internal/backoff"
	"github.com/huntwise/regwatch/internal/digest"
	"github.com/huntwise/regwatch/internal/metrics"
	"github.com/huntwise/regwatch/internal/pipeline"
	"github.com/huntwise/regwatch/internal/regdata"
	"github.com/huntwise/regwatch/internal/schedule"
)

// getSchedule handles GET /v1/schedule: the optimal crawl plan for every
// configured source at this moment.
func (s *Server) getSchedule(w http.ResponseWriter, r *http.Request) {
	contexts, err := s.contexts.Contexts(r.Context())
	if err != nil {
		s.logger.Error("load source contexts failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load source contexts")
		return
	}
	writeJSON(w, http.StatusOK, schedule.Build(contexts, s.clock.Now()))
}

// crawlSource handles POST /v1/sources/{source_id}/crawl?category=fees.
// It runs the full pipeline synchronously and returns the verdict.
func (s *Server) crawlSource(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "source_id")
	category := regdata.Category(r.URL.Query().Get("category"))
	if category == "" {
		category = regdata.CategoryFees
	}

	src, ok, err := s.findSource(r, sourceID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load source contexts")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "source not found")
		return
	}

	result, err := s.runner.RunSource(r.Context(), src, category)
	if err != nil {
		writeError(w, crawlErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func crawlErrorStatus(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrCrawlInFlight):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrBackoffActive), errors.Is(err, pipeline.ErrSourcePaused):
		return http.StatusTooManyRequests
	case errors.Is(err, pipeline.ErrNoURL), errors.Is(err, pipeline.ErrNoSchema):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// compileDigest handles POST /v1/digest: assemble the trailing week's report
// and, when a publisher is wired, push it to the operations topic.
func (s *Server) compileDigest(w http.ResponseWriter, r *http.Request) {
	report, err := digest.Gather(r.Context(), s.alerts, s.backoffs, nil, s.clock.Now())
	if err != nil {
		s.logger.Error("digest gather failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to compile digest")
		return
	}
	metrics.SetHealthScore(report.HealthScore)

	if s.publisher != nil {
		if _, err := s.publisher.Publish(r.Context(), s.topic, report); err != nil {
			// The report is still returned; only delivery failed.
			s.logger.Error("digest publish failed", zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, report)
}

// backoffStatus is the wire form of one pair's retry state.
type backoffStatus struct {
	Category    regdata.Category `json:"category"`
	Failures    int              `json:"failures"`
	Status      string           `json:"status"`
	LastError   string           `json:"last_error,omitempty"`
	NextRetryAt *time.Time       `json:"next_retry_at,omitempty"`
}

// getBackoff handles GET /v1/sources/{source_id}/backoff.
func (s *Server) getBackoff(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "source_id")
	states, err := s.backoffs.List(r.Context())
	if err != nil {
		s.logger.Error("list backoff states failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list backoff states")
		return
	}

	now := s.clock.Now()
	out := []backoffStatus{}
	for _, state := range states {
		if state.SourceID != sourceID {
			continue
		}
		entry := backoffStatus{
			Category:  state.Category,
			Failures:  state.Failures,
			LastError: state.LastError,
		}
		switch d := backoff.Compute(state.SourceID, state.Failures, now).(type) {
		case backoff.Paused:
			entry.Status = "paused"
		case backoff.Retrying:
			entry.Status = "retrying"
			if state.Failures > 0 {
				next := state.UpdatedAt.Add(d.Delay)
				entry.NextRetryAt = &next
			}
		}
		out = append(out, entry)
	}
	writeJSON(w, http.StatusOK, map[string]any{"source_id": sourceID, "backoff": out})
}

func (s *Server) findSource(r *http.Request, sourceID string) (regdata.SourceContext, bool, error) {
	contexts, err := s.contexts.Contexts(r.Context())
	if err != nil {
		return regdata.SourceContext{}, false, err
	}
	for _, sc := range contexts {
		if sc.SourceID == sourceID {
			return sc, true, nil
		}
	}
	return regdata.SourceContext{}, false, nil
}
