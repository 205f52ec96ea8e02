package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/huntwise/regwatch/internal/backoff"
	"github.com/huntwise/regwatch/internal/dispatch"
	"github.com/huntwise/regwatch/internal/extract"
	"github.com/huntwise/regwatch/internal/headless/detector"
	"github.com/huntwise/regwatch/internal/metrics"
	"github.com/huntwise/regwatch/internal/regdata"
)

// Sentinel errors the runner returns before any network traffic happens.
var (
	ErrCrawlInFlight = errors.New("crawl already in flight for source and category")
	ErrBackoffActive = errors.New("source is in backoff, not due for retry yet")
	ErrSourcePaused  = errors.New("source is paused pending manual intervention")
	ErrNoURL         = errors.New("source has no URL for category")
	ErrNoSchema      = errors.New("source has no extraction schema")
)

// Runner drives one source crawl end to end: admission through the in-flight
// guard and the backoff gate, the fetch itself (with headless promotion),
// extraction, and finally the validation pipeline.
type Runner struct {
	guard    *dispatch.Guard
	backoffs regdata.BackoffStore
	static   regdata.Fetcher
	headless regdata.Fetcher
	detector *detector.Heuristic
	schemas  regdata.SchemaProvider
	pipeline *Pipeline
	clock    regdata.Clock
	logger   *zap.Logger
}

// NewRunner wires a Runner. The headless fetcher may be a Noop when browser
// rendering is unavailable; detection simply falls back to the static body.
func NewRunner(
	guard *dispatch.Guard,
	backoffs regdata.BackoffStore,
	static regdata.Fetcher,
	headlessFetcher regdata.Fetcher,
	det *detector.Heuristic,
	schemas regdata.SchemaProvider,
	pipe *Pipeline,
	clock regdata.Clock,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if det == nil {
		det = detector.NewHeuristic(0)
	}
	return &Runner{
		guard:    guard,
		backoffs: backoffs,
		static:   static,
		headless: headlessFetcher,
		detector: det,
		schemas:  schemas,
		pipeline: pipe,
		clock:    clock,
		logger:   logger,
	}
}

// RunSource crawls one (source, category) pair and returns the pipeline
// verdict. Failures to reach the source count against the backoff ledger;
// validation failures do not, since the source itself answered.
func (r *Runner) RunSource(ctx context.Context, src regdata.SourceContext, category regdata.Category) (regdata.PipelineResult, error) {
	url, ok := src.URLs[category]
	if !ok || url == "" {
		return regdata.PipelineResult{}, fmt.Errorf("%w: %s/%s", ErrNoURL, src.SourceID, category)
	}
	schema, ok := r.schemas.Schema(src.SourceID)
	if !ok {
		return regdata.PipelineResult{}, fmt.Errorf("%w: %s", ErrNoSchema, src.SourceID)
	}

	release, ok := r.guard.TryAcquire(src.SourceID, category)
	if !ok {
		return regdata.PipelineResult{}, fmt.Errorf("%w: %s/%s", ErrCrawlInFlight, src.SourceID, category)
	}
	defer release()

	now := r.clock.Now()
	state, err := r.backoffs.Get(ctx, src.SourceID, category)
	if err != nil {
		return regdata.PipelineResult{}, fmt.Errorf("read backoff state: %w", err)
	}
	if err := r.gate(state, now, src.SourceID, category); err != nil {
		return regdata.PipelineResult{}, err
	}

	log := r.logger.With(
		zap.String("source", src.SourceID),
		zap.String("category", string(category)),
		zap.String("url", url),
	)

	resp, fetchErr := r.fetch(ctx, regdata.FetchRequest{
		SourceID:    src.SourceID,
		Category:    category,
		URL:         url,
		UseHeadless: schema.RequiresJS,
	}, log)
	metrics.ObserveCrawlDuration(src.SourceID, resp.Duration.Seconds())

	attempt := regdata.CrawlAttempt{
		SourceID:  src.SourceID,
		Category:  category,
		URL:       url,
		Duration:  resp.Duration,
		FetchedAt: now,
	}

	if fetchErr != nil {
		metrics.ObserveFetchFailure(src.SourceID)
		if err := r.recordFailure(ctx, state, fetchErr, now); err != nil {
			return regdata.PipelineResult{}, err
		}
		log.Warn("fetch failed", zap.Error(fetchErr), zap.Int("consecutive_failures", state.Failures+1))
		attempt.Success = false
		attempt.Error = fetchErr.Error()
		return r.pipeline.Run(ctx, attempt, schema)
	}

	if state.Failures > 0 {
		// A success clears the ledger; the next failure starts over at one.
		if err := r.resetFailures(ctx, state, now); err != nil {
			return regdata.PipelineResult{}, err
		}
		metrics.SetPaused(src.SourceID, string(category), false)
	}

	attempt.RawContent = string(resp.Body)
	data, extractViolations, err := extract.Run(schema, attempt.RawContent)
	if err != nil {
		attempt.Success = false
		attempt.Error = err.Error()
		return r.pipeline.Run(ctx, attempt, schema)
	}
	attempt.Success = true
	attempt.Extracted = &data
	attempt.ExtractViolations = extractViolations

	return r.pipeline.Run(ctx, attempt, schema)
}

// gate enforces the exponential backoff schedule and the pause threshold.
func (r *Runner) gate(state regdata.BackoffState, now time.Time, sourceID string, category regdata.Category) error {
	switch d := backoff.Compute(sourceID, state.Failures, now).(type) {
	case backoff.Paused:
		metrics.SetPaused(sourceID, string(category), true)
		return fmt.Errorf("%w: %s after %d consecutive failures", ErrSourcePaused, sourceID, d.Failures)
	case backoff.Retrying:
		if state.Failures > 0 && now.Before(state.UpdatedAt.Add(d.Delay)) {
			return fmt.Errorf("%w: %s retry due at %s", ErrBackoffActive,
				sourceID, state.UpdatedAt.Add(d.Delay).Format(time.RFC3339))
		}
	}
	return nil
}

func (r *Runner) fetch(ctx context.Context, req regdata.FetchRequest, log *zap.Logger) (regdata.FetchResponse, error) {
	if req.UseHeadless {
		return r.headless.Fetch(ctx, req)
	}
	resp, err := r.static.Fetch(ctx, req)
	if err != nil {
		return regdata.FetchResponse{}, err
	}
	if r.detector.ShouldPromote(resp) {
		log.Info("promoting fetch to headless renderer")
		rendered, rerr := r.headless.Fetch(ctx, req)
		if rerr != nil {
			// Keep the static body; the structural validator decides whether
			// it is usable.
			log.Warn("headless promotion failed", zap.Error(rerr))
			return resp, nil
		}
		return rendered, nil
	}
	return resp, nil
}

func (r *Runner) recordFailure(ctx context.Context, state regdata.BackoffState, cause error, now time.Time) error {
	state.Failures++
	state.LastError = cause.Error()
	state.UpdatedAt = now
	if err := r.backoffs.Record(ctx, state); err != nil {
		return fmt.Errorf("record backoff failure: %w", err)
	}
	return nil
}

func (r *Runner) resetFailures(ctx context.Context, state regdata.BackoffState, now time.Time) error {
	state.Failures = 0
	state.LastError = ""
	state.UpdatedAt = now
	if err := r.backoffs.Record(ctx, state); err != nil {
		return fmt.Errorf("reset backoff state: %w", err)
	}
	return nil
}
