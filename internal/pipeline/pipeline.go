// Package pipeline orchestrates one crawl attempt end to end: structural and
// value validation, anomaly quarantine, and last-known-good fallback. The
// standing policy is to prefer stale-but-correct data over fresh-but-wrong
// data; nothing leaves this package unvalidated.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/huntwise/regwatch/internal/anomaly"
	"github.com/huntwise/regwatch/internal/metrics"
	"github.com/huntwise/regwatch/internal/regdata"
	"github.com/huntwise/regwatch/internal/validate"
)

// Alert codes written to the shared alert log.
const (
	CodeExtractionFailed   = "EXTRACTION_FAILED"
	CodeStructureChanged   = "DOM_STRUCTURE_CHANGED"
	CodeSanityRejected     = "SANITY_REJECTED"
	CodeLKGFallback        = "LKG_FALLBACK"
	CodeLKGMissing         = "LKG_MISSING"
	CodeAnomalyQuarantined = "ANOMALY_QUARANTINED"
	CodeDataVerified       = "DATA_VERIFIED"
)

// Options bundles the domain thresholds the orchestrator applies. Both
// tables come from configuration, not inline literals.
type Options struct {
	Floors           validate.FloorTable
	AnomalyThreshold float64
	Residency        regdata.ResidencyClass
}

// DefaultOptions applies the compiled-in tables.
func DefaultOptions() Options {
	return Options{
		Floors:           validate.DefaultFloors(),
		AnomalyThreshold: anomaly.DefaultThreshold,
		Residency:        regdata.NonResident,
	}
}

// Pipeline composes the validators, the anomaly detector, and the shared
// stores into one verdict per crawl attempt. It holds no mutable state of
// its own; the stores are passed in by the caller, which keeps it a
// function of (attempt, schema, stores).
type Pipeline struct {
	lkg     regdata.LKGStore
	alerts  regdata.AlertLog
	archive regdata.BlobStore
	hasher  regdata.Hasher
	clock   regdata.Clock
	logger  *zap.Logger
	opts    Options
}

// New wires a Pipeline. Archive may be nil when raw-content archival is
// disabled.
func New(
	lkg regdata.LKGStore,
	alerts regdata.AlertLog,
	archive regdata.BlobStore,
	hasher regdata.Hasher,
	clock regdata.Clock,
	logger *zap.Logger,
	opts Options,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Floors == nil {
		opts.Floors = validate.DefaultFloors()
	}
	if opts.AnomalyThreshold <= 0 {
		opts.AnomalyThreshold = anomaly.DefaultThreshold
	}
	if opts.Residency == "" {
		opts.Residency = regdata.NonResident
	}
	return &Pipeline{
		lkg:     lkg,
		alerts:  alerts,
		archive: archive,
		hasher:  hasher,
		clock:   clock,
		logger:  logger,
		opts:    opts,
	}
}

// Run produces the verdict for one attempt. The published output of a
// success or fallback verdict always independently passes the value
// validator; that is the core guarantee of the whole system.
func (p *Pipeline) Run(
	ctx context.Context,
	attempt regdata.CrawlAttempt,
	schema regdata.ExtractionSchema,
) (regdata.PipelineResult, error) {
	log := p.logger.With(
		zap.String("source", attempt.SourceID),
		zap.String("category", string(attempt.Category)),
	)

	if !attempt.Success || attempt.Extracted == nil {
		reason := attempt.Error
		if reason == "" {
			reason = "extraction produced no data"
		}
		log.Warn("extraction stage failed", zap.String("reason", reason))
		return p.fallbackOrReject(ctx, attempt, CodeExtractionFailed,
			fmt.Sprintf("extraction failed: %s", reason))
	}

	if structure := validate.DOMStructure(attempt.RawContent, schema); !structure.Valid {
		for _, v := range structure.Violations {
			metrics.ObserveViolation(v.Code)
		}
		detail := describeStructure(structure)
		log.Warn("structural validation failed", zap.String("detail", detail))
		return p.fallbackOrReject(ctx, attempt, CodeStructureChanged,
			fmt.Sprintf("page structure changed: %s", detail))
	}

	violations := append(
		attempt.ExtractViolations,
		validate.SanityConstraints(attempt.SourceID, *attempt.Extracted, p.opts.Residency, p.opts.Floors)...,
	)
	if len(violations) > 0 {
		for _, v := range violations {
			metrics.ObserveViolation(v.Kind.Code())
		}
		detail := describeViolations(violations)
		log.Warn("value validation failed", zap.Int("violations", len(violations)), zap.String("detail", detail))
		return p.fallbackOrReject(ctx, attempt, CodeSanityRejected,
			fmt.Sprintf("sanity constraints rejected new data: %s", detail))
	}

	return p.accept(ctx, attempt, log)
}

// accept promotes validated data, holding any quarantined items at their
// prior values, and atomically replaces the LKG snapshot.
func (p *Pipeline) accept(
	ctx context.Context,
	attempt regdata.CrawlAttempt,
	log *zap.Logger,
) (regdata.PipelineResult, error) {
	clean := attempt.Extracted.Clone()
	now := p.clock.Now()

	var (
		anomalies []regdata.AnomalyResult
		alerts    []regdata.Alert
	)

	prior, hasPrior, err := p.lkg.Get(ctx, attempt.SourceID)
	if err != nil {
		return regdata.PipelineResult{}, fmt.Errorf("lkg lookup: %w", err)
	}
	if hasPrior {
		anomalies = p.quarantine(prior.Data.PointCosts, clean.PointCosts, anomalies)
		anomalies = p.quarantine(prior.Data.TagFees, clean.TagFees, anomalies)
		for _, a := range anomaly.Quarantined(anomalies) {
			// Hold the prior value; the new one waits for human approval.
			holdPrior(prior.Data, clean, a.ItemID)
			metrics.ObserveQuarantine(attempt.SourceID)
			alert := p.newAlert(attempt, regdata.SeverityP2, CodeAnomalyQuarantined,
				a.ItemID+": "+a.Reason, now)
			alerts = append(alerts, alert)
			if err := p.alerts.Append(ctx, alert); err != nil {
				return regdata.PipelineResult{}, fmt.Errorf("append anomaly alert: %w", err)
			}
		}
	}

	// The held values came from the prior validated snapshot, but re-check
	// the composite anyway: published output must always pass on its own.
	if post := validate.SanityConstraints(attempt.SourceID, clean, p.opts.Residency, p.opts.Floors); len(post) > 0 {
		return p.fallbackOrReject(ctx, attempt, CodeSanityRejected,
			"post-quarantine data failed re-validation: "+describeViolations(post))
	}

	hash := ""
	if p.hasher != nil && attempt.RawContent != "" {
		if hash, err = p.hasher.Hash([]byte(attempt.RawContent)); err != nil {
			return regdata.PipelineResult{}, fmt.Errorf("hash content: %w", err)
		}
	}
	p.archiveContent(ctx, attempt, hash, log)

	entry := regdata.LKGEntry{
		SourceID:    attempt.SourceID,
		Data:        clean,
		CapturedAt:  now,
		SourceURL:   attempt.URL,
		ContentHash: hash,
	}
	if err := p.lkg.Put(ctx, entry); err != nil {
		return regdata.PipelineResult{}, fmt.Errorf("replace lkg snapshot: %w", err)
	}

	verified := p.newAlert(attempt, regdata.SeverityP2, CodeDataVerified,
		fmt.Sprintf("validated snapshot accepted (%d tag fees, %d deadlines)", len(clean.TagFees), len(clean.Deadlines)), now)
	if err := p.alerts.Append(ctx, verified); err != nil {
		return regdata.PipelineResult{}, fmt.Errorf("append verified alert: %w", err)
	}

	metrics.ObservePipeline(attempt.SourceID, string(regdata.PipelineSuccess))
	log.Info("snapshot accepted",
		zap.Int("quarantined", len(anomaly.Quarantined(anomalies))),
		zap.String("hash", hash),
	)

	return regdata.PipelineResult{
		Status:    regdata.PipelineSuccess,
		CleanData: &clean,
		Alerts:    alerts,
		Anomalies: anomalies,
	}, nil
}

func (p *Pipeline) quarantine(old, next map[string]float64, acc []regdata.AnomalyResult) []regdata.AnomalyResult {
	if len(old) == 0 || len(next) == 0 {
		return acc
	}
	return append(acc, anomaly.Check(old, next, p.opts.AnomalyThreshold)...)
}

// fallbackOrReject consults the LKG registry after any rejection: serve the
// prior snapshot unchanged when one exists, otherwise publish nothing and
// demand manual capture. Either way a P1 alert records what was rejected.
func (p *Pipeline) fallbackOrReject(
	ctx context.Context,
	attempt regdata.CrawlAttempt,
	code, reason string,
) (regdata.PipelineResult, error) {
	now := p.clock.Now()

	entry, ok, err := p.lkg.Get(ctx, attempt.SourceID)
	if err != nil {
		return regdata.PipelineResult{}, fmt.Errorf("lkg lookup: %w", err)
	}

	if ok {
		// LKG data passed validation when captured; still verify against the
		// current floors before serving it.
		if post := validate.SanityConstraints(attempt.SourceID, entry.Data, p.opts.Residency, p.opts.Floors); len(post) == 0 {
			data := entry.Data.Clone()
			alert := p.newAlert(attempt, regdata.SeverityP1, CodeLKGFallback,
				fmt.Sprintf("%s; serving last known good captured %s", reason, entry.CapturedAt.Format("2006-01-02")), now)
			if err := p.alerts.Append(ctx, alert); err != nil {
				return regdata.PipelineResult{}, fmt.Errorf("append fallback alert: %w", err)
			}
			metrics.ObserveFallback(attempt.SourceID)
			metrics.ObservePipeline(attempt.SourceID, string(regdata.PipelineFallback))
			return regdata.PipelineResult{
				Status:    regdata.PipelineFallback,
				CleanData: &data,
				Alerts:    []regdata.Alert{alert},
			}, nil
		}
		reason += "; stored last known good also fails current sanity floors"
	}

	alert := p.newAlert(attempt, regdata.SeverityP1, CodeLKGMissing,
		fmt.Sprintf("%s; no usable last known good, manual capture required", reason), now)
	if err := p.alerts.Append(ctx, alert); err != nil {
		return regdata.PipelineResult{}, fmt.Errorf("append rejection alert: %w", err)
	}
	metrics.ObservePipeline(attempt.SourceID, string(regdata.PipelineRejected))
	return regdata.PipelineResult{
		Status: regdata.PipelineRejected,
		Alerts: []regdata.Alert{alert},
	}, nil
}

func (p *Pipeline) archiveContent(ctx context.Context, attempt regdata.CrawlAttempt, hash string, log *zap.Logger) {
	if p.archive == nil || attempt.RawContent == "" {
		return
	}
	path := fmt.Sprintf("%s/%s/%s.html", attempt.SourceID, attempt.Category, hash)
	if _, err := p.archive.PutObject(ctx, path, "text/html", []byte(attempt.RawContent)); err != nil {
		// Archival is best effort; losing the raw page never blocks promotion.
		log.Warn("archive raw content failed", zap.Error(err))
	}
}

func (p *Pipeline) newAlert(attempt regdata.CrawlAttempt, sev regdata.AlertSeverity, code, message string, now time.Time) regdata.Alert {
	return regdata.Alert{
		ID:       uuid.NewString(),
		SourceID: attempt.SourceID,
		Category: attempt.Category,
		Severity: sev,
		Code:     code,
		Message:  message,
		RaisedAt: now,
	}
}

func describeStructure(report validate.StructureReport) string {
	parts := make([]string, 0, len(report.Violations))
	for _, v := range report.Violations {
		parts = append(parts, v.Detail)
	}
	return strings.Join(parts, "; ")
}

func describeViolations(violations []regdata.Violation) string {
	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		parts = append(parts, fmt.Sprintf("%s %s (observed %s, expected %s)", v.Field, v.Kind.Code(), v.Observed, v.Expected))
	}
	return strings.Join(parts, "; ")
}

func holdPrior(prior, clean regdata.ExtractedData, itemID string) {
	if v, ok := prior.PointCosts[itemID]; ok {
		if _, present := clean.PointCosts[itemID]; present {
			clean.PointCosts[itemID] = v
		}
	}
	if v, ok := prior.TagFees[itemID]; ok {
		if _, present := clean.TagFees[itemID]; present {
			clean.TagFees[itemID] = v
		}
	}
}
