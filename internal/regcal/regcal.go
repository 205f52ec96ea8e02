// Package regcal turns configured source entries into per-crawl regulatory
// calendar snapshots: nearest deadline, days remaining, window state.
package regcal

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/huntwise/regwatch/internal/config"
	"github.com/huntwise/regwatch/internal/regdata"
)

// Provider implements regdata.ContextProvider and regdata.SchemaProvider
// from static configuration plus an injected clock.
type Provider struct {
	sources map[string]config.SourceConfig
	clock   regdata.Clock
}

// New builds a Provider.
func New(sources map[string]config.SourceConfig, clock regdata.Clock) *Provider {
	return &Provider{sources: sources, clock: clock}
}

// Contexts returns one snapshot per configured source, sorted by id.
func (p *Provider) Contexts(_ context.Context) ([]regdata.SourceContext, error) {
	now := p.clock.Now()
	out := make([]regdata.SourceContext, 0, len(p.sources))
	for id, src := range p.sources {
		sc, err := buildContext(id, src, now)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out, nil
}

// Schema returns the extraction schema for a source.
func (p *Provider) Schema(sourceID string) (regdata.ExtractionSchema, bool) {
	src, ok := p.sources[sourceID]
	if !ok {
		return regdata.ExtractionSchema{}, false
	}
	return src.Schema.Schema(), true
}

func buildContext(id string, src config.SourceConfig, now time.Time) (regdata.SourceContext, error) {
	urls := make(map[regdata.Category]string, len(src.URLs))
	categories := make([]regdata.Category, 0, len(src.URLs))
	for raw, url := range src.URLs {
		c := regdata.Category(raw)
		urls[c] = url
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	sc := regdata.SourceContext{
		SourceID:   id,
		Name:       src.Name,
		Categories: categories,
		WindowOpen: src.WindowOpen,
		URLs:       urls,
	}

	if src.Deadline != "" {
		deadline, err := time.Parse("2006-01-02", src.Deadline)
		if err != nil {
			return regdata.SourceContext{}, fmt.Errorf("source %s deadline: %w", id, err)
		}
		days := int(deadline.Sub(now).Hours() / 24)
		if days < 0 {
			// A deadline in the past means the window already closed,
			// whatever the static flag says.
			sc.WindowOpen = false
		} else {
			sc.NearestDeadline = &deadline
			sc.DaysUntilDeadline = &days
		}
	}

	return sc, nil
}
