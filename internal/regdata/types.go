// Package regdata defines core types shared across subsystems.
package regdata

import (
	"math"
	"time"
)

// Category identifies one class of regulatory data tracked per source.
type Category string

// Categories tracked for every source.
const (
	CategoryDeadlines   Category = "deadlines"
	CategoryFees        Category = "fees"
	CategoryRegulations Category = "regulations"
	CategoryDrawOdds    Category = "draw_odds"
)

// AllCategories returns every tracked category in stable order.
func AllCategories() []Category {
	return []Category{CategoryDeadlines, CategoryFees, CategoryRegulations, CategoryDrawOdds}
}

// Frequency is a named re-check cadence for a (source, category) pair.
type Frequency string

// Supported crawl frequencies.
const (
	FrequencySixHours  Frequency = "6_hours"
	FrequencyTwiceWeek Frequency = "twice_week"
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyOnTrigger Frequency = "on_trigger"
)

// Interval maps a frequency to its fixed polling interval. OnTrigger is
// event-driven and returns zero.
func (f Frequency) Interval() time.Duration {
	switch f {
	case FrequencySixHours:
		return 6 * time.Hour
	case FrequencyTwiceWeek:
		return 84 * time.Hour
	case FrequencyDaily:
		return 24 * time.Hour
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	case FrequencyOnTrigger:
		return 0
	default:
		return 7 * 24 * time.Hour
	}
}

// SortInterval orders frequencies for scheduling. Event-driven cadences sort
// after every periodic one.
func (f Frequency) SortInterval() time.Duration {
	iv := f.Interval()
	if iv == 0 {
		return time.Duration(math.MaxInt64)
	}
	return iv
}

// ResidencyClass selects the fee table a value belongs to.
type ResidencyClass string

// Residency classes carried by agency fee tables.
const (
	Resident    ResidencyClass = "resident"
	NonResident ResidencyClass = "non_resident"
)

// SourceContext is the per-source snapshot supplied by the regulatory
// calendar collaborator. It is recomputed each scheduling cycle.
type SourceContext struct {
	SourceID          string             `json:"source_id"`
	Name              string             `json:"name"`
	Categories        []Category         `json:"categories"`
	NearestDeadline   *time.Time         `json:"nearest_deadline,omitempty"`
	WindowOpen        bool               `json:"window_open"`
	DaysUntilDeadline *int               `json:"days_until_deadline,omitempty"`
	URLs              map[Category]string `json:"urls"`
}

// CrawlTask is one scheduled re-check of a (source, category) pair.
// Tasks are ephemeral: the scheduler recomputes them every cycle and never
// persists them as authoritative state.
type CrawlTask struct {
	SourceID  string    `json:"source_id"`
	Category  Category  `json:"category"`
	Frequency Frequency `json:"frequency"`
	Priority  int       `json:"priority"` // 1 is most urgent, 5 least
	Reason    string    `json:"reason"`
	NextDue   time.Time `json:"next_due,omitzero"`
}

// Schedule is the full crawl plan for one scheduling cycle.
type Schedule struct {
	Tasks          []CrawlTask `json:"tasks"`
	PriorityCounts map[int]int `json:"priority_counts"`
	NextCrawl      time.Time   `json:"next_crawl,omitzero"`
}

// BackoffState is the persisted consecutive-failure record for a
// (source, category) pair. Reset to zero on a successful fetch.
type BackoffState struct {
	SourceID  string    `json:"source_id"`
	Category  Category  `json:"category"`
	Failures  int       `json:"failures"`
	LastError string    `json:"last_error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExtractionSchema describes the expected shape of one source's page.
// Authored out-of-band and static per source.
type ExtractionSchema struct {
	SourceID        string            `json:"source_id"`
	RequiredMarkers []string          `json:"required_markers"`
	FieldMarkers    map[string]string `json:"field_markers"`
	RowMarker       string            `json:"row_marker"`
	MinExpectedRows int               `json:"min_expected_rows"`
	RequiresJS      bool              `json:"requires_js"`
}

// ExtractedData is the untrusted raw output of one crawl attempt. It is
// never exposed downstream until it passes validation.
type ExtractedData struct {
	TagFees     map[string]float64 `json:"tag_fees"`
	PointCosts  map[string]float64 `json:"point_costs"`
	Deadlines   map[string]string  `json:"deadlines"`
	LicenseFees map[string]float64 `json:"license_fees"`
	Species     []string           `json:"species"`
}

// Clone performs a deep copy so validated snapshots cannot be mutated
// through aliased maps.
func (d ExtractedData) Clone() ExtractedData {
	out := ExtractedData{
		TagFees:     cloneFloats(d.TagFees),
		PointCosts:  cloneFloats(d.PointCosts),
		LicenseFees: cloneFloats(d.LicenseFees),
	}
	if d.Deadlines != nil {
		out.Deadlines = make(map[string]string, len(d.Deadlines))
		for k, v := range d.Deadlines {
			out.Deadlines[k] = v
		}
	}
	if d.Species != nil {
		out.Species = append([]string(nil), d.Species...)
	}
	return out
}

func cloneFloats(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// ViolationKind classifies a value-level validation failure.
type ViolationKind string

// Value violation kinds.
const (
	ViolationBelowMin          ViolationKind = "below_min"
	ViolationNegative          ViolationKind = "negative"
	ViolationNaN               ViolationKind = "nan"
	ViolationWrongType         ViolationKind = "wrong_type"
	ViolationInvalidDate       ViolationKind = "invalid_date"
	ViolationEmptyRequiredList ViolationKind = "empty_required_list"
)

// Code maps a kind to its alert taxonomy code.
func (k ViolationKind) Code() string {
	switch k {
	case ViolationBelowMin:
		return "SANITY_BELOW_MIN"
	case ViolationNegative:
		return "SANITY_NEGATIVE"
	case ViolationNaN:
		return "SANITY_NAN"
	case ViolationWrongType:
		return "SANITY_WRONG_TYPE"
	case ViolationInvalidDate:
		return "SANITY_INVALID_DATE"
	case ViolationEmptyRequiredList:
		return "SANITY_EMPTY_REQUIRED_LIST"
	default:
		return "SANITY_UNKNOWN"
	}
}

// Violation records one value-level defect found during validation.
type Violation struct {
	Field    string        `json:"field"`
	Kind     ViolationKind `json:"kind"`
	Observed string        `json:"observed"`
	Expected string        `json:"expected"`
}

// AnomalyResult records the year-over-year comparison outcome for one item.
type AnomalyResult struct {
	ItemID      string  `json:"item_id"`
	Delta       float64 `json:"delta"`
	Quarantined bool    `json:"quarantined"`
	Reason      string  `json:"reason"`
}

// LKGEntry is the last-known-good snapshot for one source. Exactly one
// entry exists per source; it is replaced atomically only when a new
// snapshot passes validation.
type LKGEntry struct {
	SourceID    string        `json:"source_id"`
	Data        ExtractedData `json:"data"`
	CapturedAt  time.Time     `json:"captured_at"`
	SourceURL   string        `json:"source_url"`
	ContentHash string        `json:"content_hash"`
}

// PipelineStatus is the verdict of one crawl pipeline run.
type PipelineStatus string

// Pipeline verdicts.
const (
	PipelineSuccess  PipelineStatus = "success"
	PipelineFallback PipelineStatus = "fallback"
	PipelineRejected PipelineStatus = "rejected"
)

// AlertSeverity ranks operational alerts.
type AlertSeverity string

// Alert severities.
const (
	SeverityP1 AlertSeverity = "P1"
	SeverityP2 AlertSeverity = "P2"
)

// Alert is one operational event appended to the shared alert log.
type Alert struct {
	ID       string        `json:"id"`
	SourceID string        `json:"source_id"`
	Category Category      `json:"category,omitempty"`
	Severity AlertSeverity `json:"severity"`
	Code     string        `json:"code"`
	Message  string        `json:"message"`
	RaisedAt time.Time     `json:"raised_at"`
}

// PipelineResult is the outcome of one orchestrated crawl attempt.
// CleanData is nil only when Status is rejected; when non-nil it has
// independently passed the value validator.
type PipelineResult struct {
	Status    PipelineStatus  `json:"status"`
	CleanData *ExtractedData  `json:"clean_data,omitempty"`
	Alerts    []Alert         `json:"alerts,omitempty"`
	Anomalies []AnomalyResult `json:"anomalies,omitempty"`
}

// CrawlAttempt carries everything the extraction collaborator hands the
// pipeline for one fetch of one source.
type CrawlAttempt struct {
	SourceID   string         `json:"source_id"`
	Category   Category       `json:"category"`
	URL        string         `json:"url"`
	Success    bool           `json:"success"`
	Error      string         `json:"error,omitempty"`
	RawContent string         `json:"-"`
	Extracted  *ExtractedData `json:"extracted,omitempty"`
	// Violations found at extraction time (unparseable cells and the like);
	// the pipeline treats them exactly like value-validator findings.
	ExtractViolations []Violation   `json:"extract_violations,omitempty"`
	Duration          time.Duration `json:"duration"`
	FetchedAt         time.Time     `json:"fetched_at"`
}

// FetchRequest captures one single-URL fetch of an agency page.
type FetchRequest struct {
	SourceID    string
	Category    Category
	URL         string
	UseHeadless bool
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}
