// Package validate checks extracted agency pages before they can displace
// published data: structural checks against the source schema and value
// checks against per-category sanity floors.
package validate

import (
	"fmt"
	"strings"

	"github.com/huntwise/regwatch/internal/regdata"
)

// Structural error codes.
const (
	CodeSelectorMissing = "DOM_SELECTOR_MISSING"
	CodeRowCountTooLow  = "ROW_COUNT_TOO_LOW"
)

// StructureViolation names one exact structural expectation that the page
// no longer meets. The marker is always carried verbatim so a human can fix
// the schema without re-crawling.
type StructureViolation struct {
	Code   string `json:"code"`
	Marker string `json:"marker,omitempty"`
	Detail string `json:"detail"`
}

// StructureReport is the full outcome of a structural check.
type StructureReport struct {
	Valid      bool                 `json:"valid"`
	Violations []StructureViolation `json:"violations,omitempty"`
	RowCount   int                  `json:"row_count"`
}

// DOMStructure reports every required marker absent from content plus a row
// count check. Publishers redesign pages without notice; the job here is to
// detect that extraction broke, not to repair it.
func DOMStructure(content string, schema regdata.ExtractionSchema) StructureReport {
	report := StructureReport{Valid: true}

	for _, marker := range schema.RequiredMarkers {
		if marker == "" {
			continue
		}
		if !strings.Contains(content, marker) {
			report.Violations = append(report.Violations, StructureViolation{
				Code:   CodeSelectorMissing,
				Marker: marker,
				Detail: fmt.Sprintf("required marker %q not found in page content", marker),
			})
		}
	}

	if schema.RowMarker != "" {
		report.RowCount = strings.Count(content, schema.RowMarker)
		if report.RowCount < schema.MinExpectedRows {
			report.Violations = append(report.Violations, StructureViolation{
				Code:   CodeRowCountTooLow,
				Marker: schema.RowMarker,
				Detail: fmt.Sprintf(
					"found %d rows matching %q, expected at least %d",
					report.RowCount, schema.RowMarker, schema.MinExpectedRows,
				),
			})
		}
	}

	report.Valid = len(report.Violations) == 0
	return report
}
