package validate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/huntwise/regwatch/internal/regdata"
)

func TestDOMStructureReportsEachMissingMarker(t *testing.T) {
	t.Parallel()

	schema := regdata.ExtractionSchema{
		SourceID:        "CO",
		RequiredMarkers: []string{"table.fee-schedule", "div#deadlines", "span.season-year"},
	}
	content := `<html><table class="fee-schedule"><tr><td>Elk</td></tr></table></html>`

	report := DOMStructure(content, schema)

	require.False(t, report.Valid)
	require.Len(t, report.Violations, 2)
	markers := []string{report.Violations[0].Marker, report.Violations[1].Marker}
	require.Contains(t, markers, "div#deadlines")
	require.Contains(t, markers, "span.season-year")
	for _, v := range report.Violations {
		require.Equal(t, CodeSelectorMissing, v.Code)
		require.Contains(t, v.Detail, v.Marker)
	}
}

func TestDOMStructureRowCount(t *testing.T) {
	t.Parallel()

	schema := regdata.ExtractionSchema{
		SourceID:        "WY",
		RequiredMarkers: []string{"table"},
		RowMarker:       "<tr",
		MinExpectedRows: 5,
	}
	content := "<table><tr><td>a</td></tr><tr><td>b</td></tr></table>"

	report := DOMStructure(content, schema)

	require.False(t, report.Valid)
	require.Equal(t, 2, report.RowCount)
	require.Len(t, report.Violations, 1)
	require.Equal(t, CodeRowCountTooLow, report.Violations[0].Code)
}

func TestDOMStructureValidPage(t *testing.T) {
	t.Parallel()

	schema := regdata.ExtractionSchema{
		RequiredMarkers: []string{"fee-schedule"},
		RowMarker:       "<tr",
		MinExpectedRows: 1,
	}
	report := DOMStructure(`<table class="fee-schedule"><tr></tr></table>`, schema)
	require.True(t, report.Valid)
	require.Empty(t, report.Violations)
}
