// Package extract turns raw agency HTML into ExtractedData using the
// source's authored schema of CSS selectors.
package extract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/huntwise/regwatch/internal/regdata"
)

// Field names recognized in an ExtractionSchema's marker map.
const (
	FieldTagFees     = "tag_fees"
	FieldPointCosts  = "point_costs"
	FieldLicenseFees = "license_fees"
	FieldDeadlines   = "deadlines"
	FieldSpecies     = "species"
)

// Run parses html and extracts every field the schema names. Cells that
// fail numeric parsing become wrong_type violations rather than silently
// dropped values; the pipeline treats them like any other value defect.
func Run(schema regdata.ExtractionSchema, html string) (regdata.ExtractedData, []regdata.Violation, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return regdata.ExtractedData{}, nil, fmt.Errorf("parse html: %w", err)
	}

	var (
		data       regdata.ExtractedData
		violations []regdata.Violation
	)

	if sel, ok := schema.FieldMarkers[FieldTagFees]; ok {
		data.TagFees, violations = moneyTable(doc, sel, FieldTagFees, violations)
	}
	if sel, ok := schema.FieldMarkers[FieldPointCosts]; ok {
		data.PointCosts, violations = moneyTable(doc, sel, FieldPointCosts, violations)
	}
	if sel, ok := schema.FieldMarkers[FieldLicenseFees]; ok {
		data.LicenseFees, violations = moneyTable(doc, sel, FieldLicenseFees, violations)
	}
	if sel, ok := schema.FieldMarkers[FieldDeadlines]; ok {
		data.Deadlines = textTable(doc, sel)
	}
	if sel, ok := schema.FieldMarkers[FieldSpecies]; ok {
		data.Species = textList(doc, sel)
	}

	return data, violations, nil
}

// moneyTable reads rows matched by selector: first cell is the item id,
// last cell the dollar amount.
func moneyTable(doc *goquery.Document, selector, field string, violations []regdata.Violation) (map[string]float64, []regdata.Violation) {
	out := make(map[string]float64)
	doc.Find(selector).Each(func(_ int, row *goquery.Selection) {
		item, raw := rowCells(row)
		if item == "" {
			return
		}
		value, err := parseMoney(raw)
		if err != nil {
			violations = append(violations, regdata.Violation{
				Field:    field + "." + item,
				Kind:     regdata.ViolationWrongType,
				Observed: raw,
				Expected: "numeric dollar amount",
			})
			return
		}
		out[item] = value
	})
	return out, violations
}

func textTable(doc *goquery.Document, selector string) map[string]string {
	out := make(map[string]string)
	doc.Find(selector).Each(func(_ int, row *goquery.Selection) {
		item, raw := rowCells(row)
		if item == "" {
			return
		}
		out[item] = raw
	})
	return out
}

func textList(doc *goquery.Document, selector string) []string {
	out := []string{}
	doc.Find(selector).Each(func(_ int, el *goquery.Selection) {
		if text := normalize(el.Text()); text != "" {
			out = append(out, text)
		}
	})
	return out
}

func rowCells(row *goquery.Selection) (item, value string) {
	cells := row.Find("td,th")
	if cells.Length() < 2 {
		return "", ""
	}
	item = normalizeKey(cells.First().Text())
	value = normalize(cells.Last().Text())
	return item, value
}

func parseMoney(raw string) (float64, error) {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(raw)
	if cleaned == "" {
		return 0, fmt.Errorf("empty cell")
	}
	return strconv.ParseFloat(cleaned, 64)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.ReplaceAll(normalize(s), " ", "_"))
}
