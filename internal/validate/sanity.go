package validate

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/huntwise/regwatch/internal/regdata"
)

// DeadlineLayout is the calendar format agency deadline cells must parse as.
const DeadlineLayout = "2006-01-02"

// Floors carries the minimum plausible value per financial field. No agency
// issues a $0 non-resident tag; a zero or missing fee is a defect, never a
// price.
type Floors struct {
	TagFeeMin     float64 `mapstructure:"tag_fee_min"`
	PointCostMin  float64 `mapstructure:"point_cost_min"`
	LicenseFeeMin float64 `mapstructure:"license_fee_min"`
}

// FloorTable selects floors by residency class, since resident and
// non-resident fee scales differ by an order of magnitude.
type FloorTable map[regdata.ResidencyClass]Floors

// DefaultFloors is the compiled-in table; deployments override it from
// configuration as new sources need their own bounds.
func DefaultFloors() FloorTable {
	return FloorTable{
		regdata.Resident: {
			TagFeeMin:     10,
			PointCostMin:  1,
			LicenseFeeMin: 5,
		},
		regdata.NonResident: {
			TagFeeMin:     100,
			PointCostMin:  1,
			LicenseFeeMin: 50,
		},
	}
}

// For returns the floors for a residency class, falling back to the
// non-resident scale when the class is unknown.
func (t FloorTable) For(class regdata.ResidencyClass) Floors {
	if f, ok := t[class]; ok {
		return f
	}
	return t[regdata.NonResident]
}

// SanityConstraints checks every numeric, date, and list field of one
// extraction against its bounds. It never halts on the first problem: all
// violations for the attempt are collected into a single report.
func SanityConstraints(
	sourceID string,
	data regdata.ExtractedData,
	class regdata.ResidencyClass,
	floors FloorTable,
) []regdata.Violation {
	f := floors.For(class)
	var out []regdata.Violation

	out = append(out, checkFees("tag_fees", data.TagFees, f.TagFeeMin)...)
	out = append(out, checkFees("point_costs", data.PointCosts, f.PointCostMin)...)
	out = append(out, checkFees("license_fees", data.LicenseFees, f.LicenseFeeMin)...)
	out = append(out, checkDeadlines(data.Deadlines)...)

	if data.Species != nil && len(data.Species) == 0 {
		// An empty required list means the whole page likely failed to
		// parse, not that one field is off; flag it distinctly.
		out = append(out, regdata.Violation{
			Field:    "species",
			Kind:     regdata.ViolationEmptyRequiredList,
			Observed: "[]",
			Expected: "non-empty species list; empty means total extraction failure",
		})
	}

	_ = sourceID
	return out
}

func checkFees(field string, values map[string]float64, floor float64) []regdata.Violation {
	var out []regdata.Violation
	for _, item := range sortedKeys(values) {
		v := values[item]
		path := field + "." + item
		switch {
		case math.IsNaN(v):
			out = append(out, regdata.Violation{
				Field:    path,
				Kind:     regdata.ViolationNaN,
				Observed: "NaN",
				Expected: fmt.Sprintf(">= %.2f", floor),
			})
		case v < 0:
			out = append(out, regdata.Violation{
				Field:    path,
				Kind:     regdata.ViolationNegative,
				Observed: fmt.Sprintf("%.2f", v),
				Expected: fmt.Sprintf(">= %.2f", floor),
			})
		case v < floor:
			out = append(out, regdata.Violation{
				Field:    path,
				Kind:     regdata.ViolationBelowMin,
				Observed: fmt.Sprintf("%.2f", v),
				Expected: fmt.Sprintf(">= %.2f", floor),
			})
		}
	}
	return out
}

func checkDeadlines(deadlines map[string]string) []regdata.Violation {
	var out []regdata.Violation
	for _, item := range sortedKeys(deadlines) {
		raw := deadlines[item]
		if _, err := time.Parse(DeadlineLayout, raw); err != nil {
			out = append(out, regdata.Violation{
				Field:    "deadlines." + item,
				Kind:     regdata.ViolationInvalidDate,
				Observed: raw,
				Expected: "calendar date in " + DeadlineLayout + " form",
			})
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
