// Package align merges independently dated per-stock return series into
// one date-aligned table for multi-line charts.
package align

import (
	"math"
	"sort"

	"github.com/newthinker/zhunle/internal/core"
	"github.com/shopspring/decimal"
)

// Row is one chart row. Values holds the cumulative return of every stock
// observed on Date, in percent with two decimals. A code missing from
// Values has no observation on that date.
type Row struct {
	Date   string             `json:"date"`
	Values map[string]float64 `json:"values"`
}

var hundred = decimal.NewFromInt(100)

// Align builds one row per distinct date across all series, ordered by
// date. Series without points are ignored. Nothing is interpolated or
// carried forward. A NaN or infinite return leaves its code out of that
// row, the same as a missing observation.
func Align(series []core.EquitySeries) []Row {
	byDate := make(map[string]map[string]float64)
	for _, s := range NonEmpty(series) {
		for _, p := range s.Points {
			values, ok := byDate[p.Date]
			if !ok {
				values = make(map[string]float64)
				byDate[p.Date] = values
			}
			if !finite(p.Return) {
				continue
			}
			values[s.Code] = Percent(p.Return)
		}
	}

	rows := make([]Row, 0, len(byDate))
	for date, values := range byDate {
		rows = append(rows, Row{Date: date, Values: values})
	}
	// ISO dates sort correctly as strings
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Date < rows[j].Date
	})
	return rows
}

// AssetDisplayNames maps each code to the name used in legends and
// tooltips. An empty name falls back to the code; when two series share a
// code the later one wins.
func AssetDisplayNames(series []core.EquitySeries) map[string]string {
	names := make(map[string]string, len(series))
	for _, s := range NonEmpty(series) {
		if s.Name == "" {
			names[s.Code] = s.Code
			continue
		}
		names[s.Code] = s.Name
	}
	return names
}

// NonEmpty returns the series that have at least one point, order kept.
func NonEmpty(series []core.EquitySeries) []core.EquitySeries {
	out := make([]core.EquitySeries, 0, len(series))
	for _, s := range series {
		if len(s.Points) > 0 {
			out = append(out, s)
		}
	}
	return out
}

// Percent scales a fractional return to percent rounded to two decimals.
// Non-finite input is returned unchanged.
func Percent(ret float64) float64 {
	if !finite(ret) {
		return ret
	}
	return decimal.NewFromFloat(ret).Mul(hundred).Round(2).InexactFloat64()
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
