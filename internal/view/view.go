// Package view composes a backtest result and a selection controller into
// the data the table, chart and grade board render.
package view

import (
	"github.com/newthinker/zhunle/internal/align"
	"github.com/newthinker/zhunle/internal/core"
	"github.com/newthinker/zhunle/internal/selection"
)

// Selection is a read-only snapshot of a controller.
type Selection struct {
	Phase        string          `json:"phase"`
	Selected     []string        `json:"selected"`
	OnlySelected bool            `json:"only_selected"`
	AllSelected  bool            `json:"all_selected"`
	CanFilter    bool            `json:"can_filter"`
	selected     map[string]bool
}

// IsSelected reports whether code was selected when the snapshot was taken.
func (s Selection) IsSelected(code string) bool {
	return s.selected[code]
}

// GradeRow is one row of the grade board.
type GradeRow struct {
	Grade core.Grade `json:"grade"`
	Label string     `json:"label"`
	Names []string   `json:"names"`
}

// Chart is the input of the multi-line equity chart.
type Chart struct {
	Codes []string          `json:"codes"`
	Names map[string]string `json:"names"`
	Rows  []align.Row       `json:"rows"`
}

// Backtest is everything the backtest page needs.
type Backtest struct {
	Result     *core.BacktestResult `json:"result"`
	Items      []core.AssetMetrics  `json:"items"`
	AllItems   []core.AssetMetrics  `json:"-"`
	Chart      Chart                `json:"chart"`
	GradeBoard []GradeRow           `json:"grade_board"`
	Selection  Selection            `json:"selection"`
}

// Snapshot captures the controller state.
func Snapshot(c *selection.Controller) Selection {
	selected := c.Selected()
	set := make(map[string]bool, len(selected))
	for _, code := range selected {
		set[code] = true
	}
	return Selection{
		Phase:        c.Phase().String(),
		Selected:     selected,
		OnlySelected: c.OnlySelected(),
		AllSelected:  c.IsAllSelected(c.KnownCodes()),
		CanFilter:    c.CanFilter(),
		selected:     set,
	}
}

// Compose applies the controller to result. A nil result yields an empty
// view with the current selection.
func Compose(result *core.BacktestResult, c *selection.Controller) Backtest {
	v := Backtest{Result: result, Selection: Snapshot(c)}
	if result == nil {
		v.Chart = Chart{Codes: []string{}, Names: map[string]string{}, Rows: []align.Row{}}
		v.GradeBoard = Board(nil)
		return v
	}

	v.AllItems = result.Items
	v.Items = c.VisibleItems(result.Items)

	series := align.NonEmpty(c.VisibleSeries(result.ItemEquities))
	codes := make([]string, 0, len(series))
	for _, s := range series {
		codes = append(codes, s.Code)
	}
	v.Chart = Chart{
		Codes: codes,
		Names: align.AssetDisplayNames(series),
		Rows:  align.Align(series),
	}
	v.GradeBoard = Board(v.Items)
	return v
}

// Board groups items by grade from best to worst. Items without a known
// grade are left off the board.
func Board(items []core.AssetMetrics) []GradeRow {
	grades := core.Grades()
	rows := make([]GradeRow, len(grades))
	for i, g := range grades {
		rows[i] = GradeRow{Grade: g, Label: g.Label(), Names: []string{}}
		for _, item := range items {
			if item.Grade == g {
				rows[i].Names = append(rows[i].Names, item.DisplayName())
			}
		}
	}
	return rows
}
