package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/newthinker/zhunle/internal/core"
	"github.com/newthinker/zhunle/internal/selection"
	"github.com/newthinker/zhunle/internal/view"
)

func TestPrintBacktest(t *testing.T) {
	start := "2024-01-02"
	result := &core.BacktestResult{
		ID:        "bt-1",
		Window:    core.Window{Start: &start},
		Benchmark: "HS300",
		Summary:   core.Summary{WinRate: core.Float(0.5)},
		Items: []core.AssetMetrics{
			{Code: "600519", Name: "贵州茅台", Return: core.Float(0.1), Grade: core.GradeExcellent},
			{Code: "000002", Name: "万科A"},
		},
		ItemEquities: []core.EquitySeries{
			{Code: "600519", Name: "贵州茅台", Points: []core.EquityPoint{{Date: "2024-01-02", Return: 0.01}, {Date: "2024-01-03", Return: 0.02}}},
			{Code: "000002", Name: "万科A", Points: []core.EquityPoint{{Date: "2024-01-03", Return: -0.01}}},
		},
	}

	ctrl := selection.New(result.ID)
	ctrl.DataArrived(result.Items)

	var buf bytes.Buffer
	printBacktest(&buf, view.Compose(result, ctrl))
	out := buf.String()

	for _, want := range []string{
		"=== 回测 bt-1 ===",
		"2024-01-02 至 --",
		"胜率:   50.0%",
		"贵州茅台",
		"10.0%",
		"夯: 贵州茅台",
		"拉完了: 暂无股票",
		"2.00%",
		"-1.00%",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}

	// 2024-01-02 has no observation for 000002
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "2024-01-02 ") && !strings.Contains(line, view.Placeholder) {
			t.Errorf("expected placeholder for missing value, got %q", line)
		}
	}
}

func TestPrintBacktest_Filtered(t *testing.T) {
	result := &core.BacktestResult{
		ID: "bt-2",
		Items: []core.AssetMetrics{
			{Code: "600519", Name: "贵州茅台"},
			{Code: "000002", Name: "万科A"},
		},
	}

	ctrl := selection.New(result.ID)
	ctrl.DataArrived(result.Items)
	ctrl.ToggleCode("000002")

	var buf bytes.Buffer
	printBacktest(&buf, view.Compose(result, ctrl))

	if strings.Contains(buf.String(), "万科A") {
		t.Error("deselected stock should not be printed")
	}
}

func TestApplyOnly(t *testing.T) {
	items := []core.AssetMetrics{{Code: "A"}, {Code: "B"}, {Code: "C"}}
	known := []string{"A", "B", "C"}

	tests := []struct {
		name        string
		only        []string
		wantVisible []string
		wantFilter  bool
	}{
		{"none keeps all", nil, []string{"A", "B", "C"}, false},
		{"single", []string{"B"}, []string{"B"}, true},
		{"repeated code stays selected", []string{"A", "A"}, []string{"A"}, true},
		{"repeats mixed", []string{"C", "A", "C"}, []string{"A", "C"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := selection.New("bt-1")
			ctrl.DataArrived(items)

			applyOnly(ctrl, known, tt.only)

			if ctrl.OnlySelected() != tt.wantFilter {
				t.Errorf("expected only-selected %v, got %v", tt.wantFilter, ctrl.OnlySelected())
			}
			var got []string
			for _, item := range ctrl.VisibleItems(items) {
				got = append(got, item.Code)
			}
			if strings.Join(got, ",") != strings.Join(tt.wantVisible, ",") {
				t.Errorf("expected visible %v, got %v", tt.wantVisible, got)
			}
		})
	}
}
