package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/newthinker/zhunle/internal/app"
	"github.com/newthinker/zhunle/internal/client"
	"github.com/newthinker/zhunle/internal/logger"
	"github.com/newthinker/zhunle/internal/selection"
	"github.com/newthinker/zhunle/internal/view"
	"github.com/spf13/cobra"
)

var backtestOnly string

var backtestCmd = &cobra.Command{
	Use:   "backtest [bt_id]",
	Short: "Show a backtest result",
	Long: `Fetch a backtest result and print the summary, the per-stock table and
the date-aligned equity curves. --only restricts the output to the given codes.`,
	Args: cobra.ExactArgs(1),
	RunE: runBacktest,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestOnly, "only", "", "comma separated stock codes to show")
	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	c := newClient(cfg, log)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Backend.Timeout*2)
	defer cancel()

	result, err := c.GetBacktest(ctx, args[0])
	if err != nil {
		return fmt.Errorf("fetching backtest: %s", client.UserMessage(err))
	}

	ctrl := selection.New(result.ID)
	ctrl.DataArrived(result.Items)
	applyOnly(ctrl, result.Codes(), app.ParseStocks(backtestOnly))

	printBacktest(cmd.OutOrStdout(), view.Compose(result, ctrl))
	return nil
}

// applyOnly narrows the selection to only and switches the filter on. A
// code given twice is still selected once.
func applyOnly(ctrl *selection.Controller, known, only []string) {
	if len(only) == 0 {
		return
	}
	if ctrl.IsAllSelected(known) {
		ctrl.ToggleAll()
	}
	seen := make(map[string]bool, len(only))
	for _, code := range only {
		if seen[code] {
			continue
		}
		seen[code] = true
		ctrl.ToggleCode(code)
	}
	ctrl.SetOnlySelected(true)
}

// printBacktest writes v as plain text tables.
func printBacktest(out io.Writer, v view.Backtest) {
	res := v.Result
	fmt.Fprintf(out, "=== 回测 %s ===\n", res.ID)
	start, end := view.Placeholder, view.Placeholder
	if res.Window.Start != nil {
		start = *res.Window.Start
	}
	if res.Window.End != nil {
		end = *res.Window.End
	}
	fmt.Fprintf(out, "窗口:   %s 至 %s\n", start, end)
	fmt.Fprintf(out, "基准:   %s\n", view.FormatText(res.Benchmark))
	fmt.Fprintf(out, "胜率:   %s  收益: %s  年化: %s  Sharpe: %s  MDD: %s\n",
		view.FormatPercent(res.Summary.WinRate),
		view.FormatPercent(res.Summary.Return),
		view.FormatPercent(res.Summary.Ann),
		view.FormatNumber(res.Summary.Sharpe),
		view.FormatPercent(res.Summary.MDD),
	)
	fmt.Fprintln(out)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "代码\t名称\t买入日\t卖出日\t收益\t超额\t年化\tSharpe\tMDD\tCalmar\t评级\tFlags")
	for _, item := range v.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			item.Code,
			item.DisplayName(),
			view.FormatText(item.BuyDate),
			view.FormatText(item.SellDate),
			view.FormatPercent(item.Return),
			view.FormatPercent(item.ExcessReturn),
			view.FormatPercent(item.AnnualizedReturn),
			view.FormatNumber(item.Sharpe),
			view.FormatPercent(item.MaxDrawdown),
			view.FormatNumber(item.Calmar),
			view.FormatText(string(item.Grade)),
			view.FormatFlags(item.Flags),
		)
	}
	tw.Flush()
	fmt.Fprintln(out)

	for _, row := range v.GradeBoard {
		names := "暂无股票"
		if len(row.Names) > 0 {
			names = strings.Join(row.Names, "、")
		}
		fmt.Fprintf(out, "%s: %s\n", row.Label, names)
	}

	if len(v.Chart.Rows) == 0 {
		return
	}
	fmt.Fprintln(out)

	tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	header := []string{"日期"}
	for _, code := range v.Chart.Codes {
		header = append(header, v.Chart.Names[code])
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range v.Chart.Rows {
		cells := []string{row.Date}
		for _, code := range v.Chart.Codes {
			if val, ok := row.Values[code]; ok {
				cells = append(cells, fmt.Sprintf("%.2f%%", val))
			} else {
				cells = append(cells, view.Placeholder)
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()
}
