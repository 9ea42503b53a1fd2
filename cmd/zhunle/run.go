package main

import (
	"context"
	"fmt"
	"time"

	"github.com/newthinker/zhunle/internal/app"
	"github.com/newthinker/zhunle/internal/client"
	"github.com/newthinker/zhunle/internal/logger"
	"github.com/spf13/cobra"
)

var (
	runDate      string
	runEnd       string
	runBenchmark string
	runAdjust    string
)

var runCmd = &cobra.Command{
	Use:   "run [stocks...]",
	Short: "Submit a new backtest",
	Long: `Submit stock names or codes for a backtest. Arguments may be separated by
spaces, commas or semicolons. The new result is printed when it is ready.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runDate, "date", "", "recommendation date YYYY-MM-DD (default: one week ago)")
	runCmd.Flags().StringVar(&runEnd, "end", "", "end date YYYY-MM-DD (default: latest trading day)")
	runCmd.Flags().StringVar(&runBenchmark, "benchmark", "HS300", "benchmark index: HS300, SSE or CSI1000")
	runCmd.Flags().StringVar(&runAdjust, "adjust", "post", "price adjustment: post, pre or none")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	req := client.CreateRequest{
		RecommendDate: runDate,
		Benchmark:     runBenchmark,
		PriceAdjust:   runAdjust,
	}
	for _, arg := range args {
		req.Stocks = append(req.Stocks, app.ParseStocks(arg)...)
	}
	if req.RecommendDate == "" {
		req.RecommendDate = app.DefaultRecommendDate(time.Now())
	}
	if runEnd != "" {
		req.EndDate = &runEnd
	}

	application := app.New(cfg, newClient(cfg, log), log)

	// Backtests run synchronously on the service and can take a while
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := application.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("creating backtest: %s", client.UserMessage(err))
	}

	_, v, err := application.View(ctx, "", result.ID)
	if err != nil {
		return fmt.Errorf("loading backtest: %s", client.UserMessage(err))
	}
	printBacktest(cmd.OutOrStdout(), v)
	return nil
}
