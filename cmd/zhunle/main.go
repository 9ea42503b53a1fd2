package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	backendURL string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "zhunle",
	Short: "准了么 - backtest result viewer",
	Long: `zhunle serves the web front end of a stock recommendation backtest service.
It renders results with a per-session stock selection that filters the table,
the equity chart and the grade board.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "backtest service base URL (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
