package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest [portfolio-id]",
	Short: "VaR 백테스팅 평가",
	Long: `롤링 250일 윈도우의 VaR 백테스팅 결과를 출력합니다.

Basel 신호등 구간:
  GREEN  0-4 예외
  YELLOW 5-9 예외
  RED    10+ 예외

Example:
  go run ./cmd/atlas backtest PF-1
  go run ./cmd/atlas backtest PF-1 --as-of 2025-06-30`,
	Args: cobra.ExactArgs(1),
	RunE: runBacktest,
}

var backtestAsOf string

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVar(&backtestAsOf, "as-of", "", "기준일 YYYY-MM-DD (기본: 오늘)")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	portfolioID := args[0]

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	asOf := time.Now().UTC()
	if backtestAsOf != "" {
		asOf, err = time.Parse("2006-01-02", backtestAsOf)
		if err != nil {
			return fmt.Errorf("invalid --as-of date (expected YYYY-MM-DD): %w", err)
		}
	}

	stats, err := rt.runner.BacktestStats(context.Background(), portfolioID, asOf)
	if err != nil {
		return fmt.Errorf("backtest %s: %w", portfolioID, err)
	}

	fmt.Printf("\n=== VaR Backtesting: %s ===\n", portfolioID)
	fmt.Printf("  Window:        %d days\n", stats.TotalDays)
	fmt.Printf("  Exceptions:    %d (%.2f%%)\n", stats.Exceptions, stats.ExceptionRate*100)
	fmt.Printf("  Traffic light: %s\n", stats.TrafficLight)
	fmt.Printf("  Kupiec p:      %.4f\n", stats.KupiecPValue)
	fmt.Printf("  Multiplier:    %.2f\n", stats.VaRMultiplier)
	return nil
}
