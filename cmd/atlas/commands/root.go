package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "atlas",
	Short: "Atlas - Class 2 투자회사 리스크 엔진",
	Long: `Atlas Risk Engine CLI

채권/파생 포트폴리오의 일일 리스크 배치.
시장리스크(VaR), 신용, CCR/CVA, 유동성(LCR), IFR 자본, 스트레스까지
하나의 스냅샷으로 산출한다.

Usage:
  go run ./cmd/atlas [command]

Examples:
  go run ./cmd/atlas api
  go run ./cmd/atlas batch --as-of 2025-06-30
  go run ./cmd/atlas compute PF-1
  go run ./cmd/atlas backtest PF-1`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "development", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
