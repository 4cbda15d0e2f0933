package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// computeCmd represents the compute command
var computeCmd = &cobra.Command{
	Use:   "compute [portfolio-id]",
	Short: "단일 포트폴리오 리스크 계산",
	Long: `하나의 포트폴리오에 대해 리스크 스냅샷을 계산하고 저장합니다.

Example:
  go run ./cmd/atlas compute PF-1
  go run ./cmd/atlas compute PF-1 --as-of 2025-06-30`,
	Args: cobra.ExactArgs(1),
	RunE: runCompute,
}

var computeAsOf string

func init() {
	rootCmd.AddCommand(computeCmd)

	computeCmd.Flags().StringVar(&computeAsOf, "as-of", "", "기준일 YYYY-MM-DD (기본: 전영업일)")
}

func runCompute(cmd *cobra.Command, args []string) error {
	portfolioID := args[0]

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	asOf, err := resolveAsOf(computeAsOf)
	if err != nil {
		return err
	}

	ctx := context.Background()
	portfolio, err := rt.portfolios.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return fmt.Errorf("portfolio %s: %w", portfolioID, err)
	}

	snapshot, err := rt.runner.ComputeOne(ctx, *portfolio, asOf)
	if err != nil {
		return fmt.Errorf("compute %s: %w", portfolioID, err)
	}

	fmt.Printf("\n=== %s @ %s (%s) ===\n", portfolioID, asOf.Format("2006-01-02"), snapshot.Status)
	if snapshot.Market != nil {
		fmt.Printf("  Market:   MV=%.2f  VaR(1d,95%%)=%.2f  DV01=%.2f\n",
			snapshot.Market.TotalMarketValue, snapshot.Market.Var1d95, snapshot.Market.DV01Total)
	}
	if snapshot.Credit != nil {
		fmt.Printf("  Credit:   Exposure=%.2f  EL=%.2f  CVA=%.2f\n",
			snapshot.Credit.TotalExposure, snapshot.Credit.ExpectedLoss, snapshot.Credit.CVATotal)
	}
	if snapshot.CCR != nil {
		fmt.Printf("  CCR:      PFE=%.2f  EAD=%.2f\n", snapshot.CCR.PFECurrent, snapshot.CCR.EADTotal)
	}
	if snapshot.Liquidity != nil {
		if snapshot.Liquidity.LCRInfinite {
			fmt.Printf("  Liquidity: LCR=∞ (순유출 없음)\n")
		} else {
			fmt.Printf("  Liquidity: LCR=%.3f\n", snapshot.Liquidity.LCRRatio)
		}
	}
	if snapshot.Capital != nil {
		fmt.Printf("  Capital:  K-NPR=%.2f  Required=%.2f  Ratio=%.3f\n",
			snapshot.Capital.KNPR, snapshot.Capital.RequiredCap, snapshot.Capital.CapitalRatio)
	}
	fmt.Printf("  Alerts:   %d yellow, %d red, %d critical\n",
		snapshot.AlertsSummary.Yellow, snapshot.AlertsSummary.Red, snapshot.AlertsSummary.Critical)
	if snapshot.ErrorMessage != "" {
		fmt.Printf("  Errors:   %s\n", snapshot.ErrorMessage)
	}
	return nil
}
