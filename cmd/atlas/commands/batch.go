package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "전체 포트폴리오 야간 배치 실행",
	Long: `활성 포트폴리오 전체의 리스크 스냅샷을 계산합니다.

이 명령어는:
- 활성 포트폴리오 목록 조회
- 포트폴리오별 병렬 계산 (CPU 코어 수 한도)
- 스냅샷/알림/DQ 이슈 저장

Example:
  go run ./cmd/atlas batch
  go run ./cmd/atlas batch --as-of 2025-06-30`,
	RunE: runBatch,
}

var batchAsOf string

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVar(&batchAsOf, "as-of", "", "기준일 YYYY-MM-DD (기본: 전영업일)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Atlas Nightly Risk Batch ===")

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	asOf, err := resolveAsOf(batchAsOf)
	if err != nil {
		return err
	}

	results, err := rt.runner.RunAll(context.Background(), asOf)
	if err != nil {
		return fmt.Errorf("batch run: %w", err)
	}

	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Printf("  ❌ %s: %v\n", r.PortfolioID, r.Err)
		} else {
			fmt.Printf("  ✅ %s: %s\n", r.PortfolioID, r.Status)
		}
	}
	fmt.Printf("\nDone: %d portfolios, %d failed\n", len(results), failed)

	if failed > 0 {
		return fmt.Errorf("%d of %d portfolios failed", failed, len(results))
	}
	return nil
}

// resolveAsOf parses the --as-of flag, defaulting to the previous
// weekday in UTC
func resolveAsOf(flag string) (time.Time, error) {
	if flag != "" {
		t, err := time.Parse("2006-01-02", flag)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid --as-of date (expected YYYY-MM-DD): %w", err)
		}
		return t, nil
	}
	now := time.Now().UTC()
	d := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, -1)
	}
	return d, nil
}
