package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/valmeris/atlas/internal/scheduler"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "배치 스케줄러 단독 실행",
	Long: `API 서버 없이 스케줄러만 구동합니다.

등록되는 잡:
  nightly-risk-batch - 야간 리스크 배치 (기본 02:00)
  eod-backtest       - EOD P&L 기록 및 백테스팅 (기본 평일 18:30)

Example:
  go run ./cmd/atlas scheduler`,
	RunE: runSchedulerOnly,
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
}

func runSchedulerOnly(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Atlas Batch Scheduler ===")

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	sched := scheduler.New(rt.log)
	nightly := scheduler.NewNightlyRiskJob(rt.runner, rt.cfg.Batch.Schedule, rt.log)
	eod := scheduler.NewEODBacktestJob(rt.runner, rt.portfolios, rt.snapshots,
		rt.cfg.Batch.EODSchedule, rt.log)

	if err := sched.AddJob(nightly); err != nil {
		return err
	}
	if err := sched.AddJob(eod); err != nil {
		return err
	}

	sched.Start()
	defer sched.Stop()

	fmt.Println("\n✅ Scheduler running")
	for _, name := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", name)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	rt.log.Info("Scheduler shutting down")
	return nil
}
