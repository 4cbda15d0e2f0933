package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/valmeris/atlas/internal/api"
	"github.com/valmeris/atlas/internal/api/handlers"
	"github.com/valmeris/atlas/internal/scheduler"
	"github.com/valmeris/atlas/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- HTTP API 서버 시작
- 스냅샷/알림/한도 조회 엔드포인트 제공
- 온디맨드 리스크 계산 트리거 제공
- 야간 배치 스케줄러 구동 (--scheduler)

Endpoints:
  GET  /health                                      - Health check
  GET  /api/v1/portfolios/{id}/snapshots/latest     - 최신 스냅샷
  GET  /api/v1/portfolios/{id}/snapshots/{date}     - 날짜별 스냅샷
  POST /api/v1/portfolios/{id}/calculate            - 온디맨드 계산
  GET  /api/v1/portfolios/{id}/alerts/{date}        - 알림 조회
  POST /api/v1/portfolios/{id}/alerts/{date}/ack    - 알림 확인 처리
  GET  /api/v1/portfolios/{id}/limits               - 한도 조회
  PUT  /api/v1/portfolios/{id}/limits               - 한도 설정
  GET  /api/v1/portfolios/{id}/backtest             - 백테스팅 통계
  GET  /api/v1/scenarios                            - 스트레스 시나리오 목록

Example:
  go run ./cmd/atlas api
  go run ./cmd/atlas api --port 8086 --scheduler`,
	RunE: runAPIServer,
}

var (
	apiPort      string
	runScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: 환경설정)")
	apiCmd.Flags().BoolVar(&runScheduler, "scheduler", false, "야간 배치/EOD 스케줄러 함께 구동")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Atlas Risk API Server ===")

	// 1. Shared wiring: config, logger, database, engine, repositories
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	if apiPort != "" {
		rt.cfg.Port = apiPort
	}

	rt.log.WithFields(map[string]interface{}{
		"port":           rt.cfg.Port,
		"env":            rt.cfg.Env,
		"engine_version": rt.engine.Config().EngineVersion,
	}).Info("Initializing API server")

	// 2. Redis cache for snapshot reads
	redisClient, err := redis.New(rt.cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()
	cache := redis.NewCache(redisClient, "atlas")

	// 3. Handler, router, server
	riskHandler := handlers.NewRiskHandler(rt.runner, rt.portfolios, rt.snapshots,
		rt.db, cache, rt.engine.Config().EngineVersion, rt.log)
	router := api.NewRouter(riskHandler, rt.log)
	server := api.New(rt.cfg, rt.log, router)

	// 4. Optional scheduler alongside the API
	if runScheduler {
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
	}

	// 5. Start server with graceful shutdown
	go func() {
		if err := server.Start(); err != nil {
			rt.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	rt.log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", rt.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	rt.log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	rt.log.Info("Server stopped")
	return nil
}
