package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/alphalab/internal/api"
	"github.com/wonny/alphalab/internal/api/handlers"
	"github.com/wonny/alphalab/internal/universe"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

Endpoints:
  GET  /health                 - Health check
  GET  /api/strategies         - 전략 목록
  POST /api/simulations        - 백테스트 실행
  GET  /api/runs               - 저장된 실행 목록
  GET  /api/runs/{id}          - 저장된 실행 조회
  GET  /api/runs/{id}/ledger   - 저장된 장부 조회

Example:
  go run ./cmd/alphalab api
  go run ./cmd/alphalab api --port 8080 --tickers AAPL,MSFT`,
	RunE: runAPIServer,
}

var (
	apiPort    string
	apiTickers string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT)")
	apiCmd.Flags().StringVar(&apiTickers, "tickers", "", "고정 종목 유니버스 (콤마 구분, 비우면 S&P 500)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== alphalab API Server ===")

	// 1. Load config + logger
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if apiPort != "" {
		cfg.Port = apiPort
	}

	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("Initializing API server")

	// 2. Wire storage, data and runner
	a, err := newApp(cmd.Context(), cfg, log, universe.ParseList(apiTickers))
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer a.close()

	// 3. Handler; stored-run endpoints need Postgres
	var runs handlers.RunReader
	if a.runs != nil {
		runs = a.runs
	}
	simHandler := handlers.NewSimulationHandler(a.runner, runs, log)

	// 4. Router + server
	router := api.NewRouter(simHandler, log)
	server := api.New(cfg, log, router)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	if err := server.Run(ctx); err != nil {
		return err
	}

	log.Info("Server stopped")
	return nil
}
