package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/alphalab/pkg/config"
	"github.com/wonny/alphalab/pkg/logger"
)

var (
	// Global flags
	verbose   bool
	logFormat string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "alphalab",
	Short: "alphalab - 일별 포트폴리오 백테스팅 엔진",
	Long: `alphalab CLI

S&P 500 일봉 기반 멀티 종목 백테스팅 도구.
데이터 수집, 전략 시뮬레이션, 결과 저장, API 서버, 스케줄러.

Usage:
  go run ./cmd/alphalab [command]

Examples:
  go run ./cmd/alphalab strategies
  go run ./cmd/alphalab fetcher collect sp500 --limit 20
  go run ./cmd/alphalab backtest run --strategy momentum --from 2020-01-01 --to 2023-12-31
  go run ./cmd/alphalab backtest run --config runs/momentum.yaml
  go run ./cmd/alphalab api`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logs)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format override (console|json)")
}

// loadConfig loads the environment config and applies the global flags
func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	return cfg, logger.New(cfg), nil
}
