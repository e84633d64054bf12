package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wonny/alphalab/internal/backtest"
	"github.com/wonny/alphalab/internal/runner"
	"github.com/wonny/alphalab/internal/strategy"
	"github.com/wonny/alphalab/internal/strategyconfig"
	"github.com/wonny/alphalab/internal/universe"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "백테스팅 엔진",
	Long: `일봉 데이터로 전략을 날짜별로 시뮬레이션합니다.

매일:
- 최근 거래 여부로 종목 적격성 판단
- 전일 포지션으로 손익 계산
- 전략 시그널로 자본 배분

Example:
  go run ./cmd/alphalab backtest run --strategy momentum --from 2020-01-01 --to 2023-12-31
  go run ./cmd/alphalab backtest run --config runs/momentum.yaml --csv out/momentum.csv
  go run ./cmd/alphalab backtest list
  go run ./cmd/alphalab backtest show <run_id>`,
}

var (
	backtestRunCmd = &cobra.Command{
		Use:   "run",
		Short: "백테스트 실행",
		Long: `지정된 기간 동안 백테스트를 실행합니다.

--config 를 주면 YAML 실행 파일을 사용하고, 나머지 플래그는 --csv 외에는 무시됩니다.

Flags:
  --strategy    전략 이름 (strategies 명령으로 조회)
  --from        시작 날짜 (YYYY-MM-DD)
  --to          종료 날짜 (YYYY-MM-DD, 기본: 오늘)
  --capital     초기 자본 (기본: SIM_INITIAL_CAPITAL)
  --window      적격성 윈도우 (일, 기본: SIM_ELIGIBILITY_WINDOW)
  --limit       종목 수 제한 (0 = 전체)
  --tickers     고정 종목 리스트 (콤마 구분, 비우면 S&P 500)
  --param       전략 파라미터 (key=value, 반복 가능)
  --csv         장부 CSV 저장 경로
  --save        결과를 Postgres 에 저장`,
		RunE: runBacktest,
	}

	backtestListCmd = &cobra.Command{
		Use:   "list",
		Short: "저장된 백테스트 목록",
		RunE:  listBacktests,
	}

	backtestShowCmd = &cobra.Command{
		Use:   "show [run_id]",
		Short: "저장된 백테스트 조회",
		Args:  cobra.ExactArgs(1),
		RunE:  showBacktest,
	}

	// Flags
	backtestConfig   string
	backtestStrategy string
	backtestFrom     string
	backtestTo       string
	backtestCapital  float64
	backtestWindow   int
	backtestLimit    int
	backtestTickers  string
	backtestParams   map[string]string
	backtestCSV      string
	backtestSave     bool
	backtestShowRows int
	backtestListMax  int
)

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.AddCommand(backtestRunCmd)
	backtestCmd.AddCommand(backtestListCmd)
	backtestCmd.AddCommand(backtestShowCmd)

	backtestRunCmd.Flags().StringVar(&backtestConfig, "config", "", "YAML 실행 파일")
	backtestRunCmd.Flags().StringVar(&backtestStrategy, "strategy", strategy.EqualWeightName, "전략 이름")
	backtestRunCmd.Flags().StringVar(&backtestFrom, "from", "", "시작 날짜 (YYYY-MM-DD)")
	backtestRunCmd.Flags().StringVar(&backtestTo, "to", "", "종료 날짜 (YYYY-MM-DD, 기본: 오늘)")
	backtestRunCmd.Flags().Float64Var(&backtestCapital, "capital", 0, "초기 자본")
	backtestRunCmd.Flags().IntVar(&backtestWindow, "window", 0, "적격성 윈도우 (일)")
	backtestRunCmd.Flags().IntVar(&backtestLimit, "limit", -1, "종목 수 제한 (기본: FETCH_LIMIT)")
	backtestRunCmd.Flags().StringVar(&backtestTickers, "tickers", "", "고정 종목 리스트 (콤마 구분)")
	backtestRunCmd.Flags().StringToStringVar(&backtestParams, "param", nil, "전략 파라미터 key=value")
	backtestRunCmd.Flags().StringVar(&backtestCSV, "csv", "", "장부 CSV 저장 경로")
	backtestRunCmd.Flags().BoolVar(&backtestSave, "save", false, "Postgres 에 결과 저장")

	backtestListCmd.Flags().IntVar(&backtestListMax, "limit", 20, "최대 개수")
	backtestShowCmd.Flags().IntVar(&backtestShowRows, "rows", 10, "출력할 마지막 장부 행 수")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	fmt.Println("=== alphalab Backtest Engine ===")

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	var (
		req     runner.Request
		tickers []string
		csvPath = backtestCSV
	)
	if backtestConfig != "" {
		runCfg, _, err := strategyconfig.Load(backtestConfig)
		if err != nil {
			return err
		}
		if err := strategyconfig.Validate(runCfg); err != nil {
			return err
		}
		for _, w := range strategyconfig.Warn(runCfg) {
			PrintWarning(fmt.Sprintf("[%s] %s", w.Code, w.Message))
		}
		req, err = runner.RequestFromConfig(runCfg)
		if err != nil {
			return err
		}
		tickers = req.Tickers
		if csvPath == "" {
			csvPath = runCfg.Output.CSV
		}
	} else {
		req, err = requestFromFlags()
		if err != nil {
			return err
		}
		tickers = req.Tickers
	}
	if req.Limit < 0 {
		req.Limit = cfg.Fetch.Limit
	}

	fmt.Printf("\n📈 Strategy: %s\n", req.Strategy)
	fmt.Printf("📅 Period: %s ~ %s\n", req.Start.Format("2006-01-02"), req.End.Format("2006-01-02"))
	if len(tickers) > 0 {
		fmt.Printf("🎯 Universe: %s\n", strings.Join(tickers, ", "))
	} else {
		fmt.Printf("🎯 Universe: S&P 500 (limit %d)\n", req.Limit)
	}
	fmt.Println()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log, tickers)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer a.close()

	fmt.Println("🚀 Starting backtest...")
	resp, err := a.runner.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	printBacktestResult(resp.Result)

	if resp.RunID != uuid.Nil {
		PrintSuccess(fmt.Sprintf("Run saved: %s", resp.RunID))
	}
	if csvPath != "" {
		if err := backtest.SaveLedgerCSV(csvPath, resp.Result.Ledger); err != nil {
			return err
		}
		PrintSuccess(fmt.Sprintf("Ledger written to %s", csvPath))
	}

	return nil
}

func requestFromFlags() (runner.Request, error) {
	if backtestFrom == "" {
		return runner.Request{}, fmt.Errorf("--from is required without --config")
	}
	start, err := time.Parse("2006-01-02", backtestFrom)
	if err != nil {
		return runner.Request{}, fmt.Errorf("invalid start date: %w", err)
	}

	end := time.Now().UTC()
	if backtestTo != "" {
		end, err = time.Parse("2006-01-02", backtestTo)
		if err != nil {
			return runner.Request{}, fmt.Errorf("invalid end date: %w", err)
		}
	}

	params, err := parseParams(backtestParams)
	if err != nil {
		return runner.Request{}, err
	}

	return runner.Request{
		Strategy:          backtestStrategy,
		Params:            params,
		Start:             start,
		End:               end,
		InitialCapital:    backtestCapital,
		EligibilityWindow: backtestWindow,
		Limit:             backtestLimit,
		Tickers:           universe.ParseList(backtestTickers),
		Save:              backtestSave,
	}, nil
}

// parseParams converts key=value flag pairs into strategy parameters
func parseParams(raw map[string]string) (strategy.Params, error) {
	params := make(strategy.Params, len(raw))
	for k, v := range raw {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --param %s=%s: %w", k, v, err)
		}
		params[k] = f
	}
	return params, nil
}

func printBacktestResult(result *backtest.Result) {
	s := result.Summary

	fmt.Println("\n✅ Backtest Completed")
	fmt.Println("=" + strings.Repeat("=", 60))
	fmt.Println()

	fmt.Println("📊 Summary")
	fmt.Printf("Period: %s ~ %s (%d days, %d active)\n",
		s.StartDate.Format("2006-01-02"),
		s.EndDate.Format("2006-01-02"),
		s.Days,
		s.ActiveDays)
	fmt.Printf("Instruments: %d\n", len(result.Ledger.Instruments))
	fmt.Printf("Duration: %.2f seconds\n", result.Duration.Seconds())
	fmt.Println()

	printSummary(s)

	fmt.Println("📈 Capital Curve (Last 10 Days)")
	printRows(result.Ledger.Rows, 10)
	fmt.Println()
}

func printSummary(s backtest.Summary) {
	fmt.Println("💰 Performance")
	fmt.Printf("Initial Capital: %s\n", formatNumber(s.InitialCapital))
	fmt.Printf("Final Capital:   %s\n", formatNumber(s.FinalCapital))
	fmt.Printf("P&L:             %s (%s)\n", formatNumber(s.TotalPnL), formatPercent(s.TotalReturn))
	fmt.Printf("CAGR:            %s\n", formatPercent(s.CAGR))
	fmt.Printf("Volatility:      %.2f%%\n", s.Volatility*100)
	fmt.Println()

	fmt.Println("📉 Risk Metrics")
	fmt.Printf("Sharpe Ratio:    %.2f\n", s.SharpeRatio)
	fmt.Printf("Sortino Ratio:   %.2f\n", s.SortinoRatio)
	fmt.Printf("Max Drawdown:    %.2f%%\n", s.MaxDrawdown*100)
	fmt.Printf("VaR 95%% (1d):    %.2f%%\n", s.VaR95*100)
	fmt.Printf("CVaR 95%% (1d):   %.2f%%\n", s.CVaR95*100)
	fmt.Printf("VaR 95%% (normal): %.2f%%\n", s.ParametricVaR95*100)
	fmt.Printf("Avg Leverage:    %.2f\n", s.AverageLeverage)
	fmt.Printf("Max Leverage:    %.2f\n", s.MaxLeverage)
	fmt.Println()
}

func printRows(rows []backtest.Row, n int) {
	start := len(rows) - n
	if start < 0 {
		start = 0
	}
	for _, row := range rows[start:] {
		fmt.Printf("%s: %s (%s, lev %.2f)\n",
			row.Date.Format("2006-01-02"),
			formatNumber(row.Capital),
			formatPercent(row.CapitalRet),
			row.Leverage)
	}
}

func listBacktests(cmd *cobra.Command, args []string) error {
	a, stop, err := storedRunsApp(cmd.Context())
	if err != nil {
		return err
	}
	defer stop()

	runs, err := a.runs.List(cmd.Context(), backtestListMax)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		PrintInfo("No saved runs")
		return nil
	}

	widths := []int{36, 16, 23, 10, 8}
	PrintTableHeader([]string{"RUN ID", "STRATEGY", "PERIOD", "RETURN", "SHARPE"}, widths)
	for _, r := range runs {
		PrintTableRow([]string{
			r.RunID.String(),
			r.Strategy,
			r.StartDate.Format("2006-01-02") + "~" + r.EndDate.Format("2006-01-02"),
			formatPercent(r.Summary.TotalReturn),
			fmt.Sprintf("%.2f", r.Summary.SharpeRatio),
		}, widths)
	}
	return nil
}

func showBacktest(cmd *cobra.Command, args []string) error {
	runID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid run id: %w", err)
	}

	a, stop, err := storedRunsApp(cmd.Context())
	if err != nil {
		return err
	}
	defer stop()

	rec, err := a.runs.Get(cmd.Context(), runID)
	if err != nil {
		return err
	}
	rows, err := a.runs.LedgerRows(cmd.Context(), runID)
	if err != nil {
		return err
	}

	PrintHeader(fmt.Sprintf("Run %s", rec.RunID))
	PrintKeyValue("Strategy", rec.Strategy, 12)
	PrintKeyValue("Period", rec.StartDate.Format("2006-01-02")+" ~ "+rec.EndDate.Format("2006-01-02"), 12)
	PrintKeyValue("Instruments", strings.Join(rec.Instruments, ", "), 12)
	PrintKeyValue("Config hash", rec.ConfigHash, 12)
	PrintKeyValue("Created", rec.CreatedAt.Format(time.RFC3339), 12)
	PrintSeparator()
	fmt.Println()

	printSummary(rec.Summary)
	fmt.Println("📈 Capital Curve")
	printRows(rows, backtestShowRows)

	if len(rows) > 0 {
		last := rows[len(rows)-1]
		insts := make([]string, 0, len(last.Positions))
		for inst, p := range last.Positions {
			if p.Units != 0 {
				insts = append(insts, fmt.Sprintf("%s %.4f (w %.3f)", inst, p.Units, p.Weight))
			}
		}
		sort.Strings(insts)
		fmt.Println("\n📋 Final Positions")
		PrintList(insts)
	}
	return nil
}

// storedRunsApp wires an app for the stored-run commands, which require Postgres
func storedRunsApp(ctx context.Context) (*app, func(), error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	a, err := newApp(ctx, cfg, log, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("init: %w", err)
	}
	if a.runs == nil {
		a.close()
		return nil, nil, runner.ErrStoreUnavailable
	}
	return a, a.close, nil
}
