package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/alphalab/internal/universe"
)

// fetcherCmd represents the fetcher command
var fetcherCmd = &cobra.Command{
	Use:   "fetcher",
	Short: "데이터 수집 도구",
	Long: `종목 유니버스와 일봉 히스토리를 수집합니다.

이 명령어는:
- Wikipedia 에서 S&P 500 구성 종목 스크래핑
- Yahoo Finance 에서 일봉 (수정주가) 수집
- Postgres 저장 + Redis 캐시 갱신

Example:
  go run ./cmd/alphalab fetcher collect sp500 --from 2015-01-01 --limit 50
  go run ./cmd/alphalab fetcher collect static --tickers AAPL,MSFT,GOOG`,
}

// fetcherCollectCmd represents the collect subcommand
var fetcherCollectCmd = &cobra.Command{
	Use:   "collect [source]",
	Short: "데이터 수집 실행",
	Long: `지정된 소스의 종목 히스토리를 네트워크에서 다시 받아옵니다.

소스:
  sp500   - S&P 500 구성 종목
  static  - --tickers 로 지정한 종목`,
	Args: cobra.ExactArgs(1),
	RunE: runFetcherCollect,
}

var (
	// Fetcher flags
	fetcherFrom    string
	fetcherTo      string
	fetcherLimit   int
	fetcherTickers string
)

func init() {
	rootCmd.AddCommand(fetcherCmd)
	fetcherCmd.AddCommand(fetcherCollectCmd)

	fetcherCollectCmd.Flags().StringVar(&fetcherFrom, "from", "2015-01-01", "시작 날짜 (YYYY-MM-DD)")
	fetcherCollectCmd.Flags().StringVar(&fetcherTo, "to", "", "종료 날짜 (YYYY-MM-DD, 기본: 오늘)")
	fetcherCollectCmd.Flags().IntVar(&fetcherLimit, "limit", -1, "종목 수 제한 (기본: FETCH_LIMIT)")
	fetcherCollectCmd.Flags().StringVar(&fetcherTickers, "tickers", "", "static 소스 종목 (콤마 구분)")
}

func runFetcherCollect(cmd *cobra.Command, args []string) error {
	source := args[0]

	var tickers []string
	switch source {
	case universe.SourceSP500:
	case universe.SourceStatic:
		tickers = universe.ParseList(fetcherTickers)
		if len(tickers) == 0 {
			return fmt.Errorf("static source requires --tickers")
		}
	default:
		return fmt.Errorf("unknown source: %s (valid: sp500, static)", source)
	}

	start, err := time.Parse("2006-01-02", fetcherFrom)
	if err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	end := time.Now().UTC()
	if fetcherTo != "" {
		if end, err = time.Parse("2006-01-02", fetcherTo); err != nil {
			return fmt.Errorf("invalid end date: %w", err)
		}
	}

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	limit := fetcherLimit
	if limit < 0 {
		limit = cfg.Fetch.Limit
	}

	fmt.Printf("=== alphalab Data Fetcher ===\n\n")
	PrintKeyValue("Source", source, 8)
	PrintKeyValue("Period", start.Format("2006-01-02")+" ~ "+end.Format("2006-01-02"), 8)
	PrintKeyValue("Limit", fmt.Sprintf("%d", limit), 8)
	fmt.Println()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log, tickers)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer a.close()

	startTime := time.Now()
	ds, err := a.loader.Refresh(ctx, start, end, limit)
	if err != nil {
		return fmt.Errorf("collect: %w", err)
	}

	PrintSeparator()
	PrintList(ds.Tickers)
	PrintSeparator()
	PrintSuccess(fmt.Sprintf("Collected %d tickers in %.2fs", ds.Len(), time.Since(startTime).Seconds()))
	if a.db == nil {
		PrintWarning("DATABASE_URL not set: histories were not persisted")
	}
	return nil
}
