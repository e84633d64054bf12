package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/alphalab/internal/runner"
	"github.com/wonny/alphalab/internal/scheduler"
	"github.com/wonny/alphalab/internal/scheduler/jobs"
	"github.com/wonny/alphalab/internal/strategyconfig"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `데이터 갱신과 정기 백테스트를 스케줄합니다.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행

Example:
  go run ./cmd/alphalab scheduler start --run runs/momentum.yaml
  go run ./cmd/alphalab scheduler list
  go run ./cmd/alphalab scheduler run dataset_refresh`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- dataset_refresh: 평일 22:30 UTC (S&P 500 히스토리 갱신)
- backtest_<strategy>: 매일 23:00 UTC (--run 으로 지정한 실행 파일마다)
- cache_cleanup: 5분마다 (Redis 비활성 시 메모리 캐시 정리)

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}

	// Flags
	schedulerRunFiles []string
	schedulerFrom     string
	schedulerLimit    int
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)

	schedulerCmd.PersistentFlags().StringSliceVar(&schedulerRunFiles, "run", nil, "정기 실행할 YAML 실행 파일 (반복 가능)")
	schedulerCmd.PersistentFlags().StringVar(&schedulerFrom, "from", "2015-01-01", "데이터 갱신 시작 날짜")
	schedulerCmd.PersistentFlags().IntVar(&schedulerLimit, "limit", -1, "데이터 갱신 종목 수 (기본: FETCH_LIMIT)")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== alphalab Scheduler ===")

	sched, closeFn, err := initScheduler(cmd.Context())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer closeFn()

	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	printJobs(sched)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	printStats(sched)
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	sched, closeFn, err := initScheduler(cmd.Context())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer closeFn()

	printJobs(sched)
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	sched, closeFn, err := initScheduler(cmd.Context())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer closeFn()

	fmt.Printf("Running job: %s\n", jobName)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := sched.RunNow(ctx, jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("job %s failed after %d attempts: %s", jobName, result.Attempts, result.Error)
	}

	PrintSuccess(fmt.Sprintf("Job %s completed in %.2fs", jobName, result.Duration.Seconds()))
	return nil
}

func printJobs(sched *scheduler.Scheduler) {
	fmt.Println("Registered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		next, err := sched.NextRun(jobName)
		if err != nil || next.IsZero() {
			fmt.Printf("  - %s\n", jobName)
			continue
		}
		fmt.Printf("  - %s (next: %s)\n", jobName, next.Format("2006-01-02 15:04:05"))
	}
}

func printStats(sched *scheduler.Scheduler) {
	for _, jobName := range sched.GetAllJobs() {
		stat, ok := sched.GetJobStats()[jobName]
		if !ok || stat.TotalRuns == 0 {
			continue
		}
		fmt.Printf("📊 %s\n", jobName)
		fmt.Printf("   Schedule: %s\n", stat.Schedule)
		fmt.Printf("   Total Runs: %d\n", stat.TotalRuns)
		fmt.Printf("   Success: %d (%.1f%%)\n", stat.SuccessCount, stat.SuccessRate*100)
		fmt.Printf("   Failures: %d\n", stat.FailureCount)
		if stat.LastRun != nil {
			fmt.Printf("   Last Run: %s\n", stat.LastRun.Format("2006-01-02 15:04:05"))
		}
	}
}

func initScheduler(ctx context.Context) (*scheduler.Scheduler, func(), error) {
	// 1. Load config + logger
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	start, err := time.Parse("2006-01-02", schedulerFrom)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid --from: %w", err)
	}
	limit := schedulerLimit
	if limit < 0 {
		limit = cfg.Fetch.Limit
	}

	// 2. Run files
	requests := make([]runner.Request, 0, len(schedulerRunFiles))
	for _, path := range schedulerRunFiles {
		runCfg, _, err := strategyconfig.Load(path)
		if err != nil {
			return nil, nil, err
		}
		if err := strategyconfig.Validate(runCfg); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}
		req, err := runner.RequestFromConfig(runCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}
		requests = append(requests, req)
	}

	// 3. Wire the S&P 500 app; static-universe runs subset it
	a, err := newApp(ctx, cfg, log, nil)
	if err != nil {
		return nil, nil, err
	}

	// 4. Scheduler + jobs
	sched := scheduler.New(log)

	if err := sched.AddJob(jobs.NewDatasetRefreshJob(a.loader, start, limit, "", log)); err != nil {
		a.close()
		return nil, nil, err
	}
	if a.memory != nil {
		if err := sched.AddJob(jobs.NewCacheCleanupJob(a.memory)); err != nil {
			a.close()
			return nil, nil, err
		}
	}
	for _, req := range requests {
		if err := sched.AddJob(jobs.NewBacktestJob(a.runner, req, "", log)); err != nil {
			a.close()
			return nil, nil, err
		}
	}

	return sched, a.close, nil
}
