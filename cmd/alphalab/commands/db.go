package commands

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/alphalab/pkg/database"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "PostgreSQL 연결 확인 + 스키마 적용",
	Long: `데이터베이스 연결을 테스트하고 스키마를 적용합니다.

이 명령어는:
- config에서 DATABASE_URL 로드
- 데이터베이스 연결 생성 + Ping
- market / backtest 스키마 적용 (idempotent)
- Connection Pool 통계 표시

Example:
  go run ./cmd/alphalab db`,
	RunE: runDB,
}

func init() {
	rootCmd.AddCommand(dbCmd)
}

func runDB(cmd *cobra.Command, args []string) error {
	fmt.Println("=== alphalab Database Check ===")

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	fmt.Printf("✅ Config loaded (ENV: %s)\n", cfg.Env)
	fmt.Printf("   Database URL: %s\n\n", maskPassword(cfg.Database.URL))

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("❌ Failed to connect to database: %w", err)
	}
	defer db.Close()
	fmt.Println("✅ Database connection established")

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("❌ Migration failed: %w", err)
	}
	fmt.Println("✅ Schema applied")

	stats := db.Pool.Stat()
	fmt.Println("\n📊 Connection Pool Statistics:")
	fmt.Printf("   Max Connections: %d\n", stats.MaxConns())
	fmt.Printf("   Total Connections: %d\n", stats.TotalConns())
	fmt.Printf("   Idle Connections: %d\n", stats.IdleConns())
	fmt.Printf("   Acquire Count: %d\n", stats.AcquireCount())

	return nil
}

// maskPassword masks the password in the database URL for display
func maskPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
