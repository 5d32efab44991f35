// Package app はアプリケーションの初期化とサブコマンドの実行を提供する。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/statuswatch/internal/check"
	"github.com/hitoshi/statuswatch/internal/company"
	"github.com/hitoshi/statuswatch/internal/config"
	"github.com/hitoshi/statuswatch/internal/database"
	"github.com/hitoshi/statuswatch/internal/handler"
	"github.com/hitoshi/statuswatch/internal/logger"
	"github.com/hitoshi/statuswatch/internal/metrics"
	"github.com/hitoshi/statuswatch/internal/middleware"
	"github.com/hitoshi/statuswatch/internal/refresh"
	"github.com/hitoshi/statuswatch/internal/repository"
	"github.com/hitoshi/statuswatch/internal/security"
	"github.com/hitoshi/statuswatch/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 設定を読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたレベルでロガーを再構成する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	var migrateAction MigrateAction
	if cmd == CommandMigrate {
		action, err := ParseMigrateArgs(args[1:])
		if err != nil {
			return err
		}
		migrateAction = action
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandRefresh:
		return runRefresh(cfg)
	case CommandMigrate:
		return runMigrate(cfg, migrateAction)
	default:
		return runServe(cfg)
	}
}

// openDB はコネクションプール設定付きでDB接続を開き、疎通を確認する。
func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")
	return db, nil
}

// newRegistry はアプリケーションとランタイムのメトリクスを登録したレジストリを返す。
func newRegistry() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// newRefreshService はステータス取得器とリポジトリを組み立ててリフレッシュサービスを生成する。
func newRefreshService(cfg *config.Config, db *sql.DB, guard *security.SSRFGuard, mc metrics.MetricsCollector) *refresh.Service {
	sanitizer := security.NewTextSanitizer()
	feeds := check.NewFeedFetcher(guard, sanitizer, cfg.CheckTimeout, cfg.CheckMaxSize)
	pages := check.NewPageScraper(guard, cfg.CheckTimeout, cfg.CheckMaxSize)

	return refresh.NewService(
		repository.NewPostgresCompanyRepo(db),
		repository.NewPostgresCompanyHistoryRepo(db),
		feeds, pages, mc, slog.Default(), cfg.RefreshMaxConcurrent,
	)
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. リポジトリ・セキュリティ・メトリクスの初期化
	companyRepo := repository.NewPostgresCompanyRepo(db)
	historyRepo := repository.NewPostgresCompanyHistoryRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	ssrfGuard := security.NewSSRFGuard()
	reg, collector := newRegistry()

	// 3. ドメインサービスの初期化
	refresher := newRefreshService(cfg, db, ssrfGuard, collector)
	detector := check.NewFeedDetector(ssrfGuard, cfg.CheckTimeout)
	companyService := company.NewService(
		companyRepo, historyRepo, ssrfGuard, detector, refresher,
		slog.Default(), cfg.HistoryLimit,
	)

	// 4. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitRefresh),
		slog.Default(),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		CompanyService: companyService,
		DB:             db,
		Gatherer:       reg,
		Logger:         slog.Default(),
	})

	// 5. HTTPサーバーの起動
	// 全件リフレッシュは企業数に比例して時間がかかるため、WriteTimeoutは長めに取る。
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 定期バッチリフレッシュと期限切れセッションの削除を実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	_, collector := newRegistry()
	refresher := newRefreshService(cfg, db, security.NewSSRFGuard(), collector)
	scheduler := refresh.NewScheduler(refresher, slog.Default())
	cleanupJob := cleanup.NewCleanupJob(repository.NewPostgresSessionRepo(db), slog.Default())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("worker starting",
		slog.Duration("refresh_interval", cfg.RefreshInterval),
		slog.Int("max_concurrent", cfg.RefreshMaxConcurrent),
		slog.Duration("session_cleanup_interval", cfg.SessionCleanupInterval),
	)

	// セッションクリーンアップをバックグラウンドで実行
	go cleanupJob.Start(ctx, cfg.SessionCleanupInterval)

	// リフレッシュスケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.RefreshInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runRefresh は全企業のリフレッシュを1回実行して終了する。
// cronなど外部スケジューラからの起動を想定する。
func runRefresh(cfg *config.Config) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	_, collector := newRegistry()
	scheduler := refresh.NewScheduler(
		newRefreshService(cfg, db, security.NewSSRFGuard(), collector),
		slog.Default(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	n, err := scheduler.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}

	slog.Info("one-shot refresh completed", slog.Int("updated_count", n))
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
func runMigrate(cfg *config.Config, action MigrateAction) error {
	slog.Info("running database migrations",
		slog.String("action", action.Name),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch action.Name {
	case "down":
		if err := database.RollbackMigrations(cfg.DatabaseURL, action.Steps); err != nil {
			return fmt.Errorf("migration rollback failed: %w", err)
		}
		slog.Info("database migrations rolled back", slog.Int("steps", action.Steps))
	case "version":
		version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to read migration version: %w", err)
		}
		slog.Info("database migration version",
			slog.Uint64("version", uint64(version)),
			slog.Bool("dirty", dirty),
		)
	default:
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		slog.Info("database migrations completed successfully")
	}
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
