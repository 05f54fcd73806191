// Package app はアプリケーションの起動とワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/timetrackr/internal/admin"
	"github.com/hitoshi/timetrackr/internal/auth"
	"github.com/hitoshi/timetrackr/internal/config"
	"github.com/hitoshi/timetrackr/internal/database"
	"github.com/hitoshi/timetrackr/internal/handler"
	"github.com/hitoshi/timetrackr/internal/logger"
	"github.com/hitoshi/timetrackr/internal/metrics"
	"github.com/hitoshi/timetrackr/internal/middleware"
	"github.com/hitoshi/timetrackr/internal/persist"
	"github.com/hitoshi/timetrackr/internal/security"
	"github.com/hitoshi/timetrackr/internal/store"
	"github.com/hitoshi/timetrackr/internal/timer"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

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

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("backend", cfg.StorageBackend),
		slog.String("shape", cfg.StorageShape),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// storageSet はバックエンド選択の結果をまとめた構造体。
type storageSet struct {
	documents  store.DocumentStore
	sessionLog store.SessionLogStore
	sessions   auth.SessionStore
	close      func()
}

// buildStorage は設定に応じたストア一式を構築する。
//
// redisバックエンドでは3つのストアすべてがRedisを共有する。
// postgresバックエンドではドキュメントのみPostgreSQLに置き、追記型ストレージと
// ログインセッションはインメモリになる（対応するテーブル形状を持たないため）。
func buildStorage(cfg *config.Config) (*storageSet, error) {
	switch cfg.StorageBackend {
	case config.BackendRedis:
		client, err := store.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return &storageSet{
			documents:  store.NewRedisDocumentStore(client),
			sessionLog: store.NewRedisSessionLogStore(client),
			sessions:   auth.NewRedisSessionStore(client),
			close:      func() { client.Close() },
		}, nil

	case config.BackendPostgres:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return &storageSet{
			documents:  store.NewPostgresDocumentStore(db),
			sessionLog: store.NewMemorySessionLogStore(),
			sessions:   auth.NewMemorySessionStore(),
			close:      func() { db.Close() },
		}, nil

	case config.BackendMemory:
		return &storageSet{
			documents:  store.NewMemoryDocumentStore(),
			sessionLog: store.NewMemorySessionLogStore(),
			sessions:   auth.NewMemorySessionStore(),
			close:      func() {},
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage backend: %q", cfg.StorageBackend)
	}
}

// buildSavePolicy は設定からリトライ戦略を構築する。
func buildSavePolicy(cfg *config.Config) persist.Policy {
	if cfg.SavePolicy == config.SavePolicyBackoff {
		p := persist.NewBackoffPolicy(cfg.SaveRetryMax)
		p.Initial = cfg.SaveRetryInitial
		return p
	}
	return persist.DropPolicy{}
}

// runServe はAPIサーバーモードで起動する。
// ストアを開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. ストアの構築
	storage, err := buildStorage(cfg)
	if err != nil {
		return err
	}
	defer storage.close()

	slog.Info("storage initialized", slog.String("backend", cfg.StorageBackend))

	// 2. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. 非同期セーブとタイマーサービスの初期化
	saver := persist.NewSaver(storage.documents, buildSavePolicy(cfg), slog.Default(), collector)
	states := timer.NewRegistry(storage.documents)
	sanitizer := security.NewNoteSanitizer()
	timerService := timer.NewService(saver, sanitizer, slog.Default(), collector)

	// 4. 認証・管理サービスの初期化
	authService := auth.NewService(
		storage.sessions,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
		slog.Default(),
	)
	adminService := admin.NewService(storage.documents, slog.Default())

	// 5. レート制限の初期化（configはreq/min単位）
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.ExportRate = rate.Limit(float64(cfg.RateLimitExport) / 60.0)
	rateLimiterCfg.ExportBurst = cfg.RateLimitExport
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 6. ルーターの構築
	deps := &handler.RouterDeps{
		SessionFinder:     authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Logger:         slog.Default(),
		StatusRecorder: collector,

		States:         states,
		TimerService:   timerService,
		DataService:    timerService,
		SessionService: timerService,

		SessionLog:       storage.sessionLog,
		MirrorSessionLog: cfg.StorageShape == config.ShapeSessionLog,

		AdminService: adminService,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain: cfg.CookieDomain,
			CookieSecure: cfg.CookieSecure,
		},

		StorePinger: storage.documents,
		Gatherer:    registry,
	}

	router := handler.NewRouter(deps)

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// インフライトのセーブを完了させてから終了する
	saver.Wait()

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// postgresバックエンドでのみ有効。すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.StorageBackend != config.BackendPostgres {
		return fmt.Errorf("migrate requires STORAGE_BACKEND=postgres (got %q)", cfg.StorageBackend)
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
