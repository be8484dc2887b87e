// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
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

	"github.com/hitoshi/payhub/internal/activity"
	"github.com/hitoshi/payhub/internal/audit"
	"github.com/hitoshi/payhub/internal/config"
	"github.com/hitoshi/payhub/internal/coupon"
	"github.com/hitoshi/payhub/internal/database"
	"github.com/hitoshi/payhub/internal/gateway"
	"github.com/hitoshi/payhub/internal/handler"
	"github.com/hitoshi/payhub/internal/identity"
	"github.com/hitoshi/payhub/internal/logger"
	"github.com/hitoshi/payhub/internal/metrics"
	"github.com/hitoshi/payhub/internal/middleware"
	"github.com/hitoshi/payhub/internal/notification"
	"github.com/hitoshi/payhub/internal/payment"
	"github.com/hitoshi/payhub/internal/paymentmethod"
	"github.com/hitoshi/payhub/internal/repository"
	"github.com/hitoshi/payhub/internal/users"
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
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	log := slog.Default()

	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	historyRepo := repository.NewPostgresPaymentHistoryRepo(db)

	// 3. 外部サービスクライアントの初期化
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	gatewayClient := gateway.NewClient(httpClient, log, cfg.GatewayAPIKey, cfg.GatewayBaseURL)
	gatewayAdapter := gateway.NewAdapter(gatewayClient, log)
	identityResolver := identity.NewResolver(gatewayClient, log)

	usersClient := users.NewClient(httpClient, log, cfg.UsersServiceURL)
	notificationClient := notification.NewClient(httpClient, log, cfg.NotificationServiceURL)
	couponClient := coupon.NewClient(httpClient, log, cfg.CouponServiceURL)
	activityClient := activity.NewClient(httpClient, log, cfg.ActivityServiceURL)

	// 4. 監査イベント発行の初期化
	var auditPublisher audit.Publisher = audit.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := audit.NewKafkaPublisher(cfg.KafkaBrokers, cfg.AuditTopic, log)
		defer kafkaPublisher.Close()
		auditPublisher = kafkaPublisher
	}

	// 5. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 6. ドメインサービスの初期化
	retryPolicy := payment.RetryPolicy{
		MaxRetries: cfg.ChargeMaxRetries,
		BaseDelay:  cfg.ChargeBaseDelay,
	}

	paymentService := payment.NewService(
		usersClient, identityResolver, gatewayAdapter, historyRepo,
		notificationClient, couponClient, activityClient, auditPublisher,
		retryPolicy, collector, log,
	)

	methodService := paymentmethod.NewService(usersClient, identityResolver, gatewayAdapter, log)

	// 7. ルーターの構築
	rateLimiterCfg := middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitCharge)
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:            log,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		PaymentService:       paymentService,
		PaymentMethodService: methodService,

		HealthChecker:  db.Ping,
		MetricsHandler: metrics.Handler(registry),
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
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

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
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
