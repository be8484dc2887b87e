package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/payhub/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 決済
	PaymentService PaymentServiceInterface

	// 支払い方法
	PaymentMethodService PaymentMethodServiceInterface

	// ヘルスチェック（DB疎通確認）
	HealthChecker func() error

	// Prometheusスクレイプ用ハンドラー
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → CORS → RateLimit(General)
//
// 決済実行（POST /api/payments/charge）には専用のレート制限が追加で掛かる。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	paymentHandler := NewPaymentHandler(deps.PaymentService)
	methodHandler := NewPaymentMethodHandler(deps.PaymentMethodService)

	// ヘルスチェックはミドルウェアチェーンの外に配置
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if deps.HealthChecker != nil {
			if err := deps.HealthChecker(); err != nil {
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// メトリクスもミドルウェアチェーンの外に配置
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewRecoveryMiddleware())
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/payments", func(r chi.Router) {
			// POST /api/payments/charge - 決済実行（専用レート制限を追加）
			r.With(deps.RateLimiter.ChargeMiddleware()).Post("/charge", paymentHandler.Charge)

			// 支払い方法管理
			r.Route("/methods", func(r chi.Router) {
				r.Post("/", methodHandler.Register)
				r.Post("/lookup", methodHandler.Lookup)
				r.Delete("/detach/{methodRef}", methodHandler.Detach)

				r.Route("/{email}", func(r chi.Router) {
					r.Get("/", methodHandler.List)
					r.Get("/{methodRef}", methodHandler.Get)
					r.Put("/default/{methodRef}", methodHandler.SetDefault)
				})
			})

			// 支払い履歴
			r.Route("/history", func(r chi.Router) {
				r.Get("/", paymentHandler.ListAllHistory)
				r.Get("/{email}", paymentHandler.ListUserHistory)
			})
		})
	})

	return r
}
