// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/statuswatch/internal/metrics"
	"github.com/hitoshi/statuswatch/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRF              middleware.CSRFConfig

	CompanyService CompanyServiceInterface
	DB             Pinger
	Gatherer       prometheus.Gatherer
	Logger         *slog.Logger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → SecurityHeaders → CORS
//	  └ /api: CSRF → Session → RateLimit(General) [→ RateLimit(Refresh)]
//
// /health と /metrics は認証の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.Get("/health", NewHealthHandler(deps.DB, logger))
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	companies := NewCompanyHandler(deps.CompanyService, logger)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF, logger))
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder, logger))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		refreshLimit := deps.RateLimiter.RefreshMiddleware()

		r.Route("/api/companies", func(r chi.Router) {
			r.Get("/", companies.List)
			r.Post("/", companies.Register)
			r.With(refreshLimit).Post("/refresh", companies.RefreshAll)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", companies.Get)
				r.Delete("/", companies.Delete)
				r.Get("/history", companies.History)
				r.With(refreshLimit).Post("/refresh", companies.Refresh)
			})
		})
	})

	return r
}
