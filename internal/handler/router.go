package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/shipnote/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// Linear連携
	Tracker           TrackerServiceInterface
	CredentialService CredentialServiceInterface

	// アップデート生成
	UpdateService UpdateServiceInterface

	// ユーザー
	UserService UserServiceInterface

	// 運用
	DB             Pinger
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → (Session)
//
// /auth/*、/api/linear/tickets、/health、/metrics はセッション不要。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig, logger)
	linearHandler := NewLinearHandler(deps.Tracker, deps.CredentialService, logger)
	updateHandler := NewUpdateHandler(deps.UpdateService, logger)
	userHandler := NewUserHandler(deps.UserService, logger)

	// --- 認証不要のルート ---
	r.Get("/health", NewHealthHandler(deps.DB, logger))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	r.Post("/api/linear/tickets", linearHandler.Tickets)

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder, logger))

		r.Post("/api/linear/verify", linearHandler.Verify)
		r.Route("/api/linear/credential", func(r chi.Router) {
			r.Get("/", linearHandler.GetCredential)
			r.Put("/", linearHandler.PutCredential)
			r.Delete("/", linearHandler.DeleteCredential)
		})

		r.Post("/api/generate-update", updateHandler.Generate)

		r.Delete("/api/users/me", userHandler.Withdraw)
	})

	return r
}
