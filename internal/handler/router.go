package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vartika/linkup/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Sessions          middleware.SessionSource
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 認証
	AuthService AuthServiceInterface

	// サインイン済みユーザーのサービス群
	Provider ServicesProvider

	// Prometheusスクレイプ用ハンドラー（nil可）
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Session → RateLimit(General)
//
// 認証ルート（/auth/*）とヘルスチェックはセッションミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	authHandler := NewAuthHandler(deps.AuthService)
	feedHandler := NewFeedHandler(deps.Provider)
	profileHandler := NewProfileHandler(deps.Provider)
	messagingHandler := NewMessagingHandler(deps.Provider)
	assistantHandler := NewAssistantHandler(deps.Provider)

	// --- 認証不要のルート ---

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.SignUp)
		r.Post("/signin", authHandler.SignIn)
		r.Post("/signout", authHandler.SignOut)
		r.Get("/me", authHandler.Me)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.Sessions))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// フィード
		r.Route("/api/feed", func(r chi.Router) {
			r.Get("/", feedHandler.ListPosts)
			r.Post("/reload", feedHandler.Reload)
			r.Post("/posts", feedHandler.CreatePost)
			r.Delete("/posts/{id}", feedHandler.DeletePost)
		})

		// プロフィール
		r.Route("/api/profile", func(r chi.Router) {
			r.Get("/", profileHandler.Get)
			r.Put("/", profileHandler.Save)
			r.Get("/username-availability", profileHandler.CheckUsername)
			r.Post("/image", profileHandler.SetImage)

			r.Post("/experiences", profileHandler.AddExperience)
			r.Delete("/experiences/{id}", profileHandler.DeleteExperience)
			r.Post("/education", profileHandler.AddEducation)
			r.Delete("/education/{id}", profileHandler.DeleteEducation)
			r.Post("/skills", profileHandler.AddSkill)
			r.Delete("/skills/{id}", profileHandler.DeleteSkill)
			r.Post("/certificates", profileHandler.AddCertificate)
			r.Delete("/certificates/{id}", profileHandler.DeleteCertificate)
		})

		// メッセージング
		r.Route("/api/conversations", func(r chi.Router) {
			r.Get("/", messagingHandler.ListConversations)
			r.Put("/selected", messagingHandler.Select)
		})
		r.Route("/api/messages", func(r chi.Router) {
			r.Get("/", messagingHandler.Thread)
			r.Put("/draft", messagingHandler.SetDraft)
			r.Post("/", messagingHandler.Send)
		})

		// AIアシスタント
		r.Route("/api/assistant", func(r chi.Router) {
			r.Get("/history", assistantHandler.History)
			r.Delete("/history", assistantHandler.Clear)

			// 生成APIクォータを守るため送信専用レート制限を追加
			r.With(deps.RateLimiter.AssistantMiddleware()).Post("/messages", assistantHandler.Send)
		})
	})

	return r
}
