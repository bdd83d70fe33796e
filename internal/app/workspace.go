package app

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vartika/linkup/internal/assistant"
	"github.com/vartika/linkup/internal/backend"
	"github.com/vartika/linkup/internal/config"
	"github.com/vartika/linkup/internal/feed"
	"github.com/vartika/linkup/internal/handler"
	"github.com/vartika/linkup/internal/messaging"
	"github.com/vartika/linkup/internal/metrics"
	"github.com/vartika/linkup/internal/model"
	"github.com/vartika/linkup/internal/preview"
	"github.com/vartika/linkup/internal/profile"
	"github.com/vartika/linkup/internal/security"
	"github.com/vartika/linkup/internal/upload"
)

// workspace はサインイン済みユーザーに紐づくサービス群のライフサイクルを管理する。
//
// 認証状態の変化通知を受けてサービス群を構築・破棄する。
// handler.ServicesProviderを実装し、ルーターへ現在のサービス群を提供する。
type workspace struct {
	cfg       *config.Config
	client    *backend.Client
	realtime  *backend.RealtimeClient
	collector metrics.MetricsCollector
	logger    *slog.Logger

	mu       sync.RWMutex
	services *handler.Services
	closers  []func()
}

// newWorkspace はworkspaceの新しいインスタンスを生成する。
func newWorkspace(cfg *config.Config, client *backend.Client, realtime *backend.RealtimeClient, collector metrics.MetricsCollector, logger *slog.Logger) *workspace {
	return &workspace{
		cfg:       cfg,
		client:    client,
		realtime:  realtime,
		collector: collector,
		logger:    logger,
	}
}

// Services はhandler.ServicesProviderを実装する。
func (ws *workspace) Services() (*handler.Services, bool) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	if ws.services == nil {
		return nil, false
	}
	return ws.services, true
}

// OnAuthChange は認証状態の変化通知を処理する。
// サインインでサービス群を構築し、サインアウトで破棄する。
// session.ServiceのOnChangeリスナーとして登録する。
func (ws *workspace) OnAuthChange(user *model.AuthUser) {
	ws.teardown()
	if user == nil {
		return
	}
	ws.build(*user)
}

// build はユーザーのサービス群を構築して購読を開始する。
func (ws *workspace) build(user model.AuthUser) {
	ctx := context.Background()

	uploadSvc := upload.NewService(ws.client, ws.cfg.UploadMaxSize, ws.logger)
	uploadSvc.SetMetrics(ws.collector)

	ssrfGuard := security.NewSSRFGuard()
	previewer := preview.NewFetcher(ssrfGuard, ws.cfg.PreviewTimeout, ws.cfg.PreviewMaxSize, ws.logger)

	feedSvc := feed.NewService(user.ID, feed.NewBackendStore(ws.client), ws.realtime, uploadSvc, previewer, ws.logger)
	if err := feedSvc.Start(ctx); err != nil {
		ws.logger.Error("フィードの初期化に失敗しました",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	profileSvc := profile.NewService(user.ID, user.Email, profile.NewBackendStore(ws.client), uploadSvc, ws.logger)

	assistantClient := assistant.NewClient(
		ws.cfg.AssistantEndpoint, ws.cfg.AssistantAPIKey,
		ws.cfg.AssistantRatePerMin, ws.logger,
	)
	assistantClient.SetMetrics(ws.collector)
	assistantSvc := assistant.NewService(
		assistantClient,
		assistant.NewFileHistory(ws.cfg.ChatHistoryPath),
		ws.logger,
	)
	assistantSvc.SetFormatter(assistant.NewFormatter(security.NewChatSanitizer()))

	messagingSvc := messaging.NewService(user.ID, messaging.NewBackendStore(ws.client), ws.realtime, assistantSvc, ws.logger)
	if err := messagingSvc.Start(ctx); err != nil {
		ws.logger.Error("メッセージングの初期化に失敗しました",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	ws.mu.Lock()
	ws.services = &handler.Services{
		Feed:      feedSvc,
		Profile:   profileSvc,
		Messaging: messagingSvc,
		Assistant: assistantSvc,
	}
	ws.closers = []func(){feedSvc.Close, messagingSvc.Close}
	ws.mu.Unlock()

	ws.logger.Info("ユーザーワークスペースを構築しました", slog.String("user_id", user.ID))
}

// teardown は現在のサービス群を破棄し、保持中の購読を解除する。
func (ws *workspace) teardown() {
	ws.mu.Lock()
	closers := ws.closers
	ws.services = nil
	ws.closers = nil
	ws.mu.Unlock()

	for _, closeFn := range closers {
		closeFn()
	}
}
