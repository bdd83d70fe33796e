// Package feed は投稿フィードのクライアント状態同期を提供する。
// 自分とフォロー中ユーザーの投稿読み込み、画像付き投稿の作成、
// リアルタイム通知によるフィードの追随を含む。
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/vartika/linkup/internal/backend"
	"github.com/vartika/linkup/internal/model"
	"github.com/vartika/linkup/internal/upload"
)

// feedLimit はフィードに読み込む投稿の最大件数。
const feedLimit = 50

// Store は投稿とフォローエッジの外部ストア操作インターフェース。
type Store interface {
	// FolloweeIDs は自分がフォローしているユーザーのID一覧を返す。
	FolloweeIDs(ctx context.Context, selfID string) ([]string, error)
	// PostsByAuthors は指定著者集合の投稿を新しい順・上限付きで返す。
	// 各行には非正規化された著者要約が埋め込まれる。
	PostsByAuthors(ctx context.Context, authorIDs []string, limit int) ([]model.Post, error)
	// InsertPost は投稿行を挿入し、著者要約付きの行を返す。
	InsertPost(ctx context.Context, userID, content, imageURL string) (*model.Post, error)
}

// Uploader は投稿画像のアップロードインターフェース。
type Uploader interface {
	UploadPostImage(ctx context.Context, userID string, f upload.File) (string, error)
}

// Previewer は投稿本文からのリンクプレビュー取得インターフェース。
// 取得はベストエフォートであり、プレビューがない場合はnilを返す。
type Previewer interface {
	Preview(ctx context.Context, body string) *model.LinkPreview
}

// Service はフィードのクライアント状態を同期するサービス層。
//
// 投稿コレクションの挿入通知は全件再読み込み、削除通知はローカル除去を行う。
// フォローエッジの変更通知はフィードの可視範囲を変えうるため全件再読み込みする。
type Service struct {
	selfID    string
	store     Store
	realtime  backend.Realtime
	uploader  Uploader
	previewer Previewer
	logger    *slog.Logger

	mu         sync.Mutex
	posts      []model.Post
	unsubPosts func()
	unsubConns func()
}

// NewService はServiceの新しいインスタンスを生成する。
// previewerはnil可（リンクプレビューなしで動作する）。
func NewService(selfID string, store Store, realtime backend.Realtime, uploader Uploader, previewer Previewer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		selfID:    selfID,
		store:     store,
		realtime:  realtime,
		uploader:  uploader,
		previewer: previewer,
		logger:    logger,
	}
}

// Start は投稿を読み込み、投稿・フォローエッジのリアルタイム購読を登録する。
func (s *Service) Start(ctx context.Context) error {
	if err := s.LoadPosts(ctx); err != nil {
		return err
	}

	unsubPosts, err := s.realtime.Subscribe("posts",
		backend.ChangeFilter{Event: "*", Table: "posts"},
		s.handlePostChange,
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe posts channel: %w", err)
	}

	unsubConns, err := s.realtime.Subscribe("connections",
		backend.ChangeFilter{Event: "*", Table: "connections"},
		s.handleConnectionChange,
	)
	if err != nil {
		unsubPosts()
		return fmt.Errorf("failed to subscribe connections channel: %w", err)
	}

	s.mu.Lock()
	s.unsubPosts = unsubPosts
	s.unsubConns = unsubConns
	s.mu.Unlock()
	return nil
}

// Close は保持中の購読をすべて解除する。
func (s *Service) Close() {
	s.mu.Lock()
	unsubPosts, unsubConns := s.unsubPosts, s.unsubConns
	s.unsubPosts, s.unsubConns = nil, nil
	s.mu.Unlock()

	if unsubPosts != nil {
		unsubPosts()
	}
	if unsubConns != nil {
		unsubConns()
	}
}

// LoadPosts は自分とフォロー中ユーザーの投稿を新しい順・50件上限で読み込む。
func (s *Service) LoadPosts(ctx context.Context) error {
	followees, err := s.store.FolloweeIDs(ctx, s.selfID)
	if err != nil {
		return fmt.Errorf("failed to load followees: %w", err)
	}

	authorIDs := append([]string{s.selfID}, followees...)
	posts, err := s.store.PostsByAuthors(ctx, authorIDs, feedLimit)
	if err != nil {
		return fmt.Errorf("failed to load posts: %w", err)
	}

	s.mu.Lock()
	s.posts = posts
	s.mu.Unlock()
	return nil
}

// Posts はフィードのスナップショットを返す（新しい順）。
func (s *Service) Posts() []model.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Post(nil), s.posts...)
}

// CreatePost は投稿を作成する。本文と画像の少なくともどちらかが必要。
//
// 画像が指定された場合は先にアップロードし、失敗時は投稿自体を中止する
// （部分的な投稿は作らない）。成功時は再フェッチせずローカル状態の先頭へ
// 追加する。リンクプレビューはベストエフォートで付与される。
func (s *Service) CreatePost(ctx context.Context, content string, image *upload.File) (*model.Post, error) {
	content = strings.TrimSpace(content)
	if content == "" && image == nil {
		return nil, model.NewEmptyPostError()
	}

	imageURL := ""
	if image != nil {
		url, err := s.uploader.UploadPostImage(ctx, s.selfID, *image)
		if err != nil {
			return nil, err
		}
		imageURL = url
	}

	post, err := s.store.InsertPost(ctx, s.selfID, content, imageURL)
	if err != nil {
		s.logger.Error("投稿の作成に失敗しました",
			slog.String("user_id", s.selfID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewBackendRejectedError("create post")
	}

	if s.previewer != nil {
		post.Preview = s.previewer.Preview(ctx, post.Content)
	}

	s.mu.Lock()
	s.posts = append([]model.Post{*post}, s.posts...)
	s.mu.Unlock()
	return post, nil
}

// DeletePost は投稿をローカル状態から除去する。
// サーバー側の削除完了は確認しない（仕様上の既知のギャップ。DESIGN.md参照）。
func (s *Service) DeletePost(postID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = removePost(s.posts, postID)
}

// handlePostChange は投稿コレクションの変更通知ハンドラ。
// 挿入は全件再読み込み、削除はローカル除去を行う。
func (s *Service) handlePostChange(ev backend.ChangeEvent) {
	switch ev.Type {
	case backend.ChangeInsert:
		if err := s.LoadPosts(context.Background()); err != nil {
			s.logger.Warn("フィードの再読み込みに失敗しました", slog.String("error", err.Error()))
		}
	case backend.ChangeDelete:
		var old struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(ev.OldRow, &old); err != nil || old.ID == "" {
			return
		}
		s.mu.Lock()
		s.posts = removePost(s.posts, old.ID)
		s.mu.Unlock()
	}
}

// handleConnectionChange はフォローエッジの変更通知ハンドラ。
// どこかでのフォロー・解除がフィードの可視範囲を変えうるため全件再読み込みする。
func (s *Service) handleConnectionChange(ev backend.ChangeEvent) {
	if err := s.LoadPosts(context.Background()); err != nil {
		s.logger.Warn("フィードの再読み込みに失敗しました", slog.String("error", err.Error()))
	}
}

// removePost は指定IDの投稿を取り除いたスライスを返す。
func removePost(posts []model.Post, postID string) []model.Post {
	result := posts[:0]
	for _, p := range posts {
		if p.ID != postID {
			result = append(result, p)
		}
	}
	return result
}
