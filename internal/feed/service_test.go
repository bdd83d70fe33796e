package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vartika/linkup/internal/backend"
	"github.com/vartika/linkup/internal/model"
	"github.com/vartika/linkup/internal/upload"
)

// --- モック ---

type mockStore struct {
	followeeIDsFn    func(ctx context.Context, selfID string) ([]string, error)
	postsByAuthorsFn func(ctx context.Context, authorIDs []string, limit int) ([]model.Post, error)
	insertPostFn     func(ctx context.Context, userID, content, imageURL string) (*model.Post, error)
}

func (m *mockStore) FolloweeIDs(ctx context.Context, selfID string) ([]string, error) {
	if m.followeeIDsFn != nil {
		return m.followeeIDsFn(ctx, selfID)
	}
	return nil, nil
}

func (m *mockStore) PostsByAuthors(ctx context.Context, authorIDs []string, limit int) ([]model.Post, error) {
	if m.postsByAuthorsFn != nil {
		return m.postsByAuthorsFn(ctx, authorIDs, limit)
	}
	return nil, nil
}

func (m *mockStore) InsertPost(ctx context.Context, userID, content, imageURL string) (*model.Post, error) {
	if m.insertPostFn != nil {
		return m.insertPostFn(ctx, userID, content, imageURL)
	}
	return &model.Post{ID: "p-new", UserID: userID, Content: content, ImageURL: imageURL}, nil
}

type mockRealtime struct {
	handlers map[string]backend.ChangeHandler
}

func newMockRealtime() *mockRealtime {
	return &mockRealtime{handlers: make(map[string]backend.ChangeHandler)}
}

func (m *mockRealtime) Subscribe(channel string, filter backend.ChangeFilter, handler backend.ChangeHandler) (func(), error) {
	m.handlers[channel] = handler
	return func() { delete(m.handlers, channel) }, nil
}

func (m *mockRealtime) fire(channel string, ev backend.ChangeEvent) {
	if h, ok := m.handlers[channel]; ok {
		h(ev)
	}
}

type mockUploader struct {
	uploadFn func(ctx context.Context, userID string, f upload.File) (string, error)
}

func (m *mockUploader) UploadPostImage(ctx context.Context, userID string, f upload.File) (string, error) {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, userID, f)
	}
	return "https://storage.example.com/posts/user-1/1.png", nil
}

type mockPreviewer struct {
	previewFn func(ctx context.Context, body string) *model.LinkPreview
}

func (m *mockPreviewer) Preview(ctx context.Context, body string) *model.LinkPreview {
	if m.previewFn != nil {
		return m.previewFn(ctx, body)
	}
	return nil
}

func fixedPost(id, userID string) model.Post {
	return model.Post{
		ID:        id,
		UserID:    userID,
		Content:   "post " + id,
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

// --- テスト ---

// TestService_LoadPosts は著者集合の構成と読み込み上限を検証する。
func TestService_LoadPosts(t *testing.T) {
	t.Run("著者集合は自分とフォロー中ユーザー", func(t *testing.T) {
		var gotAuthors []string
		var gotLimit int
		store := &mockStore{
			followeeIDsFn: func(ctx context.Context, selfID string) ([]string, error) {
				return []string{"alice", "bob"}, nil
			},
			postsByAuthorsFn: func(ctx context.Context, authorIDs []string, limit int) ([]model.Post, error) {
				gotAuthors = authorIDs
				gotLimit = limit
				return []model.Post{fixedPost("p1", "alice")}, nil
			},
		}
		svc := NewService("self", store, newMockRealtime(), &mockUploader{}, nil, nil)

		if err := svc.LoadPosts(context.Background()); err != nil {
			t.Fatalf("load failed: %v", err)
		}
		want := []string{"self", "alice", "bob"}
		if len(gotAuthors) != len(want) {
			t.Fatalf("expected authors %v, got %v", want, gotAuthors)
		}
		for i := range want {
			if gotAuthors[i] != want[i] {
				t.Errorf("expected author %q at %d, got %q", want[i], i, gotAuthors[i])
			}
		}
		if gotLimit != 50 {
			t.Errorf("expected limit 50, got %d", gotLimit)
		}
		if len(svc.Posts()) != 1 {
			t.Errorf("expected 1 post, got %d", len(svc.Posts()))
		}
	})

	t.Run("フォローなしでも自分の投稿は読み込まれる", func(t *testing.T) {
		var gotAuthors []string
		store := &mockStore{
			postsByAuthorsFn: func(ctx context.Context, authorIDs []string, limit int) ([]model.Post, error) {
				gotAuthors = authorIDs
				return nil, nil
			},
		}
		svc := NewService("self", store, newMockRealtime(), &mockUploader{}, nil, nil)

		if err := svc.LoadPosts(context.Background()); err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if len(gotAuthors) != 1 || gotAuthors[0] != "self" {
			t.Errorf("expected authors [self], got %v", gotAuthors)
		}
	})

	t.Run("フォロー一覧の取得失敗はエラーになる", func(t *testing.T) {
		store := &mockStore{
			followeeIDsFn: func(ctx context.Context, selfID string) ([]string, error) {
				return nil, errors.New("timeout")
			},
		}
		svc := NewService("self", store, newMockRealtime(), &mockUploader{}, nil, nil)

		if err := svc.LoadPosts(context.Background()); err == nil {
			t.Error("expected error")
		}
	})
}

// TestService_CreatePost は投稿作成の検証・画像アップロード・楽観的追記を検証する。
func TestService_CreatePost(t *testing.T) {
	t.Run("本文も画像もない投稿は拒否される", func(t *testing.T) {
		svc := NewService("self", &mockStore{}, newMockRealtime(), &mockUploader{}, nil, nil)

		_, err := svc.CreatePost(context.Background(), "   ", nil)

		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeEmptyPost {
			t.Errorf("expected empty post error, got %v", err)
		}
	})

	t.Run("画像のみの投稿は許可される", func(t *testing.T) {
		var gotImageURL string
		store := &mockStore{
			insertPostFn: func(ctx context.Context, userID, content, imageURL string) (*model.Post, error) {
				gotImageURL = imageURL
				return &model.Post{ID: "p-new", UserID: userID, ImageURL: imageURL}, nil
			},
		}
		svc := NewService("self", store, newMockRealtime(), &mockUploader{}, nil, nil)

		image := &upload.File{Name: "a.png", ContentType: "image/png", Data: []byte{0x1}}
		if _, err := svc.CreatePost(context.Background(), "", image); err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if gotImageURL == "" {
			t.Error("expected uploaded image URL in insert")
		}
	})

	t.Run("画像アップロード失敗は投稿自体を中止する", func(t *testing.T) {
		inserted := false
		store := &mockStore{
			insertPostFn: func(ctx context.Context, userID, content, imageURL string) (*model.Post, error) {
				inserted = true
				return &model.Post{ID: "p-new"}, nil
			},
		}
		uploader := &mockUploader{
			uploadFn: func(ctx context.Context, userID string, f upload.File) (string, error) {
				return "", model.NewImageTooLargeError()
			},
		}
		svc := NewService("self", store, newMockRealtime(), uploader, nil, nil)

		image := &upload.File{Name: "big.png", ContentType: "image/png", Data: []byte{0x1}}
		_, err := svc.CreatePost(context.Background(), "with image", image)

		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeImageTooLarge {
			t.Errorf("expected image too large error, got %v", err)
		}
		if inserted {
			t.Error("expected no insert after upload failure")
		}
	})

	t.Run("挿入失敗時はローカル状態を変更しない", func(t *testing.T) {
		store := &mockStore{
			insertPostFn: func(ctx context.Context, userID, content, imageURL string) (*model.Post, error) {
				return nil, errors.New("insert failed")
			},
		}
		svc := NewService("self", store, newMockRealtime(), &mockUploader{}, nil, nil)

		_, err := svc.CreatePost(context.Background(), "hello", nil)

		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeBackendRejected {
			t.Errorf("expected backend rejected error, got %v", err)
		}
		if len(svc.Posts()) != 0 {
			t.Errorf("expected feed unchanged, got %d posts", len(svc.Posts()))
		}
	})

	t.Run("成功時は再フェッチせず先頭へ追加される", func(t *testing.T) {
		store := &mockStore{
			postsByAuthorsFn: func(ctx context.Context, authorIDs []string, limit int) ([]model.Post, error) {
				return []model.Post{fixedPost("p-old", "alice")}, nil
			},
		}
		svc := NewService("self", store, newMockRealtime(), &mockUploader{}, nil, nil)
		if err := svc.LoadPosts(context.Background()); err != nil {
			t.Fatalf("load failed: %v", err)
		}

		post, err := svc.CreatePost(context.Background(), "  hello feed  ", nil)
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if post.Content != "hello feed" {
			t.Errorf("expected trimmed content, got %q", post.Content)
		}

		posts := svc.Posts()
		if len(posts) != 2 {
			t.Fatalf("expected 2 posts, got %d", len(posts))
		}
		if posts[0].ID != "p-new" || posts[1].ID != "p-old" {
			t.Errorf("expected new post first, got %v %v", posts[0].ID, posts[1].ID)
		}
	})

	t.Run("リンクプレビューはベストエフォートで付与される", func(t *testing.T) {
		previewer := &mockPreviewer{
			previewFn: func(ctx context.Context, body string) *model.LinkPreview {
				return &model.LinkPreview{URL: "https://example.com", Title: "Example"}
			},
		}
		svc := NewService("self", &mockStore{}, newMockRealtime(), &mockUploader{}, previewer, nil)

		post, err := svc.CreatePost(context.Background(), "see https://example.com", nil)
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if post.Preview == nil || post.Preview.Title != "Example" {
			t.Errorf("expected preview attached, got %+v", post.Preview)
		}
	})
}

// TestService_DeletePost はローカル状態からの除去を検証する。
func TestService_DeletePost(t *testing.T) {
	store := &mockStore{
		postsByAuthorsFn: func(ctx context.Context, authorIDs []string, limit int) ([]model.Post, error) {
			return []model.Post{fixedPost("p1", "self"), fixedPost("p2", "self")}, nil
		},
	}
	svc := NewService("self", store, newMockRealtime(), &mockUploader{}, nil, nil)
	if err := svc.LoadPosts(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	svc.DeletePost("p1")

	posts := svc.Posts()
	if len(posts) != 1 || posts[0].ID != "p2" {
		t.Errorf("expected only p2 to remain, got %+v", posts)
	}
}

// TestService_RealtimeHandlers は通知種別ごとのフィード追随を検証する。
func TestService_RealtimeHandlers(t *testing.T) {
	t.Run("投稿の挿入通知で全件再読み込みされる", func(t *testing.T) {
		loads := 0
		store := &mockStore{
			postsByAuthorsFn: func(ctx context.Context, authorIDs []string, limit int) ([]model.Post, error) {
				loads++
				return nil, nil
			},
		}
		rt := newMockRealtime()
		svc := NewService("self", store, rt, &mockUploader{}, nil, nil)
		if err := svc.Start(context.Background()); err != nil {
			t.Fatalf("start failed: %v", err)
		}

		rt.fire("posts", backend.ChangeEvent{Type: backend.ChangeInsert, Table: "posts"})

		if loads != 2 {
			t.Errorf("expected reload after insert notification, got %d loads", loads)
		}
	})

	t.Run("投稿の削除通知でローカル除去される", func(t *testing.T) {
		store := &mockStore{
			postsByAuthorsFn: func(ctx context.Context, authorIDs []string, limit int) ([]model.Post, error) {
				return []model.Post{fixedPost("p1", "self"), fixedPost("p2", "alice")}, nil
			},
		}
		rt := newMockRealtime()
		svc := NewService("self", store, rt, &mockUploader{}, nil, nil)
		if err := svc.Start(context.Background()); err != nil {
			t.Fatalf("start failed: %v", err)
		}

		rt.fire("posts", backend.ChangeEvent{
			Type:   backend.ChangeDelete,
			Table:  "posts",
			OldRow: []byte(`{"id": "p2"}`),
		})

		posts := svc.Posts()
		if len(posts) != 1 || posts[0].ID != "p1" {
			t.Errorf("expected p2 removed, got %+v", posts)
		}
	})

	t.Run("フォローエッジの変更通知で全件再読み込みされる", func(t *testing.T) {
		loads := 0
		store := &mockStore{
			postsByAuthorsFn: func(ctx context.Context, authorIDs []string, limit int) ([]model.Post, error) {
				loads++
				return nil, nil
			},
		}
		rt := newMockRealtime()
		svc := NewService("self", store, rt, &mockUploader{}, nil, nil)
		if err := svc.Start(context.Background()); err != nil {
			t.Fatalf("start failed: %v", err)
		}

		rt.fire("connections", backend.ChangeEvent{Type: backend.ChangeInsert, Table: "connections"})

		if loads != 2 {
			t.Errorf("expected reload after connection change, got %d loads", loads)
		}
	})
}

// TestService_Close は購読の解除を検証する。
func TestService_Close(t *testing.T) {
	rt := newMockRealtime()
	svc := NewService("self", &mockStore{}, rt, &mockUploader{}, nil, nil)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if len(rt.handlers) != 2 {
		t.Fatalf("expected 2 subscriptions, got %d", len(rt.handlers))
	}

	svc.Close()

	if len(rt.handlers) != 0 {
		t.Errorf("expected all subscriptions removed, got %v", rt.handlers)
	}
}

// TestService_FollowThenReload はフォロー成立後の再読み込みで
// 新しいフォロー相手の投稿がフィードに現れることを検証する。
func TestService_FollowThenReload(t *testing.T) {
	followees := []string{}
	store := &mockStore{
		followeeIDsFn: func(ctx context.Context, selfID string) ([]string, error) {
			return followees, nil
		},
		postsByAuthorsFn: func(ctx context.Context, authorIDs []string, limit int) ([]model.Post, error) {
			var posts []model.Post
			for _, id := range authorIDs {
				if id == "self" {
					posts = append(posts, fixedPost("p-self", "self"))
				}
				if id == "alice" {
					posts = append(posts, fixedPost("p-alice", "alice"))
				}
			}
			return posts, nil
		},
	}
	rt := newMockRealtime()
	svc := NewService("self", store, rt, &mockUploader{}, nil, nil)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if posts := svc.Posts(); len(posts) != 1 || posts[0].ID != "p-self" {
		t.Fatalf("expected only own post before following, got %+v", posts)
	}

	// aliceをフォローするとconnectionsの変更通知が届く
	followees = []string{"alice"}
	rt.fire("connections", backend.ChangeEvent{Type: backend.ChangeInsert, Table: "connections"})

	posts := svc.Posts()
	if len(posts) != 2 {
		t.Fatalf("expected 2 posts after following, got %+v", posts)
	}
	found := false
	for _, p := range posts {
		if p.ID == "p-alice" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected alice's post in feed after following, got %+v", posts)
	}
}
