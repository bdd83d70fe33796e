package feed

import (
	"context"
	"time"

	"github.com/vartika/linkup/internal/backend"
	"github.com/vartika/linkup/internal/model"
)

// postSelect は著者要約を埋め込む投稿取得のselect式。
const postSelect = "*, profiles(id, full_name, headline, profile_image_url, username)"

// backendStore はバックエンドREST APIに対するStoreの実装。
type backendStore struct {
	client *backend.Client
}

// NewBackendStore はバックエンドREST APIを使うStoreを生成する。
func NewBackendStore(client *backend.Client) Store {
	return &backendStore{client: client}
}

// FolloweeIDs は自分がフォローしているユーザーのID一覧を返す。
func (s *backendStore) FolloweeIDs(ctx context.Context, selfID string) ([]string, error) {
	var rows []struct {
		FollowingID string `json:"following_id"`
	}
	err := s.client.Collection("connections").
		Select("following_id").
		Eq("follower_id", selfID).
		Get(ctx, &rows)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.FollowingID)
	}
	return ids, nil
}

// PostsByAuthors は指定著者集合の投稿を著者要約付きで新しい順に返す。
func (s *backendStore) PostsByAuthors(ctx context.Context, authorIDs []string, limit int) ([]model.Post, error) {
	var posts []model.Post
	err := s.client.Collection("posts").
		Select(postSelect).
		In("user_id", authorIDs).
		Order("created_at", true).
		Limit(limit).
		Get(ctx, &posts)
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// InsertPost は投稿行を挿入し、著者要約付きの行を返す。
func (s *backendStore) InsertPost(ctx context.Context, userID, content, imageURL string) (*model.Post, error) {
	payload := map[string]any{
		"user_id":    userID,
		"content":    content,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}
	if imageURL != "" {
		payload["image_url"] = imageURL
	}

	var post model.Post
	err := s.client.Collection("posts").
		Select(postSelect).
		Single().
		Insert(ctx, payload, &post)
	if err != nil {
		return nil, err
	}
	return &post, nil
}
