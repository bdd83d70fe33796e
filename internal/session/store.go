package session

import (
	"context"
	"fmt"

	"github.com/vartika/linkup/internal/backend"
	"github.com/vartika/linkup/internal/model"
)

// backendStore はProfileStoreのバックエンドクライアント実装。
type backendStore struct {
	client *backend.Client
}

// NewBackendStore はバックエンドクライアントを使うProfileStoreを生成する。
func NewBackendStore(client *backend.Client) ProfileStore {
	return &backendStore{client: client}
}

// UsernameExists は指定ユーザー名のプロフィール行が存在するかを返す。
func (s *backendStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	var row struct {
		ID string `json:"id"`
	}
	err := s.client.Collection("profiles").
		Select("id").
		Eq("username", username).
		Single().
		Get(ctx, &row)
	if err != nil {
		if backend.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return row.ID != "", nil
}

// InsertProfile はプロフィール行を作成する。
func (s *backendStore) InsertProfile(ctx context.Context, profile *model.Profile) error {
	return s.client.Collection("profiles").Insert(ctx, profile, nil)
}

// LookupEmail はRPC get_email_by_username でメールアドレスを逆引きする。
func (s *backendStore) LookupEmail(ctx context.Context, username string) (string, error) {
	var email string
	err := s.client.RPC(ctx, "get_email_by_username", map[string]string{
		"username_input": username,
	}, &email)
	if err != nil {
		return "", fmt.Errorf("failed to resolve email for username: %w", err)
	}
	return email, nil
}
