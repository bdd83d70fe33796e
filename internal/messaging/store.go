package messaging

import (
	"context"
	"fmt"

	"github.com/vartika/linkup/internal/backend"
	"github.com/vartika/linkup/internal/model"
)

// backendStore はStoreのバックエンドクライアント実装。
// フィルタの評価はプラットフォーム側のクエリエンジンが行う。
type backendStore struct {
	client *backend.Client
}

// NewBackendStore はバックエンドクライアントを使うStoreを生成する。
func NewBackendStore(client *backend.Client) Store {
	return &backendStore{client: client}
}

// History は自分が送信者または受信者である全メッセージを新しい順で返す。
func (s *backendStore) History(ctx context.Context, selfID string) ([]model.Message, error) {
	var messages []model.Message
	err := s.client.Collection("messages").
		Select("*").
		Or(fmt.Sprintf("sender_id.eq.%s,receiver_id.eq.%s", selfID, selfID)).
		Order("created_at", true).
		Get(ctx, &messages)
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// Thread は指定2者間の双方向メッセージを古い順で返す。
func (s *backendStore) Thread(ctx context.Context, selfID, peerID string) ([]model.Message, error) {
	var messages []model.Message
	err := s.client.Collection("messages").
		Select("*").
		Or(fmt.Sprintf(
			"and(sender_id.eq.%s,receiver_id.eq.%s),and(sender_id.eq.%s,receiver_id.eq.%s)",
			selfID, peerID, peerID, selfID,
		)).
		Order("created_at", false).
		Get(ctx, &messages)
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkRead はpeer→selfの全メッセージを既読にする。
func (s *backendStore) MarkRead(ctx context.Context, selfID, peerID string) error {
	return s.client.Collection("messages").
		Eq("receiver_id", selfID).
		Eq("sender_id", peerID).
		Update(ctx, map[string]bool{"is_read": true}, nil)
}

// Insert はメッセージ行を挿入し、採番済みの行を返す。
func (s *backendStore) Insert(ctx context.Context, senderID, receiverID, content string) (*model.Message, error) {
	var inserted model.Message
	err := s.client.Collection("messages").
		Single().
		Insert(ctx, map[string]string{
			"sender_id":   senderID,
			"receiver_id": receiverID,
			"content":     content,
		}, &inserted)
	if err != nil {
		return nil, err
	}
	return &inserted, nil
}

// ProfileSummaries は指定ID集合のプロフィール要約を返す。
func (s *backendStore) ProfileSummaries(ctx context.Context, ids []string) (map[string]model.ProfileSummary, error) {
	var rows []model.ProfileSummary
	err := s.client.Collection("profiles").
		Select("id, full_name, profile_image_url").
		In("id", ids).
		Get(ctx, &rows)
	if err != nil {
		return nil, err
	}

	result := make(map[string]model.ProfileSummary, len(rows))
	for _, row := range rows {
		result[row.ID] = row
	}
	return result, nil
}
