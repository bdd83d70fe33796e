// Package messaging はダイレクトメッセージ機能を提供する。
// フラットなメッセージ履歴からの会話導出、2系統のリアルタイム通知と
// 楽観的ローカル追記の重複排除マージ、AIアシスタント会話の合成を含む。
package messaging

import (
	"sort"
	"time"

	"github.com/vartika/linkup/internal/model"
)

// previewRuneLimit は会話一覧に表示する最終メッセージの最大文字数。
const previewRuneLimit = 50

// Correspondent はメッセージ履歴から導出した通信相手1人分のスナップショット。
type Correspondent struct {
	ID            string
	LastMessage   string
	LastMessageAt time.Time
}

// DeriveCorrespondents はメッセージ履歴から相異なる通信相手を導出する。
// 各メッセージの非自分側参加者を相手とみなし、相手ごとに最新の本文と
// タイムスタンプを保持する。結果は最新メッセージの降順。
// 履歴の並び順には依存しない純粋関数。
func DeriveCorrespondents(history []model.Message, selfID string) []Correspondent {
	sorted := make([]model.Message, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	var order []string
	last := make(map[string]Correspondent)
	for _, msg := range sorted {
		if !msg.Involves(selfID) {
			continue
		}
		otherID := msg.OtherParty(selfID)
		if _, seen := last[otherID]; seen {
			continue
		}
		last[otherID] = Correspondent{
			ID:            otherID,
			LastMessage:   msg.Content,
			LastMessageAt: msg.CreatedAt,
		}
		order = append(order, otherID)
	}

	result := make([]Correspondent, 0, len(order))
	for _, id := range order {
		result = append(result, last[id])
	}
	return result
}

// AssistantEntry はAIアシスタントの合成会話エントリを返す。
// メッセージストアには永続化されず、常に一覧の先頭へピン留めされる。
func AssistantEntry() model.Conversation {
	return model.Conversation{
		ID:          model.AssistantConversationID,
		FullName:    "AI Assistant",
		LastMessage: "AI-powered chat assistant",
		IsAI:        true,
		IsPinned:    true,
	}
}

// BuildConversations は通信相手一覧とプロフィール要約から会話一覧を構築する。
// 先頭にAIアシスタントの合成エントリをピン留めし、以降は相手ごとに1エントリ。
// プロフィールが見つからない相手は "Unknown User" として表示される。
func BuildConversations(correspondents []Correspondent, profiles map[string]model.ProfileSummary) []model.Conversation {
	result := make([]model.Conversation, 0, len(correspondents)+1)
	result = append(result, AssistantEntry())

	for _, c := range correspondents {
		conv := model.Conversation{
			ID:            c.ID,
			FullName:      "Unknown User",
			LastMessage:   truncatePreview(c.LastMessage),
			LastMessageAt: c.LastMessageAt,
		}
		if p, ok := profiles[c.ID]; ok {
			if p.FullName != "" {
				conv.FullName = p.FullName
			}
			conv.ProfileImageURL = p.ProfileImageURL
		}
		result = append(result, conv)
	}
	return result
}

// truncatePreview はプレビュー本文を50文字に切り詰め、超過時は省略記号を付ける。
func truncatePreview(s string) string {
	runes := []rune(s)
	if len(runes) <= previewRuneLimit {
		return s
	}
	return string(runes[:previewRuneLimit]) + "..."
}
