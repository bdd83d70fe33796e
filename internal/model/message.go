// Package model はドメインモデルを定義する。
package model

import "time"

// AssistantConversationID はAIアシスタント会話を指す予約ID。
// メッセージストアには一切永続化されない合成エントリ。
const AssistantConversationID = "ai-assistant"

// Message は2ユーザー間のダイレクトメッセージを表す。
// 会話エンティティは存在せず、非自分側の参加者でグルーピングして導出する。
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

// Involves はメッセージが指定ユーザーを送信者または受信者として含むかを返す。
func (m *Message) Involves(userID string) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}

// OtherParty は自分から見た相手側の参加者IDを返す。
// 自分宛のセルフメッセージの場合は自分自身のIDを返す。
func (m *Message) OtherParty(selfID string) string {
	if m.SenderID == selfID {
		return m.ReceiverID
	}
	return m.SenderID
}

// Between はメッセージが指定2者間の双方向いずれかであるかを返す。
func (m *Message) Between(a, b string) bool {
	return (m.SenderID == a && m.ReceiverID == b) ||
		(m.SenderID == b && m.ReceiverID == a)
}

// Conversation はメッセージ履歴から導出される会話一覧の1エントリを表す。
// AIアシスタントの合成エントリは IsAI と IsPinned が真になる。
type Conversation struct {
	ID              string    `json:"id"`
	FullName        string    `json:"full_name"`
	ProfileImageURL string    `json:"profile_image_url,omitempty"`
	LastMessage     string    `json:"last_message,omitempty"`
	LastMessageAt   time.Time `json:"last_message_at,omitzero"`
	IsAI            bool      `json:"is_ai,omitempty"`
	IsPinned        bool      `json:"is_pinned,omitempty"`
}
