// Package model はドメインモデルを定義する。
package model

import "time"

// ChatRole はAIチャットの発話者種別を表す。
type ChatRole string

const (
	// ChatRoleUser はユーザー発話を表す。
	ChatRoleUser ChatRole = "user"
	// ChatRoleAssistant はアシスタント応答を表す。
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatTurn はAIチャット履歴の1ターンを表す。
// 履歴はサーバー側には永続化せず、端末ローカルにJSONで保存される。
type ChatTurn struct {
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
