// Package model はドメインモデルを定義する。
package model

import "time"

// Post はフィードに表示される投稿を表す。
// 閲覧者のフィードに含まれるのは、閲覧者自身またはフォロー中ユーザーの投稿のみ。
type Post struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Content   string          `json:"content"`
	ImageURL  string          `json:"image_url,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Author    *ProfileSummary `json:"profiles,omitempty"`
	Preview   *LinkPreview    `json:"link_preview,omitempty"`
}

// LinkPreview は投稿本文中の最初のURLから取得したプレビュー情報を表す。
// 取得はベストエフォートであり、失敗しても投稿自体には影響しない。
type LinkPreview struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}
