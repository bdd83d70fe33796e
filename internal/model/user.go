// Package model はドメインモデルを定義する。
package model

import "time"

// AuthUser は外部認証サービスが発行する認証済みユーザーを表す。
// IDはサインアップ時に外部サービスが採番し、セッション期間中は不変。
type AuthUser struct {
	ID    string
	Email string
}

// Session は外部認証サービスから受け取ったトークン一式を表す。
// AccessTokenはJWTであり、有効期限はクレームから復元される。
// 署名検証は行わない（検証責務はバックエンド側にある）。
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         AuthUser
}

// Expired はセッションが期限切れかどうかを返す。
// ExpiresAtがゼロ値の場合は期限不明として未失効扱いにする。
func (s *Session) Expired(now time.Time) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(s.ExpiresAt)
}
