// Package model はドメインモデルを定義する。
package model

import "time"

// Profile はユーザーと1:1で紐づくプロフィールを表す。
// Usernameはグローバル一意（事前チェックによる非アトミックな保証）。
type Profile struct {
	ID              string `json:"id"`
	FullName        string `json:"full_name"`
	Username        string `json:"username,omitempty"`
	Headline        string `json:"headline,omitempty"`
	Bio             string `json:"bio,omitempty"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
	CoverImageURL   string `json:"cover_image_url,omitempty"`
	Location        string `json:"location,omitempty"`
	Website         string `json:"website,omitempty"`
	Company         string `json:"company,omitempty"`
	AvatarColor     string `json:"avatar_color,omitempty"`
}

// ProfileSummary は投稿や会話一覧に埋め込む非正規化された作者情報を表す。
type ProfileSummary struct {
	ID              string `json:"id"`
	FullName        string `json:"full_name"`
	Headline        string `json:"headline,omitempty"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
	Username        string `json:"username,omitempty"`
}

// Experience は職歴を表す。プロフィールに1:N で属する。
type Experience struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Position    string `json:"position"`
	Company     string `json:"company"`
	StartDate   string `json:"start_date,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
	Description string `json:"description,omitempty"`
	IsCurrent   bool   `json:"is_current,omitempty"`
}

// Education は学歴を表す。
type Education struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	School       string `json:"school"`
	Degree       string `json:"degree,omitempty"`
	FieldOfStudy string `json:"field_of_study,omitempty"`
	StartDate    string `json:"start_date,omitempty"`
	EndDate      string `json:"end_date,omitempty"`
}

// Skill はスキルを表す。
type Skill struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	SkillName    string `json:"skill_name"`
	Endorsements int    `json:"endorsements,omitempty"`
}

// Certificate は資格・認定を表す。
type Certificate struct {
	ID                  string `json:"id"`
	UserID              string `json:"user_id"`
	CertificateName     string `json:"certificate_name"`
	IssuingOrganization string `json:"issuing_organization"`
	IssueDate           string `json:"issue_date,omitempty"`
	ExpiryDate          string `json:"expiry_date,omitempty"`
	CredentialID        string `json:"credential_id,omitempty"`
	CredentialURL       string `json:"credential_url,omitempty"`
	Description         string `json:"description,omitempty"`
}

// Connection はフォローの有向エッジ（follower → following）を表す。
// フィードの可視性判定にのみ使用され、承認フローは存在しない。
type Connection struct {
	ID          string    `json:"id"`
	FollowerID  string    `json:"follower_id"`
	FollowingID string    `json:"following_id"`
	CreatedAt   time.Time `json:"created_at"`
}
