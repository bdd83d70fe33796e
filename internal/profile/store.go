package profile

import (
	"context"

	"github.com/vartika/linkup/internal/backend"
	"github.com/vartika/linkup/internal/model"
)

// backendStore はバックエンドREST APIに対するStoreの実装。
type backendStore struct {
	client *backend.Client
}

// NewBackendStore はバックエンドREST APIを使うStoreを生成する。
func NewBackendStore(client *backend.Client) Store {
	return &backendStore{client: client}
}

// FetchProfile はプロフィール行を1件取得する。
func (s *backendStore) FetchProfile(ctx context.Context, userID string) (*model.Profile, error) {
	var p model.Profile
	err := s.client.Collection("profiles").
		Select("*").
		Eq("id", userID).
		Single().
		Get(ctx, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// InsertProfile はプロフィール行を挿入する。
func (s *backendStore) InsertProfile(ctx context.Context, p model.Profile) error {
	return s.client.Collection("profiles").Insert(ctx, p, nil)
}

// UpdateProfile はプロフィール行を更新し、更新後の行を返す。
func (s *backendStore) UpdateProfile(ctx context.Context, userID string, patch map[string]any) (*model.Profile, error) {
	var p model.Profile
	err := s.client.Collection("profiles").
		Eq("id", userID).
		Single().
		Update(ctx, patch, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UsernameExistsExcluding は自分以外に同名プロフィールが存在するかを返す。
func (s *backendStore) UsernameExistsExcluding(ctx context.Context, username, selfID string) (bool, error) {
	var row struct {
		ID string `json:"id"`
	}
	err := s.client.Collection("profiles").
		Select("id").
		Eq("username", username).
		Neq("id", selfID).
		Single().
		Get(ctx, &row)
	if err != nil {
		if backend.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Experiences は職歴一覧を返す。
func (s *backendStore) Experiences(ctx context.Context, userID string) ([]model.Experience, error) {
	var rows []model.Experience
	err := s.client.Collection("experiences").
		Select("*").
		Eq("user_id", userID).
		Order("start_date", true).
		Get(ctx, &rows)
	return rows, err
}

// Education は学歴一覧を返す。
func (s *backendStore) Education(ctx context.Context, userID string) ([]model.Education, error) {
	var rows []model.Education
	err := s.client.Collection("education").
		Select("*").
		Eq("user_id", userID).
		Order("start_date", true).
		Get(ctx, &rows)
	return rows, err
}

// Skills はスキル一覧を返す。
func (s *backendStore) Skills(ctx context.Context, userID string) ([]model.Skill, error) {
	var rows []model.Skill
	err := s.client.Collection("skills").
		Select("*").
		Eq("user_id", userID).
		Get(ctx, &rows)
	return rows, err
}

// Certificates は資格一覧を返す。
func (s *backendStore) Certificates(ctx context.Context, userID string) ([]model.Certificate, error) {
	var rows []model.Certificate
	err := s.client.Collection("certificates").
		Select("*").
		Eq("user_id", userID).
		Order("issue_date", true).
		Get(ctx, &rows)
	return rows, err
}

// InsertExperience は職歴行を挿入して返す。
func (s *backendStore) InsertExperience(ctx context.Context, userID string, f ExperienceForm) (*model.Experience, error) {
	var row model.Experience
	err := s.client.Collection("experiences").
		Single().
		Insert(ctx, withOwner(userID, map[string]any{
			"position":    f.Position,
			"company":     f.Company,
			"start_date":  f.StartDate,
			"end_date":    f.EndDate,
			"description": f.Description,
			"is_current":  f.IsCurrent,
		}), &row)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// InsertEducation は学歴行を挿入して返す。
func (s *backendStore) InsertEducation(ctx context.Context, userID string, f EducationForm) (*model.Education, error) {
	var row model.Education
	err := s.client.Collection("education").
		Single().
		Insert(ctx, withOwner(userID, map[string]any{
			"school":         f.School,
			"degree":         f.Degree,
			"field_of_study": f.FieldOfStudy,
			"start_date":     f.StartDate,
			"end_date":       f.EndDate,
		}), &row)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// InsertSkill はスキル行を挿入して返す。
func (s *backendStore) InsertSkill(ctx context.Context, userID string, f SkillForm) (*model.Skill, error) {
	var row model.Skill
	err := s.client.Collection("skills").
		Single().
		Insert(ctx, withOwner(userID, map[string]any{
			"skill_name": f.SkillName,
		}), &row)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// InsertCertificate は資格行を挿入して返す。
func (s *backendStore) InsertCertificate(ctx context.Context, userID string, f CertificateForm) (*model.Certificate, error) {
	var row model.Certificate
	err := s.client.Collection("certificates").
		Single().
		Insert(ctx, withOwner(userID, map[string]any{
			"certificate_name":     f.CertificateName,
			"issuing_organization": f.IssuingOrganization,
			"issue_date":           f.IssueDate,
			"expiry_date":          f.ExpiryDate,
			"credential_id":        f.CredentialID,
			"credential_url":       f.CredentialURL,
			"description":          f.Description,
		}), &row)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// DeleteExperience は職歴行を所有者スコープ付きで削除する。
func (s *backendStore) DeleteExperience(ctx context.Context, userID, id string) error {
	return s.client.Collection("experiences").Eq("id", id).Eq("user_id", userID).Delete(ctx)
}

// DeleteEducation は学歴行を所有者スコープ付きで削除する。
func (s *backendStore) DeleteEducation(ctx context.Context, userID, id string) error {
	return s.client.Collection("education").Eq("id", id).Eq("user_id", userID).Delete(ctx)
}

// DeleteSkill はスキル行を所有者スコープ付きで削除する。
func (s *backendStore) DeleteSkill(ctx context.Context, userID, id string) error {
	return s.client.Collection("skills").Eq("id", id).Eq("user_id", userID).Delete(ctx)
}

// DeleteCertificate は資格行を所有者スコープ付きで削除する。
func (s *backendStore) DeleteCertificate(ctx context.Context, userID, id string) error {
	return s.client.Collection("certificates").Eq("id", id).Eq("user_id", userID).Delete(ctx)
}

// withOwner はペイロードに所有者IDを付与する。
func withOwner(userID string, payload map[string]any) map[string]any {
	payload["user_id"] = userID
	return payload
}
