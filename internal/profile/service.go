// Package profile はプロフィールと付随エンティティ（職歴・学歴・スキル・資格）の
// クライアント状態同期を提供する。
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vartika/linkup/internal/backend"
	"github.com/vartika/linkup/internal/model"
	"github.com/vartika/linkup/internal/upload"
)

// defaultAvatarColor は新規プロフィールのアクセントカラー。
const defaultAvatarColor = "#667eea"

// minUsernameLength はユーザー名に要求する最小文字数。
const minUsernameLength = 3

// Availability はユーザー名可用性チェックの三値結果。
type Availability int

const (
	// AvailabilityUnknown は判定対象外（短すぎる・現在の名前と同一・照会失敗）。
	AvailabilityUnknown Availability = iota
	// AvailabilityFree は使用可能。
	AvailabilityFree
	// AvailabilityTaken は使用済み。
	AvailabilityTaken
)

// Store はプロフィール関連の外部ストア操作インターフェース。
type Store interface {
	FetchProfile(ctx context.Context, userID string) (*model.Profile, error)
	InsertProfile(ctx context.Context, p model.Profile) error
	UpdateProfile(ctx context.Context, userID string, patch map[string]any) (*model.Profile, error)
	// UsernameExistsExcluding は自分以外に同名プロフィールが存在するかを返す。
	UsernameExistsExcluding(ctx context.Context, username, selfID string) (bool, error)

	Experiences(ctx context.Context, userID string) ([]model.Experience, error)
	Education(ctx context.Context, userID string) ([]model.Education, error)
	Skills(ctx context.Context, userID string) ([]model.Skill, error)
	Certificates(ctx context.Context, userID string) ([]model.Certificate, error)

	InsertExperience(ctx context.Context, userID string, f ExperienceForm) (*model.Experience, error)
	InsertEducation(ctx context.Context, userID string, f EducationForm) (*model.Education, error)
	InsertSkill(ctx context.Context, userID string, f SkillForm) (*model.Skill, error)
	InsertCertificate(ctx context.Context, userID string, f CertificateForm) (*model.Certificate, error)

	DeleteExperience(ctx context.Context, userID, id string) error
	DeleteEducation(ctx context.Context, userID, id string) error
	DeleteSkill(ctx context.Context, userID, id string) error
	DeleteCertificate(ctx context.Context, userID, id string) error
}

// ImageStore はプロフィール・カバー画像の置換インターフェース。
type ImageStore interface {
	ReplaceProfileImage(ctx context.Context, userID string, kind upload.ImageKind, f upload.File, oldURL string) (string, error)
}

// Service はプロフィール状態を同期するサービス層。
type Service struct {
	selfID string
	email  string
	store  Store
	images ImageStore
	logger *slog.Logger

	mu           sync.Mutex
	profile      *model.Profile
	experiences  []model.Experience
	education    []model.Education
	skills       []model.Skill
	certificates []model.Certificate
}

// NewService はServiceの新しいインスタンスを生成する。
// emailはプロフィール行が存在しない場合の既定表示名の導出に使う。
func NewService(selfID, email string, store Store, images ImageStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		selfID: selfID,
		email:  email,
		store:  store,
		images: images,
		logger: logger,
	}
}

// LoadAll はプロフィールと付随エンティティを5本の独立クエリで並行読み込みする。
//
// プロフィール行が存在しない場合は既定レコード（表示名はメールの
// ローカル部、ランダム生成ハンドル、既定アクセントカラー）を合成して挿入する。
func (s *Service) LoadAll(ctx context.Context) error {
	var (
		prof         *model.Profile
		experiences  []model.Experience
		education    []model.Education
		skills       []model.Skill
		certificates []model.Certificate
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.store.FetchProfile(gctx, s.selfID)
		if err != nil {
			if backend.IsNotFound(err) {
				return nil
			}
			return fmt.Errorf("failed to load profile: %w", err)
		}
		prof = p
		return nil
	})
	g.Go(func() error {
		rows, err := s.store.Experiences(gctx, s.selfID)
		if err != nil {
			return fmt.Errorf("failed to load experiences: %w", err)
		}
		experiences = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.store.Education(gctx, s.selfID)
		if err != nil {
			return fmt.Errorf("failed to load education: %w", err)
		}
		education = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.store.Skills(gctx, s.selfID)
		if err != nil {
			return fmt.Errorf("failed to load skills: %w", err)
		}
		skills = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.store.Certificates(gctx, s.selfID)
		if err != nil {
			return fmt.Errorf("failed to load certificates: %w", err)
		}
		certificates = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if prof == nil {
		synthesized := s.defaultProfile()
		if err := s.store.InsertProfile(ctx, synthesized); err != nil {
			// 挿入失敗でも合成レコードで動作を継続する（次回読み込みで再試行される）
			s.logger.Warn("既定プロフィールの挿入に失敗しました",
				slog.String("user_id", s.selfID),
				slog.String("error", err.Error()),
			)
		}
		prof = &synthesized
	}

	s.mu.Lock()
	s.profile = prof
	s.experiences = experiences
	s.education = education
	s.skills = skills
	s.certificates = certificates
	s.mu.Unlock()
	return nil
}

// defaultProfile はプロフィール行が存在しない場合の既定レコードを合成する。
func (s *Service) defaultProfile() model.Profile {
	name := s.email
	if at := strings.Index(name, "@"); at >= 0 {
		name = name[:at]
	}
	return model.Profile{
		ID:          s.selfID,
		FullName:    name,
		Username:    generateUsername(),
		AvatarColor: defaultAvatarColor,
	}
}

// generateUsername は固定プレフィックスと6桁の乱数からハンドルを生成する。
func generateUsername() string {
	return fmt.Sprintf("0302CS%06d", rand.IntN(1000000))
}

// Profile は現在のプロフィールのスナップショットを返す。
func (s *Service) Profile() (model.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil {
		return model.Profile{}, false
	}
	return *s.profile, true
}

// Experiences は職歴一覧のスナップショットを返す。
func (s *Service) Experiences() []model.Experience {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Experience(nil), s.experiences...)
}

// Education は学歴一覧のスナップショットを返す。
func (s *Service) Education() []model.Education {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Education(nil), s.education...)
}

// Skills はスキル一覧のスナップショットを返す。
func (s *Service) Skills() []model.Skill {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Skill(nil), s.skills...)
}

// Certificates は資格一覧のスナップショットを返す。
func (s *Service) Certificates() []model.Certificate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Certificate(nil), s.certificates...)
}

// CheckUsernameAvailability はハンドルの可用性を三値で返す。
//
// 最小文字数未満および現在のハンドルと同一の場合は判定しない。
// 照会失敗も「不明」とし、保存時の再検証に委ねる。
func (s *Service) CheckUsernameAvailability(ctx context.Context, username string) Availability {
	username = strings.TrimSpace(username)
	if len([]rune(username)) < minUsernameLength {
		return AvailabilityUnknown
	}

	s.mu.Lock()
	current := ""
	if s.profile != nil {
		current = s.profile.Username
	}
	s.mu.Unlock()
	if username == current {
		return AvailabilityUnknown
	}

	exists, err := s.store.UsernameExistsExcluding(ctx, username, s.selfID)
	if err != nil {
		s.logger.Warn("ユーザー名の可用性チェックに失敗しました",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return AvailabilityUnknown
	}
	if exists {
		return AvailabilityTaken
	}
	return AvailabilityFree
}

// Save はプロフィール基本情報を保存する。
//
// ハンドルが変更されている場合は更新の直前に長さと一意性を再検証する。
// エラー時はローカル状態を変更しない。
func (s *Service) Save(ctx context.Context, patch ProfilePatch) error {
	patch.Username = strings.TrimSpace(patch.Username)

	s.mu.Lock()
	current := ""
	if s.profile != nil {
		current = s.profile.Username
	}
	s.mu.Unlock()

	if patch.Username != current {
		if len([]rune(patch.Username)) < minUsernameLength {
			return model.NewUsernameTooShortError()
		}
		exists, err := s.store.UsernameExistsExcluding(ctx, patch.Username, s.selfID)
		if err != nil {
			return model.NewBackendRejectedError("save profile")
		}
		if exists {
			return model.NewUsernameTakenError()
		}
	}

	updated, err := s.store.UpdateProfile(ctx, s.selfID, map[string]any{
		"full_name": patch.FullName,
		"username":  patch.Username,
		"headline":  patch.Headline,
		"bio":       patch.Bio,
		"location":  patch.Location,
		"website":   patch.Website,
		"company":   patch.Company,
	})
	if err != nil {
		s.logger.Error("プロフィールの保存に失敗しました",
			slog.String("user_id", s.selfID),
			slog.String("error", err.Error()),
		)
		return model.NewBackendRejectedError("save profile")
	}

	s.mu.Lock()
	s.profile = updated
	s.mu.Unlock()
	return nil
}

// SetProfileImage はプロフィール画像またはカバー画像を置換し、
// 画像参照フィールドを更新する。
func (s *Service) SetProfileImage(ctx context.Context, kind upload.ImageKind, f upload.File) error {
	s.mu.Lock()
	oldURL := ""
	if s.profile != nil {
		switch kind {
		case upload.KindProfile:
			oldURL = s.profile.ProfileImageURL
		case upload.KindCover:
			oldURL = s.profile.CoverImageURL
		}
	}
	s.mu.Unlock()

	url, err := s.images.ReplaceProfileImage(ctx, s.selfID, kind, f, oldURL)
	if err != nil {
		return err
	}

	column := "profile_image_url"
	if kind == upload.KindCover {
		column = "cover_image_url"
	}
	updated, err := s.store.UpdateProfile(ctx, s.selfID, map[string]any{column: url})
	if err != nil {
		s.logger.Error("画像参照の更新に失敗しました",
			slog.String("user_id", s.selfID),
			slog.String("column", column),
			slog.String("error", err.Error()),
		)
		return model.NewBackendRejectedError("update image")
	}

	s.mu.Lock()
	s.profile = updated
	s.mu.Unlock()
	return nil
}

// AddExperience は職歴を1件追加する。成功時のみローカル一覧を更新する。
func (s *Service) AddExperience(ctx context.Context, f ExperienceForm) (*model.Experience, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	row, err := s.store.InsertExperience(ctx, s.selfID, f)
	if err != nil {
		return nil, model.NewBackendRejectedError("add experience")
	}
	s.mu.Lock()
	s.experiences = append(s.experiences, *row)
	s.mu.Unlock()
	return row, nil
}

// DeleteExperience は職歴を1件削除する。
func (s *Service) DeleteExperience(ctx context.Context, id string) error {
	if err := s.store.DeleteExperience(ctx, s.selfID, id); err != nil {
		return model.NewBackendRejectedError("delete experience")
	}
	s.mu.Lock()
	s.experiences = deleteByID(s.experiences, id, func(e model.Experience) string { return e.ID })
	s.mu.Unlock()
	return nil
}

// AddEducation は学歴を1件追加する。成功時のみローカル一覧を更新する。
func (s *Service) AddEducation(ctx context.Context, f EducationForm) (*model.Education, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	row, err := s.store.InsertEducation(ctx, s.selfID, f)
	if err != nil {
		return nil, model.NewBackendRejectedError("add education")
	}
	s.mu.Lock()
	s.education = append(s.education, *row)
	s.mu.Unlock()
	return row, nil
}

// DeleteEducation は学歴を1件削除する。
func (s *Service) DeleteEducation(ctx context.Context, id string) error {
	if err := s.store.DeleteEducation(ctx, s.selfID, id); err != nil {
		return model.NewBackendRejectedError("delete education")
	}
	s.mu.Lock()
	s.education = deleteByID(s.education, id, func(e model.Education) string { return e.ID })
	s.mu.Unlock()
	return nil
}

// AddSkill はスキルを1件追加する。成功時のみローカル一覧を更新する。
func (s *Service) AddSkill(ctx context.Context, f SkillForm) (*model.Skill, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	row, err := s.store.InsertSkill(ctx, s.selfID, f)
	if err != nil {
		return nil, model.NewBackendRejectedError("add skill")
	}
	s.mu.Lock()
	s.skills = append(s.skills, *row)
	s.mu.Unlock()
	return row, nil
}

// DeleteSkill はスキルを1件削除する。
func (s *Service) DeleteSkill(ctx context.Context, id string) error {
	if err := s.store.DeleteSkill(ctx, s.selfID, id); err != nil {
		return model.NewBackendRejectedError("delete skill")
	}
	s.mu.Lock()
	s.skills = deleteByID(s.skills, id, func(sk model.Skill) string { return sk.ID })
	s.mu.Unlock()
	return nil
}

// AddCertificate は資格を1件追加する。成功時のみローカル一覧を更新する。
func (s *Service) AddCertificate(ctx context.Context, f CertificateForm) (*model.Certificate, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	row, err := s.store.InsertCertificate(ctx, s.selfID, f)
	if err != nil {
		return nil, model.NewBackendRejectedError("add certificate")
	}
	s.mu.Lock()
	s.certificates = append(s.certificates, *row)
	s.mu.Unlock()
	return row, nil
}

// DeleteCertificate は資格を1件削除する。
func (s *Service) DeleteCertificate(ctx context.Context, id string) error {
	if err := s.store.DeleteCertificate(ctx, s.selfID, id); err != nil {
		return model.NewBackendRejectedError("delete certificate")
	}
	s.mu.Lock()
	s.certificates = deleteByID(s.certificates, id, func(c model.Certificate) string { return c.ID })
	s.mu.Unlock()
	return nil
}

// deleteByID は指定IDの要素を取り除いたスライスを返す。
func deleteByID[T any](rows []T, id string, idOf func(T) string) []T {
	result := rows[:0]
	for _, row := range rows {
		if idOf(row) != id {
			result = append(result, row)
		}
	}
	return result
}
