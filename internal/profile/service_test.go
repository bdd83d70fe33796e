package profile

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"testing"

	"github.com/vartika/linkup/internal/backend"
	"github.com/vartika/linkup/internal/model"
	"github.com/vartika/linkup/internal/upload"
)

// --- モック ---

type mockStore struct {
	fetchProfileFn   func(ctx context.Context, userID string) (*model.Profile, error)
	insertProfileFn  func(ctx context.Context, p model.Profile) error
	updateProfileFn  func(ctx context.Context, userID string, patch map[string]any) (*model.Profile, error)
	usernameExistsFn func(ctx context.Context, username, selfID string) (bool, error)

	experiencesFn  func(ctx context.Context, userID string) ([]model.Experience, error)
	educationFn    func(ctx context.Context, userID string) ([]model.Education, error)
	skillsFn       func(ctx context.Context, userID string) ([]model.Skill, error)
	certificatesFn func(ctx context.Context, userID string) ([]model.Certificate, error)

	insertExperienceFn  func(ctx context.Context, userID string, f ExperienceForm) (*model.Experience, error)
	insertEducationFn   func(ctx context.Context, userID string, f EducationForm) (*model.Education, error)
	insertSkillFn       func(ctx context.Context, userID string, f SkillForm) (*model.Skill, error)
	insertCertificateFn func(ctx context.Context, userID string, f CertificateForm) (*model.Certificate, error)

	deleteExperienceFn  func(ctx context.Context, userID, id string) error
	deleteEducationFn   func(ctx context.Context, userID, id string) error
	deleteSkillFn       func(ctx context.Context, userID, id string) error
	deleteCertificateFn func(ctx context.Context, userID, id string) error

	insertedProfiles []model.Profile
}

func (m *mockStore) FetchProfile(ctx context.Context, userID string) (*model.Profile, error) {
	if m.fetchProfileFn != nil {
		return m.fetchProfileFn(ctx, userID)
	}
	return &model.Profile{ID: userID, FullName: "Existing User", Username: "existing"}, nil
}

func (m *mockStore) InsertProfile(ctx context.Context, p model.Profile) error {
	m.insertedProfiles = append(m.insertedProfiles, p)
	if m.insertProfileFn != nil {
		return m.insertProfileFn(ctx, p)
	}
	return nil
}

func (m *mockStore) UpdateProfile(ctx context.Context, userID string, patch map[string]any) (*model.Profile, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, userID, patch)
	}
	return &model.Profile{ID: userID}, nil
}

func (m *mockStore) UsernameExistsExcluding(ctx context.Context, username, selfID string) (bool, error) {
	if m.usernameExistsFn != nil {
		return m.usernameExistsFn(ctx, username, selfID)
	}
	return false, nil
}

func (m *mockStore) Experiences(ctx context.Context, userID string) ([]model.Experience, error) {
	if m.experiencesFn != nil {
		return m.experiencesFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockStore) Education(ctx context.Context, userID string) ([]model.Education, error) {
	if m.educationFn != nil {
		return m.educationFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockStore) Skills(ctx context.Context, userID string) ([]model.Skill, error) {
	if m.skillsFn != nil {
		return m.skillsFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockStore) Certificates(ctx context.Context, userID string) ([]model.Certificate, error) {
	if m.certificatesFn != nil {
		return m.certificatesFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockStore) InsertExperience(ctx context.Context, userID string, f ExperienceForm) (*model.Experience, error) {
	if m.insertExperienceFn != nil {
		return m.insertExperienceFn(ctx, userID, f)
	}
	return &model.Experience{ID: "exp-1", Position: f.Position, Company: f.Company}, nil
}

func (m *mockStore) InsertEducation(ctx context.Context, userID string, f EducationForm) (*model.Education, error) {
	if m.insertEducationFn != nil {
		return m.insertEducationFn(ctx, userID, f)
	}
	return &model.Education{ID: "edu-1", School: f.School}, nil
}

func (m *mockStore) InsertSkill(ctx context.Context, userID string, f SkillForm) (*model.Skill, error) {
	if m.insertSkillFn != nil {
		return m.insertSkillFn(ctx, userID, f)
	}
	return &model.Skill{ID: "skill-1", SkillName: f.SkillName}, nil
}

func (m *mockStore) InsertCertificate(ctx context.Context, userID string, f CertificateForm) (*model.Certificate, error) {
	if m.insertCertificateFn != nil {
		return m.insertCertificateFn(ctx, userID, f)
	}
	return &model.Certificate{ID: "cert-1", CertificateName: f.CertificateName}, nil
}

func (m *mockStore) DeleteExperience(ctx context.Context, userID, id string) error {
	if m.deleteExperienceFn != nil {
		return m.deleteExperienceFn(ctx, userID, id)
	}
	return nil
}

func (m *mockStore) DeleteEducation(ctx context.Context, userID, id string) error {
	if m.deleteEducationFn != nil {
		return m.deleteEducationFn(ctx, userID, id)
	}
	return nil
}

func (m *mockStore) DeleteSkill(ctx context.Context, userID, id string) error {
	if m.deleteSkillFn != nil {
		return m.deleteSkillFn(ctx, userID, id)
	}
	return nil
}

func (m *mockStore) DeleteCertificate(ctx context.Context, userID, id string) error {
	if m.deleteCertificateFn != nil {
		return m.deleteCertificateFn(ctx, userID, id)
	}
	return nil
}

type mockImageStore struct {
	replaceFn func(ctx context.Context, userID string, kind upload.ImageKind, f upload.File, oldURL string) (string, error)
}

func (m *mockImageStore) ReplaceProfileImage(ctx context.Context, userID string, kind upload.ImageKind, f upload.File, oldURL string) (string, error) {
	if m.replaceFn != nil {
		return m.replaceFn(ctx, userID, kind, f, oldURL)
	}
	return "https://storage.example.com/avatars/new.png", nil
}

func notFoundErr() error {
	return &backend.APIError{StatusCode: http.StatusNotAcceptable, Code: "PGRST116", Message: "no rows"}
}

// --- テスト ---

// TestService_LoadAll_DefaultProfile はプロフィール行が無い場合の既定レコード合成を検証する。
func TestService_LoadAll_DefaultProfile(t *testing.T) {
	usernamePattern := regexp.MustCompile(`^0302CS\d{6}$`)

	t.Run("行なしは既定レコードを合成して挿入する", func(t *testing.T) {
		store := &mockStore{
			fetchProfileFn: func(ctx context.Context, userID string) (*model.Profile, error) {
				return nil, notFoundErr()
			},
		}
		svc := NewService("user-1", "taro.yamada@example.com", store, &mockImageStore{}, nil)

		if err := svc.LoadAll(context.Background()); err != nil {
			t.Fatalf("load failed: %v", err)
		}

		prof, ok := svc.Profile()
		if !ok {
			t.Fatal("expected synthesized profile")
		}
		if prof.FullName != "taro.yamada" {
			t.Errorf("expected local part of email as name, got %q", prof.FullName)
		}
		if !usernamePattern.MatchString(prof.Username) {
			t.Errorf("expected generated handle, got %q", prof.Username)
		}
		if prof.AvatarColor != "#667eea" {
			t.Errorf("expected default accent color, got %q", prof.AvatarColor)
		}
		if len(store.insertedProfiles) != 1 {
			t.Errorf("expected 1 insert, got %d", len(store.insertedProfiles))
		}
	})

	t.Run("挿入失敗でも合成レコードで継続する", func(t *testing.T) {
		store := &mockStore{
			fetchProfileFn: func(ctx context.Context, userID string) (*model.Profile, error) {
				return nil, notFoundErr()
			},
			insertProfileFn: func(ctx context.Context, p model.Profile) error {
				return errors.New("conflict")
			},
		}
		svc := NewService("user-1", "taro@example.com", store, &mockImageStore{}, nil)

		if err := svc.LoadAll(context.Background()); err != nil {
			t.Fatalf("expected success despite insert failure, got %v", err)
		}
		if _, ok := svc.Profile(); !ok {
			t.Error("expected synthesized profile in local state")
		}
	})

	t.Run("行なし以外の取得失敗はエラーになる", func(t *testing.T) {
		store := &mockStore{
			fetchProfileFn: func(ctx context.Context, userID string) (*model.Profile, error) {
				return nil, &backend.APIError{StatusCode: http.StatusInternalServerError, Message: "boom"}
			},
		}
		svc := NewService("user-1", "taro@example.com", store, &mockImageStore{}, nil)

		if err := svc.LoadAll(context.Background()); err == nil {
			t.Error("expected error")
		}
	})
}

// TestService_LoadAll は付随エンティティの並行読み込みを検証する。
func TestService_LoadAll(t *testing.T) {
	store := &mockStore{
		experiencesFn: func(ctx context.Context, userID string) ([]model.Experience, error) {
			return []model.Experience{{ID: "exp-1"}}, nil
		},
		skillsFn: func(ctx context.Context, userID string) ([]model.Skill, error) {
			return []model.Skill{{ID: "skill-1"}, {ID: "skill-2"}}, nil
		},
	}
	svc := NewService("user-1", "taro@example.com", store, &mockImageStore{}, nil)

	if err := svc.LoadAll(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(svc.Experiences()) != 1 {
		t.Errorf("expected 1 experience, got %d", len(svc.Experiences()))
	}
	if len(svc.Skills()) != 2 {
		t.Errorf("expected 2 skills, got %d", len(svc.Skills()))
	}
	if len(svc.Education()) != 0 || len(svc.Certificates()) != 0 {
		t.Error("expected empty education and certificates")
	}
}

// TestService_CheckUsernameAvailability はハンドル可用性の三値判定を検証する。
func TestService_CheckUsernameAvailability(t *testing.T) {
	newLoaded := func(store *mockStore) *Service {
		svc := NewService("user-1", "taro@example.com", store, &mockImageStore{}, nil)
		if err := svc.LoadAll(context.Background()); err != nil {
			t.Fatalf("load failed: %v", err)
		}
		return svc
	}

	t.Run("3文字未満は判定しない", func(t *testing.T) {
		svc := newLoaded(&mockStore{})
		if got := svc.CheckUsernameAvailability(context.Background(), "ab"); got != AvailabilityUnknown {
			t.Errorf("expected unknown, got %v", got)
		}
	})

	t.Run("現在のハンドルと同一は判定しない", func(t *testing.T) {
		svc := newLoaded(&mockStore{})
		if got := svc.CheckUsernameAvailability(context.Background(), "existing"); got != AvailabilityUnknown {
			t.Errorf("expected unknown, got %v", got)
		}
	})

	t.Run("照会失敗は不明を返す", func(t *testing.T) {
		svc := newLoaded(&mockStore{
			usernameExistsFn: func(ctx context.Context, username, selfID string) (bool, error) {
				return false, errors.New("timeout")
			},
		})
		if got := svc.CheckUsernameAvailability(context.Background(), "newname"); got != AvailabilityUnknown {
			t.Errorf("expected unknown, got %v", got)
		}
	})

	t.Run("使用済みハンドル", func(t *testing.T) {
		svc := newLoaded(&mockStore{
			usernameExistsFn: func(ctx context.Context, username, selfID string) (bool, error) {
				return true, nil
			},
		})
		if got := svc.CheckUsernameAvailability(context.Background(), "taken"); got != AvailabilityTaken {
			t.Errorf("expected taken, got %v", got)
		}
	})

	t.Run("使用可能ハンドル", func(t *testing.T) {
		svc := newLoaded(&mockStore{})
		if got := svc.CheckUsernameAvailability(context.Background(), "freename"); got != AvailabilityFree {
			t.Errorf("expected free, got %v", got)
		}
	})
}

// TestService_Save はハンドル変更時の再検証と保存失敗時の状態保持を検証する。
func TestService_Save(t *testing.T) {
	newLoaded := func(store *mockStore) *Service {
		svc := NewService("user-1", "taro@example.com", store, &mockImageStore{}, nil)
		if err := svc.LoadAll(context.Background()); err != nil {
			t.Fatalf("load failed: %v", err)
		}
		return svc
	}

	t.Run("短すぎる新ハンドルは拒否される", func(t *testing.T) {
		svc := newLoaded(&mockStore{})
		err := svc.Save(context.Background(), ProfilePatch{FullName: "Taro", Username: "ab"})

		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUsernameTooShort {
			t.Errorf("expected username too short error, got %v", err)
		}
	})

	t.Run("使用済みの新ハンドルは拒否される", func(t *testing.T) {
		svc := newLoaded(&mockStore{
			usernameExistsFn: func(ctx context.Context, username, selfID string) (bool, error) {
				return true, nil
			},
		})
		err := svc.Save(context.Background(), ProfilePatch{FullName: "Taro", Username: "takenname"})

		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUsernameTaken {
			t.Errorf("expected username taken error, got %v", err)
		}
	})

	t.Run("ハンドル未変更なら一意性照会を行わない", func(t *testing.T) {
		svc := newLoaded(&mockStore{
			usernameExistsFn: func(ctx context.Context, username, selfID string) (bool, error) {
				t.Error("uniqueness check must be skipped for unchanged handle")
				return false, nil
			},
		})
		if err := svc.Save(context.Background(), ProfilePatch{FullName: "Taro", Username: "existing"}); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	})

	t.Run("保存失敗時はローカル状態を変更しない", func(t *testing.T) {
		svc := newLoaded(&mockStore{
			updateProfileFn: func(ctx context.Context, userID string, patch map[string]any) (*model.Profile, error) {
				return nil, errors.New("update failed")
			},
		})
		err := svc.Save(context.Background(), ProfilePatch{FullName: "Changed", Username: "existing"})

		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeBackendRejected {
			t.Errorf("expected backend rejected error, got %v", err)
		}
		prof, _ := svc.Profile()
		if prof.FullName != "Existing User" {
			t.Errorf("expected local state unchanged, got %q", prof.FullName)
		}
	})

	t.Run("成功時は更新後のレコードを保持する", func(t *testing.T) {
		svc := newLoaded(&mockStore{
			updateProfileFn: func(ctx context.Context, userID string, patch map[string]any) (*model.Profile, error) {
				if patch["full_name"] != "Changed" {
					t.Errorf("expected full_name in patch, got %v", patch)
				}
				return &model.Profile{ID: userID, FullName: "Changed", Username: "existing"}, nil
			},
		})
		if err := svc.Save(context.Background(), ProfilePatch{FullName: "Changed", Username: "existing"}); err != nil {
			t.Fatalf("save failed: %v", err)
		}
		prof, _ := svc.Profile()
		if prof.FullName != "Changed" {
			t.Errorf("expected updated state, got %q", prof.FullName)
		}
	})
}

// TestService_SetProfileImage は画像置換と参照フィールド更新を検証する。
func TestService_SetProfileImage(t *testing.T) {
	var gotColumn string
	store := &mockStore{
		fetchProfileFn: func(ctx context.Context, userID string) (*model.Profile, error) {
			return &model.Profile{
				ID:              userID,
				Username:        "existing",
				ProfileImageURL: "https://storage.example.com/avatars/old-profile.png",
				CoverImageURL:   "https://storage.example.com/avatars/old-cover.png",
			}, nil
		},
		updateProfileFn: func(ctx context.Context, userID string, patch map[string]any) (*model.Profile, error) {
			for k := range patch {
				gotColumn = k
			}
			return &model.Profile{ID: userID, Username: "existing"}, nil
		},
	}

	tests := []struct {
		name       string
		kind       upload.ImageKind
		wantOldURL string
		wantColumn string
	}{
		{
			name:       "プロフィール画像",
			kind:       upload.KindProfile,
			wantOldURL: "https://storage.example.com/avatars/old-profile.png",
			wantColumn: "profile_image_url",
		},
		{
			name:       "カバー画像",
			kind:       upload.KindCover,
			wantOldURL: "https://storage.example.com/avatars/old-cover.png",
			wantColumn: "cover_image_url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotOldURL string
			images := &mockImageStore{
				replaceFn: func(ctx context.Context, userID string, kind upload.ImageKind, f upload.File, oldURL string) (string, error) {
					gotOldURL = oldURL
					return "https://storage.example.com/avatars/new.png", nil
				},
			}
			svc := NewService("user-1", "taro@example.com", store, images, nil)
			if err := svc.LoadAll(context.Background()); err != nil {
				t.Fatalf("load failed: %v", err)
			}

			f := upload.File{Name: "a.png", ContentType: "image/png", Data: []byte{0x1}}
			if err := svc.SetProfileImage(context.Background(), tt.kind, f); err != nil {
				t.Fatalf("set image failed: %v", err)
			}
			if gotOldURL != tt.wantOldURL {
				t.Errorf("expected old URL %q, got %q", tt.wantOldURL, gotOldURL)
			}
			if gotColumn != tt.wantColumn {
				t.Errorf("expected column %q, got %q", tt.wantColumn, gotColumn)
			}
		})
	}
}

// TestService_Entities は付随エンティティの追加・削除を検証する。
func TestService_Entities(t *testing.T) {
	newLoaded := func(store *mockStore) *Service {
		svc := NewService("user-1", "taro@example.com", store, &mockImageStore{}, nil)
		if err := svc.LoadAll(context.Background()); err != nil {
			t.Fatalf("load failed: %v", err)
		}
		return svc
	}

	t.Run("必須フィールド欠落の職歴は拒否される", func(t *testing.T) {
		svc := newLoaded(&mockStore{})
		_, err := svc.AddExperience(context.Background(), ExperienceForm{Position: "  ", Company: "ACME"})

		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidForm {
			t.Errorf("expected invalid form error, got %v", err)
		}
	})

	t.Run("職歴追加の成功でローカル一覧に反映される", func(t *testing.T) {
		svc := newLoaded(&mockStore{})
		row, err := svc.AddExperience(context.Background(), ExperienceForm{
			Position:  "Engineer",
			Company:   "ACME",
			StartDate: "2024-01",
		})
		if err != nil {
			t.Fatalf("add failed: %v", err)
		}
		if row.ID != "exp-1" {
			t.Errorf("unexpected row: %+v", row)
		}
		if len(svc.Experiences()) != 1 {
			t.Errorf("expected 1 experience locally, got %d", len(svc.Experiences()))
		}
	})

	t.Run("挿入失敗時はローカル一覧に追加しない", func(t *testing.T) {
		svc := newLoaded(&mockStore{
			insertSkillFn: func(ctx context.Context, userID string, f SkillForm) (*model.Skill, error) {
				return nil, errors.New("insert failed")
			},
		})
		_, err := svc.AddSkill(context.Background(), SkillForm{SkillName: "Go"})

		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeBackendRejected {
			t.Errorf("expected backend rejected error, got %v", err)
		}
		if len(svc.Skills()) != 0 {
			t.Errorf("expected skills unchanged, got %d", len(svc.Skills()))
		}
	})

	t.Run("削除成功でローカル一覧から取り除かれる", func(t *testing.T) {
		svc := newLoaded(&mockStore{
			skillsFn: func(ctx context.Context, userID string) ([]model.Skill, error) {
				return []model.Skill{{ID: "skill-1"}, {ID: "skill-2"}}, nil
			},
		})
		if err := svc.DeleteSkill(context.Background(), "skill-1"); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		skills := svc.Skills()
		if len(skills) != 1 || skills[0].ID != "skill-2" {
			t.Errorf("expected only skill-2 to remain, got %+v", skills)
		}
	})

	t.Run("削除失敗時はローカル一覧を変更しない", func(t *testing.T) {
		svc := newLoaded(&mockStore{
			certificatesFn: func(ctx context.Context, userID string) ([]model.Certificate, error) {
				return []model.Certificate{{ID: "cert-1"}}, nil
			},
			deleteCertificateFn: func(ctx context.Context, userID, id string) error {
				return errors.New("delete failed")
			},
		})
		if err := svc.DeleteCertificate(context.Background(), "cert-1"); err == nil {
			t.Fatal("expected error")
		}
		if len(svc.Certificates()) != 1 {
			t.Errorf("expected certificates unchanged, got %d", len(svc.Certificates()))
		}
	})
}

// TestGenerateUsername は生成ハンドルの形式を検証する。
func TestGenerateUsername(t *testing.T) {
	pattern := regexp.MustCompile(`^0302CS\d{6}$`)
	for i := 0; i < 20; i++ {
		name := generateUsername()
		if !pattern.MatchString(name) {
			t.Fatalf("unexpected handle format: %q", name)
		}
		if !strings.HasPrefix(name, "0302CS") {
			t.Fatalf("expected fixed prefix, got %q", name)
		}
	}
}
