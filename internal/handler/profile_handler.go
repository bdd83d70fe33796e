package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vartika/linkup/internal/model"
	"github.com/vartika/linkup/internal/profile"
	"github.com/vartika/linkup/internal/upload"
)

// ProfileHandler はプロフィールのHTTPハンドラー。
type ProfileHandler struct {
	provider ServicesProvider
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(provider ServicesProvider) *ProfileHandler {
	return &ProfileHandler{provider: provider}
}

// profileResponse はプロフィール画面全体のAPIレスポンス。
type profileResponse struct {
	Profile      model.Profile       `json:"profile"`
	Experiences  []model.Experience  `json:"experiences"`
	Education    []model.Education   `json:"education"`
	Skills       []model.Skill       `json:"skills"`
	Certificates []model.Certificate `json:"certificates"`
}

// availabilityResponse はユーザー名可用性チェックのAPIレスポンス。
type availabilityResponse struct {
	Availability string `json:"availability"`
}

// Get はプロフィールと付随エンティティ一式を読み込んで返す。
// GET /api/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	svcs := requireServices(w, h.provider)
	if svcs == nil {
		return
	}

	if err := svcs.Profile.LoadAll(r.Context()); err != nil {
		handleServiceError(w, err)
		return
	}

	p, _ := svcs.Profile.Profile()
	writeJSON(w, http.StatusOK, profileResponse{
		Profile:      p,
		Experiences:  svcs.Profile.Experiences(),
		Education:    svcs.Profile.Education(),
		Skills:       svcs.Profile.Skills(),
		Certificates: svcs.Profile.Certificates(),
	})
}

// Save はプロフィール基本情報の保存を処理する。
// PUT /api/profile
func (h *ProfileHandler) Save(w http.ResponseWriter, r *http.Request) {
	svcs := requireServices(w, h.provider)
	if svcs == nil {
		return
	}

	var patch profile.ProfilePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidFormError("request body must be valid JSON"))
		return
	}

	if err := svcs.Profile.Save(r.Context(), patch); err != nil {
		handleServiceError(w, err)
		return
	}

	p, _ := svcs.Profile.Profile()
	writeJSON(w, http.StatusOK, p)
}

// CheckUsername はユーザー名の可用性を返す。
// GET /api/profile/username-availability?username=...
func (h *ProfileHandler) CheckUsername(w http.ResponseWriter, r *http.Request) {
	svcs := requireServices(w, h.provider)
	if svcs == nil {
		return
	}

	availability := svcs.Profile.CheckUsernameAvailability(r.Context(), r.URL.Query().Get("username"))
	label := "unknown"
	switch availability {
	case profile.AvailabilityFree:
		label = "available"
	case profile.AvailabilityTaken:
		label = "taken"
	}
	writeJSON(w, http.StatusOK, availabilityResponse{Availability: label})
}

// SetImage はプロフィール画像またはカバー画像の差し替えを処理する。
// マルチパートフォームのimageファイルとkindフィールド（profile | cover）を受け取る。
// POST /api/profile/image
func (h *ProfileHandler) SetImage(w http.ResponseWriter, r *http.Request) {
	svcs := requireServices(w, h.provider)
	if svcs == nil {
		return
	}

	image, err := readUploadFile(r, "image")
	if err != nil || image == nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidFormError("an image file is required"))
		return
	}

	kind := upload.KindProfile
	if r.FormValue("kind") == string(upload.KindCover) {
		kind = upload.KindCover
	}

	if err := svcs.Profile.SetProfileImage(r.Context(), kind, *image); err != nil {
		handleServiceError(w, err)
		return
	}

	p, _ := svcs.Profile.Profile()
	writeJSON(w, http.StatusOK, p)
}

// AddExperience は職歴の追加を処理する。
// POST /api/profile/experiences
func (h *ProfileHandler) AddExperience(w http.ResponseWriter, r *http.Request) {
	svcs := requireServices(w, h.provider)
	if svcs == nil {
		return
	}
	var form profile.ExperienceForm
	if !decodeForm(w, r, &form) {
		return
	}
	row, err := svcs.Profile.AddExperience(r.Context(), form)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

// DeleteExperience は職歴の削除を処理する。
// DELETE /api/profile/experiences/:id
func (h *ProfileHandler) DeleteExperience(w http.ResponseWriter, r *http.Request) {
	svcs := requireServices(w, h.provider)
	if svcs == nil {
		return
	}
	if err := svcs.Profile.DeleteExperience(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddEducation は学歴の追加を処理する。
// POST /api/profile/education
func (h *ProfileHandler) AddEducation(w http.ResponseWriter, r *http.Request) {
	svcs := requireServices(w, h.provider)
	if svcs == nil {
		return
	}
	var form profile.EducationForm
	if !decodeForm(w, r, &form) {
		return
	}
	row, err := svcs.Profile.AddEducation(r.Context(), form)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

// DeleteEducation は学歴の削除を処理する。
// DELETE /api/profile/education/:id
func (h *ProfileHandler) DeleteEducation(w http.ResponseWriter, r *http.Request) {
	svcs := requireServices(w, h.provider)
	if svcs == nil {
		return
	}
	if err := svcs.Profile.DeleteEducation(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddSkill はスキルの追加を処理する。
// POST /api/profile/skills
func (h *ProfileHandler) AddSkill(w http.ResponseWriter, r *http.Request) {
	svcs := requireServices(w, h.provider)
	if svcs == nil {
		return
	}
	var form profile.SkillForm
	if !decodeForm(w, r, &form) {
		return
	}
	row, err := svcs.Profile.AddSkill(r.Context(), form)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

// DeleteSkill はスキルの削除を処理する。
// DELETE /api/profile/skills/:id
func (h *ProfileHandler) DeleteSkill(w http.ResponseWriter, r *http.Request) {
	svcs := requireServices(w, h.provider)
	if svcs == nil {
		return
	}
	if err := svcs.Profile.DeleteSkill(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddCertificate は資格の追加を処理する。
// POST /api/profile/certificates
func (h *ProfileHandler) AddCertificate(w http.ResponseWriter, r *http.Request) {
	svcs := requireServices(w, h.provider)
	if svcs == nil {
		return
	}
	var form profile.CertificateForm
	if !decodeForm(w, r, &form) {
		return
	}
	row, err := svcs.Profile.AddCertificate(r.Context(), form)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

// DeleteCertificate は資格の削除を処理する。
// DELETE /api/profile/certificates/:id
func (h *ProfileHandler) DeleteCertificate(w http.ResponseWriter, r *http.Request) {
	svcs := requireServices(w, h.provider)
	if svcs == nil {
		return
	}
	if err := svcs.Profile.DeleteCertificate(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeForm はリクエストボディをJSONデコードする。失敗時は400を書き込みfalseを返す。
func decodeForm(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidFormError("request body must be valid JSON"))
		return false
	}
	return true
}
