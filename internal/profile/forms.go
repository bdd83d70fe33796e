package profile

import (
	"strings"

	"github.com/vartika/linkup/internal/model"
)

// ExperienceForm は職歴追加の入力ペイロード。
type ExperienceForm struct {
	Position    string `json:"position"`
	Company     string `json:"company"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Description string `json:"description"`
	IsCurrent   bool   `json:"is_current"`
}

// Validate は必須フィールドを検証する。
func (f ExperienceForm) Validate() error {
	if strings.TrimSpace(f.Position) == "" {
		return model.NewInvalidFormError("position is required")
	}
	if strings.TrimSpace(f.Company) == "" {
		return model.NewInvalidFormError("company is required")
	}
	return nil
}

// EducationForm は学歴追加の入力ペイロード。
type EducationForm struct {
	School       string `json:"school"`
	Degree       string `json:"degree"`
	FieldOfStudy string `json:"field_of_study"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
}

// Validate は必須フィールドを検証する。
func (f EducationForm) Validate() error {
	if strings.TrimSpace(f.School) == "" {
		return model.NewInvalidFormError("school is required")
	}
	return nil
}

// SkillForm はスキル追加の入力ペイロード。
type SkillForm struct {
	SkillName string `json:"skill_name"`
}

// Validate は必須フィールドを検証する。
func (f SkillForm) Validate() error {
	if strings.TrimSpace(f.SkillName) == "" {
		return model.NewInvalidFormError("skill name is required")
	}
	return nil
}

// CertificateForm は資格追加の入力ペイロード。
type CertificateForm struct {
	CertificateName     string `json:"certificate_name"`
	IssuingOrganization string `json:"issuing_organization"`
	IssueDate           string `json:"issue_date"`
	ExpiryDate          string `json:"expiry_date"`
	CredentialID        string `json:"credential_id"`
	CredentialURL       string `json:"credential_url"`
	Description         string `json:"description"`
}

// Validate は必須フィールドを検証する。
func (f CertificateForm) Validate() error {
	if strings.TrimSpace(f.CertificateName) == "" {
		return model.NewInvalidFormError("certificate name is required")
	}
	if strings.TrimSpace(f.IssuingOrganization) == "" {
		return model.NewInvalidFormError("issuing organization is required")
	}
	return nil
}

// ProfilePatch はプロフィール基本情報の更新ペイロード。
// ゼロ値のフィールドも空文字として保存される（部分更新ではなく全置換）。
type ProfilePatch struct {
	FullName string `json:"full_name"`
	Username string `json:"username"`
	Headline string `json:"headline"`
	Bio      string `json:"bio"`
	Location string `json:"location"`
	Website  string `json:"website"`
	Company  string `json:"company"`
}
