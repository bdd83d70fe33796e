package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/vartika/linkup/internal/model"
	"github.com/vartika/linkup/internal/profile"
	"github.com/vartika/linkup/internal/upload"
)

// FeedServiceInterface はフィードハンドラーが必要とするサービスインターフェース。
type FeedServiceInterface interface {
	Posts() []model.Post
	LoadPosts(ctx context.Context) error
	CreatePost(ctx context.Context, content string, image *upload.File) (*model.Post, error)
	DeletePost(postID string)
}

// ProfileServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	LoadAll(ctx context.Context) error
	Profile() (model.Profile, bool)
	Experiences() []model.Experience
	Education() []model.Education
	Skills() []model.Skill
	Certificates() []model.Certificate
	CheckUsernameAvailability(ctx context.Context, username string) profile.Availability
	Save(ctx context.Context, patch profile.ProfilePatch) error
	SetProfileImage(ctx context.Context, kind upload.ImageKind, f upload.File) error
	AddExperience(ctx context.Context, f profile.ExperienceForm) (*model.Experience, error)
	DeleteExperience(ctx context.Context, id string) error
	AddEducation(ctx context.Context, f profile.EducationForm) (*model.Education, error)
	DeleteEducation(ctx context.Context, id string) error
	AddSkill(ctx context.Context, f profile.SkillForm) (*model.Skill, error)
	DeleteSkill(ctx context.Context, id string) error
	AddCertificate(ctx context.Context, f profile.CertificateForm) (*model.Certificate, error)
	DeleteCertificate(ctx context.Context, id string) error
}

// MessagingServiceInterface はメッセージングハンドラーが必要とするサービスインターフェース。
type MessagingServiceInterface interface {
	Conversations() []model.Conversation
	Selected() string
	Select(ctx context.Context, conversationID string) error
	Messages() []model.Message
	SetDraft(text string)
	Draft() string
	Send(ctx context.Context) (*model.Message, error)
}

// AssistantServiceInterface はAIアシスタントハンドラーが必要とするサービスインターフェース。
type AssistantServiceInterface interface {
	Send(ctx context.Context, text string) (model.ChatTurn, model.ChatTurn, error)
	History() ([]model.ChatTurn, error)
	Clear() error
	// Render は応答テキストを表示用HTMLへ整形する。
	Render(text string) string
}

// Services はサインイン済みユーザーに紐づくサービス群。
// サインインのたびに再構築され、サインアウトで破棄される。
type Services struct {
	Feed      FeedServiceInterface
	Profile   ProfileServiceInterface
	Messaging MessagingServiceInterface
	Assistant AssistantServiceInterface
}

// ServicesProvider は現在のユーザーのサービス群を提供するインターフェース。
// サインインしていない場合はfalseを返す。
type ServicesProvider interface {
	Services() (*Services, bool)
}

// requireServices はサービス群を取得し、未サインインなら401を書き込んでnilを返す。
func requireServices(w http.ResponseWriter, provider ServicesProvider) *Services {
	svcs, ok := provider.Services()
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
		return nil
	}
	return svcs
}

// maxMultipartMemory はマルチパート解析時にメモリへ保持する上限。
const maxMultipartMemory = 8 << 20

// readUploadFile はマルチパートフォームから画像ファイルを読み取る。
// ファイルが添付されていない場合は(nil, nil)を返す。
func readUploadFile(r *http.Request, field string) (*upload.File, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return nil, err
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		if err == http.ErrMissingFile {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return &upload.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
