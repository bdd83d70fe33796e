// Package session は認証済みアイデンティティの保持とライフサイクル管理を提供する。
// 認証の実体は外部認証サービスにあり、本パッケージは状態変化の通知と
// アクセストークンの引き回しに徹する。
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/vartika/linkup/internal/model"
)

// defaultAvatarColor はサインアップ時にプロフィールへ設定する既定のアクセント色。
const defaultAvatarColor = "#667eea"

// AuthClient は外部認証サービスの呼び出しインターフェース。
type AuthClient interface {
	// SignUp はアカウントを作成しセッションを返す。
	SignUp(ctx context.Context, email, password string) (*model.Session, error)
	// SignInWithPassword はメールアドレスとパスワードでサインインする。
	SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error)
	// SignOut は現在のトークンを失効させる。
	SignOut(ctx context.Context) error
}

// ProfileStore はサインアップ・サインインで必要になるプロフィール操作のインターフェース。
type ProfileStore interface {
	// UsernameExists は指定ユーザー名のプロフィール行が存在するかを返す。
	UsernameExists(ctx context.Context, username string) (bool, error)
	// InsertProfile はプロフィール行を作成する。
	InsertProfile(ctx context.Context, profile *model.Profile) error
	// LookupEmail はユーザー名からアカウントのメールアドレスを逆引きする。
	LookupEmail(ctx context.Context, username string) (string, error)
}

// TokenSink はサインイン状態の変化に応じてアクセストークンを受け取る先。
// バックエンドクライアントが実装する。
type TokenSink interface {
	SetAccessToken(token string)
}

// Listener は認証状態変化の通知を受け取る。サインアウト時はnilが渡される。
type Listener func(user *model.AuthUser)

// Service は現在の認証済みアイデンティティを保持し、変化を購読者へ通知する。
type Service struct {
	auth   AuthClient
	store  ProfileStore
	tokens TokenSink
	logger *slog.Logger

	mu        sync.RWMutex
	current   *model.Session
	listeners map[int]Listener
	nextID    int
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(auth AuthClient, store ProfileStore, tokens TokenSink, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		auth:      auth,
		store:     store,
		tokens:    tokens,
		logger:    logger,
		listeners: make(map[int]Listener),
	}
}

// SignUp はアカウントを作成し、既定値のプロフィール行を挿入する。
// ユーザー名の重複は事前チェックで検出する（アトミックな保証ではない）。
func (s *Service) SignUp(ctx context.Context, email, password, fullName, username string) (*model.AuthUser, error) {
	taken, err := s.store.UsernameExists(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if taken {
		return nil, model.NewUsernameTakenError()
	}

	sess, err := s.auth.SignUp(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("sign-up failed: %w", err)
	}
	s.adopt(sess)

	if err := s.store.InsertProfile(ctx, &model.Profile{
		ID:          sess.User.ID,
		FullName:    fullName,
		Username:    username,
		AvatarColor: defaultAvatarColor,
	}); err != nil {
		// アカウント自体は作成済み。プロフィールはプロフィール画面で遅延生成される。
		s.logger.Error("サインアップ時のプロフィール作成に失敗しました",
			slog.String("user_id", sess.User.ID),
			slog.String("error", err.Error()),
		)
	}

	return &sess.User, nil
}

// SignIn はメールアドレスまたはユーザー名でサインインする。
// 入力に@が含まれない場合はユーザー名とみなし、RPCでメールを逆引きする。
// 逆引き失敗は資格情報エラーに丸める（アカウント存在の推測を防ぐ）。
func (s *Service) SignIn(ctx context.Context, emailOrUsername, password string) (*model.AuthUser, error) {
	email := emailOrUsername
	if !strings.Contains(emailOrUsername, "@") {
		resolved, err := s.store.LookupEmail(ctx, emailOrUsername)
		if err != nil || resolved == "" {
			return nil, model.NewInvalidCredentialsError()
		}
		email = resolved
	}

	sess, err := s.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, model.NewInvalidCredentialsError()
	}
	s.adopt(sess)

	s.logger.Info("サインインしました", slog.String("user_id", sess.User.ID))
	return &sess.User, nil
}

// SignOut は現在のセッションを破棄し、購読者へnilを通知する。
func (s *Service) SignOut(ctx context.Context) error {
	if err := s.auth.SignOut(ctx); err != nil {
		// トークン失効の失敗はローカル状態の破棄を妨げない
		s.logger.Warn("サインアウトAPIの呼び出しに失敗しました", slog.String("error", err.Error()))
	}

	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	s.tokens.SetAccessToken("")
	s.notify(nil)
	return nil
}

// CurrentUser は現在の認証済みユーザーを返す。未認証の場合は偽を返す。
func (s *Service) CurrentUser() (model.AuthUser, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return model.AuthUser{}, false
	}
	return s.current.User, true
}

// OnChange は認証状態変化のリスナーを登録し、解除用の関数を返す。
func (s *Service) OnChange(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// adopt はセッションを現在値として採用し、トークンを伝播して購読者へ通知する。
func (s *Service) adopt(sess *model.Session) {
	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	s.tokens.SetAccessToken(sess.AccessToken)
	user := sess.User
	s.notify(&user)
}

// notify は登録済みリスナーへ状態変化を配送する。
func (s *Service) notify(user *model.AuthUser) {
	s.mu.RLock()
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(user)
	}
}
