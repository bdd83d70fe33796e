package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vartika/linkup/internal/model"
)

// authPrefix は認証APIのパスプレフィックス。
const authPrefix = "/auth/v1/"

// tokenResponse は認証APIが返すトークンレスポンス。
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

// toSession はトークンレスポンスをmodel.Sessionへ変換する。
// 有効期限はアクセストークンのexpクレームから復元する。
func (t *tokenResponse) toSession() *model.Session {
	return &model.Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    tokenExpiry(t.AccessToken),
		User: model.AuthUser{
			ID:    t.User.ID,
			Email: t.User.Email,
		},
	}
}

// tokenExpiry はJWTのexpクレームを復元する。
// トークンは外部サービス発行の不透明な証明であり、署名検証は行わない
// （検証責務はバックエンド側にある）。復元できない場合はゼロ値を返す。
func tokenExpiry(token string) time.Time {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// SignUp は外部認証サービスにアカウントを作成する。
// プロフィール行の作成は呼び出し元（sessionサービス）の責務。
func (c *Client) SignUp(ctx context.Context, email, password string) (*model.Session, error) {
	var tok tokenResponse
	resp, err := c.do(ctx, http.MethodPost, authPrefix+"signup", nil, map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	if err := decodeInto(resp, &tok); err != nil {
		return nil, err
	}
	return tok.toSession(), nil
}

// SignInWithPassword はメールアドレスとパスワードでサインインする。
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	var tok tokenResponse
	resp, err := c.do(ctx, http.MethodPost, authPrefix+"token?grant_type=password", nil, map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	if err := decodeInto(resp, &tok); err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("sign-in response contained no access token")
	}
	return tok.toSession(), nil
}

// SignOut は現在のアクセストークンを失効させる。
func (c *Client) SignOut(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, authPrefix+"logout", nil, struct{}{})
	if err != nil {
		return err
	}
	return decodeInto(resp, nil)
}
