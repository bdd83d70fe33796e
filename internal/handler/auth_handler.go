package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/vartika/linkup/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// SignUp はアカウントを作成しサインイン状態にする。
	SignUp(ctx context.Context, email, password, fullName, username string) (*model.AuthUser, error)
	// SignIn はメールアドレスまたはユーザー名でサインインする。
	SignIn(ctx context.Context, emailOrUsername, password string) (*model.AuthUser, error)
	// SignOut はサインアウトする。
	SignOut(ctx context.Context) error
	// CurrentUser は現在のサインイン済みユーザーを返す。
	CurrentUser() (model.AuthUser, bool)
}

// AuthHandler は認証のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// signUpRequest はサインアップリクエストのボディ。
type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Username string `json:"username"`
}

// signInRequest はサインインリクエストのボディ。
// Identifierにはメールアドレスとユーザー名のどちらも指定できる。
type signInRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// userResponse はサインイン済みユーザーのAPIレスポンス。
type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// SignUp はアカウント作成を処理する。
// POST /auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidFormError("request body must be valid JSON"))
		return
	}

	user, err := h.service.SignUp(r.Context(), req.Email, req.Password, req.FullName, req.Username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, userResponse{ID: user.ID, Email: user.Email})
}

// SignIn はサインインを処理する。
// POST /auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidFormError("request body must be valid JSON"))
		return
	}

	user, err := h.service.SignIn(r.Context(), req.Identifier, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{ID: user.ID, Email: user.Email})
}

// SignOut はサインアウトを処理する。
// POST /auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.service.SignOut(r.Context()); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のサインイン済みユーザーを返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := h.service.CurrentUser()
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
		return
	}
	writeJSON(w, http.StatusOK, userResponse{ID: user.ID, Email: user.Email})
}
