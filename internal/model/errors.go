// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ（UI表示文言）
	Category string // カテゴリ: auth, validation, feed, message, upload, chat, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUsernameTaken      = "USERNAME_TAKEN"
	ErrCodeUsernameTooShort   = "USERNAME_TOO_SHORT"
	ErrCodeEmptyPost          = "EMPTY_POST"
	ErrCodeNotAnImage         = "NOT_AN_IMAGE"
	ErrCodeImageTooLarge      = "IMAGE_TOO_LARGE"
	ErrCodeEmptyMessage       = "EMPTY_MESSAGE"
	ErrCodeNoSelection        = "NO_SELECTION"
	ErrCodeBackendRejected    = "BACKEND_REJECTED"
	ErrCodeNotAuthenticated   = "NOT_AUTHENTICATED"
	ErrCodeInvalidForm        = "INVALID_FORM"
)

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// ユーザー名からのメール逆引き失敗もこのエラーに丸める（存在の推測を防ぐ）。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid username or password",
		Category: "auth",
		Action:   "Check your credentials and try again.",
	}
}

// NewUsernameTakenError はユーザー名重複エラーを生成する。
func NewUsernameTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeUsernameTaken,
		Message:  "Username is already taken. Please choose another one.",
		Category: "validation",
		Action:   "Pick a different username.",
	}
}

// NewUsernameTooShortError はユーザー名長不足エラーを生成する。
func NewUsernameTooShortError() *APIError {
	return &APIError{
		Code:     ErrCodeUsernameTooShort,
		Message:  "Username must be at least 3 characters long",
		Category: "validation",
		Action:   "Use a username with 3 or more characters.",
	}
}

// NewEmptyPostError は空投稿エラーを生成する。
func NewEmptyPostError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyPost,
		Message:  "A post needs some text or an image",
		Category: "validation",
		Action:   "Write something or attach an image before posting.",
	}
}

// NewNotAnImageError は画像以外のファイルが指定された場合のエラーを生成する。
func NewNotAnImageError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAnImage,
		Message:  "Please upload an image file",
		Category: "upload",
		Action:   "Choose a file whose type is image/*.",
	}
}

// NewImageTooLargeError は画像サイズ超過エラーを生成する。
func NewImageTooLargeError() *APIError {
	return &APIError{
		Code:     ErrCodeImageTooLarge,
		Message:  "File size must be less than 5MB",
		Category: "upload",
		Action:   "Resize the image and try again.",
	}
}

// NewEmptyMessageError は空メッセージ送信エラーを生成する。
func NewEmptyMessageError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyMessage,
		Message:  "Message text must not be empty",
		Category: "message",
		Action:   "Type a message before sending.",
	}
}

// NewNoSelectionError は会話未選択での操作エラーを生成する。
func NewNoSelectionError() *APIError {
	return &APIError{
		Code:     ErrCodeNoSelection,
		Message:  "No conversation is selected",
		Category: "message",
		Action:   "Select a conversation first.",
	}
}

// NewBackendRejectedError は外部バックエンド呼び出しの失敗エラーを生成する。
// ローカル状態は呼び出し前の値のまま維持される。
func NewBackendRejectedError(operation string) *APIError {
	return &APIError{
		Code:     ErrCodeBackendRejected,
		Message:  fmt.Sprintf("Failed to %s. Please try again.", operation),
		Category: "system",
		Action:   "Wait a moment and retry the operation.",
	}
}

// NewNotAuthenticatedError は未認証エラーを生成する。
func NewNotAuthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAuthenticated,
		Message:  "You are not signed in",
		Category: "auth",
		Action:   "Sign in and try again.",
	}
}

// NewInvalidFormError はフォーム検証エラーを生成する。
func NewInvalidFormError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidForm,
		Message:  fmt.Sprintf("Invalid input: %s", reason),
		Category: "validation",
		Action:   "Fix the highlighted fields and submit again.",
	}
}
