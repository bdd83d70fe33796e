package handler

import (
	"encoding/json"
	"net/http"

	"github.com/vartika/linkup/internal/model"
)

// MessagingHandler はメッセージングのHTTPハンドラー。
type MessagingHandler struct {
	provider ServicesProvider
}

// NewMessagingHandler はMessagingHandlerを生成する。
func NewMessagingHandler(provider ServicesProvider) *MessagingHandler {
	return &MessagingHandler{provider: provider}
}

// selectRequest は会話選択リクエストのボディ。
type selectRequest struct {
	ConversationID string `json:"conversation_id"`
}

// draftRequest は入力中テキスト更新リクエストのボディ。
type draftRequest struct {
	Text string `json:"text"`
}

// threadResponse は選択中の会話のスレッドのAPIレスポンス。
type threadResponse struct {
	Selected string          `json:"selected"`
	Messages []model.Message `json:"messages"`
	Draft    string          `json:"draft"`
}

// ListConversations は会話一覧を返す。
// GET /api/conversations
func (h *MessagingHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	svcs := requireServices(w, h.provider)
	if svcs == nil {
		return
	}
	writeJSON(w, http.StatusOK, svcs.Messaging.Conversations())
}

// Select は会話の選択（および空文字列による選択解除）を処理する。
// PUT /api/conversations/selected
func (h *MessagingHandler) Select(w http.ResponseWriter, r *http.Request) {
	svcs := requireServices(w, h.provider)
	if svcs == nil {
		return
	}

	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidFormError("request body must be valid JSON"))
		return
	}

	if err := svcs.Messaging.Select(r.Context(), req.ConversationID); err != nil {
		handleServiceError(w, err)
		return
	}
	h.writeThread(w, svcs)
}

// Thread は選択中の会話のスレッドを返す。
// GET /api/messages
func (h *MessagingHandler) Thread(w http.ResponseWriter, r *http.Request) {
	svcs := requireServices(w, h.provider)
	if svcs == nil {
		return
	}
	h.writeThread(w, svcs)
}

// SetDraft は入力中テキストを更新する。
// PUT /api/messages/draft
func (h *MessagingHandler) SetDraft(w http.ResponseWriter, r *http.Request) {
	svcs := requireServices(w, h.provider)
	if svcs == nil {
		return
	}

	var req draftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidFormError("request body must be valid JSON"))
		return
	}

	svcs.Messaging.SetDraft(req.Text)
	w.WriteHeader(http.StatusNoContent)
}

// Send は入力中テキストの送信を処理する。
// POST /api/messages
func (h *MessagingHandler) Send(w http.ResponseWriter, r *http.Request) {
	svcs := requireServices(w, h.provider)
	if svcs == nil {
		return
	}

	msg, err := svcs.Messaging.Send(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// writeThread は選択中の会話のスレッドレスポンスを書き込む。
func (h *MessagingHandler) writeThread(w http.ResponseWriter, svcs *Services) {
	writeJSON(w, http.StatusOK, threadResponse{
		Selected: svcs.Messaging.Selected(),
		Messages: svcs.Messaging.Messages(),
		Draft:    svcs.Messaging.Draft(),
	})
}
