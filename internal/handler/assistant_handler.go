package handler

import (
	"encoding/json"
	"net/http"

	"github.com/vartika/linkup/internal/model"
)

// AssistantHandler はAIアシスタントチャットのHTTPハンドラー。
type AssistantHandler struct {
	provider ServicesProvider
}

// NewAssistantHandler はAssistantHandlerを生成する。
func NewAssistantHandler(provider ServicesProvider) *AssistantHandler {
	return &AssistantHandler{provider: provider}
}

// assistantSendRequest はアシスタント送信リクエストのボディ。
type assistantSendRequest struct {
	Text string `json:"text"`
}

// assistantSendResponse は送信結果のAPIレスポンス。
// ユーザーターンとアシスタントターンの両方を返す。
// AssistantHTMLは表示用に整形・サニタイズ済みのHTML。
type assistantSendResponse struct {
	User          model.ChatTurn `json:"user"`
	Assistant     model.ChatTurn `json:"assistant"`
	AssistantHTML string         `json:"assistant_html"`
}

// History はチャット履歴を返す。
// GET /api/assistant/history
func (h *AssistantHandler) History(w http.ResponseWriter, r *http.Request) {
	svcs := requireServices(w, h.provider)
	if svcs == nil {
		return
	}

	turns, err := svcs.Assistant.History()
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if turns == nil {
		turns = []model.ChatTurn{}
	}
	writeJSON(w, http.StatusOK, turns)
}

// Send はアシスタントへのメッセージ送信を処理する。
// POST /api/assistant/messages
func (h *AssistantHandler) Send(w http.ResponseWriter, r *http.Request) {
	svcs := requireServices(w, h.provider)
	if svcs == nil {
		return
	}

	var req assistantSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidFormError("request body must be valid JSON"))
		return
	}

	userTurn, assistantTurn, err := svcs.Assistant.Send(r.Context(), req.Text)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, assistantSendResponse{
		User:          userTurn,
		Assistant:     assistantTurn,
		AssistantHTML: svcs.Assistant.Render(assistantTurn.Content),
	})
}

// Clear はチャット履歴を全消去する。
// DELETE /api/assistant/history
func (h *AssistantHandler) Clear(w http.ResponseWriter, r *http.Request) {
	svcs := requireServices(w, h.provider)
	if svcs == nil {
		return
	}
	if err := svcs.Assistant.Clear(); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
