package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vartika/linkup/internal/model"
)

// FeedHandler はフィードのHTTPハンドラー。
type FeedHandler struct {
	provider ServicesProvider
}

// NewFeedHandler はFeedHandlerを生成する。
func NewFeedHandler(provider ServicesProvider) *FeedHandler {
	return &FeedHandler{provider: provider}
}

// ListPosts はフィードの投稿一覧を返す。
// GET /api/feed
func (h *FeedHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	svcs := requireServices(w, h.provider)
	if svcs == nil {
		return
	}
	writeJSON(w, http.StatusOK, svcs.Feed.Posts())
}

// Reload はフィードを再読み込みして最新の投稿一覧を返す。
// POST /api/feed/reload
func (h *FeedHandler) Reload(w http.ResponseWriter, r *http.Request) {
	svcs := requireServices(w, h.provider)
	if svcs == nil {
		return
	}
	if err := svcs.Feed.LoadPosts(r.Context()); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, svcs.Feed.Posts())
}

// CreatePost は投稿作成を処理する。
// マルチパートフォームのcontentフィールドと任意のimageファイルを受け取る。
// POST /api/feed/posts
func (h *FeedHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	svcs := requireServices(w, h.provider)
	if svcs == nil {
		return
	}

	var content string
	image, err := readUploadFile(r, "image")
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidFormError("failed to parse multipart form"))
		return
	}
	content = strings.TrimSpace(r.FormValue("content"))

	post, err := svcs.Feed.CreatePost(r.Context(), content, image)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// DeletePost は投稿のローカル除去を処理する。
// DELETE /api/feed/posts/:id
func (h *FeedHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	svcs := requireServices(w, h.provider)
	if svcs == nil {
		return
	}
	svcs.Feed.DeletePost(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}
