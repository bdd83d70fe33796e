package assistant

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vartika/linkup/internal/model"
)

// HistoryStore はAIチャット履歴の保存インターフェース。
// 履歴はサーバー側には永続化せず、端末ローカルに保持される。
type HistoryStore interface {
	// Load は保存済み履歴を時系列順に返す。未保存の場合は空を返す。
	Load() ([]model.ChatTurn, error)
	// Append は履歴末尾へターンを追加して保存する。
	Append(turns ...model.ChatTurn) error
	// Clear は履歴をすべて削除する。
	Clear() error
}

// FileHistory は単一のJSONファイルに履歴を保存するHistoryStoreの実装。
// 保存先は端末単位の固定パスであり、アイデンティティ単位の名前空間は持たない。
// 同一端末を共有する複数アカウントは1つの履歴を共有する（意図的な端末スコープ。
// 経緯はDESIGN.mdを参照）。
type FileHistory struct {
	path string

	mu sync.Mutex
}

// NewFileHistory はFileHistoryの新しいインスタンスを生成する。
func NewFileHistory(path string) *FileHistory {
	return &FileHistory{path: path}
}

// Load は保存済み履歴を読み込む。ファイルが存在しない場合は空を返す。
func (h *FileHistory) Load() ([]model.ChatTurn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.load()
}

// load はロック保持前提の読み込み本体。
func (h *FileHistory) load() ([]model.ChatTurn, error) {
	raw, err := os.ReadFile(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read chat history: %w", err)
	}

	var turns []model.ChatTurn
	if err := json.Unmarshal(raw, &turns); err != nil {
		return nil, fmt.Errorf("failed to parse chat history: %w", err)
	}
	return turns, nil
}

// Append は履歴末尾へターンを追加して保存する。
func (h *FileHistory) Append(turns ...model.ChatTurn) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	existing, err := h.load()
	if err != nil {
		return err
	}
	existing = append(existing, turns...)

	encoded, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("failed to encode chat history: %w", err)
	}

	if dir := filepath.Dir(h.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create history directory: %w", err)
		}
	}
	if err := os.WriteFile(h.path, encoded, 0o600); err != nil {
		return fmt.Errorf("failed to write chat history: %w", err)
	}
	return nil
}

// Clear は履歴ファイルを削除する。未保存の場合もエラーにしない。
func (h *FileHistory) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := os.Remove(h.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove chat history: %w", err)
	}
	return nil
}
