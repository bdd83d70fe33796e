// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// defaultAssistantEndpoint は生成系チャットAPIの既定エンドポイント。
const defaultAssistantEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Backend（ホスト型プラットフォーム）
	BackendURL     string
	BackendAnonKey string
	BackendTimeout time.Duration

	// Database（migrateサブコマンドがスキーマ適用に使用）
	DatabaseURL string

	// Assistant（生成系チャットAPI）
	AssistantAPIKey   string
	AssistantEndpoint string
	// AssistantRatePerMin は1分あたりの呼び出し上限。0以下で無制限。
	AssistantRatePerMin int

	// Upload
	UploadMaxSize int64

	// Chat履歴（端末ローカル保存先）
	ChatHistoryPath string

	// Preview（リンクプレビュー取得）
	PreviewTimeout time.Duration
	PreviewMaxSize int64

	// Server（ローカルAPIサーフェス）
	ServerPort string

	// Rate Limit
	RateLimitGeneral int

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.BackendURL = os.Getenv("BACKEND_URL")
	if cfg.BackendURL == "" {
		missing = append(missing, "BACKEND_URL")
	}

	cfg.BackendAnonKey = os.Getenv("BACKEND_ANON_KEY")
	if cfg.BackendAnonKey == "" {
		missing = append(missing, "BACKEND_ANON_KEY")
	}

	cfg.AssistantAPIKey = os.Getenv("ASSISTANT_API_KEY")
	if cfg.AssistantAPIKey == "" {
		missing = append(missing, "ASSISTANT_API_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.BackendTimeout = getEnvDuration("BACKEND_TIMEOUT", 15*time.Second)
	cfg.AssistantEndpoint = getEnvString("ASSISTANT_ENDPOINT", defaultAssistantEndpoint)
	cfg.AssistantRatePerMin = getEnvInt("ASSISTANT_RATE_PER_MIN", 30)
	cfg.UploadMaxSize = getEnvInt64("UPLOAD_MAX_SIZE", 5*1024*1024)
	cfg.ChatHistoryPath = getEnvString("CHAT_HISTORY_PATH", defaultChatHistoryPath())
	cfg.PreviewTimeout = getEnvDuration("PREVIEW_TIMEOUT", 5*time.Second)
	cfg.PreviewMaxSize = getEnvInt64("PREVIEW_MAX_SIZE", 2*1024*1024)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// defaultChatHistoryPath はAIチャット履歴の既定保存先を返す。
// ユーザー設定ディレクトリが解決できない場合はカレントディレクトリ直下を使う。
func defaultChatHistoryPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "linkup.chat.history.json"
	}
	return filepath.Join(dir, "linkup", "chat.history.json")
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
