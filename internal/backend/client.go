// Package backend はホスト型プラットフォーム（マネージドPostgres + 認証 +
// オブジェクトストレージ + リアルタイム変更フィード）へのクライアントを提供する。
//
// 永続化・クエリ・アクセス制御の実体はすべてプラットフォーム側にあり、
// 本パッケージはHTTP/WebSocketの型付きラッパーに徹する。
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/vartika/linkup/internal/metrics"
)

// notFoundCode は「単一行要求で0行」を表すプラットフォームのエラーコード。
const notFoundCode = "PGRST116"

// Client はプラットフォームAPIのクライアント。
// 匿名キーは常に送信し、サインイン後はアクセストークンをBearerとして併用する。
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	logger     *slog.Logger
	collector  metrics.MetricsCollector

	mu          sync.RWMutex
	accessToken string
}

// SetMetrics はリクエスト結果を記録するコレクターを設定する。nil可。
func (c *Client) SetMetrics(collector metrics.MetricsCollector) {
	c.collector = collector
}

// New はClientの新しいインスタンスを生成する。
// timeoutが0の場合はタイムアウトなしのクライアントになる。
func New(baseURL, anonKey string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// SetAccessToken は以降のリクエストで使用するアクセストークンを設定する。
// 空文字列を渡すと匿名アクセスに戻る。
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
}

// AccessToken は現在設定されているアクセストークンを返す。
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// APIError はプラットフォームが返したエラーレスポンスを表す。
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details"`
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend: %s (status %d, code %s)", e.Message, e.StatusCode, e.Code)
	}
	return fmt.Sprintf("backend: %s (status %d)", e.Message, e.StatusCode)
}

// IsNotFound はエラーが「単一行要求で該当行なし」を表すかを返す。
// プロフィール遅延生成の判定に使用する。
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && (apiErr.Code == notFoundCode || apiErr.StatusCode == http.StatusNotFound)
}

// do は認証ヘッダ付きでHTTPリクエストを実行し、2xx以外をAPIErrorへ変換する。
// bodyがnilでない場合はJSONとして送信する。
func (c *Client) do(ctx context.Context, method, path string, header http.Header, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("apikey", c.anonKey)
	if token := c.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.anonKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.collector != nil {
		c.collector.RecordBackendLatency(time.Since(started))
		if resp != nil {
			c.collector.RecordBackendRequest(resp.StatusCode)
		}
	}
	if err != nil {
		c.logger.Error("バックエンド呼び出しに失敗しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		apiErr := &APIError{StatusCode: resp.StatusCode}
		raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		if readErr == nil {
			// エラーボディのデコード失敗は無視してステータスのみ保持する
			_ = json.Unmarshal(raw, apiErr)
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		c.logger.Warn("バックエンドがエラーステータスを返しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
			slog.String("code", apiErr.Code),
		)
		return nil, apiErr
	}

	return resp, nil
}

// decodeInto はレスポンスボディをdestへJSONデコードする。destがnilなら読み捨てる。
func decodeInto(resp *http.Response, dest any) error {
	defer resp.Body.Close()
	if dest == nil {
		_, err := io.Copy(io.Discard, resp.Body)
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}
