package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/vartika/linkup/internal/metrics"
)

const (
	// FallbackError は呼び出し失敗時にアシスタント応答として返す固定文言。
	// 非2xx・通信エラー・レスポンス形状不正のすべてをこの文言に丸める。
	FallbackError = "Sorry, there was an error processing your request."

	// FallbackEmpty は2xxだが応答テキストが取り出せない場合の固定文言。
	FallbackEmpty = "Sorry, I could not generate a response."
)

// Client は生成系チャットAPIのクライアント。
// 1ターンにつき1回のPOSTを行う。タイムアウトは設定しない（仕様上の契約）。
// クォータ超過を避けるためクライアント側でレート制限を行う。
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	collector  metrics.MetricsCollector
}

// SetMetrics は応答結果を記録するコレクターを設定する。nil可。
func (c *Client) SetMetrics(collector metrics.MetricsCollector) {
	c.collector = collector
}

// NewClient はClientの新しいインスタンスを生成する。
// ratePerMinが0以下の場合はレート制限を行わない。
func NewClient(endpoint, apiKey string, ratePerMin int, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	var limiter *rate.Limiter
	if ratePerMin > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(ratePerMin)/60.0), ratePerMin)
	}
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{},
		limiter:    limiter,
		logger:     logger,
	}
}

// generateRequest はAPIのリクエストボディ。
type generateRequest struct {
	Contents []struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
}

// newGenerateRequest は単一テキストのリクエストボディを構築する。
func newGenerateRequest(text string) generateRequest {
	var req generateRequest
	req.Contents = make([]struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	}, 1)
	req.Contents[0].Parts = make([]struct {
		Text string `json:"text"`
	}, 1)
	req.Contents[0].Parts[0].Text = text
	return req
}

// generateResponse はAPIのレスポンスボディ。
// 応答テキストは candidates[0].content.parts[0].text から取り出す。
type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate はユーザーテキストを送信し、アシスタント応答テキストを返す。
// 非2xx・通信エラーはエラーを返す。2xxで応答テキストが空の場合は
// FallbackEmptyを返す（エラーにはしない）。
func (c *Client) Generate(ctx context.Context, text string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter wait cancelled: %w", err)
		}
	}

	body, err := json.Marshal(newGenerateRequest(text))
	if err != nil {
		return "", fmt.Errorf("failed to encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint+"?key="+c.apiKey, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("生成APIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("生成APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return "", fmt.Errorf("generative endpoint returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read chat response: %w", err)
	}

	var decoded generateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("failed to parse chat response: %w", err)
	}

	if len(decoded.Candidates) == 0 ||
		len(decoded.Candidates[0].Content.Parts) == 0 ||
		decoded.Candidates[0].Content.Parts[0].Text == "" {
		return FallbackEmpty, nil
	}
	return decoded.Candidates[0].Content.Parts[0].Text, nil
}

// Reply はGenerateの失敗をユーザー可視のハードエラーにせず、
// 固定フォールバック文言へ丸めて返す。
func (c *Client) Reply(ctx context.Context, text string) string {
	reply, err := c.Generate(ctx, text)
	if c.collector != nil {
		c.collector.RecordAssistantReply(err != nil || reply == FallbackEmpty)
	}
	if err != nil {
		return FallbackError
	}
	return reply
}
