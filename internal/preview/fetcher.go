// Package preview は投稿本文中のURLからリンクプレビューを取得する。
// 取得はベストエフォートであり、失敗は投稿表示に影響しない。
package preview

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/vartika/linkup/internal/model"
	"github.com/vartika/linkup/internal/security"
)

// urlPattern は本文中のhttp(s) URLを検出する。
var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

// Fetcher は投稿本文からリンクプレビューを取得する。
//
// 取得先URLはユーザー入力由来のため、SSRFガードで内部ネットワーク宛の
// リクエストを遮断したクライアントのみを使用する。
type Fetcher struct {
	guard   security.SSRFGuardService
	client  *http.Client
	maxSize int64
	logger  *slog.Logger
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(guard security.SSRFGuardService, timeout time.Duration, maxSize int64, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		guard:   guard,
		client:  guard.NewSafeClient(timeout),
		maxSize: maxSize,
		logger:  logger,
	}
}

// Preview は本文中の最初のURLからプレビューを取得する。
// URLがない場合・検証や取得に失敗した場合はnilを返す。
func (f *Fetcher) Preview(ctx context.Context, body string) *model.LinkPreview {
	rawURL := urlPattern.FindString(body)
	if rawURL == "" {
		return nil
	}

	p, err := f.fetch(ctx, rawURL)
	if err != nil {
		f.logger.Debug("リンクプレビューの取得に失敗しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return p
}

// fetch は単一URLのプレビュー取得本体。
func (f *Fetcher) fetch(ctx context.Context, rawURL string) (*model.LinkPreview, error) {
	if err := f.guard.ValidateURL(rawURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "text/html") {
		return nil, fmt.Errorf("unsupported content type: %s", contentType)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, f.maxSize))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	p := &model.LinkPreview{URL: rawURL}
	extract(doc, p)
	if p.Title == "" && p.Description == "" {
		return nil, fmt.Errorf("no preview metadata found")
	}
	return p, nil
}

// extract はHTMLツリーからOGPメタデータとtitle要素を抽出する。
func extract(n *html.Node, p *model.LinkPreview) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "meta":
			property, content := "", ""
			for _, attr := range n.Attr {
				switch attr.Key {
				case "property", "name":
					property = attr.Val
				case "content":
					content = attr.Val
				}
			}
			switch property {
			case "og:title":
				p.Title = content
			case "og:description", "description":
				if p.Description == "" {
					p.Description = content
				}
			case "og:image":
				p.ImageURL = content
			}
		case "title":
			if p.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				p.Title = strings.TrimSpace(n.FirstChild.Data)
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extract(c, p)
	}
}
