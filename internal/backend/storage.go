package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// storagePrefix はオブジェクトストレージAPIのパスプレフィックス。
const storagePrefix = "/storage/v1/object/"

// Upload はオブジェクトをバケットへアップロードする。
// 同名オブジェクトが存在する場合は上書きする。
func (c *Client) Upload(ctx context.Context, bucket, objectPath string, data []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+storagePrefix+bucket+"/"+objectPath, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	if token := c.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.anonKey)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("upload to bucket %q failed", bucket),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Remove はバケットからオブジェクトを削除する。
func (c *Client) Remove(ctx context.Context, bucket string, objectPaths []string) error {
	resp, err := c.do(ctx, http.MethodDelete, storagePrefix+bucket, nil, map[string][]string{
		"prefixes": objectPaths,
	})
	if err != nil {
		return err
	}
	return decodeInto(resp, nil)
}

// PublicURL はアップロード済みオブジェクトの公開URLを返す。
// バケットは公開読み取り可能である前提。
func (c *Client) PublicURL(bucket, objectPath string) string {
	return c.baseURL + "/storage/v1/object/public/" + bucket + "/" + objectPath
}
