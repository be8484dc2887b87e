// Package activity はアクティビティログサービスとの連携機能を提供する。
package activity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// Client はアクティビティログサービスAPIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

// Register はユーザーのアクティビティを記録する。
func (c *Client) Register(ctx context.Context, email, action, category string) error {
	body := map[string]string{
		"action":   action,
		"category": category,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("リクエストボディの生成に失敗しました: %w", err)
	}

	reqURL := c.baseURL + "/api/activityhistory/registerActivity/" + url.PathEscape(email)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("アクティビティサービスの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("アクティビティサービスの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("アクティビティサービスがステータス %d を返しました", resp.StatusCode)
	}

	return nil
}
