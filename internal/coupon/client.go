// Package coupon はクーポンマイクロサービスとの連携機能を提供する。
package coupon

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// Client はクーポンマイクロサービスAPIのクライアント。
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

// MarkUsed は指定IDのクーポンを使用済みにする。
func (c *Client) MarkUsed(ctx context.Context, couponID string) error {
	reqURL := c.baseURL + "/api/coupons/updateUser/" + url.PathEscape(couponID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, reqURL, nil)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("クーポンサービスの呼び出しに失敗しました",
			slog.String("coupon_id", couponID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("クーポンサービスの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("クーポンサービスがステータス %d を返しました", resp.StatusCode)
	}

	return nil
}
