// Package notification は通知マイクロサービスとの連携機能を提供する。
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client は通知マイクロサービスAPIのクライアント。
// 各通知はイベントごとのfire-and-forget POSTで、失敗はエラーとして返す
// （継続するか失敗にするかはサーガ側のポリシーで決める）。
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

// SendPaymentSuccess は支払い成功通知を送信する。
func (c *Client) SendPaymentSuccess(ctx context.Context, email, amount string) error {
	body := map[string]string{
		"email":  email,
		"amount": amount,
	}
	return c.post(ctx, "/api/notification/paymentSuccessNotification", body)
}

// SendPaymentEmail は支払い明細付きの確認メール送信を依頼する。
func (c *Client) SendPaymentEmail(ctx context.Context, email, amount string, paidAt time.Time) error {
	body := map[string]string{
		"recipient": email,
		"amount":    amount,
		"paid_at":   paidAt.UTC().Format(time.RFC3339),
	}
	return c.post(ctx, "/api/notification/paymentSuccessNotificationEmail", body)
}

// post は通知エンドポイントへJSONボディをPOSTする。
func (c *Client) post(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("リクエストボディの生成に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("通知サービスの呼び出しに失敗しました",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("通知サービスの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("通知サービスがステータス %d を返しました", resp.StatusCode)
	}

	return nil
}
