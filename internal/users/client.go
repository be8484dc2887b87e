// Package users はユーザーマイクロサービスとの連携機能を提供する。
// メールアドレスからのユーザーID解決と表示情報の取得を含む。
package users

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/payhub/internal/model"
)

// Client はユーザーマイクロサービスAPIのクライアント。
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

// GetUserIDByEmail はメールアドレスからユーザーIDを取得する。
// ユーザーが存在しない場合は空文字列を返す（エラーにはしない）。
func (c *Client) GetUserIDByEmail(ctx context.Context, email string) (string, error) {
	reqURL := c.baseURL + "/api/users/getIdUser/" + url.PathEscape(email)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("ユーザーサービスの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("ユーザーサービスの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	// 存在しないユーザーは空文字列として扱う（呼び出し元がエラー分類を判断する）
	if resp.StatusCode != http.StatusOK {
		return "", nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	// ユーザーサービスはIDをJSON文字列（引用符付き）で返すことがある
	return strings.Trim(strings.TrimSpace(string(body)), `"`), nil
}

// GetUserByEmail はメールアドレスからユーザーの表示情報を取得する。
// 見つからない場合はnilを返す。
func (c *Client) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	reqURL := c.baseURL + "/api/users/getUser/" + url.PathEscape(email)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ユーザーサービスの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	var dto struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	return &model.User{
		ID:    dto.ID,
		Name:  dto.Name,
		Email: dto.Email,
	}, nil
}
