// Package gateway は外部決済ゲートウェイとの連携機能を提供する。
// 顧客・支払い方法・決済インテントのAPI呼び出しと、コアのドメインモデルへの変換を含む。
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	// defaultBaseURL は決済ゲートウェイAPIのベースURL。
	defaultBaseURL = "https://api.stripe.com/v1"
	// customerPageLimit は顧客一覧取得の1ページあたりの最大件数。
	// メタデータ走査による顧客解決はこの1ページ分しか見ない（既知のスケール上限）。
	customerPageLimit = 100
)

// Customer はゲートウェイ側の顧客（請求アイデンティティ）を表す。
type Customer struct {
	ID              string            `json:"id"`
	Email           string            `json:"email"`
	Metadata        map[string]string `json:"metadata"`
	InvoiceSettings struct {
		DefaultPaymentMethod string `json:"default_payment_method"`
	} `json:"invoice_settings"`
}

// CardData はゲートウェイが返すカード情報を表す。
type CardData struct {
	Brand string `json:"brand"`
	Last4 string `json:"last4"`
}

// PaymentMethodData はゲートウェイ側の支払い方法を表す。
type PaymentMethodData struct {
	ID       string   `json:"id"`
	Customer string   `json:"customer"`
	Card     CardData `json:"card"`
}

// PaymentIntent はゲートウェイ側の決済インテントを表す。
type PaymentIntent struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// APIError はゲートウェイAPIが返すエラーレスポンスを表す。
type APIError struct {
	StatusCode int    // HTTPステータスコード
	Code       string // ゲートウェイ固有のエラーコード
	Message    string // エラーメッセージ
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("gateway API error (status %d, code %q): %s", e.StatusCode, e.Code, e.Message)
}

// Client は決済ゲートウェイAPIのクライアント。
// フォームエンコードのリクエストとBearer認証を使用する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiKey     string
	baseURL    string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLが空の場合は本番エンドポイントを使用する。
func NewClient(httpClient *http.Client, logger *slog.Logger, apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		apiKey:     apiKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

// ListCustomersParams は顧客一覧取得のパラメータ。
type ListCustomersParams struct {
	Email string // 指定した場合はメールアドレスで絞り込む
	Limit int    // 0の場合はcustomerPageLimitを使用する
}

// ListCustomers は顧客一覧を1ページ分取得する。
func (c *Client) ListCustomers(ctx context.Context, params ListCustomersParams) ([]Customer, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = customerPageLimit
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if params.Email != "" {
		q.Set("email", params.Email)
	}

	var result struct {
		Data []Customer `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/customers?"+q.Encode(), nil, &result); err != nil {
		return nil, err
	}

	return result.Data, nil
}

// GetCustomer は指定IDの顧客を取得する。
func (c *Client) GetCustomer(ctx context.Context, customerID string) (*Customer, error) {
	var customer Customer
	if err := c.do(ctx, http.MethodGet, "/customers/"+url.PathEscape(customerID), nil, &customer); err != nil {
		return nil, err
	}

	return &customer, nil
}

// CreateCustomer はメタデータ付きの顧客を作成する。
func (c *Client) CreateCustomer(ctx context.Context, email string, metadata map[string]string) (*Customer, error) {
	form := url.Values{}
	form.Set("email", email)
	for k, v := range metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	var customer Customer
	if err := c.do(ctx, http.MethodPost, "/customers", form, &customer); err != nil {
		return nil, err
	}

	return &customer, nil
}

// SetCustomerDefaultPaymentMethod は顧客の既定の支払い方法を更新する。
func (c *Client) SetCustomerDefaultPaymentMethod(ctx context.Context, customerID, methodRef string) error {
	form := url.Values{}
	form.Set("invoice_settings[default_payment_method]", methodRef)

	var customer Customer
	return c.do(ctx, http.MethodPost, "/customers/"+url.PathEscape(customerID), form, &customer)
}

// ListPaymentMethods は顧客のカード型支払い方法の一覧を取得する。
func (c *Client) ListPaymentMethods(ctx context.Context, customerID string) ([]PaymentMethodData, error) {
	q := url.Values{}
	q.Set("customer", customerID)
	q.Set("type", "card")

	var result struct {
		Data []PaymentMethodData `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/payment_methods?"+q.Encode(), nil, &result); err != nil {
		return nil, err
	}

	return result.Data, nil
}

// AttachPaymentMethod は支払い方法を顧客に紐付ける。
func (c *Client) AttachPaymentMethod(ctx context.Context, methodRef, customerID string) (*PaymentMethodData, error) {
	form := url.Values{}
	form.Set("customer", customerID)

	var method PaymentMethodData
	if err := c.do(ctx, http.MethodPost, "/payment_methods/"+url.PathEscape(methodRef)+"/attach", form, &method); err != nil {
		return nil, err
	}

	return &method, nil
}

// DetachPaymentMethod は支払い方法の顧客への紐付けを解除する。
func (c *Client) DetachPaymentMethod(ctx context.Context, methodRef string) error {
	var method PaymentMethodData
	return c.do(ctx, http.MethodPost, "/payment_methods/"+url.PathEscape(methodRef)+"/detach", url.Values{}, &method)
}

// CreatePaymentIntentParams は決済インテント作成のパラメータ。
// Amountはゲートウェイの最小通貨単位（例: セント）で指定する。
type CreatePaymentIntentParams struct {
	Customer      string
	PaymentMethod string
	Amount        int64
	Currency      string
	Metadata      map[string]string
}

// CreatePaymentIntent は即時確定（confirm + off_session）の決済インテントを作成する。
func (c *Client) CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error) {
	form := url.Values{}
	form.Set("customer", params.Customer)
	form.Set("payment_method", params.PaymentMethod)
	form.Set("amount", strconv.FormatInt(params.Amount, 10))
	form.Set("currency", params.Currency)
	form.Set("confirm", "true")
	form.Set("off_session", "true")
	for k, v := range params.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	var intent PaymentIntent
	if err := c.do(ctx, http.MethodPost, "/payment_intents", form, &intent); err != nil {
		return nil, err
	}

	return &intent, nil
}

// do はゲートウェイAPIへのHTTPリクエストを実行し、レスポンスJSONをoutへデコードする。
// formがnilの場合はボディなしのリクエストを送る。
// 非2xxレスポンスは*APIErrorとして返す。
func (c *Client) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("決済ゲートウェイAPIの呼び出しに失敗しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("決済ゲートウェイAPIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}

		var errResp struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if jsonErr := json.Unmarshal(respBody, &errResp); jsonErr == nil {
			apiErr.Code = errResp.Error.Code
			apiErr.Message = errResp.Error.Message
		}

		c.logger.Error("決済ゲートウェイAPIがエラーステータスを返しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
			slog.String("gateway_code", apiErr.Code),
		)
		return apiErr
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	return nil
}
