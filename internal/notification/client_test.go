package notification

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(serverURL string) *Client {
	return NewClient(&http.Client{}, slog.New(slog.NewTextHandler(io.Discard, nil)), serverURL)
}

// TestSendPaymentSuccess_PostsJSON は支払い成功通知のパスとボディを検証する。
func TestSendPaymentSuccess_PostsJSON(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if err := client.SendPaymentSuccess(context.Background(), "taro@example.com", "19.99"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if gotPath != "/api/notification/paymentSuccessNotification" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody["email"] != "taro@example.com" || gotBody["amount"] != "19.99" {
		t.Errorf("body = %v", gotBody)
	}
}

// TestSendPaymentEmail_IncludesTimestamp は明細メール依頼に
// RFC3339形式の支払い日時が含まれることを検証する。
func TestSendPaymentEmail_IncludesTimestamp(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
	}))
	defer server.Close()

	paidAt := time.Date(2026, 8, 28, 12, 30, 0, 0, time.UTC)

	client := newTestClient(server.URL)
	if err := client.SendPaymentEmail(context.Background(), "taro@example.com", "19.99", paidAt); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if gotBody["paid_at"] != "2026-08-28T12:30:00Z" {
		t.Errorf("paid_at = %q", gotBody["paid_at"])
	}
}

// TestSend_NonSuccessStatus_ReturnsError は非2xxレスポンスがエラーになることを検証する。
func TestSend_NonSuccessStatus_ReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if err := client.SendPaymentSuccess(context.Background(), "taro@example.com", "19.99"); err == nil {
		t.Error("expected error on 500 response")
	}
}
