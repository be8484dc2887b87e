package users

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(serverURL string) *Client {
	return NewClient(&http.Client{}, slog.New(slog.NewTextHandler(io.Discard, nil)), serverURL)
}

// TestGetUserIDByEmail_ReturnsID はユーザーIDの取得を検証する。
// サービスが引用符付きのJSON文字列を返しても引用符が除去されること。
func TestGetUserIDByEmail_ReturnsID(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"plain string", "user-1", "user-1"},
		{"quoted JSON string", `"user-1"`, "user-1"},
		{"with trailing newline", "user-1\n", "user-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/users/getIdUser/taro@example.com" {
					t.Errorf("path = %q", r.URL.Path)
				}
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := newTestClient(server.URL)
			got, err := client.GetUserIDByEmail(context.Background(), "taro@example.com")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got != tt.want {
				t.Errorf("userID = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestGetUserIDByEmail_NotFound_ReturnsEmpty は非200レスポンスが
// エラーではなく空文字列になることを検証する。
func TestGetUserIDByEmail_NotFound_ReturnsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	got, err := client.GetUserIDByEmail(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != "" {
		t.Errorf("userID = %q, want empty", got)
	}
}

// TestGetUserByEmail_ReturnsUser はユーザー表示情報の取得を検証する。
func TestGetUserByEmail_ReturnsUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"user-1","name":"山田太郎","email":"taro@example.com"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	user, err := client.GetUserByEmail(context.Background(), "taro@example.com")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user == nil || user.Name != "山田太郎" || user.ID != "user-1" {
		t.Errorf("user = %+v", user)
	}
}

// TestGetUserByEmail_NotFound_ReturnsNil は非200レスポンスでnilを検証する。
func TestGetUserByEmail_NotFound_ReturnsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	user, err := client.GetUserByEmail(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user != nil {
		t.Errorf("user = %+v, want nil", user)
	}
}
