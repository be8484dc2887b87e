package identity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hitoshi/payhub/internal/gateway"
)

// mockCustomerAPI はCustomerAPIの関数フィールドによるモック。
type mockCustomerAPI struct {
	listCustomersFn  func(ctx context.Context, params gateway.ListCustomersParams) ([]gateway.Customer, error)
	createCustomerFn func(ctx context.Context, email string, metadata map[string]string) (*gateway.Customer, error)
	createCalls      int
}

func (m *mockCustomerAPI) ListCustomers(ctx context.Context, params gateway.ListCustomersParams) ([]gateway.Customer, error) {
	if m.listCustomersFn != nil {
		return m.listCustomersFn(ctx, params)
	}
	return nil, nil
}

func (m *mockCustomerAPI) CreateCustomer(ctx context.Context, email string, metadata map[string]string) (*gateway.Customer, error) {
	m.createCalls++
	if m.createCustomerFn != nil {
		return m.createCustomerFn(ctx, email, metadata)
	}
	return &gateway.Customer{ID: "cus_created", Email: email, Metadata: metadata}, nil
}

func newTestResolver(api *mockCustomerAPI) *Resolver {
	return NewResolver(api, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func customerWithUserID(id, email, userID string) gateway.Customer {
	return gateway.Customer{
		ID:       id,
		Email:    email,
		Metadata: map[string]string{gateway.MetadataUserIDKey: userID},
	}
}

// TestResolveOrCreate_FindsExistingCustomer はメタデータのuser_idが一致する
// 既存顧客が見つかった場合、新規作成しないことを検証する。
func TestResolveOrCreate_FindsExistingCustomer(t *testing.T) {
	api := &mockCustomerAPI{
		listCustomersFn: func(ctx context.Context, params gateway.ListCustomersParams) ([]gateway.Customer, error) {
			return []gateway.Customer{
				customerWithUserID("cus_other", "other@example.com", "user-2"),
				customerWithUserID("cus_taro", "taro@example.com", "user-1"),
			}, nil
		},
	}
	r := newTestResolver(api)

	customerID, err := r.ResolveOrCreate(context.Background(), "user-1", "taro@example.com")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if customerID != "cus_taro" {
		t.Errorf("customerID = %q, want %q", customerID, "cus_taro")
	}
	if api.createCalls != 0 {
		t.Errorf("createCalls = %d, want 0", api.createCalls)
	}
}

// TestResolveOrCreate_CreatesTaggedCustomer は未登録のユーザーに対して
// user_idをメタデータに付与した顧客が作成されることを検証する。
func TestResolveOrCreate_CreatesTaggedCustomer(t *testing.T) {
	var createdMetadata map[string]string
	api := &mockCustomerAPI{
		createCustomerFn: func(ctx context.Context, email string, metadata map[string]string) (*gateway.Customer, error) {
			createdMetadata = metadata
			return &gateway.Customer{ID: "cus_new", Email: email, Metadata: metadata}, nil
		},
	}
	r := newTestResolver(api)

	customerID, err := r.ResolveOrCreate(context.Background(), "user-1", "taro@example.com")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if customerID != "cus_new" {
		t.Errorf("customerID = %q, want %q", customerID, "cus_new")
	}
	if createdMetadata[gateway.MetadataUserIDKey] != "user-1" {
		t.Errorf("metadata user_id = %q, want %q", createdMetadata[gateway.MetadataUserIDKey], "user-1")
	}
}

// TestResolveOrCreate_ListFailure_Propagates は一覧取得の失敗が
// 伝播し、顧客作成が行われないことを検証する。
func TestResolveOrCreate_ListFailure_Propagates(t *testing.T) {
	listErr := errors.New("gateway down")
	api := &mockCustomerAPI{
		listCustomersFn: func(ctx context.Context, params gateway.ListCustomersParams) ([]gateway.Customer, error) {
			return nil, listErr
		},
	}
	r := newTestResolver(api)

	_, err := r.ResolveOrCreate(context.Background(), "user-1", "taro@example.com")
	if !errors.Is(err, listErr) {
		t.Fatalf("expected list error to propagate, got %v", err)
	}
	if api.createCalls != 0 {
		t.Errorf("createCalls = %d, want 0", api.createCalls)
	}
}

// TestResolve_NotFound_ReturnsEmpty は未登録ユーザーの解決で空文字列が返る
// （作成しない）ことを検証する。
func TestResolve_NotFound_ReturnsEmpty(t *testing.T) {
	api := &mockCustomerAPI{}
	r := newTestResolver(api)

	customerID, err := r.Resolve(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if customerID != "" {
		t.Errorf("customerID = %q, want empty", customerID)
	}
	if api.createCalls != 0 {
		t.Errorf("createCalls = %d, want 0", api.createCalls)
	}
}

// TestExistsByEmail_CaseInsensitive はメールアドレスの比較が
// 大文字小文字を区別しないことを検証する。
func TestExistsByEmail_CaseInsensitive(t *testing.T) {
	api := &mockCustomerAPI{
		listCustomersFn: func(ctx context.Context, params gateway.ListCustomersParams) ([]gateway.Customer, error) {
			return []gateway.Customer{
				{ID: "cus_1", Email: "Taro@Example.com"},
			}, nil
		},
	}
	r := newTestResolver(api)

	exists, err := r.ExistsByEmail(context.Background(), "taro@example.com")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !exists {
		t.Error("expected case-insensitive match")
	}
}

// TestExistsByEmail_NotFound は一致しないメールアドレスでfalseを検証する。
func TestExistsByEmail_NotFound(t *testing.T) {
	api := &mockCustomerAPI{
		listCustomersFn: func(ctx context.Context, params gateway.ListCustomersParams) ([]gateway.Customer, error) {
			return []gateway.Customer{
				{ID: "cus_1", Email: "other@example.com"},
			}, nil
		},
	}
	r := newTestResolver(api)

	exists, err := r.ExistsByEmail(context.Background(), "taro@example.com")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if exists {
		t.Error("expected no match")
	}
}
