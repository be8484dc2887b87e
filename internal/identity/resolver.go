// Package identity はローカルユーザーとゲートウェイ側請求アイデンティティの対応付けを提供する。
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/payhub/internal/gateway"
)

// CustomerAPI はリゾルバが必要とするゲートウェイの顧客操作インターフェース。
type CustomerAPI interface {
	ListCustomers(ctx context.Context, params gateway.ListCustomersParams) ([]gateway.Customer, error)
	CreateCustomer(ctx context.Context, email string, metadata map[string]string) (*gateway.Customer, error)
}

// Resolver はローカルのユーザーIDからゲートウェイ側の請求アイデンティティ
// （顧客レコード）を検索または作成する。
//
// 検索は顧客一覧の1ページ（最大100件）に対するメタデータの線形走査で行う。
// ゲートウェイの一覧APIにメタデータでの絞り込みがないための設計であり、
// 顧客数が1ページを超えると解決に失敗しうる（既知のスケール上限）。
type Resolver struct {
	customers CustomerAPI
	logger    *slog.Logger
}

// NewResolver はResolverの新しいインスタンスを生成する。
func NewResolver(customers CustomerAPI, logger *slog.Logger) *Resolver {
	return &Resolver{
		customers: customers,
		logger:    logger,
	}
}

// ResolveOrCreate はローカルのユーザーIDに対応するゲートウェイ顧客のIDを返す。
// メタデータのuser_idが一致する顧客が存在すればそのID、存在しなければ
// user_idをメタデータに付与した新しい顧客を作成してそのIDを返す。
// ゲートウェイのエラーはそのまま伝播し、ローカルの状態は一切変更しない。
func (r *Resolver) ResolveOrCreate(ctx context.Context, userID, email string) (string, error) {
	customerID, err := r.findByUserID(ctx, userID)
	if err != nil {
		return "", err
	}
	if customerID != "" {
		return customerID, nil
	}

	customer, err := r.customers.CreateCustomer(ctx, email, map[string]string{
		gateway.MetadataUserIDKey: userID,
	})
	if err != nil {
		return "", fmt.Errorf("請求アイデンティティの作成に失敗しました: %w", err)
	}

	r.logger.Info("請求アイデンティティを作成しました",
		slog.String("user_id", userID),
		slog.String("customer_ref", customer.ID),
	)

	return customer.ID, nil
}

// Resolve はローカルのユーザーIDに対応するゲートウェイ顧客のIDを返す。
// 見つからない場合は空文字列を返す（作成はしない）。
func (r *Resolver) Resolve(ctx context.Context, userID string) (string, error) {
	return r.findByUserID(ctx, userID)
}

// ExistsByEmail は指定メールアドレスの顧客がゲートウェイに存在するかを返す。
// 支払い方法登録時に新規アイデンティティの作成要否を判断するためだけに使う。
func (r *Resolver) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	customers, err := r.customers.ListCustomers(ctx, gateway.ListCustomersParams{})
	if err != nil {
		return false, fmt.Errorf("顧客一覧の取得に失敗しました: %w", err)
	}

	for _, c := range customers {
		if c.Email != "" && strings.EqualFold(c.Email, email) {
			return true, nil
		}
	}

	return false, nil
}

// findByUserID は顧客一覧の1ページをメタデータのuser_idで走査する。
func (r *Resolver) findByUserID(ctx context.Context, userID string) (string, error) {
	customers, err := r.customers.ListCustomers(ctx, gateway.ListCustomersParams{})
	if err != nil {
		return "", fmt.Errorf("顧客一覧の取得に失敗しました: %w", err)
	}

	for _, c := range customers {
		if c.Metadata != nil && c.Metadata[gateway.MetadataUserIDKey] == userID {
			return c.ID, nil
		}
	}

	return "", nil
}
