package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/payhub/internal/model"
)

const (
	// MetadataUserIDKey は顧客・決済のメタデータ内でローカルのユーザーIDを持つキー。
	MetadataUserIDKey = "user_id"
	// MetadataEventIDKey は決済のメタデータ内でイベント（予約）IDを持つキー。
	MetadataEventIDKey = "event_id"

	// StatusSucceeded は決済インテントの成功ステータス。
	StatusSucceeded = "succeeded"
)

// ChargeResult は決済実行の結果を表す。
type ChargeResult struct {
	Status          string // ゲートウェイが返した決済ステータス
	GatewayChargeID string // ゲートウェイ側の決済ID
}

// Succeeded は決済が成功ステータスで完了したかを返す。
func (r ChargeResult) Succeeded() bool {
	return r.Status == StatusSucceeded
}

// Adapter は汎用的な「決済」「支払い方法の操作」をゲートウェイAPIの
// 顧客／支払い方法／決済インテントのプリミティブに変換する。
// ローカル永続化については関知しない。
type Adapter struct {
	client *Client
	logger *slog.Logger
}

// NewAdapter はAdapterの新しいインスタンスを生成する。
func NewAdapter(client *Client, logger *slog.Logger) *Adapter {
	return &Adapter{
		client: client,
		logger: logger,
	}
}

// CreateCharge は保存済みの支払い方法に対する決済を実行する。
// minorUnitsはゲートウェイの最小通貨単位で渡すこと（decimalからの変換は呼び出し元の責務）。
// ゲートウェイのエラーはそのまま伝播する（リトライの判断は呼び出し元が行う）。
func (a *Adapter) CreateCharge(ctx context.Context, customerRef, methodRef, eventID, userID, currency string, minorUnits int64) (ChargeResult, error) {
	intent, err := a.client.CreatePaymentIntent(ctx, CreatePaymentIntentParams{
		Customer:      customerRef,
		PaymentMethod: methodRef,
		Amount:        minorUnits,
		Currency:      currency,
		Metadata: map[string]string{
			MetadataEventIDKey: eventID,
			MetadataUserIDKey:  userID,
		},
	})
	if err != nil {
		return ChargeResult{}, err
	}

	return ChargeResult{
		Status:          intent.Status,
		GatewayChargeID: intent.ID,
	}, nil
}

// AttachPaymentMethod は支払い方法トークンを顧客に紐付ける。
// ゲートウェイのエラーはそのまま伝播する。
func (a *Adapter) AttachPaymentMethod(ctx context.Context, customerRef, methodRef string) error {
	if _, err := a.client.AttachPaymentMethod(ctx, methodRef, customerRef); err != nil {
		return err
	}
	return nil
}

// ListPaymentMethods は顧客のカード型支払い方法一覧をドメインモデルとして返す。
// 顧客に保存された既定の支払い方法の参照と比較して、各方法の既定フラグを解決する。
func (a *Adapter) ListPaymentMethods(ctx context.Context, customerRef string) ([]*model.PaymentMethod, error) {
	customer, err := a.client.GetCustomer(ctx, customerRef)
	if err != nil {
		return nil, err
	}

	userID := customer.Metadata[MetadataUserIDKey]
	defaultRef := customer.InvoiceSettings.DefaultPaymentMethod

	data, err := a.client.ListPaymentMethods(ctx, customerRef)
	if err != nil {
		return nil, err
	}

	methods := make([]*model.PaymentMethod, 0, len(data))
	for _, d := range data {
		method, err := model.NewPaymentMethod(
			userID, customerRef, d.ID, d.Card.Last4, d.Card.Brand, d.ID == defaultRef,
		)
		if err != nil {
			return nil, fmt.Errorf("支払い方法の変換に失敗しました: %w", err)
		}
		methods = append(methods, method)
	}

	return methods, nil
}

// GetPaymentMethod は顧客の特定の支払い方法をドメインモデルとして返す。
// 見つからない場合はnilを返す。
func (a *Adapter) GetPaymentMethod(ctx context.Context, customerRef, methodRef string) (*model.PaymentMethod, error) {
	customer, err := a.client.GetCustomer(ctx, customerRef)
	if err != nil {
		return nil, err
	}

	userID := customer.Metadata[MetadataUserIDKey]
	defaultRef := customer.InvoiceSettings.DefaultPaymentMethod

	data, err := a.client.ListPaymentMethods(ctx, customerRef)
	if err != nil {
		return nil, err
	}

	for _, d := range data {
		if d.ID != methodRef {
			continue
		}
		method, err := model.NewPaymentMethod(
			userID, customerRef, d.ID, d.Card.Last4, d.Card.Brand, d.ID == defaultRef,
		)
		if err != nil {
			return nil, fmt.Errorf("支払い方法の変換に失敗しました: %w", err)
		}
		return method, nil
	}

	return nil, nil
}

// SetDefaultPaymentMethod は顧客の既定の支払い方法を設定する管理操作。
// リトライは行わず、ゲートウェイのエラーは失敗ステータス（false）に変換する。
func (a *Adapter) SetDefaultPaymentMethod(ctx context.Context, customerRef, methodRef string) bool {
	if err := a.client.SetCustomerDefaultPaymentMethod(ctx, customerRef, methodRef); err != nil {
		a.logger.Error("既定の支払い方法の設定に失敗しました",
			slog.String("customer_ref", customerRef),
			slog.String("method_ref", methodRef),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

// DetachPaymentMethod は支払い方法の紐付けを解除する管理操作。
// リトライは行わず、ゲートウェイのエラーは失敗ステータス（false）に変換する。
func (a *Adapter) DetachPaymentMethod(ctx context.Context, methodRef string) bool {
	if err := a.client.DetachPaymentMethod(ctx, methodRef); err != nil {
		a.logger.Error("支払い方法の解除に失敗しました",
			slog.String("method_ref", methodRef),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}
