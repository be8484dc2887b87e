// Package paymentmethod は支払い方法の登録と照会のドメインロジックを提供する。
// 支払い方法はローカルに永続化せず、常にゲートウェイ側の状態の投影として扱う。
package paymentmethod

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/payhub/internal/model"
)

// UserDirectory はユーザーサービスへの問い合わせインターフェース。
type UserDirectory interface {
	GetUserIDByEmail(ctx context.Context, email string) (string, error)
}

// IdentityResolver は請求アイデンティティの解決インターフェース。
type IdentityResolver interface {
	ResolveOrCreate(ctx context.Context, userID, email string) (string, error)
	Resolve(ctx context.Context, userID string) (string, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// Gateway は支払い方法の操作インターフェース。
type Gateway interface {
	AttachPaymentMethod(ctx context.Context, customerRef, methodRef string) error
	ListPaymentMethods(ctx context.Context, customerRef string) ([]*model.PaymentMethod, error)
	GetPaymentMethod(ctx context.Context, customerRef, methodRef string) (*model.PaymentMethod, error)
	SetDefaultPaymentMethod(ctx context.Context, customerRef, methodRef string) bool
	DetachPaymentMethod(ctx context.Context, methodRef string) bool
}

// Service は支払い方法管理のサービス層。
type Service struct {
	users    UserDirectory
	identity IdentityResolver
	gateway  Gateway
	logger   *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(users UserDirectory, identity IdentityResolver, gw Gateway, logger *slog.Logger) *Service {
	return &Service{
		users:    users,
		identity: identity,
		gateway:  gw,
		logger:   logger,
	}
}

// RegisterPaymentMethod は支払い方法トークンをユーザーに登録する。
//
// メールアドレスからユーザーを解決し、同じメールアドレスの請求アイデンティティが
// 未作成の場合にだけ新規作成する。既存の場合はユーザーIDのメタデータ走査で参照を
// 解決し、走査で見つからなければ登録を失敗させる（別ユーザーの顧客を二重作成しない）。
// 紐付けに失敗した場合はGATEWAY_REGISTRATION_FAILEDを返す。
func (s *Service) RegisterPaymentMethod(ctx context.Context, email, methodToken string) error {
	userID, err := s.users.GetUserIDByEmail(ctx, email)
	if err != nil {
		return model.NewUserNotFoundError(email).WithCause(err)
	}
	if userID == "" {
		return model.NewUserNotFoundError(email)
	}

	exists, err := s.identity.ExistsByEmail(ctx, email)
	if err != nil {
		return model.NewGatewayRegistrationError().WithCause(err)
	}

	var customerRef string
	if exists {
		customerRef, err = s.identity.Resolve(ctx, userID)
		if err != nil {
			return model.NewGatewayRegistrationError().WithCause(err)
		}
		if customerRef == "" {
			// メールアドレスは既存だがこのユーザーIDに紐付いていない。
			s.logger.Error("請求アイデンティティの照合に失敗しました",
				slog.String("user_id", userID),
			)
			return model.NewGatewayRegistrationError()
		}
	} else {
		customerRef, err = s.identity.ResolveOrCreate(ctx, userID, email)
		if err != nil {
			return model.NewGatewayRegistrationError().WithCause(err)
		}
	}

	if err := s.gateway.AttachPaymentMethod(ctx, customerRef, methodToken); err != nil {
		s.logger.Error("支払い方法の紐付けに失敗しました",
			slog.String("user_id", userID),
			slog.String("method_ref", methodToken),
			slog.String("error", err.Error()),
		)
		return model.NewGatewayRegistrationError().WithCause(err)
	}

	s.logger.Info("支払い方法を登録しました",
		slog.String("user_id", userID),
		slog.String("method_ref", methodToken),
	)

	return nil
}

// HasBillingIdentity は指定メールアドレスの請求アイデンティティが
// ゲートウェイに存在するかを返す。
func (s *Service) HasBillingIdentity(ctx context.Context, email string) (bool, error) {
	exists, err := s.identity.ExistsByEmail(ctx, email)
	if err != nil {
		return false, fmt.Errorf("請求アイデンティティの確認に失敗しました: %w", err)
	}
	return exists, nil
}

// ListMethods は指定メールアドレスのユーザーの支払い方法一覧を返す。
// 請求アイデンティティが未作成の場合は空のスライスを返す。
func (s *Service) ListMethods(ctx context.Context, email string) ([]*model.PaymentMethod, error) {
	customerRef, err := s.resolveCustomer(ctx, email)
	if err != nil {
		return nil, err
	}
	if customerRef == "" {
		return []*model.PaymentMethod{}, nil
	}

	methods, err := s.gateway.ListPaymentMethods(ctx, customerRef)
	if err != nil {
		return nil, fmt.Errorf("支払い方法一覧の取得に失敗しました: %w", err)
	}
	if methods == nil {
		methods = []*model.PaymentMethod{}
	}

	return methods, nil
}

// GetMethod は指定メールアドレスのユーザーの特定の支払い方法を返す。
// 見つからない場合はPAYMENT_METHOD_NOT_FOUNDを返す。
func (s *Service) GetMethod(ctx context.Context, email, methodRef string) (*model.PaymentMethod, error) {
	customerRef, err := s.resolveCustomer(ctx, email)
	if err != nil {
		return nil, err
	}
	if customerRef == "" {
		return nil, model.NewPaymentMethodNotFoundError(methodRef)
	}

	method, err := s.gateway.GetPaymentMethod(ctx, customerRef, methodRef)
	if err != nil {
		return nil, fmt.Errorf("支払い方法の取得に失敗しました: %w", err)
	}
	if method == nil {
		return nil, model.NewPaymentMethodNotFoundError(methodRef)
	}

	return method, nil
}

// SetDefault はユーザーの既定の支払い方法を設定する管理操作。
// 成功可否のみを返し、失敗してもエラーにはしない。
func (s *Service) SetDefault(ctx context.Context, email, methodRef string) (bool, error) {
	customerRef, err := s.resolveCustomer(ctx, email)
	if err != nil {
		return false, err
	}
	if customerRef == "" {
		return false, nil
	}

	return s.gateway.SetDefaultPaymentMethod(ctx, customerRef, methodRef), nil
}

// Detach は支払い方法の紐付けを解除する管理操作。
// 成功可否のみを返し、失敗してもエラーにはしない。
func (s *Service) Detach(ctx context.Context, methodRef string) bool {
	return s.gateway.DetachPaymentMethod(ctx, methodRef)
}

// resolveCustomer はメールアドレスからゲートウェイ顧客の参照を解決する。
// ユーザーが存在しない場合はUSER_NOT_FOUND、アイデンティティ未作成の場合は空文字列。
func (s *Service) resolveCustomer(ctx context.Context, email string) (string, error) {
	userID, err := s.users.GetUserIDByEmail(ctx, email)
	if err != nil {
		return "", model.NewUserNotFoundError(email).WithCause(err)
	}
	if userID == "" {
		return "", model.NewUserNotFoundError(email)
	}

	customerRef, err := s.identity.Resolve(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("請求アイデンティティの解決に失敗しました: %w", err)
	}

	return customerRef, nil
}
