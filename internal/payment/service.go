package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/payhub/internal/gateway"
	"github.com/hitoshi/payhub/internal/metrics"
	"github.com/hitoshi/payhub/internal/model"
	"github.com/hitoshi/payhub/internal/repository"
)

// 監査イベントのアクション種別。
const (
	auditActionPaymentRegistered = "payment_registered"
)

// アクティビティログのアクションとカテゴリ。
const (
	activityActionPayment   = "イベントの支払いを行いました"
	activityCategoryPayment = "payment"
)

// 副作用の種別。警告メッセージとメトリクスのラベルに使用する。
const (
	SideEffectNotification = "notification"
	SideEffectCoupon       = "coupon"
	SideEffectAudit        = "audit"
	SideEffectActivity     = "activity"
	SideEffectEmail        = "email"
)

// UserDirectory はユーザーサービスへの問い合わせインターフェース。
type UserDirectory interface {
	GetUserIDByEmail(ctx context.Context, email string) (string, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// IdentityResolver は請求アイデンティティの解決インターフェース。
type IdentityResolver interface {
	ResolveOrCreate(ctx context.Context, userID, email string) (string, error)
	Resolve(ctx context.Context, userID string) (string, error)
}

// Gateway は決済ゲートウェイへの操作インターフェース。
type Gateway interface {
	CreateCharge(ctx context.Context, customerRef, methodRef, eventID, userID, currency string, minorUnits int64) (gateway.ChargeResult, error)
	GetPaymentMethod(ctx context.Context, customerRef, methodRef string) (*model.PaymentMethod, error)
}

// Notifier は通知サービスへの送信インターフェース。
type Notifier interface {
	SendPaymentSuccess(ctx context.Context, email, amount string) error
	SendPaymentEmail(ctx context.Context, email, amount string, paidAt time.Time) error
}

// CouponRedeemer はクーポンサービスへの消込みインターフェース。
type CouponRedeemer interface {
	MarkUsed(ctx context.Context, couponID string) error
}

// ActivityLogger はアクティビティログサービスへの記録インターフェース。
type ActivityLogger interface {
	Register(ctx context.Context, email, action, category string) error
}

// AuditPublisher は監査イベントの発行インターフェース。
type AuditPublisher interface {
	Publish(ctx context.Context, userID, actionType string, payload any) error
}

// ChargeCommand は支払い登録の入力を表す。
type ChargeCommand struct {
	Email            string       // 支払いを行うユーザーのメールアドレス
	EventID          string       // 支払い対象のイベント（予約）のID
	PaymentMethodRef string       // 使用する支払い方法のゲートウェイ参照
	Currency         string       // 通貨コード（例: jpy, usd）
	Amount           model.Amount // 支払い金額
	CouponID         string       // 使用するクーポンのID（未使用なら空）
}

// ChargeReceipt は支払い登録の結果を表す。
// Warningsには決済完了後の副作用で失敗したものの種別が入る。
// 決済自体は完了しているため、警告があっても結果は成功として扱う。
type ChargeReceipt struct {
	HistoryID       string    // 登録された支払い履歴のID
	GatewayChargeID string    // ゲートウェイ側の決済ID
	PaidAt          time.Time // 支払いが記録された日時（UTC）
	Warnings        []string  // 失敗した副作用の種別一覧
}

// Service は支払い登録サーガと履歴照会のサービス層。
//
// 支払い登録は次の順序で進む:
// ユーザー解決 → 二重払いガード → 請求アイデンティティ解決 → 最小通貨単位への変換
// → リトライ付きの決済実行 → 支払い方法の表示属性取得 → 履歴の永続化
// → ベストエフォートの副作用（通知・クーポン・監査・アクティビティ・明細メール）。
// 決済実行より前のステップで失敗した場合、課金は一切発生しない。
type Service struct {
	users       UserDirectory
	identity    IdentityResolver
	gateway     Gateway
	historyRepo repository.PaymentHistoryRepository
	notifier    Notifier
	coupons     CouponRedeemer
	activities  ActivityLogger
	audit       AuditPublisher
	retry       RetryPolicy
	metrics     metrics.MetricsCollector
	logger      *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	users UserDirectory,
	identity IdentityResolver,
	gw Gateway,
	historyRepo repository.PaymentHistoryRepository,
	notifier Notifier,
	coupons CouponRedeemer,
	activities ActivityLogger,
	audit AuditPublisher,
	retry RetryPolicy,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	return &Service{
		users:       users,
		identity:    identity,
		gateway:     gw,
		historyRepo: historyRepo,
		notifier:    notifier,
		coupons:     coupons,
		activities:  activities,
		audit:       audit,
		retry:       retry,
		metrics:     collector,
		logger:      logger,
	}
}

// RegisterPayment はイベントに対する支払いを登録する。
//
// ゲートウェイのエラーはリトライポリシーに従って再試行し、使い切った場合は
// GATEWAY_UNAVAILABLEを返す。ゲートウェイが成功以外のステータスを正常応答として
// 返した場合はリトライせずPAYMENT_NOT_COMPLETEDを返す。
// 履歴の永続化後の副作用はすべてベストエフォートで、失敗は警告として返す。
func (s *Service) RegisterPayment(ctx context.Context, cmd ChargeCommand) (*ChargeReceipt, error) {
	userID, err := s.users.GetUserIDByEmail(ctx, cmd.Email)
	if err != nil {
		return nil, s.fail(model.NewUserNotFoundError(cmd.Email).WithCause(err))
	}
	if userID == "" {
		return nil, s.fail(model.NewUserNotFoundError(cmd.Email))
	}

	// 二重払いガード。最終防衛線はevent_idのUNIQUE制約（Register側）。
	exists, err := s.historyRepo.ExistsByEventID(ctx, cmd.EventID)
	if err != nil {
		return nil, s.fail(model.NewHistoryPersistenceFailedError().WithCause(err))
	}
	if exists {
		return nil, s.fail(model.NewDuplicatePaymentError(cmd.EventID))
	}

	customerRef, err := s.identity.ResolveOrCreate(ctx, userID, cmd.Email)
	if err != nil {
		return nil, s.fail(model.NewGatewayUnavailableError().WithCause(err))
	}

	result, err := s.chargeWithRetry(ctx, customerRef, cmd, userID)
	if err != nil {
		return nil, s.fail(err.(*model.APIError))
	}

	// 表示属性（ブランド・下4桁）の取得。ここ以降の失敗は決済完了後の失敗になる。
	method, err := s.gateway.GetPaymentMethod(ctx, customerRef, cmd.PaymentMethodRef)
	if err != nil {
		return nil, s.fail(model.NewHistoryPersistenceFailedError().WithCause(err))
	}
	if method == nil {
		return nil, s.fail(model.NewPaymentMethodNotFoundError(cmd.PaymentMethodRef))
	}

	record := model.NewPaymentRecord(
		userID, cmd.EventID, cmd.PaymentMethodRef,
		cmd.Amount, method.LastFour, string(method.CardType),
	)

	historyID, err := s.historyRepo.Register(ctx, record)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeDuplicatePayment {
			return nil, s.fail(apiErr)
		}
		return nil, s.fail(model.NewHistoryPersistenceFailedError().WithCause(err))
	}

	s.metrics.RecordChargeSuccess()
	s.logger.Info("支払いを登録しました",
		slog.String("history_id", historyID),
		slog.String("event_id", cmd.EventID),
		slog.String("user_id", userID),
		slog.String("gateway_charge_id", result.GatewayChargeID),
	)

	warnings := s.runSideEffects(ctx, cmd, record, userID)

	return &ChargeReceipt{
		HistoryID:       historyID,
		GatewayChargeID: result.GatewayChargeID,
		PaidAt:          record.CreatedAt,
		Warnings:        warnings,
	}, nil
}

// chargeWithRetry はリトライポリシーに従って決済を実行する。
// ゲートウェイのエラーは再試行、成功以外の正常応答は即時失敗。
func (s *Service) chargeWithRetry(ctx context.Context, customerRef string, cmd ChargeCommand, userID string) (gateway.ChargeResult, error) {
	var result gateway.ChargeResult
	attempt := 0

	err := s.retry.Do(ctx, func() (bool, error) {
		attempt++
		if attempt > 1 {
			s.metrics.RecordChargeRetry()
		}

		start := time.Now()
		r, err := s.gateway.CreateCharge(
			ctx, customerRef, cmd.PaymentMethodRef,
			cmd.EventID, userID, cmd.Currency, cmd.Amount.MinorUnits(),
		)
		s.metrics.RecordGatewayLatency(time.Since(start))

		if err != nil {
			s.logger.Warn("決済の実行に失敗しました",
				slog.Int("attempt", attempt),
				slog.String("event_id", cmd.EventID),
				slog.String("error", err.Error()),
			)
			return true, err
		}

		// ゲートウェイが正常応答で失敗ステータスを返した場合はリトライしない
		if !r.Succeeded() {
			return false, model.NewPaymentNotCompletedError(r.Status)
		}

		result = r
		return false, nil
	})
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			return gateway.ChargeResult{}, apiErr
		}
		return gateway.ChargeResult{}, model.NewGatewayUnavailableError().WithCause(err)
	}

	return result, nil
}

// runSideEffects は決済完了後の副作用を順に実行する。
// いずれの失敗も後続の副作用を妨げず、警告として集約する。
func (s *Service) runSideEffects(ctx context.Context, cmd ChargeCommand, record *model.PaymentRecord, userID string) []string {
	var warnings []string

	sideEffect := func(kind string, fn func() error) {
		if err := fn(); err != nil {
			s.metrics.RecordSideEffectFailure(kind)
			// エラーコードを持つ失敗は、警告エントリにそのコードを載せる。
			entry := kind
			var apiErr *model.APIError
			if errors.As(err, &apiErr) {
				entry = apiErr.Code
			}
			s.logger.Warn("決済後の副作用に失敗しました",
				slog.String("kind", kind),
				slog.String("warning", entry),
				slog.String("event_id", cmd.EventID),
				slog.String("error", err.Error()),
			)
			warnings = append(warnings, entry)
		}
	}

	amount := record.Amount.String()

	sideEffect(SideEffectNotification, func() error {
		if err := s.notifier.SendPaymentSuccess(ctx, cmd.Email, amount); err != nil {
			return model.NewNotificationFailedError().WithCause(err)
		}
		return nil
	})

	if cmd.CouponID != "" {
		sideEffect(SideEffectCoupon, func() error {
			if err := s.coupons.MarkUsed(ctx, cmd.CouponID); err != nil {
				return model.NewCouponUpdateFailedError(cmd.CouponID).WithCause(err)
			}
			return nil
		})
	}

	sideEffect(SideEffectAudit, func() error {
		return s.audit.Publish(ctx, userID, auditActionPaymentRegistered, map[string]string{
			"history_id": record.ID,
			"event_id":   record.EventID,
			"amount":     amount,
		})
	})

	sideEffect(SideEffectActivity, func() error {
		return s.activities.Register(ctx, cmd.Email, activityActionPayment, activityCategoryPayment)
	})

	sideEffect(SideEffectEmail, func() error {
		return s.notifier.SendPaymentEmail(ctx, cmd.Email, amount, record.CreatedAt)
	})

	return warnings
}

// fail は失敗メトリクスを記録してエラーをそのまま返すヘルパー。
func (s *Service) fail(err *model.APIError) error {
	s.metrics.RecordChargeFailure(err.Code)
	return err
}

// HistoryEntry はユーザー名を付加した支払い履歴の1件を表す。
type HistoryEntry struct {
	Record   *model.PaymentRecord
	UserName string
}

// ListHistoryByUser は指定メールアドレスのユーザーの支払い履歴を返す。
// ユーザー名を付加して返す。履歴がない場合は空のスライスを返す。
func (s *Service) ListHistoryByUser(ctx context.Context, email string) ([]HistoryEntry, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("ユーザー情報の取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(email)
	}

	records, err := s.historyRepo.ListByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("支払い履歴の取得に失敗しました: %w", err)
	}

	entries := make([]HistoryEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, HistoryEntry{
			Record:   r,
			UserName: user.Name,
		})
	}

	return entries, nil
}

// ListAllHistory は全ユーザーの支払い履歴を返す。管理用途。
func (s *Service) ListAllHistory(ctx context.Context) ([]*model.PaymentRecord, error) {
	records, err := s.historyRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("支払い履歴の取得に失敗しました: %w", err)
	}
	if records == nil {
		records = []*model.PaymentRecord{}
	}
	return records, nil
}
