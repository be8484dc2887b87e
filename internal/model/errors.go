// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, payment, gateway, system
	Action   string // ユーザー向け対処方法

	cause error // ラップされた元のエラー。errors.Is/Asで辿れる。
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は内包する原因エラーを返す。原因がない場合はnilを返す。
func (e *APIError) Unwrap() error {
	return e.cause
}

// WithCause は原因エラーを保持した新しいAPIErrorを返す。
// 呼び出し元へ伝播してもエラーコードと元の原因の両方が失われない。
func (e *APIError) WithCause(cause error) *APIError {
	clone := *e
	clone.cause = cause
	return &clone
}

// 定義済みエラーコード
const (
	ErrCodeUserNotFound             = "USER_NOT_FOUND"
	ErrCodeDuplicatePayment         = "DUPLICATE_PAYMENT"
	ErrCodeGatewayUnavailable       = "GATEWAY_UNAVAILABLE"
	ErrCodePaymentNotCompleted      = "PAYMENT_NOT_COMPLETED"
	ErrCodeHistoryPersistenceFailed = "HISTORY_PERSISTENCE_FAILED"
	ErrCodeNotificationFailed       = "NOTIFICATION_FAILED"
	ErrCodeCouponUpdateFailed       = "COUPON_UPDATE_FAILED"
	ErrCodeGatewayRegistration      = "GATEWAY_REGISTRATION_FAILED"
	ErrCodePaymentMethodNotFound    = "PAYMENT_METHOD_NOT_FOUND"
	ErrCodeInvalidAmount            = "INVALID_AMOUNT"
)

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("指定されたメールアドレスのユーザーが存在しません: %s", email),
		Category: "validation",
		Action:   "メールアドレスを確認してください。",
	}
}

// NewDuplicatePaymentError は同一イベントに対する二重払いのエラーを生成する。
func NewDuplicatePaymentError(eventID string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicatePayment,
		Message:  fmt.Sprintf("このイベントの支払いは既に登録されています: %s", eventID),
		Category: "validation",
		Action:   "支払い履歴を確認してください。二重に請求されることはありません。",
	}
}

// NewGatewayUnavailableError はリトライを使い切っても決済ゲートウェイに到達できなかった場合のエラーを生成する。
func NewGatewayUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeGatewayUnavailable,
		Message:  "決済ゲートウェイとの通信に失敗しました。支払いは行われていません。",
		Category: "gateway",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewPaymentNotCompletedError はゲートウェイが成功以外のステータスを返した場合のエラーを生成する。
func NewPaymentNotCompletedError(status string) *APIError {
	return &APIError{
		Code:     ErrCodePaymentNotCompleted,
		Message:  fmt.Sprintf("支払いが完了しませんでした（ステータス: %s）。", status),
		Category: "payment",
		Action:   "カード情報を確認するか、別の支払い方法をお試しください。",
	}
}

// NewHistoryPersistenceFailedError は支払い履歴の保存に失敗した場合のエラーを生成する。
func NewHistoryPersistenceFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeHistoryPersistenceFailed,
		Message:  "支払い履歴の保存に失敗しました。",
		Category: "system",
		Action:   "サポートへお問い合わせください。支払い自体は完了している可能性があります。",
	}
}

// NewNotificationFailedError は通知サービスの呼び出しに失敗した場合のエラーを生成する。
func NewNotificationFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotificationFailed,
		Message:  "支払い通知の送信に失敗しました。",
		Category: "system",
		Action:   "支払いは完了しています。通知が届かない場合は履歴を確認してください。",
	}
}

// NewCouponUpdateFailedError はクーポンの消込みに失敗した場合のエラーを生成する。
func NewCouponUpdateFailedError(couponID string) *APIError {
	return &APIError{
		Code:     ErrCodeCouponUpdateFailed,
		Message:  fmt.Sprintf("クーポンの使用済み更新に失敗しました: %s", couponID),
		Category: "system",
		Action:   "支払いは完了しています。クーポンについてはサポートへお問い合わせください。",
	}
}

// NewGatewayRegistrationError は支払い方法の登録に失敗した場合のエラーを生成する。
func NewGatewayRegistrationError() *APIError {
	return &APIError{
		Code:     ErrCodeGatewayRegistration,
		Message:  "支払い方法の登録に失敗しました。",
		Category: "gateway",
		Action:   "支払い方法のトークンを確認し、再度お試しください。",
	}
}

// NewPaymentMethodNotFoundError は支払い方法が見つからない場合のエラーを生成する。
func NewPaymentMethodNotFoundError(methodRef string) *APIError {
	return &APIError{
		Code:     ErrCodePaymentMethodNotFound,
		Message:  fmt.Sprintf("指定された支払い方法が見つかりません: %s", methodRef),
		Category: "validation",
		Action:   "支払い方法のIDを確認してください。",
	}
}

// NewInvalidAmountError は支払い金額が不正な場合のエラーを生成する。
func NewInvalidAmountError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAmount,
		Message:  fmt.Sprintf("支払い金額が不正です: %s", reason),
		Category: "validation",
		Action:   "0より大きい金額を指定してください。",
	}
}
