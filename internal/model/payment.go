package model

import (
	"time"

	"github.com/google/uuid"
)

// PaymentRecord は完了した支払いの記録を表す。
// 成功した決済ごとに1回だけ生成され、以後更新されないイミュータブルな履歴。
type PaymentRecord struct {
	ID               string    // 履歴レコードのID（生成時に採番）
	UserID           string    // 支払いを行ったユーザーのID
	EventID          string    // 支払い対象のイベント（予約）のID
	PaymentMethodRef string    // ゲートウェイ側の支払い方法の参照トークン
	CardBrand        string    // カードブランド（例: visa）
	LastFour         string    // カード番号の下4桁
	Amount           Amount    // 支払い金額
	CreatedAt        time.Time // 支払いが記録された日時（UTC）
}

// NewPaymentRecord は支払い履歴レコードを生成する。
// IDと作成日時（UTC）はここで採番・付与する。
func NewPaymentRecord(userID, eventID, methodRef string, amount Amount, lastFour, cardBrand string) *PaymentRecord {
	return &PaymentRecord{
		ID:               uuid.NewString(),
		UserID:           userID,
		EventID:          eventID,
		PaymentMethodRef: methodRef,
		CardBrand:        cardBrand,
		LastFour:         lastFour,
		Amount:           amount,
		CreatedAt:        time.Now().UTC(),
	}
}
