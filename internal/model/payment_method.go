package model

import "fmt"

// CardType はカード種別を表す値オブジェクト。
// ゲートウェイが返すブランド名（例: visa, mastercard）を検証済みの形で保持する。
type CardType string

// NewCardType は検証済みのCardTypeを生成する。空文字はエラーを返す。
func NewCardType(s string) (CardType, error) {
	if s == "" {
		return "", fmt.Errorf("card type must not be empty")
	}
	return CardType(s), nil
}

// PaymentMethod はゲートウェイ側の支払い方法をコアから見た姿として表す。
// ローカルには永続化せず、常にゲートウェイの状態の投影として構築する。
type PaymentMethod struct {
	UserID      string   // 所有ユーザーのID
	CustomerRef string   // ゲートウェイ側の請求アイデンティティの参照
	MethodRef   string   // ゲートウェイ側の支払い方法の参照
	LastFour    string   // カード番号の下4桁
	CardType    CardType // カード種別
	IsDefault   bool     // 既定の支払い方法かどうか
}

// NewPaymentMethod はゲートウェイの生データからPaymentMethodを構築するファクトリ。
func NewPaymentMethod(userID, customerRef, methodRef, lastFour, cardType string, isDefault bool) (*PaymentMethod, error) {
	ct, err := NewCardType(cardType)
	if err != nil {
		return nil, fmt.Errorf("支払い方法の構築に失敗しました: %w", err)
	}
	return &PaymentMethod{
		UserID:      userID,
		CustomerRef: customerRef,
		MethodRef:   methodRef,
		LastFour:    lastFour,
		CardType:    ct,
		IsDefault:   isDefault,
	}, nil
}

// User はユーザーサービスから取得するユーザーの表示情報を表す。
type User struct {
	ID    string
	Name  string
	Email string
}
