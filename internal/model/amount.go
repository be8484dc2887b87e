package model

import (
	"github.com/shopspring/decimal"
)

// Amount は支払い金額を表す値オブジェクト。
// 常に0より大きい検証済みのdecimal値を保持し、通貨には依存しない。
type Amount struct {
	value decimal.Decimal
}

// NewAmount は検証済みのAmountを生成する。
// 0以下の値はエラーを返す。
func NewAmount(value decimal.Decimal) (Amount, error) {
	if value.LessThanOrEqual(decimal.Zero) {
		return Amount{}, NewInvalidAmountError(value.String())
	}
	return Amount{value: value}, nil
}

// NewAmountFromString は文字列表現からAmountを生成する。
func NewAmountFromString(s string) (Amount, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, NewInvalidAmountError(s)
	}
	return NewAmount(v)
}

// MinorUnits は金額をゲートウェイの最小通貨単位（例: セント）に変換する。
// 100倍して小数部を切り捨てる（0方向への切り捨て）。
// 例: 19.99 -> 1999、0.005 -> 0
func (a Amount) MinorUnits() int64 {
	return a.value.Mul(decimal.NewFromInt(100)).IntPart()
}

// Decimal は内部のdecimal値を返す。
func (a Amount) Decimal() decimal.Decimal {
	return a.value
}

// Equal は2つのAmountが同じ金額かを判定する。
func (a Amount) Equal(other Amount) bool {
	return a.value.Equal(other.value)
}

// String は金額の文字列表現を返す。
func (a Amount) String() string {
	return a.value.String()
}
