// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/payhub/internal/model"
)

// PaymentHistoryRepository は支払い履歴の永続化インターフェース。
type PaymentHistoryRepository interface {
	// Register は支払い履歴レコードを登録し、採番済みのIDを返す。
	// 同一イベントIDのレコードが既に存在する場合はDUPLICATE_PAYMENTエラーを返す
	// （event_idのUNIQUE制約による。並行リクエストでも高々1件しか登録されない）。
	Register(ctx context.Context, record *model.PaymentRecord) (string, error)

	// ExistsByEventID は指定イベントIDの支払い履歴が存在するかを返す。
	ExistsByEventID(ctx context.Context, eventID string) (bool, error)

	// FindByEventID は指定イベントIDの支払い履歴を取得する。見つからない場合はnilを返す。
	FindByEventID(ctx context.Context, eventID string) (*model.PaymentRecord, error)

	// ListByUserID は指定ユーザーの支払い履歴を作成日時の降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.PaymentRecord, error)

	// ListAll は全支払い履歴を作成日時の降順で返す。
	ListAll(ctx context.Context) ([]*model.PaymentRecord, error)
}
