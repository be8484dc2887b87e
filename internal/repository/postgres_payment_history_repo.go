package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/payhub/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反のエラーコード。
const uniqueViolation = "23505"

// PostgresPaymentHistoryRepo はPostgreSQLを使用した支払い履歴リポジトリ。
type PostgresPaymentHistoryRepo struct {
	db *sql.DB
}

// NewPostgresPaymentHistoryRepo はPostgresPaymentHistoryRepoを生成する。
func NewPostgresPaymentHistoryRepo(db *sql.DB) *PostgresPaymentHistoryRepo {
	return &PostgresPaymentHistoryRepo{db: db}
}

// Register は支払い履歴レコードを登録し、採番済みのIDを返す。
// event_idのUNIQUE制約違反はDUPLICATE_PAYMENTエラーに変換する。
func (r *PostgresPaymentHistoryRepo) Register(ctx context.Context, record *model.PaymentRecord) (string, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payment_history (id, user_id, event_id, payment_method_ref, card_brand, last_four, amount, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		record.ID, record.UserID, record.EventID, record.PaymentMethodRef,
		record.CardBrand, record.LastFour, record.Amount.Decimal(), record.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return "", model.NewDuplicatePaymentError(record.EventID).WithCause(err)
		}
		return "", fmt.Errorf("failed to insert payment history: %w", err)
	}

	return record.ID, nil
}

// ExistsByEventID は指定イベントIDの支払い履歴が存在するかを返す。
func (r *PostgresPaymentHistoryRepo) ExistsByEventID(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM payment_history WHERE event_id = $1)`,
		eventID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check payment existence: %w", err)
	}

	return exists, nil
}

// FindByEventID は指定イベントIDの支払い履歴を取得する。見つからない場合はnilを返す。
func (r *PostgresPaymentHistoryRepo) FindByEventID(ctx context.Context, eventID string) (*model.PaymentRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, event_id, payment_method_ref, card_brand, last_four, amount, created_at
		 FROM payment_history WHERE event_id = $1`,
		eventID,
	)

	record, err := scanPaymentRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find payment by event ID: %w", err)
	}

	return record, nil
}

// ListByUserID は指定ユーザーの支払い履歴を作成日時の降順で返す。
func (r *PostgresPaymentHistoryRepo) ListByUserID(ctx context.Context, userID string) ([]*model.PaymentRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, event_id, payment_method_ref, card_brand, last_four, amount, created_at
		 FROM payment_history WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments by user ID: %w", err)
	}
	defer rows.Close()

	return collectPaymentRecords(rows)
}

// ListAll は全支払い履歴を作成日時の降順で返す。
func (r *PostgresPaymentHistoryRepo) ListAll(ctx context.Context) ([]*model.PaymentRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, event_id, payment_method_ref, card_brand, last_four, amount, created_at
		 FROM payment_history ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list all payments: %w", err)
	}
	defer rows.Close()

	return collectPaymentRecords(rows)
}

// rowScanner はsql.Rowとsql.Rowsの共通スキャンインターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanPaymentRecord は1行をPaymentRecordに変換する。
func scanPaymentRecord(row rowScanner) (*model.PaymentRecord, error) {
	record := &model.PaymentRecord{}
	var amountStr string

	err := row.Scan(
		&record.ID, &record.UserID, &record.EventID, &record.PaymentMethodRef,
		&record.CardBrand, &record.LastFour, &amountStr, &record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	amount, err := model.NewAmountFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored amount: %w", err)
	}
	record.Amount = amount

	return record, nil
}

// collectPaymentRecords は複数行をPaymentRecordのスライスに変換する。
func collectPaymentRecords(rows *sql.Rows) ([]*model.PaymentRecord, error) {
	var records []*model.PaymentRecord
	for rows.Next() {
		record, err := scanPaymentRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment history row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payment history rows: %w", err)
	}

	return records, nil
}

// compile-time interface check
var _ PaymentHistoryRepository = (*PostgresPaymentHistoryRepo)(nil)
