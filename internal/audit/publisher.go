// Package audit は監査イベントをKafkaへ発行する機能を提供する。
// 発行はベストエフォートであり、失敗しても決済処理は中断しない。
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// sourceService は監査イベントの発行元サービス名。
const sourceService = "payment_services"

// 監査イベントのレベル。
const (
	LevelInfo  = "info"
	LevelError = "error"
)

// Event はKafkaへ発行する監査イベント。
type Event struct {
	ID            string          `json:"id"`
	SourceService string          `json:"source_service"`
	UserID        string          `json:"user_id"`
	ActionType    string          `json:"action_type"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Level         string          `json:"level"`
}

// Publisher は監査イベントの発行インターフェース。
type Publisher interface {
	Publish(ctx context.Context, userID, actionType string, payload any) error
	Close() error
}

// KafkaPublisher はkafka-goのWriterを用いたPublisherの実装。
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// コンパイル時のインターフェース実装チェック
var _ Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher はKafkaPublisherの新しいインスタンスを生成する。
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 100 * time.Millisecond,
		},
		logger: logger,
	}
}

// Publish は監査イベントを1件発行する。
// キーにはユーザーIDを用い、同一ユーザーのイベント順序を保つ。
func (p *KafkaPublisher) Publish(ctx context.Context, userID, actionType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("監査ペイロードのシリアライズに失敗しました: %w", err)
	}

	event := Event{
		ID:            uuid.NewString(),
		SourceService: sourceService,
		UserID:        userID,
		ActionType:    actionType,
		Payload:       raw,
		OccurredAt:    time.Now().UTC(),
		Level:         LevelInfo,
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("監査イベントのシリアライズに失敗しました: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(userID),
		Value: value,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("監査イベントの発行に失敗しました",
			slog.String("action_type", actionType),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("監査イベントの発行に失敗しました: %w", err)
	}

	return nil
}

// Close はKafkaへの接続を閉じる。
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher は何もしないPublisher。ブローカー未設定時に使用する。
type NopPublisher struct{}

var _ Publisher = (*NopPublisher)(nil)

// Publish は何もせずnilを返す。
func (NopPublisher) Publish(_ context.Context, _, _ string, _ any) error { return nil }

// Close は何もせずnilを返す。
func (NopPublisher) Close() error { return nil }
