// Package payment は決済オーケストレーションの中核機能を提供する。
// 課金サーガの実行、リトライ制御、決済履歴の照会を含む。
package payment

import (
	"context"
	"time"
)

// RetryPolicy は一時的な失敗に対するリトライ戦略。
// 初回実行の後、最大MaxRetries回まで再試行する。
// 待機時間はBaseDelay * 2^試行回数の指数バックオフ。
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultRetryPolicy は課金処理の既定リトライ戦略（2回リトライ、初回2秒）。
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  2 * time.Second,
	}
}

// Do はfnを実行し、エラー時はポリシーに従って再試行する。
// fnがfalseを返した場合はリトライせず即座にエラーを返す。
// コンテキストのキャンセルは待機中にも反映される。
func (p RetryPolicy) Do(ctx context.Context, fn func() (retryable bool, err error)) error {
	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := p.delayFor(attempt)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		retryable, err := fn()
		if err == nil {
			return nil
		}
		if !retryable {
			return err
		}
		lastErr = err
	}

	return lastErr
}

// delayFor はattempt回目の再試行前の待機時間を計算する。
// attempt=1で2秒、attempt=2で4秒（BaseDelay=2秒の場合）。
func (p RetryPolicy) delayFor(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}
