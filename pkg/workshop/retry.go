package workshop

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// runInTx runs fn in a transaction and reruns the whole transaction when the
// store aborts it for concurrency reasons. Other errors are returned at once.
// fnをトランザクションで実行し、同時実行エラー時はトランザクション全体を再実行
func (m *Manager) runInTx(ctx context.Context, operation string, fn func(q Queries) error) error {
	var err error
	for attempt := 1; attempt <= m.config.MaxAttempts; attempt++ {
		err = m.storage.WithTx(ctx, fn)
		if err == nil || !IsConcurrencyError(err) {
			return err
		}
		if attempt == m.config.MaxAttempts {
			break
		}
		if ctx.Err() != nil {
			return err
		}

		m.logger.Warn("同時実行エラーのため再試行します",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if m.publisher != nil {
			event := RetryEvent{Operation: operation, Attempt: attempt, Timestamp: m.now()}
			if perr := m.publisher.PublishRetry(ctx, event); perr != nil {
				m.logger.Error("再試行イベント発行に失敗しました", zap.Error(perr))
			}
		}

		timer := time.NewTimer(time.Duration(attempt) * m.config.RetryBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}

	m.logger.Error("再試行回数の上限に達しました",
		zap.String("operation", operation),
		zap.Int("max_attempts", m.config.MaxAttempts),
	)
	return err
}
