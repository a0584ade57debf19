package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"gorm.io/gorm"
)

// OutboxRepository 通知发件箱仓库
type OutboxRepository struct {
	db *gorm.DB
}

// NewOutboxRepository 创建通知发件箱仓库
func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Enqueue 入队，幂等键冲突静默跳过
func (r *OutboxRepository) Enqueue(ctx context.Context, n *entity.NotificationOutbox) error {
	err := r.db.WithContext(ctx).Create(n).Error
	if err != nil && isUniqueViolation(err) {
		return nil
	}
	return err
}

// FetchDue 取一批到期的 pending 通知，SKIP LOCKED 支持多 worker
func (r *OutboxRepository) FetchDue(ctx context.Context, limit int) ([]entity.NotificationOutbox, error) {
	var batch []entity.NotificationOutbox
	err := r.db.WithContext(ctx).
		Raw(`
			SELECT * FROM notification_outbox
			WHERE status = ? AND (next_retry_at IS NULL OR next_retry_at <= NOW())
			ORDER BY created_at ASC
			LIMIT ?
			FOR UPDATE SKIP LOCKED
		`, entity.NotifyStatusPending, limit).
		Scan(&batch).Error
	return batch, err
}

// MarkSent 标记已投递
func (r *OutboxRepository) MarkSent(ctx context.Context, id string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&entity.NotificationOutbox{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":  entity.NotifyStatusSent,
			"sent_at": now,
		}).Error
}

// MarkSkipped 收件人无 chat_id，跳过
func (r *OutboxRepository) MarkSkipped(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&entity.NotificationOutbox{}).
		Where("id = ?", id).
		Update("status", entity.NotifyStatusSkipped).Error
}

// MarkFailed 记录失败，未到重试上限则排下次重试
func (r *OutboxRepository) MarkFailed(ctx context.Context, id string, attempts int, maxAttempts int, nextRetry time.Time, lastErr string) error {
	updates := map[string]interface{}{
		"attempts":   attempts,
		"last_error": lastErr,
	}
	if attempts >= maxAttempts {
		updates["status"] = entity.NotifyStatusFailed
		updates["failed_at"] = time.Now()
	} else {
		updates["next_retry_at"] = nextRetry
	}
	return r.db.WithContext(ctx).
		Model(&entity.NotificationOutbox{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "duplicate key")
}
