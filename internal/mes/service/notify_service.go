package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/config"
	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/bitfantasy/nimo-mes/internal/shared/telegram"
	"go.uber.org/zap"
)

// NotifyService 通知服务：发件箱入队 + 后台投递 worker。
// 入队失败不打断业务流程；投递失败按指数退避重试。
type NotifyService struct {
	outbox   *repository.OutboxRepository
	userRepo *repository.UserRepository
	tg       *telegram.Client
	cfg      *config.Config
}

// NewNotifyService 创建通知服务
func NewNotifyService(outbox *repository.OutboxRepository, userRepo *repository.UserRepository,
	tg *telegram.Client, cfg *config.Config) *NotifyService {
	return &NotifyService{outbox: outbox, userRepo: userRepo, tg: tg, cfg: cfg}
}

// NotifyUsers 给指定用户入队通知，跳过触发者本人
func (s *NotifyService) NotifyUsers(ctx context.Context, typ, refID string, recipients []entity.User, triggeredBy *entity.User, message string) {
	for _, u := range recipients {
		if triggeredBy != nil && u.ID == triggeredBy.ID {
			continue
		}
		n := &entity.NotificationOutbox{
			Type:            typ,
			RecipientUserID: u.ID,
			RecipientChatID: u.TelegramChatID,
			Message:         message,
			Status:          entity.NotifyStatusPending,
			IdempotencyKey:  fmt.Sprintf("%s:%s:%s", typ, refID, u.ID),
		}
		if triggeredBy != nil {
			tid := triggeredBy.ID
			n.TriggeredByID = &tid
			n.TriggeredByName = triggeredBy.Name
		}
		// 入队失败只能丢弃，通知不是强一致的
		_ = s.outbox.Enqueue(ctx, n)
	}
}

// NotifyRoles 给角色组全部启用用户入队通知
func (s *NotifyService) NotifyRoles(ctx context.Context, typ, refID string, roles []string, triggeredBy *entity.User, message string) {
	users, err := s.userRepo.ListByRoles(ctx, roles)
	if err != nil {
		return
	}
	s.NotifyUsers(ctx, typ, refID, users, triggeredBy, message)
}

// NotifyTask 任务相关通知，快照任务字段方便排查
func (s *NotifyService) NotifyTask(ctx context.Context, typ string, task *entity.Task, partCode string, recipients []entity.User, triggeredBy *entity.User, message string) {
	for _, u := range recipients {
		if triggeredBy != nil && u.ID == triggeredBy.ID {
			continue
		}
		tid := task.ID
		n := &entity.NotificationOutbox{
			Type:            typ,
			TaskID:          &tid,
			TaskTitle:       task.Title,
			PartCode:        partCode,
			RecipientUserID: u.ID,
			RecipientChatID: u.TelegramChatID,
			Message:         message,
			Status:          entity.NotifyStatusPending,
			IdempotencyKey:  fmt.Sprintf("%s:%s:%s", typ, task.ID, u.ID),
		}
		if triggeredBy != nil {
			trid := triggeredBy.ID
			n.TriggeredByID = &trid
			n.TriggeredByName = triggeredBy.Name
		}
		_ = s.outbox.Enqueue(ctx, n)
	}
}

// Run 投递 worker，阻塞直到 ctx 取消
func (s *NotifyService) Run(ctx context.Context, logger *zap.Logger) {
	interval := s.cfg.Notify.PollInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.deliverBatch(ctx, logger)
		}
	}
}

// deliverBatch 取一批到期通知并投递
func (s *NotifyService) deliverBatch(ctx context.Context, logger *zap.Logger) {
	batchSize := s.cfg.Notify.BatchSize
	if batchSize <= 0 {
		batchSize = 20
	}
	batch, err := s.outbox.FetchDue(ctx, batchSize)
	if err != nil {
		logger.Warn("notify: fetch due failed", zap.Error(err))
		return
	}

	for _, n := range batch {
		if s.tg == nil || n.RecipientChatID == "" {
			if err := s.outbox.MarkSkipped(ctx, n.ID); err != nil {
				logger.Warn("notify: mark skipped failed", zap.String("id", n.ID), zap.Error(err))
			}
			continue
		}

		if err := s.tg.SendMessage(ctx, n.RecipientChatID, n.Message); err != nil {
			attempts := n.Attempts + 1
			backoff := s.cfg.Notify.RetryBackoff
			if backoff <= 0 {
				backoff = time.Minute
			}
			// 指数退避：1m, 2m, 4m, ...
			nextRetry := time.Now().Add(backoff << (attempts - 1))
			if merr := s.outbox.MarkFailed(ctx, n.ID, attempts, s.cfg.Notify.MaxAttempts, nextRetry, err.Error()); merr != nil {
				logger.Warn("notify: mark failed failed", zap.String("id", n.ID), zap.Error(merr))
			}
			logger.Warn("notify: delivery failed",
				zap.String("id", n.ID), zap.Int("attempts", attempts), zap.Error(err))
			continue
		}

		if err := s.outbox.MarkSent(ctx, n.ID); err != nil {
			logger.Warn("notify: mark sent failed", zap.String("id", n.ID), zap.Error(err))
		}
	}
}
