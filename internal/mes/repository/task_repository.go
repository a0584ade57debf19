package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"gorm.io/gorm"
)

// TaskRepository 任务仓库
type TaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository 创建任务仓库
func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// FindByID 根据ID查找任务
func (r *TaskRepository) FindByID(ctx context.Context, id string) (*entity.Task, error) {
	var task entity.Task
	err := r.db.WithContext(ctx).
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("task_comments.created_at ASC")
		}).
		Preload("Comments.Attachments").
		Where("id = ?", id).
		First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &task, nil
}

// Create 创建任务
func (r *TaskRepository) Create(ctx context.Context, task *entity.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

// Update 更新任务
func (r *TaskRepository) Update(ctx context.Context, task *entity.Task) error {
	return r.db.WithContext(ctx).Save(task).Error
}

// List 获取任务列表（分页）
func (r *TaskRepository) List(ctx context.Context, page, pageSize int, filters map[string]interface{}) ([]entity.Task, int64, error) {
	var tasks []entity.Task
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Task{})

	if partID, ok := filters["part_id"].(string); ok && partID != "" {
		query = query.Where("part_id = ?", partID)
	}
	if status, ok := filters["status"].(string); ok && status != "" {
		query = query.Where("status = ?", status)
	}
	if category, ok := filters["category"].(string); ok && category != "" {
		query = query.Where("category = ?", category)
	}
	if creatorID, ok := filters["creator_id"].(string); ok && creatorID != "" {
		query = query.Where("creator_id = ?", creatorID)
	}
	if blockerOnly, ok := filters["blocker_only"].(bool); ok && blockerOnly {
		query = query.Where("is_blocker = ?", true)
	}
	if overdueOnly, ok := filters["overdue_only"].(bool); ok && overdueOnly {
		query = query.Where("due_date < ? AND status <> ?", time.Now(), entity.TaskStatusDone)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("is_blocker DESC, due_date ASC, created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&tasks).Error

	return tasks, total, err
}

// ListForUser 用户可见的任务：指派给本人、本人角色组或所有人
func (r *TaskRepository) ListForUser(ctx context.Context, userID, role string, openOnly bool) ([]entity.Task, error) {
	var tasks []entity.Task
	query := r.db.WithContext(ctx).
		Where("(assignee_type = ? AND assignee_id = ?) OR (assignee_type = ? AND assignee_role = ?) OR assignee_type = ? OR accepted_by_id = ?",
			entity.AssigneeUser, userID, entity.AssigneeRole, role, entity.AssigneeAll, userID)
	if openOnly {
		query = query.Where("status <> ?", entity.TaskStatusDone)
	}
	err := query.
		Order("is_blocker DESC, due_date ASC").
		Find(&tasks).Error
	return tasks, err
}

// ListByPart 获取零件全部任务
func (r *TaskRepository) ListByPart(ctx context.Context, partID string) ([]entity.Task, error) {
	var tasks []entity.Task
	err := r.db.WithContext(ctx).
		Where("part_id = ?", partID).
		Order("created_at DESC").
		Find(&tasks).Error
	return tasks, err
}

// AddComment 添加评论
func (r *TaskRepository) AddComment(ctx context.Context, comment *entity.TaskComment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

// ListComments 获取任务评论
func (r *TaskRepository) ListComments(ctx context.Context, taskID string) ([]entity.TaskComment, error) {
	var comments []entity.TaskComment
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Preload("Attachments").
		Order("created_at ASC").
		Find(&comments).Error
	return comments, err
}

// MarkRead 标记任务已读，重复标记只刷新时间
func (r *TaskRepository) MarkRead(ctx context.Context, taskID, userID string) error {
	return r.db.WithContext(ctx).Exec(`
		INSERT INTO task_read_status (task_id, user_id, read_at)
		VALUES (?, ?, NOW())
		ON CONFLICT (task_id, user_id) DO UPDATE SET read_at = NOW()
	`, taskID, userID).Error
}

// CountUnread 用户未读任务数
func (r *TaskRepository) CountUnread(ctx context.Context, userID, role string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Task{}).
		Where("(assignee_type = ? AND assignee_id = ?) OR (assignee_type = ? AND assignee_role = ?) OR assignee_type = ?",
			entity.AssigneeUser, userID, entity.AssigneeRole, role, entity.AssigneeAll).
		Where("status <> ?", entity.TaskStatusDone).
		Where("id NOT IN (SELECT task_id FROM task_read_status WHERE user_id = ?)", userID).
		Count(&count).Error
	return count, err
}

// AddAttachment 添加任务附件
func (r *TaskRepository) AddAttachment(ctx context.Context, att *entity.TaskAttachment) error {
	return r.db.WithContext(ctx).Create(att).Error
}

// ListAttachments 获取任务直挂附件
func (r *TaskRepository) ListAttachments(ctx context.Context, taskID string) ([]entity.TaskAttachment, error) {
	var atts []entity.TaskAttachment
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at ASC").
		Find(&atts).Error
	return atts, err
}
