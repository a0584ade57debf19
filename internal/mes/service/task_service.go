package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/bitfantasy/nimo-mes/internal/mes/sse"
)

// taskTransitions 任务状态机
var taskTransitions = map[string][]string{
	entity.TaskStatusOpen:       {entity.TaskStatusAccepted},
	entity.TaskStatusAccepted:   {entity.TaskStatusInProgress, entity.TaskStatusReview},
	entity.TaskStatusInProgress: {entity.TaskStatusReview},
	entity.TaskStatusReview:     {entity.TaskStatusDone, entity.TaskStatusInProgress},
	entity.TaskStatusDone:       {},
}

// TaskService 车间任务服务
type TaskService struct {
	repo     *repository.TaskRepository
	partRepo *repository.PartRepository
	userRepo *repository.UserRepository
	audit    *AuditService
	notify   *NotifyService
}

// NewTaskService 创建任务服务
func NewTaskService(repo *repository.TaskRepository, partRepo *repository.PartRepository,
	userRepo *repository.UserRepository, audit *AuditService, notify *NotifyService) *TaskService {
	return &TaskService{repo: repo, partRepo: partRepo, userRepo: userRepo, audit: audit, notify: notify}
}

// CreateTaskInput 创建任务输入
type CreateTaskInput struct {
	PartID       *string   `json:"part_id"`
	MachineID    *string   `json:"machine_id"`
	Stage        *string   `json:"stage"`
	Title        string    `json:"title" binding:"required"`
	Description  string    `json:"description"`
	AssigneeType string    `json:"assignee_type" binding:"required"`
	AssigneeID   *string   `json:"assignee_id"`
	AssigneeRole *string   `json:"assignee_role"`
	IsBlocker    bool      `json:"is_blocker"`
	DueDate      time.Time `json:"due_date" binding:"required"`
	Category     string    `json:"category"`
}

// Create 创建任务并向接收方扇出通知
func (s *TaskService) Create(ctx context.Context, in CreateTaskInput, creator *entity.User) (*entity.Task, error) {
	if !creator.CanCreateTasks() {
		return nil, ErrForbidden
	}
	switch in.AssigneeType {
	case entity.AssigneeUser:
		if in.AssigneeID == nil || *in.AssigneeID == "" {
			return nil, fmt.Errorf("assignee_id required for user assignment")
		}
	case entity.AssigneeRole:
		if in.AssigneeRole == nil || *in.AssigneeRole == "" {
			return nil, fmt.Errorf("assignee_role required for role assignment")
		}
	case entity.AssigneeAll:
	default:
		return nil, fmt.Errorf("unknown assignee_type: %s", in.AssigneeType)
	}
	if in.Category == "" {
		in.Category = entity.TaskCategoryGeneral
	}

	partCode := ""
	if in.PartID != nil && *in.PartID != "" {
		part, err := s.partRepo.FindByID(ctx, *in.PartID)
		if err != nil {
			return nil, fmt.Errorf("part not found: %w", err)
		}
		partCode = part.Code
	}

	task := &entity.Task{
		PartID:       in.PartID,
		MachineID:    in.MachineID,
		Stage:        in.Stage,
		Title:        in.Title,
		Description:  in.Description,
		CreatorID:    creator.ID,
		AssigneeType: in.AssigneeType,
		AssigneeID:   in.AssigneeID,
		AssigneeRole: in.AssigneeRole,
		Status:       entity.TaskStatusOpen,
		IsBlocker:    in.IsBlocker,
		DueDate:      in.DueDate,
		Category:     in.Category,
	}
	if err := s.repo.Create(ctx, task); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, Entry{
		Action:     entity.AuditTaskCreated,
		EntityType: entity.AuditEntityTask,
		EntityID:   task.ID,
		EntityName: task.Title,
		UserID:     creator.ID,
		PartID:     strOrEmpty(in.PartID),
		PartCode:   partCode,
	})

	recipients, err := s.resolveRecipients(ctx, task)
	if err == nil {
		msg := fmt.Sprintf("Новая задача: %s", task.Title)
		if partCode != "" {
			msg += fmt.Sprintf(" (партия %s)", partCode)
		}
		s.notify.NotifyTask(ctx, entity.NotifyTaskCreated, task, partCode, recipients, creator, msg)
	}

	sse.PublishTaskUpdate(task.ID, "created")
	return s.repo.FindByID(ctx, task.ID)
}

// resolveRecipients 任务接收方：指定用户 / 角色组 / 全员
func (s *TaskService) resolveRecipients(ctx context.Context, task *entity.Task) ([]entity.User, error) {
	switch task.AssigneeType {
	case entity.AssigneeUser:
		u, err := s.userRepo.FindByID(ctx, *task.AssigneeID)
		if err != nil {
			return nil, err
		}
		return []entity.User{*u}, nil
	case entity.AssigneeRole:
		return s.userRepo.ListByRoles(ctx, []string{*task.AssigneeRole})
	default:
		return s.userRepo.ListActive(ctx)
	}
}

// transition 校验并推进任务状态
func (s *TaskService) transition(task *entity.Task, next string) error {
	if task.Status == next {
		return nil
	}
	for _, allowed := range taskTransitions[task.Status] {
		if allowed == next {
			task.Status = next
			return nil
		}
	}
	return fmt.Errorf("invalid task status transition: %s -> %s", task.Status, next)
}

// Accept 接单。角色组/全员任务先到先得。
func (s *TaskService) Accept(ctx context.Context, taskID string, user *entity.User) (*entity.Task, error) {
	task, err := s.repo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.AssigneeType == entity.AssigneeUser && task.AssigneeID != nil && *task.AssigneeID != user.ID {
		return nil, ErrForbidden
	}
	if task.AcceptedByID != nil && *task.AcceptedByID != user.ID {
		return nil, fmt.Errorf("task already accepted by another user")
	}
	if err := s.transition(task, entity.TaskStatusAccepted); err != nil {
		return nil, err
	}
	now := time.Now()
	uid := user.ID
	task.AcceptedByID = &uid
	task.AcceptedAt = &now
	if err := s.repo.Update(ctx, task); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, Entry{
		Action:     entity.AuditTaskAccepted,
		EntityType: entity.AuditEntityTask,
		EntityID:   task.ID,
		EntityName: task.Title,
		UserID:     user.ID,
		PartID:     strOrEmpty(task.PartID),
	})
	s.notifyCreator(ctx, task, entity.NotifyTaskAccepted, user,
		fmt.Sprintf("Задачу «%s» принял(а) %s", task.Title, user.Name))
	sse.PublishTaskUpdate(task.ID, "accepted")
	sse.PublishUserTaskUpdate(task.CreatorID, task.ID, "accepted")
	return task, nil
}

// Start 开工
func (s *TaskService) Start(ctx context.Context, taskID string, user *entity.User) (*entity.Task, error) {
	task, err := s.repo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.AcceptedByID == nil || *task.AcceptedByID != user.ID {
		return nil, ErrForbidden
	}
	if err := s.transition(task, entity.TaskStatusInProgress); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, task); err != nil {
		return nil, err
	}
	sse.PublishTaskUpdate(task.ID, "started")
	return task, nil
}

// SendForReview 提交验收
func (s *TaskService) SendForReview(ctx context.Context, taskID string, user *entity.User) (*entity.Task, error) {
	task, err := s.repo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.AcceptedByID == nil || *task.AcceptedByID != user.ID {
		return nil, ErrForbidden
	}
	if err := s.transition(task, entity.TaskStatusReview); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, task); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, Entry{
		Action:     entity.AuditTaskSentForReview,
		EntityType: entity.AuditEntityTask,
		EntityID:   task.ID,
		EntityName: task.Title,
		UserID:     user.ID,
		PartID:     strOrEmpty(task.PartID),
	})
	s.notifyCreator(ctx, task, entity.NotifyTaskForReview, user,
		fmt.Sprintf("Задача «%s» готова к проверке", task.Title))
	sse.PublishUserTaskUpdate(task.CreatorID, task.ID, "review")
	return task, nil
}

// ReviewInput 验收输入
type ReviewInput struct {
	Approve bool   `json:"approve"`
	Comment string `json:"comment"`
}

// Review 验收：通过置 done，退回置 in_progress。只有创建者或管理员可验收。
func (s *TaskService) Review(ctx context.Context, taskID string, in ReviewInput, user *entity.User) (*entity.Task, error) {
	task, err := s.repo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.CreatorID != user.ID && user.Role != entity.RoleAdmin && user.Role != entity.RoleDirector {
		return nil, ErrForbidden
	}

	now := time.Now()
	uid := user.ID
	task.ReviewComment = in.Comment
	task.ReviewedByID = &uid
	task.ReviewedAt = &now

	if in.Approve {
		if err := s.transition(task, entity.TaskStatusDone); err != nil {
			return nil, err
		}
	} else {
		if in.Comment == "" {
			return nil, fmt.Errorf("return comment required")
		}
		if err := s.transition(task, entity.TaskStatusInProgress); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Update(ctx, task); err != nil {
		return nil, err
	}

	action := entity.AuditTaskApproved
	notifyType := entity.NotifyTaskApproved
	msg := fmt.Sprintf("Задача «%s» принята", task.Title)
	if !in.Approve {
		action = entity.AuditTaskReturned
		notifyType = entity.NotifyTaskReturned
		msg = fmt.Sprintf("Задача «%s» возвращена на доработку: %s", task.Title, in.Comment)
	}
	s.audit.Log(ctx, Entry{
		Action:     action,
		EntityType: entity.AuditEntityTask,
		EntityID:   task.ID,
		EntityName: task.Title,
		UserID:     user.ID,
		PartID:     strOrEmpty(task.PartID),
		Details:    map[string]interface{}{"comment": in.Comment},
	})
	s.notifyAcceptor(ctx, task, notifyType, user, msg)
	sse.PublishTaskUpdate(task.ID, task.Status)
	return task, nil
}

// Comment 添加评论并通知对方
func (s *TaskService) Comment(ctx context.Context, taskID, message string, user *entity.User) (*entity.TaskComment, error) {
	task, err := s.repo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if message == "" {
		return nil, fmt.Errorf("comment message required")
	}

	comment := &entity.TaskComment{
		TaskID:  task.ID,
		UserID:  user.ID,
		Message: message,
	}
	if err := s.repo.AddComment(ctx, comment); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, Entry{
		Action:     entity.AuditTaskCommentAdded,
		EntityType: entity.AuditEntityTask,
		EntityID:   task.ID,
		EntityName: task.Title,
		UserID:     user.ID,
		PartID:     strOrEmpty(task.PartID),
	})

	// 评论通知任务的另一方
	msg := fmt.Sprintf("Комментарий к задаче «%s»: %s", task.Title, message)
	if user.ID == task.CreatorID {
		s.notifyAcceptor(ctx, task, entity.NotifyTaskComment, user, msg)
	} else {
		s.notifyCreator(ctx, task, entity.NotifyTaskComment, user, msg)
	}
	sse.PublishTaskUpdate(task.ID, "commented")
	return comment, nil
}

// MarkRead 标记任务已读
func (s *TaskService) MarkRead(ctx context.Context, taskID, userID string) error {
	return s.repo.MarkRead(ctx, taskID, userID)
}

// CountUnread 未读任务数
func (s *TaskService) CountUnread(ctx context.Context, user *entity.User) (int64, error) {
	return s.repo.CountUnread(ctx, user.ID, user.Role)
}

// Get 获取任务
func (s *TaskService) Get(ctx context.Context, id string) (*entity.Task, error) {
	return s.repo.FindByID(ctx, id)
}

// List 获取任务列表
func (s *TaskService) List(ctx context.Context, page, pageSize int, filters map[string]interface{}) ([]entity.Task, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}
	return s.repo.List(ctx, page, pageSize, filters)
}

// ListForUser 用户可见任务
func (s *TaskService) ListForUser(ctx context.Context, user *entity.User, openOnly bool) ([]entity.Task, error) {
	return s.repo.ListForUser(ctx, user.ID, user.Role, openOnly)
}

// notifyCreator 通知任务创建者
func (s *TaskService) notifyCreator(ctx context.Context, task *entity.Task, typ string, triggeredBy *entity.User, msg string) {
	creator, err := s.userRepo.FindByID(ctx, task.CreatorID)
	if err != nil {
		return
	}
	s.notify.NotifyTask(ctx, typ, task, "", []entity.User{*creator}, triggeredBy, msg)
}

// notifyAcceptor 通知接单人
func (s *TaskService) notifyAcceptor(ctx context.Context, task *entity.Task, typ string, triggeredBy *entity.User, msg string) {
	if task.AcceptedByID == nil {
		return
	}
	acceptor, err := s.userRepo.FindByID(ctx, *task.AcceptedByID)
	if err != nil {
		return
	}
	s.notify.NotifyTask(ctx, typ, task, "", []entity.User{*acceptor}, triggeredBy, msg)
}

func strOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
