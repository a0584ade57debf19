package handler

import (
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/gin-gonic/gin"
)

// TaskHandler 车间任务处理器
type TaskHandler struct {
	svc  *service.TaskService
	auth *service.AuthService
}

// NewTaskHandler 创建任务处理器
func NewTaskHandler(svc *service.TaskService, auth *service.AuthService) *TaskHandler {
	return &TaskHandler{svc: svc, auth: auth}
}

// List 获取任务列表
// GET /api/v1/tasks?part_id=&status=&category=&creator_id=&blocker_only=&overdue_only=
func (h *TaskHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]interface{}{
		"part_id":    c.Query("part_id"),
		"status":     c.Query("status"),
		"category":   c.Query("category"),
		"creator_id": c.Query("creator_id"),
	}
	if c.Query("blocker_only") == "true" {
		filters["blocker_only"] = true
	}
	if c.Query("overdue_only") == "true" {
		filters["overdue_only"] = true
	}

	tasks, total, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取任务列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{
		"items": tasks,
		"total": total,
	})
}

// My 当前用户可见的任务
// GET /api/v1/tasks/my?open_only=true
func (h *TaskHandler) My(c *gin.Context) {
	user, ok := CurrentUser(c, h.auth)
	if !ok {
		return
	}
	tasks, err := h.svc.ListForUser(c.Request.Context(), user, c.Query("open_only") == "true")
	if err != nil {
		InternalError(c, "获取任务列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": tasks})
}

// UnreadCount 未读任务数
// GET /api/v1/tasks/unread-count
func (h *TaskHandler) UnreadCount(c *gin.Context) {
	user, ok := CurrentUser(c, h.auth)
	if !ok {
		return
	}
	count, err := h.svc.CountUnread(c.Request.Context(), user)
	if err != nil {
		InternalError(c, "统计未读任务失败: "+err.Error())
		return
	}
	Success(c, gin.H{"count": count})
}

// Create 创建任务
// POST /api/v1/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	user, ok := CurrentUser(c, h.auth)
	if !ok {
		return
	}

	var in service.CreateTaskInput
	if err := c.ShouldBindJSON(&in); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	task, err := h.svc.Create(c.Request.Context(), in, user)
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, task)
}

// Get 获取任务
// GET /api/v1/tasks/:id
func (h *TaskHandler) Get(c *gin.Context) {
	task, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, task)
}

// Accept 接单
// POST /api/v1/tasks/:id/accept
func (h *TaskHandler) Accept(c *gin.Context) {
	user, ok := CurrentUser(c, h.auth)
	if !ok {
		return
	}
	task, err := h.svc.Accept(c.Request.Context(), c.Param("id"), user)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, task)
}

// Start 开工
// POST /api/v1/tasks/:id/start
func (h *TaskHandler) Start(c *gin.Context) {
	user, ok := CurrentUser(c, h.auth)
	if !ok {
		return
	}
	task, err := h.svc.Start(c.Request.Context(), c.Param("id"), user)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, task)
}

// SendForReview 提交验收
// POST /api/v1/tasks/:id/submit-review
func (h *TaskHandler) SendForReview(c *gin.Context) {
	user, ok := CurrentUser(c, h.auth)
	if !ok {
		return
	}
	task, err := h.svc.SendForReview(c.Request.Context(), c.Param("id"), user)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, task)
}

// Review 验收任务
// POST /api/v1/tasks/:id/review
func (h *TaskHandler) Review(c *gin.Context) {
	user, ok := CurrentUser(c, h.auth)
	if !ok {
		return
	}

	var in service.ReviewInput
	if err := c.ShouldBindJSON(&in); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	task, err := h.svc.Review(c.Request.Context(), c.Param("id"), in, user)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, task)
}

// CommentRequest 评论请求
type CommentRequest struct {
	Message string `json:"message" binding:"required"`
}

// Comment 添加评论
// POST /api/v1/tasks/:id/comments
func (h *TaskHandler) Comment(c *gin.Context) {
	user, ok := CurrentUser(c, h.auth)
	if !ok {
		return
	}

	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	comment, err := h.svc.Comment(c.Request.Context(), c.Param("id"), req.Message, user)
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, comment)
}

// MarkRead 标记已读
// POST /api/v1/tasks/:id/read
func (h *TaskHandler) MarkRead(c *gin.Context) {
	if err := h.svc.MarkRead(c.Request.Context(), c.Param("id"), GetUserID(c)); err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"message": "read"})
}
