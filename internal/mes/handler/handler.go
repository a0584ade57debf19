package handler

import (
	"errors"
	"strconv"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/gin-gonic/gin"
)

// Handlers 处理器集合
type Handlers struct {
	Auth      *AuthHandler
	User      *UserHandler
	Part      *PartHandler
	Movement  *MovementHandler
	Fact      *FactHandler
	Task      *TaskHandler
	Machine   *MachineHandler
	Inventory *InventoryHandler
	Audit     *AuditHandler
	Upload    *UploadHandler
	SSE       *SSEHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services) *Handlers {
	return &Handlers{
		Auth:      NewAuthHandler(svc.Auth),
		User:      NewUserHandler(svc.User),
		Part:      NewPartHandler(svc.Part, svc.Movement, svc.Auth),
		Movement:  NewMovementHandler(svc.Movement, svc.Auth),
		Fact:      NewFactHandler(svc.Fact, svc.Auth),
		Task:      NewTaskHandler(svc.Task, svc.Auth),
		Machine:   NewMachineHandler(svc.Machine),
		Inventory: NewInventoryHandler(svc.Inventory, svc.Auth),
		Audit:     NewAuditHandler(svc.Audit),
		Upload:    NewUploadHandler(svc.Upload),
		SSE:       NewSSEHandler(),
	}
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// Unauthorized 未授权响应
func Unauthorized(c *gin.Context, message string) {
	Error(c, 40100, message)
}

// Forbidden 禁止访问响应
func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// Fail 按错误类型选响应码
func Fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, service.ErrForbidden):
		Forbidden(c, err.Error())
	default:
		InternalError(c, err.Error())
	}
}

// GetUserID 从上下文获取用户ID
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// GetPagination 从请求获取分页参数
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 200 {
			pageSize = v
		}
	}

	return page, pageSize
}

// CurrentUser 加载当前用户实体，不存在时直接写 401
func CurrentUser(c *gin.Context, auth *service.AuthService) (*entity.User, bool) {
	user, err := auth.GetCurrentUser(c.Request.Context(), GetUserID(c))
	if err != nil {
		Unauthorized(c, "用户不存在或已停用")
		return nil, false
	}
	return user, true
}

// ============================================================
// User Handler
// ============================================================

// UserHandler 用户处理器
type UserHandler struct {
	svc *service.UserService
}

// NewUserHandler 创建用户处理器
func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// List 获取用户列表
// GET /api/v1/users?role=xxx&active_only=true
func (h *UserHandler) List(c *gin.Context) {
	activeOnly := c.Query("active_only") == "true"
	users, err := h.svc.List(c.Request.Context(), c.Query("role"), activeOnly)
	if err != nil {
		InternalError(c, "获取用户列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": users})
}

// Get 获取用户
// GET /api/v1/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, user)
}

// Create 创建用户
// POST /api/v1/users
func (h *UserHandler) Create(c *gin.Context) {
	var in service.CreateUserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	user, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	Created(c, user)
}

// Update 更新用户
// PATCH /api/v1/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	var in service.UpdateUserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	user, err := h.svc.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, user)
}
