package service

import (
	"context"
	"fmt"

	"github.com/bitfantasy/nimo-mes/internal/config"
	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/bitfantasy/nimo-mes/internal/shared/telegram"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// Services 服务集合
type Services struct {
	Auth      *AuthService
	User      *UserService
	Part      *PartService
	Movement  *MovementService
	Fact      *FactService
	Task      *TaskService
	Machine   *MachineService
	Inventory *InventoryService
	Audit     *AuditService
	Upload    *UploadService
	Notify    *NotifyService
}

// NewServices 创建服务集合
func NewServices(repos *repository.Repositories, rdb *redis.Client, cfg *config.Config) *Services {
	// 初始化 Telegram 客户端
	var tg *telegram.Client
	if cfg.Telegram.BotToken != "" {
		tg = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.APIBase)
	}

	// 初始化MinIO客户端
	var minioClient *minio.Client
	if cfg.MinIO.Endpoint != "" {
		var err error
		minioClient, err = minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			minioClient = nil
		}
	}

	auditSvc := NewAuditService(repos.Audit, repos.User)
	machineSvc := NewMachineService(repos.Machine, repos.Part, auditSvc)
	partSvc := NewPartService(repos.Part, repos.Fact, repos.Movement, repos.Task, machineSvc, auditSvc, rdb)
	notifySvc := NewNotifyService(repos.Outbox, repos.User, tg, cfg)

	return &Services{
		Auth:      NewAuthService(repos.User, auditSvc, rdb, cfg),
		User:      NewUserService(repos.User),
		Part:      partSvc,
		Movement:  NewMovementService(repos.Movement, repos.Part, partSvc, auditSvc),
		Fact:      NewFactService(repos.Fact, repos.Part, repos.Machine, partSvc, auditSvc, notifySvc),
		Task:      NewTaskService(repos.Task, repos.Part, repos.User, auditSvc, notifySvc),
		Machine:   machineSvc,
		Inventory: NewInventoryService(repos.Inventory, auditSvc),
		Audit:     auditSvc,
		Upload:    NewUploadService(minioClient, cfg.MinIO.Bucket),
		Notify:    notifySvc,
	}
}

// UserService 用户服务
type UserService struct {
	repo *repository.UserRepository
}

// NewUserService 创建用户服务
func NewUserService(repo *repository.UserRepository) *UserService {
	return &UserService{repo: repo}
}

// List 获取用户列表
func (s *UserService) List(ctx context.Context, role string, activeOnly bool) ([]entity.User, error) {
	return s.repo.List(ctx, role, activeOnly)
}

// Get 获取用户
func (s *UserService) Get(ctx context.Context, id string) (*entity.User, error) {
	return s.repo.FindByID(ctx, id)
}

// CreateUserInput 创建用户输入
type CreateUserInput struct {
	Username       string `json:"username" binding:"required"`
	Password       string `json:"password" binding:"required"`
	Name           string `json:"name" binding:"required"`
	Initials       string `json:"initials"`
	Role           string `json:"role" binding:"required"`
	TelegramChatID string `json:"telegram_chat_id"`
	Email          string `json:"email"`
}

// Create 创建用户。初始密码由管理员下发，首次登录强制改密。
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*entity.User, error) {
	switch in.Role {
	case entity.RoleAdmin, entity.RoleDirector, entity.RoleMaster,
		entity.RoleOperator, entity.RoleLogist, entity.RoleQC:
	default:
		return nil, fmt.Errorf("unknown role: %s", in.Role)
	}
	if len(in.Password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}
	if _, err := s.repo.FindByUsername(ctx, in.Username); err == nil {
		return nil, fmt.Errorf("username already taken: %s", in.Username)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &entity.User{
		Username:           in.Username,
		PasswordHash:       string(hash),
		Name:               in.Name,
		Initials:           in.Initials,
		Role:               in.Role,
		TelegramChatID:     in.TelegramChatID,
		Email:              in.Email,
		IsActive:           true,
		MustChangePassword: true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateUserInput 更新用户输入，nil 字段不动
type UpdateUserInput struct {
	Name           *string `json:"name"`
	Initials       *string `json:"initials"`
	Role           *string `json:"role"`
	TelegramChatID *string `json:"telegram_chat_id"`
	Email          *string `json:"email"`
	IsActive       *bool   `json:"is_active"`
}

// Update 更新用户。停用时顺带吊销已签发 token。
func (s *UserService) Update(ctx context.Context, id string, in UpdateUserInput) (*entity.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		user.Name = *in.Name
	}
	if in.Initials != nil {
		user.Initials = *in.Initials
	}
	if in.Role != nil {
		user.Role = *in.Role
	}
	if in.TelegramChatID != nil {
		user.TelegramChatID = *in.TelegramChatID
	}
	if in.Email != nil {
		user.Email = *in.Email
	}
	deactivated := false
	if in.IsActive != nil {
		deactivated = user.IsActive && !*in.IsActive
		user.IsActive = *in.IsActive
	}
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}
	if deactivated {
		if err := s.repo.BumpTokenVersion(ctx, id); err != nil {
			return nil, err
		}
	}
	return s.repo.FindByID(ctx, id)
}
