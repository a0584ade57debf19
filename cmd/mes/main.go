package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitfantasy/nimo-mes/internal/config"
	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/handler"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/bitfantasy/nimo-mes/internal/middleware"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting nimo-mes service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&entity.User{},
		&entity.Part{},
		&entity.PartStageStatus{},
		&entity.LogisticsEntry{},
		&entity.StageFact{},
		&entity.StageFactAttachment{},
		&entity.Task{},
		&entity.TaskComment{},
		&entity.TaskReadStatus{},
		&entity.TaskAttachment{},
		&entity.Machine{},
		&entity.MachineNorm{},
		&entity.InventoryItem{},
		&entity.InventoryMovement{},
		&entity.AuditEvent{},
		&entity.NotificationOutbox{},
	); err != nil {
		zapLogger.Fatal("AutoMigrate failed", zap.Error(err))
	}
	zapLogger.Info("Database migration completed")

	// 初始化Redis
	rdb := initRedis(cfg.Redis)

	// 初始化依赖
	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, rdb, cfg)
	handlers := handler.NewHandlers(services)

	// 首次启动播种管理员账号
	seedAdminUser(db, zapLogger)

	// 通知投递 worker
	workerCtx, stopWorker := context.WithCancel(context.Background())
	go services.Notify.Run(workerCtx, zapLogger)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	registerRoutes(router, handlers, cfg)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: 0, // SSE 长连接不能设写超时
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")
	stopWorker()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// seedAdminUser 空库时播种初始管理员，密码首次登录必须修改
func seedAdminUser(db *gorm.DB, zapLogger *zap.Logger) {
	var count int64
	if err := db.Model(&entity.User{}).Count(&count).Error; err != nil || count > 0 {
		return
	}

	password := config.GetEnvOrDefault("ADMIN_INITIAL_PASSWORD", "changeme123")
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		zapLogger.Warn("Failed to hash admin password", zap.Error(err))
		return
	}

	admin := &entity.User{
		Username:           "admin",
		PasswordHash:       string(hash),
		Name:               "Администратор",
		Initials:           "АД",
		Role:               entity.RoleAdmin,
		IsActive:           true,
		MustChangePassword: true,
	}
	if err := db.Create(admin).Error; err != nil {
		zapLogger.Warn("Failed to seed admin user", zap.Error(err))
		return
	}
	zapLogger.Info("Seeded initial admin user", zap.String("username", admin.Username))
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	// 对象存储回源
	uploads := r.Group("/uploads")
	uploads.Use(middleware.JWTAuth(cfg.JWT.Secret))
	{
		uploads.GET("/*path", h.Upload.Download)
	}

	// API v1
	v1 := r.Group("/api/v1")
	{
		// 认证 (无需登录)
		auth := v1.Group("/auth")
		{
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
		}

		// SSE 实时推送（需要认证，支持 query param token）
		sseGroup := v1.Group("/sse")
		sseGroup.Use(middleware.JWTAuth(cfg.JWT.Secret))
		{
			sseGroup.GET("/events", h.SSE.Stream)
		}

		// 需要认证的接口
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(cfg.JWT.Secret))
		{
			// 当前用户
			authorized.GET("/auth/me", h.Auth.Me)
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.POST("/auth/change-password", h.Auth.ChangePassword)

			// 用户管理
			users := authorized.Group("/users")
			{
				users.GET("", h.User.List)
				users.GET("/:id", h.User.Get)
			}
			usersAdmin := authorized.Group("/users")
			usersAdmin.Use(middleware.RequireRoles(entity.RoleAdmin))
			{
				usersAdmin.POST("", h.User.Create)
				usersAdmin.PATCH("/:id", h.User.Update)
			}

			// 零件批次
			parts := authorized.Group("/parts")
			{
				parts.GET("", h.Part.List)
				parts.GET("/summary", h.Part.Summary)
				parts.GET("/:id", h.Part.Get)
				parts.GET("/:id/stages", h.Part.Stages)
				parts.GET("/:id/flow", h.Part.Flow)
				parts.GET("/:id/journal", h.Part.Journal)
				parts.GET("/:id/schedule", h.Part.Schedule)
				parts.GET("/:id/movements", h.Movement.ListByPart)
				parts.GET("/:id/norms", h.Machine.NormsByPart)
				parts.POST("/:id/transfer", h.Part.Transfer)
			}
			partsManage := authorized.Group("/parts")
			partsManage.Use(middleware.RequireRoles(entity.RoleAdmin, entity.RoleDirector, entity.RoleMaster))
			{
				partsManage.POST("", h.Part.Create)
				partsManage.PATCH("/:id", h.Part.Update)
				partsManage.DELETE("/:id", h.Part.Delete)
			}

			// 物流单
			movements := authorized.Group("/movements")
			{
				movements.GET("", h.Movement.List)
				movements.GET("/:id", h.Movement.Get)
				movements.POST("", h.Movement.Create)
				movements.PATCH("/:id/status", h.Movement.UpdateStatus)
			}

			// 报工
			facts := authorized.Group("/facts")
			{
				facts.GET("", h.Fact.List)
				facts.GET("/:id", h.Fact.Get)
				facts.POST("", h.Fact.Create)
				facts.PATCH("/:id", h.Fact.Update)
				facts.DELETE("/:id", h.Fact.Delete)
				facts.POST("/:id/attachments", h.Fact.AddAttachment)
			}

			// 车间任务
			tasks := authorized.Group("/tasks")
			{
				tasks.GET("", h.Task.List)
				tasks.GET("/my", h.Task.My)
				tasks.GET("/unread-count", h.Task.UnreadCount)
				tasks.GET("/:id", h.Task.Get)
				tasks.POST("", h.Task.Create)
				tasks.POST("/:id/accept", h.Task.Accept)
				tasks.POST("/:id/start", h.Task.Start)
				tasks.POST("/:id/submit-review", h.Task.SendForReview)
				tasks.POST("/:id/review", h.Task.Review)
				tasks.POST("/:id/comments", h.Task.Comment)
				tasks.POST("/:id/read", h.Task.MarkRead)
			}

			// 机床
			machines := authorized.Group("/machines")
			{
				machines.GET("", h.Machine.List)
				machines.GET("/:id", h.Machine.Get)
			}
			machinesManage := authorized.Group("/machines")
			machinesManage.Use(middleware.RequireRoles(entity.RoleAdmin, entity.RoleDirector, entity.RoleMaster))
			{
				machinesManage.POST("", h.Machine.Create)
				machinesManage.PUT("/:id", h.Machine.Update)
				machinesManage.POST("/:id/norms", h.Machine.SetNorm)
			}

			// 库存
			inventory := authorized.Group("/inventory")
			{
				inventory.GET("", h.Inventory.List)
				inventory.GET("/:id", h.Inventory.Get)
				inventory.GET("/:id/movements", h.Inventory.Movements)
				inventory.POST("", h.Inventory.Create)
				inventory.PUT("/:id", h.Inventory.Update)
				inventory.DELETE("/:id", h.Inventory.Delete)
				inventory.POST("/:id/adjust", h.Inventory.Adjust)
			}

			// 审计日志
			audit := authorized.Group("/audit")
			audit.Use(middleware.RequireRoles(entity.RoleAdmin, entity.RoleDirector))
			{
				audit.GET("", h.Audit.List)
				audit.GET("/export", h.Audit.Export)
				audit.GET("/entity/:type/:id", h.Audit.ListByEntity)
			}

			// 文件上传
			authorized.POST("/upload", h.Upload.Upload)
		}
	}
}
