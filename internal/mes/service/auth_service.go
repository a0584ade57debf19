package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/config"
	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// 登录限流参数：同一用户名连续失败后短暂封禁
const (
	loginMaxFailures   = 5
	loginFailureWindow = 10 * time.Minute
	loginLockDuration  = 15 * time.Minute
)

var (
	// ErrInvalidCredentials 用户名或密码错误
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrLoginRateLimited 登录尝试过于频繁
	ErrLoginRateLimited = errors.New("too many login attempts, try again later")
	// ErrUserDisabled 账号已停用
	ErrUserDisabled = errors.New("user account is disabled")
)

// AuthService 认证服务
type AuthService struct {
	userRepo *repository.UserRepository
	audit    *AuditService
	rdb      *redis.Client
	cfg      *config.Config
}

// NewAuthService 创建认证服务
func NewAuthService(userRepo *repository.UserRepository, audit *AuditService, rdb *redis.Client, cfg *config.Config) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		audit:    audit,
		rdb:      rdb,
		cfg:      cfg,
	}
}

// TokenPair Token对
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Login 用户名密码登录
func (s *AuthService) Login(ctx context.Context, username, password string) (*entity.User, *TokenPair, error) {
	if locked, err := s.isLocked(ctx, username); err == nil && locked {
		s.audit.Log(ctx, Entry{
			Action:     entity.AuditLoginRateLimited,
			EntityType: entity.AuditEntityUser,
			EntityID:   username,
			EntityName: username,
		})
		return nil, nil, ErrLoginRateLimited
	}

	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.recordFailure(ctx, username)
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if !user.IsActive {
		return nil, nil, ErrUserDisabled
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.recordFailure(ctx, username)
		s.audit.Log(ctx, Entry{
			Action:     entity.AuditLoginFailed,
			EntityType: entity.AuditEntityUser,
			EntityID:   user.ID,
			EntityName: user.Username,
		})
		return nil, nil, ErrInvalidCredentials
	}

	s.clearFailures(ctx, username)

	pair, err := s.generateTokenPair(user)
	if err != nil {
		return nil, nil, err
	}

	s.audit.Log(ctx, Entry{
		Action:     entity.AuditUserLogin,
		EntityType: entity.AuditEntityUser,
		EntityID:   user.ID,
		EntityName: user.Username,
		UserID:     user.ID,
	})
	return user, pair, nil
}

// isLocked 是否处于登录封禁期
func (s *AuthService) isLocked(ctx context.Context, username string) (bool, error) {
	n, err := s.rdb.Exists(ctx, "auth:lock:"+username).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// recordFailure 记一次失败，超阈值则上锁
func (s *AuthService) recordFailure(ctx context.Context, username string) {
	key := "auth:fail:" + username
	count, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return
	}
	if count == 1 {
		s.rdb.Expire(ctx, key, loginFailureWindow)
	}
	if count >= loginMaxFailures {
		s.rdb.Set(ctx, "auth:lock:"+username, "1", loginLockDuration)
		s.rdb.Del(ctx, key)
	}
}

func (s *AuthService) clearFailures(ctx context.Context, username string) {
	s.rdb.Del(ctx, "auth:fail:"+username)
}

// generateTokenPair 生成Token对
func (s *AuthService) generateTokenPair(user *entity.User) (*TokenPair, error) {
	now := time.Now()

	accessClaims := jwt.MapClaims{
		"sub":  user.ID,
		"uid":  user.ID,
		"name": user.Name,
		"role": user.Role,
		"tv":   user.TokenVersion,
		"iss":  s.cfg.JWT.Issuer,
		"iat":  now.Unix(),
		"exp":  now.Add(s.cfg.JWT.AccessTokenExpire).Unix(),
		"jti":  uuid.New().String(),
	}
	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims)
	accessTokenString, err := accessToken.SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshJti := uuid.New().String()
	refreshClaims := jwt.MapClaims{
		"sub":  user.ID,
		"type": "refresh",
		"tv":   user.TokenVersion,
		"iss":  s.cfg.JWT.Issuer,
		"iat":  now.Unix(),
		"exp":  now.Add(s.cfg.JWT.RefreshTokenExpire).Unix(),
		"jti":  refreshJti,
	}
	refreshToken := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims)
	refreshTokenString, err := refreshToken.SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	// 存储Refresh Token到Redis
	ctx := context.Background()
	s.rdb.Set(ctx, "token:refresh:"+refreshJti, user.ID, s.cfg.JWT.RefreshTokenExpire)

	return &TokenPair{
		AccessToken:  accessTokenString,
		RefreshToken: refreshTokenString,
		ExpiresIn:    int64(s.cfg.JWT.AccessTokenExpire.Seconds()),
	}, nil
}

// RefreshToken 刷新Token
func (s *AuthService) RefreshToken(ctx context.Context, refreshTokenString string) (*TokenPair, error) {
	token, err := jwt.Parse(refreshTokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWT.Secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims["type"] != "refresh" {
		return nil, fmt.Errorf("invalid token type")
	}

	jti, _ := claims["jti"].(string)
	userID, err := s.rdb.Get(ctx, "token:refresh:"+jti).Result()
	if err != nil {
		return nil, fmt.Errorf("refresh token expired or invalid")
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user not found")
	}

	// 改密后旧 token 作废
	if tv, ok := claims["tv"].(float64); ok && int(tv) != user.TokenVersion {
		s.rdb.Del(ctx, "token:refresh:"+jti)
		return nil, fmt.Errorf("refresh token revoked")
	}

	s.rdb.Del(ctx, "token:refresh:"+jti)
	return s.generateTokenPair(user)
}

// ChangePassword 修改密码并吊销全部已签发 token
func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return ErrInvalidCredentials
	}
	if len(newPassword) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := time.Now()
	user.PasswordHash = string(hash)
	user.PasswordChangedAt = &now
	user.MustChangePassword = false
	user.TokenVersion++
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}

	s.audit.Log(ctx, Entry{
		Action:     entity.AuditPasswordChanged,
		EntityType: entity.AuditEntityUser,
		EntityID:   user.ID,
		EntityName: user.Username,
		UserID:     user.ID,
	})
	return nil
}

// Logout 登出
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	s.audit.Log(ctx, Entry{
		Action:     entity.AuditUserLogout,
		EntityType: entity.AuditEntityUser,
		EntityID:   user.ID,
		EntityName: user.Username,
		UserID:     user.ID,
	})
	return nil
}

// GetCurrentUser 获取当前用户
func (s *AuthService) GetCurrentUser(ctx context.Context, userID string) (*entity.User, error) {
	return s.userRepo.FindByID(ctx, userID)
}
