package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"gorm.io/gorm"
)

// UserRepository 用户仓库
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建用户仓库
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID 根据ID查找用户
func (r *UserRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	var user entity.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindByUsername 根据用户名查找用户
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	var user entity.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Create 创建用户
func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// Update 更新用户
func (r *UserRepository) Update(ctx context.Context, user *entity.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

// List 获取用户列表
func (r *UserRepository) List(ctx context.Context, role string, activeOnly bool) ([]entity.User, error) {
	var users []entity.User
	query := r.db.WithContext(ctx).Model(&entity.User{})
	if role != "" {
		query = query.Where("role = ?", role)
	}
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("name ASC").Find(&users).Error
	return users, err
}

// ListByRoles 按角色批量查询用户
func (r *UserRepository) ListByRoles(ctx context.Context, roles []string) ([]entity.User, error) {
	var users []entity.User
	if len(roles) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).
		Where("role IN ? AND is_active = ?", roles, true).
		Find(&users).Error
	return users, err
}

// ListActive 获取所有启用用户
func (r *UserRepository) ListActive(ctx context.Context) ([]entity.User, error) {
	var users []entity.User
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Find(&users).Error
	return users, err
}

// BumpTokenVersion 使该用户已签发的 token 全部失效
func (r *UserRepository) BumpTokenVersion(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&entity.User{}).
		Where("id = ?", id).
		Update("token_version", gorm.Expr("token_version + 1")).Error
}
