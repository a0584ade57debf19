package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"gorm.io/gorm"
)

// MachineRepository 机床仓库
type MachineRepository struct {
	db *gorm.DB
}

// NewMachineRepository 创建机床仓库
func NewMachineRepository(db *gorm.DB) *MachineRepository {
	return &MachineRepository{db: db}
}

// FindByID 根据ID查找机床
func (r *MachineRepository) FindByID(ctx context.Context, id string) (*entity.Machine, error) {
	var machine entity.Machine
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&machine).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &machine, nil
}

// Create 创建机床
func (r *MachineRepository) Create(ctx context.Context, machine *entity.Machine) error {
	return r.db.WithContext(ctx).Create(machine).Error
}

// Update 更新机床
func (r *MachineRepository) Update(ctx context.Context, machine *entity.Machine) error {
	return r.db.WithContext(ctx).Save(machine).Error
}

// List 获取机床列表
func (r *MachineRepository) List(ctx context.Context, department string, activeOnly bool) ([]entity.Machine, error) {
	var machines []entity.Machine
	query := r.db.WithContext(ctx).Model(&entity.Machine{})
	if department != "" {
		query = query.Where("department = ?", department)
	}
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("name ASC").Find(&machines).Error
	return machines, err
}

// FindNorm 查机床+零件+工序的定额
func (r *MachineRepository) FindNorm(ctx context.Context, machineID, partID, stage string) (*entity.MachineNorm, error) {
	var norm entity.MachineNorm
	err := r.db.WithContext(ctx).
		Where("machine_id = ? AND part_id = ? AND stage = ?", machineID, partID, stage).
		First(&norm).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &norm, nil
}

// UpsertNorm 插入或更新定额
func (r *MachineRepository) UpsertNorm(ctx context.Context, norm *entity.MachineNorm) error {
	return r.db.WithContext(ctx).Exec(`
		INSERT INTO machine_norms (id, machine_id, part_id, stage, qty_per_shift, is_configured, configured_at, configured_by_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, true, NOW(), ?, NOW(), NOW())
		ON CONFLICT (machine_id, part_id, stage) DO UPDATE SET
			qty_per_shift = EXCLUDED.qty_per_shift,
			is_configured = true,
			configured_at = NOW(),
			configured_by_id = EXCLUDED.configured_by_id,
			updated_at = NOW()
	`, norm.ID, norm.MachineID, norm.PartID, norm.Stage, norm.QtyPerShift, norm.ConfiguredByID).Error
}

// ListNormsByPart 获取零件全部定额
func (r *MachineRepository) ListNormsByPart(ctx context.Context, partID string) ([]entity.MachineNorm, error) {
	var norms []entity.MachineNorm
	err := r.db.WithContext(ctx).
		Where("part_id = ?", partID).
		Find(&norms).Error
	return norms, err
}
