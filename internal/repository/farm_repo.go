package repository

import (
	"context"
	"time"

	"starfarm/internal/model"

	"gorm.io/gorm"
)

type FarmRepository struct {
	db *gorm.DB
}

func NewFarmRepository(db *gorm.DB) *FarmRepository {
	return &FarmRepository{db: db}
}

func (r *FarmRepository) Create(ctx context.Context, tx *gorm.DB, farm *model.Farm) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(farm).Error
}

func (r *FarmRepository) ListByUserID(ctx context.Context, userID int64) ([]*model.Farm, error) {
	var farms []*model.Farm
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&farms).Error
	return farms, err
}

// MarkActivated 盖激活时间戳并置为激活态
func (r *FarmRepository) MarkActivated(ctx context.Context, tx *gorm.DB, farmID int64, t time.Time) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Model(&model.Farm{}).
		Where("id = ?", farmID).
		Updates(map[string]interface{}{
			"last_activated": t,
			"is_active":      true,
		}).Error
}

// Deactivate 惰性翻转：产出窗口已过的农场在下一次被读到时落回未激活态
func (r *FarmRepository) Deactivate(ctx context.Context, tx *gorm.DB, farmID int64) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Model(&model.Farm{}).
		Where("id = ?", farmID).
		Update("is_active", false).Error
}
