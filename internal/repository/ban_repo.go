package repository

import (
	"context"

	"starfarm/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BanRepository struct {
	db *gorm.DB
}

func NewBanRepository(db *gorm.DB) *BanRepository {
	return &BanRepository{db: db}
}

// Upsert 重复封禁就覆盖原因
func (r *BanRepository) Upsert(ctx context.Context, ban *model.Ban) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"reason", "banned_by"}),
		}).
		Create(ban).Error
}

func (r *BanRepository) Delete(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&model.Ban{}).Error
}

func (r *BanRepository) Exists(ctx context.Context, userID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Ban{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count > 0, err
}
