package repository

import (
	"context"

	"starfarm/internal/model"

	"gorm.io/gorm"
)

type BoostRepository struct {
	db *gorm.DB
}

func NewBoostRepository(db *gorm.DB) *BoostRepository {
	return &BoostRepository{db: db}
}

func (r *BoostRepository) Create(ctx context.Context, tx *gorm.DB, boost *model.Boost) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(boost).Error
}

func (r *BoostRepository) ListByUserID(ctx context.Context, userID int64) ([]*model.Boost, error) {
	var boosts []*model.Boost
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&boosts).Error
	return boosts, err
}
