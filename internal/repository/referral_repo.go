package repository

import (
	"context"
	"errors"

	"starfarm/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrSelfReferral       = errors.New("不能使用自己的邀请链接")
	ErrDuplicateReferral  = errors.New("该用户已经被邀请过")
	ErrRewardAlreadyGiven = errors.New("邀请奖励已发放")
)

type ReferralRepository struct {
	db *gorm.DB
}

func NewReferralRepository(db *gorm.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// Create 登记邀请关系
// referred_id 的唯一索引 + OnConflict DoNothing 让并发登记时先写者胜：
// 插入影响 0 行说明链接已经存在
func (r *ReferralRepository) Create(ctx context.Context, referrerID, referredID int64) error {
	if referrerID == referredID {
		return ErrSelfReferral
	}

	referral := &model.Referral{
		ReferrerID:  referrerID,
		ReferredID:  referredID,
		RewardGiven: false,
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "referred_id"}},
			DoNothing: true,
		}).
		Create(referral)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDuplicateReferral
	}
	return nil
}

func (r *ReferralRepository) GetByReferredID(ctx context.Context, referredID int64) (*model.Referral, error) {
	var referral model.Referral
	err := r.db.WithContext(ctx).Where("referred_id = ?", referredID).First(&referral).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &referral, nil
}

// MarkRewarded 把 reward_given 从 false 翻成 true
// WHERE reward_given = 0 的条件保证并发发奖时只有一个调用翻转成功，
// 影响 0 行就说明没有链接或者奖励已经发过了
func (r *ReferralRepository) MarkRewarded(ctx context.Context, tx *gorm.DB, referredID int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Referral{}).
		Where("referred_id = ? AND reward_given = ?", referredID, false).
		Update("reward_given", true)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRewardAlreadyGiven
	}
	return nil
}

func (r *ReferralRepository) CountByReferrerID(ctx context.Context, referrerID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Referral{}).
		Where("referrer_id = ?", referrerID).
		Count(&count).Error
	return count, err
}
