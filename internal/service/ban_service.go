package service

import (
	"context"

	"starfarm/internal/model"
	"starfarm/internal/repository"

	"gorm.io/gorm"
)

// BanService 封禁名单，管理员专用
type BanService struct {
	banRepo *repository.BanRepository
}

func NewBanService(db *gorm.DB) *BanService {
	return &BanService{banRepo: repository.NewBanRepository(db)}
}

// Ban 封禁用户，重复封禁只更新原因
func (s *BanService) Ban(ctx context.Context, userID, bannedBy int64, reason string) error {
	return s.banRepo.Upsert(ctx, &model.Ban{
		UserID:   userID,
		Reason:   reason,
		BannedBy: bannedBy,
	})
}

// Unban 解封，不存在时静默成功
func (s *BanService) Unban(ctx context.Context, userID int64) error {
	return s.banRepo.Delete(ctx, userID)
}

func (s *BanService) IsBanned(ctx context.Context, userID int64) (bool, error) {
	return s.banRepo.Exists(ctx, userID)
}
