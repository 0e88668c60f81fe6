package service

import (
	"context"
	"errors"
	"fmt"

	"starfarm/internal/config"
	"starfarm/internal/model"
	"starfarm/internal/repository"
	"starfarm/pkg/clock"

	"gorm.io/gorm"
)

var ErrUnknownBoostType = errors.New("未知的道具类型")

// BoostService 增益道具
type BoostService struct {
	db         *gorm.DB
	cfg        *config.Config
	boostRepo  *repository.BoostRepository
	accountSvc *AccountService
}

func NewBoostService(db *gorm.DB, cfg *config.Config, clk clock.Clock) *BoostService {
	return &BoostService{
		db:         db,
		cfg:        cfg,
		boostRepo:  repository.NewBoostRepository(db),
		accountSvc: NewAccountService(db, cfg, clk),
	}
}

// TotalMultiplier 账户的总收益倍率：所有持有道具倍率的乘积
// 乘法满足交换律，结果与购买顺序无关；一件道具都没有时恰好是 1.0
func (s *BoostService) TotalMultiplier(ctx context.Context, userID int64) (float64, error) {
	boosts, err := s.boostRepo.ListByUserID(ctx, userID)
	if err != nil {
		return 0, err
	}

	total := 1.0
	for _, boost := range boosts {
		if bt, ok := s.cfg.Catalog.BoostType(boost.BoostType); ok {
			total *= bt.Multiplier
		}
	}
	return total, nil
}

// BuyBoost 购买道具：扣款和发货在同一个事务里，扣款失败什么都不会发生
func (s *BoostService) BuyBoost(ctx context.Context, userID int64, boostType string) (*model.Boost, error) {
	bt, ok := s.cfg.Catalog.BoostType(boostType)
	if !ok {
		return nil, ErrUnknownBoostType
	}

	if _, err := s.accountSvc.GetAccount(ctx, userID); err != nil {
		return nil, err
	}

	var boost *model.Boost
	err := runTxWithRetry(s.db, s.cfg.Game.MaxRetryCount, func(tx *gorm.DB) error {
		if err := s.accountSvc.Debit(ctx, tx, userID, bt.Price, model.TransactionTypePurchase, fmt.Sprintf("购买道具-%s", boostType)); err != nil {
			return err
		}
		boost = &model.Boost{
			UserID:    userID,
			BoostType: boostType,
		}
		return s.boostRepo.Create(ctx, tx, boost)
	})
	if err != nil {
		return nil, err
	}
	return boost, nil
}

// GrantBoost 管理员发放，不走余额
func (s *BoostService) GrantBoost(ctx context.Context, userID int64, boostType string) (*model.Boost, error) {
	if _, ok := s.cfg.Catalog.BoostType(boostType); !ok {
		return nil, ErrUnknownBoostType
	}
	boost := &model.Boost{
		UserID:    userID,
		BoostType: boostType,
	}
	if err := s.boostRepo.Create(ctx, nil, boost); err != nil {
		return nil, err
	}
	return boost, nil
}

func (s *BoostService) ListBoosts(ctx context.Context, userID int64) ([]*model.Boost, error) {
	return s.boostRepo.ListByUserID(ctx, userID)
}
