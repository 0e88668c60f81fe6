package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"starfarm/internal/config"
	"starfarm/internal/model"
	"starfarm/internal/repository"
	"starfarm/pkg/clock"

	"gorm.io/gorm"
)

// ReferralService 邀请关系和一次性奖励
type ReferralService struct {
	db           *gorm.DB
	cfg          *config.Config
	clk          clock.Clock
	referralRepo *repository.ReferralRepository
	accountSvc   *AccountService
	outboxRepo   *repository.OutboxRepository
}

func NewReferralService(db *gorm.DB, cfg *config.Config, clk clock.Clock) *ReferralService {
	return &ReferralService{
		db:           db,
		cfg:          cfg,
		clk:          clk,
		referralRepo: repository.NewReferralRepository(db),
		accountSvc:   NewAccountService(db, cfg, clk),
		outboxRepo:   repository.NewOutboxRepository(db),
	}
}

// Register 登记邀请关系
// 自己邀请自己、或者该用户已被邀请过，都原样拒绝且不写任何数据；
// 并发登记同一个被邀请人时由唯一索引裁决，先写者胜
func (s *ReferralService) Register(ctx context.Context, referrerID, referredID int64) error {
	return s.referralRepo.Create(ctx, referrerID, referredID)
}

// GrantReward 发放邀请奖励，返回实际到账金额（已发过/无邀请关系时为 0）
//
// 【关键点】奖励只能发一次。翻转 reward_given 的条件更新和入账在同一个
// 事务里：并发发奖时只有一个事务能翻转成功，其余影响 0 行直接退出，
// 不可能重复入账
func (s *ReferralService) GrantReward(ctx context.Context, referredID int64) (int64, error) {
	reward := s.cfg.Game.ReferralReward

	if _, err := s.accountSvc.GetAccount(ctx, referredID); err != nil {
		return 0, err
	}

	err := runTxWithRetry(s.db, s.cfg.Game.MaxRetryCount, func(tx *gorm.DB) error {
		if err := s.referralRepo.MarkRewarded(ctx, tx, referredID); err != nil {
			return err
		}
		if err := s.accountSvc.Credit(ctx, tx, referredID, reward, model.TransactionTypeReward, "邀请奖励"); err != nil {
			return err
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"referred_id": referredID,
			"reward":      reward,
			"granted_at":  s.clk.Now().Format(time.RFC3339),
		})
		msg := &model.OutboxMessage{
			MessageKey: fmt.Sprintf("referral-%d", referredID),
			Topic:      s.cfg.Kafka.Topic.ReferralReward,
			Payload:    string(payload),
			Status:     model.OutboxStatusPending,
		}
		return s.outboxRepo.Create(ctx, tx, msg)
	})
	if err != nil {
		if errors.Is(err, repository.ErrRewardAlreadyGiven) {
			return 0, nil
		}
		return 0, err
	}

	return reward, nil
}

func (s *ReferralService) Count(ctx context.Context, referrerID int64) (int64, error) {
	return s.referralRepo.CountByReferrerID(ctx, referrerID)
}
