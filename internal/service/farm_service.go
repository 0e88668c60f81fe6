package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"starfarm/internal/config"
	"starfarm/internal/infrastructure/lock"
	"starfarm/internal/metrics"
	"starfarm/internal/model"
	"starfarm/internal/repository"
	"starfarm/pkg/clock"
	"starfarm/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

var ErrUnknownFarmType = errors.New("未知的农场类型")

// FarmService 农场：购买、激活、收取产出
type FarmService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.Config
	clk         clock.Clock
	farmRepo    *repository.FarmRepository
	accountRepo *repository.AccountRepository
	accountSvc  *AccountService
	boostSvc    *BoostService
}

func NewFarmService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, clk clock.Clock) *FarmService {
	return &FarmService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		clk:         clk,
		farmRepo:    repository.NewFarmRepository(db),
		accountRepo: repository.NewAccountRepository(db, cfg.Game.InitialStars),
		accountSvc:  NewAccountService(db, cfg, clk),
		boostSvc:    NewBoostService(db, cfg, clk),
	}
}

func (s *FarmService) activationWindow() time.Duration {
	return time.Duration(s.cfg.Game.ActivationWindowHours * float64(time.Hour))
}

// BuyFarm 购买农场
// 扣款和建农场在同一个事务里：余额不足时返回错误，什么都不会被写入。
// 新农场是未激活状态，买完要手动激活才开始产出
func (s *FarmService) BuyFarm(ctx context.Context, userID int64, farmType string) (*model.Farm, error) {
	ft, ok := s.cfg.Catalog.FarmType(farmType)
	if !ok {
		return nil, ErrUnknownFarmType
	}

	if _, err := s.accountSvc.GetAccount(ctx, userID); err != nil {
		return nil, err
	}

	var farm *model.Farm
	err := runTxWithRetry(s.db, s.cfg.Game.MaxRetryCount, func(tx *gorm.DB) error {
		if err := s.accountSvc.Debit(ctx, tx, userID, ft.Price, model.TransactionTypePurchase, fmt.Sprintf("购买农场-%s", farmType)); err != nil {
			return err
		}
		farm = &model.Farm{
			UserID:   userID,
			FarmType: farmType,
			IsActive: false,
		}
		return s.farmRepo.Create(ctx, tx, farm)
	})
	if err != nil {
		return nil, err
	}

	metrics.FarmsPurchased.Inc()
	return farm, nil
}

// GrantFarm 发放农场（管理员奖励、拍卖成交），不走余额
func (s *FarmService) GrantFarm(ctx context.Context, userID int64, farmType string) (*model.Farm, error) {
	if _, ok := s.cfg.Catalog.FarmType(farmType); !ok {
		return nil, ErrUnknownFarmType
	}
	farm := &model.Farm{
		UserID:   userID,
		FarmType: farmType,
		IsActive: false,
	}
	if err := s.farmRepo.Create(ctx, nil, farm); err != nil {
		return nil, err
	}
	return farm, nil
}

// ActivateFarms 激活用户名下所有可激活的农场，返回（本次激活数，农场总数）
//
// 可激活 = 当前不在产出窗口内：要么从未激活/已停产，要么上次激活已经
// 超过窗口时长。窗口内的农场不重复盖时间戳，所以 6 小时内连调两次，
// 第二次的激活数一定是 0——这正是幂等语义
func (s *FarmService) ActivateFarms(ctx context.Context, userID int64) (int, int, error) {
	farms, err := s.farmRepo.ListByUserID(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	if len(farms) == 0 {
		return 0, 0, nil
	}

	now := s.clk.Now()
	window := s.activationWindow()
	activated := 0

	err = s.db.Transaction(func(tx *gorm.DB) error {
		for _, farm := range farms {
			if farm.ActiveWithin(window, now) {
				continue
			}
			if err := s.farmRepo.MarkActivated(ctx, tx, farm.ID, now); err != nil {
				return err
			}
			activated++
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	return activated, len(farms), nil
}

// ============================================================================
// 收取产出
// ============================================================================
//
// 结算规则（按农场独立计窗口，再套全局上限）：
//
//   elapsed = min(now - last_collect, 收取上限)        —— 外层上限，防囤积
//   每座农场：
//     逻辑未激活（窗口已过）-> 跳过，顺手把存储标志惰性翻回未激活
//     激活中 -> 计费区间 [max(last_activated, last_collect), now]，
//               小时数再被 elapsed 截断
//   总收益 = Σ(income_per_hour * hours) * 道具总倍率，向零取整
//
// 为什么按农场算而不是按账户算：农场是在不同时刻激活的，刚激活的农场
// 不能追溯激活之前的时间，闲置很久的农场也不能越过外层上限补算。
//
// 【关键点】无论收了多少（哪怕 0），last_collect 都推进到 now，否则同一段
// 时间会在下一次收取时被重复结算。整个函数在按用户的分布式锁内执行：
// 读时间戳、逐农场结算、写回时间戳是一段跨多行的读-算-写，并发重入会
// 把同一段收益发两次
// ============================================================================

func (s *FarmService) CollectIncome(ctx context.Context, userID int64) (int64, error) {
	token := idgen.GenerateLockToken()
	collectLock := lock.NewCollectLock(s.redisClient, userID, token)
	if err := collectLock.Lock(ctx, 50*time.Millisecond, 60); err != nil {
		return 0, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer collectLock.Unlock(ctx)

	now := s.clk.Now()
	account, err := s.accountRepo.GetOrCreate(ctx, userID, now)
	if err != nil {
		return 0, err
	}

	lastCollect := now // 从未收取过按 now 算，本次结果是 0，但时间戳从此开始推进
	if account.LastCollect != nil {
		lastCollect = *account.LastCollect
	}

	elapsed := now.Sub(lastCollect).Hours()
	if elapsed > s.cfg.Game.CollectCapHours {
		elapsed = s.cfg.Game.CollectCapHours
	}
	if elapsed < 0 {
		elapsed = 0
	}

	farms, err := s.farmRepo.ListByUserID(ctx, userID)
	if err != nil {
		return 0, err
	}

	window := s.activationWindow()
	var totalIncome float64

	for _, farm := range farms {
		if !farm.IsActive || farm.LastActivated == nil {
			continue
		}
		if now.Sub(*farm.LastActivated) >= window {
			// 窗口已过，惰性落回未激活态
			if err := s.farmRepo.Deactivate(ctx, nil, farm.ID); err != nil {
				return 0, err
			}
			continue
		}

		ft, ok := s.cfg.Catalog.FarmType(farm.FarmType)
		if !ok {
			continue // 目录里已下架的档位不产出
		}

		collectFrom := *farm.LastActivated
		if lastCollect.After(collectFrom) {
			collectFrom = lastCollect
		}
		hours := now.Sub(collectFrom).Hours()
		if hours > elapsed {
			hours = elapsed
		}
		if hours <= 0 {
			continue
		}
		totalIncome += float64(ft.IncomePerHour) * hours
	}

	boost, err := s.boostSvc.TotalMultiplier(ctx, userID)
	if err != nil {
		return 0, err
	}
	credited := int64(totalIncome * boost) // 向零取整

	err = runTxWithRetry(s.db, s.cfg.Game.MaxRetryCount, func(tx *gorm.DB) error {
		if err := s.accountRepo.UpdateLastCollect(ctx, tx, userID, now); err != nil {
			return fmt.Errorf("更新收取时间失败: %w", err)
		}
		if credited > 0 {
			return s.accountSvc.Credit(ctx, tx, userID, credited, model.TransactionTypeCollect, "收取农场产出")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if credited > 0 {
		metrics.IncomeCollected.Add(float64(credited))
	}
	return credited, nil
}

// FarmView 农场的对外视图，逻辑状态已对照 now 重算过
type FarmView struct {
	ID            int64      `json:"id"`
	FarmType      string     `json:"farm_type"`
	Name          string     `json:"name"`
	IncomePerHour int64      `json:"income_per_hour"`
	Active        bool       `json:"active"`
	ActiveUntil   *time.Time `json:"active_until,omitempty"`
}

func (s *FarmService) ListFarms(ctx context.Context, userID int64) ([]*FarmView, error) {
	farms, err := s.farmRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	window := s.activationWindow()

	views := make([]*FarmView, 0, len(farms))
	for _, farm := range farms {
		view := &FarmView{
			ID:       farm.ID,
			FarmType: farm.FarmType,
			Active:   farm.ActiveWithin(window, now),
		}
		if ft, ok := s.cfg.Catalog.FarmType(farm.FarmType); ok {
			view.Name = ft.Name
			view.IncomePerHour = ft.IncomePerHour
		}
		if view.Active {
			until := farm.LastActivated.Add(window)
			view.ActiveUntil = &until
		}
		views = append(views, view)
	}
	return views, nil
}
