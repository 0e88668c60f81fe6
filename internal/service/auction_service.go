package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"
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

// AuctionService 英式升价拍卖
// 状态机：ACTIVE --[到期 或 显式结算]--> ENDED（终态）
// 到期不靠定时器推动：下一次触碰到期拍卖的出价或结算扫描负责翻转状态
type AuctionService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.Config
	clk         clock.Clock
	auctionRepo *repository.AuctionRepository
	farmRepo    *repository.FarmRepository
	accountSvc  *AccountService
	outboxRepo  *repository.OutboxRepository

	pick func(n int) int // 补种选档位的随机源
}

func NewAuctionService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, clk clock.Clock) *AuctionService {
	return &AuctionService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		clk:         clk,
		auctionRepo: repository.NewAuctionRepository(db),
		farmRepo:    repository.NewFarmRepository(db),
		accountSvc:  NewAccountService(db, cfg, clk),
		outboxRepo:  repository.NewOutboxRepository(db),
		pick:        rand.Intn,
	}
}

// Create 开一场拍卖，起拍价即当前价，此时还没有出价人
func (s *AuctionService) Create(ctx context.Context, farmType string, startingPrice int64, durationHours int) (*model.Auction, error) {
	if _, ok := s.cfg.Catalog.FarmType(farmType); !ok {
		return nil, ErrUnknownFarmType
	}
	if startingPrice <= 0 {
		return nil, errors.New("起拍价必须大于0")
	}

	auction := &model.Auction{
		FarmType:      farmType,
		StartingPrice: startingPrice,
		CurrentBid:    startingPrice,
		EndTime:       s.clk.Now().Add(time.Duration(durationHours) * time.Hour),
		Status:        model.AuctionStatusActive,
	}
	if err := s.auctionRepo.Create(ctx, auction); err != nil {
		return nil, err
	}
	return auction, nil
}

// ListActive 在场拍卖，最先截止的排前面。纯读，不翻转任何状态
func (s *AuctionService) ListActive(ctx context.Context) ([]*model.Auction, error) {
	return s.auctionRepo.ListActive(ctx, s.clk.Now())
}

// SeedIfEmpty 没有在场拍卖时自动补种：从目录里档位最高的四档随机挑，
// 半价起拍。返回本次补种数量
func (s *AuctionService) SeedIfEmpty(ctx context.Context) (int, error) {
	active, err := s.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	if len(active) > 0 {
		return 0, nil
	}

	tiers := s.topFarmTiers(4)
	if len(tiers) == 0 {
		return 0, nil
	}

	seeded := 0
	for i := 0; i < s.cfg.Game.AuctionSeedCount; i++ {
		farmType := tiers[s.pick(len(tiers))]
		ft, _ := s.cfg.Catalog.FarmType(farmType)
		if _, err := s.Create(ctx, farmType, ft.Price/2, s.cfg.Game.AuctionSeedHours); err != nil {
			return seeded, err
		}
		seeded++
	}
	return seeded, nil
}

// topFarmTiers 目录里档位最高的 n 个农场类型
func (s *AuctionService) topFarmTiers(n int) []string {
	types := make([]string, 0, len(s.cfg.Catalog.Farms))
	for id := range s.cfg.Catalog.Farms {
		types = append(types, id)
	}
	sort.Slice(types, func(i, j int) bool {
		return s.cfg.Catalog.Farms[types[i]].Tier > s.cfg.Catalog.Farms[types[j]].Tier
	})
	if len(types) > n {
		types = types[:n]
	}
	return types
}

// ============================================================================
// 出价
// ============================================================================
//
// 同一场拍卖的出价必须串行：退回旧托管、扣除新托管、更新当前价三步
// 如果和另一次出价交错，星星会凭空产生或消失（比如旧托管退了两次）。
// 串行化由两层保证：
//   1. 按拍卖维度的分布式锁——不同拍卖照常并发，同一拍卖排队
//   2. 三步在同一个数据库事务里，且更新当前价时带上读到的旧价做条件，
//      任何一步失败整体回滚，外界永远看不到"退了旧托管没扣到新托管"
//      的中间态
//
// 到期检查是惰性的：出价撞上已到期的拍卖时顺手结算掉（有在押出价人
// 的话拍品此刻铸给他）再拒绝本次出价
// ============================================================================

func (s *AuctionService) PlaceBid(ctx context.Context, auctionID, userID int64, amount int64) (*model.Auction, error) {
	token := idgen.GenerateLockToken()
	bidLock := lock.NewBidLock(s.redisClient, auctionID, token)
	if err := bidLock.Lock(ctx, 50*time.Millisecond, 60); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer bidLock.Unlock(ctx)

	now := s.clk.Now()

	auction, err := s.auctionRepo.GetByID(ctx, nil, auctionID)
	if err != nil {
		metrics.BidsRejected.WithLabelValues("not_found").Inc()
		return nil, err
	}
	if auction.Status != model.AuctionStatusActive {
		metrics.BidsRejected.WithLabelValues("not_found").Inc()
		return nil, repository.ErrAuctionNotFound
	}

	if auction.Expired(now) {
		// 惰性到期：顺手走完整结算再拒绝，有在押出价人的话拍品在这里
		// 铸给他。只翻状态不结算会把赢家的托管永久吞掉——结算扫描只扫
		// ACTIVE 行，翻成 ENDED 之后就没人管了
		if _, err := s.settleLocked(ctx, auctionID); err != nil && !errors.Is(err, repository.ErrAuctionAlreadyEnded) {
			return nil, err
		}
		metrics.BidsRejected.WithLabelValues("expired").Inc()
		return nil, repository.ErrAuctionExpired
	}

	if amount <= auction.CurrentBid {
		metrics.BidsRejected.WithLabelValues("too_low").Inc()
		return nil, repository.ErrBidTooLow
	}

	if _, err := s.accountSvc.GetAccount(ctx, userID); err != nil {
		return nil, err
	}

	prevBid := auction.CurrentBid
	prevBidder := auction.CurrentBidderID

	err = runTxWithRetry(s.db, s.cfg.Game.MaxRetryCount, func(tx *gorm.DB) error {
		if prevBidder != nil {
			if err := s.accountSvc.Credit(ctx, tx, *prevBidder, prevBid, model.TransactionTypeBidRefund,
				fmt.Sprintf("拍卖%d-托管退回", auctionID)); err != nil {
				return err
			}
		}
		if err := s.accountSvc.Debit(ctx, tx, userID, amount, model.TransactionTypeBid,
			fmt.Sprintf("拍卖%d-出价托管", auctionID)); err != nil {
			return err
		}
		if err := s.auctionRepo.UpdateBid(ctx, tx, auctionID, prevBid, amount, userID); err != nil {
			return err
		}
		return s.auctionRepo.CreateBid(ctx, tx, &model.AuctionBid{
			AuctionID: auctionID,
			UserID:    userID,
			Amount:    amount,
		})
	})
	if err != nil {
		if errors.Is(err, repository.ErrBalanceNotEnough) {
			metrics.BidsRejected.WithLabelValues("insufficient_funds").Inc()
		}
		return nil, err
	}

	metrics.BidsAccepted.Inc()

	auction.CurrentBid = amount
	auction.CurrentBidderID = &userID
	return auction, nil
}

// SettledAuction 结算结果
type SettledAuction struct {
	Auction  *model.Auction `json:"auction"`
	WinnerID *int64         `json:"winner_id,omitempty"`
	Farm     *model.Farm    `json:"farm,omitempty"` // 铸给赢家的农场
}

// Settle 结算拍卖：翻到终态，有出价人就把拍品铸给他
//
// 和出价持同一把拍卖锁：不持锁的话，这里读到的出价人可能在提交前被
// 一次完整的顶价换掉，拍品就铸给了已退款的前任。
//
// 翻转状态的条件更新是幂等闸门：已结束的拍卖再结算拿到
// ErrAuctionAlreadyEnded，绝不会铸第二座农场。翻转和铸造在同一个事务
// 里，不存在"状态翻了但农场没发"或反过来的中间态。
//
// 成交额在出价时就已经托管扣除，这里直接销毁，不进任何账户
func (s *AuctionService) Settle(ctx context.Context, auctionID int64) (*SettledAuction, error) {
	token := idgen.GenerateLockToken()
	bidLock := lock.NewBidLock(s.redisClient, auctionID, token)
	if err := bidLock.Lock(ctx, 50*time.Millisecond, 60); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer bidLock.Unlock(ctx)

	return s.settleLocked(ctx, auctionID)
}

// settleLocked 结算本体，调用方必须已持有该拍卖的出价锁
func (s *AuctionService) settleLocked(ctx context.Context, auctionID int64) (*SettledAuction, error) {
	auction, err := s.auctionRepo.GetByID(ctx, nil, auctionID)
	if err != nil {
		return nil, err
	}

	var farm *model.Farm
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.auctionRepo.MarkEnded(ctx, tx, auctionID); err != nil {
			return err
		}
		if auction.CurrentBidderID == nil {
			return nil
		}

		farm = &model.Farm{
			UserID:   *auction.CurrentBidderID,
			FarmType: auction.FarmType,
			IsActive: false,
		}
		if err := s.farmRepo.Create(ctx, tx, farm); err != nil {
			return err
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"auction_id": auctionID,
			"winner_id":  *auction.CurrentBidderID,
			"farm_type":  auction.FarmType,
			"final_bid":  auction.CurrentBid,
			"settled_at": s.clk.Now().Format(time.RFC3339),
		})
		msg := &model.OutboxMessage{
			MessageKey: fmt.Sprintf("auction-%d", auctionID),
			Topic:      s.cfg.Kafka.Topic.AuctionResult,
			Payload:    string(payload),
			Status:     model.OutboxStatusPending,
		}
		return s.outboxRepo.Create(ctx, tx, msg)
	})
	if err != nil {
		return nil, err
	}

	metrics.AuctionsSettled.Inc()

	auction.Status = model.AuctionStatusEnded
	return &SettledAuction{
		Auction:  auction,
		WinnerID: auction.CurrentBidderID,
		Farm:     farm,
	}, nil
}

// SettleExpired 扫一批已到期但还没翻状态的拍卖并结算，返回结算数量。
// 被后台任务周期性调用，也被列表接口在渲染前调用——引擎自己不养定时器
func (s *AuctionService) SettleExpired(ctx context.Context, limit int) (int, error) {
	expired, err := s.auctionRepo.ListExpiredActive(ctx, s.clk.Now(), limit)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, auction := range expired {
		if _, err := s.Settle(ctx, auction.ID); err != nil {
			if errors.Is(err, repository.ErrAuctionAlreadyEnded) {
				continue // 别的调用抢先结算了，不算失败
			}
			return settled, err
		}
		settled++
	}
	return settled, nil
}

// ListBids 出价历史
func (s *AuctionService) ListBids(ctx context.Context, auctionID int64) ([]*model.AuctionBid, error) {
	return s.auctionRepo.ListBids(ctx, auctionID)
}
