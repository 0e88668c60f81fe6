package service

import (
	"context"
	"testing"
	"time"

	"starfarm/internal/infrastructure/lock"
	"starfarm/internal/model"
	"starfarm/internal/repository"

	"github.com/stretchr/testify/require"
)

func newAuctionFixture(t *testing.T) (*AuctionService, *AccountService, *FarmService, *testFixtures) {
	t.Helper()
	db := newTestDB(t)
	rdb := newTestRedis(t)
	cfg := newTestConfig()
	clk := newTestClock()
	return NewAuctionService(db, rdb, cfg, clk),
		NewAccountService(db, cfg, clk),
		NewFarmService(db, rdb, cfg, clk),
		&testFixtures{db: db, clk: clk}
}

func TestAuctionService_CreateAndList(t *testing.T) {
	svc, _, _, fx := newAuctionFixture(t)
	ctx := context.Background()

	auction, err := svc.Create(ctx, "gold", 2500, 24)
	require.NoError(t, err)
	require.Equal(t, model.AuctionStatusActive, auction.Status)
	require.Equal(t, int64(2500), auction.CurrentBid)
	require.Nil(t, auction.CurrentBidderID)

	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)

	// 到期后从在场列表里消失（纯读，不翻状态）
	fx.clk.Advance(25 * time.Hour)
	active, err = svc.ListActive(ctx)
	require.NoError(t, err)
	require.Empty(t, active)
}

func TestAuctionService_CreateUnknownFarmType(t *testing.T) {
	svc, _, _, _ := newAuctionFixture(t)

	_, err := svc.Create(context.Background(), "nonexistent", 100, 24)
	require.ErrorIs(t, err, ErrUnknownFarmType)
}

func TestAuctionService_PlaceBidEscrowsStars(t *testing.T) {
	svc, accountSvc, _, _ := newAuctionFixture(t)
	ctx := context.Background()

	auction, err := svc.Create(ctx, "starter", 50, 24)
	require.NoError(t, err)

	updated, err := svc.PlaceBid(ctx, auction.ID, 100, 80)
	require.NoError(t, err)
	require.Equal(t, int64(80), updated.CurrentBid)
	require.NotNil(t, updated.CurrentBidderID)
	require.Equal(t, int64(100), *updated.CurrentBidderID)

	// 出价即托管扣款
	balance, err := accountSvc.GetBalance(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, int64(120), balance)
}

func TestAuctionService_PlaceBidMustExceedCurrent(t *testing.T) {
	svc, _, _, _ := newAuctionFixture(t)
	ctx := context.Background()

	auction, err := svc.Create(ctx, "starter", 50, 24)
	require.NoError(t, err)

	// 等于当前价不行，低于更不行
	_, err = svc.PlaceBid(ctx, auction.ID, 100, 50)
	require.ErrorIs(t, err, repository.ErrBidTooLow)
	_, err = svc.PlaceBid(ctx, auction.ID, 100, 30)
	require.ErrorIs(t, err, repository.ErrBidTooLow)

	_, err = svc.PlaceBid(ctx, auction.ID, 100, 51)
	require.NoError(t, err)

	// 被人顶掉之前的出价也一样要超过最新价
	_, err = svc.PlaceBid(ctx, auction.ID, 200, 51)
	require.ErrorIs(t, err, repository.ErrBidTooLow)
}

// 顶价时前任出价人的托管原路退回，恰好一次
func TestAuctionService_OutbidRefundsPreviousBidder(t *testing.T) {
	svc, accountSvc, _, fx := newAuctionFixture(t)
	ctx := context.Background()

	auction, err := svc.Create(ctx, "starter", 50, 24)
	require.NoError(t, err)

	_, err = svc.PlaceBid(ctx, auction.ID, 100, 80)
	require.NoError(t, err)
	_, err = svc.PlaceBid(ctx, auction.ID, 200, 120)
	require.NoError(t, err)

	// 100 的托管已退回
	balance, err := accountSvc.GetBalance(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, int64(200), balance)

	balance, err = accountSvc.GetBalance(ctx, 200)
	require.NoError(t, err)
	require.Equal(t, int64(80), balance)

	// 流水里恰好一条退款
	var refunds []model.AccountTransaction
	require.NoError(t, fx.db.Where("user_id = ? AND type = ?", 100, model.TransactionTypeBidRefund).Find(&refunds).Error)
	require.Len(t, refunds, 1)
	require.Equal(t, int64(80), refunds[0].Amount)
}

func TestAuctionService_PlaceBidInsufficientBalance(t *testing.T) {
	svc, accountSvc, _, _ := newAuctionFixture(t)
	ctx := context.Background()

	auction, err := svc.Create(ctx, "starter", 50, 24)
	require.NoError(t, err)

	_, err = svc.PlaceBid(ctx, auction.ID, 100, 500)
	require.ErrorIs(t, err, repository.ErrBalanceNotEnough)

	// 失败的出价不改变拍卖状态
	fresh, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	require.Equal(t, int64(50), fresh[0].CurrentBid)
	require.Nil(t, fresh[0].CurrentBidderID)

	balance, err := accountSvc.GetBalance(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, int64(200), balance)
}

// 余额不足顶价失败时，前任的托管退款也必须一起回滚
func TestAuctionService_FailedOutbidRollsBackRefund(t *testing.T) {
	svc, accountSvc, _, _ := newAuctionFixture(t)
	ctx := context.Background()

	auction, err := svc.Create(ctx, "starter", 50, 24)
	require.NoError(t, err)

	_, err = svc.PlaceBid(ctx, auction.ID, 100, 80)
	require.NoError(t, err)

	// 200 只有初始 200 星，出 300 必然失败
	_, err = svc.PlaceBid(ctx, auction.ID, 200, 300)
	require.ErrorIs(t, err, repository.ErrBalanceNotEnough)

	// 前任托管仍然在押，没有被偷偷退回
	balance, err := accountSvc.GetBalance(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, int64(120), balance)

	fresh, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(80), fresh[0].CurrentBid)
}

// 出价撞上已到期的拍卖：拒绝出价，顺手把状态翻成已结束
func TestAuctionService_PlaceBidOnExpiredAuction(t *testing.T) {
	svc, accountSvc, _, fx := newAuctionFixture(t)
	ctx := context.Background()

	auction, err := svc.Create(ctx, "starter", 50, 1)
	require.NoError(t, err)

	fx.clk.Advance(2 * time.Hour)
	_, err = svc.PlaceBid(ctx, auction.ID, 100, 80)
	require.ErrorIs(t, err, repository.ErrAuctionExpired)

	var stored model.Auction
	require.NoError(t, fx.db.First(&stored, auction.ID).Error)
	require.Equal(t, model.AuctionStatusEnded, stored.Status)

	balance, err := accountSvc.GetBalance(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, int64(200), balance)
}

// 出价撞上已到期、且已有在押出价人的拍卖：拒绝本次出价的同时完成结算，
// 拍品铸给在押出价人，不能只翻状态把赢家晾在一边
func TestAuctionService_PlaceBidOnExpiredAuctionSettlesStandingBid(t *testing.T) {
	svc, accountSvc, farmSvc, fx := newAuctionFixture(t)
	ctx := context.Background()

	auction, err := svc.Create(ctx, "starter", 50, 1)
	require.NoError(t, err)

	_, err = svc.PlaceBid(ctx, auction.ID, 100, 80)
	require.NoError(t, err)

	fx.clk.Advance(2 * time.Hour)
	_, err = svc.PlaceBid(ctx, auction.ID, 200, 120)
	require.ErrorIs(t, err, repository.ErrAuctionExpired)

	var stored model.Auction
	require.NoError(t, fx.db.First(&stored, auction.ID).Error)
	require.Equal(t, model.AuctionStatusEnded, stored.Status)

	// 100 拿到拍品，托管的 80 是成交额，不退
	farms, err := farmSvc.ListFarms(ctx, 100)
	require.NoError(t, err)
	require.Len(t, farms, 1)
	require.Equal(t, "starter", farms[0].FarmType)

	balance, err := accountSvc.GetBalance(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, int64(120), balance)

	// 迟到的出价人没被扣款
	balance, err = accountSvc.GetBalance(ctx, 200)
	require.NoError(t, err)
	require.Equal(t, int64(200), balance)

	// 后续扫描没有遗留工作，也不会铸第二座
	settled, err := svc.SettleExpired(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 0, settled)

	farms, err = farmSvc.ListFarms(ctx, 100)
	require.NoError(t, err)
	require.Len(t, farms, 1)
}

func TestAuctionService_SettleMintsFarmForWinner(t *testing.T) {
	svc, _, farmSvc, fx := newAuctionFixture(t)
	ctx := context.Background()

	auction, err := svc.Create(ctx, "starter", 50, 1)
	require.NoError(t, err)
	_, err = svc.PlaceBid(ctx, auction.ID, 100, 80)
	require.NoError(t, err)

	fx.clk.Advance(2 * time.Hour)
	result, err := svc.Settle(ctx, auction.ID)
	require.NoError(t, err)
	require.NotNil(t, result.WinnerID)
	require.Equal(t, int64(100), *result.WinnerID)
	require.NotNil(t, result.Farm)
	require.Equal(t, "starter", result.Farm.FarmType)
	require.False(t, result.Farm.IsActive)

	farms, err := farmSvc.ListFarms(ctx, 100)
	require.NoError(t, err)
	require.Len(t, farms, 1)

	// 结算写下成交消息等待投递
	var messages []model.OutboxMessage
	require.NoError(t, fx.db.Where("message_key = ?", "auction-"+itoa(auction.ID)).Find(&messages).Error)
	require.Len(t, messages, 1)
}

// 重复结算不会铸第二座农场
func TestAuctionService_SettleIdempotent(t *testing.T) {
	svc, _, farmSvc, fx := newAuctionFixture(t)
	ctx := context.Background()

	auction, err := svc.Create(ctx, "starter", 50, 1)
	require.NoError(t, err)
	_, err = svc.PlaceBid(ctx, auction.ID, 100, 80)
	require.NoError(t, err)

	fx.clk.Advance(2 * time.Hour)
	_, err = svc.Settle(ctx, auction.ID)
	require.NoError(t, err)

	_, err = svc.Settle(ctx, auction.ID)
	require.ErrorIs(t, err, repository.ErrAuctionAlreadyEnded)

	farms, err := farmSvc.ListFarms(ctx, 100)
	require.NoError(t, err)
	require.Len(t, farms, 1)
}

func TestAuctionService_SettleWithoutBidsMintsNothing(t *testing.T) {
	svc, _, _, fx := newAuctionFixture(t)
	ctx := context.Background()

	auction, err := svc.Create(ctx, "starter", 50, 1)
	require.NoError(t, err)

	fx.clk.Advance(2 * time.Hour)
	result, err := svc.Settle(ctx, auction.ID)
	require.NoError(t, err)
	require.Nil(t, result.WinnerID)
	require.Nil(t, result.Farm)

	var farms []model.Farm
	require.NoError(t, fx.db.Find(&farms).Error)
	require.Empty(t, farms)
}

// 结算和出价持同一把拍卖锁，锁被占着时结算进不去；
// 锁释放后结算读到的是最新的出价人
func TestAuctionService_SettleSerializesWithBids(t *testing.T) {
	svc, _, farmSvc, fx := newAuctionFixture(t)
	ctx := context.Background()

	auction, err := svc.Create(ctx, "starter", 50, 1)
	require.NoError(t, err)
	_, err = svc.PlaceBid(ctx, auction.ID, 100, 80)
	require.NoError(t, err)

	holder := lock.NewBidLock(svc.redisClient, auction.ID, "other-holder")
	ok, err := holder.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	fx.clk.Advance(2 * time.Hour)
	_, err = svc.Settle(ctx, auction.ID)
	require.ErrorIs(t, err, lock.ErrLockFailed)

	require.NoError(t, holder.Unlock(ctx))

	result, err := svc.Settle(ctx, auction.ID)
	require.NoError(t, err)
	require.NotNil(t, result.WinnerID)
	require.Equal(t, int64(100), *result.WinnerID)

	farms, err := farmSvc.ListFarms(ctx, 100)
	require.NoError(t, err)
	require.Len(t, farms, 1)
}

func TestAuctionService_SettleExpiredSweepsBatch(t *testing.T) {
	svc, _, _, fx := newAuctionFixture(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "starter", 50, 1)
	require.NoError(t, err)
	_, err = svc.Create(ctx, "silver", 500, 1)
	require.NoError(t, err)
	_, err = svc.Create(ctx, "gold", 2500, 48) // 还没到期
	require.NoError(t, err)

	fx.clk.Advance(2 * time.Hour)
	settled, err := svc.SettleExpired(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 2, settled)

	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "gold", active[0].FarmType)
}

func TestAuctionService_SeedIfEmpty(t *testing.T) {
	svc, _, _, _ := newAuctionFixture(t)
	ctx := context.Background()

	svc.pick = func(n int) int { return 0 } // 固定选档位最高的类型

	seeded, err := svc.SeedIfEmpty(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, seeded)

	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 3)
	for _, auction := range active {
		require.Equal(t, "cosmic", auction.FarmType) // Tier 最高
		require.Equal(t, int64(50000), auction.StartingPrice)
	}

	// 有在场拍卖时不补种
	seeded, err = svc.SeedIfEmpty(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, seeded)
}

func TestAuctionService_ListBidsKeepsHistory(t *testing.T) {
	svc, _, _, _ := newAuctionFixture(t)
	ctx := context.Background()

	auction, err := svc.Create(ctx, "starter", 50, 24)
	require.NoError(t, err)

	_, err = svc.PlaceBid(ctx, auction.ID, 100, 80)
	require.NoError(t, err)
	_, err = svc.PlaceBid(ctx, auction.ID, 200, 120)
	require.NoError(t, err)
	_, err = svc.PlaceBid(ctx, auction.ID, 100, 150)
	require.NoError(t, err)

	bids, err := svc.ListBids(ctx, auction.ID)
	require.NoError(t, err)
	require.Len(t, bids, 3)
}
