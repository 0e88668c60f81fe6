package job

import (
	"context"
	"log"
	"time"

	"starfarm/internal/config"
	"starfarm/internal/service"
	"starfarm/pkg/clock"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// AuctionSettleJob 拍卖结算任务
// 引擎的到期语义是惰性的，这个任务只是把"下一次有人触碰"提前到固定
// 周期，保证没人看的拍卖也能及时开奖、空场及时补种。扫描和结算全部
// 幂等，和请求路径上的惰性结算并发执行也不会出问题
type AuctionSettleJob struct {
	auctionSvc *service.AuctionService
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
}

func NewAuctionSettleJob(db *gorm.DB, rdb *redis.Client, cfg *config.Config, clk clock.Clock) *AuctionSettleJob {
	return &AuctionSettleJob{
		auctionSvc: service.NewAuctionService(db, rdb, cfg, clk),
		stopCh:     make(chan struct{}),
		interval:   30 * time.Second,
		batchSize:  50,
	}
}

func (j *AuctionSettleJob) Start(ctx context.Context) {
	log.Println("[AuctionSettleJob] 拍卖结算任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[AuctionSettleJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[AuctionSettleJob] 任务停止")
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *AuctionSettleJob) Stop() {
	close(j.stopCh)
}

func (j *AuctionSettleJob) sweep(ctx context.Context) {
	settled, err := j.auctionSvc.SettleExpired(ctx, j.batchSize)
	if err != nil {
		log.Printf("[AuctionSettleJob] 结算到期拍卖失败: %v", err)
		return
	}
	if settled > 0 {
		log.Printf("[AuctionSettleJob] 本次结算 %d 场到期拍卖", settled)
	}

	seeded, err := j.auctionSvc.SeedIfEmpty(ctx)
	if err != nil {
		log.Printf("[AuctionSettleJob] 补种拍卖失败: %v", err)
		return
	}
	if seeded > 0 {
		log.Printf("[AuctionSettleJob] 拍卖场空置，补种 %d 场", seeded)
	}
}
