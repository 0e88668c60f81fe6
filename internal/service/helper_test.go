package service

import (
	"strconv"
	"testing"
	"time"

	"starfarm/internal/config"
	"starfarm/internal/model"
	"starfarm/pkg/clock"
	"starfarm/pkg/idgen"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	idgen.Init(1)
}

// newTestDB 内存库，连接数压到1，保证语句串行执行
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&model.Account{},
		&model.Farm{},
		&model.Boost{},
		&model.Referral{},
		&model.Auction{},
		&model.AuctionBid{},
		&model.AccountTransaction{},
		&model.OutboxMessage{},
		&model.Ban{},
	)
	require.NoError(t, err)

	return db
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func newTestConfig() *config.Config {
	return &config.Config{
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{
				AuctionResult:  "starfarm.auction.result",
				ReferralReward: "starfarm.referral.reward",
			},
		},
		Game: config.GameConfig{
			InitialStars:          200,
			ActivationWindowHours: 6,
			CollectCapHours:       24,
			ReferralReward:        100,
			MinWager:              10,
			AuctionSeedCount:      3,
			AuctionSeedHours:      24,
			MaxRetryCount:         3,
			AdminIDs:              []int64{9000},
		},
		Catalog: config.CatalogConfig{
			Farms: map[string]config.FarmTypeConfig{
				"starter": {Name: "新手农场", Price: 200, IncomePerHour: 60, Tier: 0},
				"silver":  {Name: "白银农场", Price: 1000, IncomePerHour: 400, Tier: 1},
				"gold":    {Name: "黄金农场", Price: 5000, IncomePerHour: 2500, Tier: 2},
				"diamond": {Name: "钻石农场", Price: 20000, IncomePerHour: 12000, Tier: 3},
				"cosmic":  {Name: "星际农场", Price: 100000, IncomePerHour: 70000, Tier: 4},
			},
			Boosts: map[string]config.BoostTypeConfig{
				"coin":  {Name: "金币", Price: 50, Multiplier: 1.5},
				"charm": {Name: "幸运符", Price: 80, Multiplier: 1.3},
			},
		},
	}
}

func newTestClock() *clock.Manual {
	return clock.NewManual(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
}

// testFixtures 打包测试里常一起用的句柄
type testFixtures struct {
	db  *gorm.DB
	clk *clock.Manual
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
