package service

import (
	"context"
	"sync"
	"testing"

	"starfarm/internal/model"
	"starfarm/internal/repository"

	"github.com/stretchr/testify/require"
)

func TestReferralService_RegisterRejectsSelf(t *testing.T) {
	db := newTestDB(t)
	svc := NewReferralService(db, newTestConfig(), newTestClock())

	err := svc.Register(context.Background(), 100, 100)
	require.ErrorIs(t, err, repository.ErrSelfReferral)
}

func TestReferralService_RegisterFirstWriterWins(t *testing.T) {
	db := newTestDB(t)
	svc := NewReferralService(db, newTestConfig(), newTestClock())
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, 100, 200))

	// 换一个邀请人再登记同一个被邀请人也不行
	err := svc.Register(ctx, 300, 200)
	require.ErrorIs(t, err, repository.ErrDuplicateReferral)

	count, err := svc.Count(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	count, err = svc.Count(ctx, 300)
	require.NoError(t, err)
	require.Equal(t, int64(0), count)
}

func TestReferralService_GrantRewardExactlyOnce(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	clk := newTestClock()
	svc := NewReferralService(db, cfg, clk)
	accountSvc := NewAccountService(db, cfg, clk)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, 100, 200))

	reward, err := svc.GrantReward(ctx, 200)
	require.NoError(t, err)
	require.Equal(t, int64(100), reward)

	// 第二次发放拿不到钱
	reward, err = svc.GrantReward(ctx, 200)
	require.NoError(t, err)
	require.Equal(t, int64(0), reward)

	balance, err := accountSvc.GetBalance(ctx, 200)
	require.NoError(t, err)
	require.Equal(t, int64(300), balance) // 初始 200 + 奖励 100，只加了一次
}

func TestReferralService_GrantRewardWithoutLink(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	svc := NewReferralService(db, cfg, newTestClock())

	reward, err := svc.GrantReward(context.Background(), 999)
	require.NoError(t, err)
	require.Equal(t, int64(0), reward)
}

// 并发发奖只能成功一次
func TestReferralService_GrantRewardConcurrent(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	clk := newTestClock()
	svc := NewReferralService(db, cfg, clk)
	accountSvc := NewAccountService(db, cfg, clk)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, 100, 200))

	const workers = 6
	var wg sync.WaitGroup
	rewards := make([]int64, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rewards[i], errs[i] = svc.GrantReward(ctx, 200)
		}(i)
	}
	wg.Wait()

	var paid int64
	for _, err := range errs {
		require.NoError(t, err)
	}
	for _, r := range rewards {
		paid += r
	}
	require.Equal(t, int64(100), paid)

	balance, err := accountSvc.GetBalance(ctx, 200)
	require.NoError(t, err)
	require.Equal(t, int64(300), balance)
}

// 发奖成功时在发件箱留一条待投递消息
func TestReferralService_GrantRewardWritesOutbox(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	clk := newTestClock()
	svc := NewReferralService(db, cfg, clk)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, 100, 200))
	_, err := svc.GrantReward(ctx, 200)
	require.NoError(t, err)

	var messages []model.OutboxMessage
	require.NoError(t, db.Where("topic = ?", cfg.Kafka.Topic.ReferralReward).Find(&messages).Error)
	require.Len(t, messages, 1)
	require.Equal(t, model.OutboxStatusPending, messages[0].Status)
}
