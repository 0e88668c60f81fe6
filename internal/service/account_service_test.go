package service

import (
	"context"
	"sync"
	"testing"

	"starfarm/internal/model"
	"starfarm/internal/repository"

	"github.com/stretchr/testify/require"
)

func TestAccountService_NewAccountSeeded(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	svc := NewAccountService(db, cfg, newTestClock())
	ctx := context.Background()

	account, err := svc.GetAccount(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, int64(200), account.Balance)
	require.NotNil(t, account.LastCollect)

	// 再取同一个账户不会重复发初始资金
	again, err := svc.GetAccount(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, account.ID, again.ID)
	require.Equal(t, int64(200), again.Balance)
}

func TestAccountService_SpendInsufficientBalance(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	svc := NewAccountService(db, cfg, newTestClock())
	ctx := context.Background()

	_, err := svc.GetAccount(ctx, 100)
	require.NoError(t, err)

	err = svc.Spend(ctx, 100, 201, model.TransactionTypePurchase, "超额消费")
	require.ErrorIs(t, err, repository.ErrBalanceNotEnough)

	// 失败的扣款不能动余额
	balance, err := svc.GetBalance(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, int64(200), balance)
}

func TestAccountService_SpendExactBalance(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	svc := NewAccountService(db, cfg, newTestClock())
	ctx := context.Background()

	_, err := svc.GetAccount(ctx, 100)
	require.NoError(t, err)

	err = svc.Spend(ctx, 100, 200, model.TransactionTypePurchase, "清空余额")
	require.NoError(t, err)

	balance, err := svc.GetBalance(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, int64(0), balance)
}

// 并发扣款打在同一个账户上，余额 200 只够成功一次 150 的扣款
func TestAccountService_ConcurrentSpendNeverOverdraws(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	svc := NewAccountService(db, cfg, newTestClock())
	ctx := context.Background()

	_, err := svc.GetAccount(ctx, 100)
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.Spend(ctx, 100, 150, model.TransactionTypeWager, "并发扣款")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, repository.ErrBalanceNotEnough)
		}
	}
	require.Equal(t, 1, succeeded)

	balance, err := svc.GetBalance(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, int64(50), balance)
}

func TestAccountService_LedgerRecordsBothSides(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	svc := NewAccountService(db, cfg, newTestClock())
	ctx := context.Background()

	_, err := svc.GetAccount(ctx, 100)
	require.NoError(t, err)
	require.NoError(t, svc.Spend(ctx, 100, 50, model.TransactionTypePurchase, "买东西"))
	require.NoError(t, svc.AdminAddStars(ctx, 100, 30))

	records, total, err := svc.ListTransactions(ctx, 100, 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(2), total)

	// 每条流水的前后余额自洽
	for _, rec := range records {
		require.Equal(t, rec.BalanceBefore+rec.Amount, rec.BalanceAfter)
	}

	balance, err := svc.GetBalance(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, int64(180), balance)
}

func TestAccountService_AdminAddStarsCreatesAccount(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	svc := NewAccountService(db, cfg, newTestClock())
	ctx := context.Background()

	require.NoError(t, svc.AdminAddStars(ctx, 777, 500))

	balance, err := svc.GetBalance(ctx, 777)
	require.NoError(t, err)
	require.Equal(t, int64(700), balance) // 初始资金 + 调账
}
