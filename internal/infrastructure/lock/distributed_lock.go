package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 分布式锁实现
// ============================================================================
//
// 收取产出是一段跨多行的读-算-写（读 last_collect、逐农场算收益、写回
// 时间戳并入账），同一用户的两次并发收取如果交错执行，同一段时间会被
// 结算两次。拍卖出价同理：退回旧托管、扣新托管、更新当前价必须作为
// 一个整体串行执行。锁的粒度按实体划分（按用户、按拍卖），不同实体
// 之间照常并发。
//
// 加锁：SET key value NX EX timeout
//   - NX 保证互斥，EX 防止持有者崩溃后死锁
//   - value 是持有者标识，释放时验证，避免误删别人的锁
//
// 释放锁：Lua 脚本保证"检查 value + 删除"的原子性
//
// ============================================================================

var (
	ErrLockFailed  = errors.New("获取分布式锁失败")
	ErrLockExpired = errors.New("锁已过期")
)

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string        // 锁持有者标识
	expiration time.Duration // 过期时间
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
			// 继续重试
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁
// value 不匹配说明锁已过期且被别人持有，此时不能删
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}

// ============================================================================
// 便捷函数：按实体维度的锁
// ============================================================================

// NewCollectLock 收取产出锁（按用户维度）
// 同一用户的收取串行，不同用户互不影响
func NewCollectLock(client *redis.Client, userID int64, token string) *DistributedLock {
	key := fmt.Sprintf("farm:lock:collect:%d", userID)
	return NewDistributedLock(client, key, token, 30*time.Second)
}

// NewBidLock 拍卖出价锁（按拍卖维度）
// 同一拍卖的出价串行，不同拍卖互不影响
func NewBidLock(client *redis.Client, auctionID int64, token string) *DistributedLock {
	key := fmt.Sprintf("auction:lock:bid:%d", auctionID)
	return NewDistributedLock(client, key, token, 30*time.Second)
}
