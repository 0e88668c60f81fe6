package job

import (
	"context"
	"errors"
	"testing"

	"starfarm/internal/config"
	"starfarm/internal/model"
	"starfarm/internal/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newJobDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&model.OutboxMessage{}))
	return db
}

func pendingMessage(t *testing.T, db *gorm.DB) *model.OutboxMessage {
	t.Helper()
	msg := &model.OutboxMessage{
		MessageKey: "auction-1",
		Topic:      "starfarm.auction.result",
		Payload:    `{"auction_id":1}`,
		Status:     model.OutboxStatusPending,
	}
	require.NoError(t, db.Create(msg).Error)
	return msg
}

func TestOutboxSender_MarksSentOnSuccess(t *testing.T) {
	db := newJobDB(t)
	cfg := &config.Config{Game: config.GameConfig{MaxRetryCount: 3}}
	msg := pendingMessage(t, db)

	sender := NewOutboxSender(db, cfg)
	var sentTopics []string
	sender.send = func(topic, key, value string) error {
		sentTopics = append(sentTopics, topic)
		return nil
	}

	sender.processPendingMessages(context.Background())

	require.Equal(t, []string{"starfarm.auction.result"}, sentTopics)

	var stored model.OutboxMessage
	require.NoError(t, db.First(&stored, msg.ID).Error)
	require.Equal(t, model.OutboxStatusSent, stored.Status)

	// 已发送的消息不会再被捞出来
	pending, err := repository.NewOutboxRepository(db).GetPendingMessages(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestOutboxSender_RetriesThenFails(t *testing.T) {
	db := newJobDB(t)
	cfg := &config.Config{Game: config.GameConfig{MaxRetryCount: 2}}
	msg := pendingMessage(t, db)

	sender := NewOutboxSender(db, cfg)
	sender.send = func(topic, key, value string) error {
		return errors.New("broker不可达")
	}

	// 第一次失败只累计重试次数
	sender.processPendingMessages(context.Background())
	var stored model.OutboxMessage
	require.NoError(t, db.First(&stored, msg.ID).Error)
	require.Equal(t, model.OutboxStatusPending, stored.Status)
	require.Equal(t, 1, stored.RetryCount)

	// 第二次失败达到上限，标记为失败
	sender.processPendingMessages(context.Background())
	require.NoError(t, db.First(&stored, msg.ID).Error)
	require.Equal(t, model.OutboxStatusFailed, stored.Status)
}
