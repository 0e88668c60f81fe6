package service

import (
	"context"
	"errors"
	"fmt"

	"starfarm/internal/config"
	"starfarm/internal/model"
	"starfarm/internal/repository"
	"starfarm/pkg/clock"
	"starfarm/pkg/idgen"

	"gorm.io/gorm"
)

// AccountService 账户台账
// 所有余额变动的唯一入口：入账、扣款、建户、流水查询都从这里走
type AccountService struct {
	db              *gorm.DB
	cfg             *config.Config
	clk             clock.Clock
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
}

func NewAccountService(db *gorm.DB, cfg *config.Config, clk clock.Clock) *AccountService {
	return &AccountService{
		db:              db,
		cfg:             cfg,
		clk:             clk,
		accountRepo:     repository.NewAccountRepository(db, cfg.Game.InitialStars),
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

// GetAccount 首次引用即建户，初始余额来自策略配置
func (s *AccountService) GetAccount(ctx context.Context, userID int64) (*model.Account, error) {
	return s.accountRepo.GetOrCreate(ctx, userID, s.clk.Now())
}

func (s *AccountService) GetBalance(ctx context.Context, userID int64) (int64, error) {
	account, err := s.GetAccount(ctx, userID)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// Credit 入账并记流水，必须在调用方的事务里执行
func (s *AccountService) Credit(ctx context.Context, tx *gorm.DB, userID int64, amount int64, transType, remark string) error {
	if amount <= 0 {
		return errors.New("入账金额必须大于0")
	}

	account, err := s.accountRepo.GetByUserID(ctx, tx, userID)
	if err != nil {
		return fmt.Errorf("查询账户失败: %w", err)
	}

	if err := s.accountRepo.Increase(ctx, tx, userID, amount); err != nil {
		return fmt.Errorf("入账失败: %w", err)
	}

	transaction := &model.AccountTransaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		UserID:        userID,
		Amount:        amount,
		Type:          transType,
		BalanceBefore: account.Balance,
		BalanceAfter:  account.Balance + amount,
		Remark:        remark,
	}
	if err := s.transactionRepo.Create(ctx, tx, transaction); err != nil {
		return fmt.Errorf("记录流水失败: %w", err)
	}

	return nil
}

// Debit 扣款并记流水，必须在调用方的事务里执行
//
// 余额不足返回 ErrBalanceNotEnough 且不改动任何数据；版本号冲突返回
// ErrOptimisticLock，调用方用 runTxWithRetry 重做整个事务即可——失败的
// 扣款不留任何痕迹，重试只是基于最新状态重新判断一次
func (s *AccountService) Debit(ctx context.Context, tx *gorm.DB, userID int64, amount int64, transType, remark string) error {
	if amount <= 0 {
		return errors.New("扣款金额必须大于0")
	}

	account, err := s.accountRepo.GetByUserID(ctx, tx, userID)
	if err != nil {
		return fmt.Errorf("查询账户失败: %w", err)
	}

	if err := s.accountRepo.Deduct(ctx, tx, userID, amount, account.Version); err != nil {
		return err
	}

	transaction := &model.AccountTransaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		UserID:        userID,
		Amount:        -amount,
		Type:          transType,
		BalanceBefore: account.Balance,
		BalanceAfter:  account.Balance - amount,
		Remark:        remark,
	}
	if err := s.transactionRepo.Create(ctx, tx, transaction); err != nil {
		return fmt.Errorf("记录流水失败: %w", err)
	}

	return nil
}

// Spend 独立的一笔扣款（购买、下注之外的通用入口）
func (s *AccountService) Spend(ctx context.Context, userID int64, amount int64, transType, remark string) error {
	if _, err := s.GetAccount(ctx, userID); err != nil {
		return err
	}
	return runTxWithRetry(s.db, s.cfg.Game.MaxRetryCount, func(tx *gorm.DB) error {
		return s.Debit(ctx, tx, userID, amount, transType, remark)
	})
}

// AdminAddStars 管理员调账
func (s *AccountService) AdminAddStars(ctx context.Context, userID int64, amount int64) error {
	if _, err := s.GetAccount(ctx, userID); err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		return s.Credit(ctx, tx, userID, amount, model.TransactionTypeAdmin, "管理员调账")
	})
}

func (s *AccountService) ListTransactions(ctx context.Context, userID int64, page, pageSize int) ([]*model.AccountTransaction, int64, error) {
	return s.transactionRepo.ListByUserID(ctx, userID, page, pageSize)
}

// runTxWithRetry 执行事务，乐观锁冲突时重做整个事务
// 冲突说明账户版本号在读和写之间被别的操作抢先推进了，整个事务已回滚，
// 基于最新状态重做是安全的
func runTxWithRetry(db *gorm.DB, maxRetry int, fn func(tx *gorm.DB) error) error {
	if maxRetry < 1 {
		maxRetry = 1
	}
	var err error
	for i := 0; i < maxRetry; i++ {
		err = db.Transaction(fn)
		if !errors.Is(err, repository.ErrOptimisticLock) {
			return err
		}
	}
	return err
}
