package repository

import (
	"context"
	"errors"
	"time"

	"starfarm/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAccountNotFound  = errors.New("账户不存在")
	ErrBalanceNotEnough = errors.New("星星余额不足")
	ErrOptimisticLock   = errors.New("乐观锁冲突，请重试")
)

type AccountRepository struct {
	db           *gorm.DB
	initialStars int64 // 新账户的初始余额，来自策略配置
}

func NewAccountRepository(db *gorm.DB, initialStars int64) *AccountRepository {
	return &AccountRepository{db: db, initialStars: initialStars}
}

func (r *AccountRepository) GetByUserID(ctx context.Context, tx *gorm.DB, userID int64) (*model.Account, error) {
	if tx == nil {
		tx = r.db
	}
	var account model.Account
	err := tx.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// Deduct 扣减余额
//
// 【关键点】"检查余额够不够再扣"不能拆成两条语句做，否则两个并发扣款
// 都会读到同一个余额然后都成功，把账户扣成负数。这里用一条带条件的
// UPDATE 让数据库原子地完成检查+扣减，RowsAffected == 0 再回头区分
// 到底是余额不足还是版本号被别人抢先改掉了
func (r *AccountRepository) Deduct(ctx context.Context, tx *gorm.DB, userID int64, amount int64, version int) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("user_id = ? AND balance >= ? AND version = ?", userID, amount, version).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance - ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		account, err := r.GetByUserID(ctx, tx, userID)
		if err != nil {
			return err
		}
		if account.Balance < amount {
			return ErrBalanceNotEnough
		}
		return ErrOptimisticLock
	}

	return nil
}

// Increase 增加余额（入账没有失败语义，账户必须已存在）
func (r *AccountRepository) Increase(ctx context.Context, tx *gorm.DB, userID int64, amount int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance + ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}

	return nil
}

// UpdateLastCollect 推进收取时间戳。无论本次收了多少（哪怕是 0），
// 时间戳都要推进，否则下一次收取会把同一段时间重复结算
func (r *AccountRepository) UpdateLastCollect(ctx context.Context, tx *gorm.DB, userID int64, t time.Time) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("user_id = ?", userID).
		Update("last_collect", t).Error
}

// GetOrCreate 首次引用即建户，初始余额和收取时间戳在插入时种好。
// OnConflict DoNothing 让并发建同一个账户时只有一条插入生效
func (r *AccountRepository) GetOrCreate(ctx context.Context, userID int64, now time.Time) (*model.Account, error) {
	account, err := r.GetByUserID(ctx, nil, userID)
	if err == nil {
		return account, nil
	}

	if !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}

	newAccount := &model.Account{
		UserID:      userID,
		Balance:     r.initialStars,
		LastCollect: &now,
	}

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(newAccount).Error

	if err != nil {
		return nil, err
	}

	return r.GetByUserID(ctx, nil, userID)
}
