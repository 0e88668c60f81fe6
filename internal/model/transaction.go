package model

import (
	"time"
)

// ============================================================================
// 交易类型常量
// ============================================================================

const (
	TransactionTypeCollect   = "COLLECT"    // 收取农场产出
	TransactionTypePurchase  = "PURCHASE"   // 购买农场/道具（扣款）
	TransactionTypeBid       = "BID"        // 拍卖出价（托管扣款）
	TransactionTypeBidRefund = "BID_REFUND" // 被超出价后的托管退回
	TransactionTypeReward    = "REWARD"     // 邀请奖励
	TransactionTypeWager     = "WAGER"      // 娱乐场下注（扣款）
	TransactionTypePayout    = "PAYOUT"     // 娱乐场派彩
	TransactionTypeAdmin     = "ADMIN"      // 管理员调账
)

// ============================================================================
// 账户流水实体
// ============================================================================

// AccountTransaction 账户流水表
// 记录账户的每一笔星星变动，是对账的核心依据
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除 —— 保证审计可追溯
// 2. 记录交易前后余额 —— 便于校验余额一致性
type AccountTransaction struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"` // 流水号（全局唯一）
	UserID        int64     `gorm:"index;not null" json:"user_id"`
	Amount        int64     `gorm:"not null" json:"amount"`                // 金额（正数入账，负数出账）
	Type          string    `gorm:"type:varchar(20);not null" json:"type"` // 交易类型
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`
	Remark        string    `gorm:"type:varchar(256)" json:"remark"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (AccountTransaction) TableName() string {
	return "account_transaction"
}
