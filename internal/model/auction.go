package model

import (
	"time"
)

const (
	AuctionStatusActive = "ACTIVE"
	AuctionStatusEnded  = "ENDED"
)

// Auction 拍卖表
// 英式升价拍卖：current_bid 在生命周期内单调不减，任一时刻最多一个人持有
// 当前出价位。ENDED 是终态，到达后不允许任何状态变化。
// 当前出价人的出价额处于托管状态，被超出价时必须原路退回
type Auction struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	FarmType        string    `gorm:"type:varchar(32);not null" json:"farm_type"` // 拍品：目录里的农场档位
	StartingPrice   int64     `gorm:"not null" json:"starting_price"`
	CurrentBid      int64     `gorm:"not null" json:"current_bid"` // >= starting_price
	CurrentBidderID *int64    `json:"current_bidder_id"`           // NULL 表示还没有人出价
	EndTime         time.Time `gorm:"not null;index" json:"end_time"`
	Status          string    `gorm:"type:varchar(20);index;not null" json:"status"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Auction) TableName() string {
	return "auction"
}

// Expired 到期判断。到期但状态还没翻转的拍卖在逻辑上已结束，
// 翻转由下一个触碰它的出价/结算惰性完成
func (a *Auction) Expired(now time.Time) bool {
	return !now.Before(a.EndTime)
}

// AuctionBid 出价历史表，只追加，用于审计和对账
type AuctionBid struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AuctionID int64     `gorm:"index;not null" json:"auction_id"`
	UserID    int64     `gorm:"index;not null" json:"user_id"`
	Amount    int64     `gorm:"not null" json:"amount"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (AuctionBid) TableName() string {
	return "auction_bid"
}
