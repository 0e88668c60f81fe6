package model

import (
	"time"
)

// Boost 增益道具表
// 用户持有的收益倍率道具，总倍率是所有道具倍率的乘积（与获得顺序无关）
type Boost struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"index;not null" json:"user_id"`
	BoostType string    `gorm:"type:varchar(32);not null" json:"boost_type"` // 目录里的道具ID
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Boost) TableName() string {
	return "boost"
}
