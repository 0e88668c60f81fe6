package model

import (
	"time"
)

// Farm 农场实例表
// 一条记录对应用户拥有的一座农场。农场只在"已激活且距激活不足产出窗口"时产出，
// 窗口过期后它在逻辑上就是未激活的，存储里的 is_active 标志由下一次读到它的
// 收取/激活逻辑惰性翻转，系统里没有后台定时器负责这件事
type Farm struct {
	ID            int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        int64      `gorm:"index;not null" json:"user_id"`
	FarmType      string     `gorm:"type:varchar(32);not null" json:"farm_type"` // 目录里的农场档位ID
	LastActivated *time.Time `json:"last_activated"`                             // NULL 表示从未激活
	IsActive      bool       `gorm:"not null;default:false" json:"is_active"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"` // 购买/发放时间
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Farm) TableName() string {
	return "farm"
}

// ActiveWithin 判断农场在 now 时刻是否处于产出窗口内（逻辑状态，不看存储标志是否翻转过）
func (f *Farm) ActiveWithin(window time.Duration, now time.Time) bool {
	if !f.IsActive || f.LastActivated == nil {
		return false
	}
	return now.Sub(*f.LastActivated) < window
}
