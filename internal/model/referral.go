package model

import (
	"time"
)

// Referral 邀请关系表
// referred_id 上的唯一索引保证一个用户终身只能被邀请一次，
// 并发注册时由数据库裁决先写者胜
type Referral struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ReferrerID  int64     `gorm:"index;not null" json:"referrer_id"`
	ReferredID  int64     `gorm:"uniqueIndex;not null" json:"referred_id"`
	RewardGiven bool      `gorm:"not null;default:false" json:"reward_given"` // false -> true 只发生一次
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Referral) TableName() string {
	return "referral"
}
