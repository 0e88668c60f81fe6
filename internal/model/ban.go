package model

import (
	"time"
)

// Ban 封禁表
type Ban struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"uniqueIndex;not null" json:"user_id"`
	Reason    string    `gorm:"type:varchar(256)" json:"reason"`
	BannedBy  int64     `gorm:"not null" json:"banned_by"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Ban) TableName() string {
	return "ban"
}
