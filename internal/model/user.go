package model

import (
	"time"
)

type User struct {
	ID               int64      `gorm:"primaryKey" json:"id"`
	Username         string     `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Email            *string    `gorm:"size:100;uniqueIndex" json:"email,omitempty"`
	PasswordHash     *string    `gorm:"size:255" json:"-"`
	IsAdmin          bool       `gorm:"default:false" json:"is_admin"`
	Balance          float64    `gorm:"type:decimal(12,2);default:0" json:"balance"`
	ReferralCode     *string    `gorm:"size:64;uniqueIndex" json:"referral_code,omitempty"`
	ReferredByUserID *int64     `gorm:"index" json:"-"`
	// 基础订阅窗口与设备配额
	SubscriptionUntil *time.Time `json:"subscription_until,omitempty"`
	DeviceQuota       int        `gorm:"default:0" json:"device_quota"`
	// 附加设备窗口：所有附加槽位共享同一个到期锚点
	AddonUntil *time.Time `gorm:"column:addon_until" json:"addon_until,omitempty"`
	AddonCount int        `gorm:"column:addon_count;default:0" json:"addon_count"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// BaseActive 基础订阅窗口是否生效
func (u *User) BaseActive(now time.Time) bool {
	return u.SubscriptionUntil != nil && u.SubscriptionUntil.After(now)
}

// BaseQuota 基础设备配额；窗口过期时计为 0
func (u *User) BaseQuota(now time.Time) int {
	if !u.BaseActive(now) {
		return 0
	}
	return u.DeviceQuota
}

// AddonActive 附加设备窗口是否生效
func (u *User) AddonActive(now time.Time) bool {
	return u.AddonUntil != nil && u.AddonUntil.After(now)
}

// AddonQuota 附加设备配额；窗口过期时计为 0
func (u *User) AddonQuota(now time.Time) int {
	if !u.AddonActive(now) {
		return 0
	}
	return u.AddonCount
}

// TotalQuota 当前允许的设备总数
func (u *User) TotalQuota(now time.Time) int {
	return u.BaseQuota(now) + u.AddonQuota(now)
}
