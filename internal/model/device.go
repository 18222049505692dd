package model

import (
	"time"
)

// Device 一条本地登记的设备记录，关联外部 WireGuard 客户端
type Device struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	UserID     int64     `gorm:"index;not null" json:"user_id"`
	Name       string    `gorm:"size:100;not null" json:"name"`
	IsExtra    bool      `gorm:"default:false" json:"is_extra"`
	WGClientID *string   `gorm:"size:64;column:wg_client_id" json:"wg_client_id,omitempty"`
	NodeID     *int64    `gorm:"index" json:"node_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Device) TableName() string {
	return "devices"
}
