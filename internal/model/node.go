package model

import (
	"time"
)

// Node 一台 WG-Easy 出口节点，Load 记录当前已分配的客户端数
type Node struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	APIURL      string    `gorm:"size:255;not null;column:api_url" json:"api_url"`
	APIPassword string    `gorm:"size:255;not null;column:api_password" json:"-"`
	Load        int       `gorm:"default:0" json:"load"`
	MaxCapacity int       `gorm:"default:100" json:"max_capacity"`
	IsActive    bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Node) TableName() string {
	return "nodes"
}

// HasCapacity 是否还能接纳新客户端
func (n *Node) HasCapacity() bool {
	return n.IsActive && n.Load < n.MaxCapacity
}
