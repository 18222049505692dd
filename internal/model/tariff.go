package model

import (
	"time"
)

type Tariff struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"size:100;not null" json:"name"`
	Days       int       `gorm:"not null" json:"days"`
	Price      float64   `gorm:"type:decimal(12,2);not null" json:"price"`
	MaxDevices int       `gorm:"not null" json:"max_devices"`
	IsActive   bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Tariff) TableName() string {
	return "tariffs"
}
