package model

import (
	"time"
)

// 支付状态
const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusCanceled  = "canceled"
)

// 支付用途
const (
	PurposeSubscription = "SUBSCRIPTION"
	PurposeAddon        = "ADDON"
	PurposeTopup        = "TOPUP"
)

// Payment 支付流水，状态机 pending -> succeeded / canceled，只能迁移一次
type Payment struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	UserID      int64     `gorm:"index;not null" json:"user_id"`
	YKPaymentID *string   `gorm:"size:64;uniqueIndex;column:yk_payment_id" json:"yk_payment_id,omitempty"`
	Amount      float64   `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency    string    `gorm:"size:8;not null" json:"currency"`
	Status      string    `gorm:"size:16;not null;index;default:pending" json:"status"`
	Purpose     string    `gorm:"size:16;not null" json:"purpose"`
	TariffID    *int64    `json:"tariff_id,omitempty"`
	Meta        string    `gorm:"type:text" json:"meta,omitempty"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

// IsPending 是否仍待确认
func (p *Payment) IsPending() bool {
	return p.Status == PaymentStatusPending
}

// Meta 中的资金来源标记
const MetaFundingBalance = `{"funding":"balance"}`

// FundedByBalance 是否由账户余额支付
func (p *Payment) FundedByBalance() bool {
	return p.Meta == MetaFundingBalance
}
