package dto

// BuyTariffRequest 购买套餐请求
type BuyTariffRequest struct {
	TariffID   int64 `json:"tariff_id" binding:"required"`
	UseBalance bool  `json:"use_balance"`
}

// BuyAddonRequest 购买附加设备槽位请求
type BuyAddonRequest struct {
	UseBalance bool `json:"use_balance"`
}

// CreatePaymentResponse 创建支付响应
type CreatePaymentResponse struct {
	PaymentID int64  `json:"payment_id"`
	Status    string `json:"status"`
	// ConfirmationURL 为空表示已用余额即时结算
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

// PaymentInfo 支付流水信息
type PaymentInfo struct {
	ID        int64   `json:"id"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Status    string  `json:"status"`
	Purpose   string  `json:"purpose"`
	TariffID  int64   `json:"tariff_id,omitempty"`
	CreatedAt string  `json:"created_at"`
}

// TariffInfo 套餐信息
type TariffInfo struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Days       int     `json:"days"`
	Price      float64 `json:"price"`
	MaxDevices int     `json:"max_devices"`
}
