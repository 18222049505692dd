package dto

// CreateNodeRequest 新增节点请求
type CreateNodeRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=100"`
	APIURL      string `json:"api_url" binding:"required,url"`
	APIPassword string `json:"api_password" binding:"required"`
	MaxCapacity int    `json:"max_capacity" binding:"required,gt=0"`
}

// UpdateNodeRequest 更新节点请求
type UpdateNodeRequest struct {
	Name        *string `json:"name,omitempty" binding:"omitempty,min=1,max=100"`
	APIURL      *string `json:"api_url,omitempty" binding:"omitempty,url"`
	APIPassword *string `json:"api_password,omitempty"`
	MaxCapacity *int    `json:"max_capacity,omitempty" binding:"omitempty,gt=0"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// NodeInfo 节点信息
type NodeInfo struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	APIURL      string `json:"api_url"`
	Load        int    `json:"load"`
	MaxCapacity int    `json:"max_capacity"`
	IsActive    bool   `json:"is_active"`
}

// CreateTariffRequest 新增套餐请求
type CreateTariffRequest struct {
	Name       string  `json:"name" binding:"required,min=1,max=100"`
	Days       int     `json:"days" binding:"required,gt=0"`
	Price      float64 `json:"price" binding:"required,gt=0"`
	MaxDevices int     `json:"max_devices" binding:"required,gt=0"`
}

// GrantSubscriptionRequest 管理员手动发放订阅
type GrantSubscriptionRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
	Days   int   `json:"days" binding:"required,gt=0"`
	Quota  int   `json:"quota" binding:"required,gt=0"`
}

// PaymentStatsResponse 支付统计
type PaymentStatsResponse struct {
	Period     string  `json:"period"`
	Count      int64   `json:"count"`
	TotalValue float64 `json:"total_value"`
}

// GrantAddonRequest 手动调整附加设备窗口
type GrantAddonRequest struct {
	UserID     int64 `json:"user_id" binding:"required"`
	CountDelta int   `json:"count_delta"`
	ExtendDays int   `json:"extend_days" binding:"omitempty,gt=0"`
	Reset      bool  `json:"reset"`
}

// SystemStatsResponse 系统概况
type SystemStatsResponse struct {
	TotalUsers          int64 `json:"total_users"`
	ActiveSubscriptions int64 `json:"active_subscriptions"`
	TotalDevices        int64 `json:"total_devices"`
}

// BroadcastRequest 通知请求。scope 取 all / active / inactive
type BroadcastRequest struct {
	Message string `json:"message" binding:"required,min=1,max=2000"`
	Scope   string `json:"scope" binding:"omitempty,oneof=all active inactive"`
}
