package dto

// UserInfo 用户信息（返回给前端）
type UserInfo struct {
	ID           int64            `json:"id"`
	Username     string           `json:"username"`
	Email        string           `json:"email,omitempty"`
	Balance      float64          `json:"balance"`
	ReferralCode string           `json:"referral_code,omitempty"`
	IsAdmin      bool             `json:"is_admin,omitempty"`
	Entitlement  *EntitlementInfo `json:"entitlement,omitempty"`
	CreatedAt    string           `json:"created_at,omitempty"`
}

// EntitlementInfo 当前权益快照
type EntitlementInfo struct {
	SubscriptionActive bool   `json:"subscription_active"`
	SubscriptionUntil  string `json:"subscription_until,omitempty"`
	BaseQuota          int    `json:"base_quota"`
	AddonActive        bool   `json:"addon_active"`
	AddonUntil         string `json:"addon_until,omitempty"`
	AddonQuota         int    `json:"addon_quota"`
	TotalQuota         int    `json:"total_quota"`
	DevicesUsed        int    `json:"devices_used"`
}

// TopUpBalanceRequest 余额充值请求
type TopUpBalanceRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

// ReferralInfoResponse 推荐计划信息
type ReferralInfoResponse struct {
	ReferralCode string  `json:"referral_code"`
	TrialDays    int     `json:"trial_days"`
	BonusPercent int     `json:"bonus_percent"`
	FixedBonus   float64 `json:"fixed_bonus"`
}
