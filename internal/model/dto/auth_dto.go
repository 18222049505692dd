package dto

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username     string `json:"username" binding:"required,min=3,max=50"`
	Email        string `json:"email" binding:"omitempty,email"`
	Password     string `json:"password" binding:"required,min=8,max=32"`
	ReferralCode string `json:"referral_code" binding:"omitempty,max=32"`
}

// RegisterResponse 注册响应
type RegisterResponse struct {
	UserID       int64  `json:"user_id"`
	ReferralCode string `json:"referral_code"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token string    `json:"token"`
	User  *UserInfo `json:"user"`
}
