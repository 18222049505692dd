package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/vpn_go_server/internal/api/middleware"
	"github.com/qs3c/vpn_go_server/internal/pkg/response"
	"github.com/qs3c/vpn_go_server/internal/service"
)

type UserHandler struct {
	enforcer       *service.EnforcerService
	paymentService *service.PaymentService
	authService    *service.AuthService
}

func NewUserHandler(
	enforcer *service.EnforcerService,
	paymentService *service.PaymentService,
	authService *service.AuthService,
) *UserHandler {
	return &UserHandler{
		enforcer:       enforcer,
		paymentService: paymentService,
		authService:    authService,
	}
}

// GetProfile 获取当前用户信息和权益快照
// GET /api/v1/user/profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	info, err := h.enforcer.GetProfile(userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			response.NotFoundError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	response.Success(c, info)
}

// GetReferral 推荐计划信息
// GET /api/v1/user/referral
func (h *UserHandler) GetReferral(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	info, err := h.authService.ReferralInfo(userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			response.NotFoundError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	response.Success(c, info)
}

// ListPayments 账单列表
// GET /api/v1/user/payments?page=1&page_size=20
func (h *UserHandler) ListPayments(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	page, pageSize := pagination(c)

	infos, total, err := h.paymentService.ListPayments(userID, page, pageSize)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.SuccessPage(c, total, page, pageSize, infos)
}

func pagination(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if err != nil || pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
