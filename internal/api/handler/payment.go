package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/vpn_go_server/internal/api/middleware"
	"github.com/qs3c/vpn_go_server/internal/model/dto"
	"github.com/qs3c/vpn_go_server/internal/pkg/response"
	"github.com/qs3c/vpn_go_server/internal/service"
)

type PaymentHandler struct {
	paymentService *service.PaymentService
}

func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

// ListTariffs 在售套餐
// GET /api/v1/tariffs
func (h *PaymentHandler) ListTariffs(c *gin.Context) {
	infos, err := h.paymentService.ListTariffs()
	if err != nil {
		response.ServerError(c, "")
		return
	}
	response.Success(c, infos)
}

// BuyTariff 购买订阅套餐
// POST /api/v1/payments/tariff
func (h *PaymentHandler) BuyTariff(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req dto.BuyTariffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.paymentService.BuyTariff(c.Request.Context(), userID, &req)
	if err != nil {
		h.writePaymentError(c, err)
		return
	}

	response.Success(c, resp)
}

// BuyAddon 购买附加设备槽位
// POST /api/v1/payments/addon
func (h *PaymentHandler) BuyAddon(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req dto.BuyAddonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.paymentService.BuyAddon(c.Request.Context(), userID, &req)
	if err != nil {
		h.writePaymentError(c, err)
		return
	}

	response.Success(c, resp)
}

// TopUp 余额充值
// POST /api/v1/payments/topup
func (h *PaymentHandler) TopUp(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req dto.TopUpBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.paymentService.TopUp(c.Request.Context(), userID, req.Amount)
	if err != nil {
		h.writePaymentError(c, err)
		return
	}

	response.Success(c, resp)
}

func (h *PaymentHandler) writePaymentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTariffNotFound):
		response.NotFoundError(c, err.Error())
	case errors.Is(err, service.ErrInsufficientBalance):
		response.ParamError(c, err.Error())
	case errors.Is(err, service.ErrSubscriptionActive):
		response.ParamError(c, err.Error())
	case errors.Is(err, service.ErrSubscriptionRequired):
		response.PermissionError(c, err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFoundError(c, err.Error())
	default:
		response.GatewayError(c, "")
	}
}
