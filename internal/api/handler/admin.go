package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/vpn_go_server/internal/model/dto"
	"github.com/qs3c/vpn_go_server/internal/pkg/response"
	"github.com/qs3c/vpn_go_server/internal/service"
)

type AdminHandler struct {
	adminService *service.AdminService
}

func NewAdminHandler(adminService *service.AdminService) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
	}
}

// CreateNode 登记新节点
// POST /api/v1/admin/nodes
func (h *AdminHandler) CreateNode(c *gin.Context) {
	var req dto.CreateNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	info, err := h.adminService.CreateNode(&req)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.SuccessWithMessage(c, "节点已登记", info)
}

// UpdateNode 更新节点属性
// PUT /api/v1/admin/nodes/:id
func (h *AdminHandler) UpdateNode(c *gin.Context) {
	nodeID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的节点 ID")
		return
	}

	var req dto.UpdateNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	info, err := h.adminService.UpdateNode(nodeID, &req)
	if err != nil {
		if errors.Is(err, service.ErrNodeNotFound) {
			response.NotFoundError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	response.Success(c, info)
}

// ListNodes 节点列表
// GET /api/v1/admin/nodes
func (h *AdminHandler) ListNodes(c *gin.Context) {
	infos, err := h.adminService.ListNodes()
	if err != nil {
		response.ServerError(c, "")
		return
	}
	response.Success(c, infos)
}

// CreateTariff 上架套餐
// POST /api/v1/admin/tariffs
func (h *AdminHandler) CreateTariff(c *gin.Context) {
	var req dto.CreateTariffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	info, err := h.adminService.CreateTariff(&req)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.SuccessWithMessage(c, "套餐已上架", info)
}

// DeactivateTariff 下架套餐
// DELETE /api/v1/admin/tariffs/:id
func (h *AdminHandler) DeactivateTariff(c *gin.Context) {
	tariffID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的套餐 ID")
		return
	}

	if err := h.adminService.DeactivateTariff(tariffID); err != nil {
		response.ServerError(c, "")
		return
	}

	response.SuccessWithMessage(c, "套餐已下架", nil)
}

// GrantSubscription 手动发放订阅
// POST /api/v1/admin/grant
func (h *AdminHandler) GrantSubscription(c *gin.Context) {
	var req dto.GrantSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	if err := h.adminService.GrantSubscription(&req); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			response.NotFoundError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	response.SuccessWithMessage(c, "订阅已发放", nil)
}

// GrantAddon 调整附加设备窗口
// POST /api/v1/admin/addon
func (h *AdminHandler) GrantAddon(c *gin.Context) {
	var req dto.GrantAddonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	if err := h.adminService.GrantAddon(&req); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			response.NotFoundError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	response.SuccessWithMessage(c, "附加槽位已调整", nil)
}

// GetUser 按 ID 或用户名查询用户
// GET /api/v1/admin/users/:query
func (h *AdminHandler) GetUser(c *gin.Context) {
	info, err := h.adminService.FindUser(c.Param("query"))
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

// SystemStats 系统概况
// GET /api/v1/admin/stats/system
func (h *AdminHandler) SystemStats(c *gin.Context) {
	stats, err := h.adminService.SystemStats()
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, stats)
}

// PaymentStats 支付统计
// GET /api/v1/admin/stats?period=month
func (h *AdminHandler) PaymentStats(c *gin.Context) {
	period := c.DefaultQuery("period", "month")

	stats, err := h.adminService.PaymentStats(period)
	if err != nil {
		response.ParamError(c, err.Error())
		return
	}

	response.Success(c, stats)
}

// ListUsers 用户列表
// GET /api/v1/admin/users?page=1&page_size=20
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, pageSize := pagination(c)

	infos, total, err := h.adminService.ListUsers(page, pageSize)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.SuccessPage(c, total, page, pageSize, infos)
}

// Broadcast 群发通知
// POST /api/v1/admin/broadcast
func (h *AdminHandler) Broadcast(c *gin.Context) {
	var req dto.BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	if err := h.adminService.Broadcast(c.Request.Context(), req.Message, req.Scope); err != nil {
		response.ServerError(c, "")
		return
	}

	response.SuccessWithMessage(c, "通知已发送", nil)
}
