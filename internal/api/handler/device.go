package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/vpn_go_server/internal/api/middleware"
	"github.com/qs3c/vpn_go_server/internal/model"
	"github.com/qs3c/vpn_go_server/internal/model/dto"
	"github.com/qs3c/vpn_go_server/internal/pkg/response"
	"github.com/qs3c/vpn_go_server/internal/service"
)

type DeviceHandler struct {
	enforcer *service.EnforcerService
}

func NewDeviceHandler(enforcer *service.EnforcerService) *DeviceHandler {
	return &DeviceHandler{
		enforcer: enforcer,
	}
}

// Add 登记新设备
// POST /api/v1/devices
func (h *DeviceHandler) Add(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req dto.AddDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	device, err := h.enforcer.AddDevice(c.Request.Context(), userID, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSubscriptionRequired):
			response.PermissionError(c, err.Error())
		case errors.Is(err, service.ErrNoFreeSlot):
			response.CapacityError(c, err.Error())
		case errors.Is(err, service.ErrNoCapacity):
			response.ProvisioningError(c, err.Error())
		default:
			response.ProvisioningError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "设备已添加", buildDeviceInfo(device))
}

// List 设备列表
// GET /api/v1/devices
func (h *DeviceHandler) List(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	devices, err := h.enforcer.ListDevices(userID)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	infos := make([]*dto.DeviceInfo, 0, len(devices))
	for _, d := range devices {
		infos = append(infos, buildDeviceInfo(d))
	}
	response.Success(c, infos)
}

// GetConfig 拉取设备的连接配置
// GET /api/v1/devices/:id/config
func (h *DeviceHandler) GetConfig(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	deviceID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的设备 ID")
		return
	}

	config, err := h.enforcer.GetDeviceConfig(c.Request.Context(), userID, deviceID)
	if err != nil {
		if errors.Is(err, service.ErrDeviceNotFound) {
			response.NotFoundError(c, err.Error())
			return
		}
		response.ProvisioningError(c, "")
		return
	}

	response.Success(c, &dto.DeviceConfigResponse{DeviceID: deviceID, Config: config})
}

// Remove 删除设备
// DELETE /api/v1/devices/:id
func (h *DeviceHandler) Remove(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	deviceID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的设备 ID")
		return
	}

	if err := h.enforcer.RemoveDevice(c.Request.Context(), userID, deviceID); err != nil {
		if errors.Is(err, service.ErrDeviceNotFound) {
			response.NotFoundError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	response.SuccessWithMessage(c, "设备已删除", nil)
}

func buildDeviceInfo(d *model.Device) *dto.DeviceInfo {
	info := &dto.DeviceInfo{
		ID:        d.ID,
		Name:      d.Name,
		IsExtra:   d.IsExtra,
		CreatedAt: d.CreatedAt.Format("2006-01-02 15:04:05"),
	}
	if d.NodeID != nil {
		info.NodeID = *d.NodeID
	}
	return info
}
