package dto

// AddDeviceRequest 新增设备请求
type AddDeviceRequest struct {
	Name string `json:"name" binding:"required,min=1,max=100"`
}

// DeviceInfo 设备信息
type DeviceInfo struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	IsExtra   bool   `json:"is_extra"`
	NodeID    int64  `json:"node_id,omitempty"`
	CreatedAt string `json:"created_at"`
}

// DeviceConfigResponse 设备配置下发
type DeviceConfigResponse struct {
	DeviceID int64  `json:"device_id"`
	Config   string `json:"config"`
}
