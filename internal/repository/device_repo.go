package repository

import (
	"gorm.io/gorm"

	"github.com/qs3c/vpn_go_server/internal/model"
)

type DeviceRepository struct {
	db *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

func (r *DeviceRepository) Create(device *model.Device) error {
	return r.db.Create(device).Error
}

func (r *DeviceRepository) GetByID(id int64) (*model.Device, error) {
	var device model.Device
	err := r.db.Where("id = ?", id).First(&device).Error
	if err != nil {
		return nil, err
	}
	return &device, nil
}

// ListByUser 按创建时间升序返回用户全部设备，最早的排最前
func (r *DeviceRepository) ListByUser(userID int64) ([]*model.Device, error) {
	var devices []*model.Device
	err := r.db.Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").Find(&devices).Error
	return devices, err
}

// ListByUserClass 按类别（基础 / 附加）返回用户设备
func (r *DeviceRepository) ListByUserClass(userID int64, isExtra bool) ([]*model.Device, error) {
	var devices []*model.Device
	err := r.db.Where("user_id = ? AND is_extra = ?", userID, isExtra).
		Order("created_at ASC, id ASC").Find(&devices).Error
	return devices, err
}

func (r *DeviceRepository) CountByUserClass(userID int64, isExtra bool) (int64, error) {
	var count int64
	err := r.db.Model(&model.Device{}).
		Where("user_id = ? AND is_extra = ?", userID, isExtra).Count(&count).Error
	return count, err
}

func (r *DeviceRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&model.Device{}).Count(&count).Error
	return count, err
}

func (r *DeviceRepository) Delete(id int64) error {
	return r.db.Delete(&model.Device{}, id).Error
}

func (r *DeviceRepository) DeleteByIDs(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.Delete(&model.Device{}, ids).Error
}
