package repository

import (
	"gorm.io/gorm"

	"github.com/qs3c/vpn_go_server/internal/model"
)

type TariffRepository struct {
	db *gorm.DB
}

func NewTariffRepository(db *gorm.DB) *TariffRepository {
	return &TariffRepository{db: db}
}

func (r *TariffRepository) Create(tariff *model.Tariff) error {
	return r.db.Create(tariff).Error
}

func (r *TariffRepository) GetByID(id int64) (*model.Tariff, error) {
	var tariff model.Tariff
	err := r.db.Where("id = ?", id).First(&tariff).Error
	if err != nil {
		return nil, err
	}
	return &tariff, nil
}

func (r *TariffRepository) ListActive() ([]*model.Tariff, error) {
	var tariffs []*model.Tariff
	err := r.db.Where("is_active = ?", true).Order("price ASC").Find(&tariffs).Error
	return tariffs, err
}

func (r *TariffRepository) Update(tariff *model.Tariff) error {
	return r.db.Save(tariff).Error
}

func (r *TariffRepository) Deactivate(id int64) error {
	return r.db.Model(&model.Tariff{}).Where("id = ?", id).
		Update("is_active", false).Error
}
