package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/vpn_go_server/internal/model"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(payment *model.Payment) error {
	return r.db.Create(payment).Error
}

func (r *PaymentRepository) GetByID(id int64) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.Where("id = ?", id).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *PaymentRepository) GetByYKPaymentID(ykID string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.Where("yk_payment_id = ?", ykID).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListPending 按创建时间从旧到新取一批待确认流水
func (r *PaymentRepository) ListPending(limit int) ([]*model.Payment, error) {
	var payments []*model.Payment
	err := r.db.Where("status = ?", model.PaymentStatusPending).
		Order("created_at ASC, id ASC").Limit(limit).Find(&payments).Error
	return payments, err
}

func (r *PaymentRepository) ListByUser(userID int64, offset, limit int) ([]*model.Payment, int64, error) {
	var payments []*model.Payment
	var total int64

	if err := r.db.Model(&model.Payment{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&payments).Error
	return payments, total, err
}

// TransitionStatusTx 在事务内把 pending 流水迁移到终态。
// 返回 false 表示流水已不在 pending（被并发路径抢先），调用方不得再施加任何副作用。
func (r *PaymentRepository) TransitionStatusTx(tx *gorm.DB, id int64, to string) (bool, error) {
	res := tx.Model(&model.Payment{}).
		Where("id = ? AND status = ?", id, model.PaymentStatusPending).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SucceededStats 统计某时间点之后成功流水的笔数与总额
func (r *PaymentRepository) SucceededStats(since time.Time) (int64, float64, error) {
	type row struct {
		Count int64
		Total float64
	}
	var out row
	err := r.db.Model(&model.Payment{}).
		Select("COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total").
		Where("status = ? AND created_at >= ?", model.PaymentStatusSucceeded, since).
		Scan(&out).Error
	return out.Count, out.Total, err
}
