package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/vpn_go_server/internal/model"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(user *model.User) error {
	return r.db.Create(user).Error
}

func (r *UserRepository) GetByID(id int64) (*model.User, error) {
	var user model.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByUsername(username string) (*model.User, error) {
	var user model.User
	err := r.db.Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByReferralCode(code string) (*model.User, error) {
	var user model.User
	err := r.db.Where("referral_code = ?", code).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) Update(user *model.User) error {
	return r.db.Save(user).Error
}

func (r *UserRepository) UpdateFields(id int64, fields map[string]interface{}) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).Updates(fields).Error
}

// AddBalance 余额增减（负数为扣减）
func (r *UserRepository) AddBalance(id int64, delta float64) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).
		Update("balance", gorm.Expr("balance + ?", delta)).Error
}

func (r *UserRepository) ExistsByUsername(username string) (bool, error) {
	var count int64
	err := r.db.Model(&model.User{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}

// ListIDs 返回所有用户 ID，供权益巡检使用
func (r *UserRepository) ListIDs() ([]int64, error) {
	var ids []int64
	err := r.db.Model(&model.User{}).Order("id ASC").Pluck("id", &ids).Error
	return ids, err
}

// ListIDsBySubscription 按订阅状态筛选用户 ID，定向通知用
func (r *UserRepository) ListIDsBySubscription(now time.Time, active bool) ([]int64, error) {
	var ids []int64
	query := r.db.Model(&model.User{})
	if active {
		query = query.Where("subscription_until > ?", now)
	} else {
		query = query.Where("subscription_until IS NULL OR subscription_until <= ?", now)
	}
	err := query.Order("id ASC").Pluck("id", &ids).Error
	return ids, err
}

func (r *UserRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&model.User{}).Count(&count).Error
	return count, err
}

// CountActiveSubscriptions 基础订阅窗口未过期的用户数
func (r *UserRepository) CountActiveSubscriptions(now time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&model.User{}).Where("subscription_until > ?", now).Count(&count).Error
	return count, err
}

// ListExpiringSubscriptions 订阅在 [from, to) 内到期且留有邮箱的用户，到期提醒用
func (r *UserRepository) ListExpiringSubscriptions(from, to time.Time) ([]*model.User, error) {
	var users []*model.User
	err := r.db.
		Where("subscription_until >= ? AND subscription_until < ?", from, to).
		Where("email IS NOT NULL").
		Order("subscription_until ASC").
		Find(&users).Error
	return users, err
}

func (r *UserRepository) List(offset, limit int) ([]*model.User, int64, error) {
	var users []*model.User
	var total int64

	if err := r.db.Model(&model.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.Order("id ASC").Offset(offset).Limit(limit).Find(&users).Error
	return users, total, err
}
