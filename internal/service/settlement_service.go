package service

import (
	"context"
	"errors"
	"log"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/vpn_go_server/config"
	"github.com/qs3c/vpn_go_server/internal/model"
	"github.com/qs3c/vpn_go_server/internal/pkg/pubsub"
	"github.com/qs3c/vpn_go_server/internal/repository"
)

var (
	ErrPaymentNotFound     = errors.New("支付流水不存在")
	ErrTariffNotFound      = errors.New("套餐不存在")
	ErrSubscriptionActive  = errors.New("当前订阅尚未到期")
	ErrInsufficientBalance = errors.New("余额不足")
)

// SettlementService 支付结算。权益副作用与状态迁移在同一事务内提交，
// 迁移失败（流水已离开 pending）时不施加任何副作用。
type SettlementService struct {
	db          *gorm.DB
	paymentRepo *repository.PaymentRepository
	gateway     GatewayClient
	notifier    Notifier
	cfg         *config.Config
}

func NewSettlementService(
	db *gorm.DB,
	paymentRepo *repository.PaymentRepository,
	gateway GatewayClient,
	notifier Notifier,
	cfg *config.Config,
) *SettlementService {
	return &SettlementService{
		db:          db,
		paymentRepo: paymentRepo,
		gateway:     gateway,
		notifier:    notifier,
		cfg:         cfg,
	}
}

// Transition 把 pending 流水迁移到终态并施加权益副作用。
// 返回 applied=false 表示流水已被并发路径结算，本次调用无任何效果。
func (s *SettlementService) Transition(ctx context.Context, paymentID int64, to string) (bool, error) {
	if to != model.PaymentStatusSucceeded && to != model.PaymentStatusCanceled {
		return false, errors.New("无效的目标状态")
	}

	applied := false
	var settled model.Payment
	var credit *referralCredit

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var payment model.Payment
		if err := tx.Where("id = ?", paymentID).First(&payment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPaymentNotFound
			}
			return err
		}

		ok, err := s.paymentRepo.TransitionStatusTx(tx, payment.ID, to)
		if err != nil {
			return err
		}
		if !ok {
			// 已被别的路径结算，放弃且不回滚别人的效果
			return nil
		}
		applied = true
		settled = payment
		settled.Status = to

		if to != model.PaymentStatusSucceeded {
			return nil
		}

		// 余额支付在结算事务内扣款，余额不足则整体回滚
		if payment.FundedByBalance() {
			res := tx.Model(&model.User{}).
				Where("id = ? AND balance >= ?", payment.UserID, payment.Amount).
				Update("balance", gorm.Expr("balance - ?", payment.Amount))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrInsufficientBalance
			}
		}

		credit, err = s.applyEffects(tx, &payment)
		return err
	})
	if err != nil {
		return false, err
	}

	if applied {
		s.notifySettled(ctx, &settled)
		if credit != nil {
			s.notifyReferralCredit(ctx, credit)
		}
	}

	return applied, nil
}

// referralCredit 结算事务内产生的推荐返利，提交后补发通知
type referralCredit struct {
	userID int64
	amount float64
}

// applyEffects 成功支付的权益落账，必须在迁移事务内调用
func (s *SettlementService) applyEffects(tx *gorm.DB, payment *model.Payment) (*referralCredit, error) {
	var user model.User
	if err := tx.Where("id = ?", payment.UserID).First(&user).Error; err != nil {
		return nil, err
	}

	now := time.Now()

	switch payment.Purpose {
	case model.PurposeSubscription:
		if payment.TariffID == nil {
			return nil, ErrTariffNotFound
		}
		var tariff model.Tariff
		if err := tx.Where("id = ?", *payment.TariffID).First(&tariff).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrTariffNotFound
			}
			return nil, err
		}

		// 到期锚点：未过期则顺延，已过期从现在起算
		anchor := now
		if user.SubscriptionUntil != nil && user.SubscriptionUntil.After(now) {
			anchor = *user.SubscriptionUntil
		}
		until := anchor.AddDate(0, 0, tariff.Days)

		// 配额整体替换为新套餐的设备数，不做累加
		if err := tx.Model(&model.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
			"subscription_until": until,
			"device_quota":       tariff.MaxDevices,
		}).Error; err != nil {
			return nil, err
		}

		bonus, err := s.applyReferralBonus(tx, &user, payment.Amount)
		if err != nil {
			return nil, err
		}
		if bonus > 0 {
			return &referralCredit{userID: *user.ReferredByUserID, amount: bonus}, nil
		}
		return nil, nil

	case model.PurposeAddon:
		days := s.cfg.Billing.AddonPeriodDays
		anchor := now
		if user.AddonUntil != nil && user.AddonUntil.After(now) {
			anchor = *user.AddonUntil
		}
		until := anchor.AddDate(0, 0, days)

		return nil, tx.Model(&model.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
			"addon_until": until,
			"addon_count": gorm.Expr("addon_count + 1"),
		}).Error

	case model.PurposeTopup:
		return nil, tx.Model(&model.User{}).Where("id = ?", user.ID).
			Update("balance", gorm.Expr("balance + ?", payment.Amount)).Error

	default:
		return nil, errors.New("未知的支付用途")
	}
}

// applyReferralBonus 给推荐人返利，只在订阅购买时触发。返回实际入账金额
func (s *SettlementService) applyReferralBonus(tx *gorm.DB, user *model.User, amount float64) (float64, error) {
	if user.ReferredByUserID == nil {
		return 0, nil
	}
	percent := s.cfg.Billing.ReferralBonusPercent
	if percent <= 0 {
		return 0, nil
	}

	bonus := roundToMinorUnit(amount * float64(percent) / 100)
	if bonus <= 0 {
		return 0, nil
	}

	err := tx.Model(&model.User{}).Where("id = ?", *user.ReferredByUserID).
		Update("balance", gorm.Expr("balance + ?", bonus)).Error
	if err != nil {
		return 0, err
	}
	return bonus, nil
}

// roundToMinorUnit 四舍五入到分（0.5 进位）
func roundToMinorUnit(x float64) float64 {
	return math.Floor(x*100+0.5) / 100
}

// CheckAndSettle 向网关查询一笔 pending 流水并按网关状态结算。
// 返回 done=true 表示流水已到终态（本次或之前），调用方可停止关注。
func (s *SettlementService) CheckAndSettle(ctx context.Context, paymentID int64) (bool, error) {
	payment, err := s.paymentRepo.GetByID(paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrPaymentNotFound
		}
		return false, err
	}

	if !payment.IsPending() {
		return true, nil
	}
	if payment.YKPaymentID == nil {
		// 没有网关对象的流水只能由余额路径结算
		return false, nil
	}

	remote, err := s.gateway.GetPayment(ctx, *payment.YKPaymentID)
	if err != nil {
		return false, err
	}

	switch remote.Status {
	case "succeeded":
		_, err = s.Transition(ctx, payment.ID, model.PaymentStatusSucceeded)
		return err == nil, err
	case "canceled":
		_, err = s.Transition(ctx, payment.ID, model.PaymentStatusCanceled)
		return err == nil, err
	default:
		return false, nil
	}
}

// notifySettled 结算完成后的通知，尽力而为
func (s *SettlementService) notifySettled(ctx context.Context, payment *model.Payment) {
	if s.notifier == nil {
		return
	}

	kind := pubsub.KindPaymentSucceeded
	if payment.Status == model.PaymentStatusCanceled {
		kind = pubsub.KindPaymentCanceled
	}

	err := s.notifier.PublishNotification(ctx, &pubsub.Notification{
		Kind:      kind,
		UserID:    payment.UserID,
		PaymentID: payment.ID,
		Amount:    payment.Amount,
		Purpose:   payment.Purpose,
	})
	if err != nil {
		log.Printf("Failed to publish settlement notification for payment %d: %v", payment.ID, err)
	}
}

// notifyReferralCredit 推荐返利到账通知，尽力而为
func (s *SettlementService) notifyReferralCredit(ctx context.Context, credit *referralCredit) {
	if s.notifier == nil {
		return
	}

	err := s.notifier.PublishNotification(ctx, &pubsub.Notification{
		Kind:   pubsub.KindReferralCredit,
		UserID: credit.userID,
		Amount: credit.amount,
	})
	if err != nil {
		log.Printf("Failed to publish referral credit notification for user %d: %v", credit.userID, err)
	}
}
