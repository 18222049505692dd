package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/vpn_go_server/config"
	"github.com/qs3c/vpn_go_server/internal/model"
	"github.com/qs3c/vpn_go_server/internal/model/dto"
	"github.com/qs3c/vpn_go_server/internal/pkg/pubsub"
	"github.com/qs3c/vpn_go_server/internal/repository"
	"github.com/qs3c/vpn_go_server/internal/worker"
)

// PaymentService 下单入口。余额足额时走即时结算，
// 否则在网关创建支付并启动该账户的观察任务。
type PaymentService struct {
	paymentRepo *repository.PaymentRepository
	tariffRepo  *repository.TariffRepository
	userRepo    *repository.UserRepository
	settlement  *SettlementService
	gateway     GatewayClient
	watcher     *worker.Watcher
	cfg         *config.Config
}

func NewPaymentService(
	paymentRepo *repository.PaymentRepository,
	tariffRepo *repository.TariffRepository,
	userRepo *repository.UserRepository,
	settlement *SettlementService,
	gateway GatewayClient,
	watcher *worker.Watcher,
	cfg *config.Config,
) *PaymentService {
	return &PaymentService{
		paymentRepo: paymentRepo,
		tariffRepo:  tariffRepo,
		userRepo:    userRepo,
		settlement:  settlement,
		gateway:     gateway,
		watcher:     watcher,
		cfg:         cfg,
	}
}

// ListTariffs 在售套餐
func (s *PaymentService) ListTariffs() ([]*dto.TariffInfo, error) {
	tariffs, err := s.tariffRepo.ListActive()
	if err != nil {
		return nil, err
	}

	infos := make([]*dto.TariffInfo, 0, len(tariffs))
	for _, tf := range tariffs {
		infos = append(infos, &dto.TariffInfo{
			ID:         tf.ID,
			Name:       tf.Name,
			Days:       tf.Days,
			Price:      tf.Price,
			MaxDevices: tf.MaxDevices,
		})
	}
	return infos, nil
}

// BuyTariff 购买订阅套餐。订阅未到期时拒绝重复购买，不产生任何支付流水
func (s *PaymentService) BuyTariff(ctx context.Context, userID int64, req *dto.BuyTariffRequest) (*dto.CreatePaymentResponse, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if user.BaseActive(time.Now()) {
		return nil, ErrSubscriptionActive
	}

	tariff, err := s.tariffRepo.GetByID(req.TariffID)
	if err != nil || !tariff.IsActive {
		return nil, ErrTariffNotFound
	}

	desc := fmt.Sprintf("订阅套餐「%s」%d 天", tariff.Name, tariff.Days)
	return s.createPayment(ctx, userID, tariff.Price, model.PurposeSubscription, &tariff.ID, desc, req.UseBalance)
}

// BuyAddon 购买一个附加设备槽位。没有有效基础订阅时拒绝，
// 附加窗口挂在订阅之上单独计时
func (s *PaymentService) BuyAddon(ctx context.Context, userID int64, req *dto.BuyAddonRequest) (*dto.CreatePaymentResponse, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !user.BaseActive(time.Now()) {
		return nil, ErrSubscriptionRequired
	}

	price := s.cfg.Billing.AddonPrice
	desc := fmt.Sprintf("附加设备槽位 %d 天", s.cfg.Billing.AddonPeriodDays)
	return s.createPayment(ctx, userID, price, model.PurposeAddon, nil, desc, req.UseBalance)
}

// TopUp 余额充值，只能走网关
func (s *PaymentService) TopUp(ctx context.Context, userID int64, amount float64) (*dto.CreatePaymentResponse, error) {
	return s.createPayment(ctx, userID, amount, model.PurposeTopup, nil, "余额充值", false)
}

func (s *PaymentService) createPayment(ctx context.Context, userID int64, amount float64, purpose string, tariffID *int64, description string, useBalance bool) (*dto.CreatePaymentResponse, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if useBalance {
		return s.payByBalance(ctx, user, amount, purpose, tariffID)
	}

	email := ""
	if user.Email != nil {
		email = *user.Email
	}

	remote, err := s.gateway.CreatePayment(ctx, amount, s.cfg.Billing.Currency, description, email)
	if err != nil {
		return nil, fmt.Errorf("gateway create payment: %w", err)
	}

	payment := &model.Payment{
		UserID:      userID,
		YKPaymentID: &remote.ID,
		Amount:      amount,
		Currency:    s.cfg.Billing.Currency,
		Status:      model.PaymentStatusPending,
		Purpose:     purpose,
		TariffID:    tariffID,
	}
	if err := s.paymentRepo.Create(payment); err != nil {
		return nil, err
	}

	// 为该账户启动观察任务，替换之前未完成的观察
	if s.watcher != nil {
		s.watcher.Watch(userID, payment.ID)
	}

	resp := &dto.CreatePaymentResponse{
		PaymentID: payment.ID,
		Status:    payment.Status,
	}
	if remote.Confirmation != nil {
		resp.ConfirmationURL = remote.Confirmation.ConfirmationURL
	}
	return resp, nil
}

// payByBalance 余额即时结算：扣款、状态迁移、权益落账同一事务
func (s *PaymentService) payByBalance(ctx context.Context, user *model.User, amount float64, purpose string, tariffID *int64) (*dto.CreatePaymentResponse, error) {
	if user.Balance < amount {
		return nil, ErrInsufficientBalance
	}

	// 余额路径即时结算，该账户遗留的观察一并终止
	if s.watcher != nil {
		s.watcher.Cancel(user.ID)
	}

	payment := &model.Payment{
		UserID:   user.ID,
		Amount:   amount,
		Currency: s.cfg.Billing.Currency,
		Status:   model.PaymentStatusPending,
		Purpose:  purpose,
		TariffID: tariffID,
		Meta:     model.MetaFundingBalance,
	}
	if err := s.paymentRepo.Create(payment); err != nil {
		return nil, err
	}

	applied, err := s.settlement.Transition(ctx, payment.ID, model.PaymentStatusSucceeded)
	if err != nil {
		// 扣款失败的流水立即作废，避免留下悬空 pending
		if errors.Is(err, ErrInsufficientBalance) {
			if _, cerr := s.settlement.Transition(ctx, payment.ID, model.PaymentStatusCanceled); cerr != nil {
				log.Printf("Failed to cancel balance payment %d: %v", payment.ID, cerr)
			}
		}
		return nil, err
	}
	if !applied {
		return nil, errors.New("支付结算冲突，请重试")
	}

	return &dto.CreatePaymentResponse{
		PaymentID: payment.ID,
		Status:    model.PaymentStatusSucceeded,
	}, nil
}

// ListPayments 用户账单
func (s *PaymentService) ListPayments(userID int64, page, pageSize int) ([]*dto.PaymentInfo, int64, error) {
	offset := (page - 1) * pageSize
	payments, total, err := s.paymentRepo.ListByUser(userID, offset, pageSize)
	if err != nil {
		return nil, 0, err
	}

	infos := make([]*dto.PaymentInfo, 0, len(payments))
	for _, p := range payments {
		info := &dto.PaymentInfo{
			ID:        p.ID,
			Amount:    p.Amount,
			Currency:  p.Currency,
			Status:    p.Status,
			Purpose:   p.Purpose,
			CreatedAt: p.CreatedAt.Format(time.RFC3339),
		}
		if p.TariffID != nil {
			info.TariffID = *p.TariffID
		}
		infos = append(infos, info)
	}
	return infos, total, nil
}

// NotifyTimeout 观察超时时的用户提示，挂到 watcher 的回调上
func (s *PaymentService) NotifyTimeout(notifier Notifier) func(userID, paymentID int64) {
	return func(userID, paymentID int64) {
		if notifier == nil {
			return
		}
		err := notifier.PublishNotification(context.Background(), &pubsub.Notification{
			Kind:      pubsub.KindPaymentTimeout,
			UserID:    userID,
			PaymentID: paymentID,
		})
		if err != nil {
			log.Printf("Failed to publish timeout notification for payment %d: %v", paymentID, err)
		}
	}
}
