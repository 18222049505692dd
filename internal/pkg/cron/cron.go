package cron

import (
	"context"
	"log"
	"time"

	"github.com/qs3c/vpn_go_server/config"
	"github.com/qs3c/vpn_go_server/internal/pkg/email"
	"github.com/qs3c/vpn_go_server/internal/pkg/queue"
	"github.com/qs3c/vpn_go_server/internal/repository"
	"github.com/qs3c/vpn_go_server/internal/service"
)

const (
	maxCleanupAttempts = 5

	// 到期提醒窗口：提前 3 天提醒，每 12 小时跑一轮
	expiryNoticeWindow   = 72 * time.Hour
	expiryNoticeInterval = 12 * time.Hour
)

// Service 后台巡检。三条独立循环：
// 支付巡检兜底结算观察任务漏掉的 pending 流水，
// 权益巡检把每个用户的设备修剪到当前配额，
// 清理巡检重放失败的外部客户端删除。
type Service struct {
	settlement *service.SettlementService
	enforcer   *service.EnforcerService
	userRepo   *repository.UserRepository
	payments   *repository.PaymentRepository
	cleanupQ   *queue.Queue
	mailer     *email.Service
	cfg        *config.Config
	stopChan   chan struct{}
}

func NewService(
	settlement *service.SettlementService,
	enforcer *service.EnforcerService,
	userRepo *repository.UserRepository,
	payments *repository.PaymentRepository,
	cleanupQ *queue.Queue,
	mailer *email.Service,
	cfg *config.Config,
) *Service {
	return &Service{
		settlement: settlement,
		enforcer:   enforcer,
		userRepo:   userRepo,
		payments:   payments,
		cleanupQ:   cleanupQ,
		mailer:     mailer,
		cfg:        cfg,
		stopChan:   make(chan struct{}),
	}
}

// Start 启动巡检循环
func (s *Service) Start() {
	go s.runPaymentSweep()
	go s.runEnforceSweep()
	if s.cleanupQ != nil {
		go s.runCleanupDrain()
	}
	if s.mailer != nil {
		go s.runExpiryNotice()
	}
	log.Println("Sweep service started (payment + enforce + cleanup)")
}

// Stop 停止巡检循环
func (s *Service) Stop() {
	close(s.stopChan)
	log.Println("Sweep service stopped")
}

// runPaymentSweep 周期性兜底结算 pending 流水
func (s *Service) runPaymentSweep() {
	interval := time.Duration(s.cfg.Sweep.PaymentIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.RunPaymentSweepOnce(context.Background())
		}
	}
}

// RunPaymentSweepOnce 跑一轮支付巡检，返回本轮完结的流水数。
// 单条出错只记日志，不影响同批其他流水。
func (s *Service) RunPaymentSweepOnce(ctx context.Context) int {
	pending, err := s.payments.ListPending(s.cfg.Sweep.PaymentBatchSize)
	if err != nil {
		log.Printf("Payment sweep: failed to list pending: %v", err)
		return 0
	}

	settled := 0
	for _, p := range pending {
		done, err := s.settlement.CheckAndSettle(ctx, p.ID)
		if err != nil {
			log.Printf("Payment sweep: payment %d: %v", p.ID, err)
			continue
		}
		if done {
			settled++
		}
	}

	if settled > 0 {
		log.Printf("Payment sweep: settled %d of %d pending", settled, len(pending))
	}
	return settled
}

// runEnforceSweep 周期性修剪全体用户的设备
func (s *Service) runEnforceSweep() {
	interval := time.Duration(s.cfg.Sweep.EnforceIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.RunEnforceOnce(context.Background())
		}
	}
}

// RunEnforceOnce 跑一轮权益巡检，返回删除的设备总数
func (s *Service) RunEnforceOnce(ctx context.Context) int {
	ids, err := s.userRepo.ListIDs()
	if err != nil {
		log.Printf("Enforce sweep: failed to list users: %v", err)
		return 0
	}

	removed := 0
	for _, id := range ids {
		n, err := s.enforcer.EnforceUser(ctx, id)
		if err != nil {
			log.Printf("Enforce sweep: user %d: %v", id, err)
			continue
		}
		removed += n
	}

	if removed > 0 {
		log.Printf("Enforce sweep: removed %d devices across %d users", removed, len(ids))
	}
	return removed
}

// runExpiryNotice 周期性给快到期的订阅发邮件提醒
func (s *Service) runExpiryNotice() {
	ticker := time.NewTicker(expiryNoticeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.RunExpiryNoticeOnce()
		}
	}
}

// RunExpiryNoticeOnce 跑一轮到期提醒，返回发送的邮件数
func (s *Service) RunExpiryNoticeOnce() int {
	now := time.Now()
	users, err := s.userRepo.ListExpiringSubscriptions(now, now.Add(expiryNoticeWindow))
	if err != nil {
		log.Printf("Expiry notice: failed to list users: %v", err)
		return 0
	}

	sent := 0
	for _, user := range users {
		if user.Email == nil || user.SubscriptionUntil == nil {
			continue
		}
		if err := s.mailer.SendSubscriptionExpiring(*user.Email, user.SubscriptionUntil.Format("2006-01-02 15:04")); err != nil {
			log.Printf("Expiry notice: user %d: %v", user.ID, err)
			continue
		}
		sent++
	}

	if sent > 0 {
		log.Printf("Expiry notice: sent %d reminders", sent)
	}
	return sent
}

// runCleanupDrain 持续消费清理队列，重放失败的外部删除
func (s *Service) runCleanupDrain() {
	ctx := context.Background()

	for {
		select {
		case <-s.stopChan:
			return
		default:
		}

		msg, err := s.cleanupQ.Pop(ctx, 5*time.Second)
		if err != nil {
			log.Printf("Cleanup drain: pop failed: %v", err)
			time.Sleep(time.Second)
			continue
		}
		if msg == nil {
			continue
		}

		s.handleCleanup(ctx, msg)
	}
}

// handleCleanup 重放一条清理任务，失败则递增次数后回队，超限丢弃
func (s *Service) handleCleanup(ctx context.Context, msg *queue.CleanupMessage) {
	err := s.enforcer.RetryCleanup(ctx, msg)
	if err == nil {
		return
	}

	log.Printf("Cleanup drain: device %d attempt %d failed: %v", msg.DeviceID, msg.Attempts, err)
	if msg.Attempts >= maxCleanupAttempts {
		log.Printf("Cleanup drain: device %d gave up after %d attempts (client %s)", msg.DeviceID, msg.Attempts, msg.WGClientID)
		return
	}

	msg.Attempts++
	if err := s.cleanupQ.Push(ctx, msg); err != nil {
		log.Printf("Cleanup drain: failed to requeue device %d: %v", msg.DeviceID, err)
	}
}
