package service

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/vpn_go_server/internal/model"
	"github.com/qs3c/vpn_go_server/internal/model/dto"
	"github.com/qs3c/vpn_go_server/internal/pkg/pubsub"
	"github.com/qs3c/vpn_go_server/internal/repository"
)

var ErrNodeNotFound = errors.New("节点不存在")

type AdminService struct {
	userRepo    *repository.UserRepository
	tariffRepo  *repository.TariffRepository
	nodeRepo    *repository.NodeRepository
	deviceRepo  *repository.DeviceRepository
	paymentRepo *repository.PaymentRepository
	notifier    Notifier
}

func NewAdminService(
	userRepo *repository.UserRepository,
	tariffRepo *repository.TariffRepository,
	nodeRepo *repository.NodeRepository,
	deviceRepo *repository.DeviceRepository,
	paymentRepo *repository.PaymentRepository,
	notifier Notifier,
) *AdminService {
	return &AdminService{
		userRepo:    userRepo,
		tariffRepo:  tariffRepo,
		nodeRepo:    nodeRepo,
		deviceRepo:  deviceRepo,
		paymentRepo: paymentRepo,
		notifier:    notifier,
	}
}

// CreateNode 登记新节点
func (s *AdminService) CreateNode(req *dto.CreateNodeRequest) (*dto.NodeInfo, error) {
	node := &model.Node{
		Name:        req.Name,
		APIURL:      req.APIURL,
		APIPassword: req.APIPassword,
		MaxCapacity: req.MaxCapacity,
		IsActive:    true,
	}
	if err := s.nodeRepo.Create(node); err != nil {
		return nil, err
	}
	return buildNodeInfo(node), nil
}

// UpdateNode 更新节点属性
func (s *AdminService) UpdateNode(nodeID int64, req *dto.UpdateNodeRequest) (*dto.NodeInfo, error) {
	node, err := s.nodeRepo.GetByID(nodeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNodeNotFound
		}
		return nil, err
	}

	if req.Name != nil {
		node.Name = *req.Name
	}
	if req.APIURL != nil {
		node.APIURL = *req.APIURL
	}
	if req.APIPassword != nil {
		node.APIPassword = *req.APIPassword
	}
	if req.MaxCapacity != nil {
		node.MaxCapacity = *req.MaxCapacity
	}
	if req.IsActive != nil {
		node.IsActive = *req.IsActive
	}

	if err := s.nodeRepo.Update(node); err != nil {
		return nil, err
	}
	return buildNodeInfo(node), nil
}

// ListNodes 节点列表
func (s *AdminService) ListNodes() ([]*dto.NodeInfo, error) {
	nodes, err := s.nodeRepo.List()
	if err != nil {
		return nil, err
	}

	infos := make([]*dto.NodeInfo, 0, len(nodes))
	for _, node := range nodes {
		infos = append(infos, buildNodeInfo(node))
	}
	return infos, nil
}

func buildNodeInfo(node *model.Node) *dto.NodeInfo {
	return &dto.NodeInfo{
		ID:          node.ID,
		Name:        node.Name,
		APIURL:      node.APIURL,
		Load:        node.Load,
		MaxCapacity: node.MaxCapacity,
		IsActive:    node.IsActive,
	}
}

// CreateTariff 上架套餐
func (s *AdminService) CreateTariff(req *dto.CreateTariffRequest) (*dto.TariffInfo, error) {
	tariff := &model.Tariff{
		Name:       req.Name,
		Days:       req.Days,
		Price:      req.Price,
		MaxDevices: req.MaxDevices,
		IsActive:   true,
	}
	if err := s.tariffRepo.Create(tariff); err != nil {
		return nil, err
	}

	return &dto.TariffInfo{
		ID:         tariff.ID,
		Name:       tariff.Name,
		Days:       tariff.Days,
		Price:      tariff.Price,
		MaxDevices: tariff.MaxDevices,
	}, nil
}

// DeactivateTariff 下架套餐，历史流水不受影响
func (s *AdminService) DeactivateTariff(tariffID int64) error {
	return s.tariffRepo.Deactivate(tariffID)
}

// GrantSubscription 手动发放订阅，锚点规则与付费购买一致
func (s *AdminService) GrantSubscription(req *dto.GrantSubscriptionRequest) error {
	user, err := s.userRepo.GetByID(req.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	now := time.Now()
	anchor := now
	if user.SubscriptionUntil != nil && user.SubscriptionUntil.After(now) {
		anchor = *user.SubscriptionUntil
	}
	until := anchor.AddDate(0, 0, req.Days)

	return s.userRepo.UpdateFields(user.ID, map[string]interface{}{
		"subscription_until": until,
		"device_quota":       req.Quota,
	})
}

// GrantAddon 手动调整附加设备窗口。reset 清空计数和锚点，
// 否则按增量调整计数，extend_days 从 max(now, 当前到期) 顺延
func (s *AdminService) GrantAddon(req *dto.GrantAddonRequest) error {
	user, err := s.userRepo.GetByID(req.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	fields := map[string]interface{}{}
	if req.Reset {
		fields["addon_count"] = 0
		fields["addon_until"] = nil
	} else {
		if req.CountDelta != 0 {
			count := user.AddonCount + req.CountDelta
			if count < 0 {
				count = 0
			}
			fields["addon_count"] = count
		}
		if req.ExtendDays > 0 {
			now := time.Now()
			anchor := now
			if user.AddonUntil != nil && user.AddonUntil.After(now) {
				anchor = *user.AddonUntil
			}
			fields["addon_until"] = anchor.AddDate(0, 0, req.ExtendDays)
		}
	}
	if len(fields) == 0 {
		return nil
	}

	return s.userRepo.UpdateFields(user.ID, fields)
}

// FindUser 按 ID 或用户名查找用户
func (s *AdminService) FindUser(query string) (*dto.UserInfo, error) {
	var user *model.User
	var err error
	if id, perr := strconv.ParseInt(query, 10, 64); perr == nil {
		user, err = s.userRepo.GetByID(id)
	} else {
		user, err = s.userRepo.GetByUsername(query)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return buildUserInfo(user), nil
}

// SystemStats 用户和设备概况
func (s *AdminService) SystemStats() (*dto.SystemStatsResponse, error) {
	totalUsers, err := s.userRepo.Count()
	if err != nil {
		return nil, err
	}
	activeSubs, err := s.userRepo.CountActiveSubscriptions(time.Now())
	if err != nil {
		return nil, err
	}
	totalDevices, err := s.deviceRepo.Count()
	if err != nil {
		return nil, err
	}

	return &dto.SystemStatsResponse{
		TotalUsers:          totalUsers,
		ActiveSubscriptions: activeSubs,
		TotalDevices:        totalDevices,
	}, nil
}

// PaymentStats 成功流水统计。period 取 today / month / year / all
func (s *AdminService) PaymentStats(period string) (*dto.PaymentStatsResponse, error) {
	now := time.Now()
	var since time.Time

	switch period {
	case "today":
		since = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	case "month":
		since = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	case "year":
		since = time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
	case "all":
		since = time.Time{}
	default:
		return nil, errors.New("无效的统计周期")
	}

	count, total, err := s.paymentRepo.SucceededStats(since)
	if err != nil {
		return nil, err
	}

	return &dto.PaymentStatsResponse{
		Period:     period,
		Count:      count,
		TotalValue: total,
	}, nil
}

// ListUsers 用户列表
func (s *AdminService) ListUsers(page, pageSize int) ([]*dto.UserInfo, int64, error) {
	offset := (page - 1) * pageSize
	users, total, err := s.userRepo.List(offset, pageSize)
	if err != nil {
		return nil, 0, err
	}

	infos := make([]*dto.UserInfo, 0, len(users))
	for _, user := range users {
		infos = append(infos, buildUserInfo(user))
	}
	return infos, total, nil
}

// Broadcast 群发通知，尽力而为。scope 为 active / inactive 时
// 按订阅状态筛选用户逐个投递，否则走全体广播通道
func (s *AdminService) Broadcast(ctx context.Context, message, scope string) error {
	if s.notifier == nil {
		return nil
	}

	if scope != "active" && scope != "inactive" {
		err := s.notifier.PublishNotification(ctx, &pubsub.Notification{
			Kind:    pubsub.KindBroadcast,
			Message: message,
		})
		if err != nil {
			log.Printf("Failed to publish broadcast: %v", err)
		}
		return err
	}

	ids, err := s.userRepo.ListIDsBySubscription(time.Now(), scope == "active")
	if err != nil {
		return err
	}
	for _, id := range ids {
		err := s.notifier.PublishNotification(ctx, &pubsub.Notification{
			Kind:    pubsub.KindBroadcast,
			UserID:  id,
			Message: message,
		})
		if err != nil {
			log.Printf("Failed to publish broadcast to user %d: %v", id, err)
		}
	}
	return nil
}
