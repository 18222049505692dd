package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/vpn_go_server/config"
	"github.com/qs3c/vpn_go_server/internal/model"
	"github.com/qs3c/vpn_go_server/internal/model/dto"
	"github.com/qs3c/vpn_go_server/internal/pkg/pubsub"
	"github.com/qs3c/vpn_go_server/internal/pkg/queue"
	"github.com/qs3c/vpn_go_server/internal/pkg/wgeasy"
	"github.com/qs3c/vpn_go_server/internal/repository"
)

var (
	ErrSubscriptionRequired = errors.New("当前没有有效订阅")
	ErrNoFreeSlot           = errors.New("设备槽位已满")
	ErrDeviceNotFound       = errors.New("设备不存在")
	ErrNoCapacity           = errors.New("没有可用节点")
)

// EnforcerService 设备配额执行。新增设备时分配槽位和节点，
// 巡检时把每个用户的设备修剪到当前权益允许的数量。
type EnforcerService struct {
	db            *gorm.DB
	userRepo      *repository.UserRepository
	deviceRepo    *repository.DeviceRepository
	nodeRepo      *repository.NodeRepository
	cleanupQueue  *queue.Queue
	notifier      Notifier
	cfg           *config.Config
	factory       ProvisionClientFactory
	defaultClient ProvisionClient

	mu          sync.Mutex
	nodeClients map[int64]ProvisionClient
}

func NewEnforcerService(
	db *gorm.DB,
	userRepo *repository.UserRepository,
	deviceRepo *repository.DeviceRepository,
	nodeRepo *repository.NodeRepository,
	cleanupQueue *queue.Queue,
	notifier Notifier,
	cfg *config.Config,
) *EnforcerService {
	timeout := time.Duration(cfg.WGEasy.TimeoutSeconds) * time.Second
	s := &EnforcerService{
		db:           db,
		userRepo:     userRepo,
		deviceRepo:   deviceRepo,
		nodeRepo:     nodeRepo,
		cleanupQueue: cleanupQueue,
		notifier:     notifier,
		cfg:          cfg,
		nodeClients:  make(map[int64]ProvisionClient),
	}
	s.factory = func(node *model.Node) ProvisionClient {
		return wgeasy.NewClient(node.APIURL, node.APIPassword, timeout)
	}
	if cfg.WGEasy.URL != "" {
		s.defaultClient = wgeasy.NewClient(cfg.WGEasy.URL, cfg.WGEasy.Password, timeout)
	}
	return s
}

// SetFactory 覆盖节点客户端构造（测试用）
func (s *EnforcerService) SetFactory(factory ProvisionClientFactory) {
	s.factory = factory
	s.mu.Lock()
	s.nodeClients = make(map[int64]ProvisionClient)
	s.mu.Unlock()
}

// SetDefaultClient 覆盖附加设备使用的默认节点客户端（测试用）
func (s *EnforcerService) SetDefaultClient(client ProvisionClient) {
	s.defaultClient = client
}

func (s *EnforcerService) clientForNode(node *model.Node) ProvisionClient {
	s.mu.Lock()
	defer s.mu.Unlock()

	if client, ok := s.nodeClients[node.ID]; ok {
		return client
	}
	client := s.factory(node)
	s.nodeClients[node.ID] = client
	return client
}

// AddDevice 登记新设备。基础槽位优先，用满后落到附加槽位。
// 基础设备走节点选择器；附加设备走默认节点，不占节点负载。
func (s *EnforcerService) AddDevice(ctx context.Context, userID int64, name string) (*model.Device, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	// 附加槽位依附于基础订阅，基础窗口过期后附加窗口也不能开新设备
	if !user.BaseActive(now) {
		return nil, ErrSubscriptionRequired
	}
	baseQuota := user.BaseQuota(now)
	addonQuota := user.AddonQuota(now)

	baseCount, err := s.deviceRepo.CountByUserClass(userID, false)
	if err != nil {
		return nil, err
	}

	if int(baseCount) < baseQuota {
		return s.addBaseDevice(ctx, user, name)
	}

	extraCount, err := s.deviceRepo.CountByUserClass(userID, true)
	if err != nil {
		return nil, err
	}
	if int(extraCount) < addonQuota {
		return s.addExtraDevice(ctx, user, name)
	}

	return nil, ErrNoFreeSlot
}

func (s *EnforcerService) addBaseDevice(ctx context.Context, user *model.User, name string) (*model.Device, error) {
	node, err := s.nodeRepo.PickAvailable()
	if err != nil {
		if errors.Is(err, repository.ErrNoAvailableNode) {
			return nil, ErrNoCapacity
		}
		return nil, err
	}

	clientID, err := s.clientForNode(node).CreateClient(ctx, peerName(user.ID, name))
	if err != nil {
		return nil, fmt.Errorf("create peer on node %d: %w", node.ID, err)
	}

	device := &model.Device{
		UserID:     user.ID,
		Name:       name,
		WGClientID: &clientID,
		NodeID:     &node.ID,
	}

	// 设备行与节点负载在同一事务内落库
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(device).Error; err != nil {
			return err
		}
		return s.nodeRepo.IncrementLoadTx(tx, node.ID)
	})
	if err != nil {
		// 本地落库失败，回收已创建的外部客户端
		s.removeExternal(ctx, device)
		return nil, err
	}

	return device, nil
}

func (s *EnforcerService) addExtraDevice(ctx context.Context, user *model.User, name string) (*model.Device, error) {
	if s.defaultClient == nil {
		return nil, ErrNoCapacity
	}

	clientID, err := s.defaultClient.CreateClient(ctx, peerName(user.ID, name))
	if err != nil {
		return nil, fmt.Errorf("create extra peer: %w", err)
	}

	device := &model.Device{
		UserID:     user.ID,
		Name:       name,
		IsExtra:    true,
		WGClientID: &clientID,
	}
	if err := s.deviceRepo.Create(device); err != nil {
		s.removeExternal(ctx, device)
		return nil, err
	}

	return device, nil
}

// GetDeviceConfig 从节点实时拉取配置文件，不落地
func (s *EnforcerService) GetDeviceConfig(ctx context.Context, userID, deviceID int64) (string, error) {
	device, err := s.getOwnedDevice(userID, deviceID)
	if err != nil {
		return "", err
	}
	if device.WGClientID == nil {
		return "", ErrDeviceNotFound
	}

	client, err := s.resolveClient(device)
	if err != nil {
		return "", err
	}

	cfgText, err := client.GetConfig(ctx, *device.WGClientID)
	if err != nil {
		if errors.Is(err, wgeasy.ErrNotFound) {
			// 节点侧已不存在，清掉本地残留行
			if derr := s.deleteLocal(ctx, device); derr != nil {
				log.Printf("Device %d: failed to drop stale row: %v", device.ID, derr)
			}
			return "", ErrDeviceNotFound
		}
		return "", err
	}
	return cfgText, nil
}

// RemoveDevice 用户主动删除设备
func (s *EnforcerService) RemoveDevice(ctx context.Context, userID, deviceID int64) error {
	device, err := s.getOwnedDevice(userID, deviceID)
	if err != nil {
		return err
	}
	return s.removeDevice(ctx, device)
}

// ListDevices 用户设备列表
func (s *EnforcerService) ListDevices(userID int64) ([]*model.Device, error) {
	return s.deviceRepo.ListByUser(userID)
}

// GetProfile 用户权益快照
func (s *EnforcerService) GetProfile(userID int64) (*dto.UserInfo, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	devices, err := s.deviceRepo.ListByUser(userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	info := buildUserInfo(user)
	ent := &dto.EntitlementInfo{
		SubscriptionActive: user.BaseActive(now),
		BaseQuota:          user.BaseQuota(now),
		AddonActive:        user.AddonActive(now),
		AddonQuota:         user.AddonQuota(now),
		TotalQuota:         user.TotalQuota(now),
		DevicesUsed:        len(devices),
	}
	if user.SubscriptionUntil != nil {
		ent.SubscriptionUntil = user.SubscriptionUntil.Format(time.RFC3339)
	}
	if user.AddonUntil != nil {
		ent.AddonUntil = user.AddonUntil.Format(time.RFC3339)
	}
	info.Entitlement = ent
	info.CreatedAt = user.CreatedAt.Format(time.RFC3339)

	return info, nil
}

// EnforceUser 把用户设备修剪到当前权益允许的数量。
// 保留最早创建的设备，窗口整体失效时该类设备全部清除。
// 幂等：重复调用不产生额外效果。
func (s *EnforcerService) EnforceUser(ctx context.Context, userID int64) (int, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	removed := 0

	baseDevices, err := s.deviceRepo.ListByUserClass(userID, false)
	if err != nil {
		return 0, err
	}
	for _, device := range trimExcess(baseDevices, user.BaseQuota(now)) {
		if err := s.removeDevice(ctx, device); err != nil {
			log.Printf("Enforce user %d: failed to remove device %d: %v", userID, device.ID, err)
			continue
		}
		removed++
	}

	extraDevices, err := s.deviceRepo.ListByUserClass(userID, true)
	if err != nil {
		return removed, err
	}
	for _, device := range trimExcess(extraDevices, user.AddonQuota(now)) {
		if err := s.removeDevice(ctx, device); err != nil {
			log.Printf("Enforce user %d: failed to remove extra device %d: %v", userID, device.ID, err)
			continue
		}
		removed++
	}

	if removed > 0 && s.notifier != nil {
		err := s.notifier.PublishNotification(ctx, &pubsub.Notification{
			Kind:   pubsub.KindDeviceRemoved,
			UserID: userID,
		})
		if err != nil {
			log.Printf("Enforce user %d: failed to publish notification: %v", userID, err)
		}
	}

	return removed, nil
}

// trimExcess 返回超出配额需要删除的设备，列表按创建时间升序
func trimExcess(devices []*model.Device, quota int) []*model.Device {
	if quota < 0 {
		quota = 0
	}
	if len(devices) <= quota {
		return nil
	}
	return devices[quota:]
}

// removeDevice 先尽力删外部客户端，无论成败都删本地行。
// 外部删除失败时入重试队列，由巡检进程补偿。
func (s *EnforcerService) removeDevice(ctx context.Context, device *model.Device) error {
	if !s.removeExternal(ctx, device) {
		s.enqueueCleanup(ctx, device)
	}

	return s.deleteLocal(ctx, device)
}

// deleteLocal 删本地行，设备占用的节点负载一并在事务内归还
func (s *EnforcerService) deleteLocal(ctx context.Context, device *model.Device) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&model.Device{}, device.ID).Error; err != nil {
			return err
		}
		if device.NodeID != nil {
			return s.nodeRepo.DecrementLoadTx(tx, *device.NodeID)
		}
		return nil
	})
}

// removeExternal 删除节点侧客户端，返回是否确认删除
func (s *EnforcerService) removeExternal(ctx context.Context, device *model.Device) bool {
	if device.WGClientID == nil {
		return true
	}

	client, err := s.resolveClient(device)
	if err != nil {
		log.Printf("Device %d: cannot resolve node client: %v", device.ID, err)
		return false
	}

	if err := client.DeleteClient(ctx, *device.WGClientID); err != nil {
		log.Printf("Device %d: external delete failed: %v", device.ID, err)
		return false
	}
	return true
}

func (s *EnforcerService) enqueueCleanup(ctx context.Context, device *model.Device) {
	if s.cleanupQueue == nil || device.WGClientID == nil {
		return
	}

	msg := &queue.CleanupMessage{
		UserID:     device.UserID,
		DeviceID:   device.ID,
		WGClientID: *device.WGClientID,
		Attempts:   1,
	}
	if device.NodeID != nil {
		msg.NodeID = *device.NodeID
	}

	if err := s.cleanupQueue.Push(ctx, msg); err != nil {
		log.Printf("Device %d: failed to enqueue cleanup: %v", device.ID, err)
	}
}

// RetryCleanup 重放一条失败的外部删除任务
func (s *EnforcerService) RetryCleanup(ctx context.Context, msg *queue.CleanupMessage) error {
	var client ProvisionClient
	if msg.NodeID > 0 {
		node, err := s.nodeRepo.GetByID(msg.NodeID)
		if err != nil {
			return err
		}
		client = s.clientForNode(node)
	} else {
		client = s.defaultClient
	}
	if client == nil {
		return errors.New("没有可用的节点客户端")
	}

	return client.DeleteClient(ctx, msg.WGClientID)
}

func (s *EnforcerService) resolveClient(device *model.Device) (ProvisionClient, error) {
	if device.NodeID == nil {
		if s.defaultClient == nil {
			return nil, errors.New("默认节点未配置")
		}
		return s.defaultClient, nil
	}

	node, err := s.nodeRepo.GetByID(*device.NodeID)
	if err != nil {
		return nil, err
	}
	return s.clientForNode(node), nil
}

func (s *EnforcerService) getOwnedDevice(userID, deviceID int64) (*model.Device, error) {
	device, err := s.deviceRepo.GetByID(deviceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}
	if device.UserID != userID {
		return nil, ErrDeviceNotFound
	}
	return device, nil
}

func peerName(userID int64, name string) string {
	return fmt.Sprintf("u%d-%s", userID, name)
}
