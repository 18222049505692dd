package testutil

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/vpn_go_server/internal/model"
)

// TestUser 创建测试用户
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	email := fmt.Sprintf("test_%d@example.com", time.Now().UnixNano())
	passwordHash := "$2a$10$abcdefghijklmnopqrstuvwxyz123456" // bcrypt hash placeholder
	code := fmt.Sprintf("ref_%d", time.Now().UnixNano())
	user := &model.User{
		Username:     fmt.Sprintf("testuser_%d", time.Now().UnixNano()),
		Email:        &email,
		PasswordHash: &passwordHash,
		ReferralCode: &code,
		DeviceQuota:  0,
	}

	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// WithUsername 设置用户名
func WithUsername(username string) func(*model.User) {
	return func(u *model.User) {
		u.Username = username
	}
}

// WithEmail 设置邮箱
func WithEmail(email string) func(*model.User) {
	return func(u *model.User) {
		u.Email = &email
	}
}

// WithBalance 设置余额
func WithBalance(balance float64) func(*model.User) {
	return func(u *model.User) {
		u.Balance = balance
	}
}

// WithSubscription 设置基础订阅窗口和配额
func WithSubscription(until time.Time, quota int) func(*model.User) {
	return func(u *model.User) {
		u.SubscriptionUntil = &until
		u.DeviceQuota = quota
	}
}

// WithAddon 设置附加设备窗口
func WithAddon(until time.Time, count int) func(*model.User) {
	return func(u *model.User) {
		u.AddonUntil = &until
		u.AddonCount = count
	}
}

// WithReferrer 设置推荐人
func WithReferrer(referrerID int64) func(*model.User) {
	return func(u *model.User) {
		u.ReferredByUserID = &referrerID
	}
}

// WithAdmin 设置为管理员
func WithAdmin() func(*model.User) {
	return func(u *model.User) {
		u.IsAdmin = true
	}
}

// TestTariff 创建测试套餐
func TestTariff(t *testing.T, db *gorm.DB, opts ...func(*model.Tariff)) *model.Tariff {
	t.Helper()

	tariff := &model.Tariff{
		Name:       fmt.Sprintf("tariff_%d", time.Now().UnixNano()),
		Days:       30,
		Price:      199.00,
		MaxDevices: 3,
		IsActive:   true,
	}

	for _, opt := range opts {
		opt(tariff)
	}

	if err := db.Create(tariff).Error; err != nil {
		t.Fatalf("Failed to create test tariff: %v", err)
	}

	return tariff
}

// WithTariffPrice 设置套餐价格
func WithTariffPrice(price float64) func(*model.Tariff) {
	return func(tf *model.Tariff) {
		tf.Price = price
	}
}

// WithTariffDevices 设置套餐设备数
func WithTariffDevices(n int) func(*model.Tariff) {
	return func(tf *model.Tariff) {
		tf.MaxDevices = n
	}
}

// TestNode 创建测试节点
func TestNode(t *testing.T, db *gorm.DB, opts ...func(*model.Node)) *model.Node {
	t.Helper()

	node := &model.Node{
		Name:        fmt.Sprintf("node_%d", time.Now().UnixNano()),
		APIURL:      "http://wg.example.com:51821",
		APIPassword: "secret",
		Load:        0,
		MaxCapacity: 100,
		IsActive:    true,
	}

	for _, opt := range opts {
		opt(node)
	}

	if err := db.Create(node).Error; err != nil {
		t.Fatalf("Failed to create test node: %v", err)
	}

	return node
}

// WithLoad 设置节点负载
func WithLoad(load, max int) func(*model.Node) {
	return func(n *model.Node) {
		n.Load = load
		n.MaxCapacity = max
	}
}

// WithInactive 停用节点
func WithInactive() func(*model.Node) {
	return func(n *model.Node) {
		n.IsActive = false
	}
}

// TestDevice 创建测试设备
func TestDevice(t *testing.T, db *gorm.DB, userID int64, opts ...func(*model.Device)) *model.Device {
	t.Helper()

	clientID := fmt.Sprintf("wg_%d", time.Now().UnixNano())
	device := &model.Device{
		UserID:     userID,
		Name:       fmt.Sprintf("device_%d", time.Now().UnixNano()),
		WGClientID: &clientID,
	}

	for _, opt := range opts {
		opt(device)
	}

	if err := db.Create(device).Error; err != nil {
		t.Fatalf("Failed to create test device: %v", err)
	}

	return device
}

// WithExtra 标记为附加设备
func WithExtra() func(*model.Device) {
	return func(d *model.Device) {
		d.IsExtra = true
	}
}

// WithNode 绑定节点
func WithNode(nodeID int64) func(*model.Device) {
	return func(d *model.Device) {
		d.NodeID = &nodeID
	}
}

// WithCreatedAt 指定创建时间（用于排序场景）
func WithCreatedAt(at time.Time) func(*model.Device) {
	return func(d *model.Device) {
		d.CreatedAt = at
	}
}

// TestPayment 创建测试支付流水
func TestPayment(t *testing.T, db *gorm.DB, userID int64, opts ...func(*model.Payment)) *model.Payment {
	t.Helper()

	ykID := fmt.Sprintf("yk_%d", time.Now().UnixNano())
	payment := &model.Payment{
		UserID:      userID,
		YKPaymentID: &ykID,
		Amount:      199.00,
		Currency:    "RUB",
		Status:      model.PaymentStatusPending,
		Purpose:     model.PurposeSubscription,
	}

	for _, opt := range opts {
		opt(payment)
	}

	if err := db.Create(payment).Error; err != nil {
		t.Fatalf("Failed to create test payment: %v", err)
	}

	return payment
}

// WithPurpose 设置支付用途
func WithPurpose(purpose string) func(*model.Payment) {
	return func(p *model.Payment) {
		p.Purpose = purpose
	}
}

// WithStatus 设置支付状态
func WithStatus(status string) func(*model.Payment) {
	return func(p *model.Payment) {
		p.Status = status
	}
}

// WithAmount 设置金额
func WithAmount(amount float64) func(*model.Payment) {
	return func(p *model.Payment) {
		p.Amount = amount
	}
}

// WithTariff 关联套餐
func WithTariff(tariffID int64) func(*model.Payment) {
	return func(p *model.Payment) {
		p.TariffID = &tariffID
	}
}

// WithYKPaymentID 指定网关侧支付 ID
func WithYKPaymentID(ykID string) func(*model.Payment) {
	return func(p *model.Payment) {
		p.YKPaymentID = &ykID
	}
}
