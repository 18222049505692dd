package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/qs3c/vpn_go_server/config"
	"github.com/qs3c/vpn_go_server/internal/pkg/pubsub"
	"github.com/qs3c/vpn_go_server/internal/pkg/yookassa"
)

func newTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.ExpireHours = 24
	cfg.Billing.Currency = "RUB"
	cfg.Billing.AddonPrice = 50
	cfg.Billing.AddonPeriodDays = 30
	cfg.Billing.ReferralBonusPercent = 10
	cfg.WGEasy.TimeoutSeconds = 5
	return cfg
}

// fakeGateway 预设网关状态的测试替身
type fakeGateway struct {
	mu       sync.Mutex
	created  int
	statuses map[string]string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{statuses: make(map[string]string)}
}

func (g *fakeGateway) CreatePayment(ctx context.Context, amount float64, currency, description, email string) (*yookassa.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created++
	id := fmt.Sprintf("yk-%d", g.created)
	g.statuses[id] = "pending"
	return &yookassa.Payment{
		ID:     id,
		Status: "pending",
		Confirmation: &yookassa.Confirmation{
			Type:            "redirect",
			ConfirmationURL: "https://pay.example.com/" + id,
		},
	}, nil
}

func (g *fakeGateway) GetPayment(ctx context.Context, paymentID string) (*yookassa.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	status, ok := g.statuses[paymentID]
	if !ok {
		return nil, fmt.Errorf("unknown payment %s", paymentID)
	}
	return &yookassa.Payment{ID: paymentID, Status: status}, nil
}

func (g *fakeGateway) setStatus(id, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[id] = status
}

// fakeProvisioner 内存版节点客户端
type fakeProvisioner struct {
	mu        sync.Mutex
	nextID    int
	clients   map[string]bool
	createErr error
	configErr error
	deleteErr error
}

func newFakeProvisioner() *fakeProvisioner {
	return &fakeProvisioner{clients: make(map[string]bool)}
}

func (p *fakeProvisioner) CreateClient(ctx context.Context, name string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return "", p.createErr
	}
	p.nextID++
	id := fmt.Sprintf("wg-%d", p.nextID)
	p.clients[id] = true
	return id, nil
}

func (p *fakeProvisioner) GetConfig(ctx context.Context, clientID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.configErr != nil {
		return "", p.configErr
	}
	if !p.clients[clientID] {
		return "", fmt.Errorf("client %s not found", clientID)
	}
	return "[Interface]\nPrivateKey = test\n", nil
}

func (p *fakeProvisioner) DeleteClient(ctx context.Context, clientID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.deleteErr != nil {
		return p.deleteErr
	}
	delete(p.clients, clientID)
	return nil
}

func (p *fakeProvisioner) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}

// fakeNotifier 记录发出的通知
type fakeNotifier struct {
	mu   sync.Mutex
	sent []*pubsub.Notification
}

func (n *fakeNotifier) PublishNotification(ctx context.Context, msg *pubsub.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *fakeNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, msg := range n.sent {
		out = append(out, msg.Kind)
	}
	return out
}

var _ GatewayClient = (*fakeGateway)(nil)
var _ ProvisionClient = (*fakeProvisioner)(nil)
var _ Notifier = (*fakeNotifier)(nil)
