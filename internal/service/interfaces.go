package service

import (
	"context"

	"github.com/qs3c/vpn_go_server/internal/model"
	"github.com/qs3c/vpn_go_server/internal/pkg/pubsub"
	"github.com/qs3c/vpn_go_server/internal/pkg/yookassa"
)

// ProvisionClient 节点侧客户端操作，生产实现为 wgeasy.Client
type ProvisionClient interface {
	CreateClient(ctx context.Context, name string) (string, error)
	GetConfig(ctx context.Context, clientID string) (string, error)
	DeleteClient(ctx context.Context, clientID string) error
}

// ProvisionClientFactory 按节点构造客户端
type ProvisionClientFactory func(node *model.Node) ProvisionClient

// GatewayClient 支付网关操作，生产实现为 yookassa.Client
type GatewayClient interface {
	CreatePayment(ctx context.Context, amount float64, currency, description, customerEmail string) (*yookassa.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*yookassa.Payment, error)
}

// Notifier 用户通知通道，尽力而为，失败不影响主流程
type Notifier interface {
	PublishNotification(ctx context.Context, msg *pubsub.Notification) error
}
