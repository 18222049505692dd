package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const (
	ChannelUserNotify = "user_notify"
)

// 通知类型常量
const (
	KindPaymentSucceeded = "payment_succeeded"
	KindPaymentCanceled  = "payment_canceled"
	KindPaymentTimeout   = "payment_timeout"
	KindDeviceRemoved    = "device_removed"
	KindReferralCredit   = "referral_credit"
	KindTrialActivated   = "trial_activated"
	KindBroadcast        = "broadcast"
)

// 类型对应的默认消息
var KindMessages = map[string]string{
	KindPaymentSucceeded: "支付成功",
	KindPaymentCanceled:  "支付已取消",
	KindPaymentTimeout:   "支付确认超时，请稍后在账单中查看",
	KindDeviceRemoved:    "部分设备因权益到期已被移除",
	KindReferralCredit:   "推荐奖励已到账",
	KindTrialActivated:   "试用订阅已激活",
	KindBroadcast:        "系统通知",
}

// Notification 用户通知消息
type Notification struct {
	Kind      string  `json:"kind"`
	UserID    int64   `json:"user_id"`
	PaymentID int64   `json:"payment_id,omitempty"`
	Amount    float64 `json:"amount,omitempty"`
	Purpose   string  `json:"purpose,omitempty"`
	Message   string  `json:"message,omitempty"`
}

// Publisher Redis 发布者
type Publisher struct {
	client *redis.Client
}

// NewPublisher 创建发布者
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishNotification 发布用户通知，自动填充默认消息
func (p *Publisher) PublishNotification(ctx context.Context, msg *Notification) error {
	if msg.Message == "" && msg.Kind != "" {
		if text, ok := KindMessages[msg.Kind]; ok {
			msg.Message = text
		}
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	return p.client.Publish(ctx, ChannelUserNotify, data).Err()
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client *redis.Client
}

// NewSubscriber 创建订阅者
func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe 订阅用户通知
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*Notification)) error {
	pubsub := s.client.Subscribe(ctx, ChannelUserNotify)
	defer pubsub.Close()

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var notification Notification
			if err := json.Unmarshal([]byte(msg.Payload), &notification); err != nil {
				continue // 忽略解析错误
			}

			handler(&notification)
		}
	}
}
