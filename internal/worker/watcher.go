package worker

import (
	"context"
	"log"
	"time"
)

// Settler 结算入口。done=true 表示流水已到终态，观察可以结束。
type Settler interface {
	CheckAndSettle(ctx context.Context, paymentID int64) (bool, error)
}

// Watcher 支付观察器：为每个账户轮询其最新一笔支付直到结算或超时。
// 同一账户再次下单时新观察替换旧观察。
type Watcher struct {
	registry *Registry
	settler  Settler
	poll     time.Duration
	timeout  time.Duration

	// OnTimeout 观察超时回调，可为空
	OnTimeout func(userID, paymentID int64)
}

func NewWatcher(registry *Registry, settler Settler, poll, timeout time.Duration) *Watcher {
	return &Watcher{
		registry: registry,
		settler:  settler,
		poll:     poll,
		timeout:  timeout,
	}
}

// Cancel 终止该账户正在运行的观察并等待其退出
func (w *Watcher) Cancel(userID int64) {
	w.registry.Cancel(userID)
}

// Watch 启动对一笔支付的观察
func (w *Watcher) Watch(userID, paymentID int64) {
	w.registry.Start(userID, func(ctx context.Context) {
		w.run(ctx, userID, paymentID)
	})
}

func (w *Watcher) run(ctx context.Context, userID, paymentID int64) {
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	deadline := time.NewTimer(w.timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			// 被新观察取代或进程退出
			return

		case <-deadline.C:
			log.Printf("Payment watcher timed out: user=%d payment=%d", userID, paymentID)
			if w.OnTimeout != nil {
				w.OnTimeout(userID, paymentID)
			}
			return

		case <-ticker.C:
			done, err := w.settler.CheckAndSettle(ctx, paymentID)
			if err != nil {
				// 瞬时错误留到下一轮
				log.Printf("Payment watcher check failed: payment=%d err=%v", paymentID, err)
				continue
			}
			if done {
				return
			}
		}
	}
}
