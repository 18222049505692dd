package worker

import (
	"context"
	"sync"
)

// Registry 按属主管理后台观察任务。
// 同一属主同时只有一个任务：新任务先取消并等待旧任务退出再启动。
type Registry struct {
	mu    sync.Mutex
	tasks map[int64]*task
}

type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		tasks: make(map[int64]*task),
	}
}

// Start 为属主启动任务，替换并等待旧任务结束。
// 并发调用时逐个接管槽位，同一属主任何时刻最多一个任务在跑
func (r *Registry) Start(ownerID int64, run func(ctx context.Context)) {
	r.mu.Lock()
	for {
		prev := r.tasks[ownerID]
		if prev == nil {
			break
		}
		// 等待旧任务退出期间不能持锁，退出后重读槽位：
		// 可能已被另一个并发 Start 占走
		r.mu.Unlock()
		prev.cancel()
		<-prev.done
		r.mu.Lock()
		if r.tasks[ownerID] == prev {
			delete(r.tasks, ownerID)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &task{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.tasks[ownerID] = t
	r.mu.Unlock()

	go func() {
		defer func() {
			close(t.done)
			r.mu.Lock()
			// 只清理仍然属于自己的登记，避免覆盖后来者
			if r.tasks[ownerID] == t {
				delete(r.tasks, ownerID)
			}
			r.mu.Unlock()
		}()
		run(ctx)
	}()
}

// Cancel 取消属主的任务并等待退出
func (r *Registry) Cancel(ownerID int64) {
	r.mu.Lock()
	t := r.tasks[ownerID]
	r.mu.Unlock()

	if t != nil {
		t.cancel()
		<-t.done
	}
}

// Len 当前运行中的任务数
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// Shutdown 取消所有任务并等待退出
func (r *Registry) Shutdown() {
	r.mu.Lock()
	tasks := make([]*task, 0, len(r.tasks))
	for _, t := range r.tasks {
		tasks = append(tasks, t)
	}
	r.mu.Unlock()

	for _, t := range tasks {
		t.cancel()
		<-t.done
	}
}
