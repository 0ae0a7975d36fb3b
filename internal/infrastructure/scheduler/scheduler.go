// Package scheduler 固定间隔的后台任务
// 每个任务一个协程，上一次执行结束后再等待 interval（fixed delay），同一任务不会重叠执行
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type job struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
}

// Scheduler 后台任务调度器
type Scheduler struct {
	mu      sync.Mutex
	jobs    []job
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New 创建调度器
func New() *Scheduler {
	return &Scheduler{}
}

// Every 注册任务，须在 Start 之前调用
func (s *Scheduler) Every(name string, interval time.Duration, run func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if interval <= 0 {
		zap.L().Warn("scheduler job disabled, non-positive interval", zap.String("job", name))
		return
	}
	s.jobs = append(s.jobs, job{name: name, interval: interval, run: run})
}

// Start 启动所有任务
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, j)
	}
}

// Stop 取消所有任务并等待正在执行的一轮结束
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, j job) {
	defer s.wg.Done()
	timer := time.NewTimer(j.interval)
	defer timer.Stop()
	zap.L().Info("scheduler job started", zap.String("job", j.name), zap.Duration("interval", j.interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			runOnce(ctx, j)
			timer.Reset(j.interval)
		}
	}
}

func runOnce(ctx context.Context, j job) {
	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Error("scheduler job panic", zap.String("job", j.name), zap.Any("recover", rec))
		}
	}()
	start := time.Now()
	if err := j.run(ctx); err != nil {
		zap.L().Error("scheduler job failed", zap.String("job", j.name), zap.Error(err))
		return
	}
	zap.L().Debug("scheduler job done", zap.String("job", j.name), zap.Duration("cost", time.Since(start)))
}
