// Package workerpool 提供固定数量 Worker 的异步任务池
// 用于把可能阻塞的操作（落库、投递 MQ）移出连接处理协程
package workerpool

import (
	"sync"

	"go.uber.org/zap"
)

// Pool 固定大小的 Worker Pool
type Pool struct {
	name     string
	taskChan chan func()
	wg       sync.WaitGroup
	once     sync.Once
	mu       sync.RWMutex
	closed   bool
}

// New 创建并启动 Worker Pool
// workerNum: 后台协程数量
// bufferSize: 任务通道缓冲区大小
func New(name string, workerNum, bufferSize int) *Pool {
	if workerNum <= 0 {
		workerNum = 1
	}
	p := &Pool{
		name:     name,
		taskChan: make(chan func(), bufferSize),
	}
	for i := 0; i < workerNum; i++ {
		p.wg.Add(1)
		go p.startWorker()
	}
	zap.L().Info("worker pool started",
		zap.String("pool", name), zap.Int("workers", workerNum), zap.Int("buffer", bufferSize))
	return p
}

// startWorker 启动单个 Worker 消费循环，单个任务 panic 不会终止 Worker
func (p *Pool) startWorker() {
	defer p.wg.Done()
	for task := range p.taskChan {
		p.run(task)
	}
}

func (p *Pool) run(task func()) {
	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Error("worker task panic", zap.String("pool", p.name), zap.Any("recover", rec))
		}
	}()
	if task != nil {
		task()
	}
}

// TrySubmit 非阻塞提交任务
// 通道已满或已关闭时返回 false，由调用方决定降级策略
func (p *Pool) TrySubmit(task func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.taskChan <- task:
		return true
	default:
		zap.L().Warn("worker pool full, task dropped", zap.String("pool", p.name))
		return false
	}
}

// Close 停止接收新任务并等待已提交任务执行完毕
func (p *Pool) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.taskChan)
		p.mu.Unlock()
		p.wg.Wait()
	})
}
