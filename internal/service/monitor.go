package service

import (
	"sync"
	"time"
)

// Monitor 进程内计数器，后台 /api/monitor 展示
type Monitor struct {
	mu sync.RWMutex

	// 错误统计
	RedisErrors  int64
	MQErrors     int64
	DBErrors     int64
	WorkerErrors int64

	// 业务统计
	Checkouts       int64
	CheckoutsFailed int64
	StatusUpdates   int64
	Cancellations   int64
	WorkerProcessed int64
	WorkerFailed    int64
	Watchers        int64

	LastRedisError time.Time
	LastMQError    time.Time
	LastDBError    time.Time
	LastCheckout   time.Time
	LastWorkerTime time.Time
}

var globalMonitor = &Monitor{}

// GetMonitor 获取全局监控实例
func GetMonitor() *Monitor {
	return globalMonitor
}

func (m *Monitor) RecordRedisError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RedisErrors++
	m.LastRedisError = time.Now()
}

func (m *Monitor) RecordMQError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MQErrors++
	m.LastMQError = time.Now()
}

func (m *Monitor) RecordDBError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DBErrors++
	m.LastDBError = time.Now()
}

// RecordCheckout 记录一次下单结果
func (m *Monitor) RecordCheckout(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.Checkouts++
		m.LastCheckout = time.Now()
		return
	}
	m.CheckoutsFailed++
}

func (m *Monitor) RecordStatusUpdate(cancelled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cancelled {
		m.Cancellations++
		return
	}
	m.StatusUpdates++
}

func (m *Monitor) RecordWorkerProcessed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WorkerProcessed++
	m.LastWorkerTime = time.Now()
}

func (m *Monitor) RecordWorkerFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WorkerFailed++
	m.WorkerErrors++
}

// WatcherDelta 实时订单视图连接数增减
func (m *Monitor) WatcherDelta(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Watchers += n
}

// GetStats 获取统计信息
func (m *Monitor) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	checkoutRate := float64(0)
	if total := m.Checkouts + m.CheckoutsFailed; total > 0 {
		checkoutRate = float64(m.Checkouts) / float64(total) * 100
	}
	workerRate := float64(0)
	if total := m.WorkerProcessed + m.WorkerFailed; total > 0 {
		workerRate = float64(m.WorkerProcessed) / float64(total) * 100
	}

	return map[string]interface{}{
		"errors": map[string]interface{}{
			"redis":  m.RedisErrors,
			"mq":     m.MQErrors,
			"db":     m.DBErrors,
			"worker": m.WorkerErrors,
		},
		"performance": map[string]interface{}{
			"checkouts":             m.Checkouts,
			"checkouts_failed":      m.CheckoutsFailed,
			"checkout_success_rate": checkoutRate,
			"status_updates":        m.StatusUpdates,
			"cancellations":         m.Cancellations,
			"worker_processed":      m.WorkerProcessed,
			"worker_failed":         m.WorkerFailed,
			"worker_success_rate":   workerRate,
			"watchers":              m.Watchers,
		},
		"last_events": map[string]interface{}{
			"redis_error":   m.LastRedisError,
			"mq_error":      m.LastMQError,
			"db_error":      m.LastDBError,
			"last_checkout": m.LastCheckout,
			"last_worker":   m.LastWorkerTime,
		},
	}
}

// Reset 重置统计（测试用）
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RedisErrors, m.MQErrors, m.DBErrors, m.WorkerErrors = 0, 0, 0, 0
	m.Checkouts, m.CheckoutsFailed, m.StatusUpdates, m.Cancellations = 0, 0, 0, 0
	m.WorkerProcessed, m.WorkerFailed, m.Watchers = 0, 0, 0
}
