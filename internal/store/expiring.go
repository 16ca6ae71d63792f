package store

import (
	"sync"
	"time"
)

// ==================== 过期存储接口 ====================

// ExpiringStore 带过期时间的键值存储接口
// 用于验证码、短期令牌等生命周期固定的小数据
type ExpiringStore interface {
	// Get 读取键值，过期或不存在时返回 false
	Get(key string) (string, bool)

	// Put 写入键值并设置存活时间
	Put(key, value string, ttl time.Duration)

	// Delete 删除键值
	Delete(key string)

	// SweepExpired 清理所有过期条目，返回清理数量
	SweepExpired() int
}

// ==================== 内存实现 ====================

type entry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore 内存过期存储
type MemoryStore struct {
	mu        sync.RWMutex
	data      map[string]entry
	stopSweep chan struct{}
}

// NewMemoryStore 创建内存存储并启动定期清理
func NewMemoryStore(sweepInterval time.Duration) *MemoryStore {
	if sweepInterval <= 0 {
		sweepInterval = 10 * time.Minute
	}

	store := &MemoryStore{
		data:      make(map[string]entry),
		stopSweep: make(chan struct{}),
	}

	go store.sweepLoop(sweepInterval)

	return store
}

// Get 读取键值
func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	e, exists := s.data[key]
	s.mu.RUnlock()

	if !exists || time.Now().After(e.expiresAt) {
		return "", false
	}
	return e.value, true
}

// Put 写入键值
func (s *MemoryStore) Put(key, value string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = entry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
}

// Delete 删除键值
func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
}

// SweepExpired 清理过期条目
func (s *MemoryStore) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, e := range s.data {
		if now.After(e.expiresAt) {
			delete(s.data, key)
			removed++
		}
	}
	return removed
}

// Close 停止清理协程
func (s *MemoryStore) Close() {
	close(s.stopSweep)
}

// sweepLoop 定期清理
func (s *MemoryStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.SweepExpired()
		case <-s.stopSweep:
			return
		}
	}
}
