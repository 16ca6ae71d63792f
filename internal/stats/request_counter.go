package stats

import (
	"sync"
	"sync/atomic"
	"time"
)

// RequestCounter 进程内请求计数器
// 总量用原子计数；QPS 用两个相邻时间桶近似滑动窗口，
// 桶在读写路径上惰性轮转，不占用后台协程
type RequestCounter struct {
	total int64

	mu       sync.Mutex
	window   time.Duration
	current  bucket
	previous bucket
}

type bucket struct {
	count int64
	start time.Time
}

// NewRequestCounter 创建请求计数器
func NewRequestCounter(window time.Duration) *RequestCounter {
	if window <= 0 {
		window = time.Minute
	}

	now := time.Now()
	return &RequestCounter{
		window:   window,
		current:  bucket{start: now},
		previous: bucket{start: now.Add(-window)},
	}
}

// Increment 记一次请求
func (rc *RequestCounter) Increment() {
	atomic.AddInt64(&rc.total, 1)

	rc.mu.Lock()
	rc.rotateLocked(time.Now())
	rc.current.count++
	rc.mu.Unlock()
}

// GetTotal 累计请求数
func (rc *RequestCounter) GetTotal() int64 {
	return atomic.LoadInt64(&rc.total)
}

// GetQPS 近似每秒请求数
// 当前桶按已流逝时间计算，剩余部分按比例混入上一个桶
func (rc *RequestCounter) GetQPS() float64 {
	now := time.Now()

	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.rotateLocked(now)

	winSecs := rc.window.Seconds()
	elapsed := now.Sub(rc.current.start).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}

	weight := (winSecs - elapsed) / winSecs
	if weight < 0 {
		weight = 0
	}

	span := elapsed + winSecs*weight
	if span <= 0 {
		return 0
	}
	return (float64(rc.current.count) + float64(rc.previous.count)*weight) / span
}

// rotateLocked 按需轮转时间桶，调用方必须持有锁
func (rc *RequestCounter) rotateLocked(now time.Time) {
	elapsed := now.Sub(rc.current.start)
	if elapsed < rc.window {
		return
	}

	// 超过两个窗口没有流量，两个桶都已过期
	if elapsed >= 2*rc.window {
		rc.previous = bucket{start: now.Add(-rc.window)}
		rc.current = bucket{start: now}
		return
	}

	rc.previous = rc.current
	rc.current = bucket{start: rc.current.start.Add(rc.window)}
}

// RequestStats 对外暴露的统计快照
type RequestStats struct {
	Total      int64   `json:"total"`
	CurrentQPS float64 `json:"current_qps"`
}

// GetStats 读取统计快照
func (rc *RequestCounter) GetStats() RequestStats {
	return RequestStats{
		Total:      rc.GetTotal(),
		CurrentQPS: rc.GetQPS(),
	}
}
