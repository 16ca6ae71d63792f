package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRequestCounter_Increment(t *testing.T) {
	counter := NewRequestCounter(time.Second)

	for i := 0; i < 10; i++ {
		counter.Increment()
	}

	assert.Equal(t, int64(10), counter.GetTotal())
}

func TestRequestCounter_QPSPositive(t *testing.T) {
	counter := NewRequestCounter(2 * time.Second)

	for i := 0; i < 100; i++ {
		counter.Increment()
	}

	assert.Greater(t, counter.GetQPS(), 0.0)
}

func TestRequestCounter_WindowRotation(t *testing.T) {
	counter := NewRequestCounter(200 * time.Millisecond)

	for i := 0; i < 10; i++ {
		counter.Increment()
	}

	// 跨过一个窗口，旧计数移入上一个桶
	time.Sleep(300 * time.Millisecond)

	for i := 0; i < 20; i++ {
		counter.Increment()
	}

	assert.Equal(t, int64(30), counter.GetTotal())
	assert.Greater(t, counter.GetQPS(), 0.0)
}

func TestRequestCounter_IdleExpiry(t *testing.T) {
	counter := NewRequestCounter(100 * time.Millisecond)

	for i := 0; i < 50; i++ {
		counter.Increment()
	}

	// 静默超过两个窗口后，QPS 归零但总量保留
	time.Sleep(350 * time.Millisecond)

	assert.Equal(t, 0.0, counter.GetQPS())
	assert.Equal(t, int64(50), counter.GetTotal())
}

func TestRequestCounter_ConcurrentIncrement(t *testing.T) {
	counter := NewRequestCounter(time.Second)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				counter.Increment()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(800), counter.GetTotal())
}

func TestRequestCounter_GetStats(t *testing.T) {
	counter := NewRequestCounter(time.Second)

	for i := 0; i < 50; i++ {
		counter.Increment()
	}

	stats := counter.GetStats()
	assert.Equal(t, int64(50), stats.Total)
	assert.Greater(t, stats.CurrentQPS, 0.0)
}
