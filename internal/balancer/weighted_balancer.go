package balancer

import (
	"math/rand"
	"sync"
	"time"

	"github.com/cchking/ytbox/internal/models"
)

// ==================== 接口定义 ====================

// ChannelSelector 渠道选择器接口
type ChannelSelector interface {
	// SelectChannel 从候选渠道中选择一个
	SelectChannel(channels []*models.Channel) *models.Channel

	// GetStats 获取选择统计信息
	GetStats() *SelectorStats

	// Reset 重置统计信息
	Reset()
}

// ==================== 统计信息 ====================

// SelectorStats 渠道选择统计信息
type SelectorStats struct {
	TotalSelections int64          `json:"total_selections"` // 总选择次数
	ChannelCounts   map[uint]int64 `json:"channel_counts"`   // 各渠道被选中次数
	LastSelection   time.Time      `json:"last_selection"`   // 最后选择时间
	mutex           sync.RWMutex
}

// GetChannelCount 获取指定渠道的选择次数
func (s *SelectorStats) GetChannelCount(channelID uint) int64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.ChannelCounts[channelID]
}

// GetDistribution 获取各渠道被选中的百分比
func (s *SelectorStats) GetDistribution() map[uint]float64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.TotalSelections == 0 {
		return make(map[uint]float64)
	}

	distribution := make(map[uint]float64)
	for channelID, count := range s.ChannelCounts {
		distribution[channelID] = float64(count) / float64(s.TotalSelections) * 100
	}
	return distribution
}

// ==================== 加权随机选择器 ====================

// WeightedRandomSelector 加权随机渠道选择器
// 在 [0, totalWeight) 内均匀取随机值，沿列表累加权重，
// 返回累计权重首次达到随机值的渠道
type WeightedRandomSelector struct {
	random *rand.Rand
	mutex  sync.Mutex
	stats  *SelectorStats
}

// NewWeightedRandomSelector 创建加权随机选择器
func NewWeightedRandomSelector() *WeightedRandomSelector {
	return &WeightedRandomSelector{
		random: rand.New(rand.NewSource(time.Now().UnixNano())),
		stats: &SelectorStats{
			ChannelCounts: make(map[uint]int64),
		},
	}
}

// NewWeightedRandomSelectorWithSeed 使用指定种子创建选择器（主要用于测试）
func NewWeightedRandomSelectorWithSeed(seed int64) *WeightedRandomSelector {
	return &WeightedRandomSelector{
		random: rand.New(rand.NewSource(seed)),
		stats: &SelectorStats{
			ChannelCounts: make(map[uint]int64),
		},
	}
}

// SelectChannel 从候选渠道中选择一个
// 候选列表为空时返回 nil；浮点累加误差导致无渠道命中时兜底返回最后一个
func (s *WeightedRandomSelector) SelectChannel(channels []*models.Channel) *models.Channel {
	if len(channels) == 0 {
		return nil
	}

	if len(channels) == 1 {
		s.updateStats(channels[0])
		return channels[0]
	}

	totalWeight := 0.0
	for _, ch := range channels {
		if ch.Weight > 0 {
			totalWeight += ch.Weight
		}
	}

	var selected *models.Channel
	if totalWeight <= 0 {
		// 权重全部无效时退化为等概率选择
		s.mutex.Lock()
		selected = channels[s.random.Intn(len(channels))]
		s.mutex.Unlock()
	} else {
		selected = s.selectByWeight(channels, totalWeight)
	}

	s.updateStats(selected)
	return selected
}

// selectByWeight 按权重选择
func (s *WeightedRandomSelector) selectByWeight(channels []*models.Channel, totalWeight float64) *models.Channel {
	s.mutex.Lock()
	draw := s.random.Float64() * totalWeight
	s.mutex.Unlock()

	cumulative := 0.0
	for _, ch := range channels {
		if ch.Weight <= 0 {
			continue
		}
		cumulative += ch.Weight
		if cumulative >= draw {
			return ch
		}
	}

	// 浮点舍入兜底：永不失败，返回最后一个渠道
	return channels[len(channels)-1]
}

// updateStats 更新统计信息
func (s *WeightedRandomSelector) updateStats(selected *models.Channel) {
	s.stats.mutex.Lock()
	defer s.stats.mutex.Unlock()

	s.stats.TotalSelections++
	s.stats.ChannelCounts[selected.ID]++
	s.stats.LastSelection = time.Now()
}

// GetStats 获取选择统计信息
func (s *WeightedRandomSelector) GetStats() *SelectorStats {
	s.stats.mutex.RLock()
	defer s.stats.mutex.RUnlock()

	statsCopy := &SelectorStats{
		TotalSelections: s.stats.TotalSelections,
		ChannelCounts:   make(map[uint]int64),
		LastSelection:   s.stats.LastSelection,
	}
	for channelID, count := range s.stats.ChannelCounts {
		statsCopy.ChannelCounts[channelID] = count
	}

	return statsCopy
}

// Reset 重置统计信息
func (s *WeightedRandomSelector) Reset() {
	s.stats.mutex.Lock()
	defer s.stats.mutex.Unlock()

	s.stats.TotalSelections = 0
	s.stats.ChannelCounts = make(map[uint]int64)
	s.stats.LastSelection = time.Time{}
}
