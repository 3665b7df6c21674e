package ai

import (
	"sort"
	"sync"
	"time"
)

const maxLatencySamples = 500

// PerformanceMonitor 生成调用的进程内统计
// Prometheus 负责长期指标，这里只服务状态接口的即时视图
type PerformanceMonitor struct {
	mu    sync.RWMutex
	stats map[string]*modelStats // key: model
}

type modelStats struct {
	generated   int64
	fallbacks   int64
	attempts    int64
	errorsByKey map[ErrorType]int64
	latencies   []float64 // 秒，最近 maxLatencySamples 次
	lastAt      time.Time
}

// ModelPerformanceSummary 模型性能摘要
type ModelPerformanceSummary struct {
	Model        string              `json:"model"`
	Generated    int64               `json:"generated"`
	Fallbacks    int64               `json:"fallbacks"`
	Attempts     int64               `json:"attempts"`
	SuccessRate  float64             `json:"successRate"`
	AvgLatency   float64             `json:"avgLatencyMs"`
	P50Latency   float64             `json:"p50LatencyMs"`
	P95Latency   float64             `json:"p95LatencyMs"`
	ErrorsByKind map[ErrorType]int64 `json:"errorsByKind,omitempty"`
	LastRequest  time.Time           `json:"lastRequestTime"`
}

// NewPerformanceMonitor 创建性能监控器
func NewPerformanceMonitor() *PerformanceMonitor {
	return &PerformanceMonitor{stats: make(map[string]*modelStats)}
}

// Record 记录一次生成结果
func (pm *PerformanceMonitor) Record(model string, outcome *GenerationOutcome) {
	if pm == nil || outcome == nil {
		return
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()

	s, ok := pm.stats[model]
	if !ok {
		s = &modelStats{
			errorsByKey: make(map[ErrorType]int64),
			latencies:   make([]float64, 0, 64),
		}
		pm.stats[model] = s
	}

	s.attempts += int64(outcome.Attempts)
	s.lastAt = time.Now()
	if outcome.IsFallback {
		s.fallbacks++
	} else {
		s.generated++
	}
	if outcome.LastError != nil {
		s.errorsByKey[outcome.LastError.Kind]++
	}

	if len(s.latencies) >= maxLatencySamples {
		s.latencies = s.latencies[1:]
	}
	s.latencies = append(s.latencies, outcome.Latency.Seconds())
}

// Summaries 返回所有模型的摘要，按模型名排序
func (pm *PerformanceMonitor) Summaries() []ModelPerformanceSummary {
	if pm == nil {
		return nil
	}

	pm.mu.RLock()
	defer pm.mu.RUnlock()

	result := make([]ModelPerformanceSummary, 0, len(pm.stats))
	for model, s := range pm.stats {
		total := s.generated + s.fallbacks
		summary := ModelPerformanceSummary{
			Model:       model,
			Generated:   s.generated,
			Fallbacks:   s.fallbacks,
			Attempts:    s.attempts,
			AvgLatency:  avgMillis(s.latencies),
			P50Latency:  percentileMillis(s.latencies, 50),
			P95Latency:  percentileMillis(s.latencies, 95),
			LastRequest: s.lastAt,
		}
		if total > 0 {
			summary.SuccessRate = float64(s.generated) / float64(total)
		}
		if len(s.errorsByKey) > 0 {
			summary.ErrorsByKind = make(map[ErrorType]int64, len(s.errorsByKey))
			for k, v := range s.errorsByKey {
				summary.ErrorsByKind[k] = v
			}
		}
		result = append(result, summary)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Model < result[j].Model })
	return result
}

func avgMillis(latencies []float64) float64 {
	if len(latencies) == 0 {
		return 0
	}
	sum := 0.0
	for _, l := range latencies {
		sum += l
	}
	return (sum / float64(len(latencies))) * 1000
}

func percentileMillis(latencies []float64, percentile float64) float64 {
	if len(latencies) == 0 {
		return 0
	}
	sorted := append([]float64{}, latencies...)
	sort.Float64s(sorted)
	idx := int(float64(len(sorted)-1) * percentile / 100)
	return sorted[idx] * 1000
}
