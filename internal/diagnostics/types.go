package diagnostics

import "time"

// ProbeName 探针名称
type ProbeName string

const (
	ProbeCredential     ProbeName = "credential"
	ProbeNetwork        ProbeName = "network"
	ProbeImplementation ProbeName = "implementation"
	ProbeStorage        ProbeName = "storage"
)

// ProbeOrder 探针固定顺序，建议列表按此顺序输出
var ProbeOrder = []ProbeName{ProbeCredential, ProbeNetwork, ProbeImplementation, ProbeStorage}

// ProbeResult 单个探针结果
type ProbeResult struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// OverallStatus 总体健康等级
type OverallStatus string

const (
	StatusHealthy  OverallStatus = "healthy"
	StatusDegraded OverallStatus = "degraded"
	StatusCritical OverallStatus = "critical"
)

// RunState 一次诊断的运行状态，没有失败态
type RunState string

const (
	StatePending    RunState = "pending"
	StateProbing    RunState = "probing"
	StateAggregated RunState = "aggregated"
)

// DiagnosticReport 诊断报告
type DiagnosticReport struct {
	Credential      ProbeResult   `json:"credential"`
	Network         ProbeResult   `json:"network"`
	Implementation  ProbeResult   `json:"implementation"`
	Storage         ProbeResult   `json:"storage"`
	OverallStatus   OverallStatus `json:"overall_status"`
	Recommendations []string      `json:"recommendations"`
	State           RunState      `json:"state"`
	DurationMs      int64         `json:"duration_ms"`
	GeneratedAt     time.Time     `json:"generated_at"`
}

// Results 按固定顺序返回探针结果
func (r *DiagnosticReport) Results() map[ProbeName]ProbeResult {
	return map[ProbeName]ProbeResult{
		ProbeCredential:     r.Credential,
		ProbeNetwork:        r.Network,
		ProbeImplementation: r.Implementation,
		ProbeStorage:        r.Storage,
	}
}

// SuccessCount 成功的探针数量
func (r *DiagnosticReport) SuccessCount() int {
	n := 0
	for _, res := range r.Results() {
		if res.Success {
			n++
		}
	}
	return n
}
