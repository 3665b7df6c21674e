package diagnostics

// NormalOperation 全部探针成功时的唯一建议
const NormalOperation = "All systems are operating normally. No action is needed."

// recommendations 每个失败探针对应的固定建议
var recommendations = map[ProbeName][]string{
	ProbeCredential: {
		"Verify the AI API key: set ai.api_key or the environment variable named by ai.api_key_env (OPENAI_API_KEY by default).",
		"Confirm the key is active and has not been revoked or rate limited by the provider.",
	},
	ProbeNetwork: {
		"Check outbound connectivity, DNS resolution and proxy settings for the AI endpoint (ai.base_url).",
	},
	ProbeImplementation: {
		"Confirm the configured model (ai.model) exists and the account can use it; review recent error records for the failing call.",
	},
	ProbeStorage: {
		"Configure database.dsn or database.host so classified errors are persisted; until then they only reach local logs.",
	},
}

// StatusFromSuccesses 按成功探针数量计算总体等级
// 4 → healthy；2-3 → degraded；0-1 → critical
func StatusFromSuccesses(successes int) OverallStatus {
	switch {
	case successes >= len(ProbeOrder):
		return StatusHealthy
	case successes >= 2:
		return StatusDegraded
	default:
		return StatusCritical
	}
}

// BuildRecommendations 根据失败探针生成建议列表
// 顺序固定，不重复；无失败时只返回一条正常运行提示
func BuildRecommendations(results map[ProbeName]ProbeResult) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, 4)

	for _, name := range ProbeOrder {
		res, ok := results[name]
		if !ok || res.Success {
			continue
		}
		for _, rec := range recommendations[name] {
			if _, dup := seen[rec]; dup {
				continue
			}
			seen[rec] = struct{}{}
			out = append(out, rec)
		}
	}

	if len(out) == 0 {
		return []string{NormalOperation}
	}
	return out
}
