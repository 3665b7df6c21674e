package ai

import (
	aipkg "curriculumhub/internal/ai"
)

// GenerateRequest 生成请求
type GenerateRequest struct {
	Prompt            string          `json:"prompt"`
	Messages          []aipkg.Message `json:"messages"`
	Subject           string          `json:"subject"`
	SystemInstruction string          `json:"system_instruction"`
	Model             string          `json:"model"`
	MaxTokens         int             `json:"max_tokens" binding:"omitempty,min=1,max=32768"`
	Temperature       float64         `json:"temperature" binding:"omitempty,min=0,max=2"`
	Stream            bool            `json:"stream"`
}

// GenerateResponse 生成响应
type GenerateResponse struct {
	Text       string          `json:"text"`
	IsFallback bool            `json:"is_fallback"`
	Model      string          `json:"model"`
	Attempts   int             `json:"attempts"`
	LatencyMs  int64           `json:"latency_ms"`
	Usage      aipkg.Usage     `json:"usage"`
	RequestID  string          `json:"request_id,omitempty"`
	ErrorKind  aipkg.ErrorType `json:"error_kind,omitempty"`
}

// StatusResponse 客户端状态响应
type StatusResponse struct {
	Client      aipkg.ClientStatus              `json:"client"`
	Performance []aipkg.ModelPerformanceSummary `json:"performance"`
}

func toGenerateResponse(outcome aipkg.GenerationOutcome) GenerateResponse {
	resp := GenerateResponse{
		Text:       outcome.Text,
		IsFallback: outcome.IsFallback,
		Model:      outcome.Model,
		Attempts:   outcome.Attempts,
		LatencyMs:  outcome.Latency.Milliseconds(),
		Usage:      outcome.Usage,
		RequestID:  outcome.RequestID,
	}
	if outcome.LastError != nil {
		resp.ErrorKind = outcome.LastError.Kind
	}
	return resp
}
