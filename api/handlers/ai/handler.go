package ai

import (
	"context"
	"net/http"

	"curriculumhub/api/handlers/common"
	aipkg "curriculumhub/internal/ai"
	"curriculumhub/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HeaderUserID 上游应用传入的用户标识，只用于调用日志
const HeaderUserID = "X-User-ID"

// Generator 文本生成能力
type Generator interface {
	Generate(ctx context.Context, req aipkg.GenerationRequest) aipkg.GenerationOutcome
	Status() aipkg.ClientStatus
	Monitor() *aipkg.PerformanceMonitor
}

// Handler AI 生成接口
type Handler struct {
	generator Generator
}

// NewHandler 创建 Handler
func NewHandler(generator Generator) *Handler {
	return &Handler{generator: generator}
}

// Generate 生成文本
// 后端不可用时返回兜底文案，状态码仍为 200
// @Summary 生成文本
// @Tags AI
// @Accept json
// @Produce json
// @Param request body GenerateRequest true "生成请求"
// @Success 200 {object} common.APIResponse
// @Failure 400 {object} common.ErrorResponse
// @Router /api/ai/generate [post]
func (h *Handler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.Fail("invalid_request", err.Error()))
		return
	}

	outcome := h.generator.Generate(c.Request.Context(), aipkg.GenerationRequest{
		Prompt:            req.Prompt,
		Messages:          req.Messages,
		Subject:           req.Subject,
		SystemInstruction: req.SystemInstruction,
		Model:             req.Model,
		MaxTokens:         req.MaxTokens,
		Temperature:       req.Temperature,
		Stream:            req.Stream,
		UserID:            c.GetHeader(HeaderUserID),
	})

	if outcome.IsFallback {
		logger.WithContext(c.Request.Context()).Debug("生成请求返回兜底文案",
			zap.String("model", outcome.Model),
			zap.Int("attempts", outcome.Attempts),
		)
	}

	c.JSON(http.StatusOK, common.OK(toGenerateResponse(outcome)))
}

// Status 查询客户端配置与调用统计
// @Summary 生成客户端状态
// @Tags AI
// @Produce json
// @Success 200 {object} common.APIResponse
// @Router /api/ai/status [get]
func (h *Handler) Status(c *gin.Context) {
	perf := h.generator.Monitor().Summaries()
	if perf == nil {
		perf = []aipkg.ModelPerformanceSummary{}
	}
	c.JSON(http.StatusOK, common.OK(StatusResponse{
		Client:      h.generator.Status(),
		Performance: perf,
	}))
}
