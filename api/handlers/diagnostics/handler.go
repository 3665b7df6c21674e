package diagnostics

import (
	"context"
	"errors"
	"io"
	"net/http"

	"curriculumhub/api/handlers/common"
	diag "curriculumhub/internal/diagnostics"
	"curriculumhub/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Runner 诊断执行器
type Runner interface {
	Run(ctx context.Context, overrideCredential string) *diag.DiagnosticReport
}

// RunRequest 带临时凭证的诊断请求
type RunRequest struct {
	APIKey string `json:"api_key"`
}

// Handler 诊断接口
type Handler struct {
	runner Runner
}

// NewHandler 创建 Handler
func NewHandler(runner Runner) *Handler {
	return &Handler{runner: runner}
}

// Get 使用当前配置执行诊断
// @Summary 运行连通性诊断
// @Tags Diagnostics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} common.APIResponse
// @Failure 503 {object} common.APIResponse
// @Router /api/ai/diagnostics [get]
func (h *Handler) Get(c *gin.Context) {
	h.respond(c, h.runner.Run(c.Request.Context(), ""))
}

// Post 使用请求体中的临时凭证执行诊断，凭证不会被保存
// @Summary 使用临时凭证运行诊断
// @Tags Diagnostics
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body RunRequest false "临时凭证"
// @Success 200 {object} common.APIResponse
// @Failure 400 {object} common.ErrorResponse
// @Failure 503 {object} common.APIResponse
// @Router /api/ai/diagnostics [post]
func (h *Handler) Post(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, common.Fail("invalid_request", err.Error()))
		return
	}
	h.respond(c, h.runner.Run(c.Request.Context(), req.APIKey))
}

func (h *Handler) respond(c *gin.Context, report *diag.DiagnosticReport) {
	code := http.StatusOK
	if report.OverallStatus == diag.StatusCritical {
		code = http.StatusServiceUnavailable
		logger.WithContext(c.Request.Context()).Warn("诊断结果为 critical",
			zap.Strings("recommendations", report.Recommendations),
		)
	}

	c.JSON(code, common.APIResponse{
		Success: report.OverallStatus != diag.StatusCritical,
		Message: string(report.OverallStatus),
		Data:    report,
	})
}
