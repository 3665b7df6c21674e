package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	aipkg "curriculumhub/internal/ai"
	"curriculumhub/internal/auth"
	diag "curriculumhub/internal/diagnostics"
	"curriculumhub/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct{}

func (stubGenerator) Generate(context.Context, aipkg.GenerationRequest) aipkg.GenerationOutcome {
	return aipkg.GenerationOutcome{Text: "ok"}
}

func (stubGenerator) Status() aipkg.ClientStatus { return aipkg.ClientStatus{} }

func (stubGenerator) Monitor() *aipkg.PerformanceMonitor { return aipkg.NewPerformanceMonitor() }

type stubRunner struct{}

func (stubRunner) Run(context.Context, string) *diag.DiagnosticReport {
	return &diag.DiagnosticReport{OverallStatus: diag.StatusHealthy}
}

func newTestRouter(jwt *auth.JWTService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return SetupRouter(Dependencies{
		Generator:   stubGenerator{},
		Diagnostics: stubRunner{},
		JWT:         jwt,
	})
}

func TestSetupRouter_SystemRoutes(t *testing.T) {
	router := newTestRouter(nil)

	t.Run("健康检查", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))
	})

	t.Run("无数据库时就绪", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "disabled")
	})

	t.Run("指标端点", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("跨域预检", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/ai/generate", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestSetupRouter_DiagnosticsGuard(t *testing.T) {
	jwt := auth.NewJWTService("ops-secret", "curriculumhub")
	require.NotNil(t, jwt)
	router := newTestRouter(jwt)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ai/diagnostics", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := jwt.IssueOperatorToken("ops", time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/ai/diagnostics", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// 生成接口不受运维鉴权影响
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ai/status", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
