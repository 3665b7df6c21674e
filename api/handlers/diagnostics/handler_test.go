package diagnostics

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	diag "curriculumhub/internal/diagnostics"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	status    diag.OverallStatus
	overrides []string
}

func (f *fakeRunner) Run(_ context.Context, override string) *diag.DiagnosticReport {
	f.overrides = append(f.overrides, override)
	return &diag.DiagnosticReport{
		OverallStatus:   f.status,
		Recommendations: []string{diag.NormalOperation},
		State:           diag.StateAggregated,
	}
}

func setupRouter(runner *fakeRunner) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(runner)
	r.GET("/api/ai/diagnostics", h.Get)
	r.POST("/api/ai/diagnostics", h.Post)
	return r
}

func decodeReport(t *testing.T, body []byte) diag.DiagnosticReport {
	t.Helper()
	var env struct {
		Success bool                  `json:"success"`
		Data    diag.DiagnosticReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &env))
	return env.Data
}

func TestHandler_Get(t *testing.T) {
	tests := []struct {
		name   string
		status diag.OverallStatus
		code   int
	}{
		{"健康", diag.StatusHealthy, http.StatusOK},
		{"降级", diag.StatusDegraded, http.StatusOK},
		{"严重", diag.StatusCritical, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{status: tt.status}
			w := httptest.NewRecorder()
			setupRouter(runner).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ai/diagnostics", nil))

			assert.Equal(t, tt.code, w.Code)
			report := decodeReport(t, w.Body.Bytes())
			assert.Equal(t, tt.status, report.OverallStatus)
			assert.Equal(t, []string{""}, runner.overrides)
		})
	}
}

func TestHandler_Post(t *testing.T) {
	t.Run("携带临时凭证", func(t *testing.T) {
		runner := &fakeRunner{status: diag.StatusHealthy}
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/ai/diagnostics", bytes.NewBufferString(`{"api_key":"sk-override"}`))
		req.Header.Set("Content-Type", "application/json")
		setupRouter(runner).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []string{"sk-override"}, runner.overrides)
	})

	t.Run("空请求体", func(t *testing.T) {
		runner := &fakeRunner{status: diag.StatusDegraded}
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/ai/diagnostics", http.NoBody)
		req.Header.Set("Content-Type", "application/json")
		setupRouter(runner).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []string{""}, runner.overrides)
	})

	t.Run("非法请求体", func(t *testing.T) {
		runner := &fakeRunner{status: diag.StatusHealthy}
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/ai/diagnostics", bytes.NewBufferString(`{"api_key":`))
		req.Header.Set("Content-Type", "application/json")
		setupRouter(runner).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, runner.overrides)
	})
}
