package api

import (
	aihandler "curriculumhub/api/handlers/ai"
	diaghandler "curriculumhub/api/handlers/diagnostics"
	"curriculumhub/internal/auth"
	"curriculumhub/internal/logger"
	"curriculumhub/internal/metrics"
	"curriculumhub/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Dependencies 路由依赖
type Dependencies struct {
	DB          *gorm.DB // 可为 nil
	Generator   aihandler.Generator
	Diagnostics diaghandler.Runner
	JWT         *auth.JWTService // nil 表示诊断接口不鉴权
}

// SetupRouter 设置并返回 Gin 路由
func SetupRouter(deps Dependencies) *gin.Engine {
	router := gin.New()

	// 全局中间件
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(RequestLogger())
	router.Use(CORS())
	router.Use(metrics.PrometheusMiddleware())

	router.GET("/health", HealthCheck())
	router.GET("/ready", ReadinessCheck(deps.DB))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := router.Group("/api/ai")

	aiHandler := aihandler.NewHandler(deps.Generator)
	apiGroup.POST("/generate", aiHandler.Generate)
	apiGroup.GET("/status", aiHandler.Status)

	if deps.JWT == nil {
		logger.Warn("未配置运维密钥，诊断接口不做鉴权")
	}
	diagHandler := diaghandler.NewHandler(deps.Diagnostics)
	diagGroup := apiGroup.Group("/diagnostics", auth.OperatorGuard(deps.JWT))
	{
		diagGroup.GET("", diagHandler.Get)
		diagGroup.POST("", diagHandler.Post)
	}

	return router
}
