// internal/api/router.go
package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jubenlab/jubengen/internal/config"
	"github.com/jubenlab/jubengen/internal/di"
	"github.com/jubenlab/jubengen/internal/services"
	"github.com/jubenlab/jubengen/internal/storage"
	"github.com/jubenlab/jubengen/internal/utils"
)

// SetupRouter 配置HTTP路由。所有服务从依赖注入容器获取。
func SetupRouter(cfg *config.Config) (*gin.Engine, error) {
	container := di.GetContainer()

	pipelineService, ok := container.Get("pipeline").(*services.PipelineService)
	if !ok {
		return nil, fmt.Errorf("管线服务未正确初始化")
	}
	reviewService, ok := container.Get("review").(*services.ReviewService)
	if !ok {
		return nil, fmt.Errorf("审稿服务未正确初始化")
	}
	progressService, ok := container.Get("progress").(*services.ProgressService)
	if !ok {
		return nil, fmt.Errorf("进度服务未正确初始化")
	}
	fileStorage, ok := container.Get("storage").(*storage.FileStorage)
	if !ok {
		return nil, fmt.Errorf("存储服务未正确初始化")
	}

	handler := NewHandler(pipelineService, reviewService, progressService, fileStorage, cfg)
	wsHandler := NewWebSocketHandler(progressService)

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(CORSMiddleware())
	r.Use(MetricsMiddleware(utils.NewPipelineMetrics()))

	// 生成类接口触发 LLM 调用，单独限流
	generateLimiter := NewRateLimiter(10, time.Minute)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/health", handler.HealthCheck)
		apiGroup.GET("/metrics", handler.GetMetrics)

		apiGroup.POST("/pipeline/run", generateLimiter.Middleware(), handler.RunPipeline)
		apiGroup.POST("/review/run", generateLimiter.Middleware(), handler.RunReview)
		apiGroup.GET("/review/:ep", handler.GetReview)

		apiGroup.GET("/artifacts/*path", handler.GetArtifact)

		apiGroup.GET("/genres", handler.ListGenres)
		apiGroup.GET("/genres/:name", handler.GetGenre)

		apiGroup.GET("/progress/:taskID", handler.GetProgress)
	}

	r.GET("/ws/progress/:taskID", wsHandler.ProgressWebSocket)

	return r, nil
}
