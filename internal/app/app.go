// internal/app/app.go

// Package app 负责服务装配与 HTTP 服务器的生命周期管理。
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jubenlab/jubengen/internal/api"
	"github.com/jubenlab/jubengen/internal/config"
	"github.com/jubenlab/jubengen/internal/di"
	"github.com/jubenlab/jubengen/internal/services"
	"github.com/jubenlab/jubengen/internal/storage"
	"github.com/jubenlab/jubengen/internal/utils"
)

// App 应用实例：配置 + HTTP 服务器
type App struct {
	cfg    *config.Config
	server *http.Server
	logger *utils.Logger
}

// New 创建应用实例并装配全部服务
func New(cfg *config.Config) (*App, error) {
	if err := utils.InitLogger(filepath.Join(cfg.LogDir, "jubengen.log")); err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	if err := InitServices(cfg); err != nil {
		return nil, err
	}

	router, err := api.SetupRouter(cfg)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg: cfg,
		server: &http.Server{
			Addr:    ":" + cfg.Port,
			Handler: router,
		},
		logger: utils.GetLoggerWithName("app"),
	}, nil
}

// InitServices 按依赖顺序把所有服务注册进容器
func InitServices(cfg *config.Config) error {
	container := di.GetContainer()

	fileStorage, err := storage.NewFileStorage(cfg.DataDir)
	if err != nil {
		return err
	}
	container.Register("storage", fileStorage)

	llmService, err := services.NewLLMService(cfg)
	if err != nil {
		return err
	}
	container.Register("llm", llmService)

	progressService := services.NewProgressService()
	container.Register("progress", progressService)

	profileService := services.NewProfileService()
	container.Register("profile", profileService)

	constraintsService := services.NewConstraintsService(profileService, fileStorage)
	container.Register("constraints", constraintsService)

	bibleService := services.NewBibleService(llmService, cfg.Role(config.RoleBible))
	container.Register("bible", bibleService)

	plannerService := services.NewPlannerService(llmService, cfg.Role(config.RolePlan))
	container.Register("planner", plannerService)

	writerService := services.NewWriterService(llmService, cfg.Role(config.RoleWrite), fileStorage)
	container.Register("writer", writerService)

	judgeService := services.NewJudgeService(llmService, cfg.Role(config.RoleJudge))
	container.Register("judge", judgeService)

	rewriteService := services.NewRewriteService(llmService, cfg.Role(config.RoleRewrite))
	container.Register("rewrite", rewriteService)

	reviewService := services.NewReviewService(judgeService, rewriteService, fileStorage)
	container.Register("review", reviewService)

	evaluatorService := services.NewEvaluatorService(fileStorage)
	container.Register("evaluator", evaluatorService)

	pipelineService := services.NewPipelineService(
		constraintsService, bibleService, plannerService,
		writerService, reviewService, evaluatorService, fileStorage)
	container.Register("pipeline", pipelineService)

	return nil
}

// Run 启动 HTTP 服务器并阻塞到收到退出信号，随后优雅关停
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Infof("HTTP 服务已启动：%s", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		a.logger.Infof("收到信号 %s，开始优雅关停", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("关停 HTTP 服务失败: %w", err)
	}
	a.logger.Infof("HTTP 服务已关停")
	return nil
}
