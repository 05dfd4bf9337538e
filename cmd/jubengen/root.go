// cmd/jubengen/root.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jubenlab/jubengen/internal/app"
	"github.com/jubenlab/jubengen/internal/config"
	"github.com/jubenlab/jubengen/internal/di"
	"github.com/jubenlab/jubengen/internal/services"
	"github.com/jubenlab/jubengen/internal/storage"
)

// 退出码约定：0 全部通过；1 运行出错；2 任务完成但存在未通过的集
const (
	exitOK          = 0
	exitError       = 1
	exitReviewFails = 2
)

var (
	cfgFile string
	cfg     *config.Config
)

// Execute 运行 CLI，返回进程退出码
func Execute() (int, error) {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		if code, ok := exitCodeFromError(err); ok {
			return code, err
		}
		return exitError, err
	}
	return exitOK, nil
}

// NewRootCmd 装配 cobra 命令树
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "jubengen",
		Short:         "小说到短剧剧本的生成与审稿管线",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.MaybeLoadFile(cfgFile)
			return err
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径（JSON，可选）")

	root.AddCommand(
		newRunCmd(),
		newBibleCmd(),
		newPlanCmd(),
		newWriteCmd(),
		newReviewCmd(),
		newProfileCmd(),
		newConstraintsCmd(),
		newGenresCmd(),
		newEvalCmd(),
	)
	return root
}

// reviewFailError 审稿完成但存在未通过的集，用于映射退出码
type reviewFailError struct {
	passed, total int
}

func (e *reviewFailError) Error() string {
	return fmt.Sprintf("存在未通过审稿的集：%d/%d 通过", e.passed, e.total)
}

// exitCodeFromError 将领域错误映射为退出码
func exitCodeFromError(err error) (int, bool) {
	var rf *reviewFailError
	if errors.As(err, &rf) {
		return exitReviewFails, true
	}
	return 0, false
}

// signalContext 返回随 SIGINT/SIGTERM 取消的上下文
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// buildServices 初始化全部服务并返回容器
func buildServices() (*di.Container, error) {
	if err := app.InitServices(cfg); err != nil {
		return nil, err
	}
	return di.GetContainer(), nil
}

// buildOfflineServices 只装配不依赖 LLM 的服务（画像、约束、评估），
// 这些命令无需配置 API 密钥即可运行
func buildOfflineServices() (*di.Container, error) {
	container := di.GetContainer()

	fileStorage, err := storage.NewFileStorage(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	container.Register("storage", fileStorage)

	profileService := services.NewProfileService()
	container.Register("profile", profileService)
	container.Register("constraints", services.NewConstraintsService(profileService, fileStorage))
	container.Register("evaluator", services.NewEvaluatorService(fileStorage))

	return container, nil
}

func getStorage(c *di.Container) *storage.FileStorage {
	return c.Get("storage").(*storage.FileStorage)
}

func getReview(c *di.Container) *services.ReviewService {
	return c.Get("review").(*services.ReviewService)
}

func getPipeline(c *di.Container) *services.PipelineService {
	return c.Get("pipeline").(*services.PipelineService)
}
