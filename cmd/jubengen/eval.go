// cmd/jubengen/eval.go
package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jubenlab/jubengen/internal/di"
	"github.com/jubenlab/jubengen/internal/models"
	"github.com/jubenlab/jubengen/internal/services"
)

func getEvaluator(c *di.Container) *services.EvaluatorService {
	return c.Get("evaluator").(*services.EvaluatorService)
}

func newEvalCmd() *cobra.Command {
	var (
		scriptPath      string
		constraintsPath string
		outDir          string
	)

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "对比生成剧本与样例目标区间，输出评估报告（MD）",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := models.DefaultStyleTarget()
			fused, err := loadOptionalConstraints(constraintsPath)
			if err != nil {
				return err
			}
			if fused != nil {
				target = fused.StyleTarget
			}

			container, err := buildOfflineServices()
			if err != nil {
				return err
			}

			dir, name := filepath.Split(scriptPath)
			report, err := getEvaluator(container).SaveReport(dir, name, target, outDir)
			if err != nil {
				return err
			}

			fs := getStorage(container)
			cmd.Printf("OK: %s（%d 集，全部在范围内=%v）\n",
				filepath.Join(fs.BaseDir, outDir, "evaluation_report.md"),
				report.EpisodeCount, report.AllInRange())
			return nil
		},
	}

	cmd.Flags().StringVar(&scriptPath, "script", "", "生成剧本路径（相对数据目录，可含多集）")
	cmd.Flags().StringVar(&constraintsPath, "constraints", "", "融合约束 JSON 路径（可选，缺省用内置区间）")
	cmd.Flags().StringVar(&outDir, "out", "output", "输出目录（相对数据目录）")
	cmd.MarkFlagRequired("script")

	return cmd
}
