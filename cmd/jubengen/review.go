// cmd/jubengen/review.go
package main

import (
	"github.com/spf13/cobra"

	"github.com/jubenlab/jubengen/internal/models"
	"github.com/jubenlab/jubengen/internal/services"
)

func newReviewCmd() *cobra.Command {
	var (
		episodesDir     string
		outDir          string
		planPath        string
		constraintsPath string
		passThreshold   float64
		maxRounds       int
		workers         int
		rf              rulesFlags
	)

	cmd := &cobra.Command{
		Use:   "review",
		Short: "对已生成的分集剧本执行审稿循环（校验 + 评分 + 定向返修）",
		RunE: func(cmd *cobra.Command, args []string) error {
			adaptRules, err := rf.load()
			if err != nil {
				return err
			}

			opts := services.ReviewOptions{
				Rules:         adaptRules,
				OutputDir:     outDir,
				PassThreshold: passThreshold,
				MaxRounds:     maxRounds,
				Workers:       workers,
			}
			if passThreshold <= 0 {
				opts.PassThreshold = cfg.Review.PassThreshold
			}
			if maxRounds < 0 {
				opts.MaxRounds = cfg.Review.MaxRounds
			}

			fused, err := loadOptionalConstraints(constraintsPath)
			if err != nil {
				return err
			}
			if fused != nil {
				opts.Constraints = fused
				opts.StyleTarget = fused.StyleTarget
				if opts.Rules == (models.AdaptRules{}) {
					opts.Rules = fused.RulesText
				}
			}
			if planPath != "" {
				plan, err := services.LoadPlan(planPath)
				if err != nil {
					return err
				}
				opts.Plan = plan
			}

			container, err := buildServices()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			summary, err := getReview(container).ReviewAllEpisodes(ctx, episodesDir, opts)
			if err != nil {
				return err
			}

			printBatchSummary(cmd, summary)
			if !summary.AllPassed() {
				return &reviewFailError{passed: summary.Passed, total: summary.Total}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&episodesDir, "episodes", "", "分集剧本目录（相对数据目录，含 ep*.txt）")
	cmd.Flags().StringVar(&outDir, "out", "output", "轮次产物输出目录（相对数据目录）")
	cmd.Flags().StringVar(&planPath, "plan", "", "节拍表 JSON 路径（可选，逐集注入评审上下文）")
	cmd.Flags().StringVar(&constraintsPath, "constraints", "", "融合约束 JSON 路径（可选）")
	cmd.Flags().Float64Var(&passThreshold, "threshold", 0, "通过阈值（0 使用配置值）")
	cmd.Flags().IntVar(&maxRounds, "max-rounds", -1, "最大返修轮数（负数使用配置值）")
	cmd.Flags().IntVar(&workers, "workers", 1, "并发审稿集数")
	rf.register(cmd)
	cmd.MarkFlagRequired("episodes")

	return cmd
}
