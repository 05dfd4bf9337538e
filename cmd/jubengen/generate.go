// cmd/jubengen/generate.go
package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jubenlab/jubengen/internal/di"
	"github.com/jubenlab/jubengen/internal/models"
	"github.com/jubenlab/jubengen/internal/prompts"
	"github.com/jubenlab/jubengen/internal/services"
)

// loadOptionalConstraints 读取融合约束 JSON，路径为空时返回 nil
func loadOptionalConstraints(path string) (*models.FusedConstraints, error) {
	if path == "" {
		return nil, nil
	}
	return prompts.LoadFusedConstraints(path)
}

func getBible(c *di.Container) *services.BibleService {
	return c.Get("bible").(*services.BibleService)
}

func getPlanner(c *di.Container) *services.PlannerService {
	return c.Get("planner").(*services.PlannerService)
}

func getWriter(c *di.Container) *services.WriterService {
	return c.Get("writer").(*services.WriterService)
}

func newBibleCmd() *cobra.Command {
	var (
		novelPath       string
		chapterStart    int
		chapterEnd      int
		constraintsPath string
		outDir          string
		rf              rulesFlags
	)

	cmd := &cobra.Command{
		Use:   "bible",
		Short: "从小说片段提取 Story Bible（JSON）",
		RunE: func(cmd *cobra.Command, args []string) error {
			adaptRules, err := rf.load()
			if err != nil {
				return err
			}
			fused, err := loadOptionalConstraints(constraintsPath)
			if err != nil {
				return err
			}

			container, err := buildServices()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			bible, err := getBible(container).GenerateBible(ctx, services.BibleOptions{
				NovelPath:    novelPath,
				ChapterStart: chapterStart,
				ChapterEnd:   chapterEnd,
				Rules:        adaptRules,
				Constraints:  fused,
			})
			if err != nil {
				return err
			}

			fs := getStorage(container)
			if err := fs.SaveJSONFile(outDir, "bible.json", bible); err != nil {
				return err
			}
			cmd.Printf("OK: %s\n", filepath.Join(fs.BaseDir, outDir, "bible.json"))
			return nil
		},
	}

	cmd.Flags().StringVar(&novelPath, "novel", "", "源小说文本路径")
	cmd.Flags().IntVar(&chapterStart, "chapter-start", 0, "起始章节（0 表示从头）")
	cmd.Flags().IntVar(&chapterEnd, "chapter-end", 0, "结束章节（0 表示到尾）")
	cmd.Flags().StringVar(&constraintsPath, "constraints", "", "融合约束 JSON 路径（可选）")
	cmd.Flags().StringVar(&outDir, "out", "output", "输出目录（相对数据目录）")
	rf.register(cmd)
	cmd.MarkFlagRequired("novel")

	return cmd
}

func newPlanCmd() *cobra.Command {
	var (
		biblePath       string
		constraintsPath string
		episodes        int
		outDir          string
		rf              rulesFlags
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "从 Story Bible 规划分集节拍表（JSON 数组）",
		RunE: func(cmd *cobra.Command, args []string) error {
			adaptRules, err := rf.load()
			if err != nil {
				return err
			}
			fused, err := loadOptionalConstraints(constraintsPath)
			if err != nil {
				return err
			}
			bible, err := services.LoadBible(biblePath)
			if err != nil {
				return err
			}

			container, err := buildServices()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			spec := prompts.DefaultEpisodeSpec()
			if episodes > 0 {
				spec.Episodes = episodes
			}

			plan, err := getPlanner(container).GeneratePlan(ctx, services.PlanOptions{
				Bible:       bible,
				Rules:       adaptRules,
				Constraints: fused,
				Spec:        spec,
			})
			if err != nil {
				return err
			}

			fs := getStorage(container)
			if err := fs.SaveJSONFile(outDir, "plan.json", plan); err != nil {
				return err
			}
			cmd.Printf("OK: %s（%d 集）\n", filepath.Join(fs.BaseDir, outDir, "plan.json"), len(plan))
			return nil
		},
	}

	cmd.Flags().StringVar(&biblePath, "bible", "", "Story Bible JSON 路径")
	cmd.Flags().StringVar(&constraintsPath, "constraints", "", "融合约束 JSON 路径（可选）")
	cmd.Flags().IntVar(&episodes, "episodes", 0, "目标集数（0 使用默认）")
	cmd.Flags().StringVar(&outDir, "out", "output", "输出目录（相对数据目录）")
	rf.register(cmd)
	cmd.MarkFlagRequired("bible")

	return cmd
}

func newWriteCmd() *cobra.Command {
	var (
		planPath        string
		constraintsPath string
		outDir          string
		rf              rulesFlags
	)

	cmd := &cobra.Command{
		Use:   "write",
		Short: "按节拍表逐集生成剧本正文",
		RunE: func(cmd *cobra.Command, args []string) error {
			adaptRules, err := rf.load()
			if err != nil {
				return err
			}
			fused, err := loadOptionalConstraints(constraintsPath)
			if err != nil {
				return err
			}
			plan, err := services.LoadPlan(planPath)
			if err != nil {
				return err
			}

			container, err := buildServices()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			episodes, err := getWriter(container).GenerateAllEpisodes(ctx, services.WriteOptions{
				Plan:        plan,
				Rules:       adaptRules,
				Constraints: fused,
				OutputDir:   outDir,
				OnEpisodeDone: func(done, total int) {
					cmd.Printf("已完成 %d/%d 集\n", done, total)
				},
			})
			if err != nil {
				return err
			}

			fs := getStorage(container)
			cmd.Printf("OK: %d 集已写入 %s\n", len(episodes), filepath.Join(fs.BaseDir, outDir, "episodes"))
			return nil
		},
	}

	cmd.Flags().StringVar(&planPath, "plan", "", "节拍表 JSON 路径")
	cmd.Flags().StringVar(&constraintsPath, "constraints", "", "融合约束 JSON 路径（可选）")
	cmd.Flags().StringVar(&outDir, "out", "output", "输出目录（相对数据目录）")
	rf.register(cmd)
	cmd.MarkFlagRequired("plan")

	return cmd
}
