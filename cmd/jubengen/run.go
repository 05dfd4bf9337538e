// cmd/jubengen/run.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jubenlab/jubengen/internal/models"
	"github.com/jubenlab/jubengen/internal/prompts"
	"github.com/jubenlab/jubengen/internal/rules"
	"github.com/jubenlab/jubengen/internal/services"
)

// rulesFlags 三份改编规则文本的路径参数，须同时提供或同时省略
type rulesFlags struct {
	rhythm   string
	endHook  string
	template string
}

func (f *rulesFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.rhythm, "rhythm", "", "节奏适配注意事项文本路径")
	cmd.Flags().StringVar(&f.endHook, "end-hook", "", "结尾钩子方法文本路径")
	cmd.Flags().StringVar(&f.template, "template", "", "卡点模板文本路径")
}

func (f *rulesFlags) load() (models.AdaptRules, error) {
	if f.rhythm == "" && f.endHook == "" && f.template == "" {
		return models.AdaptRules{}, nil
	}
	if f.rhythm == "" || f.endHook == "" || f.template == "" {
		return models.AdaptRules{}, fmt.Errorf("--rhythm/--end-hook/--template 必须同时提供")
	}
	return rules.LoadRulesFromFiles(f.rhythm, f.endHook, f.template)
}

func newRunCmd() *cobra.Command {
	var (
		novelPath     string
		chapterStart  int
		chapterEnd    int
		genre         string
		outDir        string
		episodes      int
		sampleScripts []string
		workers       int
		rf            rulesFlags
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "执行完整管线：约束融合 → Bible → 节拍表 → 逐集撰写 → 审稿 → 评估",
		RunE: func(cmd *cobra.Command, args []string) error {
			adaptRules, err := rf.load()
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

			result, err := getPipeline(container).Run(ctx, services.PipelineOptions{
				NovelPath:     novelPath,
				ChapterStart:  chapterStart,
				ChapterEnd:    chapterEnd,
				Genre:         genre,
				Rules:         adaptRules,
				SampleScripts: sampleScripts,
				Spec:          spec,
				OutputDir:     outDir,
				PassThreshold: cfg.Review.PassThreshold,
				MaxRounds:     cfg.Review.MaxRounds,
				Workers:       workers,
			})
			if err != nil {
				return err
			}

			printBatchSummary(cmd, result.Review)
			if !result.Review.AllPassed() {
				return &reviewFailError{passed: result.Review.Passed, total: result.Review.Total}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&novelPath, "novel", "", "源小说文本路径")
	cmd.Flags().IntVar(&chapterStart, "chapter-start", 0, "起始章节（0 表示从头）")
	cmd.Flags().IntVar(&chapterEnd, "chapter-end", 0, "结束章节（0 表示到尾）")
	cmd.Flags().StringVar(&genre, "genre", "", "题材标识（如 apocalypse 或 末世）")
	cmd.Flags().StringVar(&outDir, "out", "output", "输出目录（相对数据目录）")
	cmd.Flags().IntVar(&episodes, "episodes", 0, "目标集数（0 使用默认）")
	cmd.Flags().StringSliceVar(&sampleScripts, "samples", nil, "样例剧本路径（可多个）")
	cmd.Flags().IntVar(&workers, "workers", 1, "审稿阶段并发集数")
	rf.register(cmd)
	cmd.MarkFlagRequired("novel")

	return cmd
}

// printBatchSummary 打印批量审稿结果明细
func printBatchSummary(cmd *cobra.Command, summary *services.BatchSummary) {
	if summary == nil {
		return
	}
	for _, r := range summary.Results {
		switch {
		case r.Error != "":
			cmd.Printf("第 %d 集：出错（%s）\n", r.Episode, r.Error)
		case r.Passed:
			cmd.Printf("第 %d 集：通过（overall=%.1f，%d 轮）\n", r.Episode, r.Overall, r.Rounds)
		default:
			cmd.Printf("第 %d 集：未通过（最高分=%.1f，%d 轮）\n", r.Episode, r.Overall, r.Rounds)
		}
	}
	cmd.Printf("合计：%d/%d 集通过\n", summary.Passed, summary.Total)
}
