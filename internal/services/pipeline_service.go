// internal/services/pipeline_service.go
package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jubenlab/jubengen/internal/models"
	"github.com/jubenlab/jubengen/internal/prompts"
	"github.com/jubenlab/jubengen/internal/storage"
	"github.com/jubenlab/jubengen/internal/utils"
)

// 管线阶段标识，进度推送与日志共用
const (
	StageConstraints = "constraints"
	StageBible       = "bible"
	StagePlan        = "plan"
	StageWrite       = "write"
	StageReview      = "review"
	StageEval        = "eval"
)

// PipelineOptions 全流程生成参数
type PipelineOptions struct {
	NovelPath    string
	ChapterStart int
	ChapterEnd   int
	Genre        string

	Rules         models.AdaptRules
	SampleScripts []string // 样例剧本路径，用于画像融合，可为空

	// Spec 单集结构约束，零值时使用 DefaultEpisodeSpec
	Spec prompts.EpisodeSpec

	// OutputDir 相对存储根目录；各阶段产物写入其下
	OutputDir string

	PassThreshold float64
	MaxRounds     int
	Workers       int

	// Tracker 进度跟踪器，可为 nil
	Tracker *ProgressTracker
}

// PipelineResult 全流程产出汇总
type PipelineResult struct {
	Bible      *models.StoryBible       `json:"bible"`
	Plan       []models.EpisodePlan     `json:"plan"`
	Episodes   int                      `json:"episodes"`
	Review     *BatchSummary            `json:"review"`
	Evaluation *EvaluationReport        `json:"evaluation"`
	Constraint *models.FusedConstraints `json:"-"`
}

// PipelineService 串联完整生成管线：
// 约束融合 → Bible 提取 → 节拍表规划 → 逐集撰写 → 审稿循环 → 样例对比评估。
type PipelineService struct {
	constraints *ConstraintsService
	bible       *BibleService
	planner     *PlannerService
	writer      *WriterService
	review      *ReviewService
	evaluator   *EvaluatorService
	fs          *storage.FileStorage
	logger      *utils.Logger
}

// NewPipelineService 创建管线编排服务
func NewPipelineService(
	constraints *ConstraintsService,
	bible *BibleService,
	planner *PlannerService,
	writer *WriterService,
	review *ReviewService,
	evaluator *EvaluatorService,
	fs *storage.FileStorage,
) *PipelineService {
	return &PipelineService{
		constraints: constraints,
		bible:       bible,
		planner:     planner,
		writer:      writer,
		review:      review,
		evaluator:   evaluator,
		fs:          fs,
		logger:      utils.GetLoggerWithName("pipeline"),
	}
}

// Run 执行完整管线。各阶段产物依次落盘，失败即返回。
// 审稿阶段的逐集失败不会中断管线，体现在汇总与评估里。
func (s *PipelineService) Run(ctx context.Context, opts PipelineOptions) (*PipelineResult, error) {
	stage := func(name string, progress int, message string) {
		if opts.Tracker != nil {
			opts.Tracker.UpdateStage(name, progress, message)
		}
		s.logger.Infof("管线阶段 %s：%s", name, message)
	}

	// ── 约束融合 ──
	stage(StageConstraints, 2, "融合样例画像与改编规则")
	fused, err := s.constraints.SaveConstraints(ConstraintsOptions{
		SampleScripts: opts.SampleScripts,
		Rules:         opts.Rules,
		Genre:         opts.Genre,
	}, opts.OutputDir, "constraints.fused.json", "style_guide.md")
	if err != nil {
		return nil, err
	}

	// ── Story Bible ──
	stage(StageBible, 10, "提取 Story Bible")
	bible, err := s.bible.GenerateBible(ctx, BibleOptions{
		NovelPath:    opts.NovelPath,
		ChapterStart: opts.ChapterStart,
		ChapterEnd:   opts.ChapterEnd,
		Rules:        opts.Rules,
		Constraints:  fused,
	})
	if err != nil {
		return nil, err
	}
	if err := s.fs.SaveJSONFile(opts.OutputDir, "bible.json", bible); err != nil {
		return nil, err
	}

	// ── 节拍表 ──
	stage(StagePlan, 25, "规划分集节拍表")
	plan, err := s.planner.GeneratePlan(ctx, PlanOptions{
		Bible:       bible,
		Rules:       opts.Rules,
		Constraints: fused,
		Spec:        opts.Spec,
	})
	if err != nil {
		return nil, err
	}
	if err := s.fs.SaveJSONFile(opts.OutputDir, "plan.json", plan); err != nil {
		return nil, err
	}

	// ── 逐集撰写 ──
	stage(StageWrite, 35, "逐集生成剧本")
	episodes, err := s.writer.GenerateAllEpisodes(ctx, WriteOptions{
		Plan:        plan,
		Rules:       opts.Rules,
		Constraints: fused,
		OutputDir:   opts.OutputDir,
		OnEpisodeDone: func(done, total int) {
			if opts.Tracker != nil && total > 0 {
				opts.Tracker.UpdateProgress(35+done*30/total, "")
			}
		},
	})
	if err != nil {
		return nil, err
	}

	// ── 审稿循环 ──
	stage(StageReview, 68, "审稿与定向返修")
	episodesDir := filepath.Join(opts.OutputDir, "episodes")
	summary, err := s.review.ReviewAllEpisodes(ctx, episodesDir, ReviewOptions{
		Rules:         opts.Rules,
		Constraints:   fused,
		StyleTarget:   fused.StyleTarget,
		Plan:          plan,
		OutputDir:     opts.OutputDir,
		PassThreshold: opts.PassThreshold,
		MaxRounds:     opts.MaxRounds,
		Workers:       opts.Workers,
		OnEpisodeDone: func(done, total int, result BatchResult) {
			if opts.Tracker != nil && total > 0 {
				opts.Tracker.UpdateProgress(68+done*25/total, "")
			}
		},
	})
	if err != nil {
		return nil, err
	}

	// 审稿可能回写了更高分版本，重建合并剧本后再评估
	stage(StageEval, 94, "重建合并剧本并做样例对比评估")
	fullScript, err := s.rebuildFullScript(episodesDir, summary)
	if err != nil {
		return nil, err
	}
	if err := s.fs.SaveTextFile(opts.OutputDir, "script_full.txt", []byte(fullScript)); err != nil {
		return nil, err
	}
	report := s.evaluator.EvaluateScript(fullScript, fused.StyleTarget)
	if err := s.fs.SaveTextFile(opts.OutputDir, "evaluation_report.md", []byte(FormatReportMarkdown(report))); err != nil {
		return nil, err
	}

	s.logger.Infof("管线完成：%d 集，审稿通过 %d/%d", len(episodes), summary.Passed, summary.Total)
	return &PipelineResult{
		Bible:      bible,
		Plan:       plan,
		Episodes:   len(episodes),
		Review:     summary,
		Evaluation: report,
		Constraint: fused,
	}, nil
}

// rebuildFullScript 按集号顺序重新拼接审稿后的分集剧本
func (s *PipelineService) rebuildFullScript(episodesDir string, summary *BatchSummary) (string, error) {
	parts := make([]string, 0, len(summary.Results))
	for _, r := range summary.Results {
		if r.Error != "" {
			continue
		}
		content, err := s.fs.LoadTextFile(episodesDir, fmt.Sprintf("ep%d.txt", r.Episode))
		if err != nil {
			return "", err
		}
		parts = append(parts, string(content))
	}
	return strings.Join(parts, "\n\n"), nil
}
