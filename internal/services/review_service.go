// internal/services/review_service.go
package services

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/jubenlab/jubengen/internal/errors"
	"github.com/jubenlab/jubengen/internal/models"
	"github.com/jubenlab/jubengen/internal/storage"
	"github.com/jubenlab/jubengen/internal/utils"
)

// DefaultMaxRounds 默认最大返修轮数
const DefaultMaxRounds = 3

// EpisodeJudge 单集审稿评分
type EpisodeJudge interface {
	JudgeEpisode(ctx context.Context, episodeScript string, jc JudgeContext) (*models.EpisodeReview, error)
}

// EpisodeReviser 单集定向返修
type EpisodeReviser interface {
	Revise(ctx context.Context, episodeScript string, review *models.EpisodeReview, constraints *models.FusedConstraints) (string, error)
}

// ReviewOptions 审稿循环参数。所有材料显式传入，不做隐式全局查找。
type ReviewOptions struct {
	Rules       models.AdaptRules
	Constraints *models.FusedConstraints // 可为 nil
	StyleTarget models.StyleTarget       // 为 nil 时使用内置默认区间
	Plan        []models.EpisodePlan     // 可为空，提供时逐集匹配加入评审上下文

	// OutputDir 相对存储根目录；轮次产物写入 {OutputDir}/reviews/
	OutputDir string

	PassThreshold float64 // <= 0 时使用 DefaultPassThreshold
	MaxRounds     int     // < 0 时使用 DefaultMaxRounds；0 表示只审不修
	Workers       int     // 批量并发集数，<= 1 时串行

	// OnEpisodeDone 批量进度回调（已完成数、总数、该集结果），可为 nil
	OnEpisodeDone func(done, total int, result BatchResult)
}

// ReviewService 多轮审稿循环：格式校验 + LLM 审稿 + 定向返修。
// 每集最多 MaxRounds+1 次审稿、MaxRounds 次返修，始终保留最高分版本。
type ReviewService struct {
	judge   EpisodeJudge
	reviser EpisodeReviser
	fs      *storage.FileStorage
	logger  *utils.Logger
	metrics *utils.PipelineMetrics
}

// NewReviewService 创建审稿循环服务
func NewReviewService(judge EpisodeJudge, reviser EpisodeReviser, fs *storage.FileStorage) *ReviewService {
	return &ReviewService{
		judge:   judge,
		reviser: reviser,
		fs:      fs,
		logger:  utils.GetLoggerWithName("review"),
		metrics: utils.NewPipelineMetrics(),
	}
}

// ReviewEpisode 对单集剧本执行完整审稿循环。
//
// 流程：校验 → 审稿 →（两者都通过则结束）→ 返修 → 重复，
// 达到最大轮数仍未通过时保留最高分版本并告警。
// 审稿始终基于未合并校验问题的当前文本；校验问题只在返修时并入清单副本。
func (s *ReviewService) ReviewEpisode(ctx context.Context, episodeScript string, epNum int, opts ReviewOptions) (*models.ReviewOutcome, error) {
	threshold := opts.PassThreshold
	if threshold <= 0 {
		threshold = DefaultPassThreshold
	}
	maxRounds := opts.MaxRounds
	if maxRounds < 0 {
		maxRounds = DefaultMaxRounds
	}
	target := opts.StyleTarget
	if target == nil {
		target = models.DefaultStyleTarget()
	}

	reviewsDir := filepath.Join(opts.OutputDir, "reviews")
	roundLog := storage.NewRoundLog(s.fs, reviewsDir, fmt.Sprintf("ep%d_log.json", epNum))

	currentScript := episodeScript
	bestScript := episodeScript
	bestReview := models.EpisodeReview{}
	bestScore := 0.0

	for roundNum := 0; roundNum <= maxRounds; roundNum++ {
		// ── 步骤 1：格式校验 ──
		validation := ValidateEpisode(currentScript, target)
		s.logger.Infof("第 %d 集第 %d 轮校验：%s（error=%d, warning=%d）",
			epNum, roundNum, passFailLabel(validation.Passed),
			validation.ErrorCount(), validation.WarningCount())

		// ── 步骤 2：LLM 审稿 ──
		review, err := s.judge.JudgeEpisode(ctx, currentScript, JudgeContext{
			Rules:       opts.Rules,
			Constraints: opts.Constraints,
			StyleTarget: opts.StyleTarget,
			EpisodePlan: models.FindEpisodePlan(opts.Plan, epNum),
			Threshold:   threshold,
		})
		if err != nil {
			return nil, err
		}
		review.Episode = epNum

		overall := review.Scores.Overall
		s.logger.Infof("第 %d 集第 %d 轮审稿：overall=%.1f（%s）",
			epNum, roundNum, overall, passLabel(review.Pass))

		// 保存本轮剧本与评分
		if err := s.saveRoundArtifacts(reviewsDir, epNum, roundNum, currentScript, review); err != nil {
			return nil, err
		}

		// 更新最佳版本：仅严格高于当前最高分时替换，平分保留先出现的版本
		if overall > bestScore {
			bestScript = currentScript
			bestReview = *review
			bestScore = overall
		}

		// ── 步骤 3：判定 ──
		bothPassed := validation.Passed && review.Pass

		var action models.RoundAction
		switch {
		case bothPassed:
			action = models.ActionPassed
		case roundNum >= maxRounds:
			action = models.ActionMaxRounds
		default:
			action = models.ActionTriggerRevision
		}

		if err := roundLog.Append(buildRoundRecord(roundNum, validation, review, action)); err != nil {
			return nil, err
		}
		s.metrics.RecordReviewRound(epNum, roundNum, string(action), overall)

		if bothPassed {
			s.logger.Infof("第 %d 集在第 %d 轮通过（校验+审稿均通过，overall=%.1f）",
				epNum, roundNum, overall)
			return &models.ReviewOutcome{
				Episode: epNum,
				Script:  bestScript,
				Review:  bestReview,
				Rounds:  roundNum,
			}, nil
		}

		if roundNum >= maxRounds {
			break
		}

		// ── 步骤 4：返修 ──
		merged := injectValidationIssues(review, validation)

		s.logger.Infof("第 %d 集第 %d 轮返修开始（校验 %s，审稿 %s）",
			epNum, roundNum+1, passFailLabel(validation.Passed), passFailLabel(review.Pass))

		currentScript, err = s.reviser.Revise(ctx, currentScript, merged, opts.Constraints)
		if err != nil {
			return nil, err
		}
	}

	// 达到最大轮数仍未通过
	s.logger.Warnf("第 %d 集经过 %d 轮审稿仍未完全通过（最高分=%.1f，阈值=%.1f），保留最高分版本",
		epNum, maxRounds, bestScore, threshold)
	return &models.ReviewOutcome{
		Episode: epNum,
		Script:  bestScript,
		Review:  bestReview,
		Rounds:  maxRounds,
	}, nil
}

// saveRoundArtifacts 保存某轮的剧本与评分到 {reviewsDir}/ep{N}_round{M}.txt / _review.json
func (s *ReviewService) saveRoundArtifacts(reviewsDir string, epNum, roundNum int, script string, review *models.EpisodeReview) error {
	scriptName := fmt.Sprintf("ep%d_round%d.txt", epNum, roundNum)
	if err := s.fs.SaveTextFile(reviewsDir, scriptName, []byte(script)); err != nil {
		return err
	}
	reviewName := fmt.Sprintf("ep%d_round%d_review.json", epNum, roundNum)
	return s.fs.SaveJSONFile(reviewsDir, reviewName, review)
}

// buildRoundRecord 构建单轮日志条目
func buildRoundRecord(roundNum int, validation *models.ValidationResult, review *models.EpisodeReview, action models.RoundAction) models.RoundRecord {
	record := models.RoundRecord{
		Round: roundNum,
		Validation: models.RoundValidation{
			Passed:       validation.Passed,
			ErrorCount:   validation.ErrorCount(),
			WarningCount: validation.WarningCount(),
			Stats:        validation.Stats,
		},
		Action: action,
	}
	if review != nil {
		record.Review = &models.RoundReview{
			Overall:          review.Scores.Overall,
			Passed:           review.Pass,
			FatalIssuesCount: len(review.FatalIssues),
			FixCount:         len(review.FixList),
		}
	}
	return record
}

// injectValidationIssues 将校验发现的 error 级问题注入评分副本的
// fatal_issues 与 fix_list，使返修能同时修复格式问题和内容问题。
// 原评分对象保持不变。
func injectValidationIssues(review *models.EpisodeReview, validation *models.ValidationResult) *models.EpisodeReview {
	if validation.Passed {
		return review
	}

	merged := *review
	merged.FatalIssues = append([]string(nil), review.FatalIssues...)
	merged.FixList = append([]models.FixItem(nil), review.FixList...)

	for _, iss := range validation.Issues {
		if iss.Level != models.IssueLevelError {
			continue
		}
		scene := "整集"
		if iss.LineNum != nil {
			scene = fmt.Sprintf("L%d", *iss.LineNum)
		}
		merged.FatalIssues = append(merged.FatalIssues, fmt.Sprintf("[格式校验] %s", iss.Description))
		merged.FixList = append(merged.FixList, models.FixItem{
			Scene:    scene,
			LineHint: "",
			Problem:  fmt.Sprintf("[格式校验] %s", iss.Description),
			Fix:      fmt.Sprintf("请修复：%s", iss.Description),
		})
	}
	return &merged
}

// BatchResult 批量审稿中单集的最终结果
type BatchResult struct {
	Episode int     `json:"episode"`
	Overall float64 `json:"overall"`
	Passed  bool    `json:"passed"`
	Rounds  int     `json:"rounds"`
	Error   string  `json:"error,omitempty"`
}

// BatchSummary 批量审稿汇总
type BatchSummary struct {
	Results []BatchResult `json:"results"`
	Total   int           `json:"total"`
	Passed  int           `json:"passed"`
	Errored int           `json:"errored"`
}

// AllPassed 是否全部集通过（出错的集算未通过）
func (b *BatchSummary) AllPassed() bool {
	return b.Total > 0 && b.Passed == b.Total
}

var reEpFileNum = regexp.MustCompile(`ep(\d+)`)

// ReviewAllEpisodes 对目录中所有 ep*.txt 剧本执行审稿循环。
//
// 各集相互独立：单集失败（含重试耗尽）只记录在该集结果里，
// 不中断其他集。最佳版本会回写覆盖原剧本文件。
// episodesDir 相对存储根目录。
func (s *ReviewService) ReviewAllEpisodes(ctx context.Context, episodesDir string, opts ReviewOptions) (*BatchSummary, error) {
	if !s.fs.DirExists(episodesDir) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("剧本目录不存在：%s", episodesDir), nil)
	}

	names, err := s.fs.ListFiles(episodesDir)
	if err != nil {
		return nil, apperrors.NewProcessingError(fmt.Sprintf("读取剧本目录失败：%s", episodesDir), err)
	}

	type epFile struct {
		num  int
		name string
	}
	var files []epFile
	for _, name := range names {
		if !strings.HasPrefix(name, "ep") || !strings.HasSuffix(name, ".txt") {
			continue
		}
		m := reEpFileNum.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		files = append(files, epFile{num: num, name: name})
	}
	if len(files) == 0 {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("剧本目录中未找到 ep*.txt 文件：%s", episodesDir), nil)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].num < files[j].num })

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	batchStart := time.Now()

	results := make([]BatchResult, len(files))
	var (
		mu   sync.Mutex
		done int
	)

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			res := s.reviewEpisodeFile(ctx, episodesDir, f.name, f.num, opts)

			mu.Lock()
			results[i] = res
			done++
			completed := done
			mu.Unlock()

			if opts.OnEpisodeDone != nil {
				opts.OnEpisodeDone(completed, len(files), res)
			}
			return nil
		})
	}
	// 单集错误已记录在各自结果中，这里不会返回错误
	_ = g.Wait()

	summary := &BatchSummary{Results: results, Total: len(results)}
	for _, r := range results {
		if r.Error != "" {
			summary.Errored++
			continue
		}
		if r.Passed {
			summary.Passed++
		}
	}

	s.metrics.RecordBatchResult(summary.Passed, summary.Total, time.Since(batchStart))
	s.logger.Infof("全部审稿完成：共 %d 集，%d 通过 / %d 未通过",
		summary.Total, summary.Passed, summary.Total-summary.Passed)
	return summary, nil
}

// reviewEpisodeFile 读取、审稿并回写单集剧本文件
func (s *ReviewService) reviewEpisodeFile(ctx context.Context, episodesDir, name string, epNum int, opts ReviewOptions) BatchResult {
	content, err := s.fs.LoadTextFile(episodesDir, name)
	if err != nil {
		s.logger.Errorf("第 %d 集剧本读取失败：%v", epNum, err)
		return BatchResult{Episode: epNum, Error: err.Error()}
	}

	outcome, err := s.ReviewEpisode(ctx, string(content), epNum, opts)
	if err != nil {
		s.logger.Errorf("第 %d 集审稿失败：%v", epNum, err)
		return BatchResult{Episode: epNum, Error: err.Error()}
	}

	// 覆盖原剧本为最佳版本
	if err := s.fs.SaveTextFile(episodesDir, name, []byte(outcome.Script)); err != nil {
		s.logger.Errorf("第 %d 集回写剧本失败：%v", epNum, err)
		return BatchResult{Episode: epNum, Error: err.Error()}
	}

	overall := outcome.Review.Scores.Overall
	s.logger.Infof("第 %d 集审稿完成：%d 轮，最终 overall=%.1f（%s）",
		epNum, outcome.Rounds, overall, passLabel(outcome.Review.Pass))
	return BatchResult{
		Episode: epNum,
		Overall: overall,
		Passed:  outcome.Review.Pass,
		Rounds:  outcome.Rounds,
	}
}

func passFailLabel(passed bool) string {
	if passed {
		return "PASS"
	}
	return "FAIL"
}

func passLabel(passed bool) string {
	if passed {
		return "通过"
	}
	return "未通过"
}
