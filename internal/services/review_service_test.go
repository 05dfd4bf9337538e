// internal/services/review_service_test.go
package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jubenlab/jubengen/internal/errors"
	"github.com/jubenlab/jubengen/internal/models"
	"github.com/jubenlab/jubengen/internal/storage"
)

// fakeJudge 按脚本内容或调用次序返回预设评分
type fakeJudge struct {
	mu       sync.Mutex
	fn       func(call int, script string, jc JudgeContext) (*models.EpisodeReview, error)
	scripts  []string
	returned []*models.EpisodeReview
}

func (f *fakeJudge) JudgeEpisode(_ context.Context, script string, jc JudgeContext) (*models.EpisodeReview, error) {
	f.mu.Lock()
	call := len(f.scripts)
	f.scripts = append(f.scripts, script)
	f.mu.Unlock()

	review, err := f.fn(call, script, jc)

	f.mu.Lock()
	f.returned = append(f.returned, review)
	f.mu.Unlock()
	return review, err
}

// scriptedJudge 依次返回给定评分，调用超出时重复最后一个
func scriptedJudge(reviews ...*models.EpisodeReview) *fakeJudge {
	return &fakeJudge{fn: func(call int, _ string, _ JudgeContext) (*models.EpisodeReview, error) {
		idx := call
		if idx >= len(reviews) {
			idx = len(reviews) - 1
		}
		copied := *reviews[idx]
		return &copied, nil
	}}
}

func reviewScored(overall float64, pass bool) *models.EpisodeReview {
	return &models.EpisodeReview{
		Scores: models.DimensionScores{Overall: overall},
		Pass:   pass,
	}
}

// fakeReviser 记录收到的修改清单并返回预设文本
type fakeReviser struct {
	mu       sync.Mutex
	fn       func(call int, script string, review *models.EpisodeReview) (string, error)
	received []*models.EpisodeReview
	calls    int
}

func (f *fakeReviser) Revise(_ context.Context, script string, review *models.EpisodeReview, _ *models.FusedConstraints) (string, error) {
	f.mu.Lock()
	call := f.calls
	f.calls++
	f.received = append(f.received, review)
	f.mu.Unlock()
	return f.fn(call, script, review)
}

// staticReviser 每次返回同一文本
func staticReviser(text string) *fakeReviser {
	return &fakeReviser{fn: func(int, string, *models.EpisodeReview) (string, error) {
		return text, nil
	}}
}

func newTestReviewService(t *testing.T, judge EpisodeJudge, reviser EpisodeReviser) (*ReviewService, *storage.FileStorage) {
	t.Helper()
	fs, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	return NewReviewService(judge, reviser, fs), fs
}

// revisedEpisode 与 canonicalEpisode 内容不同但同样通过校验的版本
func revisedEpisode() string {
	return strings.Replace(canonicalEpisode(),
		"苏晚：你疯了吗？站在这里做什么！",
		"苏晚：别过去！那里危险！", 1)
}

func TestReviewEpisodePassesFirstRound(t *testing.T) {
	judge := scriptedJudge(reviewScored(82.0, true))
	reviser := staticReviser("不应被调用")
	svc, fs := newTestReviewService(t, judge, reviser)

	script := canonicalEpisode()
	outcome, err := svc.ReviewEpisode(context.Background(), script, 1, ReviewOptions{
		OutputDir: "out",
		MaxRounds: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.Episode)
	assert.Equal(t, 0, outcome.Rounds)
	assert.Equal(t, script, outcome.Script)
	assert.True(t, outcome.Review.Pass)
	assert.Equal(t, 1, outcome.Review.Episode)
	assert.Equal(t, 82.0, outcome.Review.Scores.Overall)

	assert.Len(t, judge.scripts, 1)
	assert.Equal(t, 0, reviser.calls)

	// 轮次产物：当轮剧本 + 评分 JSON
	reviewsDir := filepath.Join("out", "reviews")
	saved, err := fs.LoadTextFile(reviewsDir, "ep1_round0.txt")
	require.NoError(t, err)
	assert.Equal(t, script, string(saved))
	assert.True(t, fs.FileExists(reviewsDir, "ep1_round0_review.json"))

	// 轮次日志
	records, err := storage.NewRoundLog(fs, reviewsDir, "ep1_log.json").Records()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 0, records[0].Round)
	assert.Equal(t, models.ActionPassed, records[0].Action)
	assert.True(t, records[0].Validation.Passed)
	assert.Equal(t, 0, records[0].Validation.ErrorCount)
	require.NotNil(t, records[0].Review)
	assert.Equal(t, 82.0, records[0].Review.Overall)
	assert.True(t, records[0].Review.Passed)
}

func TestReviewEpisodeRevisesThenPasses(t *testing.T) {
	judge := scriptedJudge(reviewScored(70.0, false), reviewScored(80.0, true))
	revised := revisedEpisode()
	reviser := staticReviser(revised)
	svc, fs := newTestReviewService(t, judge, reviser)

	original := canonicalEpisode()
	outcome, err := svc.ReviewEpisode(context.Background(), original, 1, ReviewOptions{
		OutputDir: "out",
		MaxRounds: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.Rounds)
	assert.Equal(t, revised, outcome.Script)
	assert.Equal(t, 80.0, outcome.Review.Scores.Overall)

	// 审稿看到的始终是原始文本（而非合并了校验问题的版本）
	require.Len(t, judge.scripts, 2)
	assert.Equal(t, original, judge.scripts[0])
	assert.Equal(t, revised, judge.scripts[1])

	// 校验通过时无需合并，返修收到的是审稿原对象
	require.Len(t, reviser.received, 1)
	assert.Same(t, judge.returned[0], reviser.received[0])

	reviewsDir := filepath.Join("out", "reviews")
	records, err := storage.NewRoundLog(fs, reviewsDir, "ep1_log.json").Records()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, models.ActionTriggerRevision, records[0].Action)
	assert.Equal(t, models.ActionPassed, records[1].Action)

	saved, err := fs.LoadTextFile(reviewsDir, "ep1_round1.txt")
	require.NoError(t, err)
	assert.Equal(t, revised, string(saved))
}

func TestReviewEpisodeKeepsBestVersionAtMaxRounds(t *testing.T) {
	// 分数逐轮走低：60 → 55 → 50，始终未通过
	judge := scriptedJudge(
		reviewScored(60.0, false),
		reviewScored(55.0, false),
		reviewScored(50.0, false),
	)
	reviser := &fakeReviser{fn: func(call int, _ string, _ *models.EpisodeReview) (string, error) {
		return canonicalEpisode() + "\n\n【切】", nil
	}}
	svc, fs := newTestReviewService(t, judge, reviser)

	original := canonicalEpisode()
	outcome, err := svc.ReviewEpisode(context.Background(), original, 1, ReviewOptions{
		OutputDir: "out",
		MaxRounds: 2,
	})
	require.NoError(t, err)

	// 保留最高分（第 0 轮）的版本
	assert.Equal(t, 2, outcome.Rounds)
	assert.Equal(t, original, outcome.Script)
	assert.Equal(t, 60.0, outcome.Review.Scores.Overall)
	assert.False(t, outcome.Review.Pass)

	assert.Len(t, judge.scripts, 3)
	assert.Equal(t, 2, reviser.calls)

	records, err := storage.NewRoundLog(fs, filepath.Join("out", "reviews"), "ep1_log.json").Records()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, models.ActionTriggerRevision, records[0].Action)
	assert.Equal(t, models.ActionTriggerRevision, records[1].Action)
	assert.Equal(t, models.ActionMaxRounds, records[2].Action)
}

func TestReviewEpisodeLaterHigherScoreWins(t *testing.T) {
	judge := scriptedJudge(reviewScored(60.0, false), reviewScored(72.0, false))
	revised := revisedEpisode()
	reviser := staticReviser(revised)
	svc, _ := newTestReviewService(t, judge, reviser)

	outcome, err := svc.ReviewEpisode(context.Background(), canonicalEpisode(), 1, ReviewOptions{
		OutputDir: "out",
		MaxRounds: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, revised, outcome.Script)
	assert.Equal(t, 72.0, outcome.Review.Scores.Overall)
	assert.Equal(t, 1, outcome.Rounds)
}

func TestReviewEpisodeTieKeepsEarlierVersion(t *testing.T) {
	judge := scriptedJudge(reviewScored(60.0, false), reviewScored(60.0, false))
	reviser := staticReviser(revisedEpisode())
	svc, _ := newTestReviewService(t, judge, reviser)

	original := canonicalEpisode()
	outcome, err := svc.ReviewEpisode(context.Background(), original, 1, ReviewOptions{
		OutputDir: "out",
		MaxRounds: 1,
	})
	require.NoError(t, err)

	// 同分不替换，保留先出现的版本
	assert.Equal(t, original, outcome.Script)
}

func TestReviewEpisodeAllZeroScoresKeepsOriginal(t *testing.T) {
	judge := scriptedJudge(reviewScored(0.0, false))
	reviser := staticReviser(revisedEpisode())
	svc, _ := newTestReviewService(t, judge, reviser)

	original := canonicalEpisode()
	outcome, err := svc.ReviewEpisode(context.Background(), original, 1, ReviewOptions{
		OutputDir: "out",
		MaxRounds: 1,
	})
	require.NoError(t, err)

	// 从未出现正分，保留输入剧本与空评分
	assert.Equal(t, original, outcome.Script)
	assert.Equal(t, models.EpisodeReview{}, outcome.Review)
	assert.Equal(t, 1, outcome.Rounds)
}

func TestReviewEpisodeZeroMaxRoundsJudgesOnce(t *testing.T) {
	judge := scriptedJudge(reviewScored(70.0, false))
	reviser := staticReviser(revisedEpisode())
	svc, fs := newTestReviewService(t, judge, reviser)

	outcome, err := svc.ReviewEpisode(context.Background(), canonicalEpisode(), 1, ReviewOptions{
		OutputDir: "out",
		MaxRounds: 0,
	})
	require.NoError(t, err)

	assert.Equal(t, 0, outcome.Rounds)
	assert.Len(t, judge.scripts, 1)
	assert.Equal(t, 0, reviser.calls)

	records, err := storage.NewRoundLog(fs, filepath.Join("out", "reviews"), "ep1_log.json").Records()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.ActionMaxRounds, records[0].Action)
}

func TestReviewEpisodeValidationFailureTriggersRevision(t *testing.T) {
	// 半角冒号：格式校验必然报 error，即使审稿通过也要返修
	badScript := strings.Replace(canonicalEpisode(),
		"苏晚：你疯了吗？站在这里做什么！",
		"苏晚:你疯了吗？站在这里做什么！", 1)

	validation := ValidateEpisode(badScript, nil)
	require.False(t, validation.Passed)
	require.Equal(t, 1, validation.ErrorCount())

	var errIssue models.ValidationIssue
	for _, iss := range validation.Issues {
		if iss.Level == models.IssueLevelError {
			errIssue = iss
			break
		}
	}
	require.NotNil(t, errIssue.LineNum)

	judge := scriptedJudge(reviewScored(85.0, true), reviewScored(85.0, true))
	reviser := staticReviser(canonicalEpisode())
	svc, _ := newTestReviewService(t, judge, reviser)

	outcome, err := svc.ReviewEpisode(context.Background(), badScript, 1, ReviewOptions{
		OutputDir: "out",
		MaxRounds: 1,
	})
	require.NoError(t, err)

	// 第 1 轮修复格式后才算通过
	assert.Equal(t, 1, outcome.Rounds)
	assert.Equal(t, canonicalEpisode(), outcome.Script)

	// 返修收到的是合并了校验问题的副本，审稿原对象保持不变
	require.Len(t, reviser.received, 1)
	merged := reviser.received[0]
	assert.NotSame(t, judge.returned[0], merged)
	assert.Empty(t, judge.returned[0].FatalIssues)
	assert.Empty(t, judge.returned[0].FixList)

	wantProblem := "[格式校验] " + errIssue.Description
	require.Len(t, merged.FatalIssues, 1)
	assert.Equal(t, wantProblem, merged.FatalIssues[0])
	require.Len(t, merged.FixList, 1)
	assert.Equal(t, models.FixItem{
		Scene:    fmt.Sprintf("L%d", *errIssue.LineNum),
		LineHint: "",
		Problem:  wantProblem,
		Fix:      "请修复：" + errIssue.Description,
	}, merged.FixList[0])
}

func TestInjectValidationIssues(t *testing.T) {
	review := &models.EpisodeReview{
		FatalIssues: []string{"结尾钩子太弱"},
		FixList:     []models.FixItem{{Scene: "1-2", Problem: "节奏拖沓", Fix: "压缩对话"}},
	}

	t.Run("校验通过时原样返回", func(t *testing.T) {
		validation := &models.ValidationResult{Passed: true}
		assert.Same(t, review, injectValidationIssues(review, validation))
	})

	t.Run("仅注入error级问题", func(t *testing.T) {
		validation := &models.ValidationResult{
			Passed: false,
			Issues: []models.ValidationIssue{
				{Type: models.IssueTypeFormat, Level: models.IssueLevelError, LineNum: intPtr(5), Description: "缺少人物行"},
				{Type: models.IssueTypeRatio, Level: models.IssueLevelWarning, LineNum: nil, Description: "台词占比偏低"},
				{Type: models.IssueTypeLineCount, Level: models.IssueLevelError, LineNum: nil, Description: "总行数=10，超出允许范围"},
			},
		}

		merged := injectValidationIssues(review, validation)
		require.NotSame(t, review, merged)

		// warning 不注入，两个 error 各生成一条 fatal + 一条 fix
		require.Len(t, merged.FatalIssues, 3)
		assert.Equal(t, "[格式校验] 缺少人物行", merged.FatalIssues[1])
		assert.Equal(t, "[格式校验] 总行数=10，超出允许范围", merged.FatalIssues[2])

		require.Len(t, merged.FixList, 3)
		assert.Equal(t, "L5", merged.FixList[1].Scene)
		assert.Equal(t, "整集", merged.FixList[2].Scene)
		assert.Equal(t, "请修复：缺少人物行", merged.FixList[1].Fix)

		// 原对象不被修改
		assert.Len(t, review.FatalIssues, 1)
		assert.Len(t, review.FixList, 1)
	})
}

func TestReviewAllEpisodes(t *testing.T) {
	judge := &fakeJudge{fn: func(_ int, script string, _ JudgeContext) (*models.EpisodeReview, error) {
		switch {
		case strings.Contains(script, "回来！那里不能站人"):
			// 第 10 集的返修稿
			return reviewScored(85.0, true), nil
		case strings.Contains(script, "第10集"):
			return reviewScored(70.0, false), nil
		case strings.Contains(script, "第2集"):
			return nil, apperrors.NewProcessingError("API 调用失败，已重试 3 次", errors.New("context deadline exceeded"))
		default:
			return reviewScored(85.0, true), nil
		}
	}}
	reviser := &fakeReviser{fn: func(_ int, script string, _ *models.EpisodeReview) (string, error) {
		return strings.Replace(script,
			"苏晚：你疯了吗？站在这里做什么！",
			"苏晚：回来！那里不能站人！", 1), nil
	}}
	svc, fs := newTestReviewService(t, judge, reviser)

	ep1 := canonicalEpisode()
	ep2 := strings.Replace(canonicalEpisode(), "第1集", "第2集", 1)
	ep10 := strings.Replace(canonicalEpisode(), "第1集", "第10集", 1)
	require.NoError(t, fs.SaveTextFile("episodes", "ep1.txt", []byte(ep1)))
	require.NoError(t, fs.SaveTextFile("episodes", "ep2.txt", []byte(ep2)))
	require.NoError(t, fs.SaveTextFile("episodes", "ep10.txt", []byte(ep10)))
	require.NoError(t, fs.SaveTextFile("episodes", "epilogue.txt", []byte("不是剧本文件")))
	require.NoError(t, fs.SaveTextFile("episodes", "notes.md", []byte("备注")))

	var (
		mu       sync.Mutex
		progress []int
	)
	summary, err := svc.ReviewAllEpisodes(context.Background(), "episodes", ReviewOptions{
		OutputDir: "out",
		MaxRounds: 1,
		Workers:   2,
		OnEpisodeDone: func(done, total int, _ BatchResult) {
			mu.Lock()
			progress = append(progress, done)
			mu.Unlock()
			assert.Equal(t, 3, total)
		},
	})
	require.NoError(t, err)

	// 结果按集号排序：1, 2, 10
	require.Len(t, summary.Results, 3)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Passed)
	assert.Equal(t, 1, summary.Errored)
	assert.False(t, summary.AllPassed())

	r1, r2, r10 := summary.Results[0], summary.Results[1], summary.Results[2]

	assert.Equal(t, 1, r1.Episode)
	assert.True(t, r1.Passed)
	assert.Equal(t, 0, r1.Rounds)
	assert.Empty(t, r1.Error)

	// 第 2 集审稿出错：错误被记录，不影响其他集
	assert.Equal(t, 2, r2.Episode)
	assert.False(t, r2.Passed)
	assert.Contains(t, r2.Error, "API 调用失败")

	assert.Equal(t, 10, r10.Episode)
	assert.True(t, r10.Passed)
	assert.Equal(t, 1, r10.Rounds)

	// 最佳版本回写覆盖原剧本
	written, err := fs.LoadTextFile("episodes", "ep10.txt")
	require.NoError(t, err)
	assert.Contains(t, string(written), "回来！那里不能站人")

	// 出错的集保持原文
	kept, err := fs.LoadTextFile("episodes", "ep2.txt")
	require.NoError(t, err)
	assert.Equal(t, ep2, string(kept))

	// 进度回调按完成数递增
	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []int{1, 2, 3}, progress)
}

func TestReviewAllEpisodesDirMissing(t *testing.T) {
	svc, _ := newTestReviewService(t, scriptedJudge(reviewScored(85.0, true)), staticReviser(""))

	_, err := svc.ReviewAllEpisodes(context.Background(), "no_such_dir", ReviewOptions{OutputDir: "out"})
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFoundError(err))
	assert.Contains(t, err.Error(), "剧本目录不存在")
}

func TestReviewAllEpisodesNoEpisodeFiles(t *testing.T) {
	svc, fs := newTestReviewService(t, scriptedJudge(reviewScored(85.0, true)), staticReviser(""))
	require.NoError(t, fs.SaveTextFile("episodes", "readme.md", []byte("说明")))

	_, err := svc.ReviewAllEpisodes(context.Background(), "episodes", ReviewOptions{OutputDir: "out"})
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFoundError(err))
	assert.Contains(t, err.Error(), "未找到 ep*.txt")
}
