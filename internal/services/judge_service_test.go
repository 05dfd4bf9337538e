// internal/services/judge_service_test.go
package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jubenlab/jubengen/internal/config"
	apperrors "github.com/jubenlab/jubengen/internal/errors"
	"github.com/jubenlab/jubengen/internal/llm"
	"github.com/jubenlab/jubengen/internal/models"
)

// fakeCompletion 固定返回预设文本的补全客户端
type fakeCompletion struct {
	text    string
	err     error
	prompts []string
}

func (f *fakeCompletion) Complete(_ context.Context, _ config.RoleConfig, _, prompt string, _ int) (*llm.CompletionResponse, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Text: f.text}, nil
}

const judgeJSON = `{
  "episode": 1,
  "scores": {
    "open_hook": 4, "core_conflict": 4, "turn": 4, "highlight": 4,
    "rhythm": 4, "character": 4, "shootable": 4, "end_hook": 4, "safety": 4
  },
  "fix_list": [{"scene": "1-1", "problem": "开场偏慢", "fix": "压缩前三行"}],
  "hook_type": "悬念钩子"
}`

func newJudgeForTest(text string) (*JudgeService, *fakeCompletion) {
	client := &fakeCompletion{text: text}
	return NewJudgeService(client, config.RoleConfig{Model: "m"}), client
}

func TestJudgeEpisodeComputesOverall(t *testing.T) {
	svc, _ := newJudgeForTest(judgeJSON)

	review, err := svc.JudgeEpisode(context.Background(), "第1集", JudgeContext{})

	require.NoError(t, err)
	// 九维全 4 分：均值 4 × 20 = 80
	assert.Equal(t, 80.0, review.Scores.Overall)
	assert.True(t, review.Pass)
	require.Len(t, review.FixList, 1)
	assert.Equal(t, "1-1", review.FixList[0].Scene)
}

func TestJudgeEpisodeThresholdInclusive(t *testing.T) {
	svc, _ := newJudgeForTest(judgeJSON)

	review, err := svc.JudgeEpisode(context.Background(), "第1集", JudgeContext{Threshold: 80.0})
	require.NoError(t, err)
	assert.True(t, review.Pass, "overall 恰好等于阈值应通过")

	review, err = svc.JudgeEpisode(context.Background(), "第1集", JudgeContext{Threshold: 80.1})
	require.NoError(t, err)
	assert.False(t, review.Pass)
}

func TestJudgeEpisodeMissingDimensionsSkipped(t *testing.T) {
	// 只给三个维度：均值 (5+4+3)/3 = 4 → overall 80
	svc, _ := newJudgeForTest(`{"scores": {"open_hook": 5, "rhythm": 4, "safety": 3}}`)

	review, err := svc.JudgeEpisode(context.Background(), "第1集", JudgeContext{})

	require.NoError(t, err)
	assert.Equal(t, 80.0, review.Scores.Overall)
}

func TestJudgeEpisodeNonNumericDimensionDropped(t *testing.T) {
	// LLM 偶尔把分数输出成字符串，坏维度按缺失处理，不中断评分
	svc, _ := newJudgeForTest(`{
	  "scores": {
	    "open_hook": 4, "core_conflict": 4, "turn": 4, "highlight": 4,
	    "rhythm": 4, "character": 4, "shootable": 4, "end_hook": 4,
	    "safety": "4"
	  }
	}`)

	review, err := svc.JudgeEpisode(context.Background(), "第1集", JudgeContext{})

	require.NoError(t, err)
	assert.Nil(t, review.Scores.Safety)
	assert.Equal(t, 80.0, review.Scores.Overall)
	assert.True(t, review.Pass)
}

func TestJudgeEpisodeStripsCodeFence(t *testing.T) {
	svc, _ := newJudgeForTest("```json\n" + judgeJSON + "\n```")

	review, err := svc.JudgeEpisode(context.Background(), "第1集", JudgeContext{})

	require.NoError(t, err)
	assert.Equal(t, 80.0, review.Scores.Overall)
}

func TestJudgeEpisodeNonObjectIsParseError(t *testing.T) {
	svc, _ := newJudgeForTest(`[{"scores": {}}]`)

	_, err := svc.JudgeEpisode(context.Background(), "第1集", JudgeContext{})

	require.Error(t, err)
	assert.True(t, apperrors.IsParseError(err))
}

func TestJudgeEpisodeGarbageIsParseError(t *testing.T) {
	svc, _ := newJudgeForTest("这集写得还行吧")

	_, err := svc.JudgeEpisode(context.Background(), "第1集", JudgeContext{})

	require.Error(t, err)
	assert.True(t, apperrors.IsParseError(err))
}

func TestJudgeEpisodePlanInjectedIntoPrompt(t *testing.T) {
	svc, client := newJudgeForTest(judgeJSON)
	plan := &models.EpisodePlan{Ep: 1, CoreGoal: "夺回家产"}

	_, err := svc.JudgeEpisode(context.Background(), "第1集剧本正文", JudgeContext{EpisodePlan: plan})

	require.NoError(t, err)
	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "【本集节拍表规划（评审参考）】")
	assert.Contains(t, client.prompts[0], "夺回家产")
	assert.Contains(t, client.prompts[0], "第1集剧本正文")
}
