// internal/services/judge_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jubenlab/jubengen/internal/config"
	apperrors "github.com/jubenlab/jubengen/internal/errors"
	"github.com/jubenlab/jubengen/internal/models"
	"github.com/jubenlab/jubengen/internal/prompts"
	"github.com/jubenlab/jubengen/internal/utils"
)

// DefaultPassThreshold 默认通过阈值：overall >= 75 为通过
const DefaultPassThreshold = 75.0

// 审稿调用的响应 token 上限
const judgeMaxTokens = 8192

// JudgeContext 单次审稿所需的上下文材料。
// 所有字段显式传入，服务不做任何隐式的全局配置查找。
type JudgeContext struct {
	Rules       models.AdaptRules
	Constraints *models.FusedConstraints // 可为 nil
	StyleTarget models.StyleTarget       // 为 nil 时回落到 Constraints 中的 style_target
	EpisodePlan *models.EpisodePlan      // 可为 nil，提供时加入评审上下文
	Threshold   float64                  // <= 0 时使用 DefaultPassThreshold
}

// JudgeService 审稿评分：对单集剧本做九维度量化打分与可执行修改清单
type JudgeService struct {
	llm    CompletionClient
	role   config.RoleConfig
	logger *utils.Logger
}

// NewJudgeService 创建审稿服务
func NewJudgeService(client CompletionClient, role config.RoleConfig) *JudgeService {
	return &JudgeService{
		llm:    client,
		role:   role,
		logger: utils.GetLoggerWithName("judge"),
	}
}

// JudgeEpisode 对单集剧本做审稿评分。
// 响应必须是 JSON 对象；解析失败属于不可重试的解析错误。
func (s *JudgeService) JudgeEpisode(ctx context.Context, episodeScript string, jc JudgeContext) (*models.EpisodeReview, error) {
	system := prompts.BuildSystemPrompt(jc.Constraints, "")

	// 有节拍表规划时，追加到剧本正文前面作为评审上下文
	scriptWithContext := episodeScript
	if jc.EpisodePlan != nil {
		planText, err := utils.JSONIndent(jc.EpisodePlan)
		if err != nil {
			return nil, apperrors.NewProcessingError("序列化节拍表失败", err)
		}
		scriptWithContext = fmt.Sprintf(
			"【本集节拍表规划（评审参考）】\n%s\n\n【剧本正文】\n%s",
			planText, episodeScript,
		)
	}

	styleTarget := jc.StyleTarget
	if styleTarget == nil && jc.Constraints != nil {
		styleTarget = jc.Constraints.StyleTarget
	}
	userMsg := prompts.BuildJudgePrompt(jc.Rules, scriptWithContext, styleTarget)

	s.logger.Infof("调用 Claude API（judge 角色，模型=%s，thinking=%v）", s.role.Model, s.role.Thinking)
	resp, err := s.llm.Complete(ctx, s.role, system, userMsg, judgeMaxTokens)
	if err != nil {
		return nil, err
	}

	if resp.Thinking != "" {
		s.logger.Infof("Extended thinking 输出（前200字）：%s", truncateRunes(resp.Thinking, 200))
	}

	review, err := s.parseReview(resp.Text)
	if err != nil {
		return nil, err
	}

	threshold := jc.Threshold
	if threshold <= 0 {
		threshold = DefaultPassThreshold
	}
	overall := review.Scores.ComputeOverall()
	review.Pass = overall >= threshold

	s.logger.Infof("第 %s 集审稿完成：overall=%.1f, pass=%v",
		episodeLabel(review.Episode), overall, review.Pass)
	return review, nil
}

// parseReview 从 LLM 响应文本中提取评分 JSON。
// 顶层必须是对象，字段类型在解析边界严格校验。
func (s *JudgeService) parseReview(text string) (*models.EpisodeReview, error) {
	cleaned := StripCodeFence(text)

	top, err := decodeJSONValue(cleaned)
	if err != nil {
		s.logger.Errorf("评分 JSON 解析失败：%v\n原始响应（前500字符）：%s", err, truncateRunes(text, 500))
		return nil, apperrors.NewParseError(fmt.Sprintf("LLM 返回的内容无法解析为 JSON：%v", err), err)
	}
	if _, ok := top.(map[string]interface{}); !ok {
		return nil, apperrors.NewParseError(
			fmt.Sprintf("期望 JSON 对象，实际类型为 %s", jsonTypeName(top)), nil)
	}

	var review models.EpisodeReview
	if err := json.Unmarshal([]byte(cleaned), &review); err != nil {
		return nil, apperrors.NewParseError(fmt.Sprintf("评分 JSON 结构不符合预期：%v", err), err)
	}
	return &review, nil
}

func episodeLabel(ep int) string {
	if ep == 0 {
		return "?"
	}
	return strconv.Itoa(ep)
}
