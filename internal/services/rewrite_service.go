// internal/services/rewrite_service.go
package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/jubenlab/jubengen/internal/config"
	apperrors "github.com/jubenlab/jubengen/internal/errors"
	"github.com/jubenlab/jubengen/internal/models"
	"github.com/jubenlab/jubengen/internal/prompts"
	"github.com/jubenlab/jubengen/internal/utils"
)

// 返修调用的响应 token 上限
const rewriteMaxTokens = 8192

// RewriteService 定向返修：按评分中的修改清单对剧本做最小幅度重写
type RewriteService struct {
	llm    CompletionClient
	role   config.RoleConfig
	logger *utils.Logger
}

// NewRewriteService 创建返修服务
func NewRewriteService(client CompletionClient, role config.RoleConfig) *RewriteService {
	return &RewriteService{
		llm:    client,
		role:   role,
		logger: utils.GetLoggerWithName("rewrite"),
	}
}

// Revise 对单集剧本做一次返修，返回返修后的剧本纯文本。
// 本层不做校验也不重试，格式与评分问题由下一轮审稿循环发现。
func (s *RewriteService) Revise(ctx context.Context, episodeScript string, review *models.EpisodeReview, constraints *models.FusedConstraints) (string, error) {
	system := prompts.BuildSystemPrompt(constraints, "")

	fixList := review.FixList
	if fixList == nil {
		fixList = []models.FixItem{}
	}
	fixListJSON, err := utils.JSONIndent(fixList)
	if err != nil {
		return "", apperrors.NewProcessingError("序列化修改清单失败", err)
	}
	scoresJSON, err := utils.JSONIndent(review.Scores)
	if err != nil {
		return "", apperrors.NewProcessingError("序列化评分失败", err)
	}

	userMsg := prompts.BuildRewritePrompt(fixListJSON, episodeScript, scoresJSON)

	s.logger.Infof("调用 Claude API（rewrite 角色，模型=%s）", s.role.Model)
	resp, err := s.llm.Complete(ctx, s.role, system, userMsg, rewriteMaxTokens)
	if err != nil {
		return "", err
	}

	script := strings.TrimSpace(resp.Text)
	s.logger.Infof("返修完成（%d 字符）", utf8.RuneCountInString(script))
	return script, nil
}
