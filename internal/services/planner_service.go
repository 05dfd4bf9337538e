// internal/services/planner_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/kaptinlin/jsonrepair"

	"github.com/jubenlab/jubengen/internal/config"
	apperrors "github.com/jubenlab/jubengen/internal/errors"
	"github.com/jubenlab/jubengen/internal/models"
	"github.com/jubenlab/jubengen/internal/prompts"
	"github.com/jubenlab/jubengen/internal/utils"
)

const planMaxTokens = 16384

// PlanOptions 分集节拍表规划参数
type PlanOptions struct {
	Bible       *models.StoryBible
	Rules       models.AdaptRules
	Constraints *models.FusedConstraints // 可为 nil
	// Spec 单集结构约束，零值时使用 DefaultEpisodeSpec
	Spec prompts.EpisodeSpec
	// SamplePlanJSON few-shot 样例节拍表 JSON，为空则跳过
	SamplePlanJSON string
}

// PlannerService 从 Story Bible 规划分集节拍表（JSON 数组）。
// plan 角色默认启用 extended thinking，整体结构一次性产出。
type PlannerService struct {
	llm    CompletionClient
	role   config.RoleConfig
	logger *utils.Logger
}

// NewPlannerService 创建节拍表规划服务
func NewPlannerService(client CompletionClient, role config.RoleConfig) *PlannerService {
	return &PlannerService{
		llm:    client,
		role:   role,
		logger: utils.GetLoggerWithName("planner"),
	}
}

// LoadBible 读取 Story Bible JSON 文件
func LoadBible(path string) (*models.StoryBible, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("Bible JSON 不存在：%s", path), err)
		}
		return nil, apperrors.NewProcessingError(fmt.Sprintf("读取 Bible JSON 失败 %s", path), err)
	}
	var bible models.StoryBible
	if err := json.Unmarshal(data, &bible); err != nil {
		return nil, apperrors.NewParseError(fmt.Sprintf("解析 Bible JSON 失败 %s", path), err)
	}
	return &bible, nil
}

// GeneratePlan 执行完整的节拍表规划流程：
// 序列化 Bible → 组装 prompt → 调用 LLM（extended thinking）→ 解析 JSON 数组。
func (s *PlannerService) GeneratePlan(ctx context.Context, opts PlanOptions) ([]models.EpisodePlan, error) {
	if opts.Bible == nil {
		return nil, apperrors.NewValidationError("缺少 Story Bible", nil)
	}

	bibleJSON, err := utils.JSONIndent(opts.Bible)
	if err != nil {
		return nil, apperrors.NewProcessingError("序列化 Bible 失败", err)
	}
	s.logger.Infof("已加载 Bible：logline=%s", truncateRunes(opts.Bible.Logline, 50))

	styleTarget := models.StyleTarget{}
	if opts.Constraints != nil {
		styleTarget = opts.Constraints.StyleTarget
	}
	spec := opts.Spec
	if spec == (prompts.EpisodeSpec{}) {
		spec = prompts.DefaultEpisodeSpec()
	}
	if spec.Episodes <= 0 {
		spec.Episodes = prompts.DefaultEpisodeSpec().Episodes
	}

	system := prompts.BuildSystemPrompt(opts.Constraints, "")
	userMsg := prompts.BuildPlanPrompt(opts.Rules, styleTarget, bibleJSON, spec, opts.SamplePlanJSON)

	s.logger.Infof("调用 Claude API（plan 角色，模型=%s，thinking=%v）", s.role.Model, s.role.Thinking)
	resp, err := s.llm.Complete(ctx, s.role, system, userMsg, planMaxTokens)
	if err != nil {
		return nil, err
	}

	if resp.Thinking != "" {
		s.logger.Infof("Extended thinking 输出（前200字）：%s", truncateRunes(resp.Thinking, 200))
	}

	plan, err := s.parsePlan(resp.Text)
	if err != nil {
		return nil, err
	}

	s.logger.Infof("节拍表生成完成：共 %d 集", len(plan))
	return plan, nil
}

// parsePlan 从 LLM 响应中解析节拍表 JSON 数组，允许宽松修复
func (s *PlannerService) parsePlan(text string) ([]models.EpisodePlan, error) {
	cleaned := StripCodeFence(text)

	value, decErr := decodeJSONValue(cleaned)
	if decErr != nil {
		repaired, repErr := jsonrepair.JSONRepair(cleaned)
		if repErr == nil {
			value, decErr = decodeJSONValue(repaired)
			cleaned = repaired
		}
		if decErr != nil {
			s.logger.Errorf("节拍表 JSON 解析失败：%v\n原始响应（前500字符）：%s",
				decErr, truncateRunes(text, 500))
			return nil, apperrors.NewParseError(fmt.Sprintf("LLM 返回的内容无法解析为 JSON 数组：%v", decErr), decErr)
		}
		s.logger.Warnf("节拍表 JSON 非严格合法，已宽松修复后解析")
	}

	if _, ok := value.([]interface{}); !ok {
		return nil, apperrors.NewParseError(fmt.Sprintf("期望 JSON 数组，实际类型为 %s", jsonTypeName(value)), nil)
	}

	var plan []models.EpisodePlan
	if err := json.Unmarshal([]byte(cleaned), &plan); err != nil {
		return nil, apperrors.NewParseError(fmt.Sprintf("节拍表 JSON 结构不符合预期：%v", err), err)
	}
	return plan, nil
}
