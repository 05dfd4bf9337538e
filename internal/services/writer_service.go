// internal/services/writer_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/jubenlab/jubengen/internal/config"
	apperrors "github.com/jubenlab/jubengen/internal/errors"
	"github.com/jubenlab/jubengen/internal/models"
	"github.com/jubenlab/jubengen/internal/prompts"
	"github.com/jubenlab/jubengen/internal/storage"
	"github.com/jubenlab/jubengen/internal/utils"
)

const (
	writeMaxTokens   = 8192
	summaryMaxTokens = 1024
)

const summarySystemPrompt = "你是短剧创作助手，擅长提取剧情要点。"

// WriteOptions 逐集剧本生成参数
type WriteOptions struct {
	Plan        []models.EpisodePlan
	Rules       models.AdaptRules
	Constraints *models.FusedConstraints // 可为 nil

	// OutputDir 相对存储根目录；分集写入 {OutputDir}/episodes/，
	// 合并版写入 {OutputDir}/script_full.txt
	OutputDir string

	// SampleScript few-shot 样例剧本片段，为空则跳过
	SampleScript string

	// OnEpisodeDone 进度回调（已完成集数、总集数），可为 nil
	OnEpisodeDone func(done, total int)
}

// WriterService 从节拍表逐集生成剧本正文。
// 第 2 集起注入前一集摘要保持连贯性。
type WriterService struct {
	llm    CompletionClient
	role   config.RoleConfig
	fs     *storage.FileStorage
	logger *utils.Logger
}

// NewWriterService 创建剧本生成服务
func NewWriterService(client CompletionClient, role config.RoleConfig, fs *storage.FileStorage) *WriterService {
	return &WriterService{
		llm:    client,
		role:   role,
		fs:     fs,
		logger: utils.GetLoggerWithName("writer"),
	}
}

// LoadPlan 读取节拍表 JSON 文件
func LoadPlan(path string) ([]models.EpisodePlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("节拍表 JSON 不存在：%s", path), err)
		}
		return nil, apperrors.NewProcessingError(fmt.Sprintf("读取节拍表 JSON 失败 %s", path), err)
	}

	value, err := decodeJSONValue(string(data))
	if err != nil {
		return nil, apperrors.NewParseError(fmt.Sprintf("解析节拍表 JSON 失败 %s", path), err)
	}
	if _, ok := value.([]interface{}); !ok {
		return nil, apperrors.NewParseError(fmt.Sprintf("节拍表应为 JSON 数组，实际类型为 %s", jsonTypeName(value)), nil)
	}

	var plan []models.EpisodePlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, apperrors.NewParseError(fmt.Sprintf("节拍表 JSON 结构不符合预期：%v", err), err)
	}
	return plan, nil
}

// GenerateEpisode 生成单集剧本正文
func (s *WriterService) GenerateEpisode(ctx context.Context, episodePlan *models.EpisodePlan, rules models.AdaptRules, styleTarget models.StyleTarget, systemPrompt, prevSummary, sampleScript string) (string, error) {
	planJSON, err := utils.JSONIndent(episodePlan)
	if err != nil {
		return "", apperrors.NewProcessingError("序列化节拍表失败", err)
	}

	userMsg := prompts.BuildWritePrompt(rules, styleTarget, planJSON, prevSummary, sampleScript)

	s.logger.Infof("生成第 %s 集剧本（模型=%s）", episodeLabel(episodePlan.Ep), s.role.Model)
	resp, err := s.llm.Complete(ctx, s.role, systemPrompt, userMsg, writeMaxTokens)
	if err != nil {
		return "", err
	}

	script := strings.TrimSpace(resp.Text)
	s.logger.Infof("第 %s 集剧本生成完成（%d 字符）",
		episodeLabel(episodePlan.Ep), utf8.RuneCountInString(script))
	return script, nil
}

// GenerateSummary 提取单集关键摘要（角色状态、剧情进展、未解钩子），
// 用于下一集创作的连贯性注入。摘要不启用 thinking。
func (s *WriterService) GenerateSummary(ctx context.Context, episodeScript string) (string, error) {
	userMsg := "【任务】从以下短剧剧本中提取关键摘要，用于下一集创作时保持连贯性。\n" +
		"【要求】\n" +
		"- 控制在500字以内\n" +
		"- 必须包含：角色当前状态、剧情进展到哪一步、未解决的钩子/悬念\n" +
		"- 简洁直接，不需要修辞\n" +
		"【输出】直接输出摘要文本，不要加标题或解释。\n\n" +
		"【剧本】\n" + episodeScript

	role := s.role
	role.Thinking = false
	role.BudgetTokens = 0

	resp, err := s.llm.Complete(ctx, role, summarySystemPrompt, userMsg, summaryMaxTokens)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

// GenerateAllEpisodes 逐集生成全部剧本并保存。
// 返回所有集的剧本文本，顺序与节拍表一致。
func (s *WriterService) GenerateAllEpisodes(ctx context.Context, opts WriteOptions) ([]string, error) {
	s.logger.Infof("已加载节拍表：共 %d 集", len(opts.Plan))

	styleTarget := models.StyleTarget{}
	if opts.Constraints != nil {
		styleTarget = opts.Constraints.StyleTarget
	}
	system := prompts.BuildSystemPrompt(opts.Constraints, "")

	episodes := make([]string, 0, len(opts.Plan))
	prevSummary := ""

	for i := range opts.Plan {
		episodePlan := &opts.Plan[i]
		epNum := episodePlan.Ep
		if epNum == 0 {
			epNum = i + 1
		}

		script, err := s.GenerateEpisode(ctx, episodePlan, opts.Rules, styleTarget, system, prevSummary, opts.SampleScript)
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, script)

		if err := s.saveEpisode(script, epNum, opts.OutputDir); err != nil {
			return nil, err
		}

		if opts.OnEpisodeDone != nil {
			opts.OnEpisodeDone(i+1, len(opts.Plan))
		}

		// 最后一集之后无需摘要
		if i < len(opts.Plan)-1 {
			prevSummary, err = s.GenerateSummary(ctx, script)
			if err != nil {
				return nil, err
			}
			s.logger.Infof("第 %d 集摘要已生成（%d 字符）", epNum, utf8.RuneCountInString(prevSummary))
		}
	}

	if err := s.saveFullScript(episodes, opts.OutputDir); err != nil {
		return nil, err
	}

	s.logger.Infof("全部 %d 集剧本生成完成", len(episodes))
	return episodes, nil
}

// saveEpisode 保存单集剧本到 {outputDir}/episodes/ep{N}.txt
func (s *WriterService) saveEpisode(script string, epNum int, outputDir string) error {
	episodesDir := filepath.Join(outputDir, "episodes")
	name := fmt.Sprintf("ep%d.txt", epNum)
	if err := s.fs.SaveTextFile(episodesDir, name, []byte(script)); err != nil {
		return err
	}
	s.logger.Infof("第 %d 集已保存：%s", epNum, filepath.Join(episodesDir, name))
	return nil
}

// saveFullScript 保存所有集拼接的合并版本到 {outputDir}/script_full.txt
func (s *WriterService) saveFullScript(episodes []string, outputDir string) error {
	fullText := strings.Join(episodes, "\n\n")
	if err := s.fs.SaveTextFile(outputDir, "script_full.txt", []byte(fullText)); err != nil {
		return err
	}
	s.logger.Infof("合并剧本已保存：%s", filepath.Join(outputDir, "script_full.txt"))
	return nil
}
