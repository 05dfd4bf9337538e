// internal/services/bible_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kaptinlin/jsonrepair"

	"github.com/jubenlab/jubengen/internal/config"
	apperrors "github.com/jubenlab/jubengen/internal/errors"
	"github.com/jubenlab/jubengen/internal/models"
	"github.com/jubenlab/jubengen/internal/novel"
	"github.com/jubenlab/jubengen/internal/prompts"
	"github.com/jubenlab/jubengen/internal/textio"
	"github.com/jubenlab/jubengen/internal/utils"
)

const bibleMaxTokens = 8192

// 小说片段送入 prompt 前的截断上限（字符数）
const bibleExcerptRuneLimit = 30000

// BibleOptions Story Bible 生成参数
type BibleOptions struct {
	NovelPath    string
	ChapterStart int
	ChapterEnd   int
	Rules        models.AdaptRules
	Constraints  *models.FusedConstraints // 可为 nil
	// SampleBibleJSON few-shot 样例 Bible JSON，为空则跳过
	SampleBibleJSON string
}

// BibleService 从小说片段提取结构化剧情圣经（Story Bible）
type BibleService struct {
	llm    CompletionClient
	role   config.RoleConfig
	logger *utils.Logger
}

// NewBibleService 创建 Story Bible 生成服务
func NewBibleService(client CompletionClient, role config.RoleConfig) *BibleService {
	return &BibleService{
		llm:    client,
		role:   role,
		logger: utils.GetLoggerWithName("bible"),
	}
}

// ExtractChapterText 加载小说并提取指定章节范围（闭区间）的文本。
// 没有任何章节标记时退回全文。
func (s *BibleService) ExtractChapterText(novelPath string, chapterStart, chapterEnd int) (string, error) {
	fullText, err := textio.ReadTextAuto(novelPath)
	if err != nil {
		return "", err
	}

	chapters := novel.SplitChapters(fullText)
	if len(chapters) == 0 {
		s.logger.Warnf("未检测到章节标记（第N章），将使用全文")
		return fullText, nil
	}

	selected := novel.SelectChapterRange(chapters, chapterStart, chapterEnd)
	if len(selected) == 0 {
		return "", apperrors.NewValidationError(fmt.Sprintf(
			"章节范围 [%d, %d] 未匹配到任何章节。可用范围：[%d, %d]",
			chapterStart, chapterEnd, chapters[0].Index, chapters[len(chapters)-1].Index), nil)
	}

	s.logger.Infof("已选择 %d 个章节（第%d章 ~ 第%d章）",
		len(selected), selected[0].Index, selected[len(selected)-1].Index)

	parts := make([]string, 0, len(selected))
	for _, ch := range selected {
		parts = append(parts, ch.Title+"\n"+ch.Text)
	}
	return strings.Join(parts, "\n\n"), nil
}

// GenerateBible 执行完整的 Story Bible 生成流程：
// 提取章节文本 → 组装 prompt → 调用 LLM → 解析 JSON。
func (s *BibleService) GenerateBible(ctx context.Context, opts BibleOptions) (*models.StoryBible, error) {
	excerpt, err := s.ExtractChapterText(opts.NovelPath, opts.ChapterStart, opts.ChapterEnd)
	if err != nil {
		return nil, err
	}
	excerpt = s.clipExcerpt(excerpt)

	system := prompts.BuildSystemPrompt(opts.Constraints, "")
	userMsg := prompts.BuildBiblePrompt(opts.Rules, excerpt, opts.SampleBibleJSON)

	s.logger.Infof("调用 Claude API（bible 角色，模型=%s）", s.role.Model)
	resp, err := s.llm.Complete(ctx, s.role, system, userMsg, bibleMaxTokens)
	if err != nil {
		return nil, err
	}

	bible, err := s.parseBible(resp.Text)
	if err != nil {
		return nil, err
	}

	s.logger.Infof("Story Bible 生成完成：logline=%s", truncateRunes(bible.Logline, 50))
	return bible, nil
}

// clipExcerpt 超长片段截断，避免 prompt 超出上下文窗口
func (s *BibleService) clipExcerpt(excerpt string) string {
	total := utf8.RuneCountInString(excerpt)
	if total <= bibleExcerptRuneLimit {
		return excerpt
	}
	s.logger.Warnf("小说片段超长，已截断至 %d 字符（原 %d 字符）", bibleExcerptRuneLimit, total)
	return truncateRunes(excerpt, bibleExcerptRuneLimit)
}

// parseBible 从 LLM 响应中解析 Bible JSON。
// 允许宽松修复（缺引号、尾逗号等常见毛病），修复后仍要求 JSON 对象。
func (s *BibleService) parseBible(text string) (*models.StoryBible, error) {
	cleaned := StripCodeFence(text)

	value, decErr := decodeJSONValue(cleaned)
	if decErr != nil {
		repaired, repErr := jsonrepair.JSONRepair(cleaned)
		if repErr == nil {
			value, decErr = decodeJSONValue(repaired)
			cleaned = repaired
		}
		if decErr != nil {
			s.logger.Errorf("Bible JSON 解析失败：%v\n原始响应（前500字符）：%s",
				decErr, truncateRunes(text, 500))
			return nil, apperrors.NewParseError(fmt.Sprintf("LLM 返回的内容无法解析为 JSON：%v", decErr), decErr)
		}
		s.logger.Warnf("Bible JSON 非严格合法，已宽松修复后解析")
	}

	if _, ok := value.(map[string]interface{}); !ok {
		return nil, apperrors.NewParseError(fmt.Sprintf("期望 JSON 对象，实际类型为 %s", jsonTypeName(value)), nil)
	}

	var bible models.StoryBible
	if err := json.Unmarshal([]byte(cleaned), &bible); err != nil {
		return nil, apperrors.NewParseError(fmt.Sprintf("Bible JSON 结构不符合预期：%v", err), err)
	}
	return &bible, nil
}
