// internal/services/validator_service.go
package services

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	apperrors "github.com/jubenlab/jubengen/internal/errors"
	"github.com/jubenlab/jubengen/internal/models"
)

// 剧本格式校验：格式合规 + 行数范围 + 台词/舞台指示比例。
// 校验对象为单集剧本纯文本，校验依据为风格目标区间（style_profile 的 target）。
// 纯函数，相同输入必得相同输出。

// 允许的转场标记。列表顺序固定，报错信息按此顺序罗列。
var allowedTransitionList = []string{"【切】", "【转】", "【闪回】", "【闪出】"}

var allowedTransitions = map[string]bool{
	"【切】": true, "【转】": true, "【闪回】": true, "【闪出】": true,
}

var (
	// 集标题：第N集
	reEpTitle = regexp.MustCompile(`^第(\d+)集$`)

	// 场次行：{ep}-{scene}场  {place} 日/夜 内/外。
	// 宽松匹配：空格/制表符/全角空格混用均可。
	reScene = regexp.MustCompile(`^(\d+)-(\d+)场[\s　]+(.+?)[\s　]+(日|夜)[\s　]+(内|外)[\s　]*$`)

	// 转场行：【切】【转】【闪回】【闪出】
	reTransition = regexp.MustCompile(`^【.+?】$`)

	// 半角冒号的台词行（格式错误但仍归为台词）
	reHalfColonDialogue = regexp.MustCompile(`^[^\s▲【].+:.+`)
)

const castLinePrefix = "人物："

// ClassifyLine 将单行剧本文本归类
func ClassifyLine(line string) models.LineKind {
	s := strings.TrimSpace(line)
	if s == "" {
		return models.LineKindBlank
	}
	if reEpTitle.MatchString(s) {
		return models.LineKindEpTitle
	}
	if reScene.MatchString(s) {
		return models.LineKindScene
	}
	if strings.HasPrefix(s, castLinePrefix) {
		return models.LineKindCast
	}
	if strings.HasPrefix(s, "▲") {
		return models.LineKindStage
	}
	if reTransition.MatchString(s) {
		return models.LineKindTransition
	}
	// VO/OS 行本质是台词的一种变体
	if strings.HasPrefix(s, "VO") || strings.HasPrefix(s, "OS") || hasVOOSMarker(s) {
		return models.LineKindDialogue
	}
	if strings.Contains(s, "：") {
		return models.LineKindDialogue
	}
	if reHalfColonDialogue.MatchString(s) {
		return models.LineKindDialogue
	}
	return models.LineKindUnknown
}

// hasVOOSMarker 判断文本中是否出现独立的 VO/OS 标记。
// 标记两侧不能紧贴字词字符（中文字符也算字词），
// 或者直接后跟全角冒号（如「林峰VO：」）。
func hasVOOSMarker(s string) bool {
	if strings.Contains(s, "VO：") || strings.Contains(s, "OS：") {
		return true
	}
	runes := []rune(s)
	for i := 0; i+1 < len(runes); i++ {
		pair := string(runes[i : i+2])
		if pair != "VO" && pair != "OS" {
			continue
		}
		beforeOK := i == 0 || !isWordRune(runes[i-1])
		afterOK := i+2 == len(runes) || !isWordRune(runes[i+2])
		if beforeOK && afterOK {
			return true
		}
	}
	return false
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// isVOOSLine 判断是否是 VO/OS 台词行
func isVOOSLine(line string) bool {
	return hasVOOSMarker(strings.TrimSpace(line))
}

// truncateRunes 按字符数截断（不加省略号，由调用方决定）
func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

// checkFormat 逐行检查格式，同时统计行数
func checkFormat(lines []string) ([]models.ValidationIssue, models.EpisodeStats) {
	var issues []models.ValidationIssue
	var stats models.EpisodeStats

	hasEpTitle := false
	hasScene := false
	expectCastAfterScene := false // 场次行后应跟人物行

	for i, rawLine := range lines {
		lineNum := i + 1
		s := strings.TrimSpace(rawLine)
		if s == "" {
			expectCastAfterScene = false
			continue
		}

		kind := ClassifyLine(rawLine)
		stats.TotalLines++

		switch kind {
		case models.LineKindEpTitle:
			hasEpTitle = true
			if m := reEpTitle.FindStringSubmatch(s); m != nil {
				stats.Episode, _ = strconv.Atoi(m[1])
			}
			expectCastAfterScene = false

		case models.LineKindScene:
			hasScene = true
			stats.SceneCount++
			expectCastAfterScene = true

		case models.LineKindCast:
			// 人物行格式检查：顿号分隔
			content := strings.TrimPrefix(s, castLinePrefix)
			if content != "" && strings.Contains(content, ",") && !strings.Contains(content, "、") {
				issues = append(issues, models.ValidationIssue{
					Type:        models.IssueTypeFormat,
					Level:       models.IssueLevelWarning,
					LineNum:     intPtr(lineNum),
					Description: fmt.Sprintf("人物行建议用顿号「、」分隔，而非逗号：%s", s),
				})
			}
			expectCastAfterScene = false

		case models.LineKindStage:
			stats.StageLines++
			expectCastAfterScene = false

		case models.LineKindTransition:
			if !allowedTransitions[s] {
				issues = append(issues, models.ValidationIssue{
					Type:        models.IssueTypeFormat,
					Level:       models.IssueLevelWarning,
					LineNum:     intPtr(lineNum),
					Description: fmt.Sprintf("非标准转场标记：%s，允许的有：%s", s, strings.Join(allowedTransitionList, ", ")),
				})
			}
			expectCastAfterScene = false

		case models.LineKindDialogue:
			stats.DialogueLines++
			if isVOOSLine(rawLine) {
				stats.VoOsLines++
			}
			// 检查是否用了半角冒号
			if strings.Contains(s, ":") && !strings.Contains(s, "：") {
				issues = append(issues, models.ValidationIssue{
					Type:        models.IssueTypeFormat,
					Level:       models.IssueLevelError,
					LineNum:     intPtr(lineNum),
					Description: fmt.Sprintf("台词行应使用全角冒号「：」，检测到半角冒号：%s...", truncateRunes(s, 40)),
				})
			}
			expectCastAfterScene = false

		default:
			// 无法归类的行
			if expectCastAfterScene {
				// 场次行后第一个非空行不是人物行
				issues = append(issues, models.ValidationIssue{
					Type:        models.IssueTypeFormat,
					Level:       models.IssueLevelWarning,
					LineNum:     intPtr(lineNum),
					Description: fmt.Sprintf("场次行后建议紧跟人物行，实际为：%s", truncateRunes(s, 50)),
				})
				expectCastAfterScene = false
			} else {
				issues = append(issues, models.ValidationIssue{
					Type:        models.IssueTypeFormat,
					Level:       models.IssueLevelWarning,
					LineNum:     intPtr(lineNum),
					Description: fmt.Sprintf("无法识别的行格式：%s", truncateRunes(s, 50)),
				})
			}
		}
	}

	// 整集级别格式检查
	if !hasEpTitle {
		issues = append(issues, models.ValidationIssue{
			Type:        models.IssueTypeFormat,
			Level:       models.IssueLevelError,
			LineNum:     nil,
			Description: "缺少集标题行（格式：第N集）",
		})
	}
	if !hasScene {
		issues = append(issues, models.ValidationIssue{
			Type:        models.IssueTypeFormat,
			Level:       models.IssueLevelWarning,
			LineNum:     nil,
			Description: "未检测到场次行（格式：N-N场  场景名 日/夜 内/外）",
		})
	}

	return issues, stats
}

// checkLineCounts 检查行数/场景数是否在允许范围内
func checkLineCounts(stats models.EpisodeStats, target models.StyleTarget) []models.ValidationIssue {
	var issues []models.ValidationIssue

	checks := []struct {
		key    string
		actual int
		label  string
	}{
		{models.MetricScenesPerEp, stats.SceneCount, "场景数"},
		{models.MetricTotalLinesPerEp, stats.TotalLines, "总行数"},
		{models.MetricDialogueLinesPerEp, stats.DialogueLines, "台词行数"},
		{models.MetricStageLinesPerEp, stats.StageLines, "舞台指示行数"},
		{models.MetricVoOsLinesPerEp, stats.VoOsLines, "VO/OS行数"},
	}

	for _, c := range checks {
		spec, ok := target[c.key]
		if !ok {
			continue
		}
		lo, hi := spec.Range[0], spec.Range[1]
		actual := float64(c.actual)
		if actual < lo || actual > hi {
			issues = append(issues, models.ValidationIssue{
				Type:        models.IssueTypeLineCount,
				Level:       models.IssueLevelError,
				LineNum:     nil,
				Description: fmt.Sprintf("%s=%d，超出允许范围 [%g, %g]（建议值 %g）", c.label, c.actual, lo, hi, spec.Suggest),
			})
		} else if math.Abs(actual-spec.Suggest) > (hi-lo)*0.4 {
			// 在范围内但偏离建议值较多
			issues = append(issues, models.ValidationIssue{
				Type:        models.IssueTypeLineCount,
				Level:       models.IssueLevelWarning,
				LineNum:     nil,
				Description: fmt.Sprintf("%s=%d，偏离建议值 %g（范围 [%g, %g]）", c.label, c.actual, spec.Suggest, lo, hi),
			})
		}
	}

	return issues
}

// checkRatios 检查台词/舞台指示与总行数的比例
func checkRatios(stats models.EpisodeStats) []models.ValidationIssue {
	var issues []models.ValidationIssue
	total := stats.TotalLines
	if total == 0 {
		return issues
	}

	dialogueRatio := float64(stats.DialogueLines) / float64(total)
	stageRatio := float64(stats.StageLines) / float64(total)

	// 样例统计：台词约占 36%（10.28/28.1），舞台约占 50%（14.23/28.1），
	// 各给 ±15% 的浮动空间
	if dialogueRatio < 0.15 {
		issues = append(issues, models.ValidationIssue{
			Type:        models.IssueTypeRatio,
			Level:       models.IssueLevelWarning,
			LineNum:     nil,
			Description: fmt.Sprintf("台词占比过低：%.0f%%（建议 25%%-55%%），可能对话不足", dialogueRatio*100),
		})
	} else if dialogueRatio > 0.70 {
		issues = append(issues, models.ValidationIssue{
			Type:        models.IssueTypeRatio,
			Level:       models.IssueLevelWarning,
			LineNum:     nil,
			Description: fmt.Sprintf("台词占比过高：%.0f%%（建议 25%%-55%%），缺少舞台/镜头指示", dialogueRatio*100),
		})
	}

	if stageRatio < 0.15 {
		issues = append(issues, models.ValidationIssue{
			Type:        models.IssueTypeRatio,
			Level:       models.IssueLevelWarning,
			LineNum:     nil,
			Description: fmt.Sprintf("舞台指示占比过低：%.0f%%（建议 30%%-60%%），可能画面感不足", stageRatio*100),
		})
	} else if stageRatio > 0.75 {
		issues = append(issues, models.ValidationIssue{
			Type:        models.IssueTypeRatio,
			Level:       models.IssueLevelWarning,
			LineNum:     nil,
			Description: fmt.Sprintf("舞台指示占比过高：%.0f%%（建议 30%%-60%%），可能缺乏对话推动", stageRatio*100),
		})
	}

	return issues
}

// ValidateEpisode 校验单集剧本文本。target 为 nil 时使用内置默认区间。
func ValidateEpisode(text string, target models.StyleTarget) *models.ValidationResult {
	if target == nil {
		target = models.DefaultStyleTarget()
	}

	lines := strings.Split(text, "\n")

	formatIssues, stats := checkFormat(lines)
	countIssues := checkLineCounts(stats, target)
	ratioIssues := checkRatios(stats)

	allIssues := make([]models.ValidationIssue, 0, len(formatIssues)+len(countIssues)+len(ratioIssues))
	allIssues = append(allIssues, formatIssues...)
	allIssues = append(allIssues, countIssues...)
	allIssues = append(allIssues, ratioIssues...)

	hasError := false
	for _, iss := range allIssues {
		if iss.Level == models.IssueLevelError {
			hasError = true
			break
		}
	}

	return &models.ValidationResult{
		Passed:  !hasError,
		Episode: stats.Episode,
		Stats:   stats,
		Issues:  allIssues,
	}
}

// 多集分割：按行首的「第N集」切开
var reEpSplit = regexp.MustCompile(`(?m)^第\d+集$`)

// ValidateScript 校验多集剧本文本（自动按「第N集」分割）。
// 未检测到集标题时整体当作一集校验。
func ValidateScript(text string, target models.StyleTarget) []*models.ValidationResult {
	if target == nil {
		target = models.DefaultStyleTarget()
	}

	locs := reEpSplit.FindAllStringIndex(text, -1)
	var results []*models.ValidationResult
	for i, loc := range locs {
		title := text[loc[0]:loc[1]]
		bodyEnd := len(text)
		if i+1 < len(locs) {
			bodyEnd = locs[i+1][0]
		}
		body := text[loc[1]:bodyEnd]
		results = append(results, ValidateEpisode(title+"\n"+body, target))
	}

	if len(results) == 0 {
		results = append(results, ValidateEpisode(text, target))
	}
	return results
}

// FormatReport 将校验结果格式化为可读文本报告
func FormatReport(results []*models.ValidationResult) string {
	var lines []string
	totalErrors := 0
	totalWarnings := 0

	for _, r := range results {
		epLabel := "未知集"
		if r.Episode != 0 {
			epLabel = fmt.Sprintf("第%d集", r.Episode)
		}
		status := "FAIL"
		if r.Passed {
			status = "PASS"
		}
		lines = append(lines, fmt.Sprintf("== %s %s ==", epLabel, status))
		lines = append(lines, fmt.Sprintf(
			"  统计：场景=%d  总行=%d  台词=%d  舞台=%d  VO/OS=%d",
			r.Stats.SceneCount, r.Stats.TotalLines,
			r.Stats.DialogueLines, r.Stats.StageLines, r.Stats.VoOsLines,
		))

		var errors, warnings []models.ValidationIssue
		for _, iss := range r.Issues {
			switch iss.Level {
			case models.IssueLevelError:
				errors = append(errors, iss)
			case models.IssueLevelWarning:
				warnings = append(warnings, iss)
			}
		}
		totalErrors += len(errors)
		totalWarnings += len(warnings)

		if len(errors) > 0 {
			lines = append(lines, fmt.Sprintf("  错误（%d）：", len(errors)))
			for _, iss := range errors {
				lines = append(lines, fmt.Sprintf("    [%s] %s", issueLoc(iss), iss.Description))
			}
		}
		if len(warnings) > 0 {
			lines = append(lines, fmt.Sprintf("  警告（%d）：", len(warnings)))
			for _, iss := range warnings {
				lines = append(lines, fmt.Sprintf("    [%s] %s", issueLoc(iss), iss.Description))
			}
		}
		if len(errors) == 0 && len(warnings) == 0 {
			lines = append(lines, "  无问题")
		}
		lines = append(lines, "")
	}

	allPassed := true
	for _, r := range results {
		if !r.Passed {
			allPassed = false
			break
		}
	}
	summary := "存在未通过的集"
	if allPassed {
		summary = "全部通过"
	}
	lines = append(lines, fmt.Sprintf("汇总：%d 集，%s（%d 错误 / %d 警告）",
		len(results), summary, totalErrors, totalWarnings))

	return strings.Join(lines, "\n")
}

func issueLoc(iss models.ValidationIssue) string {
	if iss.LineNum != nil {
		return fmt.Sprintf("L%d", *iss.LineNum)
	}
	return "整集"
}

func intPtr(n int) *int {
	return &n
}

// LoadStyleTarget 从风格档案 JSON 加载 target 区间。
// 文件不存在或未包含 target 字段时返回内置默认值。
func LoadStyleTarget(profilePath string) (models.StyleTarget, error) {
	data, err := os.ReadFile(profilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return models.DefaultStyleTarget(), nil
		}
		return nil, apperrors.NewProcessingError(fmt.Sprintf("读取风格档案失败 %s", profilePath), err)
	}

	var profile struct {
		Target models.StyleTarget `json:"target"`
	}
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, apperrors.NewParseError(fmt.Sprintf("解析风格档案失败 %s", profilePath), err)
	}
	if len(profile.Target) == 0 {
		return models.DefaultStyleTarget(), nil
	}
	return profile.Target, nil
}
