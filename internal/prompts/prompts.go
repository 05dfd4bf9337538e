// internal/prompts/prompts.go

// Package prompts 是 prompt 模板库，针对长上下文 + extended thinking 优化。
//
// 每个 Build*Prompt 函数返回 user message 文本，system prompt 由
// BuildSystemPrompt 生成。plan / judge 角色建议搭配 extended thinking
// 使用（由 config.RoleConfig 控制）。
package prompts

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/jubenlab/jubengen/internal/models"
	"github.com/jubenlab/jubengen/internal/rules"
)

// EpisodeSpec 单集结构约束参数
type EpisodeSpec struct {
	Episodes        int
	SecondsMin      int
	SecondsMax      int
	ScenesRange     [2]int
	TotalLinesRange [2]int
}

// DefaultEpisodeSpec 红果短剧的默认单集约束：前10集、1-2分钟、1-3场、22-38行
func DefaultEpisodeSpec() EpisodeSpec {
	return EpisodeSpec{
		Episodes:        10,
		SecondsMin:      60,
		SecondsMax:      120,
		ScenesRange:     [2]int{1, 3},
		TotalLinesRange: [2]int{22, 38},
	}
}

// LoadFusedConstraints 读取融合约束 JSON（style_target + format_spec + rules_text）
func LoadFusedConstraints(path string) (*models.FusedConstraints, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取融合约束失败: %w", err)
	}
	var c models.FusedConstraints
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("解析融合约束失败: %w", err)
	}
	return &c, nil
}

// BuildSystemPrompt 构建 system prompt，注入完整的风格约束和格式规范。
// constraints 为 nil 时使用精简版；含题材信息时自动注入题材特定约束。
// sampleSnippet 是样例剧本片段（few-shot），为空则跳过。
func BuildSystemPrompt(constraints *models.FusedConstraints, sampleSnippet string) string {
	sections := []string{
		"你是资深短剧编剧与改编策划，擅长把小说改写成1-2分钟/集的红果风格短剧剧本。",
		"输出必须信息密度高、冲突强、节奏快、结尾有钩子；不要写散文化小说。",
	}

	fmtRules := formatRules
	if constraints != nil {
		fmtRules = buildFormatRules(constraints.FormatSpec)
	}
	sections = append(sections, "【格式硬约束】\n"+fmtRules)

	if constraints != nil {
		sections = append(sections, "【结构指标约束】\n"+buildTargetSummary(constraints.StyleTarget))

		if genreSection := buildGenreSection(constraints.Genre); genreSection != "" {
			sections = append(sections, genreSection)
		}
	}

	sections = append(sections, rhythmRules)
	sections = append(sections, prohibitionList)
	sections = append(sections, rules.RedfruitSafetyNotes())

	if sampleSnippet != "" {
		sections = append(sections, "【样例剧本片段（格式参考）】\n"+sampleSnippet)
	}

	return strings.Join(sections, "\n\n")
}

// BuildBiblePrompt 构建 story bible 提取 prompt。
// sampleBibleJSON 是样例 Bible JSON 字符串（few-shot 参考），为空则跳过。
func BuildBiblePrompt(adaptRules models.AdaptRules, novelExcerpt, sampleBibleJSON string) string {
	sections := []string{
		"【任务】阅读小说片段，抽取\"改编用剧情圣经 story bible\"（JSON）。",
		"【输出格式】只输出JSON，不要解释。字段：\n" + bibleSchema,
		"【参考规则：节奏适配关键注意事项】\n" + adaptRules.RhythmNotes,
	}

	if sampleBibleJSON != "" {
		sections = append(sections, "【样例 Bible JSON（仅供参考格式和粒度）】\n"+sampleBibleJSON)
	}

	sections = append(sections, "【小说片段】\n"+novelExcerpt)

	return strings.Join(sections, "\n\n")
}

// BuildPlanPrompt 构建分集节拍表规划 prompt，建议搭配 extended thinking。
// samplePlanJSON 是样例节拍表 JSON 字符串（few-shot），为空则跳过。
func BuildPlanPrompt(adaptRules models.AdaptRules, styleTarget models.StyleTarget, bibleJSON string, spec EpisodeSpec, samplePlanJSON string) string {
	sections := []string{
		fmt.Sprintf("【任务】为红果短剧规划前%d集\"分集节拍表\"（JSON数组）。每集1-2分钟。", spec.Episodes),
		buildHardConstraints(spec),
		"【输出格式】只输出JSON数组，不要解释。每集对象字段：\n" + planSchema,
		"【起承转合参考（前10集付费卡点）】\n" + adaptRules.CardTemplateNotes,
		"【结尾钩子方法】\n" + adaptRules.EndHookNotes,
		"【样例风格目标（统计画像）】\n" + mustJSONIndent(styleTarget),
	}

	if samplePlanJSON != "" {
		sections = append(sections, "【样例节拍表JSON（格式参考）】\n"+samplePlanJSON)
	}

	sections = append(sections, "【story bible】\n"+bibleJSON)

	return strings.Join(sections, "\n\n")
}

// BuildWritePrompt 构建单集剧本生成 prompt。
// prevSummary 是前一集摘要（保持连贯性），sampleScript 是样例剧本片段，为空均跳过。
func BuildWritePrompt(adaptRules models.AdaptRules, styleTarget models.StyleTarget, episodePlanJSON, prevSummary, sampleScript string) string {
	sections := []string{
		"【任务】根据\"分集节拍表\"，写出该集完整短剧剧本（纯文本），用于导出docx。",
		writeFormatRules,
		"【节奏要求】\n" + writeRhythmRules,
		"【禁止事项】\n" + writeProhibitions,
		"【参考规则：节奏适配关键注意事项】\n" + adaptRules.RhythmNotes,
		"【样例风格目标（统计画像）】\n" + mustJSONIndent(styleTarget),
	}

	if sampleScript != "" {
		sections = append(sections, "【样例剧本片段（格式参考）】\n"+sampleScript)
	}

	if prevSummary != "" {
		sections = append(sections, "【前一集摘要（保持连贯性）】\n"+prevSummary)
	}

	sections = append(sections, "【分集节拍表JSON】\n"+episodePlanJSON)

	return strings.Join(sections, "\n\n")
}

// BuildJudgePrompt 构建审稿评分 prompt，建议搭配 extended thinking 做深度评估。
// styleTarget 非空时会加入行数/比例的校验参考。
func BuildJudgePrompt(adaptRules models.AdaptRules, episodeScript string, styleTarget models.StyleTarget) string {
	sections := []string{
		"【任务】你是短剧审稿编辑，对该集剧本做量化打分与可执行修改清单（JSON）。",
		"【评分维度】每项0-5分：\n" + judgeDimensions,
		"【输出格式】只输出JSON：\n" + judgeSchema,
		"【评审重点】\n" + judgeFocus,
		"【参考规则：节奏适配关键注意事项】\n" + adaptRules.RhythmNotes,
		"【结尾钩子方法】\n" + adaptRules.EndHookNotes,
	}

	if len(styleTarget) > 0 {
		sections = append(sections, "【结构指标约束（用于校验行数/比例）】\n"+mustJSONIndent(styleTarget))
	}

	sections = append(sections, "【剧本】\n"+episodeScript)

	return strings.Join(sections, "\n\n")
}

// BuildRewritePrompt 构建最小改动返修 prompt。
// scoresJSON 是审稿评分 JSON（提供上下文），为空则跳过。
func BuildRewritePrompt(fixListJSON, episodeScript, scoresJSON string) string {
	sections := []string{
		"【任务】按\"修改清单\"对剧本做最小改动返修：只改列出的问题，不要重写整集。",
		"【输出】只输出返修后的完整剧本纯文本（同原格式）。",
		"【返修原则】\n" + rewritePrinciples,
	}

	if scoresJSON != "" {
		sections = append(sections, "【审稿评分JSON（上下文参考）】\n"+scoresJSON)
	}

	sections = append(sections, "【修改清单JSON】\n"+fixListJSON)
	sections = append(sections, "【原剧本】\n"+episodeScript)

	return strings.Join(sections, "\n\n")
}

// ============================================================
// 内部常量 — 格式/节奏/禁止事项/Schema
// ============================================================

const formatRules = "- 集标题：`第{ep}集`（独占一行）\n" +
	"- 场次行：`{ep}-{scene}场  {place}\t{日/夜}\t{内/外}`\n" +
	"- 人物行：`人物：A、B、C`（顿号分隔，紧跟场次行）\n" +
	"- 动作/镜头行：以`▲`开头（短句、强视觉、动词优先）\n" +
	"- 台词行：`角色名：台词`（全角冒号\"：\"）；可带括号表演提示（2-4字）\n" +
	"- VO/OS行：`VO：角色名（内容）` 或 `角色名OS：内容`\n" +
	"- 转场标记：仅允许 `【切】` `【转】` `【闪回】` `【闪出】`\n" +
	"- 【闪回】和【闪出】必须成对出现，闪回内容不超过5行"

const rhythmRules = `【节奏硬规则】
- 开头30秒抛冲突，禁止铺垫式开场
- 每10秒至少1个记忆点（冲突推进/新信息/情绪爆发/视觉冲击）
- 每集六要素：30秒勾住→核心冲突→小反转/新信息→爽点/共情点→结尾强钩子
- 结尾钩子四选一：冲突卡点/信息反转/危机升级/情感抉择（落在最后一镜/最后一句）
- 钩子在后续1-2集内回收，同时再埋新钩子`

const prohibitionList = `【禁止事项】
- 禁止大段环境描写（超过2句纯环境即违规）
- 禁止连续OS/VO超过2行（用动作和台词替代内心独白）
- 禁止书面语/文绉绉表达（台词必须口语化短句）
- 禁止与核心目标无关的支线
- 禁止寒暄废话/重复信息
- 禁止使用非标准转场标记`

// ---------- Schema 常量 ----------

const bibleSchema = `{
  "logline": "一句话主线",
  "protagonist": {
    "name": "", "goal": "", "golden_finger": "",
    "bottom_line": "", "tone_tags": []
  },
  "antagonists": [
    {"name": "", "role": "", "threat": "", "tone_tags": []}
  ],
  "supporting": [
    {"name": "", "function": "", "tone_tags": []}
  ],
  "world_rules": ["..."],
  "core_conflicts": ["..."],
  "must_keep_setpieces": ["名场面1", "名场面2"],
  "adaptation_notes": ["改编注意"]
}`

const planSchema = `{
  "ep": 1,
  "core_goal": "本集一句话目标（推进主线）",
  "core_conflict": "本集核心冲突",
  "turn": "本集小反转/新信息",
  "highlight": "本集爽点/共情点",
  "scenes": [{
    "id": "1-1", "place": "", "time": "日/夜", "inout": "内/外",
    "characters": [""],
    "beats": ["按顺序列出镜头/动作/台词节点(5-10条)"]
  }],
  "end_hook": {
    "type": "冲突卡点/信息反转/危机升级/情感抉择",
    "last_image": "最后一镜",
    "last_line": "最后一句台词(如有)"
  }
}`

const judgeSchema = `{
  "scores": {
    "open_hook": 0, "core_conflict": 0, "turn": 0,
    "highlight": 0, "rhythm": 0, "character": 0,
    "shootable": 0, "end_hook": 0, "safety": 0
  },
  "fatal_issues": ["必须改的问题(<=5条)"],
  "fix_list": [{
    "scene": "1-1",
    "line_hint": "引用原句片段",
    "problem": "",
    "fix": "给出可直接替换/新增的台词或动作(尽量短)"
  }],
  "hook_type": "冲突卡点/信息反转/危机升级/情感抉择/无",
  "summary": "一句话评价"
}`

const judgeDimensions = `- open_hook (开头钩子): 前30秒是否抛出冲突，是否勾住观众
- core_conflict (核心冲突): 是否有且仅有1个核心冲突，是否与主线相关
- turn (反转有效): 是否有小反转/新信息，是否出人意料又合理
- highlight (爽点共情): 是否有可视化的爽点或具体困境的共情点
- rhythm (节奏密度): 是否每10秒有记忆点，有无拖沓段落
- character (人物一致): 台词是否有辨识度，人设是否一致
- shootable (可拍性): 场景数/行数是否在范围内，动作是否可执行
- end_hook (结尾钩子强度): 是否有明确钩子类型，是否落在最后一镜/最后一句
- safety (合规风险): 是否有涉政/涉黄/涉赌/涉毒/极端血腥内容`

const judgeFocus = `- 致命问题不超过5条，聚焦最影响质量的问题
- fix_list 中的 fix 字段必须是可直接复制粘贴的替换内容
- 检查行数是否在合理范围内（总行数22-38，台词10-20，舞台指示8-20）
- 检查结尾是否有明确的钩子类型和视觉化呈现
- 检查是否有连续超过2行的OS/VO`

// ---------- Write 阶段专用 ----------

const writeFormatRules = `【格式要求】必须严格按以下结构输出（每行一个段落）：
1) 第X集（独占一行）
2) 场次行：X-N场  场景名	日/夜	内/外
3) 人物：A、B、C（紧跟场次行，顿号分隔）
4) 以"▲"开头的动作/镜头/字幕提示（短句、动词优先、强视觉）
5) 台词行：角色名：台词（全角冒号"："）；可带括号表演提示（2-4字）
6) VO/OS行标注清楚
7) 转场仅用：【切】【转】【闪回】【闪出】`

const writeRhythmRules = `- 开头30秒抛冲突，直接进入核心事件
- 每10秒有记忆点（冲突/信息/情绪/动作）
- 结尾按计划给强钩子（四选一），落在最后一镜或最后一句
- 心理描写必须视觉化：用动作（攥拳/咬唇）、表情特写、镜头语言替代内心独白`

const writeProhibitions = `- 禁止超过2句的纯环境描写
- 禁止连续OS/VO超过2行
- 禁止大段内心独白（OS仅用于简短点题，1-2句）
- 禁止书面语和文绉绉表达
- 禁止寒暄废话、重复已知信息
- 禁止所有角色说话语气相同（必须有辨识度）
- 禁止使用非标准转场标记`

// ---------- Rewrite 阶段专用 ----------

const rewritePrinciples = `- 只改修改清单列出的问题，不要动其他部分
- 保持原有格式不变（集标题/场次行/人物行/▲前缀/全角冒号）
- 替换台词时保持角色语言风格一致
- 如果修改涉及删减行数，确保总行数仍在合理范围内
- 如果修改涉及新增台词/动作，确保不破坏节奏密度`

// ---------- 辅助函数 ----------

// buildFormatRules 从 FormatSpec 构建格式约束文本，空字段回落到通用层默认值
func buildFormatRules(spec models.FormatSpec) string {
	markers := spec.AllowedMarkers
	if len(markers) == 0 {
		markers = []string{"【切】", "【转】", "【闪回】", "【闪出】"}
	}
	epHeader := spec.EpisodeHeader
	if epHeader == "" {
		epHeader = "第{ep}集"
	}
	scenePattern := spec.SceneHeaderPattern
	if scenePattern == "" {
		scenePattern = "{ep}-{scene}场  {place}\t{日/夜}\t{内/外}"
	}
	castPrefix := spec.CastLinePrefix
	if castPrefix == "" {
		castPrefix = "人物："
	}
	stagePrefix := spec.StageDirectionPrefix
	if stagePrefix == "" {
		stagePrefix = "▲"
	}
	dialoguePattern := spec.DialoguePattern
	if dialoguePattern == "" {
		dialoguePattern = "{角色名}：{台词}"
	}

	return strings.Join([]string{
		fmt.Sprintf("- 集标题：`%s`（独占一行）", epHeader),
		fmt.Sprintf("- 场次行：`%s`", scenePattern),
		fmt.Sprintf("- 人物行：以`%s`开头（角色名用顿号分隔）", castPrefix),
		fmt.Sprintf("- 动作/镜头行：以`%s`开头（短句、强视觉、动词优先）", stagePrefix),
		fmt.Sprintf("- 台词行：`%s`（全角冒号“：”）", dialoguePattern),
		"- VO/OS行：`VO：角色名（内容）` 或 `角色名OS：内容`",
		fmt.Sprintf("- 转场标记：仅允许 %s", strings.Join(markers, " ")),
		"- 【闪回】和【闪出】必须成对出现，闪回内容不超过5行",
	}, "\n")
}

// buildTargetSummary 从 StyleTarget 构建结构指标摘要
func buildTargetSummary(target models.StyleTarget) string {
	order := []struct {
		key   string
		label string
	}{
		{models.MetricScenesPerEp, "场景数/集"},
		{models.MetricTotalLinesPerEp, "总行数/集"},
		{models.MetricDialogueLinesPerEp, "台词行/集"},
		{models.MetricStageLinesPerEp, "舞台指示行/集"},
		{models.MetricVoOsLinesPerEp, "VO/OS行/集"},
	}

	var lines []string
	for _, item := range order {
		spec, ok := target[item.key]
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s：建议 %g，范围 [%g, %g]",
			item.label, spec.Suggest, spec.Range[0], spec.Range[1]))
	}
	return strings.Join(lines, "\n")
}

// buildGenreSection 从题材模板构建题材特定约束文本块，无题材时返回空
func buildGenreSection(genre *models.GenreTemplate) string {
	if genre == nil {
		return ""
	}

	genreName := genre.Genre
	if genreName == "" {
		genreName = "未知题材"
	}
	lines := []string{fmt.Sprintf("【题材特定约束（%s）】", genreName)}

	if len(genre.Traits) > 0 {
		lines = append(lines, fmt.Sprintf("- 核心特征：%s", strings.Join(genre.Traits, ", ")))
	}

	if len(genre.ConflictPatterns) > 0 {
		lines = append(lines, "- 冲突模式（优先使用）：")
		for _, cp := range genre.ConflictPatterns {
			lines = append(lines, fmt.Sprintf("  · %s", cp))
		}
	}

	if len(genre.CharacterTypes) > 0 {
		lines = append(lines, "- 角色类型参考：")
		for _, ct := range genre.CharacterTypes {
			lines = append(lines, fmt.Sprintf("  · %s：%s", ct.Role, ct.SpeechStyle))
		}
	}

	if len(genre.IconicScenes) > 0 {
		lines = append(lines, fmt.Sprintf("- 标志性场景（名场面参考）：%s", strings.Join(genre.IconicScenes, "; ")))
	}

	hooks := genre.HookPreferences
	if hooks.Primary != "" || hooks.Secondary != "" || hooks.Notes != "" {
		lines = append(lines, fmt.Sprintf("- 钩子偏好：主力=%s，辅助=%s", hooks.Primary, hooks.Secondary))
		if hooks.Notes != "" {
			lines = append(lines, fmt.Sprintf("  说明：%s", hooks.Notes))
		}
	}

	if len(genre.StyleOverrides) > 0 {
		keys := make([]string, 0, len(genre.StyleOverrides))
		for k := range genre.StyleOverrides {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("- %s：%s", k, genre.StyleOverrides[k]))
		}
	}

	return strings.Join(lines, "\n")
}

// buildHardConstraints 从 EpisodeSpec 构建硬约束文本块
func buildHardConstraints(spec EpisodeSpec) string {
	return strings.Join([]string{
		"【硬约束】",
		fmt.Sprintf("- 单集时长：%d-%d秒", spec.SecondsMin, spec.SecondsMax),
		fmt.Sprintf("- 单集场数：%d-%d场", spec.ScenesRange[0], spec.ScenesRange[1]),
		fmt.Sprintf("- 单集总行数（含动作/台词/提示）：%d-%d行", spec.TotalLinesRange[0], spec.TotalLinesRange[1]),
		"- 开头30秒抛冲突；每10秒至少一个记忆点（冲突/信息/情绪/动作）",
		"- 每集结尾必须强钩子（四类之一），且在后续1-2集内回收并再埋新钩子",
	}, "\n")
}

// mustJSONIndent 序列化为缩进 JSON，中文不转义
func mustJSONIndent(v interface{}) string {
	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "{}"
	}
	return strings.TrimRight(sb.String(), "\n")
}
