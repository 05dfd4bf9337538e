// internal/services/validator_service_test.go
package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jubenlab/jubengen/internal/models"
)

// canonicalEpisode 构造一份各项指标均落在默认区间内的规范单集。
// 标题 1 + 场次 2 + 人物 2 + 舞台 14 + 台词 10（含 4 条 VO）= 29 个非空行。
func canonicalEpisode() string {
	lines := []string{
		"第1集",
		"",
		"1-1场  天台  日  内",
		"人物：林峰、苏晚",
		"▲天台边缘，林峰背对镜头站着，风掀起他的衣角。",
		"▲苏晚冲上天台，脚步声急促。",
		"▲林峰缓缓转身，手里攥着一份检查报告。",
		"▲特写：报告上「晚期」两个字被红笔圈出。",
		"▲苏晚愣在原地，眼眶瞬间红了。",
		"▲林峰把报告折好，塞进口袋。",
		"▲远处传来救护车的鸣笛声。",
		"苏晚：你疯了吗？站在这里做什么！",
		"林峰：我只是想看看，这座城市没有我会不会更好。",
		"林峰VO：她永远不会知道，我回来是为了什么。",
		"苏晚：跟我回去，手术的事还有得谈。",
		"林峰VO：手术？我的时间早就不够了。",
		"",
		"1-2场  病房走廊  夜  内",
		"人物：林峰、陈医生",
		"▲走廊灯光惨白，林峰靠墙坐在长椅上。",
		"▲陈医生拿着病历夹走过来，欲言又止。",
		"▲林峰抬头，两人目光相接。",
		"▲陈医生在他身边坐下，把病历夹递过去。",
		"▲林峰翻开，手指停在某一页。",
		"▲特写：化验单上的数字触目惊心。",
		"▲林峰合上病历夹，笑了一下。",
		"陈医生：结果出来了，比预想的要快。",
		"林峰：多久？",
		"陈医生VO：三个月，也可能更短，这话我说不出口。",
		"林峰：行，够用了。",
		"林峰VO：三个月，刚好够我把欠的债一笔笔讨回来。",
	}
	return strings.Join(lines, "\n")
}

func TestValidateEpisodeCanonicalPasses(t *testing.T) {
	result := ValidateEpisode(canonicalEpisode(), nil)

	require.True(t, result.Passed)
	assert.Empty(t, result.Issues)
	assert.Equal(t, 1, result.Episode)
	assert.Equal(t, 2, result.Stats.SceneCount)
	assert.Equal(t, 29, result.Stats.TotalLines)
	assert.Equal(t, 10, result.Stats.DialogueLines)
	assert.Equal(t, 14, result.Stats.StageLines)
	assert.Equal(t, 4, result.Stats.VoOsLines)
}

func TestValidateEpisodeMissingTitle(t *testing.T) {
	// 去掉集标题行，其余保持规范
	text := strings.Join(strings.Split(canonicalEpisode(), "\n")[1:], "\n")

	result := ValidateEpisode(text, nil)

	require.False(t, result.Passed)
	require.Len(t, result.Issues, 1)
	iss := result.Issues[0]
	assert.Equal(t, models.IssueTypeFormat, iss.Type)
	assert.Equal(t, models.IssueLevelError, iss.Level)
	assert.Nil(t, iss.LineNum)
	assert.Equal(t, "缺少集标题行（格式：第N集）", iss.Description)
}

func TestValidateEpisodeHalfWidthColon(t *testing.T) {
	text := strings.Replace(canonicalEpisode(),
		"苏晚：你疯了吗？站在这里做什么！",
		"苏晚:你疯了吗？站在这里做什么！", 1)

	result := ValidateEpisode(text, nil)

	require.False(t, result.Passed)
	var errors []models.ValidationIssue
	for _, iss := range result.Issues {
		if iss.Level == models.IssueLevelError {
			errors = append(errors, iss)
		}
	}
	require.Len(t, errors, 1)
	require.NotNil(t, errors[0].LineNum)
	assert.Equal(t, 12, *errors[0].LineNum)
	assert.Contains(t, errors[0].Description, "台词行应使用全角冒号「：」")
	assert.True(t, strings.HasSuffix(errors[0].Description, "..."))

	// 半角冒号行仍按台词统计
	assert.Equal(t, 10, result.Stats.DialogueLines)
}

func TestValidateEpisodeLineCountOutOfRange(t *testing.T) {
	lines := []string{
		"第3集",
		"3-1场  仓库  夜  内",
		"人物：林峰",
	}
	for i := 0; i < 8; i++ {
		lines = append(lines, "▲林峰在货架间穿行。")
	}
	for i := 0; i < 4; i++ {
		lines = append(lines, "林峰：有人吗？")
	}
	text := strings.Join(lines, "\n") // 非空行共 15

	result := ValidateEpisode(text, nil)

	require.False(t, result.Passed)
	descriptions := make([]string, 0, len(result.Issues))
	for _, iss := range result.Issues {
		if iss.Type == models.IssueTypeLineCount && iss.Level == models.IssueLevelError {
			descriptions = append(descriptions, iss.Description)
		}
	}
	assert.Contains(t, descriptions, "总行数=15，超出允许范围 [22, 38]（建议值 28.1）")
}

func TestValidateEpisodeDeterministic(t *testing.T) {
	text := canonicalEpisode()
	first := ValidateEpisode(text, nil)
	second := ValidateEpisode(text, nil)
	require.Equal(t, first, second)
}

func TestValidateEpisodeStatsPartition(t *testing.T) {
	inputs := []string{
		canonicalEpisode(),
		"第2集\n2-1场  街头  日  外\n人物：甲、乙\n▲甲走过。\n甲：站住。\n乙:等等我\n不明格式的行",
		"随便一段没有任何标记的文字\n第二行",
		"",
	}
	for _, text := range inputs {
		r := ValidateEpisode(text, nil)
		assert.LessOrEqual(t, r.Stats.DialogueLines+r.Stats.StageLines, r.Stats.TotalLines)
		assert.LessOrEqual(t, r.Stats.VoOsLines, r.Stats.DialogueLines)
	}
}

func TestClassifyLine(t *testing.T) {
	cases := []struct {
		line string
		want models.LineKind
	}{
		{"第12集", models.LineKindEpTitle},
		{"  第3集  ", models.LineKindEpTitle},
		{"1-2场  病房走廊\t夜\t内", models.LineKindScene},
		{"3-1场  废弃工厂 日 外", models.LineKindScene},
		{"人物：林峰、苏晚", models.LineKindCast},
		{"▲林峰推门而入。", models.LineKindStage},
		{"【切】", models.LineKindTransition},
		{"【黑屏】", models.LineKindTransition},
		{"林峰：你来了。", models.LineKindDialogue},
		{"林峰VO：他们都不知道真相。", models.LineKindDialogue},
		{"VO：十年前的那个雨夜。", models.LineKindDialogue},
		{"画外音（OS）：谁在那里？", models.LineKindDialogue},
		{"林峰:半角冒号的台词", models.LineKindDialogue},
		{"", models.LineKindBlank},
		{"   ", models.LineKindBlank},
		{"完全无法识别的一行", models.LineKindUnknown},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ClassifyLine(c.line), "line=%q", c.line)
	}
}

func TestVOOSMarkerBoundary(t *testing.T) {
	// 「VO」紧贴中文字符且后面不是全角冒号时，不算 VO/OS 标记
	assert.False(t, hasVOOSMarker("林峰VO（急促）：什么？"))
	// 括号隔开即可
	assert.True(t, hasVOOSMarker("画外音（VO）：十年了。"))
	// 直接跟全角冒号
	assert.True(t, hasVOOSMarker("林峰VO：十年了。"))
	assert.True(t, hasVOOSMarker("旁白OS：车祸现场。"))
	// 普通英文单词中的 os 不触发
	assert.False(t, hasVOOSMarker("他打开了iOS系统设置"))
}

func TestValidateEpisodeTransitionAndCastWarnings(t *testing.T) {
	text := strings.Replace(canonicalEpisode(), "人物：林峰、苏晚", "人物：林峰,苏晚", 1) +
		"\n【黑屏】"

	result := ValidateEpisode(text, nil)

	var descs []string
	for _, iss := range result.Issues {
		if iss.Level == models.IssueLevelWarning {
			descs = append(descs, iss.Description)
		}
	}
	assert.Contains(t, descs, "人物行建议用顿号「、」分隔，而非逗号：人物：林峰,苏晚")
	assert.Contains(t, descs, "非标准转场标记：【黑屏】，允许的有：【切】, 【转】, 【闪回】, 【闪出】")
	// 警告不影响通过判定
	assert.True(t, result.Passed)
}

func TestValidateEpisodeExpectCastAfterScene(t *testing.T) {
	text := "第1集\n1-1场  天台  日  内\n不是人物行的未知内容\n另一个未知行"

	result := ValidateEpisode(text, nil)

	var descs []string
	for _, iss := range result.Issues {
		if iss.Type == models.IssueTypeFormat && iss.Level == models.IssueLevelWarning {
			descs = append(descs, iss.Description)
		}
	}
	assert.Contains(t, descs, "场次行后建议紧跟人物行，实际为：不是人物行的未知内容")
	assert.Contains(t, descs, "无法识别的行格式：另一个未知行")
}

func TestValidateScriptSplitsEpisodes(t *testing.T) {
	ep2 := strings.Replace(canonicalEpisode(), "第1集", "第2集", 1)
	ep2 = strings.ReplaceAll(ep2, "1-1场", "2-1场")
	ep2 = strings.ReplaceAll(ep2, "1-2场", "2-2场")
	text := canonicalEpisode() + "\n\n" + ep2

	results := ValidateScript(text, nil)

	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Episode)
	assert.Equal(t, 2, results[1].Episode)
	assert.True(t, results[0].Passed)
	assert.True(t, results[1].Passed)
}

func TestValidateScriptNoTitleFallsBackToSingle(t *testing.T) {
	results := ValidateScript("没有集标题的整段文本\n第二行", nil)
	require.Len(t, results, 1)
	assert.False(t, results[0].Passed)
}

func TestFormatReport(t *testing.T) {
	ep2 := "第2集\n随便写的东西"
	results := ValidateScript(canonicalEpisode()+"\n\n"+ep2, nil)
	report := FormatReport(results)

	assert.Contains(t, report, "== 第1集 PASS ==")
	assert.Contains(t, report, "== 第2集 FAIL ==")
	assert.Contains(t, report, "  无问题")
	assert.Contains(t, report, "汇总：2 集，存在未通过的集")
}

func TestLoadStyleTarget(t *testing.T) {
	dir := t.TempDir()

	// 文件不存在 → 默认区间
	target, err := LoadStyleTarget(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, models.DefaultStyleTarget(), target)

	// 有效档案 → 使用其中的 target
	profile := `{"target": {"total_lines_per_ep": {"suggest": 30, "range": [20, 40]}}}`
	path := filepath.Join(dir, "style_profile.json")
	require.NoError(t, os.WriteFile(path, []byte(profile), 0644))

	target, err = LoadStyleTarget(path)
	require.NoError(t, err)
	require.Contains(t, target, models.MetricTotalLinesPerEp)
	assert.Equal(t, 30.0, target[models.MetricTotalLinesPerEp].Suggest)

	// 损坏的 JSON → 报错
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0644))
	_, err = LoadStyleTarget(path)
	assert.Error(t, err)
}
