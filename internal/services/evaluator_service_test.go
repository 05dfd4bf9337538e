// internal/services/evaluator_service_test.go
package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jubenlab/jubengen/internal/models"
)

func TestEvaluateScriptCanonicalAllInRange(t *testing.T) {
	svc := NewEvaluatorService(nil)

	report := svc.EvaluateScript(canonicalEpisode(), models.DefaultStyleTarget())

	require.Equal(t, 1, report.EpisodeCount)
	require.Len(t, report.PerEpisode, 1)
	require.Len(t, report.Comparisons, 5)
	assert.True(t, report.AllInRange())

	byKey := map[string]MetricComparison{}
	for _, c := range report.Comparisons {
		byKey[c.Key] = c
	}
	assert.Equal(t, 2.0, byKey[models.MetricScenesPerEp].Generated)
	assert.Equal(t, 29.0, byKey[models.MetricTotalLinesPerEp].Generated)
	assert.Equal(t, 10.0, byKey[models.MetricDialogueLinesPerEp].Generated)
	assert.Equal(t, 14.0, byKey[models.MetricStageLinesPerEp].Generated)
	assert.Equal(t, 4.0, byKey[models.MetricVoOsLinesPerEp].Generated)
}

func TestEvaluateScriptMultiEpisodeAverages(t *testing.T) {
	svc := NewEvaluatorService(nil)
	// 两集完全相同，均值应等于单集统计
	script := canonicalEpisode() + "\n\n" + strings.Replace(canonicalEpisode(), "第1集", "第2集", 1)

	report := svc.EvaluateScript(script, models.DefaultStyleTarget())

	require.Equal(t, 2, report.EpisodeCount)
	for _, c := range report.Comparisons {
		if c.Key == models.MetricScenesPerEp {
			assert.Equal(t, 2.0, c.Generated)
		}
	}
	// 单集统计按集号排序
	assert.Equal(t, 1, report.PerEpisode[0].Episode)
	assert.Equal(t, 2, report.PerEpisode[1].Episode)
}

func TestEvaluateScriptEmpty(t *testing.T) {
	svc := NewEvaluatorService(nil)

	report := svc.EvaluateScript("没有集标题的自由文本", models.DefaultStyleTarget())

	assert.Equal(t, 0, report.EpisodeCount)
	assert.Empty(t, report.Comparisons)
	assert.True(t, report.AllInRange())
}

func TestEvaluateScriptOutOfRangeFlagged(t *testing.T) {
	svc := NewEvaluatorService(nil)
	// 把总行数区间压到生成值以下，制造偏高
	target := models.DefaultStyleTarget()
	target[models.MetricTotalLinesPerEp] = models.MetricSpec{Suggest: 10, Range: [2]float64{5, 15}}

	report := svc.EvaluateScript(canonicalEpisode(), target)

	assert.False(t, report.AllInRange())
	for _, c := range report.Comparisons {
		if c.Key == models.MetricTotalLinesPerEp {
			assert.False(t, c.InRange)
		} else {
			assert.True(t, c.InRange, c.Key)
		}
	}
}

func TestFormatReportMarkdown(t *testing.T) {
	report := &EvaluationReport{
		EpisodeCount: 3,
		Comparisons: []MetricComparison{
			{Key: models.MetricScenesPerEp, Name: "场景数/集", Generated: 2, Suggest: 1.7, RangeLo: 1, RangeHi: 3, InRange: true},
			{Key: models.MetricTotalLinesPerEp, Name: "总行数/集", Generated: 45, Suggest: 28.1, RangeLo: 22, RangeHi: 38, InRange: false},
			{Key: models.MetricVoOsLinesPerEp, Name: "旁白行/集", Generated: 0, Suggest: 4.34, RangeLo: 1, RangeHi: 6, InRange: false},
		},
	}

	md := FormatReportMarkdown(report)

	assert.Contains(t, md, "# 样例对比评估报告")
	assert.Contains(t, md, "评估集数：3")
	assert.Contains(t, md, "| 场景数/集 | 2 | 1.7 | [1, 3] | ✅ |")
	assert.Contains(t, md, "## 超出范围的指标")
	assert.Contains(t, md, "**总行数/集**：生成值 45，偏高")
	assert.Contains(t, md, "**旁白行/集**：生成值 0，偏低")
}

func TestFormatReportMarkdownAllPass(t *testing.T) {
	report := &EvaluationReport{
		EpisodeCount: 1,
		Comparisons: []MetricComparison{
			{Key: models.MetricScenesPerEp, Name: "场景数/集", Generated: 2, Suggest: 1.7, RangeLo: 1, RangeHi: 3, InRange: true},
		},
	}

	md := FormatReportMarkdown(report)

	assert.Contains(t, md, "所有指标均在合理范围内。")
	assert.NotContains(t, md, "超出范围")
}
