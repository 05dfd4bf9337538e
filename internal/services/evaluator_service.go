// internal/services/evaluator_service.go
package services

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/jubenlab/jubengen/internal/models"
	"github.com/jubenlab/jubengen/internal/storage"
	"github.com/jubenlab/jubengen/internal/utils"
)

// MetricComparison 单项指标对比结果
type MetricComparison struct {
	Key       string  `json:"key"`
	Name      string  `json:"name"` // 中文指标名
	Generated float64 `json:"generated"`
	Suggest   float64 `json:"suggest"`
	RangeLo   float64 `json:"range_lo"`
	RangeHi   float64 `json:"range_hi"`
	InRange   bool    `json:"in_range"`
}

// EvaluationReport 生成剧本与样例目标的对比报告
type EvaluationReport struct {
	EpisodeCount int                   `json:"episode_count"`
	PerEpisode   []models.EpisodeStats `json:"per_episode"`
	Comparisons  []MetricComparison    `json:"comparisons"`
}

// AllInRange 是否所有指标都在目标区间内
func (r *EvaluationReport) AllInRange() bool {
	for _, c := range r.Comparisons {
		if !c.InRange {
			return false
		}
	}
	return true
}

// 指标键 -> 中文名，报告按此顺序罗列
var evalMetricOrder = []struct {
	key  string
	name string
}{
	{models.MetricScenesPerEp, "场景数/集"},
	{models.MetricTotalLinesPerEp, "总行数/集"},
	{models.MetricDialogueLinesPerEp, "台词行/集"},
	{models.MetricStageLinesPerEp, "舞台指示行/集"},
	{models.MetricVoOsLinesPerEp, "旁白行/集"},
}

// EvaluatorService 样例对比评估：统计生成剧本的结构指标，
// 与样例画像的目标区间逐项对比并输出 Markdown 报告。
type EvaluatorService struct {
	fs     *storage.FileStorage
	logger *utils.Logger
}

// NewEvaluatorService 创建评估服务
func NewEvaluatorService(fs *storage.FileStorage) *EvaluatorService {
	return &EvaluatorService{
		fs:     fs,
		logger: utils.GetLoggerWithName("evaluator"),
	}
}

// EvaluateScript 对比生成剧本（可含多集）与目标区间。
// 统计口径与校验器一致，保证报告与校验结论同源。
func (s *EvaluatorService) EvaluateScript(scriptText string, target models.StyleTarget) *EvaluationReport {
	blocks := parseEpisodeBlocks(strings.Split(scriptText, "\n"))
	if len(blocks) == 0 {
		return &EvaluationReport{}
	}

	nums := make([]int, 0, len(blocks))
	for n := range blocks {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	perEp := make([]models.EpisodeStats, 0, len(nums))
	var sumScenes, sumTotal, sumDialogue, sumStage, sumVoOs int
	for _, n := range nums {
		st := episodeProfileStats(n, blocks[n])
		perEp = append(perEp, st)
		sumScenes += st.SceneCount
		sumTotal += st.TotalLines
		sumDialogue += st.DialogueLines
		sumStage += st.StageLines
		sumVoOs += st.VoOsLines
	}

	count := float64(len(perEp))
	avg := map[string]float64{
		models.MetricScenesPerEp:        float64(sumScenes) / count,
		models.MetricTotalLinesPerEp:    float64(sumTotal) / count,
		models.MetricDialogueLinesPerEp: float64(sumDialogue) / count,
		models.MetricStageLinesPerEp:    float64(sumStage) / count,
		models.MetricVoOsLinesPerEp:     float64(sumVoOs) / count,
	}

	report := &EvaluationReport{
		EpisodeCount: len(perEp),
		PerEpisode:   perEp,
	}
	for _, m := range evalMetricOrder {
		spec, ok := target[m.key]
		if !ok {
			continue
		}
		gen := math.Round(avg[m.key]*100) / 100
		report.Comparisons = append(report.Comparisons, MetricComparison{
			Key:       m.key,
			Name:      m.name,
			Generated: gen,
			Suggest:   spec.Suggest,
			RangeLo:   spec.Range[0],
			RangeHi:   spec.Range[1],
			InRange:   spec.Range[0] <= gen && gen <= spec.Range[1],
		})
	}
	return report
}

// FormatReportMarkdown 将评估报告渲染为 Markdown 表格
func FormatReportMarkdown(report *EvaluationReport) string {
	var b strings.Builder
	b.WriteString("# 样例对比评估报告\n\n")
	fmt.Fprintf(&b, "评估集数：%d\n\n", report.EpisodeCount)
	b.WriteString("| 指标 | 生成值 | 样例均值 | 范围 | 状态 |\n")
	b.WriteString("|------|--------|----------|------|------|\n")

	var outOfRange []MetricComparison
	for _, c := range report.Comparisons {
		status := "✅"
		if !c.InRange {
			status = "⚠️"
			outOfRange = append(outOfRange, c)
		}
		fmt.Fprintf(&b, "| %s | %g | %g | [%g, %g] | %s |\n",
			c.Name, c.Generated, c.Suggest, c.RangeLo, c.RangeHi, status)
	}
	b.WriteString("\n")

	if len(outOfRange) == 0 {
		b.WriteString("所有指标均在合理范围内。\n")
		return b.String()
	}

	b.WriteString("## 超出范围的指标\n\n")
	for _, c := range outOfRange {
		direction := "偏高"
		if c.Generated < c.RangeLo {
			direction = "偏低"
		}
		fmt.Fprintf(&b, "- **%s**：生成值 %g，%s（范围 [%g, %g]）\n",
			c.Name, c.Generated, direction, c.RangeLo, c.RangeHi)
	}
	return b.String()
}

// SaveReport 评估剧本文件并将报告写入 outDir/evaluation_report.md。
// 路径均相对存储根目录。
func (s *EvaluatorService) SaveReport(scriptDir, scriptName string, target models.StyleTarget, outDir string) (*EvaluationReport, error) {
	content, err := s.fs.LoadTextFile(scriptDir, scriptName)
	if err != nil {
		return nil, err
	}

	report := s.EvaluateScript(string(content), target)
	if err := s.fs.SaveTextFile(outDir, "evaluation_report.md", []byte(FormatReportMarkdown(report))); err != nil {
		return nil, err
	}

	s.logger.Infof("评估完成：%d 集，%d 项指标，全部在范围内=%v",
		report.EpisodeCount, len(report.Comparisons), report.AllInRange())
	return report, nil
}
