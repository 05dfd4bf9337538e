// internal/services/profile_service.go
package services

import (
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/jubenlab/jubengen/internal/errors"
	"github.com/jubenlab/jubengen/internal/genres"
	"github.com/jubenlab/jubengen/internal/models"
	"github.com/jubenlab/jubengen/internal/textio"
	"github.com/jubenlab/jubengen/internal/utils"
)

// 画像统计沿用校验器的 ClassifyLine，保证画像产出的目标区间
// 与校验时的统计口径一致。

// 各项指标的通用硬边界，观测区间不会扩出这个范围
var universalBands = map[string][2]float64{
	models.MetricScenesPerEp:        {1, 3},
	models.MetricTotalLinesPerEp:    {22, 38},
	models.MetricDialogueLinesPerEp: {10, 20},
	models.MetricStageLinesPerEp:    {8, 20},
	models.MetricVoOsLinesPerEp:     {0, 6},
}

// 画像切分用的集标题：前缀匹配即可，标题后可以带集名
var reEpHeading = regexp.MustCompile(`^第(\d+)集`)

// ProfileService 从样例剧本构建风格画像与目标区间
type ProfileService struct {
	logger *utils.Logger
}

// NewProfileService 创建风格画像服务
func NewProfileService() *ProfileService {
	return &ProfileService{logger: utils.GetLoggerWithName("profile")}
}

// parseEpisodeBlocks 按"第N集"标题把剧本切成分集行块。
// 标题行本身不计入行块，首个标题之前的内容丢弃。
func parseEpisodeBlocks(lines []string) map[int][]string {
	blocks := make(map[int][]string)
	current := -1

	for _, line := range lines {
		m := reEpHeading.FindStringSubmatch(strings.TrimSpace(line))
		if m != nil {
			num, err := strconv.Atoi(m[1])
			if err == nil {
				current = num
				if _, ok := blocks[current]; !ok {
					blocks[current] = []string{}
				}
				continue
			}
		}
		if current < 0 {
			continue
		}
		blocks[current] = append(blocks[current], line)
	}
	return blocks
}

// episodeProfileStats 统计单集行数分布
func episodeProfileStats(ep int, lines []string) models.EpisodeStats {
	stats := models.EpisodeStats{Episode: ep}
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		stats.TotalLines++
		switch ClassifyLine(line) {
		case models.LineKindScene:
			stats.SceneCount++
		case models.LineKindStage:
			stats.StageLines++
		case models.LineKindDialogue:
			stats.DialogueLines++
			if isVOOSLine(line) {
				stats.VoOsLines++
			}
		}
	}
	return stats
}

// BuildStyleProfile 读取单个样例剧本并统计风格画像
func (s *ProfileService) BuildStyleProfile(path string) (*models.ScriptStyleProfile, error) {
	text, err := textio.ReadTextAuto(path)
	if err != nil {
		return nil, err
	}

	blocks := parseEpisodeBlocks(strings.Split(text, "\n"))
	if len(blocks) == 0 {
		return nil, apperrors.NewValidationError(fmt.Sprintf("未识别到“第N集”标记：%s", path), nil)
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
	return &models.ScriptStyleProfile{
		File:                  filepath.Base(path),
		Episodes:              len(perEp),
		EpisodeRange:          [2]int{nums[0], nums[len(nums)-1]},
		AvgScenesPerEp:        float64(sumScenes) / count,
		AvgTotalLinesPerEp:    float64(sumTotal) / count,
		AvgDialogueLinesPerEp: float64(sumDialogue) / count,
		AvgStageLinesPerEp:    float64(sumStage) / count,
		AvgVoOsLinesPerEp:     float64(sumVoOs) / count,
		PerEpisode:            perEp,
	}, nil
}

// BuildCombinedProfile 把多个样例剧本合并成目标区间画像。
// genre 非空时附加题材层信息（中文名或英文标识均可）。
// 不提供任何样例时使用内置默认目标区间。
func (s *ProfileService) BuildCombinedProfile(paths []string, genre string) (*models.CombinedProfile, error) {
	combined := &models.CombinedProfile{}

	if len(paths) == 0 {
		s.logger.Warnf("未提供样例剧本，使用内置默认目标区间")
		target := models.DefaultStyleTarget()
		combined.Universal = target
		combined.Target = target
	} else {
		profiles := make([]models.ScriptStyleProfile, 0, len(paths))
		for _, p := range paths {
			prof, err := s.BuildStyleProfile(p)
			if err != nil {
				return nil, err
			}
			profiles = append(profiles, *prof)
		}

		universal := combineTargets(profiles)
		combined.Sources = profiles
		combined.Universal = universal
		combined.Target = universal

		totalEps := 0
		for _, p := range profiles {
			totalEps += p.Episodes
		}
		s.logger.Infof("风格画像构建完成：%d 个样例，共 %d 集", len(profiles), totalEps)
	}

	if genre != "" {
		tpl, err := genres.Load(genre)
		if err != nil {
			return nil, err
		}
		combined.GenreSpecific = tpl
	}
	return combined, nil
}

// combineTargets 对每项指标求目标区间：建议值取各样例均值的均值，
// 区间取全部单集观测值向外扩 10% 后收敛到通用硬边界
func combineTargets(profiles []models.ScriptStyleProfile) models.StyleTarget {
	type metricInput struct {
		avgs []float64
		vals []float64
	}
	inputs := map[string]*metricInput{
		models.MetricScenesPerEp:        {},
		models.MetricTotalLinesPerEp:    {},
		models.MetricDialogueLinesPerEp: {},
		models.MetricStageLinesPerEp:    {},
		models.MetricVoOsLinesPerEp:     {},
	}

	for _, p := range profiles {
		inputs[models.MetricScenesPerEp].avgs = append(inputs[models.MetricScenesPerEp].avgs, p.AvgScenesPerEp)
		inputs[models.MetricTotalLinesPerEp].avgs = append(inputs[models.MetricTotalLinesPerEp].avgs, p.AvgTotalLinesPerEp)
		inputs[models.MetricDialogueLinesPerEp].avgs = append(inputs[models.MetricDialogueLinesPerEp].avgs, p.AvgDialogueLinesPerEp)
		inputs[models.MetricStageLinesPerEp].avgs = append(inputs[models.MetricStageLinesPerEp].avgs, p.AvgStageLinesPerEp)
		inputs[models.MetricVoOsLinesPerEp].avgs = append(inputs[models.MetricVoOsLinesPerEp].avgs, p.AvgVoOsLinesPerEp)

		for _, e := range p.PerEpisode {
			inputs[models.MetricScenesPerEp].vals = append(inputs[models.MetricScenesPerEp].vals, float64(e.SceneCount))
			inputs[models.MetricTotalLinesPerEp].vals = append(inputs[models.MetricTotalLinesPerEp].vals, float64(e.TotalLines))
			inputs[models.MetricDialogueLinesPerEp].vals = append(inputs[models.MetricDialogueLinesPerEp].vals, float64(e.DialogueLines))
			inputs[models.MetricStageLinesPerEp].vals = append(inputs[models.MetricStageLinesPerEp].vals, float64(e.StageLines))
			inputs[models.MetricVoOsLinesPerEp].vals = append(inputs[models.MetricVoOsLinesPerEp].vals, float64(e.VoOsLines))
		}
	}

	target := models.StyleTarget{}
	for key, in := range inputs {
		target[key] = buildMetricSpec(in.avgs, in.vals, universalBands[key])
	}
	return target
}

// buildMetricSpec 计算单项指标的建议值与允许区间
func buildMetricSpec(sourceAvgs, episodeValues []float64, band [2]float64) models.MetricSpec {
	suggest := math.Round(mean(sourceAvgs)*100) / 100

	lo, hi := minMax(episodeValues)
	span := hi - lo
	lo = math.Floor(lo - 0.1*span)
	hi = math.Ceil(hi + 0.1*span)
	if lo < band[0] {
		lo = band[0]
	}
	if hi > band[1] {
		hi = band[1]
	}
	if lo > hi {
		lo, hi = band[0], band[1]
	}
	return models.MetricSpec{Suggest: suggest, Range: [2]float64{lo, hi}}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func minMax(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	lo, hi := xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	return lo, hi
}
