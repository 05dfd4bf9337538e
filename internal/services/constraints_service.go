// internal/services/constraints_service.go
package services

import (
	"fmt"
	"strings"

	"github.com/jubenlab/jubengen/internal/genres"
	"github.com/jubenlab/jubengen/internal/models"
	"github.com/jubenlab/jubengen/internal/storage"
	"github.com/jubenlab/jubengen/internal/utils"
)

// ConstraintsOptions 约束融合的输入材料
type ConstraintsOptions struct {
	SampleScripts []string         // 样例剧本路径，可为空（使用内置默认区间）
	Rules         models.AdaptRules
	Genre         string // 题材标识（中英文均可），为空则不注入题材层
}

// ConstraintsService 融合样例画像 + 格式规范 + 规则文本，
// 生成可执行约束 JSON 与对应的风格指南 Markdown。
type ConstraintsService struct {
	profile *ProfileService
	fs      *storage.FileStorage
	logger  *utils.Logger
}

// NewConstraintsService 创建约束融合服务
func NewConstraintsService(profile *ProfileService, fs *storage.FileStorage) *ConstraintsService {
	return &ConstraintsService{
		profile: profile,
		fs:      fs,
		logger:  utils.GetLoggerWithName("constraints"),
	}
}

// BuildConstraints 融合样例剧本与规则文本，生成可执行约束
func (s *ConstraintsService) BuildConstraints(opts ConstraintsOptions) (*models.FusedConstraints, error) {
	profile, err := s.profile.BuildCombinedProfile(opts.SampleScripts, opts.Genre)
	if err != nil {
		return nil, err
	}

	fused := &models.FusedConstraints{
		StyleTarget: profile.Target,
		FormatSpec:  genres.DefaultFormatSpec(),
		RulesText:   opts.Rules,
		FusionPolicy: models.FusionPolicy{
			Numeric: "两套样例取均值做suggest；range取适配1-2分钟/集的可控区间（可拍+高密度）。",
			Rhythm:  "以《节奏适配关键注意事项》为硬规则；冲突密度与结尾钩子必须满足。",
			Format:  "以两份样例共有格式为准：第N集/场次/人物/▲/角色：台词。",
		},
		Genre: profile.GenreSpecific,
	}
	return fused, nil
}

// SaveConstraints 构建约束并落盘：JSON 供 prompt 构建读取，
// Markdown 供人工查阅。outDir 相对存储根目录。
func (s *ConstraintsService) SaveConstraints(opts ConstraintsOptions, outDir, jsonName, mdName string) (*models.FusedConstraints, error) {
	fused, err := s.BuildConstraints(opts)
	if err != nil {
		return nil, err
	}

	if err := s.fs.SaveJSONFile(outDir, jsonName, fused); err != nil {
		return nil, err
	}
	if err := s.fs.SaveTextFile(outDir, mdName, []byte(StyleGuideMarkdown(fused))); err != nil {
		return nil, err
	}

	s.logger.Infof("约束融合完成：%s/%s + %s/%s", outDir, jsonName, outDir, mdName)
	return fused, nil
}

// StyleGuideMarkdown 将融合约束渲染为人类可读的风格指南
func StyleGuideMarkdown(c *models.FusedConstraints) string {
	var b strings.Builder
	b.WriteString("# 融合风格约束（基于两套优秀样例）\n\n")

	b.WriteString("## 结构指标（1-2分钟/集，通用层）\n")
	for _, key := range []string{
		models.MetricScenesPerEp,
		models.MetricTotalLinesPerEp,
		models.MetricDialogueLinesPerEp,
		models.MetricStageLinesPerEp,
		models.MetricVoOsLinesPerEp,
	} {
		if spec, ok := c.StyleTarget[key]; ok {
			fmt.Fprintf(&b, "- **%s**：建议 %g，范围 [%g, %g]\n",
				key, spec.Suggest, spec.Range[0], spec.Range[1])
		}
	}

	fmt2 := c.FormatSpec
	b.WriteString("\n## 格式规范（必须可被脚本校验）\n")
	fmt.Fprintf(&b, "- 集标题：`%s`\n", fmt2.EpisodeHeader)
	fmt.Fprintf(&b, "- 场次行：`%s`（用 Tab 或空格分隔也可，但字段顺序别乱）\n", fmt2.SceneHeaderPattern)
	fmt.Fprintf(&b, "- 人物行前缀：`%s`（用顿号“、”分隔）\n", fmt2.CastLinePrefix)
	fmt.Fprintf(&b, "- 动作/镜头行前缀：`%s`（短句、强视觉）\n", fmt2.StageDirectionPrefix)
	fmt.Fprintf(&b, "- 台词行：`%s`（中文全角冒号“：”）\n", fmt2.DialoguePattern)
	fmt.Fprintf(&b, "- 允许的转场标记：%s\n", strings.Join(fmt2.AllowedMarkers, " "))

	b.WriteString("\n## 节奏硬规则（来自注意事项）\n")
	for _, rule := range genres.RhythmRules {
		fmt.Fprintf(&b, "- %s\n", rule)
	}

	b.WriteString("\n## 结尾钩子四选一（必须明确到“最后一镜/最后一句”）\n")
	fmt.Fprintf(&b, "- %s\n", strings.Join(genres.HookTypes, " / "))

	if g := c.Genre; g != nil {
		fmt.Fprintf(&b, "\n## 题材层约束（%s）\n\n", g.Genre)
		fmt.Fprintf(&b, "- **核心特征**：%s\n", strings.Join(g.Traits, "、"))
		fmt.Fprintf(&b, "- **冲突模式**：%s\n", strings.Join(g.ConflictPatterns, "；"))
		fmt.Fprintf(&b, "- **标志性场景**：%s\n", strings.Join(g.IconicScenes, "；"))
		if g.HookPreferences.Primary != "" {
			fmt.Fprintf(&b, "- **主力钩子**：%s（辅助：%s）\n",
				g.HookPreferences.Primary, g.HookPreferences.Secondary)
			if g.HookPreferences.Notes != "" {
				fmt.Fprintf(&b, "- **钩子说明**：%s\n", g.HookPreferences.Notes)
			}
		}
		for key, val := range g.StyleOverrides {
			fmt.Fprintf(&b, "- **%s**：%s\n", key, val)
		}
	}

	return b.String()
}
