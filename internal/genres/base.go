// internal/genres/base.go
package genres

import (
	"github.com/jubenlab/jubengen/internal/models"
)

// DefaultFormatSpec 通用层格式规范
func DefaultFormatSpec() models.FormatSpec {
	return models.FormatSpec{
		EpisodeHeader:        "第{ep}集",
		SceneHeaderPattern:   "{ep}-{scene}场  {place}\t{日/夜}\t{内/外}",
		CastLinePrefix:       "人物：",
		StageDirectionPrefix: "▲",
		DialoguePattern:      "{角色名}：{台词}",
		AllowedMarkers:       []string{"【切】", "【转】", "【闪回】", "【闪出】"},
	}
}

// RhythmRules 节奏硬规则
var RhythmRules = []string{
	"开头30秒抛冲突，禁止铺垫式开场",
	"每10秒至少1个记忆点（冲突推进/新信息/情绪爆发/视觉冲击）",
	"每集六要素：30秒勾住→核心冲突→小反转/新信息→爽点/共情点→结尾强钩子",
	"结尾钩子四选一：冲突卡点/信息反转/危机升级/情感抉择（落在最后一镜/最后一句）",
	"钩子在后续1-2集内回收，同时再埋新钩子",
}

// HookTypes 结尾钩子类型
var HookTypes = []string{"冲突卡点", "信息反转", "危机升级", "情感抉择"}

// Prohibitions 禁止事项
var Prohibitions = []string{
	"禁止大段环境描写（超过2句纯环境即违规）",
	"禁止连续OS/VO超过2行（用动作和台词替代内心独白）",
	"禁止书面语/文绉绉表达（台词必须口语化短句）",
	"禁止与核心目标无关的支线",
	"禁止寒暄废话/重复信息",
	"禁止使用非标准转场标记",
}

// ScoringDimensions 评分维度（通用，各题材共享）
var ScoringDimensions = models.ReviewDimensions

// SafetyNotes 合规约束
var SafetyNotes = []string{
	"避免涉政、涉黄、涉赌、涉毒、极端暴力血腥、未成年人不当内容",
	"镜头处理：能用'反应镜头/声音/切黑/道具特写'表达的，不直接描写血腥细节",
	"价值导向：反派恶行要有后果，主角行动有正当动机，避免宣扬违法犯罪技巧",
}

// BaseLayer 通用层规则汇总，供题材查询接口返回
type BaseLayer struct {
	FormatSpec        models.FormatSpec `json:"format_spec"`
	RhythmRules       []string          `json:"rhythm_rules"`
	HookTypes         []string          `json:"hook_types"`
	Prohibitions      []string          `json:"prohibitions"`
	ScoringDimensions []string          `json:"scoring_dimensions"`
	SafetyNotes       []string          `json:"safety_notes"`
}

// Base 返回通用层规则汇总
func Base() BaseLayer {
	return BaseLayer{
		FormatSpec:        DefaultFormatSpec(),
		RhythmRules:       RhythmRules,
		HookTypes:         HookTypes,
		Prohibitions:      Prohibitions,
		ScoringDimensions: ScoringDimensions,
		SafetyNotes:       SafetyNotes,
	}
}
