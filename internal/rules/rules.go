// internal/rules/rules.go

// Package rules 加载改编规则文本，供 prompt 构建与约束融合使用。
package rules

import (
	"strings"

	"github.com/jubenlab/jubengen/internal/models"
	"github.com/jubenlab/jubengen/internal/textio"
)

// LoadRulesFromFiles 从规则文本文件加载三份改编规则，编码自动识别
func LoadRulesFromFiles(rhythmPath, endHookPath, templatePath string) (models.AdaptRules, error) {
	rhythm, err := textio.ReadTextAuto(rhythmPath)
	if err != nil {
		return models.AdaptRules{}, err
	}
	endHook, err := textio.ReadTextAuto(endHookPath)
	if err != nil {
		return models.AdaptRules{}, err
	}
	template, err := textio.ReadTextAuto(templatePath)
	if err != nil {
		return models.AdaptRules{}, err
	}

	return models.AdaptRules{
		RhythmNotes:       strings.TrimSpace(rhythm),
		EndHookNotes:      strings.TrimSpace(endHook),
		CardTemplateNotes: strings.TrimSpace(template),
	}, nil
}

// RedfruitSafetyNotes 红果向的一般化合规提醒（非平台官方条款复述，仅作写作约束）
func RedfruitSafetyNotes() string {
	return strings.Join([]string{
		"合规约束（通用）：避免涉政、涉黄、涉赌、涉毒、极端暴力血腥、未成年人不当内容。",
		"镜头处理：能用“反应镜头/声音/切黑/道具特写”表达的，不直接描写血腥细节。",
		"价值导向：反派恶行要有后果，主角行动有正当动机，避免宣扬违法犯罪技巧。",
	}, "\n")
}
