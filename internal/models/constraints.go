// internal/models/constraints.go
package models

// FormatSpec 剧本格式规范
type FormatSpec struct {
	EpisodeHeader        string   `json:"episode_header"`
	SceneHeaderPattern   string   `json:"scene_header_pattern"`
	CastLinePrefix       string   `json:"cast_line_prefix"`
	StageDirectionPrefix string   `json:"stage_direction_prefix"`
	DialoguePattern      string   `json:"dialogue_pattern"`
	AllowedMarkers       []string `json:"allowed_markers"`
}

// AdaptRules 三份改编规则文本：节奏注意事项、结尾钩子方法、卡点模板
type AdaptRules struct {
	RhythmNotes       string `json:"rhythm_notes"`
	EndHookNotes      string `json:"end_hook_notes"`
	CardTemplateNotes string `json:"card_template_notes"`
}

// FusionPolicy 约束融合策略说明
type FusionPolicy struct {
	Numeric string `json:"numeric"`
	Rhythm  string `json:"rhythm"`
	Format  string `json:"format"`
}

// FusedConstraints 融合后的可执行约束：样例画像 + 格式规范 + 规则文本。
// 写入 constraints.fused.json，供 prompt 构建与 system prompt 注入使用。
type FusedConstraints struct {
	StyleTarget  StyleTarget    `json:"style_target"`
	FormatSpec   FormatSpec     `json:"format_spec"`
	RulesText    AdaptRules     `json:"rules_text"`
	FusionPolicy FusionPolicy   `json:"fusion_policy"`
	Genre        *GenreTemplate `json:"genre,omitempty"`
}
