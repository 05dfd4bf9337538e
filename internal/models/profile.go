// internal/models/profile.go
package models

// ScriptStyleProfile 单个样例剧本的风格画像
type ScriptStyleProfile struct {
	File                  string         `json:"file"`
	Episodes              int            `json:"episodes"`
	EpisodeRange          [2]int         `json:"episode_range"`
	AvgScenesPerEp        float64        `json:"avg_scenes_per_ep"`
	AvgTotalLinesPerEp    float64        `json:"avg_total_lines_per_ep"`
	AvgDialogueLinesPerEp float64        `json:"avg_dialogue_lines_per_ep"`
	AvgStageLinesPerEp    float64        `json:"avg_stage_lines_per_ep"`
	AvgVoOsLinesPerEp     float64        `json:"avg_vo_os_lines_per_ep"`
	PerEpisode            []EpisodeStats `json:"per_episode"`
}

// CombinedProfile 多个样例合并出的目标区间画像，即 style_profile.json
// 的顶层结构。Target 与 Universal 指向同一目标，供下游按 target 读取。
type CombinedProfile struct {
	Sources       []ScriptStyleProfile `json:"sources"`
	Universal     StyleTarget          `json:"universal"`
	Target        StyleTarget          `json:"target"`
	GenreSpecific *GenreTemplate       `json:"genre_specific,omitempty"`
}
