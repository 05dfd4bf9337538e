// internal/models/bible.go
package models

// Protagonist 主角设定
type Protagonist struct {
	Name         string   `json:"name"`
	Goal         string   `json:"goal"`
	GoldenFinger string   `json:"golden_finger"`
	BottomLine   string   `json:"bottom_line"`
	ToneTags     []string `json:"tone_tags"`
}

// Antagonist 反派设定
type Antagonist struct {
	Name     string   `json:"name"`
	Role     string   `json:"role"`
	Threat   string   `json:"threat"`
	ToneTags []string `json:"tone_tags"`
}

// SupportingRole 配角设定
type SupportingRole struct {
	Name     string   `json:"name"`
	Function string   `json:"function"`
	ToneTags []string `json:"tone_tags"`
}

// StoryBible 改编用剧情圣经，从小说片段提取
type StoryBible struct {
	Logline           string           `json:"logline"`
	Protagonist       Protagonist      `json:"protagonist"`
	Antagonists       []Antagonist     `json:"antagonists"`
	Supporting        []SupportingRole `json:"supporting"`
	WorldRules        []string         `json:"world_rules"`
	CoreConflicts     []string         `json:"core_conflicts"`
	MustKeepSetpieces []string         `json:"must_keep_setpieces"`
	AdaptationNotes   []string         `json:"adaptation_notes"`
}

// PlanScene 节拍表中的单场设定
type PlanScene struct {
	ID         string   `json:"id"`
	Place      string   `json:"place"`
	Time       string   `json:"time"`
	InOut      string   `json:"inout"`
	Characters []string `json:"characters"`
	Beats      []string `json:"beats"`
}

// EndHook 单集结尾钩子设定
type EndHook struct {
	Type      string `json:"type"`
	LastImage string `json:"last_image"`
	LastLine  string `json:"last_line"`
}

// EpisodePlan 分集节拍表中的单集规划
type EpisodePlan struct {
	Ep           int         `json:"ep"`
	CoreGoal     string      `json:"core_goal"`
	CoreConflict string      `json:"core_conflict"`
	Turn         string      `json:"turn"`
	Highlight    string      `json:"highlight"`
	Scenes       []PlanScene `json:"scenes"`
	EndHook      EndHook     `json:"end_hook"`
}

// FindEpisodePlan 在节拍表中查找指定集号的规划，未找到返回 nil
func FindEpisodePlan(plan []EpisodePlan, epNum int) *EpisodePlan {
	for i := range plan {
		if plan[i].Ep == epNum {
			return &plan[i]
		}
	}
	return nil
}
