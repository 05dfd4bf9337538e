// internal/models/review.go
package models

import (
	"encoding/json"
	"math"
)

// ReviewDimensions 九个评分维度的固定顺序
var ReviewDimensions = []string{
	"open_hook", "core_conflict", "turn", "highlight",
	"rhythm", "character", "shootable", "end_hook", "safety",
}

// DimensionScores 审稿评分的九个维度（每项 0-5 分）。
// 指针字段为 nil 表示该维度缺失，不参与 overall 计算。
type DimensionScores struct {
	OpenHook     *float64 `json:"open_hook,omitempty"`
	CoreConflict *float64 `json:"core_conflict,omitempty"`
	Turn         *float64 `json:"turn,omitempty"`
	Highlight    *float64 `json:"highlight,omitempty"`
	Rhythm       *float64 `json:"rhythm,omitempty"`
	Character    *float64 `json:"character,omitempty"`
	Shootable    *float64 `json:"shootable,omitempty"`
	EndHook      *float64 `json:"end_hook,omitempty"`
	Safety       *float64 `json:"safety,omitempty"`
	Overall      float64  `json:"overall"`
}

// UnmarshalJSON 宽松解码评分对象：值不是数字的维度视为缺失，
// 不让单个坏维度毁掉整份评分。
func (s *DimensionScores) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	num := func(key string) *float64 {
		v, ok := raw[key]
		if !ok {
			return nil
		}
		var f float64
		if err := json.Unmarshal(v, &f); err != nil {
			return nil
		}
		return &f
	}

	s.OpenHook = num("open_hook")
	s.CoreConflict = num("core_conflict")
	s.Turn = num("turn")
	s.Highlight = num("highlight")
	s.Rhythm = num("rhythm")
	s.Character = num("character")
	s.Shootable = num("shootable")
	s.EndHook = num("end_hook")
	s.Safety = num("safety")

	s.Overall = 0
	if p := num("overall"); p != nil {
		s.Overall = *p
	}
	return nil
}

// present 按固定顺序返回已给出的维度分数
func (s *DimensionScores) present() []float64 {
	var out []float64
	for _, p := range []*float64{
		s.OpenHook, s.CoreConflict, s.Turn, s.Highlight,
		s.Rhythm, s.Character, s.Shootable, s.EndHook, s.Safety,
	} {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}

// ComputeOverall 计算总分：九维度均值映射到 0-100（原始 0-5 × 20），
// 保留一位小数。无任何维度时为 0。
func (s *DimensionScores) ComputeOverall() float64 {
	vals := s.present()
	if len(vals) == 0 {
		s.Overall = 0
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	avg := sum / float64(len(vals))
	s.Overall = math.Round(avg*20*10) / 10
	return s.Overall
}

// FixItem 可执行修改清单中的单条目
type FixItem struct {
	Scene    string `json:"scene"`
	LineHint string `json:"line_hint"`
	Problem  string `json:"problem"`
	Fix      string `json:"fix"`
}

// EpisodeReview 单集审稿结果。Scores.Overall 与 Pass 在解析后统一计算。
type EpisodeReview struct {
	Episode     int             `json:"episode,omitempty"`
	Scores      DimensionScores `json:"scores"`
	FatalIssues []string        `json:"fatal_issues,omitempty"`
	FixList     []FixItem       `json:"fix_list,omitempty"`
	HookType    string          `json:"hook_type,omitempty"`
	Summary     string          `json:"summary,omitempty"`
	Pass        bool            `json:"pass"`
}

// RoundAction 审稿循环单轮的处置动作
type RoundAction string

const (
	ActionPassed          RoundAction = "通过"
	ActionTriggerRevision RoundAction = "触发返修"
	ActionMaxRounds       RoundAction = "达到最大轮数"
)

// RoundValidation 单轮校验摘要，写入轮次日志
type RoundValidation struct {
	Passed       bool         `json:"passed"`
	ErrorCount   int          `json:"error_count"`
	WarningCount int          `json:"warning_count"`
	Stats        EpisodeStats `json:"stats"`
}

// RoundReview 单轮审稿摘要，写入轮次日志
type RoundReview struct {
	Overall          float64 `json:"overall"`
	Passed           bool    `json:"passed"`
	FatalIssuesCount int     `json:"fatal_issues_count"`
	FixCount         int     `json:"fix_count"`
}

// RoundRecord 审稿循环的单轮日志条目，按集追加存储
type RoundRecord struct {
	Round      int             `json:"round"`
	Validation RoundValidation `json:"validation"`
	Review     *RoundReview    `json:"review,omitempty"`
	Action     RoundAction     `json:"action"`
}

// ReviewOutcome 单集审稿循环的最终结果：最高分版本 + 实际执行轮数
type ReviewOutcome struct {
	Episode int           `json:"episode"`
	Script  string        `json:"script"`
	Review  EpisodeReview `json:"review"`
	Rounds  int           `json:"rounds"`
}
