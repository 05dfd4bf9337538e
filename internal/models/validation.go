// internal/models/validation.go
package models

// IssueLevel 校验问题严重程度
type IssueLevel string

const (
	IssueLevelError   IssueLevel = "error"   // 格式不合规，必须修改
	IssueLevelWarning IssueLevel = "warning" // 超出建议范围，建议调整
)

// IssueType 校验问题类别
type IssueType string

const (
	IssueTypeFormat    IssueType = "format"     // 格式不合规
	IssueTypeLineCount IssueType = "line_count" // 行数超出范围
	IssueTypeRatio     IssueType = "ratio"      // 比例异常
)

// LineKind 剧本单行的分类结果
type LineKind string

const (
	LineKindEpTitle    LineKind = "ep_title"   // 集标题：第N集
	LineKindScene      LineKind = "scene"      // 场次行：N-N场 场景名 日/夜 内/外
	LineKindCast       LineKind = "cast"       // 人物行：人物：A、B、C
	LineKindStage      LineKind = "stage"      // 动作/镜头行：▲开头
	LineKindDialogue   LineKind = "dialogue"   // 台词行（含 VO/OS 变体）
	LineKindTransition LineKind = "transition" // 转场行：【切】等
	LineKindBlank      LineKind = "blank"
	LineKindUnknown    LineKind = "unknown"
)

// ValidationIssue 单条校验问题。LineNum 为 nil 表示整集级别问题。
type ValidationIssue struct {
	Type        IssueType  `json:"type"`
	Level       IssueLevel `json:"level"`
	LineNum     *int       `json:"line_num"`
	Description string     `json:"description"`
}

// EpisodeStats 单集统计信息，用于比例/行数校验
type EpisodeStats struct {
	Episode       int `json:"episode"`
	SceneCount    int `json:"scene_count"`
	TotalLines    int `json:"total_lines"`
	DialogueLines int `json:"dialogue_lines"`
	StageLines    int `json:"stage_lines"`
	VoOsLines     int `json:"vo_os_lines"`
}

// ValidationResult 单集校验结果。Passed 表示没有 error 级别的问题。
type ValidationResult struct {
	Passed  bool              `json:"passed"`
	Episode int               `json:"episode"`
	Stats   EpisodeStats      `json:"stats"`
	Issues  []ValidationIssue `json:"issues"`
}

// ErrorCount 统计 error 级别问题数量
func (r *ValidationResult) ErrorCount() int {
	n := 0
	for _, iss := range r.Issues {
		if iss.Level == IssueLevelError {
			n++
		}
	}
	return n
}

// WarningCount 统计 warning 级别问题数量
func (r *ValidationResult) WarningCount() int {
	n := 0
	for _, iss := range r.Issues {
		if iss.Level == IssueLevelWarning {
			n++
		}
	}
	return n
}

// MetricSpec 单项结构指标的建议值与允许范围
type MetricSpec struct {
	Suggest float64    `json:"suggest"`
	Range   [2]float64 `json:"range"`
}

// StyleTarget 风格目标区间，指标键 -> 建议值/范围。
// 与 style_profile.json 的 target 字段结构一致。
type StyleTarget map[string]MetricSpec

// 结构指标键名
const (
	MetricScenesPerEp        = "scenes_per_ep"
	MetricTotalLinesPerEp    = "total_lines_per_ep"
	MetricDialogueLinesPerEp = "dialogue_lines_per_ep"
	MetricStageLinesPerEp    = "stage_lines_per_ep"
	MetricVoOsLinesPerEp     = "vo_os_lines_per_ep"
)

// DefaultStyleTarget 返回内置的默认风格目标（来自样例融合统计）。
// 每次调用返回新副本，调用方可安全修改。
func DefaultStyleTarget() StyleTarget {
	return StyleTarget{
		MetricScenesPerEp:        {Suggest: 1.7, Range: [2]float64{1, 3}},
		MetricTotalLinesPerEp:    {Suggest: 28.1, Range: [2]float64{22, 38}},
		MetricDialogueLinesPerEp: {Suggest: 10.28, Range: [2]float64{10, 20}},
		MetricStageLinesPerEp:    {Suggest: 14.23, Range: [2]float64{8, 20}},
		MetricVoOsLinesPerEp:     {Suggest: 4.34, Range: [2]float64{0, 6}},
	}
}
