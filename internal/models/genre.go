// internal/models/genre.go
package models

// CharacterType 题材典型角色类型
type CharacterType struct {
	Role          string   `json:"role"`
	TypicalTraits []string `json:"typical_traits"`
	SpeechStyle   string   `json:"speech_style"`
}

// HookPreferences 题材钩子偏好
type HookPreferences struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
	Notes     string `json:"notes"`
}

// GenreTemplate 题材模板，包含通用层不覆盖的题材专属信息
type GenreTemplate struct {
	Genre            string            `json:"genre"`    // 中文名
	GenreEN          string            `json:"genre_en"` // 英文标识
	Traits           []string          `json:"traits"`
	CharacterTypes   []CharacterType   `json:"character_types"`
	ConflictPatterns []string          `json:"conflict_patterns"`
	IconicScenes     []string          `json:"iconic_scenes"`
	HookPreferences  HookPreferences   `json:"hook_preferences"`
	StyleOverrides   map[string]string `json:"style_overrides"`
}
