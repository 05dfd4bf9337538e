// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// 五个生成角色的名称
const (
	RoleBible   = "bible"
	RolePlan    = "plan"
	RoleWrite   = "write"
	RoleJudge   = "judge"
	RoleRewrite = "rewrite"
)

// RoleConfig 单个角色的模型配置
type RoleConfig struct {
	Model        string `json:"model"`
	Thinking     bool   `json:"thinking"`
	BudgetTokens int    `json:"budget_tokens"`
}

// RetryConfig LLM 调用重试参数（指数退避）
type RetryConfig struct {
	MaxAttempts int     `json:"max_attempts"`
	BaseDelay   float64 `json:"base_delay"` // 秒
}

// ReviewConfig 审稿循环参数
type ReviewConfig struct {
	PassThreshold float64 `json:"pass_threshold"` // overall >= 此值为通过
	MaxRounds     int     `json:"max_rounds"`     // 最大返修轮数
}

// OutputConfig 输出相关开关
type OutputConfig struct {
	SaveIntermediates bool `json:"save_intermediates"`
}

// Config 应用配置。加载后显式传递给各服务，不做全局共享。
type Config struct {
	// 基础配置（来自环境变量）
	Port      string `json:"port"`
	DataDir   string `json:"data_dir"`
	OutputDir string `json:"output_dir"`
	LogDir    string `json:"log_dir"`
	DebugMode bool   `json:"debug_mode"`

	// LLM 提供商配置。API Key 不落盘，统一通过环境变量提供。
	LLMProvider string `json:"llm_provider"`
	APIKey      string `json:"-"`
	BaseURL     string `json:"base_url,omitempty"`

	// 管线配置（来自 config.json，缺失字段使用默认值）
	Roles  map[string]RoleConfig `json:"roles"`
	Retry  RetryConfig           `json:"retry"`
	Review ReviewConfig          `json:"review"`
	Output OutputConfig          `json:"output"`
}

// roleDefaults 五个角色的默认模型配置（可在 config.json 覆盖）
func roleDefaults() map[string]RoleConfig {
	return map[string]RoleConfig{
		RoleBible:   {Model: "claude-sonnet-4-20250514", Thinking: false, BudgetTokens: 10000},
		RolePlan:    {Model: "claude-sonnet-4-20250514", Thinking: true, BudgetTokens: 10000},
		RoleWrite:   {Model: "claude-sonnet-4-20250514", Thinking: false, BudgetTokens: 10000},
		RoleJudge:   {Model: "claude-haiku-4-20250414", Thinking: true, BudgetTokens: 10000},
		RoleRewrite: {Model: "claude-sonnet-4-20250514", Thinking: false, BudgetTokens: 10000},
	}
}

// Default 返回全部使用默认值的配置
func Default() *Config {
	return &Config{
		Port:        "8080",
		DataDir:     "data",
		OutputDir:   "output",
		LogDir:      "logs",
		DebugMode:   false,
		LLMProvider: "anthropic",
		Roles:       roleDefaults(),
		Retry:       RetryConfig{MaxAttempts: 3, BaseDelay: 1.0},
		Review:      ReviewConfig{PassThreshold: 75.0, MaxRounds: 3},
		Output:      OutputConfig{SaveIntermediates: true},
	}
}

// Load 从环境变量加载基础配置（自动读取 .env 文件）
func Load() (*Config, error) {
	// .env 文件可选
	godotenv.Load()

	cfg := Default()
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.DataDir = getEnv("DATA_DIR", cfg.DataDir)
	cfg.OutputDir = getEnv("OUTPUT_DIR", cfg.OutputDir)
	cfg.LogDir = getEnv("LOG_DIR", cfg.LogDir)
	cfg.DebugMode = getEnvBool("DEBUG_MODE", cfg.DebugMode)
	cfg.LLMProvider = getEnv("LLM_PROVIDER", cfg.LLMProvider)
	cfg.BaseURL = getEnv("LLM_BASE_URL", "")

	cfg.APIKey = apiKeyForProvider(cfg.LLMProvider)

	return cfg, nil
}

// LoadFile 在基础配置之上合并 JSON 配置文件。
// 文件只描述模型角色/重试/审稿/输出参数，缺失字段保留默认值。
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败 %s: %w", path, err)
	}
	if err := cfg.mergeJSON(data); err != nil {
		return nil, fmt.Errorf("解析配置文件失败 %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MaybeLoadFile 尽量加载配置：路径存在则读取，否则返回纯默认配置。
func MaybeLoadFile(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return Load()
}

// mergeJSON 将 JSON 中出现的字段合并进当前配置
func (c *Config) mergeJSON(data []byte) error {
	var raw struct {
		Roles  map[string]json.RawMessage `json:"roles"`
		Retry  *RetryConfig               `json:"retry"`
		Review *ReviewConfig              `json:"review"`
		Output *OutputConfig              `json:"output"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	for role, msg := range raw.Roles {
		base, ok := c.Roles[role]
		if !ok {
			base = RoleConfig{BudgetTokens: 10000}
		}
		if err := json.Unmarshal(msg, &base); err != nil {
			return fmt.Errorf("roles.%s: %w", role, err)
		}
		c.Roles[role] = base
	}
	if raw.Retry != nil {
		c.Retry = *raw.Retry
	}
	if raw.Review != nil {
		c.Review = *raw.Review
	}
	if raw.Output != nil {
		c.Output = *raw.Output
	}
	return nil
}

// Validate 检查配置参数的合法性
func (c *Config) Validate() error {
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("config.retry.max_attempts 必须 >= 1")
	}
	if c.Retry.BaseDelay < 0 {
		return fmt.Errorf("config.retry.base_delay 必须 >= 0")
	}
	if c.Review.MaxRounds < 0 {
		return fmt.Errorf("config.review.max_rounds 必须 >= 0")
	}
	if c.Review.PassThreshold < 0 || c.Review.PassThreshold > 100 {
		return fmt.Errorf("config.review.pass_threshold 必须在 [0, 100] 范围内")
	}
	return nil
}

// Role 返回指定角色的模型配置，未配置的角色回落到默认值
func (c *Config) Role(name string) RoleConfig {
	if rc, ok := c.Roles[name]; ok {
		return rc
	}
	if rc, ok := roleDefaults()[name]; ok {
		return rc
	}
	return RoleConfig{Model: "claude-sonnet-4-20250514", BudgetTokens: 10000}
}

// apiKeyForProvider 按提供商读取对应的环境变量
func apiKeyForProvider(provider string) string {
	switch provider {
	case "qwen":
		return getEnv("DASHSCOPE_API_KEY", "")
	case "glm":
		return getEnv("GLM_API_KEY", "")
	default:
		return getEnv("ANTHROPIC_API_KEY", "")
	}
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}
