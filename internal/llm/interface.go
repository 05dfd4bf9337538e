// internal/llm/interface.go
package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// 错误定义
var ErrUnknownProvider = errors.New("未知的AI提供者")

// CompletionRequest 请求参数标准化
type CompletionRequest struct {
	Model        string                 `json:"model,omitempty"`
	SystemPrompt string                 `json:"system_prompt,omitempty"`
	Prompt       string                 `json:"prompt"`
	MaxTokens    int                    `json:"max_tokens,omitempty"`
	Temperature  float64                `json:"temperature,omitempty"`
	Thinking     bool                   `json:"thinking,omitempty"`
	BudgetTokens int                    `json:"budget_tokens,omitempty"`
	ExtraParams  map[string]interface{} `json:"extra_params,omitempty"`
}

// CompletionResponse 响应结构标准化。
// Thinking 为 extended thinking 的思维链输出（仅部分提供商支持）。
type CompletionResponse struct {
	Text         string          `json:"text"`
	Thinking     string          `json:"thinking,omitempty"`
	FinishReason string          `json:"finish_reason,omitempty"`
	TokensUsed   int             `json:"tokens_used,omitempty"`
	PromptTokens int             `json:"prompt_tokens,omitempty"`
	OutputTokens int             `json:"output_tokens,omitempty"`
	ModelName    string          `json:"model_name,omitempty"`
	ProviderName string          `json:"provider_name,omitempty"`
	Raw          json.RawMessage `json:"-"`
}

// Provider 定义所有LLM提供者必须实现的接口
type Provider interface {
	// 初始化提供者，传入配置
	Initialize(config map[string]string) error

	// 获取提供者名称
	GetName() string

	// 获取支持的模型列表
	GetSupportedModels() []string

	// 文本生成
	CompleteText(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// 注册表和工厂函数类型
type ProviderFactory func() Provider

var providers = make(map[string]ProviderFactory)

// Register 注册提供者工厂，由各提供者包的 init() 调用
func Register(name string, factory ProviderFactory) {
	providers[name] = factory
}

// GetProvider 创建指定名称的提供者实例
func GetProvider(name string, config map[string]string) (Provider, error) {
	factory, exists := providers[name]
	if !exists {
		return nil, errors.New("未知的提供者: " + name)
	}

	provider := factory()
	err := provider.Initialize(config)
	return provider, err
}

// ListProviders 返回所有已注册的提供者名称
func ListProviders() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	return names
}

// GetSupportedModelsForProvider 获取指定提供商支持的模型列表
func GetSupportedModelsForProvider(name string) []string {
	factory, exists := providers[name]
	if !exists {
		return []string{}
	}

	provider := factory()
	return provider.GetSupportedModels()
}
