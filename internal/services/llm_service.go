// internal/services/llm_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jubenlab/jubengen/internal/config"
	"github.com/jubenlab/jubengen/internal/llm"
	"github.com/jubenlab/jubengen/internal/utils"

	// 注册内置提供商
	_ "github.com/jubenlab/jubengen/internal/llm/providers/anthropic"
	_ "github.com/jubenlab/jubengen/internal/llm/providers/glm"
	_ "github.com/jubenlab/jubengen/internal/llm/providers/qwen"
)

// 未显式指定时的采样温度
const defaultTemperature = 0.7

// CompletionClient 统一的补全调用接口。
// 各生成服务依赖此接口而非具体实现，测试时可替换为桩。
type CompletionClient interface {
	Complete(ctx context.Context, role config.RoleConfig, systemPrompt, prompt string, maxTokens int) (*llm.CompletionResponse, error)
}

// LLMService 统一的大语言模型调用入口：
// 按配置选择提供商，并为每次调用套上指数退避重试。
type LLMService struct {
	provider     llm.Provider
	providerName string
	retry        *llm.RetryPolicy
	logger       *utils.Logger
	metrics      *utils.PipelineMetrics
}

// NewLLMService 按配置初始化提供商与重试策略
func NewLLMService(cfg *config.Config) (*LLMService, error) {
	providerCfg := map[string]string{
		"api_key": cfg.APIKey,
	}
	if cfg.BaseURL != "" {
		providerCfg["base_url"] = cfg.BaseURL
	}

	provider, err := llm.GetProvider(cfg.LLMProvider, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("初始化 LLM 提供商失败: %w", err)
	}

	baseDelay := time.Duration(cfg.Retry.BaseDelay * float64(time.Second))
	return &LLMService{
		provider:     provider,
		providerName: cfg.LLMProvider,
		retry:        llm.NewRetryPolicy(cfg.Retry.MaxAttempts, baseDelay),
		logger:       utils.GetLoggerWithName("llm"),
		metrics:      utils.NewPipelineMetrics(),
	}, nil
}

// Complete 以指定角色配置执行一次补全调用。
// 思维链角色附带推理预算；可恢复错误按重试策略退避。
func (s *LLMService) Complete(ctx context.Context, role config.RoleConfig, systemPrompt, prompt string, maxTokens int) (*llm.CompletionResponse, error) {
	req := llm.CompletionRequest{
		Model:        role.Model,
		SystemPrompt: systemPrompt,
		Prompt:       prompt,
		MaxTokens:    maxTokens,
		Temperature:  defaultTemperature,
		Thinking:     role.Thinking,
		BudgetTokens: role.BudgetTokens,
	}

	start := time.Now()
	resp, err := s.retry.Do(ctx, func(ctx context.Context) (*llm.CompletionResponse, error) {
		return s.provider.CompleteText(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordLLMRequest(s.providerName, role.Model, resp.TokensUsed, time.Since(start))
	return resp, nil
}

// ProviderName 返回当前提供商标识
func (s *LLMService) ProviderName() string {
	return s.providerName
}

// SupportedModels 返回当前提供商的推荐模型列表
func (s *LLMService) SupportedModels() []string {
	return s.provider.GetSupportedModels()
}

// StripCodeFence 去除 LLM 返回文本外层的 markdown 代码块标记。
// 仅当收尾 ``` 出现在首个换行之后时截取中间内容，其余情况原样返回去除首尾空白的文本。
func StripCodeFence(text string) string {
	cleaned := strings.TrimSpace(text)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}
	firstNewline := strings.Index(cleaned, "\n")
	if firstNewline == -1 {
		return cleaned
	}
	lastFence := strings.LastIndex(cleaned, "```")
	if lastFence > firstNewline {
		cleaned = strings.TrimSpace(cleaned[firstNewline+1 : lastFence])
	}
	return cleaned
}

// decodeJSONValue 解析 JSON 文本的顶层值，保留数值原文以便区分整数/小数
func decodeJSONValue(text string) (interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("响应包含多余内容")
	}
	return v, nil
}

// jsonTypeName 返回 JSON 顶层值的类型名，用于错误信息
func jsonTypeName(v interface{}) string {
	switch t := v.(type) {
	case map[string]interface{}:
		return "dict"
	case []interface{}:
		return "list"
	case string:
		return "str"
	case bool:
		return "bool"
	case json.Number:
		if strings.ContainsAny(t.String(), ".eE") {
			return "float"
		}
		return "int"
	case nil:
		return "NoneType"
	default:
		return fmt.Sprintf("%T", v)
	}
}

