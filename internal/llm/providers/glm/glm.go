// internal/llm/providers/glm/glm.go
package glm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	apperrors "github.com/jubenlab/jubengen/internal/errors"
	"github.com/jubenlab/jubengen/internal/llm"
)

func init() {
	llm.Register("glm", func() llm.Provider {
		return &Provider{
			recommendedModels: []string{
				"glm-4-plus",
				"glm-4.5-air",
				"glm-4.5",
				"glm-4.6",
			},
			baseURL: "https://open.bigmodel.cn/api/paas/v4",
		}
	})
}

// Provider 通过 chat/completions 接口调用智谱 GLM。
type Provider struct {
	apiKey            string
	baseURL           string
	client            *http.Client
	defaultModel      string
	recommendedModels []string
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey, exists := config["api_key"]
	if !exists || apiKey == "" {
		return errors.New("智谱GLM API密钥未提供")
	}

	p.apiKey = apiKey
	p.client = &http.Client{Timeout: 120 * time.Second}

	if model, exists := config["default_model"]; exists && model != "" {
		p.defaultModel = model
	} else {
		p.defaultModel = "glm-4-plus"
	}

	if baseURL, exists := config["base_url"]; exists && baseURL != "" {
		p.baseURL = baseURL
	}

	return nil
}

func (p *Provider) GetName() string {
	return "智谱GLM"
}

func (p *Provider) GetSupportedModels() []string {
	return p.recommendedModels
}

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	messages := []map[string]string{
		{"role": "user", "content": req.Prompt},
	}
	if req.SystemPrompt != "" {
		messages = append([]map[string]string{
			{"role": "system", "content": req.SystemPrompt},
		}, messages...)
	}

	requestBody := map[string]interface{}{
		"model":       model,
		"messages":    messages,
		"stream":      false,
		"temperature": req.Temperature,
	}

	if req.MaxTokens > 0 {
		requestBody["max_tokens"] = req.MaxTokens
	}

	// glm-4.5 及以上支持思维链开关
	if req.Thinking {
		requestBody["thinking"] = map[string]string{"type": "enabled"}
	}

	if req.ExtraParams != nil {
		for k, v := range req.ExtraParams {
			requestBody[k] = v
		}
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		"POST",
		p.baseURL+"/chat/completions",
		bytes.NewBuffer(jsonData),
	)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, llm.ClassifyTransportError("智谱GLM", err)
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, llm.ClassifyTransportError("智谱GLM", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, llm.ClassifyHTTPStatus("智谱GLM", httpResp.StatusCode, string(rawBody))
	}

	var response struct {
		ID      string `json:"id"`
		Created int64  `json:"created"`
		Model   string `json:"model"`
		Choices []struct {
			Index   int `json:"index"`
			Message struct {
				Role             string `json:"role"`
				Content          string `json:"content"`
				ReasoningContent string `json:"reasoning_content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}

	if err := json.Unmarshal(rawBody, &response); err != nil {
		return nil, err
	}

	if len(response.Choices) == 0 {
		return nil, apperrors.NewParseError("智谱GLM未返回任何结果", nil)
	}

	choice := response.Choices[0]
	return &llm.CompletionResponse{
		Text:         choice.Message.Content,
		Thinking:     choice.Message.ReasoningContent,
		FinishReason: choice.FinishReason,
		TokensUsed:   response.Usage.TotalTokens,
		PromptTokens: response.Usage.PromptTokens,
		OutputTokens: response.Usage.CompletionTokens,
		ModelName:    response.Model,
		ProviderName: p.GetName(),
		Raw:          json.RawMessage(rawBody),
	}, nil
}
