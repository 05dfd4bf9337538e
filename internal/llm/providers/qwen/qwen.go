// internal/llm/providers/qwen/qwen.go
package qwen

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
	llm.Register("qwen", func() llm.Provider {
		return &Provider{
			recommendedModels: []string{
				"qwen-max",
				"qwen-plus",
				"qwen-turbo",
			},
			baseURL: "https://dashscope.aliyuncs.com/api/v1",
			region:  "cn-beijing",
		}
	})
}

// Provider 通过 DashScope 原生接口调用通义千问。
type Provider struct {
	apiKey            string
	baseURL           string
	client            *http.Client
	defaultModel      string
	recommendedModels []string
	region            string // 阿里云区域
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey, exists := config["api_key"]
	if !exists || apiKey == "" {
		return errors.New("千问(Qwen) API密钥未提供")
	}

	p.apiKey = apiKey
	p.client = &http.Client{Timeout: 120 * time.Second}

	if model, exists := config["default_model"]; exists && model != "" {
		p.defaultModel = model
	} else {
		p.defaultModel = "qwen-max"
	}

	if baseURL, exists := config["base_url"]; exists && baseURL != "" {
		p.baseURL = baseURL
	}

	if region, exists := config["region"]; exists && region != "" {
		p.region = region
	}

	return nil
}

func (p *Provider) GetName() string {
	return "Qwen"
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

	parameters := map[string]interface{}{
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		parameters["max_tokens"] = req.MaxTokens
	}
	if req.ExtraParams != nil {
		for k, v := range req.ExtraParams {
			parameters[k] = v
		}
	}

	requestBody := map[string]interface{}{
		"model": model,
		"input": map[string]interface{}{
			"messages": messages,
		},
		"parameters": parameters,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		"POST",
		p.baseURL+"/services/aigc/text-generation/generation",
		bytes.NewBuffer(jsonData),
	)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("X-DashScope-Region", p.region)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, llm.ClassifyTransportError("千问(Qwen)", err)
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, llm.ClassifyTransportError("千问(Qwen)", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, llm.ClassifyHTTPStatus("千问(Qwen)", httpResp.StatusCode, string(rawBody))
	}

	var response struct {
		RequestID string `json:"request_id"`
		Output    struct {
			Text    string `json:"text"`
			Choices []struct {
				Message struct {
					Role    string `json:"role"`
					Content string `json:"content"`
				} `json:"message"`
				FinishReason string `json:"finish_reason"`
			} `json:"choices"`
		} `json:"output"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
			TotalTokens  int `json:"total_tokens"`
		} `json:"usage"`
	}

	if err := json.Unmarshal(rawBody, &response); err != nil {
		return nil, err
	}

	// output.text 与 choices[0].message.content 两种返回格式都要兼容
	text := response.Output.Text
	finishReason := ""
	if len(response.Output.Choices) > 0 {
		finishReason = response.Output.Choices[0].FinishReason
		if text == "" {
			text = response.Output.Choices[0].Message.Content
		}
	}

	if text == "" {
		return nil, apperrors.NewParseError("千问(Qwen)未返回任何结果", nil)
	}

	return &llm.CompletionResponse{
		Text:         text,
		FinishReason: finishReason,
		TokensUsed:   response.Usage.TotalTokens,
		PromptTokens: response.Usage.InputTokens,
		OutputTokens: response.Usage.OutputTokens,
		ModelName:    model,
		ProviderName: p.GetName(),
		Raw:          json.RawMessage(rawBody),
	}, nil
}
