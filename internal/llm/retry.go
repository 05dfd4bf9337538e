// internal/llm/retry.go
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	apperrors "github.com/jubenlab/jubengen/internal/errors"
	"github.com/jubenlab/jubengen/internal/utils"
)

// RetryPolicy 对提供者调用做指数退避重试。
// 仅重试速率限制、网络错误、超时和服务端错误；
// 认证失败和格式错误立即向上传播。
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration

	// sleep 可注入，便于测试时替换真实等待
	sleep func(ctx context.Context, d time.Duration) error
	log   *utils.Logger
}

// NewRetryPolicy 创建重试策略。maxAttempts < 1 时按 1 处理。
func NewRetryPolicy(maxAttempts int, baseDelay time.Duration) *RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		sleep:       sleepContext,
		log:         utils.GetLoggerWithName("llm.retry"),
	}
}

// WithSleeper 替换等待实现（测试用）
func (p *RetryPolicy) WithSleeper(sleep func(ctx context.Context, d time.Duration) error) *RetryPolicy {
	p.sleep = sleep
	return p
}

// Do 执行调用，可恢复错误按 baseDelay·2^attempt 退避后重试。
// 重试耗尽后返回包装了最后一次错误的不可重试错误；
// 退避等待期间上下文取消立即中止。
func (p *RetryPolicy) Do(ctx context.Context, call func(ctx context.Context) (*CompletionResponse, error)) (*CompletionResponse, error) {
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		resp, err := call(ctx)
		if err == nil {
			return resp, nil
		}
		if !apperrors.IsRetryable(err) {
			return nil, err
		}

		lastErr = err
		if attempt == p.MaxAttempts-1 {
			break
		}

		delay := p.BaseDelay * (1 << uint(attempt))
		p.log.Warnf("API 调用失败（第 %d 次），%s 后重试：%v", attempt+1, delay, err)
		if serr := p.sleep(ctx, delay); serr != nil {
			return nil, apperrors.NewTimeoutError("重试等待被取消", serr)
		}
	}
	return nil, apperrors.NewProcessingError(
		fmt.Sprintf("API 调用失败，已重试 %d 次", p.MaxAttempts), lastErr)
}

// sleepContext 等待指定时长，上下文取消时提前返回
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ClassifyHTTPStatus 将 HTTP 状态码映射为传输错误分类
func ClassifyHTTPStatus(provider string, status int, body string) error {
	msg := fmt.Sprintf("%s API错误(%d): %s", provider, status, truncateBody(body))
	switch {
	case status == http.StatusTooManyRequests:
		return apperrors.NewRateLimitError(msg, nil)
	case status == http.StatusRequestTimeout:
		return apperrors.NewTimeoutError(msg, nil)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperrors.NewAuthError(msg, nil)
	case status >= 500:
		return apperrors.NewServerError(msg, nil)
	default:
		return apperrors.NewProcessingError(msg, nil)
	}
}

// ClassifyTransportError 将网络层错误映射为传输错误分类
func ClassifyTransportError(provider string, err error) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf("%s 请求失败", provider)
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return apperrors.NewTimeoutError(msg, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewTimeoutError(msg, err)
	}
	return apperrors.NewConnectionError(msg, err)
}

func truncateBody(body string) string {
	const limit = 500
	r := []rune(body)
	if len(r) <= limit {
		return body
	}
	return string(r[:limit]) + "..."
}
