// internal/llm/retry_test.go
package llm

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jubenlab/jubengen/internal/errors"
)

// fakeSleeper 记录每次退避时长，不做真实等待
type fakeSleeper struct {
	delays []time.Duration
	err    error
}

func (f *fakeSleeper) sleep(ctx context.Context, d time.Duration) error {
	f.delays = append(f.delays, d)
	return f.err
}

// TestRetryExponentialBackoff 验证退避序列为 base·2^attempt
func TestRetryExponentialBackoff(t *testing.T) {
	sleeper := &fakeSleeper{}
	policy := NewRetryPolicy(4, time.Second).WithSleeper(sleeper.sleep)

	calls := 0
	_, err := policy.Do(context.Background(), func(ctx context.Context) (*CompletionResponse, error) {
		calls++
		return nil, apperrors.NewRateLimitError("rate limited", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, sleeper.delays)
	// 重试耗尽后的错误不可再重试
	assert.False(t, apperrors.IsRetryable(err))
}

// TestRetrySucceedsAfterTransientFailure 验证暂时性失败后成功返回
func TestRetrySucceedsAfterTransientFailure(t *testing.T) {
	sleeper := &fakeSleeper{}
	policy := NewRetryPolicy(3, 100*time.Millisecond).WithSleeper(sleeper.sleep)

	calls := 0
	resp, err := policy.Do(context.Background(), func(ctx context.Context) (*CompletionResponse, error) {
		calls++
		if calls < 3 {
			return nil, apperrors.NewServerError("upstream 503", nil)
		}
		return &CompletionResponse{Text: "ok"}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, 3, calls)
	assert.Len(t, sleeper.delays, 2)
}

// TestRetryNonRetryableFailsFast 验证认证/解析错误不重试
func TestRetryNonRetryableFailsFast(t *testing.T) {
	for _, tc := range []struct {
		name string
		err  error
	}{
		{"auth", apperrors.NewAuthError("bad key", nil)},
		{"parse", apperrors.NewParseError("bad json", nil)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			sleeper := &fakeSleeper{}
			policy := NewRetryPolicy(3, time.Second).WithSleeper(sleeper.sleep)

			calls := 0
			_, err := policy.Do(context.Background(), func(ctx context.Context) (*CompletionResponse, error) {
				calls++
				return nil, tc.err
			})

			require.Error(t, err)
			assert.Equal(t, 1, calls)
			assert.Empty(t, sleeper.delays)
		})
	}
}

// TestRetryCancelledDuringBackoff 验证退避等待期间取消立即中止
func TestRetryCancelledDuringBackoff(t *testing.T) {
	sleeper := &fakeSleeper{err: context.Canceled}
	policy := NewRetryPolicy(3, time.Second).WithSleeper(sleeper.sleep)

	calls := 0
	_, err := policy.Do(context.Background(), func(ctx context.Context) (*CompletionResponse, error) {
		calls++
		return nil, apperrors.NewConnectionError("conn reset", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Len(t, sleeper.delays, 1)
}

// TestClassifyHTTPStatus 验证状态码到错误分类的映射
func TestClassifyHTTPStatus(t *testing.T) {
	cases := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusRequestTimeout, true},
		{http.StatusUnauthorized, false},
		{http.StatusForbidden, false},
		{http.StatusBadRequest, false},
	}
	for _, tc := range cases {
		err := ClassifyHTTPStatus("Test", tc.status, "body")
		assert.Equalf(t, tc.retryable, apperrors.IsRetryable(err),
			"status=%d 的可重试判定错误", tc.status)
	}
}
