// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorType 定义错误类型
type ErrorType string

const (
	// 通用错误类型
	ErrorTypeValidation ErrorType = "validation_error"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeError      ErrorType = "processing_error"
	ErrorTypeConfig     ErrorType = "config_error"

	// 外部服务传输层错误类型
	// 可重试：限流、连接失败、超时、服务端瞬时故障
	ErrorTypeRateLimit  ErrorType = "rate_limit"
	ErrorTypeConnection ErrorType = "connection_error"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeServer     ErrorType = "server_error"

	// 不可重试：认证失败、响应解析失败
	ErrorTypeAuth  ErrorType = "auth_error"
	ErrorTypeParse ErrorType = "parse_error"
)

// AppError 应用程序错误结构
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string // 用户友好的错误代码
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 实现错误链接
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError 创建新的 AppError
func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(errType),
	}
}

// NewValidationError 创建验证错误
func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

// NewNotFoundError 创建未找到错误
func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

// NewProcessingError 创建处理错误
func NewProcessingError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeError, message, originalError)
}

// NewConfigError 创建配置错误
func NewConfigError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeConfig, message, originalError)
}

// NewRateLimitError 创建限流错误
func NewRateLimitError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeRateLimit, message, originalError)
}

// NewConnectionError 创建连接错误
func NewConnectionError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeConnection, message, originalError)
}

// NewTimeoutError 创建超时错误
func NewTimeoutError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeTimeout, message, originalError)
}

// NewServerError 创建服务端错误
func NewServerError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeServer, message, originalError)
}

// NewAuthError 创建认证错误
func NewAuthError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeAuth, message, originalError)
}

// NewParseError 创建解析错误
func NewParseError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeParse, message, originalError)
}

// IsValidationError 检查是否为验证错误
func IsValidationError(err error) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == ErrorTypeValidation
	}
	return false
}

// IsNotFoundError 检查是否为未找到错误
func IsNotFoundError(err error) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == ErrorTypeNotFound
	}
	return false
}

// IsParseError 检查是否为解析错误
func IsParseError(err error) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == ErrorTypeParse
	}
	return false
}

// IsAuthError 检查是否为认证错误
func IsAuthError(err error) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == ErrorTypeAuth
	}
	return false
}

// IsConfigError 检查是否为配置错误
func IsConfigError(err error) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == ErrorTypeConfig
	}
	return false
}

// IsRetryable 检查错误是否属于可重试类别
// 限流、连接失败、超时、服务端瞬时故障允许按退避策略重试，
// 认证、解析、配置等错误立即向上传播
func IsRetryable(err error) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		switch appError.Type {
		case ErrorTypeRateLimit, ErrorTypeConnection, ErrorTypeTimeout, ErrorTypeServer:
			return true
		}
	}
	return false
}

// generateErrorCode 根据错误类型生成错误代码
func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeError:
		return "PROCESSING_ERROR"
	case ErrorTypeConfig:
		return "CONFIG_ERROR"
	case ErrorTypeRateLimit:
		return "RATE_LIMIT"
	case ErrorTypeConnection:
		return "CONNECTION_ERROR"
	case ErrorTypeTimeout:
		return "TIMEOUT"
	case ErrorTypeServer:
		return "SERVER_ERROR"
	case ErrorTypeAuth:
		return "AUTH_ERROR"
	case ErrorTypeParse:
		return "PARSE_ERROR"
	default:
		return "UNKNOWN_ERROR"
	}
}

// WrapError 包装现有错误
func WrapError(err error, message string, errType ErrorType) error {
	if err == nil {
		return nil
	}

	var appError *AppError
	if errors.As(err, &appError) {
		// 如果已经是 AppError，保留原始类型，只叠加消息
		return &AppError{
			Type:    appError.Type,
			Message: fmt.Sprintf("%s: %s", message, appError.Message),
			Err:     appError,
			Code:    appError.Code,
		}
	}

	// 否则创建新的 AppError
	return NewAppError(errType, message, err)
}
