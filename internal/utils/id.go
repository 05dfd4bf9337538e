// internal/utils/id.go
package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// RandomID 生成指定字节长度的十六进制随机标识
func RandomID(bytes int) string {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand 不可用时退化为时间戳，标识仅用于追踪不用于安全
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

// NewTaskID 生成带前缀的任务标识，如 review_1a2b3c4d
func NewTaskID(prefix string) string {
	return prefix + "_" + RandomID(8)
}
