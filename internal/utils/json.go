// internal/utils/json.go
package utils

import (
	"bytes"
	"encoding/json"
	"strings"
)

// JSONIndent 序列化为两空格缩进的 JSON 文本，保留中文与 HTML 字符原样
func JSONIndent(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
