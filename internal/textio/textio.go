// internal/textio/textio.go

// Package textio 提供编码自适应的文本文件读取。
// 网络小说与规则文档的来源编码不统一，常见 UTF-8 与 GB18030 两种。
package textio

import (
	"bytes"
	"fmt"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadTextAuto 自动识别编码读取文本文件。
// 内容是合法 UTF-8 时原样返回（剥离 BOM），否则按 GB18030 解码。
func ReadTextAuto(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("读取文件失败: %w", err)
	}

	data = bytes.TrimPrefix(data, utf8BOM)

	if utf8.Valid(data) {
		return string(data), nil
	}

	decoded, err := simplifiedchinese.GB18030.NewDecoder().Bytes(data)
	if err != nil {
		// 解码失败时按原字节兜底返回
		return string(data), nil
	}
	return string(decoded), nil
}
