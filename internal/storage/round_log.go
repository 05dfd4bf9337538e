// internal/storage/round_log.go
package storage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jubenlab/jubengen/internal/models"
)

// RoundLog 是单集的审稿轮次日志，按 JSONL 追加写入：每轮一行，
// 进程中断最多损失正在写的半行，已有记录不受影响。
type RoundLog struct {
	fs   *FileStorage
	dir  string
	name string
}

// NewRoundLog 创建轮次日志，dir 相对存储根目录
func NewRoundLog(fs *FileStorage, dir, name string) *RoundLog {
	return &RoundLog{fs: fs, dir: dir, name: name}
}

// Append 追加一条轮次记录
func (l *RoundLog) Append(rec models.RoundRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("序列化轮次记录失败: %w", err)
	}
	return l.fs.AppendTextFile(l.dir, l.name, append(data, '\n'))
}

// Records 读出全部轮次记录。文件不存在视为空日志；
// 末尾的残行（上次写入中断产生）被丢弃，中间的损坏行报错。
func (l *RoundLog) Records() ([]models.RoundRecord, error) {
	if !l.fs.FileExists(l.dir, l.name) {
		return nil, nil
	}

	data, err := l.fs.LoadTextFile(l.dir, l.name)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(data), "\n")

	lastIdx := -1
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			lastIdx = i
			break
		}
	}

	var records []models.RoundRecord
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var rec models.RoundRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			if i == lastIdx {
				break
			}
			return nil, fmt.Errorf("解析轮次日志失败（第 %d 行）: %w", i+1, err)
		}
		records = append(records, rec)
	}

	return records, nil
}
