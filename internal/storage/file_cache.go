// internal/storage/file_cache.go
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/jubenlab/jubengen/internal/utils"
)

// FileCacheService 缓存解析后的 JSON 产物，按文件修改时间失效。
// 产物查询接口反复读取 plan.json、评审 JSON 等文件时走这里。
type FileCacheService struct {
	cache  *expirable.LRU[string, *FileCacheEntry]
	logger *utils.Logger
}

// FileCacheEntry 缓存条目
type FileCacheEntry struct {
	Data     interface{}
	FileInfo os.FileInfo // 用于检测文件是否被修改
}

// NewFileCacheService 创建文件缓存服务
func NewFileCacheService(maxSize int, expiration time.Duration) *FileCacheService {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if expiration <= 0 {
		expiration = 5 * time.Minute
	}

	return &FileCacheService{
		cache:  expirable.NewLRU[string, *FileCacheEntry](maxSize, nil, expiration),
		logger: utils.GetLoggerWithName("storage.cache"),
	}
}

// ReadFile 读取并解析 JSON 文件，命中缓存且文件未修改时跳过磁盘
func (s *FileCacheService) ReadFile(path string, target interface{}) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("获取文件绝对路径失败: %w", err)
	}

	if entry, ok := s.cache.Get(absPath); ok {
		fileInfo, err := os.Stat(absPath)
		if err == nil {
			modified := fileInfo.ModTime().After(entry.FileInfo.ModTime()) ||
				fileInfo.Size() != entry.FileInfo.Size()
			if !modified {
				// 借 JSON 序列化把缓存值转换成目标类型
				data, err := json.Marshal(entry.Data)
				if err == nil {
					return json.Unmarshal(data, target)
				}
			}
		}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("读取文件失败: %w", err)
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("解析JSON失败: %w", err)
	}

	fileInfo, err := os.Stat(absPath)
	if err != nil {
		s.logger.Warnf("获取文件信息失败: %v", err)
	} else {
		s.cache.Add(absPath, &FileCacheEntry{Data: target, FileInfo: fileInfo})
	}

	return nil
}

// WriteFile 写入 JSON 文件并更新缓存
func (s *FileCacheService) WriteFile(path string, data interface{}) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("获取文件绝对路径失败: %w", err)
	}

	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}

	if err := os.WriteFile(absPath, jsonData, 0644); err != nil {
		return fmt.Errorf("写入文件失败: %w", err)
	}

	fileInfo, err := os.Stat(absPath)
	if err != nil {
		s.logger.Warnf("获取文件信息失败: %v", err)
	} else {
		s.cache.Add(absPath, &FileCacheEntry{Data: data, FileInfo: fileInfo})
	}

	return nil
}

// DeleteFromCache 从缓存中删除条目
func (s *FileCacheService) DeleteFromCache(path string) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return
	}
	s.cache.Remove(absPath)
}

// ClearCache 清空缓存
func (s *FileCacheService) ClearCache() {
	s.cache.Purge()
}
