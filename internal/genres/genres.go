// internal/genres/genres.go

// Package genres 实现题材模板体系：通用层 + 题材层。
//
// 通用层（base.go）：红果风格核心规则、格式规范、合规约束。
// 题材层（templates/*.json）：各题材独有的特征、角色类型、冲突模式、标志性场景。
package genres

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	apperrors "github.com/jubenlab/jubengen/internal/errors"
	"github.com/jubenlab/jubengen/internal/models"
)

//go:embed templates/*.json
var templatesFS embed.FS

// 内置题材名 -> 文件名映射
var builtinGenres = map[string]string{
	"apocalypse":   "apocalypse.json",
	"palace_drama": "palace_drama.json",
	"romance":      "romance.json",
	"suspense":     "suspense.json",
	"time_travel":  "time_travel.json",
}

// 中文名 -> 英文名映射（方便用中文查找）
var cnToEN = map[string]string{
	"末世": "apocalypse",
	"宫斗": "palace_drama",
	"甜宠": "romance",
	"悬疑": "suspense",
	"穿越": "time_travel",
}

// Load 加载题材模板。name 支持英文标识（apocalypse）、中文名（末世），
// 或自定义模板的 JSON 文件路径。
func Load(name string) (*models.GenreTemplate, error) {
	enName, ok := cnToEN[name]
	if !ok {
		enName = name
	}

	var data []byte
	var err error
	if file, builtin := builtinGenres[enName]; builtin {
		data, err = templatesFS.ReadFile("templates/" + file)
		if err != nil {
			return nil, apperrors.NewProcessingError("读取内置题材失败", err)
		}
	} else {
		data, err = os.ReadFile(name)
		if err != nil {
			return nil, apperrors.NewNotFoundError(
				fmt.Sprintf("题材 '%s' 不存在。可用题材：%s", name, strings.Join(List(), ", ")), err)
		}
	}

	var tpl models.GenreTemplate
	if err := json.Unmarshal(data, &tpl); err != nil {
		return nil, apperrors.NewParseError(fmt.Sprintf("解析题材模板失败: %s", name), err)
	}
	return &tpl, nil
}

// List 列出所有内置题材的英文标识，按字典序
func List() []string {
	names := make([]string, 0, len(builtinGenres))
	for name := range builtinGenres {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListCN 返回 {中文名: 英文名} 的映射
func ListCN() map[string]string {
	m := make(map[string]string, len(cnToEN))
	for cn, en := range cnToEN {
		m[cn] = en
	}
	return m
}
