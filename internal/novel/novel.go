// internal/novel/novel.go
package novel

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jubenlab/jubengen/internal/textio"
)

// Chapter 是按章节切分后的小说片段
type Chapter struct {
	Index int    `json:"index"` // 第N章
	Title string `json:"title"` // 原始章节标题行
	Text  string `json:"text"`  // 章节正文（不含标题行）
}

var chapterRe = regexp.MustCompile(`^第([0-9]+)章[\s　]*`)

// SplitChapters 按 "第N章" 标题行拆分章节。没有任何标题行时返回空
func SplitChapters(novelText string) []Chapter {
	lines := strings.Split(novelText, "\n")

	type start struct {
		lineIdx int
		index   int
		title   string
	}
	var starts []start
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		m := chapterRe.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		starts = append(starts, start{lineIdx: i, index: idx, title: trimmed})
	}

	if len(starts) == 0 {
		return nil
	}

	chapters := make([]Chapter, 0, len(starts))
	for k, s := range starts {
		endIdx := len(lines)
		if k+1 < len(starts) {
			endIdx = starts[k+1].lineIdx
		}
		body := strings.TrimSpace(strings.Join(lines[s.lineIdx+1:endIdx], "\n"))
		chapters = append(chapters, Chapter{Index: s.index, Title: s.title, Text: body})
	}
	return chapters
}

// LoadChapters 读取小说文件并拆分章节，编码自动识别
func LoadChapters(path string) ([]Chapter, error) {
	text, err := textio.ReadTextAuto(path)
	if err != nil {
		return nil, err
	}
	return SplitChapters(text), nil
}

// SelectChapterRange 选择闭区间 [start, end] 的章节，按章节号升序
func SelectChapterRange(chapters []Chapter, start, end int) []Chapter {
	var chosen []Chapter
	for _, c := range chapters {
		if start <= c.Index && c.Index <= end {
			chosen = append(chosen, c)
		}
	}
	sort.SliceStable(chosen, func(i, j int) bool {
		return chosen[i].Index < chosen[j].Index
	})
	return chosen
}
