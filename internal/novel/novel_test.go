// internal/novel/novel_test.go
package novel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/text/encoding/simplifiedchinese"
)

const sampleNovel = `末世天灾

第1章 天降陨石
林澈抬头看见天边的红光。
陨石坠落在城市中心。

第2章　逃亡开始
人群在尖叫中四散。

第5章 地下避难所
避难所的大门缓缓关闭。`

// TestSplitChapters 验证按章节标题行切分
func TestSplitChapters(t *testing.T) {
	chapters := SplitChapters(sampleNovel)
	require.Len(t, chapters, 3)

	assert.Equal(t, 1, chapters[0].Index)
	assert.Equal(t, "第1章 天降陨石", chapters[0].Title)
	assert.Equal(t, "林澈抬头看见天边的红光。\n陨石坠落在城市中心。", chapters[0].Text)

	// 全角空格的标题同样识别
	assert.Equal(t, 2, chapters[1].Index)
	assert.Equal(t, "第2章　逃亡开始", chapters[1].Title)

	// 章节号不要求连续
	assert.Equal(t, 5, chapters[2].Index)
}

// TestSplitChaptersNoHeadings 验证无章节标题时返回空
func TestSplitChaptersNoHeadings(t *testing.T) {
	assert.Empty(t, SplitChapters("没有任何章节标记的文本。\n第二段。"))
}

// TestSelectChapterRange 验证闭区间选择
func TestSelectChapterRange(t *testing.T) {
	chapters := SplitChapters(sampleNovel)

	selected := SelectChapterRange(chapters, 1, 2)
	require.Len(t, selected, 2)
	assert.Equal(t, 1, selected[0].Index)
	assert.Equal(t, 2, selected[1].Index)

	// 区间两端都是闭的
	selected = SelectChapterRange(chapters, 5, 5)
	require.Len(t, selected, 1)
	assert.Equal(t, 5, selected[0].Index)

	assert.Empty(t, SelectChapterRange(chapters, 3, 4))
}

// TestLoadChaptersGB18030 验证 GB18030 编码的小说文件整链路加载
func TestLoadChaptersGB18030(t *testing.T) {
	content := "第1章 地狱游戏\n他睁开眼，世界已经变了。"
	encoded, err := simplifiedchinese.GB18030.NewEncoder().Bytes([]byte(content))
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "novel_gbk.txt")
	require.NoError(t, os.WriteFile(path, encoded, 0644))

	chapters, err := LoadChapters(path)
	require.NoError(t, err)
	require.Len(t, chapters, 1)
	assert.Equal(t, "第1章 地狱游戏", chapters[0].Title)
	assert.Equal(t, "他睁开眼，世界已经变了。", chapters[0].Text)
}
