// internal/genres/genres_test.go
package genres

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jubenlab/jubengen/internal/errors"
)

// TestLoadBuiltinByEN 验证按英文标识加载内置题材
func TestLoadBuiltinByEN(t *testing.T) {
	tpl, err := Load("apocalypse")
	require.NoError(t, err)
	assert.Equal(t, "末世", tpl.Genre)
	assert.Equal(t, "apocalypse", tpl.GenreEN)
	assert.NotEmpty(t, tpl.Traits)
	assert.NotEmpty(t, tpl.CharacterTypes)
	assert.Equal(t, "危机升级", tpl.HookPreferences.Primary)
}

// TestLoadBuiltinByCN 验证中文名映射到同一模板
func TestLoadBuiltinByCN(t *testing.T) {
	byCN, err := Load("宫斗")
	require.NoError(t, err)
	byEN, err := Load("palace_drama")
	require.NoError(t, err)
	assert.Equal(t, byEN, byCN)
}

// TestLoadAllBuiltins 验证五个内置题材都能加载且钩子类型合法
func TestLoadAllBuiltins(t *testing.T) {
	hookSet := map[string]bool{}
	for _, h := range HookTypes {
		hookSet[h] = true
	}

	for _, name := range List() {
		tpl, err := Load(name)
		require.NoErrorf(t, err, "加载题材 %s 失败", name)
		assert.Equal(t, name, tpl.GenreEN)
		assert.Truef(t, hookSet[tpl.HookPreferences.Primary],
			"题材 %s 的主力钩子 %q 不在允许列表", name, tpl.HookPreferences.Primary)
		assert.Truef(t, hookSet[tpl.HookPreferences.Secondary],
			"题材 %s 的辅助钩子 %q 不在允许列表", name, tpl.HookPreferences.Secondary)
	}
}

// TestLoadMissingGenre 验证未知题材返回带可用列表的错误
func TestLoadMissingGenre(t *testing.T) {
	_, err := Load("western")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFoundError(err))
	assert.Contains(t, err.Error(), "题材 'western' 不存在")
	assert.Contains(t, err.Error(), "apocalypse, palace_drama, romance, suspense, time_travel")
}

// TestLoadCustomPath 验证从文件路径加载自定义题材
func TestLoadCustomPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.json")
	content := `{"genre":"校园","genre_en":"campus","traits":["青春"],"hook_preferences":{"primary":"情感抉择","secondary":"信息反转","notes":""}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	tpl, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "校园", tpl.Genre)
	assert.Equal(t, "campus", tpl.GenreEN)
}

// TestList 验证题材列表按字典序
func TestList(t *testing.T) {
	assert.Equal(t, []string{"apocalypse", "palace_drama", "romance", "suspense", "time_travel"}, List())
}

// TestListCN 验证中英文映射完整
func TestListCN(t *testing.T) {
	m := ListCN()
	assert.Len(t, m, 5)
	assert.Equal(t, "apocalypse", m["末世"])
	assert.Equal(t, "time_travel", m["穿越"])
}

// TestBaseLayer 验证通用层汇总内容
func TestBaseLayer(t *testing.T) {
	base := Base()
	assert.Equal(t, "第{ep}集", base.FormatSpec.EpisodeHeader)
	assert.Equal(t, []string{"【切】", "【转】", "【闪回】", "【闪出】"}, base.FormatSpec.AllowedMarkers)
	assert.Len(t, base.HookTypes, 4)
	assert.Len(t, base.ScoringDimensions, 9)
	assert.NotEmpty(t, base.RhythmRules)
	assert.NotEmpty(t, base.Prohibitions)
	assert.NotEmpty(t, base.SafetyNotes)
}
