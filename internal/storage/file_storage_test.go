// internal/storage/file_storage_test.go
package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSaveAndLoadTextFile 验证基本的写读往返
func TestSaveAndLoadTextFile(t *testing.T) {
	fs := newTestStorage(t)

	content := []byte("第1集\n1-1场  天台 夜 外\n人物：林澈\n▲林澈站在天台边缘。")
	require.NoError(t, fs.SaveTextFile("out", "ep1.txt", content))

	loaded, err := fs.LoadTextFile("out", "ep1.txt")
	require.NoError(t, err)
	assert.Equal(t, content, loaded)
}

// TestOverwriteInvalidatesCache 验证覆盖写后读到新内容而非缓存
func TestOverwriteInvalidatesCache(t *testing.T) {
	fs := newTestStorage(t)

	require.NoError(t, fs.SaveTextFile("out", "ep1.txt", []byte("v1")))
	_, err := fs.LoadTextFile("out", "ep1.txt") // 载入缓存
	require.NoError(t, err)

	require.NoError(t, fs.SaveTextFile("out", "ep1.txt", []byte("v2")))
	loaded, err := fs.LoadTextFile("out", "ep1.txt")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(loaded))
}

// TestSaveAndLoadJSONFile 验证 JSON 编解码往返
func TestSaveAndLoadJSONFile(t *testing.T) {
	fs := newTestStorage(t)

	type payload struct {
		Episode int    `json:"episode"`
		Title   string `json:"title"`
	}
	require.NoError(t, fs.SaveJSONFile("out", "meta.json", payload{Episode: 3, Title: "反转"}))

	var got payload
	require.NoError(t, fs.LoadJSONFile("out", "meta.json", &got))
	assert.Equal(t, 3, got.Episode)
	assert.Equal(t, "反转", got.Title)
}

// TestFileExistsAndDelete 验证存在性检查与删除
func TestFileExistsAndDelete(t *testing.T) {
	fs := newTestStorage(t)

	assert.False(t, fs.FileExists("out", "ep1.txt"))
	require.NoError(t, fs.SaveTextFile("out", "ep1.txt", []byte("x")))
	assert.True(t, fs.FileExists("out", "ep1.txt"))

	require.NoError(t, fs.DeleteFile("out", "ep1.txt"))
	assert.False(t, fs.FileExists("out", "ep1.txt"))

	err := fs.DeleteFile("out", "ep1.txt")
	require.Error(t, err)
}

// TestListFiles 验证文件列举不包含子目录
func TestListFiles(t *testing.T) {
	fs := newTestStorage(t)

	require.NoError(t, fs.SaveTextFile("out", "ep1.txt", []byte("a")))
	require.NoError(t, fs.SaveTextFile("out", "ep2.txt", []byte("b")))
	require.NoError(t, fs.SaveTextFile("out/reviews", "ep1_round0.txt", []byte("c")))

	files, err := fs.ListFiles("out")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ep1.txt", "ep2.txt"}, files)

	dirs, err := fs.ListDirs("out")
	require.NoError(t, err)
	assert.Equal(t, []string{"reviews"}, dirs)
}
