// internal/rules/rules_test.go
package rules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRuleFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadRulesFromFiles(t *testing.T) {
	dir := t.TempDir()
	rhythm := writeRuleFile(t, dir, "rhythm.txt", "  每集一个核心冲突。\n结尾必须有钩子。\n\n")
	endHook := writeRuleFile(t, dir, "end_hook.txt", "四选一：危机升级/信息反转/情感抉择/冲突卡点")
	tmpl := writeRuleFile(t, dir, "card.txt", "第N集\n1-1场  场景名\t日\t内")

	rules, err := LoadRulesFromFiles(rhythm, endHook, tmpl)
	require.NoError(t, err)

	// 首尾空白被去除，内部换行保留
	assert.Equal(t, "每集一个核心冲突。\n结尾必须有钩子。", rules.RhythmNotes)
	assert.Equal(t, "四选一：危机升级/信息反转/情感抉择/冲突卡点", rules.EndHookNotes)
	assert.Contains(t, rules.CardTemplateNotes, "1-1场")
}

func TestLoadRulesFromFilesMissing(t *testing.T) {
	dir := t.TempDir()
	rhythm := writeRuleFile(t, dir, "rhythm.txt", "节奏")
	endHook := writeRuleFile(t, dir, "end_hook.txt", "钩子")

	_, err := LoadRulesFromFiles(rhythm, endHook, filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestRedfruitSafetyNotes(t *testing.T) {
	notes := RedfruitSafetyNotes()

	assert.Contains(t, notes, "合规约束（通用）")
	assert.Contains(t, notes, "镜头处理")
	assert.Contains(t, notes, "价值导向")
	assert.Len(t, strings.Split(notes, "\n"), 3)
}
