// internal/services/constraints_service_test.go
package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jubenlab/jubengen/internal/models"
	"github.com/jubenlab/jubengen/internal/storage"
)

func newConstraintsService(t *testing.T) *ConstraintsService {
	t.Helper()
	fs, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	return NewConstraintsService(NewProfileService(), fs)
}

func TestBuildConstraintsDefaults(t *testing.T) {
	svc := newConstraintsService(t)

	fused, err := svc.BuildConstraints(ConstraintsOptions{})

	require.NoError(t, err)
	assert.Equal(t, models.DefaultStyleTarget(), fused.StyleTarget)
	assert.Equal(t, "第{ep}集", fused.FormatSpec.EpisodeHeader)
	assert.NotEmpty(t, fused.FusionPolicy.Numeric)
	assert.NotEmpty(t, fused.FusionPolicy.Rhythm)
	assert.NotEmpty(t, fused.FusionPolicy.Format)
	assert.Nil(t, fused.Genre)
}

func TestBuildConstraintsWithGenre(t *testing.T) {
	svc := newConstraintsService(t)

	fused, err := svc.BuildConstraints(ConstraintsOptions{Genre: "悬疑"})

	require.NoError(t, err)
	require.NotNil(t, fused.Genre)
	assert.Equal(t, "悬疑", fused.Genre.Genre)
	assert.NotEmpty(t, fused.Genre.Traits)
}

func TestBuildConstraintsUnknownGenre(t *testing.T) {
	svc := newConstraintsService(t)

	_, err := svc.BuildConstraints(ConstraintsOptions{Genre: "不存在的题材"})

	assert.Error(t, err)
}

func TestSaveConstraintsWritesBothFiles(t *testing.T) {
	svc := newConstraintsService(t)

	fused, err := svc.SaveConstraints(ConstraintsOptions{}, "out", "constraints.fused.json", "style_guide.md")
	require.NoError(t, err)

	data, err := svc.fs.LoadTextFile("out", "constraints.fused.json")
	require.NoError(t, err)
	var loaded models.FusedConstraints
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Equal(t, fused.StyleTarget, loaded.StyleTarget)

	md, err := svc.fs.LoadTextFile("out", "style_guide.md")
	require.NoError(t, err)
	assert.Contains(t, string(md), "# 融合风格约束")
}

func TestStyleGuideMarkdownSections(t *testing.T) {
	svc := newConstraintsService(t)
	fused, err := svc.BuildConstraints(ConstraintsOptions{Genre: "宫斗"})
	require.NoError(t, err)

	md := StyleGuideMarkdown(fused)

	assert.Contains(t, md, "## 结构指标")
	assert.Contains(t, md, "## 格式规范")
	assert.Contains(t, md, "## 节奏硬规则")
	assert.Contains(t, md, "## 结尾钩子四选一")
	assert.Contains(t, md, "## 题材层约束（宫斗）")
	assert.Contains(t, md, "scenes_per_ep")
}
