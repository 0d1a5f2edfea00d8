package assets

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/vulkan3d/engine/core"
)

const triangleOBJ = "o tri\nv 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"

func spirv(words ...uint32) []byte {
	data := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(data[i*4:], w)
	}
	return data
}

func newAssetDirs(t *testing.T) core.AssetsConfig {
	t.Helper()
	root := t.TempDir()
	cfg := core.AssetsConfig{
		ShaderDir: filepath.Join(root, "shaders"),
		ModelDir:  filepath.Join(root, "models"),
	}
	require.NoError(t, os.MkdirAll(cfg.ShaderDir, 0o755))
	require.NoError(t, os.MkdirAll(cfg.ModelDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.ShaderDir, "simple.vert.spv"), spirv(0x07230203, 1), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.ShaderDir, "simple.vert"), []byte("#version 450"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.ModelDir, "tri.obj"), []byte(triangleOBJ), 0o644))
	return cfg
}

func TestAssetManagerLoads(t *testing.T) {
	cfg := newAssetDirs(t)
	am := NewAssetManager(cfg)
	require.NoError(t, am.Initialize())
	defer am.Close()

	// GLSL sources are not assets, only their compiled output is.
	assert.Equal(t, 2, am.Len())

	code, err := am.LoadShader("simple.vert")
	require.NoError(t, err)
	assert.Equal(t, []uint32{0x07230203, 1}, code)

	info, ok := am.Info(filepath.Join(cfg.ShaderDir, "simple.vert.spv"))
	require.True(t, ok)
	assert.False(t, info.LastLoaded.IsZero())

	model, err := am.LoadModel("tri")
	require.NoError(t, err)
	assert.Len(t, model.Vertices, 3)
	assert.Equal(t, []uint32{0, 1, 2}, model.Indices)

	_, err = am.LoadShader("missing")
	assert.Error(t, err)
	_, err = am.LoadModel("simple.vert")
	assert.Error(t, err)
}

func TestAssetManagerMissingDirectory(t *testing.T) {
	am := NewAssetManager(core.AssetsConfig{
		ShaderDir: filepath.Join(t.TempDir(), "nope"),
		ModelDir:  filepath.Join(t.TempDir(), "nope"),
	})
	require.NoError(t, am.Initialize())
	defer am.Close()
	assert.Equal(t, 0, am.Len())
}

func TestAssetManagerWatchesChanges(t *testing.T) {
	cfg := newAssetDirs(t)
	cfg.Watch = true
	am := NewAssetManager(cfg)
	require.NoError(t, am.Initialize())

	path := filepath.Join(cfg.ShaderDir, "point_light.frag.spv")
	require.NoError(t, os.WriteFile(path, spirv(0x07230203, 2, 3), 0o644))

	select {
	case changed := <-am.Changes():
		assert.Equal(t, path, changed)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported for new shader")
	}

	assert.Eventually(t, func() bool {
		code, err := am.LoadShader("point_light.frag")
		return err == nil && len(code) == 3
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(path))
	assert.Eventually(t, func() bool {
		_, ok := am.Info(path)
		return !ok
	}, 5*time.Second, 10*time.Millisecond)

	am.Close()
	am.Close()
}
