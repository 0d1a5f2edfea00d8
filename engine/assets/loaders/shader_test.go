package loaders

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSPIRV(t *testing.T, dir, name string, words ...uint32) string {
	t.Helper()
	data := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(data[i*4:], w)
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestShaderLoader(t *testing.T) {
	path := writeSPIRV(t, t.TempDir(), "simple.vert.spv", 0x07230203, 0x00010000, 42)

	loader := &ShaderLoader{}
	res, err := loader.Load(path, "simple.vert")
	require.NoError(t, err)
	assert.Equal(t, ResourceTypeShader, res.Type)
	assert.Equal(t, uint64(12), res.DataSize)
	assert.Equal(t, []uint32{0x07230203, 0x00010000, 42}, res.Data)
	assert.NotEqual(t, res.ID.String(), "")

	require.NoError(t, loader.Unload(res))
	assert.Nil(t, res.Data)
}

func TestShaderLoaderRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	loader := &ShaderLoader{}

	_, err := loader.Load(writeSPIRV(t, dir, "bad.spv", 0xdeadbeef), "bad")
	assert.Error(t, err)

	_, err = loader.Load(filepath.Join(dir, "missing.spv"), "missing")
	assert.Error(t, err)
}
