package loaders

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quadOBJ = `o quad
v -1 -1 0
v 1 -1 0
v 1 1 0
v -1 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
f 1/1/1 2/2/1 3/3/1 4/4/1
`

func TestDecodeOBJTriangulatesAndDeduplicates(t *testing.T) {
	data, err := DecodeOBJ(strings.NewReader(quadOBJ), strings.NewReader(""))
	require.NoError(t, err)

	require.Len(t, data.Vertices, 4)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, data.Indices)

	v := data.Vertices[2]
	assert.Equal(t, mgl32.Vec3{1, 1, 0}, v.Position)
	assert.Equal(t, mgl32.Vec3{0, 0, 1}, v.Normal)
	assert.Equal(t, mgl32.Vec2{1, 1}, v.UV)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, v.Color)
}

func TestDecodeOBJWithoutNormalsOrUVs(t *testing.T) {
	src := "o tri\nv 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"
	data, err := DecodeOBJ(strings.NewReader(src), strings.NewReader(""))
	require.NoError(t, err)

	require.Len(t, data.Vertices, 3)
	for _, v := range data.Vertices {
		assert.Equal(t, mgl32.Vec3{}, v.Normal)
		assert.Equal(t, mgl32.Vec2{}, v.UV)
	}
}

func TestDecodeOBJKeepsDistinctNormals(t *testing.T) {
	// Two triangles share positions 1 and 3 but not their normals.
	src := `o split
v 0 0 0
v 1 0 0
v 0 1 0
v 1 1 0
vn 0 0 1
vn 0 0 -1
f 1//1 2//1 3//1
f 3//2 2//2 4//2
`
	data, err := DecodeOBJ(strings.NewReader(src), strings.NewReader(""))
	require.NoError(t, err)
	assert.Len(t, data.Vertices, 6)
	assert.Len(t, data.Indices, 6)
}

func TestDecodeOBJWithoutFaces(t *testing.T) {
	_, err := DecodeOBJ(strings.NewReader("o empty\nv 0 0 0\n"), strings.NewReader(""))
	assert.Error(t, err)
}

func TestModelLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quad.obj")
	require.NoError(t, os.WriteFile(path, []byte(quadOBJ), 0o644))

	loader := &ModelLoader{}
	res, err := loader.Load(path, "quad")
	require.NoError(t, err)
	assert.Equal(t, ResourceTypeModel, res.Type)
	assert.Equal(t, "quad", res.Name)
	assert.Equal(t, path, res.FullPath)
	assert.Equal(t, uint64(4*44+6*4), res.DataSize)

	data, ok := res.Data.(*ModelData)
	require.True(t, ok)
	assert.Len(t, data.Indices, 6)

	require.NoError(t, loader.Unload(res))
	assert.Nil(t, res.Data)
}

func TestLoadOBJMissingFile(t *testing.T) {
	_, err := LoadOBJ(filepath.Join(t.TempDir(), "missing.obj"))
	assert.Error(t, err)
}
