package engine

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/vulkan3d/engine/core"
	"github.com/spaghettifunk/vulkan3d/engine/renderer/vulkan/vulkantest"
	"github.com/spaghettifunk/vulkan3d/engine/scene"
)

const quadOBJ = `v -1 0 -1
v 1 0 -1
v 1 0 1
v -1 0 1
vn 0 -1 0
f 1//1 2//1 3//1 4//1
`

// loopWindow closes itself after a fixed number of polls.
type loopWindow struct {
	*vulkantest.FakeWindow
	polls     int
	maxPolls  int
	destroyed int
}

func (w *loopWindow) ShouldClose() bool {
	return w.polls >= w.maxPolls
}

func (w *loopWindow) PollEvents() {
	w.polls++
}

func (w *loopWindow) Destroy() {
	w.destroyed++
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func testConfig(t *testing.T) *ApplicationConfig {
	t.Helper()
	root := t.TempDir()
	cfg := core.DefaultConfig()
	cfg.Assets.ShaderDir = filepath.Join(root, "shaders")
	cfg.Assets.ModelDir = filepath.Join(root, "models")

	spirv := make([]byte, 8)
	binary.LittleEndian.PutUint32(spirv, 0x07230203)
	binary.LittleEndian.PutUint32(spirv[4:], 0x00010000)
	for _, name := range []string{"simple_shader.vert", "simple_shader.frag", "point_light.vert", "point_light.frag"} {
		writeFile(t, filepath.Join(cfg.Assets.ShaderDir, name+".spv"), spirv)
	}
	writeFile(t, filepath.Join(cfg.Assets.ModelDir, "quad.obj"), []byte(quadOBJ))
	return NewApplicationConfig(cfg)
}

func TestEngineRunsFrames(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	window := &loopWindow{FakeWindow: vulkantest.NewFakeWindow(800, 600), maxPolls: 3}

	var updates []float32
	game := &Game{
		ApplicationConfig: testConfig(t),
		FnInitialize: func(e *Engine) error {
			models, err := e.LoadModels("quad")
			if err != nil {
				return err
			}
			floor := scene.NewEntity()
			floor.Model = &scene.ModelComponent{Model: models["quad"]}
			e.Entities().Add(floor)

			light := scene.NewPointLight(0.2, 0.1, mgl32.Vec3{1, 1, 1})
			light.Transform.Translation = mgl32.Vec3{0, -1, 0}
			e.Entities().Add(light)
			return nil
		},
		FnUpdate: func(e *Engine, deltaTime float32) error {
			updates = append(updates, deltaTime)
			return nil
		},
	}

	e := New(game)
	require.NoError(t, e.initialize(window, device))
	assert.Equal(t, EngineStageInitialized, e.Stage())
	assert.Equal(t, ViewerStart, e.Viewer().Transform.Translation)

	require.NoError(t, e.Run())
	assert.Len(t, updates, 3)
	assert.Equal(t, uint64(3), e.renderer.FrameNumber())

	// One indexed floor draw and one light billboard per frame.
	draws := device.Draws()
	require.Len(t, draws, 6)
	assert.True(t, draws[0].Indexed)
	assert.Equal(t, uint32(6), draws[0].Count)
	assert.False(t, draws[1].Indexed)

	// The camera sits at the viewer position.
	assert.InDelta(t, -2.5, e.Camera().Position().Z(), 1e-5)

	require.NoError(t, e.Shutdown())
	require.NoError(t, e.Shutdown())
	assert.Equal(t, 1, window.destroyed)
	assert.Equal(t, 1, device.WaitIdleCalls())
	assert.Equal(t, map[string]int{"surface": 1}, device.LiveObjects())
	assert.Empty(t, device.Violations())
}

func TestEngineStop(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	window := &loopWindow{FakeWindow: vulkantest.NewFakeWindow(800, 600), maxPolls: 100}

	game := &Game{ApplicationConfig: testConfig(t)}
	game.FnUpdate = func(e *Engine, deltaTime float32) error {
		e.Stop()
		return nil
	}
	e := New(game)
	require.NoError(t, e.initialize(window, device))
	require.NoError(t, e.Run())
	assert.Equal(t, 1, window.polls)
	require.NoError(t, e.Shutdown())
}

func TestEngineMissingShaders(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	window := &loopWindow{FakeWindow: vulkantest.NewFakeWindow(800, 600)}

	cfg := testConfig(t)
	cfg.SimpleShader = "missing"
	e := New(&Game{ApplicationConfig: cfg})
	require.Error(t, e.initialize(window, device))
	assert.Equal(t, EngineStageShuttingDown, e.Stage())
	assert.Equal(t, 1, window.destroyed)
	assert.Equal(t, map[string]int{"surface": 1}, device.LiveObjects())
}

func TestEngineMissingModel(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	window := &loopWindow{FakeWindow: vulkantest.NewFakeWindow(800, 600)}

	game := &Game{
		ApplicationConfig: testConfig(t),
		FnInitialize: func(e *Engine) error {
			_, err := e.LoadModels("quad", "nope")
			return err
		},
	}
	e := New(game)
	err := e.initialize(window, device)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
	assert.Equal(t, map[string]int{"surface": 1}, device.LiveObjects())
}

func TestEngineRunBeforeInitialize(t *testing.T) {
	e := New(&Game{})
	assert.Error(t, e.Run())
}
