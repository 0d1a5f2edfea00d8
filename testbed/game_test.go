package testbed

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/vulkan3d/engine/core"
	"github.com/spaghettifunk/vulkan3d/engine/resources"
	"github.com/spaghettifunk/vulkan3d/engine/scene"
)

func TestPopulateScene(t *testing.T) {
	entities := scene.NewEntityMap()
	lights := populateScene(entities, map[string]*resources.Model{})

	assert.Equal(t, 9, entities.Len())
	require.Len(t, lights, 6)

	models := 0
	for _, e := range entities.All() {
		if e.Model != nil {
			models++
		}
	}
	assert.Equal(t, 3, models)

	for i, light := range lights {
		require.NotNil(t, light.PointLight)
		assert.Equal(t, lightColors[i], light.Color)
		pos := light.Transform.Translation
		// Every light sits on the same ring one unit above the floor plane.
		assert.InDelta(t, -1, pos.Y(), 1e-5)
		assert.InDelta(t, 2, pos.X()*pos.X()+pos.Z()*pos.Z(), 1e-5)
	}
	assert.True(t, lights[0].Transform.Translation.ApproxEqualThreshold(mgl32.Vec3{-1, -1, -1}, 1e-5))
}

func TestOrbitLightsKeepsRadius(t *testing.T) {
	lights := populateScene(scene.NewEntityMap(), nil)
	before := lights[1].Transform.Translation
	orbitLights(lights, 0.25)
	after := lights[1].Transform.Translation

	assert.False(t, before.ApproxEqualThreshold(after, 1e-4))
	assert.InDelta(t, before.Len(), after.Len(), 1e-5)
	assert.InDelta(t, before.Y(), after.Y(), 1e-6)
}

func TestNewTestGameUsesConfig(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Window.Title = "testbed"
	g := NewTestGame(cfg)
	assert.Equal(t, "testbed", g.ApplicationConfig.Window.Title)
	assert.NotNil(t, g.FnInitialize)
	assert.NotNil(t, g.FnUpdate)
	require.NoError(t, g.Shutdown())
}
