package testbed

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/vulkan3d/engine"
	"github.com/spaghettifunk/vulkan3d/engine/core"
	"github.com/spaghettifunk/vulkan3d/engine/math"
	"github.com/spaghettifunk/vulkan3d/engine/resources"
	"github.com/spaghettifunk/vulkan3d/engine/scene"
)

const (
	flatVase   = "flat_vase"
	smoothVase = "smooth_vase"
	floorQuad  = "quad"

	// Radians per second the light ring turns around the vertical axis.
	lightOrbitSpeed = 0.5
)

var lightColors = []mgl32.Vec3{
	{1, .1, .1},
	{.1, .1, 1},
	{.1, 1, .1},
	{1, 1, .1},
	{.1, 1, 1},
	{1, 1, 1},
}

type TestGame struct {
	*engine.Game
}

type gameState struct {
	lights []*scene.Entity
}

func NewTestGame(cfg *core.Config) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: engine.NewApplicationConfig(cfg),
			State:             &gameState{},
		},
	}
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnShutdown = tg.Shutdown
	return tg
}

func (g *TestGame) Initialize(e *engine.Engine) error {
	core.LogDebug("TestGame Initialize fn....")

	models, err := e.LoadModels(flatVase, smoothVase, floorQuad)
	if err != nil {
		return errors.Wrap(err, "loading testbed models")
	}
	state := g.State.(*gameState)
	state.lights = populateScene(e.Entities(), models)
	return nil
}

// populateScene places the vases on the floor and a ring of lights above them.
func populateScene(entities *scene.EntityMap, models map[string]*resources.Model) []*scene.Entity {
	flat := scene.NewEntity()
	flat.Model = &scene.ModelComponent{Model: models[flatVase]}
	flat.Transform.Translation = mgl32.Vec3{-.5, .5, 0}
	flat.Transform.Scale = mgl32.Vec3{3, 1.5, 3}
	entities.Add(flat)

	smooth := scene.NewEntity()
	smooth.Model = &scene.ModelComponent{Model: models[smoothVase]}
	smooth.Transform.Translation = mgl32.Vec3{.5, .5, 0}
	smooth.Transform.Scale = mgl32.Vec3{3, 1.5, 3}
	entities.Add(smooth)

	floor := scene.NewEntity()
	floor.Model = &scene.ModelComponent{Model: models[floorQuad]}
	floor.Transform.Translation = mgl32.Vec3{0, .5, 0}
	floor.Transform.Scale = mgl32.Vec3{3, 1, 3}
	entities.Add(floor)

	lights := make([]*scene.Entity, 0, len(lightColors))
	for i, color := range lightColors {
		light := scene.NewPointLight(0.2, 0.1, color)
		angle := float32(i) * float32(math.TwoPi) / float32(len(lightColors))
		light.Transform.Translation = mgl32.Rotate3DY(-angle).Mul3x1(mgl32.Vec3{-1, -1, -1})
		entities.Add(light)
		lights = append(lights, light)
	}
	return lights
}

// orbitLights turns every light around the vertical axis, up being -Y.
func orbitLights(lights []*scene.Entity, deltaTime float32) {
	rotation := mgl32.Rotate3DY(-lightOrbitSpeed * deltaTime)
	for _, light := range lights {
		light.Transform.Translation = rotation.Mul3x1(light.Transform.Translation)
	}
}

func (g *TestGame) Update(e *engine.Engine, deltaTime float32) error {
	orbitLights(g.State.(*gameState).lights, deltaTime)
	return nil
}

func (g *TestGame) Shutdown() error {
	core.LogDebug("TestGame Shutdown fn....")
	g.State = &gameState{}
	return nil
}
