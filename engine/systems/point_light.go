package systems

import (
	"sort"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vulkan3d/engine/core"
	"github.com/spaghettifunk/vulkan3d/engine/renderer"
	"github.com/spaghettifunk/vulkan3d/engine/renderer/vulkan"
	"github.com/spaghettifunk/vulkan3d/engine/scene"
)

type PointLightPushConstants struct {
	Position mgl32.Vec4
	Color    mgl32.Vec4
	Radius   float32
}

// PointLightRenderSystem publishes the lights to the global uniform block and draws each one
// as a camera facing billboard.
type PointLightRenderSystem struct {
	pipelineBase
}

func NewPointLightRenderSystem(device SystemDevice, shaders ShaderCode) *PointLightRenderSystem {
	return &PointLightRenderSystem{
		pipelineBase: pipelineBase{
			device:     device,
			shaders:    shaders,
			pushStages: vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit),
			pushSize:   uint32(unsafe.Sizeof(PointLightPushConstants{})),
		},
	}
}

// CreatePipeline uses alpha blending and no vertex input, the vertex shader builds the quad.
func (s *PointLightRenderSystem) CreatePipeline(renderPass vk.RenderPass) error {
	config := &vulkan.PipelineConfig{}
	vulkan.DefaultPipelineConfig(config)
	vulkan.EnableAlphaBlending(config)
	config.RenderPass = renderPass
	return s.createPipeline(config)
}

func isLight(e *scene.Entity) bool {
	return e.PointLight != nil && e.Transform != nil
}

func (s *PointLightRenderSystem) Update(frame *renderer.FrameData, ubo *renderer.GlobalUbo) error {
	lightIndex := 0
	for _, e := range frame.Entities.All() {
		if !isLight(e) {
			continue
		}
		if lightIndex >= renderer.MaxLights {
			return errors.Wrapf(core.ErrTooManyLights, "scene has more than %d", renderer.MaxLights)
		}
		ubo.PointLights[lightIndex] = renderer.PointLight{
			Position: e.Transform.Translation.Vec4(1),
			Color:    e.Color.Vec4(e.PointLight.LightIntensity),
		}
		lightIndex++
	}
	ubo.NumLights = int32(lightIndex)
	return nil
}

// Render draws the lights back to front so blending composes correctly.
func (s *PointLightRenderSystem) Render(frame *renderer.FrameData) {
	type sortedLight struct {
		entity     *scene.Entity
		distanceSq float32
	}
	cameraPosition := frame.Camera.Position()
	var lights []sortedLight
	for _, e := range frame.Entities.All() {
		if !isLight(e) {
			continue
		}
		offset := cameraPosition.Sub(e.Transform.Translation)
		lights = append(lights, sortedLight{entity: e, distanceSq: offset.Dot(offset)})
	}
	sort.SliceStable(lights, func(i, j int) bool {
		return lights[i].distanceSq > lights[j].distanceSq
	})

	s.bind(frame)
	for _, light := range lights {
		e := light.entity
		s.push(frame, &PointLightPushConstants{
			Position: e.Transform.Translation.Vec4(1),
			Color:    e.Color.Vec4(e.PointLight.LightIntensity),
			Radius:   e.Transform.Scale.X(),
		})
		s.device.CmdDraw(frame.CommandBuffer, 6, 1, 0, 0)
	}
}
