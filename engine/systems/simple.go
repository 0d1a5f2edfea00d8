package systems

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vulkan3d/engine/renderer"
	"github.com/spaghettifunk/vulkan3d/engine/renderer/vulkan"
	"github.com/spaghettifunk/vulkan3d/engine/resources"
)

type SimplePushConstants struct {
	ModelMatrix  mgl32.Mat4
	NormalMatrix mgl32.Mat4
}

// SimpleRenderSystem draws every entity that has a model and a transform.
type SimpleRenderSystem struct {
	pipelineBase
}

func NewSimpleRenderSystem(device SystemDevice, shaders ShaderCode) *SimpleRenderSystem {
	return &SimpleRenderSystem{
		pipelineBase: pipelineBase{
			device:     device,
			shaders:    shaders,
			pushStages: vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit),
			pushSize:   uint32(unsafe.Sizeof(SimplePushConstants{})),
		},
	}
}

func (s *SimpleRenderSystem) CreatePipeline(renderPass vk.RenderPass) error {
	config := &vulkan.PipelineConfig{}
	vulkan.DefaultPipelineConfig(config)
	config.BindingDescriptions = resources.VertexBindingDescriptions()
	config.AttributeDescriptions = resources.VertexAttributeDescriptions()
	config.RenderPass = renderPass
	return s.createPipeline(config)
}

func (s *SimpleRenderSystem) Update(frame *renderer.FrameData, ubo *renderer.GlobalUbo) error {
	return nil
}

func (s *SimpleRenderSystem) Render(frame *renderer.FrameData) {
	s.bind(frame)

	for _, e := range frame.Entities.All() {
		if e.Model == nil || e.Model.Model == nil || e.Transform == nil {
			continue
		}
		s.push(frame, &SimplePushConstants{
			ModelMatrix:  e.Transform.Mat4(),
			NormalMatrix: e.Transform.NormalMatrix(),
		})
		e.Model.Model.Bind(frame.CommandBuffer)
		e.Model.Model.Draw(frame.CommandBuffer)
	}
}
