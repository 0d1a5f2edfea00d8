package systems

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vulkan3d/engine/core"
	"github.com/spaghettifunk/vulkan3d/engine/renderer"
	"github.com/spaghettifunk/vulkan3d/engine/renderer/vulkan"
)

// RenderSystem draws one kind of entity with its own pipeline. CreatePipelineLayout must be
// called before CreatePipeline.
type RenderSystem interface {
	CreatePipelineLayout(globalSetLayout vk.DescriptorSetLayout) error
	CreatePipeline(renderPass vk.RenderPass) error
	Update(frame *renderer.FrameData, ubo *renderer.GlobalUbo) error
	Render(frame *renderer.FrameData)
	Destroy()
}

// SystemDevice builds pipelines and records draws.
type SystemDevice interface {
	vulkan.PipelineDevice
	vulkan.CommandDevice
}

// ShaderCode holds the SPIR-V of a vertex and fragment stage pair.
type ShaderCode struct {
	Vertex   []uint32
	Fragment []uint32
}

// pipelineBase is the layout and pipeline bookkeeping shared by the render systems.
type pipelineBase struct {
	device         SystemDevice
	shaders        ShaderCode
	pushStages     vk.ShaderStageFlags
	pushSize       uint32
	pipelineLayout vk.PipelineLayout
	pipeline       *vulkan.Pipeline
}

func (b *pipelineBase) CreatePipelineLayout(globalSetLayout vk.DescriptorSetLayout) error {
	pushConstantRange := vk.PushConstantRange{
		StageFlags: b.pushStages,
		Offset:     0,
		Size:       b.pushSize,
	}
	layout, err := vulkan.NewPipelineLayout(b.device, []vk.DescriptorSetLayout{globalSetLayout}, []vk.PushConstantRange{pushConstantRange})
	if err != nil {
		return err
	}
	b.pipelineLayout = layout
	return nil
}

func (b *pipelineBase) createPipeline(config *vulkan.PipelineConfig) error {
	if b.pipelineLayout == nil {
		return errors.AssertionFailedf("pipeline cannot be created before the pipeline layout")
	}
	config.PipelineLayout = b.pipelineLayout
	pipeline, err := vulkan.NewGraphicsPipeline(b.device, b.shaders.Vertex, b.shaders.Fragment, config)
	if err != nil {
		return err
	}
	b.pipeline = pipeline
	return nil
}

// bind binds the pipeline and the frame's global descriptor set.
func (b *pipelineBase) bind(frame *renderer.FrameData) {
	b.pipeline.Bind(b.device, frame.CommandBuffer)
	b.device.CmdBindDescriptorSets(frame.CommandBuffer, vk.PipelineBindPointGraphics, b.pipelineLayout, 0, []vk.DescriptorSet{frame.GlobalDescriptorSet})
}

func (b *pipelineBase) push(frame *renderer.FrameData, data interface{}) {
	raw, err := vulkan.Encode(data)
	if err != nil {
		core.LogError(err.Error())
		return
	}
	b.device.CmdPushConstants(frame.CommandBuffer, b.pipelineLayout, b.pushStages, 0, raw)
}

func (b *pipelineBase) Destroy() {
	if b.pipeline != nil {
		b.pipeline.Destroy()
		b.pipeline = nil
	}
	if b.pipelineLayout != nil {
		b.device.DestroyPipelineLayout(b.pipelineLayout)
		b.pipelineLayout = nil
	}
}

// InitRenderSystem creates the layout, then the pipeline of rs.
func InitRenderSystem(rs RenderSystem, globalSetLayout vk.DescriptorSetLayout, renderPass vk.RenderPass) error {
	if err := rs.CreatePipelineLayout(globalSetLayout); err != nil {
		return err
	}
	if err := rs.CreatePipeline(renderPass); err != nil {
		rs.Destroy()
		return err
	}
	return nil
}
