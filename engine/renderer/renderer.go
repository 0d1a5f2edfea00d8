package renderer

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vulkan3d/engine/core"
	"github.com/spaghettifunk/vulkan3d/engine/renderer/components"
	"github.com/spaghettifunk/vulkan3d/engine/renderer/vulkan"
	"github.com/spaghettifunk/vulkan3d/engine/scene"
)

// Pass records the scene into a frame. Update runs before the render pass begins and fills
// the uniform block, Render records the draws.
type Pass interface {
	Update(frame *FrameData, ubo *GlobalUbo) error
	Render(frame *FrameData)
}

// Renderer owns the frame lifecycle and the per frame global uniform data.
type Renderer struct {
	device  vulkan.Device
	backend *vulkan.Renderer

	globalPool      *vulkan.DescriptorPool
	globalSetLayout *vulkan.DescriptorSetLayout
	uboBuffer       *vulkan.Buffer
	globalSets      []vk.DescriptorSet

	frameNumber uint64
}

func New(device vulkan.Device, window vulkan.Window, config core.RendererConfig) (*Renderer, error) {
	backend, err := vulkan.NewRenderer(device, window, vulkan.RendererConfig{
		FramesInFlight: config.FramesInFlight,
		ClearColor:     config.ClearColor,
	})
	if err != nil {
		return nil, err
	}
	r := &Renderer{
		device:  device,
		backend: backend,
	}
	if err := r.createGlobalResources(); err != nil {
		r.Destroy()
		return nil, err
	}
	return r, nil
}

func (r *Renderer) createGlobalResources() error {
	frames := uint32(r.backend.FramesInFlight())

	pool, err := vulkan.NewDescriptorPoolBuilder(r.device).
		SetMaxSets(frames).
		AddPoolSize(vk.DescriptorTypeUniformBuffer, frames).
		Build()
	if err != nil {
		return err
	}
	r.globalPool = pool

	// Each frame's slice is flushed on its own, so the stride must satisfy both limits.
	alignment := max(r.device.MinUniformBufferOffsetAlignment(), r.device.NonCoherentAtomSize())
	buffer, err := vulkan.NewBuffer(
		r.device,
		vk.DeviceSize(unsafe.Sizeof(GlobalUbo{})),
		frames,
		vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit),
		alignment,
	)
	if err != nil {
		return err
	}
	r.uboBuffer = buffer
	if res := buffer.Map(vulkan.WholeSize, 0); res != vk.Success {
		return errors.Newf("mapping global uniform buffer: %s", vulkan.VulkanResultString(res, true))
	}

	layout, err := vulkan.NewDescriptorSetLayoutBuilder(r.device).
		AddBinding(0, vk.DescriptorTypeUniformBuffer, vk.ShaderStageFlags(vk.ShaderStageAllGraphics), 1).
		Build()
	if err != nil {
		return err
	}
	r.globalSetLayout = layout

	r.globalSets = make([]vk.DescriptorSet, frames)
	for i := range r.globalSets {
		set, err := vulkan.NewDescriptorWriter(layout, pool).
			WriteBuffer(0, buffer.DescriptorInfoForIndex(uint32(i))).
			Build()
		if err != nil {
			return err
		}
		r.globalSets[i] = set
	}
	return nil
}

// Destroy releases everything in reverse creation order. The device must be idle.
func (r *Renderer) Destroy() {
	if r.globalSetLayout != nil {
		r.globalSetLayout.Destroy()
		r.globalSetLayout = nil
	}
	if r.uboBuffer != nil {
		r.uboBuffer.Destroy()
		r.uboBuffer = nil
	}
	if r.globalPool != nil {
		r.globalPool.Destroy()
		r.globalPool = nil
	}
	r.globalSets = nil
	if r.backend != nil {
		r.backend.Destroy()
		r.backend = nil
	}
}

// DrawFrame records and presents one frame. A frame dropped for a swap chain rebuild is not
// an error.
func (r *Renderer) DrawFrame(frameTime float32, camera *components.Camera, entities *scene.EntityMap, pass Pass) error {
	cb, err := r.backend.BeginFrame()
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	if cb == nil {
		return nil
	}
	frameIndex, err := r.backend.CurrentFrameIndex()
	if err != nil {
		return r.abortFrame(cb, err)
	}

	frame := &FrameData{
		FrameIndex:          frameIndex,
		FrameTime:           frameTime,
		CommandBuffer:       cb,
		Camera:              camera,
		GlobalDescriptorSet: r.globalSets[frameIndex],
		Entities:            entities,
	}

	ubo := NewGlobalUbo()
	ubo.Projection = camera.Projection()
	ubo.View = camera.View()
	ubo.InverseView = camera.InverseView()
	if err := pass.Update(frame, ubo); err != nil {
		return r.abortFrame(cb, err)
	}
	if err := r.writeUbo(ubo, frameIndex); err != nil {
		return r.abortFrame(cb, err)
	}

	if err := r.backend.BeginSwapChainRenderPass(cb); err != nil {
		return errors.CombineErrors(err, r.backend.EndFrame())
	}
	pass.Render(frame)
	if err := r.backend.EndSwapChainRenderPass(cb); err != nil {
		return errors.CombineErrors(err, r.backend.EndFrame())
	}
	if err := r.backend.EndFrame(); err != nil {
		core.LogError("RendererEndFrame failed. Application shutting down...")
		return err
	}
	r.frameNumber++
	return nil
}

// abortFrame ends a frame that failed after BeginFrame. The acquired image still goes
// through an empty render pass and is presented so its fence gets signaled.
func (r *Renderer) abortFrame(cb vk.CommandBuffer, cause error) error {
	core.LogError("frame %d aborted: %s", r.frameNumber, cause.Error())
	if err := r.backend.BeginSwapChainRenderPass(cb); err != nil {
		return errors.CombineErrors(cause, errors.CombineErrors(err, r.backend.EndFrame()))
	}
	if err := r.backend.EndSwapChainRenderPass(cb); err != nil {
		return errors.CombineErrors(cause, errors.CombineErrors(err, r.backend.EndFrame()))
	}
	return errors.CombineErrors(cause, r.backend.EndFrame())
}

func (r *Renderer) writeUbo(ubo *GlobalUbo, frameIndex int) error {
	data, err := ubo.Encode()
	if err != nil {
		return err
	}
	if err := r.uboBuffer.WriteToIndex(data, uint32(frameIndex)); err != nil {
		return err
	}
	// The memory is not host coherent.
	if res := r.uboBuffer.FlushIndex(uint32(frameIndex)); res != vk.Success {
		return errors.Newf("flushing global uniform buffer: %s", vulkan.VulkanResultString(res, true))
	}
	return nil
}

func (r *Renderer) AspectRatio() float32 {
	return r.backend.AspectRatio()
}

func (r *Renderer) RenderPass() vk.RenderPass {
	return r.backend.SwapChainRenderPass()
}

func (r *Renderer) GlobalSetLayout() vk.DescriptorSetLayout {
	return r.globalSetLayout.Handle()
}

func (r *Renderer) FramesInFlight() int {
	return r.backend.FramesInFlight()
}

// FrameNumber counts the frames that were presented.
func (r *Renderer) FrameNumber() uint64 {
	return r.frameNumber
}

func (r *Renderer) Backend() *vulkan.Renderer {
	return r.backend
}
