package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vulkan3d/engine/core"
)

// Window is what the renderer needs from the platform window.
type Window interface {
	// Extent is the current framebuffer size in pixels. Zero while minimized.
	Extent() vk.Extent2D
	// WaitEvents blocks until at least one window event has been processed.
	WaitEvents()
	WasResized() bool
	ResetResizedFlag()
}

type RendererConfig struct {
	FramesInFlight int
	ClearColor     [4]float32
}

// Renderer drives the frame lifecycle: acquire, record, submit, present and swap chain
// rebuilds. It is not safe for concurrent use, every call belongs on the render thread.
type Renderer struct {
	device Device
	window Window
	config RendererConfig

	swapChain      *SwapChain
	commandBuffers []*CommandBuffer

	currentImageIndex uint32
	currentFrameIndex int
	isFrameStarted    bool
}

func NewRenderer(device Device, window Window, config RendererConfig) (*Renderer, error) {
	if config.FramesInFlight < 1 {
		config.FramesInFlight = DefaultFramesInFlight
	}
	r := &Renderer{
		device: device,
		window: window,
		config: config,
	}
	if err := r.recreateSwapChain(); err != nil {
		return nil, err
	}
	if err := r.createCommandBuffers(); err != nil {
		r.swapChain.Destroy()
		return nil, err
	}
	return r, nil
}

func (r *Renderer) Destroy() {
	r.freeCommandBuffers()
	if r.swapChain != nil {
		r.swapChain.Destroy()
		r.swapChain = nil
	}
}

func (r *Renderer) createCommandBuffers() error {
	buffers, err := NewCommandBuffers(r.device, uint32(r.config.FramesInFlight))
	if err != nil {
		return err
	}
	r.commandBuffers = buffers
	return nil
}

func (r *Renderer) freeCommandBuffers() {
	FreeCommandBuffers(r.device, r.commandBuffers)
	r.commandBuffers = nil
}

// recreateSwapChain blocks while the window has a zero sized framebuffer, then replaces the
// swap chain. The replacement must keep the image and depth formats of its predecessor.
func (r *Renderer) recreateSwapChain() error {
	extent := r.window.Extent()
	for extent.Width == 0 || extent.Height == 0 {
		r.window.WaitEvents()
		extent = r.window.Extent()
	}

	if res := r.device.WaitIdle(); res != vk.Success {
		err := errors.Newf("failed waiting for device idle: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}

	config := SwapChainConfig{
		WindowExtent:   extent,
		FramesInFlight: r.config.FramesInFlight,
		ClearColor:     r.config.ClearColor,
	}

	if r.swapChain == nil {
		sc, err := NewSwapChain(r.device, config, nil)
		if err != nil {
			return err
		}
		r.swapChain = sc
		return nil
	}

	previous := r.swapChain
	previousFormats := previous.Formats()
	// The old chain is consumed by the handoff, whatever the outcome.
	r.swapChain = nil
	sc, err := NewSwapChain(r.device, config, previous)
	if err != nil {
		return err
	}
	r.swapChain = sc

	if !sc.CompareFormats(previousFormats) {
		err := errors.Wrapf(core.ErrSwapchainFormatChanged, "image %d -> %d, depth %d -> %d",
			previousFormats.Image, sc.ImageFormat(), previousFormats.Depth, sc.DepthFormat())
		core.LogError(err.Error())
		return err
	}
	core.LogDebug("Swapchain recreated: %dx%d", sc.Width(), sc.Height())
	return nil
}

// BeginFrame acquires the next image and starts recording the frame's command buffer.
// When the swap chain had to be rebuilt it returns a nil command buffer and no error: skip
// the frame and try again.
func (r *Renderer) BeginFrame() (vk.CommandBuffer, error) {
	if r.isFrameStarted {
		return nil, core.ContractViolation(core.ErrFrameInProgress, "cannot call BeginFrame while frame %d is in progress", r.currentFrameIndex)
	}

	imageIndex, res := r.swapChain.AcquireNextImage()
	if res == vk.ErrorOutOfDate {
		if err := r.recreateSwapChain(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if res != vk.Success && res != vk.Suboptimal {
		err := errors.Newf("failed to acquire swap chain image: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	r.currentImageIndex = imageIndex

	cb := r.commandBuffers[r.currentFrameIndex]
	if err := cb.Begin(r.device, false, false); err != nil {
		return nil, err
	}
	r.isFrameStarted = true
	return cb.Handle, nil
}

// EndFrame finishes recording, submits and presents. The swap chain is rebuilt when it is
// out of date, suboptimal or the window was resized.
func (r *Renderer) EndFrame() error {
	if !r.isFrameStarted {
		return core.ContractViolation(core.ErrFrameNotInProgress, "cannot call EndFrame while frame is not in progress")
	}
	cb := r.commandBuffers[r.currentFrameIndex]
	if err := cb.End(r.device); err != nil {
		return err
	}

	res := r.swapChain.SubmitCommandBuffers(cb.Handle, r.currentImageIndex)
	cb.UpdateSubmitted()
	r.isFrameStarted = false
	r.currentFrameIndex = (r.currentFrameIndex + 1) % r.config.FramesInFlight

	if res == vk.ErrorOutOfDate || res == vk.Suboptimal || r.window.WasResized() {
		r.window.ResetResizedFlag()
		return r.recreateSwapChain()
	}
	if res != vk.Success {
		err := errors.Newf("failed to present swap chain image: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	return nil
}

func (r *Renderer) checkCurrentCommandBuffer(cb vk.CommandBuffer) error {
	if !r.isFrameStarted {
		return core.ContractViolation(core.ErrFrameNotInProgress, "cannot use the swap chain render pass while frame is not in progress")
	}
	if cb != r.commandBuffers[r.currentFrameIndex].Handle {
		return core.ContractViolation(core.ErrForeignCommandBuffer, "frame %d", r.currentFrameIndex)
	}
	return nil
}

// BeginSwapChainRenderPass begins the swap chain render pass on the current image and sets
// a viewport and scissor covering the whole extent.
func (r *Renderer) BeginSwapChainRenderPass(cb vk.CommandBuffer) error {
	if err := r.checkCurrentCommandBuffer(cb); err != nil {
		return err
	}
	extent := r.swapChain.Extent()
	r.swapChain.RenderPass().Begin(r.device, r.commandBuffers[r.currentFrameIndex], r.swapChain.Framebuffer(int(r.currentImageIndex)), extent)

	r.device.CmdSetViewport(cb, vk.Viewport{
		X:        0,
		Y:        0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	})
	r.device.CmdSetScissor(cb, vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: extent,
	})
	return nil
}

func (r *Renderer) EndSwapChainRenderPass(cb vk.CommandBuffer) error {
	if err := r.checkCurrentCommandBuffer(cb); err != nil {
		return err
	}
	r.swapChain.RenderPass().End(r.device, r.commandBuffers[r.currentFrameIndex])
	return nil
}

func (r *Renderer) IsFrameInProgress() bool {
	return r.isFrameStarted
}

func (r *Renderer) CurrentCommandBuffer() (vk.CommandBuffer, error) {
	if !r.isFrameStarted {
		return nil, core.ContractViolation(core.ErrFrameNotInProgress, "cannot get command buffer when frame not in progress")
	}
	return r.commandBuffers[r.currentFrameIndex].Handle, nil
}

func (r *Renderer) CurrentFrameIndex() (int, error) {
	if !r.isFrameStarted {
		return 0, core.ContractViolation(core.ErrFrameNotInProgress, "cannot get frame index when frame not in progress")
	}
	return r.currentFrameIndex, nil
}

func (r *Renderer) SwapChainRenderPass() vk.RenderPass {
	return r.swapChain.RenderPass().Handle
}

func (r *Renderer) SwapChain() *SwapChain {
	return r.swapChain
}

func (r *Renderer) AspectRatio() float32 {
	return r.swapChain.ExtentAspectRatio()
}

func (r *Renderer) FramesInFlight() int {
	return r.config.FramesInFlight
}

func (r *Renderer) Device() Device {
	return r.device
}
