package vulkan

import (
	"math"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
	"github.com/spaghettifunk/vulkan3d/engine/core"
)

var depthFormatCandidates = []vk.Format{
	vk.FormatD32Sfloat,
	vk.FormatD32SfloatS8Uint,
	vk.FormatD24UnormS8Uint,
}

type SwapChainConfig struct {
	WindowExtent   vk.Extent2D
	FramesInFlight int
	ClearColor     [4]float32
}

// SwapChainFormats is what a replacement swap chain must keep unchanged.
type SwapChainFormats struct {
	Image vk.Format
	Depth vk.Format
}

// SwapChain owns the presentable images and everything sized after them (views, depth images,
// framebuffers, the render pass) plus the per-frame synchronization objects.
type SwapChain struct {
	ID uuid.UUID

	device         PresentDevice
	framesInFlight int

	handle       vk.Swapchain
	imageFormat  vk.Format
	depthFormat  vk.Format
	extent       vk.Extent2D
	windowExtent vk.Extent2D

	images       []vk.Image
	imageViews   []vk.ImageView
	depthImages  []*Image
	renderPass   *RenderPass
	framebuffers []*Framebuffer

	imageAvailable []vk.Semaphore
	renderFinished []vk.Semaphore
	inFlightFences []*Fence
	// Fences of the frames that last used each image. Owned by inFlightFences.
	imagesInFlight []*Fence

	currentFrame int
}

// NewSwapChain creates a swap chain for the window extent. When previous is not nil it is
// handed to the driver for resource reuse and destroyed once the new chain exists.
func NewSwapChain(device PresentDevice, config SwapChainConfig, previous *SwapChain) (*SwapChain, error) {
	if config.FramesInFlight < 1 {
		return nil, errors.Newf("frames in flight must be at least 1, got %d", config.FramesInFlight)
	}
	sc := &SwapChain{
		ID:             uuid.New(),
		device:         device,
		framesInFlight: config.FramesInFlight,
		windowExtent:   config.WindowExtent,
	}
	if previous != nil {
		defer previous.Destroy()
	}

	if err := sc.createSwapChain(previous); err != nil {
		sc.Destroy()
		return nil, err
	}
	if err := sc.createImageViews(); err != nil {
		sc.Destroy()
		return nil, err
	}
	if err := sc.createRenderPass(config.ClearColor); err != nil {
		sc.Destroy()
		return nil, err
	}
	if err := sc.createDepthResources(); err != nil {
		sc.Destroy()
		return nil, err
	}
	if err := sc.createFramebuffers(); err != nil {
		sc.Destroy()
		return nil, err
	}
	if err := sc.createSyncObjects(); err != nil {
		sc.Destroy()
		return nil, err
	}

	core.LogInfo("Swapchain %s created: %dx%d, %d images, %d frames in flight.",
		sc.ID, sc.extent.Width, sc.extent.Height, len(sc.images), sc.framesInFlight)
	return sc, nil
}

func (sc *SwapChain) Destroy() {
	// Only destroy the views, not the images, since those are owned by the swapchain.
	for _, view := range sc.imageViews {
		sc.device.DestroyImageView(view)
	}
	sc.imageViews = nil

	if sc.handle != nil {
		sc.device.DestroySwapchain(sc.handle)
		sc.handle = nil
	}
	sc.images = nil

	for _, img := range sc.depthImages {
		img.Destroy()
	}
	sc.depthImages = nil

	for _, fb := range sc.framebuffers {
		fb.Destroy()
	}
	sc.framebuffers = nil

	if sc.renderPass != nil {
		sc.renderPass.Destroy()
		sc.renderPass = nil
	}

	for _, s := range sc.imageAvailable {
		sc.device.DestroySemaphore(s)
	}
	sc.imageAvailable = nil
	for _, s := range sc.renderFinished {
		sc.device.DestroySemaphore(s)
	}
	sc.renderFinished = nil
	for _, f := range sc.inFlightFences {
		f.Destroy()
	}
	sc.inFlightFences = nil
	sc.imagesInFlight = nil
}

func (sc *SwapChain) createSwapChain(previous *SwapChain) error {
	support, err := sc.device.SwapchainSupport()
	if err != nil {
		core.LogError(err.Error())
		return err
	}

	surfaceFormat, err := chooseSwapSurfaceFormat(support.Formats)
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	presentMode := chooseSwapPresentMode(support.PresentModes)
	extent := chooseSwapExtent(support.Capabilities, sc.windowExtent)

	imageCount := support.Capabilities.MinImageCount + 1
	if support.Capabilities.MaxImageCount > 0 && imageCount > support.Capabilities.MaxImageCount {
		imageCount = support.Capabilities.MaxImageCount
	}

	info := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          sc.device.Surface(),
		MinImageCount:    imageCount,
		ImageFormat:      surfaceFormat.Format,
		ImageColorSpace:  surfaceFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
	}

	families := sc.device.QueueFamilies()
	if families.GraphicsFamily != families.PresentFamily {
		info.ImageSharingMode = vk.SharingModeConcurrent
		info.QueueFamilyIndexCount = 2
		info.PQueueFamilyIndices = []uint32{families.GraphicsFamily, families.PresentFamily}
	} else {
		info.ImageSharingMode = vk.SharingModeExclusive
	}

	if previous != nil {
		info.OldSwapchain = previous.handle
	}

	handle, err := sc.device.CreateSwapchain(&info)
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	sc.handle = handle

	// The implementation may create more images than requested.
	images, err := sc.device.GetSwapchainImages(handle)
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	sc.images = images
	sc.imageFormat = surfaceFormat.Format
	sc.extent = extent
	return nil
}

func chooseSwapSurfaceFormat(formats []vk.SurfaceFormat) (vk.SurfaceFormat, error) {
	if len(formats) == 0 {
		return vk.SurfaceFormat{}, errors.Wrap(core.ErrNoSuitableFormat, "surface reports no formats")
	}
	for _, format := range formats {
		// Preferred formats
		if format.Format == vk.FormatB8g8r8a8Srgb && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return format, nil
		}
	}
	return formats[0], nil
}

func chooseSwapPresentMode(modes []vk.PresentMode) vk.PresentMode {
	for _, mode := range modes {
		if mode == vk.PresentModeMailbox {
			core.LogDebug("Present mode: Mailbox")
			return mode
		}
	}
	core.LogDebug("Present mode: V-Sync")
	return vk.PresentModeFifo
}

func chooseSwapExtent(capabilities vk.SurfaceCapabilities, windowExtent vk.Extent2D) vk.Extent2D {
	if capabilities.CurrentExtent.Width != math.MaxUint32 {
		return capabilities.CurrentExtent
	}
	// Clamp to the value allowed by the GPU.
	return vk.Extent2D{
		Width:  MathClamp(windowExtent.Width, capabilities.MinImageExtent.Width, capabilities.MaxImageExtent.Width),
		Height: MathClamp(windowExtent.Height, capabilities.MinImageExtent.Height, capabilities.MaxImageExtent.Height),
	}
}

func (sc *SwapChain) createImageViews() error {
	sc.imageViews = make([]vk.ImageView, 0, len(sc.images))
	for _, image := range sc.images {
		view, err := createImageView(sc.device, image, sc.imageFormat, vk.ImageAspectFlags(vk.ImageAspectColorBit))
		if err != nil {
			return err
		}
		sc.imageViews = append(sc.imageViews, view)
	}
	return nil
}

func (sc *SwapChain) createRenderPass(clearColor [4]float32) error {
	depthFormat, err := sc.device.FindSupportedFormat(
		depthFormatCandidates,
		vk.ImageTilingOptimal,
		vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit),
	)
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	sc.depthFormat = depthFormat

	rp, err := NewSwapChainRenderPass(sc.device, sc.imageFormat, sc.depthFormat, clearColor)
	if err != nil {
		return err
	}
	sc.renderPass = rp
	return nil
}

func (sc *SwapChain) createDepthResources() error {
	sc.depthImages = make([]*Image, 0, len(sc.images))
	for range sc.images {
		img, err := NewDepthImage(sc.device, sc.depthFormat, sc.extent)
		if err != nil {
			return err
		}
		sc.depthImages = append(sc.depthImages, img)
	}
	return nil
}

func (sc *SwapChain) createFramebuffers() error {
	sc.framebuffers = make([]*Framebuffer, 0, len(sc.images))
	for i := range sc.images {
		attachments := []vk.ImageView{sc.imageViews[i], sc.depthImages[i].View}
		fb, err := NewFramebuffer(sc.device, sc.renderPass.Handle, sc.extent.Width, sc.extent.Height, attachments)
		if err != nil {
			return err
		}
		sc.framebuffers = append(sc.framebuffers, fb)
	}
	return nil
}

func (sc *SwapChain) createSyncObjects() error {
	sc.imageAvailable = make([]vk.Semaphore, 0, sc.framesInFlight)
	sc.inFlightFences = make([]*Fence, 0, sc.framesInFlight)
	for i := 0; i < sc.framesInFlight; i++ {
		s, err := sc.device.CreateSemaphore()
		if err != nil {
			core.LogError("failed to create synchronization objects for a frame: %s", err)
			return err
		}
		sc.imageAvailable = append(sc.imageAvailable, s)

		// Created signaled so the first wait on every slot returns at once.
		f, err := NewFence(sc.device, true)
		if err != nil {
			return err
		}
		sc.inFlightFences = append(sc.inFlightFences, f)
	}

	// Render finished semaphores are per image: presentation of an image may still be waiting on
	// its semaphore when the frame slot comes around again.
	sc.renderFinished = make([]vk.Semaphore, 0, len(sc.images))
	for range sc.images {
		s, err := sc.device.CreateSemaphore()
		if err != nil {
			core.LogError("failed to create synchronization objects for an image: %s", err)
			return err
		}
		sc.renderFinished = append(sc.renderFinished, s)
	}
	sc.imagesInFlight = make([]*Fence, len(sc.images))
	return nil
}

// AcquireNextImage waits for the current frame slot to retire and acquires the next
// presentable image. Out of date and suboptimal results are returned to the caller.
func (sc *SwapChain) AcquireNextImage() (uint32, vk.Result) {
	fence := sc.inFlightFences[sc.currentFrame]
	if res := fence.Wait(FenceTimeoutForever); res != vk.Success {
		return 0, res
	}

	imageIndex, res := sc.device.AcquireNextImage(sc.handle, FenceTimeoutForever, sc.imageAvailable[sc.currentFrame])
	if res == vk.Success || res == vk.Suboptimal {
		// The wait above consumed the signal. Submission will signal it again.
		if resetRes := fence.Reset(); resetRes != vk.Success {
			return imageIndex, resetRes
		}
	}
	return imageIndex, res
}

// SubmitCommandBuffers submits the recorded frame and presents the image. The frame slot
// advances whatever the outcome.
func (sc *SwapChain) SubmitCommandBuffers(cb vk.CommandBuffer, imageIndex uint32) vk.Result {
	defer func() {
		sc.currentFrame = (sc.currentFrame + 1) % sc.framesInFlight
	}()

	if int(imageIndex) >= len(sc.images) {
		core.LogError("image index %d out of range, swap chain has %d images", imageIndex, len(sc.images))
		return vk.ErrorUnknown
	}

	fence := sc.inFlightFences[sc.currentFrame]
	// Another frame may still be rendering to this image.
	if owner := sc.imagesInFlight[imageIndex]; owner != nil && owner != fence {
		if res := owner.Wait(FenceTimeoutForever); res != vk.Success {
			return res
		}
	}
	sc.imagesInFlight[imageIndex] = fence

	if res := fence.Reset(); res != vk.Success {
		return res
	}

	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{sc.imageAvailable[sc.currentFrame]},
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cb},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{sc.renderFinished[imageIndex]},
	}
	if res := sc.device.QueueSubmit(submitInfo, fence.Handle); res != vk.Success {
		core.LogError("failed to submit draw command buffer: %s", VulkanResultString(res, true))
		return res
	}
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{sc.renderFinished[imageIndex]},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.handle},
		PImageIndices:      []uint32{imageIndex},
	}
	return sc.device.QueuePresent(&presentInfo)
}

func (sc *SwapChain) Formats() SwapChainFormats {
	return SwapChainFormats{Image: sc.imageFormat, Depth: sc.depthFormat}
}

// CompareFormats reports whether other uses the same image and depth formats.
func (sc *SwapChain) CompareFormats(other SwapChainFormats) bool {
	return sc.imageFormat == other.Image && sc.depthFormat == other.Depth
}

func (sc *SwapChain) Handle() vk.Swapchain { return sc.handle }

func (sc *SwapChain) RenderPass() *RenderPass { return sc.renderPass }

func (sc *SwapChain) ImageCount() int { return len(sc.images) }

func (sc *SwapChain) ImageFormat() vk.Format { return sc.imageFormat }

func (sc *SwapChain) DepthFormat() vk.Format { return sc.depthFormat }

func (sc *SwapChain) Extent() vk.Extent2D { return sc.extent }

func (sc *SwapChain) Width() uint32 { return sc.extent.Width }

func (sc *SwapChain) Height() uint32 { return sc.extent.Height }

func (sc *SwapChain) CurrentFrame() int { return sc.currentFrame }

func (sc *SwapChain) ImageView(i int) vk.ImageView { return sc.imageViews[i] }

func (sc *SwapChain) Framebuffer(i int) vk.Framebuffer {
	return sc.framebuffers[i].Handle
}

func (sc *SwapChain) ExtentAspectRatio() float32 {
	return float32(sc.extent.Width) / float32(sc.extent.Height)
}
