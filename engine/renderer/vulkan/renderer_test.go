package vulkan_test

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/vulkan3d/engine/core"
	"github.com/spaghettifunk/vulkan3d/engine/renderer/vulkan"
	"github.com/spaghettifunk/vulkan3d/engine/renderer/vulkan/vulkantest"
)

var testClearColor = [4]float32{0.01, 0.01, 0.01, 1}

func newTestRenderer(t *testing.T, device *vulkantest.FakeDevice, window *vulkantest.FakeWindow) *vulkan.Renderer {
	t.Helper()
	r, err := vulkan.NewRenderer(device, window, vulkan.RendererConfig{
		FramesInFlight: 2,
		ClearColor:     testClearColor,
	})
	require.NoError(t, err)
	return r
}

// drawFrame runs one full frame with an empty render pass.
func drawFrame(t *testing.T, r *vulkan.Renderer) {
	t.Helper()
	cb, err := r.BeginFrame()
	require.NoError(t, err)
	require.NotNil(t, cb)
	require.NoError(t, r.BeginSwapChainRenderPass(cb))
	require.NoError(t, r.EndSwapChainRenderPass(cb))
	require.NoError(t, r.EndFrame())
}

func TestRendererFrame(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	r := newTestRenderer(t, device, vulkantest.NewFakeWindow(800, 600))
	defer r.Destroy()

	assert.Equal(t, 2, r.FramesInFlight())
	assert.InDelta(t, 800.0/600.0, r.AspectRatio(), 1e-6)
	assert.True(t, r.SwapChain().RenderPass().Handle == r.SwapChainRenderPass())
	assert.False(t, r.IsFrameInProgress())

	cb, err := r.BeginFrame()
	require.NoError(t, err)
	assert.True(t, r.IsFrameInProgress())
	current, err := r.CurrentCommandBuffer()
	require.NoError(t, err)
	assert.True(t, cb == current)
	index, err := r.CurrentFrameIndex()
	require.NoError(t, err)
	assert.Equal(t, 0, index)

	require.NoError(t, r.BeginSwapChainRenderPass(cb))
	begins := device.RenderPassBegins()
	require.Len(t, begins, 1)
	assert.Equal(t, vk.Extent2D{Width: 800, Height: 600}, begins[0].Extent)
	assert.True(t, r.SwapChain().Framebuffer(0) == begins[0].Framebuffer)
	require.Len(t, begins[0].ClearValues, 2)
	assert.Equal(t, testClearColor, vulkantest.ClearColor(begins[0].ClearValues[0]))

	viewports := device.Viewports()
	require.Len(t, viewports, 1)
	assert.Equal(t, float32(800), viewports[0].Width)
	assert.Equal(t, float32(600), viewports[0].Height)
	assert.Equal(t, float32(1), viewports[0].MaxDepth)
	scissors := device.Scissors()
	require.Len(t, scissors, 1)
	assert.Equal(t, vk.Extent2D{Width: 800, Height: 600}, scissors[0].Extent)

	require.NoError(t, r.EndSwapChainRenderPass(cb))
	require.NoError(t, r.EndFrame())
	assert.False(t, r.IsFrameInProgress())

	submits := device.Submits()
	presents := device.Presents()
	require.Len(t, submits, 1)
	require.Len(t, presents, 1)
	assert.True(t, cb == submits[0].CommandBuffer)
	assert.True(t, submits[0].SignalSemaphore == presents[0].WaitSemaphore)
	assert.True(t, r.SwapChain().Handle() == presents[0].Swapchain)
	assert.Empty(t, device.Violations())
}

func TestRendererBeginFrameTwice(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	r := newTestRenderer(t, device, vulkantest.NewFakeWindow(800, 600))
	defer r.Destroy()

	_, err := r.BeginFrame()
	require.NoError(t, err)
	acquires := countCalls(device.Calls(), "AcquireNextImage")

	cb, err := r.BeginFrame()
	assert.Nil(t, cb)
	assert.True(t, errors.Is(err, core.ErrFrameInProgress))
	assert.True(t, core.IsContractViolation(err))
	assert.True(t, r.IsFrameInProgress())
	assert.Equal(t, acquires, countCalls(device.Calls(), "AcquireNextImage"))

	require.NoError(t, r.EndFrame())
	assert.Empty(t, device.Violations())
}

func TestRendererCallsOutsideFrame(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	r := newTestRenderer(t, device, vulkantest.NewFakeWindow(800, 600))
	defer r.Destroy()

	err := r.EndFrame()
	assert.True(t, errors.Is(err, core.ErrFrameNotInProgress))
	assert.True(t, core.IsContractViolation(err))

	_, err = r.CurrentCommandBuffer()
	assert.True(t, errors.Is(err, core.ErrFrameNotInProgress))
	_, err = r.CurrentFrameIndex()
	assert.True(t, errors.Is(err, core.ErrFrameNotInProgress))
	assert.True(t, errors.Is(r.BeginSwapChainRenderPass(nil), core.ErrFrameNotInProgress))
	assert.True(t, errors.Is(r.EndSwapChainRenderPass(nil), core.ErrFrameNotInProgress))
	assert.Empty(t, device.Submits())
}

func TestRendererForeignCommandBuffer(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	r := newTestRenderer(t, device, vulkantest.NewFakeWindow(800, 600))
	defer r.Destroy()

	first, err := r.BeginFrame()
	require.NoError(t, err)
	require.NoError(t, r.EndFrame())

	second, err := r.BeginFrame()
	require.NoError(t, err)
	assert.True(t, first != second)

	err = r.BeginSwapChainRenderPass(first)
	assert.True(t, errors.Is(err, core.ErrForeignCommandBuffer))
	assert.True(t, core.IsContractViolation(err))
	assert.Empty(t, device.RenderPassBegins())
	require.NoError(t, r.EndFrame())
}

func TestRendererFrameIndexCycles(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	r := newTestRenderer(t, device, vulkantest.NewFakeWindow(800, 600))
	defer r.Destroy()

	var buffers []vk.CommandBuffer
	for i := 0; i < 4; i++ {
		cb, err := r.BeginFrame()
		require.NoError(t, err)
		index, err := r.CurrentFrameIndex()
		require.NoError(t, err)
		assert.Equal(t, i%2, index)
		buffers = append(buffers, cb)
		require.NoError(t, r.EndFrame())
	}
	assert.True(t, buffers[0] == buffers[2])
	assert.True(t, buffers[1] == buffers[3])
	assert.True(t, buffers[0] != buffers[1])
	assert.Empty(t, device.Violations())
}

func TestRendererWaitsForFrameSlot(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	device.ManualFences = true
	r := newTestRenderer(t, device, vulkantest.NewFakeWindow(800, 600))
	defer r.Destroy()

	drawFrame(t, r)
	drawFrame(t, r)
	fences := device.Fences()
	require.Len(t, fences, 2)

	// The third frame reuses slot 0 whose submission has not retired yet.
	done := make(chan error, 1)
	go func() {
		_, err := r.BeginFrame()
		done <- err
	}()

	assert.Eventually(t, func() bool { return device.Waiters() == 1 }, time.Second, time.Millisecond)
	assert.Never(t, func() bool { return len(done) > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	device.SignalFence(fences[0])
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("BeginFrame did not return after the fence was signaled")
	}
	assert.True(t, r.IsFrameInProgress())
	require.NoError(t, r.EndFrame())
	assert.Empty(t, device.Violations())
}

func TestRendererWaitsForImageOwner(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	device.ManualFences = true
	device.QueueAcquireIndices(0, 0)
	r := newTestRenderer(t, device, vulkantest.NewFakeWindow(800, 600))
	defer r.Destroy()

	drawFrame(t, r)
	fences := device.Fences()

	// Frame slot 1 gets image 0 back while slot 0 may still render to it.
	_, err := r.BeginFrame()
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() {
		done <- r.EndFrame()
	}()

	assert.Never(t, func() bool { return len(done) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Len(t, device.Submits(), 1)

	device.SignalFence(fences[0])
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("EndFrame did not return after the image owner was signaled")
	}
	submits := device.Submits()
	require.Len(t, submits, 2)
	assert.True(t, fences[1] == submits[1].Fence)
	assert.Empty(t, device.Violations())
}

func TestRendererRebuildsWhenOutOfDate(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	r := newTestRenderer(t, device, vulkantest.NewFakeWindow(800, 600))
	defer r.Destroy()
	first := r.SwapChain().Handle()
	idles := device.WaitIdleCalls()

	device.QueueAcquireResults(vk.ErrorOutOfDate)
	cb, err := r.BeginFrame()
	require.NoError(t, err)
	assert.Nil(t, cb)
	assert.False(t, r.IsFrameInProgress())

	records := device.Swapchains()
	require.Len(t, records, 2)
	assert.True(t, first == records[1].OldSwapchain)
	assert.Equal(t, idles+1, device.WaitIdleCalls())
	assert.Equal(t, 1, device.LiveObjects()["swapchain"])

	drawFrame(t, r)
	assert.Empty(t, device.Violations())
}

func TestRendererFailsOnAcquireError(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	r := newTestRenderer(t, device, vulkantest.NewFakeWindow(800, 600))
	defer r.Destroy()

	device.QueueAcquireResults(vk.ErrorDeviceLost)
	cb, err := r.BeginFrame()
	assert.Error(t, err)
	assert.Nil(t, cb)
	assert.False(t, r.IsFrameInProgress())
}

func TestRendererRebuildsAfterPresent(t *testing.T) {
	for _, res := range []vk.Result{vk.Suboptimal, vk.ErrorOutOfDate} {
		device := vulkantest.NewFakeDevice()
		r := newTestRenderer(t, device, vulkantest.NewFakeWindow(800, 600))

		device.QueuePresentResults(res)
		drawFrame(t, r)
		assert.Len(t, device.Swapchains(), 2, "present result %d", res)

		drawFrame(t, r)
		assert.Len(t, device.Swapchains(), 2)
		r.Destroy()
		assert.Empty(t, device.Violations())
	}
}

func TestRendererFailsOnPresentError(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	r := newTestRenderer(t, device, vulkantest.NewFakeWindow(800, 600))
	defer r.Destroy()

	device.QueuePresentResults(vk.ErrorSurfaceLost)
	_, err := r.BeginFrame()
	require.NoError(t, err)
	assert.Error(t, r.EndFrame())
	assert.False(t, r.IsFrameInProgress())
}

func TestRendererRebuildsOnResize(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	window := vulkantest.NewFakeWindow(800, 600)
	r := newTestRenderer(t, device, window)
	defer r.Destroy()

	_, err := r.BeginFrame()
	require.NoError(t, err)
	window.SetExtent(1024, 768)
	require.NoError(t, r.EndFrame())

	assert.False(t, window.WasResized())
	assert.Equal(t, vk.Extent2D{Width: 1024, Height: 768}, r.SwapChain().Extent())
	assert.InDelta(t, 1024.0/768.0, r.AspectRatio(), 1e-6)
}

func TestRendererWaitsWhileMinimized(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	window := vulkantest.NewFakeWindow(800, 600)
	r := newTestRenderer(t, device, window)
	defer r.Destroy()

	_, err := r.BeginFrame()
	require.NoError(t, err)
	window.SetExtent(0, 0)

	done := make(chan error, 1)
	go func() {
		done <- r.EndFrame()
	}()

	assert.Eventually(t, func() bool { return window.WaitEventsCalls() > 2 }, time.Second, time.Millisecond)
	assert.Never(t, func() bool { return len(done) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Len(t, device.Swapchains(), 1)

	window.SetExtent(640, 480)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("EndFrame did not return after the window was restored")
	}
	records := device.Swapchains()
	require.Len(t, records, 2)
	assert.Equal(t, vk.Extent2D{Width: 640, Height: 480}, records[1].Extent)
}

func TestRendererRejectsFormatChange(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	r := newTestRenderer(t, device, vulkantest.NewFakeWindow(800, 600))
	defer r.Destroy()

	device.DepthFormat = vk.FormatD24UnormS8Uint
	device.QueueAcquireResults(vk.ErrorOutOfDate)
	_, err := r.BeginFrame()
	assert.True(t, errors.Is(err, core.ErrSwapchainFormatChanged))
}

func TestRendererDestroyReleasesEverything(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	window := vulkantest.NewFakeWindow(800, 600)
	r := newTestRenderer(t, device, window)

	drawFrame(t, r)
	window.SetExtent(900, 700)
	drawFrame(t, r)
	drawFrame(t, r)

	r.Destroy()
	assert.Equal(t, map[string]int{"surface": 1}, device.LiveObjects())
	assert.Empty(t, device.Violations())
}

func TestRendererDefaultsFramesInFlight(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	r, err := vulkan.NewRenderer(device, vulkantest.NewFakeWindow(800, 600), vulkan.RendererConfig{})
	require.NoError(t, err)
	defer r.Destroy()
	assert.Equal(t, vulkan.DefaultFramesInFlight, r.FramesInFlight())
}
