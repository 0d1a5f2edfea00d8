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

func swapChainConfig(width, height uint32) vulkan.SwapChainConfig {
	return vulkan.SwapChainConfig{
		WindowExtent:   vk.Extent2D{Width: width, Height: height},
		FramesInFlight: vulkan.DefaultFramesInFlight,
		ClearColor:     [4]float32{0.01, 0.01, 0.01, 1},
	}
}

func TestSwapChainCreation(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	sc, err := vulkan.NewSwapChain(device, swapChainConfig(800, 600), nil)
	require.NoError(t, err)
	defer sc.Destroy()

	assert.Equal(t, vk.FormatB8g8r8a8Srgb, sc.ImageFormat())
	assert.Equal(t, vk.FormatD32Sfloat, sc.DepthFormat())
	assert.Equal(t, vk.Extent2D{Width: 800, Height: 600}, sc.Extent())
	assert.Equal(t, 3, sc.ImageCount())
	assert.InDelta(t, 800.0/600.0, sc.ExtentAspectRatio(), 1e-6)
	assert.Equal(t, 0, sc.CurrentFrame())
	assert.NotNil(t, sc.RenderPass())

	records := device.Swapchains()
	require.Len(t, records, 1)
	assert.Equal(t, vk.PresentModeMailbox, records[0].PresentMode)
	assert.Equal(t, vk.SharingModeExclusive, records[0].SharingMode)
	assert.Nil(t, records[0].OldSwapchain)

	live := device.LiveObjects()
	assert.Equal(t, 1, live["swapchain"])
	// One color and one depth view per image.
	assert.Equal(t, 6, live["imageView"])
	assert.Equal(t, 3, live["framebuffer"])
	// Image available per frame, render finished per image.
	assert.Equal(t, 5, live["semaphore"])
	assert.Equal(t, 2, live["fence"])
	for _, fence := range device.Fences() {
		assert.True(t, device.FenceSignaled(fence))
	}
}

func TestSwapChainSurfaceFormatFallback(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	device.SurfaceFormats = []vk.SurfaceFormat{{Format: vk.FormatR8g8b8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}}
	sc, err := vulkan.NewSwapChain(device, swapChainConfig(800, 600), nil)
	require.NoError(t, err)
	defer sc.Destroy()
	assert.Equal(t, vk.FormatR8g8b8a8Unorm, sc.ImageFormat())
}

func TestSwapChainNoSurfaceFormats(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	device.SurfaceFormats = nil
	_, err := vulkan.NewSwapChain(device, swapChainConfig(800, 600), nil)
	assert.True(t, errors.Is(err, core.ErrNoSuitableFormat))
	assert.Equal(t, map[string]int{"surface": 1}, device.LiveObjects())
}

func TestSwapChainNoDepthFormat(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	device.DepthFormat = vk.FormatD16Unorm
	_, err := vulkan.NewSwapChain(device, swapChainConfig(800, 600), nil)
	assert.True(t, errors.Is(err, core.ErrNoSuitableFormat))
	assert.Equal(t, map[string]int{"surface": 1}, device.LiveObjects())
	assert.Empty(t, device.Violations())
}

func TestSwapChainFifoFallback(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	device.PresentModes = []vk.PresentMode{vk.PresentModeImmediate, vk.PresentModeFifo}
	sc, err := vulkan.NewSwapChain(device, swapChainConfig(800, 600), nil)
	require.NoError(t, err)
	defer sc.Destroy()
	assert.Equal(t, vk.PresentModeFifo, device.Swapchains()[0].PresentMode)
}

func TestSwapChainExtent(t *testing.T) {
	t.Run("surface extent wins", func(t *testing.T) {
		device := vulkantest.NewFakeDevice()
		device.Capabilities.CurrentExtent = vk.Extent2D{Width: 640, Height: 480}
		sc, err := vulkan.NewSwapChain(device, swapChainConfig(800, 600), nil)
		require.NoError(t, err)
		defer sc.Destroy()
		assert.Equal(t, vk.Extent2D{Width: 640, Height: 480}, sc.Extent())
	})
	t.Run("window extent is clamped", func(t *testing.T) {
		device := vulkantest.NewFakeDevice()
		sc, err := vulkan.NewSwapChain(device, swapChainConfig(5000, 10), nil)
		require.NoError(t, err)
		defer sc.Destroy()
		assert.Equal(t, vk.Extent2D{Width: 4096, Height: 10}, sc.Extent())
	})
}

func TestSwapChainImageCount(t *testing.T) {
	tests := []struct {
		min, max uint32
		want     int
	}{
		{2, 3, 3},
		{2, 2, 2},
		{2, 0, 3},
		{3, 8, 4},
	}
	for _, tt := range tests {
		device := vulkantest.NewFakeDevice()
		device.Capabilities.MinImageCount = tt.min
		device.Capabilities.MaxImageCount = tt.max
		sc, err := vulkan.NewSwapChain(device, swapChainConfig(800, 600), nil)
		require.NoError(t, err)
		assert.Equal(t, tt.want, sc.ImageCount(), "min %d max %d", tt.min, tt.max)
		sc.Destroy()
	}
}

func TestSwapChainSeparatePresentQueue(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	device.Families.PresentFamily = 1
	sc, err := vulkan.NewSwapChain(device, swapChainConfig(800, 600), nil)
	require.NoError(t, err)
	defer sc.Destroy()
	assert.Equal(t, vk.SharingModeConcurrent, device.Swapchains()[0].SharingMode)
}

func TestSwapChainRejectsZeroFrames(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	cfg := swapChainConfig(800, 600)
	cfg.FramesInFlight = 0
	_, err := vulkan.NewSwapChain(device, cfg, nil)
	assert.Error(t, err)
}

func TestSwapChainReplacesPrevious(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	old, err := vulkan.NewSwapChain(device, swapChainConfig(800, 600), nil)
	require.NoError(t, err)
	oldHandle := old.Handle()
	before := device.LiveObjects()

	sc, err := vulkan.NewSwapChain(device, swapChainConfig(1024, 768), old)
	require.NoError(t, err)

	records := device.Swapchains()
	require.Len(t, records, 2)
	assert.True(t, oldHandle == records[1].OldSwapchain)
	assert.Nil(t, old.Handle())
	assert.Equal(t, before, device.LiveObjects())
	assert.True(t, sc.CompareFormats(vulkan.SwapChainFormats{Image: vk.FormatB8g8r8a8Srgb, Depth: vk.FormatD32Sfloat}))
	assert.False(t, sc.CompareFormats(vulkan.SwapChainFormats{Image: vk.FormatB8g8r8a8Srgb, Depth: vk.FormatD24UnormS8Uint}))

	sc.Destroy()
	assert.Equal(t, map[string]int{"surface": 1}, device.LiveObjects())
	assert.Empty(t, device.Violations())
}

func TestSwapChainFramesAdvance(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	sc, err := vulkan.NewSwapChain(device, swapChainConfig(800, 600), nil)
	require.NoError(t, err)
	defer sc.Destroy()

	cb := vk.CommandBuffer(nil)
	for i := 0; i < 5; i++ {
		assert.Equal(t, i%2, sc.CurrentFrame())
		index, res := sc.AcquireNextImage()
		require.Equal(t, vk.Success, res)
		assert.Equal(t, uint32(i%3), index)
		require.Equal(t, vk.Success, sc.SubmitCommandBuffers(cb, index))
	}

	submits := device.Submits()
	presents := device.Presents()
	require.Len(t, submits, 5)
	require.Len(t, presents, 5)
	fences := device.Fences()
	for i, s := range submits {
		assert.True(t, fences[i%2] == s.Fence, "submit %d", i)
		assert.True(t, s.SignalSemaphore == presents[i].WaitSemaphore)
		assert.Equal(t, uint32(i%3), presents[i].ImageIndex)
	}
	// Image available semaphores follow the frame slot, render finished ones the image.
	assert.True(t, submits[0].WaitSemaphore == submits[2].WaitSemaphore)
	assert.True(t, submits[0].WaitSemaphore != submits[1].WaitSemaphore)
	assert.True(t, submits[0].SignalSemaphore == submits[3].SignalSemaphore)
	assert.True(t, submits[0].SignalSemaphore != submits[2].SignalSemaphore)
	assert.Empty(t, device.Violations())
}

func TestSwapChainSecondAcquireWaitsForFence(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	device.ManualFences = true
	sc, err := vulkan.NewSwapChain(device, swapChainConfig(800, 600), nil)
	require.NoError(t, err)
	defer sc.Destroy()

	first, res := sc.AcquireNextImage()
	require.Equal(t, vk.Success, res)
	assert.Equal(t, uint32(0), first)

	// Without a submit the slot stays current and its fence stays reset.
	fences := device.Fences()
	require.Len(t, fences, vulkan.DefaultFramesInFlight)
	require.False(t, device.FenceSignaled(fences[0]))
	assert.Equal(t, 0, sc.CurrentFrame())

	type acquired struct {
		index uint32
		res   vk.Result
	}
	done := make(chan acquired, 1)
	go func() {
		index, res := sc.AcquireNextImage()
		done <- acquired{index: index, res: res}
	}()

	require.Eventually(t, func() bool { return device.Waiters() == 1 }, time.Second, time.Millisecond)
	select {
	case <-done:
		t.Fatal("second acquire returned before the slot fence was signaled")
	default:
	}

	device.SignalFence(fences[0])
	select {
	case got := <-done:
		assert.Equal(t, vk.Success, got.res)
		assert.Equal(t, uint32(1), got.index)
	case <-time.After(time.Second):
		t.Fatal("acquire did not return after the slot fence was signaled")
	}
	assert.False(t, device.FenceSignaled(fences[0]))
	assert.Zero(t, device.Waiters())
	assert.Empty(t, device.Violations())
}

func TestSwapChainSubmitRejectsBadImageIndex(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	sc, err := vulkan.NewSwapChain(device, swapChainConfig(800, 600), nil)
	require.NoError(t, err)
	defer sc.Destroy()

	assert.NotEqual(t, vk.Success, sc.SubmitCommandBuffers(nil, 7))
	assert.Equal(t, 1, sc.CurrentFrame())
	assert.Empty(t, device.Submits())
}
