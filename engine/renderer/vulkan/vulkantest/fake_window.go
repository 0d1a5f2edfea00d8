package vulkantest

import (
	"sync"
	"time"

	vk "github.com/goki/vulkan"
)

// FakeWindow reports a settable framebuffer extent. SetExtent behaves like a resize event.
type FakeWindow struct {
	mu         sync.Mutex
	extent     vk.Extent2D
	resized    bool
	waitEvents int
}

func NewFakeWindow(width, height uint32) *FakeWindow {
	return &FakeWindow{extent: vk.Extent2D{Width: width, Height: height}}
}

func (w *FakeWindow) Extent() vk.Extent2D {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.extent
}

func (w *FakeWindow) SetExtent(width, height uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.extent = vk.Extent2D{Width: width, Height: height}
	w.resized = true
}

func (w *FakeWindow) WaitEvents() {
	w.mu.Lock()
	w.waitEvents++
	w.mu.Unlock()
	time.Sleep(time.Millisecond)
}

func (w *FakeWindow) WaitEventsCalls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.waitEvents
}

func (w *FakeWindow) WasResized() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.resized
}

func (w *FakeWindow) ResetResizedFlag() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resized = false
}
