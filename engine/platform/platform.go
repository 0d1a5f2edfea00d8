package platform

import (
	"runtime"
	"sync/atomic"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vulkan3d/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

var keyCodes = map[glfw.Key]core.KeyCode{
	glfw.KeyEscape: core.KEY_ESCAPE,
	glfw.KeySpace:  core.KEY_SPACE,
	glfw.KeyLeft:   core.KEY_LEFT,
	glfw.KeyUp:     core.KEY_UP,
	glfw.KeyRight:  core.KEY_RIGHT,
	glfw.KeyDown:   core.KEY_DOWN,
	glfw.KeyA:      core.KEY_A,
	glfw.KeyD:      core.KEY_D,
	glfw.KeyE:      core.KEY_E,
	glfw.KeyQ:      core.KEY_Q,
	glfw.KeyS:      core.KEY_S,
	glfw.KeyW:      core.KEY_W,
}

// Window is a resizable GLFW window without a client API, ready for a Vulkan surface.
type Window struct {
	handle *glfw.Window
	input  *core.Input

	framebufferResized atomic.Bool
}

// NewWindow initializes GLFW and opens the window. Key events are forwarded to input.
func NewWindow(title string, width, height uint32, input *core.Input) (*Window, error) {
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return nil, errors.Wrap(err, "initializing glfw")
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		err := errors.New("glfw reports no Vulkan loader")
		core.LogError(err.Error())
		return nil, err
	}

	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	handle, err := glfw.CreateWindow(int(width), int(height), title, nil, nil)
	if err != nil {
		glfw.Terminate()
		core.LogError("failed to create window: %s", err)
		return nil, errors.Wrap(err, "creating window")
	}

	w := &Window{
		handle: handle,
		input:  input,
	}
	handle.SetKeyCallback(w.keyCallback)
	handle.SetFramebufferSizeCallback(w.framebufferSizeCallback)

	core.LogInfo("Window %q created: %dx%d", title, width, height)
	return w, nil
}

func (w *Window) Destroy() {
	if w.handle != nil {
		w.handle.Destroy()
		w.handle = nil
	}
	glfw.Terminate()
}

func (w *Window) ShouldClose() bool {
	return w.handle.ShouldClose()
}

func (w *Window) SetShouldClose(value bool) {
	w.handle.SetShouldClose(value)
}

// PollEvents processes pending events without blocking.
func (w *Window) PollEvents() {
	glfw.PollEvents()
}

// WaitEvents blocks until at least one event was processed.
func (w *Window) WaitEvents() {
	glfw.WaitEvents()
}

// Extent returns the framebuffer size in pixels, which differs from the window size on
// high density displays.
func (w *Window) Extent() vk.Extent2D {
	width, height := w.handle.GetFramebufferSize()
	return vk.Extent2D{Width: uint32(width), Height: uint32(height)}
}

func (w *Window) WasResized() bool {
	return w.framebufferResized.Load()
}

func (w *Window) ResetResizedFlag() {
	w.framebufferResized.Store(false)
}

func (w *Window) InstanceProcAddress() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

func (w *Window) RequiredInstanceExtensions() []string {
	return w.handle.GetRequiredInstanceExtensions()
}

func (w *Window) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	surface, err := w.handle.CreateWindowSurface(instance, nil)
	if err != nil {
		core.LogError("Vulkan surface creation failed: %s", err)
		return vk.NullSurface, errors.Wrap(err, "creating window surface")
	}
	return vk.SurfaceFromPointer(surface), nil
}

func (w *Window) keyCallback(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
	if key == glfw.KeyEscape && action == glfw.Press {
		w.handle.SetShouldClose(true)
	}
	code, ok := keyCodes[key]
	if !ok || w.input == nil {
		return
	}
	switch action {
	case glfw.Press, glfw.Repeat:
		w.input.ProcessKey(code, true)
	case glfw.Release:
		w.input.ProcessKey(code, false)
	}
}

func (w *Window) framebufferSizeCallback(_ *glfw.Window, width, height int) {
	w.framebufferResized.Store(true)
	core.LogDebug("Framebuffer resized: %dx%d", width, height)
}
