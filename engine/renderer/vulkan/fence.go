package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vulkan3d/engine/core"
)

// Fence tracks the CPU side view of a GPU fence so redundant waits and resets are skipped.
type Fence struct {
	Handle     vk.Fence
	IsSignaled bool

	device PresentDevice
}

func NewFence(device PresentDevice, createSignaled bool) (*Fence, error) {
	handle, err := device.CreateFence(createSignaled)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	return &Fence{
		Handle:     handle,
		IsSignaled: createSignaled,
		device:     device,
	}, nil
}

func (f *Fence) Destroy() {
	if f.Handle != nil {
		f.device.DestroyFence(f.Handle)
		f.Handle = nil
	}
	f.IsSignaled = false
}

// Wait blocks until the fence is signaled or the timeout elapses.
func (f *Fence) Wait(timeoutNs uint64) vk.Result {
	if f.IsSignaled {
		// If already signaled, do not wait.
		return vk.Success
	}
	result := f.device.WaitForFences([]vk.Fence{f.Handle}, timeoutNs)
	switch result {
	case vk.Success:
		f.IsSignaled = true
	case vk.Timeout:
		core.LogWarn("fence wait - Timed out")
	default:
		core.LogError("fence wait - %s", VulkanResultString(result, true))
	}
	return result
}

// Reset returns the fence to unsignaled. Resetting an unsignaled fence does nothing.
func (f *Fence) Reset() vk.Result {
	if !f.IsSignaled {
		return vk.Success
	}
	if res := f.device.ResetFences([]vk.Fence{f.Handle}); res != vk.Success {
		core.LogError("fence reset - %s", VulkanResultString(res, true))
		return res
	}
	f.IsSignaled = false
	return vk.Success
}
