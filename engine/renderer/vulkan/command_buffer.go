package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vulkan3d/engine/core"
)

type CommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY CommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

// CommandBuffer is a primary command buffer from the device's graphics pool.
type CommandBuffer struct {
	Handle vk.CommandBuffer
	// Command buffer state.
	State CommandBufferState
}

// NewCommandBuffers allocates count primary command buffers in a single call.
func NewCommandBuffers(device CommandDevice, count uint32) ([]*CommandBuffer, error) {
	handles, err := device.AllocateCommandBuffers(count)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	buffers := make([]*CommandBuffer, len(handles))
	for i := range handles {
		buffers[i] = &CommandBuffer{
			Handle: handles[i],
			State:  COMMAND_BUFFER_STATE_READY,
		}
	}
	return buffers, nil
}

// FreeCommandBuffers returns the buffers to the pool in a single call.
func FreeCommandBuffers(device CommandDevice, buffers []*CommandBuffer) {
	handles := make([]vk.CommandBuffer, 0, len(buffers))
	for _, cb := range buffers {
		if cb.Handle == nil {
			continue
		}
		handles = append(handles, cb.Handle)
		cb.Handle = nil
		cb.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
	}
	if len(handles) > 0 {
		device.FreeCommandBuffers(handles)
	}
}

func (cb *CommandBuffer) Begin(device CommandDevice, isSingleUse, isSimultaneousUse bool) error {
	var flags vk.CommandBufferUsageFlags
	if isSingleUse {
		flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if isSimultaneousUse {
		flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}
	if res := device.BeginCommandBuffer(cb.Handle, flags); res != vk.Success {
		err := errors.Newf("failed to begin recording command buffer: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	cb.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (cb *CommandBuffer) End(device CommandDevice) error {
	if res := device.EndCommandBuffer(cb.Handle); res != vk.Success {
		err := errors.Newf("failed to record command buffer: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	cb.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (cb *CommandBuffer) UpdateSubmitted() {
	cb.State = COMMAND_BUFFER_STATE_SUBMITTED
}

func (cb *CommandBuffer) Reset() {
	cb.State = COMMAND_BUFFER_STATE_READY
}
