package vulkan

import (
	"math"

	vk "github.com/goki/vulkan"
)

// Default number of frames the CPU may record ahead of the GPU.
const DefaultFramesInFlight = 2

// WholeSize selects the remainder of a buffer or mapping starting at the given offset.
const WholeSize = vk.DeviceSize(^uint64(0))

// Fence waits never time out, a device loss surfaces as an error result instead.
const FenceTimeoutForever uint64 = math.MaxUint64

// Default descriptor pool capacity when the builder is not told otherwise.
const DefaultDescriptorPoolMaxSets uint32 = 1000

const ValidationLayerName = "VK_LAYER_KHRONOS_validation"
