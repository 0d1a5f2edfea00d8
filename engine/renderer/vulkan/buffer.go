package vulkan

import (
	"bytes"
	"encoding/binary"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vulkan3d/engine/core"
)

// Buffer is a device buffer holding instanceCount elements, each padded to alignmentSize so
// that every element can be addressed on its own by a dynamic offset or descriptor.
type Buffer struct {
	device MemoryDevice

	handle vk.Buffer
	memory vk.DeviceMemory
	mapped unsafe.Pointer
	// Size of the current mapping, WholeSize maps everything after mappedOffset.
	mappedOffset vk.DeviceSize
	mappedSize   vk.DeviceSize

	bufferSize          vk.DeviceSize
	instanceCount       uint32
	instanceSize        vk.DeviceSize
	alignmentSize       vk.DeviceSize
	usageFlags          vk.BufferUsageFlags
	memoryPropertyFlags vk.MemoryPropertyFlags
}

// GetAlignment returns the smallest multiple of minOffsetAlignment that holds instanceSize.
func GetAlignment(instanceSize, minOffsetAlignment vk.DeviceSize) vk.DeviceSize {
	if minOffsetAlignment > 0 {
		return AlignUp(instanceSize, minOffsetAlignment)
	}
	return instanceSize
}

// NewBuffer creates and binds the buffer. Pass a minOffsetAlignment of 1 for tightly
// packed instances.
func NewBuffer(
	device MemoryDevice,
	instanceSize vk.DeviceSize,
	instanceCount uint32,
	usageFlags vk.BufferUsageFlags,
	memoryPropertyFlags vk.MemoryPropertyFlags,
	minOffsetAlignment vk.DeviceSize,
) (*Buffer, error) {
	if instanceSize == 0 || instanceCount == 0 {
		return nil, errors.Newf("buffer needs a non-zero instance size and count, got %d x %d", instanceSize, instanceCount)
	}
	b := &Buffer{
		device:              device,
		instanceCount:       instanceCount,
		instanceSize:        instanceSize,
		usageFlags:          usageFlags,
		memoryPropertyFlags: memoryPropertyFlags,
	}
	b.alignmentSize = GetAlignment(instanceSize, minOffsetAlignment)
	b.bufferSize = b.alignmentSize * vk.DeviceSize(instanceCount)

	handle, memory, err := device.CreateBuffer(b.bufferSize, usageFlags, memoryPropertyFlags)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	b.handle = handle
	b.memory = memory
	return b, nil
}

// Destroy unmaps the buffer if needed and releases the buffer and its memory.
func (b *Buffer) Destroy() {
	b.Unmap()
	if b.handle != nil {
		b.device.DestroyBuffer(b.handle)
		b.handle = nil
	}
	if b.memory != nil {
		b.device.FreeMemory(b.memory)
		b.memory = nil
	}
}

// Map maps a range of the buffer memory into host address space. Mapping an already mapped
// buffer is a no-op.
func (b *Buffer) Map(size, offset vk.DeviceSize) vk.Result {
	if b.handle == nil || b.memory == nil {
		core.LogError("called map on buffer before create")
		return vk.ErrorMemoryMapFailed
	}
	if b.mapped != nil {
		return vk.Success
	}
	data, res := b.device.MapMemory(b.memory, offset, size)
	if res != vk.Success {
		core.LogError("failed to map buffer memory: %s", VulkanResultString(res, true))
		return res
	}
	b.mapped = data
	b.mappedOffset = offset
	b.mappedSize = size
	return vk.Success
}

// Unmap releases the host mapping. It does nothing when the buffer is not mapped.
func (b *Buffer) Unmap() {
	if b.mapped == nil {
		return
	}
	b.device.UnmapMemory(b.memory)
	b.mapped = nil
	b.mappedOffset = 0
	b.mappedSize = 0
}

// mappedEnd is the end offset of the current mapping relative to the buffer start.
func (b *Buffer) mappedEnd() vk.DeviceSize {
	if b.mappedSize == WholeSize {
		return b.bufferSize
	}
	return b.mappedOffset + b.mappedSize
}

// WriteToBuffer copies data into the mapped range at offset (relative to the mapping start).
// A size of WholeSize copies all of data. It copies nothing and returns an error when the
// buffer is not mapped or the write would not fit.
func (b *Buffer) WriteToBuffer(data []byte, size, offset vk.DeviceSize) error {
	if b.mapped == nil {
		return core.ContractViolation(core.ErrBufferNotMapped, "cannot copy to unmapped buffer")
	}

	if size == WholeSize {
		size = vk.DeviceSize(len(data))
		offset = 0
	}
	if size > vk.DeviceSize(len(data)) {
		return core.ContractViolation(core.ErrBufferRange, "write of %d bytes from %d byte source", size, len(data))
	}
	available := b.mappedEnd() - b.mappedOffset
	if offset > available || size > available-offset {
		return core.ContractViolation(core.ErrBufferRange, "write of %d bytes at offset %d exceeds mapped size %d", size, offset, available)
	}
	if size == 0 {
		return nil
	}

	dst := unsafe.Slice((*byte)(unsafe.Add(b.mapped, uintptr(offset))), int(size))
	copy(dst, data[:size])
	return nil
}

// Flush makes a host write to a range visible to the device. Only needed for memory that is
// not host coherent.
func (b *Buffer) Flush(size, offset vk.DeviceSize) vk.Result {
	return b.device.FlushMappedMemory(b.memory, offset, size)
}

// Invalidate makes a device write to a range visible to the host. Only needed for memory
// that is not host coherent.
func (b *Buffer) Invalidate(size, offset vk.DeviceSize) vk.Result {
	return b.device.InvalidateMappedMemory(b.memory, offset, size)
}

// DescriptorInfo describes a range of the buffer for a descriptor write.
func (b *Buffer) DescriptorInfo(size, offset vk.DeviceSize) vk.DescriptorBufferInfo {
	return vk.DescriptorBufferInfo{
		Buffer: b.handle,
		Offset: offset,
		Range:  size,
	}
}

// WriteToIndex copies one instance worth of data to the element at index. The element must
// lie inside the current mapping.
func (b *Buffer) WriteToIndex(data []byte, index uint32) error {
	if index >= b.instanceCount {
		return core.ContractViolation(core.ErrBufferRange, "index %d out of range, buffer holds %d instances", index, b.instanceCount)
	}
	offset := vk.DeviceSize(index) * b.alignmentSize
	if b.mapped != nil && offset < b.mappedOffset {
		return core.ContractViolation(core.ErrBufferRange, "index %d starts before the mapping at offset %d", index, b.mappedOffset)
	}
	// WriteToBuffer offsets are relative to the mapping.
	return b.WriteToBuffer(data, b.instanceSize, offset-b.mappedOffset)
}

func (b *Buffer) FlushIndex(index uint32) vk.Result {
	return b.Flush(b.alignmentSize, vk.DeviceSize(index)*b.alignmentSize)
}

func (b *Buffer) InvalidateIndex(index uint32) vk.Result {
	return b.Invalidate(b.alignmentSize, vk.DeviceSize(index)*b.alignmentSize)
}

func (b *Buffer) DescriptorInfoForIndex(index uint32) vk.DescriptorBufferInfo {
	return b.DescriptorInfo(b.alignmentSize, vk.DeviceSize(index)*b.alignmentSize)
}

func (b *Buffer) Handle() vk.Buffer {
	return b.handle
}

func (b *Buffer) MappedMemory() unsafe.Pointer {
	return b.mapped
}

func (b *Buffer) InstanceCount() uint32 {
	return b.instanceCount
}

func (b *Buffer) InstanceSize() vk.DeviceSize {
	return b.instanceSize
}

func (b *Buffer) AlignmentSize() vk.DeviceSize {
	return b.alignmentSize
}

func (b *Buffer) UsageFlags() vk.BufferUsageFlags {
	return b.usageFlags
}

func (b *Buffer) MemoryPropertyFlags() vk.MemoryPropertyFlags {
	return b.memoryPropertyFlags
}

func (b *Buffer) BufferSize() vk.DeviceSize {
	return b.bufferSize
}

// Encode lays out fixed size data (numbers, arrays, structs of those) in host byte order,
// the layout the GPU reads from mapped memory.
func Encode(data interface{}) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.NativeEndian, data); err != nil {
		return nil, errors.Wrap(err, "encoding buffer data")
	}
	return buf.Bytes(), nil
}
