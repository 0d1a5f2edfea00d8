package resources

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vulkan3d/engine/assets/loaders"
	"github.com/spaghettifunk/vulkan3d/engine/core"
	"github.com/spaghettifunk/vulkan3d/engine/renderer/vulkan"
)

// ModelDevice uploads model data and records its draws.
type ModelDevice interface {
	vulkan.MemoryDevice
	vulkan.CommandDevice
}

// Model is a mesh living in device local memory.
type Model struct {
	device ModelDevice

	vertexBuffer *vulkan.Buffer
	vertexCount  uint32

	indexBuffer *vulkan.Buffer
	indexCount  uint32
}

// NewModel uploads the vertices, and the indices when there are any, through staging buffers.
func NewModel(device ModelDevice, data *loaders.ModelData) (*Model, error) {
	if data == nil {
		return nil, errors.New("cannot create a model without data")
	}
	m := &Model{device: device}
	if err := m.createVertexBuffer(data.Vertices); err != nil {
		return nil, err
	}
	if err := m.createIndexBuffer(data.Indices); err != nil {
		m.Destroy()
		return nil, err
	}
	return m, nil
}

func (m *Model) createVertexBuffer(vertices []loaders.Vertex) error {
	m.vertexCount = uint32(len(vertices))
	if m.vertexCount < 3 {
		return errors.Newf("vertex count must be at least 3, got %d", m.vertexCount)
	}
	buffer, err := m.upload(vertices, vk.DeviceSize(unsafe.Sizeof(loaders.Vertex{})), m.vertexCount, vk.BufferUsageVertexBufferBit)
	if err != nil {
		return err
	}
	m.vertexBuffer = buffer
	return nil
}

func (m *Model) createIndexBuffer(indices []uint32) error {
	m.indexCount = uint32(len(indices))
	if m.indexCount == 0 {
		return nil
	}
	buffer, err := m.upload(indices, 4, m.indexCount, vk.BufferUsageIndexBufferBit)
	if err != nil {
		return err
	}
	m.indexBuffer = buffer
	return nil
}

// upload copies data into a host visible staging buffer, then into a new device local buffer.
func (m *Model) upload(data interface{}, instanceSize vk.DeviceSize, count uint32, usage vk.BufferUsageFlagBits) (*vulkan.Buffer, error) {
	raw, err := vulkan.Encode(data)
	if err != nil {
		return nil, err
	}

	staging, err := vulkan.NewBuffer(
		m.device,
		instanceSize,
		count,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit),
		1,
	)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()

	if res := staging.Map(vulkan.WholeSize, 0); res != vk.Success {
		return nil, errors.Newf("mapping staging buffer: %s", vulkan.VulkanResultString(res, true))
	}
	if err := staging.WriteToBuffer(raw, vulkan.WholeSize, 0); err != nil {
		return nil, err
	}

	buffer, err := vulkan.NewBuffer(
		m.device,
		instanceSize,
		count,
		vk.BufferUsageFlags(usage|vk.BufferUsageTransferDstBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		1,
	)
	if err != nil {
		return nil, err
	}
	if err := m.device.CopyBuffer(staging.Handle(), buffer.Handle(), staging.BufferSize()); err != nil {
		core.LogError("failed to copy staging buffer: %s", err)
		buffer.Destroy()
		return nil, err
	}
	return buffer, nil
}

func (m *Model) Destroy() {
	if m.vertexBuffer != nil {
		m.vertexBuffer.Destroy()
		m.vertexBuffer = nil
	}
	if m.indexBuffer != nil {
		m.indexBuffer.Destroy()
		m.indexBuffer = nil
	}
}

func (m *Model) Bind(cb vk.CommandBuffer) {
	m.device.CmdBindVertexBuffers(cb, []vk.Buffer{m.vertexBuffer.Handle()}, []vk.DeviceSize{0})
	if m.indexBuffer != nil {
		m.device.CmdBindIndexBuffer(cb, m.indexBuffer.Handle(), 0)
	}
}

func (m *Model) Draw(cb vk.CommandBuffer) {
	if m.indexBuffer != nil {
		m.device.CmdDrawIndexed(cb, m.indexCount, 1, 0, 0, 0)
		return
	}
	m.device.CmdDraw(cb, m.vertexCount, 1, 0, 0)
}

func (m *Model) VertexCount() uint32 {
	return m.vertexCount
}

func (m *Model) IndexCount() uint32 {
	return m.indexCount
}

// VertexBindingDescriptions describes the single interleaved vertex stream.
func VertexBindingDescriptions() []vk.VertexInputBindingDescription {
	return []vk.VertexInputBindingDescription{{
		Binding:   0,
		Stride:    uint32(unsafe.Sizeof(loaders.Vertex{})),
		InputRate: vk.VertexInputRateVertex,
	}}
}

func VertexAttributeDescriptions() []vk.VertexInputAttributeDescription {
	var v loaders.Vertex
	return []vk.VertexInputAttributeDescription{
		{Location: 0, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: uint32(unsafe.Offsetof(v.Position))},
		{Location: 1, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: uint32(unsafe.Offsetof(v.Color))},
		{Location: 2, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: uint32(unsafe.Offsetof(v.Normal))},
		{Location: 3, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: uint32(unsafe.Offsetof(v.UV))},
	}
}
