package vulkan_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/vulkan3d/engine/core"
	"github.com/spaghettifunk/vulkan3d/engine/renderer/vulkan"
	"github.com/spaghettifunk/vulkan3d/engine/renderer/vulkan/vulkantest"
)

const allGraphics = vk.ShaderStageFlags(vk.ShaderStageAllGraphics)

func newUniformLayout(t *testing.T, device *vulkantest.FakeDevice) *vulkan.DescriptorSetLayout {
	t.Helper()
	layout, err := vulkan.NewDescriptorSetLayoutBuilder(device).
		AddBinding(0, vk.DescriptorTypeUniformBuffer, allGraphics, 1).
		Build()
	require.NoError(t, err)
	return layout
}

func newPool(t *testing.T, device *vulkantest.FakeDevice, maxSets uint32, flags vk.DescriptorPoolCreateFlags) *vulkan.DescriptorPool {
	t.Helper()
	pool, err := vulkan.NewDescriptorPoolBuilder(device).
		SetMaxSets(maxSets).
		AddPoolSize(vk.DescriptorTypeUniformBuffer, maxSets).
		SetPoolFlags(flags).
		Build()
	require.NoError(t, err)
	return pool
}

func countCalls(calls []string, name string) int {
	n := 0
	for _, c := range calls {
		if c == name {
			n++
		}
	}
	return n
}

func hasCall(calls []string, name string) bool {
	return countCalls(calls, name) > 0
}

func TestLayoutBuilderSortsBindings(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	layout, err := vulkan.NewDescriptorSetLayoutBuilder(device).
		AddBinding(2, vk.DescriptorTypeCombinedImageSampler, vk.ShaderStageFlags(vk.ShaderStageFragmentBit), 1).
		AddBinding(0, vk.DescriptorTypeUniformBuffer, allGraphics, 1).
		AddBinding(1, vk.DescriptorTypeStorageBuffer, vk.ShaderStageFlags(vk.ShaderStageVertexBit), 4).
		Build()
	require.NoError(t, err)
	defer layout.Destroy()

	bindings := device.LayoutBindings(layout.Handle())
	require.Len(t, bindings, 3)
	for i, b := range bindings {
		assert.Equal(t, uint32(i), b.Binding)
	}
	assert.Equal(t, uint32(4), bindings[1].DescriptorCount)

	b, ok := layout.Binding(2)
	require.True(t, ok)
	assert.Equal(t, vk.DescriptorTypeCombinedImageSampler, b.DescriptorType)
	_, ok = layout.Binding(3)
	assert.False(t, ok)
}

func TestLayoutBuilderDuplicateBinding(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	before := device.DeviceCalls()

	layout, err := vulkan.NewDescriptorSetLayoutBuilder(device).
		AddBinding(0, vk.DescriptorTypeUniformBuffer, allGraphics, 1).
		AddBinding(0, vk.DescriptorTypeStorageBuffer, allGraphics, 1).
		Build()
	require.Error(t, err)
	assert.Nil(t, layout)
	assert.True(t, errors.Is(err, core.ErrDuplicateBinding))
	assert.True(t, core.IsContractViolation(err))
	assert.Equal(t, before, device.DeviceCalls())
}

func TestPoolCapacity(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	layout := newUniformLayout(t, device)
	defer layout.Destroy()
	pool := newPool(t, device, 1, 0)
	defer pool.Destroy()
	assert.Equal(t, uint32(1), pool.MaxSets())

	first, ok := pool.AllocateDescriptorSet(layout)
	require.True(t, ok)
	assert.NotNil(t, first)

	_, ok = pool.AllocateDescriptorSet(layout)
	assert.False(t, ok)

	require.NoError(t, pool.ResetPool())
	second, ok := pool.AllocateDescriptorSet(layout)
	assert.True(t, ok)
	assert.NotNil(t, second)
	assert.Empty(t, device.Violations())
}

func TestPoolFreeDescriptors(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	layout := newUniformLayout(t, device)
	defer layout.Destroy()
	pool := newPool(t, device, 2, vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit))
	defer pool.Destroy()

	a, ok := pool.AllocateDescriptorSet(layout)
	require.True(t, ok)
	b, ok := pool.AllocateDescriptorSet(layout)
	require.True(t, ok)
	_, ok = pool.AllocateDescriptorSet(layout)
	require.False(t, ok)

	require.NoError(t, pool.FreeDescriptors([]vk.DescriptorSet{a}))
	require.NoError(t, pool.FreeDescriptors(nil))
	_, ok = pool.AllocateDescriptorSet(layout)
	assert.True(t, ok)
	assert.NotNil(t, b)
	assert.Empty(t, device.Violations())
}

func TestPoolDestroyReleasesSets(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	layout := newUniformLayout(t, device)
	pool := newPool(t, device, 4, 0)
	for i := 0; i < 3; i++ {
		_, ok := pool.AllocateDescriptorSet(layout)
		require.True(t, ok)
	}
	pool.Destroy()
	pool.Destroy()
	layout.Destroy()
	assert.Equal(t, map[string]int{"surface": 1}, device.LiveObjects())
}

func TestWriterBuildWritesBuffer(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	layout := newUniformLayout(t, device)
	defer layout.Destroy()
	pool := newPool(t, device, 2, 0)
	defer pool.Destroy()
	buffer := newUniformBuffer(t, device, 64, 2)
	defer buffer.Destroy()

	set, err := vulkan.NewDescriptorWriter(layout, pool).
		WriteBuffer(0, buffer.DescriptorInfoForIndex(1)).
		Build()
	require.NoError(t, err)
	require.NotNil(t, set)

	writes := device.DescriptorWrites()
	require.Len(t, writes, 1)
	w := writes[0]
	assert.True(t, set == w.DstSet)
	assert.Equal(t, uint32(0), w.DstBinding)
	assert.Equal(t, vk.DescriptorTypeUniformBuffer, w.DescriptorType)
	assert.Equal(t, uint32(1), w.DescriptorCount)
	require.Len(t, w.PBufferInfo, 1)
	assert.True(t, buffer.Handle() == w.PBufferInfo[0].Buffer)
	assert.Equal(t, vk.DeviceSize(256), w.PBufferInfo[0].Offset)
	assert.Equal(t, vk.DeviceSize(256), w.PBufferInfo[0].Range)
	assert.Empty(t, device.Violations())
}

func TestWriterOverwrite(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	layout := newUniformLayout(t, device)
	defer layout.Destroy()
	pool := newPool(t, device, 1, 0)
	defer pool.Destroy()
	buffer := newUniformBuffer(t, device, 64, 1)
	defer buffer.Destroy()

	set, ok := pool.AllocateDescriptorSet(layout)
	require.True(t, ok)
	require.NoError(t, vulkan.NewDescriptorWriter(layout, pool).
		WriteBuffer(0, buffer.DescriptorInfo(vulkan.WholeSize, 0)).
		Overwrite(set))

	writes := device.DescriptorWrites()
	require.Len(t, writes, 1)
	assert.True(t, set == writes[0].DstSet)
	assert.Equal(t, vulkan.WholeSize, writes[0].PBufferInfo[0].Range)
}

func TestWriterUnknownBinding(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	layout := newUniformLayout(t, device)
	defer layout.Destroy()
	pool := newPool(t, device, 1, 0)
	defer pool.Destroy()
	buffer := newUniformBuffer(t, device, 64, 1)
	defer buffer.Destroy()

	set, err := vulkan.NewDescriptorWriter(layout, pool).
		WriteBuffer(0, buffer.DescriptorInfoForIndex(0)).
		WriteBuffer(5, buffer.DescriptorInfoForIndex(0)).
		Build()
	require.Error(t, err)
	assert.Nil(t, set)
	assert.True(t, errors.Is(err, core.ErrUnknownBinding))
	assert.True(t, core.IsContractViolation(err))

	calls := device.Calls()
	assert.False(t, hasCall(calls, "AllocateDescriptorSet"))
	assert.False(t, hasCall(calls, "UpdateDescriptorSets"))
}

func TestWriterRejectsArrayBinding(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	layout, err := vulkan.NewDescriptorSetLayoutBuilder(device).
		AddBinding(0, vk.DescriptorTypeCombinedImageSampler, allGraphics, 2).
		Build()
	require.NoError(t, err)
	defer layout.Destroy()
	pool := newPool(t, device, 1, 0)
	defer pool.Destroy()

	err = vulkan.NewDescriptorWriter(layout, pool).
		WriteImage(0, vk.DescriptorImageInfo{ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal}).
		Overwrite(nil)
	assert.True(t, errors.Is(err, core.ErrMultiDescriptorBinding))
	assert.False(t, hasCall(device.Calls(), "UpdateDescriptorSets"))
}

func TestWriterPoolExhausted(t *testing.T) {
	device := vulkantest.NewFakeDevice()
	layout := newUniformLayout(t, device)
	defer layout.Destroy()
	pool := newPool(t, device, 1, 0)
	defer pool.Destroy()
	buffer := newUniformBuffer(t, device, 64, 1)
	defer buffer.Destroy()

	writer := vulkan.NewDescriptorWriter(layout, pool).WriteBuffer(0, buffer.DescriptorInfoForIndex(0))
	_, err := writer.Build()
	require.NoError(t, err)

	set, err := writer.Build()
	assert.Nil(t, set)
	assert.True(t, errors.Is(err, core.ErrPoolExhausted))
	assert.Len(t, device.DescriptorWrites(), 1)
}
