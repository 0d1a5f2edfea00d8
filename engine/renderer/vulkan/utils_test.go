package vulkan_test

import (
	"encoding/binary"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/vulkan3d/engine/renderer/vulkan"
)

func TestAlignUp(t *testing.T) {
	assert.Equal(t, uint32(0), vulkan.AlignUp(uint32(0), 16))
	assert.Equal(t, uint32(16), vulkan.AlignUp(uint32(1), 16))
	assert.Equal(t, uint32(16), vulkan.AlignUp(uint32(16), 16))
	assert.Equal(t, uint32(32), vulkan.AlignUp(uint32(17), 16))
	assert.Equal(t, uint64(300), vulkan.AlignUp(uint64(300), 1))
	assert.Equal(t, uint64(300), vulkan.AlignUp(uint64(300), 0))
}

func TestMathClamp(t *testing.T) {
	assert.Equal(t, uint32(1), vulkan.MathClamp(uint32(0), 1, 10))
	assert.Equal(t, uint32(10), vulkan.MathClamp(uint32(50), 1, 10))
	assert.Equal(t, 0.5, vulkan.MathClamp(0.5, 0.0, 1.0))
}

func TestVulkanResultString(t *testing.T) {
	assert.Equal(t, "VK_SUCCESS", vulkan.VulkanResultString(vk.Success, false))
	assert.Contains(t, vulkan.VulkanResultString(vk.ErrorOutOfPoolMemory, true), "VK_ERROR_OUT_OF_POOL_MEMORY ")
	assert.Equal(t, "VkResult(12345)", vulkan.VulkanResultString(vk.Result(12345), false))

	assert.True(t, vulkan.VulkanResultIsSuccess(vk.Success))
	assert.True(t, vulkan.VulkanResultIsSuccess(vk.Suboptimal))
	assert.False(t, vulkan.VulkanResultIsSuccess(vk.ErrorOutOfDate))
	assert.False(t, vulkan.VulkanResultIsSuccess(vk.ErrorDeviceLost))
}

func TestVulkanSafeString(t *testing.T) {
	assert.Equal(t, "\x00", vulkan.VulkanSafeString(""))
	assert.Equal(t, "main\x00", vulkan.VulkanSafeString("main"))
	assert.Equal(t, "main\x00", vulkan.VulkanSafeString("main\x00"))
	assert.Equal(t, []string{"a\x00", "b\x00"}, vulkan.VulkanSafeStrings([]string{"a", "b\x00"}))
}

func TestSPIRVWords(t *testing.T) {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:], 0x07230203)
	binary.LittleEndian.PutUint32(data[4:], 0x00010000)
	binary.LittleEndian.PutUint32(data[8:], 42)

	words, err := vulkan.SPIRVWords(data)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0x07230203, 0x00010000, 42}, words)

	_, err = vulkan.SPIRVWords(data[:10])
	assert.Error(t, err)
	_, err = vulkan.SPIRVWords(nil)
	assert.Error(t, err)

	data[0] = 0
	_, err = vulkan.SPIRVWords(data)
	assert.Error(t, err)
}
