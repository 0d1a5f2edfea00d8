package vulkan

import (
	"runtime"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vulkan3d/engine/core"
)

// MemoryDevice is the part of the device that buffers need.
type MemoryDevice interface {
	CreateBuffer(size vk.DeviceSize, usage vk.BufferUsageFlags, properties vk.MemoryPropertyFlags) (vk.Buffer, vk.DeviceMemory, error)
	DestroyBuffer(buffer vk.Buffer)
	FreeMemory(memory vk.DeviceMemory)
	MapMemory(memory vk.DeviceMemory, offset, size vk.DeviceSize) (unsafe.Pointer, vk.Result)
	UnmapMemory(memory vk.DeviceMemory)
	FlushMappedMemory(memory vk.DeviceMemory, offset, size vk.DeviceSize) vk.Result
	InvalidateMappedMemory(memory vk.DeviceMemory, offset, size vk.DeviceSize) vk.Result
	CopyBuffer(src, dst vk.Buffer, size vk.DeviceSize) error
	CopyBufferToImage(buffer vk.Buffer, image vk.Image, width, height, layerCount uint32) error
	MinUniformBufferOffsetAlignment() vk.DeviceSize
	NonCoherentAtomSize() vk.DeviceSize
}

// DescriptorDevice is the part of the device that layouts, pools and writers need.
type DescriptorDevice interface {
	CreateDescriptorSetLayout(bindings []vk.DescriptorSetLayoutBinding) (vk.DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(layout vk.DescriptorSetLayout)
	CreateDescriptorPool(maxSets uint32, sizes []vk.DescriptorPoolSize, flags vk.DescriptorPoolCreateFlags) (vk.DescriptorPool, error)
	DestroyDescriptorPool(pool vk.DescriptorPool)
	AllocateDescriptorSet(pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, vk.Result)
	FreeDescriptorSets(pool vk.DescriptorPool, sets []vk.DescriptorSet) vk.Result
	ResetDescriptorPool(pool vk.DescriptorPool) vk.Result
	UpdateDescriptorSets(writes []vk.WriteDescriptorSet)
}

// PresentDevice is the part of the device that the swap chain needs.
type PresentDevice interface {
	Surface() vk.Surface
	SwapchainSupport() (SwapchainSupportInfo, error)
	QueueFamilies() QueueFamilyIndices
	FindSupportedFormat(candidates []vk.Format, tiling vk.ImageTiling, features vk.FormatFeatureFlags) (vk.Format, error)

	CreateSwapchain(info *vk.SwapchainCreateInfo) (vk.Swapchain, error)
	DestroySwapchain(swapchain vk.Swapchain)
	GetSwapchainImages(swapchain vk.Swapchain) ([]vk.Image, error)
	CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, error)
	DestroyImageView(view vk.ImageView)
	CreateImageWithInfo(info *vk.ImageCreateInfo, properties vk.MemoryPropertyFlags) (vk.Image, vk.DeviceMemory, error)
	DestroyImage(image vk.Image)
	FreeMemory(memory vk.DeviceMemory)
	CreateRenderPass(info *vk.RenderPassCreateInfo) (vk.RenderPass, error)
	DestroyRenderPass(renderPass vk.RenderPass)
	CreateFramebuffer(info *vk.FramebufferCreateInfo) (vk.Framebuffer, error)
	DestroyFramebuffer(framebuffer vk.Framebuffer)

	CreateSemaphore() (vk.Semaphore, error)
	DestroySemaphore(semaphore vk.Semaphore)
	CreateFence(signaled bool) (vk.Fence, error)
	DestroyFence(fence vk.Fence)
	WaitForFences(fences []vk.Fence, timeout uint64) vk.Result
	ResetFences(fences []vk.Fence) vk.Result

	AcquireNextImage(swapchain vk.Swapchain, timeout uint64, semaphore vk.Semaphore) (uint32, vk.Result)
	QueueSubmit(submit vk.SubmitInfo, fence vk.Fence) vk.Result
	QueuePresent(info *vk.PresentInfo) vk.Result
	WaitIdle() vk.Result
}

// CommandDevice records into command buffers allocated from the graphics pool.
type CommandDevice interface {
	AllocateCommandBuffers(count uint32) ([]vk.CommandBuffer, error)
	FreeCommandBuffers(buffers []vk.CommandBuffer)
	BeginCommandBuffer(cb vk.CommandBuffer, flags vk.CommandBufferUsageFlags) vk.Result
	EndCommandBuffer(cb vk.CommandBuffer) vk.Result

	CmdBeginRenderPass(cb vk.CommandBuffer, info *vk.RenderPassBeginInfo)
	CmdEndRenderPass(cb vk.CommandBuffer)
	CmdSetViewport(cb vk.CommandBuffer, viewport vk.Viewport)
	CmdSetScissor(cb vk.CommandBuffer, scissor vk.Rect2D)
	CmdBindPipeline(cb vk.CommandBuffer, bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline)
	CmdBindDescriptorSets(cb vk.CommandBuffer, bindPoint vk.PipelineBindPoint, layout vk.PipelineLayout, firstSet uint32, sets []vk.DescriptorSet)
	CmdPushConstants(cb vk.CommandBuffer, layout vk.PipelineLayout, stages vk.ShaderStageFlags, offset uint32, data []byte)
	CmdBindVertexBuffers(cb vk.CommandBuffer, buffers []vk.Buffer, offsets []vk.DeviceSize)
	CmdBindIndexBuffer(cb vk.CommandBuffer, buffer vk.Buffer, offset vk.DeviceSize)
	CmdDraw(cb vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32)
	CmdDrawIndexed(cb vk.CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
}

// PipelineDevice creates shader modules, layouts and graphics pipelines.
type PipelineDevice interface {
	CreateShaderModule(code []uint32) (vk.ShaderModule, error)
	DestroyShaderModule(module vk.ShaderModule)
	CreatePipelineLayout(info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error)
	DestroyPipelineLayout(layout vk.PipelineLayout)
	CreateGraphicsPipeline(info *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, error)
	DestroyPipeline(pipeline vk.Pipeline)
}

// Device is everything the renderer core asks of the GPU.
type Device interface {
	MemoryDevice
	DescriptorDevice
	PresentDevice
	CommandDevice
	PipelineDevice
}

type SwapchainSupportInfo struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

type QueueFamilyIndices struct {
	GraphicsFamily         uint32
	PresentFamily          uint32
	GraphicsFamilyHasValue bool
	PresentFamilyHasValue  bool
}

func (q QueueFamilyIndices) IsComplete() bool {
	return q.GraphicsFamilyHasValue && q.PresentFamilyHasValue
}

type DeviceConfig struct {
	ApplicationName        string
	EnableValidationLayers bool
}

var deviceExtensions = []string{vk.KhrSwapchainExtensionName}

var _ Device = (*VulkanDevice)(nil)

// VulkanDevice is the single GPU context: instance, surface, physical and logical device,
// the graphics and present queues and the graphics command pool.
type VulkanDevice struct {
	context *VulkanContext

	PhysicalDevice vk.PhysicalDevice
	LogicalDevice  vk.Device
	GraphicsQueue  vk.Queue
	PresentQueue   vk.Queue
	Properties     vk.PhysicalDeviceProperties

	queueFamilies QueueFamilyIndices
	commandPool   vk.CommandPool
}

func NewVulkanDevice(config DeviceConfig, provider SurfaceProvider) (*VulkanDevice, error) {
	vc, err := NewVulkanContext(config.ApplicationName, config.EnableValidationLayers, provider)
	if err != nil {
		return nil, err
	}
	d := &VulkanDevice{context: vc}

	if err := d.pickPhysicalDevice(); err != nil {
		vc.Destroy()
		return nil, err
	}
	if err := d.createLogicalDevice(config.EnableValidationLayers); err != nil {
		vc.Destroy()
		return nil, err
	}
	if err := d.createCommandPool(); err != nil {
		d.Destroy()
		return nil, err
	}
	return d, nil
}

func (d *VulkanDevice) Destroy() {
	if d.commandPool != nil {
		core.LogDebug("Destroying command pools...")
		vk.DestroyCommandPool(d.LogicalDevice, d.commandPool, d.context.Allocator)
		d.commandPool = nil
	}
	if d.LogicalDevice != nil {
		core.LogDebug("Destroying logical device...")
		vk.DestroyDevice(d.LogicalDevice, d.context.Allocator)
		d.LogicalDevice = nil
	}
	d.GraphicsQueue = nil
	d.PresentQueue = nil
	// Physical devices are not destroyed.
	d.PhysicalDevice = nil
	d.context.Destroy()
}

func (d *VulkanDevice) pickPhysicalDevice() error {
	var count uint32
	if res := vk.EnumeratePhysicalDevices(d.context.Instance, &count, nil); res != vk.Success {
		return errors.Newf("enumerating physical devices: %s", VulkanResultString(res, false))
	}
	if count == 0 {
		err := errors.Wrap(core.ErrNoSuitableDevice, "no devices which support Vulkan were found")
		core.LogError(err.Error())
		return err
	}
	devices := make([]vk.PhysicalDevice, count)
	if res := vk.EnumeratePhysicalDevices(d.context.Instance, &count, devices); res != vk.Success {
		return errors.Newf("enumerating physical devices: %s", VulkanResultString(res, false))
	}
	core.LogInfo("Device count: %d", count)

	for _, candidate := range devices {
		if d.isDeviceSuitable(candidate) {
			d.PhysicalDevice = candidate
			break
		}
	}
	if d.PhysicalDevice == nil {
		err := errors.Wrap(core.ErrNoSuitableDevice, "no physical devices were found which meet the requirements")
		core.LogError(err.Error())
		return err
	}

	vk.GetPhysicalDeviceProperties(d.PhysicalDevice, &d.Properties)
	d.Properties.Deref()
	d.Properties.Limits.Deref()
	d.queueFamilies = findQueueFamilies(d.PhysicalDevice, d.context.Surface)

	core.LogInfo("Selected device: '%s'.", vk.ToString(d.Properties.DeviceName[:]))
	switch d.Properties.DeviceType {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		core.LogInfo("GPU type is Integrated.")
	case vk.PhysicalDeviceTypeDiscreteGpu:
		core.LogInfo("GPU type is Discrete.")
	case vk.PhysicalDeviceTypeVirtualGpu:
		core.LogInfo("GPU type is Virtual.")
	case vk.PhysicalDeviceTypeCpu:
		core.LogInfo("GPU type is CPU.")
	default:
		core.LogInfo("GPU type is Unknown.")
	}
	core.LogInfo(
		"Vulkan API version: %d.%d.%d",
		vk.Version(d.Properties.ApiVersion).Major(),
		vk.Version(d.Properties.ApiVersion).Minor(),
		vk.Version(d.Properties.ApiVersion).Patch(),
	)
	return nil
}

func (d *VulkanDevice) isDeviceSuitable(device vk.PhysicalDevice) bool {
	indices := findQueueFamilies(device, d.context.Surface)
	if !indices.IsComplete() {
		return false
	}
	if !checkDeviceExtensionSupport(device) {
		core.LogInfo("Required device extensions not found, skipping device.")
		return false
	}
	support, err := querySwapchainSupport(device, d.context.Surface)
	if err != nil || len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		core.LogInfo("Required swapchain support not present, skipping device.")
		return false
	}

	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(device, &features)
	features.Deref()
	if features.SamplerAnisotropy == vk.False {
		core.LogInfo("Device does not support samplerAnisotropy, skipping.")
		return false
	}
	return true
}

func findQueueFamilies(device vk.PhysicalDevice, surface vk.Surface) QueueFamilyIndices {
	var indices QueueFamilyIndices

	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, families)

	for i := range families {
		families[i].Deref()
		if families[i].QueueCount > 0 && families[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			indices.GraphicsFamily = uint32(i)
			indices.GraphicsFamilyHasValue = true
		}
		var supportsPresent vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &supportsPresent)
		if families[i].QueueCount > 0 && supportsPresent == vk.True {
			indices.PresentFamily = uint32(i)
			indices.PresentFamilyHasValue = true
		}
		if indices.IsComplete() {
			break
		}
	}
	return indices
}

func checkDeviceExtensionSupport(device vk.PhysicalDevice) bool {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, nil); res != vk.Success {
		return false
	}
	available := make([]vk.ExtensionProperties, count)
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, available); res != vk.Success {
		return false
	}
	names := make(map[string]struct{}, count)
	for i := range available {
		available[i].Deref()
		names[vk.ToString(available[i].ExtensionName[:])] = struct{}{}
	}
	for _, required := range deviceExtensions {
		if _, ok := names[required]; !ok {
			return false
		}
	}
	return true
}

func hasPortabilitySubset(device vk.PhysicalDevice) bool {
	var count uint32
	vk.EnumerateDeviceExtensionProperties(device, "", &count, nil)
	available := make([]vk.ExtensionProperties, count)
	vk.EnumerateDeviceExtensionProperties(device, "", &count, available)
	for i := range available {
		available[i].Deref()
		if vk.ToString(available[i].ExtensionName[:]) == "VK_KHR_portability_subset" {
			return true
		}
	}
	return false
}

func querySwapchainSupport(device vk.PhysicalDevice, surface vk.Surface) (SwapchainSupportInfo, error) {
	var info SwapchainSupportInfo

	if res := vk.GetPhysicalDeviceSurfaceCapabilities(device, surface, &info.Capabilities); res != vk.Success {
		return info, errors.Newf("failed to get surface capabilities: %s", VulkanResultString(res, false))
	}
	info.Capabilities.Deref()
	info.Capabilities.CurrentExtent.Deref()
	info.Capabilities.MinImageExtent.Deref()
	info.Capabilities.MaxImageExtent.Deref()

	var formatCount uint32
	if res := vk.GetPhysicalDeviceSurfaceFormats(device, surface, &formatCount, nil); res != vk.Success {
		return info, errors.Newf("failed to get surface formats: %s", VulkanResultString(res, false))
	}
	if formatCount != 0 {
		info.Formats = make([]vk.SurfaceFormat, formatCount)
		vk.GetPhysicalDeviceSurfaceFormats(device, surface, &formatCount, info.Formats)
		for i := range info.Formats {
			info.Formats[i].Deref()
		}
	}

	var modeCount uint32
	if res := vk.GetPhysicalDeviceSurfacePresentModes(device, surface, &modeCount, nil); res != vk.Success {
		return info, errors.Newf("failed to get surface present modes: %s", VulkanResultString(res, false))
	}
	if modeCount != 0 {
		info.PresentModes = make([]vk.PresentMode, modeCount)
		vk.GetPhysicalDeviceSurfacePresentModes(device, surface, &modeCount, info.PresentModes)
	}
	return info, nil
}

func (d *VulkanDevice) createLogicalDevice(enableValidation bool) error {
	core.LogInfo("Creating logical device...")

	families := []uint32{d.queueFamilies.GraphicsFamily}
	// Do not create additional queues for shared indices.
	if d.queueFamilies.PresentFamily != d.queueFamilies.GraphicsFamily {
		families = append(families, d.queueFamilies.PresentFamily)
	}
	queueInfos := make([]vk.DeviceQueueCreateInfo, len(families))
	for i, family := range families {
		queueInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	features := vk.PhysicalDeviceFeatures{
		SamplerAnisotropy: vk.True,
	}

	extensions := append([]string{}, deviceExtensions...)
	if runtime.GOOS == "darwin" || hasPortabilitySubset(d.PhysicalDevice) {
		core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
		extensions = append(extensions, "VK_KHR_portability_subset")
	}

	createInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{features},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensions),
	}
	// Device layers are deprecated, set for older implementations only.
	if enableValidation {
		createInfo.EnabledLayerCount = 1
		createInfo.PpEnabledLayerNames = VulkanSafeStrings([]string{ValidationLayerName})
	}

	var device vk.Device
	if res := vk.CreateDevice(d.PhysicalDevice, &createInfo, d.context.Allocator, &device); res != vk.Success {
		err := errors.Newf("failed to create logical device: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	d.LogicalDevice = device
	core.LogInfo("Logical device created.")

	var graphicsQueue, presentQueue vk.Queue
	vk.GetDeviceQueue(d.LogicalDevice, d.queueFamilies.GraphicsFamily, 0, &graphicsQueue)
	vk.GetDeviceQueue(d.LogicalDevice, d.queueFamilies.PresentFamily, 0, &presentQueue)
	d.GraphicsQueue = graphicsQueue
	d.PresentQueue = presentQueue
	core.LogInfo("Queues obtained.")
	return nil
}

func (d *VulkanDevice) createCommandPool() error {
	poolInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: d.queueFamilies.GraphicsFamily,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit | vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(d.LogicalDevice, &poolInfo, d.context.Allocator, &pool); res != vk.Success {
		err := errors.Newf("failed to create command pool: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	d.commandPool = pool
	core.LogInfo("Graphics command pool created.")
	return nil
}

// FindMemoryType returns the index of a memory type allowed by typeFilter that has all the
// requested properties.
func (d *VulkanDevice) FindMemoryType(typeFilter uint32, properties vk.MemoryPropertyFlags) (uint32, error) {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(d.PhysicalDevice, &memoryProperties)
	memoryProperties.Deref()

	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		// Check each memory type to see if its bit is set to 1.
		memoryProperties.MemoryTypes[i].Deref()
		if typeFilter&(1<<i) != 0 && memoryProperties.MemoryTypes[i].PropertyFlags&properties == properties {
			return i, nil
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return 0, core.ErrNoSuitableMemoryType
}

func (d *VulkanDevice) QueueFamilies() QueueFamilyIndices {
	return d.queueFamilies
}

func (d *VulkanDevice) SwapchainSupport() (SwapchainSupportInfo, error) {
	return querySwapchainSupport(d.PhysicalDevice, d.context.Surface)
}

func (d *VulkanDevice) Surface() vk.Surface {
	return d.context.Surface
}

func (d *VulkanDevice) MinUniformBufferOffsetAlignment() vk.DeviceSize {
	return d.Properties.Limits.MinUniformBufferOffsetAlignment
}

func (d *VulkanDevice) NonCoherentAtomSize() vk.DeviceSize {
	return d.Properties.Limits.NonCoherentAtomSize
}

func (d *VulkanDevice) FindSupportedFormat(candidates []vk.Format, tiling vk.ImageTiling, features vk.FormatFeatureFlags) (vk.Format, error) {
	for _, format := range candidates {
		var props vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(d.PhysicalDevice, format, &props)
		props.Deref()

		if tiling == vk.ImageTilingLinear && props.LinearTilingFeatures&features == features {
			return format, nil
		}
		if tiling == vk.ImageTilingOptimal && props.OptimalTilingFeatures&features == features {
			return format, nil
		}
	}
	return vk.FormatUndefined, errors.Wrapf(core.ErrNoSuitableFormat, "none of %d candidates", len(candidates))
}

// memory

func (d *VulkanDevice) CreateBuffer(size vk.DeviceSize, usage vk.BufferUsageFlags, properties vk.MemoryPropertyFlags) (vk.Buffer, vk.DeviceMemory, error) {
	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	var buffer vk.Buffer
	if res := vk.CreateBuffer(d.LogicalDevice, &bufferInfo, d.context.Allocator, &buffer); res != vk.Success {
		err := errors.Newf("failed to create buffer: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, nil, err
	}

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.LogicalDevice, buffer, &requirements)
	requirements.Deref()

	memoryType, err := d.FindMemoryType(requirements.MemoryTypeBits, properties)
	if err != nil {
		vk.DestroyBuffer(d.LogicalDevice, buffer, d.context.Allocator)
		return nil, nil, err
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: memoryType,
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(d.LogicalDevice, &allocInfo, d.context.Allocator, &memory); res != vk.Success {
		vk.DestroyBuffer(d.LogicalDevice, buffer, d.context.Allocator)
		err := errors.Newf("failed to allocate buffer memory: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, nil, err
	}
	if res := vk.BindBufferMemory(d.LogicalDevice, buffer, memory, 0); res != vk.Success {
		vk.FreeMemory(d.LogicalDevice, memory, d.context.Allocator)
		vk.DestroyBuffer(d.LogicalDevice, buffer, d.context.Allocator)
		return nil, nil, errors.Newf("failed to bind buffer memory: %s", VulkanResultString(res, true))
	}
	return buffer, memory, nil
}

func (d *VulkanDevice) DestroyBuffer(buffer vk.Buffer) {
	vk.DestroyBuffer(d.LogicalDevice, buffer, d.context.Allocator)
}

func (d *VulkanDevice) FreeMemory(memory vk.DeviceMemory) {
	vk.FreeMemory(d.LogicalDevice, memory, d.context.Allocator)
}

func (d *VulkanDevice) MapMemory(memory vk.DeviceMemory, offset, size vk.DeviceSize) (unsafe.Pointer, vk.Result) {
	var data unsafe.Pointer
	res := vk.MapMemory(d.LogicalDevice, memory, offset, size, 0, &data)
	return data, res
}

func (d *VulkanDevice) UnmapMemory(memory vk.DeviceMemory) {
	vk.UnmapMemory(d.LogicalDevice, memory)
}

func (d *VulkanDevice) FlushMappedMemory(memory vk.DeviceMemory, offset, size vk.DeviceSize) vk.Result {
	return vk.FlushMappedMemoryRanges(d.LogicalDevice, 1, []vk.MappedMemoryRange{{
		SType:  vk.StructureTypeMappedMemoryRange,
		Memory: memory,
		Offset: offset,
		Size:   size,
	}})
}

func (d *VulkanDevice) InvalidateMappedMemory(memory vk.DeviceMemory, offset, size vk.DeviceSize) vk.Result {
	return vk.InvalidateMappedMemoryRanges(d.LogicalDevice, 1, []vk.MappedMemoryRange{{
		SType:  vk.StructureTypeMappedMemoryRange,
		Memory: memory,
		Offset: offset,
		Size:   size,
	}})
}

func (d *VulkanDevice) beginSingleTimeCommands() (vk.CommandBuffer, error) {
	buffers, err := d.AllocateCommandBuffers(1)
	if err != nil {
		return nil, err
	}
	if res := d.BeginCommandBuffer(buffers[0], vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)); res != vk.Success {
		d.FreeCommandBuffers(buffers)
		return nil, errors.Newf("failed to begin single use command buffer: %s", VulkanResultString(res, false))
	}
	return buffers[0], nil
}

func (d *VulkanDevice) endSingleTimeCommands(cb vk.CommandBuffer) error {
	defer d.FreeCommandBuffers([]vk.CommandBuffer{cb})

	if res := vk.EndCommandBuffer(cb); res != vk.Success {
		return errors.Newf("failed to end single use command buffer: %s", VulkanResultString(res, false))
	}
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb},
	}
	if res := vk.QueueSubmit(d.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence); res != vk.Success {
		return errors.Newf("failed to submit single use command buffer: %s", VulkanResultString(res, true))
	}
	// Wait for it to finish
	if res := vk.QueueWaitIdle(d.GraphicsQueue); res != vk.Success {
		return errors.Newf("failed waiting for graphics queue: %s", VulkanResultString(res, true))
	}
	return nil
}

func (d *VulkanDevice) CopyBuffer(src, dst vk.Buffer, size vk.DeviceSize) error {
	cb, err := d.beginSingleTimeCommands()
	if err != nil {
		return err
	}
	vk.CmdCopyBuffer(cb, src, dst, 1, []vk.BufferCopy{{SrcOffset: 0, DstOffset: 0, Size: size}})
	return d.endSingleTimeCommands(cb)
}

func (d *VulkanDevice) CopyBufferToImage(buffer vk.Buffer, image vk.Image, width, height, layerCount uint32) error {
	cb, err := d.beginSingleTimeCommands()
	if err != nil {
		return err
	}
	region := vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: layerCount,
		},
		ImageExtent: vk.Extent3D{Width: width, Height: height, Depth: 1},
	}
	vk.CmdCopyBufferToImage(cb, buffer, image, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
	return d.endSingleTimeCommands(cb)
}

// descriptors

func (d *VulkanDevice) CreateDescriptorSetLayout(bindings []vk.DescriptorSetLayoutBinding) (vk.DescriptorSetLayout, error) {
	info := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(d.LogicalDevice, &info, d.context.Allocator, &layout); res != vk.Success {
		return nil, errors.Newf("failed to create descriptor set layout: %s", VulkanResultString(res, true))
	}
	return layout, nil
}

func (d *VulkanDevice) DestroyDescriptorSetLayout(layout vk.DescriptorSetLayout) {
	vk.DestroyDescriptorSetLayout(d.LogicalDevice, layout, d.context.Allocator)
}

func (d *VulkanDevice) CreateDescriptorPool(maxSets uint32, sizes []vk.DescriptorPoolSize, flags vk.DescriptorPoolCreateFlags) (vk.DescriptorPool, error) {
	info := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         flags,
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(d.LogicalDevice, &info, d.context.Allocator, &pool); res != vk.Success {
		return nil, errors.Newf("failed to create descriptor pool: %s", VulkanResultString(res, true))
	}
	return pool, nil
}

func (d *VulkanDevice) DestroyDescriptorPool(pool vk.DescriptorPool) {
	vk.DestroyDescriptorPool(d.LogicalDevice, pool, d.context.Allocator)
}

func (d *VulkanDevice) AllocateDescriptorSet(pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, vk.Result) {
	info := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}
	var set vk.DescriptorSet
	res := vk.AllocateDescriptorSets(d.LogicalDevice, &info, &set)
	return set, res
}

func (d *VulkanDevice) FreeDescriptorSets(pool vk.DescriptorPool, sets []vk.DescriptorSet) vk.Result {
	if len(sets) == 0 {
		return vk.Success
	}
	return vk.FreeDescriptorSets(d.LogicalDevice, pool, uint32(len(sets)), &sets[0])
}

func (d *VulkanDevice) ResetDescriptorPool(pool vk.DescriptorPool) vk.Result {
	return vk.ResetDescriptorPool(d.LogicalDevice, pool, 0)
}

func (d *VulkanDevice) UpdateDescriptorSets(writes []vk.WriteDescriptorSet) {
	vk.UpdateDescriptorSets(d.LogicalDevice, uint32(len(writes)), writes, 0, nil)
}

// presentation

func (d *VulkanDevice) CreateSwapchain(info *vk.SwapchainCreateInfo) (vk.Swapchain, error) {
	var swapchain vk.Swapchain
	if res := vk.CreateSwapchain(d.LogicalDevice, info, d.context.Allocator, &swapchain); res != vk.Success {
		return nil, errors.Newf("failed to create swap chain: %s", VulkanResultString(res, true))
	}
	return swapchain, nil
}

func (d *VulkanDevice) DestroySwapchain(swapchain vk.Swapchain) {
	vk.DestroySwapchain(d.LogicalDevice, swapchain, d.context.Allocator)
}

func (d *VulkanDevice) GetSwapchainImages(swapchain vk.Swapchain) ([]vk.Image, error) {
	var count uint32
	if res := vk.GetSwapchainImages(d.LogicalDevice, swapchain, &count, nil); res != vk.Success {
		return nil, errors.Newf("failed to get swap chain image count: %s", VulkanResultString(res, false))
	}
	images := make([]vk.Image, count)
	if res := vk.GetSwapchainImages(d.LogicalDevice, swapchain, &count, images); res != vk.Success {
		return nil, errors.Newf("failed to get swap chain images: %s", VulkanResultString(res, false))
	}
	return images, nil
}

func (d *VulkanDevice) CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, error) {
	var view vk.ImageView
	if res := vk.CreateImageView(d.LogicalDevice, info, d.context.Allocator, &view); res != vk.Success {
		return nil, errors.Newf("failed to create image view: %s", VulkanResultString(res, true))
	}
	return view, nil
}

func (d *VulkanDevice) DestroyImageView(view vk.ImageView) {
	vk.DestroyImageView(d.LogicalDevice, view, d.context.Allocator)
}

func (d *VulkanDevice) CreateImageWithInfo(info *vk.ImageCreateInfo, properties vk.MemoryPropertyFlags) (vk.Image, vk.DeviceMemory, error) {
	var image vk.Image
	if res := vk.CreateImage(d.LogicalDevice, info, d.context.Allocator, &image); res != vk.Success {
		return nil, nil, errors.Newf("failed to create image: %s", VulkanResultString(res, true))
	}

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.LogicalDevice, image, &requirements)
	requirements.Deref()

	memoryType, err := d.FindMemoryType(requirements.MemoryTypeBits, properties)
	if err != nil {
		vk.DestroyImage(d.LogicalDevice, image, d.context.Allocator)
		return nil, nil, err
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: memoryType,
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(d.LogicalDevice, &allocInfo, d.context.Allocator, &memory); res != vk.Success {
		vk.DestroyImage(d.LogicalDevice, image, d.context.Allocator)
		return nil, nil, errors.Newf("failed to allocate image memory: %s", VulkanResultString(res, true))
	}
	if res := vk.BindImageMemory(d.LogicalDevice, image, memory, 0); res != vk.Success {
		vk.FreeMemory(d.LogicalDevice, memory, d.context.Allocator)
		vk.DestroyImage(d.LogicalDevice, image, d.context.Allocator)
		return nil, nil, errors.Newf("failed to bind image memory: %s", VulkanResultString(res, true))
	}
	return image, memory, nil
}

func (d *VulkanDevice) DestroyImage(image vk.Image) {
	vk.DestroyImage(d.LogicalDevice, image, d.context.Allocator)
}

func (d *VulkanDevice) CreateRenderPass(info *vk.RenderPassCreateInfo) (vk.RenderPass, error) {
	var renderPass vk.RenderPass
	if res := vk.CreateRenderPass(d.LogicalDevice, info, d.context.Allocator, &renderPass); res != vk.Success {
		return nil, errors.Newf("failed to create render pass: %s", VulkanResultString(res, true))
	}
	return renderPass, nil
}

func (d *VulkanDevice) DestroyRenderPass(renderPass vk.RenderPass) {
	vk.DestroyRenderPass(d.LogicalDevice, renderPass, d.context.Allocator)
}

func (d *VulkanDevice) CreateFramebuffer(info *vk.FramebufferCreateInfo) (vk.Framebuffer, error) {
	var framebuffer vk.Framebuffer
	if res := vk.CreateFramebuffer(d.LogicalDevice, info, d.context.Allocator, &framebuffer); res != vk.Success {
		return nil, errors.Newf("failed to create framebuffer: %s", VulkanResultString(res, true))
	}
	return framebuffer, nil
}

func (d *VulkanDevice) DestroyFramebuffer(framebuffer vk.Framebuffer) {
	vk.DestroyFramebuffer(d.LogicalDevice, framebuffer, d.context.Allocator)
}

func (d *VulkanDevice) CreateSemaphore() (vk.Semaphore, error) {
	info := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var semaphore vk.Semaphore
	if res := vk.CreateSemaphore(d.LogicalDevice, &info, d.context.Allocator, &semaphore); res != vk.Success {
		return nil, errors.Newf("failed to create semaphore: %s", VulkanResultString(res, true))
	}
	return semaphore, nil
}

func (d *VulkanDevice) DestroySemaphore(semaphore vk.Semaphore) {
	vk.DestroySemaphore(d.LogicalDevice, semaphore, d.context.Allocator)
}

func (d *VulkanDevice) CreateFence(signaled bool) (vk.Fence, error) {
	info := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if res := vk.CreateFence(d.LogicalDevice, &info, d.context.Allocator, &fence); res != vk.Success {
		return nil, errors.Newf("failed to create fence: %s", VulkanResultString(res, true))
	}
	return fence, nil
}

func (d *VulkanDevice) DestroyFence(fence vk.Fence) {
	vk.DestroyFence(d.LogicalDevice, fence, d.context.Allocator)
}

func (d *VulkanDevice) WaitForFences(fences []vk.Fence, timeout uint64) vk.Result {
	return vk.WaitForFences(d.LogicalDevice, uint32(len(fences)), fences, vk.True, timeout)
}

func (d *VulkanDevice) ResetFences(fences []vk.Fence) vk.Result {
	return vk.ResetFences(d.LogicalDevice, uint32(len(fences)), fences)
}

func (d *VulkanDevice) AcquireNextImage(swapchain vk.Swapchain, timeout uint64, semaphore vk.Semaphore) (uint32, vk.Result) {
	var index uint32
	res := vk.AcquireNextImage(d.LogicalDevice, swapchain, timeout, semaphore, vk.NullFence, &index)
	return index, res
}

func (d *VulkanDevice) QueueSubmit(submit vk.SubmitInfo, fence vk.Fence) vk.Result {
	return vk.QueueSubmit(d.GraphicsQueue, 1, []vk.SubmitInfo{submit}, fence)
}

func (d *VulkanDevice) QueuePresent(info *vk.PresentInfo) vk.Result {
	return vk.QueuePresent(d.PresentQueue, info)
}

func (d *VulkanDevice) WaitIdle() vk.Result {
	return vk.DeviceWaitIdle(d.LogicalDevice)
}

// commands

func (d *VulkanDevice) AllocateCommandBuffers(count uint32) ([]vk.CommandBuffer, error) {
	info := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: count,
	}
	buffers := make([]vk.CommandBuffer, count)
	if res := vk.AllocateCommandBuffers(d.LogicalDevice, &info, buffers); res != vk.Success {
		return nil, errors.Newf("failed to allocate command buffers: %s", VulkanResultString(res, true))
	}
	return buffers, nil
}

func (d *VulkanDevice) FreeCommandBuffers(buffers []vk.CommandBuffer) {
	vk.FreeCommandBuffers(d.LogicalDevice, d.commandPool, uint32(len(buffers)), buffers)
}

func (d *VulkanDevice) BeginCommandBuffer(cb vk.CommandBuffer, flags vk.CommandBufferUsageFlags) vk.Result {
	return vk.BeginCommandBuffer(cb, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: flags,
	})
}

func (d *VulkanDevice) EndCommandBuffer(cb vk.CommandBuffer) vk.Result {
	return vk.EndCommandBuffer(cb)
}

func (d *VulkanDevice) CmdBeginRenderPass(cb vk.CommandBuffer, info *vk.RenderPassBeginInfo) {
	vk.CmdBeginRenderPass(cb, info, vk.SubpassContentsInline)
}

func (d *VulkanDevice) CmdEndRenderPass(cb vk.CommandBuffer) {
	vk.CmdEndRenderPass(cb)
}

func (d *VulkanDevice) CmdSetViewport(cb vk.CommandBuffer, viewport vk.Viewport) {
	vk.CmdSetViewport(cb, 0, 1, []vk.Viewport{viewport})
}

func (d *VulkanDevice) CmdSetScissor(cb vk.CommandBuffer, scissor vk.Rect2D) {
	vk.CmdSetScissor(cb, 0, 1, []vk.Rect2D{scissor})
}

func (d *VulkanDevice) CmdBindPipeline(cb vk.CommandBuffer, bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline) {
	vk.CmdBindPipeline(cb, bindPoint, pipeline)
}

func (d *VulkanDevice) CmdBindDescriptorSets(cb vk.CommandBuffer, bindPoint vk.PipelineBindPoint, layout vk.PipelineLayout, firstSet uint32, sets []vk.DescriptorSet) {
	vk.CmdBindDescriptorSets(cb, bindPoint, layout, firstSet, uint32(len(sets)), sets, 0, nil)
}

func (d *VulkanDevice) CmdPushConstants(cb vk.CommandBuffer, layout vk.PipelineLayout, stages vk.ShaderStageFlags, offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdPushConstants(cb, layout, stages, offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (d *VulkanDevice) CmdBindVertexBuffers(cb vk.CommandBuffer, buffers []vk.Buffer, offsets []vk.DeviceSize) {
	vk.CmdBindVertexBuffers(cb, 0, uint32(len(buffers)), buffers, offsets)
}

func (d *VulkanDevice) CmdBindIndexBuffer(cb vk.CommandBuffer, buffer vk.Buffer, offset vk.DeviceSize) {
	vk.CmdBindIndexBuffer(cb, buffer, offset, vk.IndexTypeUint32)
}

func (d *VulkanDevice) CmdDraw(cb vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(cb, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (d *VulkanDevice) CmdDrawIndexed(cb vk.CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(cb, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

// pipelines

func (d *VulkanDevice) CreateShaderModule(code []uint32) (vk.ShaderModule, error) {
	info := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code) * 4),
		PCode:    code,
	}
	var module vk.ShaderModule
	if res := vk.CreateShaderModule(d.LogicalDevice, &info, d.context.Allocator, &module); res != vk.Success {
		return nil, errors.Newf("failed to create shader module: %s", VulkanResultString(res, true))
	}
	return module, nil
}

func (d *VulkanDevice) DestroyShaderModule(module vk.ShaderModule) {
	vk.DestroyShaderModule(d.LogicalDevice, module, d.context.Allocator)
}

func (d *VulkanDevice) CreatePipelineLayout(info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error) {
	var layout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(d.LogicalDevice, info, d.context.Allocator, &layout); res != vk.Success {
		return nil, errors.Newf("failed to create pipeline layout: %s", VulkanResultString(res, true))
	}
	return layout, nil
}

func (d *VulkanDevice) DestroyPipelineLayout(layout vk.PipelineLayout) {
	vk.DestroyPipelineLayout(d.LogicalDevice, layout, d.context.Allocator)
}

func (d *VulkanDevice) CreateGraphicsPipeline(info *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, error) {
	pipelines := make([]vk.Pipeline, 1)
	if res := vk.CreateGraphicsPipelines(d.LogicalDevice, vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{*info}, d.context.Allocator, pipelines); res != vk.Success {
		return nil, errors.Newf("failed to create graphics pipeline: %s", VulkanResultString(res, true))
	}
	return pipelines[0], nil
}

func (d *VulkanDevice) DestroyPipeline(pipeline vk.Pipeline) {
	vk.DestroyPipeline(d.LogicalDevice, pipeline, d.context.Allocator)
}
