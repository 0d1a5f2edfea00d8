// Package vulkantest provides in-memory stand-ins for the GPU device and the platform window
// so the renderer core can be exercised without a driver.
package vulkantest

import (
	"math"
	"sync"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vulkan3d/engine/core"
	"github.com/spaghettifunk/vulkan3d/engine/renderer/vulkan"
)

var _ vulkan.Device = (*FakeDevice)(nil)

type BufferRecord struct {
	Size   vk.DeviceSize
	Usage  vk.BufferUsageFlags
	Props  vk.MemoryPropertyFlags
	Memory vk.DeviceMemory
}

type SwapchainRecord struct {
	Handle        vk.Swapchain
	OldSwapchain  vk.Swapchain
	Extent        vk.Extent2D
	MinImageCount uint32
	Format        vk.Format
	PresentMode   vk.PresentMode
	SharingMode   vk.SharingMode
}

type SubmitRecord struct {
	CommandBuffer   vk.CommandBuffer
	Fence           vk.Fence
	WaitSemaphore   vk.Semaphore
	SignalSemaphore vk.Semaphore
}

type PresentRecord struct {
	Swapchain     vk.Swapchain
	ImageIndex    uint32
	WaitSemaphore vk.Semaphore
}

type RenderPassBeginRecord struct {
	CommandBuffer vk.CommandBuffer
	Framebuffer   vk.Framebuffer
	Extent        vk.Extent2D
	ClearValues   []vk.ClearValue
}

type DrawRecord struct {
	CommandBuffer vk.CommandBuffer
	Count         uint32
	InstanceCount uint32
	Indexed       bool
}

type PushConstantRecord struct {
	Layout vk.PipelineLayout
	Stages vk.ShaderStageFlags
	Offset uint32
	Data   []byte
}

type PipelineRecord struct {
	Handle           vk.Pipeline
	Layout           vk.PipelineLayout
	RenderPass       vk.RenderPass
	BlendEnable      bool
	VertexBindings   uint32
	VertexAttributes uint32
	Stages           uint32
}

type CopyRecord struct {
	Src, Dst vk.Buffer
	Size     vk.DeviceSize
}

type MemoryRange struct {
	Memory vk.DeviceMemory
	Offset vk.DeviceSize
	Size   vk.DeviceSize
}

type fakePool struct {
	maxSets   uint32
	flags     vk.DescriptorPoolCreateFlags
	allocated map[vk.DescriptorSet]struct{}
}

// FakeDevice implements vulkan.Device in memory. Buffer memory is a byte slice, fences are
// signaled on submit unless ManualFences is set, in which case SignalFence releases waiters.
// Configuration fields must be set before the device is shared with other goroutines.
type FakeDevice struct {
	Capabilities        vk.SurfaceCapabilities
	SurfaceFormats      []vk.SurfaceFormat
	PresentModes        []vk.PresentMode
	DepthFormat         vk.Format
	Families            vulkan.QueueFamilyIndices
	MinUniformAlignment vk.DeviceSize
	AtomSize            vk.DeviceSize
	ManualFences        bool

	mu   sync.Mutex
	cond *sync.Cond

	acquireResults []vk.Result
	acquireIndices []uint32
	presentResults []vk.Result

	surface    vk.Surface
	nextImage  uint32
	live       map[unsafe.Pointer]string
	buffers    map[vk.Buffer]*BufferRecord
	memory     map[vk.DeviceMemory][]byte
	mapped     map[vk.DeviceMemory]bool
	fences     map[vk.Fence]bool
	fenceOrder []vk.Fence
	waiters    int
	pools      map[vk.DescriptorPool]*fakePool
	layouts    map[vk.DescriptorSetLayout][]vk.DescriptorSetLayoutBinding
	swapchains map[vk.Swapchain]*SwapchainRecord
	recording  map[vk.CommandBuffer]bool

	swapchainLog  []SwapchainRecord
	submits       []SubmitRecord
	presents      []PresentRecord
	writes        []vk.WriteDescriptorSet
	renderPasses  []RenderPassBeginRecord
	viewports     []vk.Viewport
	scissors      []vk.Rect2D
	draws         []DrawRecord
	pushConstants []PushConstantRecord
	pipelines     []PipelineRecord
	copies        []CopyRecord
	flushes       []MemoryRange
	invalidates   []MemoryRange
	calls         []string
	violations    []string
	waitIdleCalls int
	deviceCalls   int
}

func NewFakeDevice() *FakeDevice {
	f := &FakeDevice{
		Capabilities: vk.SurfaceCapabilities{
			MinImageCount:    2,
			MaxImageCount:    3,
			CurrentExtent:    vk.Extent2D{Width: math.MaxUint32, Height: math.MaxUint32},
			MinImageExtent:   vk.Extent2D{Width: 1, Height: 1},
			MaxImageExtent:   vk.Extent2D{Width: 4096, Height: 4096},
			CurrentTransform: vk.SurfaceTransformIdentityBit,
		},
		SurfaceFormats: []vk.SurfaceFormat{
			{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
			{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		},
		PresentModes: []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox},
		DepthFormat:  vk.FormatD32Sfloat,
		Families: vulkan.QueueFamilyIndices{
			GraphicsFamily:         0,
			PresentFamily:          0,
			GraphicsFamilyHasValue: true,
			PresentFamilyHasValue:  true,
		},
		MinUniformAlignment: 256,
		AtomSize:            64,

		live:       make(map[unsafe.Pointer]string),
		buffers:    make(map[vk.Buffer]*BufferRecord),
		memory:     make(map[vk.DeviceMemory][]byte),
		mapped:     make(map[vk.DeviceMemory]bool),
		fences:     make(map[vk.Fence]bool),
		pools:      make(map[vk.DescriptorPool]*fakePool),
		layouts:    make(map[vk.DescriptorSetLayout][]vk.DescriptorSetLayoutBinding),
		swapchains: make(map[vk.Swapchain]*SwapchainRecord),
		recording:  make(map[vk.CommandBuffer]bool),
	}
	f.cond = sync.NewCond(&f.mu)
	f.surface = vk.Surface(f.newHandle("surface"))
	return f
}

// newHandle mints a unique non-nil handle. Callers hold f.mu or own f exclusively.
func (f *FakeDevice) newHandle(kind string) unsafe.Pointer {
	p := unsafe.Pointer(new(byte))
	f.live[p] = kind
	return p
}

func (f *FakeDevice) release(p unsafe.Pointer, kind string) {
	if p == nil {
		return
	}
	if got, ok := f.live[p]; !ok || got != kind {
		f.violate("destroying unknown or already destroyed %s", kind)
		return
	}
	delete(f.live, p)
}

func (f *FakeDevice) violate(format string, args ...interface{}) {
	f.violations = append(f.violations, errors.Newf(format, args...).Error())
}

func (f *FakeDevice) call(name string) {
	f.calls = append(f.calls, name)
	f.deviceCalls++
}

// queueing

// QueueAcquireResults makes the next AcquireNextImage calls return these results in order.
func (f *FakeDevice) QueueAcquireResults(results ...vk.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquireResults = append(f.acquireResults, results...)
}

// QueueAcquireIndices makes the next successful acquires return these image indices.
func (f *FakeDevice) QueueAcquireIndices(indices ...uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquireIndices = append(f.acquireIndices, indices...)
}

// QueuePresentResults makes the next QueuePresent calls return these results in order.
func (f *FakeDevice) QueuePresentResults(results ...vk.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presentResults = append(f.presentResults, results...)
}

// fences

// Fences returns every fence created so far, in creation order.
func (f *FakeDevice) Fences() []vk.Fence {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]vk.Fence(nil), f.fenceOrder...)
}

func (f *FakeDevice) SignalFence(fence vk.Fence) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fences[fence] = true
	f.cond.Broadcast()
}

func (f *FakeDevice) SignalAllFences() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for fence := range f.fences {
		f.fences[fence] = true
	}
	f.cond.Broadcast()
}

func (f *FakeDevice) FenceSignaled(fence vk.Fence) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fences[fence]
}

// Waiters is the number of goroutines blocked in WaitForFences.
func (f *FakeDevice) Waiters() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waiters
}

// inspection

// LiveObjects counts the handles that were created and not destroyed yet, by kind.
func (f *FakeDevice) LiveObjects() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int)
	for _, kind := range f.live {
		out[kind]++
	}
	return out
}

// Violations lists API misuse the fake detected, e.g. submitting with a signaled fence.
func (f *FakeDevice) Violations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.violations...)
}

func (f *FakeDevice) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// DeviceCalls counts every device method invoked so far.
func (f *FakeDevice) DeviceCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deviceCalls
}

func (f *FakeDevice) Buffer(buffer vk.Buffer) (BufferRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.buffers[buffer]
	if !ok {
		return BufferRecord{}, false
	}
	return *rec, true
}

// BufferBytes returns a copy of the memory bound to buffer.
func (f *FakeDevice) BufferBytes(buffer vk.Buffer) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.buffers[buffer]
	if !ok {
		return nil
	}
	return append([]byte(nil), f.memory[rec.Memory]...)
}

func (f *FakeDevice) IsMapped(memory vk.DeviceMemory) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mapped[memory]
}

func (f *FakeDevice) Swapchains() []SwapchainRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SwapchainRecord(nil), f.swapchainLog...)
}

func (f *FakeDevice) Submits() []SubmitRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SubmitRecord(nil), f.submits...)
}

func (f *FakeDevice) Presents() []PresentRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PresentRecord(nil), f.presents...)
}

func (f *FakeDevice) DescriptorWrites() []vk.WriteDescriptorSet {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]vk.WriteDescriptorSet(nil), f.writes...)
}

func (f *FakeDevice) RenderPassBegins() []RenderPassBeginRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RenderPassBeginRecord(nil), f.renderPasses...)
}

func (f *FakeDevice) Viewports() []vk.Viewport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]vk.Viewport(nil), f.viewports...)
}

func (f *FakeDevice) Scissors() []vk.Rect2D {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]vk.Rect2D(nil), f.scissors...)
}

func (f *FakeDevice) Draws() []DrawRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]DrawRecord(nil), f.draws...)
}

func (f *FakeDevice) PushConstants() []PushConstantRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PushConstantRecord(nil), f.pushConstants...)
}

func (f *FakeDevice) Pipelines() []PipelineRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PipelineRecord(nil), f.pipelines...)
}

func (f *FakeDevice) Copies() []CopyRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CopyRecord(nil), f.copies...)
}

func (f *FakeDevice) Flushes() []MemoryRange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]MemoryRange(nil), f.flushes...)
}

func (f *FakeDevice) Invalidates() []MemoryRange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]MemoryRange(nil), f.invalidates...)
}

func (f *FakeDevice) WaitIdleCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waitIdleCalls
}

// ClearColor decodes the color member of a clear value.
func ClearColor(v vk.ClearValue) [4]float32 {
	return *(*[4]float32)(unsafe.Pointer(&v))
}

// memory

func (f *FakeDevice) CreateBuffer(size vk.DeviceSize, usage vk.BufferUsageFlags, properties vk.MemoryPropertyFlags) (vk.Buffer, vk.DeviceMemory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("CreateBuffer")

	buffer := vk.Buffer(f.newHandle("buffer"))
	memory := vk.DeviceMemory(f.newHandle("memory"))
	f.memory[memory] = make([]byte, size)
	f.buffers[buffer] = &BufferRecord{Size: size, Usage: usage, Props: properties, Memory: memory}
	return buffer, memory, nil
}

func (f *FakeDevice) DestroyBuffer(buffer vk.Buffer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("DestroyBuffer")
	f.release(unsafe.Pointer(buffer), "buffer")
}

func (f *FakeDevice) FreeMemory(memory vk.DeviceMemory) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("FreeMemory")
	if f.mapped[memory] {
		f.violate("freeing mapped memory")
	}
	f.release(unsafe.Pointer(memory), "memory")
	delete(f.mapped, memory)
}

func (f *FakeDevice) MapMemory(memory vk.DeviceMemory, offset, size vk.DeviceSize) (unsafe.Pointer, vk.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("MapMemory")

	data, ok := f.memory[memory]
	if !ok || offset >= vk.DeviceSize(len(data)) {
		return nil, vk.ErrorMemoryMapFailed
	}
	if size != vulkan.WholeSize && offset+size > vk.DeviceSize(len(data)) {
		return nil, vk.ErrorMemoryMapFailed
	}
	if f.mapped[memory] {
		f.violate("mapping memory that is already mapped")
	}
	f.mapped[memory] = true
	return unsafe.Pointer(&data[offset]), vk.Success
}

func (f *FakeDevice) UnmapMemory(memory vk.DeviceMemory) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("UnmapMemory")
	if !f.mapped[memory] {
		f.violate("unmapping memory that is not mapped")
	}
	f.mapped[memory] = false
}

func (f *FakeDevice) FlushMappedMemory(memory vk.DeviceMemory, offset, size vk.DeviceSize) vk.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("FlushMappedMemory")
	f.checkAtomRange(memory, offset, size)
	f.flushes = append(f.flushes, MemoryRange{Memory: memory, Offset: offset, Size: size})
	return vk.Success
}

func (f *FakeDevice) InvalidateMappedMemory(memory vk.DeviceMemory, offset, size vk.DeviceSize) vk.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("InvalidateMappedMemory")
	f.checkAtomRange(memory, offset, size)
	f.invalidates = append(f.invalidates, MemoryRange{Memory: memory, Offset: offset, Size: size})
	return vk.Success
}

// checkAtomRange applies the nonCoherentAtomSize rules for flushing and invalidating.
func (f *FakeDevice) checkAtomRange(memory vk.DeviceMemory, offset, size vk.DeviceSize) {
	if f.AtomSize == 0 {
		return
	}
	if offset%f.AtomSize != 0 {
		f.violate("mapped range offset %d is not a multiple of the atom size %d", offset, f.AtomSize)
	}
	if size == vulkan.WholeSize || offset+size == vk.DeviceSize(len(f.memory[memory])) {
		return
	}
	if size%f.AtomSize != 0 {
		f.violate("mapped range size %d is not a multiple of the atom size %d", size, f.AtomSize)
	}
}

func (f *FakeDevice) CopyBuffer(src, dst vk.Buffer, size vk.DeviceSize) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("CopyBuffer")

	srcRec, ok := f.buffers[src]
	if !ok {
		return errors.New("copy from unknown buffer")
	}
	dstRec, ok := f.buffers[dst]
	if !ok {
		return errors.New("copy to unknown buffer")
	}
	if size > srcRec.Size || size > dstRec.Size {
		return errors.Newf("copy of %d bytes out of range", size)
	}
	copy(f.memory[dstRec.Memory][:size], f.memory[srcRec.Memory][:size])
	f.copies = append(f.copies, CopyRecord{Src: src, Dst: dst, Size: size})
	return nil
}

func (f *FakeDevice) CopyBufferToImage(buffer vk.Buffer, image vk.Image, width, height, layerCount uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("CopyBufferToImage")
	return nil
}

func (f *FakeDevice) MinUniformBufferOffsetAlignment() vk.DeviceSize {
	return f.MinUniformAlignment
}

func (f *FakeDevice) NonCoherentAtomSize() vk.DeviceSize {
	return f.AtomSize
}

// descriptors

func (f *FakeDevice) CreateDescriptorSetLayout(bindings []vk.DescriptorSetLayoutBinding) (vk.DescriptorSetLayout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("CreateDescriptorSetLayout")
	layout := vk.DescriptorSetLayout(f.newHandle("descriptorSetLayout"))
	f.layouts[layout] = append([]vk.DescriptorSetLayoutBinding(nil), bindings...)
	return layout, nil
}

// LayoutBindings returns the bindings a layout was created with, in submission order.
func (f *FakeDevice) LayoutBindings(layout vk.DescriptorSetLayout) []vk.DescriptorSetLayoutBinding {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]vk.DescriptorSetLayoutBinding(nil), f.layouts[layout]...)
}

func (f *FakeDevice) DestroyDescriptorSetLayout(layout vk.DescriptorSetLayout) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("DestroyDescriptorSetLayout")
	f.release(unsafe.Pointer(layout), "descriptorSetLayout")
	delete(f.layouts, layout)
}

func (f *FakeDevice) CreateDescriptorPool(maxSets uint32, sizes []vk.DescriptorPoolSize, flags vk.DescriptorPoolCreateFlags) (vk.DescriptorPool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("CreateDescriptorPool")
	pool := vk.DescriptorPool(f.newHandle("descriptorPool"))
	f.pools[pool] = &fakePool{
		maxSets:   maxSets,
		flags:     flags,
		allocated: make(map[vk.DescriptorSet]struct{}),
	}
	return pool, nil
}

func (f *FakeDevice) DestroyDescriptorPool(pool vk.DescriptorPool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("DestroyDescriptorPool")
	if p, ok := f.pools[pool]; ok {
		for set := range p.allocated {
			delete(f.live, unsafe.Pointer(set))
		}
	}
	f.release(unsafe.Pointer(pool), "descriptorPool")
	delete(f.pools, pool)
}

func (f *FakeDevice) AllocateDescriptorSet(pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, vk.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("AllocateDescriptorSet")
	p, ok := f.pools[pool]
	if !ok {
		f.violate("allocating from unknown pool")
		return nil, vk.ErrorUnknown
	}
	if _, ok := f.layouts[layout]; !ok {
		f.violate("allocating with unknown layout")
		return nil, vk.ErrorUnknown
	}
	if uint32(len(p.allocated)) >= p.maxSets {
		return nil, vk.ErrorOutOfPoolMemory
	}
	set := vk.DescriptorSet(f.newHandle("descriptorSet"))
	p.allocated[set] = struct{}{}
	return set, vk.Success
}

func (f *FakeDevice) FreeDescriptorSets(pool vk.DescriptorPool, sets []vk.DescriptorSet) vk.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("FreeDescriptorSets")
	p, ok := f.pools[pool]
	if !ok {
		f.violate("freeing into unknown pool")
		return vk.ErrorUnknown
	}
	if p.flags&vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit) == 0 {
		f.violate("freeing sets from a pool created without the free descriptor set flag")
	}
	for _, set := range sets {
		if _, ok := p.allocated[set]; !ok {
			f.violate("freeing a set the pool does not own")
			continue
		}
		delete(p.allocated, set)
		f.release(unsafe.Pointer(set), "descriptorSet")
	}
	return vk.Success
}

func (f *FakeDevice) ResetDescriptorPool(pool vk.DescriptorPool) vk.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("ResetDescriptorPool")
	p, ok := f.pools[pool]
	if !ok {
		f.violate("resetting unknown pool")
		return vk.ErrorUnknown
	}
	for set := range p.allocated {
		f.release(unsafe.Pointer(set), "descriptorSet")
	}
	p.allocated = make(map[vk.DescriptorSet]struct{})
	return vk.Success
}

func (f *FakeDevice) UpdateDescriptorSets(writes []vk.WriteDescriptorSet) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("UpdateDescriptorSets")
	for _, w := range writes {
		if kind, ok := f.live[unsafe.Pointer(w.DstSet)]; !ok || kind != "descriptorSet" {
			f.violate("writing to a descriptor set that is not allocated")
		}
		f.writes = append(f.writes, w)
	}
}

// presentation

func (f *FakeDevice) Surface() vk.Surface {
	return f.surface
}

func (f *FakeDevice) SwapchainSupport() (vulkan.SwapchainSupportInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("SwapchainSupport")
	return vulkan.SwapchainSupportInfo{
		Capabilities: f.Capabilities,
		Formats:      append([]vk.SurfaceFormat(nil), f.SurfaceFormats...),
		PresentModes: append([]vk.PresentMode(nil), f.PresentModes...),
	}, nil
}

func (f *FakeDevice) QueueFamilies() vulkan.QueueFamilyIndices {
	return f.Families
}

func (f *FakeDevice) FindSupportedFormat(candidates []vk.Format, tiling vk.ImageTiling, features vk.FormatFeatureFlags) (vk.Format, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("FindSupportedFormat")
	for _, c := range candidates {
		if c == f.DepthFormat {
			return c, nil
		}
	}
	return vk.FormatUndefined, core.ErrNoSuitableFormat
}

func (f *FakeDevice) CreateSwapchain(info *vk.SwapchainCreateInfo) (vk.Swapchain, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("CreateSwapchain")
	if info.Surface != f.surface {
		f.violate("creating swap chain for unknown surface")
	}
	handle := vk.Swapchain(f.newHandle("swapchain"))
	rec := &SwapchainRecord{
		Handle:        handle,
		OldSwapchain:  info.OldSwapchain,
		Extent:        info.ImageExtent,
		MinImageCount: info.MinImageCount,
		Format:        info.ImageFormat,
		PresentMode:   info.PresentMode,
		SharingMode:   info.ImageSharingMode,
	}
	f.swapchains[handle] = rec
	f.swapchainLog = append(f.swapchainLog, *rec)
	f.nextImage = 0
	return handle, nil
}

func (f *FakeDevice) DestroySwapchain(swapchain vk.Swapchain) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("DestroySwapchain")
	f.release(unsafe.Pointer(swapchain), "swapchain")
	delete(f.swapchains, swapchain)
}

func (f *FakeDevice) GetSwapchainImages(swapchain vk.Swapchain) ([]vk.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("GetSwapchainImages")
	rec, ok := f.swapchains[swapchain]
	if !ok {
		return nil, errors.New("unknown swap chain")
	}
	// Images belong to the swap chain and are not tracked as live objects.
	images := make([]vk.Image, rec.MinImageCount)
	for i := range images {
		images[i] = vk.Image(unsafe.Pointer(new(byte)))
	}
	return images, nil
}

func (f *FakeDevice) CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("CreateImageView")
	return vk.ImageView(f.newHandle("imageView")), nil
}

func (f *FakeDevice) DestroyImageView(view vk.ImageView) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("DestroyImageView")
	f.release(unsafe.Pointer(view), "imageView")
}

func (f *FakeDevice) CreateImageWithInfo(info *vk.ImageCreateInfo, properties vk.MemoryPropertyFlags) (vk.Image, vk.DeviceMemory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("CreateImageWithInfo")
	image := vk.Image(f.newHandle("image"))
	memory := vk.DeviceMemory(f.newHandle("memory"))
	f.memory[memory] = nil
	return image, memory, nil
}

func (f *FakeDevice) DestroyImage(image vk.Image) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("DestroyImage")
	f.release(unsafe.Pointer(image), "image")
}

func (f *FakeDevice) CreateRenderPass(info *vk.RenderPassCreateInfo) (vk.RenderPass, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("CreateRenderPass")
	return vk.RenderPass(f.newHandle("renderPass")), nil
}

func (f *FakeDevice) DestroyRenderPass(renderPass vk.RenderPass) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("DestroyRenderPass")
	f.release(unsafe.Pointer(renderPass), "renderPass")
}

func (f *FakeDevice) CreateFramebuffer(info *vk.FramebufferCreateInfo) (vk.Framebuffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("CreateFramebuffer")
	if info.AttachmentCount != uint32(len(info.PAttachments)) {
		f.violate("framebuffer attachment count %d does not match %d attachments", info.AttachmentCount, len(info.PAttachments))
	}
	return vk.Framebuffer(f.newHandle("framebuffer")), nil
}

func (f *FakeDevice) DestroyFramebuffer(framebuffer vk.Framebuffer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("DestroyFramebuffer")
	f.release(unsafe.Pointer(framebuffer), "framebuffer")
}

func (f *FakeDevice) CreateSemaphore() (vk.Semaphore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("CreateSemaphore")
	return vk.Semaphore(f.newHandle("semaphore")), nil
}

func (f *FakeDevice) DestroySemaphore(semaphore vk.Semaphore) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("DestroySemaphore")
	f.release(unsafe.Pointer(semaphore), "semaphore")
}

func (f *FakeDevice) CreateFence(signaled bool) (vk.Fence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("CreateFence")
	fence := vk.Fence(f.newHandle("fence"))
	f.fences[fence] = signaled
	f.fenceOrder = append(f.fenceOrder, fence)
	return fence, nil
}

func (f *FakeDevice) DestroyFence(fence vk.Fence) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("DestroyFence")
	f.release(unsafe.Pointer(fence), "fence")
	delete(f.fences, fence)
}

// WaitForFences blocks until every fence is signaled. The timeout is ignored.
func (f *FakeDevice) WaitForFences(fences []vk.Fence, timeout uint64) vk.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("WaitForFences")

	f.waiters++
	defer func() { f.waiters-- }()
	for {
		all := true
		for _, fence := range fences {
			if _, ok := f.fences[fence]; !ok {
				f.violate("waiting on unknown fence")
				return vk.ErrorDeviceLost
			}
			if !f.fences[fence] {
				all = false
				break
			}
		}
		if all {
			return vk.Success
		}
		f.cond.Wait()
	}
}

func (f *FakeDevice) ResetFences(fences []vk.Fence) vk.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("ResetFences")
	for _, fence := range fences {
		f.fences[fence] = false
	}
	return vk.Success
}

func (f *FakeDevice) AcquireNextImage(swapchain vk.Swapchain, timeout uint64, semaphore vk.Semaphore) (uint32, vk.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("AcquireNextImage")

	rec, ok := f.swapchains[swapchain]
	if !ok {
		f.violate("acquiring from unknown swap chain")
		return 0, vk.ErrorSurfaceLost
	}
	res := vk.Success
	if len(f.acquireResults) > 0 {
		res = f.acquireResults[0]
		f.acquireResults = f.acquireResults[1:]
	}
	if res != vk.Success && res != vk.Suboptimal {
		return 0, res
	}
	var index uint32
	if len(f.acquireIndices) > 0 {
		index = f.acquireIndices[0]
		f.acquireIndices = f.acquireIndices[1:]
	} else {
		index = f.nextImage
		f.nextImage = (f.nextImage + 1) % rec.MinImageCount
	}
	return index, res
}

func (f *FakeDevice) QueueSubmit(submit vk.SubmitInfo, fence vk.Fence) vk.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("QueueSubmit")

	rec := SubmitRecord{Fence: fence}
	if len(submit.PCommandBuffers) > 0 {
		rec.CommandBuffer = submit.PCommandBuffers[0]
		if f.recording[rec.CommandBuffer] {
			f.violate("submitting a command buffer that is still recording")
		}
	}
	if len(submit.PWaitSemaphores) > 0 {
		rec.WaitSemaphore = submit.PWaitSemaphores[0]
	}
	if len(submit.PSignalSemaphores) > 0 {
		rec.SignalSemaphore = submit.PSignalSemaphores[0]
	}
	if fence != nil {
		if f.fences[fence] {
			f.violate("submitting with a fence that is already signaled")
		}
		if !f.ManualFences {
			f.fences[fence] = true
			f.cond.Broadcast()
		}
	}
	f.submits = append(f.submits, rec)
	return vk.Success
}

func (f *FakeDevice) QueuePresent(info *vk.PresentInfo) vk.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("QueuePresent")

	rec := PresentRecord{}
	if len(info.PSwapchains) > 0 {
		rec.Swapchain = info.PSwapchains[0]
	}
	if len(info.PImageIndices) > 0 {
		rec.ImageIndex = info.PImageIndices[0]
	}
	if len(info.PWaitSemaphores) > 0 {
		rec.WaitSemaphore = info.PWaitSemaphores[0]
	}
	f.presents = append(f.presents, rec)

	if len(f.presentResults) > 0 {
		res := f.presentResults[0]
		f.presentResults = f.presentResults[1:]
		return res
	}
	return vk.Success
}

func (f *FakeDevice) WaitIdle() vk.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("WaitIdle")
	f.waitIdleCalls++
	return vk.Success
}

// commands

func (f *FakeDevice) AllocateCommandBuffers(count uint32) ([]vk.CommandBuffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("AllocateCommandBuffers")
	buffers := make([]vk.CommandBuffer, count)
	for i := range buffers {
		buffers[i] = vk.CommandBuffer(f.newHandle("commandBuffer"))
	}
	return buffers, nil
}

func (f *FakeDevice) FreeCommandBuffers(buffers []vk.CommandBuffer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("FreeCommandBuffers")
	for _, cb := range buffers {
		f.release(unsafe.Pointer(cb), "commandBuffer")
		delete(f.recording, cb)
	}
}

func (f *FakeDevice) BeginCommandBuffer(cb vk.CommandBuffer, flags vk.CommandBufferUsageFlags) vk.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("BeginCommandBuffer")
	if f.recording[cb] {
		f.violate("beginning a command buffer that is already recording")
	}
	f.recording[cb] = true
	return vk.Success
}

func (f *FakeDevice) EndCommandBuffer(cb vk.CommandBuffer) vk.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("EndCommandBuffer")
	if !f.recording[cb] {
		f.violate("ending a command buffer that is not recording")
	}
	f.recording[cb] = false
	return vk.Success
}

func (f *FakeDevice) record(cb vk.CommandBuffer, name string) {
	f.call(name)
	if !f.recording[cb] {
		f.violate("%s outside of recording", name)
	}
}

func (f *FakeDevice) CmdBeginRenderPass(cb vk.CommandBuffer, info *vk.RenderPassBeginInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(cb, "CmdBeginRenderPass")
	f.renderPasses = append(f.renderPasses, RenderPassBeginRecord{
		CommandBuffer: cb,
		Framebuffer:   info.Framebuffer,
		Extent:        info.RenderArea.Extent,
		ClearValues:   append([]vk.ClearValue(nil), info.PClearValues...),
	})
}

func (f *FakeDevice) CmdEndRenderPass(cb vk.CommandBuffer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(cb, "CmdEndRenderPass")
}

func (f *FakeDevice) CmdSetViewport(cb vk.CommandBuffer, viewport vk.Viewport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(cb, "CmdSetViewport")
	f.viewports = append(f.viewports, viewport)
}

func (f *FakeDevice) CmdSetScissor(cb vk.CommandBuffer, scissor vk.Rect2D) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(cb, "CmdSetScissor")
	f.scissors = append(f.scissors, scissor)
}

func (f *FakeDevice) CmdBindPipeline(cb vk.CommandBuffer, bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(cb, "CmdBindPipeline")
}

func (f *FakeDevice) CmdBindDescriptorSets(cb vk.CommandBuffer, bindPoint vk.PipelineBindPoint, layout vk.PipelineLayout, firstSet uint32, sets []vk.DescriptorSet) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(cb, "CmdBindDescriptorSets")
}

func (f *FakeDevice) CmdPushConstants(cb vk.CommandBuffer, layout vk.PipelineLayout, stages vk.ShaderStageFlags, offset uint32, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(cb, "CmdPushConstants")
	f.pushConstants = append(f.pushConstants, PushConstantRecord{
		Layout: layout,
		Stages: stages,
		Offset: offset,
		Data:   append([]byte(nil), data...),
	})
}

func (f *FakeDevice) CmdBindVertexBuffers(cb vk.CommandBuffer, buffers []vk.Buffer, offsets []vk.DeviceSize) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(cb, "CmdBindVertexBuffers")
}

func (f *FakeDevice) CmdBindIndexBuffer(cb vk.CommandBuffer, buffer vk.Buffer, offset vk.DeviceSize) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(cb, "CmdBindIndexBuffer")
}

func (f *FakeDevice) CmdDraw(cb vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(cb, "CmdDraw")
	f.draws = append(f.draws, DrawRecord{CommandBuffer: cb, Count: vertexCount, InstanceCount: instanceCount})
}

func (f *FakeDevice) CmdDrawIndexed(cb vk.CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(cb, "CmdDrawIndexed")
	f.draws = append(f.draws, DrawRecord{CommandBuffer: cb, Count: indexCount, InstanceCount: instanceCount, Indexed: true})
}

// pipelines

func (f *FakeDevice) CreateShaderModule(code []uint32) (vk.ShaderModule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("CreateShaderModule")
	if len(code) == 0 {
		return nil, errors.New("empty shader code")
	}
	return vk.ShaderModule(f.newHandle("shaderModule")), nil
}

func (f *FakeDevice) DestroyShaderModule(module vk.ShaderModule) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("DestroyShaderModule")
	f.release(unsafe.Pointer(module), "shaderModule")
}

func (f *FakeDevice) CreatePipelineLayout(info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("CreatePipelineLayout")
	return vk.PipelineLayout(f.newHandle("pipelineLayout")), nil
}

func (f *FakeDevice) DestroyPipelineLayout(layout vk.PipelineLayout) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("DestroyPipelineLayout")
	f.release(unsafe.Pointer(layout), "pipelineLayout")
}

func (f *FakeDevice) CreateGraphicsPipeline(info *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("CreateGraphicsPipeline")
	handle := vk.Pipeline(f.newHandle("pipeline"))
	rec := PipelineRecord{
		Handle:     handle,
		Layout:     info.Layout,
		RenderPass: info.RenderPass,
		Stages:     info.StageCount,
	}
	if info.PColorBlendState != nil && len(info.PColorBlendState.PAttachments) > 0 {
		rec.BlendEnable = info.PColorBlendState.PAttachments[0].BlendEnable == vk.True
	}
	if info.PVertexInputState != nil {
		rec.VertexBindings = info.PVertexInputState.VertexBindingDescriptionCount
		rec.VertexAttributes = info.PVertexInputState.VertexAttributeDescriptionCount
	}
	f.pipelines = append(f.pipelines, rec)
	return handle, nil
}

func (f *FakeDevice) DestroyPipeline(pipeline vk.Pipeline) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.call("DestroyPipeline")
	f.release(unsafe.Pointer(pipeline), "pipeline")
}
