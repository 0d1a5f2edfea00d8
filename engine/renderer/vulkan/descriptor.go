package vulkan

import (
	"maps"
	"slices"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vulkan3d/engine/core"
)

// DescriptorSetLayoutBuilder collects bindings keyed by binding index.
type DescriptorSetLayoutBuilder struct {
	device   DescriptorDevice
	bindings map[uint32]vk.DescriptorSetLayoutBinding
	err      error
}

func NewDescriptorSetLayoutBuilder(device DescriptorDevice) *DescriptorSetLayoutBuilder {
	return &DescriptorSetLayoutBuilder{
		device:   device,
		bindings: make(map[uint32]vk.DescriptorSetLayoutBinding),
	}
}

// AddBinding registers a binding. Registering the same index twice makes Build fail.
func (b *DescriptorSetLayoutBuilder) AddBinding(binding uint32, descriptorType vk.DescriptorType, stageFlags vk.ShaderStageFlags, count uint32) *DescriptorSetLayoutBuilder {
	if _, ok := b.bindings[binding]; ok {
		if b.err == nil {
			b.err = core.ContractViolation(core.ErrDuplicateBinding, "binding %d", binding)
		}
		return b
	}
	b.bindings[binding] = vk.DescriptorSetLayoutBinding{
		Binding:         binding,
		DescriptorType:  descriptorType,
		DescriptorCount: count,
		StageFlags:      stageFlags,
	}
	return b
}

func (b *DescriptorSetLayoutBuilder) Build() (*DescriptorSetLayout, error) {
	if b.err != nil {
		return nil, b.err
	}

	bindings := make([]vk.DescriptorSetLayoutBinding, 0, len(b.bindings))
	for _, index := range slices.Sorted(maps.Keys(b.bindings)) {
		bindings = append(bindings, b.bindings[index])
	}
	handle, err := b.device.CreateDescriptorSetLayout(bindings)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	return &DescriptorSetLayout{
		device:   b.device,
		handle:   handle,
		bindings: maps.Clone(b.bindings),
	}, nil
}

// DescriptorSetLayout is immutable after creation.
type DescriptorSetLayout struct {
	device   DescriptorDevice
	handle   vk.DescriptorSetLayout
	bindings map[uint32]vk.DescriptorSetLayoutBinding
}

func (l *DescriptorSetLayout) Handle() vk.DescriptorSetLayout {
	return l.handle
}

func (l *DescriptorSetLayout) Binding(binding uint32) (vk.DescriptorSetLayoutBinding, bool) {
	b, ok := l.bindings[binding]
	return b, ok
}

func (l *DescriptorSetLayout) Destroy() {
	if l.handle != nil {
		l.device.DestroyDescriptorSetLayout(l.handle)
		l.handle = nil
	}
}

type DescriptorPoolBuilder struct {
	device    DescriptorDevice
	poolSizes []vk.DescriptorPoolSize
	maxSets   uint32
	flags     vk.DescriptorPoolCreateFlags
}

func NewDescriptorPoolBuilder(device DescriptorDevice) *DescriptorPoolBuilder {
	return &DescriptorPoolBuilder{
		device:  device,
		maxSets: DefaultDescriptorPoolMaxSets,
	}
}

func (b *DescriptorPoolBuilder) AddPoolSize(descriptorType vk.DescriptorType, count uint32) *DescriptorPoolBuilder {
	b.poolSizes = append(b.poolSizes, vk.DescriptorPoolSize{
		Type:            descriptorType,
		DescriptorCount: count,
	})
	return b
}

func (b *DescriptorPoolBuilder) SetPoolFlags(flags vk.DescriptorPoolCreateFlags) *DescriptorPoolBuilder {
	b.flags = flags
	return b
}

func (b *DescriptorPoolBuilder) SetMaxSets(count uint32) *DescriptorPoolBuilder {
	b.maxSets = count
	return b
}

func (b *DescriptorPoolBuilder) Build() (*DescriptorPool, error) {
	handle, err := b.device.CreateDescriptorPool(b.maxSets, b.poolSizes, b.flags)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	return &DescriptorPool{
		device:  b.device,
		handle:  handle,
		maxSets: b.maxSets,
		flags:   b.flags,
	}, nil
}

// DescriptorPool has a fixed capacity. Running out is reported, not fatal.
type DescriptorPool struct {
	device  DescriptorDevice
	handle  vk.DescriptorPool
	maxSets uint32
	flags   vk.DescriptorPoolCreateFlags
}

func (p *DescriptorPool) Handle() vk.DescriptorPool {
	return p.handle
}

func (p *DescriptorPool) MaxSets() uint32 {
	return p.maxSets
}

// AllocateDescriptorSet allocates one set with the given layout. It reports false when
// the pool is exhausted or fragmented.
func (p *DescriptorPool) AllocateDescriptorSet(layout *DescriptorSetLayout) (vk.DescriptorSet, bool) {
	set, res := p.device.AllocateDescriptorSet(p.handle, layout.Handle())
	if res != vk.Success {
		core.LogDebug("descriptor set allocation failed: %s", VulkanResultString(res, false))
		return nil, false
	}
	return set, true
}

// FreeDescriptors returns sets to the pool. The pool must have been built with
// DescriptorPoolCreateFreeDescriptorSetBit.
func (p *DescriptorPool) FreeDescriptors(sets []vk.DescriptorSet) error {
	if len(sets) == 0 {
		return nil
	}
	if res := p.device.FreeDescriptorSets(p.handle, sets); res != vk.Success {
		return errors.Newf("failed to free descriptor sets: %s", VulkanResultString(res, true))
	}
	return nil
}

// ResetPool returns every set to the pool. Sets allocated before are invalid afterwards.
func (p *DescriptorPool) ResetPool() error {
	if res := p.device.ResetDescriptorPool(p.handle); res != vk.Success {
		return errors.Newf("failed to reset descriptor pool: %s", VulkanResultString(res, true))
	}
	return nil
}

func (p *DescriptorPool) Destroy() {
	if p.handle != nil {
		p.device.DestroyDescriptorPool(p.handle)
		p.handle = nil
	}
}

// DescriptorWriter accumulates writes for one set. Bindings are checked against the layout
// as they are added, the first bad write fails Build and Overwrite before any device call.
type DescriptorWriter struct {
	layout *DescriptorSetLayout
	pool   *DescriptorPool
	writes []vk.WriteDescriptorSet
	err    error
}

func NewDescriptorWriter(layout *DescriptorSetLayout, pool *DescriptorPool) *DescriptorWriter {
	return &DescriptorWriter{
		layout: layout,
		pool:   pool,
	}
}

func (w *DescriptorWriter) singleDescriptorBinding(binding uint32) (vk.DescriptorSetLayoutBinding, bool) {
	desc, ok := w.layout.Binding(binding)
	if !ok {
		if w.err == nil {
			w.err = core.ContractViolation(core.ErrUnknownBinding, "binding %d", binding)
		}
		return desc, false
	}
	if desc.DescriptorCount != 1 {
		if w.err == nil {
			w.err = core.ContractViolation(core.ErrMultiDescriptorBinding, "binding %d has %d descriptors", binding, desc.DescriptorCount)
		}
		return desc, false
	}
	return desc, true
}

func (w *DescriptorWriter) WriteBuffer(binding uint32, info vk.DescriptorBufferInfo) *DescriptorWriter {
	desc, ok := w.singleDescriptorBinding(binding)
	if !ok {
		return w
	}
	w.writes = append(w.writes, vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstBinding:      binding,
		DescriptorType:  desc.DescriptorType,
		DescriptorCount: 1,
		PBufferInfo:     []vk.DescriptorBufferInfo{info},
	})
	return w
}

func (w *DescriptorWriter) WriteImage(binding uint32, info vk.DescriptorImageInfo) *DescriptorWriter {
	desc, ok := w.singleDescriptorBinding(binding)
	if !ok {
		return w
	}
	w.writes = append(w.writes, vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstBinding:      binding,
		DescriptorType:  desc.DescriptorType,
		DescriptorCount: 1,
		PImageInfo:      []vk.DescriptorImageInfo{info},
	})
	return w
}

// Build allocates a set from the pool and applies the pending writes to it. An exhausted
// pool yields core.ErrPoolExhausted.
func (w *DescriptorWriter) Build() (vk.DescriptorSet, error) {
	if w.err != nil {
		return nil, w.err
	}
	set, ok := w.pool.AllocateDescriptorSet(w.layout)
	if !ok {
		return nil, errors.Wrapf(core.ErrPoolExhausted, "allocating set for %d writes", len(w.writes))
	}
	if err := w.Overwrite(set); err != nil {
		return nil, err
	}
	return set, nil
}

// Overwrite applies the pending writes to an existing set.
func (w *DescriptorWriter) Overwrite(set vk.DescriptorSet) error {
	if w.err != nil {
		return w.err
	}
	for i := range w.writes {
		w.writes[i].DstSet = set
	}
	w.layout.device.UpdateDescriptorSets(w.writes)
	return nil
}
