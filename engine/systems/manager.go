package systems

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vulkan3d/engine/renderer"
)

// Manager runs its render systems in registration order.
type Manager struct {
	systems []RenderSystem
}

// NewManager initializes every system against the global set layout and render pass. On
// failure the systems that were already initialized are destroyed.
func NewManager(globalSetLayout vk.DescriptorSetLayout, renderPass vk.RenderPass, systems ...RenderSystem) (*Manager, error) {
	m := &Manager{}
	for _, rs := range systems {
		if err := InitRenderSystem(rs, globalSetLayout, renderPass); err != nil {
			m.Destroy()
			return nil, err
		}
		m.systems = append(m.systems, rs)
	}
	return m, nil
}

func (m *Manager) Update(frame *renderer.FrameData, ubo *renderer.GlobalUbo) error {
	for _, rs := range m.systems {
		if err := rs.Update(frame, ubo); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) Render(frame *renderer.FrameData) {
	for _, rs := range m.systems {
		rs.Render(frame)
	}
}

// Destroy tears the systems down in reverse order.
func (m *Manager) Destroy() {
	for i := len(m.systems) - 1; i >= 0; i-- {
		m.systems[i].Destroy()
	}
	m.systems = nil
}

func (m *Manager) Len() int {
	return len(m.systems)
}
