package scene

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/vulkan3d/engine/core"
	"github.com/spaghettifunk/vulkan3d/engine/math"
	"github.com/spaghettifunk/vulkan3d/engine/resources"
)

type EntityID uint32

type TransformComponent = math.Transform

type ModelComponent struct {
	Model *resources.Model
}

type PointLightComponent struct {
	LightIntensity float32
}

// Entity is a fixed record of optional components. A nil component means the entity does
// not have it.
type Entity struct {
	ID        EntityID
	Color     mgl32.Vec3
	Transform *TransformComponent

	Model      *ModelComponent
	PointLight *PointLightComponent
}

// NewPointLight creates a light entity. The light radius is stored in the transform scale.
func NewPointLight(intensity, radius float32, color mgl32.Vec3) *Entity {
	transform := math.NewTransform()
	transform.Scale = mgl32.Vec3{radius, radius, radius}
	return &Entity{
		Color:      color,
		Transform:  &transform,
		PointLight: &PointLightComponent{LightIntensity: intensity},
	}
}

func NewEntity() *Entity {
	transform := math.NewTransform()
	return &Entity{
		Color:     mgl32.Vec3{1, 1, 1},
		Transform: &transform,
	}
}

// EntityMap owns the entities of a scene keyed by ID.
type EntityMap struct {
	ids      *core.Identifiers
	entities map[EntityID]*Entity
}

func NewEntityMap() *EntityMap {
	return &EntityMap{
		ids:      core.NewIdentifiers(),
		entities: make(map[EntityID]*Entity),
	}
}

// Add assigns the entity a fresh ID and stores it.
func (m *EntityMap) Add(e *Entity) EntityID {
	e.ID = EntityID(m.ids.Acquire(e))
	m.entities[e.ID] = e
	return e.ID
}

func (m *EntityMap) Get(id EntityID) (*Entity, bool) {
	e, ok := m.entities[id]
	return e, ok
}

func (m *EntityMap) Remove(id EntityID) bool {
	if _, ok := m.entities[id]; !ok {
		return false
	}
	delete(m.entities, id)
	if err := m.ids.Release(uint32(id)); err != nil {
		core.LogWarn(err.Error())
	}
	return true
}

func (m *EntityMap) Len() int {
	return len(m.entities)
}

// All returns the entities ordered by ID.
func (m *EntityMap) All() []*Entity {
	out := make([]*Entity, 0, len(m.entities))
	for _, id := range sortedIDs(m.entities) {
		out = append(out, m.entities[id])
	}
	return out
}
