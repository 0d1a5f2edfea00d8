package scene

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityMapReusesIDs(t *testing.T) {
	m := NewEntityMap()
	a := m.Add(NewEntity())
	b := m.Add(NewEntity())
	c := m.Add(NewPointLight(1, 0.1, mgl32.Vec3{1, 0, 0}))
	assert.Equal(t, []EntityID{0, 1, 2}, []EntityID{a, b, c})
	assert.Equal(t, 3, m.Len())

	require.True(t, m.Remove(b))
	assert.False(t, m.Remove(b))
	_, ok := m.Get(b)
	assert.False(t, ok)

	d := m.Add(NewEntity())
	assert.Equal(t, b, d)

	all := m.All()
	require.Len(t, all, 3)
	for i, e := range all {
		assert.Equal(t, EntityID(i), e.ID)
	}
}

func TestPointLightEntity(t *testing.T) {
	e := NewPointLight(0.2, 0.05, mgl32.Vec3{0, 1, 0})
	require.NotNil(t, e.PointLight)
	assert.Nil(t, e.Model)
	assert.Equal(t, float32(0.2), e.PointLight.LightIntensity)
	assert.Equal(t, float32(0.05), e.Transform.Scale.X())
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, e.Color)
}
