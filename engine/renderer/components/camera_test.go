package components

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

// assertIdentity checks that the view and inverse view matrices cancel out.
func assertIdentity(t *testing.T, c *Camera) {
	t.Helper()
	ident := mgl32.Ident4()
	product := c.View().Mul4(c.InverseView())
	assert.InDeltaSlice(t, ident[:], product[:], 1e-5)
}

func TestCameraViewInverse(t *testing.T) {
	c := NewCamera()
	position := mgl32.Vec3{1, -2, -2.5}
	c.SetViewYXZ(position, mgl32.Vec3{0.2, 1.3, -0.4})

	assertIdentity(t, c)
	got := c.Position()
	assert.InDeltaSlice(t, position[:], got[:], 1e-6)

	// The camera position lands on the view space origin.
	origin := c.View().Mul4x1(position.Vec4(1))
	assert.InDeltaSlice(t, []float32{0, 0, 0, 1}, origin[:], 1e-5)
}

func TestCameraViewTarget(t *testing.T) {
	c := NewCamera()
	c.SetViewTarget(mgl32.Vec3{0, 0, -5}, mgl32.Vec3{0, 0, 0}, DefaultUp)

	// The target is straight ahead on +Z in view space.
	p := c.View().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.InDeltaSlice(t, []float32{0, 0, 5, 1}, p[:], 1e-5)
	assertIdentity(t, c)
}

func TestCameraPerspectiveDepthRange(t *testing.T) {
	c := NewCamera()
	c.SetPerspectiveProjection(mgl32.DegToRad(DefaultFovY), 4.0/3.0, DefaultNear, DefaultFar)

	project := func(z float32) float32 {
		clip := c.Projection().Mul4x1(mgl32.Vec4{0, 0, z, 1})
		return clip.Z() / clip.W()
	}
	assert.InDelta(t, 0, project(DefaultNear), 1e-5)
	assert.InDelta(t, 1, project(DefaultFar), 1e-5)
	mid := project(10)
	assert.Greater(t, mid, float32(0))
	assert.Less(t, mid, float32(1))
}

func TestCameraOrthographic(t *testing.T) {
	c := NewCamera()
	c.SetOrthographicProjection(-2, 2, -1, 1, 0, 10)

	p := c.Projection().Mul4x1(mgl32.Vec4{2, 1, 10, 1})
	assert.InDeltaSlice(t, []float32{1, 1, 1, 1}, p[:], 1e-6)
	p = c.Projection().Mul4x1(mgl32.Vec4{-2, -1, 0, 1})
	assert.InDeltaSlice(t, []float32{-1, -1, 0, 1}, p[:], 1e-6)
}

func TestCameraReset(t *testing.T) {
	c := NewCamera()
	c.SetViewYXZ(mgl32.Vec3{1, 2, 3}, mgl32.Vec3{})
	c.Reset()
	assert.Equal(t, mgl32.Ident4(), c.View())
	assert.Equal(t, mgl32.Vec3{}, c.Position())
}
