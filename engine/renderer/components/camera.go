package components

import (
	stdmath "math"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	DefaultFovY = 50.0
	DefaultNear = 0.1
	DefaultFar  = 1000.0
)

// DefaultUp points up in Vulkan clip space, where Y grows downward.
var DefaultUp = mgl32.Vec3{0, -1, 0}

/**
 * @brief Represents a camera that can be used for
 * a variety of things, especially rendering.
 * Projections map depth to [0, 1] as Vulkan expects.
 */
type Camera struct {
	projection  mgl32.Mat4
	view        mgl32.Mat4
	inverseView mgl32.Mat4
}

func NewCamera() *Camera {
	camera := &Camera{}
	camera.Reset()
	return camera
}

func (c *Camera) Reset() {
	c.projection = mgl32.Ident4()
	c.view = mgl32.Ident4()
	c.inverseView = mgl32.Ident4()
}

func (c *Camera) SetOrthographicProjection(left, right, top, bottom, near, far float32) {
	c.projection = mgl32.Ident4()
	c.projection.Set(0, 0, 2/(right-left))
	c.projection.Set(1, 1, 2/(bottom-top))
	c.projection.Set(2, 2, 1/(far-near))
	c.projection.Set(0, 3, -(right+left)/(right-left))
	c.projection.Set(1, 3, -(bottom+top)/(bottom-top))
	c.projection.Set(2, 3, -near/(far-near))
}

// SetPerspectiveProjection takes the vertical field of view in radians.
func (c *Camera) SetPerspectiveProjection(fovY, aspect, near, far float32) {
	tanHalfFovY := float32(stdmath.Tan(float64(fovY) / 2))
	c.projection = mgl32.Mat4{}
	c.projection.Set(0, 0, 1/(aspect*tanHalfFovY))
	c.projection.Set(1, 1, 1/tanHalfFovY)
	c.projection.Set(2, 2, far/(far-near))
	c.projection.Set(3, 2, 1)
	c.projection.Set(2, 3, -(far*near)/(far-near))
}

// setBasis fills view and inverse view from an orthonormal camera basis.
func (c *Camera) setBasis(position, u, v, w mgl32.Vec3) {
	c.view = mgl32.Mat4{
		u.X(), v.X(), w.X(), 0,
		u.Y(), v.Y(), w.Y(), 0,
		u.Z(), v.Z(), w.Z(), 0,
		-u.Dot(position), -v.Dot(position), -w.Dot(position), 1,
	}
	c.inverseView = mgl32.Mat4{
		u.X(), u.Y(), u.Z(), 0,
		v.X(), v.Y(), v.Z(), 0,
		w.X(), w.Y(), w.Z(), 0,
		position.X(), position.Y(), position.Z(), 1,
	}
}

// SetViewDirection looks from position along direction. Direction and up must not be parallel.
func (c *Camera) SetViewDirection(position, direction, up mgl32.Vec3) {
	w := direction.Normalize()
	u := w.Cross(up).Normalize()
	v := w.Cross(u)
	c.setBasis(position, u, v, w)
}

func (c *Camera) SetViewTarget(position, target, up mgl32.Vec3) {
	c.SetViewDirection(position, target.Sub(position), up)
}

// SetViewYXZ orients the camera with Tait-Bryan angles in radians, applied in Y, X, Z order.
func (c *Camera) SetViewYXZ(position, rotation mgl32.Vec3) {
	c3, s3 := cosSin(rotation.Z())
	c2, s2 := cosSin(rotation.X())
	c1, s1 := cosSin(rotation.Y())
	u := mgl32.Vec3{c1*c3 + s1*s2*s3, c2 * s3, c1*s2*s3 - c3*s1}
	v := mgl32.Vec3{c3*s1*s2 - c1*s3, c2 * c3, c1*c3*s2 + s1*s3}
	w := mgl32.Vec3{c2 * s1, -s2, c1 * c2}
	c.setBasis(position, u, v, w)
}

func (c *Camera) Projection() mgl32.Mat4 {
	return c.projection
}

func (c *Camera) View() mgl32.Mat4 {
	return c.view
}

func (c *Camera) InverseView() mgl32.Mat4 {
	return c.inverseView
}

func (c *Camera) Position() mgl32.Vec3 {
	return c.inverseView.Col(3).Vec3()
}

func cosSin(angle float32) (float32, float32) {
	s, co := stdmath.Sincos(float64(angle))
	return float32(co), float32(s)
}
