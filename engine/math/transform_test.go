package math

import (
	stdmath "math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestTransformIdentity(t *testing.T) {
	tr := NewTransform()
	assert.Equal(t, mgl32.Ident4(), tr.Mat4())
	assert.Equal(t, mgl32.Ident4(), tr.NormalMatrix())
}

func TestTransformMatchesComposition(t *testing.T) {
	tr := NewTransform()
	tr.Translation = mgl32.Vec3{1, -2, 3}
	tr.Scale = mgl32.Vec3{2, 0.5, 3}
	tr.Rotation = mgl32.Vec3{0.3, -1.1, 2.2}

	want := mgl32.Translate3D(1, -2, 3).
		Mul4(mgl32.HomogRotate3DY(-1.1)).
		Mul4(mgl32.HomogRotate3DX(0.3)).
		Mul4(mgl32.HomogRotate3DZ(2.2)).
		Mul4(mgl32.Scale3D(2, 0.5, 3))
	got := tr.Mat4()
	assert.InDeltaSlice(t, want[:], got[:], 1e-5)

	normal := tr.Mat4().Mat3().Inv().Transpose()
	gotNormal := tr.NormalMatrix().Mat3()
	assert.InDeltaSlice(t, normal[:], gotNormal[:], 1e-5)
}

func TestTransformRotateY(t *testing.T) {
	tr := NewTransform()
	tr.Rotate(mgl32.Vec3{0, stdmath.Pi / 2, 0})
	v := tr.Mat4().Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	assert.InDeltaSlice(t, []float32{0, 0, -1, 1}, v[:], 1e-6)

	tr.Translate(mgl32.Vec3{0, 0, 5})
	v = tr.Mat4().Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	assert.InDeltaSlice(t, []float32{0, 0, 4, 1}, v[:], 1e-6)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, float32(1.5), Clamp(float32(2), -1.5, 1.5))
	assert.Equal(t, float32(-1.5), Clamp(float32(-2), -1.5, 1.5))
	assert.Equal(t, 3, Clamp(3, 0, 10))
}

func TestWrapAngle(t *testing.T) {
	assert.InDelta(t, 0.5, WrapAngle(0.5), 1e-6)
	assert.InDelta(t, 0.5, WrapAngle(0.5+TwoPi), 1e-5)
	assert.InDelta(t, TwoPi-0.5, WrapAngle(-0.5), 1e-5)
	assert.InDelta(t, 0, WrapAngle(0), 1e-6)
}
