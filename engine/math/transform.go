package math

import (
	stdmath "math"

	"github.com/go-gl/mathgl/mgl32"
)

// Transform places an object in the world. Rotation holds Tait-Bryan angles in radians,
// applied in Y, X, Z order.
type Transform struct {
	Translation mgl32.Vec3
	Scale       mgl32.Vec3
	Rotation    mgl32.Vec3
}

func NewTransform() Transform {
	return Transform{Scale: mgl32.Vec3{1, 1, 1}}
}

func TransformFromTranslation(translation mgl32.Vec3) Transform {
	t := NewTransform()
	t.Translation = translation
	return t
}

func (t *Transform) Translate(translation mgl32.Vec3) {
	t.Translation = t.Translation.Add(translation)
}

func (t *Transform) Rotate(rotation mgl32.Vec3) {
	t.Rotation = t.Rotation.Add(rotation)
}

// angles returns the sines and cosines of the three rotations: 1 is Y, 2 is X, 3 is Z.
func (t *Transform) angles() (c1, s1, c2, s2, c3, s3 float32) {
	c3, s3 = cosSin(t.Rotation.Z())
	c2, s2 = cosSin(t.Rotation.X())
	c1, s1 = cosSin(t.Rotation.Y())
	return
}

// Mat4 returns translate * Ry * Rx * Rz * scale.
func (t *Transform) Mat4() mgl32.Mat4 {
	c1, s1, c2, s2, c3, s3 := t.angles()
	sx, sy, sz := t.Scale.Elem()
	tx, ty, tz := t.Translation.Elem()
	return mgl32.Mat4{
		sx * (c1*c3 + s1*s2*s3), sx * (c2 * s3), sx * (c1*s2*s3 - c3*s1), 0,
		sy * (c3*s1*s2 - c1*s3), sy * (c2 * c3), sy * (c1*c3*s2 + s1*s3), 0,
		sz * (c2 * s1), sz * (-s2), sz * (c1 * c2), 0,
		tx, ty, tz, 1,
	}
}

// NormalMatrix is the inverse transpose of the upper 3x3 of Mat4, widened to a Mat4 so it
// can travel in push constants with std430 alignment.
func (t *Transform) NormalMatrix() mgl32.Mat4 {
	c1, s1, c2, s2, c3, s3 := t.angles()
	ix, iy, iz := 1/t.Scale.X(), 1/t.Scale.Y(), 1/t.Scale.Z()
	return mgl32.Mat3{
		ix * (c1*c3 + s1*s2*s3), ix * (c2 * s3), ix * (c1*s2*s3 - c3*s1),
		iy * (c3*s1*s2 - c1*s3), iy * (c2 * c3), iy * (c1*c3*s2 + s1*s3),
		iz * (c2 * s1), iz * (-s2), iz * (c1 * c2),
	}.Mat4()
}

func cosSin(angle float32) (float32, float32) {
	s, c := stdmath.Sincos(float64(angle))
	return float32(c), float32(s)
}
