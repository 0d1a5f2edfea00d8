package systems

import (
	stdmath "math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/vulkan3d/engine/core"
	"github.com/spaghettifunk/vulkan3d/engine/math"
)

const (
	DefaultMoveSpeed float32 = 3.0
	DefaultLookSpeed float32 = 1.5
	// About 85 degrees either way.
	MaxPitch float32 = 1.5
)

type KeyMappings struct {
	MoveLeft     core.KeyCode
	MoveRight    core.KeyCode
	MoveForward  core.KeyCode
	MoveBackward core.KeyCode
	MoveUp       core.KeyCode
	MoveDown     core.KeyCode
	LookLeft     core.KeyCode
	LookRight    core.KeyCode
	LookUp       core.KeyCode
	LookDown     core.KeyCode
}

func DefaultKeyMappings() KeyMappings {
	return KeyMappings{
		MoveLeft:     core.KEY_A,
		MoveRight:    core.KEY_D,
		MoveForward:  core.KEY_W,
		MoveBackward: core.KEY_S,
		MoveUp:       core.KEY_E,
		MoveDown:     core.KEY_Q,
		LookLeft:     core.KEY_LEFT,
		LookRight:    core.KEY_RIGHT,
		LookUp:       core.KEY_UP,
		LookDown:     core.KEY_DOWN,
	}
}

// CameraMovementHandler flies the viewer around the XZ plane with the keyboard.
type CameraMovementHandler struct {
	Keys      KeyMappings
	MoveSpeed float32
	LookSpeed float32
}

func NewCameraMovementHandler() *CameraMovementHandler {
	return &CameraMovementHandler{
		Keys:      DefaultKeyMappings(),
		MoveSpeed: DefaultMoveSpeed,
		LookSpeed: DefaultLookSpeed,
	}
}

// MoveInPlaneXZ turns and moves transform by the keys held down during the last dt seconds.
func (h *CameraMovementHandler) MoveInPlaneXZ(input *core.Input, dt float32, transform *math.Transform) {
	var rotate mgl32.Vec3
	if input.IsKeyDown(h.Keys.LookRight) {
		rotate[1] += 1
	}
	if input.IsKeyDown(h.Keys.LookLeft) {
		rotate[1] -= 1
	}
	if input.IsKeyDown(h.Keys.LookUp) {
		rotate[0] += 1
	}
	if input.IsKeyDown(h.Keys.LookDown) {
		rotate[0] -= 1
	}
	if rotate.Dot(rotate) > mgl32.Epsilon {
		transform.Rotate(rotate.Normalize().Mul(h.LookSpeed * dt))
	}

	transform.Rotation[0] = math.Clamp(transform.Rotation.X(), -MaxPitch, MaxPitch)
	transform.Rotation[1] = math.WrapAngle(transform.Rotation.Y())

	s, c := stdmath.Sincos(float64(transform.Rotation.Y()))
	forward := mgl32.Vec3{float32(s), 0, float32(c)}
	right := mgl32.Vec3{forward.Z(), 0, -forward.X()}
	up := mgl32.Vec3{0, -1, 0}

	var move mgl32.Vec3
	if input.IsKeyDown(h.Keys.MoveForward) {
		move = move.Add(forward)
	}
	if input.IsKeyDown(h.Keys.MoveBackward) {
		move = move.Sub(forward)
	}
	if input.IsKeyDown(h.Keys.MoveRight) {
		move = move.Add(right)
	}
	if input.IsKeyDown(h.Keys.MoveLeft) {
		move = move.Sub(right)
	}
	if input.IsKeyDown(h.Keys.MoveUp) {
		move = move.Add(up)
	}
	if input.IsKeyDown(h.Keys.MoveDown) {
		move = move.Sub(up)
	}
	if move.Dot(move) > mgl32.Epsilon {
		transform.Translate(move.Normalize().Mul(h.MoveSpeed * dt))
	}
}
