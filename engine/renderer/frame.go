package renderer

import (
	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vulkan3d/engine/renderer/components"
	"github.com/spaghettifunk/vulkan3d/engine/renderer/vulkan"
	"github.com/spaghettifunk/vulkan3d/engine/scene"
)

// MaxLights must match the array size declared by the shaders.
const MaxLights = 10

type PointLight struct {
	Position mgl32.Vec4 // w is ignored
	Color    mgl32.Vec4 // w is the intensity
}

// GlobalUbo is the per frame uniform block bound at set 0, binding 0, laid out as std140.
type GlobalUbo struct {
	Projection        mgl32.Mat4
	View              mgl32.Mat4
	InverseView       mgl32.Mat4
	AmbientLightColor mgl32.Vec4 // w is the intensity
	PointLights       [MaxLights]PointLight
	NumLights         int32
	_                 [3]int32
}

func NewGlobalUbo() *GlobalUbo {
	return &GlobalUbo{
		Projection:        mgl32.Ident4(),
		View:              mgl32.Ident4(),
		InverseView:       mgl32.Ident4(),
		AmbientLightColor: mgl32.Vec4{1, 1, 1, 0.02},
	}
}

func (u *GlobalUbo) Encode() ([]byte, error) {
	return vulkan.Encode(u)
}

// FrameData is handed to every render system while a frame is being recorded.
type FrameData struct {
	FrameIndex          int
	FrameTime           float32
	CommandBuffer       vk.CommandBuffer
	Camera              *components.Camera
	GlobalDescriptorSet vk.DescriptorSet
	Entities            *scene.EntityMap
}
