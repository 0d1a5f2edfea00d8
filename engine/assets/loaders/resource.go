package loaders

import "github.com/google/uuid"

type ResourceType int

const (
	ResourceTypeNone ResourceType = iota
	// Compiled SPIR-V shader stage.
	ResourceTypeShader
	// Wavefront OBJ mesh.
	ResourceTypeModel
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeShader:
		return "shader"
	case ResourceTypeModel:
		return "model"
	default:
		return "none"
	}
}

// Resource is what every loader hands back. Data holds []uint32 for shaders and
// *ModelData for models.
type Resource struct {
	ID       uuid.UUID
	Name     string
	FullPath string
	Type     ResourceType
	DataSize uint64
	Data     interface{}
}

func newResource(name, path string, resourceType ResourceType, size uint64, data interface{}) *Resource {
	return &Resource{
		ID:       uuid.New(),
		Name:     name,
		FullPath: path,
		Type:     resourceType,
		DataSize: size,
		Data:     data,
	}
}
