package loaders

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/vulkan3d/engine/renderer/vulkan"
)

type ShaderLoader struct{}

// Load reads a SPIR-V binary and returns it as words ready for shader module creation.
func (sl *ShaderLoader) Load(path, name string) (*Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading shader %q", path)
	}
	code, err := vulkan.SPIRVWords(data)
	if err != nil {
		return nil, errors.Wrapf(err, "shader %q", path)
	}
	return newResource(name, path, ResourceTypeShader, uint64(len(data)), code), nil
}

func (sl *ShaderLoader) Unload(resource *Resource) error {
	if resource == nil {
		return errors.New("cannot unload a nil shader resource")
	}
	resource.Data = nil
	resource.DataSize = 0
	return nil
}
