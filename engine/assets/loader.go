package assets

import "github.com/spaghettifunk/vulkan3d/engine/assets/loaders"

type Loader interface {
	Load(path, name string) (*loaders.Resource, error)
	Unload(*loaders.Resource) error
}
