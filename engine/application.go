package engine

import (
	"github.com/spaghettifunk/vulkan3d/engine/core"
)

const (
	DefaultSimpleShader     = "simple_shader"
	DefaultPointLightShader = "point_light"
)

type ApplicationConfig struct {
	*core.Config
	// Shader base names. Each resolves to <name>.vert.spv and <name>.frag.spv in the shader directory.
	SimpleShader     string
	PointLightShader string
	// Model decoding workers. Zero means one.
	LoaderWorkers int
}

func NewApplicationConfig(cfg *core.Config) *ApplicationConfig {
	if cfg == nil {
		cfg = core.DefaultConfig()
	}
	return &ApplicationConfig{
		Config:           cfg,
		SimpleShader:     DefaultSimpleShader,
		PointLightShader: DefaultPointLightShader,
		LoaderWorkers:    4,
	}
}
