package core

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
)

type WindowConfig struct {
	Title  string `toml:"title"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type RendererConfig struct {
	// Number of frames the CPU may record ahead of the GPU.
	FramesInFlight         int        `toml:"frames_in_flight"`
	EnableValidationLayers bool       `toml:"enable_validation_layers"`
	ClearColor             [4]float32 `toml:"clear_color"`
}

type AssetsConfig struct {
	ShaderDir string `toml:"shader_dir"`
	ModelDir  string `toml:"model_dir"`
	Watch     bool   `toml:"watch"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type Config struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Assets   AssetsConfig   `toml:"assets"`
	Log      LogConfig      `toml:"log"`
}

func DefaultConfig() *Config {
	return &Config{
		Window: WindowConfig{
			Title:  "Vulkan3DEngine App",
			Width:  800,
			Height: 600,
		},
		Renderer: RendererConfig{
			FramesInFlight:         2,
			EnableValidationLayers: false,
			ClearColor:             [4]float32{0.01, 0.01, 0.01, 1.0},
		},
		Assets: AssetsConfig{
			ShaderDir: "shaders",
			ModelDir:  "resources/models",
			Watch:     false,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig overlays the TOML file at path on top of DefaultConfig.
// A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			LogInfo("config file %q not found, using defaults", path)
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "reading config %q", path)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "decoding config %q", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Renderer.FramesInFlight < 1 {
		return errors.Newf("renderer.frames_in_flight must be at least 1, got %d", c.Renderer.FramesInFlight)
	}
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return errors.Newf("window size must be non-zero, got %dx%d", c.Window.Width, c.Window.Height)
	}
	return nil
}

func (c *Config) LogLevel() LogLevel {
	return ParseLogLevel(c.Log.Level)
}
