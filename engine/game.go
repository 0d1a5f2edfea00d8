package engine

type Game struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnShutdown        Shutdown
}

// Initialize builds the scene once the renderer and assets are ready.
type Initialize func(e *Engine) error

// Update runs once per frame before the frame is drawn.
type Update func(e *Engine, deltaTime float32) error

type Shutdown func() error
