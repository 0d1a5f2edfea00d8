package engine

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vulkan3d/engine/assets"
	"github.com/spaghettifunk/vulkan3d/engine/assets/loaders"
	"github.com/spaghettifunk/vulkan3d/engine/core"
	"github.com/spaghettifunk/vulkan3d/engine/platform"
	"github.com/spaghettifunk/vulkan3d/engine/renderer"
	"github.com/spaghettifunk/vulkan3d/engine/renderer/components"
	"github.com/spaghettifunk/vulkan3d/engine/renderer/vulkan"
	"github.com/spaghettifunk/vulkan3d/engine/resources"
	"github.com/spaghettifunk/vulkan3d/engine/scene"
	"github.com/spaghettifunk/vulkan3d/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// ViewerStart is where the camera starts, looking down +Z.
var ViewerStart = mgl32.Vec3{0, 0, -2.5}

// Window is the platform window as the loop sees it.
type Window interface {
	vulkan.Window
	ShouldClose() bool
	PollEvents()
	Destroy()
}

type Engine struct {
	currentStage Stage
	gameInstance *Game
	config       *ApplicationConfig
	isRunning    atomic.Bool

	input         *core.Input
	window        Window
	device        vulkan.Device
	destroyDevice func()
	renderer      *renderer.Renderer
	assetManager  *assets.AssetManager
	systemManager *systems.Manager
	jobSystem     *systems.JobSystem

	entities         *scene.EntityMap
	camera           *components.Camera
	viewer           *scene.Entity
	cameraController *systems.CameraMovementHandler
	models           []*resources.Model

	clock        *core.Clock
	metrics      *core.Metrics
	sinceMetrics float32
}

// Seconds between two frame time reports.
const metricsReportInterval = 5

func New(g *Game) *Engine {
	if g.ApplicationConfig == nil {
		g.ApplicationConfig = NewApplicationConfig(nil)
	}
	return &Engine{
		currentStage:     EngineStageUninitialized,
		gameInstance:     g,
		config:           g.ApplicationConfig,
		input:            core.NewInput(),
		entities:         scene.NewEntityMap(),
		camera:           components.NewCamera(),
		cameraController: systems.NewCameraMovementHandler(),
		clock:            core.NewClock(),
		metrics:          core.NewMetrics(),
	}
}

// Initialize opens the window and the GPU device, then builds everything on top of them.
func (e *Engine) Initialize() error {
	cfg := e.config.Config
	window, err := platform.NewWindow(cfg.Window.Title, cfg.Window.Width, cfg.Window.Height, e.input)
	if err != nil {
		return err
	}
	device, err := vulkan.NewVulkanDevice(vulkan.DeviceConfig{
		ApplicationName:        cfg.Window.Title,
		EnableValidationLayers: cfg.Renderer.EnableValidationLayers,
	}, window)
	if err != nil {
		window.Destroy()
		return err
	}
	e.destroyDevice = device.Destroy
	return e.initialize(window, device)
}

func (e *Engine) initialize(window Window, device vulkan.Device) error {
	e.currentStage = EngineStageInitializing
	e.window = window
	e.device = device

	var err error
	if e.renderer, err = renderer.New(device, window, e.config.Renderer); err != nil {
		return e.abort(err)
	}

	e.assetManager = assets.NewAssetManager(e.config.Assets)
	if err := e.assetManager.Initialize(); err != nil {
		return e.abort(err)
	}

	workers := e.config.LoaderWorkers
	if workers < 1 {
		workers = 1
	}
	if e.jobSystem, err = systems.NewJobSystem(workers, workers); err != nil {
		return e.abort(err)
	}

	if err := e.createRenderSystems(); err != nil {
		return e.abort(err)
	}

	e.viewer = scene.NewEntity()
	e.viewer.Transform.Translation = ViewerStart

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(e); err != nil {
			return e.abort(err)
		}
	}

	e.currentStage = EngineStageInitialized
	e.isRunning.Store(true)
	core.LogInfo("Engine initialized with %d entities", e.entities.Len())
	return nil
}

func (e *Engine) loadShaderPair(name string) (systems.ShaderCode, error) {
	vert, err := e.assetManager.LoadShader(name + ".vert")
	if err != nil {
		return systems.ShaderCode{}, err
	}
	frag, err := e.assetManager.LoadShader(name + ".frag")
	if err != nil {
		return systems.ShaderCode{}, err
	}
	return systems.ShaderCode{Vertex: vert, Fragment: frag}, nil
}

func (e *Engine) createRenderSystems() error {
	simpleShaders, err := e.loadShaderPair(e.config.SimpleShader)
	if err != nil {
		return err
	}
	lightShaders, err := e.loadShaderPair(e.config.PointLightShader)
	if err != nil {
		return err
	}
	e.systemManager, err = systems.NewManager(
		e.renderer.GlobalSetLayout(),
		e.renderer.RenderPass(),
		systems.NewSimpleRenderSystem(e.device, simpleShaders),
		systems.NewPointLightRenderSystem(e.device, lightShaders),
	)
	return err
}

// LoadModels decodes the named OBJ files on the job system, then uploads them to the GPU
// from the calling goroutine. The engine owns the returned models.
func (e *Engine) LoadModels(names ...string) (map[string]*resources.Model, error) {
	var (
		mu      sync.Mutex
		decoded = make(map[string]*loaders.ModelData, len(names))
		errs    error
	)
	for _, name := range names {
		name := name
		e.jobSystem.Submit(systems.JobTask{
			Name: name,
			Run: func() (interface{}, error) {
				return e.assetManager.LoadModel(name)
			},
			OnComplete: func(result interface{}) {
				mu.Lock()
				defer mu.Unlock()
				decoded[name] = result.(*loaders.ModelData)
			},
			OnFailure: func(err error) {
				mu.Lock()
				defer mu.Unlock()
				errs = errors.CombineErrors(errs, errors.Wrapf(err, "loading model %q", name))
			},
		})
	}
	e.jobSystem.Wait()
	if errs != nil {
		return nil, errs
	}

	sorted := make([]string, 0, len(decoded))
	for name := range decoded {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	models := make(map[string]*resources.Model, len(decoded))
	for _, name := range sorted {
		model, err := resources.NewModel(e.device, decoded[name])
		if err != nil {
			return nil, errors.Wrapf(err, "uploading model %q", name)
		}
		e.models = append(e.models, model)
		models[name] = model
	}
	return models, nil
}

func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return errors.AssertionFailedf("engine must be initialized before running, stage is %d", e.currentStage)
	}
	e.currentStage = EngineStageRunning
	e.clock.Start()

	for e.isRunning.Load() && !e.window.ShouldClose() {
		e.window.PollEvents()
		frameTime := float32(e.clock.Lap())
		if err := e.frame(frameTime); err != nil {
			core.LogError("frame %d failed: %s", e.renderer.FrameNumber(), err)
			return err
		}
	}

	fps, frameMS := e.metrics.Frame()
	core.LogInfo("Main loop finished after %d frames (%.0f fps, %.2f ms)", e.renderer.FrameNumber(), fps, frameMS)
	return nil
}

func (e *Engine) frame(frameTime float32) error {
	e.drainAssetChanges()

	e.cameraController.MoveInPlaneXZ(e.input, frameTime, e.viewer.Transform)
	e.camera.SetViewYXZ(e.viewer.Transform.Translation, e.viewer.Transform.Rotation)
	e.camera.SetPerspectiveProjection(mgl32.DegToRad(components.DefaultFovY), e.renderer.AspectRatio(), components.DefaultNear, components.DefaultFar)

	if e.gameInstance.FnUpdate != nil {
		if err := e.gameInstance.FnUpdate(e, frameTime); err != nil {
			return err
		}
	}

	if err := e.renderer.DrawFrame(frameTime, e.camera, e.entities, e.systemManager); err != nil {
		return err
	}

	// Input state copying happens after everything that reads input this frame.
	e.input.Update()
	e.metrics.Update(float64(frameTime))
	e.sinceMetrics += frameTime
	if e.sinceMetrics >= metricsReportInterval {
		e.sinceMetrics = 0
		fps, frameMS := e.metrics.Frame()
		core.LogDebug("%.0f fps, %.2f ms per frame", fps, frameMS)
	}
	return nil
}

func (e *Engine) drainAssetChanges() {
	for {
		select {
		case path := <-e.assetManager.Changes():
			core.LogInfo("asset changed on disk: %s", path)
		default:
			return
		}
	}
}

// Stop asks the main loop to exit after the current frame. Safe from any goroutine.
func (e *Engine) Stop() {
	e.isRunning.Store(false)
}

func (e *Engine) abort(err error) error {
	if shutdownErr := e.Shutdown(); shutdownErr != nil {
		core.LogWarn("shutdown after failed initialization: %s", shutdownErr)
	}
	return err
}

// Shutdown waits for the GPU, then releases everything in reverse creation order. Calls
// after the first are no-ops.
func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShuttingDown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	e.isRunning.Store(false)

	var err error
	if e.gameInstance.FnShutdown != nil {
		err = e.gameInstance.FnShutdown()
	}

	if e.device != nil {
		if res := e.device.WaitIdle(); res != vk.Success {
			err = errors.CombineErrors(err, errors.Newf("waiting for device idle: %s", vulkan.VulkanResultString(res, true)))
		}
	}

	for i := len(e.models) - 1; i >= 0; i-- {
		e.models[i].Destroy()
	}
	e.models = nil
	if e.systemManager != nil {
		e.systemManager.Destroy()
		e.systemManager = nil
	}
	if e.jobSystem != nil {
		e.jobSystem.Shutdown()
		e.jobSystem = nil
	}
	if e.assetManager != nil {
		e.assetManager.Close()
		e.assetManager = nil
	}
	if e.renderer != nil {
		e.renderer.Destroy()
		e.renderer = nil
	}
	if e.destroyDevice != nil {
		e.destroyDevice()
		e.destroyDevice = nil
	}
	e.device = nil
	if e.window != nil {
		e.window.Destroy()
		e.window = nil
	}
	return err
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

func (e *Engine) Entities() *scene.EntityMap {
	return e.entities
}

// Viewer is the entity the camera follows.
func (e *Engine) Viewer() *scene.Entity {
	return e.viewer
}

func (e *Engine) Input() *core.Input {
	return e.input
}

func (e *Engine) Camera() *components.Camera {
	return e.camera
}

func (e *Engine) Metrics() *core.Metrics {
	return e.metrics
}
