package assets

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/vulkan3d/engine/assets/loaders"
	"github.com/spaghettifunk/vulkan3d/engine/core"
)

const (
	shaderExtension = ".spv"
	modelExtension  = ".obj"
)

type AssetInfo struct {
	Path       string
	Type       loaders.ResourceType
	LastLoaded time.Time
	Modified   time.Time
}

// AssetManager indexes the shader and model directories and loads files from them by name.
// With watching enabled it keeps the index current and reports changed files on Changes.
type AssetManager struct {
	config  core.AssetsConfig
	assets  map[string]AssetInfo
	loaders map[loaders.ResourceType]Loader

	mutex sync.RWMutex

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
	changes  chan string
}

func NewAssetManager(config core.AssetsConfig) *AssetManager {
	return &AssetManager{
		config:  config,
		assets:  make(map[string]AssetInfo),
		loaders: make(map[loaders.ResourceType]Loader),
		changes: make(chan string, 16),
	}
}

// Initialize registers the loaders, indexes both asset directories and starts the watcher
// when enabled.
func (am *AssetManager) Initialize() error {
	am.registerLoader(loaders.ResourceTypeShader, &loaders.ShaderLoader{})
	am.registerLoader(loaders.ResourceTypeModel, &loaders.ModelLoader{})

	if am.config.Watch {
		fsWatch, err := fsnotify.NewWatcher()
		if err != nil {
			return errors.Wrap(err, "creating asset watcher")
		}
		am.fsnotify = fsWatch
		am.done = make(chan struct{})
		am.stopped = make(chan struct{})
		go am.start()
	}

	for _, dir := range am.directories() {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			core.LogWarn("asset directory %q does not exist", dir)
			continue
		}
		if err := am.watchRecursive(dir, false); err != nil {
			am.Close()
			return errors.Wrapf(err, "indexing asset directory %q", dir)
		}
	}

	core.LogDebug("asset manager indexed %d assets (watch=%t)", am.Len(), am.config.Watch)
	return nil
}

func (am *AssetManager) directories() []string {
	if filepath.Clean(am.config.ShaderDir) == filepath.Clean(am.config.ModelDir) {
		return []string{am.config.ShaderDir}
	}
	return []string{am.config.ShaderDir, am.config.ModelDir}
}

// Close stops the watcher. It is safe to call more than once.
func (am *AssetManager) Close() {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return
	}
	am.isClosed = true
	am.mutex.Unlock()

	if am.done != nil {
		close(am.done)
		<-am.stopped
	}
}

// Changes delivers the path of every shader or model that was created or modified while
// watching. Events are dropped when nobody keeps up with the channel.
func (am *AssetManager) Changes() <-chan string {
	return am.changes
}

func (am *AssetManager) registerLoader(assetType loaders.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

// LoadShader returns the SPIR-V words of <shader_dir>/<name>.spv.
func (am *AssetManager) LoadShader(name string) ([]uint32, error) {
	res, err := am.LoadAsset(name, loaders.ResourceTypeShader)
	if err != nil {
		return nil, err
	}
	return res.Data.([]uint32), nil
}

// LoadModel decodes <model_dir>/<name>.obj.
func (am *AssetManager) LoadModel(name string) (*loaders.ModelData, error) {
	res, err := am.LoadAsset(name, loaders.ResourceTypeModel)
	if err != nil {
		return nil, err
	}
	return res.Data.(*loaders.ModelData), nil
}

// LoadAsset loads an indexed asset with the loader registered for its type.
func (am *AssetManager) LoadAsset(name string, resourceType loaders.ResourceType) (*loaders.Resource, error) {
	var path string
	switch resourceType {
	case loaders.ResourceTypeShader:
		path = filepath.Join(am.config.ShaderDir, name+shaderExtension)
	case loaders.ResourceTypeModel:
		path = filepath.Join(am.config.ModelDir, name+modelExtension)
	default:
		return nil, errors.Newf("unknown resource type %d", resourceType)
	}

	am.mutex.Lock()
	asset, exists := am.assets[path]
	if exists {
		asset.LastLoaded = time.Now()
		am.assets[path] = asset
	}
	am.mutex.Unlock()
	if !exists {
		return nil, errors.Newf("asset not found: %s", path)
	}

	loader, loaderExists := am.loaders[asset.Type]
	if !loaderExists {
		return nil, errors.Newf("no loader registered for asset type: %s", asset.Type)
	}

	res, err := loader.Load(path, name)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	core.LogDebug("loaded %s %q (%d bytes)", resourceType, name, res.DataSize)
	return res, nil
}

func (am *AssetManager) UnloadAsset(resource *loaders.Resource) error {
	loader, ok := am.loaders[resource.Type]
	if !ok {
		return errors.Newf("no loader registered for asset type: %s", resource.Type)
	}
	return loader.Unload(resource)
}

// Info returns the index entry of a file path.
func (am *AssetManager) Info(path string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	info, ok := am.assets[filepath.Clean(path)]
	return info, ok
}

func (am *AssetManager) Len() int {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return len(am.assets)
}

func (am *AssetManager) start() {
	defer close(am.stopped)
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s != nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					if err := am.watchRecursive(e.Name, false); err != nil {
						core.LogWarn("cannot watch %q: %s", e.Name, err)
					}
				}
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				if am.handleFileEvent(e.Name) {
					core.LogInfo("asset changed: %s", e.Name)
					am.notify(e.Name)
				}
			}
			// A removed path can no longer be stat'ed, treat it as both file and directory.
			if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				am.removeAsset(e.Name)
				_ = am.fsnotify.Remove(e.Name)
			}

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())

		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

func (am *AssetManager) notify(path string) {
	select {
	case am.changes <- filepath.Clean(path):
	default:
		core.LogDebug("dropping asset change for %s, nobody is listening", path)
	}
}

// watchRecursive indexes every file below path and, when watching, adds every directory to
// the watch list. Files created before the watch is in place are picked up by the walk.
func (am *AssetManager) watchRecursive(path string, unWatch bool) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if am.fsnotify == nil {
				return nil
			}
			if unWatch {
				return am.fsnotify.Remove(walkPath)
			}
			return am.fsnotify.Add(walkPath)
		}
		am.handleFileEvent(walkPath)
		return nil
	})
}

// handleFileEvent indexes a created or modified file. It reports whether the file is an asset.
func (am *AssetManager) handleFileEvent(path string) bool {
	assetType := determineAssetType(path)
	if assetType == loaders.ResourceTypeNone {
		return false
	}
	path = filepath.Clean(path)

	am.mutex.Lock()
	defer am.mutex.Unlock()
	info := am.assets[path]
	info.Path = path
	info.Type = assetType
	info.Modified = time.Now()
	am.assets[path] = info
	return true
}

func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	delete(am.assets, filepath.Clean(path))
}

func determineAssetType(path string) loaders.ResourceType {
	switch filepath.Ext(path) {
	case shaderExtension:
		return loaders.ResourceTypeShader
	case modelExtension:
		return loaders.ResourceTypeModel
	default:
		return loaders.ResourceTypeNone
	}
}
