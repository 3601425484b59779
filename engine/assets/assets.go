package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spaghettifunk/orng/engine/containers"
	"github.com/spaghettifunk/orng/engine/core"
)

type AssetManagerConfig struct {
	// Capacity of the queue carrying file removals from the watcher to the tick thread.
	PendingCapacity int
	// Goroutines reading asset descriptors for LoadAsync.
	LoaderWorkers int
}

// AssetManager owns mesh and material identities. Everything except the
// file watcher and the loader workers runs on the tick thread; those only
// queue requests that ProcessPending applies.
type AssetManager struct {
	meshes    map[uuid.UUID]*MeshAsset
	materials map[uuid.UUID]*Material

	baseMesh     *MeshAsset
	baseQuad     *MeshAsset
	baseMaterial *Material

	events *core.EventChannel[Event]

	// guards paths, pending and loaded, shared with the watcher and loaders
	mutex   sync.Mutex
	paths   map[string]uuid.UUID
	pending *containers.RingQueue[string]
	loaded  []loaded
	jobs    *core.JobSystem

	done     chan struct{}
	wg       sync.WaitGroup
	fsnotify *fsnotify.Watcher
	isClosed bool
}

func NewAssetManager(config *AssetManagerConfig) (*AssetManager, error) {
	if config == nil {
		config = &AssetManagerConfig{}
	}
	if config.PendingCapacity <= 0 {
		core.LogWarn("asset manager: PendingCapacity must be > 0, defaulting to 256")
		config.PendingCapacity = 256
	}
	if config.LoaderWorkers <= 0 {
		config.LoaderWorkers = 1
	}
	jobs, err := core.NewJobSystem(config.LoaderWorkers, config.PendingCapacity)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	am := &AssetManager{
		meshes:    make(map[uuid.UUID]*MeshAsset),
		materials: make(map[uuid.UUID]*Material),
		paths:     make(map[string]uuid.UUID),
		pending:   containers.NewRingQueue[string](config.PendingCapacity),
		events:    core.NewEventChannel[Event](),
		jobs:      jobs,
	}

	// Coded assets, always present and never deletable.
	am.baseMesh = am.CreateMeshAsset(DefaultMeshName, "", 1)
	am.baseQuad = am.CreateMeshAsset(BaseQuadName, "", 1)
	am.baseMaterial = am.CreateMaterial(DefaultMaterialName, "")
	return am, nil
}

// Events returns the channel asset changes are published on.
func (am *AssetManager) Events() *core.EventChannel[Event] {
	return am.events
}

func (am *AssetManager) GetDefaultMeshAsset() *MeshAsset {
	return am.baseMesh
}

func (am *AssetManager) GetBaseQuad() *MeshAsset {
	return am.baseQuad
}

func (am *AssetManager) GetDefaultMaterial() *Material {
	return am.baseMaterial
}

// CreateMeshAsset registers a new mesh. A submesh count below one is
// corrected to one.
func (am *AssetManager) CreateMeshAsset(name, path string, submeshCount int) *MeshAsset {
	if submeshCount < 1 {
		core.LogWarn("mesh asset '%s' declared %d submeshes, using 1", name, submeshCount)
		submeshCount = 1
	}
	m := &MeshAsset{
		UUID:         uuid.New(),
		Name:         name,
		Path:         path,
		SubmeshCount: submeshCount,
	}
	am.meshes[m.UUID] = m
	am.trackPath(path, m.UUID)
	am.events.Dispatch(Event{Type: EventMeshLoaded, Mesh: m})
	return m
}

func (am *AssetManager) CreateMaterial(name, path string) *Material {
	m := &Material{
		UUID: uuid.New(),
		Name: name,
		Path: path,
	}
	am.materials[m.UUID] = m
	am.trackPath(path, m.UUID)
	am.events.Dispatch(Event{Type: EventMaterialLoaded, Material: m})
	return m
}

func (am *AssetManager) MeshAssetByUUID(id uuid.UUID) (*MeshAsset, bool) {
	m, ok := am.meshes[id]
	return m, ok
}

func (am *AssetManager) MaterialByUUID(id uuid.UUID) (*Material, bool) {
	m, ok := am.materials[id]
	return m, ok
}

// DeleteMeshAsset notifies listeners, then forgets the mesh. Listeners must
// drop every reference they hold to it before returning.
func (am *AssetManager) DeleteMeshAsset(m *MeshAsset) error {
	if m == nil {
		return fmt.Errorf("delete mesh asset: %w", core.ErrUnknownAsset)
	}
	if m == am.baseMesh || m == am.baseQuad {
		return fmt.Errorf("delete mesh asset '%s': %w", m.Name, core.ErrBaseAsset)
	}
	if registered, ok := am.meshes[m.UUID]; !ok || registered != m {
		return fmt.Errorf("delete mesh asset '%s': %w", m.Name, core.ErrUnknownAsset)
	}
	am.events.Dispatch(Event{Type: EventMeshDeleted, Mesh: m})
	delete(am.meshes, m.UUID)
	am.untrackPath(m.Path)
	core.LogDebug("mesh asset '%s' deleted", m.Name)
	return nil
}

// DeleteMaterial notifies listeners, then forgets the material.
func (am *AssetManager) DeleteMaterial(m *Material) error {
	if m == nil {
		return fmt.Errorf("delete material: %w", core.ErrUnknownAsset)
	}
	if m == am.baseMaterial {
		return fmt.Errorf("delete material '%s': %w", m.Name, core.ErrBaseAsset)
	}
	if registered, ok := am.materials[m.UUID]; !ok || registered != m {
		return fmt.Errorf("delete material '%s': %w", m.Name, core.ErrUnknownAsset)
	}
	am.events.Dispatch(Event{Type: EventMaterialDeleted, Material: m})
	delete(am.materials, m.UUID)
	am.untrackPath(m.Path)
	core.LogDebug("material '%s' deleted", m.Name)
	return nil
}

func (am *AssetManager) trackPath(path string, id uuid.UUID) {
	if path == "" {
		return
	}
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.paths[filepath.Clean(path)] = id
}

func (am *AssetManager) untrackPath(path string) {
	if path == "" {
		return
	}
	am.mutex.Lock()
	defer am.mutex.Unlock()
	delete(am.paths, filepath.Clean(path))
}

// ProcessPending registers the assets loaded and deletes the assets whose
// files disappeared since the last call. It must run on the tick thread.
// Returns how many changes were applied.
func (am *AssetManager) ProcessPending() int {
	applied := am.applyLoads()

	am.mutex.Lock()
	var ids []uuid.UUID
	for !am.pending.IsEmpty() {
		path, _ := am.pending.Dequeue()
		if id, ok := am.paths[path]; ok {
			ids = append(ids, id)
		}
	}
	am.mutex.Unlock()

	for _, id := range ids {
		var err error
		if m, ok := am.meshes[id]; ok {
			err = am.DeleteMeshAsset(m)
		} else if m, ok := am.materials[id]; ok {
			err = am.DeleteMaterial(m)
		} else {
			continue
		}
		if err != nil {
			core.LogError(err.Error())
			continue
		}
		applied++
	}
	return applied
}

// Watch starts watching dir and every directory below it. Removing or
// renaming a file that backs an asset queues that asset for deletion.
func (am *AssetManager) Watch(dir string) error {
	if am.isClosed {
		return errors.New("asset manager already closed")
	}
	if am.fsnotify != nil {
		return errors.New("asset manager already watching")
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	am.fsnotify = fsWatch
	if err := am.watchRecursive(dir); err != nil {
		am.fsnotify.Close()
		am.fsnotify = nil
		return err
	}

	am.done = make(chan struct{})
	am.wg.Add(1)
	go am.start()
	return nil
}

func (am *AssetManager) start() {
	defer am.wg.Done()
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s != nil && s.IsDir() && e.Op&fsnotify.Create != 0 {
				if err := am.watchRecursive(e.Name); err != nil {
					core.LogError(err.Error())
				}
			}
			am.handleFSEvent(e)

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())

		case <-am.done:
			return
		}
	}
}

// handleFSEvent queues a deletion when a tracked file goes away.
func (am *AssetManager) handleFSEvent(e fsnotify.Event) {
	if e.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	path := filepath.Clean(e.Name)

	am.mutex.Lock()
	defer am.mutex.Unlock()
	if _, ok := am.paths[path]; !ok {
		return
	}
	if err := am.pending.Enqueue(path); err != nil {
		core.LogWarn("dropping deletion of '%s': %s", path, err)
	}
}

// watchRecursive adds all directories under the given one to the watch list.
func (am *AssetManager) watchRecursive(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return am.fsnotify.Add(walkPath)
		}
		return nil
	})
}

// Close stops the loaders and the watcher, if any. Safe to call more than
// once.
func (am *AssetManager) Close() error {
	if am.isClosed {
		return nil
	}
	am.isClosed = true
	if err := am.jobs.Shutdown(); err != nil {
		return err
	}
	if am.fsnotify == nil {
		return nil
	}
	close(am.done)
	am.wg.Wait()
	return am.fsnotify.Close()
}
