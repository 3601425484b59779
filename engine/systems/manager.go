package systems

import (
	"github.com/spaghettifunk/orng/engine/assets"
	"github.com/spaghettifunk/orng/engine/renderer"
	"github.com/spaghettifunk/orng/engine/scene"
)

// SystemManager owns the systems of one scene and runs them in order.
type SystemManager struct {
	instancingSystem *MeshInstancingSystem
}

func NewSystemManager(config *InstancingSystemConfig, registry *scene.Registry, am *assets.AssetManager, buffers renderer.BufferFactory) (*SystemManager, error) {
	is, err := NewMeshInstancingSystem(config, registry, am, buffers)
	if err != nil {
		return nil, err
	}
	return &SystemManager{
		instancingSystem: is,
	}, nil
}

func (sm *SystemManager) InstancingSystem() *MeshInstancingSystem {
	return sm.instancingSystem
}

func (sm *SystemManager) OnLoad() {
	sm.instancingSystem.OnLoad()
}

// Update runs the per-tick pass of every system.
func (sm *SystemManager) Update() {
	sm.instancingSystem.Update()
}

func (sm *SystemManager) Shutdown() error {
	if err := sm.instancingSystem.Shutdown(); err != nil {
		return err
	}
	return nil
}
