package engine

import (
	"github.com/spaghettifunk/orng/engine/assets"
	"github.com/spaghettifunk/orng/engine/renderer"
	"github.com/spaghettifunk/orng/engine/scene"
	"github.com/spaghettifunk/orng/engine/systems"
)

// Game is the set of hooks the engine drives. The engine fills in Registry,
// Assets and SystemManager before calling FnInitialize. Nil hooks are
// skipped.
type Game struct {
	ApplicationConfig *ApplicationConfig
	Registry          *scene.Registry
	Assets            *assets.AssetManager
	SystemManager     *systems.SystemManager
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnRender          Render
	FnShutdown        Shutdown
}

type Initialize func() error
type Update func(deltaTime float64) error
type Render func(commands []renderer.DrawCommand, deltaTime float64) error
type Shutdown func() error
