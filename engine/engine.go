package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/spaghettifunk/orng/engine/assets"
	"github.com/spaghettifunk/orng/engine/core"
	"github.com/spaghettifunk/orng/engine/renderer"
	"github.com/spaghettifunk/orng/engine/scene"
	"github.com/spaghettifunk/orng/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	currentStage  Stage
	config        *Config
	gameInstance  *Game
	assetManager  *assets.AssetManager
	registry      *scene.Registry
	systemManager *systems.SystemManager
	clock         *core.Clock
	lastTime      time.Duration
	ticks         uint64
	drawCommands  []renderer.DrawCommand
}

/**
 * @brief Boots the engine: logging, the asset manager, the scene and its
 * systems. GPU buffers live in system memory.
 */
func New(config *Config, g *Game) (*Engine, error) {
	e := &Engine{
		currentStage: EngineStageBooting,
		config:       config,
		gameInstance: g,
		clock:        core.NewClock(),
	}
	if err := config.Validate(); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	if err := core.LogSetLevel(config.Log.Level); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	core.LogSetReportCaller(config.Log.ReportCaller)

	am, err := assets.NewAssetManager(config.assetManagerConfig())
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	registry := scene.NewRegistry()
	sm, err := systems.NewSystemManager(config.instancingSystemConfig(), registry, am, renderer.NewHostBufferFactory())
	if err != nil {
		core.LogError(err.Error())
		_ = am.Close()
		return nil, err
	}

	e.assetManager = am
	e.registry = registry
	e.systemManager = sm
	g.Registry = registry
	g.Assets = am
	g.SystemManager = sm
	e.currentStage = EngineStageBootComplete
	return e, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing
	if e.config.Assets.Watch {
		if err := e.assetManager.Watch(e.config.Assets.Dir); err != nil {
			err = fmt.Errorf("watch assets in '%s': %w", e.config.Assets.Dir, err)
			core.LogError(err.Error())
			return err
		}
	}
	e.systemManager.OnLoad()

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return err
		}
	}
	e.currentStage = EngineStageInitialized
	core.LogInfo("Engine initialized for '%s'.", e.name())
	return nil
}

/**
 * @brief Ticks at the configured rate until ctx is done or the tick limit
 * is reached.
 */
func (e *Engine) Run(ctx context.Context) error {
	e.currentStage = EngineStageRunning
	e.clock.Start()
	e.lastTime = e.clock.Elapsed()

	ticker := time.NewTicker(time.Second / time.Duration(e.config.Engine.TickRate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			core.LogInfo("Run cancelled after %d ticks, shutting down.", e.ticks)
			return nil
		case <-ticker.C:
			if err := e.Tick(); err != nil {
				core.LogError("Tick %d failed, shutting down: %s", e.ticks, err)
				return err
			}
			if limit := e.config.Engine.MaxTicks; limit > 0 && e.ticks >= limit {
				return nil
			}
		}
	}
}

/**
 * @brief Runs one simulation tick: asset changes queued by the watcher and
 * the loaders are applied first, then the game update, the systems' flush and the render
 * hook, in that order.
 */
func (e *Engine) Tick() error {
	e.clock.Update()
	currentTime := e.clock.Elapsed()
	delta := (currentTime - e.lastTime).Seconds()

	if n := e.assetManager.ProcessPending(); n > 0 {
		core.LogDebug("Applied %d queued asset change(s).", n)
	}
	if e.gameInstance.FnUpdate != nil {
		if err := e.gameInstance.FnUpdate(delta); err != nil {
			return fmt.Errorf("game update: %w", err)
		}
	}
	e.systemManager.Update()

	e.drawCommands = e.systemManager.InstancingSystem().DrawCommands()
	if e.gameInstance.FnRender != nil {
		if err := e.gameInstance.FnRender(e.drawCommands, delta); err != nil {
			return fmt.Errorf("game render: %w", err)
		}
	}

	e.lastTime = currentTime
	e.ticks++
	return nil
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			core.LogError(err.Error())
		}
	}
	if err := e.systemManager.Shutdown(); err != nil {
		return err
	}
	if err := e.assetManager.Close(); err != nil {
		return err
	}
	e.clock.Stop()
	return nil
}

func (e *Engine) Stage() Stage { return e.currentStage }

func (e *Engine) Ticks() uint64 { return e.ticks }

func (e *Engine) Registry() *scene.Registry { return e.registry }

func (e *Engine) Assets() *assets.AssetManager { return e.assetManager }

// DrawCommands returns the draw calls collected by the last tick.
func (e *Engine) DrawCommands() []renderer.DrawCommand { return e.drawCommands }

func (e *Engine) name() string {
	if e.gameInstance.ApplicationConfig == nil {
		return ""
	}
	return e.gameInstance.ApplicationConfig.Name
}
