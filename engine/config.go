package engine

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/orng/engine/assets"
	"github.com/spaghettifunk/orng/engine/systems"
)

// Config is the engine configuration as read from a TOML file.
type Config struct {
	Log        LogConfig        `toml:"log"`
	Engine     LoopConfig       `toml:"engine"`
	Instancing InstancingConfig `toml:"instancing"`
	Assets     AssetsConfig     `toml:"assets"`
}

type LogConfig struct {
	// One of debug, info, warn, error, fatal.
	Level        string `toml:"level"`
	ReportCaller bool   `toml:"report_caller"`
}

type LoopConfig struct {
	// Ticks per second.
	TickRate int `toml:"tick_rate"`
	// Stop after this many ticks. 0 runs until the context is cancelled.
	MaxTicks uint64 `toml:"max_ticks"`
}

type InstancingConfig struct {
	InitialGroupCapacity int  `toml:"initial_group_capacity"`
	CoalesceWrites       bool `toml:"coalesce_writes"`
}

type AssetsConfig struct {
	Dir   string `toml:"dir"`
	Watch bool   `toml:"watch"`
	// Removals queued between two ticks before new ones are dropped.
	PendingCapacity int `toml:"pending_capacity"`
	LoaderWorkers   int `toml:"loader_workers"`
}

func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:        "info",
			ReportCaller: true,
		},
		Engine: LoopConfig{
			TickRate: 60,
		},
		Instancing: InstancingConfig{
			InitialGroupCapacity: 16,
			CoalesceWrites:       true,
		},
		Assets: AssetsConfig{
			Dir:             "assets",
			PendingCapacity: 256,
			LoaderWorkers:   2,
		},
	}
}

// LoadConfig reads path on top of DefaultConfig. Keys missing from the file
// keep their default; unknown keys are an error.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	config := DefaultConfig()
	if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(config); err != nil {
		return nil, fmt.Errorf("decode config '%s': %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	if c.Engine.TickRate <= 0 {
		return fmt.Errorf("engine.tick_rate must be > 0, got %d", c.Engine.TickRate)
	}
	if c.Instancing.InitialGroupCapacity < 0 {
		return fmt.Errorf("instancing.initial_group_capacity must be >= 0, got %d", c.Instancing.InitialGroupCapacity)
	}
	if c.Assets.PendingCapacity < 0 {
		return fmt.Errorf("assets.pending_capacity must be >= 0, got %d", c.Assets.PendingCapacity)
	}
	if c.Assets.LoaderWorkers < 0 {
		return fmt.Errorf("assets.loader_workers must be >= 0, got %d", c.Assets.LoaderWorkers)
	}
	return nil
}

func (c *Config) instancingSystemConfig() *systems.InstancingSystemConfig {
	return &systems.InstancingSystemConfig{
		InitialGroupCapacity: c.Instancing.InitialGroupCapacity,
		CoalesceWrites:       c.Instancing.CoalesceWrites,
	}
}

func (c *Config) assetManagerConfig() *assets.AssetManagerConfig {
	return &assets.AssetManagerConfig{
		PendingCapacity: c.Assets.PendingCapacity,
		LoaderWorkers:   c.Assets.LoaderWorkers,
	}
}
