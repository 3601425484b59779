/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/profile"
	"github.com/spaghettifunk/orng/engine"
	"github.com/spaghettifunk/orng/engine/core"
	"github.com/spaghettifunk/orng/testbed"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML engine configuration")
	profileMode := flag.String("profile", "", "write a profile: cpu, mem or trace")
	flag.Parse()

	if err := run(*configPath, *profileMode); err != nil {
		core.LogError(err.Error())
		os.Exit(1)
	}
}

func run(configPath, profileMode string) error {
	switch profileMode {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case "trace":
		defer profile.Start(profile.TraceProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	default:
		return fmt.Errorf("unknown profile mode '%s'", profileMode)
	}

	config := engine.DefaultConfig()
	if configPath != "" {
		c, err := engine.LoadConfig(configPath)
		if err != nil {
			return err
		}
		config = c
	}

	tb := testbed.NewTestGame()

	e, err := engine.New(config, tb.Game)
	if err != nil {
		return err
	}
	if err := e.Initialize(); err != nil {
		return err
	}

	// cancel the run on sigterm and other system calls
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	runErr := e.Run(ctx)
	if err := e.Shutdown(); err != nil {
		core.LogError(err.Error())
	}
	return runErr
}
