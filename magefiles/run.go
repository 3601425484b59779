//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the testbed with engine.toml.
func (Run) Engine() error {
	mg.Deps(Build.Vet)
	fmt.Println("Run engine...")
	if _, err := executeCmd("go", withArgs("run", "main.go", "-config", "engine.toml"), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs the testbed with a CPU profile written to the working directory.
func (Run) Profile() error {
	if _, err := executeCmd("go", withArgs("run", "main.go", "-config", "engine.toml", "-profile", "cpu"), withStream()); err != nil {
		return err
	}
	return nil
}
