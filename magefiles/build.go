//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Runs the unit tests of every package.
func (Build) Test() error {
	_, err := executeCmd("go", withArgs("test", "./..."), withStream())
	return err
}

// Runs the unit tests with invariant assertions turned into panics.
func (Build) TestDebug() error {
	_, err := executeCmd("go", withArgs("test", "-tags", "debug", "./..."), withStream())
	return err
}

// Runs go vet.
func (Build) Vet() error {
	_, err := executeCmd("go", withArgs("vet", "./..."), withStream())
	return err
}

// Runs the instancing benchmarks.
func (Build) Bench() error {
	_, err := executeCmd("go", withArgs("test", "-run", "^$", "-bench", ".", "-benchmem", "./systems/..."), withDir("engine"), withStream())
	return err
}
