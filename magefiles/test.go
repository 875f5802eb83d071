//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

type Test mg.Namespace

// Runs the unit tests.
func (Test) Unit() error {
	return sh.RunV("go", "test", "./...")
}

// Runs the unit tests with the race detector.
func (Test) Race() error {
	return sh.RunV("go", "test", "-race", "./pkg/...", "./internal/...")
}

// Writes a coverage profile to coverage.out.
func (Test) Cover() error {
	if err := sh.RunV("go", "test", "-coverprofile=coverage.out", "./..."); err != nil {
		return err
	}
	return sh.RunV("go", "tool", "cover", "-func=coverage.out")
}

// Generates every primitive with previews into out/.
func (Test) Scene() error {
	mg.Deps(Build.Tool)
	return sh.RunV("bin/atlastool", "generate", "-images", "-out", "out",
		"plane", "cube", "cube-shared", "sphere", "cylinder", "triangles")
}
