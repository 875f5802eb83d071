//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

type Build mg.Namespace

// Builds atlastool into bin/.
func (Build) Tool() error {
	if err := sh.RunV("go", "build", "-o", "bin/atlastool", "./cmd/atlastool"); err != nil {
		return err
	}
	fmt.Println("Built bin/atlastool")
	return nil
}

// Runs go vet over every package.
func (Build) Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Runs go mod tidy.
func (Build) Tidy() error {
	return sh.RunV("go", "mod", "tidy")
}
