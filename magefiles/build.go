//go:build mage

package main

import (
	"path/filepath"

	"github.com/magefile/mage/mg"
)

const shaderDir = "shaders"

var shaderSources = []string{
	"simple_shader.vert",
	"simple_shader.frag",
	"point_light.vert",
	"point_light.frag",
}

type Build mg.Namespace

// Compiles every GLSL shader to SPIR-V next to its source.
func (Build) Shaders() error {
	for _, src := range shaderSources {
		if _, err := executeCmd("glslc", withArgs(src, "-o", src+".spv"), withDir(shaderDir), withStream()); err != nil {
			return err
		}
	}
	return nil
}

// Builds the engine binary into bin/.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	_, err := executeCmd("go", withArgs("build", "-o", filepath.Join("bin", "vulkan3d"), "."), withStream())
	return err
}
