// Package voxtrace implements a sparse-voxel-octree path tracer: the
// octree store and builder, ESVO traversal, block/quad model
// intersection, and the bounce path tracer are composed here into a
// buildable Scene and, in package render, a progressive tile renderer.
package voxtrace

import (
	"github.com/soypat/voxtrace/material"
	"github.com/soypat/voxtrace/model"
	"github.com/soypat/voxtrace/octree"
	"github.com/soypat/voxtrace/pathtrace"
	"github.com/soypat/voxtrace/sun"
)

// SamplingConfig controls the path tracer's branching and sun-sampling
// behavior, per spec.md §4.4.
type SamplingConfig struct {
	// BranchMax is the maximum per-choice branch count taken at the
	// camera ray while accumulated samples are still low.
	BranchMax uint32
	// SunSampling enables next-event-estimation shadow rays toward the
	// sun disk on diffuse bounces.
	SunSampling bool
	// StrictShadow discards NEE shadow rays that crossed a refractive
	// boundary instead of attenuating through them.
	StrictShadow bool
}

// Scene is the immutable, built world a Renderer traces against: the
// voxel octree, the model-manager-supplied quads, and the material/
// texture/sun tables models and shading index into (spec.md §3 Scene).
type Scene struct {
	Octree    *octree.Store
	Quads     []model.Quad
	Materials []material.Material
	Textures  []material.Texture
	Sun       sun.Sun
	Sampling  SamplingConfig

	models model.SliceLookup
}

// Tracer returns a pathtrace.Tracer configured to trace rays through s.
func (s *Scene) Tracer() *pathtrace.Tracer {
	return &pathtrace.Tracer{
		Scene: &pathtrace.Scene{
			Octree:    s.Octree,
			Models:    s.models,
			Materials: s.Materials,
			Textures:  s.Textures,
			Sun:       s.Sun,
		},
		Branch:       pathtrace.BranchConfig{Max: s.Sampling.BranchMax},
		SunSampling:  s.Sampling.SunSampling,
		StrictShadow: s.Sampling.StrictShadow,
	}
}
