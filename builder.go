package voxtrace

import (
	"errors"
	"fmt"
	"sync"

	"github.com/soypat/voxtrace/material"
	"github.com/soypat/voxtrace/model"
	"github.com/soypat/voxtrace/octree"
	"github.com/soypat/voxtrace/sun"
)

// Flags is a bitmask controlling Builder's construction-time error
// policy, modeled on gsdf.Builder's Flags (see DESIGN.md).
type Flags uint8

const (
	// FlagNoPanic causes Builder to accumulate construction errors for
	// Err() to report, instead of panicking on the first one. Without it,
	// the first invalid input panics immediately, matching gsdf.Builder's
	// default (panicking) behavior.
	FlagNoPanic Flags = 1 << iota
)

// Builder accumulates scene-construction inputs and validates them before
// any rendering begins, per spec.md §7 "Invalid scene": a model-manager
// collaborator returning an unknown material/texture index fails
// construction rather than surfacing a runtime error from the traversal
// or path tracer, which never return errors (spec.md §7 Propagation
// policy).
type Builder struct {
	flags     Flags
	accumErrs []error

	materials []material.Material
	textures  []material.Texture
	sun       sun.Sun
	sampling  SamplingConfig
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder { return &Builder{} }

// SetFlags sets the construction-time error policy.
func (b *Builder) SetFlags(f Flags) { b.flags = f }

// Flags reports the current construction-time error policy.
func (b *Builder) Flags() Flags { return b.flags }

// Err returns all errors accumulated during Build, joined, or nil if none
// occurred.
func (b *Builder) Err() error {
	if len(b.accumErrs) == 0 {
		return nil
	}
	return errors.Join(b.accumErrs...)
}

// ClearErrors discards any accumulated errors.
func (b *Builder) ClearErrors() { b.accumErrs = b.accumErrs[:0] }

func (b *Builder) errorf(msg string, args ...any) {
	err := fmt.Errorf(msg, args...)
	if b.flags&FlagNoPanic == 0 {
		panic(err)
	}
	b.accumErrs = append(b.accumErrs, err)
}

// SetMaterials sets the scene's material table.
func (b *Builder) SetMaterials(m []material.Material) *Builder {
	b.materials = m
	return b
}

// SetTextures sets the scene's texture table.
func (b *Builder) SetTextures(t []material.Texture) *Builder {
	b.textures = t
	return b
}

// SetSun sets the scene's sun/sky descriptor.
func (b *Builder) SetSun(s sun.Sun) *Builder {
	b.sun = s
	return b
}

// SetSampling sets the scene's path-tracer sampling configuration.
func (b *Builder) SetSampling(s SamplingConfig) *Builder {
	b.sampling = s
	return b
}

// ResolveBlockFunc is the model-manager collaborator's total function
// over the integer lattice, per spec.md §6 External Interfaces.
type ResolveBlockFunc func(pos [3]int32) (modelID uint32, present bool)

// ModelQuadsFunc resolves a ModelID to its quads, per spec.md §6.
type ModelQuadsFunc func(modelID uint32) []model.Quad

// Build constructs an immutable Scene of the given depth from the
// model-manager collaborator functions resolveBlock/modelQuads (spec.md
// §6), validating every material/texture index they reference before
// returning. The octree itself is built with octree.ConstructWith's
// parallel bottom-up protocol (spec.md §4.1); resolveBlock may therefore
// be called concurrently from up to 8 goroutines and must be safe for
// that (the collaborator is documented as a pure/total function, so this
// is not an additional constraint in practice).
func (b *Builder) Build(depth int, resolveBlock ResolveBlockFunc, modelQuads ModelQuadsFunc) (*Scene, error) {
	if resolveBlock == nil {
		b.errorf("voxtrace: nil resolveBlock function")
	}
	if modelQuads == nil {
		b.errorf("voxtrace: nil modelQuads function")
	}
	if err := b.Err(); err != nil {
		return nil, err
	}

	var mu sync.Mutex
	seen := make(map[uint32]bool)
	fill := func(pos [3]int32) (octree.LeafValue, bool) {
		id, ok := resolveBlock(pos)
		if ok {
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}
		return id, ok
	}

	store, err := octree.ConstructWith(depth, fill)
	if err != nil {
		b.errorf("voxtrace: %s", err)
		return nil, b.Err()
	}

	models := make(model.SliceLookup, maxID(seen)+1)
	var allQuads []model.Quad
	for id := range seen {
		quads := modelQuads(id)
		if quads == nil {
			b.errorf("voxtrace: model id %d resolved by resolveBlock has no quads (unknown model)", id)
			continue
		}
		for _, q := range quads {
			if int(q.MaterialID) >= len(b.materials) {
				b.errorf("voxtrace: model id %d quad references out-of-range material id %d", id, q.MaterialID)
			}
		}
		models[id] = &model.QuadSetModel{Quads: quads}
		allQuads = append(allQuads, quads...)
	}
	for i, m := range b.materials {
		if int(m.TextureIndex) >= len(b.textures) {
			b.errorf("voxtrace: material %d references out-of-range texture id %d", i, m.TextureIndex)
		}
		if int(m.TintIndex) >= len(b.textures) && m.TintIndex != 0 {
			b.errorf("voxtrace: material %d references out-of-range tint id %d", i, m.TintIndex)
		}
	}
	if err := b.Err(); err != nil {
		return nil, err
	}

	return &Scene{
		Octree:    store,
		Quads:     allQuads,
		Materials: b.materials,
		Textures:  b.textures,
		Sun:       b.sun,
		Sampling:  b.sampling,
		models:    models,
	}, nil
}

func maxID(seen map[uint32]bool) uint32 {
	var max uint32
	for id := range seen {
		if id > max {
			max = id
		}
	}
	return max
}
