package pathtrace

import (
	"math/rand/v2"
	"testing"

	"github.com/soypat/voxtrace/material"
	"github.com/soypat/voxtrace/model"
	"github.com/soypat/voxtrace/octree"
	"github.com/soypat/voxtrace/ray"
	"github.com/soypat/voxtrace/sun"
	"github.com/soypat/voxtrace/vec3"
)

func testSun() sun.Sun {
	return sun.NewSun(vec3.Vec{X: 0, Y: 1, Z: 0}, 0.02, 20,
		vec3.Vec{X: 1, Y: 1, Z: 0.9},
		vec3.Vec{X: 0.4, Y: 0.6, Z: 1},
		vec3.Vec{X: 0.8, Y: 0.85, Z: 0.9})
}

// property 12: with a black (empty) scene, every traced ray equals the
// sky/sun function evaluated at the ray direction.
func TestTraceEmptySceneMatchesSky(t *testing.T) {
	s := &Scene{Octree: octree.NewStore(), Models: model.SliceLookup{}, Sun: testSun()}
	tr := &Tracer{Scene: s, Branch: BranchConfig{Max: 1}}
	rng := rand.New(rand.NewPCG(1, 1))

	r := ray.New(vec3.Vec{X: 0, Y: 0, Z: 10}, vec3.Vec{X: 0, Y: 0, Z: -1})
	got := tr.Trace(&r, rng, true, 0)
	want := s.Sun.SkyColor(r.Direction)
	if got != want {
		t.Errorf("Trace() = %+v, want sky color %+v", got, want)
	}
}

func TestTraceOpaqueHitReturnsNonNegativeColor(t *testing.T) {
	store := octree.NewStore()
	if _, _, _, err := store.SetLeaf([3]int32{0, 0, 0}, 0); err != nil {
		t.Fatal(err)
	}
	models := model.SliceLookup{&model.SingleBlockModel{Materials: [6]uint32{0, 0, 0, 0, 0, 0}}}
	mats := []material.Material{{Specular: 0, Metalness: 0}}
	texs := []material.Texture{material.NewSolidColorTexture(vec3.Vec4{X: 0.8, Y: 0.2, Z: 0.2, W: 1})}
	s := &Scene{Octree: store, Models: models, Materials: mats, Textures: texs, Sun: testSun()}
	tr := &Tracer{Scene: s, Branch: BranchConfig{Max: 1}}
	rng := rand.New(rand.NewPCG(7, 7))

	r := ray.New(vec3.Vec{X: 0.5, Y: 0.5, Z: 10}, vec3.Vec{X: 0, Y: 0, Z: -1})
	got := tr.Trace(&r, rng, true, 0)
	if got.X < 0 || got.Y < 0 || got.Z < 0 {
		t.Errorf("Trace() produced negative radiance: %+v", got)
	}
}

func TestBranchCountAtRampsDownToOne(t *testing.T) {
	c := BranchConfig{Max: 16}
	if got := c.branchCountAt(0); got != 16 {
		t.Errorf("branchCountAt(0) = %d, want 16", got)
	}
	if got := c.branchCountAt(4); got != 1 {
		t.Errorf("branchCountAt(4) (at sqrt(16)) = %d, want 1", got)
	}
	if got := c.branchCountAt(100); got != 1 {
		t.Errorf("branchCountAt(100) = %d, want 1", got)
	}
}

func TestBranchCountAtMaxOneIsAlwaysOne(t *testing.T) {
	c := BranchConfig{Max: 1}
	if got := c.branchCountAt(0); got != 1 {
		t.Errorf("branchCountAt(0) = %d, want 1", got)
	}
}
