package render_test

import (
	"context"
	"testing"
	"time"

	"github.com/soypat/voxtrace"
	"github.com/soypat/voxtrace/camera"
	"github.com/soypat/voxtrace/interval"
	"github.com/soypat/voxtrace/material"
	"github.com/soypat/voxtrace/model"
	"github.com/soypat/voxtrace/render"
	"github.com/soypat/voxtrace/sun"
	"github.com/soypat/voxtrace/vec3"
)

func unitCubeQuads(materialID uint32) []model.Quad {
	tint := vec3.Vec{X: 1, Y: 1, Z: 1}
	o, x, y, z := vec3.Vec{}, vec3.Vec{X: 1}, vec3.Vec{Y: 1}, vec3.Vec{Z: 1}
	return []model.Quad{
		model.NewQuad(o, z, y, materialID, tint, interval.Unit, interval.Unit),
		model.NewQuad(vec3.Add(o, x), y, z, materialID, tint, interval.Unit, interval.Unit),
		model.NewQuad(o, x, z, materialID, tint, interval.Unit, interval.Unit),
		model.NewQuad(vec3.Add(o, y), z, x, materialID, tint, interval.Unit, interval.Unit),
		model.NewQuad(o, y, x, materialID, tint, interval.Unit, interval.Unit),
		model.NewQuad(vec3.Add(o, z), x, y, materialID, tint, interval.Unit, interval.Unit),
	}
}

// scenario S2 (spec.md §8): a single red opaque leaf at (0,0,0), camera at
// (0,0,10) looking toward the origin, fov=30deg. The center pixel, rendered
// in preview mode for a deterministic single-sample result, should come
// back dominated by the red channel with a non-zero red value, unlike the
// blue-dominated sky it would otherwise show, exercising the full
// Builder -> camera -> Renderer
// pipeline end to end rather than any one package in isolation.
func TestScenarioS2SingleRedBlockThroughFullPipeline(t *testing.T) {
	const red = 0
	materials := []material.Material{red: {TextureIndex: red}}
	textures := []material.Texture{red: material.NewSolidColorTexture(vec3.Vec4{X: 0.8, Y: 0, Z: 0, W: 1})}

	b := voxtrace.NewBuilder()
	b.SetMaterials(materials)
	b.SetTextures(textures)
	b.SetSun(sun.NewSun(vec3.Vec{X: 0.3, Y: 0.9, Z: 0.3}, 0.03, 6,
		vec3.Vec{X: 1, Y: 0.95, Z: 0.85},
		vec3.Vec{X: 0.4, Y: 0.6, Z: 0.9},
		vec3.Vec{X: 0.8, Y: 0.85, Z: 0.9}))
	b.SetSampling(voxtrace.SamplingConfig{BranchMax: 1})

	resolveBlock := func(pos [3]int32) (uint32, bool) {
		if pos == ([3]int32{0, 0, 0}) {
			return red, true
		}
		return 0, false
	}
	modelQuads := func(id uint32) []model.Quad { return unitCubeQuads(id) }

	scene, err := b.Build(1, resolveBlock, modelQuads)
	if err != nil {
		t.Fatalf("Build: %s", err)
	}

	cam, err := camera.New(vec3.Vec{Z: 10}, vec3.Vec{}, vec3.Vec{Y: 1}, 0.5236, 1)
	if err != nil {
		t.Fatal(err)
	}

	const size = 3 // odd so pixel (1,1) is exactly the center ray.
	r, err := render.New(size, size, size, camera.NewShared(cam), scene.Tracer(), render.ModePreview, 1)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.ChangeSPP(1)
	go r.Run(ctx)

	deadline := time.Now().Add(5 * time.Second)
	for r.CurrentSPP() < 1 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the single sample pass")
		}
		time.Sleep(time.Millisecond)
	}

	img := r.GetImage(nil)
	centerIdx := (1*size + 1) * 4
	red8, green8, blue8, alpha8 := img[centerIdx], img[centerIdx+1], img[centerIdx+2], img[centerIdx+3]
	if red8 <= green8 || red8 <= blue8 {
		t.Errorf("center pixel = (%d,%d,%d,%d), want red-dominated", red8, green8, blue8, alpha8)
	}
	if red8 == 0 {
		t.Error("center pixel has no red contribution at all; camera ray likely missed the block")
	}
}
