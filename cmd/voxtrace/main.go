// Command voxtrace is a headless driver for the voxtrace library: it
// builds a small procedural demo scene, runs the tile renderer to a
// target sample count, and writes the result as a PNG. There is no GUI
// shell and no asset/world loader here — both are excluded collaborators
// per spec.md §1 — so the scene is built directly from in-memory
// resolve/quads functions instead of a parsed world file.
package main

import (
	"context"
	"flag"
	"image"
	"image/png"
	"log"
	"os"
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

func main() {
	width := flag.Int("width", 320, "output image width in pixels")
	height := flag.Int("height", 240, "output image height in pixels")
	spp := flag.Int("spp", 16, "target samples per pixel")
	tile := flag.Int("tile", 32, "tile edge length in pixels")
	seed := flag.Uint64("seed", 1, "RNG seed")
	out := flag.String("out", "voxtrace.png", "output PNG path")
	preview := flag.Bool("preview", false, "render in flat-shaded preview mode instead of path tracing")
	flag.Parse()

	scene, err := buildDemoScene()
	if err != nil {
		log.Fatal("voxtrace: building scene: ", err)
	}

	cam, err := camera.New(
		vec3.Vec{X: 4, Y: 6, Z: 12}, vec3.Vec{X: 2, Y: 0, Z: 2}, vec3.Vec{Y: 1},
		0.6, float32(*width)/float32(*height),
	)
	if err != nil {
		log.Fatal("voxtrace: building camera: ", err)
	}

	mode := render.ModePathTrace
	if *preview {
		mode = render.ModePreview
	}
	r, err := render.New(*width, *height, *tile, camera.NewShared(cam), scene.Tracer(), mode, *seed)
	if err != nil {
		log.Fatal("voxtrace: building renderer: ", err)
	}

	r.ChangeSPP(uint32(*spp))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	for r.CurrentSPP() < uint32(*spp) {
		// The coordinator stops advancing once it reaches the target; poll
		// until it gets there, then pull the image and tear down.
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	if err := writePNG(*out, *width, *height, r.GetImage(nil)); err != nil {
		log.Fatal("voxtrace: writing PNG: ", err)
	}
}

func writePNG(path string, width, height int, rgba []byte) error {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	copy(img.Pix, rgba)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

// buildDemoScene constructs a small checkerboard slab of textured cube
// blocks, a stand-in for what a Minecraft world/chunk loader collaborator
// would otherwise hand voxtrace (spec.md §6 External Interfaces).
func buildDemoScene() (*voxtrace.Scene, error) {
	const (
		red   = 0
		green = 1
	)
	materials := []material.Material{
		red:   {TextureIndex: red, Specular: 0.05, Roughness: 0.6},
		green: {TextureIndex: green, Specular: 0.05, Roughness: 0.6},
	}
	textures := []material.Texture{
		red:   material.NewSolidColorTexture(vec3.Vec4{X: 0.8, Y: 0.15, Z: 0.1, W: 1}),
		green: material.NewSolidColorTexture(vec3.Vec4{X: 0.15, Y: 0.6, Z: 0.15, W: 1}),
	}

	b := voxtrace.NewBuilder()
	b.SetMaterials(materials)
	b.SetTextures(textures)
	b.SetSun(sun.NewSun(
		vec3.Unit(vec3.Vec{X: 0.3, Y: 0.8, Z: 0.2}), 0.03, 8,
		vec3.Vec{X: 1, Y: 0.95, Z: 0.85},
		vec3.Vec{X: 0.4, Y: 0.6, Z: 0.9},
		vec3.Vec{X: 0.8, Y: 0.85, Z: 0.9},
	))
	b.SetSampling(voxtrace.SamplingConfig{BranchMax: 4, SunSampling: true})

	const slabSize = 8
	resolveBlock := func(pos [3]int32) (uint32, bool) {
		if pos[1] != 0 || pos[0] < 0 || pos[0] >= slabSize || pos[2] < 0 || pos[2] >= slabSize {
			return 0, false
		}
		if (pos[0]+pos[2])%2 == 0 {
			return red, true
		}
		return green, true
	}
	modelQuads := func(id uint32) []model.Quad {
		return cubeQuads(id)
	}

	return b.Build(4, resolveBlock, modelQuads)
}

// cubeQuads builds the 6 unit-cube faces for a single-material block, the
// model-manager-side representation of spec.md §4.3's SingleBlock model
// expressed as an explicit QuadSet (the external interface only exposes
// model_quads, per spec.md §6).
func cubeQuads(materialID uint32) []model.Quad {
	tint := vec3.Vec{X: 1, Y: 1, Z: 1}
	o := vec3.Vec{}
	x := vec3.Vec{X: 1}
	y := vec3.Vec{Y: 1}
	z := vec3.Vec{Z: 1}
	return []model.Quad{
		model.NewQuad(o, z, y, materialID, tint, interval.Unit, interval.Unit),                      // -X
		model.NewQuad(vec3.Add(o, x), y, z, materialID, tint, interval.Unit, interval.Unit),          // +X
		model.NewQuad(o, x, z, materialID, tint, interval.Unit, interval.Unit),                       // -Y
		model.NewQuad(vec3.Add(o, y), z, x, materialID, tint, interval.Unit, interval.Unit),          // +Y
		model.NewQuad(o, y, x, materialID, tint, interval.Unit, interval.Unit),                       // -Z
		model.NewQuad(vec3.Add(o, z), x, y, materialID, tint, interval.Unit, interval.Unit),          // +Z
	}
}
