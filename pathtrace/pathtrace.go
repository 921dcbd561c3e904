// Package pathtrace implements the bounce state machine of spec.md §4.4:
// intersect, classify, and recurse through specular/diffuse/refractive/
// transmissive scattering, with sun next-event-estimation shadow rays.
// The bounce chain is bounded to MaxDepth and implemented as ordinary Go
// recursion rather than an explicit stack, per spec.md's Design Notes
// ("an iterative stack-machine implementation is acceptable" — not
// mandatory; a depth-bounded recursive call chain is the simpler
// equivalent here).
package pathtrace

import (
	"math/rand/v2"

	"github.com/chewxy/math32"

	"github.com/soypat/voxtrace/esvo"
	"github.com/soypat/voxtrace/material"
	"github.com/soypat/voxtrace/model"
	"github.com/soypat/voxtrace/octree"
	"github.com/soypat/voxtrace/ray"
	"github.com/soypat/voxtrace/sun"
	"github.com/soypat/voxtrace/vec3"
)

// MaxDepth bounds the number of bounces a path may take, per spec.md §6.
const MaxDepth = 5

// maxShadowSteps bounds the non-opaque surfaces a sun shadow ray may
// cross before giving up, independent of MaxDepth.
const maxShadowSteps = 16

// Scene bundles the read-only collaborators a Tracer traces against.
// Workers never write to any of these (spec.md §5).
type Scene struct {
	Octree    *octree.Store
	Models    model.Lookup
	Materials []material.Material
	Textures  []material.Texture
	Sun       sun.Sun
}

func (s *Scene) world() esvo.World {
	return esvo.World{Models: s.Models, Materials: s.Materials, Textures: s.Textures}
}

// BranchConfig controls how many samples are taken per scattering choice
// at the camera ray, per spec.md §4.4.
type BranchConfig struct {
	Max uint32
}

// branchCountAt returns the branch count for a camera ray that has
// already accumulated spp samples: it ramps down from Max to 1 as spp
// crosses sqrt(Max), so that early, noisy frames pay for extra branching
// and later frames — which already benefit from temporal averaging —
// don't.
func (c BranchConfig) branchCountAt(spp uint32) uint32 {
	if c.Max <= 1 {
		return 1
	}
	threshold := math32.Sqrt(float32(c.Max))
	if float32(spp) >= threshold {
		return 1
	}
	n := c.Max - spp
	if n < 1 {
		n = 1
	}
	if n > c.Max {
		n = c.Max
	}
	return n
}

// Tracer evaluates radiance along rays cast into a Scene.
type Tracer struct {
	Scene        *Scene
	Branch       BranchConfig
	SunSampling  bool
	StrictShadow bool // discard NEE shadow rays that crossed a refractive boundary
}

// Trace evaluates the radiance arriving along r. firstReflection marks a
// camera ray, which branches Branch.branchCountAt(spp) ways per
// scattering choice instead of once.
func (t *Tracer) Trace(r *ray.Ray, rng *rand.Rand, firstReflection bool, spp uint32) vec3.Vec4 {
	return t.bounce(*r, rng, 0, firstReflection, spp)
}

func (t *Tracer) branchesFor(firstReflection bool, spp uint32) uint32 {
	if !firstReflection {
		return 1
	}
	return t.Branch.branchCountAt(spp)
}

func (t *Tracer) bounce(r ray.Ray, rng *rand.Rand, depth uint8, firstReflection bool, spp uint32) vec3.Vec4 {
	r.Hit.TNext = math32.Inf(1)
	if !esvo.Traverse(t.Scene.Octree, &r, t.Scene.world(), esvo.ModePathTrace) {
		return t.missRadiance(r, depth)
	}
	if depth >= MaxDepth {
		return vec3.Vec4{W: 1}
	}

	mat := t.Scene.Materials[r.Hit.CurrentMaterialID]
	n := orientNormal(r.Hit.Normal, r.Direction)
	point := r.At(r.Hit.T)

	branches := t.branchesFor(firstReflection, spp)
	var sum vec3.Vec4
	for i := uint32(0); i < branches; i++ {
		sum = vec3.AddRadiance(sum, t.classify(r, point, n, mat, rng, depth))
	}
	return vec3.ScaleRadiance(1/float32(branches), sum)
}

// missRadiance implements step 1 of spec.md §4.4 for the no-hit case.
func (t *Tracer) missRadiance(r ray.Ray, depth uint8) vec3.Vec4 {
	if depth == 0 || r.Hit.Specular {
		return t.Scene.Sun.SkyColor(r.Direction)
	}
	amb := t.Scene.Sun.DiffuseSkyAmbient()
	return vec3.Vec4{X: amb.X, Y: amb.Y, Z: amb.Z, W: 1}
}

// classify implements step 2 of spec.md §4.4.
func (t *Tracer) classify(r ray.Ray, point, n vec3.Vec, mat material.Material, rng *rand.Rand, depth uint8) vec3.Vec4 {
	u := rng.Float32()
	switch {
	case u < mat.Metalness:
		return t.specular(r, point, n, mat, rng, depth, true)
	case u < mat.Metalness+mat.Specular:
		return t.specular(r, point, n, mat, rng, depth, false)
	case u < mat.Metalness+mat.Specular+r.Hit.Color.W:
		return t.diffuse(r, point, n, mat, rng, depth)
	case mat.Flags.Has(material.Refractive):
		return t.refract(r, point, n, mat, rng, depth)
	default:
		return t.transmit(r, point, n, mat, rng, depth)
	}
}

// specular implements step 3.
func (t *Tracer) specular(r ray.Ray, point, n vec3.Vec, mat material.Material, rng *rand.Rand, depth uint8, metal bool) vec3.Vec4 {
	d := vec3.Reflect(r.Direction, n)
	if mat.Roughness > 0 {
		d = ray.PerturbSpecular(d, mat.Roughness, rng)
	}
	next := ray.New(vec3.Add(point, vec3.Scale(ray.Offset, n)), d)
	next.Hit.Specular = true
	next.Hit.PreviousMaterialID = r.Hit.CurrentMaterialID
	radiance := t.bounce(next, rng, depth+1, false, 0)
	if metal {
		radiance = vec3.MulRadianceRGB(radiance, r.Hit.Color)
	}
	return radiance
}

// diffuse implements step 4.
func (t *Tracer) diffuse(r ray.Ray, point, n vec3.Vec, mat material.Material, rng *rand.Rand, depth uint8) vec3.Vec4 {
	d := ray.CosineWeightedHemisphere(n, rng)
	next := ray.New(vec3.Add(point, vec3.Scale(ray.Offset, n)), d)
	next.Hit.Specular = false
	next.Hit.PreviousMaterialID = r.Hit.CurrentMaterialID
	indirect := vec3.MulRadianceRGB(t.bounce(next, rng, depth+1, false, 0), r.Hit.Color)

	if !t.SunSampling {
		return indirect
	}
	direct := vec3.MulRadianceRGB(t.sampleSun(point, n, rng), r.Hit.Color)
	return vec3.AddRadiance(indirect, direct)
}

// refract implements step 5.
func (t *Tracer) refract(r ray.Ray, point, n vec3.Vec, mat material.Material, rng *rand.Rand, depth uint8) vec3.Vec4 {
	entering := vec3.Dot(r.Direction, n) < 0
	eta := 1 / mat.IOR
	normal := n
	if !entering {
		eta = mat.IOR
		normal = vec3.Neg(n)
	}
	cosi := -vec3.Dot(r.Direction, normal)
	reflectProb := vec3.Schlick(cosi, eta)
	refracted, ok := vec3.Refract(r.Direction, normal, eta)
	if !ok || rng.Float32() < reflectProb {
		return t.specular(r, point, n, mat, rng, depth, false)
	}
	next := ray.New(vec3.Add(point, vec3.Scale(-ray.Offset, normal)), refracted)
	next.Hit.Specular = true
	next.Hit.PreviousMaterialID = r.Hit.CurrentMaterialID
	radiance := t.bounce(next, rng, depth+1, false, 0)
	absorption := r.Hit.Color.W
	return vec3.ScaleRadiance(absorption, radiance)
}

// transmit implements step 6.
func (t *Tracer) transmit(r ray.Ray, point, n vec3.Vec, mat material.Material, rng *rand.Rand, depth uint8) vec3.Vec4 {
	next := ray.New(vec3.Add(point, vec3.Scale(ray.Offset, r.Direction)), r.Direction)
	next.Hit.Specular = r.Hit.Specular
	next.Hit.PreviousMaterialID = r.Hit.CurrentMaterialID
	radiance := t.bounce(next, rng, depth+1, false, 0)
	return vec3.MulRadianceRGB(radiance, r.Hit.Color)
}

// sampleSun draws one shadow ray toward the sun disk and returns its
// unobstructed contribution, per spec.md §4.4's "Sun NEE shadow".
func (t *Tracer) sampleSun(point, n vec3.Vec, rng *rand.Rand) vec3.Vec4 {
	dir, pdf := t.Scene.Sun.SampleDirection(rng, n)
	cosTheta := vec3.Dot(n, dir)
	if cosTheta <= 0 || pdf <= 0 {
		return vec3.Vec4{}
	}
	shadow := ray.New(vec3.Add(point, vec3.Scale(ray.Offset, n)), dir)
	attenuation, unobstructed := t.traceShadow(&shadow)
	if !unobstructed {
		return vec3.Vec4{}
	}
	weight := attenuation * cosTheta / pdf
	radiance := vec3.Scale(weight*t.Scene.Sun.Intensity, t.Scene.Sun.Color)
	return vec3.Vec4{X: radiance.X, Y: radiance.Y, Z: radiance.Z, W: 1}
}

// traceShadow walks r like a primary ray, multiplicatively attenuating by
// (1-alpha) at each non-opaque surface and terminating on the first
// opaque one. In strict mode it discards rays that crossed any
// refractive boundary, per spec.md §4.4.
func (t *Tracer) traceShadow(r *ray.Ray) (attenuation float32, unobstructed bool) {
	attenuation = 1
	for steps := 0; steps < maxShadowSteps; steps++ {
		r.Hit.TNext = math32.Inf(1)
		if !esvo.Traverse(t.Scene.Octree, r, t.Scene.world(), esvo.ModePathTrace) {
			return attenuation, true
		}
		mat := t.Scene.Materials[r.Hit.CurrentMaterialID]
		if t.StrictShadow && mat.Flags.Has(material.Refractive) {
			return 0, false
		}
		alpha := r.Hit.Color.W
		if alpha >= 1 {
			return 0, false
		}
		attenuation *= 1 - alpha
		point := r.At(r.Hit.T)
		*r = ray.New(vec3.Add(point, vec3.Scale(ray.Offset, r.Direction)), r.Direction)
	}
	return 0, false
}

func orientNormal(n, d vec3.Vec) vec3.Vec {
	if vec3.Dot(n, d) > 0 {
		return vec3.Neg(n)
	}
	return n
}
