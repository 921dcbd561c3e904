// Package sun implements the sky gradient and sun-disk sampling consumed
// by camera-miss shading and the path tracer's next-event-estimation
// shadow rays (spec.md §4.4).
package sun

import (
	"math/rand/v2"

	"github.com/chewxy/math32"
	"github.com/soypat/voxtrace/vec3"
)

// MaxImportanceSampleChance clamps the sun-sampling probability in the
// shallow-angle annulus case to preserve MIS weights, per spec.md's
// Design Notes.
const MaxImportanceSampleChance = 0.9

// Sun describes the directional light and sky gradient of a scene.
type Sun struct {
	// Direction points from the scene toward the sun; unit length.
	Direction     vec3.Vec
	AngularRadius float32
	Color         vec3.Vec
	Intensity     float32
	SkyTop        vec3.Vec
	SkyHorizon    vec3.Vec
}

// NewSun builds a Sun, normalizing direction.
func NewSun(direction vec3.Vec, angularRadius, intensity float32, color, skyTop, skyHorizon vec3.Vec) Sun {
	return Sun{
		Direction:     vec3.Unit(direction),
		AngularRadius: angularRadius,
		Color:         color,
		Intensity:     intensity,
		SkyTop:        skyTop,
		SkyHorizon:    skyHorizon,
	}
}

// SkyColor returns the radiance seen along dir when a ray leaves the
// scene without hitting anything: a horizon-to-zenith gradient plus the
// sun disk itself where dir falls within its angular radius.
func (s Sun) SkyColor(dir vec3.Vec) vec3.Vec4 {
	d := vec3.Unit(dir)
	t := vec3.ClampScalar(d.Y*0.5+0.5, 0, 1)
	sky := vec3.Lerp(s.SkyHorizon, s.SkyTop, t)

	cosAngle := vec3.Dot(d, s.Direction)
	edge := math32.Cos(s.AngularRadius)
	if cosAngle > edge {
		glow := smoothstep(edge-0.01, edge, cosAngle)
		sky = vec3.Add(sky, vec3.Scale(s.Intensity*glow, s.Color))
	}
	return vec3.Vec4{X: sky.X, Y: sky.Y, Z: sky.Z, W: 1}
}

// DiffuseSkyAmbient approximates the sky radiance seen by a non-specular
// bounce ray that leaves the scene without hitting anything, without
// re-deriving the full gradient at that ray's direction.
func (s Sun) DiffuseSkyAmbient() vec3.Vec {
	return vec3.Lerp(s.SkyHorizon, s.SkyTop, 0.75)
}

// SampleDirection draws a direction toward the sun disk for a
// next-event-estimation shadow ray, uniformly over its solid-angle cap.
// It returns the sampled direction and its sampling probability (solid
// angle measure); normal is the surface normal at the shading point, used
// only to detect the shallow-angle annulus case where the sample-chance
// must be clamped per MaxImportanceSampleChance.
func (s Sun) SampleDirection(rng *rand.Rand, normal vec3.Vec) (dir vec3.Vec, pdf float32) {
	cosThetaMax := math32.Cos(s.AngularRadius)
	u1 := rng.Float32()
	u2 := rng.Float32()
	cosTheta := 1 - u1*(1-cosThetaMax)
	sinTheta := math32.Sqrt(math32.Max(0, 1-cosTheta*cosTheta))
	phi := 2 * math32.Pi * u2
	local := vec3.Vec{X: math32.Cos(phi) * sinTheta, Y: math32.Sin(phi) * sinTheta, Z: cosTheta}

	basisU, basisV := orthonormalBasis(s.Direction)
	dir = vec3.Add(
		vec3.Add(vec3.Scale(local.X, basisU), vec3.Scale(local.Y, basisV)),
		vec3.Scale(local.Z, s.Direction),
	)

	solidAngle := 2 * math32.Pi * (1 - cosThetaMax)
	pdf = 1 / solidAngle
	if vec3.Dot(normal, s.Direction) < 0.1 {
		// Shallow-angle annulus: the disk's projected cap would otherwise
		// bias the estimator toward the horizon; clamp the sample-chance.
		pdf = math32.Min(pdf, MaxImportanceSampleChance/solidAngle)
	}
	return dir, pdf
}

func orthonormalBasis(n vec3.Vec) (u, v vec3.Vec) {
	a := vec3.Vec{X: 1}
	if math32.Abs(n.X) > 0.9 {
		a = vec3.Vec{Y: 1}
	}
	u = vec3.Unit(vec3.Cross(a, n))
	v = vec3.Cross(n, u)
	return u, v
}

func smoothstep(edge0, edge1, x float32) float32 {
	t := vec3.ClampScalar((x-edge0)/(edge1-edge0), 0, 1)
	return t * t * (3 - 2*t)
}
