// Package ray implements ray state and the scattering-sample math
// (cosine-weighted hemisphere, specular reflection/refraction) shared by
// the ESVO traversal and the path tracer.
package ray

import (
	"math/rand/v2"

	"github.com/chewxy/math32"
	"github.com/soypat/voxtrace/vec3"
)

// Epsilon is the minimum magnitude allowed for a direction component before
// it is replaced by a signed epsilon, per spec.md §4.2 step 1 and the
// MAX_STEPS/ε constants of §6.
const Epsilon = 1.1920929e-7

// Offset nudges a ray origin off a surface to avoid immediate
// self-intersection on the next traversal, per spec.md §6 OFFSET.
const Offset = 1e-6

// HitRecord carries the result of the most recent intersection along a ray,
// per spec.md §3.
type HitRecord struct {
	T, TNext           float32
	U, V               float32
	Normal             vec3.Vec
	CurrentMaterialID  uint32
	PreviousMaterialID uint32
	Color              vec3.Vec4
	Depth              uint8
	Specular           bool
}

// Ray is mutable ray state threaded through traversal and the path tracer.
type Ray struct {
	Origin            vec3.Vec
	Direction         vec3.Vec
	InvDirection      vec3.Vec
	DistanceTravelled float32
	Hit               HitRecord
}

// New builds a Ray from an origin and direction, normalizing the direction
// and epsilon-clamping each component before computing InvDirection, per
// spec.md's Ray invariant. A zero-length or NaN direction is corrected to
// +Y ("up") per spec.md §7 "Degenerate ray" — callers are expected to log
// this occurrence; New itself only corrects it.
func New(origin, direction vec3.Vec) Ray {
	d := vec3.Unit(direction)
	if d == (vec3.Vec{}) || isNaNVec(d) {
		d = vec3.Vec{Y: 1}
	}
	d = clampEps(d)
	inv := vec3.Vec{X: 1 / d.X, Y: 1 / d.Y, Z: 1 / d.Z}
	return Ray{Origin: origin, Direction: d, InvDirection: inv}
}

func isNaNVec(v vec3.Vec) bool {
	return math32.IsNaN(v.X) || math32.IsNaN(v.Y) || math32.IsNaN(v.Z)
}

func clampEps(d vec3.Vec) vec3.Vec {
	return vec3.Vec{X: clampComponent(d.X), Y: clampComponent(d.Y), Z: clampComponent(d.Z)}
}

func clampComponent(v float32) float32 {
	if math32.Abs(v) < Epsilon {
		if math32.Signbit(v) {
			return -Epsilon
		}
		return Epsilon
	}
	return v
}

// At returns the point at distance t along the ray.
func (r *Ray) At(t float32) vec3.Vec {
	return vec3.Add(r.Origin, vec3.Scale(t, r.Direction))
}

// CosineWeightedHemisphere samples a direction around unit normal n with a
// cosine-weighted distribution, used by diffuse scattering (spec.md §4.4
// step 4).
func CosineWeightedHemisphere(n vec3.Vec, rng *rand.Rand) vec3.Vec {
	u1, u2 := rng.Float32(), rng.Float32()
	r := math32.Sqrt(u1)
	theta := 2 * math32.Pi * u2
	x := r * math32.Cos(theta)
	y := r * math32.Sin(theta)
	z := math32.Sqrt(math32.Max(0, 1-u1))
	t, b := orthonormalBasis(n)
	return vec3.Add(vec3.Add(vec3.Scale(x, t), vec3.Scale(y, b)), vec3.Scale(z, n))
}

// orthonormalBasis returns two unit vectors orthogonal to n and to each
// other, completing a right-handed basis with n.
func orthonormalBasis(n vec3.Vec) (t, b vec3.Vec) {
	var sign float32 = 1
	if n.Z < 0 {
		sign = -1
	}
	a := -1 / (sign + n.Z)
	c := n.X * n.Y * a
	t = vec3.Vec{X: 1 + sign*n.X*n.X*a, Y: sign * c, Z: -sign * n.X}
	b = vec3.Vec{X: c, Y: sign + n.Y*n.Y*a, Z: -n.Y}
	return t, b
}

// PerturbSpecular perturbs a perfectly specular direction d by a
// cosine-weighted sample scaled by roughness, per spec.md §4.4 step 3.
func PerturbSpecular(d vec3.Vec, roughness float32, rng *rand.Rand) vec3.Vec {
	if roughness <= 0 {
		return d
	}
	perturbed := CosineWeightedHemisphere(d, rng)
	return vec3.Unit(vec3.Lerp(d, perturbed, roughness))
}
