// Package vec3 implements the float32 vector algebra used throughout the
// tracer: ray directions, voxel positions, surface normals and RGBA color.
// Functions are free functions operating on value types, following the
// same style as the ms2/ms3 packages in the geometry toolkit this module
// grew out of.
package vec3

import "github.com/chewxy/math32"

// Vec is a 3-component float32 vector.
type Vec struct {
	X, Y, Z float32
}

// Vec4 is a 4-component float32 vector, used for RGBA color and alpha-bearing
// radiance accumulation.
type Vec4 struct {
	X, Y, Z, W float32
}

// Box is an axis-aligned bounding box.
type Box struct {
	Min, Max Vec
}

func Add(a, b Vec) Vec { return Vec{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func Sub(a, b Vec) Vec { return Vec{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }

// Scale multiplies v by scalar k.
func Scale(k float32, v Vec) Vec { return Vec{k * v.X, k * v.Y, k * v.Z} }

func MulElem(a, b Vec) Vec { return Vec{a.X * b.X, a.Y * b.Y, a.Z * b.Z} }
func DivElem(a, b Vec) Vec { return Vec{a.X / b.X, a.Y / b.Y, a.Z / b.Z} }

func AddScalar(k float32, v Vec) Vec { return Vec{v.X + k, v.Y + k, v.Z + k} }

func Dot(a, b Vec) float32 { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }

func Cross(a, b Vec) Vec {
	return Vec{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}

func Norm(v Vec) float32 { return math32.Sqrt(Dot(v, v)) }

// Unit returns v scaled to unit length. Returns the zero vector for a
// zero-length input rather than producing NaN.
func Unit(v Vec) Vec {
	n := Norm(v)
	if n == 0 {
		return Vec{}
	}
	return Scale(1/n, v)
}

func Neg(v Vec) Vec { return Vec{-v.X, -v.Y, -v.Z} }

func MaxElem(a, b Vec) Vec {
	return Vec{math32.Max(a.X, b.X), math32.Max(a.Y, b.Y), math32.Max(a.Z, b.Z)}
}

func MinElem(a, b Vec) Vec {
	return Vec{math32.Min(a.X, b.X), math32.Min(a.Y, b.Y), math32.Min(a.Z, b.Z)}
}

func AbsElem(v Vec) Vec {
	return Vec{math32.Abs(v.X), math32.Abs(v.Y), math32.Abs(v.Z)}
}

// Max returns the largest component of v.
func (v Vec) Max() float32 { return math32.Max(v.X, math32.Max(v.Y, v.Z)) }

// Min returns the smallest component of v.
func (v Vec) Min() float32 { return math32.Min(v.X, math32.Min(v.Y, v.Z)) }

// Array returns the vector's components as [X,Y,Z].
func (v Vec) Array() [3]float32 { return [3]float32{v.X, v.Y, v.Z} }

// Component returns the i'th component of v, i in [0,3).
func (v Vec) Component(i int) float32 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

func Clamp(v, lo, hi Vec) Vec {
	return Vec{
		clampf(v.X, lo.X, hi.X),
		clampf(v.Y, lo.Y, hi.Y),
		clampf(v.Z, lo.Z, hi.Z),
	}
}

func clampf(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	} else if v > hi {
		return hi
	}
	return v
}

func ClampScalar(v, lo, hi float32) float32 { return clampf(v, lo, hi) }

// Lerp linearly interpolates between a and b by t in [0,1].
func Lerp(a, b Vec, t float32) Vec {
	return Add(Scale(1-t, a), Scale(t, b))
}

// Reflect reflects d about normal n (n must be unit length).
func Reflect(d, n Vec) Vec {
	return Sub(d, Scale(2*Dot(d, n), n))
}

// Refract computes the refracted direction of unit vector d crossing an
// interface with unit normal n (pointing against d) and relative index of
// refraction eta = n1/n2. The second return value is false on total internal
// reflection, in which case the first return value is unspecified.
func Refract(d, n Vec, eta float32) (Vec, bool) {
	cosi := -Dot(d, n)
	sin2t := eta * eta * (1 - cosi*cosi)
	if sin2t > 1 {
		return Vec{}, false
	}
	cost := math32.Sqrt(1 - sin2t)
	return Add(Scale(eta, d), Scale(eta*cosi-cost, n)), true
}

// Schlick computes the Schlick approximation of the Fresnel reflectance for
// a ray hitting an interface at cosine cosi with relative index eta = n1/n2.
func Schlick(cosi, eta float32) float32 {
	r0 := (1 - eta) / (1 + eta)
	r0 *= r0
	x := 1 - cosi
	return r0 + (1-r0)*x*x*x*x*x
}

func NewCenteredBox(center, size Vec) Box {
	half := Scale(0.5, size)
	return Box{Min: Sub(center, half), Max: Add(center, half)}
}

func (b Box) Size() Vec   { return Sub(b.Max, b.Min) }
func (b Box) Center() Vec { return Scale(0.5, Add(b.Min, b.Max)) }

// AddRadiance adds two RGBA radiance samples componentwise, including
// alpha.
func AddRadiance(a, b Vec4) Vec4 {
	return Vec4{X: a.X + b.X, Y: a.Y + b.Y, Z: a.Z + b.Z, W: a.W + b.W}
}

// ScaleRadiance scales all four components of c by k.
func ScaleRadiance(k float32, c Vec4) Vec4 {
	return Vec4{X: k * c.X, Y: k * c.Y, Z: k * c.Z, W: k * c.W}
}

// MulRadianceRGB tints a by b's RGB channels, keeping a's alpha.
func MulRadianceRGB(a, b Vec4) Vec4 {
	return Vec4{X: a.X * b.X, Y: a.Y * b.Y, Z: a.Z * b.Z, W: a.W}
}

// SlabHit performs the ray/AABB slab test. ok is false when the ray misses
// the box or the box is entirely behind the ray origin.
func SlabHit(origin, invDir Vec, b Box) (tMin, tMax float32, ok bool) {
	t0 := MulElem(Sub(b.Min, origin), invDir)
	t1 := MulElem(Sub(b.Max, origin), invDir)
	tsmall := MinElem(t0, t1)
	tbig := MaxElem(t0, t1)
	tMin = math32.Max(0, tsmall.Max())
	tMax = tbig.Min()
	ok = tMin <= tMax
	return tMin, tMax, ok
}
