// Package model implements per-primitive intersection against a voxel's
// block model: the SingleBlock (6 opaque faces) and QuadSet (arbitrary
// textured quads) kinds of spec.md §4.3.
//
// Quads are defined in a block-local unit cube [0,1]^3; the traversal
// passes each leaf's integer world corner (one world unit per voxel) so
// intersection math stays in exact block-integer coordinates, matching
// spec.md §4.2's "voxel's unmirrored corner" handoff.
package model

import (
	"github.com/soypat/voxtrace/interval"
	"github.com/soypat/voxtrace/material"
	"github.com/soypat/voxtrace/ray"
	"github.com/soypat/voxtrace/vec3"
)

// AlphaEpsilon is the minimum alpha considered opaque-enough to commit a
// hit, per spec.md §4.3.
const AlphaEpsilon = 1e-3

// PlaneEpsilon bounds how head-on a quad may be to the ray before it is
// treated as degenerate (n·d too close to zero), per spec.md §4.3.
const PlaneEpsilon = 1e-6

// Quad is a textured planar primitive spanning a parallelogram with
// origin Origin and edge vectors U, V, per spec.md §3.
type Quad struct {
	Origin, U, V vec3.Vec
	// W is the barycentric basis vector derived from n = U×V, per spec.md's
	// Quad invariant: W = n/(n·n).
	W          vec3.Vec
	Normal     vec3.Vec
	D          float32
	MaterialID uint32
	Tint       vec3.Vec
	TexURange  interval.Interval
	TexVRange  interval.Interval
}

// NewQuad builds a Quad from its origin and edge vectors, deriving the
// normal, barycentric basis and plane offset.
func NewQuad(origin, u, v vec3.Vec, materialID uint32, tint vec3.Vec, texU, texV interval.Interval) Quad {
	n := vec3.Cross(u, v)
	q := Quad{
		Origin:     origin,
		U:          u,
		V:          v,
		W:          vec3.Scale(1/vec3.Dot(n, n), n),
		Normal:     vec3.Unit(n),
		MaterialID: materialID,
		Tint:       tint,
		TexURange:  texU,
		TexVRange:  texV,
	}
	q.D = vec3.Dot(q.Normal, origin)
	return q
}

// Intersect tests r against the quad, given the voxel's world corner.
// On a hit it returns the parametric distance t and UV within [0,1]^2.
func (q *Quad) Intersect(r *ray.Ray, voxelOrigin vec3.Vec) (t, u, v float32, ok bool) {
	nd := vec3.Dot(q.Normal, r.Direction)
	if nd > -PlaneEpsilon {
		return 0, 0, 0, false // Back-facing or edge-on: spec.md requires n·d < -ε.
	}
	relOrigin := vec3.Sub(r.Origin, voxelOrigin)
	t = (q.D - vec3.Dot(q.Normal, relOrigin)) / nd
	if t <= 0 || t > r.Hit.TNext {
		return 0, 0, 0, false
	}
	p := vec3.Sub(vec3.Add(relOrigin, vec3.Scale(t, r.Direction)), q.Origin)
	alpha := vec3.Dot(q.W, vec3.Cross(p, q.V))
	beta := vec3.Dot(q.W, vec3.Cross(q.U, p))
	if alpha < 0 || alpha > 1 || beta < 0 || beta > 1 {
		return 0, 0, 0, false
	}
	return t, alpha, beta, true
}

// sampleTexture maps quad-local (u,v) into the quad's texture UV ranges
// and samples the given texture.
func (q *Quad) sampleTexture(tex material.Texture, u, v float32) vec3.Vec4 {
	mu := q.TexURange.Lerp(u)
	mv := q.TexVRange.Lerp(v)
	c := tex.Sample(mu, mv)
	return vec3.Vec4{X: c.X * q.Tint.X, Y: c.Y * q.Tint.Y, Z: c.Z * q.Tint.Z, W: c.W}
}
