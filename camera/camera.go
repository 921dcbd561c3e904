// Package camera implements the minimal pinhole camera the tile renderer
// needs to turn a normalized pixel coordinate into a world-space ray
// (spec.md §4.5's "Normalized pixel coordinates" and §5's mutex-protected,
// per-tile-snapshotted camera). Interactive manipulation (orbit, pan,
// zoom UI) is an excluded collaborator per spec.md §1 — this package only
// exposes the read path a renderer needs.
package camera

import (
	"errors"
	"math/rand/v2"
	"sync"

	"github.com/chewxy/math32"

	"github.com/soypat/voxtrace/ray"
	"github.com/soypat/voxtrace/vec3"
)

// Camera is a pinhole camera: an eye position, an orthonormal basis
// (Forward, Right, Up) and a vertical field of view.
type Camera struct {
	Origin         vec3.Vec
	Forward, Right, Up vec3.Vec
	// TanHalfFOV is tan(fov/2); precomputed so Ray need not call Tan per
	// pixel.
	TanHalfFOV float32
	Aspect     float32
}

// New builds a Camera looking from origin toward target, with the given
// up hint, vertical field of view in radians and aspect ratio
// (width/height). Returns an error if fovY is out of (0,π) or forward
// degenerates (origin == target).
func New(origin, target, upHint vec3.Vec, fovY, aspect float32) (Camera, error) {
	if fovY <= 0 || fovY >= math32.Pi {
		return Camera{}, errors.New("camera: fov must be in (0,pi)")
	}
	if aspect <= 0 {
		return Camera{}, errors.New("camera: aspect must be positive")
	}
	fwd := vec3.Sub(target, origin)
	if vec3.Norm(fwd) == 0 {
		return Camera{}, errors.New("camera: origin and target coincide")
	}
	fwd = vec3.Unit(fwd)
	right := vec3.Unit(vec3.Cross(fwd, upHint))
	if vec3.Norm(right) == 0 {
		// upHint parallel to forward: fall back to world +X.
		right = vec3.Unit(vec3.Cross(fwd, vec3.Vec{X: 1}))
	}
	up := vec3.Cross(right, fwd)
	return Camera{
		Origin:     origin,
		Forward:    fwd,
		Right:      right,
		Up:         up,
		TanHalfFOV: math32.Tan(fovY / 2),
		Aspect:     aspect,
	}, nil
}

// Ray returns the camera ray through normalized device coordinates xn, yn
// (each nominally in [-1,1], per spec.md §4.5's D = max(W,H) normalization
// performed by the caller).
func (c Camera) Ray(xn, yn float32) ray.Ray {
	// With D = max(W,H), yn spans ±H/D; scaling both axes by D/H =
	// max(Aspect,1) makes the vertical extent exactly TanHalfFOV and keeps
	// pixels square.
	k := c.TanHalfFOV * math32.Max(c.Aspect, 1)
	dir := vec3.Add(c.Forward,
		vec3.Add(
			vec3.Scale(xn*k, c.Right),
			vec3.Scale(yn*k, c.Up),
		),
	)
	return ray.New(c.Origin, dir)
}

// Shared is a mutex-protected Camera for concurrent renderer access
// (spec.md §5: "the camera (mutex-protected; readers snapshot a copy per
// tile)").
type Shared struct {
	mu sync.RWMutex
	c  Camera
}

// NewShared wraps c for concurrent access.
func NewShared(c Camera) *Shared { return &Shared{c: c} }

// Snapshot returns a copy of the current camera state, safe to use from a
// tile goroutine without holding any lock for the tile's lifetime.
func (s *Shared) Snapshot() Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c
}

// Set replaces the camera atomically.
func (s *Shared) Set(c Camera) {
	s.mu.Lock()
	s.c = c
	s.mu.Unlock()
}

// Jitter returns xn,yn perturbed by up to ±1/d in each axis, per spec.md
// §4.5's path-trace-mode antialiasing jitter.
func Jitter(xn, yn, d float32, rng *rand.Rand) (float32, float32) {
	jx := (rng.Float32()*2 - 1) / d
	jy := (rng.Float32()*2 - 1) / d
	return xn + jx, yn + jy
}
