// Package render implements the tile-based progressive renderer of
// spec.md §4.5/§5: a coordinator goroutine owns the shared framebuffer and
// a message-driven control loop, and dispatches a T×T grid of tile
// goroutines per pass. Tile-local buffers are allocated once and reused
// across passes, the same acquire-once/reuse-without-realloc discipline
// gleval's bufPool uses for its evaluation scratch buffers (see
// DESIGN.md), adapted here to per-tile float accumulation instead of SDF
// evaluation scratch space.
package render

import "github.com/soypat/voxtrace/vec3"

// Mode selects which traversal variant a Renderer drives per pixel.
type Mode uint8

const (
	// ModePathTrace runs the full bounce path tracer per spec.md §4.4,
	// with per-pixel jitter for antialiasing.
	ModePathTrace Mode = iota
	// ModePreview paints flat-shaded albedo from the first hit with no
	// jitter and no bounce, per spec.md §4.2's "preview" traversal variant.
	ModePreview
)

// Status is the renderer's atomic lifecycle state, per spec.md §4.5/§5.
type Status int32

const (
	Running Status = iota
	Paused
	Stopped
)

func (s Status) String() string {
	switch s {
	case Running:
		return "Running"
	case Paused:
		return "Paused"
	case Stopped:
		return "Stopped"
	default:
		return "Status(?)"
	}
}

// Gamma is the render surface's output gamma, per spec.md §6.
const Gamma = 2.2

// blend implements spec.md §4.5's accumulation rule for a pixel already
// holding `old` after `spp` samples, folding in one new sample
// `contribution`: new = (old*spp + contribution)/(spp+1). A Tracer call
// already averages internally across its branch_count_at(spp) branches
// at the scattering-choice level (spec.md §4.4), so one Trace() call is
// exactly one sample at this layer (branch=1 in spec.md's formula).
func blend(old, contribution vec3.Vec4, spp uint32) vec3.Vec4 {
	if spp == 0 {
		return contribution
	}
	n := float32(spp)
	return vec3.Vec4{
		X: (old.X*n + contribution.X) / (n + 1),
		Y: (old.Y*n + contribution.Y) / (n + 1),
		Z: (old.Z*n + contribution.Z) / (n + 1),
		W: (old.W*n + contribution.W) / (n + 1),
	}
}
