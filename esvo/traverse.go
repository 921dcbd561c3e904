// Package esvo implements the Laine-Karras efficient sparse voxel octree
// traversal of spec.md §4.2: a stackful, non-recursive descent/ascent over
// an octree.Store that visits children in near-to-far order by mirroring
// the ray into the all-negative-direction octant. The IEEE-754 bit tricks
// (pop-scale via float/int reinterpretation) follow the same technique
// already used for sign comparisons in gleval's cached SDF evaluator (see
// DESIGN.md).
package esvo

import (
	"github.com/chewxy/math32"

	"github.com/soypat/voxtrace/material"
	"github.com/soypat/voxtrace/model"
	"github.com/soypat/voxtrace/octree"
	"github.com/soypat/voxtrace/ray"
	"github.com/soypat/voxtrace/vec3"
)

// MaxSteps bounds the main loop per spec.md §6, guarding against a
// malformed tree producing an infinite push/pop cycle.
const MaxSteps = 1000

// Mode selects which of the two traversal variants spec.md §4.2 describes.
type Mode uint8

const (
	// ModePathTrace commits the first opaque-enough hit along the ray.
	ModePathTrace Mode = iota
	// ModePreview commits the first hit exactly as ModePathTrace does;
	// Traverse itself does not branch on the mode. The caller paints the
	// flat-shaded albedo from the committed hit.
	ModePreview
)

// World bundles the collaborators a leaf dispatch needs: the model lookup
// plus the material/texture tables models index into (spec.md §6).
type World struct {
	Models    model.Lookup
	Materials []material.Material
	Textures  []material.Texture
}

type stackEntry struct {
	octant octree.OctantID
	tMax   float32
}

// Traverse walks store along r, dispatching the first qualifying leaf to
// its model's intersector. It returns true and updates r.Hit on a
// committed hit.
func Traverse(store *octree.Store, r *ray.Ray, world World, mode Mode) bool {
	root, ok := store.Root()
	if !ok || store.Depth == 0 {
		return false
	}
	if r.Hit.TNext <= 0 {
		r.Hit.TNext = math32.Inf(1)
	}
	// The pop-scale bit trick below reinterprets pos's raw float32 bits, so
	// scale must stay anchored to the fixed mantissa width (HardMaxDepth,
	// spec.md's MAX_SCALE) rather than to store.Depth: a tree shallower
	// than HardMaxDepth still only occupies the top Depth mantissa bits of
	// [1,2), but findMSB below returns bit positions in that fixed 0..23
	// space regardless of how deep the tree actually is.
	const maxScale = octree.HardMaxDepth

	dx := fixDirComponent(r.Direction.X)
	dy := fixDirComponent(r.Direction.Y)
	dz := fixDirComponent(r.Direction.Z)

	originScaled := vec3.AddScalar(1, vec3.Scale(store.Scale, r.Origin))
	tCoef := vec3.Vec{X: 1 / -math32.Abs(dx), Y: 1 / -math32.Abs(dy), Z: 1 / -math32.Abs(dz)}
	tBias := vec3.MulElem(tCoef, originScaled)

	var mirrorMask uint8
	if dx > 0 {
		mirrorMask |= 1
		tBias.X = 3*tCoef.X - tBias.X
	}
	if dy > 0 {
		mirrorMask |= 2
		tBias.Y = 3*tCoef.Y - tBias.Y
	}
	if dz > 0 {
		mirrorMask |= 4
		tBias.Z = 3*tCoef.Z - tBias.Z
	}

	tMin := math32.Max(0, max3(2*tCoef.X-tBias.X, 2*tCoef.Y-tBias.Y, 2*tCoef.Z-tBias.Z))
	tMax := min3(tCoef.X-tBias.X, tCoef.Y-tBias.Y, tCoef.Z-tBias.Z)
	h := tMax

	scale := maxScale - 1
	scaleExp2 := float32(0.5)
	pos := vec3.Vec{X: 1, Y: 1, Z: 1}
	var idx uint8
	if 1.5*tCoef.X-tBias.X > tMin {
		idx ^= 1
		pos.X = 1.5
	}
	if 1.5*tCoef.Y-tBias.Y > tMin {
		idx ^= 2
		pos.Y = 1.5
	}
	if 1.5*tCoef.Z-tBias.Z > tMin {
		idx ^= 4
		pos.Z = 1.5
	}

	var stack [octree.HardMaxDepth + 1]stackEntry
	parent := root

	for step := 0; step < MaxSteps; step++ {
		if scale >= maxScale {
			return false
		}
		oct := store.Octant(parent)
		childSlot := idx ^ mirrorMask
		child := oct.Children[childSlot]

		tCorner := vec3.Vec{
			X: pos.X*tCoef.X - tBias.X,
			Y: pos.Y*tCoef.Y - tBias.Y,
			Z: pos.Z*tCoef.Z - tBias.Z,
		}
		tcMax := min3(tCorner.X, tCorner.Y, tCorner.Z)

		handled := false
		if !child.IsNone() && tMin <= tMax {
			if leafValue, isLeaf := child.IsLeaf(); isLeaf {
				if tryLeaf(store, r, world, mode, leafValue, pos, tCorner, tMin, tMax, mirrorMask, scaleExp2, dx, dy, dz) {
					return true
				}
			} else if childID, isInterior := child.IsInterior(); isInterior {
				tvMax := math32.Min(tMax, tcMax)
				if tMin <= tvMax {
					half := scaleExp2 * 0.5
					tCenter := vec3.Vec{
						X: half*tCoef.X + tCorner.X,
						Y: half*tCoef.Y + tCorner.Y,
						Z: half*tCoef.Z + tCorner.Z,
					}
					if tcMax < h {
						stack[scale] = stackEntry{octant: parent, tMax: tMax}
					}
					h = tcMax
					parent = childID
					idx = 0
					scale--
					scaleExp2 = half
					if tCenter.X > tMin {
						idx ^= 1
						pos.X += scaleExp2
					}
					if tCenter.Y > tMin {
						idx ^= 2
						pos.Y += scaleExp2
					}
					if tCenter.Z > tMin {
						idx ^= 4
						pos.Z += scaleExp2
					}
					tMax = tvMax
					handled = true
				}
			}
		}
		if handled {
			continue
		}

		// Advance to the next sibling cell along the ray.
		var stepMask uint8
		if tCorner.X <= tcMax {
			stepMask ^= 1
			pos.X -= scaleExp2
		}
		if tCorner.Y <= tcMax {
			stepMask ^= 2
			pos.Y -= scaleExp2
		}
		if tCorner.Z <= tcMax {
			stepMask ^= 4
			pos.Z -= scaleExp2
		}
		tMin = tcMax
		idx ^= stepMask

		if idx&stepMask == 0 {
			continue // Still inside the parent: no pop needed.
		}

		// Pop: find the coarsest ancestor spanning the advance via the
		// exponent field of the XOR'd raw bits of the stepped axes.
		var differing uint32
		if stepMask&1 != 0 {
			differing |= math32.Float32bits(pos.X) ^ math32.Float32bits(pos.X+scaleExp2)
		}
		if stepMask&2 != 0 {
			differing |= math32.Float32bits(pos.Y) ^ math32.Float32bits(pos.Y+scaleExp2)
		}
		if stepMask&4 != 0 {
			differing |= math32.Float32bits(pos.Z) ^ math32.Float32bits(pos.Z+scaleExp2)
		}
		newScale := findMSB(differing)
		if newScale >= maxScale {
			return false // Ray left the tree.
		}
		scale = newScale
		scaleExp2 = math32.Float32frombits(uint32(scale-maxScale+127) << 23)

		entry := stack[scale]
		parent = entry.octant
		tMax = entry.tMax

		shx := math32.Float32bits(pos.X) >> uint(scale)
		shy := math32.Float32bits(pos.Y) >> uint(scale)
		shz := math32.Float32bits(pos.Z) >> uint(scale)
		pos.X = math32.Float32frombits(shx << uint(scale))
		pos.Y = math32.Float32frombits(shy << uint(scale))
		pos.Z = math32.Float32frombits(shz << uint(scale))
		idx = uint8(shx&1) | uint8((shy&1)<<1) | uint8((shz&1)<<2)
		h = 0
	}
	return false
}

// tryLeaf dispatches to the model occupying a leaf cell. It returns true
// only if the model committed an opaque-enough hit.
func tryLeaf(store *octree.Store, r *ray.Ray, world World, mode Mode, leafValue octree.LeafValue, pos, tCorner vec3.Vec, tMin, tMax float32, mirrorMask uint8, scaleExp2, dx, dy, dz float32) bool {
	mdl, found := world.Models.Model(leafValue)
	if !found {
		return false
	}
	axis := minAxisIndex(tCorner)
	axisPositive := axisSignPositive(axis, dx, dy, dz)
	face := model.FaceID(axis, axisPositive)

	corner := unmirrorCorner(pos, mirrorMask, scaleExp2)
	voxelOrigin := vec3.Scale(1/store.Scale, vec3.AddScalar(-1, corner))
	// The loop's t values live in the [1,2)^3 cube-space the origin was
	// scaled into; convert back to world-space distance (1 leaf = 1 unit)
	// before handing anything to a model, whose geometry is world-space.
	tEntryWorld := tMin / store.Scale
	tCellExitWorld := tMax / store.Scale

	savedTNext := r.Hit.TNext
	r.Hit.TNext = math32.Min(r.Hit.TNext, tCellExitWorld)
	if !mdl.Intersect(r, voxelOrigin, face, tEntryWorld, world.Materials, world.Textures) {
		r.Hit.TNext = savedTNext
		return false
	}
	// mode is not branched on here: both variants share this dispatch;
	// ModePreview differs only in what the caller does with the committed
	// hit (flat albedo vs. continuing the bounce state machine).
	_ = mode
	return true
}

// fixDirComponent replaces a near-zero direction component with a signed
// epsilon so that 1/-|d| never produces an infinity, per spec.md §4.2 step
// 1.
func fixDirComponent(d float32) float32 {
	if math32.Abs(d) >= ray.Epsilon {
		return d
	}
	if math32.Float32bits(d)>>31 != 0 {
		return -ray.Epsilon
	}
	return ray.Epsilon
}

// unmirrorCorner converts a cell's low corner, expressed in the
// all-negative-direction mirrored frame, back to the true [1,2)^3 corner.
func unmirrorCorner(pos vec3.Vec, mirrorMask uint8, scaleExp2 float32) vec3.Vec {
	c := pos
	if mirrorMask&1 != 0 {
		c.X = 3 - scaleExp2 - pos.X
	}
	if mirrorMask&2 != 0 {
		c.Y = 3 - scaleExp2 - pos.Y
	}
	if mirrorMask&4 != 0 {
		c.Z = 3 - scaleExp2 - pos.Z
	}
	return c
}

func minAxisIndex(v vec3.Vec) int {
	axis := 0
	best := v.X
	if v.Y < best {
		axis, best = 1, v.Y
	}
	if v.Z < best {
		axis = 2
	}
	return axis
}

func axisSignPositive(axis int, dx, dy, dz float32) bool {
	switch axis {
	case 0:
		return dx > 0
	case 1:
		return dy > 0
	default:
		return dz > 0
	}
}

func findMSB(x uint32) int {
	return int(math32.Float32bits(float32(x))>>23) - 127
}

func min3(a, b, c float32) float32 { return math32.Min(a, math32.Min(b, c)) }
func max3(a, b, c float32) float32 { return math32.Max(a, math32.Max(b, c)) }
