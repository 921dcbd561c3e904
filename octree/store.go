// Package octree implements the pooled, mutable sparse octree described in
// spec.md §3/§4.1: an arena of octants with a free list, position-indexed
// insertion/removal, and a parallel bottom-up construction protocol. The
// arena/free-list discipline is adapted from the acquire/release buffer
// pooling pattern in the geometry toolkit this module grew out of
// (see DESIGN.md).
package octree

import (
	"errors"
	"fmt"
)

// HardMaxDepth is the maximum octree depth the traversal's IEEE float
// bit-trick can address, per spec.md §6 MAX_SCALE.
const HardMaxDepth = 23

// LeafValue identifies the model occupying a leaf voxel.
type LeafValue = uint32

// OctantID is a stable, non-owning index into a Store's octant arena.
// NoOctant denotes the absence of a node.
type OctantID int32

// NoOctant is the sentinel value meaning "no node".
const NoOctant OctantID = -1

// childKind discriminates the three mutually-exclusive states a Child slot
// can hold. A tagged struct is used instead of three parallel arrays or an
// interface: these states occupy very different widths and are mutually
// exclusive per slot (spec.md §9 Design Notes).
type childKind uint8

const (
	childNone childKind = iota
	childInterior
	childLeaf
)

// Child is one of the eight slots of an Octant.
type Child struct {
	kind childKind
	id   OctantID // valid when kind == childInterior
	leaf LeafValue
}

// IsNone reports whether the slot holds no child.
func (c Child) IsNone() bool { return c.kind == childNone }

// IsInterior reports whether the slot holds an interior (non-leaf) child
// and, if so, returns its id.
func (c Child) IsInterior() (OctantID, bool) { return c.id, c.kind == childInterior }

// IsLeaf reports whether the slot holds a leaf and, if so, returns its value.
func (c Child) IsLeaf() (LeafValue, bool) { return c.leaf, c.kind == childLeaf }

// Octant is one internal node of the tree: eight child slots plus a
// back-reference to its parent. Parent edges are non-owning back-indices
// into the same arena, never owning handles, so compaction needs no cycle
// detection (spec.md §9 Design Notes).
type Octant struct {
	Parent     OctantID
	ChildCount uint8
	Children   [8]Child
}

// LeafID stably references a leaf slot under a specific parent octant.
type LeafID struct {
	Parent OctantID
	Idx    uint8
}

// Store is the pooled octree: an arena of octants, a free list of recycled
// ids, and the tree's current depth/scale. Construct an empty octree with
// NewStore; the zero value is not usable, since its root field is 0
// rather than NoOctant.
type Store struct {
	root     OctantID
	octants  []Octant
	freeList []OctantID
	Depth    uint8
	// Scale is 2^-Depth, the world-space size of one unit cell at the
	// deepest level (spec.md §3).
	Scale float32
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{root: NoOctant, Scale: 1}
}

// Root returns the id of the root octant and whether one exists.
func (s *Store) Root() (OctantID, bool) { return s.root, s.root != NoOctant }

// Octant returns the octant at id. Panics on an out-of-range id: per
// spec.md §4.1 "Failure semantics", dereferencing an invalid id is a logic
// error, not a recoverable condition.
func (s *Store) Octant(id OctantID) *Octant {
	if id < 0 || int(id) >= len(s.octants) {
		panic(fmt.Sprintf("octree: octant id %d out of range [0,%d)", id, len(s.octants)))
	}
	return &s.octants[id]
}

// Len returns the number of octants currently allocated, including any
// still sitting on the free list.
func (s *Store) Len() int { return len(s.octants) }

func (s *Store) alloc(parent OctantID) OctantID {
	if n := len(s.freeList); n > 0 {
		id := s.freeList[n-1]
		s.freeList = s.freeList[:n-1]
		s.octants[id] = Octant{Parent: parent}
		return id
	}
	s.octants = append(s.octants, Octant{Parent: parent})
	return OctantID(len(s.octants) - 1)
}

func (s *Store) free(id OctantID) {
	s.freeList = append(s.freeList, id)
}

// childBit returns 0 or 1: which half of the axis range [0, 1<<(level+1))
// position p falls into, at the given level (level 0 = finest).
func childBit(p int32, level int) int32 { return (p >> uint(level)) & 1 }

// childIndex computes the canonical child slot for a sub-position, per
// spec.md §4.1: idx = x + 2y + 4z.
func childIndex(pos [3]int32, level int) uint8 {
	x := childBit(pos[0], level)
	y := childBit(pos[1], level)
	z := childBit(pos[2], level)
	return uint8(x + 2*y + 4*z)
}

// requiredDepth returns the smallest depth d such that pos lies within
// [0, 2^d)^3, or an error if pos has a negative component or needs more
// than HardMaxDepth.
func requiredDepth(pos [3]int32) (uint8, error) {
	for _, c := range pos {
		if c < 0 {
			return 0, errors.New("octree: negative coordinate")
		}
	}
	var d uint8
	for d = 0; d < HardMaxDepth; d++ {
		lim := int32(1) << d
		if pos[0] < lim && pos[1] < lim && pos[2] < lim {
			return d, nil
		}
	}
	lim := int32(1) << HardMaxDepth
	if pos[0] < lim && pos[1] < lim && pos[2] < lim {
		return HardMaxDepth, nil
	}
	return 0, fmt.Errorf("octree: position %v requires depth beyond hard max %d", pos, HardMaxDepth)
}

// expandTo grows the tree, if necessary, so that Depth >= depth. Growth
// wraps the current root as child slot 0 of a freshly allocated parent,
// repeating until the target depth is reached. Per spec.md's Design Notes
// open question, shrinking is unimplemented and treated as a no-op: no call
// site ever needs Depth to decrease.
func (s *Store) expandTo(depth uint8) {
	for s.Depth < depth {
		newRoot := s.alloc(NoOctant)
		if s.root != NoOctant {
			old := s.root
			s.octants[old].Parent = newRoot
			s.octants[newRoot].Children[0] = Child{kind: childInterior, id: old}
			s.octants[newRoot].ChildCount = 1
		}
		s.root = newRoot
		s.Depth++
		s.Scale = scaleForDepth(s.Depth)
	}
}

func scaleForDepth(depth uint8) float32 {
	s := float32(1)
	for i := uint8(0); i < depth; i++ {
		s *= 0.5
	}
	return s
}

// SetLeaf inserts value at the integer lattice position pos, expanding the
// tree as needed. It returns the LeafID of the slot written and the
// previous leaf value at that position, if any (spec.md §4.1).
func (s *Store) SetLeaf(pos [3]int32, value LeafValue) (LeafID, LeafValue, bool, error) {
	required, err := requiredDepth(pos)
	if err != nil {
		return LeafID{}, 0, false, err
	}
	if required == 0 {
		required = 1 // A depth-0 tree cannot hold a leaf slot.
	}
	if s.Depth < required {
		s.expandTo(required)
	}
	if s.root == NoOctant {
		s.root = s.alloc(NoOctant)
	}

	node := s.root
	for level := int(s.Depth) - 1; level >= 1; level-- {
		idx := childIndex(pos, level)
		child := s.octants[node].Children[idx]
		switch child.kind {
		case childNone:
			newChild := s.alloc(node)
			s.octants[node].Children[idx] = Child{kind: childInterior, id: newChild}
			s.octants[node].ChildCount++
			node = newChild
		case childInterior:
			node = child.id
		case childLeaf:
			// A leaf sitting above the deepest level is a corruption of the
			// expand-only-from-corner-zero invariant.
			panic("octree: encountered leaf above deepest level during descent")
		}
	}
	idx := childIndex(pos, 0)
	prev := s.octants[node].Children[idx]
	s.octants[node].Children[idx] = Child{kind: childLeaf, leaf: value}
	if prev.kind == childNone {
		s.octants[node].ChildCount++
	}
	prevLeaf, hadPrev := prev.IsLeaf()
	return LeafID{Parent: node, Idx: idx}, prevLeaf, hadPrev, nil
}

// GetLeaf descends toward pos and returns the leaf value found, if any.
// Descent stops at the first None child (absent) or the first Leaf
// encountered, per spec.md §4.1 (in ordinary use leaves only occur at the
// deepest level, but GetLeaf does not assume this).
func (s *Store) GetLeaf(pos [3]int32) (LeafValue, bool) {
	if s.root == NoOctant || s.Depth == 0 {
		return 0, false
	}
	node := s.root
	for level := int(s.Depth) - 1; level >= 0; level-- {
		idx := childIndex(pos, level)
		child := s.octants[node].Children[idx]
		switch child.kind {
		case childNone:
			return 0, false
		case childLeaf:
			return child.leaf, true
		case childInterior:
			node = child.id
		}
	}
	return 0, false
}

// RemoveLeaf clears the leaf at pos, if one is set, returning its value and
// stable id.
func (s *Store) RemoveLeaf(pos [3]int32) (LeafValue, LeafID, bool) {
	if s.root == NoOctant || s.Depth == 0 {
		return 0, LeafID{}, false
	}
	node := s.root
	for level := int(s.Depth) - 1; level >= 1; level-- {
		idx := childIndex(pos, level)
		child := s.octants[node].Children[idx]
		id, isInterior := child.IsInterior()
		if !isInterior {
			return 0, LeafID{}, false
		}
		node = id
	}
	idx := childIndex(pos, 0)
	child := s.octants[node].Children[idx]
	value, isLeaf := child.IsLeaf()
	if !isLeaf {
		return 0, LeafID{}, false
	}
	s.octants[node].Children[idx] = Child{}
	s.octants[node].ChildCount--
	return value, LeafID{Parent: node, Idx: idx}, true
}

// MoveLeaf relocates the leaf at id to newPos, expanding the tree if
// needed. If the source and destination resolve to the same (parent, idx)
// slot the call is a documented no-op returning false: see spec.md's
// Design Notes open question on move_leaf's precise contract.
func (s *Store) MoveLeaf(id LeafID, newPos [3]int32) (LeafValue, bool, error) {
	src := &s.octants[id.Parent].Children[id.Idx]
	value, isLeaf := src.IsLeaf()
	if !isLeaf {
		return 0, false, nil
	}
	required, err := requiredDepth(newPos)
	if err != nil {
		return 0, false, err
	}
	if required == 0 {
		required = 1
	}
	if s.Depth < required {
		s.expandTo(required)
		// Expansion may have reallocated src's containing arena slice but
		// not its index; refresh the pointer defensively.
		src = &s.octants[id.Parent].Children[id.Idx]
	}

	// Resolve destination slot without mutating state yet, so we can
	// detect the same-slot no-op case before touching anything.
	node := s.root
	for level := int(s.Depth) - 1; level >= 1; level-- {
		idx := childIndex(newPos, level)
		child := s.octants[node].Children[idx]
		if child.kind == childInterior {
			node = child.id
			continue
		}
		// Need to materialize interior nodes for the destination path.
		// Do this now; if it turns out to be the same slot as source this
		// is wasted but harmless, since destination always differs from
		// source in that case (same slot implies no materialization was
		// necessary, see below).
		newChild := s.alloc(node)
		s.octants[node].Children[idx] = Child{kind: childInterior, id: newChild}
		s.octants[node].ChildCount++
		node = newChild
	}
	destIdx := childIndex(newPos, 0)
	if node == id.Parent && destIdx == id.Idx {
		return 0, false, nil // Same (parent,idx): documented no-op.
	}

	// Clear source first, then install at destination, matching the
	// source's two-step swap-through-a-temporary semantics described in
	// spec.md's Design Notes, without the ambiguity of reusing a single
	// intermediate slot.
	s.octants[id.Parent].Children[id.Idx] = Child{}
	s.octants[id.Parent].ChildCount--

	destPrev := s.octants[node].Children[destIdx]
	s.octants[node].Children[destIdx] = Child{kind: childLeaf, leaf: value}
	if destPrev.kind == childNone {
		s.octants[node].ChildCount++
	}
	return value, true, nil
}

// Compact performs a post-order walk recycling any interior child whose
// ChildCount is zero, clearing its parent slot. If the root ends up
// childless, the whole tree is reset to empty (spec.md §4.1).
func (s *Store) Compact() {
	if s.root == NoOctant {
		return
	}
	s.compactNode(s.root)
	if s.octants[s.root].ChildCount == 0 {
		s.free(s.root)
		s.root = NoOctant
		s.octants = s.octants[:0]
		s.freeList = s.freeList[:0]
		s.Depth = 0
		s.Scale = 1
	}
}

func (s *Store) compactNode(id OctantID) {
	oct := &s.octants[id]
	for i := range oct.Children {
		child := oct.Children[i]
		childID, isInterior := child.IsInterior()
		if !isInterior {
			continue
		}
		s.compactNode(childID)
		if s.octants[childID].ChildCount == 0 {
			s.free(childID)
			oct.Children[i] = Child{}
			oct.ChildCount--
		}
	}
}
