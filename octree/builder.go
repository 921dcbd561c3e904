package octree

import (
	"fmt"
	"sync"
)

// FillFunc resolves a single lattice position to a leaf value, or reports
// absence. It is the octree-construction analogue of the model manager's
// resolve_block collaborator (spec.md §6).
type FillFunc func(pos [3]int32) (LeafValue, bool)

// childOffset returns the (x,y,z) corner offset, each 0 or 1, of child
// slot i, matching spec.md §4.1's canonical order idx = x + 2y + 4z.
func childOffset(i int) [3]int32 {
	return [3]int32{int32(i & 1), int32((i >> 1) & 1), int32((i >> 2) & 1)}
}

// localArena is an append-only octant arena used while building a single
// subtree; it has no free list because construction never deletes nodes
// mid-build.
type localArena struct {
	octants []Octant
}

func (a *localArena) alloc() OctantID {
	a.octants = append(a.octants, Octant{Parent: NoOctant})
	return OctantID(len(a.octants) - 1)
}

// buildLevel recursively fills a cube of side `size` (in lattice units)
// whose minimum corner is origin. It returns NoOctant, false if every one
// of the cube's eight children is empty, matching spec.md §4.1's lazy
// allocation: "return the id of a newly allocated parent only if at least
// one of the eight child cells produced a non-None child".
func buildLevel(arena *localArena, size int32, origin [3]int32, f FillFunc) (OctantID, bool) {
	childSize := size / 2
	var node Octant
	any := false
	for i := 0; i < 8; i++ {
		off := childOffset(i)
		childOrigin := [3]int32{
			origin[0] + off[0]*childSize,
			origin[1] + off[1]*childSize,
			origin[2] + off[2]*childSize,
		}
		if childSize == 1 {
			if val, ok := f(childOrigin); ok {
				node.Children[i] = Child{kind: childLeaf, leaf: val}
				node.ChildCount++
				any = true
			}
			continue
		}
		childID, ok := buildLevel(arena, childSize, childOrigin, f)
		if ok {
			node.Children[i] = Child{kind: childInterior, id: childID}
			node.ChildCount++
			any = true
		}
	}
	if !any {
		return NoOctant, false
	}
	id := arena.alloc()
	arena.octants[id] = node
	for i := range node.Children {
		if childID, ok := node.Children[i].IsInterior(); ok {
			arena.octants[childID].Parent = id
		}
	}
	return id, true
}

// ConstructSerial builds a complete octree of the given depth from f,
// single-threaded. depth must be >= 1.
func ConstructSerial(depth int, f FillFunc) (*Store, error) {
	if depth < 1 || depth > HardMaxDepth {
		return nil, errOutOfRangeDepth(depth)
	}
	arena := &localArena{}
	size := int32(1) << uint(depth)
	rootID, ok := buildLevel(arena, size, [3]int32{}, f)
	s := &Store{root: NoOctant, Depth: uint8(depth), Scale: scaleForDepth(uint8(depth))}
	if ok {
		s.root = rootID
		s.octants = arena.octants
	}
	s.Compact()
	return s, nil
}

// subtreeResult is the output of building one of the 8 root-level
// subtrees, either as a freshly built local arena (subtreeDepth >= 1) or
// as a direct leaf value (subtreeDepth == 0, i.e. total depth == 1).
type subtreeResult struct {
	arena   *localArena
	rootID  OctantID
	leaf    LeafValue
	nonLeaf bool // true when arena/rootID carry the result, false when leaf does
	present bool
}

// ConstructWith builds a complete octree of the given depth from f using
// the parallel bottom-up protocol of spec.md §4.1: 8 goroutines each build
// an independent subtree covering one of the root's 8 octants, then a
// single-threaded merge step splices the subtree arenas together, id-
// shifting as it goes, and compacts the result.
func ConstructWith(depth int, f FillFunc) (*Store, error) {
	if depth < 1 || depth > HardMaxDepth {
		return nil, errOutOfRangeDepth(depth)
	}
	subtreeDepth := depth - 1
	subtreeSize := int32(1) << uint(subtreeDepth)

	results := make([]subtreeResult, 8)
	var wg sync.WaitGroup
	wg.Add(8)
	for i := 0; i < 8; i++ {
		go func(i int) {
			defer wg.Done()
			off := childOffset(i)
			origin := [3]int32{off[0] * subtreeSize, off[1] * subtreeSize, off[2] * subtreeSize}
			if subtreeDepth == 0 {
				val, ok := f(origin)
				results[i] = subtreeResult{leaf: val, present: ok}
				return
			}
			arena := &localArena{}
			rootID, ok := buildLevel(arena, subtreeSize, origin, f)
			results[i] = subtreeResult{arena: arena, rootID: rootID, nonLeaf: true, present: ok}
		}(i)
	}
	wg.Wait()

	merged := &Store{root: NoOctant, Depth: uint8(depth), Scale: scaleForDepth(uint8(depth))}
	rootID := merged.alloc(NoOctant)
	merged.root = rootID
	var root Octant
	for i, r := range results {
		if !r.present {
			continue
		}
		if !r.nonLeaf {
			root.Children[i] = Child{kind: childLeaf, leaf: r.leaf}
			root.ChildCount++
			continue
		}
		offset := OctantID(len(merged.octants))
		for _, oct := range r.arena.octants {
			shifted := oct
			if shifted.Parent == NoOctant {
				shifted.Parent = rootID
			} else {
				shifted.Parent += offset
			}
			for ci := range shifted.Children {
				if id, ok := shifted.Children[ci].IsInterior(); ok {
					shifted.Children[ci].id = id + offset
				}
			}
			merged.octants = append(merged.octants, shifted)
		}
		root.Children[i] = Child{kind: childInterior, id: r.rootID + offset}
		root.ChildCount++
	}
	merged.octants[rootID] = root
	merged.Compact()
	return merged, nil
}

func errOutOfRangeDepth(depth int) error {
	return fmt.Errorf("octree: construction depth out of range [1,%d]: got %d", HardMaxDepth, depth)
}
