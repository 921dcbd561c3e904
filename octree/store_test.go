package octree

import (
	"math/rand/v2"
	"testing"
)

// property 1: iterating all set positions via GetLeaf returns exactly the
// last value set at that position.
func TestSetGetLastWriteWins(t *testing.T) {
	s := NewStore()
	positions := [][3]int32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {3, 3, 3}, {7, 0, 7}}
	want := map[[3]int32]LeafValue{}
	for i, p := range positions {
		v := LeafValue(i + 1)
		if _, _, _, err := s.SetLeaf(p, v); err != nil {
			t.Fatalf("SetLeaf(%v): %v", p, err)
		}
		want[p] = v
	}
	// Overwrite one position to check last-write-wins.
	if _, _, _, err := s.SetLeaf(positions[0], 99); err != nil {
		t.Fatal(err)
	}
	want[positions[0]] = 99

	for p, v := range want {
		got, ok := s.GetLeaf(p)
		if !ok || got != v {
			t.Errorf("GetLeaf(%v) = (%v, %v), want (%v, true)", p, got, ok, v)
		}
	}
}

// property 2: set then remove at the same position leaves the octree
// semantically empty; after Compact, octants is empty and root is None.
func TestSetRemoveCompactEmpty(t *testing.T) {
	s := NewStore()
	pos := [3]int32{5, 2, 6}
	if _, _, _, err := s.SetLeaf(pos, 1); err != nil {
		t.Fatal(err)
	}
	if _, _, ok := s.RemoveLeaf(pos); !ok {
		t.Fatal("RemoveLeaf reported no leaf present")
	}
	if _, ok := s.GetLeaf(pos); ok {
		t.Fatal("GetLeaf found a value after RemoveLeaf")
	}
	s.Compact()
	if s.Len() != 0 {
		t.Fatalf("Len() = %d after compacting an emptied tree, want 0", s.Len())
	}
	if _, ok := s.Root(); ok {
		t.Fatal("Root() still set after compacting an emptied tree")
	}
}

// property 3: ChildCount equals the number of non-None children for every
// reachable node.
func TestChildCountMatchesNonNoneChildren(t *testing.T) {
	s := buildRandomStore(t, 4, 30, 1)
	assertChildCounts(t, s)
}

func assertChildCounts(t *testing.T, s *Store) {
	t.Helper()
	root, ok := s.Root()
	if !ok {
		return
	}
	var walk func(id OctantID)
	walk = func(id OctantID) {
		oct := s.Octant(id)
		var n uint8
		for _, c := range oct.Children {
			if !c.IsNone() {
				n++
			}
			if childID, isInterior := c.IsInterior(); isInterior {
				walk(childID)
			}
		}
		if n != oct.ChildCount {
			t.Errorf("octant %d: ChildCount=%d, counted %d", id, oct.ChildCount, n)
		}
	}
	walk(root)
}

// property 4: every reachable non-root node's parent points to a node
// whose children contain an interior edge back to it.
func TestParentLinksAreConsistent(t *testing.T) {
	s := buildRandomStore(t, 4, 30, 2)
	root, ok := s.Root()
	if !ok {
		return
	}
	var walk func(id OctantID)
	walk = func(id OctantID) {
		oct := s.Octant(id)
		for _, c := range oct.Children {
			childID, isInterior := c.IsInterior()
			if !isInterior {
				continue
			}
			childOct := s.Octant(childID)
			if childOct.Parent != id {
				t.Errorf("octant %d has parent %d, expected %d", childID, childOct.Parent, id)
			}
			found := false
			for _, back := range oct.Children {
				if bid, ok := back.IsInterior(); ok && bid == childID {
					found = true
				}
			}
			if !found {
				t.Errorf("parent %d has no edge back to child %d", id, childID)
			}
			walk(childID)
		}
	}
	walk(root)
}

// property 5 / S5: parallel and serial construction produce structurally
// equal octrees after Compact.
func TestParallelSerialConstructionMatch(t *testing.T) {
	const depth = 4
	f := func(pos [3]int32) (LeafValue, bool) {
		if (pos[0]+pos[1]+pos[2])%2 == 0 {
			return 0, true
		}
		return 0, false
	}
	serial, err := ConstructSerial(depth, f)
	if err != nil {
		t.Fatal(err)
	}
	parallel, err := ConstructWith(depth, f)
	if err != nil {
		t.Fatal(err)
	}
	if !StructurallyEqual(serial, parallel) {
		t.Fatal("serial and parallel construction produced different tree shapes")
	}
}

// S4: set then remove 100 random positions in a depth-10 octree with a
// fixed seed; GetLeaf returns absent for all, and after Compact the tree
// is empty.
func TestScenarioS4RandomSetRemove(t *testing.T) {
	s := NewStore()
	rng := rand.New(rand.NewPCG(42, 42))
	const lim = 1 << 10
	positions := make([][3]int32, 100)
	for i := range positions {
		p := [3]int32{
			int32(rng.IntN(lim)),
			int32(rng.IntN(lim)),
			int32(rng.IntN(lim)),
		}
		positions[i] = p
		if _, _, _, err := s.SetLeaf(p, LeafValue(i)); err != nil {
			t.Fatal(err)
		}
	}
	for _, p := range positions {
		if _, _, ok := s.RemoveLeaf(p); !ok {
			t.Fatalf("RemoveLeaf(%v): leaf missing", p)
		}
	}
	for _, p := range positions {
		if _, ok := s.GetLeaf(p); ok {
			t.Fatalf("GetLeaf(%v) still present after removal", p)
		}
	}
	s.Compact()
	if s.Len() != 0 {
		t.Fatalf("Len() = %d after compacting fully-removed tree, want 0", s.Len())
	}
}

func TestMoveLeafSameSlotIsNoOp(t *testing.T) {
	s := NewStore()
	pos := [3]int32{1, 1, 1}
	id, _, _, err := s.SetLeaf(pos, 7)
	if err != nil {
		t.Fatal(err)
	}
	_, moved, err := s.MoveLeaf(id, pos)
	if err != nil {
		t.Fatal(err)
	}
	if moved {
		t.Fatal("MoveLeaf to the same (parent,idx) slot should be a no-op returning false")
	}
	v, ok := s.GetLeaf(pos)
	if !ok || v != 7 {
		t.Fatalf("leaf at %v corrupted by no-op move: got (%v,%v)", pos, v, ok)
	}
}

func TestMoveLeafRelocates(t *testing.T) {
	s := NewStore()
	src := [3]int32{0, 0, 0}
	dst := [3]int32{3, 3, 3}
	id, _, _, err := s.SetLeaf(src, 42)
	if err != nil {
		t.Fatal(err)
	}
	val, moved, err := s.MoveLeaf(id, dst)
	if err != nil {
		t.Fatal(err)
	}
	if !moved || val != 42 {
		t.Fatalf("MoveLeaf = (%v,%v), want (42,true)", val, moved)
	}
	if _, ok := s.GetLeaf(src); ok {
		t.Fatal("source position still occupied after move")
	}
	got, ok := s.GetLeaf(dst)
	if !ok || got != 42 {
		t.Fatalf("GetLeaf(dst) = (%v,%v), want (42,true)", got, ok)
	}
}

func buildRandomStore(t *testing.T, depth int, n int, seed uint64) *Store {
	t.Helper()
	s := NewStore()
	rng := rand.New(rand.NewPCG(seed, seed))
	lim := int32(1) << uint(depth)
	for i := 0; i < n; i++ {
		p := [3]int32{rng.Int32N(lim), rng.Int32N(lim), rng.Int32N(lim)}
		if _, _, _, err := s.SetLeaf(p, LeafValue(i)); err != nil {
			t.Fatal(err)
		}
	}
	return s
}
