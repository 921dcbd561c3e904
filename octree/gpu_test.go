package octree

import "testing"

// property 10: decoding the 8-word packing reconstructs identical
// (is_child, is_leaf, payload) per slot for every reachable node.
func TestGPUEncodeDecodeRoundTrip(t *testing.T) {
	s := buildRandomStore(t, 5, 60, 7)

	words := s.AppendGPUWords(nil)
	if len(words) != 8*s.Len() {
		t.Fatalf("len(words) = %d, want %d", len(words), 8*s.Len())
	}

	for id := 0; id < s.Len(); id++ {
		decoded := DecodeGPUNode(words[id*8 : id*8+8])
		oct := s.Octant(OctantID(id))
		for i, c := range oct.Children {
			wantChild := !c.IsNone()
			if decoded.IsChild[i] != wantChild {
				t.Errorf("node %d slot %d: IsChild=%v, want %v", id, i, decoded.IsChild[i], wantChild)
			}
			leafVal, isLeaf := c.IsLeaf()
			if decoded.IsLeaf[i] != isLeaf {
				t.Errorf("node %d slot %d: IsLeaf=%v, want %v", id, i, decoded.IsLeaf[i], isLeaf)
			}
			switch {
			case isLeaf:
				if decoded.Payload[i] != leafVal&gpuPayloadMask {
					t.Errorf("node %d slot %d: leaf payload=%d, want %d", id, i, decoded.Payload[i], leafVal)
				}
			case wantChild:
				childID, _ := c.IsInterior()
				if decoded.Payload[i] != uint32(childID)&gpuPayloadMask {
					t.Errorf("node %d slot %d: interior payload=%d, want %d", id, i, decoded.Payload[i], childID)
				}
			}
		}
	}
}

// Regression for a header word that OR'd slot 0's payload directly into
// the mask bits: any payload large enough to set bit 16 or above used to
// corrupt isChildMask/isLeafMask. Slot 0 here carries the maximum 30-bit
// payload, well past 2^16, on every other slot kind as well.
func TestGPUEncodeDecodeLargePayloads(t *testing.T) {
	s := &Store{root: 0, Depth: 1, Scale: 0.5}
	oct := Octant{ChildCount: 8}
	for i := range oct.Children {
		if i%2 == 0 {
			oct.Children[i] = Child{kind: childLeaf, leaf: LeafValue(gpuPayloadMask - uint32(i))}
		} else {
			oct.Children[i] = Child{kind: childInterior, id: OctantID(gpuPayloadMask - uint32(i))}
		}
	}
	s.octants = []Octant{oct}

	words := s.AppendGPUWords(nil)
	if len(words) != 8 {
		t.Fatalf("len(words) = %d, want 8", len(words))
	}
	decoded := DecodeGPUNode(words)
	for i, c := range oct.Children {
		wantLeaf := c.kind == childLeaf
		if decoded.IsChild[i] != true {
			t.Errorf("slot %d: IsChild=%v, want true", i, decoded.IsChild[i])
		}
		if decoded.IsLeaf[i] != wantLeaf {
			t.Errorf("slot %d: IsLeaf=%v, want %v", i, decoded.IsLeaf[i], wantLeaf)
		}
		var want uint32
		if wantLeaf {
			want = uint32(c.leaf) & gpuPayloadMask
		} else {
			want = uint32(c.id) & gpuPayloadMask
		}
		if decoded.Payload[i] != want {
			t.Errorf("slot %d: payload=%d, want %d", i, decoded.Payload[i], want)
		}
	}
}
