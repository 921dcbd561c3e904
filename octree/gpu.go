package octree

// GPU mirror encoding, per spec.md §4.1/§6: each node packs into 8 uint32
// words, 256 bits read as one contiguous little-endian bitstream. The
// first 16 bits hold two 8-bit masks (is-child, then is-leaf, one bit per
// slot); the remaining 240 bits are the eight slots' 30-bit payloads
// (interior child id or leaf value), packed back to back starting at bit
// offset 16 with no per-word alignment, so a payload routinely straddles a
// word boundary.

const gpuPayloadMask = (1 << 30) - 1

// writeBits stores the low numBits bits of value into words, treating
// words as one little-endian bitstream, starting at bitOffset.
func writeBits(words []uint32, bitOffset, numBits int, value uint32) {
	remaining := numBits
	srcShift := uint(0)
	for remaining > 0 {
		wordIdx := bitOffset / 32
		bitInWord := uint(bitOffset % 32)
		n := uint(32) - bitInWord
		if n > uint(remaining) {
			n = uint(remaining)
		}
		chunk := (value >> srcShift) & ((1 << n) - 1)
		words[wordIdx] |= chunk << bitInWord
		bitOffset += int(n)
		srcShift += n
		remaining -= int(n)
	}
}

// readBits is the inverse of writeBits: it reads numBits bits starting at
// bitOffset out of the words bitstream.
func readBits(words []uint32, bitOffset, numBits int) uint32 {
	var result uint32
	dstShift := uint(0)
	remaining := numBits
	for remaining > 0 {
		wordIdx := bitOffset / 32
		bitInWord := uint(bitOffset % 32)
		n := uint(32) - bitInWord
		if n > uint(remaining) {
			n = uint(remaining)
		}
		chunk := (words[wordIdx] >> bitInWord) & ((1 << n) - 1)
		result |= chunk << dstShift
		bitOffset += int(n)
		dstShift += n
		remaining -= int(n)
	}
	return result
}

// AppendGPUWords appends the 8-word packed representation of every octant
// in the arena, in arena order, to dst and returns the result. Unreachable
// and free-listed slots are packed too, so an OctantID indexes its node's
// words directly.
func (s *Store) AppendGPUWords(dst []uint32) []uint32 {
	for id := range s.octants {
		dst = s.appendNodeWords(dst, OctantID(id))
	}
	return dst
}

func (s *Store) appendNodeWords(dst []uint32, id OctantID) []uint32 {
	oct := &s.octants[id]
	var isChildMask, isLeafMask uint32
	var payloads [8]uint32
	for i, c := range oct.Children {
		switch c.kind {
		case childInterior:
			isChildMask |= 1 << uint(i)
			payloads[i] = uint32(c.id) & gpuPayloadMask
		case childLeaf:
			isChildMask |= 1 << uint(i)
			isLeafMask |= 1 << uint(i)
			payloads[i] = c.leaf & gpuPayloadMask
		}
	}
	var words [8]uint32
	writeBits(words[:], 0, 8, isChildMask)
	writeBits(words[:], 8, 8, isLeafMask)
	for i, p := range payloads {
		writeBits(words[:], 16+i*30, 30, p)
	}
	return append(dst, words[:]...)
}

// DecodedNode mirrors the per-slot fields recovered by decoding a packed
// GPU node, used to round-trip test AppendGPUWords (spec.md §8 property 10).
type DecodedNode struct {
	IsChild [8]bool
	IsLeaf  [8]bool
	Payload [8]uint32
}

// DecodeGPUNode decodes a single 8-word packed node starting at words[0:8].
func DecodeGPUNode(words []uint32) DecodedNode {
	var d DecodedNode
	isChildMask := readBits(words, 0, 8)
	isLeafMask := readBits(words, 8, 8)
	for i := 0; i < 8; i++ {
		d.Payload[i] = readBits(words, 16+i*30, 30)
		d.IsChild[i] = isChildMask&(1<<uint(i)) != 0
		d.IsLeaf[i] = isLeafMask&(1<<uint(i)) != 0
	}
	return d
}

// StructurallyEqual reports whether a and b represent the same tree shape
// and leaf values, independent of OctantID numbering. Used by tests to
// compare the parallel and serial construction protocols (spec.md §8
// property 5), since the two protocols allocate ids in different orders.
func StructurallyEqual(a, b *Store) bool {
	if a.Depth != b.Depth {
		return false
	}
	aRoot, aHas := a.Root()
	bRoot, bHas := b.Root()
	if aHas != bHas {
		return false
	}
	if !aHas {
		return true
	}
	return nodesEqual(a, aRoot, b, bRoot)
}

func nodesEqual(a *Store, aID OctantID, b *Store, bID OctantID) bool {
	an, bn := &a.octants[aID], &b.octants[bID]
	if an.ChildCount != bn.ChildCount {
		return false
	}
	for i := 0; i < 8; i++ {
		ac, bc := an.Children[i], bn.Children[i]
		if ac.kind != bc.kind {
			return false
		}
		switch ac.kind {
		case childLeaf:
			if ac.leaf != bc.leaf {
				return false
			}
		case childInterior:
			if !nodesEqual(a, ac.id, b, bc.id) {
				return false
			}
		}
	}
	return true
}
