package material

import "github.com/chewxy/math32"

// Gamma is the gamma curve exponent used for all sRGB-ish encode/decode in
// this module, per spec.md §6.
const Gamma = 2.2

// decodeLUT maps an 8-bit gamma-encoded channel to its linear float32
// value. There is no encode table: EncodeGamma computes the inverse curve
// directly. The decode table is a pure function of nothing, so it is
// computed once at process start into an immutable array rather than
// recomputed per pixel, per spec.md §9 Design Notes.
var decodeLUT [256]float32

func init() {
	for i := range decodeLUT {
		decodeLUT[i] = math32.Pow(float32(i)/255, Gamma)
	}
}

// DecodeGamma converts an 8-bit gamma-encoded channel value to a linear
// float32 via the precomputed LUT.
func DecodeGamma(b byte) float32 { return decodeLUT[b] }

// EncodeGamma converts a linear float32 channel value to an 8-bit
// gamma-encoded byte, clamping out-of-range and NaN inputs.
func EncodeGamma(linear float32) byte {
	if math32.IsNaN(linear) || linear < 0 {
		return 0
	}
	if linear > 1 {
		linear = 1
	}
	return clampByte(math32.Pow(linear, 1/Gamma)*255 + 0.5)
}
