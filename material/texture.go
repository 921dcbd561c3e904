package material

import (
	"errors"

	"github.com/chewxy/math32"
	"github.com/soypat/voxtrace/vec3"
)

// Texture is a tagged union of the two primitive-level texture kinds used
// by quad/single-block models, per spec.md §3.
type Texture struct {
	solid  vec3.Vec4
	pixels []byte // rgba8, length == width*height*4
	width  int
	height int
	isImage bool
}

// NewSolidColorTexture builds a texture that returns c for every UV.
func NewSolidColorTexture(c vec3.Vec4) Texture {
	return Texture{solid: c}
}

// NewImageTexture builds a texture backed by an rgba8 pixel buffer. Returns
// an error if the buffer length doesn't match width*height*4, per spec.md
// §3's Image invariant.
func NewImageTexture(width, height int, pixels []byte) (Texture, error) {
	if width <= 0 || height <= 0 {
		return Texture{}, errors.New("material: non-positive texture dimension")
	}
	if len(pixels) != width*height*4 {
		return Texture{}, errors.New("material: pixel buffer length does not match width*height*4")
	}
	return Texture{isImage: true, width: width, height: height, pixels: pixels}, nil
}

// Sample returns the gamma-decoded linear RGBA color at the given UV
// coordinates. u is clamped to [0,1]; v is flipped (1-v) before clamping
// and indexing, matching image-space row order, and sampling is
// nearest-neighbor (spec.md §4.3).
func (t Texture) Sample(u, v float32) vec3.Vec4 {
	if !t.isImage {
		return t.solid
	}
	u = vec3.ClampScalar(u, 0, 1)
	v = vec3.ClampScalar(1-v, 0, 1)
	x := int(u * float32(t.width))
	if x >= t.width {
		x = t.width - 1
	}
	y := int(v * float32(t.height))
	if y >= t.height {
		y = t.height - 1
	}
	i := (y*t.width + x) * 4
	return vec3.Vec4{
		X: DecodeGamma(t.pixels[i]),
		Y: DecodeGamma(t.pixels[i+1]),
		Z: DecodeGamma(t.pixels[i+2]),
		W: float32(t.pixels[i+3]) / 255,
	}
}

// clampByte clamps an already gamma-encoded float32 pixel value to the
// representable [0,255] byte range, guarding against NaN/overflow inputs
// from upstream shading math.
func clampByte(v float32) uint8 {
	if math32.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
