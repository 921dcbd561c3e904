// Package material implements the material and texture model of spec.md
// §3/§4.3/§4.4: material properties, sRGB gamma LUT color sampling, and
// image/solid-color texture wrapping.
package material

// Flags is a bitset of material properties, per spec.md §3.
type Flags uint8

const (
	Opaque Flags = 1 << iota
	Subsurface
	Refractive
	Waterlogged
	Solid
)

// Has reports whether all bits of want are set in f.
func (f Flags) Has(want Flags) bool { return f&want == want }

// Material holds the per-surface shading parameters consumed by the path
// tracer's scattering decision (spec.md §4.4).
type Material struct {
	IOR          float32
	Flags        Flags
	Specular     float32
	Emittance    float32
	Roughness    float32
	Metalness    float32
	TextureIndex uint32
	TintIndex    uint32
}
