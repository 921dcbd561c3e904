package model

import (
	"testing"

	"github.com/soypat/voxtrace/interval"
	"github.com/soypat/voxtrace/material"
	"github.com/soypat/voxtrace/ray"
	"github.com/soypat/voxtrace/vec3"
)

func flatMaterials(texIdx uint32) []material.Material {
	return []material.Material{{TextureIndex: texIdx}}
}

func TestQuadSetModelIntersectFrontFace(t *testing.T) {
	q := NewQuad(vec3.Vec{X: 0, Y: 0, Z: 0}, vec3.Vec{X: 1, Y: 0, Z: 0}, vec3.Vec{X: 0, Y: 1, Z: 0}, 0, vec3.Vec{X: 1, Y: 1, Z: 1}, interval.Unit, interval.Unit)
	m := &QuadSetModel{Quads: []Quad{q}}
	r := ray.New(vec3.Vec{X: 0.5, Y: 0.5, Z: 1}, vec3.Vec{X: 0, Y: 0, Z: -1})
	r.Hit.TNext = 10
	texs := []material.Texture{material.NewSolidColorTexture(vec3.Vec4{X: 1, Y: 1, Z: 1, W: 1})}
	ok := m.Intersect(&r, vec3.Vec{}, FacePosZ, 1, flatMaterials(0), texs)
	if !ok {
		t.Fatal("expected hit on front-facing quad")
	}
	if r.Hit.T <= 0 {
		t.Errorf("hit distance not set, got %v", r.Hit.T)
	}
}

func TestQuadSetModelMissesBackFace(t *testing.T) {
	q := NewQuad(vec3.Vec{X: 0, Y: 0, Z: 0}, vec3.Vec{X: 1, Y: 0, Z: 0}, vec3.Vec{X: 0, Y: 1, Z: 0}, 0, vec3.Vec{X: 1, Y: 1, Z: 1}, interval.Unit, interval.Unit)
	m := &QuadSetModel{Quads: []Quad{q}}
	r := ray.New(vec3.Vec{X: 0.5, Y: 0.5, Z: -1}, vec3.Vec{X: 0, Y: 0, Z: -1})
	r.Hit.TNext = 10
	texs := []material.Texture{material.NewSolidColorTexture(vec3.Vec4{X: 1, Y: 1, Z: 1, W: 1})}
	if m.Intersect(&r, vec3.Vec{}, FacePosZ, 1, flatMaterials(0), texs) {
		t.Fatal("expected no hit: ray travels away from the quad's front face")
	}
}

func TestQuadSetModelSkipsTransparentTexel(t *testing.T) {
	q := NewQuad(vec3.Vec{X: 0, Y: 0, Z: 0}, vec3.Vec{X: 1, Y: 0, Z: 0}, vec3.Vec{X: 0, Y: 1, Z: 0}, 0, vec3.Vec{X: 1, Y: 1, Z: 1}, interval.Unit, interval.Unit)
	m := &QuadSetModel{Quads: []Quad{q}}
	r := ray.New(vec3.Vec{X: 0.5, Y: 0.5, Z: 1}, vec3.Vec{X: 0, Y: 0, Z: -1})
	r.Hit.TNext = 10
	texs := []material.Texture{material.NewSolidColorTexture(vec3.Vec4{X: 1, Y: 1, Z: 1, W: 0})}
	if m.Intersect(&r, vec3.Vec{}, FacePosZ, 1, flatMaterials(0), texs) {
		t.Fatal("expected no hit through a fully transparent texel")
	}
}

func TestSingleBlockModelHitsOpaqueFace(t *testing.T) {
	m := &SingleBlockModel{Materials: [6]uint32{0, 0, 0, 0, 0, 0}}
	r := ray.New(vec3.Vec{X: 0.5, Y: 0.5, Z: 1}, vec3.Vec{X: 0, Y: 0, Z: -1})
	r.Hit.TNext = 10
	texs := []material.Texture{material.NewSolidColorTexture(vec3.Vec4{X: 1, Y: 0, Z: 0, W: 1})}
	ok := m.Intersect(&r, vec3.Vec{}, FacePosZ, 1, flatMaterials(0), texs)
	if !ok {
		t.Fatal("expected hit")
	}
	if r.Hit.Normal != FaceNormal(FacePosZ) {
		t.Errorf("normal = %v, want face normal %v", r.Hit.Normal, FaceNormal(FacePosZ))
	}
}

func TestFaceIDEncodesAxisAndSign(t *testing.T) {
	cases := []struct {
		axis   int
		pos    bool
		expect uint8
	}{
		{0, true, FacePosX},
		{0, false, FaceNegX},
		{1, true, FacePosY},
		{1, false, FaceNegY},
		{2, true, FacePosZ},
		{2, false, FaceNegZ},
	}
	for _, c := range cases {
		if got := FaceID(c.axis, c.pos); got != c.expect {
			t.Errorf("FaceID(%d,%v) = %d, want %d", c.axis, c.pos, got, c.expect)
		}
	}
}
