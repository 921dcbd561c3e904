package model

import (
	"github.com/soypat/voxtrace/material"
	"github.com/soypat/voxtrace/ray"
	"github.com/soypat/voxtrace/vec3"
)

// Face identifiers, derived during traversal from which axis/sign of
// t_corner achieved the minimum (spec.md §4.2).
const (
	FaceNegX uint8 = iota
	FacePosX
	FaceNegY
	FacePosY
	FaceNegZ
	FacePosZ
)

var faceNormals = [6]vec3.Vec{
	FaceNegX: {X: -1},
	FacePosX: {X: 1},
	FaceNegY: {Y: -1},
	FacePosY: {Y: 1},
	FaceNegZ: {Z: -1},
	FacePosZ: {Z: 1},
}

// FaceNormal returns the unit outward normal for face id.
func FaceNormal(id uint8) vec3.Vec { return faceNormals[id] }

// FaceID computes the face identifier for the axis (0=x,1=y,2=z) the ray
// crossed and the sign of its direction component along that axis.
func FaceID(axis int, dirPositive bool) uint8 {
	id := uint8(axis * 2)
	if !dirPositive {
		id++
	}
	return id
}

// Model is the per-leaf geometry a ModelID resolves to: either a
// SingleBlock (spec.md §4.3) or a QuadSet.
type Model interface {
	// Intersect tests r against the model occupying the voxel at
	// voxelOrigin (its integer world corner), having entered through face
	// at world-space distance tEntry. On a hit it updates r.Hit and
	// returns true.
	Intersect(r *ray.Ray, voxelOrigin vec3.Vec, face uint8, tEntry float32, mats []material.Material, texs []material.Texture) bool
}

// Lookup resolves a ModelID (the value stored in an octree leaf) to its
// Model, per spec.md §6's external model-manager interface.
type Lookup interface {
	Model(id uint32) (Model, bool)
}

// SliceLookup is the simplest Lookup: a dense array of models indexed
// directly by ModelID.
type SliceLookup []Model

func (l SliceLookup) Model(id uint32) (Model, bool) {
	if id >= uint32(len(l)) {
		return nil, false
	}
	return l[id], true
}

// SingleBlockModel is a full cube with one material per face, per spec.md
// §4.3.
type SingleBlockModel struct {
	Materials [6]uint32
}

func (m *SingleBlockModel) Intersect(r *ray.Ray, voxelOrigin vec3.Vec, face uint8, tEntry float32, mats []material.Material, texs []material.Texture) bool {
	if tEntry <= 0 || tEntry > r.Hit.TNext {
		return false
	}
	matID := m.Materials[face]
	mat := mats[matID]
	tex := texs[mat.TextureIndex]
	// SingleBlock has no per-quad UV mapping of its own, so it samples
	// with whatever (u,v) r.Hit already carries. The esvo traversal does
	// not compute a face-local UV before dispatching here, so image
	// textures are sampled at that carried-over (u,v), not at the entry
	// point.
	color := tex.Sample(r.Hit.U, r.Hit.V)
	if color.W < AlphaEpsilon {
		return false
	}
	r.Hit.T = tEntry
	r.Hit.Normal = FaceNormal(face)
	r.Hit.CurrentMaterialID = matID
	r.Hit.Color = color
	return true
}

// QuadSetModel is an arbitrary collection of textured quads occupying one
// voxel, per spec.md §4.3.
type QuadSetModel struct {
	Quads []Quad
}

func (m *QuadSetModel) Intersect(r *ray.Ray, voxelOrigin vec3.Vec, face uint8, tEntry float32, mats []material.Material, texs []material.Texture) bool {
	bestT := float32(-1)
	var bestQuad *Quad
	var bestU, bestV float32
	for i := range m.Quads {
		q := &m.Quads[i]
		t, u, v, ok := q.Intersect(r, voxelOrigin)
		if !ok {
			continue
		}
		mat := mats[q.MaterialID]
		tex := texs[mat.TextureIndex]
		color := q.sampleTexture(tex, u, v)
		if color.W < AlphaEpsilon {
			continue // Transparent texel: not a hit, keep searching.
		}
		if bestQuad == nil || t < bestT {
			bestT, bestQuad, bestU, bestV = t, q, u, v
			r.Hit.Color = color
		}
	}
	if bestQuad == nil {
		return false
	}
	r.Hit.T = bestT
	r.Hit.U, r.Hit.V = bestU, bestV
	n := bestQuad.Normal
	if vec3.Dot(n, r.Direction) > 0 {
		n = vec3.Neg(n) // Orientation-correct the normal against the ray.
	}
	r.Hit.Normal = n
	r.Hit.CurrentMaterialID = bestQuad.MaterialID
	return true
}
