package render

import "github.com/soypat/voxtrace/vec3"

// tile is a rectangular sub-region of the framebuffer assigned to one
// worker for the renderer's lifetime: it owns its local float buffer,
// reused across every pass instead of reallocated, per spec.md §3 Tile's
// "created per-worker, reused across samples, never shared between
// workers" lifecycle.
type tile struct {
	x0, y0, x1, y1 int
	local          []vec3.Vec4
}

// buildTiles partitions a width×height image into a grid of at-most
// tileSize×tileSize tiles. Edge tiles are clipped to the image bounds
// rather than padded.
func buildTiles(width, height, tileSize int) []*tile {
	var tiles []*tile
	for y0 := 0; y0 < height; y0 += tileSize {
		y1 := min(y0+tileSize, height)
		for x0 := 0; x0 < width; x0 += tileSize {
			x1 := min(x0+tileSize, width)
			tiles = append(tiles, &tile{
				x0: x0, y0: y0, x1: x1, y1: y1,
				local: make([]vec3.Vec4, (x1-x0)*(y1-y0)),
			})
		}
	}
	return tiles
}
