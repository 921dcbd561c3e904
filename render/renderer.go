package render

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"github.com/soypat/voxtrace/camera"
	"github.com/soypat/voxtrace/esvo"
	"github.com/soypat/voxtrace/material"
	"github.com/soypat/voxtrace/pathtrace"
	"github.com/soypat/voxtrace/ray"
	"github.com/soypat/voxtrace/vec3"
)

// Renderer is the tile-based progressive renderer coordinator of spec.md
// §4.5. The zero value is not usable; construct with New.
type Renderer struct {
	width, height int
	tileSize      int
	cam           *camera.Shared
	tracer        *pathtrace.Tracer
	mode          Mode
	seed          uint64

	mu          sync.Mutex
	framebuffer []vec3.Vec4

	currentSPP atomic.Uint32
	targetSPP  atomic.Uint32
	status     atomic.Int32

	messages chan Message

	tiles []*tile
}

// New builds a Renderer for a width×height image, partitioned into
// tileSize×tileSize tiles, driving tracer's scene through cam.
func New(width, height, tileSize int, cam *camera.Shared, tracer *pathtrace.Tracer, mode Mode, seed uint64) (*Renderer, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.New("render: non-positive image dimension")
	}
	if tileSize <= 0 {
		return nil, errors.New("render: non-positive tile size")
	}
	if cam == nil || tracer == nil {
		return nil, errors.New("render: nil camera or tracer")
	}
	r := &Renderer{
		width:       width,
		height:      height,
		tileSize:    tileSize,
		cam:         cam,
		tracer:      tracer,
		mode:        mode,
		seed:        seed,
		framebuffer: make([]vec3.Vec4, width*height),
		messages:    make(chan Message, 16),
	}
	r.status.Store(int32(Running))
	r.tiles = buildTiles(width, height, tileSize)
	return r, nil
}

// Width and Height report the framebuffer's pixel dimensions.
func (r *Renderer) Width() int  { return r.width }
func (r *Renderer) Height() int { return r.height }

// Status returns the renderer's current lifecycle state.
func (r *Renderer) Status() Status { return Status(r.status.Load()) }

// CurrentSPP returns the number of samples accumulated into the
// framebuffer so far.
func (r *Renderer) CurrentSPP() uint32 { return r.currentSPP.Load() }

// Pause, Resume, Stop, ChangeSPP and Reset enqueue their respective
// control message, per spec.md §4.5. They block only if the internal
// message queue (capacity 16) is full; a coordinator that has exited
// (Stopped, not consuming) will eventually make these block forever, same
// as any closed/abandoned channel protocol — callers stop issuing control
// messages once they observe Status() == Stopped.
func (r *Renderer) Pause()  { r.messages <- Message{Kind: MsgPause} }
func (r *Renderer) Resume() { r.messages <- Message{Kind: MsgResume} }
func (r *Renderer) Stop()   { r.messages <- Message{Kind: MsgStop} }
func (r *Renderer) Reset()  { r.messages <- Message{Kind: MsgReset} }
func (r *Renderer) ChangeSPP(target uint32) {
	r.messages <- Message{Kind: MsgChangeSPP, SPP: target}
}

// GetImage gamma-encodes the current framebuffer into buf (allocating a
// new width*height*4 buffer if buf is too small) and returns it, per
// spec.md §6's render-surface-output contract. It blocks until the
// coordinator services the request.
func (r *Renderer) GetImage(buf []byte) []byte {
	reply := make(chan []byte, 1)
	r.messages <- Message{Kind: MsgGetImage, Buffer: buf, Reply: reply}
	return <-reply
}

// Run is the coordinator loop: it services control messages and, while
// Running and under the current target sample count, dispatches one pass
// of tile goroutines per iteration. It returns when ctx is cancelled or a
// Stop message is processed (or the message channel is closed, which is
// interpreted as Stop per spec.md §7).
func (r *Renderer) Run(ctx context.Context) {
	for {
		switch r.Status() {
		case Stopped:
			return
		case Paused:
			if !r.waitMessage(ctx) {
				return
			}
			continue
		}

		select {
		case <-ctx.Done():
			r.status.Store(int32(Stopped))
			return
		case msg, ok := <-r.messages:
			if !ok {
				r.status.Store(int32(Stopped))
				return
			}
			r.handle(msg)
			continue
		default:
		}

		if r.Status() != Running {
			continue
		}
		target := r.targetSPP.Load()
		if target != 0 && r.currentSPP.Load() >= target {
			// Nothing to do until a ChangeSPP/Reset/Stop arrives.
			if !r.waitMessage(ctx) {
				return
			}
			continue
		}
		r.renderPass()
		r.currentSPP.Add(1)
	}
}

// waitMessage blocks for the next control message or ctx cancellation. It
// returns false if the coordinator should stop.
func (r *Renderer) waitMessage(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		r.status.Store(int32(Stopped))
		return false
	case msg, ok := <-r.messages:
		if !ok {
			r.status.Store(int32(Stopped))
			return false
		}
		r.handle(msg)
		return true
	}
}

func (r *Renderer) handle(msg Message) {
	switch msg.Kind {
	case MsgPause:
		if r.Status() != Stopped {
			r.status.Store(int32(Paused))
		}
	case MsgResume:
		if r.Status() != Stopped {
			r.status.Store(int32(Running))
		}
	case MsgStop:
		r.status.Store(int32(Stopped))
	case MsgChangeSPP:
		r.targetSPP.Store(msg.SPP)
		if r.Status() != Stopped {
			r.status.Store(int32(Running))
		}
	case MsgReset:
		r.mu.Lock()
		for i := range r.framebuffer {
			r.framebuffer[i] = vec3.Vec4{}
		}
		r.mu.Unlock()
		r.currentSPP.Store(0)
	case MsgGetImage:
		r.replyImage(msg)
	}
}

func (r *Renderer) replyImage(msg Message) {
	need := r.width * r.height * 4
	buf := msg.Buffer
	if len(buf) < need {
		buf = make([]byte, need)
	}
	r.mu.Lock()
	for i, c := range r.framebuffer {
		buf[i*4+0] = material.EncodeGamma(c.X)
		buf[i*4+1] = material.EncodeGamma(c.Y)
		buf[i*4+2] = material.EncodeGamma(c.Z)
		buf[i*4+3] = material.EncodeGamma(c.W)
	}
	r.mu.Unlock()
	msg.Reply <- buf
}

// renderPass runs one pass: every tile is rendered once for the current
// sample (spp = currentSPP before this pass) and committed into the
// shared framebuffer. Tiles within a pass have no ordering guarantees
// w.r.t. each other; the coordinator waits for every tile of pass k
// before starting pass k+1, per spec.md §5.
func (r *Renderer) renderPass() {
	spp := r.currentSPP.Load()
	cam := r.cam.Snapshot()
	var wg sync.WaitGroup
	wg.Add(len(r.tiles))
	for _, tl := range r.tiles {
		go func(tl *tile) {
			defer wg.Done()
			r.renderTile(tl, cam, spp)
		}(tl)
	}
	wg.Wait()
}

func (r *Renderer) renderTile(tl *tile, cam camera.Camera, spp uint32) {
	d := float32(r.width)
	if r.height > r.width {
		d = float32(r.height)
	}
	rng := rand.New(rand.NewPCG(r.seed, tileSeed(tl.x0, tl.y0, spp)))
	w := tl.x1 - tl.x0
	for y := tl.y0; y < tl.y1; y++ {
		for x := tl.x0; x < tl.x1; x++ {
			xn := (2*float32(x) + 1 - float32(r.width)) / d
			yn := (2*float32(r.height-y) - 1 - float32(r.height)) / d
			if r.mode == ModePathTrace {
				xn, yn = camera.Jitter(xn, yn, d, rng)
			}
			cr := cam.Ray(xn, yn)
			contribution := r.sample(&cr, rng, spp)
			tl.local[(y-tl.y0)*w+(x-tl.x0)] = contribution
		}
	}
	r.commitTile(tl, spp)
}

func (r *Renderer) sample(cr *ray.Ray, rng *rand.Rand, spp uint32) vec3.Vec4 {
	if r.mode == ModePreview {
		return r.previewSample(cr)
	}
	return r.tracer.Trace(cr, rng, true, spp)
}

// previewSample implements esvo.ModePreview: the first hit's albedo, flat
// shaded, with no bounce (spec.md §4.2's preview variant).
func (r *Renderer) previewSample(cr *ray.Ray) vec3.Vec4 {
	cr.Hit.TNext = float32(1e30)
	world := esvo.World{
		Models:    r.tracer.Scene.Models,
		Materials: r.tracer.Scene.Materials,
		Textures:  r.tracer.Scene.Textures,
	}
	if !esvo.Traverse(r.tracer.Scene.Octree, cr, world, esvo.ModePreview) {
		return r.tracer.Scene.Sun.SkyColor(cr.Direction)
	}
	shade := vec3.Dot(cr.Hit.Normal, vec3.Unit(vec3.Vec{X: 0.3, Y: 0.9, Z: 0.3}))
	if shade < 0.2 {
		shade = 0.2
	}
	return vec3.ScaleRadiance(shade, cr.Hit.Color)
}

// commitTile acquires the framebuffer mutex for a memcpy-sized critical
// section only (spec.md §5's locking discipline: never hold it during
// traversal).
func (r *Renderer) commitTile(tl *tile, spp uint32) {
	w := tl.x1 - tl.x0
	r.mu.Lock()
	for y := tl.y0; y < tl.y1; y++ {
		row := y * r.width
		for x := tl.x0; x < tl.x1; x++ {
			i := row + x
			r.framebuffer[i] = blend(r.framebuffer[i], tl.local[(y-tl.y0)*w+(x-tl.x0)], spp)
		}
	}
	r.mu.Unlock()
}

// tileSeed derives a per-tile, per-sample RNG stream seed from
// (tile_x, tile_y, sample), per spec.md's Design Notes on RNG
// reproducibility when the test suite needs it.
func tileSeed(x0, y0 int, spp uint32) uint64 {
	return uint64(x0)<<42 ^ uint64(y0)<<21 ^ uint64(spp)
}
