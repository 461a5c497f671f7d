// Package analyzer derives a background plate and per-frame motion
// regions from a sequence of RGBA frames. It is pure and
// deterministic: the same (frames, config) always yields
// byte-identical regions in the same order, which is what lets the
// encoder pipeline produce byte-stable output regardless of whether
// per-frame work is parallelized (see internal/encoder).
package analyzer

import (
	"image"
)

// Config tunes motion detection: Threshold is the per-channel delta
// (0..255) a pixel must exceed to count as "changed"; MinRegion is the
// smallest value max(width, height) of a merged region must reach for
// it to survive.
type Config struct {
	Threshold uint8
	MinRegion int
}

// Region is one surviving motion region in a single frame: its
// bounding box in frame coordinates, and the frame cropped to that
// box.
type Region struct {
	BBox image.Rectangle
	Crop *image.RGBA
}

// tileSize is the coarse tiling granularity used to seed candidate
// regions before merging. 32x32 matches common screen-capture UI
// element sizes (icons, cursors, small widgets) without being so fine
// that noise produces thousands of one-tile regions.
const tileSize = 32

// DeriveBackground returns the background plate for a sequence of
// frames. v1 behavior: the background is simply the first frame. This
// is a documented limitation, not a design ceiling — the function
// signature is the seam a future version would change (median/mode
// background) without touching any caller.
func DeriveBackground(frames []*image.RGBA) *image.RGBA {
	return frames[0]
}

// DetectMotion computes the surviving motion regions of frame against
// background under cfg. Frames must share identical bounds.
func DetectMotion(frame, background *image.RGBA, cfg Config) []Region {
	bounds := frame.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	tilesX := (width + tileSize - 1) / tileSize
	tilesY := (height + tileSize - 1) / tileSize
	if tilesX == 0 || tilesY == 0 {
		return nil
	}

	seed := make([]bool, tilesX*tilesY)
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			if tileChanged(frame, background, bounds, tx, ty, cfg.Threshold) {
				seed[ty*tilesX+tx] = true
			}
		}
	}

	uf := newUnionFind(tilesX * tilesY)
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			idx := ty*tilesX + tx
			if !seed[idx] {
				continue
			}
			for _, n := range eightNeighbors(tx, ty, tilesX, tilesY) {
				if seed[n] {
					uf.union(idx, n)
				}
			}
		}
	}

	// Walk tiles in row-major order (the spec's mandated tie-break),
	// grouping by component root and growing each component's pixel
	// bbox as its tiles are visited. order records each component's
	// first-seen scan position so regions are emitted deterministically.
	type component struct {
		bbox        image.Rectangle
		firstSeenAt int
	}
	components := make(map[int]*component)
	var order []int

	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			idx := ty*tilesX + tx
			if !seed[idx] {
				continue
			}
			root := uf.find(idx)
			tileBox := tilePixelRect(tx, ty, bounds)
			c, ok := components[root]
			if !ok {
				c = &component{bbox: tileBox, firstSeenAt: len(order)}
				components[root] = c
				order = append(order, root)
			} else {
				c.bbox = c.bbox.Union(tileBox)
			}
		}
	}

	regions := make([]Region, 0, len(order))
	for _, root := range order {
		c := components[root]
		bbox := c.bbox.Intersect(bounds)
		w, h := bbox.Dx(), bbox.Dy()
		if maxInt(w, h) < cfg.MinRegion {
			continue
		}
		regions = append(regions, Region{
			BBox: bbox,
			Crop: cropRGBA(frame, bbox),
		})
	}
	return regions
}

// tileChanged reports whether any pixel in the (tx,ty) tile differs
// from background by more than threshold on any channel.
func tileChanged(frame, background *image.RGBA, bounds image.Rectangle, tx, ty int, threshold uint8) bool {
	rect := tilePixelRect(tx, ty, bounds)
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if pixelChanged(frame, background, x, y, threshold) {
				return true
			}
		}
	}
	return false
}

func pixelChanged(frame, background *image.RGBA, x, y int, threshold uint8) bool {
	fr, fg, fb, _ := frame.At(x, y).RGBA()
	br, bg, bb, _ := background.At(x, y).RGBA()
	// image.Color.RGBA() returns 16-bit-scaled components; reduce to
	// 8-bit before comparing against the spec's 0..255 threshold.
	dr := absDiff8(uint8(fr>>8), uint8(br>>8))
	dg := absDiff8(uint8(fg>>8), uint8(bg>>8))
	db := absDiff8(uint8(fb>>8), uint8(bb>>8))
	return maxUint8(dr, dg, db) > threshold
}

func absDiff8(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}

func maxUint8(vals ...uint8) uint8 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// tilePixelRect returns tile (tx,ty)'s extent in frame pixel
// coordinates, clamped to bounds — the clamp is what keeps a region
// touching the frame border from extending past it.
func tilePixelRect(tx, ty int, bounds image.Rectangle) image.Rectangle {
	x0 := bounds.Min.X + tx*tileSize
	y0 := bounds.Min.Y + ty*tileSize
	x1 := x0 + tileSize
	y1 := y0 + tileSize
	if x1 > bounds.Max.X {
		x1 = bounds.Max.X
	}
	if y1 > bounds.Max.Y {
		y1 = bounds.Max.Y
	}
	return image.Rect(x0, y0, x1, y1)
}

// eightNeighbors returns the grid indices of (tx,ty)'s up-to-8
// neighboring tiles that exist within [0,tilesX)x[0,tilesY).
func eightNeighbors(tx, ty, tilesX, tilesY int) []int {
	var out []int
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx, ny := tx+dx, ty+dy
			if nx < 0 || ny < 0 || nx >= tilesX || ny >= tilesY {
				continue
			}
			out = append(out, ny*tilesX+nx)
		}
	}
	return out
}

// cropRGBA copies frame's pixels within rect into a new, tightly
// packed *image.RGBA at origin (0,0) — sprites are stored asset-local,
// not frame-local, so the compositor places them via the timeline
// entry's (x,y) rather than the crop's own bounds.
func cropRGBA(frame *image.RGBA, rect image.Rectangle) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	for y := 0; y < rect.Dy(); y++ {
		srcOff := frame.PixOffset(rect.Min.X, rect.Min.Y+y)
		dstOff := out.PixOffset(0, y)
		copy(out.Pix[dstOff:dstOff+rect.Dx()*4], frame.Pix[srcOff:srcOff+rect.Dx()*4])
	}
	return out
}

// unionFind is a standard disjoint-set with path compression and
// union by rank, used to merge touching/overlapping seed tiles into
// connected components.
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent, rank: make([]int, n)}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
}
