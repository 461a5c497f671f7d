// Package compositor renders an RGBA frame for a requested timestamp
// from a parsed VAI container: it locates the timeline entries active
// at that timestamp, decodes (and caches) their AVIF sprites, and
// alpha-blends them in z-order onto a transparent-black canvas.
//
// compose_at is specified as a pure function of (container, timestamp)
// — a Compositor's decode cache and playback cursor affect latency
// only, never the bytes a given timestamp produces. See
// TestSeekDeterminism in compositor_test.go for the property this
// guarantees.
package compositor

import (
	"image"
	"sort"
	"sync"

	"github.com/luminate-inc/vai/internal/avifcodec"
	"github.com/luminate-inc/vai/internal/container"
	"github.com/luminate-inc/vai/internal/rational"
	"github.com/luminate-inc/vai/internal/vaierrors"
)

// DecodeFunc matches avifcodec.Decode's signature. The Compositor
// takes it as a dependency rather than calling avifcodec directly so
// the pure composition/blit logic can be exercised in tests against a
// fake decoder with no AVIF payloads involved.
type DecodeFunc func(data []byte, declaredWidth, declaredHeight uint32) (*image.RGBA, error)

// Compositor holds a read-only container view, an owned sprite-decode
// cache, and a playback cursor for sequential consumers (Advance/Seek
// are a convenience over repeated ComposeAt calls, not a source of
// truth).
type Compositor struct {
	c      *container.Container
	decode DecodeFunc

	mu    sync.RWMutex
	cache map[uint32]*image.RGBA

	current uint64
}

// New builds a Compositor over c, decoding sprites via avifcodec.
// c is treated as read-only and may be shared across multiple
// Compositors safely; each Compositor owns its own decode cache.
func New(c *container.Container) *Compositor {
	return NewWithDecoder(c, avifcodec.Decode)
}

// NewWithDecoder builds a Compositor using a caller-supplied decode
// function in place of avifcodec.Decode.
func NewWithDecoder(c *container.Container, decode DecodeFunc) *Compositor {
	return &Compositor{c: c, decode: decode, cache: make(map[uint32]*image.RGBA)}
}

// Width returns the container's frame width in pixels.
func (co *Compositor) Width() int { return int(co.c.Header.Width) }

// Height returns the container's frame height in pixels.
func (co *Compositor) Height() int { return int(co.c.Header.Height) }

// FPS returns the container's frame rate.
func (co *Compositor) FPS() rational.Rate { return co.c.Header.FPS() }

// DurationMs returns the container's total duration in milliseconds.
func (co *Compositor) DurationMs() uint64 { return co.c.Header.DurationMs }

// TotalFrames returns round(duration_ms * fps_num / (1000 * fps_den)).
func (co *Compositor) TotalFrames() uint64 { return co.c.TotalFrames() }

// CurrentFrame returns the playback cursor set by Seek/Advance.
func (co *Compositor) CurrentFrame() uint64 {
	co.mu.RLock()
	defer co.mu.RUnlock()
	return co.current
}

// Seek sets the playback cursor, clamped to [0, TotalFrames()).
func (co *Compositor) Seek(frameIndex uint64) {
	co.mu.Lock()
	defer co.mu.Unlock()
	total := co.c.TotalFrames()
	if total == 0 {
		co.current = 0
		return
	}
	if frameIndex >= total {
		frameIndex = total - 1
	}
	co.current = frameIndex
}

// Advance increments the playback cursor by one frame, clamped to
// TotalFrames()-1.
func (co *Compositor) Advance() {
	co.mu.Lock()
	defer co.mu.Unlock()
	total := co.c.TotalFrames()
	if total == 0 {
		return
	}
	if co.current+1 < total {
		co.current++
	}
}

// ComposeFrame composes the frame at the cursor-independent index
// frameIndex, equivalent to ComposeAt(frameIndex * 1000 * fps_den / fps_num).
func (co *Compositor) ComposeFrame(frameIndex uint64) (*image.RGBA, error) {
	ts := rational.FrameStartMs(frameIndex, co.c.Header.FPS())
	return co.ComposeAt(ts)
}

// ComposeAt renders the composed RGBA frame active at timestamp tsMs.
// It is a pure function of (container, tsMs); prior Seek/Advance calls
// never change its result.
func (co *Compositor) ComposeAt(tsMs uint64) (*image.RGBA, error) {
	out := image.NewRGBA(image.Rect(0, 0, co.Width(), co.Height()))

	active := activeEntries(co.c.Timeline, tsMs)
	for _, e := range active {
		sprite, err := co.decodeCached(e.entry.AssetID)
		if err != nil {
			return nil, err
		}
		blit(out, sprite, int(e.entry.X), int(e.entry.Y))
	}
	return out, nil
}

type indexedEntry struct {
	entry container.TimelineEntry
	index int // original insertion index, the stable tie-break
}

// activeEntries selects the timeline entries active at tsMs and
// returns them sorted by (z_order ascending, insertion index
// ascending) — the order composition must apply them in.
func activeEntries(timeline []container.TimelineEntry, tsMs uint64) []indexedEntry {
	var active []indexedEntry
	for i, e := range timeline {
		if e.EndMs > e.StartMs {
			if e.StartMs <= tsMs && tsMs < e.EndMs {
				active = append(active, indexedEntry{e, i})
			}
		} else if e.StartMs == tsMs {
			active = append(active, indexedEntry{e, i})
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].entry.ZOrder != active[j].entry.ZOrder {
			return active[i].entry.ZOrder < active[j].entry.ZOrder
		}
		return active[i].index < active[j].index
	})
	return active
}

// decodeCached returns the decoded RGBA sprite for assetID, decoding
// and caching on miss.
func (co *Compositor) decodeCached(assetID uint32) (*image.RGBA, error) {
	co.mu.RLock()
	if img, ok := co.cache[assetID]; ok {
		co.mu.RUnlock()
		return img, nil
	}
	co.mu.RUnlock()

	asset, ok := co.c.AssetByID(assetID)
	if !ok {
		return nil, vaierrors.Newf(vaierrors.KindAssetMissing, "timeline references unknown asset_id %d", assetID)
	}

	img, err := co.decode(asset.Data, asset.Width, asset.Height)
	if err != nil {
		return nil, err
	}

	co.mu.Lock()
	co.cache[assetID] = img
	co.mu.Unlock()
	return img, nil
}

// blit alpha-composites src onto dst at (x,y) using straight-alpha
// over, clipping src pixels that fall outside dst and skipping fully
// transparent src pixels.
func blit(dst, src *image.RGBA, x, y int) {
	dstBounds := dst.Bounds()
	srcBounds := src.Bounds()

	for sy := srcBounds.Min.Y; sy < srcBounds.Max.Y; sy++ {
		dy := y + (sy - srcBounds.Min.Y)
		if dy < dstBounds.Min.Y || dy >= dstBounds.Max.Y {
			continue
		}
		for sx := srcBounds.Min.X; sx < srcBounds.Max.X; sx++ {
			dx := x + (sx - srcBounds.Min.X)
			if dx < dstBounds.Min.X || dx >= dstBounds.Max.X {
				continue
			}

			so := src.PixOffset(sx, sy)
			sa := src.Pix[so+3]
			if sa == 0 {
				continue
			}
			sr, sg, sb := src.Pix[so], src.Pix[so+1], src.Pix[so+2]

			do := dst.PixOffset(dx, dy)
			dr, dg, db, da := dst.Pix[do], dst.Pix[do+1], dst.Pix[do+2], dst.Pix[do+3]

			inv := uint32(255 - sa)
			dst.Pix[do] = blendChannel(sr, dr, sa, inv)
			dst.Pix[do+1] = blendChannel(sg, dg, sa, inv)
			dst.Pix[do+2] = blendChannel(sb, db, sa, inv)
			dst.Pix[do+3] = uint8(uint32(sa) + uint32(da)*inv/255)
		}
	}
}

// blendChannel computes round((src*alpha + dst*(255-alpha)) / 255).
func blendChannel(src, dst, alpha uint8, inv uint32) uint8 {
	sum := uint32(src)*uint32(alpha) + uint32(dst)*inv
	return uint8((sum + 127) / 255)
}
