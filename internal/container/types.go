// Package container implements the bit-exact binary layout of the
// .vai file format: a fixed header, an asset table, and a timeline.
// Round-trip fidelity (Read(Write(c)) == c) is the contract between
// encoder, decoder, and any third-party tool that speaks the format.
package container

import "github.com/luminate-inc/vai/internal/rational"

// Magic is the four-byte file signature every .vai stream begins with.
var Magic = [4]byte{'V', 'A', 'I', 0}

// SupportedVersions is the set of format versions this codec accepts
// on read. Only version 1 exists today.
var SupportedVersions = map[uint16]bool{1: true}

// CurrentVersion is the version this codec emits on write.
const CurrentVersion uint16 = 1

// headerReservedBytes pads the header body out to the 40-byte size the
// format specifies; the fields declared below only account for 34
// bytes, so 6 reserved bytes (always zero on write, ignored on read)
// close the gap. This is not a guess: it falls directly out of the
// 44-byte minimal-header literal test vector (4-byte magic + 40-byte
// header body, with the last 6 bytes zero after timeline_count).
const headerReservedBytes = 6

// timelineReservedBytes pads each 32-byte-of-fields timeline record
// out to the spec's declared 36-byte record size, by the same
// reasoning as headerReservedBytes.
const timelineReservedBytes = 4

// headerBodyLen is the fixed size, in bytes, of the header body that
// follows the 4-byte magic (40 bytes per spec.md §4.1).
const headerBodyLen = 2 + 4 + 4 + 4 + 4 + 8 + 4 + 4 + headerReservedBytes

// assetRecordFixedLen is the fixed portion of an asset-table record,
// not counting the variable-length AVIF payload.
const assetRecordFixedLen = 4 + 4 + 4 + 4

// timelineRecordLen is the fixed size of one timeline record.
const timelineRecordLen = 4 + 8 + 8 + 4 + 4 + 4 + timelineReservedBytes

// Header is the fixed-size descriptor at the front of a .vai stream.
type Header struct {
	Version       uint16
	Width         uint32
	Height        uint32
	FPSNum        uint32
	FPSDen        uint32
	DurationMs    uint64
	AssetCount    uint32
	TimelineCount uint32
}

// FPS returns the header's frame rate as a rational.Rate.
func (h Header) FPS() rational.Rate {
	return rational.Rate{Num: h.FPSNum, Den: h.FPSDen}
}

// Asset is one compressed sprite: a unique id, its declared pixel
// dimensions, and an opaque AVIF byte payload. asset_id == 0 is
// conventionally the background plate.
type Asset struct {
	AssetID uint32
	Width   uint32
	Height  uint32
	Data    []byte
}

// TimelineEntry places one asset on the output for a span of time.
type TimelineEntry struct {
	AssetID uint32
	StartMs uint64
	EndMs   uint64
	X       int32
	Y       int32
	ZOrder  int32
}

// Container is the parsed in-memory form of a .vai stream: a header,
// an ordered asset table (also indexed by asset_id for O(1) lookup),
// and an ordered timeline. Parsing transfers ownership of the decoded
// byte payloads into the Container; once built, a Container is
// read-only and safe to share across multiple compositors.
type Container struct {
	Header   Header
	Assets   []Asset
	Timeline []TimelineEntry

	assetIndex map[uint32]int
}

// NewContainer builds a Container from already-validated parts and
// indexes the asset table by id. Callers that construct a Container
// programmatically (as the encoder does) should use this rather than
// building the struct literal directly, so the index is never stale.
func NewContainer(header Header, assets []Asset, timeline []TimelineEntry) *Container {
	c := &Container{Header: header, Assets: assets, Timeline: timeline}
	c.reindex()
	return c
}

func (c *Container) reindex() {
	c.assetIndex = make(map[uint32]int, len(c.Assets))
	for i, a := range c.Assets {
		c.assetIndex[a.AssetID] = i
	}
}

// AssetByID returns the asset with the given id in O(1), and whether
// it was found.
func (c *Container) AssetByID(id uint32) (Asset, bool) {
	if c.assetIndex == nil {
		c.reindex()
	}
	i, ok := c.assetIndex[id]
	if !ok {
		return Asset{}, false
	}
	return c.Assets[i], true
}

// TotalFrames returns round(duration_ms * fps_num / (1000 * fps_den)).
func (c *Container) TotalFrames() uint64 {
	return rational.TotalFrames(c.Header.DurationMs, c.Header.FPS())
}

// FrameIndexAt returns floor(ts_ms * fps_num / (1000 * fps_den)).
func (c *Container) FrameIndexAt(tsMs uint64) uint64 {
	return rational.FrameIndexAt(tsMs, c.Header.FPS())
}
