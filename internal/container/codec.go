package container

import (
	"bytes"
	"encoding/binary"

	"github.com/luminate-inc/vai/internal/vaierrors"
)

// Write serializes c into the .vai binary layout. It fails with
// InvalidHeader if any header invariant is violated; it does not
// re-validate asset/timeline structural invariants (those are the
// caller's responsibility to have constructed correctly — Read is
// where a third-party stream gets the full structural check).
func Write(c *Container) ([]byte, error) {
	if err := validateHeader(c.Header); err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	buf.Grow(4 + headerBodyLen + len(c.Assets)*assetRecordFixedLen + len(c.Timeline)*timelineRecordLen)

	buf.Write(Magic[:])
	writeHeader(buf, c.Header)

	for _, a := range c.Assets {
		writeU32(buf, a.AssetID)
		writeU32(buf, a.Width)
		writeU32(buf, a.Height)
		writeU32(buf, uint32(len(a.Data)))
		buf.Write(a.Data)
	}

	for _, e := range c.Timeline {
		writeU32(buf, e.AssetID)
		writeU64(buf, e.StartMs)
		writeU64(buf, e.EndMs)
		writeI32(buf, e.X)
		writeI32(buf, e.Y)
		writeI32(buf, e.ZOrder)
		buf.Write(make([]byte, timelineReservedBytes))
	}

	return buf.Bytes(), nil
}

// Read parses a .vai byte stream into a Container. It fails with
// BadMagic, UnsupportedVersion, or Truncated while walking the raw
// bytes, and with StructuralViolation once the full container is
// assembled but violates a §3 invariant (dangling asset_id, inverted
// start/end, missing or malformed background entry, ...).
func Read(data []byte) (*Container, error) {
	r := &reader{data: data}

	magic, err := r.take(4)
	if err != nil {
		return nil, vaierrors.AtOffset(vaierrors.KindBadMagic, 0, "truncated before magic")
	}
	if !bytes.Equal(magic, Magic[:]) {
		return nil, vaierrors.AtOffset(vaierrors.KindBadMagic, 0, "first four bytes are not VAI\\0")
	}

	header, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	if !SupportedVersions[header.Version] {
		return nil, vaierrors.AtOffset(vaierrors.KindUnsupportedVersion, 4, "unsupported format version")
	}

	assets := make([]Asset, 0, header.AssetCount)
	for i := uint32(0); i < header.AssetCount; i++ {
		a, err := readAsset(r)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}

	timeline := make([]TimelineEntry, 0, header.TimelineCount)
	for i := uint32(0); i < header.TimelineCount; i++ {
		e, err := readTimelineEntry(r)
		if err != nil {
			return nil, err
		}
		timeline = append(timeline, e)
	}

	c := NewContainer(header, assets, timeline)
	if err := validateStructure(c); err != nil {
		return nil, err
	}
	return c, nil
}

// --- header invariants (spec.md §3) ---

func validateHeader(h Header) error {
	if h.Width == 0 {
		return vaierrors.New(vaierrors.KindInvalidHeader, "width must be > 0")
	}
	if h.Height == 0 {
		return vaierrors.New(vaierrors.KindInvalidHeader, "height must be > 0")
	}
	if h.FPSDen == 0 {
		return vaierrors.New(vaierrors.KindInvalidHeader, "fps_den must be > 0")
	}
	if h.FPSNum == 0 {
		return vaierrors.New(vaierrors.KindInvalidHeader, "fps_num must be > 0")
	}
	// duration_ms >= (total_frames-1) * 1000 * fps_den / fps_num is
	// automatically satisfied here: total_frames is itself derived from
	// duration_ms (rational.TotalFrames), so this is a consistency
	// statement about how the *encoder* must compute duration_ms from
	// a frame count, not an independent fact to re-derive from the
	// header alone. The encoder enforces it at the point it knows N;
	// see internal/encoder.
	return nil
}

// --- structural invariants (spec.md §3), checked after a full parse ---

func validateStructure(c *Container) error {
	seen := make(map[uint32]bool, len(c.Assets))
	for _, a := range c.Assets {
		if seen[a.AssetID] {
			return vaierrors.Newf(vaierrors.KindStructuralViolation, "duplicate asset_id %d", a.AssetID)
		}
		seen[a.AssetID] = true
	}

	foundBackground := false
	for _, e := range c.Timeline {
		if e.StartMs > e.EndMs {
			return vaierrors.Newf(vaierrors.KindStructuralViolation, "timeline entry for asset %d has start_ms %d > end_ms %d", e.AssetID, e.StartMs, e.EndMs)
		}
		if e.EndMs > c.Header.DurationMs {
			return vaierrors.Newf(vaierrors.KindStructuralViolation, "timeline entry for asset %d has end_ms %d past duration_ms %d", e.AssetID, e.EndMs, c.Header.DurationMs)
		}
		if !seen[e.AssetID] {
			return vaierrors.Newf(vaierrors.KindStructuralViolation, "timeline entry references unknown asset_id %d", e.AssetID)
		}
		isBackground := e.AssetID == 0 && e.ZOrder == 0 && e.StartMs == 0 && e.EndMs == c.Header.DurationMs && e.X == 0 && e.Y == 0
		if isBackground {
			foundBackground = true
		} else if e.ZOrder < 1 {
			return vaierrors.Newf(vaierrors.KindStructuralViolation, "overlay entry for asset %d has z_order %d, want >= 1", e.AssetID, e.ZOrder)
		}
	}
	if len(c.Assets) > 0 && !foundBackground {
		return vaierrors.New(vaierrors.KindStructuralViolation, "no background timeline entry (asset_id=0, z=0, covering [0,duration_ms] at (0,0))")
	}
	return nil
}

// --- field-level binary helpers ---

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeI32(buf *bytes.Buffer, v int32) { writeU32(buf, uint32(v)) }

func writeHeader(buf *bytes.Buffer, h Header) {
	var b2 [2]byte
	binary.LittleEndian.PutUint16(b2[:], h.Version)
	buf.Write(b2[:])
	writeU32(buf, h.Width)
	writeU32(buf, h.Height)
	writeU32(buf, h.FPSNum)
	writeU32(buf, h.FPSDen)
	writeU64(buf, h.DurationMs)
	writeU32(buf, h.AssetCount)
	writeU32(buf, h.TimelineCount)
	buf.Write(make([]byte, headerReservedBytes))
}

// reader walks a byte slice with bounds-checked reads, tracking the
// absolute offset so Truncated errors can report where the stream
// ran out.
type reader struct {
	data []byte
	pos  int64
}

func (r *reader) take(n int) ([]byte, error) {
	if int64(len(r.data))-r.pos < int64(n) {
		return nil, vaierrors.AtOffset(vaierrors.KindTruncated, r.pos, "unexpected end of stream")
	}
	b := r.data[r.pos : r.pos+int64(n)]
	r.pos += int64(n)
	return b, nil
}

func (r *reader) u16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *reader) u32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) u64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *reader) i32() (int32, error) {
	v, err := r.u32()
	return int32(v), err
}

func readHeader(r *reader) (Header, error) {
	var h Header
	var err error
	if h.Version, err = r.u16(); err != nil {
		return h, err
	}
	if h.Width, err = r.u32(); err != nil {
		return h, err
	}
	if h.Height, err = r.u32(); err != nil {
		return h, err
	}
	if h.FPSNum, err = r.u32(); err != nil {
		return h, err
	}
	if h.FPSDen, err = r.u32(); err != nil {
		return h, err
	}
	if h.DurationMs, err = r.u64(); err != nil {
		return h, err
	}
	if h.AssetCount, err = r.u32(); err != nil {
		return h, err
	}
	if h.TimelineCount, err = r.u32(); err != nil {
		return h, err
	}
	if _, err := r.take(headerReservedBytes); err != nil {
		return h, err
	}
	return h, nil
}

func readAsset(r *reader) (Asset, error) {
	var a Asset
	var err error
	if a.AssetID, err = r.u32(); err != nil {
		return a, err
	}
	if a.Width, err = r.u32(); err != nil {
		return a, err
	}
	if a.Height, err = r.u32(); err != nil {
		return a, err
	}
	dataLen, err := r.u32()
	if err != nil {
		return a, err
	}
	data, err := r.take(int(dataLen))
	if err != nil {
		return a, err
	}
	a.Data = append([]byte(nil), data...)
	return a, nil
}

func readTimelineEntry(r *reader) (TimelineEntry, error) {
	var e TimelineEntry
	var err error
	if e.AssetID, err = r.u32(); err != nil {
		return e, err
	}
	if e.StartMs, err = r.u64(); err != nil {
		return e, err
	}
	if e.EndMs, err = r.u64(); err != nil {
		return e, err
	}
	if e.X, err = r.i32(); err != nil {
		return e, err
	}
	if e.Y, err = r.i32(); err != nil {
		return e, err
	}
	if e.ZOrder, err = r.i32(); err != nil {
		return e, err
	}
	if _, err := r.take(timelineReservedBytes); err != nil {
		return e, err
	}
	return e, nil
}
