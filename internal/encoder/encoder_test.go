package encoder

import (
	"errors"
	"image"
	"image/color"
	"io"
	"testing"

	"github.com/luminate-inc/vai/internal/rational"
	"github.com/luminate-inc/vai/internal/vaierrors"
)

// fakeSource replays a fixed slice of frames, the shape
// framesource.ReadAll expects: Next returns io.EOF once exhausted.
type fakeSource struct {
	frames []*image.RGBA
	fps    rational.Rate
	i      int
}

func (s *fakeSource) FPS() rational.Rate { return s.fps }

func (s *fakeSource) Next() (*image.RGBA, error) {
	if s.i >= len(s.frames) {
		return nil, io.EOF
	}
	f := s.frames[s.i]
	s.i++
	return f, nil
}

func (s *fakeSource) Close() error { return nil }

func solidFrame(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// stubAVIFEncode swaps in a fake AVIF encoder for the duration of a
// test, so the pipeline's asset/timeline bookkeeping is exercised
// without libavif.
func stubAVIFEncode(t *testing.T) {
	t.Helper()
	orig := avifEncode
	avifEncode = func(img *image.RGBA, quality int) ([]byte, error) {
		b := img.Bounds()
		return []byte{byte(b.Dx()), byte(b.Dy()), byte(quality)}, nil
	}
	t.Cleanup(func() { avifEncode = orig })
}

func TestEncodeEmptySource(t *testing.T) {
	stubAVIFEncode(t)
	src := &fakeSource{fps: rational.Rate{Num: 30, Den: 1}}
	_, err := Encode(src, DefaultConfig())
	if !vaierrors.Is(err, vaierrors.KindEmptySource) {
		t.Fatalf("Encode with zero frames: got %v, want EmptySource", err)
	}
}

func TestEncodeInconsistentDimensions(t *testing.T) {
	stubAVIFEncode(t)
	src := &fakeSource{
		fps: rational.Rate{Num: 30, Den: 1},
		frames: []*image.RGBA{
			solidFrame(4, 4, color.RGBA{A: 255}),
			solidFrame(8, 8, color.RGBA{A: 255}),
		},
	}
	_, err := Encode(src, DefaultConfig())
	if !vaierrors.Is(err, vaierrors.KindInconsistentDimensions) {
		t.Fatalf("Encode with mismatched frame dims: got %v, want InconsistentDimensions", err)
	}
}

func TestEncodeBackgroundOnlySource(t *testing.T) {
	stubAVIFEncode(t)
	src := &fakeSource{
		fps:    rational.Rate{Num: 30, Den: 1},
		frames: []*image.RGBA{solidFrame(4, 4, color.RGBA{R: 10, A: 255})},
	}
	c, err := Encode(src, DefaultConfig())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(c.Assets) != 1 || len(c.Timeline) != 1 {
		t.Fatalf("got %d assets / %d timeline entries, want 1/1", len(c.Assets), len(c.Timeline))
	}
	if c.Assets[0].AssetID != 0 {
		t.Fatalf("background AssetID = %d, want 0", c.Assets[0].AssetID)
	}
	if c.Timeline[0].ZOrder != 0 || c.Timeline[0].StartMs != 0 || c.Timeline[0].EndMs != c.Header.DurationMs {
		t.Fatalf("background entry = %+v, want full-duration z=0 at (0,0)", c.Timeline[0])
	}
}

func TestEncodeAssignsMonotonicAssetIDsInFrameOrder(t *testing.T) {
	stubAVIFEncode(t)

	bg := solidFrame(64, 64, color.RGBA{A: 255})
	frame1 := cloneRGBA(bg)
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			frame1.SetRGBA(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	frame2 := cloneRGBA(bg)
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			frame2.SetRGBA(x+48, y, color.RGBA{G: 200, A: 255})
		}
	}

	src := &fakeSource{
		fps:    rational.Rate{Num: 30, Den: 1},
		frames: []*image.RGBA{bg, frame1, frame2},
	}

	cfg := DefaultConfig()
	cfg.MinRegion = 1
	cfg.Threshold = 10

	c, err := Encode(src, cfg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if len(c.Assets) < 3 {
		t.Fatalf("got %d assets, want at least 3 (background + 2 frame regions)", len(c.Assets))
	}

	// Asset IDs must be assigned in strictly ascending, source-frame order.
	for i, a := range c.Assets {
		if a.AssetID != uint32(i) {
			t.Fatalf("assets[%d].AssetID = %d, want %d (strict source order)", i, a.AssetID, i)
		}
	}

	// Every non-background timeline entry must start within frame 1's
	// interval or at/after frame 2's start, never before frame 1.
	frame1Start := rational.FrameStartMs(1, src.fps)
	frame2Start := rational.FrameStartMs(2, src.fps)
	for _, e := range c.Timeline[1:] {
		if e.StartMs >= frame1Start && e.StartMs < frame2Start {
			continue // frame-1 region
		}
		if e.StartMs >= frame2Start {
			continue // frame-2 region
		}
		t.Fatalf("timeline entry %+v falls outside expected per-frame interval", e)
	}
}

func TestEncodeParallelWorkersProduceIdenticalOrderingToSerial(t *testing.T) {
	stubAVIFEncode(t)

	bg := solidFrame(96, 32, color.RGBA{A: 255})
	frames := []*image.RGBA{bg}
	for i := 0; i < 6; i++ {
		f := cloneRGBA(bg)
		off := i * 10
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				f.SetRGBA(off+x, y, color.RGBA{B: 200, A: 255})
			}
		}
		frames = append(frames, f)
	}

	run := func(workers int) []uint32 {
		src := &fakeSource{fps: rational.Rate{Num: 24, Den: 1}, frames: frames}
		cfg := DefaultConfig()
		cfg.MinRegion = 1
		cfg.Threshold = 10
		cfg.Workers = workers
		c, err := Encode(src, cfg)
		if err != nil {
			t.Fatalf("Encode(workers=%d): %v", workers, err)
		}
		ids := make([]uint32, len(c.Timeline))
		for i, e := range c.Timeline {
			ids[i] = e.AssetID
		}
		return ids
	}

	serial := run(1)
	parallel := run(4)

	if len(serial) != len(parallel) {
		t.Fatalf("serial produced %d timeline entries, parallel produced %d", len(serial), len(parallel))
	}
	for i := range serial {
		if serial[i] != parallel[i] {
			t.Fatalf("timeline entry %d: serial asset_id=%d, parallel asset_id=%d — worker pool broke determinism", i, serial[i], parallel[i])
		}
	}
}

func TestEncodePropagatesAVIFEncodeError(t *testing.T) {
	orig := avifEncode
	defer func() { avifEncode = orig }()
	wantErr := vaierrors.New(vaierrors.KindIoError, "boom")
	avifEncode = func(*image.RGBA, int) ([]byte, error) { return nil, wantErr }

	src := &fakeSource{
		fps:    rational.Rate{Num: 30, Den: 1},
		frames: []*image.RGBA{solidFrame(4, 4, color.RGBA{A: 255})},
	}
	_, err := Encode(src, DefaultConfig())
	if !errors.Is(err, wantErr) {
		t.Fatalf("Encode did not propagate AVIF encode error: got %v", err)
	}
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	out := image.NewRGBA(src.Bounds())
	copy(out.Pix, src.Pix)
	return out
}
