package compositor

import (
	"bytes"
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/luminate-inc/vai/internal/container"
	"github.com/luminate-inc/vai/internal/vaierrors"
)

// fakeDecoder maps an asset's Data payload (used here as an opaque
// lookup key, not real AVIF bytes) to its pixels, so tests can drive
// the compositor's blit/active-entry logic without libavif.
func fakeDecoder(assets map[string]*image.RGBA) DecodeFunc {
	return func(data []byte, w, h uint32) (*image.RGBA, error) {
		img, ok := assets[string(data)]
		if !ok {
			return nil, vaierrors.New(vaierrors.KindCorruptAsset, "fakeDecoder: unknown payload")
		}
		if uint32(img.Bounds().Dx()) != w || uint32(img.Bounds().Dy()) != h {
			return nil, vaierrors.New(vaierrors.KindDimensionMismatch, "fakeDecoder: dimension mismatch")
		}
		return img, nil
	}
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestBackgroundOnlyComposition(t *testing.T) {
	red := solid(2, 2, color.RGBA{R: 255, A: 255})
	assets := map[string]*image.RGBA{"bg": red}

	c := container.NewContainer(
		container.Header{Version: 1, Width: 2, Height: 2, FPSNum: 30, FPSDen: 1, DurationMs: 1000, AssetCount: 1, TimelineCount: 1},
		[]container.Asset{{AssetID: 0, Width: 2, Height: 2, Data: []byte("bg")}},
		[]container.TimelineEntry{{AssetID: 0, StartMs: 0, EndMs: 1000, X: 0, Y: 0, ZOrder: 0}},
	)

	co := NewWithDecoder(c, fakeDecoder(assets))
	got, err := co.ComposeAt(500)
	if err != nil {
		t.Fatalf("ComposeAt: %v", err)
	}
	for i := 0; i < len(got.Pix); i += 4 {
		px := got.Pix[i : i+4]
		if !bytes.Equal(px, []byte{255, 0, 0, 255}) {
			t.Fatalf("pixel %d = %v, want [255 0 0 255]", i/4, px)
		}
	}
}

func TestTwoLayerOverlay(t *testing.T) {
	red := solid(4, 4, color.RGBA{R: 255, A: 255})
	green := solid(2, 2, color.RGBA{G: 255, A: 255})
	assets := map[string]*image.RGBA{"bg": red, "ov": green}

	c := container.NewContainer(
		container.Header{Version: 1, Width: 4, Height: 4, FPSNum: 30, FPSDen: 1, DurationMs: 1000, AssetCount: 2, TimelineCount: 2},
		[]container.Asset{
			{AssetID: 0, Width: 4, Height: 4, Data: []byte("bg")},
			{AssetID: 1, Width: 2, Height: 2, Data: []byte("ov")},
		},
		[]container.TimelineEntry{
			{AssetID: 0, StartMs: 0, EndMs: 1000, X: 0, Y: 0, ZOrder: 0},
			{AssetID: 1, StartMs: 0, EndMs: 1000, X: 1, Y: 1, ZOrder: 1},
		},
	)

	co := NewWithDecoder(c, fakeDecoder(assets))
	got, err := co.ComposeAt(0)
	if err != nil {
		t.Fatalf("ComposeAt: %v", err)
	}

	green4 := []byte{0, 255, 0, 255}
	red4 := []byte{255, 0, 0, 255}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			off := got.PixOffset(x, y)
			want := red4
			if x >= 1 && x <= 2 && y >= 1 && y <= 2 {
				want = green4
			}
			if !bytes.Equal(got.Pix[off:off+4], want) {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got.Pix[off:off+4], want)
			}
		}
	}
}

func TestAlphaBlending(t *testing.T) {
	red := solid(1, 1, color.RGBA{R: 255, A: 255})
	greenHalf := solid(1, 1, color.RGBA{G: 255, A: 128})
	assets := map[string]*image.RGBA{"bg": red, "ov": greenHalf}

	c := container.NewContainer(
		container.Header{Version: 1, Width: 1, Height: 1, FPSNum: 30, FPSDen: 1, DurationMs: 1000, AssetCount: 2, TimelineCount: 2},
		[]container.Asset{
			{AssetID: 0, Width: 1, Height: 1, Data: []byte("bg")},
			{AssetID: 1, Width: 1, Height: 1, Data: []byte("ov")},
		},
		[]container.TimelineEntry{
			{AssetID: 0, StartMs: 0, EndMs: 1000, ZOrder: 0},
			{AssetID: 1, StartMs: 0, EndMs: 1000, ZOrder: 1},
		},
	)

	co := NewWithDecoder(c, fakeDecoder(assets))
	got, err := co.ComposeAt(0)
	if err != nil {
		t.Fatalf("ComposeAt: %v", err)
	}
	want := []byte{127, 128, 0, 255}
	if !bytes.Equal(got.Pix[0:4], want) {
		t.Fatalf("pixel = %v, want %v", got.Pix[0:4], want)
	}
}

func buildMultiLayerContainer() (*container.Container, map[string]*image.RGBA) {
	red := solid(4, 4, color.RGBA{R: 255, A: 255})
	green := solid(2, 2, color.RGBA{G: 255, A: 255})
	assets := map[string]*image.RGBA{"bg": red, "ov": green}
	c := container.NewContainer(
		container.Header{Version: 1, Width: 4, Height: 4, FPSNum: 30, FPSDen: 1, DurationMs: 1000, AssetCount: 2, TimelineCount: 2},
		[]container.Asset{
			{AssetID: 0, Width: 4, Height: 4, Data: []byte("bg")},
			{AssetID: 1, Width: 2, Height: 2, Data: []byte("ov")},
		},
		[]container.TimelineEntry{
			{AssetID: 0, StartMs: 0, EndMs: 1000, X: 0, Y: 0, ZOrder: 0},
			{AssetID: 1, StartMs: 0, EndMs: 1000, X: 1, Y: 1, ZOrder: 1},
		},
	)
	return c, assets
}

func TestSeekDeterminism(t *testing.T) {
	c, assets := buildMultiLayerContainer()

	cold := NewWithDecoder(c, fakeDecoder(assets))
	coldFrame, err := cold.ComposeAt(500)
	if err != nil {
		t.Fatalf("cold ComposeAt: %v", err)
	}

	warm := NewWithDecoder(c, fakeDecoder(assets))
	rng := rand.New(rand.NewSource(1))
	total := warm.TotalFrames()
	for i := 0; i < 1000; i++ {
		if rng.Intn(2) == 0 && total > 0 {
			warm.Seek(uint64(rng.Intn(int(total))))
		} else {
			warm.Advance()
		}
	}
	warmFrame, err := warm.ComposeAt(500)
	if err != nil {
		t.Fatalf("warm ComposeAt: %v", err)
	}

	if !bytes.Equal(coldFrame.Pix, warmFrame.Pix) {
		t.Fatalf("compose_at(500) differs after seek/advance churn")
	}
}

func TestZOrderOverlapLaterInsertionWins(t *testing.T) {
	red := solid(2, 2, color.RGBA{R: 255, A: 255})
	blue := solid(2, 2, color.RGBA{B: 255, A: 255})
	yellow := solid(2, 2, color.RGBA{R: 255, G: 255, A: 255})
	assets := map[string]*image.RGBA{"bg": red, "a": blue, "b": yellow}

	c := container.NewContainer(
		container.Header{Version: 1, Width: 2, Height: 2, FPSNum: 30, FPSDen: 1, DurationMs: 1000, AssetCount: 3, TimelineCount: 3},
		[]container.Asset{
			{AssetID: 0, Width: 2, Height: 2, Data: []byte("bg")},
			{AssetID: 1, Width: 2, Height: 2, Data: []byte("a")},
			{AssetID: 2, Width: 2, Height: 2, Data: []byte("b")},
		},
		[]container.TimelineEntry{
			{AssetID: 0, StartMs: 0, EndMs: 1000, ZOrder: 0},
			{AssetID: 1, StartMs: 0, EndMs: 1000, ZOrder: 1},
			{AssetID: 2, StartMs: 0, EndMs: 1000, ZOrder: 1},
		},
	)
	co := NewWithDecoder(c, fakeDecoder(assets))
	got, err := co.ComposeAt(0)
	if err != nil {
		t.Fatalf("ComposeAt: %v", err)
	}
	want := []byte{255, 255, 0, 255}
	if !bytes.Equal(got.Pix[0:4], want) {
		t.Fatalf("overlapping same-z entries: got %v, want %v (later insertion wins)", got.Pix[0:4], want)
	}
}

func TestAssetMissing(t *testing.T) {
	c := container.NewContainer(
		container.Header{Version: 1, Width: 2, Height: 2, FPSNum: 30, FPSDen: 1, DurationMs: 1000},
		nil,
		[]container.TimelineEntry{{AssetID: 5, StartMs: 0, EndMs: 1000, ZOrder: 0}},
	)
	co := NewWithDecoder(c, fakeDecoder(nil))
	_, err := co.ComposeAt(0)
	if !vaierrors.Is(err, vaierrors.KindAssetMissing) {
		t.Fatalf("ComposeAt with dangling asset: got %v, want AssetMissing", err)
	}
}

func TestHalfOpenIntervalAtSharedEndpoint(t *testing.T) {
	c, assets := buildMultiLayerContainer()
	co := NewWithDecoder(c, fakeDecoder(assets))

	// Every entry covers [0,1000); at ts=1000 none are active, so the
	// composed frame is fully transparent rather than erroring.
	got, err := co.ComposeAt(1000)
	if err != nil {
		t.Fatalf("ComposeAt: %v", err)
	}
	for i := 0; i < len(got.Pix); i += 4 {
		if !bytes.Equal(got.Pix[i:i+4], []byte{0, 0, 0, 0}) {
			t.Fatalf("pixel %d = %v, want transparent once end_ms is exclusive", i/4, got.Pix[i:i+4])
		}
	}
}
