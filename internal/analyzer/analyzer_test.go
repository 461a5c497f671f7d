package analyzer

import (
	"image"
	"image/color"
	"testing"
)

func solidFrame(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestDeriveBackgroundIsFirstFrame(t *testing.T) {
	frames := []*image.RGBA{
		solidFrame(4, 4, color.RGBA{R: 1, A: 255}),
		solidFrame(4, 4, color.RGBA{R: 2, A: 255}),
	}
	bg := DeriveBackground(frames)
	if bg != frames[0] {
		t.Fatalf("DeriveBackground did not return frames[0]")
	}
}

func TestDetectMotionIdenticalFrameYieldsZeroRegions(t *testing.T) {
	bg := solidFrame(64, 64, color.RGBA{R: 10, G: 10, B: 10, A: 255})
	frame := solidFrame(64, 64, color.RGBA{R: 10, G: 10, B: 10, A: 255})
	regions := DetectMotion(frame, bg, Config{Threshold: 30, MinRegion: 1})
	if len(regions) != 0 {
		t.Fatalf("len(regions) = %d, want 0", len(regions))
	}
}

func TestDetectMotionFullyBlackFrameAgainstNonBlackBackground(t *testing.T) {
	bg := solidFrame(64, 64, color.RGBA{R: 200, G: 200, B: 200, A: 255})
	frame := solidFrame(64, 64, color.RGBA{A: 255})
	regions := DetectMotion(frame, bg, Config{Threshold: 10, MinRegion: 1})
	if len(regions) == 0 {
		t.Fatalf("expected regions for a fully-changed frame, got none")
	}
	total := image.Rectangle{}
	for _, r := range regions {
		total = total.Union(r.BBox)
	}
	if total != bg.Bounds() {
		t.Fatalf("merged region bbox = %v, want full frame %v", total, bg.Bounds())
	}
}

func TestDetectMotionMinRegionLargerThanFrameYieldsZero(t *testing.T) {
	bg := solidFrame(16, 16, color.RGBA{A: 255})
	frame := solidFrame(16, 16, color.RGBA{R: 255, A: 255})
	regions := DetectMotion(frame, bg, Config{Threshold: 10, MinRegion: 1000})
	if len(regions) != 0 {
		t.Fatalf("len(regions) = %d, want 0", len(regions))
	}
}

func TestDetectMotionThresholdZeroTriggersOnAnyDelta(t *testing.T) {
	bg := solidFrame(32, 32, color.RGBA{R: 10, A: 255})
	frame := bg
	frame = cloneRGBA(frame)
	frame.SetRGBA(5, 5, color.RGBA{R: 11, A: 255})

	regions := DetectMotion(frame, bg, Config{Threshold: 0, MinRegion: 1})
	if len(regions) == 0 {
		t.Fatalf("expected threshold=0 to trigger a region on a 1-unit delta")
	}
}

func TestDetectMotionRegionTouchingBorderIsClamped(t *testing.T) {
	bg := solidFrame(32, 32, color.RGBA{A: 255})
	frame := cloneRGBA(bg)
	for y := 0; y < 32; y++ {
		frame.SetRGBA(31, y, color.RGBA{R: 255, A: 255})
	}
	regions := DetectMotion(frame, bg, Config{Threshold: 10, MinRegion: 1})
	for _, r := range regions {
		if r.BBox.Max.X > 32 || r.BBox.Max.Y > 32 || r.BBox.Min.X < 0 || r.BBox.Min.Y < 0 {
			t.Fatalf("region bbox %v escapes frame bounds", r.BBox)
		}
	}
}

func TestDetectMotionThresholdMonotonicity(t *testing.T) {
	bg := solidFrame(128, 128, color.RGBA{A: 255})
	frame := cloneRGBA(bg)
	for y := 40; y < 60; y++ {
		for x := 40; x < 60; x++ {
			frame.SetRGBA(x, y, color.RGBA{R: 100, A: 255})
		}
	}

	loose := DetectMotion(frame, bg, Config{Threshold: 200, MinRegion: 1})
	strict := DetectMotion(frame, bg, Config{Threshold: 5, MinRegion: 1})

	if len(loose) > len(strict) {
		t.Fatalf("increasing threshold increased region count: loose=%d strict=%d", len(loose), len(strict))
	}
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	out := image.NewRGBA(src.Bounds())
	copy(out.Pix, src.Pix)
	return out
}
