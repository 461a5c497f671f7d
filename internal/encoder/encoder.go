// Package encoder orchestrates the full encode pipeline: pull frames
// from a framesource.Source, derive a background plate, detect
// per-frame motion regions, encode everything to AVIF, and assemble a
// container.Container with asset IDs and timeline entries assigned in
// strict source-frame order.
package encoder

import (
	"image"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/luminate-inc/vai/internal/analyzer"
	"github.com/luminate-inc/vai/internal/avifcodec"
	"github.com/luminate-inc/vai/internal/container"
	"github.com/luminate-inc/vai/internal/rational"
	"github.com/luminate-inc/vai/internal/vaierrors"
	"github.com/luminate-inc/vai/pkg/framesource"
	"github.com/luminate-inc/vai/pkg/performance"
)

// Config tunes the encode. Zero-valued MinRegion and Workers are
// replaced by DefaultConfig's defaults in Encode; Quality and Threshold
// are used as given, since 0 is a valid setting for both (use
// DefaultConfig for their defaults).
type Config struct {
	Quality     int            // 0..100, default 80
	Threshold   uint8          // 0..255, default 30
	MinRegion   int            // default 64
	FPSOverride *rational.Rate // nil uses the source's own rate

	// Workers bounds the number of frames encoded concurrently.
	// 0 or 1 runs strictly sequentially.
	Workers int

	// Progress, if set, is called after every frame's AVIF encode
	// completes (not necessarily in frame order — see Workers).
	// It never influences output bytes; disabling it changes nothing
	// but telemetry.
	Progress func(ProgressEvent)
}

// ProgressEvent reports one frame's encode latency and the encoder's
// rolling average, the shape pkg/performance.RollingAverage produces.
type ProgressEvent struct {
	FrameIndex int
	Elapsed    time.Duration
	RollingAvg time.Duration
	Pressure   performance.MemoryPressureLevel
}

// avifEncode is swapped out in tests so the orchestration logic below
// (asset-ID assignment, timeline construction, worker-pool ordering)
// can be verified without linking libavif, the same seam the
// compositor package gives its decode step via DecodeFunc.
var avifEncode = avifcodec.Encode

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{Quality: 80, Threshold: 30, MinRegion: 64, Workers: 1}
}

func (c Config) withDefaults() Config {
	if c.MinRegion == 0 {
		c.MinRegion = 64
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	return c
}

// Encode runs the full pipeline over source and returns the assembled
// container. See spec.md §4.4 for the per-step contract this follows.
func Encode(source framesource.Source, cfg Config) (*container.Container, error) {
	cfg = cfg.withDefaults()

	frames, err := framesource.ReadAll(source)
	if err != nil {
		return nil, vaierrors.Wrap(vaierrors.KindIoError, err, "reading frames from source")
	}
	if len(frames) == 0 {
		return nil, vaierrors.New(vaierrors.KindEmptySource, "frame source produced zero frames")
	}

	width, height := frameDims(frames[0])
	for i, f := range frames[1:] {
		w, h := frameDims(f)
		if w != width || h != height {
			return nil, vaierrors.Newf(vaierrors.KindInconsistentDimensions,
				"frame %d is %dx%d, want %dx%d", i+1, w, h, width, height)
		}
	}

	fps := source.FPS()
	if cfg.FPSOverride != nil {
		fps = *cfg.FPSOverride
	}

	background := analyzer.DeriveBackground(frames)

	bgPayload, err := avifEncode(background, cfg.Quality)
	if err != nil {
		return nil, err
	}

	durationMs := rational.DurationMs(uint64(len(frames)), fps)

	assets := []container.Asset{{
		AssetID: 0,
		Width:   uint32(width),
		Height:  uint32(height),
		Data:    bgPayload,
	}}
	timeline := []container.TimelineEntry{{
		AssetID: 0,
		StartMs: 0,
		EndMs:   durationMs,
		X:       0,
		Y:       0,
		ZOrder:  0,
	}}

	analyzerCfg := analyzer.Config{Threshold: cfg.Threshold, MinRegion: cfg.MinRegion}

	perFrame, err := encodeFrames(frames, background, analyzerCfg, cfg)
	if err != nil {
		return nil, err
	}

	nextAssetID := uint32(1)
	for i := 1; i < len(frames); i++ {
		startMs := rational.FrameStartMs(uint64(i), fps)
		endMs := rational.FrameStartMs(uint64(i+1), fps)

		for zOffset, region := range perFrame[i] {
			asset := container.Asset{
				AssetID: nextAssetID,
				Width:   uint32(region.bbox.Dx()),
				Height:  uint32(region.bbox.Dy()),
				Data:    region.payload,
			}
			assets = append(assets, asset)
			timeline = append(timeline, container.TimelineEntry{
				AssetID: nextAssetID,
				StartMs: startMs,
				EndMs:   endMs,
				X:       int32(region.bbox.Min.X),
				Y:       int32(region.bbox.Min.Y),
				ZOrder:  int32(zOffset + 1),
			})
			nextAssetID++
		}
	}

	header := container.Header{
		Version:       container.CurrentVersion,
		Width:         uint32(width),
		Height:        uint32(height),
		FPSNum:        fps.Num,
		FPSDen:        fps.Den,
		DurationMs:    durationMs,
		AssetCount:    uint32(len(assets)),
		TimelineCount: uint32(len(timeline)),
	}

	return container.NewContainer(header, assets, timeline), nil
}

// encodedRegion is one motion region's AVIF payload, positioned in
// frame coordinates.
type encodedRegion struct {
	bbox    image.Rectangle
	payload []byte
}

// encodeFrames runs motion detection + AVIF encoding for frames[1:],
// returning perFrame[i] = the frame i's surviving regions in
// deterministic emission order. When cfg.Workers > 1, frames are
// detected/encoded concurrently, but the result slice is indexed by
// frame so the caller's subsequent asset-ID/timeline assignment is
// always in strict source-frame order regardless of completion order.
func encodeFrames(frames []*image.RGBA, background *image.RGBA, analyzerCfg analyzer.Config, cfg Config) ([][]encodedRegion, error) {
	perFrame := make([][]encodedRegion, len(frames))
	if len(frames) <= 1 {
		return perFrame, nil
	}

	avg := performance.NewRollingAverage(32)

	var g errgroup.Group
	g.SetLimit(cfg.Workers)

	for i := 1; i < len(frames); i++ {
		i := i
		g.Go(func() error {
			start := time.Now()

			regions := analyzer.DetectMotion(frames[i], background, analyzerCfg)
			encoded := make([]encodedRegion, 0, len(regions))
			for _, r := range regions {
				payload, err := avifEncode(r.Crop, cfg.Quality)
				if err != nil {
					return err
				}
				encoded = append(encoded, encodedRegion{bbox: r.BBox, payload: payload})
			}
			perFrame[i] = encoded

			elapsed := time.Since(start)
			avg.Add(elapsed)
			if cfg.Progress != nil {
				cfg.Progress(ProgressEvent{
					FrameIndex: i,
					Elapsed:    elapsed,
					RollingAvg: avg.Average(),
					Pressure:   performance.GetMemoryPressure(),
				})
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return perFrame, nil
}

func frameDims(f *image.RGBA) (int, int) {
	b := f.Bounds()
	return b.Dx(), b.Dy()
}
