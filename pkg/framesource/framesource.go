// Package framesource defines the pluggable raw-frame input contract the
// encoder pipeline is built against, plus a dependency-light reference
// implementation (a directory of sequentially-numbered PNG frames, or a
// raw interleaved RGBA stream) so the encoder is exercisable without a
// full video-decoding stack wired in.
package framesource

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/luminate-inc/vai/internal/rational"
)

// Source is the contract internal/encoder depends on: a finite,
// ordered sequence of RGBA frames sharing one rate. Next returns
// io.EOF once exhausted; it does not need to be called again after
// that.
type Source interface {
	Next() (*image.RGBA, error)
	FPS() rational.Rate
	Close() error
}

// pngDirSource reads frame000000.png, frame000001.png, ... (any
// sequentially-sortable filename) from a directory in lexical order.
type pngDirSource struct {
	files []string
	fps   rational.Rate
	index int
}

// OpenPNGDir opens dir and globs it for *.png files, sorted
// lexically (zero-padded names sort correctly; callers are
// responsible for consistent padding). fps is the rate to report,
// since PNG frames carry no timing metadata of their own.
func OpenPNGDir(dir string, fps rational.Rate) (Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("framesource: read dir %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if filepath.Ext(e.Name()) == ".png" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, fmt.Errorf("framesource: no .png files in %s", dir)
	}

	return &pngDirSource{files: files, fps: fps}, nil
}

func (s *pngDirSource) FPS() rational.Rate { return s.fps }

func (s *pngDirSource) Next() (*image.RGBA, error) {
	if s.index >= len(s.files) {
		return nil, io.EOF
	}
	path := s.files[s.index]
	s.index++

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("framesource: open %s: %w", path, err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("framesource: decode %s: %w", path, err)
	}
	return toRGBA(img), nil
}

func (s *pngDirSource) Close() error { return nil }

// toRGBA returns img unchanged when it is already a tightly packed
// *image.RGBA; otherwise it copies img into a new one, converting the
// pixel format if the PNG wasn't already RGBA (e.g. paletted or NRGBA).
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Stride == rgba.Bounds().Dx()*4 {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Set(x, y, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}

// rawRGBASource reads a headerless stream of width*height*4-byte RGBA
// frames, one after another, from an io.Reader.
type rawRGBASource struct {
	r             *bufio.Reader
	closer        io.Closer
	width, height int
	fps           rational.Rate
	frameBytes    int
}

// OpenRawRGBA wraps r as a Source of width x height RGBA frames at
// fps. The caller is responsible for r's lifecycle if it does not
// implement io.Closer; OpenRawRGBA only closes r when it does.
func OpenRawRGBA(r io.Reader, width, height int, fps rational.Rate) (Source, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.New("framesource: width and height must be positive")
	}
	closer, _ := r.(io.Closer)
	return &rawRGBASource{
		r:          bufio.NewReader(r),
		closer:     closer,
		width:      width,
		height:     height,
		fps:        fps,
		frameBytes: width * height * 4,
	}, nil
}

func (s *rawRGBASource) FPS() rational.Rate { return s.fps }

func (s *rawRGBASource) Next() (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	if _, err := io.ReadFull(s.r, img.Pix[:s.frameBytes]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}
	return img, nil
}

func (s *rawRGBASource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// ReadAll drains source into a slice of frames, the shape
// internal/encoder.Encode needs per spec.md §4.4 step 1 ("pull every
// frame from source").
func ReadAll(source Source) ([]*image.RGBA, error) {
	var frames []*image.RGBA
	for {
		f, err := source.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, nil
}
