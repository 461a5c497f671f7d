// Package player is a host shim that drives an SDL2 preview window off
// a compositor.Compositor's compose_at/seek surface. It is explicitly
// outside the decoder core (spec.md §6.3): it performs no decoding of
// its own and consumes only the Compositor's public operations.
package player

import (
	"fmt"
	"runtime"
	"time"

	"github.com/veandco/go-sdl2/sdl"

	"github.com/luminate-inc/vai/internal/compositor"
	"github.com/luminate-inc/vai/pkg/input"
	"github.com/luminate-inc/vai/pkg/performance"
)

// Player is the preview-window contract the CLI's `decode` (no
// output flags, interactive mode) drives.
type Player interface {
	// Run blocks until the window is closed or ctx-equivalent stop
	// condition occurs, composing and presenting frames at the
	// container's own frame rate.
	Run() error
	Close() error
}

// sdlPlayer presents compose_at output in an SDL2 window, with
// space/arrow keys for play-pause/seek, adapted from the teacher's
// main.go window/renderer setup and pkg/input's press-edge trackers.
type sdlPlayer struct {
	co       *compositor.Compositor
	title    string
	window   *sdl.Window
	renderer *sdl.Renderer
	texture  *sdl.Texture

	keys  input.KeyPressTracker
	stats *performance.PerformanceMonitor
	skip  *frameSkipper

	playing bool
}

// New opens an SDL2 window sized to co's frame dimensions and returns
// a Player ready to Run. title is used as the window title.
func New(co *compositor.Compositor, title string) (Player, error) {
	runtime.LockOSThread()

	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, fmt.Errorf("player: sdl.Init: %w", err)
	}

	window, err := sdl.CreateWindow(title, sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
		int32(co.Width()), int32(co.Height()), sdl.WINDOW_SHOWN)
	if err != nil {
		sdl.Quit()
		return nil, fmt.Errorf("player: CreateWindow: %w", err)
	}

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED|sdl.RENDERER_PRESENTVSYNC)
	if err != nil {
		renderer, err = sdl.CreateRenderer(window, -1, sdl.RENDERER_SOFTWARE)
		if err != nil {
			window.Destroy()
			sdl.Quit()
			return nil, fmt.Errorf("player: CreateRenderer: %w", err)
		}
	}

	texture, err := renderer.CreateTexture(sdl.PIXELFORMAT_ABGR8888, sdl.TEXTUREACCESS_STREAMING,
		int32(co.Width()), int32(co.Height()))
	if err != nil {
		renderer.Destroy()
		window.Destroy()
		sdl.Quit()
		return nil, fmt.Errorf("player: CreateTexture: %w", err)
	}

	return &sdlPlayer{
		co:       co,
		title:    title,
		window:   window,
		renderer: renderer,
		texture:  texture,
		keys:     input.NewKeyPressTracker(),
		stats:    performance.NewMonitor(120),
		playing:  true,
	}, nil
}

// Run drives the event/compose/present loop until the window is
// closed or Escape/Q is pressed.
func (p *sdlPlayer) Run() error {
	fps := p.co.FPS()
	var frameInterval time.Duration
	if fps.Num > 0 {
		frameInterval = time.Second * time.Duration(fps.Den) / time.Duration(fps.Num)
	} else {
		frameInterval = time.Second / 30
	}
	p.skip = newFrameSkipper(frameInterval)

	running := true
	for running {
		for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
			if _, ok := event.(*sdl.QuitEvent); ok {
				running = false
			}
		}

		keyState := sdl.GetKeyboardState()
		if p.keys.IsPressed(keyState, sdl.SCANCODE_ESCAPE) || p.keys.IsPressed(keyState, sdl.SCANCODE_Q) {
			running = false
			continue
		}
		if p.keys.IsPressed(keyState, sdl.SCANCODE_SPACE) {
			p.playing = !p.playing
		}
		if p.keys.IsPressed(keyState, sdl.SCANCODE_RIGHT) {
			p.co.Seek(p.co.CurrentFrame() + 1)
		}
		if p.keys.IsPressed(keyState, sdl.SCANCODE_LEFT) {
			if cur := p.co.CurrentFrame(); cur > 0 {
				p.co.Seek(cur - 1)
			}
		}

		loopStart := time.Now()

		report := p.stats.GetReport()
		composeThisFrame := p.skip.shouldCompose(time.Duration(report.AvgDecodeMs * float64(time.Millisecond)))

		if composeThisFrame {
			start := time.Now()
			frame, err := p.co.ComposeFrame(p.co.CurrentFrame())
			if err != nil {
				return fmt.Errorf("player: compose frame %d: %w", p.co.CurrentFrame(), err)
			}
			p.stats.RecordFrameDecode(time.Since(start))

			renderStart := time.Now()
			if err := p.texture.Update(nil, frame.Pix, frame.Stride); err != nil {
				return fmt.Errorf("player: texture update: %w", err)
			}
			p.renderer.Clear()
			p.renderer.Copy(p.texture, nil, nil)
			p.renderer.Present()
			p.stats.RecordFrameRender(time.Since(renderStart))
		} else {
			p.stats.RecordFrameDropped()
		}

		if p.playing {
			p.co.Advance()
		}

		if elapsed := time.Since(loopStart); elapsed < frameInterval {
			time.Sleep(frameInterval - elapsed)
		}
	}
	return nil
}

// Close tears down the SDL2 window/renderer/texture.
func (p *sdlPlayer) Close() error {
	p.texture.Destroy()
	p.renderer.Destroy()
	p.window.Destroy()
	sdl.Quit()
	return nil
}
