package main

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/luminate-inc/vai/internal/compositor"
	"github.com/luminate-inc/vai/internal/container"
	"github.com/luminate-inc/vai/pkg/player"
)

func newDecodeCmd() *cobra.Command {
	var (
		info      bool
		outputDir string
		frameNum  int64
		frameOut  string
	)

	cmd := &cobra.Command{
		Use:   "decode <input.vai>",
		Short: "Inspect, dump, or preview a .vai container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			localInput, err := resolveInput(args[0])
			if err != nil {
				return fmt.Errorf("decode: %w", err)
			}

			data, err := os.ReadFile(localInput)
			if err != nil {
				return fmt.Errorf("decode: %w", err)
			}

			c, err := container.Read(data)
			if err != nil {
				return fmt.Errorf("decode: %w", err)
			}

			switch {
			case info:
				printInfo(cmd, c)
				return nil
			case frameOut != "":
				return decodeOneFrame(c, frameNum, frameOut)
			case outputDir != "":
				return decodeAllFrames(c, outputDir)
			default:
				return previewInteractive(c, localInput)
			}
		},
	}

	cmd.Flags().BoolVar(&info, "info", false, "print header fields and exit")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "directory to dump frame_NNNNNN.png into, or destination file with --frame")
	cmd.Flags().Int64Var(&frameNum, "frame", -1, "dump a single frame index (requires -o <file.png>)")
	cmd.MarkFlagsMutuallyExclusive("info", "frame")

	// --frame N -o file.png: when --frame is set, -o names a file, not
	// a directory. Resolve that at run time via PreRunE so both forms
	// of the spec's documented invocation keep working.
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if frameNum >= 0 {
			frameOut = outputDir
			outputDir = ""
		}
		return nil
	}

	return cmd
}

func printInfo(cmd *cobra.Command, c *container.Container) {
	w := cmd.OutOrStdout()
	h := c.Header
	fmt.Fprintf(w, "version:        %d\n", h.Version)
	fmt.Fprintf(w, "dimensions:     %dx%d\n", h.Width, h.Height)
	fmt.Fprintf(w, "fps:            %d/%d\n", h.FPSNum, h.FPSDen)
	fmt.Fprintf(w, "duration_ms:    %d\n", h.DurationMs)
	fmt.Fprintf(w, "total_frames:   %d\n", c.TotalFrames())
	fmt.Fprintf(w, "assets:         %d\n", h.AssetCount)
	fmt.Fprintf(w, "timeline:       %d entries\n", h.TimelineCount)
}

func decodeOneFrame(c *container.Container, frameNum int64, outPath string) error {
	if frameNum < 0 {
		return fmt.Errorf("decode: --frame requires a non-negative index")
	}
	co := compositor.New(c)
	img, err := co.ComposeFrame(uint64(frameNum))
	if err != nil {
		return fmt.Errorf("decode: compose frame %d: %w", frameNum, err)
	}
	return writePNG(outPath, img)
}

func decodeAllFrames(c *container.Container, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	co := compositor.New(c)
	total := co.TotalFrames()
	for i := uint64(0); i < total; i++ {
		img, err := co.ComposeFrame(i)
		if err != nil {
			return fmt.Errorf("decode: compose frame %d: %w", i, err)
		}
		path := filepath.Join(dir, fmt.Sprintf("frame_%06d.png", i))
		if err := writePNG(path, img); err != nil {
			return err
		}
	}
	return nil
}

func previewInteractive(c *container.Container, sourcePath string) error {
	co := compositor.New(c)
	p, err := player.New(co, filepath.Base(sourcePath))
	if err != nil {
		return fmt.Errorf("decode: opening preview window: %w", err)
	}
	defer p.Close()
	return p.Run()
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("decode: creating %s: %w", path, err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("decode: encoding %s: %w", path, err)
	}
	return nil
}
