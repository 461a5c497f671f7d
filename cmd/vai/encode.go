package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/luminate-inc/vai/internal/container"
	"github.com/luminate-inc/vai/internal/encoder"
	"github.com/luminate-inc/vai/internal/rational"
	"github.com/luminate-inc/vai/pkg/framesource"
	"github.com/luminate-inc/vai/pkg/settings"
)

func newEncodeCmd() *cobra.Command {
	var (
		output    string
		quality   int
		threshold int
		minRegion int
		fpsFlag   string
		workers   int
	)

	cmd := &cobra.Command{
		Use:   "encode <input> -o <output.vai>",
		Short: "Encode a directory of PNG frames or a video file into a .vai container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return fmt.Errorf("encode: -o/--output is required")
			}

			localInput, err := resolveInput(args[0])
			if err != nil {
				return fmt.Errorf("encode: %w", err)
			}

			source, err := openSource(localInput, fpsFlag)
			if err != nil {
				return fmt.Errorf("encode: %w", err)
			}
			defer source.Close()

			cfg := encoder.Config{
				Quality:   quality,
				Threshold: uint8(threshold),
				MinRegion: minRegion,
				Workers:   workers,
			}
			if fpsFlag != "" {
				if rate, err := parseRate(fpsFlag); err == nil {
					cfg.FPSOverride = &rate
				}
			}

			c, err := encoder.Encode(source, cfg)
			if err != nil {
				return fmt.Errorf("encode: %w", err)
			}

			data, err := container.Write(c)
			if err != nil {
				return fmt.Errorf("encode: writing container: %w", err)
			}

			localOutput, err := localOutputPath(output)
			if err != nil {
				return fmt.Errorf("encode: %w", err)
			}
			if dir := filepath.Dir(localOutput); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("encode: %w", err)
				}
			}
			if err := os.WriteFile(localOutput, data, 0o644); err != nil {
				return fmt.Errorf("encode: %w", err)
			}
			if err := publishOutput(localOutput, output); err != nil {
				return fmt.Errorf("encode: publishing %s: %w", output, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d assets, %d timeline entries, %d bytes)\n",
				output, len(c.Assets), len(c.Timeline), len(data))

			persisted := settings.Load()
			persisted.Quality, persisted.Threshold, persisted.MinRegion, persisted.Workers = quality, threshold, minRegion, workers
			_ = settings.Save(persisted)

			return nil
		},
	}

	defaults := settings.Load()
	cmd.Flags().StringVarP(&output, "output", "o", "", "output .vai path (local or s3://bucket/key)")
	cmd.Flags().IntVar(&quality, "quality", defaults.Quality, "AVIF encode quality (0-100)")
	cmd.Flags().IntVar(&threshold, "threshold", defaults.Threshold, "motion detection threshold (0-255)")
	cmd.Flags().IntVar(&minRegion, "min-region", defaults.MinRegion, "minimum larger side (max of width, height), in pixels, a motion region must reach to survive")
	cmd.Flags().StringVar(&fpsFlag, "fps", "", "override frame rate as num/den, e.g. 30000/1001")
	cmd.Flags().IntVar(&workers, "workers", defaults.Workers, "concurrent frame encode workers")

	return cmd
}

// openSource picks a framesource.Source implementation from the shape
// of localInput: a directory is a PNG sequence, anything else is
// handed to the ffmpeg-backed video decoder.
func openSource(localInput, fpsFlag string) (framesource.Source, error) {
	info, err := os.Stat(localInput)
	if err != nil {
		return nil, err
	}

	if info.IsDir() {
		rate := rational.Rate{Num: 30, Den: 1}
		if fpsFlag != "" {
			if r, err := parseRate(fpsFlag); err == nil {
				rate = r
			}
		}
		return framesource.OpenPNGDir(localInput, rate)
	}

	return framesource.OpenVideoFile(localInput)
}

func parseRate(s string) (rational.Rate, error) {
	parts := strings.SplitN(s, "/", 2)
	num, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return rational.Rate{}, err
	}
	den := uint64(1)
	if len(parts) == 2 {
		den, err = strconv.ParseUint(parts[1], 10, 32)
		if err != nil {
			return rational.Rate{}, err
		}
	}
	return rational.Rate{Num: uint32(num), Den: uint32(den)}, nil
}
